package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "—", maskKey(""))
	assert.Equal(t, "—", maskKey("   "))
	assert.Equal(t, "********", maskKey("short"))
	assert.Equal(t, "********", maskKey("abcdefghij"))
	assert.Equal(t, "io-v2-…wxyz", maskKey("io-v2-0123456789-wxyz"))
}

func TestCallbackDataBuilder(t *testing.T) {
	assert.Equal(t, "gptc:toggle_plugin", cb(actTogglePlugin))
	assert.Equal(t, "gptc:page:settings", cb(actPage, pageSettings))
}
