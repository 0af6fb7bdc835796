package cache

import (
	"io"
	"testing"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func newTestCache(enabled bool) Service {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewCache(&config.CacheConfig{
		Enabled: enabled,
		TTL:     time.Minute,
		MaxSize: 10,
	}, log)
}

func TestCacheSetGet(t *testing.T) {
	c := newTestCache(true)

	_, found := c.Get("lot-1", "warranty?")
	assert.False(t, found)

	c.Set("lot-1", "warranty?", "30 days")

	answer, found := c.Get("lot-1", "warranty?")
	assert.True(t, found)
	assert.Equal(t, "30 days", answer)

	// Same question about a different lot is a different entry.
	_, found = c.Get("lot-2", "warranty?")
	assert.False(t, found)
}

func TestCacheClear(t *testing.T) {
	c := newTestCache(true)

	c.Set("lot-1", "q", "a")
	c.Clear()

	_, found := c.Get("lot-1", "q")
	assert.False(t, found)
}

func TestDisabledCacheIsPassthrough(t *testing.T) {
	c := newTestCache(false)

	c.Set("lot-1", "q", "a")
	_, found := c.Get("lot-1", "q")
	assert.False(t, found)

	// Clear on a disabled cache must not panic.
	c.Clear()
}
