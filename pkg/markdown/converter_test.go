package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToPlainText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "empty", in: "", want: ""},
		{name: "plain text passes through", in: "The warranty is 30 days.", want: "The warranty is 30 days."},
		{name: "bold stripped", in: "**Yes**, it is available.", want: "Yes, it is available."},
		{name: "inline code stripped", in: "Use the `/qa` command.", want: "Use the /qa command."},
		{name: "heading flattened", in: "# Delivery\nShips in 2 days.", want: "Delivery\n\nShips in 2 days."},
		{name: "subheading flattened", in: "## Price\n200 USD", want: "Price\n\n200 USD"},
		{name: "entities unescaped", in: "Price &amp; delivery", want: "Price & delivery"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ToPlainText(tt.in))
		})
	}
}

func TestToPlainTextLists(t *testing.T) {
	out := ToPlainText("Covered:\n\n- screen\n- battery")
	assert.Contains(t, out, "• screen")
	assert.Contains(t, out, "• battery")
	assert.NotContains(t, out, "<li>")
	assert.NotContains(t, out, "-")
}

func TestToPlainTextCollapsesBlankRuns(t *testing.T) {
	out := ToPlainText("first\n\n\n\n\nsecond")
	assert.NotContains(t, out, "\n\n\n")
}
