package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		cmdMain  string
		cmdNext  string
		wantKind CommandKind
		wantArg  string
		wantOK   bool
	}{
		{name: "main with question", text: "/qa What is the warranty?", cmdMain: "/qa", cmdNext: "/next", wantKind: CmdMain, wantArg: "What is the warranty?", wantOK: true},
		{name: "main without question", text: "/qa", cmdMain: "/qa", cmdNext: "/next", wantKind: CmdMain, wantArg: "", wantOK: true},
		{name: "case insensitive", text: "/QA how fast?", cmdMain: "/qa", cmdNext: "/next", wantKind: CmdMain, wantArg: "how fast?", wantOK: true},
		{name: "leading whitespace", text: "   /qa  padded question  ", cmdMain: "/qa", cmdNext: "/next", wantKind: CmdMain, wantArg: "padded question", wantOK: true},
		{name: "next command", text: "/next and shipping?", cmdMain: "/qa", cmdNext: "/next", wantKind: CmdNext, wantArg: "and shipping?", wantOK: true},
		{name: "renamed main", text: "/ask price?", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdMain, wantArg: "price?", wantOK: true},
		{name: "renamed next", text: "/more details?", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdNext, wantArg: "details?", wantOK: true},
		{name: "builtin alias survives rename", text: "!qa still works?", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdMain, wantArg: "still works?", wantOK: true},
		{name: "russian main alias", text: "/вопрос сколько стоит?", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdMain, wantArg: "сколько стоит?", wantOK: true},
		{name: "russian next alias", text: "!далее а доставка?", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdNext, wantArg: "а доставка?", wantOK: true},
		{name: "next alias survives rename", text: "/next follow up", cmdMain: "/ask", cmdNext: "/more", wantKind: CmdNext, wantArg: "follow up", wantOK: true},
		{name: "plain chat text", text: "hello, is this available?", cmdMain: "/qa", cmdNext: "/next", wantOK: false},
		{name: "empty text", text: "", cmdMain: "/qa", cmdNext: "/next", wantOK: false},
		{name: "whitespace only", text: "   ", cmdMain: "/qa", cmdNext: "/next", wantOK: false},
		{name: "empty configured command never matches", text: "just words", cmdMain: "", cmdNext: "", wantOK: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, arg, ok := ParseCommand(tt.text, tt.cmdMain, tt.cmdNext)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.wantKind, kind)
				assert.Equal(t, tt.wantArg, arg)
			}
		})
	}
}
