package handlers

import "strings"

// CommandKind classifies a recognized trigger command.
type CommandKind string

const (
	CmdMain CommandKind = "main"
	CmdNext CommandKind = "next"
)

// Built-in aliases stay recognized even after the admin renames the
// primary commands, so a typo in a rename can never lock buyers out.
var (
	mainAliases = []string{"/qa", "!qa", "/вопрос", "!вопрос"}
	nextAliases = []string{"/далее", "!далее", "/next", "!next"}
)

// ParseCommand extracts a command kind and trailing argument from raw
// inbound text. The configured tokens match the first
// whitespace-delimited token case-insensitively; most chat traffic
// matches nothing, which is not an error.
func ParseCommand(text, cmdMain, cmdNext string) (CommandKind, string, bool) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", "", false
	}

	if matchesFirstToken(t, cmdMain) {
		return CmdMain, extractArg(t), true
	}
	if matchesFirstToken(t, cmdNext) {
		return CmdNext, extractArg(t), true
	}

	low := strings.ToLower(t)
	for _, alias := range mainAliases {
		if strings.HasPrefix(low, alias) {
			return CmdMain, extractArg(t), true
		}
	}
	for _, alias := range nextAliases {
		if strings.HasPrefix(low, alias) {
			return CmdNext, extractArg(t), true
		}
	}

	return "", "", false
}

func matchesFirstToken(text, cmd string) bool {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return false
	}
	first := text
	if fields := strings.Fields(text); len(fields) > 0 {
		first = fields[0]
	}
	return strings.EqualFold(first, cmd)
}

func extractArg(text string) string {
	if idx := strings.IndexAny(text, " \t"); idx >= 0 {
		return strings.TrimSpace(text[idx+1:])
	}
	return ""
}
