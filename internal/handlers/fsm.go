package handlers

import (
	"strings"
	"sync"
)

type fsmStep int

const (
	stepAPIKey fsmStep = iota + 1
	stepCommandName
)

const minAPIKeyLen = 20

// Targets for the command-rename step.
const (
	whichMain = "main"
	whichNext = "next"
)

var cancelWords = []string{"/cancel", "cancel", "отмена"}

type fsmEntry struct {
	step  fsmStep
	which string
}

// InputFSM is the per-admin-chat input state table. Entries are
// process-local: a restart drops any in-progress prompt, which is
// fine — the admin just retries.
type InputFSM struct {
	mu       sync.Mutex
	sessions map[int64]fsmEntry
}

func NewInputFSM() *InputFSM {
	return &InputFSM{sessions: make(map[int64]fsmEntry)}
}

func (f *InputFSM) start(chatID int64, entry fsmEntry) {
	f.mu.Lock()
	f.sessions[chatID] = entry
	f.mu.Unlock()
}

// StartAPIKey puts the chat into the awaiting-API-key step.
func (f *InputFSM) StartAPIKey(chatID int64) {
	f.start(chatID, fsmEntry{step: stepAPIKey})
}

// StartCommandName puts the chat into the awaiting-command-name step
// for the main or next command.
func (f *InputFSM) StartCommandName(chatID int64, which string) {
	f.start(chatID, fsmEntry{step: stepCommandName, which: which})
}

// Active reports whether the chat is mid-prompt.
func (f *InputFSM) Active(chatID int64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.sessions[chatID]
	return ok
}

func (f *InputFSM) get(chatID int64) (fsmEntry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.sessions[chatID]
	return entry, ok
}

// Clear returns the chat to idle.
func (f *InputFSM) Clear(chatID int64) {
	f.mu.Lock()
	delete(f.sessions, chatID)
	f.mu.Unlock()
}

func isCancelWord(text string) bool {
	low := strings.ToLower(strings.TrimSpace(text))
	for _, w := range cancelWords {
		if low == w {
			return true
		}
	}
	return false
}

// validCommandToken reports whether text is usable as a trigger
// command: one non-empty token without whitespace.
func validCommandToken(text string) bool {
	text = strings.TrimSpace(text)
	return text != "" && !strings.ContainsAny(text, " \t\n")
}
