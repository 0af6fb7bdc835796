// Package history manages per-chat conversation history scoped to a
// single marketplace listing.
package history

import (
	"context"
	"strings"

	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/mp-gpt-consultant-go/internal/services/settings"
	"github.com/sirupsen/logrus"
)

// Manager enforces the history invariants: listing continuity, the
// message-count cap with FIFO eviction, and per-message character
// truncation.
type Manager struct {
	store       *settings.Store
	maxMessages int
	maxChars    int
	logger      *logrus.Logger
}

func NewManager(store *settings.Store, maxMessages, maxChars int, logger *logrus.Logger) *Manager {
	return &Manager{
		store:       store,
		maxMessages: maxMessages,
		maxChars:    maxChars,
		logger:      logger,
	}
}

// EnsureLot applies the listing-continuity invariant: when a chat
// moves from one non-empty lot id to a different one, its history is
// reset. Re-asserting the same lot is a no-op on history.
func (m *Manager) EnsureLot(ctx context.Context, chatID, lotID string) models.ConversationState {
	lotID = strings.TrimSpace(lotID)
	return m.store.UpdateState(ctx, chatID, func(cs *models.ConversationState) {
		prev := strings.TrimSpace(cs.LotID)
		if lotID != "" && prev != "" && prev != lotID {
			m.logger.WithFields(logrus.Fields{
				"chat_id": chatID,
				"old_lot": prev,
				"new_lot": lotID,
			}).Debug("Lot changed, resetting history")
			cs.History = []models.Message{}
		}
		if lotID != "" && prev != lotID {
			cs.LotID = lotID
		}
	})
}

// Get returns a sanitized, length-capped copy of the chat's history
// for the given lot. Entries with unknown roles or empty content are
// dropped, which guards against partially written or hand-edited
// state.
func (m *Manager) Get(ctx context.Context, chatID, lotID string) []models.Message {
	cs := m.EnsureLot(ctx, chatID, lotID)

	cleaned := make([]models.Message, 0, len(cs.History))
	for _, msg := range cs.History {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)
		if (role == models.RoleUser || role == models.RoleAssistant) && content != "" {
			cleaned = append(cleaned, models.Message{Role: role, Content: content})
		}
	}
	if m.maxMessages > 0 && len(cleaned) > m.maxMessages {
		cleaned = cleaned[len(cleaned)-m.maxMessages:]
	}
	return cleaned
}

// Append records a completed turn (user question, assistant answer),
// truncating each side to the character cap and evicting the oldest
// entries past the message cap. The assistant text also refreshes the
// chat's last-reply cache.
func (m *Manager) Append(ctx context.Context, chatID, lotID, userText, assistantText string) {
	m.EnsureLot(ctx, chatID, lotID)

	user := Clip(userText, m.maxChars)
	assistant := Clip(assistantText, m.maxChars)

	m.store.UpdateState(ctx, chatID, func(cs *models.ConversationState) {
		if user != "" {
			cs.History = append(cs.History, models.Message{Role: models.RoleUser, Content: user})
		}
		if assistant != "" {
			cs.History = append(cs.History, models.Message{Role: models.RoleAssistant, Content: assistant})
		}
		if m.maxMessages > 0 && len(cs.History) > m.maxMessages {
			cs.History = cs.History[len(cs.History)-m.maxMessages:]
		}
		if assistant != "" {
			cs.LastAutoReply = assistant
		}
	})
}

// Clip trims s and truncates it to at most n runes, replacing the
// tail with an ellipsis marker when it was cut.
func Clip(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	cut := n - 1
	if cut < 0 {
		cut = 0
	}
	return strings.TrimRight(string(runes[:cut]), " \t\n") + "…"
}
