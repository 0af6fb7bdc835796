package handlers

import (
	"context"
	"time"

	"github.com/mp-gpt-consultant-go/internal/services/settings"
)

// CooldownGate enforces the minimum interval between processed
// triggers for the same chat. It never updates the timestamp itself;
// the orchestrator marks it once processing concludes, so a dropped
// request does not reset the window while a failed attempt does.
type CooldownGate struct {
	store *settings.Store
	now   func() time.Time
}

func NewCooldownGate(store *settings.Store) *CooldownGate {
	return &CooldownGate{store: store, now: time.Now}
}

// Allowed reports whether enough time has elapsed since the chat's
// last processed trigger.
func (g *CooldownGate) Allowed(ctx context.Context, chatID string, cooldownSec float64) bool {
	st := g.store.State(ctx, chatID)
	elapsed := float64(g.now().UnixNano())/1e9 - st.LastTS
	return elapsed >= cooldownSec
}
