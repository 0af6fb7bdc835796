package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/mp-gpt-consultant-go/internal/services/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGate(t *testing.T) (*CooldownGate, *settings.Store, *clock) {
	t.Helper()
	store, err := settings.NewStore(context.Background(), &memBackend{}, "", testLogger())
	require.NoError(t, err)

	gate := NewCooldownGate(store)
	clk := &clock{t: time.Unix(1700000000, 0)}
	gate.now = clk.now
	return gate, store, clk
}

func TestCooldownAllowsFreshChat(t *testing.T) {
	gate, _, _ := newTestGate(t)
	assert.True(t, gate.Allowed(context.Background(), "chat-1", 2.0))
}

func TestCooldownWindow(t *testing.T) {
	gate, store, clk := newTestGate(t)
	ctx := context.Background()

	store.UpdateState(ctx, "chat-1", func(cs *models.ConversationState) {
		cs.LastTS = float64(clk.t.Unix())
	})

	assert.False(t, gate.Allowed(ctx, "chat-1", 2.0))

	clk.advance(1999 * time.Millisecond)
	assert.False(t, gate.Allowed(ctx, "chat-1", 2.0))

	// The boundary itself passes.
	clk.advance(time.Millisecond)
	assert.True(t, gate.Allowed(ctx, "chat-1", 2.0))
}

func TestCooldownZeroDisablesGate(t *testing.T) {
	gate, store, clk := newTestGate(t)
	ctx := context.Background()

	store.UpdateState(ctx, "chat-1", func(cs *models.ConversationState) {
		cs.LastTS = float64(clk.t.Unix())
	})

	assert.True(t, gate.Allowed(ctx, "chat-1", 0))
}

func TestCooldownChecksChatsIndependently(t *testing.T) {
	gate, store, clk := newTestGate(t)
	ctx := context.Background()

	store.UpdateState(ctx, "chat-1", func(cs *models.ConversationState) {
		cs.LastTS = float64(clk.t.Unix())
	})

	assert.False(t, gate.Allowed(ctx, "chat-1", 2.0))
	assert.True(t, gate.Allowed(ctx, "chat-2", 2.0))
}
