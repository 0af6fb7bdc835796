package settings

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"

	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryBackend struct {
	data    []byte
	saveErr error
	saves   int
}

func (m *memoryBackend) Load(ctx context.Context) ([]byte, error) {
	if m.data == nil {
		return nil, nil
	}
	return m.data, nil
}

func (m *memoryBackend) Save(ctx context.Context, data []byte) error {
	m.saves++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.data = append([]byte(nil), data...)
	return nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewStoreCreatesDefaults(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	st := store.Settings()
	assert.True(t, st.PluginEnabled)
	assert.Equal(t, models.ModeSimple, st.Mode)
	assert.Equal(t, DefaultCooldownSec, st.CooldownSec)
	assert.Equal(t, DefaultCmdMain, st.CmdMain)
	assert.Equal(t, DefaultCmdNext, st.CmdNext)
	assert.Empty(t, st.APIKey)
	assert.NotNil(t, st.ChatState)

	// The materialized record is persisted immediately.
	assert.NotNil(t, backend.data)
}

func TestNewStoreBackfillsMissingFields(t *testing.T) {
	backend := &memoryBackend{data: []byte(`{"mode": 2}`)}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	st := store.Settings()
	assert.Equal(t, models.ModeContextual, st.Mode)
	assert.Equal(t, DefaultCmdMain, st.CmdMain)
	assert.Equal(t, DefaultCmdNext, st.CmdNext)
	assert.NotNil(t, st.ChatState)

	// Defaults only land for absent keys, not stored false values.
	backend = &memoryBackend{data: []byte(`{"plugin_enabled": false}`)}
	store, err = NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)
	assert.False(t, store.Settings().PluginEnabled)
}

func TestNewStoreMalformedDocumentFallsBackToDefaults(t *testing.T) {
	backend := &memoryBackend{data: []byte(`{"mode": `)}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	st := store.Settings()
	assert.Equal(t, models.ModeSimple, st.Mode)
	assert.Equal(t, DefaultCmdMain, st.CmdMain)
}

func TestMigrateCoercesInvalidValues(t *testing.T) {
	backend := &memoryBackend{data: []byte(`{
		"mode": 7,
		"cooldown_sec": -3,
		"cmd_main": "   ",
		"chat_state": {"c1": null, "c2": {"history": null}}
	}`)}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	st := store.Settings()
	assert.Equal(t, models.ModeSimple, st.Mode)
	assert.Equal(t, DefaultCooldownSec, st.CooldownSec)
	assert.Equal(t, DefaultCmdMain, st.CmdMain)
	require.Contains(t, st.ChatState, "c1")
	require.Contains(t, st.ChatState, "c2")
	assert.NotNil(t, st.ChatState["c1"].History)
	assert.NotNil(t, st.ChatState["c2"].History)
}

func TestRoundTripIsStable(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	store.Update(context.Background(), func(st *models.Settings) {
		st.Mode = models.ModeContextual
		st.CmdMain = "/ask"
		st.APIKey = "io-v2-key-0123456789abcdef"
	})

	reloaded, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	st := reloaded.Settings()
	assert.Equal(t, models.ModeContextual, st.Mode)
	assert.Equal(t, "/ask", st.CmdMain)
	assert.Equal(t, "io-v2-key-0123456789abcdef", st.APIKey)
}

func TestSettingsReturnsIndependentCopy(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	store.UpdateState(context.Background(), "chat-1", func(cs *models.ConversationState) {
		cs.History = append(cs.History, models.Message{Role: models.RoleUser, Content: "hi"})
	})

	snapshot := store.Settings()
	snapshot.ChatState["chat-1"].History[0].Content = "mutated"
	snapshot.ChatState["other"] = &models.ConversationState{}

	st := store.Settings()
	assert.Equal(t, "hi", st.ChatState["chat-1"].History[0].Content)
	assert.NotContains(t, st.ChatState, "other")
}

func TestEffectiveAPIKey(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "env-fallback-key", testLogger())
	require.NoError(t, err)

	assert.Equal(t, "env-fallback-key", store.EffectiveAPIKey())

	store.Update(context.Background(), func(st *models.Settings) {
		st.APIKey = "stored-key-0123456789"
	})
	assert.Equal(t, "stored-key-0123456789", store.EffectiveAPIKey())

	store.Update(context.Background(), func(st *models.Settings) {
		st.APIKey = ""
	})
	assert.Equal(t, "env-fallback-key", store.EffectiveAPIKey())
}

func TestPersistFailureKeepsInMemoryRecord(t *testing.T) {
	backend := &memoryBackend{saveErr: errors.New("disk full")}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	store.Update(context.Background(), func(st *models.Settings) {
		st.CmdMain = "/question"
	})

	assert.Equal(t, "/question", store.Settings().CmdMain)
	assert.Greater(t, backend.saves, 0)
}

func TestStateMaterializesDefaults(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	cs := store.State(context.Background(), "chat-9")
	assert.Zero(t, cs.LastTS)
	assert.Empty(t, cs.LotID)
	assert.NotNil(t, cs.History)

	// The materialized chat is now part of the persisted document.
	var doc models.Settings
	require.NoError(t, json.Unmarshal(backend.data, &doc))
	assert.Contains(t, doc.ChatState, "chat-9")
}

func TestUpdateStateCreatesAndMutates(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	got := store.UpdateState(context.Background(), "chat-2", func(cs *models.ConversationState) {
		cs.LastTS = 1700000000.5
		cs.LotID = "42"
	})
	assert.Equal(t, 1700000000.5, got.LastTS)
	assert.Equal(t, "42", got.LotID)

	again := store.State(context.Background(), "chat-2")
	assert.Equal(t, "42", again.LotID)
}

func TestResetRestoresDefaults(t *testing.T) {
	backend := &memoryBackend{}
	store, err := NewStore(context.Background(), backend, "", testLogger())
	require.NoError(t, err)

	store.Update(context.Background(), func(st *models.Settings) {
		st.PluginEnabled = false
		st.APIKey = "some-key-0123456789abc"
	})
	store.UpdateState(context.Background(), "chat-1", func(cs *models.ConversationState) {
		cs.LotID = "7"
	})

	store.Reset(context.Background())

	st := store.Settings()
	assert.True(t, st.PluginEnabled)
	assert.Empty(t, st.APIKey)
	assert.Empty(t, st.ChatState)
}
