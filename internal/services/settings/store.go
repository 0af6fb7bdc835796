package settings

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/sirupsen/logrus"
)

const (
	DefaultCmdMain     = "/qa"
	DefaultCmdNext     = "/next"
	DefaultCooldownSec = 2.0
)

// Defaults returns the built-in settings record.
func Defaults() models.Settings {
	return models.Settings{
		PluginEnabled: true,
		Mode:          models.ModeSimple,
		CooldownSec:   DefaultCooldownSec,
		CmdMain:       DefaultCmdMain,
		CmdNext:       DefaultCmdNext,
		APIKey:        "",
		ChatState:     map[string]*models.ConversationState{},
	}
}

// Store owns the durable settings document. Every read-modify-write
// runs under its mutex; the in-memory copy is authoritative when the
// backend refuses a write, so a disk or redis hiccup degrades to
// in-memory-only for that cycle instead of failing the dispatch path.
type Store struct {
	mu      sync.Mutex
	backend Backend
	envKey  string
	logger  *logrus.Logger
	current models.Settings
}

// NewStore loads the document, creating it with defaults when absent
// and backfilling any missing or malformed fields (the one-time
// migration step). A corrupt document degrades to defaults rather
// than failing hard.
func NewStore(ctx context.Context, backend Backend, envKey string, logger *logrus.Logger) (*Store, error) {
	s := &Store{
		backend: backend,
		envKey:  strings.TrimSpace(envKey),
		logger:  logger,
	}

	data, err := backend.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.current = Defaults()
	if data != nil {
		// Unmarshal over the defaults so missing keys keep their
		// default values.
		if err := json.Unmarshal(data, &s.current); err != nil {
			logger.WithError(err).Warn("Settings document is malformed, falling back to defaults")
			s.current = Defaults()
		}
	}
	migrate(&s.current)

	// Persist the materialized record so subsequent reads are stable.
	s.persist(ctx)

	return s, nil
}

// migrate coerces malformed values back to defaults. Runs once at
// load time and after every Update, keeping per-read coercion out of
// the callers.
func migrate(st *models.Settings) {
	if st.Mode != models.ModeSimple && st.Mode != models.ModeContextual {
		st.Mode = models.ModeSimple
	}
	if st.CooldownSec < 0 {
		st.CooldownSec = DefaultCooldownSec
	}
	st.CmdMain = strings.TrimSpace(st.CmdMain)
	if st.CmdMain == "" {
		st.CmdMain = DefaultCmdMain
	}
	st.CmdNext = strings.TrimSpace(st.CmdNext)
	if st.CmdNext == "" {
		st.CmdNext = DefaultCmdNext
	}
	st.APIKey = strings.TrimSpace(st.APIKey)
	if st.ChatState == nil {
		st.ChatState = map[string]*models.ConversationState{}
	}
	for id, cs := range st.ChatState {
		if cs == nil {
			st.ChatState[id] = &models.ConversationState{History: []models.Message{}}
			continue
		}
		if cs.History == nil {
			cs.History = []models.Message{}
		}
	}
}

// Settings returns a deep copy of the current record. Mutations go
// through Update.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneSettings(&s.current)
}

// Update runs fn against the live record under the store lock and
// persists the result. This is the critical section: concurrent admin
// actions and trigger handling can never interleave their
// read-modify-write sequences.
func (s *Store) Update(ctx context.Context, fn func(*models.Settings)) models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()

	fn(&s.current)
	migrate(&s.current)
	s.persist(ctx)
	return cloneSettings(&s.current)
}

// EffectiveAPIKey returns the stored key when set, else the
// environment fallback. Callers never learn which source was used.
func (s *Store) EffectiveAPIKey() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if key := strings.TrimSpace(s.current.APIKey); key != "" {
		return key
	}
	return s.envKey
}

// Reset discards the document and restores defaults. Used by the
// uninstall flow.
func (s *Store) Reset(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = Defaults()
	s.persist(ctx)
}

// persist writes the current record. Callers must hold s.mu. Write
// failures are logged and swallowed: the in-memory record stays
// authoritative for the cycle.
func (s *Store) persist(ctx context.Context) {
	data, err := json.MarshalIndent(&s.current, "", "  ")
	if err != nil {
		s.logger.WithError(err).Error("Failed to marshal settings")
		return
	}
	if err := s.backend.Save(ctx, data); err != nil {
		s.logger.WithError(err).Error("Failed to persist settings, continuing in-memory")
	}
}

func cloneSettings(st *models.Settings) models.Settings {
	out := *st
	out.ChatState = make(map[string]*models.ConversationState, len(st.ChatState))
	for id, cs := range st.ChatState {
		c := cloneState(cs)
		out.ChatState[id] = &c
	}
	return out
}

func cloneState(cs *models.ConversationState) models.ConversationState {
	out := *cs
	out.History = make([]models.Message, len(cs.History))
	copy(out.History, cs.History)
	return out
}
