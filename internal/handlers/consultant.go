package handlers

import (
	"context"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/i18n"
	"github.com/mp-gpt-consultant-go/internal/marketplace"
	"github.com/mp-gpt-consultant-go/internal/middleware"
	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/mp-gpt-consultant-go/internal/services/ai"
	"github.com/mp-gpt-consultant-go/internal/services/cache"
	"github.com/mp-gpt-consultant-go/internal/services/history"
	"github.com/mp-gpt-consultant-go/internal/services/settings"
	"github.com/mp-gpt-consultant-go/pkg/logger"
	"github.com/mp-gpt-consultant-go/pkg/markdown"
	"github.com/sirupsen/logrus"
)

// Terminal branches, recorded per processed trigger.
const (
	outcomeDisabled   = "disabled"
	outcomeUsageHint  = "usage_hint"
	outcomeInvalid    = "invalid_input"
	outcomeCooldown   = "cooldown_drop"
	outcomeLotError   = "lot_error"
	outcomeWrongMode  = "wrong_mode"
	outcomeNoHistory  = "no_history"
	outcomeModelError = "model_error"
	outcomeCacheHit   = "cache_hit"
	outcomeSuccess    = "success"
)

// Consultant turns an inbound buyer message into an outbound answer
// (or a defined fallback). Each trigger runs synchronously to a
// terminal branch; there is no retry and no queuing.
type Consultant struct {
	cfg       *config.Config
	store     *settings.Store
	history   *history.Manager
	ai        ai.Service
	market    marketplace.Client
	cache     cache.Service
	guard     *middleware.InputGuard
	metrics   *middleware.Metrics
	localizer *i18n.Localizer
	logger    *logrus.Logger
	gate      *CooldownGate
	now       func() time.Time
}

func NewConsultant(
	cfg *config.Config,
	store *settings.Store,
	historyManager *history.Manager,
	aiService ai.Service,
	market marketplace.Client,
	answerCache cache.Service,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	logger *logrus.Logger,
) *Consultant {
	return &Consultant{
		cfg:       cfg,
		store:     store,
		history:   historyManager,
		ai:        aiService,
		market:    market,
		cache:     answerCache,
		guard:     middleware.NewInputGuard(logger),
		metrics:   metrics,
		localizer: localizer,
		logger:    logger,
		gate:      NewCooldownGate(store),
		now:       time.Now,
	}
}

// HandleMessage is the top-level trigger handler. Non-trigger traffic
// is ignored; no fault escapes past here.
func (h *Consultant) HandleMessage(ctx context.Context, msg models.InboundMessage) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.WithFields(logrus.Fields{
				"chat_id": msg.ChatID,
				"panic":   r,
			}).Error("Trigger handler panicked")
		}
	}()

	if msg.ChatID == "" {
		return
	}

	st := h.store.Settings()
	kind, arg, ok := ParseCommand(msg.Text, st.CmdMain, st.CmdNext)
	if !ok {
		return
	}

	h.metrics.RecordTrigger(string(kind))
	h.logger.WithFields(logrus.Fields{
		"chat_id": msg.ChatID,
		"cmd":     kind,
		"q":       history.Clip(arg, 80),
	}).Info("Trigger received")

	h.process(ctx, msg.ChatID, kind, arg, &st)
}

// process walks the trigger through its terminal-branch machine. Every
// branch that represents an attempt (success or failure) marks the
// cooldown timestamp; guidance branches (usage hint, rejected input)
// and the silent cooldown drop stay free so a re-prompt never extends
// the window.
func (h *Consultant) process(ctx context.Context, chatID string, kind CommandKind, question string, st *models.Settings) {
	if !st.PluginEnabled {
		h.metrics.RecordOutcome(outcomeDisabled)
		return
	}

	if question == "" {
		h.send(ctx, chatID, h.localizer.Default(i18n.MsgUsageHint, map[string]interface{}{
			"Cmd": st.CmdMain,
		}))
		h.metrics.RecordOutcome(outcomeUsageHint)
		return
	}

	if err := h.guard.ValidateQuestion(question); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Warn("Question rejected")
		h.send(ctx, chatID, h.localizer.Default(i18n.MsgUsageHint, map[string]interface{}{
			"Cmd": st.CmdMain,
		}))
		h.metrics.RecordOutcome(outcomeInvalid)
		return
	}

	if !h.gate.Allowed(ctx, chatID, st.CooldownSec) {
		h.metrics.RecordCooldownDrop()
		h.metrics.RecordOutcome(outcomeCooldown)
		return
	}

	listing, err := h.market.ActiveListing(ctx, chatID)
	if err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Warn("Listing unavailable")
		h.send(ctx, chatID, h.localizer.Default(i18n.MsgUnavailable, nil))
		h.markProcessed(ctx, chatID)
		h.metrics.RecordOutcome(outcomeLotError)
		return
	}

	log := logger.WithChat(h.logger, chatID, listing.ID)

	var hist []models.Message
	if st.Mode == models.ModeContextual {
		hist = h.history.Get(ctx, chatID, listing.ID)
	} else {
		// Simple mode still tracks the active lot so a later switch
		// to contextual mode starts from a consistent state.
		h.history.EnsureLot(ctx, chatID, listing.ID)
	}

	if kind == CmdNext {
		if st.Mode != models.ModeContextual {
			h.send(ctx, chatID, h.localizer.Default(i18n.MsgNextWrongMode, nil))
			h.markProcessed(ctx, chatID)
			h.metrics.RecordOutcome(outcomeWrongMode)
			return
		}
		if len(hist) == 0 {
			h.send(ctx, chatID, h.localizer.Default(i18n.MsgNextNoHistory, nil))
			h.markProcessed(ctx, chatID)
			h.metrics.RecordOutcome(outcomeNoHistory)
			return
		}
	}

	// A contextual answer depends on the whole history, so only
	// simple-mode questions are cache-safe.
	if st.Mode == models.ModeSimple {
		if answer, found := h.cache.Get(listing.ID, question); found {
			h.metrics.RecordCacheHit()
			h.rememberReply(ctx, chatID, answer)
			h.markProcessed(ctx, chatID)
			h.send(ctx, chatID, answer)
			h.metrics.RecordOutcome(outcomeCacheHit)
			return
		}
		h.metrics.RecordCacheMiss()
	}

	started := h.now()
	answer, err := h.ai.Ask(ctx, h.store.EffectiveAPIKey(), question, listing, hist)
	if err != nil {
		h.metrics.RecordModelRequest("error", h.now().Sub(started))
		if aiErr, ok := err.(*ai.Error); ok {
			log.WithFields(logrus.Fields{"kind": aiErr.Kind, "detail": aiErr.Detail}).Error("Model call failed")
		} else {
			log.WithError(err).Error("Model call failed")
		}
		h.send(ctx, chatID, h.localizer.Default(i18n.MsgUnavailable, nil))
		h.markProcessed(ctx, chatID)
		h.metrics.RecordOutcome(outcomeModelError)
		return
	}
	h.metrics.RecordModelRequest("success", h.now().Sub(started))

	answer = markdown.ToPlainText(answer)

	if st.Mode == models.ModeContextual {
		h.history.Append(ctx, chatID, listing.ID, question, answer)
	} else {
		h.cache.Set(listing.ID, question, answer)
		h.rememberReply(ctx, chatID, answer)
	}
	h.markProcessed(ctx, chatID)
	h.send(ctx, chatID, answer)
	h.metrics.RecordOutcome(outcomeSuccess)
	log.Info("Answer sent")
}

// markProcessed advances the chat's cooldown timestamp, keeping it
// monotonically non-decreasing.
func (h *Consultant) markProcessed(ctx context.Context, chatID string) {
	ts := float64(h.now().UnixNano()) / 1e9
	h.store.UpdateState(ctx, chatID, func(cs *models.ConversationState) {
		if ts > cs.LastTS {
			cs.LastTS = ts
		}
	})
}

func (h *Consultant) rememberReply(ctx context.Context, chatID, answer string) {
	h.store.UpdateState(ctx, chatID, func(cs *models.ConversationState) {
		cs.LastAutoReply = answer
	})
}

// send delivers a reply into the marketplace chat. Delivery failures
// are logged and swallowed; the trigger already reached its terminal
// branch.
func (h *Consultant) send(ctx context.Context, chatID, text string) {
	if err := h.market.SendMessage(ctx, chatID, text); err != nil {
		h.logger.WithError(err).WithField("chat_id", chatID).Error("Failed to send chat message")
	}
}
