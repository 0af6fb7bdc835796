package handlers

import (
	"context"
	"fmt"
	"os"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/i18n"
	"github.com/mp-gpt-consultant-go/internal/middleware"
	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/mp-gpt-consultant-go/internal/services/cache"
	"github.com/mp-gpt-consultant-go/internal/services/settings"
	"github.com/mp-gpt-consultant-go/pkg/logger"
	"github.com/sirupsen/logrus"
)

const (
	consoleName    = "GPT Consultant"
	consoleVersion = "1.2"

	// Callback data prefix: "gptc:<action>[:<arg>]".
	cbPrefix = "gptc"

	pageHome     = "home"
	pageSettings = "settings"
	pageAPI      = "api"
	pageCommands = "cmd"
	pageLogs     = "logs"

	actPage          = "page"
	actTogglePlugin  = "toggle_plugin"
	actToggleMode    = "toggle_mode"
	actAPISet        = "api_set"
	actAPIDel        = "api_del"
	actCmdSetMain    = "cmd_set_main"
	actCmdSetNext    = "cmd_set_next"
	actLogsRefresh   = "logs_refresh"
	actLogsSend      = "logs_send"
	actDeleteConfirm = "delete_confirm"
	actDeleteYes     = "delete_yes"
	actDeleteNo      = "delete_no"
	actFSMCancel     = "fsm_cancel"

	logTailLines = 25
)

// AdminHandler drives the chat-based admin console: inline menu pages,
// discrete settings actions, and the multi-step input prompts.
type AdminHandler struct {
	bot       *tgbotapi.BotAPI
	cfg       *config.Config
	store     *settings.Store
	cache     cache.Service
	fsm       *InputFSM
	limiter   middleware.RateLimiter
	metrics   *middleware.Metrics
	localizer *i18n.Localizer
	logger    *logrus.Logger
	lang      string
}

func NewAdminHandler(
	bot *tgbotapi.BotAPI,
	cfg *config.Config,
	store *settings.Store,
	answerCache cache.Service,
	limiter middleware.RateLimiter,
	metrics *middleware.Metrics,
	localizer *i18n.Localizer,
	log *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		bot:       bot,
		cfg:       cfg,
		store:     store,
		cache:     answerCache,
		fsm:       NewInputFSM(),
		limiter:   limiter,
		metrics:   metrics,
		localizer: localizer,
		logger:    log,
		lang:      cfg.I18n.DefaultLanguage,
	}
}

// IsAdmin reports whether the chat belongs to a configured operator.
func (h *AdminHandler) IsAdmin(chatID int64) bool {
	for _, id := range h.cfg.Bot.AdminIDs {
		if id == chatID {
			return true
		}
	}
	return false
}

// HandleCommand processes console commands (/start, /gptc).
func (h *AdminHandler) HandleCommand(ctx context.Context, message *tgbotapi.Message) error {
	if !h.IsAdmin(message.Chat.ID) {
		return nil
	}

	switch message.Command() {
	case "start", "gptc":
		msg := tgbotapi.NewMessage(message.Chat.ID, h.homeText())
		msg.ParseMode = "HTML"
		msg.ReplyMarkup = h.homeKeyboard()
		_, err := h.bot.Send(msg)
		return err
	case "cancel":
		if h.fsm.Active(message.Chat.ID) {
			h.fsm.Clear(message.Chat.ID)
			h.reply(message.Chat.ID, h.t(i18n.MsgCancelled, nil))
		}
		return nil
	}
	return nil
}

// HandleMessage feeds plain text into an active input prompt. Returns
// true when the message was consumed by the FSM.
func (h *AdminHandler) HandleMessage(ctx context.Context, message *tgbotapi.Message) bool {
	chatID := message.Chat.ID
	if !h.IsAdmin(chatID) {
		return false
	}
	entry, ok := h.fsm.get(chatID)
	if !ok {
		return false
	}

	text := strings.TrimSpace(message.Text)
	if isCancelWord(text) {
		h.fsm.Clear(chatID)
		h.reply(chatID, h.t(i18n.MsgCancelled, nil))
		return true
	}

	switch entry.step {
	case stepAPIKey:
		if len(text) < minAPIKeyLen {
			h.reply(chatID, h.t(i18n.MsgKeyTooShort, nil))
			return true
		}
		h.store.Update(ctx, func(st *models.Settings) {
			st.APIKey = text
		})
		h.fsm.Clear(chatID)
		h.reply(chatID, h.t(i18n.MsgKeySaved, nil))
		h.logger.Info("API key updated from admin console")

	case stepCommandName:
		if !validCommandToken(text) {
			h.reply(chatID, h.t(i18n.MsgCmdInvalid, nil))
			return true
		}
		data := map[string]interface{}{"Cmd": text}
		if entry.which == whichNext {
			h.store.Update(ctx, func(st *models.Settings) { st.CmdNext = text })
			h.replyHTML(chatID, h.t(i18n.MsgCmdNextSaved, data))
			h.logger.WithField("cmd_next", text).Info("Follow-up command renamed")
		} else {
			h.store.Update(ctx, func(st *models.Settings) { st.CmdMain = text })
			h.replyHTML(chatID, h.t(i18n.MsgCmdMainSaved, data))
			h.logger.WithField("cmd_main", text).Info("Main command renamed")
		}
		h.fsm.Clear(chatID)
	}
	return true
}

// HandleCallback routes inline keyboard presses.
func (h *AdminHandler) HandleCallback(ctx context.Context, callback *tgbotapi.CallbackQuery) error {
	chatID := callback.Message.Chat.ID
	messageID := callback.Message.MessageID

	if !h.IsAdmin(chatID) {
		return nil
	}
	if !h.limiter.Allow(chatID) {
		h.answer(callback.ID, h.t(i18n.MsgRateLimited, nil))
		return nil
	}

	parts := strings.Split(callback.Data, ":")
	if len(parts) < 2 || parts[0] != cbPrefix {
		return nil
	}
	action := parts[1]
	h.metrics.RecordAdminAction(action)

	switch action {
	case actPage:
		page := pageHome
		if len(parts) >= 3 {
			page = parts[2]
		}
		h.openPage(chatID, messageID, page)
		h.answer(callback.ID, "")

	case actTogglePlugin:
		h.store.Update(ctx, func(st *models.Settings) {
			st.PluginEnabled = !st.PluginEnabled
		})
		h.openPage(chatID, messageID, pageSettings)
		h.answer(callback.ID, h.t(i18n.MsgDone, nil))

	case actToggleMode:
		var newMode models.Mode
		h.store.Update(ctx, func(st *models.Settings) {
			if st.Mode == models.ModeSimple {
				st.Mode = models.ModeContextual
			} else {
				st.Mode = models.ModeSimple
			}
			newMode = st.Mode
		})
		h.openPage(chatID, messageID, pageSettings)
		h.answer(callback.ID, h.modeLabel(newMode))

	case actAPISet:
		h.fsm.StartAPIKey(chatID)
		h.answer(callback.ID, "")
		h.promptInput(chatID, h.t(i18n.MsgEnterKey, nil))

	case actAPIDel:
		h.store.Update(ctx, func(st *models.Settings) { st.APIKey = "" })
		h.openPage(chatID, messageID, pageAPI)
		h.answer(callback.ID, h.t(i18n.MsgKeyDeleted, nil))
		h.logger.Info("API key deleted from admin console")

	case actCmdSetMain:
		h.fsm.StartCommandName(chatID, whichMain)
		h.answer(callback.ID, "")
		h.promptInput(chatID, h.t(i18n.MsgEnterCommand, nil))

	case actCmdSetNext:
		h.fsm.StartCommandName(chatID, whichNext)
		h.answer(callback.ID, "")
		h.promptInput(chatID, h.t(i18n.MsgEnterCommand, nil))

	case actLogsRefresh:
		h.openPage(chatID, messageID, pageLogs)
		h.answer(callback.ID, h.t(i18n.MsgRefreshed, nil))

	case actLogsSend:
		h.answer(callback.ID, "")
		h.sendLogFile(chatID)

	case actDeleteConfirm:
		h.editPage(chatID, messageID, h.t(i18n.MsgDeleteConfirm, map[string]interface{}{
			"Name": consoleName,
		}), h.deleteConfirmKeyboard())
		h.answer(callback.ID, "")

	case actDeleteNo:
		h.openPage(chatID, messageID, pageHome)
		h.answer(callback.ID, h.t(i18n.MsgCancelled, nil))

	case actDeleteYes:
		h.answer(callback.ID, "")
		errs := h.uninstall(ctx)
		h.limiter.Reset(chatID)
		if len(errs) == 0 {
			h.editPage(chatID, messageID, h.t(i18n.MsgDeleted, nil), tgbotapi.InlineKeyboardMarkup{})
			h.logger.Info("Consultant uninstalled from admin console")
		} else {
			h.editPage(chatID, messageID, h.t(i18n.MsgDeleteFailed, map[string]interface{}{
				"Errors": "• " + strings.Join(errs, "\n• "),
			}), tgbotapi.InlineKeyboardMarkup{})
			h.logger.WithField("errors", errs).Warn("Uninstall finished with errors")
		}

	case actFSMCancel:
		h.fsm.Clear(chatID)
		h.answer(callback.ID, h.t(i18n.MsgDone, nil))
		h.reply(chatID, h.t(i18n.MsgCancelled, nil))

	default:
		h.openPage(chatID, messageID, pageHome)
		h.answer(callback.ID, "")
	}

	return nil
}

// uninstall disables the consultant and purges its durable data. The
// process keeps running until the operator restarts it.
func (h *AdminHandler) uninstall(ctx context.Context) []string {
	var errs []string

	h.store.Update(ctx, func(st *models.Settings) {
		st.PluginEnabled = false
	})
	h.cache.Clear()

	if err := os.RemoveAll(h.cfg.Consultant.DataDir); err != nil {
		errs = append(errs, fmt.Sprintf("data dir: %v", err))
	}
	if path := h.cfg.Logging.File.Path; path != "" {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, fmt.Sprintf("log file: %v", err))
		}
	}
	return errs
}

// Page rendering.

func (h *AdminHandler) openPage(chatID int64, messageID int, page string) {
	switch page {
	case pageSettings:
		h.editPage(chatID, messageID, h.settingsText(), h.settingsKeyboard())
	case pageAPI:
		h.editPage(chatID, messageID, h.apiText(), h.apiKeyboard())
	case pageCommands:
		h.editPage(chatID, messageID, h.commandsText(), h.commandsKeyboard())
	case pageLogs:
		h.editPage(chatID, messageID, h.logsText(), h.logsKeyboard())
	default:
		h.editPage(chatID, messageID, h.homeText(), h.homeKeyboard())
	}
}

func (h *AdminHandler) homeText() string {
	return h.t(i18n.MsgHome, map[string]interface{}{
		"Name":    consoleName,
		"Version": consoleVersion,
	})
}

func (h *AdminHandler) homeKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnSettings, nil), cb(actPage, pageSettings)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnUninstall, nil), cb(actDeleteConfirm)),
		),
	)
}

func (h *AdminHandler) settingsText() string {
	st := h.store.Settings()
	key := h.store.EffectiveAPIKey()
	return h.t(i18n.MsgSettings, map[string]interface{}{
		"Name":      consoleName,
		"State":     h.stateLabel(st.PluginEnabled),
		"Mode":      h.modeLabel(st.Mode),
		"Cooldown":  fmt.Sprintf("%g", st.CooldownSec),
		"CmdMain":   st.CmdMain,
		"CmdNext":   st.CmdNext,
		"KeyState":  h.keyStateLabel(key),
		"MaskedKey": maskKey(key),
	})
}

func (h *AdminHandler) settingsKeyboard() tgbotapi.InlineKeyboardMarkup {
	st := h.store.Settings()
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.stateLabel(st.PluginEnabled), cb(actTogglePlugin)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.modeLabel(st.Mode), cb(actToggleMode)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnCommands, nil), cb(actPage, pageCommands)),
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnAPIKey, nil), cb(actPage, pageAPI)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnLogs, nil), cb(actPage, pageLogs)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnHome, nil), cb(actPage, pageHome)),
		),
	)
}

func (h *AdminHandler) apiText() string {
	key := h.store.EffectiveAPIKey()
	return h.t(i18n.MsgAPIPage, map[string]interface{}{
		"KeyState":  h.keyStateLabel(key),
		"MaskedKey": maskKey(key),
	})
}

func (h *AdminHandler) apiKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnEnterKey, nil), cb(actAPISet)),
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnDeleteKey, nil), cb(actAPIDel)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnBack, nil), cb(actPage, pageSettings)),
		),
	)
}

func (h *AdminHandler) commandsText() string {
	st := h.store.Settings()
	return h.t(i18n.MsgCommandsPage, map[string]interface{}{
		"CmdMain": st.CmdMain,
		"CmdNext": st.CmdNext,
	})
}

func (h *AdminHandler) commandsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnEditMain, nil), cb(actCmdSetMain)),
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnEditNext, nil), cb(actCmdSetNext)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnBack, nil), cb(actPage, pageSettings)),
		),
	)
}

func (h *AdminHandler) logsText() string {
	tail, err := logger.Tail(h.cfg.Logging.File.Path, logTailLines)
	if err != nil || strings.TrimSpace(tail) == "" {
		tail = h.t(i18n.MsgLogsEmpty, nil)
	}
	// Telegram caps message length; keep the page well under it.
	if len(tail) > 3500 {
		tail = tail[len(tail)-3500:]
	}
	return h.t(i18n.MsgLogsPage, map[string]interface{}{"Tail": tail})
}

func (h *AdminHandler) logsKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnRefresh, nil), cb(actLogsRefresh)),
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnExport, nil), cb(actLogsSend)),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnBack, nil), cb(actPage, pageSettings)),
		),
	)
}

func (h *AdminHandler) deleteConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnConfirmYes, nil), cb(actDeleteYes)),
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnConfirmNo, nil), cb(actDeleteNo)),
		),
	)
}

func (h *AdminHandler) sendLogFile(chatID int64) {
	path := h.cfg.Logging.File.Path
	if path == "" {
		h.reply(chatID, h.t(i18n.MsgLogsEmpty, nil))
		return
	}
	if _, err := os.Stat(path); err != nil {
		h.reply(chatID, h.t(i18n.MsgLogsEmpty, nil))
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := h.bot.Send(doc); err != nil {
		h.logger.WithError(err).Error("Failed to export log file")
	}
}

// Helpers.

func cb(action string, args ...string) string {
	data := cbPrefix + ":" + action
	if len(args) > 0 {
		data += ":" + strings.Join(args, ":")
	}
	return data
}

func (h *AdminHandler) t(messageID string, data map[string]interface{}) string {
	return h.localizer.Get(h.lang, messageID, data)
}

func (h *AdminHandler) stateLabel(enabled bool) string {
	if enabled {
		return h.t(i18n.MsgStateOn, nil)
	}
	return h.t(i18n.MsgStateOff, nil)
}

func (h *AdminHandler) modeLabel(mode models.Mode) string {
	if mode == models.ModeContextual {
		return h.t(i18n.MsgModeContextual, nil)
	}
	return h.t(i18n.MsgModeSimple, nil)
}

func (h *AdminHandler) keyStateLabel(key string) string {
	if strings.TrimSpace(key) != "" {
		return h.t(i18n.MsgKeySet, nil)
	}
	return h.t(i18n.MsgKeyNotSet, nil)
}

// maskKey renders a key safe for display: long keys keep a short
// prefix and suffix, short ones are fully hidden.
func maskKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "—"
	}
	if len(key) <= 10 {
		return "********"
	}
	return key[:6] + "…" + key[len(key)-4:]
}

// answer acknowledges a callback query, with an optional toast.
func (h *AdminHandler) answer(callbackID, text string) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		h.logger.WithError(err).Warn("Failed to answer callback query")
	}
}

func (h *AdminHandler) editPage(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "HTML"
	edit.DisableWebPagePreview = true
	if len(keyboard.InlineKeyboard) > 0 {
		edit.ReplyMarkup = &keyboard
	}
	if _, err := h.bot.Send(edit); err != nil {
		// "message is not modified" is routine when a page re-renders
		// with identical content.
		if !strings.Contains(strings.ToLower(err.Error()), "message is not modified") {
			h.logger.WithError(err).Warn("Failed to edit console page")
		}
	}
}

func (h *AdminHandler) promptInput(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(h.t(i18n.BtnCancel, nil), cb(actFSMCancel)),
		),
	)
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Error("Failed to send input prompt")
	}
}

func (h *AdminHandler) reply(chatID int64, text string) {
	if _, err := h.bot.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		h.logger.WithError(err).Error("Failed to send admin reply")
	}
}

func (h *AdminHandler) replyHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "HTML"
	if _, err := h.bot.Send(msg); err != nil {
		h.logger.WithError(err).Error("Failed to send admin reply")
	}
}
