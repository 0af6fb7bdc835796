package i18n

import (
	"encoding/json"
	"fmt"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

// Localizer manages internationalization
type Localizer struct {
	bundle          *i18n.Bundle
	defaultLanguage string
	localizers      map[string]*i18n.Localizer
}

// NewLocalizer creates a new localizer
func NewLocalizer(cfg *config.I18nConfig) (*Localizer, error) {
	bundle := i18n.NewBundle(language.English)
	bundle.RegisterUnmarshalFunc("json", json.Unmarshal)

	for _, lang := range cfg.Languages {
		if _, err := bundle.LoadMessageFile(fmt.Sprintf("%s/%s.json", cfg.Directory, lang)); err != nil {
			return nil, fmt.Errorf("failed to load language file %s: %w", lang, err)
		}
	}

	localizers := make(map[string]*i18n.Localizer)
	for _, lang := range cfg.Languages {
		localizers[lang] = i18n.NewLocalizer(bundle, lang)
	}

	return &Localizer{
		bundle:          bundle,
		defaultLanguage: cfg.DefaultLanguage,
		localizers:      localizers,
	}, nil
}

// Get returns localized message
func (l *Localizer) Get(lang, messageID string, data map[string]interface{}) string {
	localizer, exists := l.localizers[lang]
	if !exists {
		localizer = l.localizers[l.defaultLanguage]
	}
	if localizer == nil {
		return messageID
	}

	msg, err := localizer.Localize(&i18n.LocalizeConfig{
		MessageID:    messageID,
		TemplateData: data,
	})
	if err != nil {
		return messageID // Fallback to message ID
	}

	return msg
}

// Default returns a message in the default language.
func (l *Localizer) Default(messageID string, data map[string]interface{}) string {
	return l.Get(l.defaultLanguage, messageID, data)
}

// Message IDs
const (
	// Buyer-facing replies.
	MsgUsageHint     = "usage_hint"
	MsgUnavailable   = "unavailable"
	MsgNextWrongMode = "next_wrong_mode"
	MsgNextNoHistory = "next_no_history"

	// Admin console pages.
	MsgHome          = "admin.home"
	MsgSettings      = "admin.settings"
	MsgAPIPage       = "admin.api"
	MsgCommandsPage  = "admin.commands"
	MsgLogsPage      = "admin.logs"
	MsgLogsEmpty     = "admin.logs_empty"
	MsgDeleteConfirm = "admin.delete_confirm"
	MsgDeleted       = "admin.deleted"
	MsgDeleteFailed  = "admin.delete_failed"
	MsgRateLimited   = "admin.rate_limited"

	// Admin console labels and toasts.
	MsgStateOn        = "admin.state_on"
	MsgStateOff       = "admin.state_off"
	MsgModeSimple     = "admin.mode_simple"
	MsgModeContextual = "admin.mode_contextual"
	MsgKeySet         = "admin.key_set"
	MsgKeyNotSet      = "admin.key_not_set"
	MsgDone           = "admin.done"
	MsgCancelled      = "admin.cancelled"
	MsgKeyDeleted     = "admin.key_deleted"
	MsgRefreshed      = "admin.refreshed"

	// Admin input FSM.
	MsgEnterKey      = "fsm.enter_key"
	MsgEnterCommand  = "fsm.enter_command"
	MsgKeyTooShort   = "fsm.key_too_short"
	MsgKeySaved      = "fsm.key_saved"
	MsgCmdInvalid    = "fsm.cmd_invalid"
	MsgCmdMainSaved  = "fsm.cmd_main_saved"
	MsgCmdNextSaved  = "fsm.cmd_next_saved"

	// Buttons.
	BtnSettings   = "button.settings"
	BtnHome       = "button.home"
	BtnBack       = "button.back"
	BtnCommands   = "button.commands"
	BtnAPIKey     = "button.api_key"
	BtnLogs       = "button.logs"
	BtnEnterKey   = "button.enter_key"
	BtnDeleteKey  = "button.delete_key"
	BtnEditMain   = "button.edit_main"
	BtnEditNext   = "button.edit_next"
	BtnRefresh    = "button.refresh"
	BtnExport     = "button.export"
	BtnUninstall  = "button.uninstall"
	BtnConfirmYes = "button.confirm_yes"
	BtnConfirmNo  = "button.confirm_no"
	BtnCancel     = "button.cancel"
)
