package models

// Mode selects how much conversation context is sent to the model.
type Mode int

const (
	// ModeSimple answers every question independently.
	ModeSimple Mode = 1
	// ModeContextual includes prior turns for the same chat+lot.
	ModeContextual Mode = 2
)

// Message represents a single chat-completion message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationState holds per-marketplace-chat state. It is created
// lazily on first access and lives inside the settings document under
// the chat id.
type ConversationState struct {
	LastAutoReply string    `json:"last_auto_reply"`
	LastTS        float64   `json:"last_ts"`
	LotID         string    `json:"lot_id"`
	History       []Message `json:"history"`
}

// Settings is the single durable configuration record. The JSON layout
// is the on-disk document format and must stay stable.
type Settings struct {
	PluginEnabled bool                          `json:"plugin_enabled"`
	Mode          Mode                          `json:"mode"`
	CooldownSec   float64                       `json:"cooldown_sec"`
	CmdMain       string                        `json:"cmd_main"`
	CmdNext       string                        `json:"cmd_next"`
	APIKey        string                        `json:"api_key"`
	ChatState     map[string]*ConversationState `json:"chat_state"`
}

// Listing is the marketplace item card whose metadata seeds the
// system prompt.
type Listing struct {
	ID          string
	Title       string
	Description string
	Price       string
}

// InboundMessage is a buyer message delivered by the marketplace
// poller.
type InboundMessage struct {
	ChatID string
	Text   string
}
