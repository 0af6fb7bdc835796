// Package ai talks to the OpenAI-compatible chat-completions endpoint
// that answers buyer questions.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/sirupsen/logrus"
)

// ErrorKind classifies a failed model call. Buyers only ever see one
// fallback message; the kind keeps the operator's logs diagnosable.
type ErrorKind string

const (
	KindConfig    ErrorKind = "config"    // no API key available
	KindTransport ErrorKind = "transport" // network failure or timeout
	KindStatus    ErrorKind = "status"    // HTTP status >= 400
	KindPayload   ErrorKind = "payload"   // unparsable body or missing fields
	KindEmpty     ErrorKind = "empty"     // well-formed response with no answer text
)

// Error is the uniform failure class for model calls.
type Error struct {
	Kind   ErrorKind
	Detail string
}

func (e *Error) Error() string {
	return fmt.Sprintf("model call failed (%s): %s", e.Kind, e.Detail)
}

// Service asks the model a question about a listing.
type Service interface {
	Ask(ctx context.Context, apiKey, question string, listing *models.Listing, hist []models.Message) (string, error)
}

// Client implements Service against a single chat-completions
// endpoint. There is no retry: every failure is terminal for the
// trigger that caused it.
type Client struct {
	baseURL     string
	model       string
	temperature float64
	prompt      string
	httpClient  *http.Client
	logger      *logrus.Logger
}

const defaultSystemPrompt = "You are the seller's assistant on a marketplace. Answer briefly and to the point. " +
	"Use only the information from the listing card (title, description, price). " +
	"If the card does not contain the answer, say so honestly and ask the buyer to clarify."

const unknownField = "[unknown]"

func NewClient(cfg *config.ModelConfig, systemPrompt string, logger *logrus.Logger) *Client {
	prompt := strings.TrimSpace(systemPrompt)
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		prompt:      prompt,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Ask builds the system prompt from the listing card, appends prior
// turns and the new question, and performs one chat-completions call.
func (c *Client) Ask(ctx context.Context, apiKey, question string, listing *models.Listing, hist []models.Message) (string, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return "", &Error{Kind: KindConfig, Detail: "API key not set"}
	}

	messages := make([]models.Message, 0, len(hist)+2)
	messages = append(messages, models.Message{
		Role:    models.RoleSystem,
		Content: c.systemPrompt(listing),
	})
	for _, msg := range hist {
		role := strings.TrimSpace(msg.Role)
		content := strings.TrimSpace(msg.Content)
		if (role == models.RoleUser || role == models.RoleAssistant) && content != "" {
			messages = append(messages, models.Message{Role: role, Content: content})
		}
	}
	messages = append(messages, models.Message{
		Role:    models.RoleUser,
		Content: strings.TrimSpace(question),
	})

	reqBody := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": c.temperature,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", &Error{Kind: KindPayload, Detail: fmt.Sprintf("marshal request: %v", err)}
	}

	url := c.baseURL + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", &Error{Kind: KindTransport, Detail: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	c.logger.WithFields(logrus.Fields{
		"model":    c.model,
		"messages": len(messages),
	}).Debug("Sending model request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", &Error{Kind: KindTransport, Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &Error{Kind: KindTransport, Detail: fmt.Sprintf("read response: %v", err)}
	}

	if resp.StatusCode >= 400 {
		return "", &Error{
			Kind:   KindStatus,
			Detail: fmt.Sprintf("http %d: %s", resp.StatusCode, snippet(string(body), 400)),
		}
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", &Error{Kind: KindPayload, Detail: fmt.Sprintf("bad json response: %s", snippet(string(body), 300))}
	}

	if len(result.Choices) == 0 {
		return "", &Error{Kind: KindPayload, Detail: fmt.Sprintf("unexpected response format: %s", snippet(string(body), 300))}
	}

	answer := strings.TrimSpace(result.Choices[0].Message.Content)
	if answer == "" {
		return "", &Error{Kind: KindEmpty, Detail: "empty answer"}
	}
	return answer, nil
}

func (c *Client) systemPrompt(listing *models.Listing) string {
	return fmt.Sprintf("%s\n\nLISTING CARD:\nTitle: %s\nDescription: %s\nPrice: %s\n",
		c.prompt,
		orUnknown(listing.Title),
		orUnknown(listing.Description),
		orUnknown(listing.Price),
	)
}

func orUnknown(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return unknownField
	}
	return s
}

func snippet(s string, n int) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), "\n", " ")
	if len(s) > n {
		return s[:n]
	}
	return s
}
