// Package marketplace wraps the marketplace account API: resolving
// the listing a buyer is looking at and sending chat messages. It is
// a thin I/O layer; all decision-making lives in the handlers.
package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Client is the collaborator consumed by the dispatch core.
type Client interface {
	// ActiveListing resolves the listing the buyer in chatID is
	// currently looking at, including its card metadata.
	ActiveListing(ctx context.Context, chatID string) (*models.Listing, error)
	// SendMessage posts text into the marketplace chat.
	SendMessage(ctx context.Context, chatID, text string) error
}

// HTTPClient implements Client against the marketplace REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *logrus.Logger
}

func NewHTTPClient(cfg *config.MarketplaceConfig, logger *logrus.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		token:   cfg.Token,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type chatInfo struct {
	LookingLink string `json:"looking_link"`
}

type lotFields struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
}

func (c *HTTPClient) ActiveListing(ctx context.Context, chatID string) (*models.Listing, error) {
	var chat chatInfo
	if err := c.getJSON(ctx, "/chats/"+url.PathEscape(chatID), &chat); err != nil {
		return nil, fmt.Errorf("get chat %s: %w", chatID, err)
	}

	lotID := lotIDFromLink(chat.LookingLink)
	if lotID == "" {
		return nil, fmt.Errorf("chat %s has no active listing", chatID)
	}

	var lot lotFields
	if err := c.getJSON(ctx, "/lots/"+url.PathEscape(lotID), &lot); err != nil {
		return nil, fmt.Errorf("get lot %s: %w", lotID, err)
	}

	return &models.Listing{
		ID:          lotID,
		Title:       lot.Title,
		Description: lot.Description,
		Price:       lot.Price,
	}, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chats/"+url.PathEscape(chatID)+"/messages", strings.NewReader(string(body)))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("send message to chat %s: http %d", chatID, resp.StatusCode)
	}
	return nil
}

func (c *HTTPClient) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("http %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// lotIDFromLink extracts the listing id from the chat's looking link
// (".../offer?id=123" style URLs).
func lotIDFromLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	idx := strings.LastIndex(link, "=")
	if idx < 0 || idx == len(link)-1 {
		return ""
	}
	return link[idx+1:]
}
