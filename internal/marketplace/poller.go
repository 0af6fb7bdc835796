package marketplace

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/mp-gpt-consultant-go/internal/models"
	"github.com/sirupsen/logrus"
)

// Poller long-polls the marketplace for new buyer messages and feeds
// them to the dispatcher. A failed poll is logged and retried on the
// next tick; the cursor only advances on success.
type Poller struct {
	baseURL    string
	token      string
	interval   time.Duration
	httpClient *http.Client
	logger     *logrus.Logger
	cursor     string
}

func NewPoller(cfg *config.MarketplaceConfig, logger *logrus.Logger) *Poller {
	return &Poller{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		token:    cfg.Token,
		interval: cfg.PollInterval,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

type updatesResponse struct {
	Cursor   string `json:"cursor"`
	Messages []struct {
		ChatID string `json:"chat_id"`
		Text   string `json:"text"`
	} `json:"messages"`
}

// Run polls until the context is cancelled, sending inbound messages
// on the returned channel. The channel is closed on shutdown.
func (p *Poller) Run(ctx context.Context) <-chan models.InboundMessage {
	out := make(chan models.InboundMessage)

	go func() {
		defer close(out)
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.poll(ctx, out)
			}
		}
	}()

	return out
}

func (p *Poller) poll(ctx context.Context, out chan<- models.InboundMessage) {
	endpoint := p.baseURL + "/messages/updates"
	if p.cursor != "" {
		endpoint += "?cursor=" + url.QueryEscape(p.cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		p.logger.WithError(err).Error("Failed to build poll request")
		return
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.token)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.logger.WithError(err).Warn("Marketplace poll failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		p.logger.WithField("status", resp.StatusCode).Warn("Marketplace poll rejected")
		return
	}

	var updates updatesResponse
	if err := json.NewDecoder(resp.Body).Decode(&updates); err != nil {
		p.logger.WithError(err).Warn("Marketplace poll returned bad payload")
		return
	}

	for _, msg := range updates.Messages {
		if msg.ChatID == "" || strings.TrimSpace(msg.Text) == "" {
			continue
		}
		select {
		case out <- models.InboundMessage{ChatID: msg.ChatID, Text: msg.Text}:
		case <-ctx.Done():
			return
		}
	}
	if updates.Cursor != "" {
		p.cursor = updates.Cursor
	}
}
