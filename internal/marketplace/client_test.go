package marketplace

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mp-gpt-consultant-go/internal/config"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHTTPClient(baseURL string) *HTTPClient {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return NewHTTPClient(&config.MarketplaceConfig{
		BaseURL: baseURL,
		Token:   "mp-token",
		Timeout: 5 * time.Second,
	}, log)
}

func TestActiveListing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer mp-token", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/chats/chat-1":
			io.WriteString(w, `{"looking_link":"https://market.example.com/lots/offer?id=4242"}`)
		case "/lots/4242":
			io.WriteString(w, `{"title":"Bike","description":"Red city bike","price":"200"}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	listing, err := testHTTPClient(server.URL).ActiveListing(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Equal(t, "4242", listing.ID)
	assert.Equal(t, "Bike", listing.Title)
	assert.Equal(t, "Red city bike", listing.Description)
	assert.Equal(t, "200", listing.Price)
}

func TestActiveListingWithoutLinkFails(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"looking_link":""}`)
	}))
	defer server.Close()

	_, err := testHTTPClient(server.URL).ActiveListing(context.Background(), "chat-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no active listing")
}

func TestSendMessage(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	err := testHTTPClient(server.URL).SendMessage(context.Background(), "chat-1", "hello buyer")
	require.NoError(t, err)
	assert.Equal(t, "/chats/chat-1/messages", gotPath)
	assert.Equal(t, "hello buyer", gotBody["text"])
}

func TestSendMessageRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	err := testHTTPClient(server.URL).SendMessage(context.Background(), "chat-1", "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}

func TestLotIDFromLink(t *testing.T) {
	assert.Equal(t, "123", lotIDFromLink("https://market.example.com/offer?id=123"))
	assert.Equal(t, "9", lotIDFromLink("x=9"))
	assert.Equal(t, "", lotIDFromLink(""))
	assert.Equal(t, "", lotIDFromLink("no-separator"))
	assert.Equal(t, "", lotIDFromLink("trailing="))
}

func TestPollerDeliversMessagesAndAdvancesCursor(t *testing.T) {
	var cursors []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursors = append(cursors, r.URL.Query().Get("cursor"))
		if len(cursors) == 1 {
			io.WriteString(w, `{"cursor":"c1","messages":[{"chat_id":"chat-1","text":"/qa hi"},{"chat_id":"","text":"dropped"}]}`)
			return
		}
		io.WriteString(w, `{"cursor":"c2","messages":[]}`)
	}))
	defer server.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	poller := NewPoller(&config.MarketplaceConfig{
		BaseURL:      server.URL,
		Token:        "mp-token",
		PollInterval: 10 * time.Millisecond,
		Timeout:      5 * time.Second,
	}, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inbound := poller.Run(ctx)

	select {
	case msg := <-inbound:
		assert.Equal(t, "chat-1", msg.ChatID)
		assert.Equal(t, "/qa hi", msg.Text)
	case <-time.After(2 * time.Second):
		t.Fatal("no message delivered")
	}

	// Wait for at least one follow-up poll, then verify the cursor moved.
	require.Eventually(t, func() bool {
		return len(cursors) >= 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	assert.Equal(t, "", cursors[0])
	assert.Equal(t, "c1", cursors[1])
}
