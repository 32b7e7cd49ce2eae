// Package durable is the chat client's boundary to the backend's
// request/response API. It is fully independent of the socket: history
// and roster hydration, message persistence and read receipts all go
// through here even when the socket is down.
package durable

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"staychat/internal/models"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{},
	}
}

// FetchHistory returns the user's message page, oldest first.
func (c *Client) FetchHistory(ctx context.Context, limit int) ([]models.Message, error) {
	var page struct {
		Messages []models.Message `json:"messages"`
	}
	path := fmt.Sprintf("/api/messages?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
		return nil, fmt.Errorf("fetch history: %w", err)
	}
	return page.Messages, nil
}

// FetchAgents returns the full support agent roster snapshot.
func (c *Client) FetchAgents(ctx context.Context) ([]models.SupportAgent, error) {
	var agents []models.SupportAgent
	if err := c.do(ctx, http.MethodGet, "/api/agents", nil, &agents); err != nil {
		return nil, fmt.Errorf("fetch agents: %w", err)
	}
	return agents, nil
}

// PersistMessage writes the outgoing message durably. This runs for
// every send, in addition to the transient socket broadcast: the socket
// gives low-latency fan-out, this call makes the message survive
// reconnects and history reloads.
func (c *Client) PersistMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	req := struct {
		ID         string `json:"id,omitempty"`
		Content    string `json:"content"`
		ReceiverID string `json:"receiverId"`
		SenderID   string `json:"senderId,omitempty"`
		ThreadID   string `json:"threadId,omitempty"`
		Type       string `json:"type,omitempty"`
	}{
		ID:         msg.ID,
		Content:    msg.Content,
		ReceiverID: msg.ReceiverID,
		SenderID:   msg.SenderID,
		ThreadID:   msg.ThreadID,
		Type:       msg.Type,
	}

	var persisted models.Message
	if err := c.do(ctx, http.MethodPost, "/api/messages", req, &persisted); err != nil {
		return models.Message{}, fmt.Errorf("persist message: %w", err)
	}
	return persisted, nil
}

// PersistReadReceipt marks all of the user's unread messages read on
// the backend.
func (c *Client) PersistReadReceipt(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "/api/read", nil, nil); err != nil {
		return fmt.Errorf("persist read receipt: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("token", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
