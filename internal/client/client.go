// Package client implements the embeddable support-chat session: a
// durable state store, a self-healing socket connection and a facade
// that ties them to the backend API.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"staychat/internal/models"
	"staychat/internal/protocol"
)

const (
	defaultHistoryLimit = 50
	defaultAdminSender  = "support"
)

type transport interface {
	Run(ctx context.Context)
	Send(env protocol.Envelope)
	State() State
}

type durableAPI interface {
	FetchHistory(ctx context.Context, limit int) ([]models.Message, error)
	FetchAgents(ctx context.Context) ([]models.SupportAgent, error)
	PersistMessage(ctx context.Context, msg models.Message) (models.Message, error)
	PersistReadReceipt(ctx context.Context) error
}

type Config struct {
	UserID    string
	SocketURL string
	Durable   durableAPI

	// HistoryLimit caps the hydration page; zero takes the default.
	HistoryLimit int

	// AdminSender is the identity used when sending on behalf of the
	// support side; empty takes the default.
	AdminSender string

	// Notify surfaces transient user-facing errors (failed persists).
	Notify func(text string)

	// OnTyping reports typing indicator changes per thread.
	OnTyping func(threadID string, isTyping bool)

	// Dial overrides the socket dialer, mainly for tests.
	Dial Dialer
}

// Client is the chat facade the host application talks to. All state
// reads go through the Store; all sends fan out to both the socket and
// the durable API.
type Client struct {
	cfg   Config
	store *Store
	conn  transport

	mu      sync.Mutex
	visible bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func New(cfg Config) (*Client, error) {
	if cfg.UserID == "" {
		return nil, errors.New("user id is required")
	}
	if cfg.Durable == nil {
		return nil, errors.New("durable api is required")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.AdminSender == "" {
		cfg.AdminSender = defaultAdminSender
	}

	c := &Client{cfg: cfg, store: NewStore(cfg.UserID)}
	c.conn = NewConn(ConnConfig{
		URL:        cfg.SocketURL,
		UserID:     cfg.UserID,
		Dial:       cfg.Dial,
		OnEnvelope: c.dispatch,
	})
	return c, nil
}

// Start hydrates the store from the durable API and brings up the
// socket. History and roster are fetched in parallel; either failing
// fails the session start.
func (c *Client) Start(ctx context.Context) error {
	var (
		history []models.Message
		agents  []models.SupportAgent
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		history, err = c.cfg.Durable.FetchHistory(gctx, c.cfg.HistoryLimit)
		return err
	})
	g.Go(func() error {
		var err error
		agents, err = c.cfg.Durable.FetchAgents(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("session hydrate: %w", err)
	}
	c.store.Hydrate(history, agents)

	runCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.conn.Run(runCtx)
	}()
	return nil
}

// Close tears down the socket and waits for the connection loop.
func (c *Client) Close() {
	c.mu.Lock()
	cancel := c.cancel
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	c.wg.Wait()
}

// dispatch routes a decoded socket envelope into the store. Unknown
// types are ignored.
func (c *Client) dispatch(env protocol.Envelope) {
	switch env.Type {
	case protocol.TypeMessage:
		msg := env.Message()
		if msg.ID == "" {
			msg.ID = uuid.NewString()
		}
		if msg.Timestamp == 0 {
			msg.Timestamp = time.Now().Unix()
		}
		c.store.ApplyIncomingMessage(msg)
	case protocol.TypePresence:
		id := env.UserID
		if id == "" {
			id = env.SenderID
		}
		status := env.Status
		if status == "" {
			status = models.AgentStatus(env.Content)
		}
		c.store.ApplyPresence(id, status)
	case protocol.TypeRead:
		c.store.ApplyReadReceipt(env.ThreadID)
	case protocol.TypeTyping:
		if c.cfg.OnTyping != nil {
			c.cfg.OnTyping(env.ThreadID, env.IsTyping)
		}
	}
}

// SendMessage performs the dual-path send: the message is applied to
// local state immediately, broadcast over the socket when it is open,
// and always written to the durable API. A failed durable write keeps
// the optimistic local state and surfaces a notification instead of
// rolling back.
func (c *Client) SendMessage(ctx context.Context, text, receiverID, threadID string, asAdmin bool) error {
	if text == "" || receiverID == "" {
		return errors.New("content and receiver are required")
	}

	senderID := c.cfg.UserID
	if asAdmin {
		senderID = c.cfg.AdminSender
	}
	msg := models.Message{
		ID:         uuid.NewString(),
		Content:    text,
		SenderID:   senderID,
		ReceiverID: receiverID,
		ThreadID:   threadID,
		Timestamp:  time.Now().Unix(),
	}

	c.store.ApplyIncomingMessage(msg)
	c.conn.Send(protocol.NewMessage(msg))

	if _, err := c.cfg.Durable.PersistMessage(ctx, msg); err != nil {
		log.Printf("failed to persist message %s: %v", msg.ID, err)
		c.notify("Your message could not be saved. Please try again.")
	}
	return nil
}

// SetTyping broadcasts a typing indicator for the thread. Fire and
// forget; dropped when the socket is down.
func (c *Client) SetTyping(threadID string, isTyping bool) {
	if threadID == "" {
		return
	}
	c.conn.Send(protocol.NewTyping(c.cfg.UserID, threadID, isTyping))
}

// OpenPanel marks the chat surface visible and clears the unread state.
func (c *Client) OpenPanel(ctx context.Context) {
	c.mu.Lock()
	c.visible = true
	c.mu.Unlock()
	c.markAllRead(ctx)
}

// ClosePanel marks the chat surface hidden.
func (c *Client) ClosePanel() {
	c.mu.Lock()
	c.visible = false
	c.mu.Unlock()
}

// TogglePanel flips visibility, clearing unread state when the panel
// becomes visible.
func (c *Client) TogglePanel(ctx context.Context) {
	c.mu.Lock()
	c.visible = !c.visible
	visible := c.visible
	c.mu.Unlock()
	if visible {
		c.markAllRead(ctx)
	}
}

func (c *Client) Visible() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.visible
}

// markAllRead clears unread state locally first, then syncs the receipt
// durably. The receipt always goes out: local state only holds the
// hydrated page, so the backend may have older unread messages the
// client cannot see. Like sends, the local mutation is not rolled back
// on failure.
func (c *Client) markAllRead(ctx context.Context) {
	c.store.MarkAllRead()
	if err := c.cfg.Durable.PersistReadReceipt(ctx); err != nil {
		log.Printf("failed to persist read receipt: %v", err)
		c.notify("Read state could not be synced.")
	}
}

func (c *Client) notify(text string) {
	if c.cfg.Notify != nil {
		c.cfg.Notify(text)
	}
}

// Messages returns the current message list.
func (c *Client) Messages() []models.Message { return c.store.Messages() }

// Agents returns the roster with the latest presence applied.
func (c *Client) Agents() []models.SupportAgent { return c.store.Agents() }

// Unread returns the unread counter.
func (c *Client) Unread() int { return c.store.Unread() }

// State reports the socket lifecycle phase.
func (c *Client) State() State { return c.conn.State() }
