package client

import (
	"context"
	"errors"
	"sync"
	"testing"

	"staychat/internal/models"
	"staychat/internal/protocol"
)

type fakeTransport struct {
	mu    sync.Mutex
	state State
	sent  []protocol.Envelope
}

func (f *fakeTransport) Run(ctx context.Context) { <-ctx.Done() }

func (f *fakeTransport) Send(env protocol.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.state != StateOpen {
		return
	}
	f.sent = append(f.sent, env)
}

func (f *fakeTransport) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakeTransport) setState(s State) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = s
}

func (f *fakeTransport) sentEnvelopes() []protocol.Envelope {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]protocol.Envelope, len(f.sent))
	copy(out, f.sent)
	return out
}

type fakeDurable struct {
	mu         sync.Mutex
	history    []models.Message
	agents     []models.SupportAgent
	persisted  []models.Message
	receipts   int
	persistErr error
	receiptErr error
	fetchErr   error
}

func (f *fakeDurable) FetchHistory(ctx context.Context, limit int) ([]models.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.history, nil
}

func (f *fakeDurable) FetchAgents(ctx context.Context) ([]models.SupportAgent, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.agents, nil
}

func (f *fakeDurable) PersistMessage(ctx context.Context, msg models.Message) (models.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.persistErr != nil {
		return models.Message{}, f.persistErr
	}
	f.persisted = append(f.persisted, msg)
	return msg, nil
}

func (f *fakeDurable) PersistReadReceipt(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receiptErr != nil {
		return f.receiptErr
	}
	f.receipts++
	return nil
}

func (f *fakeDurable) persistedMessages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.Message, len(f.persisted))
	copy(out, f.persisted)
	return out
}

func newTestClient(t *testing.T, durable *fakeDurable) (*Client, *fakeTransport) {
	t.Helper()
	c, err := New(Config{UserID: "guest-1", Durable: durable})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}
	transport := &fakeTransport{state: StateOpen}
	c.conn = transport
	return c, transport
}

func TestClientStartHydrates(t *testing.T) {
	durable := &fakeDurable{
		history: []models.Message{
			{ID: "m1", SenderID: "agent-1", ReceiverID: "guest-1", Content: "welcome"},
		},
		agents: []models.SupportAgent{
			{ID: "agent-1", Name: "Anna"},
		},
	}
	c, _ := newTestClient(t, durable)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer c.Close()

	if got := len(c.Messages()); got != 1 {
		t.Errorf("expected 1 hydrated message, got %d", got)
	}
	if got := len(c.Agents()); got != 1 {
		t.Errorf("expected 1 hydrated agent, got %d", got)
	}
	if got := c.Unread(); got != 1 {
		t.Errorf("expected 1 unread after hydration, got %d", got)
	}
}

func TestClientStartFailsWhenHydrationFails(t *testing.T) {
	durable := &fakeDurable{fetchErr: errors.New("backend down")}
	c, _ := newTestClient(t, durable)

	if err := c.Start(context.Background()); err == nil {
		t.Fatal("expected start to fail when hydration fails")
	}
}

func TestClientSendOpenSocket(t *testing.T) {
	durable := &fakeDurable{}
	c, transport := newTestClient(t, durable)

	if err := c.SendMessage(context.Background(), "hello", "agent-1", "", false); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	sent := transport.sentEnvelopes()
	if len(sent) != 1 {
		t.Fatalf("expected exactly 1 socket envelope, got %d", len(sent))
	}
	persisted := durable.persistedMessages()
	if len(persisted) != 1 {
		t.Fatalf("expected exactly 1 durable persist, got %d", len(persisted))
	}
	// Both paths carry the same client-generated id so receivers dedup.
	if sent[0].ID == "" || sent[0].ID != persisted[0].ID {
		t.Errorf("socket id %q and durable id %q must match", sent[0].ID, persisted[0].ID)
	}
	if sent[0].ThreadID != "agent-1" {
		t.Errorf("expected thread fallback to receiver, got %q", sent[0].ThreadID)
	}

	msgs := c.Messages()
	if len(msgs) != 1 || msgs[0].Content != "hello" {
		t.Errorf("expected optimistic local message, got %+v", msgs)
	}
}

func TestClientSendClosedSocket(t *testing.T) {
	durable := &fakeDurable{}
	c, transport := newTestClient(t, durable)
	transport.setState(StateReconnecting)

	if err := c.SendMessage(context.Background(), "hello", "agent-1", "", false); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if got := len(transport.sentEnvelopes()); got != 0 {
		t.Errorf("expected no socket envelopes while reconnecting, got %d", got)
	}
	// The durable path still runs.
	if got := len(durable.persistedMessages()); got != 1 {
		t.Errorf("expected 1 durable persist, got %d", got)
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("expected optimistic local message, got %d", got)
	}
}

func TestClientSendDurableFailureKeepsLocalState(t *testing.T) {
	durable := &fakeDurable{persistErr: errors.New("backend down")}
	c, _ := newTestClient(t, durable)

	var notices []string
	c.cfg.Notify = func(text string) { notices = append(notices, text) }

	if err := c.SendMessage(context.Background(), "hello", "agent-1", "", false); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	if len(notices) != 1 {
		t.Errorf("expected 1 notification on persist failure, got %d", len(notices))
	}
	if got := len(c.Messages()); got != 1 {
		t.Errorf("local message must survive the failed persist, got %d", got)
	}
}

func TestClientSendAsAdmin(t *testing.T) {
	durable := &fakeDurable{}
	c, transport := newTestClient(t, durable)

	if err := c.SendMessage(context.Background(), "hello", "guest-2", "", true); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	sent := transport.sentEnvelopes()
	if len(sent) != 1 || sent[0].SenderID != "support" {
		t.Errorf("expected support sender identity, got %+v", sent)
	}
}

func TestClientSendValidation(t *testing.T) {
	c, _ := newTestClient(t, &fakeDurable{})

	if err := c.SendMessage(context.Background(), "", "agent-1", "", false); err == nil {
		t.Error("expected error for empty content")
	}
	if err := c.SendMessage(context.Background(), "hi", "", "", false); err == nil {
		t.Error("expected error for empty receiver")
	}
}

func TestClientPanelVisibilityClearsUnread(t *testing.T) {
	durable := &fakeDurable{
		history: []models.Message{
			{ID: "m1", SenderID: "agent-1", ReceiverID: "guest-1", Content: "hello"},
		},
	}
	c, _ := newTestClient(t, durable)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer c.Close()

	if c.Unread() != 1 {
		t.Fatalf("expected 1 unread before opening, got %d", c.Unread())
	}

	c.OpenPanel(context.Background())
	if !c.Visible() {
		t.Error("panel should be visible after open")
	}
	if c.Unread() != 0 {
		t.Errorf("expected 0 unread after open, got %d", c.Unread())
	}
	durable.mu.Lock()
	receipts := durable.receipts
	durable.mu.Unlock()
	if receipts != 1 {
		t.Errorf("expected 1 durable receipt, got %d", receipts)
	}

	// Every transition to visible syncs a receipt, even with nothing
	// unread locally: the backend may hold unread messages older than
	// the hydrated page.
	c.ClosePanel()
	c.TogglePanel(context.Background())
	durable.mu.Lock()
	receipts = durable.receipts
	durable.mu.Unlock()
	if receipts != 2 {
		t.Errorf("expected a receipt on each visible transition, got %d", receipts)
	}
}

func TestClientReceiptFailureKeepsLocalState(t *testing.T) {
	durable := &fakeDurable{
		history: []models.Message{
			{ID: "m1", SenderID: "agent-1", ReceiverID: "guest-1", Content: "hello"},
		},
		receiptErr: errors.New("backend down"),
	}
	c, _ := newTestClient(t, durable)

	var notices []string
	c.cfg.Notify = func(text string) { notices = append(notices, text) }

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer c.Close()

	c.OpenPanel(context.Background())
	if c.Unread() != 0 {
		t.Errorf("local unread state must clear even on failed sync, got %d", c.Unread())
	}
	if len(notices) != 1 {
		t.Errorf("expected 1 notification on receipt failure, got %d", len(notices))
	}
}

func TestClientDispatch(t *testing.T) {
	durable := &fakeDurable{
		agents: []models.SupportAgent{
			{ID: "agent-1", Name: "Anna", Status: models.AgentStatusOffline},
		},
	}
	c, _ := newTestClient(t, durable)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	defer c.Close()

	var typingEvents []string
	c.cfg.OnTyping = func(threadID string, isTyping bool) {
		typingEvents = append(typingEvents, threadID)
	}

	c.dispatch(protocol.Envelope{
		Type: protocol.TypeMessage, ID: "m1", Content: "hi",
		SenderID: "agent-1", ReceiverID: "guest-1",
	})
	// Echo of the same id does not duplicate.
	c.dispatch(protocol.Envelope{
		Type: protocol.TypeMessage, ID: "m1", Content: "hi",
		SenderID: "agent-1", ReceiverID: "guest-1",
	})
	if got := len(c.Messages()); got != 1 {
		t.Errorf("expected 1 message after duplicate dispatch, got %d", got)
	}

	c.dispatch(protocol.Envelope{
		Type: protocol.TypePresence, UserID: "agent-1", Status: models.AgentStatusAway,
	})
	if got := c.Agents()[0].Status; got != models.AgentStatusAway {
		t.Errorf("expected away status, got %s", got)
	}

	// Connect-out presence shape (senderId + content) works too.
	c.dispatch(protocol.Envelope{
		Type: protocol.TypePresence, SenderID: "agent-1", Content: "online",
	})
	if got := c.Agents()[0].Status; got != models.AgentStatusOnline {
		t.Errorf("expected online status, got %s", got)
	}

	c.dispatch(protocol.Envelope{Type: protocol.TypeTyping, ThreadID: "t1", IsTyping: true})
	if len(typingEvents) != 1 || typingEvents[0] != "t1" {
		t.Errorf("unexpected typing events: %v", typingEvents)
	}

	// Unknown envelope types are ignored without side effects.
	c.dispatch(protocol.Envelope{Type: "reaction", Content: "👍"})
	if got := len(c.Messages()); got != 1 {
		t.Errorf("unknown type must not mutate state, got %d messages", got)
	}
}
