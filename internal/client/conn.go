package client

import (
	"context"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"staychat/internal/protocol"
)

// State is the connection lifecycle phase. Sends are only honored in
// StateOpen; everything else silently drops them.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
	StateReconnecting State = "reconnecting"
	StateClosed       State = "closed"
)

const (
	defaultBaseDelay = 500 * time.Millisecond
	defaultMaxDelay  = 30 * time.Second
)

type socketConn interface {
	ReadMessage() (int, []byte, error)
	WriteJSON(v interface{}) error
	Close() error
}

// Dialer opens a socket to the chat endpoint. Tests swap this out.
type Dialer func(ctx context.Context, url string) (socketConn, error)

func defaultDial(ctx context.Context, url string) (socketConn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

type ConnConfig struct {
	URL        string
	UserID     string
	Dial       Dialer
	OnEnvelope func(protocol.Envelope)

	// Reconnect backoff bounds; zero values take the defaults.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Conn owns the websocket for one session. Run dials, reads, and
// redials with bounded exponential backoff until the context is done.
// The socket handle never leaves this struct; callers interact through
// Send and State only.
type Conn struct {
	cfg ConnConfig

	mu    sync.Mutex
	state State
	ws    socketConn
}

func NewConn(cfg ConnConfig) *Conn {
	if cfg.Dial == nil {
		cfg.Dial = defaultDial
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = defaultBaseDelay
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = defaultMaxDelay
	}
	return &Conn{cfg: cfg, state: StateIdle}
}

// Run drives the connection until ctx is canceled. Every successful
// dial re-announces liveness before reading, so the server sees the
// session as online again after each reconnect.
func (c *Conn) Run(ctx context.Context) {
	attempt := 0
	for {
		c.setState(StateConnecting, nil)

		ws, err := c.cfg.Dial(ctx, c.cfg.URL)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			delay := c.nextDelay(attempt)
			attempt++
			log.Printf("chat socket dial failed: %v; retrying in %v", err, delay.Round(time.Millisecond))
			c.setState(StateReconnecting, nil)
			if !sleep(ctx, delay) {
				break
			}
			continue
		}

		attempt = 0
		c.setState(StateOpen, ws)
		c.Send(protocol.NewPresenceOnline(c.cfg.UserID))

		done := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				_ = ws.Close()
			case <-done:
			}
		}()

		err = c.readLoop(ws)
		close(done)
		_ = ws.Close()

		if ctx.Err() != nil {
			break
		}
		delay := c.nextDelay(attempt)
		attempt++
		log.Printf("chat socket closed: %v; reconnecting in %v", err, delay.Round(time.Millisecond))
		c.setState(StateReconnecting, nil)
		if !sleep(ctx, delay) {
			break
		}
	}
	c.setState(StateClosed, nil)
}

func (c *Conn) readLoop(ws socketConn) error {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return err
		}
		env, err := protocol.Decode(data)
		if err != nil {
			log.Printf("dropping envelope: %v", err)
			continue
		}
		if c.cfg.OnEnvelope != nil {
			c.cfg.OnEnvelope(env)
		}
	}
}

// Send writes an envelope if the socket is open and does nothing
// otherwise. Write errors are logged, not returned: the read loop sees
// the broken socket and triggers the reconnect.
func (c *Conn) Send(env protocol.Envelope) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpen || c.ws == nil {
		return
	}
	if err := c.ws.WriteJSON(env); err != nil {
		log.Printf("chat socket write failed: %v", err)
	}
}

func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Conn) setState(state State, ws socketConn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = state
	c.ws = ws
}

// nextDelay doubles the base delay per attempt up to the cap, with
// ±10% jitter so a fleet of clients does not redial in lockstep.
func (c *Conn) nextDelay(attempt int) time.Duration {
	delay := float64(c.cfg.BaseDelay) * math.Pow(2, float64(attempt))
	max := float64(c.cfg.MaxDelay)
	if delay > max {
		delay = max
	}
	delay += (rand.Float64()*2 - 1) * 0.1 * delay
	return time.Duration(delay)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
