package ws

import (
	"context"
	"errors"
	"log"
	"sync"

	"staychat/internal/protocol"
	"staychat/internal/telemetry"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
}

type messageHub interface {
	Join(userID string) chan protocol.Envelope
	Leave(userID string, ch chan protocol.Envelope)
	Dispatch(userID string, env protocol.Envelope)
}

type Connection struct {
	ws         wsConnection
	hub        messageHub
	userID     string
	fromClient chan protocol.Envelope
	fromServer chan protocol.Envelope
	errorCh    chan error
}

func NewConnection(
	hub messageHub,
	ws wsConnection,
	userID string,
) *Connection {
	return &Connection{
		ws:         ws,
		hub:        hub,
		userID:     userID,
		fromClient: make(chan protocol.Envelope),
		fromServer: hub.Join(userID),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		// Identified by our own channel so a replacement session
		// registered for the same user is left alone.
		c.hub.Leave(c.userID, c.fromServer)
	}()

	var wg sync.WaitGroup
	wg.Go(func() {
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	})

	wg.Go(func() {
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	})

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}

		env, err := protocol.Decode(data)
		if err != nil {
			// Malformed payloads are dropped per message, never fatal.
			log.Printf("dropping malformed envelope from %s: %v", c.userID, err)
			telemetry.EnvelopesDropped.Inc()
			continue
		}

		select {
		case c.fromClient <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case env := <-c.fromClient:
			c.hub.Dispatch(c.userID, env)
		case env, ok := <-c.fromServer:
			if !ok {
				// The hub closed our channel: a newer socket for the
				// same session took over.
				return errors.New("session superseded by a newer connection")
			}
			if err := c.ws.WriteJSON(env); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
