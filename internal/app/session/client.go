/*
Package session manages live duplex connections: one Client per WebSocket,
with a concurrent read loop and a buffered write loop per connection.

This file defines the Client struct. The read pump decodes one envelope,
hands it to the dispatcher, and only then reads the next frame, so handler
execution order matches envelope arrival order within a connection.
Different connections' pumps run concurrently and serialize through the
store and broker.
*/
package session

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"carshare/internal/app/protocol"
	"carshare/internal/app/store"
	"carshare/internal/pkg/logx"
)

const (
	// timeout duration for writing to the WebSocket connection.
	writeWait = 10 * time.Second

	// maximum time allowed for the server to wait for a Pong from the client.
	pongWait = 60 * time.Second

	// frequency at which the server sends a Ping message.
	pingPeriod = (pongWait * 9) / 10

	// maximum allowed size (in bytes) of an inbound envelope frame.
	maxMessageSize = 8192

	// outbound queue capacity per connection.
	sendQueueSize = 256

	// WsCloseCodeSessionKicked signals that the session was replaced by a
	// newer connection registered under the same client id.
	WsCloseCodeSessionKicked = 4001
)

// Dispatcher routes one decoded envelope to its handler. Implemented by the
// orchestrator.
type Dispatcher interface {
	Dispatch(ctx context.Context, conn store.Conn, env protocol.Envelope)
}

// Client represents one active WebSocket connection.
type Client struct {
	conn       *websocket.Conn
	dispatcher Dispatcher
	store      store.Store

	// send queues encoded envelopes for the write pump.
	send chan []byte

	// sendMu guards send against enqueue-after-close.
	sendMu sync.Mutex
	closed bool

	// lastSender is the client id observed on the most recent inbound
	// envelope; it identifies the registry binding to drop on disconnect.
	lastSender string

	logger zerolog.Logger
}

// NewClient wraps an upgraded WebSocket connection.
func NewClient(conn *websocket.Conn, dispatcher Dispatcher, st store.Store) *Client {
	return &Client{
		conn:       conn,
		dispatcher: dispatcher,
		store:      st,
		send:       make(chan []byte, sendQueueSize),
		logger:     logx.Logger().With().Str("component", "Client").Str("remote_addr", conn.RemoteAddr().String()).Logger(),
	}
}

// Enqueue queues an encoded envelope for delivery. It fails when the
// connection is closed or the outbound queue is full; callers treat that as
// a dead connection.
func (c *Client) Enqueue(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	select {
	case c.send <- data:
		return nil
	default:
		c.logger.Warn().Int("queue_len", len(c.send)).Msg("Client send queue full, dropping frame.")
		return ErrSendQueueFull
	}
}

// Kick closes the connection with a close frame carrying the reason. Used
// when a newer connection replaces this one.
func (c *Client) Kick(reason string) {
	c.logger.Warn().Int("close_code", WsCloseCodeSessionKicked).Str("reason", reason).Msg("Kicking connection.")

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(WsCloseCodeSessionKicked, reason)); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to write kick close frame.")
	}

	c.closeSend()
}

// closeSend marks the client closed and closes the send queue, terminating
// the write pump.
func (c *Client) closeSend() {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// ReadPump reads frames from the connection, decodes them, and dispatches
// one envelope at a time. It handles heartbeats (Pong) and performs cleanup
// when the connection closes.
func (c *Client) ReadPump(ctx context.Context) {
	defer c.cleanupOnDisconnect()

	c.conn.SetReadLimit(maxMessageSize)

	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Error().Err(err).Msg("Failed to set read deadline")
		return
	}

	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, frame, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Info().Err(err).Msg("Read loop ended (client close/going away)")
			}
			return
		}

		env, err := protocol.Decode(frame)
		if err != nil {
			// Malformed frames are rejected at the codec boundary and
			// never reach the dispatcher; the connection stays open.
			c.logger.Warn().Err(err).Msg("Client sent malformed envelope.")
			continue
		}

		c.lastSender = env.SenderID
		c.dispatcher.Dispatch(ctx, c, env)
	}
}

// cleanupOnDisconnect unbinds this connection from the registry (clearing
// any telematics link that pointed at it) and shuts the write pump down.
func (c *Client) cleanupOnDisconnect() {
	c.logger.Info().Str("client_id", c.lastSender).Msg("Connection cleanup starting.")

	if c.lastSender != "" {
		c.store.DropConnection(c.lastSender, c)
	}

	c.closeSend()

	if err := c.conn.Close(); err != nil {
		c.logger.Debug().Err(err).Msg("Connection close error")
	}
}

// WritePump writes queued frames to the connection and keeps the heartbeat
// alive. It terminates when the send queue closes or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("Connection close error in WritePump")
		}
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline")
				return
			}

			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.logger.Error().Err(err).Msg("Error writing frame")
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				c.logger.Error().Err(err).Msg("Failed to set write deadline on ping")
				return
			}

			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logger.Error().Err(err).Msg("Error writing ping")
				return
			}
		}
	}
}
