package tonkcore

import (
	"context"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/tonk-labs/tonk-sub000/crdt"
)

// ConnState is a connection's lifecycle stage, observable via Connection.State.
type ConnState int

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateOpen
	StateConnected
	StateFailed
)

func (s ConnState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection is a handle to a single outgoing sync channel. It keeps running
// in a background goroutine until the server closes it, Disconnect is
// called, or the process exits; dropping the handle does not close it.
type Connection struct {
	mu      sync.RWMutex
	state   ConnState
	lastErr error

	conn     *websocket.Conn
	cancel   context.CancelFunc
	finished chan crdt.FinishReason
}

func (c *Connection) setState(s ConnState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Connection) setErr(err error) {
	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

// State returns the connection's current lifecycle stage.
func (c *Connection) State() ConnState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// IsConnected reports whether the sync channel is actively exchanging frames.
func (c *Connection) IsConnected() bool {
	return c.State() == StateConnected
}

// Err returns the error that moved the connection into StateFailed, if any.
func (c *Connection) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastErr
}

// Disconnect cancels the background sync goroutine and closes the socket.
// Safe to call more than once.
func (c *Connection) Disconnect() error {
	c.cancel()
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil {
		return nil
	}
	return conn.Close()
}

// Finished signals once, with the reason the sync goroutine stopped.
func (c *Connection) Finished() <-chan crdt.FinishReason {
	return c.finished
}

// ConnectWebSocket dials url and opens an outgoing sync channel over it,
// running the repo's frame-sync protocol on a background goroutine until the
// server closes the connection, the handle is disconnected, or ctx's parent
// process exits.
func (c *TonkCore) ConnectWebSocket(ctx context.Context, url string) (*Connection, error) {
	connCtx, cancel := context.WithCancel(ctx)
	conn := &Connection{
		state:    StateConnecting,
		cancel:   cancel,
		finished: make(chan crdt.FinishReason, 1),
	}

	wsConn, _, err := websocket.DefaultDialer.DialContext(connCtx, url, nil)
	if err != nil {
		cancel()
		conn.setState(StateFailed)
		conn.setErr(err)
		return nil, fmt.Errorf("tonkcore: dial websocket relay: %w", err)
	}
	conn.conn = wsConn
	conn.setState(StateOpen)

	rwc := &wsFrameStream{conn: wsConn}

	go func() {
		conn.setState(StateConnected)
		reason, err := c.repo.Connect(connCtx, rwc, crdt.DirectionOutgoing)
		if err != nil && reason != crdt.FinishReasonCancelled {
			log.WithError(err).Warn("sync connection ended with error")
			conn.setErr(err)
			conn.setState(StateFailed)
		} else {
			conn.setState(StateDisconnected)
		}
		cancel()
		conn.finished <- reason
		close(conn.finished)
	}()

	return conn, nil
}

// wsFrameStream adapts a *websocket.Conn's message boundaries into a
// continuous io.ReadWriteCloser byte stream: each Write becomes one binary
// message, and Read drains messages into an internal buffer so callers doing
// io.ReadFull-style partial reads (as crdt's frame codec does) see a plain
// stream regardless of how writes were chunked on the other side.
type wsFrameStream struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	readBuf []byte
}

func (s *wsFrameStream) Read(p []byte) (int, error) {
	for len(s.readBuf) == 0 {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			return 0, err
		}
		s.readBuf = data
	}
	n := copy(p, s.readBuf)
	s.readBuf = s.readBuf[n:]
	return n, nil
}

func (s *wsFrameStream) Write(p []byte) (int, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsFrameStream) Close() error {
	return s.conn.Close()
}
