package transport

import (
	"sync"

	"github.com/gorilla/websocket"

	"massivegame/server/internal/logging"
)

// sendBufferSize bounds how many outbound frames can queue behind a slow
// client before Send starts shedding that client entirely.
const sendBufferSize = 256

// Conn is the websocket-backed Sender this package hands the core. It owns
// nothing beyond the socket and its outbound queue; message framing and
// game semantics live entirely in the caller.
type Conn struct {
	id   string
	conn *websocket.Conn
	log  *logging.Logger
	send chan []byte

	closeOnce sync.Once
	closed    chan struct{}
}

func newConn(id string, wsConn *websocket.Conn, log *logging.Logger) *Conn {
	return &Conn{
		id:     id,
		conn:   wsConn,
		log:    log,
		send:   make(chan []byte, sendBufferSize),
		closed: make(chan struct{}),
	}
}

// ID returns the peer identifier this connection was opened under.
func (c *Conn) ID() string { return c.id }

// Send queues payload for delivery. It is always non-blocking: a full
// outbound queue means the peer cannot keep up, so the connection is torn
// down rather than letting one slow client stall the broadcast stage.
func (c *Conn) Send(payload []byte) error {
	if c == nil || len(payload) == 0 {
		return nil
	}
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		c.close()
		return ErrClosed
	}
}

// IsOpen reports whether the connection is still accepting sends.
func (c *Conn) IsOpen() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *Conn) close() {
	c.closeOnce.Do(func() {
		close(c.closed)
		_ = c.conn.Close()
	})
}

var _ Sender = (*Conn)(nil)
