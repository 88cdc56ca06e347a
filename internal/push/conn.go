package push

import "sync"

const defaultConnBuffer = 64

// ChanConn adapts a buffered channel to the Conn interface. The transport
// handler drains Events() and writes frames; once the client goes away the
// handler calls Close and the next Broadcast prunes the connection.
type ChanConn struct {
	mu     sync.Mutex
	ch     chan Event
	closed bool
}

func NewChanConn(buffer int) *ChanConn {
	if buffer <= 0 {
		buffer = defaultConnBuffer
	}
	return &ChanConn{ch: make(chan Event, buffer)}
}

func (c *ChanConn) Send(evt Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.ch <- evt:
		return nil
	default:
		// A reader that stopped draining is indistinguishable from a dead
		// tab; report failure so the registry drops us.
		return ErrSlowConsumer
	}
}

func (c *ChanConn) Events() <-chan Event {
	return c.ch
}

func (c *ChanConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.ch)
}
