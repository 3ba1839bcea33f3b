package hub

import (
	"strings"
	"sync"
	"time"

	"FXPulse/internal/domain/models"

	"github.com/gorilla/websocket"
)

// Client is one websocket subscriber with its own bounded outbound queue
// and write worker, so a stalled client never delays ingest or its peers.
type Client struct {
	ID   string
	Kind string // "bot", "web", ...

	conn *websocket.Conn
	send chan models.ServerMessage
	done chan struct{}

	closeOnce sync.Once

	mu      sync.Mutex
	all     bool
	symbols map[string]struct{}
}

func newClient(id, kind string, conn *websocket.Conn, queueSize int) *Client {
	return &Client{
		ID:      id,
		Kind:    kind,
		conn:    conn,
		send:    make(chan models.ServerMessage, queueSize),
		done:    make(chan struct{}),
		all:     true, // no filter set means everything
		symbols: make(map[string]struct{}),
	}
}

// wantsAlerts reports whether alert-trigger events are delivered to this
// client. Bots carry the alert channel; display clients only stream prices.
func (c *Client) wantsAlerts() bool { return c.Kind == "bot" }

// Subscribe replaces the symbol filter with an explicit set.
func (c *Client) Subscribe(symbols []string) {
	c.mu.Lock()
	c.all = false
	c.symbols = make(map[string]struct{}, len(symbols))
	for _, s := range symbols {
		c.symbols[strings.ToUpper(s)] = struct{}{}
	}
	c.mu.Unlock()
}

// SubscribeAll subscribes the client to every instrument.
func (c *Client) SubscribeAll() {
	c.mu.Lock()
	c.all = true
	c.symbols = make(map[string]struct{})
	c.mu.Unlock()
}

// Unsubscribe removes symbols from the filter.
func (c *Client) Unsubscribe(symbols []string) {
	c.mu.Lock()
	if !c.all {
		for _, s := range symbols {
			delete(c.symbols, strings.ToUpper(s))
		}
	}
	c.mu.Unlock()
}

// matches reports whether the client's filter covers symbol.
func (c *Client) matches(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.all {
		return true
	}
	_, ok := c.symbols[symbol]
	return ok
}

// enqueue places a price-class message on the queue. A full queue drops the
// oldest entry: price updates supersede each other, so losing a stale one
// is harmless. Returns the number of messages dropped.
func (c *Client) enqueue(msg models.ServerMessage) int {
	dropped := 0
	for {
		select {
		case <-c.done:
			return dropped
		case c.send <- msg:
			return dropped
		default:
		}
		select {
		case <-c.send:
			dropped++
		default:
		}
	}
}

// enqueueAlert places an alert-trigger message on the queue without
// displacing anything. Returns false if the queue is full; alert triggers
// are never silently dropped, so the caller must disconnect the client.
func (c *Client) enqueueAlert(msg models.ServerMessage) bool {
	select {
	case <-c.done:
		return true
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// close shuts the connection and wakes the write worker. Safe to call from
// any goroutine, any number of times.
func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.conn.Close()
	})
}

// writePump drains the outbound queue onto the websocket and keeps the
// connection alive with pings. One goroutine per client.
func (c *Client) writePump(writeTimeout, pingPeriod time.Duration) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
