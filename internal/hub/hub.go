package hub

import (
	"encoding/json"
	"fmt"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/market"
	"FXPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// Hub fans price updates and alert-trigger events out to subscribed
// clients. Each client owns an independent bounded queue and write worker,
// so a slow consumer cannot stall ingest or other clients.
type Hub struct {
	reg     *Registry
	cache   *market.PriceCache
	metrics drepo.Metrics
	log     *logger.Logger

	queueSize    int
	writeTimeout time.Duration
	pongTimeout  time.Duration
}

// Option configures the Hub.
type Option func(*Hub)

// WithQueueSize sets the per-client outbound queue capacity.
func WithQueueSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.queueSize = n
		}
	}
}

// WithTimeouts sets the write deadline and pong wait for client sockets.
func WithTimeouts(write, pong time.Duration) Option {
	return func(h *Hub) {
		if write > 0 {
			h.writeTimeout = write
		}
		if pong > 0 {
			h.pongTimeout = pong
		}
	}
}

// New creates a Hub bound to the price cache for snapshots and reads.
func New(cache *market.PriceCache, metrics drepo.Metrics, log *logger.Logger, opts ...Option) *Hub {
	h := &Hub{
		reg:          NewRegistry(),
		cache:        cache,
		metrics:      metrics,
		log:          log,
		queueSize:    256,
		writeTimeout: 10 * time.Second,
		pongTimeout:  60 * time.Second,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Registry exposes the subscription registry.
func (h *Hub) Registry() *Registry { return h.reg }

// ServeConn runs a client connection to completion: registers it, sends the
// snapshot, then reads inbound messages until disconnect. Blocks until the
// connection dies.
func (h *Hub) ServeConn(conn *websocket.Conn, clientID, clientType string) {
	c := newClient(clientID, clientType, conn, h.queueSize)

	// Snapshot is enqueued inside the registration critical section: every
	// tick committed before it is in the snapshot, every one after lands on
	// the live queue. No gap, no duplicate-free guarantee needed.
	h.reg.Register(c, func(c *Client) {
		snap := h.cache.Snapshot()
		if msg, err := models.NewServerMessage(models.WSSnapshot, snap); err == nil {
			c.enqueue(msg)
		}
	})
	h.metrics.SetConnectedClients(h.reg.Len())
	h.log.Info("client connected",
		logger.String("client_id", clientID),
		logger.String("client_type", clientType))

	go c.writePump(h.writeTimeout, h.pongTimeout/2)

	h.readLoop(c)

	h.disconnect(c)
}

// disconnect tears the client down exactly once and drops its subscription.
func (h *Hub) disconnect(c *Client) {
	if h.reg.Unregister(c.ID) != nil {
		h.metrics.SetConnectedClients(h.reg.Len())
		h.log.Info("client disconnected", logger.String("client_id", c.ID))
	}
	c.close()
}

func (h *Hub) readLoop(c *Client) {
	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(h.pongTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg models.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			// Malformed client messages are ignored silently.
			continue
		}
		h.handleMessage(c, msg)
	}
}

// handleMessage dispatches one inbound client message. Unknown types get no
// reply at all, so malformed clients cannot amplify log or reply traffic.
func (h *Hub) handleMessage(c *Client, msg models.ClientMessage) {
	switch msg.Type {
	case models.WSSubscribe:
		c.Subscribe(msg.Symbols)
		c.enqueue(models.ServerMessage{Type: models.WSSubscribed, Symbols: msg.Symbols})

	case models.WSSubscribeAll:
		c.SubscribeAll()
		c.enqueue(models.ServerMessage{Type: models.WSSubscribed, Symbols: "all"})

	case models.WSUnsubscribe:
		c.Unsubscribe(msg.Symbols)

	case models.WSPing:
		c.enqueue(models.ServerMessage{Type: models.WSPong})

	case models.WSGetPrice:
		h.replyPrice(c, msg.Symbol)
	}
}

func (h *Hub) replyPrice(c *Client, symbol string) {
	ps, ok := h.cache.Get(models.NormalizeSymbol(symbol))
	if !ok {
		c.enqueue(models.ServerMessage{
			Type:    models.WSError,
			Message: fmt.Sprintf("Unknown symbol: %s", symbol),
		})
		return
	}
	if msg, err := models.NewServerMessage(models.WSPrice, ps); err == nil {
		c.enqueue(msg)
	}
}

// BroadcastPrice enqueues a price update for every client whose filter
// matches. Serializes once, never blocks: full queues drop their oldest
// price message instead.
func (h *Hub) BroadcastPrice(ps models.PriceState) {
	msg, err := models.NewServerMessage(models.WSPrice, ps)
	if err != nil {
		return
	}

	h.reg.Range(func(c *Client) {
		if !c.matches(ps.Symbol) {
			return
		}
		if dropped := c.enqueue(msg); dropped > 0 {
			h.metrics.RecordDroppedMessage("price")
		}
	})
}

// BroadcastAlert delivers an alert-trigger event to every alert-carrying
// client. These are never dropped: a client whose queue cannot take the
// event is disconnected, because a client too slow to receive alerts is not
// meeting its contract.
func (h *Hub) BroadcastAlert(ta models.TriggeredAlert) {
	msg, err := models.NewServerMessage(models.WSAlertTriggered, ta)
	if err != nil {
		return
	}

	var cut []*Client
	h.reg.Range(func(c *Client) {
		if !c.wantsAlerts() {
			return
		}
		if !c.enqueueAlert(msg) {
			cut = append(cut, c)
		}
	})

	// Unregister outside the read lock.
	for _, c := range cut {
		h.metrics.RecordDroppedMessage("alert_client_cut")
		h.log.Warn("client too slow for alert delivery, disconnecting",
			logger.String("client_id", c.ID))
		h.disconnect(c)
	}
}
