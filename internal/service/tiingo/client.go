package tiingo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/pkg/logger"

	"github.com/gorilla/websocket"
)

// maxSpreadPct filters obviously bad quotes before they enter the pipeline.
const maxSpreadPct = 1.0

// Client implements a MarketStream backed by the Tiingo forex WebSocket.
type Client struct {
	apiKey         string
	websocketURL   string
	thresholdLevel int
	pingInterval   time.Duration
	log            *logger.Logger

	conn      *websocket.Conn
	connected bool
}

// New creates a new Tiingo MarketStream.
func New(apiKey, websocketURL string, thresholdLevel int, pingInterval time.Duration, log *logger.Logger) drepo.MarketStream {
	if thresholdLevel <= 0 {
		thresholdLevel = 5
	}
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Client{
		apiKey:         apiKey,
		websocketURL:   websocketURL,
		thresholdLevel: thresholdLevel,
		pingInterval:   pingInterval,
		log:            log,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("tiingo connect: %w", err)
	}
	c.conn = conn
	c.connected = true
	c.log.Info("tiingo connected")
	return nil
}

// Subscribe sends the fx subscription with the configured threshold level.
func (c *Client) Subscribe(ctx context.Context) error {
	if c.conn == nil || !c.connected {
		return fmt.Errorf("tiingo not connected")
	}
	sub := map[string]interface{}{
		"eventName":     "subscribe",
		"authorization": c.apiKey,
		"eventData": map[string]interface{}{
			"thresholdLevel": c.thresholdLevel,
		},
	}
	if err := c.conn.WriteJSON(sub); err != nil {
		return fmt.Errorf("tiingo subscribe: %w", err)
	}
	c.log.Info("tiingo subscription sent")
	return nil
}

type frame struct {
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data"`
}

// Read streams parsed quotes and errors. Parsing stops at structural
// validity; ordering and price sanity are the normalizer's job.
func (c *Client) Read(ctx context.Context) (<-chan models.Tick, <-chan error) {
	ticks := make(chan models.Tick, 1024)
	errs := make(chan error, 1)
	readerDone := make(chan struct{})

	// keepalive, scoped to this connection's reader
	go func() {
		ticker := time.NewTicker(c.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-readerDone:
				return
			case <-ticker.C:
				if c.conn != nil {
					_ = c.conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	go func() {
		defer close(readerDone)
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			if c.conn == nil {
				errs <- fmt.Errorf("tiingo conn nil")
				return
			}
			_, raw, err := c.conn.ReadMessage()
			if err != nil {
				errs <- fmt.Errorf("tiingo read: %w", err)
				return
			}

			var f frame
			if err := json.Unmarshal(raw, &f); err != nil {
				// Malformed frame: discard this message, keep the stream.
				c.log.Warn("tiingo malformed frame", logger.Error(err))
				continue
			}

			switch f.MessageType {
			case "A":
				if t, ok := parseQuote(f.Data); ok {
					select {
					case ticks <- t:
					default:
						// drop on backpressure
					}
				}
			case "E":
				c.log.Error("tiingo error frame", logger.String("data", string(f.Data)))
			case "I":
				c.log.Info("tiingo info frame", logger.String("data", string(f.Data)))
			}
		}
	}()

	return ticks, errs
}

// parseQuote decodes a Tiingo fx quote array:
// ["Q", ticker, timestamp, bidSize, bid, mid, askSize, ask].
func parseQuote(raw json.RawMessage) (models.Tick, bool) {
	var fields []interface{}
	if err := json.Unmarshal(raw, &fields); err != nil || len(fields) < 8 {
		return models.Tick{}, false
	}

	kind, _ := fields[0].(string)
	if kind != "Q" {
		return models.Tick{}, false
	}

	symbol, _ := fields[1].(string)
	bid, bidOK := fields[4].(float64)
	ask, askOK := fields[7].(float64)
	if symbol == "" || !bidOK || !askOK || bid <= 0 || ask <= 0 {
		return models.Tick{}, false
	}

	// Sanity filter: discard quotes with an absurd spread.
	if (ask-bid)/bid*100 > maxSpreadPct {
		return models.Tick{}, false
	}

	ts := time.Now().UTC()
	if s, ok := fields[2].(string); ok {
		if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
			ts = parsed.UTC()
		}
	}

	return models.Tick{
		Symbol:    models.NormalizeSymbol(symbol),
		Bid:       bid,
		Ask:       ask,
		Timestamp: ts,
	}, true
}

// Close closes the WS connection.
func (c *Client) Close() error {
	c.connected = false
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (c *Client) IsConnected() bool { return c.connected }
