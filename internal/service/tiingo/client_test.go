package tiingo

import (
	"context"
	"encoding/json"
	"runtime"
	"testing"
	"time"

	"FXPulse/pkg/logger"
)

func TestParseQuote(t *testing.T) {
	raw := json.RawMessage(`["Q","eurusd","2025-03-01T12:00:00.123456+00:00",1000000,1.1000,1.1001,1000000,1.1002]`)

	tick, ok := parseQuote(raw)
	if !ok {
		t.Fatalf("expected valid quote")
	}
	if tick.Symbol != "EURUSD" {
		t.Fatalf("symbol not normalized: %q", tick.Symbol)
	}
	if tick.Bid != 1.1000 || tick.Ask != 1.1002 {
		t.Fatalf("unexpected prices %v/%v", tick.Bid, tick.Ask)
	}
	want := time.Date(2025, 3, 1, 12, 0, 0, 123456000, time.UTC)
	if !tick.Timestamp.Equal(want) {
		t.Fatalf("timestamp = %v, want %v", tick.Timestamp, want)
	}
}

func TestParseQuoteRejects(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"not an array", `{"foo":1}`},
		{"too short", `["Q","eurusd","2025-03-01T12:00:00Z",1,1.1]`},
		{"wrong kind", `["T","eurusd","2025-03-01T12:00:00Z",1,1.1,1.1,1,1.1]`},
		{"empty symbol", `["Q","","2025-03-01T12:00:00Z",1,1.1,1.1,1,1.1]`},
		{"string bid", `["Q","eurusd","2025-03-01T12:00:00Z",1,"1.1",1.1,1,1.1]`},
		{"zero bid", `["Q","eurusd","2025-03-01T12:00:00Z",1,0,1.1,1,1.1]`},
		{"negative ask", `["Q","eurusd","2025-03-01T12:00:00Z",1,1.1,1.1,1,-1]`},
		{"absurd spread", `["Q","eurusd","2025-03-01T12:00:00Z",1,1.0,1.1,1,1.2]`},
	}

	for _, tc := range cases {
		if _, ok := parseQuote(json.RawMessage(tc.raw)); ok {
			t.Fatalf("%s: expected rejection", tc.name)
		}
	}
}

func TestParseQuoteBadTimestampFallsBack(t *testing.T) {
	before := time.Now().UTC()
	tick, ok := parseQuote(json.RawMessage(`["Q","eurusd","not-a-time",1,1.1,1.1,1,1.1005]`))
	if !ok {
		t.Fatalf("bad timestamp must not reject the quote")
	}
	if tick.Timestamp.Before(before.Add(-time.Second)) {
		t.Fatalf("expected receive-time fallback, got %v", tick.Timestamp)
	}
}

func TestParseQuoteWideButSaneSpread(t *testing.T) {
	// just under the 1% cutoff passes the filter
	if _, ok := parseQuote(json.RawMessage(`["Q","eurusd","2025-03-01T12:00:00Z",1,1.0,1.0045,1,1.009]`)); !ok {
		t.Fatalf("0.9%% spread must be accepted")
	}
}

func TestReadKeepaliveExitsWithReader(t *testing.T) {
	// the keepalive goroutine must not outlive its reader, or one ticker
	// accumulates per reconnect under a long-lived context
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	c := New("key", "wss://unused", 5, time.Hour, l).(*Client)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	baseline := runtime.NumGoroutine()
	for i := 0; i < 50; i++ {
		ticks, errs := c.Read(ctx)
		for range errs { // nil conn fails the reader immediately
		}
		for range ticks {
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if runtime.NumGoroutine() <= baseline+5 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("keepalive goroutines leaked: %d running, baseline %d",
		runtime.NumGoroutine(), baseline)
}
