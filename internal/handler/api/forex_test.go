package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"FXPulse/internal/alerts"
	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/internal/hub"
	"FXPulse/internal/market"
	"FXPulse/internal/usecase"
	"FXPulse/pkg/logger"
)

type nopMetrics struct{}

func (nopMetrics) RecordTickAccepted(string)       {}
func (nopMetrics) RecordTickRejected(string)       {}
func (nopMetrics) RecordLastPrice(string, float64) {}
func (nopMetrics) RecordAlertFired(string)         {}
func (nopMetrics) RecordDroppedMessage(string)     {}
func (nopMetrics) SetConnectedClients(int)         {}
func (nopMetrics) SetFeedConnected(bool)           {}
func (nopMetrics) RecordLatency(string, float64)   {}

type idleStream struct{}

func (idleStream) Connect(context.Context) error   { return nil }
func (idleStream) Subscribe(context.Context) error { return nil }
func (idleStream) Read(context.Context) (<-chan models.Tick, <-chan error) {
	return nil, nil
}
func (idleStream) Close() error      { return nil }
func (idleStream) IsConnected() bool { return false }

func testHandler(t *testing.T) (*ForexHandler, *market.PriceCache, *market.Aggregator, *alerts.Engine, *echo.Echo) {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}

	m := nopMetrics{}
	cache := market.NewPriceCache()
	agg := market.NewAggregator([]drepo.Timeframe{drepo.TF1m, drepo.TF1h}, 500)
	engine := alerts.NewEngine(m, l)
	h := hub.New(cache, m, l)
	ing := usecase.NewTickIngestor(cache, agg, engine, h, nil, m)
	sup := usecase.NewFeedSupervisor(idleStream{}, ing, cache, engine, m, l)

	handler := NewForexHandler(l, cache, agg, engine, h, sup)
	e := echo.New()
	handler.RegisterRoutes(e)
	return handler, cache, agg, engine, e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeData(t *testing.T, rec *httptest.ResponseRecorder, out interface{}) {
	t.Helper()
	var envelope struct {
		Status int             `json:"status"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode envelope: %v (%s)", err, rec.Body.String())
	}
	if out != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			t.Fatalf("decode data: %v (%s)", err, envelope.Data)
		}
	}
}

func TestPriceEndpoint(t *testing.T) {
	_, cache, _, _, e := testHandler(t)
	cache.Update(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.2, Timestamp: time.Now().UTC()})

	rec := doRequest(e, http.MethodGet, "/api/forex/price/eurusd", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var ps models.PriceState
	decodeData(t, rec, &ps)
	if ps.Symbol != "EURUSD" || ps.Bid != 1.1 {
		t.Fatalf("unexpected price %+v", ps)
	}

	rec = doRequest(e, http.MethodGet, "/api/forex/price/GBPUSD", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown symbol, got %d", rec.Code)
	}
}

func TestPricesEndpoint(t *testing.T) {
	_, cache, _, _, e := testHandler(t)
	cache.Update(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.2, Timestamp: time.Now().UTC()})
	cache.Update(models.Tick{Symbol: "USDJPY", Bid: 150, Ask: 150.02, Timestamp: time.Now().UTC()})

	rec := doRequest(e, http.MethodGet, "/api/forex/prices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var prices map[string]models.PriceState
	decodeData(t, rec, &prices)
	if len(prices) != 2 {
		t.Fatalf("expected 2 instruments, got %v", prices)
	}
}

func TestOHLCEndpoint(t *testing.T) {
	_, _, agg, _, e := testHandler(t)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		agg.Apply(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1,
			Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	rec := doRequest(e, http.MethodGet, "/api/forex/ohlc/EURUSD?timeframe=1m&limit=2", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Symbol    string          `json:"symbol"`
		Timeframe string          `json:"timeframe"`
		Candles   []models.Candle `json:"candles"`
	}
	decodeData(t, rec, &payload)
	if payload.Timeframe != "1m" || len(payload.Candles) != 2 {
		t.Fatalf("unexpected payload %+v", payload)
	}

	// invalid timeframe rejected by validation
	rec = doRequest(e, http.MethodGet, "/api/forex/ohlc/EURUSD?timeframe=7m", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad timeframe, got %d", rec.Code)
	}

	// unknown symbol
	rec = doRequest(e, http.MethodGet, "/api/forex/ohlc/GBPUSD?timeframe=1m", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown symbol, got %d", rec.Code)
	}
}

func TestIndicatorsEndpoint(t *testing.T) {
	_, _, agg, _, e := testHandler(t)
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	// enough 1m candles for the SMA20 but not the SMA200
	for i := 0; i < 60; i++ {
		agg.Apply(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1,
			Timestamp: base.Add(time.Duration(i) * time.Minute)})
	}

	rec := doRequest(e, http.MethodGet, "/api/forex/indicators/EURUSD?timeframe=1m", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	var ind models.Indicators
	decodeData(t, rec, &ind)
	if ind.SMA20 == nil {
		t.Fatalf("expected SMA20 with 59 closed candles")
	}
	if ind.SMA200 != nil {
		t.Fatalf("SMA200 must be nil with short history")
	}
	if ind.Trend != "neutral" {
		t.Fatalf("flat series trend = %q", ind.Trend)
	}
}

func TestAlertEndpoints(t *testing.T) {
	_, cache, _, engine, e := testHandler(t)

	body := `{"guild_id":1,"user_id":2,"channel_id":3,"symbol":"eurusd","condition":"above","target_price":1.5}`
	if rec := doRequest(e, http.MethodPost, "/api/forex/alerts", body); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for symbol with no price, got %d", rec.Code)
	}

	cache.Update(models.Tick{Symbol: "EURUSD", Bid: 1.1, Ask: 1.1002, Timestamp: time.Now().UTC()})
	rec := doRequest(e, http.MethodPost, "/api/forex/alerts", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status %d: %s", rec.Code, rec.Body.String())
	}
	var created models.Alert
	decodeData(t, rec, &created)
	if created.Symbol != "EURUSD" || created.State != models.AlertArmed {
		t.Fatalf("unexpected alert %+v", created)
	}

	// invalid condition rejected before reaching the engine
	bad := `{"guild_id":1,"user_id":2,"channel_id":3,"symbol":"eurusd","condition":"sideways","target_price":1.5}`
	if rec := doRequest(e, http.MethodPost, "/api/forex/alerts", bad); rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad condition, got %d", rec.Code)
	}

	rec = doRequest(e, http.MethodGet, "/api/forex/alerts?user_id=2", "")
	var listed struct {
		Rows  []models.Alert `json:"rows"`
		Total int64          `json:"total"`
	}
	decodeData(t, rec, &listed)
	if listed.Total != 1 || len(listed.Rows) != 1 || listed.Rows[0].ID != created.ID {
		t.Fatalf("unexpected listing %+v", listed)
	}

	rec = doRequest(e, http.MethodGet, "/api/forex/alerts/user/2", "")
	listed.Rows, listed.Total = nil, 0
	decodeData(t, rec, &listed)
	if listed.Total != 1 || len(listed.Rows) != 1 {
		t.Fatalf("unexpected per-user listing %+v", listed)
	}
	rec = doRequest(e, http.MethodGet, "/api/forex/alerts/user/99", "")
	listed.Rows, listed.Total = nil, 0
	decodeData(t, rec, &listed)
	if listed.Total != 0 {
		t.Fatalf("expected empty listing for unknown user, got %+v", listed)
	}

	rec = doRequest(e, http.MethodDelete, "/api/forex/alerts/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete status %d", rec.Code)
	}
	if rec := doRequest(e, http.MethodDelete, "/api/forex/alerts/1", ""); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for double delete, got %d", rec.Code)
	}
	if got := engine.List(); len(got) != 0 {
		t.Fatalf("alert still armed after delete: %v", got)
	}
}

func TestHealthEndpoint(t *testing.T) {
	_, _, _, _, e := testHandler(t)
	rec := doRequest(e, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var status map[string]interface{}
	decodeData(t, rec, &status)
	if status["status"] != "ok" || status["feed"] != "disconnected" {
		t.Fatalf("unexpected health payload %v", status)
	}
}
