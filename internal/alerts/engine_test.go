package alerts

import (
	"context"
	"sync"
	"testing"
	"time"

	"FXPulse/internal/domain/models"
	"FXPulse/pkg/logger"
)

type nopMetrics struct {
	mu    sync.Mutex
	fired map[string]int
}

func newNopMetrics() *nopMetrics {
	return &nopMetrics{fired: make(map[string]int)}
}

func (m *nopMetrics) RecordTickAccepted(string)       {}
func (m *nopMetrics) RecordTickRejected(string)       {}
func (m *nopMetrics) RecordLastPrice(string, float64) {}
func (m *nopMetrics) RecordDroppedMessage(string)     {}
func (m *nopMetrics) SetConnectedClients(int)         {}
func (m *nopMetrics) SetFeedConnected(bool)           {}
func (m *nopMetrics) RecordLatency(string, float64)   {}
func (m *nopMetrics) RecordAlertFired(condition string) {
	m.mu.Lock()
	m.fired[condition]++
	m.mu.Unlock()
}

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "console", Output: "stdout"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

func testTick(sym string, mid float64) models.Tick {
	return models.Tick{Symbol: sym, Bid: mid, Ask: mid, Timestamp: time.Now().UTC()}
}

func TestCrossUpFiresOnce(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	a, err := e.Create(1, 2, 3, "EURUSD", models.CondCrossUp, 1.1000)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// first tick only records the baseline
	if fired := e.Evaluate(testTick("EURUSD", 1.0990)); len(fired) != 0 {
		t.Fatalf("baseline tick must not fire, got %v", fired)
	}

	fired := e.Evaluate(testTick("EURUSD", 1.1005))
	if len(fired) != 1 {
		t.Fatalf("expected 1 trigger, got %d", len(fired))
	}
	if fired[0].Alert.ID != a.ID || fired[0].TriggeredPrice != 1.1005 {
		t.Fatalf("unexpected trigger %+v", fired[0])
	}
	if fired[0].Alert.State != models.AlertTriggered {
		t.Fatalf("fired alert must be triggered, got %s", fired[0].Alert.State)
	}

	// crossing again must not re-fire
	e.Evaluate(testTick("EURUSD", 1.0990))
	if fired := e.Evaluate(testTick("EURUSD", 1.1010)); len(fired) != 0 {
		t.Fatalf("triggered alert re-fired: %v", fired)
	}

	if got := e.List(); len(got) != 0 {
		t.Fatalf("triggered alert still listed as armed: %v", got)
	}
}

func TestCrossUpNeedsActualCross(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "EURUSD", models.CondCrossUp, 1.1000); err != nil {
		t.Fatalf("create: %v", err)
	}

	// price starts above target and stays above: never crossed from below
	e.Evaluate(testTick("EURUSD", 1.1005))
	if fired := e.Evaluate(testTick("EURUSD", 1.1010)); len(fired) != 0 {
		t.Fatalf("no cross happened, got %v", fired)
	}
}

func TestAboveFiresImmediatelyAtOrPastTarget(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "XAUUSD", models.CondAbove, 2000); err != nil {
		t.Fatalf("create: %v", err)
	}

	if fired := e.Evaluate(testTick("XAUUSD", 1999)); len(fired) != 0 {
		t.Fatalf("below target must not fire")
	}
	if fired := e.Evaluate(testTick("XAUUSD", 2001)); len(fired) != 1 {
		t.Fatalf("expected fire at 2001, got %d", len(fired))
	}
	if fired := e.Evaluate(testTick("XAUUSD", 2002)); len(fired) != 0 {
		t.Fatalf("must not re-fire")
	}
}

func TestBelowAndCrossDown(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "GBPUSD", models.CondBelow, 1.2500); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := e.Create(1, 2, 3, "GBPUSD", models.CondCrossDown, 1.2500); err != nil {
		t.Fatalf("create: %v", err)
	}

	// 1.2600 -> 1.2400: below fires, cross_down fires too (prev above target)
	e.Evaluate(testTick("GBPUSD", 1.2600))
	fired := e.Evaluate(testTick("GBPUSD", 1.2400))
	if len(fired) != 2 {
		t.Fatalf("expected both alerts to fire, got %d", len(fired))
	}
}

func TestBelowFiresOnFirstTickAtTarget(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "GBPUSD", models.CondBelow, 1.2500); err != nil {
		t.Fatalf("create: %v", err)
	}
	// level conditions need no baseline
	if fired := e.Evaluate(testTick("GBPUSD", 1.2500)); len(fired) != 1 {
		t.Fatalf("below must fire at exact target, got %d", len(fired))
	}
}

func TestSuspendBlocksFiringButTracksBaseline(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "EURUSD", models.CondCrossUp, 1.1000); err != nil {
		t.Fatalf("create: %v", err)
	}

	e.Evaluate(testTick("EURUSD", 1.0990))
	e.Suspend(true)
	if fired := e.Evaluate(testTick("EURUSD", 1.1005)); len(fired) != 0 {
		t.Fatalf("suspended engine fired: %v", fired)
	}

	// resumed: baseline already moved past the target, no spurious fire
	e.Suspend(false)
	if fired := e.Evaluate(testTick("EURUSD", 1.1006)); len(fired) != 0 {
		t.Fatalf("resume must not fire without a fresh cross, got %v", fired)
	}

	// a real cross after resuming still works
	e.Evaluate(testTick("EURUSD", 1.0995))
	if fired := e.Evaluate(testTick("EURUSD", 1.1001)); len(fired) != 1 {
		t.Fatalf("expected fire after resume, got %d", len(fired))
	}
}

func TestCreateValidation(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	if _, err := e.Create(1, 2, 3, "EURUSD", "sideways", 1.1); err == nil {
		t.Fatalf("expected error for unknown condition")
	}
	if _, err := e.Create(1, 2, 3, "EURUSD", models.CondAbove, 0); err == nil {
		t.Fatalf("expected error for non-positive target")
	}
}

func TestDeleteAndList(t *testing.T) {
	e := NewEngine(newNopMetrics(), testLogger(t))
	a, _ := e.Create(1, 10, 3, "EURUSD", models.CondAbove, 2)
	b, _ := e.Create(1, 20, 3, "EURUSD", models.CondBelow, 1)

	if got := len(e.List()); got != 2 {
		t.Fatalf("expected 2 armed, got %d", got)
	}
	if got := e.ListByUser(10); len(got) != 1 || got[0].ID != a.ID {
		t.Fatalf("unexpected user listing %v", got)
	}

	if !e.Delete(a.ID) {
		t.Fatalf("delete existing failed")
	}
	if e.Delete(a.ID) {
		t.Fatalf("double delete succeeded")
	}
	if got := e.List(); len(got) != 1 || got[0].ID != b.ID {
		t.Fatalf("unexpected remaining alerts %v", got)
	}

	// deleted alert no longer evaluates
	e.Evaluate(testTick("EURUSD", 5))
	if got := e.ListByUser(10); len(got) != 0 {
		t.Fatalf("deleted alert resurfaced: %v", got)
	}
}

type memStore struct {
	mu     sync.Mutex
	alerts map[int64]models.Alert
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[int64]models.Alert)}
}

func (s *memStore) LoadArmed(context.Context) ([]models.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a)
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, a models.Alert) error {
	s.mu.Lock()
	s.alerts[a.ID] = a
	s.mu.Unlock()
	return nil
}

func (s *memStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	delete(s.alerts, id)
	s.mu.Unlock()
	return nil
}

func (s *memStore) Close() error { return nil }

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.alerts)
}

func TestStartSeedsIDPastLoaded(t *testing.T) {
	store := newMemStore()
	store.alerts[7] = models.Alert{
		ID: 7, Symbol: "EURUSD", Condition: models.CondAbove,
		TargetPrice: 2, State: models.AlertArmed,
	}

	e := NewEngine(newNopMetrics(), testLogger(t), WithStore(store))
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	a, err := e.Create(1, 2, 3, "EURUSD", models.CondBelow, 1)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if a.ID <= 7 {
		t.Fatalf("new id %d collides with loaded alerts", a.ID)
	}
	if got := len(e.List()); got != 2 {
		t.Fatalf("expected loaded + created = 2, got %d", got)
	}
}

func TestTriggerRemovesFromStore(t *testing.T) {
	store := newMemStore()
	e := NewEngine(newNopMetrics(), testLogger(t), WithStore(store))
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	if _, err := e.Create(1, 2, 3, "EURUSD", models.CondAbove, 1.5); err != nil {
		t.Fatalf("create: %v", err)
	}
	e.Evaluate(testTick("EURUSD", 2))

	// persistence is async
	deadline := time.Now().Add(2 * time.Second)
	for store.len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("triggered alert not removed from store, %d left", store.len())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
