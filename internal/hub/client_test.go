package hub

import (
	"testing"

	"FXPulse/internal/domain/models"
)

func TestClientFilter(t *testing.T) {
	c := newClient("c1", "web", nil, 4)

	// default filter covers everything
	if !c.matches("EURUSD") || !c.matches("USDJPY") {
		t.Fatalf("new client must match all symbols")
	}

	c.Subscribe([]string{"eurusd"})
	if !c.matches("EURUSD") {
		t.Fatalf("subscription is case-insensitive")
	}
	if c.matches("USDJPY") {
		t.Fatalf("filter must exclude unsubscribed symbols")
	}

	c.Unsubscribe([]string{"EURUSD"})
	if c.matches("EURUSD") {
		t.Fatalf("unsubscribed symbol still matches")
	}

	c.SubscribeAll()
	if !c.matches("USDJPY") {
		t.Fatalf("subscribe_all must match everything")
	}
}

func TestClientEnqueueDropsOldest(t *testing.T) {
	c := newClient("c1", "web", nil, 2)

	m1, _ := models.NewServerMessage(models.WSPrice, map[string]int{"n": 1})
	m2, _ := models.NewServerMessage(models.WSPrice, map[string]int{"n": 2})
	m3, _ := models.NewServerMessage(models.WSPrice, map[string]int{"n": 3})

	if d := c.enqueue(m1); d != 0 {
		t.Fatalf("unexpected drop on empty queue")
	}
	if d := c.enqueue(m2); d != 0 {
		t.Fatalf("unexpected drop on non-full queue")
	}
	if d := c.enqueue(m3); d != 1 {
		t.Fatalf("expected exactly 1 drop, got %d", d)
	}

	// oldest is gone, newest two remain in order
	got := <-c.send
	if string(got.Data) != string(m2.Data) {
		t.Fatalf("expected m2 first, got %s", got.Data)
	}
	got = <-c.send
	if string(got.Data) != string(m3.Data) {
		t.Fatalf("expected m3 second, got %s", got.Data)
	}
}

func TestClientEnqueueAlertNeverDisplaces(t *testing.T) {
	c := newClient("bot1", "bot", nil, 1)

	price, _ := models.NewServerMessage(models.WSPrice, map[string]int{"n": 1})
	alert, _ := models.NewServerMessage(models.WSAlertTriggered, map[string]int{"id": 7})

	if d := c.enqueue(price); d != 0 {
		t.Fatalf("unexpected drop")
	}
	if c.enqueueAlert(alert) {
		t.Fatalf("full queue must refuse the alert instead of displacing")
	}

	// queue content untouched
	got := <-c.send
	if string(got.Data) != string(price.Data) {
		t.Fatalf("price message was displaced")
	}
	if !c.enqueueAlert(alert) {
		t.Fatalf("alert must fit once the queue drains")
	}
}

func TestWantsAlerts(t *testing.T) {
	if !newClient("b", "bot", nil, 1).wantsAlerts() {
		t.Fatalf("bot clients carry alerts")
	}
	if newClient("w", "frontend", nil, 1).wantsAlerts() {
		t.Fatalf("frontend clients must not carry alerts")
	}
}
