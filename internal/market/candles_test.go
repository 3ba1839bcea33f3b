package market

import (
	"testing"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
)

func tick(sym string, mid float64, ts time.Time) models.Tick {
	return models.Tick{Symbol: sym, Bid: mid, Ask: mid, Timestamp: ts}
}

func TestAggregatorSingleBucketOHLC(t *testing.T) {
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m}, 10)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for _, p := range []struct {
		mid float64
		off time.Duration
	}{
		{1.10, 0},
		{1.15, 10 * time.Second},
		{1.05, 20 * time.Second},
		{1.12, 30 * time.Second},
	} {
		a.Apply(tick("EURUSD", p.mid, base.Add(p.off)))
	}

	series := a.Series("EURUSD", drepo.TF1m, 10)
	if len(series) != 1 {
		t.Fatalf("expected 1 open candle, got %d", len(series))
	}
	c := series[0]
	if c.Open != 1.10 || c.High != 1.15 || c.Low != 1.05 || c.Close != 1.12 {
		t.Fatalf("unexpected OHLC %+v", c)
	}
	if !c.Start.Equal(base) {
		t.Fatalf("unexpected bucket start %v", c.Start)
	}
}

func TestAggregatorBucketRollover(t *testing.T) {
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m}, 10)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a.Apply(tick("EURUSD", 1.10, base.Add(30*time.Second)))
	a.Apply(tick("EURUSD", 1.20, base.Add(61*time.Second)))

	closed := a.ClosedSeries("EURUSD", drepo.TF1m, 10)
	if len(closed) != 1 {
		t.Fatalf("expected 1 closed candle, got %d", len(closed))
	}
	if closed[0].Close != 1.10 {
		t.Fatalf("closed candle should end at 1.10, got %v", closed[0].Close)
	}

	series := a.Series("EURUSD", drepo.TF1m, 10)
	if len(series) != 2 {
		t.Fatalf("expected closed + open, got %d", len(series))
	}
	if series[1].Open != 1.20 {
		t.Fatalf("new open candle should start at 1.20, got %v", series[1].Open)
	}
}

func TestAggregatorEviction(t *testing.T) {
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m}, 3)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	// 6 buckets, closing 5 candles against capacity 3
	for i := 0; i < 6; i++ {
		a.Apply(tick("EURUSD", float64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	closed := a.ClosedSeries("EURUSD", drepo.TF1m, 10)
	if len(closed) != 3 {
		t.Fatalf("expected capacity-bounded series of 3, got %d", len(closed))
	}
	// oldest two evicted: remaining opens are 2, 3, 4
	if closed[0].Open != 2 || closed[2].Open != 4 {
		t.Fatalf("unexpected retained candles %+v", closed)
	}
}

func TestAggregatorTimeframesIndependent(t *testing.T) {
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m, drepo.TF5m}, 10)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a.Apply(tick("EURUSD", 1.10, base))
	a.Apply(tick("EURUSD", 1.20, base.Add(90*time.Second)))

	if got := len(a.ClosedSeries("EURUSD", drepo.TF1m, 10)); got != 1 {
		t.Fatalf("1m should have closed once, got %d", got)
	}
	if got := len(a.ClosedSeries("EURUSD", drepo.TF5m, 10)); got != 0 {
		t.Fatalf("5m should still be open, got %d closed", got)
	}
}

type captureSink struct {
	got []models.Candle
}

func (s *captureSink) Archive(c models.Candle) { s.got = append(s.got, c) }
func (s *captureSink) Close() error            { return nil }

func TestAggregatorSinkReceivesClosed(t *testing.T) {
	sink := &captureSink{}
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m}, 10, WithSink(sink))
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	a.Apply(tick("EURUSD", 1.10, base))
	a.Apply(tick("EURUSD", 1.20, base.Add(time.Minute)))

	if len(sink.got) != 1 {
		t.Fatalf("expected 1 archived candle, got %d", len(sink.got))
	}
	if sink.got[0].Close != 1.10 {
		t.Fatalf("unexpected archived candle %+v", sink.got[0])
	}
}

func TestSeriesLimit(t *testing.T) {
	a := NewAggregator([]drepo.Timeframe{drepo.TF1m}, 10)
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		a.Apply(tick("EURUSD", float64(i), base.Add(time.Duration(i)*time.Minute)))
	}

	series := a.Series("EURUSD", drepo.TF1m, 2)
	if len(series) != 2 {
		t.Fatalf("expected limit of 2, got %d", len(series))
	}
	// last entry is the open candle
	if series[1].Open != 4 {
		t.Fatalf("expected open candle last, got %+v", series[1])
	}
	if series[0].Open != 3 {
		t.Fatalf("expected newest closed before it, got %+v", series[0])
	}
}
