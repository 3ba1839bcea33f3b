package market

import (
	"sync"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
)

// Aggregator buckets accepted ticks into fixed-timeframe OHLC candles. Each
// timeframe is built directly from ticks, never rolled up from a smaller
// one, so rounding drift cannot compound. Closed candles are immutable and
// kept in a bounded series per (instrument, timeframe); the oldest candle is
// evicted on overflow.
type Aggregator struct {
	mu         sync.RWMutex
	capacity   int
	timeframes []drepo.Timeframe
	open       map[string]map[drepo.Timeframe]*models.Candle
	closed     map[string]map[drepo.Timeframe][]models.Candle
	sink       drepo.CandleSink // optional archival of closed candles
}

// AggregatorOption configures the Aggregator.
type AggregatorOption func(*Aggregator)

// WithSink attaches a sink receiving every closed candle.
func WithSink(sink drepo.CandleSink) AggregatorOption {
	return func(a *Aggregator) { a.sink = sink }
}

// NewAggregator creates an aggregator for the given timeframes with a fixed
// per-series capacity.
func NewAggregator(timeframes []drepo.Timeframe, capacity int, opts ...AggregatorOption) *Aggregator {
	if capacity <= 0 {
		capacity = 500
	}
	if len(timeframes) == 0 {
		timeframes = drepo.AllTimeframes()
	}
	a := &Aggregator{
		capacity:   capacity,
		timeframes: timeframes,
		open:       make(map[string]map[drepo.Timeframe]*models.Candle),
		closed:     make(map[string]map[drepo.Timeframe][]models.Candle),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Apply folds one accepted tick into every configured timeframe. Callers
// must have validated the tick already; the aggregator trusts per-instrument
// timestamp ordering.
func (a *Aggregator) Apply(t models.Tick) {
	mid := t.Mid()

	a.mu.Lock()
	defer a.mu.Unlock()

	opens, ok := a.open[t.Symbol]
	if !ok {
		opens = make(map[drepo.Timeframe]*models.Candle, len(a.timeframes))
		a.open[t.Symbol] = opens
		a.closed[t.Symbol] = make(map[drepo.Timeframe][]models.Candle, len(a.timeframes))
	}

	for _, tf := range a.timeframes {
		start := t.Timestamp.Truncate(tf.Duration())

		cur := opens[tf]
		if cur == nil {
			opens[tf] = &models.Candle{
				Symbol:    t.Symbol,
				Timeframe: string(tf),
				Start:     start,
				Open:      mid,
				High:      mid,
				Low:       mid,
				Close:     mid,
			}
			continue
		}

		if start.After(cur.Start) {
			a.close(t.Symbol, tf, *cur)
			opens[tf] = &models.Candle{
				Symbol:    t.Symbol,
				Timeframe: string(tf),
				Start:     start,
				Open:      mid,
				High:      mid,
				Low:       mid,
				Close:     mid,
			}
			continue
		}

		if mid > cur.High {
			cur.High = mid
		}
		if mid < cur.Low {
			cur.Low = mid
		}
		cur.Close = mid
	}
}

// close pushes a finished candle to the series and the sink. Caller holds
// the lock.
func (a *Aggregator) close(symbol string, tf drepo.Timeframe, c models.Candle) {
	series := append(a.closed[symbol][tf], c)
	if len(series) > a.capacity {
		series = series[len(series)-a.capacity:]
	}
	a.closed[symbol][tf] = series
	if a.sink != nil {
		a.sink.Archive(c)
	}
}

// Series returns the most recent limit candles for (symbol, timeframe),
// oldest first, including the still-open candle if present. Callers needing
// only closed candles must trim the last entry themselves.
func (a *Aggregator) Series(symbol string, tf drepo.Timeframe, limit int) []models.Candle {
	if limit <= 0 {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	closed := a.closed[symbol][tf]
	var open *models.Candle
	if opens, ok := a.open[symbol]; ok {
		open = opens[tf]
	}

	total := len(closed)
	if open != nil {
		total++
	}
	if total == 0 {
		return nil
	}
	if limit > total {
		limit = total
	}

	out := make([]models.Candle, 0, limit)
	fromClosed := limit
	if open != nil {
		fromClosed--
	}
	if fromClosed > 0 {
		out = append(out, closed[len(closed)-fromClosed:]...)
	}
	if open != nil {
		out = append(out, *open)
	}
	return out
}

// ClosedSeries returns the most recent limit closed candles, oldest first.
// Convenience for indicator computation, which must not see the open candle.
func (a *Aggregator) ClosedSeries(symbol string, tf drepo.Timeframe, limit int) []models.Candle {
	if limit <= 0 {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	closed := a.closed[symbol][tf]
	if len(closed) == 0 {
		return nil
	}
	if limit > len(closed) {
		limit = len(closed)
	}
	out := make([]models.Candle, limit)
	copy(out, closed[len(closed)-limit:])
	return out
}
