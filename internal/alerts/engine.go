package alerts

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"FXPulse/internal/domain/models"
	drepo "FXPulse/internal/domain/repository"
	"FXPulse/pkg/logger"
)

// tracked pairs an alert with its per-alert previous observed mid, needed
// for crossing detection. An alert that has not observed a price yet only
// records the baseline on its first tick.
type tracked struct {
	alert   models.Alert
	prevMid float64
	hasPrev bool
}

// Engine owns all alerts and evaluates every accepted tick against the
// armed ones for that instrument. Evaluation runs on the ingest path and
// never touches the network; persistence requests go through a bounded
// retry queue.
type Engine struct {
	mu       sync.Mutex
	byID     map[int64]*tracked
	bySymbol map[string]map[int64]*tracked
	nextID   int64

	store   drepo.AlertStore // nil means in-memory only
	metrics drepo.Metrics
	log     *logger.Logger

	suspended atomic.Bool

	retryCh      chan storeOp
	retryLimit   int
	retryBackoff time.Duration
	stopCh       chan struct{}
	stopOnce     sync.Once
}

type opKind int

const (
	opSave opKind = iota
	opDelete
)

type storeOp struct {
	kind     opKind
	alert    models.Alert
	attempts int
}

// Option configures the Engine.
type Option func(*Engine)

// WithStore attaches the external durable alert store.
func WithStore(store drepo.AlertStore) Option {
	return func(e *Engine) { e.store = store }
}

// WithRetry tunes the persistence retry queue.
func WithRetry(queue, limit int, backoff time.Duration) Option {
	return func(e *Engine) {
		if queue > 0 {
			e.retryCh = make(chan storeOp, queue)
		}
		if limit > 0 {
			e.retryLimit = limit
		}
		if backoff > 0 {
			e.retryBackoff = backoff
		}
	}
}

// NewEngine creates an alert engine.
func NewEngine(metrics drepo.Metrics, log *logger.Logger, opts ...Option) *Engine {
	e := &Engine{
		byID:         make(map[int64]*tracked),
		bySymbol:     make(map[string]map[int64]*tracked),
		nextID:       1,
		metrics:      metrics,
		log:          log,
		retryCh:      make(chan storeOp, 256),
		retryLimit:   5,
		retryBackoff: time.Second,
		stopCh:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start loads armed alerts from the store and launches the persistence
// worker. Load failure is logged, not fatal: in-memory evaluation stays
// authoritative.
func (e *Engine) Start(ctx context.Context) error {
	if e.store != nil {
		loaded, err := e.store.LoadArmed(ctx)
		if err != nil {
			e.log.Error("alert store load failed, starting empty", logger.Error(err))
		} else {
			e.mu.Lock()
			for _, a := range loaded {
				e.index(a)
				if a.ID >= e.nextID {
					e.nextID = a.ID + 1
				}
			}
			e.mu.Unlock()
			e.log.Info("alerts loaded", logger.Int("count", len(loaded)))
		}
	}
	go e.persistLoop()
	return nil
}

// Stop terminates the persistence worker.
func (e *Engine) Stop() {
	e.stopOnce.Do(func() { close(e.stopCh) })
}

// index inserts an alert into the lookup maps. Caller holds the lock.
func (e *Engine) index(a models.Alert) {
	t := &tracked{alert: a}
	e.byID[a.ID] = t
	bySym, ok := e.bySymbol[a.Symbol]
	if !ok {
		bySym = make(map[int64]*tracked)
		e.bySymbol[a.Symbol] = bySym
	}
	bySym[a.ID] = t
}

// Create arms a new alert and requests persistence.
func (e *Engine) Create(guildID, userID, channelID int64, symbol string, cond models.AlertCondition, target float64) (models.Alert, error) {
	if !cond.Valid() {
		return models.Alert{}, fmt.Errorf("unknown alert condition %q", cond)
	}
	if target <= 0 {
		return models.Alert{}, fmt.Errorf("target price must be positive")
	}

	e.mu.Lock()
	a := models.Alert{
		ID:          e.nextID,
		GuildID:     guildID,
		UserID:      userID,
		ChannelID:   channelID,
		Symbol:      symbol,
		Condition:   cond,
		TargetPrice: target,
		State:       models.AlertArmed,
		CreatedAt:   time.Now().UTC(),
	}
	e.nextID++
	e.index(a)
	e.mu.Unlock()

	e.requestPersist(storeOp{kind: opSave, alert: a})
	return a, nil
}

// Delete removes an alert by id and requests store deletion.
func (e *Engine) Delete(id int64) bool {
	e.mu.Lock()
	t, ok := e.byID[id]
	if ok {
		delete(e.byID, id)
		if bySym := e.bySymbol[t.alert.Symbol]; bySym != nil {
			delete(bySym, id)
		}
	}
	e.mu.Unlock()

	if !ok {
		return false
	}
	e.requestPersist(storeOp{kind: opDelete, alert: t.alert})
	return true
}

// List returns all armed alerts.
func (e *Engine) List() []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Alert, 0, len(e.byID))
	for _, t := range e.byID {
		if t.alert.State == models.AlertArmed {
			out = append(out, t.alert)
		}
	}
	return out
}

// ListByUser returns armed alerts belonging to a user.
func (e *Engine) ListByUser(userID int64) []models.Alert {
	e.mu.Lock()
	defer e.mu.Unlock()
	var out []models.Alert
	for _, t := range e.byID {
		if t.alert.UserID == userID && t.alert.State == models.AlertArmed {
			out = append(out, t.alert)
		}
	}
	return out
}

// Suspend toggles evaluation. While suspended (stale feed) ticks still
// update crossing baselines but never fire, avoiding spurious triggers on
// resumption.
func (e *Engine) Suspend(v bool) {
	e.suspended.Store(v)
}

// Evaluate checks all armed alerts for the tick's instrument. Fired alerts
// transition to triggered, stop being evaluated, and get a store deletion
// request; the triggered events are returned for fan-out.
func (e *Engine) Evaluate(t models.Tick) []models.TriggeredAlert {
	mid := t.Mid()
	suspended := e.suspended.Load()

	e.mu.Lock()
	bySym := e.bySymbol[t.Symbol]
	if len(bySym) == 0 {
		e.mu.Unlock()
		return nil
	}

	var fired []models.TriggeredAlert
	for _, tr := range bySym {
		if tr.alert.State != models.AlertArmed {
			tr.prevMid, tr.hasPrev = mid, true
			continue
		}

		if !suspended && e.shouldTrigger(tr, mid) {
			now := t.Timestamp
			tr.alert.State = models.AlertTriggered
			tr.alert.TriggeredAt = &now
			fired = append(fired, models.TriggeredAlert{
				Alert:          tr.alert,
				TriggeredPrice: mid,
				TriggeredAt:    now,
			})
		}

		tr.prevMid, tr.hasPrev = mid, true
	}
	e.mu.Unlock()

	for _, f := range fired {
		e.metrics.RecordAlertFired(string(f.Alert.Condition))
		e.requestPersist(storeOp{kind: opDelete, alert: f.Alert})
	}
	return fired
}

func (e *Engine) shouldTrigger(tr *tracked, mid float64) bool {
	target := tr.alert.TargetPrice
	switch tr.alert.Condition {
	case models.CondAbove:
		return mid >= target
	case models.CondBelow:
		return mid <= target
	case models.CondCrossUp:
		return tr.hasPrev && tr.prevMid < target && mid >= target
	case models.CondCrossDown:
		return tr.hasPrev && tr.prevMid > target && mid <= target
	}
	return false
}

// requestPersist enqueues a store operation without blocking the ingest
// path. Queue overflow drops the operation; durability degrades, live
// behavior does not.
func (e *Engine) requestPersist(op storeOp) {
	if e.store == nil {
		return
	}
	select {
	case e.retryCh <- op:
	default:
		e.log.Warn("alert persistence queue full, dropping",
			logger.Int64("alert_id", op.alert.ID))
	}
}

// persistLoop applies store operations with bounded retries and backoff.
func (e *Engine) persistLoop() {
	for {
		select {
		case <-e.stopCh:
			return
		case op := <-e.retryCh:
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			var err error
			switch op.kind {
			case opSave:
				err = e.store.Save(ctx, op.alert)
			case opDelete:
				err = e.store.Delete(ctx, op.alert.ID)
			}
			cancel()

			if err == nil {
				continue
			}

			op.attempts++
			if op.attempts >= e.retryLimit {
				e.log.Error("alert persistence giving up",
					logger.Int64("alert_id", op.alert.ID),
					logger.Int("attempts", op.attempts),
					logger.Error(err))
				continue
			}

			e.log.Warn("alert persistence failed, will retry",
				logger.Int64("alert_id", op.alert.ID),
				logger.Error(err))

			select {
			case <-e.stopCh:
				return
			case <-time.After(e.retryBackoff * time.Duration(op.attempts)):
			}
			e.requestPersist(op)
		}
	}
}
