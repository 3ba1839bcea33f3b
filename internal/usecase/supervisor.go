package usecase

import (
	"context"
	"math/rand"
	"sync/atomic"
	"time"

	drepo "FXPulse/internal/domain/repository"
	"FXPulse/pkg/logger"
)

// FeedState is the supervisor's connection lifecycle state.
type FeedState int32

const (
	FeedDisconnected FeedState = iota
	FeedConnecting
	FeedConnected
	FeedBackoff
)

func (s FeedState) String() string {
	switch s {
	case FeedConnecting:
		return "connecting"
	case FeedConnected:
		return "connected"
	case FeedBackoff:
		return "backoff"
	default:
		return "disconnected"
	}
}

// AlertSuspender lets the supervisor pause alert evaluation while the
// feed is silent, so stale prices cannot fire alerts.
type AlertSuspender interface {
	Suspend(v bool)
}

// StaleMarker marks cached prices older than a cutoff as stale.
type StaleMarker interface {
	MarkStaleOlderThan(cutoff time.Time) int
}

// FeedSupervisor owns the upstream stream connection. It reconnects with
// capped exponential backoff and watches for feed silence, flagging cached
// prices stale and suspending alerts until ticks resume.
type FeedSupervisor struct {
	stream   drepo.MarketStream
	ingestor *TickIngestor
	cache    StaleMarker
	alerts   AlertSuspender
	metrics  drepo.Metrics
	log      *logger.Logger

	initialBackoff time.Duration
	maxBackoff     time.Duration
	staleAfter     time.Duration

	state    atomic.Int32
	lastTick atomic.Int64 // unix nanos of last accepted read
}

// SupervisorOption configures a FeedSupervisor.
type SupervisorOption func(*FeedSupervisor)

// WithBackoff sets the reconnect backoff range.
func WithBackoff(initial, max time.Duration) SupervisorOption {
	return func(s *FeedSupervisor) {
		if initial > 0 {
			s.initialBackoff = initial
		}
		if max > 0 {
			s.maxBackoff = max
		}
	}
}

// WithStaleAfter sets how long the feed may stay silent before cached
// prices are flagged stale.
func WithStaleAfter(d time.Duration) SupervisorOption {
	return func(s *FeedSupervisor) {
		if d > 0 {
			s.staleAfter = d
		}
	}
}

// NewFeedSupervisor creates a supervisor around a market stream.
func NewFeedSupervisor(
	stream drepo.MarketStream,
	ingestor *TickIngestor,
	cache StaleMarker,
	alerts AlertSuspender,
	metrics drepo.Metrics,
	log *logger.Logger,
	opts ...SupervisorOption,
) *FeedSupervisor {
	s := &FeedSupervisor{
		stream:         stream,
		ingestor:       ingestor,
		cache:          cache,
		alerts:         alerts,
		metrics:        metrics,
		log:            log,
		initialBackoff: time.Second,
		maxBackoff:     60 * time.Second,
		staleAfter:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State reports the current lifecycle state.
func (s *FeedSupervisor) State() FeedState {
	return FeedState(s.state.Load())
}

func (s *FeedSupervisor) setState(st FeedState) {
	s.state.Store(int32(st))
	if st == FeedConnected {
		s.metrics.SetFeedConnected(true)
	} else {
		s.metrics.SetFeedConnected(false)
	}
}

// Run drives the connect/read/reconnect loop until ctx is cancelled.
func (s *FeedSupervisor) Run(ctx context.Context) {
	go s.watchStaleness(ctx)

	backoff := s.initialBackoff
	for {
		if ctx.Err() != nil {
			s.setState(FeedDisconnected)
			return
		}

		s.setState(FeedConnecting)
		if err := s.connect(ctx); err != nil {
			s.log.Warn("feed connect failed",
				logger.Error(err),
				logger.Duration("retry_in", backoff))
			s.setState(FeedBackoff)
			if !s.sleep(ctx, backoff) {
				return
			}
			backoff = s.nextBackoff(backoff)
			continue
		}

		s.setState(FeedConnected)
		s.log.Info("feed connected")
		backoff = s.initialBackoff
		s.lastTick.Store(time.Now().UnixNano())

		err := s.consume(ctx)
		_ = s.stream.Close()
		if ctx.Err() != nil {
			s.setState(FeedDisconnected)
			return
		}

		s.log.Warn("feed disconnected", logger.Error(err))
		s.setState(FeedBackoff)
		if !s.sleep(ctx, backoff) {
			return
		}
		backoff = s.nextBackoff(backoff)
	}
}

func (s *FeedSupervisor) connect(ctx context.Context) error {
	if err := s.stream.Connect(ctx); err != nil {
		return err
	}
	if err := s.stream.Subscribe(ctx); err != nil {
		_ = s.stream.Close()
		return err
	}
	return nil
}

// consume pumps ticks into the ingestor until the stream fails or ctx ends.
func (s *FeedSupervisor) consume(ctx context.Context) error {
	ticks, errs := s.stream.Read(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errs:
			return err
		case t, ok := <-ticks:
			if !ok {
				return nil
			}
			s.lastTick.Store(time.Now().UnixNano())
			s.alerts.Suspend(false)
			if err := s.ingestor.Process(ctx, t); err != nil {
				s.log.Debug("tick rejected", logger.Error(err))
			}
		}
	}
}

// watchStaleness flags cached prices stale and suspends alerts once the
// feed has been silent past staleAfter.
func (s *FeedSupervisor) watchStaleness(ctx context.Context) {
	interval := s.staleAfter / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			last := time.Unix(0, s.lastTick.Load())
			if time.Since(last) < s.staleAfter {
				continue
			}
			cutoff := time.Now().Add(-s.staleAfter)
			if n := s.cache.MarkStaleOlderThan(cutoff); n > 0 {
				s.log.Warn("feed silent, prices flagged stale",
					logger.Int("count", n),
					logger.Duration("silent_for", time.Since(last)))
			}
			s.alerts.Suspend(true)
		}
	}
}

// nextBackoff doubles the delay up to the cap and adds up to 25% jitter.
func (s *FeedSupervisor) nextBackoff(cur time.Duration) time.Duration {
	next := cur * 2
	if next > s.maxBackoff {
		next = s.maxBackoff
	}
	jitter := time.Duration(rand.Int63n(int64(next)/4 + 1))
	if next+jitter > s.maxBackoff {
		return s.maxBackoff
	}
	return next + jitter
}

func (s *FeedSupervisor) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
