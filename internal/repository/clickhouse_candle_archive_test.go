package repository

import (
	"testing"
	"time"

	"FXPulse/internal/domain/models"
)

type stubPool struct {
	closed int
}

func (s *stubPool) Close() error {
	s.closed++
	return nil
}

func TestArchiveCloseReleasesPool(t *testing.T) {
	p := &stubPool{}
	a := &ClickHouseCandleArchive{
		pool:       p,
		flushSize:  10,
		flushEvery: time.Hour,
		queue:      make(chan models.Candle, 4),
		done:       make(chan struct{}),
	}
	a.wg.Add(1)
	go a.run()

	if err := a.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if p.closed != 1 {
		t.Fatalf("pool closed %d times, want 1", p.closed)
	}
}
