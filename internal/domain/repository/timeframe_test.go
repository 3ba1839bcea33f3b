package repository

import (
	"testing"
	"time"
)

func TestNormalizeTimeframe(t *testing.T) {
	if got := NormalizeTimeframe(""); got != TF1h {
		t.Fatalf("empty should default to 1h, got %s", got)
	}
	if got := NormalizeTimeframe("5m"); got != TF5m {
		t.Fatalf("valid timeframe mangled: %s", got)
	}
	if got := NormalizeTimeframe("7m"); got != TF1h {
		t.Fatalf("unknown should default to 1h, got %s", got)
	}
}

func TestTimeframeDuration(t *testing.T) {
	cases := map[Timeframe]time.Duration{
		TF1m:  time.Minute,
		TF5m:  5 * time.Minute,
		TF15m: 15 * time.Minute,
		TF1h:  time.Hour,
		TF4h:  4 * time.Hour,
	}
	for tf, want := range cases {
		if got := tf.Duration(); got != want {
			t.Fatalf("%s.Duration() = %v, want %v", tf, got, want)
		}
	}
}

func TestAllTimeframesAscending(t *testing.T) {
	all := AllTimeframes()
	for i := 1; i < len(all); i++ {
		if all[i].Duration() <= all[i-1].Duration() {
			t.Fatalf("timeframes not ascending at %d: %v", i, all)
		}
	}
}
