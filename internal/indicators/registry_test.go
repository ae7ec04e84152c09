package indicators

import (
	"math"
	"testing"
)

func TestRegistryRequireIsIdempotent(t *testing.T) {
	r := NewRegistry()
	a := r.RequireEMA(5)
	b := r.RequireEMA(5)
	if a != b {
		t.Fatal("expected the same EMA stream pointer for repeated RequireEMA(5)")
	}
}

func TestRegistryBackfillsHistoryForLateRequire(t *testing.T) {
	r := NewRegistry()
	r.Update(1, 1, 1, 1, 0)
	r.AppendHistory()
	r.Update(2, 2, 2, 2, 0)
	r.AppendHistory()

	r.RequireEMA(3) // required after two bars already elapsed
	hist := r.HistoryEMA(3)
	if len(hist) != 2 {
		t.Fatalf("expected backfilled history of length 2, got %d", len(hist))
	}
	for i, v := range hist {
		if !math.IsNaN(v) {
			t.Fatalf("backfilled slot %d: want NaN, got %v", i, v)
		}
	}
}

func TestRegistryAppendHistoryTracksReadiness(t *testing.T) {
	r := NewRegistry()
	r.RequireEMA(2)

	r.Update(10, 10, 10, 10, 0)
	r.AppendHistory()
	r.Update(12, 12, 12, 12, 0)
	r.AppendHistory()

	hist := r.HistoryEMA(2)
	if len(hist) != 2 {
		t.Fatalf("want 2 entries, got %d", len(hist))
	}
	if hist[0] != 10 {
		t.Fatalf("first value should be the seed 10, got %v", hist[0])
	}
}
