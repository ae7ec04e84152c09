package indicators

import (
	"math"
	"testing"
)

func TestATRWarmupThenWilder(t *testing.T) {
	a := NewATR(2)

	if v := a.Update(2, 1, 1.5); !math.IsNaN(v) {
		t.Fatalf("expected NaN during warmup, got %v", v)
	}
	if a.Ready() {
		t.Fatal("should not be ready after one sample with period 2")
	}

	v := a.Update(3, 1, 2)
	if !a.Ready() {
		t.Fatal("expected ready after period samples")
	}
	if diff := v - 1.5; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("seeded wilder: got %v, want 1.5", v)
	}

	v = a.Update(4, 2, 3)
	if diff := v - 1.75; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("smoothed wilder: got %v, want 1.75", v)
	}
}
