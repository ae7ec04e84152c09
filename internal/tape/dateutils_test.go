package tape

import "testing"

func TestNextDayRollsOverMonthAndYear(t *testing.T) {
	cases := []struct {
		in, want int
	}{
		{20240115, 20240116},
		{20240131, 20240201},
		{20241231, 20250101},
		{20240228, 20240229}, // 2024 is a leap year
		{20230228, 20230301}, // 2023 is not
	}
	for _, c := range cases {
		if got := NextDay(c.in); got != c.want {
			t.Errorf("NextDay(%d) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestTapePathLayout(t *testing.T) {
	got := TapePath("/data", "EURUSD", "1m", 20240115)
	want := "/data/bars/EURUSD/1m/2024/EURUSD_20240115.tape"
	if got != want {
		t.Errorf("TapePath = %q, want %q", got, want)
	}
}

func TestBarNanosKnownTimeframes(t *testing.T) {
	n, ok := BarNanos("1m")
	if !ok || n != 60_000_000_000 {
		t.Fatalf("BarNanos(1m) = %d, %v", n, ok)
	}
	if _, ok := BarNanos("3m"); ok {
		t.Fatal("expected 3m to be unrecognized")
	}
}
