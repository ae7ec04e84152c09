package runpack

import (
	"os"
	"path/filepath"
	"testing"

	"chronotape/internal/metrics"
)

func sampleSeries() *metrics.RunSeries {
	acc := metrics.New(metrics.Config{InitialEquity: 1000, AnnualizationBars: 1440})
	acc.OnBar(1_000_000_000, 1000, 1000, 0, false)
	acc.OnBar(2_000_000_000, 1010, 1010, 0, false)
	acc.OnBar(3_000_000_000, 990, 990, 0, false)
	acc.Finalize()
	return acc.Series()
}

func TestWriteThenOpenRoundTrips(t *testing.T) {
	series := sampleSeries()
	trades := []metrics.ClosedTradeRecord{
		{EntryTsNs: 1, ExitTsNs: 2, EntryBarIdx: 0, ExitBarIdx: 1, Side: 1, LotsClosed: 2, EntryPrice: 1.1, ExitPrice: 1.2, Pnl: 200, PnlR: 1.5, Mae: -10, Mfe: 50, Commission: 7.5},
	}

	path := filepath.Join(t.TempDir(), "run.runpack")
	meta := Meta{JSON: []byte(`{"symbol":"EURUSD"}`), CreatedMs: 123}

	if err := Write(path, meta, series, trades); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	pack, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if string(pack.Meta) != string(meta.JSON) {
		t.Fatalf("meta mismatch: got %q, want %q", pack.Meta, meta.JSON)
	}

	ts, err := pack.Int64Column("ts")
	if err != nil {
		t.Fatalf("reading ts column: %v", err)
	}
	if len(ts) != 3 || ts[0] != 1_000_000_000 {
		t.Fatalf("ts column mismatch: %v", ts)
	}

	equity, err := pack.Float64Column("equity")
	if err != nil {
		t.Fatalf("reading equity column: %v", err)
	}
	if len(equity) != 3 || equity[2] != 990 {
		t.Fatalf("equity column mismatch: %v", equity)
	}

	got := pack.Trades()
	if len(got) != 1 || got[0].Pnl != 200 || got[0].Side != 1 || got[0].Commission != 7.5 {
		t.Fatalf("trades mismatch: %+v", got)
	}
}

func TestOpenRejectsBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.runpack")
	series := sampleSeries()
	if err := Write(path, Meta{}, series, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}
	data[0] ^= 0xFF
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("rewriting: %v", err)
	}

	if _, err := Open(path); err == nil {
		t.Fatal("expected an error opening a file with corrupted magic")
	}
}
