package engine

import (
	"testing"

	"chronotape/internal/broker"
)

func TestBuildManifestHashIsStableForEqualConfig(t *testing.T) {
	cfgA := Config{
		Symbol: "EURUSD", Timeframe: "1m", StartYmd: 20240101, EndYmd: 20240102,
		Spec: broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000},
	}
	cfgB := cfgA

	res := &Result{BarsReplayed: 100}

	ma, err := BuildManifest(cfgA, res)
	if err != nil {
		t.Fatalf("BuildManifest A: %v", err)
	}
	mb, err := BuildManifest(cfgB, res)
	if err != nil {
		t.Fatalf("BuildManifest B: %v", err)
	}

	if ma.ConfigHash != mb.ConfigHash {
		t.Fatalf("expected identical config hashes, got %q vs %q", ma.ConfigHash, mb.ConfigHash)
	}
	if ma.ConfigHash == "" {
		t.Fatal("expected a non-empty config hash")
	}
}

func TestBuildManifestHashChangesWithCosts(t *testing.T) {
	cfgA := Config{Spec: broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000}}
	cfgB := Config{Spec: broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000}, Costs: broker.CostsModel{SpreadPips: 1}}

	res := &Result{}
	ma, _ := BuildManifest(cfgA, res)
	mb, _ := BuildManifest(cfgB, res)

	if ma.ConfigHash == mb.ConfigHash {
		t.Fatal("expected differing cost models to produce differing config hashes")
	}
}
