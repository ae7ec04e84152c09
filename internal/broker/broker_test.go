package broker

import (
	"math"
	"testing"
)

func testSpec() SymbolSpec { return SymbolSpec{PipSize: 0.0001, LotSize: 100000} }

func TestSpreadOnlyBuyThenClose(t *testing.T) {
	costs := CostsModel{SpreadPips: 1.0}
	b := New(testSpec(), costs, 10_000, nil)

	b.SetBarIndex(0)
	b.BuyMarket(1, 1.2000, 1)
	if diff := b.AvgEntry() - 1.20005; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("fill price: got %v, want 1.20005", b.AvgEntry())
	}

	b.SetBarIndex(1)
	b.CloseAll(2, 1.2000)
	if b.PositionLots() != 0 {
		t.Fatalf("expected flat after CloseAll, got %v lots", b.PositionLots())
	}

	want := -10.0 // half spread round trip on 1 lot of 100000 units at 0.0001 pip size
	if diff := b.Balance() - (10_000 + want); diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("balance after round trip: got %v, want %v", b.Balance(), 10_000+want)
	}
}

func TestFlipRealizesThenOpensOpposite(t *testing.T) {
	b := New(testSpec(), CostsModel{}, 100_000, nil)

	b.SetBarIndex(0)
	b.BuyMarket(1, 1.0, 2)
	if b.PositionLots() != 2 {
		t.Fatalf("expected long 2 lots, got %v", b.PositionLots())
	}

	b.SetBarIndex(1)
	b.SellMarket(2, 1.1, 3)

	if b.PositionLots() != -1 {
		t.Fatalf("expected flipped short 1 lot, got %v", b.PositionLots())
	}
	if diff := b.AvgEntry() - 1.1; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("new short entry: got %v, want 1.1", b.AvgEntry())
	}

	want := 100_000 + 20000.0 // initial balance + (1.1-1.0) * 2 lots * 100000 lot size
	if diff := b.Balance() - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("realized pnl: got %v, want %v", b.Balance(), want)
	}
}

func TestSameSignAddsWeightAverageEntry(t *testing.T) {
	b := New(testSpec(), CostsModel{}, 100_000, nil)
	b.SetBarIndex(0)
	b.BuyMarket(1, 1.0, 1)
	b.SetBarIndex(1)
	b.BuyMarket(2, 1.2, 1)

	want := 1.1 // (1.0*1 + 1.2*1) / 2
	if diff := b.AvgEntry() - want; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("weighted avg entry: got %v, want %v", b.AvgEntry(), want)
	}
	if b.PositionLots() != 2 {
		t.Fatalf("expected 2 lots, got %v", b.PositionLots())
	}
}

func TestAccountBlowsAtZeroEquity(t *testing.T) {
	b := New(testSpec(), CostsModel{}, 100, nil)
	b.SetBarIndex(0)
	b.BuyMarket(1, 1.0, 1)
	b.OnBar(2, 1.0-100.0/100000.0-0.001) // drive equity to <= 0

	if !b.AccountBlown() {
		t.Fatal("expected account to be blown")
	}
	if b.Equity() != 0 || b.Balance() != 0 {
		t.Fatalf("blown account should clamp balance/equity to 0, got balance=%v equity=%v", b.Balance(), b.Equity())
	}
	if !math.IsNaN(b.AvgEntry()) {
		t.Fatalf("blown account should clear avg entry to NaN, got %v", b.AvgEntry())
	}

	filled := b.BuyMarket(3, 1.0, 1)
	if filled != 0 {
		t.Fatal("expected orders to no-op once the account is blown")
	}
}

func TestClosedTradeCarriesClosingFillCommission(t *testing.T) {
	var got ClosedTrade
	costs := CostsModel{CommissionPerLot: 3.5}
	b := New(testSpec(), costs, 100_000, func(t ClosedTrade) { got = t })

	b.SetBarIndex(0)
	b.BuyMarket(1, 1.0, 2)
	b.SetBarIndex(1)
	b.SellMarket(2, 1.1, 2) // closes the long; commission on this closing fill is 2*3.5=7

	if diff := got.Commission - 7.0; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("closed trade commission: got %v, want 7", got.Commission)
	}
}

func TestExecAppliesFillExactlyOnce(t *testing.T) {
	var closes int
	b := New(testSpec(), CostsModel{}, 100_000, func(ClosedTrade) { closes++ })
	b.SetBarIndex(0)
	b.BuyMarket(1, 1.0, 1)
	b.SetBarIndex(1)
	b.SellMarket(2, 1.1, 1) // fully closes the long exactly once

	if closes != 1 {
		t.Fatalf("expected exactly one ClosedTrade callback, got %d", closes)
	}
	if b.PositionLots() != 0 {
		t.Fatalf("expected flat, got %v lots", b.PositionLots())
	}
}
