package engine

import (
	"testing"

	"chronotape/internal/broker"
)

func TestFillIDOrZeroReportsZeroOnNoOpOrder(t *testing.T) {
	b := broker.New(broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000}, broker.CostsModel{}, 1000, nil)
	if got := fillIDOrZero(b, 0); got != 0 {
		t.Fatalf("expected 0 for a rejected order, got %d", got)
	}
}

func TestFillIDOrZeroReturnsLastFillID(t *testing.T) {
	b := broker.New(broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000}, broker.CostsModel{}, 1000, nil)
	b.SetBarIndex(0)
	filled := b.BuyMarket(1, 1.1, 1)

	if got := fillIDOrZero(b, filled); got != 1 {
		t.Fatalf("expected fill ID 1, got %d", got)
	}
}
