// Package broker implements the netting position simulator: weighted-
// average entry on adds, partial-close realization and flip semantics on
// opposite-direction fills, and a spread/slippage/commission cost model.
package broker

import "math"

// Side is the direction of a fill or a closed trade's originating position.
type Side int

const (
	Long Side = 1
	Flat Side = 0
	Short Side = -1
)

// SymbolSpec describes the instrument's price and contract conventions.
type SymbolSpec struct {
	PipSize float64
	LotSize float64
}

// CostsModel describes the transaction cost model applied to every fill.
type CostsModel struct {
	SpreadPips       float64
	SlippagePips     float64
	CommissionPerLot float64
}

// Fill is one executed market order, appended to the broker's append-only
// fill log.
type Fill struct {
	ID         uint64
	TsNs       uint64
	Side       Side
	Lots       float64
	Price      float64
	Commission float64
	// RealizedPnl is reserved and always 0 on the fill record; ClosedTrade
	// is the authoritative record of realization.
	RealizedPnl float64
}

// ClosedTrade records the realization of all or part of a position.
type ClosedTrade struct {
	Side         Side
	LotsClosed   float64
	EntryTsNs    uint64
	EntryBarIdx  uint64
	ExitTsNs     uint64
	ExitBarIdx   uint64
	EntryPrice   float64
	ExitPrice    float64
	RealizedPnl  float64
	Commission   float64
}

// OnTradeClosed is invoked synchronously whenever a fill realizes all or
// part of a position.
type OnTradeClosed func(ClosedTrade)

// Broker owns balance, equity, the net position, and the fill log for a
// single instrument.
type Broker struct {
	spec  SymbolSpec
	costs CostsModel

	balance      float64
	equity       float64
	unrealized   float64
	positionLots float64
	avgEntry     float64
	lastMid      float64

	entryTsNs   uint64
	entryBarIdx uint64

	nextFillID uint64
	fills      []Fill

	accountBlown bool
	curBarIdx    uint64

	onTradeClosed OnTradeClosed
}

// New constructs a Broker with the given spec, cost model, and initial
// balance. onTradeClosed may be nil.
func New(spec SymbolSpec, costs CostsModel, initialBalance float64, onTradeClosed OnTradeClosed) *Broker {
	return &Broker{
		spec:          spec,
		costs:         costs,
		balance:       initialBalance,
		equity:        initialBalance,
		avgEntry:      math.NaN(),
		onTradeClosed: onTradeClosed,
	}
}

// SetBarIndex stamps the bar index the broker should attribute to fills
// emitted until the next call. The engine loop calls this once per bar.
func (b *Broker) SetBarIndex(idx uint64) { b.curBarIdx = idx }

// Balance, Equity, Unrealized, PositionLots, AvgEntry, AccountBlown are
// state queries exposed to the strategy plugin ABI.
func (b *Broker) Balance() float64      { return b.balance }
func (b *Broker) Equity() float64       { return b.equity }
func (b *Broker) Unrealized() float64   { return b.unrealized }
func (b *Broker) PositionLots() float64 { return b.positionLots }
func (b *Broker) AvgEntry() float64     { return b.avgEntry }
func (b *Broker) AccountBlown() bool    { return b.accountBlown }
func (b *Broker) Fills() []Fill         { return b.fills }

// OnBar records the new mid, recomputes unrealized pnl and equity, and
// blows the account if equity drops to or below zero.
func (b *Broker) OnBar(tsNs uint64, mid float64) {
	_ = tsNs
	b.lastMid = mid
	if b.positionLots != 0 {
		b.unrealized = (mid - b.avgEntry) * b.positionLots * b.spec.LotSize
	} else {
		b.unrealized = 0
	}
	b.equity = b.balance + b.unrealized

	if b.equity <= 0 && !b.accountBlown {
		b.balance = 0
		b.equity = 0
		b.unrealized = 0
		b.positionLots = 0
		b.avgEntry = math.NaN()
		b.accountBlown = true
	}
}

// BuyMarket submits a long market order for lots units; returns the filled
// lots (0 on a no-op: non-positive size or a blown account).
func (b *Broker) BuyMarket(tsNs uint64, mid float64, lots float64) float64 {
	return b.exec(tsNs, mid, lots, Long)
}

// SellMarket submits a short market order for lots units.
func (b *Broker) SellMarket(tsNs uint64, mid float64, lots float64) float64 {
	return b.exec(tsNs, mid, lots, Short)
}

// CloseAll issues an opposite-side fill sized to flatten the current
// position. Returns 0 if already flat.
func (b *Broker) CloseAll(tsNs uint64, mid float64) float64 {
	if b.positionLots == 0 {
		return 0
	}
	if b.positionLots > 0 {
		return b.exec(tsNs, mid, b.positionLots, Short)
	}
	return b.exec(tsNs, mid, -b.positionLots, Long)
}

// exec validates the request, computes the fill price and commission,
// applies the fill to position state exactly once, records the fill, and
// refreshes the mark-to-market. Applying a fill twice is the documented
// defect this implementation avoids.
func (b *Broker) exec(tsNs uint64, mid float64, lots float64, side Side) float64 {
	if lots <= 0 || b.accountBlown {
		return 0
	}

	halfSpread := 0.5 * b.costs.SpreadPips * b.spec.PipSize
	slip := b.costs.SlippagePips * b.spec.PipSize

	var fillPrice float64
	if side == Long {
		fillPrice = mid + halfSpread + slip
	} else {
		fillPrice = mid - halfSpread - slip
	}
	commission := b.costs.CommissionPerLot * lots

	b.applyFill(tsNs, side, lots, fillPrice, commission)

	b.balance -= commission
	b.nextFillID++
	b.fills = append(b.fills, Fill{
		ID:         b.nextFillID,
		TsNs:       tsNs,
		Side:       side,
		Lots:       lots,
		Price:      fillPrice,
		Commission: commission,
	})

	b.OnBar(tsNs, mid)
	return lots
}

// applyFill mutates position state for a single fill, per the netting
// algorithm: same-sign adds weighted-average the entry, opposite-sign
// fills realize pnl on the reduced portion and flip or flatten as needed.
func (b *Broker) applyFill(tsNs uint64, side Side, lots, fillPrice, commission float64) {
	signedNew := float64(side) * lots

	if b.positionLots == 0 {
		b.positionLots = signedNew
		b.avgEntry = fillPrice
		b.entryTsNs = tsNs
		b.entryBarIdx = b.curBarIdx
		return
	}

	sameSign := (b.positionLots > 0) == (signedNew > 0)
	if sameSign {
		oldMag := math.Abs(b.positionLots)
		newMag := math.Abs(signedNew)
		b.avgEntry = (b.avgEntry*oldMag + fillPrice*newMag) / (oldMag + newMag)
		b.positionLots += signedNew
		return
	}

	oldMag := math.Abs(b.positionLots)
	newMag := math.Abs(signedNew)
	reduce := math.Min(oldMag, newMag)

	var pnl float64
	var originalSide Side
	if b.positionLots > 0 {
		pnl = (fillPrice - b.avgEntry) * reduce * b.spec.LotSize
		originalSide = Long
	} else {
		pnl = (b.avgEntry - fillPrice) * reduce * b.spec.LotSize
		originalSide = Short
	}
	b.balance += pnl

	trade := ClosedTrade{
		Side:        originalSide,
		LotsClosed:  reduce,
		EntryTsNs:   b.entryTsNs,
		EntryBarIdx: b.entryBarIdx,
		ExitTsNs:    tsNs,
		ExitBarIdx:  b.curBarIdx,
		EntryPrice:  b.avgEntry,
		ExitPrice:   fillPrice,
		RealizedPnl: pnl,
		Commission:  commission,
	}

	netSigned := b.positionLots + signedNew
	switch {
	case math.Abs(netSigned) < 1e-9:
		b.positionLots = 0
		b.avgEntry = math.NaN()
	case newMag < oldMag:
		b.positionLots = netSigned
		// avg_entry unchanged
	default: // flip
		b.positionLots = netSigned
		b.avgEntry = fillPrice
		b.entryTsNs = tsNs
		b.entryBarIdx = b.curBarIdx
	}

	if b.onTradeClosed != nil {
		b.onTradeClosed(trade)
	}
}
