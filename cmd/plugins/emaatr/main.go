// Package main is a reference strategy plugin: an EMA(26)/EMA(100) crossover
// gated by ATR(14), built with `go build -buildmode=plugin`. It exercises
// GetFeature, the order actions, and the PositionLots accessor of
// strategyabi.EngineCtx (not Equity, Balance, or AvgEntry), and exists to
// validate the ABI end to end, not to be a production-grade system.
//
// Adapted down from a self-contained EMA/ATR backtest into a pure
// EngineCtx consumer: all indicator math, fills, and bookkeeping now live
// on the engine side of the boundary; this file only decides when to buy,
// sell, or flatten.
package main

import (
	"encoding/json"
	"math"

	"chronotape/internal/strategyabi"
)

const (
	fastEMA = 26
	slowEMA = 100
	atrLen  = 14
)

type params struct {
	LotSize   float64 `json:"lot_size"`
	ATRStopOn bool    `json:"atr_stop_on"`
}

type state struct {
	p          params
	wasAbove   bool
	haveSignal bool
}

func strategyCreate(paramsJSON string) (strategyabi.Handle, error) {
	p := params{LotSize: 1.0, ATRStopOn: true}
	if paramsJSON != "" {
		if err := json.Unmarshal([]byte(paramsJSON), &p); err != nil {
			return nil, err
		}
	}
	return &state{p: p}, nil
}

func strategyDestroy(h strategyabi.Handle) {}

func strategyOnStart(h strategyabi.Handle, ctx *strategyabi.EngineCtx) {}

func strategyOnBar(h strategyabi.Handle, ctx *strategyabi.EngineCtx) {
	st := h.(*state)

	fast := ctx.GetFeature(ctx, strategyabi.FeatureEMA, fastEMA)
	slow := ctx.GetFeature(ctx, strategyabi.FeatureEMA, slowEMA)
	atrRef := ctx.GetFeature(ctx, strategyabi.FeatureATR, atrLen)

	if fast.Len == 0 || slow.Len == 0 {
		return
	}
	fastVal := fast.Data[fast.Len-1]
	slowVal := slow.Data[slow.Len-1]
	if math.IsNaN(fastVal) || math.IsNaN(slowVal) {
		return
	}

	above := fastVal > slowVal

	if !st.haveSignal {
		st.wasAbove = above
		st.haveSignal = true
		return
	}

	crossedUp := above && !st.wasAbove
	crossedDown := !above && st.wasAbove
	st.wasAbove = above

	var atrVal float64
	if atrRef.Len > 0 {
		atrVal = atrRef.Data[atrRef.Len-1]
	}
	if st.p.ATRStopOn && (atrVal == 0 || math.IsNaN(atrVal)) {
		// ATR not warmed up yet; skip entries that depend on it.
		return
	}

	lots := float32(st.p.LotSize)

	switch {
	case crossedUp:
		if ctx.PositionLots(ctx) < 0 {
			ctx.CloseAll(ctx)
		}
		if ctx.PositionLots(ctx) == 0 {
			ctx.BuyMarket(ctx, lots, 0, 0)
		}
	case crossedDown:
		if ctx.PositionLots(ctx) > 0 {
			ctx.CloseAll(ctx)
		}
		if ctx.PositionLots(ctx) == 0 {
			ctx.SellMarket(ctx, lots, 0, 0)
		}
	}
}

func strategyOnEnd(h strategyabi.Handle, ctx *strategyabi.EngineCtx) {
	ctx.CloseAll(ctx)
}

// The five required exports. Go plugins resolve package-level identifiers
// by name via plugin.Lookup, so these must stay exported and unrenamed.
// plugin.Lookup returns a pointer to the variable's static type, and a type
// assertion only succeeds against an exact dynamic type — so each var is
// declared with its strategyabi.*Func type explicitly, not inferred from
// the assigned function, to match what the loader asserts against.
var (
	Strategy_create   strategyabi.CreateFunc  = strategyCreate
	Strategy_destroy  strategyabi.DestroyFunc = strategyDestroy
	Strategy_on_start strategyabi.OnStartFunc = strategyOnStart
	Strategy_on_bar   strategyabi.OnBarFunc   = strategyOnBar
	Strategy_on_end   strategyabi.OnEndFunc   = strategyOnEnd
)

func main() {}
