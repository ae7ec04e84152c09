// Package engine drives the tape reader, indicator registry, broker
// simulator, metrics accumulator, and strategy plugin through one
// single-threaded, cooperative pass per spec's ordering: indicator update,
// broker mark-to-market, metrics snapshot, history append, strategy
// callback.
package engine

import (
	"fmt"
	"time"

	"chronotape/internal/broker"
	"chronotape/internal/indicators"
	"chronotape/internal/metrics"
	"chronotape/internal/runpack"
	"chronotape/internal/strategyabi"
	"chronotape/internal/tape"
)

// Result is the outcome of one completed run.
type Result struct {
	Series       *metrics.RunSeries
	Trades       []metrics.ClosedTradeRecord
	AccountBlown bool
	BarsReplayed int
}

// Run executes one full backtest per cfg and returns the accumulated
// series and trade log. No concurrency is used internally; this call is
// synchronous from first bar to last.
func Run(cfg Config) (*Result, error) {
	reader, err := tape.New(cfg.BaseDir, cfg.Symbol, cfg.Timeframe, cfg.StartYmd, cfg.EndYmd)
	if err != nil {
		return nil, fmt.Errorf("engine: constructing tape reader: %w", err)
	}
	defer reader.Close()

	reg := indicators.NewRegistry()
	acc := metrics.New(metrics.Config{
		InitialEquity:     cfg.InitialBalance,
		AnnualizationBars: cfg.AnnualizationBars,
	})

	br := broker.New(cfg.Spec, cfg.Costs, cfg.InitialBalance, acc.OnTradeClosed)

	strat, err := strategyabi.Load(cfg.PluginPath)
	if err != nil {
		return nil, fmt.Errorf("engine: loading strategy plugin: %w", err)
	}

	handle, err := strat.Create(cfg.PluginParams)
	if err != nil {
		return nil, fmt.Errorf("engine: strategy create failed: %w", err)
	}
	defer strat.Destroy(handle)

	for _, p := range cfg.RequiredEMAPeriods {
		reg.RequireEMA(p)
	}
	for _, p := range cfg.RequiredATRPeriods {
		reg.RequireATR(p)
	}

	ctx := &strategyabi.EngineCtx{
		GetFeature: func(ctx *strategyabi.EngineCtx, kind strategyabi.FeatureKind, period int) strategyabi.FeatureRef {
			var h []float64
			switch kind {
			case strategyabi.FeatureEMA:
				h = reg.HistoryEMA(period)
			case strategyabi.FeatureATR:
				h = reg.HistoryATR(period)
			}
			return strategyabi.FeatureRef{Data: h, Len: len(h)}
		},
		BuyMarket: func(ctx *strategyabi.EngineCtx, lots, sl, tp float32) uint64 {
			filled := br.BuyMarket(ctx.Bar.TsNs, ctx.Bar.Close, float64(lots))
			return fillIDOrZero(br, filled)
		},
		SellMarket: func(ctx *strategyabi.EngineCtx, lots, sl, tp float32) uint64 {
			filled := br.SellMarket(ctx.Bar.TsNs, ctx.Bar.Close, float64(lots))
			return fillIDOrZero(br, filled)
		},
		CloseAll: func(ctx *strategyabi.EngineCtx) uint64 {
			filled := br.CloseAll(ctx.Bar.TsNs, ctx.Bar.Close)
			return fillIDOrZero(br, filled)
		},
		Equity:       func(ctx *strategyabi.EngineCtx) float32 { return float32(br.Equity()) },
		Balance:      func(ctx *strategyabi.EngineCtx) float32 { return float32(br.Balance()) },
		PositionLots: func(ctx *strategyabi.EngineCtx) float32 { return float32(br.PositionLots()) },
		AvgEntry:     func(ctx *strategyabi.EngineCtx) float32 { return float32(br.AvgEntry()) },
	}

	strat.OnStart(handle, ctx)

	var barIdx uint64
	for {
		bar, ok, rerr := reader.Next()
		if rerr != nil {
			return nil, fmt.Errorf("engine: reading tape: %w", rerr)
		}
		if !ok {
			break
		}

		reg.Update(bar.Open, bar.High, bar.Low, bar.Close, bar.Volume)

		br.SetBarIndex(barIdx)
		br.OnBar(bar.TsNs, bar.Close)
		if br.AccountBlown() {
			break
		}

		acc.OnBar(int64(bar.TsNs), br.Balance(), br.Equity(), br.Unrealized(), br.PositionLots() != 0)
		reg.AppendHistory()

		ctx.Bar = strategyabi.BarView{
			TsNs:   bar.TsNs,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: bar.Volume,
			Index:  barIdx,
		}
		strat.OnBar(handle, ctx)

		barIdx++
	}

	strat.OnEnd(handle, ctx)
	acc.Finalize()

	return &Result{
		Series:       acc.Series(),
		Trades:       acc.Trades(),
		AccountBlown: br.AccountBlown(),
		BarsReplayed: int(barIdx),
	}, nil
}

// WriteRunPack finalizes a Result into a run-pack file at path, stamping
// the given metadata JSON alongside the series and trades.
func WriteRunPack(path string, metaJSON []byte, res *Result) error {
	return runpack.Write(path, runpack.Meta{
		JSON:      metaJSON,
		CreatedMs: uint64(time.Now().UnixMilli()),
	}, res.Series, res.Trades)
}

func fillIDOrZero(br *broker.Broker, filledLots float64) uint64 {
	if filledLots <= 0 {
		return 0
	}
	fills := br.Fills()
	if len(fills) == 0 {
		return 0
	}
	return fills[len(fills)-1].ID
}
