// Command backtest runs a single symbol through the engine and writes its
// run-pack to disk. It is the one-shot CLI front end; cmd/server wraps the
// same engine.Run call behind HTTP for fleet-scale use.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"chronotape/internal/arrowpipeline"
	"chronotape/internal/broker"
	"chronotape/internal/engine"
	"chronotape/internal/logging"
)

func main() {
	var (
		baseDir        = flag.String("base-dir", "./data", "tape root directory")
		symbol         = flag.String("symbol", "", "instrument symbol (required)")
		timeframe      = flag.String("timeframe", "1m", "bar timeframe")
		startYmd       = flag.Int("start", 0, "first day, yyyymmdd (required)")
		endYmd         = flag.Int("end", 0, "last day inclusive, yyyymmdd (required)")
		pluginPath     = flag.String("plugin", "", "strategy plugin .so path (required)")
		pluginParams   = flag.String("plugin-params", "", "opaque params string passed to the strategy")
		pipSize        = flag.Float64("pip-size", 0.0001, "instrument pip size")
		lotSize        = flag.Float64("lot-size", 100000, "instrument lot size")
		spreadPips     = flag.Float64("spread-pips", 1.0, "round-trip spread in pips")
		slippagePips   = flag.Float64("slippage-pips", 0.0, "added slippage in pips")
		commissionLot  = flag.Float64("commission-per-lot", 0.0, "commission charged per lot")
		initialBalance = flag.Float64("initial-balance", 100_000, "starting account balance")
		annBars        = flag.Int("annualization-bars", 252*24*60, "bars per year, for Sharpe/Sortino annualization")
		requireEMA     = flag.String("require-ema", "", "comma-separated EMA periods the strategy needs")
		requireATR     = flag.String("require-atr", "", "comma-separated ATR periods the strategy needs")
		outPath        = flag.String("out", "", "run-pack output path (required)")
		arrowOutPath   = flag.String("arrow-out", "", "optional Arrow IPC export path for the run series")
		dev            = flag.Bool("dev", false, "use a human-readable development logger")
	)
	flag.Parse()

	logger, err := logging.New(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "backtest: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *symbol == "" || *startYmd == 0 || *endYmd == 0 || *pluginPath == "" || *outPath == "" {
		logger.Error("missing required flags", zap.String("usage", "-symbol -start -end -plugin -out are required"))
		os.Exit(1)
	}

	cfg := engine.Config{
		BaseDir:   *baseDir,
		Symbol:    *symbol,
		Timeframe: *timeframe,
		StartYmd:  *startYmd,
		EndYmd:    *endYmd,

		Spec: broker.SymbolSpec{PipSize: *pipSize, LotSize: *lotSize},
		Costs: broker.CostsModel{
			SpreadPips:       *spreadPips,
			SlippagePips:     *slippagePips,
			CommissionPerLot: *commissionLot,
		},

		InitialBalance: *initialBalance,

		PluginPath:   *pluginPath,
		PluginParams: *pluginParams,

		RequiredEMAPeriods: parsePeriods(*requireEMA),
		RequiredATRPeriods: parsePeriods(*requireATR),

		AnnualizationBars: *annBars,
	}

	log := logging.WithRun(logger, "", *symbol, *timeframe)
	log.Info("starting backtest",
		zap.Int("start_ymd", *startYmd),
		zap.Int("end_ymd", *endYmd),
		zap.String("plugin", *pluginPath),
	)

	res, err := engine.Run(cfg)
	if err != nil {
		log.Error("backtest failed", zap.Error(err))
		os.Exit(1)
	}

	manifest, err := engine.BuildManifest(cfg, res)
	if err != nil {
		log.Error("building manifest failed", zap.Error(err))
		os.Exit(1)
	}
	metaJSON, err := json.Marshal(manifest)
	if err != nil {
		log.Error("marshaling manifest failed", zap.Error(err))
		os.Exit(1)
	}

	if err := engine.WriteRunPack(*outPath, metaJSON, res); err != nil {
		log.Error("writing run-pack failed", zap.Error(err))
		os.Exit(1)
	}

	if *arrowOutPath != "" {
		if err := writeArrowExport(*arrowOutPath, res); err != nil {
			log.Error("writing arrow export failed", zap.Error(err))
			os.Exit(1)
		}
		log.Info("arrow export written", zap.String("out", *arrowOutPath))
	}

	log.Info("backtest complete",
		zap.Int("bars_replayed", res.BarsReplayed),
		zap.Bool("account_blown", res.AccountBlown),
		zap.Int("trades", len(res.Trades)),
		zap.String("out", *outPath),
	)
}

// writeArrowExport streams the run's series to an Arrow IPC file, for
// analysis tooling that reads Arrow rather than the run-pack binary format.
func writeArrowExport(path string, res *engine.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating arrow export: %w", err)
	}

	p := arrowpipeline.New(arrowpipeline.Config{})
	if err := p.WriteIPC(f, res.Series); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func parsePeriods(csv string) []int {
	if csv == "" {
		return nil
	}
	var out []int
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				var v int
				fmt.Sscanf(csv[start:i], "%d", &v)
				if v > 0 {
					out = append(out, v)
				}
			}
			start = i + 1
		}
	}
	return out
}
