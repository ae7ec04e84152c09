// Command tapegen reads canonical OHLCV bars out of ClickHouse and writes
// them out as one .tape file per calendar day, in the layout internal/tape
// expects: {out-dir}/bars/{symbol}/{timeframe}/{yyyy}/{symbol}_{yyyymmdd}.tape
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"chronotape/internal/clickhouse"
	"chronotape/internal/logging"
	"chronotape/internal/tape"
)

func main() {
	var (
		dsn       = flag.String("ch-url", "clickhouse://localhost:9000", "ClickHouse DSN")
		db        = flag.String("db", "default", "ClickHouse database")
		table     = flag.String("table", "bars", "ClickHouse table holding canonical OHLCV rows")
		symbol    = flag.String("symbol", "", "instrument symbol (required)")
		timeframe = flag.String("timeframe", "1m", "bar timeframe")
		fromYmd   = flag.Int("from", 0, "first day, yyyymmdd (required)")
		toYmd     = flag.Int("to", 0, "last day inclusive, yyyymmdd (required)")
		outDir    = flag.String("out-dir", "./data", "tape root directory")
		dev       = flag.Bool("dev", false, "use a human-readable development logger")
	)
	flag.Parse()

	logger, err := logging.New(*dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "tapegen: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if *symbol == "" || *fromYmd == 0 || *toYmd == 0 {
		logger.Error("missing required flags", zap.String("usage", "-symbol -from -to are required"))
		os.Exit(1)
	}

	barNanos, ok := tape.BarNanos(*timeframe)
	if !ok {
		logger.Error("unrecognized timeframe", zap.String("timeframe", *timeframe))
		os.Exit(1)
	}

	client, err := clickhouse.NewClient(clickhouse.Config{DSN: *dsn, DB: *db, Table: *table})
	if err != nil {
		logger.Error("connecting to clickhouse", zap.Error(err))
		os.Exit(1)
	}
	defer client.Close()

	ctx := context.Background()
	written := 0
	for day := *fromYmd; day <= *toYmd; day = tape.NextDay(day) {
		fromMs, toMs := clickhouse.DayRange(day)
		rows, err := client.QueryBars(ctx, *symbol, *timeframe, fromMs, toMs)
		if err != nil {
			logger.Error("querying day", zap.Int("day", day), zap.Error(err))
			os.Exit(1)
		}
		if len(rows) == 0 {
			continue
		}

		if err := writeDay(*outDir, *symbol, *timeframe, day, barNanos, rows); err != nil {
			logger.Error("writing tape", zap.Int("day", day), zap.Error(err))
			os.Exit(1)
		}
		written++
		logger.Info("wrote tape", zap.Int("day", day), zap.Int("bars", len(rows)))
	}

	logger.Info("tapegen complete", zap.Int("days_written", written))
}

func writeDay(outDir, symbol, timeframe string, day int, barNanos int64, rows []clickhouse.Bar) error {
	path := tape.TapePath(outDir, symbol, timeframe, day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("tapegen: creating %s: %w", filepath.Dir(path), err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tapegen: creating %s: %w", path, err)
	}
	defer f.Close()

	startNs := uint64(rows[0].TsMs) * 1_000_000
	endNs := startNs + uint64(len(rows)-1)*uint64(barNanos)

	hdr := tape.EncodeHeader(tape.TapeHeader{
		StartTsNs:   startNs,
		EndTsNs:     endNs,
		RecordCount: uint64(len(rows)),
	})
	if _, err := f.Write(hdr[:]); err != nil {
		return fmt.Errorf("tapegen: writing header: %w", err)
	}

	for i, r := range rows {
		bar := tape.Bar{
			TsNs:   startNs + uint64(i)*uint64(barNanos),
			Open:   r.Open.InexactFloat64(),
			High:   r.High.InexactFloat64(),
			Low:    r.Low.InexactFloat64(),
			Close:  r.Close.InexactFloat64(),
			Volume: float32(r.Volume.InexactFloat64()),
		}
		enc := tape.EncodeBar(bar)
		if _, err := f.Write(enc[:]); err != nil {
			return fmt.Errorf("tapegen: writing bar %d: %w", i, err)
		}
	}

	return nil
}
