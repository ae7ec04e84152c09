package runpack

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"chronotape/internal/metrics"
)

// Meta carries the free-form JSON blob (symbol, timeframe, date range,
// strategy identity, params) stored alongside the series and trades.
type Meta struct {
	JSON      []byte
	CreatedMs uint64
}

type seriesDesc struct {
	name  string
	dtype DType
	elem  uint32
	bytes []byte
}

func descI32(name string, v []int32) seriesDesc {
	buf := make([]byte, len(v)*4)
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], uint32(x))
	}
	return seriesDesc{name, DTypeI32, 4, buf}
}

func descI64(name string, v []int64) seriesDesc {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(x))
	}
	return seriesDesc{name, DTypeI64, 8, buf}
}

func descF64(name string, v []float64) seriesDesc {
	buf := make([]byte, len(v)*8)
	for i, x := range v {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(x))
	}
	return seriesDesc{name, DTypeF64, 8, buf}
}

// buildSeriesDescs enumerates every RunSeries column in the stable order
// downstream tools rely on. Names here are the TOC identifiers.
func buildSeriesDescs(s *metrics.RunSeries) []seriesDesc {
	return []seriesDesc{
		descI64("ts", s.Ts),

		descF64("balance", s.Balance),
		descF64("equity", s.Equity),
		descF64("dd_equity", s.DDEquity),
		descF64("dd_balance", s.DDBalance),

		descF64("avg_equity_dd", s.AvgEquityDD),
		descF64("avg_balance_dd", s.AvgBalanceDD),

		descF64("pct_in_equity_dd", s.PctInEquityDD),
		descF64("pct_in_balance_dd", s.PctInBalanceDD),
		descI32("bars_in_equity_dd", s.BarsInEquityDD),
		descI32("bars_in_balance_dd", s.BarsInBalanceDD),

		descF64("unrealized_pnl", s.UnrealizedPnl),
		descF64("max_equity", s.MaxEquity),
		descF64("max_balance", s.MaxBalance),
		descF64("max_equity_dd", s.MaxEquityDD),
		descF64("max_balance_dd", s.MaxBalanceDD),

		descF64("max_equity_daily_dd", s.MaxEquityDailyDD),
		descF64("max_balance_daily_dd", s.MaxBalanceDailyDD),

		descF64("net_profit", s.NetProfit),

		descI32("total_trades", s.TotalTrades),
		descI32("winning_trades", s.WinningTrades),
		descI32("losing_trades", s.LosingTrades),

		descF64("win_rate", s.WinRate),
		descF64("gross_profit", s.GrossProfit),
		descF64("gross_loss", s.GrossLoss),
		descF64("profit_factor", s.ProfitFactor),

		descF64("expected_value", s.ExpectedValue),
		descF64("avg_win", s.AvgWin),
		descF64("avg_loss", s.AvgLoss),
		descF64("profit_loss_ratio", s.ProfitLossRatio),

		descF64("expectancy_r", s.ExpectancyR),
		descF64("median_pnl", s.MedianPnl),
		descF64("top10_contrib", s.Top10PercentContribution),
		descF64("trades_per_day", s.TradesPerDay),

		descF64("time_in_market", s.TimeInMarket),

		descF64("ret_vol", s.ReturnVolatility),
		descF64("sharpe", s.SharpeRatio),
		descF64("calmar", s.CalmarRatio),
		descF64("sortino", s.SortinoRatio),
	}
}

// encodeTrade packs one trade record: two int64 timestamps, two int64 bar
// indices, a side tag (padded to 8 bytes for float64 alignment), and eight
// float64 fields (lots, entry/exit price, pnl, pnl_r, mae, mfe, commission).
func encodeTrade(t metrics.ClosedTradeRecord) []byte {
	buf := make([]byte, TradeRecordSize)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(t.EntryTsNs))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(t.ExitTsNs))
	binary.LittleEndian.PutUint64(buf[16:24], uint64(t.EntryBarIdx))
	binary.LittleEndian.PutUint64(buf[24:32], uint64(t.ExitBarIdx))
	binary.LittleEndian.PutUint32(buf[32:36], uint32(t.Side))
	// buf[36:40] reserved, stays zero
	binary.LittleEndian.PutUint64(buf[40:48], math.Float64bits(t.LotsClosed))
	binary.LittleEndian.PutUint64(buf[48:56], math.Float64bits(t.EntryPrice))
	binary.LittleEndian.PutUint64(buf[56:64], math.Float64bits(t.ExitPrice))
	binary.LittleEndian.PutUint64(buf[64:72], math.Float64bits(t.Pnl))
	binary.LittleEndian.PutUint64(buf[72:80], math.Float64bits(t.PnlR))
	binary.LittleEndian.PutUint64(buf[80:88], math.Float64bits(t.Mae))
	binary.LittleEndian.PutUint64(buf[88:96], math.Float64bits(t.Mfe))
	binary.LittleEndian.PutUint64(buf[96:104], math.Float64bits(t.Commission))
	return buf
}

// Write serializes series+trades to path in one shot: placeholder header,
// meta blob, TOC placeholder, series blobs (filling the TOC), trades blob,
// then seek back and rewrite the TOC and header with final offsets.
//
// The file is written to a temp path in the same directory and renamed into
// place only on success, so a failure never leaves a partial run-pack.
func Write(path string, meta Meta, series *metrics.RunSeries, trades []metrics.ClosedTradeRecord) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".runpack-*.tmp")
	if err != nil {
		return fmt.Errorf("runpack: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		tmp.Close()
		if err != nil {
			os.Remove(tmpPath)
		}
	}()

	if err = writeTo(tmp, meta, series, trades); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("runpack: closing temp file: %w", err)
	}
	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("runpack: renaming into place: %w", err)
	}
	return nil
}

func writeTo(f *os.File, meta Meta, series *metrics.RunSeries, trades []metrics.ClosedTradeRecord) error {
	descs := buildSeriesDescs(series)

	hdr := FileHeader{
		Magic:     Magic,
		Version:   Version,
		Endian:    EndianCanary,
		CreatedMs: meta.CreatedMs,
	}

	// (a) placeholder header
	if err := writeHeader(f, hdr); err != nil {
		return fmt.Errorf("runpack: writing header placeholder: %w", err)
	}

	// (b) meta blob: u64 length prefix + raw bytes, padded to 8
	pos, err := tell(f)
	if err != nil {
		return err
	}
	hdr.MetaOffset = pos
	hdr.MetaBytes = uint64(len(meta.JSON))
	if err := writeU64(f, hdr.MetaBytes); err != nil {
		return err
	}
	if len(meta.JSON) > 0 {
		if _, err := f.Write(meta.JSON); err != nil {
			return fmt.Errorf("runpack: writing meta blob: %w", err)
		}
	}
	if err := padTo8(f); err != nil {
		return err
	}

	// (c) TOC placeholder
	pos, err = tell(f)
	if err != nil {
		return err
	}
	hdr.TocOffset = pos
	hdr.TocCount = uint32(len(descs))
	toc := make([]TocEntry, len(descs))
	if err := writeTocBlock(f, toc); err != nil {
		return fmt.Errorf("runpack: writing TOC placeholder: %w", err)
	}

	// (d) series blobs, filling the TOC as we go
	for i, d := range descs {
		if err := padTo8(f); err != nil {
			return err
		}
		offset, err := tell(f)
		if err != nil {
			return err
		}
		toc[i] = TocEntry{
			Name:     setName32(d.name),
			DType:    d.dtype,
			ElemSize: d.elem,
			Len:      uint64(len(d.bytes)) / uint64(d.elem),
			Offset:   offset,
		}
		if len(d.bytes) > 0 {
			if _, err := f.Write(d.bytes); err != nil {
				return fmt.Errorf("runpack: writing series blob %s: %w", d.name, err)
			}
		}
	}

	// (e) trades blob, aligned
	if err := padTo8(f); err != nil {
		return err
	}
	pos, err = tell(f)
	if err != nil {
		return err
	}
	hdr.TradesOffset = pos
	hdr.TradesCount = uint64(len(trades))
	for _, t := range trades {
		if _, err := f.Write(encodeTrade(t)); err != nil {
			return fmt.Errorf("runpack: writing trades blob: %w", err)
		}
	}

	// (f) finalize: seek back, rewrite TOC then header
	fileBytes, err := tell(f)
	if err != nil {
		return err
	}
	hdr.FileBytes = fileBytes

	if _, err := f.Seek(int64(hdr.TocOffset), io.SeekStart); err != nil {
		return fmt.Errorf("runpack: seeking to TOC: %w", err)
	}
	if err := writeTocBlock(f, toc); err != nil {
		return fmt.Errorf("runpack: rewriting TOC: %w", err)
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("runpack: seeking to header: %w", err)
	}
	if err := writeHeader(f, hdr); err != nil {
		return fmt.Errorf("runpack: rewriting header: %w", err)
	}
	return nil
}

func tell(f *os.File) (uint64, error) {
	off, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, fmt.Errorf("runpack: tell: %w", err)
	}
	return uint64(off), nil
}

func padTo8(f *os.File) error {
	pos, err := tell(f)
	if err != nil {
		return err
	}
	target := align8(pos)
	if target > pos {
		if _, err := f.Write(make([]byte, target-pos)); err != nil {
			return fmt.Errorf("runpack: padding: %w", err)
		}
	}
	return nil
}

func writeU64(f *os.File, v uint64) error {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	_, err := f.Write(b[:])
	return err
}

func writeHeader(f *os.File, h FileHeader) error {
	var buf bytes.Buffer
	buf.Grow(FileHeaderSize)
	write64 := func(v uint64) { binary.Write(&buf, binary.LittleEndian, v) }
	write32 := func(v uint32) { binary.Write(&buf, binary.LittleEndian, v) }
	write64(h.Magic)
	write32(h.Version)
	write32(h.Endian)
	write64(h.CreatedMs)
	write64(h.MetaOffset)
	write64(h.MetaBytes)
	write64(h.TocOffset)
	write32(h.TocCount)
	write32(h.Reserved0)
	write64(h.TradesOffset)
	write64(h.TradesCount)
	write64(h.FileBytes)
	_, err := f.Write(buf.Bytes())
	return err
}

func writeTocBlock(f *os.File, toc []TocEntry) error {
	var buf bytes.Buffer
	buf.Grow(len(toc) * TocEntrySize)
	for _, e := range toc {
		buf.Write(e.Name[:])
		binary.Write(&buf, binary.LittleEndian, uint32(e.DType))
		binary.Write(&buf, binary.LittleEndian, e.ElemSize)
		binary.Write(&buf, binary.LittleEndian, e.Len)
		binary.Write(&buf, binary.LittleEndian, e.Offset)
	}
	_, err := f.Write(buf.Bytes())
	return err
}
