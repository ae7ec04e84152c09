// Package arrowpipeline exports a completed run's series to Apache Arrow
// IPC, for downstream analytics tools that read Arrow rather than parsing
// the run-pack binary format directly.
package arrowpipeline

import (
	"fmt"
	"io"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"

	"chronotape/internal/metrics"
)

// Config controls the Arrow writer's batching.
type Config struct {
	BatchSize int
}

// Pipeline converts RunSeries into Arrow IPC streams.
type Pipeline struct {
	cfg  Config
	pool memory.Allocator
}

// New constructs a Pipeline with the given batch size.
func New(cfg Config) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 4096
	}
	return &Pipeline{cfg: cfg, pool: memory.NewGoAllocator()}
}

var runSchema = arrow.NewSchema([]arrow.Field{
	{Name: "ts", Type: arrow.PrimitiveTypes.Int64},
	{Name: "balance", Type: arrow.PrimitiveTypes.Float64},
	{Name: "equity", Type: arrow.PrimitiveTypes.Float64},
	{Name: "dd_equity", Type: arrow.PrimitiveTypes.Float64},
	{Name: "dd_balance", Type: arrow.PrimitiveTypes.Float64},
	{Name: "net_profit", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sharpe", Type: arrow.PrimitiveTypes.Float64},
	{Name: "sortino", Type: arrow.PrimitiveTypes.Float64},
	{Name: "calmar", Type: arrow.PrimitiveTypes.Float64},
}, nil)

// WriteIPC streams the given series to w as one Arrow IPC stream,
// chunked at cfg.BatchSize records per RecordBatch.
func (p *Pipeline) WriteIPC(w io.Writer, s *metrics.RunSeries) error {
	writer := ipc.NewWriter(w, ipc.WithSchema(runSchema), ipc.WithAllocator(p.pool))
	defer writer.Close()

	n := s.Len()
	for start := 0; start < n; start += p.cfg.BatchSize {
		end := start + p.cfg.BatchSize
		if end > n {
			end = n
		}

		rec := p.buildBatch(s, start, end)
		err := writer.Write(rec)
		rec.Release()
		if err != nil {
			return fmt.Errorf("arrowpipeline: writing record batch: %w", err)
		}
	}
	return nil
}

func (p *Pipeline) buildBatch(s *metrics.RunSeries, start, end int) arrow.Record {
	tsBuilder := array.NewInt64Builder(p.pool)
	balBuilder := array.NewFloat64Builder(p.pool)
	eqBuilder := array.NewFloat64Builder(p.pool)
	ddEqBuilder := array.NewFloat64Builder(p.pool)
	ddBalBuilder := array.NewFloat64Builder(p.pool)
	netBuilder := array.NewFloat64Builder(p.pool)
	sharpeBuilder := array.NewFloat64Builder(p.pool)
	sortinoBuilder := array.NewFloat64Builder(p.pool)
	calmarBuilder := array.NewFloat64Builder(p.pool)

	for i := start; i < end; i++ {
		tsBuilder.Append(s.Ts[i])
		balBuilder.Append(s.Balance[i])
		eqBuilder.Append(s.Equity[i])
		ddEqBuilder.Append(s.DDEquity[i])
		ddBalBuilder.Append(s.DDBalance[i])
		netBuilder.Append(s.NetProfit[i])
		sharpeBuilder.Append(s.SharpeRatio[i])
		sortinoBuilder.Append(s.SortinoRatio[i])
		calmarBuilder.Append(s.CalmarRatio[i])
	}

	cols := []arrow.Array{
		tsBuilder.NewInt64Array(),
		balBuilder.NewFloat64Array(),
		eqBuilder.NewFloat64Array(),
		ddEqBuilder.NewFloat64Array(),
		ddBalBuilder.NewFloat64Array(),
		netBuilder.NewFloat64Array(),
		sharpeBuilder.NewFloat64Array(),
		sortinoBuilder.NewFloat64Array(),
		calmarBuilder.NewFloat64Array(),
	}
	defer func() {
		for _, c := range cols {
			c.Release()
		}
	}()

	return array.NewRecord(runSchema, cols, int64(end-start))
}
