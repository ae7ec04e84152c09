// Package metrics implements the running accumulator that turns a stream of
// per-bar broker snapshots and trade-close events into the struct-of-arrays
// RunSeries plus a trade log, in one pass with no history rescans.
package metrics

// RunSeries is a struct-of-arrays: every column has the same length, equal
// to the number of bars replayed. Column order here is the stable order
// the run-pack writer emits them in.
type RunSeries struct {
	Ts []int64

	Balance   []float64
	Equity    []float64
	DDEquity  []float64
	DDBalance []float64

	AvgEquityDD  []float64
	AvgBalanceDD []float64

	PctInEquityDD  []float64
	PctInBalanceDD []float64
	BarsInEquityDD []int32
	BarsInBalanceDD []int32

	UnrealizedPnl []float64
	MaxEquity     []float64
	MaxBalance    []float64
	MaxEquityDD   []float64
	MaxBalanceDD  []float64

	MaxEquityDailyDD  []float64
	MaxBalanceDailyDD []float64

	NetProfit []float64

	TotalTrades   []int32
	WinningTrades []int32
	LosingTrades  []int32

	WinRate      []float64
	GrossProfit  []float64
	GrossLoss    []float64
	ProfitFactor []float64

	ExpectedValue   []float64
	AvgWin          []float64
	AvgLoss         []float64
	ProfitLossRatio []float64

	ExpectancyR              []float64
	MedianPnl                []float64
	Top10PercentContribution []float64
	TradesPerDay             []float64

	TimeInMarket []float64

	ReturnVolatility []float64
	SharpeRatio      []float64
	CalmarRatio      []float64
	SortinoRatio     []float64
}

// Len returns the number of bars recorded so far.
func (s *RunSeries) Len() int { return len(s.Ts) }

// ClosedTradeRecord is the on-disk representation of a closed trade,
// matching the run-pack trades blob layout.
type ClosedTradeRecord struct {
	EntryTsNs   int64
	ExitTsNs    int64
	EntryBarIdx int64
	ExitBarIdx  int64
	Side        int32 // +1 Long, -1 Short
	LotsClosed  float64
	EntryPrice  float64
	ExitPrice   float64
	Pnl         float64
	PnlR        float64
	Mae         float64
	Mfe         float64
	Commission  float64
}
