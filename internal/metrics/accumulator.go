package metrics

import (
	"math"
	"sort"

	"chronotape/internal/broker"
)

// Config sets the accumulator's initial equity and annualization factor.
// The tail-statistic refresh cadence is fixed (see tailStats).
type Config struct {
	InitialEquity     float64
	AnnualizationBars int // e.g. 252*24*60 for 1-minute bars
}

const nsPerDay = 86_400_000_000_000

// Accumulator owns every running quantity and the output RunSeries/trade
// log. OnBar only appends to the output arrays; Finalize overwrites the last
// median_pnl and top10 entries in place. The only earlier element read back
// is Equity[0], the base of the calmar total return.
type Accumulator struct {
	cfg Config

	series RunSeries
	trades []ClosedTradeRecord

	eq0 float64

	maxEquity  float64
	maxBalance float64

	maxEquityDD  float64
	maxBalanceDD float64

	sumEquityDD     float64
	sumBalanceDD    float64
	barsInEquityDD  int
	barsInBalanceDD int

	currentDayKey   int64
	haveDayKey      bool
	dayStartEquity  float64
	dayStartBalance float64
	maxEquityDailyDD  float64
	maxBalanceDailyDD float64

	totalTrades int
	wins        int
	losses      int
	grossProfit float64
	grossLoss   float64
	sumWin      float64
	sumLoss     float64

	closedPnls []float64

	firstTsNs int64
	lastTsNs  int64
	haveFirst bool

	havePrevEq bool
	prevEq     float64
	retN       int
	retMean    float64
	retM2      float64

	downN    int
	downMean float64
	downM2   float64

	barsSeen  int
	barsInMkt int

	lastMedianPnl       float64
	lastTop10Contrib    float64
}

// New constructs an empty Accumulator.
func New(cfg Config) *Accumulator {
	return &Accumulator{
		cfg:          cfg,
		eq0:          math.NaN(),
		maxEquity:    math.Inf(-1),
		maxBalance:   math.Inf(-1),
		lastMedianPnl:    math.NaN(),
		lastTop10Contrib: math.NaN(),
	}
}

// OnTradeClosed records a closed trade into the trade log and tallies.
func (a *Accumulator) OnTradeClosed(t broker.ClosedTrade) {
	rec := ClosedTradeRecord{
		EntryTsNs:   int64(t.EntryTsNs),
		ExitTsNs:    int64(t.ExitTsNs),
		EntryBarIdx: int64(t.EntryBarIdx),
		ExitBarIdx:  int64(t.ExitBarIdx),
		Side:        int32(t.Side),
		LotsClosed:  t.LotsClosed,
		EntryPrice:  t.EntryPrice,
		ExitPrice:   t.ExitPrice,
		Pnl:         t.RealizedPnl,
		PnlR:        math.NaN(),
		Commission:  t.Commission,
	}
	a.trades = append(a.trades, rec)
	a.closedPnls = append(a.closedPnls, t.RealizedPnl)

	a.totalTrades++
	if t.RealizedPnl > 0 {
		a.wins++
		a.grossProfit += t.RealizedPnl
		a.sumWin += t.RealizedPnl
	} else if t.RealizedPnl < 0 {
		a.losses++
		mag := -t.RealizedPnl
		a.grossLoss += mag
		a.sumLoss += mag
	}
}

// OnBar consumes one bar's broker snapshot and appends one element to every
// output column.
func (a *Accumulator) OnBar(tsNs int64, balance, equity, unrealizedPnl float64, inMarket bool) {
	if len(a.series.Ts) == 0 {
		if math.IsNaN(a.eq0) {
			a.eq0 = a.cfg.InitialEquity
		}
		a.firstTsNs = tsNs
		a.haveFirst = true
	}
	a.lastTsNs = tsNs

	a.updateDrawdown(equity, balance)
	a.updateDailyDD(tsNs, equity, balance)
	a.updateReturnStats(equity)

	netProfit := equity - a.eq0

	winRate := math.NaN()
	if a.totalTrades > 0 {
		winRate = float64(a.wins) / float64(a.totalTrades)
	}
	avgWin := math.NaN()
	if a.wins > 0 {
		avgWin = a.sumWin / float64(a.wins)
	}
	avgLoss := math.NaN()
	if a.losses > 0 {
		avgLoss = a.sumLoss / float64(a.losses)
	}

	pf := math.NaN()
	if a.grossLoss > 0 {
		pf = a.grossProfit / a.grossLoss
	} else if a.grossProfit > 0 {
		pf = math.Inf(1)
	}

	expectancy := math.NaN()
	if !math.IsNaN(winRate) && !math.IsNaN(avgWin) && !math.IsNaN(avgLoss) {
		expectancy = winRate*avgWin - (1-winRate)*avgLoss
	}

	plRatio := math.NaN()
	if !math.IsNaN(avgWin) && !math.IsNaN(avgLoss) && avgLoss > 0 {
		plRatio = avgWin / avgLoss
	}

	tradesPerDay := math.NaN()
	if a.firstTsNs != 0 && a.lastTsNs > a.firstTsNs {
		days := float64(a.lastTsNs-a.firstTsNs) / float64(nsPerDay)
		if days > 0 {
			tradesPerDay = float64(a.totalTrades) / days
		}
	}

	a.barsSeen++
	if inMarket {
		a.barsInMkt++
	}
	timeInMarket := 0.0
	if a.barsSeen > 0 {
		timeInMarket = float64(a.barsInMkt) / float64(a.barsSeen)
	}

	medianPnl, top10Contrib := a.tailStats()

	vol, sharpe, sortino := math.NaN(), math.NaN(), math.NaN()
	if a.retN > 1 {
		variance := a.retM2 / float64(a.retN-1)
		vol = math.Sqrt(math.Max(0, variance))
		if vol > 0 {
			sharpe = a.retMean / vol * math.Sqrt(float64(a.cfg.AnnualizationBars))
		}
		if a.downN > 1 {
			dvar := a.downM2 / float64(a.downN-1)
			dstd := math.Sqrt(math.Max(0, dvar))
			if dstd > 0 {
				sortino = a.retMean / dstd * math.Sqrt(float64(a.cfg.AnnualizationBars))
			}
		}
	}

	calmar := math.NaN()
	if a.series.Len() > 0 {
		totalRet := equity/a.series.Equity[0] - 1.0
		years := float64(a.lastTsNs-a.firstTsNs) / (float64(nsPerDay) * 365.0)
		if years > 0 && !math.IsNaN(a.series.MaxEquityDD[len(a.series.MaxEquityDD)-1]) && a.maxEquity > 0 {
			ann := math.Pow(1+totalRet, 1/years) - 1
			maxddpct := a.maxEquityDD / a.maxEquity
			if maxddpct < 0 {
				calmar = ann / math.Abs(maxddpct)
			}
		}
	}

	s := &a.series
	s.Ts = append(s.Ts, tsNs)
	s.Balance = append(s.Balance, balance)
	s.Equity = append(s.Equity, equity)
	s.DDEquity = append(s.DDEquity, equity-a.maxEquity)
	s.DDBalance = append(s.DDBalance, balance-a.maxBalance)

	avgEqDD := 0.0
	if a.barsInEquityDD > 0 {
		avgEqDD = a.sumEquityDD / float64(a.barsInEquityDD)
	}
	avgBalDD := 0.0
	if a.barsInBalanceDD > 0 {
		avgBalDD = a.sumBalanceDD / float64(a.barsInBalanceDD)
	}
	s.AvgEquityDD = append(s.AvgEquityDD, avgEqDD)
	s.AvgBalanceDD = append(s.AvgBalanceDD, avgBalDD)

	n := float64(s.Len())
	s.PctInEquityDD = append(s.PctInEquityDD, float64(a.barsInEquityDD)/n)
	s.PctInBalanceDD = append(s.PctInBalanceDD, float64(a.barsInBalanceDD)/n)
	s.BarsInEquityDD = append(s.BarsInEquityDD, int32(a.barsInEquityDD))
	s.BarsInBalanceDD = append(s.BarsInBalanceDD, int32(a.barsInBalanceDD))

	s.UnrealizedPnl = append(s.UnrealizedPnl, unrealizedPnl)
	s.MaxEquity = append(s.MaxEquity, a.maxEquity)
	s.MaxBalance = append(s.MaxBalance, a.maxBalance)
	s.MaxEquityDD = append(s.MaxEquityDD, a.maxEquityDD)
	s.MaxBalanceDD = append(s.MaxBalanceDD, a.maxBalanceDD)
	s.MaxEquityDailyDD = append(s.MaxEquityDailyDD, a.maxEquityDailyDD)
	s.MaxBalanceDailyDD = append(s.MaxBalanceDailyDD, a.maxBalanceDailyDD)

	s.NetProfit = append(s.NetProfit, netProfit)

	s.TotalTrades = append(s.TotalTrades, int32(a.totalTrades))
	s.WinningTrades = append(s.WinningTrades, int32(a.wins))
	s.LosingTrades = append(s.LosingTrades, int32(a.losses))

	s.WinRate = append(s.WinRate, winRate)
	s.GrossProfit = append(s.GrossProfit, a.grossProfit)
	s.GrossLoss = append(s.GrossLoss, a.grossLoss)
	s.ProfitFactor = append(s.ProfitFactor, pf)

	s.ExpectedValue = append(s.ExpectedValue, expectancy)
	s.AvgWin = append(s.AvgWin, avgWin)
	s.AvgLoss = append(s.AvgLoss, avgLoss)
	s.ProfitLossRatio = append(s.ProfitLossRatio, plRatio)

	s.ExpectancyR = append(s.ExpectancyR, math.NaN())
	s.MedianPnl = append(s.MedianPnl, medianPnl)
	s.Top10PercentContribution = append(s.Top10PercentContribution, top10Contrib)
	s.TradesPerDay = append(s.TradesPerDay, tradesPerDay)

	s.TimeInMarket = append(s.TimeInMarket, timeInMarket)

	s.ReturnVolatility = append(s.ReturnVolatility, vol)
	s.SharpeRatio = append(s.SharpeRatio, sharpe)
	s.CalmarRatio = append(s.CalmarRatio, calmar)
	s.SortinoRatio = append(s.SortinoRatio, sortino)
}

// tailStats returns median_pnl / top_10_percent_contribution, refreshed
// only every 500 bars (and for the first 10), carrying forward otherwise.
// Finalize forces one last unconditional refresh.
func (a *Accumulator) tailStats() (median, top10 float64) {
	if len(a.closedPnls) == 0 {
		return math.NaN(), math.NaN()
	}
	bar := a.series.Len() + 1 // this bar's 1-based position, about to be appended
	if bar%500 == 0 || bar <= 10 {
		a.lastMedianPnl, a.lastTop10Contrib = a.computeTailStats()
	}
	return a.lastMedianPnl, a.lastTop10Contrib
}

func (a *Accumulator) computeTailStats() (median, top10 float64) {
	tmp := append([]float64(nil), a.closedPnls...)
	sort.Float64s(tmp)
	median = tmp[len(tmp)/2]

	sort.Sort(sort.Reverse(sort.Float64Slice(tmp)))
	k := int(math.Ceil(float64(len(tmp)) * 0.10))
	if k < 1 {
		k = 1
	}
	topSum := 0.0
	for i := 0; i < k && i < len(tmp); i++ {
		if tmp[i] > 0 {
			topSum += tmp[i]
		}
	}
	top10 = math.NaN()
	if a.grossProfit > 0 {
		top10 = topSum / a.grossProfit
	}
	return median, top10
}

func (a *Accumulator) updateDrawdown(equity, balance float64) {
	if math.IsNaN(a.eq0) {
		a.eq0 = a.cfg.InitialEquity
	}
	if math.IsInf(a.maxEquity, -1) {
		a.maxEquity = equity
	}
	if math.IsInf(a.maxBalance, -1) {
		a.maxBalance = balance
	}
	if equity > a.maxEquity {
		a.maxEquity = equity
	}
	if balance > a.maxBalance {
		a.maxBalance = balance
	}

	ddEq := equity - a.maxEquity
	ddBal := balance - a.maxBalance

	if ddEq < 0 {
		a.barsInEquityDD++
		a.sumEquityDD += ddEq
	}
	if ddBal < 0 {
		a.barsInBalanceDD++
		a.sumBalanceDD += ddBal
	}
	if ddEq < a.maxEquityDD {
		a.maxEquityDD = ddEq
	}
	if ddBal < a.maxBalanceDD {
		a.maxBalanceDD = ddBal
	}
}

// updateDailyDD buckets by true calendar day (ts_ns / nsPerDay), not by the
// raw timestamp — the source bucketed on raw ts, which is not a day key at
// all; see the note on duplicate-fill and daily-bucketing fixes.
func (a *Accumulator) updateDailyDD(tsNs int64, equity, balance float64) {
	day := tsNs / nsPerDay
	if !a.haveDayKey || day != a.currentDayKey {
		a.haveDayKey = true
		a.currentDayKey = day
		a.dayStartEquity = equity
		a.dayStartBalance = balance
	}
	dEq := equity - a.dayStartEquity
	dBal := balance - a.dayStartBalance
	if dEq < a.maxEquityDailyDD {
		a.maxEquityDailyDD = dEq
	}
	if dBal < a.maxBalanceDailyDD {
		a.maxBalanceDailyDD = dBal
	}
}

func (a *Accumulator) updateReturnStats(equity float64) {
	if !a.havePrevEq {
		a.prevEq = equity
		a.havePrevEq = true
		return
	}
	if a.prevEq <= 0 || equity <= 0 {
		a.prevEq = equity
		return
	}
	r := math.Log(equity / a.prevEq)
	a.prevEq = equity

	a.retN++
	delta := r - a.retMean
	a.retMean += delta / float64(a.retN)
	a.retM2 += delta * (r - a.retMean)

	if r < 0 {
		a.downN++
		d := r - a.downMean
		a.downMean += d / float64(a.downN)
		a.downM2 += d * (r - a.downMean)
	}
}

// Finalize forces one last unconditional tail-statistic refresh. Call once
// after the final bar.
func (a *Accumulator) Finalize() {
	if len(a.closedPnls) == 0 || a.series.Len() == 0 {
		return
	}
	median, top10 := a.computeTailStats()
	last := a.series.Len() - 1
	a.series.MedianPnl[last] = median
	a.series.Top10PercentContribution[last] = top10
}

// Series returns the accumulated RunSeries.
func (a *Accumulator) Series() *RunSeries { return &a.series }

// Trades returns the accumulated closed-trade log.
func (a *Accumulator) Trades() []ClosedTradeRecord { return a.trades }
