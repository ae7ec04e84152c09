package indicators

import "math"

// Kind identifies a family of streaming indicator.
type Kind int

const (
	KindEMA Kind = iota
	KindATR
)

type streamKey struct {
	kind   Kind
	period int
}

// Registry owns every streaming indicator required by the running strategy,
// keyed by (kind, period), plus the dense per-bar history array for each.
// Requiring the same (kind, period) twice returns the same underlying
// stream: the registry stores streams as pointers precisely so repeated
// lookups never allocate a second stream for the same key.
type Registry struct {
	emas   map[int]*EMA
	atrs   map[int]*ATR
	order  []streamKey
	histEMA map[int][]float64
	histATR map[int][]float64
	bars    int
}

// NewRegistry constructs an empty indicator registry.
func NewRegistry() *Registry {
	return &Registry{
		emas:    make(map[int]*EMA),
		atrs:    make(map[int]*ATR),
		histEMA: make(map[int][]float64),
		histATR: make(map[int][]float64),
	}
}

// RequireEMA returns the EMA stream for period, creating it on first use.
func (r *Registry) RequireEMA(period int) *EMA {
	if s, ok := r.emas[period]; ok {
		return s
	}
	s := NewEMA(period)
	r.emas[period] = s
	r.order = append(r.order, streamKey{KindEMA, period})
	r.histEMA[period] = make([]float64, r.bars, r.bars+256)
	for i := range r.histEMA[period] {
		r.histEMA[period][i] = math.NaN()
	}
	return s
}

// RequireATR returns the Wilder ATR stream for period, creating it on first use.
func (r *Registry) RequireATR(period int) *ATR {
	if s, ok := r.atrs[period]; ok {
		return s
	}
	s := NewATR(period)
	r.atrs[period] = s
	r.order = append(r.order, streamKey{KindATR, period})
	r.histATR[period] = make([]float64, r.bars, r.bars+256)
	for i := range r.histATR[period] {
		r.histATR[period][i] = math.NaN()
	}
	return s
}

// Update pushes one bar's OHLCV to every registered stream. It does not by
// itself append to history — the engine loop appends each stream's current
// (or NaN) value after consulting it, per the separation of reducer and
// materialization responsibilities.
func (r *Registry) Update(open, high, low, closePrice float64, volume float32) {
	for _, p := range r.emas {
		p.Update(closePrice)
	}
	for _, p := range r.atrs {
		p.Update(high, low, closePrice)
	}
}

// AppendHistory appends the current (or NaN, if not ready) value of every
// registered stream to its history array. Called once per bar by the
// engine loop, after Update.
func (r *Registry) AppendHistory() {
	r.bars++
	for period, s := range r.emas {
		v := math.NaN()
		if s.Ready() {
			v = s.Value()
		}
		r.histEMA[period] = append(r.histEMA[period], v)
	}
	for period, s := range r.atrs {
		v := math.NaN()
		if s.Ready() {
			v = s.Value()
		}
		r.histATR[period] = append(r.histATR[period], v)
	}
}

// HistoryEMA returns the dense per-bar history array for the EMA stream of
// the given period, or nil if it was never required.
func (r *Registry) HistoryEMA(period int) []float64 { return r.histEMA[period] }

// HistoryATR returns the dense per-bar history array for the ATR stream of
// the given period, or nil if it was never required.
func (r *Registry) HistoryATR(period int) []float64 { return r.histATR[period] }
