// Package strategyabi defines the stable boundary between the engine and
// strategy code, and a loader that resolves strategies built as Go plugins.
//
// The boundary is the EngineCtx function table, carried over field-for-field
// from the function-pointer-table ABI: a strategy never touches engine
// internals directly, only the accessors and actions EngineCtx exposes.
package strategyabi

// FeatureKind identifies which indicator family a feature reference names.
type FeatureKind int

const (
	FeatureEMA FeatureKind = 1
	FeatureATR FeatureKind = 2
)

// BarView is the current bar, exposed to the strategy by value.
type BarView struct {
	TsNs   uint64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float32
	Index  uint64
}

// FeatureRef is a read-only view into an indicator's materialized history.
type FeatureRef struct {
	Data []float64
	Len  int
}

// EngineCtx is the function table passed to every strategy callback. A
// strategy plugin must treat User as opaque and never dereference it.
type EngineCtx struct {
	Bar BarView

	GetFeature func(ctx *EngineCtx, kind FeatureKind, period int) FeatureRef

	BuyMarket  func(ctx *EngineCtx, lots, sl, tp float32) uint64
	SellMarket func(ctx *EngineCtx, lots, sl, tp float32) uint64
	CloseAll   func(ctx *EngineCtx) uint64

	Equity       func(ctx *EngineCtx) float32
	Balance      func(ctx *EngineCtx) float32
	PositionLots func(ctx *EngineCtx) float32
	AvgEntry     func(ctx *EngineCtx) float32

	User any
}

// Handle is the opaque strategy instance handle returned by Create.
type Handle any

// CreateFunc, DestroyFunc, OnStartFunc, OnBarFunc, OnEndFunc are the five
// required plugin exports. params is an opaque string the engine never
// parses; strategies self-parse it (conventionally JSON).
type (
	CreateFunc  func(params string) (Handle, error)
	DestroyFunc func(h Handle)
	OnStartFunc func(h Handle, ctx *EngineCtx)
	OnBarFunc   func(h Handle, ctx *EngineCtx)
	OnEndFunc   func(h Handle, ctx *EngineCtx)
)

// ExportNames are the five package-level symbol names a strategy plugin
// must export. plugin.Lookup only resolves exported identifiers, so these
// keep the original C-linkage names' words but capitalize the leading
// letter Go requires for export.
var ExportNames = [5]string{
	"Strategy_create",
	"Strategy_destroy",
	"Strategy_on_start",
	"Strategy_on_bar",
	"Strategy_on_end",
}
