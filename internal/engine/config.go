package engine

import "chronotape/internal/broker"

// Config is the full engine invocation configuration: tape location,
// instrument conventions, cost model, plugin, and its opaque params.
type Config struct {
	BaseDir   string
	Symbol    string
	Timeframe string
	StartYmd  int
	EndYmd    int

	Spec  broker.SymbolSpec
	Costs broker.CostsModel

	InitialBalance float64

	PluginPath   string
	PluginParams string

	// RequiredEMAPeriods and RequiredATRPeriods are resolved against the
	// indicator registry before on_start, making their history arrays
	// available to the strategy via GetFeature from the very first bar.
	RequiredEMAPeriods []int
	RequiredATRPeriods []int

	AnnualizationBars int
}

