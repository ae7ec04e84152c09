package engine

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
)

// RunManifest captures everything needed to reproduce a run: the resolved
// configuration (hashed, not embedded verbatim, to keep the meta blob
// small), the plugin identity, and the date range actually requested.
type RunManifest struct {
	Symbol       string `json:"symbol"`
	Timeframe    string `json:"timeframe"`
	StartYmd     int    `json:"start_ymd"`
	EndYmd       int    `json:"end_ymd"`
	PluginPath   string `json:"plugin_path"`
	PluginParams string `json:"plugin_params"`
	ConfigHash   string `json:"config_hash"`
	BarsReplayed int    `json:"bars_replayed"`
	AccountBlown bool   `json:"account_blown"`
}

// BuildManifest hashes cfg's identifying fields and combines them with the
// run's outcome into a manifest suitable for the run-pack meta blob.
func BuildManifest(cfg Config, res *Result) (RunManifest, error) {
	hashInput, err := json.Marshal(struct {
		Spec              interface{} `json:"spec"`
		Costs             interface{} `json:"costs"`
		InitialBalance    float64     `json:"initial_balance"`
		AnnualizationBars int         `json:"annualization_bars"`
		RequiredEMA       []int       `json:"required_ema"`
		RequiredATR       []int       `json:"required_atr"`
	}{cfg.Spec, cfg.Costs, cfg.InitialBalance, cfg.AnnualizationBars, cfg.RequiredEMAPeriods, cfg.RequiredATRPeriods})
	if err != nil {
		return RunManifest{}, fmt.Errorf("engine: hashing config: %w", err)
	}
	sum := sha256.Sum256(hashInput)

	return RunManifest{
		Symbol:       cfg.Symbol,
		Timeframe:    cfg.Timeframe,
		StartYmd:     cfg.StartYmd,
		EndYmd:       cfg.EndYmd,
		PluginPath:   cfg.PluginPath,
		PluginParams: cfg.PluginParams,
		ConfigHash:   fmt.Sprintf("%x", sum),
		BarsReplayed: res.BarsReplayed,
		AccountBlown: res.AccountBlown,
	}, nil
}
