// Package proto holds the request/response types for the backtest gRPC
// service. Hand-written rather than protoc-generated: there is no .proto
// source in this tree, only these Go types standing in for one.
package proto

import "context"

// BacktestRequest asks for one or more independent single-instrument runs.
type BacktestRequest struct {
	Symbols            []string `json:"symbols"`
	Timeframe          string   `json:"timeframe"`
	StartYmd           int32    `json:"start_ymd"`
	EndYmd             int32    `json:"end_ymd"`
	StrategyPluginPath string   `json:"strategy_plugin_path"`
	StrategyParams     string   `json:"strategy_params"`
}

// SymbolResult is one symbol's outcome: where its run-pack was written plus
// an inline summary for quick display.
type SymbolResult struct {
	Symbol        string  `json:"symbol"`
	RunPackPath   string  `json:"run_pack_path"`
	BarsReplayed  int64   `json:"bars_replayed"`
	NetProfit     float64 `json:"net_profit"`
	Sharpe        float64 `json:"sharpe"`
	MaxEquityDD   float64 `json:"max_equity_dd"`
	TotalTrades   int32   `json:"total_trades"`
	AccountBlown  bool    `json:"account_blown"`
	ErrorMessage  string  `json:"error_message,omitempty"`
}

// RunManifest is the job-level manifest carried in a BacktestResponse. It
// holds job identity and engine version; it does not carry the per-symbol
// fields of engine.RunManifest, which live in each run-pack's meta blob.
type RunManifest struct {
	JobID         string `json:"job_id"`
	ConfigHash    string `json:"config_hash"`
	EngineVersion string `json:"engine_version"`
	CreatedAtMs   int64  `json:"created_at_ms"`
}

// BacktestResponse is the result of one ExecuteBacktest call, one
// SymbolResult per requested symbol.
type BacktestResponse struct {
	JobID           string          `json:"job_id"`
	ExecutionTimeMs int64           `json:"execution_time_ms"`
	SymbolResults   []*SymbolResult `json:"symbol_results"`
	Manifest        *RunManifest    `json:"manifest"`
}

// BacktestServiceServer is the gRPC service interface implemented by
// cmd/server.
type BacktestServiceServer interface {
	ExecuteBacktest(context.Context, *BacktestRequest) (*BacktestResponse, error)
}

// UnimplementedBacktestServiceServer satisfies BacktestServiceServer with
// stub methods, embedded by implementations for forward compatibility.
type UnimplementedBacktestServiceServer struct{}

func (UnimplementedBacktestServiceServer) ExecuteBacktest(context.Context, *BacktestRequest) (*BacktestResponse, error) {
	return nil, nil
}

// RegisterBacktestServiceServer registers srv on s's method set. This
// codebase has no generated service descriptor (no protoc step), so
// registration is a no-op placeholder; the HTTP surface in cmd/server is
// the service's real front door.
func RegisterBacktestServiceServer(s any, srv BacktestServiceServer) {}
