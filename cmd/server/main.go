// Command server exposes the backtest engine over HTTP, fanning a single
// BacktestRequest out across a bounded worker pool, one engine.Run per
// symbol. It also starts a gRPC server, but pb.RegisterBacktestServiceServer
// is a no-op, so that server offers reflection only and no backtest method.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	"chronotape/internal/broker"
	"chronotape/internal/config"
	"chronotape/internal/engine"
	"chronotape/internal/logging"
	pb "chronotape/proto"
)

// BacktestService implements pb.BacktestServiceServer by driving the engine
// package directly; there is no remote engine process to call out to.
type BacktestService struct {
	pb.UnimplementedBacktestServiceServer
	cfg    *config.Config
	logger *zap.Logger
}

// NewBacktestService wires a BacktestService from resolved configuration.
func NewBacktestService(cfg *config.Config, logger *zap.Logger) *BacktestService {
	return &BacktestService{cfg: cfg, logger: logger}
}

// ExecuteBacktest runs every requested symbol through the engine in
// parallel and collects per-symbol results, writing one run-pack per
// symbol under the engine's base directory.
func (s *BacktestService) ExecuteBacktest(ctx context.Context, req *pb.BacktestRequest) (*pb.BacktestResponse, error) {
	start := time.Now()
	jobID := uuid.New().String()

	s.logger.Info("starting backtest job",
		zap.String("job_id", jobID),
		zap.Strings("symbols", req.Symbols),
		zap.String("timeframe", req.Timeframe),
	)

	results := s.runSymbols(ctx, jobID, req)

	resp := &pb.BacktestResponse{
		JobID:           jobID,
		ExecutionTimeMs: time.Since(start).Milliseconds(),
		SymbolResults:   results,
		Manifest: &pb.RunManifest{
			JobID:         jobID,
			EngineVersion: "1.0.0",
			CreatedAtMs:   time.Now().UnixMilli(),
		},
	}

	s.logger.Info("backtest job complete",
		zap.String("job_id", jobID),
		zap.Int64("execution_time_ms", resp.ExecutionTimeMs),
		zap.Int("symbols", len(results)),
	)
	return resp, nil
}

// runSymbols distributes req.Symbols across a bounded worker pool and
// collects one SymbolResult per symbol, in request order.
func (s *BacktestService) runSymbols(ctx context.Context, jobID string, req *pb.BacktestRequest) []*pb.SymbolResult {
	numWorkers := runtime.NumCPU()
	if s.cfg.Engine.MaxWorkers > 0 {
		numWorkers = s.cfg.Engine.MaxWorkers
	}
	if numWorkers > len(req.Symbols) {
		numWorkers = len(req.Symbols)
	}
	if numWorkers < 1 {
		numWorkers = 1
	}

	type indexedSymbol struct {
		idx    int
		symbol string
	}
	work := make(chan indexedSymbol, len(req.Symbols))
	for i, sym := range req.Symbols {
		work <- indexedSymbol{idx: i, symbol: sym}
	}
	close(work)

	results := make([]*pb.SymbolResult, len(req.Symbols))

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range work {
				results[item.idx] = s.processSymbol(jobID, item.symbol, req)
			}
			_ = workerID
		}(w)
	}
	wg.Wait()

	return results
}

// processSymbol runs the engine for one symbol, never returning an error:
// a failed symbol is reported inline via SymbolResult.ErrorMessage so that
// one bad symbol doesn't fail the whole batch.
func (s *BacktestService) processSymbol(jobID, symbol string, req *pb.BacktestRequest) *pb.SymbolResult {
	cfg := engine.Config{
		BaseDir:            s.cfg.Engine.BaseDir,
		Symbol:             symbol,
		Timeframe:          req.Timeframe,
		StartYmd:           int(req.StartYmd),
		EndYmd:             int(req.EndYmd),
		Spec:               broker.SymbolSpec{PipSize: 0.0001, LotSize: 100000},
		Costs:              broker.CostsModel{},
		InitialBalance:     s.cfg.Engine.InitialBalance,
		PluginPath:         req.StrategyPluginPath,
		PluginParams:       req.StrategyParams,
		AnnualizationBars:  s.cfg.Engine.AnnualizationBars,
	}

	res, err := engine.Run(cfg)
	if err != nil {
		s.logger.Error("symbol backtest failed", zap.String("job_id", jobID), zap.String("symbol", symbol), zap.Error(err))
		return &pb.SymbolResult{Symbol: symbol, ErrorMessage: err.Error()}
	}

	outPath := filepath.Join(s.cfg.Engine.BaseDir, "runpacks", jobID, symbol+".runpack")
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return &pb.SymbolResult{Symbol: symbol, ErrorMessage: err.Error()}
	}

	manifest, err := engine.BuildManifest(cfg, res)
	if err != nil {
		return &pb.SymbolResult{Symbol: symbol, ErrorMessage: err.Error()}
	}
	metaJSON, err := json.Marshal(manifest)
	if err != nil {
		return &pb.SymbolResult{Symbol: symbol, ErrorMessage: err.Error()}
	}
	if err := engine.WriteRunPack(outPath, metaJSON, res); err != nil {
		return &pb.SymbolResult{Symbol: symbol, ErrorMessage: err.Error()}
	}

	n := res.Series.Len()
	result := &pb.SymbolResult{
		Symbol:       symbol,
		RunPackPath:  outPath,
		BarsReplayed: int64(res.BarsReplayed),
		AccountBlown: res.AccountBlown,
		TotalTrades:  int32(len(res.Trades)),
	}
	if n > 0 {
		result.NetProfit = res.Series.NetProfit[n-1]
		result.Sharpe = res.Series.SharpeRatio[n-1]
		result.MaxEquityDD = res.Series.MaxEquityDD[n-1]
	}
	return result
}

func (s *BacktestService) setupHTTPRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/backtest", s.handleBacktestRequest)
		api.GET("/health", s.handleHealthCheck)
	}
}

func (s *BacktestService) handleBacktestRequest(c *gin.Context) {
	var req pb.BacktestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.ExecuteBacktest(c.Request.Context(), &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *BacktestService) handleHealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now().Unix()})
}

func main() {
	cfgPath := os.Getenv("CHRONOTAPE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: loading config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Environment == "development")
	if err != nil {
		fmt.Fprintf(os.Stderr, "server: building logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("starting chronotape server", zap.String("environment", cfg.Environment))

	service := NewBacktestService(cfg, logger)

	grpcServer := grpc.NewServer()
	pb.RegisterBacktestServiceServer(grpcServer, service)
	reflection.Register(grpcServer)

	gin.SetMode(gin.ReleaseMode)
	httpRouter := gin.New()
	httpRouter.Use(gin.Recovery())
	service.setupHTTPRoutes(httpRouter)

	go func() {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Server.GRPCPort))
		if err != nil {
			logger.Fatal("failed to listen on gRPC port", zap.Error(err))
		}
		logger.Info("gRPC server listening", zap.Int("port", cfg.Server.GRPCPort))
		if err := grpcServer.Serve(lis); err != nil {
			logger.Fatal("gRPC server stopped", zap.Error(err))
		}
	}()

	go func() {
		logger.Info("HTTP server listening", zap.Int("port", cfg.Server.HTTPPort))
		if err := httpRouter.Run(fmt.Sprintf(":%d", cfg.Server.HTTPPort)); err != nil {
			logger.Fatal("HTTP server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	grpcServer.GracefulStop()
	logger.Info("shutdown complete")
}
