// Command runpack-inspect prints a run-pack's table of contents and a short
// performance summary, without ever touching the engine or a strategy
// plugin. It is the read-only counterpart to cmd/backtest.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"chronotape/internal/runpack"
)

func main() {
	path := flag.String("path", "", "run-pack file to inspect (required)")
	showTrades := flag.Bool("trades", false, "also print every closed trade")
	flag.Parse()

	if *path == "" {
		fmt.Fprintln(os.Stderr, "runpack-inspect: -path is required")
		os.Exit(1)
	}

	pack, err := runpack.Open(*path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "runpack-inspect: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("created_ms: %d\n", pack.Header.CreatedMs)
	fmt.Printf("meta: %s\n", string(pack.Meta))
	fmt.Println()

	fmt.Println("columns:")
	for _, e := range pack.TOC() {
		fmt.Printf("  %-24s dtype=%-3d len=%d\n", e.NameString(), e.DType, e.Len)
	}

	if net, err := pack.Float64Column("net_profit"); err == nil && len(net) > 0 {
		sharpe, _ := pack.Float64Column("sharpe")
		maxDD, _ := pack.Float64Column("max_equity_dd")
		fmt.Println()
		fmt.Printf("final net_profit:  %.2f\n", net[len(net)-1])
		if len(sharpe) > 0 {
			fmt.Printf("final sharpe:      %.4f\n", sharpe[len(sharpe)-1])
		}
		if len(maxDD) > 0 {
			fmt.Printf("max_equity_dd:     %.2f\n", maxDD[len(maxDD)-1])
		}
	}

	fmt.Printf("\ntrades: %d\n", pack.Header.TradesCount)
	if *showTrades {
		trades := pack.Trades()
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		for _, t := range trades {
			_ = enc.Encode(t)
		}
	}
}
