// Package clickhouse reads canonical OHLCV bars out of ClickHouse for the
// tape-generation tool. It is the one place decimal.Decimal is used in this
// module: ClickHouse's native decimal columns decode into it, and tapegen
// converts to float64 only at the point of writing a tape Bar.
package clickhouse

import (
	"context"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/shopspring/decimal"
)

// Config names the source database and table tapegen reads from.
type Config struct {
	DSN   string
	DB    string
	Table string
}

// Bar is one canonical OHLCV row as stored in ClickHouse.
type Bar struct {
	TsMs   int64
	Open   decimal.Decimal
	High   decimal.Decimal
	Low    decimal.Decimal
	Close  decimal.Decimal
	Volume decimal.Decimal
}

// Client wraps a ClickHouse connection scoped to one symbol/timeframe table.
type Client struct {
	conn  clickhouse.Conn
	table string
}

// NewClient dials ClickHouse using cfg.DSN.
func NewClient(cfg Config) (*Client, error) {
	opts, err := clickhouse.ParseDSN(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: parsing dsn: %w", err)
	}
	if cfg.DB != "" {
		opts.Auth.Database = cfg.DB
	}
	conn, err := clickhouse.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: opening connection: %w", err)
	}
	return &Client{conn: conn, table: cfg.Table}, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

// QueryBars returns every bar for symbol/timeframe with ts_ms in
// [fromMs, toMs), ordered by timestamp, as ClickHouse stores them.
func (c *Client) QueryBars(ctx context.Context, symbol, timeframe string, fromMs, toMs int64) ([]Bar, error) {
	query := fmt.Sprintf(`
		SELECT ts_ms, open, high, low, close, volume
		FROM %s
		WHERE symbol = ? AND timeframe = ? AND ts_ms >= ? AND ts_ms < ?
		ORDER BY ts_ms
	`, c.table)

	rows, err := c.conn.Query(ctx, query, symbol, timeframe, fromMs, toMs)
	if err != nil {
		return nil, fmt.Errorf("clickhouse: querying bars: %w", err)
	}
	defer rows.Close()

	var bars []Bar
	for rows.Next() {
		var b Bar
		if err := rows.Scan(&b.TsMs, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("clickhouse: scanning bar: %w", err)
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// DayRange converts a yyyymmdd integer day to the [fromMs, toMs) window
// ClickHouse should be queried with for that single calendar day.
func DayRange(yyyymmdd int) (fromMs, toMs int64) {
	y, m, d := yyyymmdd/10000, (yyyymmdd/100)%100, yyyymmdd%100
	start := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	return start.UnixMilli(), start.AddDate(0, 0, 1).UnixMilli()
}
