// Package tape implements the on-disk bar format and the memory-mapped
// streaming reader that replays it.
package tape

import "fmt"

func isLeap(y int) bool {
	return (y%4 == 0 && y%100 != 0) || y%400 == 0
}

var monthDays = [12]int{31, 28, 31, 30, 31, 30, 31, 31, 30, 31, 30, 31}

func daysInMonth(y, m int) int {
	d := monthDays[m-1]
	if m == 2 && isLeap(y) {
		d++
	}
	return d
}

func ymdFromInt(yyyymmdd int) (y, m, d int) {
	y = yyyymmdd / 10000
	m = (yyyymmdd / 100) % 100
	d = yyyymmdd % 100
	return
}

func ymdToInt(y, m, d int) int {
	return y*10000 + m*100 + d
}

// NextDay advances a YYYYMMDD integer date by one calendar day, Gregorian.
func NextDay(yyyymmdd int) int {
	y, m, d := ymdFromInt(yyyymmdd)
	d++
	if dim := daysInMonth(y, m); d > dim {
		d = 1
		m++
	}
	if m > 12 {
		m = 1
		y++
	}
	return ymdToInt(y, m, d)
}

// TapePath returns the deterministic path for a symbol/timeframe/day tape file:
// {base_dir}/bars/{symbol}/{timeframe}/{yyyy}/{symbol}_{yyyymmdd}.tape
func TapePath(baseDir, symbol, timeframe string, yyyymmdd int) string {
	y, _, _ := ymdFromInt(yyyymmdd)
	return fmt.Sprintf("%s/bars/%s/%s/%04d/%s_%08d.tape", baseDir, symbol, timeframe, y, symbol, yyyymmdd)
}

// BarNanos maps a recognized timeframe string to its bar size in nanoseconds.
func BarNanos(timeframe string) (int64, bool) {
	switch timeframe {
	case "1m":
		return 60 * 1_000_000_000, true
	case "5m":
		return 5 * 60 * 1_000_000_000, true
	case "15m":
		return 15 * 60 * 1_000_000_000, true
	case "1h":
		return 3600 * 1_000_000_000, true
	case "4h":
		return 4 * 3600 * 1_000_000_000, true
	case "1d":
		return 86_400 * 1_000_000_000, true
	default:
		return 0, false
	}
}
