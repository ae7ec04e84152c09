// Command csvtape converts one day of CSV bars (timestamp_ms,open,high,
// low,close,volume) directly into a .tape file, bypassing ClickHouse
// entirely. It is the offline counterpart to cmd/tapegen: useful for
// loading a vendor CSV export or a manual backfill without standing up a
// database first.
//
// Input may be UTF-16 with a byte-order mark, as some vendor exports are;
// the BOM is sniffed and transcoded to UTF-8 before parsing.
package main

import (
	"bufio"
	"encoding/csv"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"chronotape/internal/tape"
)

func main() {
	in := flag.String("in", "", "input CSV path (required)")
	outDir := flag.String("out-dir", "./data", "tape root directory")
	symbol := flag.String("symbol", "", "instrument symbol (required)")
	timeframe := flag.String("timeframe", "1m", "bar timeframe")
	day := flag.Int("day", 0, "calendar day the CSV covers, yyyymmdd (required)")
	flag.Parse()

	if *in == "" || *symbol == "" || *day == 0 {
		fmt.Fprintln(os.Stderr, "csvtape: -in, -symbol, and -day are required")
		os.Exit(1)
	}

	barNanos, ok := tape.BarNanos(*timeframe)
	if !ok {
		fmt.Fprintf(os.Stderr, "csvtape: unrecognized timeframe %q\n", *timeframe)
		os.Exit(1)
	}

	bars, err := readCSV(*in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "csvtape: %v\n", err)
		os.Exit(1)
	}
	if len(bars) == 0 {
		fmt.Fprintln(os.Stderr, "csvtape: no bars parsed from input")
		os.Exit(1)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].TsNs < bars[j].TsNs })

	path := tape.TapePath(*outDir, *symbol, *timeframe, *day)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "csvtape: creating %s: %v\n", filepath.Dir(path), err)
		os.Exit(1)
	}

	if err := writeTape(path, bars); err != nil {
		fmt.Fprintf(os.Stderr, "csvtape: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("wrote %d bars to %s\n", len(bars), path)
	_ = barNanos // retained for future gap-filling between rows; not needed for a direct dump
}

// readCSV parses timestamp_ms,open,high,low,close[,volume] rows, sniffing
// for a UTF-16 BOM and transcoding to UTF-8 before handing off to the CSV
// reader.
func readCSV(path string) ([]tape.Bar, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	br := bufio.NewReader(f)
	if b, _ := br.Peek(2); len(b) >= 2 && ((b[0] == 0xFF && b[1] == 0xFE) || (b[0] == 0xFE && b[1] == 0xFF)) {
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to start: %w", err)
		}
		tr := transform.NewReader(f, unicode.UTF16(unicode.LittleEndian, unicode.ExpectBOM).NewDecoder())
		br = bufio.NewReader(tr)
	}

	r := csv.NewReader(br)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	var bars []tape.Bar
	first := true
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil || len(rec) < 5 {
			continue
		}
		if first {
			first = false
			if strings.EqualFold(rec[0], "timestamp") || strings.EqualFold(rec[0], "timestamp_ms") {
				continue
			}
		}

		tsStr := strings.TrimSpace(strings.TrimPrefix(rec[0], "﻿"))
		tsMs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			continue
		}
		parse := func(s string) float64 {
			v, _ := strconv.ParseFloat(strings.TrimSpace(strings.Trim(s, `"`)), 64)
			return v
		}
		vol := 0.0
		if len(rec) >= 6 {
			vol = parse(rec[5])
		}
		bars = append(bars, tape.Bar{
			TsNs:   uint64(tsMs) * 1_000_000,
			Open:   parse(rec[1]),
			High:   parse(rec[2]),
			Low:    parse(rec[3]),
			Close:  parse(rec[4]),
			Volume: float32(vol),
		})
	}
	return bars, nil
}

func writeTape(path string, bars []tape.Bar) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	hdr := tape.EncodeHeader(tape.TapeHeader{
		StartTsNs:   bars[0].TsNs,
		EndTsNs:     bars[len(bars)-1].TsNs,
		RecordCount: uint64(len(bars)),
	})
	if _, err := f.Write(hdr[:]); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, b := range bars {
		enc := tape.EncodeBar(b)
		if _, err := f.Write(enc[:]); err != nil {
			return fmt.Errorf("writing bar %d: %w", i, err)
		}
	}
	return nil
}
