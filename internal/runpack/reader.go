package runpack

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"chronotape/internal/metrics"
)

// Pack is a read-only view over a parsed run-pack file.
type Pack struct {
	Header FileHeader
	Meta   []byte
	toc    []TocEntry
	data   []byte
}

// Open reads and validates path's header, meta blob, and TOC. The series
// and trade blobs are decoded lazily by the typed column accessors
// (Float64Column, Int32Column, Int64Column) and Trades.
func Open(path string) (*Pack, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("runpack: reading %s: %w", path, err)
	}
	if len(data) < FileHeaderSize {
		return nil, fmt.Errorf("runpack: %s shorter than header", path)
	}

	hdr := decodeHeader(data)
	if hdr.Magic != Magic {
		return nil, fmt.Errorf("runpack: %s: bad magic", path)
	}
	if hdr.Version != Version {
		return nil, fmt.Errorf("runpack: %s: unsupported version %d", path, hdr.Version)
	}
	if hdr.Endian != EndianCanary {
		return nil, fmt.Errorf("runpack: %s: endian canary mismatch (byte-swapped or unknown)", path)
	}
	if uint64(len(data)) < hdr.FileBytes {
		return nil, fmt.Errorf("runpack: %s: truncated, declared %d bytes, have %d", path, hdr.FileBytes, len(data))
	}

	metaStart := hdr.MetaOffset
	if metaStart+8 > uint64(len(data)) {
		return nil, fmt.Errorf("runpack: %s: meta blob out of range", path)
	}
	metaLen := binary.LittleEndian.Uint64(data[metaStart : metaStart+8])
	metaBytes := data[metaStart+8 : metaStart+8+metaLen]

	toc := make([]TocEntry, hdr.TocCount)
	for i := range toc {
		off := hdr.TocOffset + uint64(i)*TocEntrySize
		toc[i] = decodeTocEntry(data[off : off+TocEntrySize])
	}

	return &Pack{Header: hdr, Meta: metaBytes, toc: toc, data: data}, nil
}

func decodeHeader(b []byte) FileHeader {
	return FileHeader{
		Magic:        binary.LittleEndian.Uint64(b[0:8]),
		Version:      binary.LittleEndian.Uint32(b[8:12]),
		Endian:       binary.LittleEndian.Uint32(b[12:16]),
		CreatedMs:    binary.LittleEndian.Uint64(b[16:24]),
		MetaOffset:   binary.LittleEndian.Uint64(b[24:32]),
		MetaBytes:    binary.LittleEndian.Uint64(b[32:40]),
		TocOffset:    binary.LittleEndian.Uint64(b[40:48]),
		TocCount:     binary.LittleEndian.Uint32(b[48:52]),
		Reserved0:    binary.LittleEndian.Uint32(b[52:56]),
		TradesOffset: binary.LittleEndian.Uint64(b[56:64]),
		TradesCount:  binary.LittleEndian.Uint64(b[64:72]),
		FileBytes:    binary.LittleEndian.Uint64(b[72:80]),
	}
}

func decodeTocEntry(b []byte) TocEntry {
	var e TocEntry
	copy(e.Name[:], b[0:32])
	e.DType = DType(binary.LittleEndian.Uint32(b[32:36]))
	e.ElemSize = binary.LittleEndian.Uint32(b[36:40])
	e.Len = binary.LittleEndian.Uint64(b[40:48])
	e.Offset = binary.LittleEndian.Uint64(b[48:56])
	return e
}

// TOC returns the table of contents entries, in on-disk order.
func (p *Pack) TOC() []TocEntry { return p.toc }

func (p *Pack) find(name string) (TocEntry, bool) {
	for _, e := range p.toc {
		if e.NameString() == name {
			return e, true
		}
	}
	return TocEntry{}, false
}

// Float64Column returns the named F64 column's values.
func (p *Pack) Float64Column(name string) ([]float64, error) {
	e, ok := p.find(name)
	if !ok {
		return nil, fmt.Errorf("runpack: no such column %q", name)
	}
	if e.DType != DTypeF64 {
		return nil, fmt.Errorf("runpack: column %q is not F64", name)
	}
	out := make([]float64, e.Len)
	for i := range out {
		off := e.Offset + uint64(i)*8
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(p.data[off : off+8]))
	}
	return out, nil
}

// Int32Column returns the named I32 column's values.
func (p *Pack) Int32Column(name string) ([]int32, error) {
	e, ok := p.find(name)
	if !ok {
		return nil, fmt.Errorf("runpack: no such column %q", name)
	}
	if e.DType != DTypeI32 {
		return nil, fmt.Errorf("runpack: column %q is not I32", name)
	}
	out := make([]int32, e.Len)
	for i := range out {
		off := e.Offset + uint64(i)*4
		out[i] = int32(binary.LittleEndian.Uint32(p.data[off : off+4]))
	}
	return out, nil
}

// Int64Column returns the named I64 column's values.
func (p *Pack) Int64Column(name string) ([]int64, error) {
	e, ok := p.find(name)
	if !ok {
		return nil, fmt.Errorf("runpack: no such column %q", name)
	}
	if e.DType != DTypeI64 {
		return nil, fmt.Errorf("runpack: column %q is not I64", name)
	}
	out := make([]int64, e.Len)
	for i := range out {
		off := e.Offset + uint64(i)*8
		out[i] = int64(binary.LittleEndian.Uint64(p.data[off : off+8]))
	}
	return out, nil
}

// Trades decodes and returns every packed trade record.
func (p *Pack) Trades() []metrics.ClosedTradeRecord {
	out := make([]metrics.ClosedTradeRecord, p.Header.TradesCount)
	for i := range out {
		off := p.Header.TradesOffset + uint64(i)*TradeRecordSize
		b := p.data[off : off+TradeRecordSize]
		out[i] = metrics.ClosedTradeRecord{
			EntryTsNs:   int64(binary.LittleEndian.Uint64(b[0:8])),
			ExitTsNs:    int64(binary.LittleEndian.Uint64(b[8:16])),
			EntryBarIdx: int64(binary.LittleEndian.Uint64(b[16:24])),
			ExitBarIdx:  int64(binary.LittleEndian.Uint64(b[24:32])),
			Side:        int32(binary.LittleEndian.Uint32(b[32:36])),
			LotsClosed:  math.Float64frombits(binary.LittleEndian.Uint64(b[40:48])),
			EntryPrice:  math.Float64frombits(binary.LittleEndian.Uint64(b[48:56])),
			ExitPrice:   math.Float64frombits(binary.LittleEndian.Uint64(b[56:64])),
			Pnl:         math.Float64frombits(binary.LittleEndian.Uint64(b[64:72])),
			PnlR:        math.Float64frombits(binary.LittleEndian.Uint64(b[72:80])),
			Mae:         math.Float64frombits(binary.LittleEndian.Uint64(b[80:88])),
			Mfe:         math.Float64frombits(binary.LittleEndian.Uint64(b[88:96])),
			Commission:  math.Float64frombits(binary.LittleEndian.Uint64(b[96:104])),
		}
	}
	return out
}
