package tape

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	// HeaderSize is the fixed on-disk size of a TapeHeader, in bytes.
	HeaderSize = 72
	// BarSize is the fixed on-disk size of a single Bar record, in bytes.
	BarSize = 44

	magicValue      = "TAPEv001"
	expectedVersion = uint32(1)
	expectedRecType = uint32(2) // 1-minute bar
)

// TapeHeader is the 72-byte densely packed header at the start of every
// .tape file.
type TapeHeader struct {
	Magic       [8]byte
	Version     uint32
	RecordType  uint32
	RecordSize  uint32
	Reserved0   uint32
	StartTsNs   uint64
	EndTsNs     uint64
	RecordCount uint64
	Reserved    [24]byte
}

// Bar is one 44-byte OHLCV observation.
type Bar struct {
	TsNs   uint64
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float32
}

// DecodeHeader parses and validates a TapeHeader from the first HeaderSize
// bytes of buf. Any structural violation is reported as an error per the
// file-format invariants.
func DecodeHeader(buf []byte) (TapeHeader, error) {
	var h TapeHeader
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("tape: short header: have %d bytes, need %d", len(buf), HeaderSize)
	}
	copy(h.Magic[:], buf[0:8])
	h.Version = binary.LittleEndian.Uint32(buf[8:12])
	h.RecordType = binary.LittleEndian.Uint32(buf[12:16])
	h.RecordSize = binary.LittleEndian.Uint32(buf[16:20])
	h.Reserved0 = binary.LittleEndian.Uint32(buf[20:24])
	h.StartTsNs = binary.LittleEndian.Uint64(buf[24:32])
	h.EndTsNs = binary.LittleEndian.Uint64(buf[32:40])
	h.RecordCount = binary.LittleEndian.Uint64(buf[40:48])
	copy(h.Reserved[:], buf[48:72])

	if string(h.Magic[:]) != magicValue {
		return h, fmt.Errorf("tape: bad magic %q", h.Magic[:])
	}
	if h.Version != expectedVersion {
		return h, fmt.Errorf("tape: bad version %d, want %d", h.Version, expectedVersion)
	}
	if h.RecordType != expectedRecType {
		return h, fmt.Errorf("tape: bad record_type %d, want %d", h.RecordType, expectedRecType)
	}
	if h.RecordSize != BarSize {
		return h, fmt.Errorf("tape: bad record_size %d, want %d", h.RecordSize, BarSize)
	}
	need := uint64(HeaderSize) + h.RecordCount*uint64(BarSize)
	if uint64(len(buf)) < need {
		return h, fmt.Errorf("tape: file span %d shorter than declared record_count*record_size+header (%d)", len(buf), need)
	}
	return h, nil
}

// DecodeBar decodes one 44-byte Bar record from buf[off:off+BarSize].
func DecodeBar(buf []byte, off int) Bar {
	b := buf[off : off+BarSize]
	return Bar{
		TsNs:   binary.LittleEndian.Uint64(b[0:8]),
		Open:   math.Float64frombits(binary.LittleEndian.Uint64(b[8:16])),
		High:   math.Float64frombits(binary.LittleEndian.Uint64(b[16:24])),
		Low:    math.Float64frombits(binary.LittleEndian.Uint64(b[24:32])),
		Close:  math.Float64frombits(binary.LittleEndian.Uint64(b[32:40])),
		Volume: math.Float32frombits(binary.LittleEndian.Uint32(b[40:44])),
	}
}

// EncodeBar writes a Bar as 44 densely-packed little-endian bytes, used by
// tape-generation tooling (cmd/tapegen) rather than the core reader.
func EncodeBar(b Bar) [BarSize]byte {
	var out [BarSize]byte
	binary.LittleEndian.PutUint64(out[0:8], b.TsNs)
	binary.LittleEndian.PutUint64(out[8:16], math.Float64bits(b.Open))
	binary.LittleEndian.PutUint64(out[16:24], math.Float64bits(b.High))
	binary.LittleEndian.PutUint64(out[24:32], math.Float64bits(b.Low))
	binary.LittleEndian.PutUint64(out[32:40], math.Float64bits(b.Close))
	binary.LittleEndian.PutUint32(out[40:44], math.Float32bits(b.Volume))
	return out
}

// EncodeHeader writes a TapeHeader as 72 densely-packed little-endian bytes.
func EncodeHeader(h TapeHeader) [HeaderSize]byte {
	var out [HeaderSize]byte
	copy(out[0:8], magicValue)
	binary.LittleEndian.PutUint32(out[8:12], expectedVersion)
	binary.LittleEndian.PutUint32(out[12:16], expectedRecType)
	binary.LittleEndian.PutUint32(out[16:20], BarSize)
	binary.LittleEndian.PutUint64(out[24:32], h.StartTsNs)
	binary.LittleEndian.PutUint64(out[32:40], h.EndTsNs)
	binary.LittleEndian.PutUint64(out[40:48], h.RecordCount)
	return out
}
