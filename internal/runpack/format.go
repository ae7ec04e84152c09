// Package runpack implements the self-describing binary container that
// holds a finished run's metrics series and trade log.
package runpack

const (
	// Magic is the 64-bit file identifier, little-endian on disk.
	Magic uint64 = 0x31504B504E555252 // "RRUNPKP1" marker, not a literal string
	// Version is the current run-pack format version.
	Version uint32 = 1
	// EndianCanary must read back unchanged on a little-endian host.
	EndianCanary uint32 = 0x01020304

	// FileHeaderSize is the fixed on-disk size of FileHeader.
	FileHeaderSize = 80
	// TocEntrySize is the fixed on-disk size of one TocEntry.
	TocEntrySize = 56
	// TradeRecordSize is the fixed on-disk size of one packed trade record.
	// Wider than the original's 56-byte TradeDiskV1 because every float
	// column here is float64, not float32 — see DESIGN.md.
	TradeRecordSize = 104
	// nameSize is the fixed width of a TocEntry's column name field.
	nameSize = 32
)

// DType tags the element type of a series column.
type DType uint32

const (
	DTypeI32 DType = 1
	DTypeI64 DType = 2
	DTypeF32 DType = 3
	DTypeF64 DType = 4
)

// FileHeader is the fixed-size header at the start of every run-pack file.
type FileHeader struct {
	Magic        uint64
	Version      uint32
	Endian       uint32
	CreatedMs    uint64
	MetaOffset   uint64
	MetaBytes    uint64
	TocOffset    uint64
	TocCount     uint32
	Reserved0    uint32
	TradesOffset uint64
	TradesCount  uint64
	FileBytes    uint64
}

// TocEntry describes one column's disk layout.
type TocEntry struct {
	Name    [nameSize]byte
	DType   DType
	ElemSize uint32
	Len      uint64
	Offset   uint64
}

// NameString returns the TOC entry's name with trailing NUL bytes trimmed.
func (e TocEntry) NameString() string {
	n := 0
	for n < nameSize && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

func setName32(name string) [nameSize]byte {
	var out [nameSize]byte
	if len(name) > nameSize-1 {
		name = name[:nameSize-1]
	}
	copy(out[:], name)
	return out
}

func align8(x uint64) uint64 { return (x + 7) &^ 7 }
