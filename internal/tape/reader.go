package tape

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Reader streams Bar records across a [startYmd, endYmd] calendar range,
// mapping one day's tape file at a time. It owns exactly one mmap'd region
// at once; the previous region is released before the next is opened.
//
// Not restartable in place: once exhausted, construct a new Reader.
type Reader struct {
	baseDir, symbol, timeframe string
	startYmd, endYmd           int

	currentDay int
	barIndex   uint64
	barCount   uint64

	region   []byte // current mmap'd file contents
	recBase  int    // byte offset of the first Bar record within region
	released bool
}

// New constructs a Reader over [startYmd, endYmd] (inclusive, YYYYMMDD).
func New(baseDir, symbol, timeframe string, startYmd, endYmd int) (*Reader, error) {
	if endYmd < startYmd {
		return nil, fmt.Errorf("tape: invalid range: end %d < start %d", endYmd, startYmd)
	}
	return &Reader{
		baseDir:    baseDir,
		symbol:     symbol,
		timeframe:  timeframe,
		startYmd:   startYmd,
		endYmd:     endYmd,
		currentDay: startYmd,
	}, nil
}

// Next yields the next Bar in ts-ascending order, or ok=false at end of
// stream. err is non-nil only on a fatal structural failure.
func (r *Reader) Next() (bar Bar, ok bool, err error) {
	for r.barIndex >= r.barCount {
		opened, oerr := r.openNextTape()
		if oerr != nil {
			return Bar{}, false, oerr
		}
		if !opened {
			return Bar{}, false, nil
		}
	}
	off := r.recBase + int(r.barIndex)*BarSize
	bar = DecodeBar(r.region, off)
	r.barIndex++
	return bar, true, nil
}

// Close releases the current memory mapping, if any. Safe to call multiple
// times.
func (r *Reader) Close() error {
	return r.releaseCurrent()
}

func (r *Reader) releaseCurrent() error {
	if r.region == nil {
		return nil
	}
	reg := r.region
	r.region = nil
	r.recBase = 0
	r.barCount = 0
	r.barIndex = 0
	return unix.Munmap(reg)
}

// openNextTape scans forward from currentDay for the next existing tape
// file, mmaps it, and validates its header. Missing files are skipped
// silently. Returns ok=false once currentDay passes endYmd.
func (r *Reader) openNextTape() (ok bool, err error) {
	for r.currentDay <= r.endYmd {
		path := TapePath(r.baseDir, r.symbol, r.timeframe, r.currentDay)
		r.currentDay = NextDay(r.currentDay)

		f, openErr := os.Open(path)
		if openErr != nil {
			if os.IsNotExist(openErr) {
				continue
			}
			return false, fmt.Errorf("tape: opening %s: %w", path, openErr)
		}

		st, statErr := f.Stat()
		if statErr != nil {
			f.Close()
			return false, fmt.Errorf("tape: stat %s: %w", path, statErr)
		}
		size := int(st.Size())
		if size < HeaderSize {
			f.Close()
			return false, fmt.Errorf("tape: %s too small: %d bytes", path, size)
		}

		region, mmapErr := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
		f.Close() // the mapping keeps the file's pages resident; the fd itself is no longer needed
		if mmapErr != nil {
			return false, fmt.Errorf("tape: mmap %s: %w", path, mmapErr)
		}

		hdr, hdrErr := DecodeHeader(region)
		if hdrErr != nil {
			unix.Munmap(region)
			return false, fmt.Errorf("tape: %s: %w", path, hdrErr)
		}

		if prevErr := r.releaseCurrent(); prevErr != nil {
			unix.Munmap(region)
			return false, fmt.Errorf("tape: releasing previous mapping: %w", prevErr)
		}

		r.region = region
		r.recBase = HeaderSize
		r.barCount = hdr.RecordCount
		r.barIndex = 0
		return true, nil
	}
	return false, nil
}
