package tape

import "testing"

func TestEncodeDecodeBarRoundTrips(t *testing.T) {
	want := Bar{TsNs: 123456789, Open: 1.2345, High: 1.25, Low: 1.2, Close: 1.23, Volume: 42.5}
	enc := EncodeBar(want)

	buf := make([]byte, BarSize)
	copy(buf, enc[:])
	got := DecodeBar(buf, 0)

	if got != want {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestDecodeHeaderRejectsBadMagic(t *testing.T) {
	h := EncodeHeader(TapeHeader{StartTsNs: 1, EndTsNs: 2, RecordCount: 0})
	buf := make([]byte, HeaderSize)
	copy(buf, h[:])
	buf[0] = 'X'

	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected an error for corrupted magic")
	}
}

func TestDecodeHeaderRejectsShortFileSpan(t *testing.T) {
	h := EncodeHeader(TapeHeader{StartTsNs: 1, EndTsNs: 2, RecordCount: 5})
	buf := make([]byte, HeaderSize) // no bar records despite RecordCount=5
	copy(buf, h[:])

	if _, err := DecodeHeader(buf); err == nil {
		t.Fatal("expected an error when file is shorter than header+record_count*record_size")
	}
}
