package filters

import (
	"bytes"
	"compress/lzw"
	"errors"
	"testing"
)

// TestRunLengthDecode tests literal runs, repeats and the EOD marker
func TestRunLengthDecode(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    []byte
		wantErr bool
	}{
		{name: "literal", input: []byte{2, 'a', 'b', 'c', 128}, want: []byte("abc")},
		{name: "repeat", input: []byte{254, 'x', 128}, want: []byte("xxx")},
		{name: "mixed", input: []byte{0, 'a', 255, 'b', 128}, want: []byte("abb")},
		{name: "no eod", input: []byte{1, 'h', 'i'}, want: []byte("hi")},
		{name: "literal overrun", input: []byte{5, 'a'}, wantErr: true},
		{name: "repeat overrun", input: []byte{200}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RunLengthDecode(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunLengthDecode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("RunLengthDecode() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestLZWDecodeEarlyChangeZero tests the conventional LZW variant
func TestLZWDecodeEarlyChangeZero(t *testing.T) {
	want := bytes.Repeat([]byte("pdfrange LZW "), 20)

	var buf bytes.Buffer
	w := lzw.NewWriter(&buf, lzw.MSB, 8)
	w.Write(want)
	w.Close()

	got, err := LZWDecode(buf.Bytes(), Params{"EarlyChange": 0})
	if err != nil {
		t.Fatalf("LZWDecode() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("LZWDecode() = %q, want %q", got, want)
	}
}

// TestDecodeDispatch tests filter name lookup, aliases and passthrough
func TestDecodeDispatch(t *testing.T) {
	got, err := Decode("AHx", []byte("6869>"), nil)
	if err != nil {
		t.Fatalf("Decode(AHx) error = %v", err)
	}
	if string(got) != "hi" {
		t.Errorf("Decode(AHx) = %q, want %q", got, "hi")
	}

	jpeg := []byte{0xFF, 0xD8, 0xFF}
	got, err = Decode("DCTDecode", jpeg, nil)
	if err != nil || !bytes.Equal(got, jpeg) {
		t.Errorf("Decode(DCTDecode) = %v, %v; want passthrough", got, err)
	}

	_, err = Decode("JBIG2Decode", nil, nil)
	var unsupported *ErrUnsupported
	if !errors.As(err, &unsupported) {
		t.Fatalf("Decode(JBIG2Decode) error = %v, want *ErrUnsupported", err)
	}
	if unsupported.Filter != "JBIG2Decode" {
		t.Errorf("Filter = %q, want JBIG2Decode", unsupported.Filter)
	}
}
