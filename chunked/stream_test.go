package chunked

import (
	"bytes"
	"reflect"
	"testing"

	"github.com/tsawler/pdfrange/core"
)

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte('a' + i%26)
	}
	return data
}

// TestNewStream tests chunk counting for various lengths.
func TestNewStream(t *testing.T) {
	tests := []struct {
		name      string
		length    int64
		chunkSize int
		want      int
	}{
		{"empty", 0, 4, 0},
		{"exact", 16, 4, 4},
		{"short last chunk", 17, 4, 5},
		{"single partial chunk", 3, 4, 1},
		{"default chunk size", 70000, 0, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStream(tt.length, tt.chunkSize)
			if got := s.NumChunks(); got != tt.want {
				t.Errorf("NumChunks() = %d, want %d", got, tt.want)
			}
			if s.Length() != tt.length {
				t.Errorf("Length() = %d, want %d", s.Length(), tt.length)
			}
			if got := len(s.MissingChunks()); got != tt.want {
				t.Errorf("len(MissingChunks()) = %d, want %d", got, tt.want)
			}
		})
	}
}

// TestStreamOnReceiveData tests chunk marking, idempotence and alignment checks.
func TestStreamOnReceiveData(t *testing.T) {
	data := testData(10)

	t.Run("marks covered chunks", func(t *testing.T) {
		s := NewStream(10, 4)
		if err := s.OnReceiveData(0, data[0:8]); err != nil {
			t.Fatalf("OnReceiveData() error = %v", err)
		}
		if s.NumChunksLoaded() != 2 {
			t.Errorf("NumChunksLoaded() = %d, want 2", s.NumChunksLoaded())
		}
		if s.AllChunksLoaded() {
			t.Error("AllChunksLoaded() = true, want false")
		}
		if !reflect.DeepEqual(s.MissingChunks(), []int{2}) {
			t.Errorf("MissingChunks() = %v, want [2]", s.MissingChunks())
		}
	})

	t.Run("final short chunk", func(t *testing.T) {
		s := NewStream(10, 4)
		if err := s.OnReceiveData(8, data[8:]); err != nil {
			t.Fatalf("OnReceiveData() error = %v", err)
		}
		if !s.HasChunk(2) {
			t.Error("HasChunk(2) = false, want true")
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		s := NewStream(10, 4)
		for i := 0; i < 3; i++ {
			if err := s.OnReceiveData(4, data[4:8]); err != nil {
				t.Fatalf("OnReceiveData() error = %v", err)
			}
		}
		if s.NumChunksLoaded() != 1 {
			t.Errorf("NumChunksLoaded() = %d, want 1", s.NumChunksLoaded())
		}
	})

	t.Run("all loaded", func(t *testing.T) {
		s := NewStream(10, 4)
		if err := s.OnReceiveData(0, data); err != nil {
			t.Fatalf("OnReceiveData() error = %v", err)
		}
		if !s.AllChunksLoaded() {
			t.Error("AllChunksLoaded() = false, want true")
		}
		if s.MissingChunks() != nil {
			t.Errorf("MissingChunks() = %v, want nil", s.MissingChunks())
		}
	})

	errTests := []struct {
		name  string
		begin int64
		data  []byte
	}{
		{"misaligned begin", 2, data[2:6]},
		{"misaligned end", 0, data[0:5]},
		{"overrun", 8, testData(4)},
		{"negative begin", -4, data[0:4]},
	}
	for _, tt := range errTests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStream(10, 4)
			if err := s.OnReceiveData(tt.begin, tt.data); err == nil {
				t.Error("expected error")
			}
			if s.NumChunksLoaded() != 0 {
				t.Errorf("NumChunksLoaded() = %d, want 0", s.NumChunksLoaded())
			}
		})
	}
}

// TestStreamProgressiveData tests that progressive delivery marks only fully covered chunks.
func TestStreamProgressiveData(t *testing.T) {
	data := testData(10)
	s := NewStream(10, 4)

	b, e := s.OnReceiveProgressiveData(data[0:6])
	if b != 0 || e != 1 {
		t.Errorf("first delivery chunks = [%d, %d), want [0, 1)", b, e)
	}
	if s.HasChunk(1) {
		t.Error("HasChunk(1) = true after partial delivery")
	}

	// Bytes below the progressive length are readable even in a partial chunk.
	s.Seek(5)
	if got, err := s.GetByte(); err != nil || got != int(data[5]) {
		t.Errorf("GetByte() = %d, %v; want %d", got, err, data[5])
	}
	if _, err := s.GetByte(); err == nil {
		t.Error("GetByte() past progressive length: expected missing data")
	}

	b, e = s.OnReceiveProgressiveData(data[6:])
	if b != 1 || e != 3 {
		t.Errorf("second delivery chunks = [%d, %d), want [1, 3)", b, e)
	}
	if !s.AllChunksLoaded() {
		t.Error("AllChunksLoaded() = false, want true")
	}
	if s.ProgressiveDataLength() != 10 {
		t.Errorf("ProgressiveDataLength() = %d, want 10", s.ProgressiveDataLength())
	}
}

// TestStreamReads tests cursor reads over loaded and missing chunks.
func TestStreamReads(t *testing.T) {
	data := []byte{0x01, 0x02, 0xff, 0xff, 0xff, 0xfe, 'x', 'y', 'z', 'w'}
	s := NewStream(10, 4)
	if err := s.OnReceiveData(0, data[0:8]); err != nil {
		t.Fatal(err)
	}

	if v, err := s.GetUint16(); err != nil || v != 0x0102 {
		t.Errorf("GetUint16() = %#x, %v; want 0x102", v, err)
	}
	if v, err := s.GetInt32(); err != nil || v != -2 {
		t.Errorf("GetInt32() = %d, %v; want -2", v, err)
	}
	if v, err := s.PeekByte(); err != nil || v != 'x' {
		t.Errorf("PeekByte() = %d, %v; want 'x'", v, err)
	}
	if b, err := s.PeekBytes(2); err != nil || string(b) != "xy" {
		t.Errorf("PeekBytes(2) = %q, %v", b, err)
	}
	if s.Pos() != 6 {
		t.Errorf("Pos() = %d, want 6", s.Pos())
	}

	_, err := s.GetBytes(4)
	m, ok := core.IsMissingData(err)
	if !ok {
		t.Fatalf("GetBytes(4) error = %v, want missing data", err)
	}
	if m.Begin != 6 || m.End != 10 {
		t.Errorf("missing range = [%d, %d), want [6, 10)", m.Begin, m.End)
	}
	if s.Pos() != 6 {
		t.Errorf("Pos() moved to %d on missing data", s.Pos())
	}

	if b, err := s.GetByteRange(1, 3); err != nil || !bytes.Equal(b, data[1:3]) {
		t.Errorf("GetByteRange(1, 3) = %v, %v", b, err)
	}
	if _, err := s.GetByteRange(7, 9); err == nil {
		t.Error("GetByteRange(7, 9): expected missing data")
	}

	if err := s.OnReceiveData(8, data[8:]); err != nil {
		t.Fatal(err)
	}
	if b, err := s.GetBytes(0); err != nil || string(b) != "xyzw" {
		t.Errorf("GetBytes(0) = %q, %v; want rest", b, err)
	}
	if v, err := s.GetByte(); err != nil || v != -1 {
		t.Errorf("GetByte() at end = %d, %v; want -1", v, err)
	}

	s.Reset()
	if s.Pos() != 0 {
		t.Errorf("Reset() pos = %d", s.Pos())
	}
	s.Skip(3)
	if s.Pos() != 3 {
		t.Errorf("Skip(3) pos = %d", s.Pos())
	}
}

// TestStreamMissingByte tests that a single byte miss reports a one byte range.
func TestStreamMissingByte(t *testing.T) {
	s := NewStream(12, 4)
	s.Seek(9)
	_, err := s.GetByte()
	m, ok := core.IsMissingData(err)
	if !ok {
		t.Fatalf("GetByte() error = %v, want missing data", err)
	}
	if m.Begin != 9 || m.End != 10 {
		t.Errorf("missing range = [%d, %d), want [9, 10)", m.Begin, m.End)
	}
}

// TestStreamNegativePosition tests that reads before the start of the
// buffer fail instead of indexing out of range.
func TestStreamNegativePosition(t *testing.T) {
	s := NewStream(12, 4)
	s.OnReceiveProgressiveData(testData(8))

	if err := s.EnsureByte(-1); err == nil {
		t.Error("EnsureByte(-1) should fail")
	}
	if err := s.EnsureRange(-4, 2); err == nil {
		t.Error("EnsureRange(-4, 2) should fail")
	}

	s.Seek(-3)
	if _, err := s.GetByte(); err == nil {
		t.Error("GetByte at -3 should fail")
	}
	if _, err := s.PeekBytes(2); err == nil {
		t.Error("PeekBytes at -3 should fail")
	}

	sub := s.MakeSubStream(-10, 0)
	if sub.Start() != 0 || sub.Pos() != 0 {
		t.Errorf("window starts at %d pos %d, want 0", sub.Start(), sub.Pos())
	}
	if c, err := sub.GetByte(); err != nil || c != 'a' {
		t.Errorf("GetByte() = %d, %v", c, err)
	}
}

// TestStreamSubStream tests window scoping of sub-streams.
func TestStreamSubStream(t *testing.T) {
	data := testData(20)
	s := NewStream(20, 4)

	sub := s.MakeSubStream(6, 8).(*Stream)
	if sub.Start() != 6 || sub.End() != 14 || sub.Pos() != 6 {
		t.Errorf("window = [%d, %d) pos %d, want [6, 14) pos 6", sub.Start(), sub.End(), sub.Pos())
	}
	if !reflect.DeepEqual(sub.MissingChunks(), []int{1, 2, 3}) {
		t.Errorf("MissingChunks() = %v, want [1 2 3]", sub.MissingChunks())
	}

	if err := s.OnReceiveData(4, data[4:12]); err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(sub.MissingChunks(), []int{3}) {
		t.Errorf("MissingChunks() after delivery = %v, want [3]", sub.MissingChunks())
	}

	if b, err := sub.GetBytes(6); err != nil || !bytes.Equal(b, data[6:12]) {
		t.Errorf("GetBytes(6) = %q, %v", b, err)
	}
	if s.Pos() != 0 {
		t.Errorf("parent Pos() = %d, sub-stream cursor leaked", s.Pos())
	}

	rest := s.MakeSubStream(16, 0)
	if rest.End() != 20 {
		t.Errorf("zero length sub-stream End() = %d, want 20", rest.End())
	}

	nested := sub.MakeSubStream(8, 100)
	if nested.End() != 14 {
		t.Errorf("nested End() = %d, want 14", nested.End())
	}
}

// TestStreamNextEmptyChunk tests the wrap-around search for unloaded chunks.
func TestStreamNextEmptyChunk(t *testing.T) {
	data := testData(16)
	s := NewStream(16, 4)
	if err := s.OnReceiveData(0, data[0:4]); err != nil {
		t.Fatal(err)
	}
	if err := s.OnReceiveData(8, data[8:12]); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		begin int
		want  int
	}{
		{0, 1},
		{1, 1},
		{2, 3},
		{3, 3},
		{4, 1},
		{-1, 1},
	}
	for _, tt := range tests {
		if got := s.NextEmptyChunk(tt.begin); got != tt.want {
			t.Errorf("NextEmptyChunk(%d) = %d, want %d", tt.begin, got, tt.want)
		}
	}

	if err := s.OnReceiveData(4, data[4:8]); err != nil {
		t.Fatal(err)
	}
	if err := s.OnReceiveData(12, data[12:]); err != nil {
		t.Fatal(err)
	}
	if got := s.NextEmptyChunk(0); got != -1 {
		t.Errorf("NextEmptyChunk() on full store = %d, want -1", got)
	}
}

// TestReadAhead tests the chunk choices of the read-ahead strategies.
func TestReadAhead(t *testing.T) {
	data := testData(16)
	s := NewStream(16, 4)
	if err := s.OnReceiveData(0, data[0:4]); err != nil {
		t.Fatal(err)
	}

	if c, ok := LastChunkFirst.NextChunk(s, 1); !ok || c != 3 {
		t.Errorf("LastChunkFirst with one chunk = %d, %v; want 3", c, ok)
	}
	if c, ok := Sequential.NextChunk(s, 1); !ok || c != 1 {
		t.Errorf("Sequential = %d, %v; want 1", c, ok)
	}

	if err := s.OnReceiveData(12, data[12:]); err != nil {
		t.Fatal(err)
	}
	if c, ok := LastChunkFirst.NextChunk(s, 0); !ok || c != 1 {
		t.Errorf("LastChunkFirst after last chunk = %d, %v; want 1", c, ok)
	}

	if err := s.OnReceiveData(4, data[4:12]); err != nil {
		t.Fatal(err)
	}
	if _, ok := Sequential.NextChunk(s, 0); ok {
		t.Error("Sequential on full store returned a chunk")
	}
}
