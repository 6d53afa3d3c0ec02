package core

import "context"

// Source is a cursor over a window of a random-access byte buffer whose
// contents may be only partially available. Positions are absolute offsets
// into the backing buffer. Reads of bytes that have not arrived fail with a
// *MissingDataError before the cursor moves.
type Source interface {
	Start() int64
	End() int64
	Length() int64
	Pos() int64
	Seek(pos int64)
	Skip(n int64)
	Reset()

	// GetByte returns the next byte, or -1 at the end of the window.
	GetByte() (int, error)
	PeekByte() (int, error)
	// GetBytes returns up to n bytes; n <= 0 means the rest of the window.
	GetBytes(n int) ([]byte, error)
	PeekBytes(n int) ([]byte, error)
	GetByteRange(begin, end int64) ([]byte, error)

	// MakeSubStream returns a view of [start, start+length). A zero length
	// extends the view to the end of this source. Creating a view never
	// requires the bytes to be present.
	MakeSubStream(start, length int64) Source
}

// ChunkedSource is a Source that tracks which fixed-size chunks of its
// backing buffer are loaded.
type ChunkedSource interface {
	Source
	MissingChunks() []int
}

// RangeLoader makes byte ranges of a document available, blocking until
// they have been delivered or the context ends.
type RangeLoader interface {
	LoadRange(ctx context.Context, begin, end int64) error
	LoadRanges(ctx context.Context, ranges []Range) error
}

// MemorySource is a fully resident Source over a byte slice.
type MemorySource struct {
	data  []byte
	start int64
	end   int64
	pos   int64
}

// NewMemorySource creates a source over data.
func NewMemorySource(data []byte) *MemorySource {
	return &MemorySource{data: data, end: int64(len(data))}
}

func (m *MemorySource) Start() int64   { return m.start }
func (m *MemorySource) End() int64     { return m.end }
func (m *MemorySource) Length() int64  { return m.end - m.start }
func (m *MemorySource) Pos() int64     { return m.pos }
func (m *MemorySource) Seek(pos int64) { m.pos = pos }
func (m *MemorySource) Skip(n int64)   { m.pos += n }
func (m *MemorySource) Reset()         { m.pos = m.start }

func (m *MemorySource) GetByte() (int, error) {
	b, err := m.PeekByte()
	if err != nil || b < 0 {
		return b, err
	}
	m.pos++
	return b, nil
}

func (m *MemorySource) PeekByte() (int, error) {
	if m.pos < 0 {
		return 0, formatErrorf("read at negative position %d", m.pos)
	}
	if m.pos >= m.end {
		return -1, nil
	}
	return int(m.data[m.pos]), nil
}

func (m *MemorySource) GetBytes(n int) ([]byte, error) {
	b, err := m.PeekBytes(n)
	m.pos += int64(len(b))
	return b, err
}

func (m *MemorySource) PeekBytes(n int) ([]byte, error) {
	if m.pos < 0 {
		return nil, formatErrorf("read at negative position %d", m.pos)
	}
	if m.pos >= m.end {
		return nil, nil
	}
	end := m.end
	if n > 0 && m.pos+int64(n) < end {
		end = m.pos + int64(n)
	}
	return m.data[m.pos:end], nil
}

func (m *MemorySource) GetByteRange(begin, end int64) ([]byte, error) {
	if begin < 0 {
		begin = 0
	}
	if end > int64(len(m.data)) {
		end = int64(len(m.data))
	}
	if begin >= end {
		return nil, nil
	}
	return m.data[begin:end], nil
}

func (m *MemorySource) MakeSubStream(start, length int64) Source {
	if start < 0 {
		start = 0
	}
	end := m.end
	if length > 0 && start+length < end {
		end = start + length
	}
	if start > end {
		start = end
	}
	return &MemorySource{data: m.data, start: start, end: end, pos: start}
}
