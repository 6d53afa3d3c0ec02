package chunked

import (
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/tsawler/pdfrange/core"
)

// DefaultChunkSize is the chunk size used when none is configured.
const DefaultChunkSize = 65536

// store is the buffer shared by a Stream and all of its sub-streams.
type store struct {
	bytes                 []byte
	chunkSize             int64
	numChunks             int
	loaded                []bool
	numChunksLoaded       int
	progressiveDataLength int64

	lastSuccessfulEnsureByteChunk int
}

// Stream is a chunk store: a byte buffer of known length that fills in
// fixed-size chunks as data arrives. It implements core.ChunkedSource.
//
// Reads check availability before moving the cursor. Reading a byte that
// has not arrived fails with a *core.MissingDataError.
//
// A Stream is not safe for concurrent use. Writes normally happen through a
// Manager, which applies them on the goroutine that waits for them.
type Stream struct {
	st    *store
	start int64
	end   int64
	pos   int64
}

var _ core.ChunkedSource = (*Stream)(nil)

// NewStream creates an empty store of length bytes split into chunks of
// chunkSize bytes. A non-positive chunkSize selects DefaultChunkSize.
func NewStream(length int64, chunkSize int) *Stream {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if length < 0 {
		length = 0
	}
	cs := int64(chunkSize)
	n := int((length + cs - 1) / cs)
	st := &store{
		bytes:                         make([]byte, length),
		chunkSize:                     cs,
		numChunks:                     n,
		loaded:                        make([]bool, n),
		lastSuccessfulEnsureByteChunk: -1,
	}
	return &Stream{st: st, end: length}
}

// ChunkSize returns the size of a chunk in bytes.
func (s *Stream) ChunkSize() int { return int(s.st.chunkSize) }

// NumChunks returns the number of chunks covering the whole store.
func (s *Stream) NumChunks() int { return s.st.numChunks }

// NumChunksLoaded returns the number of chunks marked loaded.
func (s *Stream) NumChunksLoaded() int { return s.st.numChunksLoaded }

// AllChunksLoaded reports whether every chunk of the store has arrived.
func (s *Stream) AllChunksLoaded() bool { return s.st.numChunksLoaded == s.st.numChunks }

// HasChunk reports whether chunk has arrived.
func (s *Stream) HasChunk(chunk int) bool {
	if chunk < 0 || chunk >= s.st.numChunks {
		return false
	}
	return s.st.loaded[chunk]
}

// ProgressiveDataLength returns how many leading bytes were delivered by a
// progressive (streaming) load.
func (s *Stream) ProgressiveDataLength() int64 { return s.st.progressiveDataLength }

// Bytes returns the whole backing buffer. Unloaded regions are zero.
func (s *Stream) Bytes() []byte { return s.st.bytes }

// MissingChunks returns, in ascending order, the unloaded chunks that
// intersect this view's window.
func (s *Stream) MissingChunks() []int {
	if s.start >= s.end {
		return nil
	}
	var chunks []int
	for c := s.beginChunk(s.start); c < s.endChunk(s.end); c++ {
		if !s.st.loaded[c] {
			chunks = append(chunks, c)
		}
	}
	return chunks
}

// NextEmptyChunk returns the first unloaded chunk at or after begin,
// wrapping around to the start of the store. It returns -1 when every
// chunk is loaded.
func (s *Stream) NextEmptyChunk(begin int) int {
	n := s.st.numChunks
	if n == 0 {
		return -1
	}
	if begin < 0 || begin >= n {
		begin = 0
	}
	for i := 0; i < n; i++ {
		c := (begin + i) % n
		if !s.st.loaded[c] {
			return c
		}
	}
	return -1
}

func (s *Stream) beginChunk(pos int64) int {
	return int(pos / s.st.chunkSize)
}

func (s *Stream) endChunk(end int64) int {
	if end%s.st.chunkSize == 0 {
		return int(end / s.st.chunkSize)
	}
	return int((end-1)/s.st.chunkSize) + 1
}

// OnReceiveData stores chunk at begin and marks the chunks it covers. begin
// must be chunk aligned, and the data must end on a chunk boundary or at
// the end of the store. Delivering the same chunk twice is harmless.
func (s *Stream) OnReceiveData(begin int64, chunk []byte) error {
	st := s.st
	length := int64(len(st.bytes))
	end := begin + int64(len(chunk))
	if begin < 0 || begin%st.chunkSize != 0 {
		return errors.Errorf("chunked: bad begin offset %d", begin)
	}
	if end > length {
		return errors.Errorf("chunked: data [%d, %d) overruns length %d", begin, end, length)
	}
	if end%st.chunkSize != 0 && end != length {
		return errors.Errorf("chunked: bad end offset %d", end)
	}

	copy(st.bytes[begin:end], chunk)
	for c := s.beginChunk(begin); c < s.endChunk(end); c++ {
		s.markLoaded(c)
	}
	return nil
}

// OnReceiveProgressiveData appends data after the bytes already delivered
// progressively and marks every chunk that is now fully covered. It returns
// the half-open range of chunks that became loaded.
func (s *Stream) OnReceiveProgressiveData(data []byte) (beginChunk, endChunk int) {
	st := s.st
	length := int64(len(st.bytes))
	position := st.progressiveDataLength
	if position+int64(len(data)) > length {
		data = data[:length-position]
	}
	beginChunk = s.beginChunk(position)
	copy(st.bytes[position:], data)
	position += int64(len(data))
	st.progressiveDataLength = position

	if position >= length {
		endChunk = st.numChunks
	} else {
		endChunk = int(position / st.chunkSize)
	}
	for c := beginChunk; c < endChunk; c++ {
		s.markLoaded(c)
	}
	return beginChunk, endChunk
}

func (s *Stream) markLoaded(chunk int) {
	if !s.st.loaded[chunk] {
		s.st.loaded[chunk] = true
		s.st.numChunksLoaded++
	}
}

// EnsureByte fails with a *core.MissingDataError covering [pos, pos+1)
// when the chunk holding pos has not arrived.
func (s *Stream) EnsureByte(pos int64) error {
	st := s.st
	if pos < 0 {
		return errors.Errorf("chunked: read at negative position %d", pos)
	}
	if pos < st.progressiveDataLength {
		return nil
	}
	chunk := s.beginChunk(pos)
	if chunk == st.lastSuccessfulEnsureByteChunk {
		return nil
	}
	if chunk >= st.numChunks || !st.loaded[chunk] {
		return &core.MissingDataError{Begin: pos, End: pos + 1}
	}
	st.lastSuccessfulEnsureByteChunk = chunk
	return nil
}

// EnsureRange fails with a *core.MissingDataError covering [begin, end)
// when any chunk intersecting the range has not arrived.
func (s *Stream) EnsureRange(begin, end int64) error {
	st := s.st
	if begin < 0 {
		return errors.Errorf("chunked: read at negative position %d", begin)
	}
	if begin >= end || end <= st.progressiveDataLength {
		return nil
	}
	beginChunk := s.beginChunk(begin)
	endChunk := s.endChunk(end)
	if endChunk > st.numChunks {
		endChunk = st.numChunks
	}
	for c := beginChunk; c < endChunk; c++ {
		if !st.loaded[c] {
			return &core.MissingDataError{Begin: begin, End: end}
		}
	}
	return nil
}

func (s *Stream) Start() int64   { return s.start }
func (s *Stream) End() int64     { return s.end }
func (s *Stream) Length() int64  { return s.end - s.start }
func (s *Stream) Pos() int64     { return s.pos }
func (s *Stream) Seek(pos int64) { s.pos = pos }
func (s *Stream) Skip(n int64)   { s.pos += n }
func (s *Stream) Reset()         { s.pos = s.start }

// GetByte returns the next byte, or -1 at the end of the window.
func (s *Stream) GetByte() (int, error) {
	b, err := s.PeekByte()
	if err != nil || b < 0 {
		return b, err
	}
	s.pos++
	return b, nil
}

// PeekByte returns the next byte without consuming it.
func (s *Stream) PeekByte() (int, error) {
	if s.pos >= s.end {
		return -1, nil
	}
	if err := s.EnsureByte(s.pos); err != nil {
		return 0, err
	}
	return int(s.st.bytes[s.pos]), nil
}

// GetUint16 reads a big-endian 16-bit value. It returns -1 when fewer than
// two bytes remain.
func (s *Stream) GetUint16() (int, error) {
	b, err := s.PeekBytes(2)
	if err != nil {
		return 0, err
	}
	if len(b) < 2 {
		return -1, nil
	}
	s.pos += 2
	return int(binary.BigEndian.Uint16(b)), nil
}

// GetInt32 reads a big-endian signed 32-bit value.
func (s *Stream) GetInt32() (int32, error) {
	b, err := s.PeekBytes(4)
	if err != nil {
		return 0, err
	}
	if len(b) < 4 {
		return 0, errors.Errorf("chunked: short read at %d", s.pos)
	}
	s.pos += 4
	return int32(binary.BigEndian.Uint32(b)), nil
}

// GetBytes returns up to n bytes and advances the cursor. n <= 0 reads the
// rest of the window.
func (s *Stream) GetBytes(n int) ([]byte, error) {
	b, err := s.PeekBytes(n)
	if err != nil {
		return nil, err
	}
	s.pos += int64(len(b))
	return b, nil
}

// PeekBytes returns up to n bytes without moving the cursor.
func (s *Stream) PeekBytes(n int) ([]byte, error) {
	if s.pos >= s.end {
		return nil, nil
	}
	end := s.end
	if n > 0 && s.pos+int64(n) < end {
		end = s.pos + int64(n)
	}
	if err := s.EnsureRange(s.pos, end); err != nil {
		return nil, err
	}
	return s.st.bytes[s.pos:end], nil
}

// GetByteRange returns the bytes [begin, end) of the backing buffer without
// touching the cursor.
func (s *Stream) GetByteRange(begin, end int64) ([]byte, error) {
	if begin < 0 {
		begin = 0
	}
	if length := int64(len(s.st.bytes)); end > length {
		end = length
	}
	if begin >= end {
		return nil, nil
	}
	if err := s.EnsureRange(begin, end); err != nil {
		return nil, err
	}
	return s.st.bytes[begin:end], nil
}

// MakeSubStream returns a view of [start, start+length) sharing this store.
// A zero length extends the view to this stream's end.
func (s *Stream) MakeSubStream(start, length int64) core.Source {
	if start < 0 {
		start = 0
	}
	end := s.end
	if length > 0 && start+length < end {
		end = start + length
	}
	if start > end {
		start = end
	}
	return &Stream{st: s.st, start: start, end: end, pos: start}
}
