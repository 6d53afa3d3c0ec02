package chunked

// ReadAhead picks the chunk to fetch speculatively once every explicit
// request has been satisfied. endChunk is the chunk just after the most
// recent delivery.
type ReadAhead interface {
	NextChunk(s *Stream, endChunk int) (int, bool)
}

// ReadAheadFunc adapts a function to the ReadAhead interface.
type ReadAheadFunc func(s *Stream, endChunk int) (int, bool)

func (f ReadAheadFunc) NextChunk(s *Stream, endChunk int) (int, bool) {
	return f(s, endChunk)
}

var (
	// LastChunkFirst fetches the final chunk right after the first delivery,
	// since the trailer lives there, then continues with the next empty chunk.
	LastChunkFirst ReadAhead = ReadAheadFunc(lastChunkFirst)

	// Sequential always continues with the next empty chunk.
	Sequential ReadAhead = ReadAheadFunc(sequential)
)

func lastChunkFirst(s *Stream, endChunk int) (int, bool) {
	last := s.NumChunks() - 1
	if s.NumChunksLoaded() == 1 && last >= 0 && !s.HasChunk(last) {
		return last, true
	}
	return sequential(s, endChunk)
}

func sequential(s *Stream, endChunk int) (int, bool) {
	next := s.NextEmptyChunk(endChunk)
	return next, next >= 0
}
