// Package chunked provides the byte store and request scheduling used to load
// a PDF document incrementally over a range-capable transport.
//
// # Chunk Store
//
// A [Stream] holds a buffer of the document's full length divided into
// fixed-size chunks. Each chunk is either loaded or not; once loaded it stays
// loaded. Reads through the Stream's cursor fail with a
// *core.MissingDataError when they touch a chunk that has not arrived, which
// lets the parser in package core stop at exactly the missing interval:
//
//	s := chunked.NewStream(length, 65536)
//	b, err := s.GetByte()
//	if m, ok := core.IsMissingData(err); ok {
//	    // load m.Begin..m.End and retry
//	}
//
// Sub-streams made with MakeSubStream share the buffer and loaded flags but
// keep their own cursor and window.
//
// # Chunk Manager
//
// A [Manager] converts requested byte ranges into chunk fetches, groups
// adjacent chunks into one transport call, and never fetches a chunk that an
// earlier request already has in flight. Each request returns a [Request]
// future:
//
//	m := chunked.NewManager(s, fetcher)
//	if err := m.RequestRange(begin, end).Wait(ctx); err != nil {
//	    return err
//	}
//
// Transport calls run on separate goroutines. Their results are applied to
// the Stream by Request.Wait on the caller's goroutine, so the Stream needs
// no locking. When no request is outstanding after a delivery, the
// configured [ReadAhead] strategy picks one more chunk to fetch.
package chunked
