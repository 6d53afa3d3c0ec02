package chunked

import (
	"context"
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/tsawler/pdfrange/core"
	"github.com/tsawler/pdfrange/internal/logging"
)

var (
	// ErrAborted rejects every request outstanding when Abort is called,
	// and every request made afterwards.
	ErrAborted = errors.New("chunked: request aborted")

	// ErrStalled is returned by Wait when a request is still pending but no
	// fetch is in flight that could satisfy it.
	ErrStalled = errors.New("chunked: request stalled")
)

const progressiveReadSize = 32 * 1024

// Fetcher retrieves the bytes [begin, end) of the document.
type Fetcher interface {
	FetchRange(ctx context.Context, begin, end int64) ([]byte, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, begin, end int64) ([]byte, error)

func (f FetcherFunc) FetchRange(ctx context.Context, begin, end int64) ([]byte, error) {
	return f(ctx, begin, end)
}

// Option configures a Manager.
type Option func(*Manager)

// WithReadAhead sets the speculative fetch strategy. nil disables it.
func WithReadAhead(r ReadAhead) Option {
	return func(m *Manager) { m.readAhead = r }
}

// WithProgress registers fn to be called after every delivery with the
// number of bytes loaded so far and the document length.
func WithProgress(fn func(loaded, total int64)) Option {
	return func(m *Manager) { m.progress = fn }
}

// WithLogger sets the logger used for transport failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(m *Manager) { m.log = log }
}

type arrival struct {
	begin       int64
	data        []byte
	err         error
	progressive bool
}

// Manager turns byte-range requests into chunk fetches against a Fetcher
// and resolves the matching Requests as chunks arrive. Overlapping requests
// share fetches: a chunk already in flight is never requested twice.
//
// Fetches run on their own goroutines and queue their results. The queue is
// drained into the Stream only from Request.Wait, so the Stream is written
// on the same goroutine that reads it.
type Manager struct {
	stream    *Stream
	fetcher   Fetcher
	readAhead ReadAhead
	progress  func(loaded, total int64)
	log       logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	notify chan struct{}

	mu                    sync.Mutex
	currRequestID         RequestID
	chunksNeededByRequest map[RequestID]map[int]struct{}
	requestsByChunk       map[int][]RequestID
	requests              map[RequestID]*Request
	queue                 []arrival
	inflight              int
	aborted               bool
}

var _ core.RangeLoader = (*Manager)(nil)

// NewManager creates a manager filling stream from fetcher. The default
// read-ahead strategy is LastChunkFirst.
func NewManager(stream *Stream, fetcher Fetcher, opts ...Option) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		stream:                stream,
		fetcher:               fetcher,
		readAhead:             LastChunkFirst,
		log:                   logging.GetLogger("chunked"),
		ctx:                   ctx,
		cancel:                cancel,
		notify:                make(chan struct{}, 1),
		chunksNeededByRequest: make(map[RequestID]map[int]struct{}),
		requestsByChunk:       make(map[int][]RequestID),
		requests:              make(map[RequestID]*Request),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Stream returns the store the manager fills.
func (m *Manager) Stream() *Stream { return m.stream }

// Length returns the document length.
func (m *Manager) Length() int64 { return int64(len(m.stream.st.bytes)) }

// RequestRange requests the chunks covering [begin, end).
func (m *Manager) RequestRange(begin, end int64) *Request {
	return m.RequestRanges([]core.Range{{Begin: begin, End: end}})
}

// RequestRanges requests the union of the chunks covering each range.
func (m *Manager) RequestRanges(ranges []core.Range) *Request {
	length := m.Length()
	seen := make(map[int]struct{})
	var chunks []int
	for _, r := range ranges {
		begin, end := r.Begin, r.End
		if begin < 0 {
			begin = 0
		}
		if end > length {
			end = length
		}
		if begin >= end {
			continue
		}
		for c := m.stream.beginChunk(begin); c < m.stream.endChunk(end); c++ {
			if _, ok := seen[c]; !ok {
				seen[c] = struct{}{}
				chunks = append(chunks, c)
			}
		}
	}
	sort.Ints(chunks)

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestChunks(chunks)
}

// RequestAllChunks requests every chunk not yet loaded. The request
// resolves once the whole document is resident.
func (m *Manager) RequestAllChunks() *Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var chunks []int
	for c, loaded := range m.stream.st.loaded {
		if !loaded {
			chunks = append(chunks, c)
		}
	}
	return m.requestChunks(chunks)
}

// LoadRange requests [begin, end) and waits for it.
func (m *Manager) LoadRange(ctx context.Context, begin, end int64) error {
	return m.RequestRange(begin, end).Wait(ctx)
}

// LoadRanges requests every range and waits for all of them.
func (m *Manager) LoadRanges(ctx context.Context, ranges []core.Range) error {
	return m.RequestRanges(ranges).Wait(ctx)
}

// requestChunks must be called with m.mu held.
func (m *Manager) requestChunks(chunks []int) *Request {
	id := m.currRequestID
	m.currRequestID++
	r := &Request{id: id, m: m}

	if m.aborted {
		r.done, r.err = true, ErrAborted
		return r
	}

	needed := make(map[int]struct{})
	for _, c := range chunks {
		if !m.stream.HasChunk(c) {
			needed[c] = struct{}{}
		}
	}
	if len(needed) == 0 {
		r.done = true
		return r
	}
	m.chunksNeededByRequest[id] = needed
	m.requests[id] = r

	var toFetch []int
	for _, c := range chunks {
		if _, ok := needed[c]; !ok {
			continue
		}
		if _, inflight := m.requestsByChunk[c]; !inflight {
			toFetch = append(toFetch, c)
		}
		m.requestsByChunk[c] = append(m.requestsByChunk[c], id)
	}

	cs := m.stream.st.chunkSize
	length := m.Length()
	for _, g := range groupChunks(toFetch) {
		begin := int64(g.begin) * cs
		end := int64(g.end) * cs
		if end > length {
			end = length
		}
		m.sendRequest(begin, end)
	}
	return r
}

type chunkGroup struct {
	begin, end int
}

// groupChunks collapses sorted chunk indices into contiguous [begin, end) runs.
func groupChunks(chunks []int) []chunkGroup {
	var groups []chunkGroup
	for i := 0; i < len(chunks); {
		begin := chunks[i]
		prev := begin
		i++
		for i < len(chunks) && chunks[i] == prev+1 {
			prev = chunks[i]
			i++
		}
		groups = append(groups, chunkGroup{begin: begin, end: prev + 1})
	}
	return groups
}

// sendRequest must be called with m.mu held.
func (m *Manager) sendRequest(begin, end int64) {
	m.inflight++
	ctx := m.ctx
	go func() {
		data, err := m.fetcher.FetchRange(ctx, begin, end)
		if err != nil {
			err = errors.Wrapf(err, "fetch [%d, %d)", begin, end)
		}
		m.enqueue(arrival{begin: begin, data: data, err: err}, true)
	}()
}

func (m *Manager) enqueue(a arrival, last bool) {
	m.mu.Lock()
	m.queue = append(m.queue, a)
	if last {
		m.inflight--
	}
	m.mu.Unlock()
	m.wake()
}

func (m *Manager) wake() {
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// StartProgressive streams r into the store from offset zero. Chunks it
// completes resolve pending requests just like range deliveries.
func (m *Manager) StartProgressive(r io.Reader) {
	m.mu.Lock()
	m.inflight++
	m.mu.Unlock()

	go func() {
		for {
			buf := make([]byte, progressiveReadSize)
			n, err := r.Read(buf)
			if n > 0 {
				m.enqueue(arrival{data: buf[:n], progressive: true}, false)
			}
			if err == io.EOF {
				m.enqueue(arrival{progressive: true}, true)
				return
			}
			if err != nil {
				m.enqueue(arrival{err: errors.Wrap(err, "progressive read"), progressive: true}, true)
				return
			}
			if m.ctx.Err() != nil {
				m.enqueue(arrival{err: ErrAborted, progressive: true}, true)
				return
			}
		}
	}()
}

// pump applies every queued delivery.
func (m *Manager) pump() {
	m.mu.Lock()
	defer m.mu.Unlock()

	queue := m.queue
	m.queue = nil
	for _, a := range queue {
		m.apply(a)
	}
}

// apply must be called with m.mu held.
func (m *Manager) apply(a arrival) {
	if m.aborted {
		return
	}
	if a.err != nil {
		m.rejectAll(a.err)
		return
	}
	if a.progressive {
		if len(a.data) > 0 {
			m.onReceiveProgressiveData(a.data)
		}
		return
	}
	if err := m.onReceiveData(a.begin, a.data); err != nil {
		m.rejectAll(err)
	}
}

// OnReceiveData stores data delivered outside the manager's own fetches and
// resolves the requests it satisfies.
func (m *Manager) OnReceiveData(begin int64, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.onReceiveData(begin, data)
}

// OnReceiveProgressiveData appends data to the progressively delivered
// prefix and resolves the requests it satisfies.
func (m *Manager) OnReceiveProgressiveData(data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onReceiveProgressiveData(data)
}

func (m *Manager) onReceiveData(begin int64, data []byte) error {
	if err := m.stream.OnReceiveData(begin, data); err != nil {
		return err
	}
	end := begin + int64(len(data))
	m.deliver(m.stream.beginChunk(begin), m.stream.endChunk(end))
	return nil
}

func (m *Manager) onReceiveProgressiveData(data []byte) {
	beginChunk, endChunk := m.stream.OnReceiveProgressiveData(data)
	m.deliver(beginChunk, endChunk)
}

// deliver resolves the requests waiting on chunks [beginChunk, endChunk),
// schedules read-ahead when nothing else is outstanding and reports progress.
func (m *Manager) deliver(beginChunk, endChunk int) {
	var resolved []RequestID
	for c := beginChunk; c < endChunk; c++ {
		ids := m.requestsByChunk[c]
		delete(m.requestsByChunk, c)
		for _, id := range ids {
			needed, pending := m.chunksNeededByRequest[id]
			if !pending {
				continue
			}
			delete(needed, c)
			if len(needed) == 0 {
				delete(m.chunksNeededByRequest, id)
				resolved = append(resolved, id)
			}
		}
	}

	if m.readAhead != nil && len(m.requestsByChunk) == 0 && !m.stream.AllChunksLoaded() {
		if next, ok := m.readAhead.NextChunk(m.stream, endChunk); ok {
			m.requestChunks([]int{next})
		}
	}

	for _, id := range resolved {
		if r, ok := m.requests[id]; ok {
			delete(m.requests, id)
			r.done = true
		}
	}

	if m.progress != nil {
		total := m.Length()
		loaded := int64(m.stream.NumChunksLoaded()) * m.stream.st.chunkSize
		if p := m.stream.ProgressiveDataLength(); p > loaded {
			loaded = p
		}
		if loaded > total {
			loaded = total
		}
		m.progress(loaded, total)
	}
}

// rejectAll must be called with m.mu held.
func (m *Manager) rejectAll(err error) {
	m.log.WithError(err).Warn("rejecting pending requests")
	for id, r := range m.requests {
		r.done, r.err = true, err
		delete(m.requests, id)
	}
	m.chunksNeededByRequest = make(map[RequestID]map[int]struct{})
	m.requestsByChunk = make(map[int][]RequestID)
}

// Abort cancels every fetch in flight and rejects all outstanding requests
// with ErrAborted.
func (m *Manager) Abort() {
	m.cancel()

	m.mu.Lock()
	if !m.aborted {
		m.aborted = true
		for id, r := range m.requests {
			r.done, r.err = true, ErrAborted
			delete(m.requests, id)
		}
		m.chunksNeededByRequest = make(map[RequestID]map[int]struct{})
		m.requestsByChunk = make(map[int][]RequestID)
		m.queue = nil
	}
	m.mu.Unlock()
	m.wake()
}
