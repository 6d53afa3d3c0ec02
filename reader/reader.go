package reader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/tsawler/pdfrange/chunked"
	"github.com/tsawler/pdfrange/core"
	"github.com/tsawler/pdfrange/internal/logging"
	"github.com/tsawler/pdfrange/resolver"
)

// ErrNoHeader is returned when no %PDF- header appears in the first
// kilobyte of the document.
var ErrNoHeader = errors.New("invalid PDF header")

const headerSearchSize = 1024

var versionPattern = regexp.MustCompile(`^(\d+)\.(\d+)`)

// PDFVersion represents a PDF version
type PDFVersion struct {
	Major int
	Minor int
}

// String returns the version as a string (e.g., "1.7")
func (v PDFVersion) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Reader is one document session. It owns the byte source, the chunk manager
// of a network document and the cross-reference index.
//
// A Reader is driven from a single goroutine. Close may be called from any
// goroutine to abort outstanding network requests.
type Reader struct {
	id      uuid.UUID
	src     core.Source
	stream  *chunked.Stream
	manager *chunked.Manager
	loader  core.RangeLoader
	xref    *core.XRef
	version PDFVersion
	opts    options
	log     logrus.FieldLogger
}

// NewReader creates a reader over a fully resident document.
func NewReader(data []byte, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	r.src = core.NewMemorySource(data)
	if err := r.init(context.Background()); err != nil {
		return nil, err
	}
	return r, nil
}

// Open reads a PDF file into memory and returns a Reader
func Open(filename string, opts ...Option) (*Reader, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return NewReader(data, opts...)
}

// NewNetwork creates a reader over a document of length bytes fetched in
// chunks through fetcher. Only the ranges needed to read the header and the
// cross-reference chain are fetched before it returns.
func NewNetwork(ctx context.Context, fetcher chunked.Fetcher, length int64, opts ...Option) (*Reader, error) {
	r := newReader(opts)
	r.stream = chunked.NewStream(length, r.opts.chunkSize)
	r.manager = chunked.NewManager(r.stream, fetcher,
		chunked.WithReadAhead(r.opts.readAhead),
		chunked.WithProgress(r.opts.progress),
		chunked.WithLogger(r.log))
	r.src = r.stream
	r.loader = r.manager

	if r.opts.progressive != nil {
		r.manager.StartProgressive(r.opts.progressive)
	}
	if err := r.init(ctx); err != nil {
		r.manager.Abort()
		return nil, err
	}
	return r, nil
}

func newReader(opts []Option) *Reader {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	r := &Reader{id: uuid.New(), opts: o}
	if o.log != nil {
		r.log = o.log
	} else {
		r.log = logging.GetLogger("reader").WithField("doc", r.id.String())
	}
	return r
}

func (r *Reader) newXRef() *core.XRef {
	xopts := []core.XRefOption{core.WithLogger(r.log)}
	if r.opts.securityHandler != nil {
		xopts = append(xopts, core.WithSecurityHandler(r.opts.securityHandler))
	}
	return core.NewXRef(r.src, r.loader, xopts...)
}

// init checks the header, locates the cross-reference chain and parses it,
// falling back to a full scan when the chain is broken.
func (r *Reader) init(ctx context.Context) error {
	if err := r.Ensure(ctx, r.parseHeader); err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	var startXRef int64
	err := r.Ensure(ctx, func() error {
		var err error
		startXRef, err = core.FindStartXRef(r.src)
		return err
	})
	if err != nil {
		r.log.Infof("(while locating startxref): %v", err)
		startXRef = 0
	}

	r.xref = r.newXRef()
	r.xref.SetStartXRef(startXRef)
	err = r.Ensure(ctx, func() error { return r.xref.Parse(false) })
	if err == nil {
		return nil
	}
	if !errors.Is(err, core.ErrXRefParse) {
		return fmt.Errorf("failed to load xref: %w", err)
	}

	r.log.Info("cross-reference chain unusable, rebuilding from a full scan")
	if err := r.LoadAll(ctx); err != nil {
		return err
	}
	r.xref = r.newXRef()
	if err := r.xref.Parse(true); err != nil {
		return fmt.Errorf("failed to recover xref: %w", err)
	}
	return nil
}

// parseHeader finds %PDF-x.y in the first kilobyte. Leading garbage is
// tolerated.
func (r *Reader) parseHeader() error {
	start := r.src.Start()
	head, err := r.src.GetByteRange(start, start+16)
	if err != nil {
		return err
	}
	if !bytes.HasPrefix(head, []byte("%PDF-")) {
		head, err = r.src.GetByteRange(start, start+headerSearchSize)
		if err != nil {
			return err
		}
	}
	i := bytes.Index(head, []byte("%PDF-"))
	if i < 0 {
		return ErrNoHeader
	}
	m := versionPattern.FindSubmatch(head[i+5:])
	if m == nil {
		return fmt.Errorf("%w: bad version", ErrNoHeader)
	}
	major, _ := strconv.Atoi(string(m[1]))
	minor, _ := strconv.Atoi(string(m[2]))
	r.version = PDFVersion{Major: major, Minor: minor}
	return nil
}

// Ensure runs fn until it stops failing with missing data, loading each
// missing range in between. A fully resident document never needs a retry.
func (r *Reader) Ensure(ctx context.Context, fn func() error) error {
	for {
		err := fn()
		m, missing := core.IsMissingData(err)
		if !missing || r.loader == nil {
			return err
		}
		r.log.Debugf("loading [%d, %d)", m.Begin, m.End)
		if err := r.loader.LoadRange(ctx, m.Begin, m.End); err != nil {
			return err
		}
	}
}

// ID returns the session identifier
func (r *Reader) ID() string {
	return r.id.String()
}

// Version returns the PDF version
func (r *Reader) Version() PDFVersion {
	return r.version
}

// Length returns the document size in bytes
func (r *Reader) Length() int64 {
	return r.src.Length()
}

// Stream returns the chunk store of a network document, or nil
func (r *Reader) Stream() *chunked.Stream {
	return r.stream
}

// XRef returns the cross-reference index
func (r *Reader) XRef() *core.XRef {
	return r.xref
}

// Trailer returns the trailer dictionary
func (r *Reader) Trailer() core.Dict {
	return r.xref.Trailer()
}

// NumObjects returns the number of entries in the cross-reference index
func (r *Reader) NumObjects() int {
	return r.xref.Size()
}

// Catalog returns the document catalog (root object)
func (r *Reader) Catalog() (core.Dict, error) {
	catalog := r.xref.GetCatalogObj()
	if catalog == nil {
		return nil, fmt.Errorf("document has no catalog")
	}
	return catalog, nil
}

// Fetch resolves ref, loading whatever bytes it needs
func (r *Reader) Fetch(ctx context.Context, ref core.IndirectRef) (core.Object, error) {
	var obj core.Object
	err := r.Ensure(ctx, func() error {
		var err error
		obj, err = r.xref.Fetch(ref, false)
		return err
	})
	return obj, err
}

// Resolve fetches obj if it is an indirect reference, otherwise returns it as-is
func (r *Reader) Resolve(ctx context.Context, obj core.Object) (core.Object, error) {
	if ref, ok := obj.(core.IndirectRef); ok {
		return r.Fetch(ctx, ref)
	}
	return obj, nil
}

// Resolver returns an ObjectResolver that loads missing data through ctx
func (r *Reader) Resolver(ctx context.Context, opts ...resolver.Option) *resolver.ObjectResolver {
	fetch := resolver.FetcherFunc(func(ref core.IndirectRef) (core.Object, error) {
		return r.Fetch(ctx, ref)
	})
	return resolver.NewResolver(fetch, opts...)
}

// LoadObjects makes every object reachable from dict's keys resident
func (r *Reader) LoadObjects(ctx context.Context, dict core.Dict, keys ...string) error {
	if r.loader == nil {
		return nil
	}
	return resolver.NewObjectLoader(dict, keys, r.xref, r.loader,
		resolver.WithLoaderLogger(r.log)).Load(ctx)
}

// LoadAll fetches every chunk that has not arrived yet
func (r *Reader) LoadAll(ctx context.Context) error {
	if r.manager == nil {
		return nil
	}
	return r.manager.RequestAllChunks().Wait(ctx)
}

// Info returns the document info dictionary with text values decoded.
// It returns an empty map when the trailer has no /Info.
func (r *Reader) Info(ctx context.Context) (map[string]string, error) {
	info := make(map[string]string)
	infoObj := r.Trailer().Get("Info")
	if infoObj == nil {
		return info, nil
	}

	obj, err := r.Resolve(ctx, infoObj)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve info: %w", err)
	}
	dict, ok := obj.(core.Dict)
	if !ok {
		return nil, fmt.Errorf("info is not a dictionary: %T", obj)
	}

	for _, key := range dict.Keys() {
		value, err := r.Resolve(ctx, dict[key])
		if err != nil {
			return nil, fmt.Errorf("failed to resolve info key %s: %w", key, err)
		}
		switch v := value.(type) {
		case core.String:
			info[key] = core.DecodeTextString(v)
		case core.Name:
			info[key] = string(v)
		default:
			info[key] = v.String()
		}
	}
	return info, nil
}

// Close aborts outstanding network requests
func (r *Reader) Close() error {
	if r.manager != nil {
		r.manager.Abort()
	}
	return nil
}
