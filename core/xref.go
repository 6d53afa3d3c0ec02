package core

import (
	"bytes"
	"context"
	"fmt"
	"strconv"

	"github.com/sirupsen/logrus"
	"github.com/tsawler/pdfrange/internal/logging"
)

// EntryType is the kind of a cross-reference entry.
type EntryType int

const (
	EntryFree EntryType = iota
	EntryUncompressed
	EntryCompressed
)

// XRefEntry represents a single cross-reference entry. For compressed
// entries Offset holds the object number of the containing object stream
// and Generation the index within it.
type XRefEntry struct {
	Type       EntryType
	Offset     int64
	Generation int
}

// tableState is the resumable position inside a cross-reference table.
type tableState struct {
	entryNum      int
	parser        ParserState
	firstEntryNum int
	entryCount    int
	inSubsection  bool
}

// streamState is the resumable position inside a cross-reference stream.
// streamPos is relative to the start of the entry data.
type streamState struct {
	entryRanges []int
	byteWidths  [3]int
	entryNum    int
	streamPos   int64
}

// XRefOption configures an XRef.
type XRefOption func(*XRef)

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(l logrus.FieldLogger) XRefOption {
	return func(x *XRef) {
		x.log = l
	}
}

// WithSecurityHandler sets the handler consulted when the trailer carries
// an Encrypt dictionary.
func WithSecurityHandler(h SecurityHandler) XRefOption {
	return func(x *XRef) {
		x.securityHandler = h
	}
}

// XRef is the cross-reference index of one document. It parses the
// startxref chain of tables and streams, resolves references to decoded
// objects and caches them. Parsing is resumable: when it fails with a
// *MissingDataError, the caller loads the range and calls the same method
// again, which continues from the saved row.
//
// An XRef is not safe for concurrent use.
type XRef struct {
	stream          Source
	loader          RangeLoader
	log             logrus.FieldLogger
	securityHandler SecurityHandler

	entries        map[int]*XRefEntry
	xrefstms       map[int64]bool
	cache          map[int]Object
	startXRefQueue []int64
	tableState     *tableState
	streamState    *streamState

	topDict Dict
	trailer Dict
	root    Dict
	encrypt CipherTransformFactory

	// parse counters
	uncompressedParses int
	compressedParses   int
}

// NewXRef creates the index for the document in src. loader may be nil when
// src is fully resident.
func NewXRef(src Source, loader RangeLoader, opts ...XRefOption) *XRef {
	x := &XRef{
		stream:   src,
		loader:   loader,
		log:      logging.GetLogger("xref"),
		entries:  make(map[int]*XRefEntry),
		xrefstms: make(map[int64]bool),
		cache:    make(map[int]Object),
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Stream returns the document source.
func (x *XRef) Stream() Source {
	return x.stream
}

// SetStartXRef queues the offset of the newest cross-reference section.
func (x *XRef) SetStartXRef(offset int64) {
	x.startXRefQueue = []int64{offset}
}

// Trailer returns the trailer dictionary, or nil before Parse succeeds.
func (x *XRef) Trailer() Dict {
	return x.trailer
}

// TopDict returns the first trailer or xref stream dictionary read.
func (x *XRef) TopDict() Dict {
	return x.topDict
}

// GetCatalogObj returns the document catalog, or nil before Parse succeeds.
func (x *XRef) GetCatalogObj() Dict {
	return x.root
}

// Size returns the number of entries known to the index.
func (x *XRef) Size() int {
	return len(x.entries)
}

// Entries returns a copy of the entry table keyed by object number.
func (x *XRef) Entries() map[int]XRefEntry {
	out := make(map[int]XRefEntry, len(x.entries))
	for num, e := range x.entries {
		out[num] = *e
	}
	return out
}

// Encrypted reports whether a cipher transform factory is active.
func (x *XRef) Encrypted() bool {
	return x.encrypt != nil
}

// Stats reports how many uncompressed objects and object streams have been
// parsed. Cache hits are not counted.
func (x *XRef) Stats() (uncompressed, compressed int) {
	return x.uncompressedParses, x.compressedParses
}

// Cleanup drops every cached object.
func (x *XRef) Cleanup() {
	x.cache = make(map[int]Object)
}

// Parse reads the cross-reference data and the trailer. With recoveryMode
// set it rebuilds the index by scanning the whole file instead. Parse
// returns a *MissingDataError when bytes are needed; calling it again after
// loading them resumes the interrupted work. A structural failure outside
// recovery mode returns ErrXRefParse.
func (x *XRef) Parse(recoveryMode bool) error {
	var trailer Dict
	var err error
	if !recoveryMode {
		trailer, err = x.readXRef(false)
	} else {
		x.log.Warn("Indexing all PDF objects")
		trailer, err = x.indexObjects()
	}
	if err != nil {
		return err
	}
	if trailer == nil {
		if recoveryMode {
			return ErrInvalidPDF
		}
		return ErrXRefParse
	}
	x.trailer = trailer

	if encObj := trailer.Get("Encrypt"); encObj != nil && x.encrypt == nil {
		enc, err := x.FetchIfRef(encObj, true)
		if err != nil {
			return err
		}
		if encDict, ok := enc.(Dict); ok {
			if x.securityHandler == nil {
				x.log.Warn("document is encrypted and no security handler is configured")
			} else {
				factory, err := x.securityHandler(encDict, x.fileID())
				if err != nil {
					return fmt.Errorf("failed to set up decryption: %w", err)
				}
				x.encrypt = factory
			}
		}
	}

	root, err := x.FetchIfRef(trailer.Get("Root"), false)
	if err != nil {
		if _, missing := IsMissingData(err); missing || recoveryMode {
			return err
		}
		x.log.Infof("(while reading catalog): %v", err)
		return ErrXRefParse
	}
	rootDict, ok := root.(Dict)
	if !ok {
		if !recoveryMode {
			return ErrXRefParse
		}
		return formatErrorf("invalid root reference")
	}
	x.root = rootDict
	return nil
}

func (x *XRef) fileID() []byte {
	ids, ok := x.trailer.GetArray("ID")
	if !ok {
		return nil
	}
	if s, ok := ids.Get(0).(String); ok {
		return []byte(s)
	}
	return nil
}

// setEntry records an entry unless one is already known for num: tables are
// read newest first, so the first writer holds the current definition.
func (x *XRef) setEntry(num int, e *XRefEntry) {
	if _, ok := x.entries[num]; !ok {
		x.entries[num] = e
	}
}

// readXRef processes the queue of cross-reference sections. The head of the
// queue is removed only after its section has been read completely.
func (x *XRef) readXRef(recoveryMode bool) (Dict, error) {
	parsed := make(map[int64]bool)
	for len(x.startXRefQueue) > 0 {
		startXRef := x.startXRefQueue[0]
		if parsed[startXRef] {
			x.log.Info("skipping XRef section that was already parsed")
			x.startXRefQueue = x.startXRefQueue[1:]
			continue
		}
		parsed[startXRef] = true

		if err := x.readXRefSection(startXRef); err != nil {
			if _, missing := IsMissingData(err); missing {
				return nil, err
			}
			x.log.Infof("(while reading XRef): %v", err)
			x.tableState = nil
			x.streamState = nil
			if recoveryMode {
				x.startXRefQueue = x.startXRefQueue[1:]
				return nil, nil
			}
			return nil, fmt.Errorf("%w: %v", ErrXRefParse, err)
		}
		x.startXRefQueue = x.startXRefQueue[1:]
	}
	return x.topDict, nil
}

func (x *XRef) readXRefSection(startXRef int64) error {
	if startXRef < 0 || startXRef >= x.stream.Length() {
		return formatErrorf("XRef offset %d outside document", startXRef)
	}
	parser, err := NewParser(x.stream.MakeSubStream(x.stream.Start()+startXRef, 0))
	if err != nil {
		return err
	}
	parser.SetReferenceResolver(x)

	var dict Dict
	tok := parser.CurrentToken()
	switch {
	case tok.Is("xref"):
		dict, err = x.processXRefTable(parser)
		if err != nil {
			return err
		}
		if x.topDict == nil {
			x.topDict = dict
		}
		if stm, ok := dict.GetInt("XRefStm"); ok {
			pos := int64(stm)
			if !x.xrefstms[pos] {
				x.xrefstms[pos] = true
				x.startXRefQueue = append(x.startXRefQueue, pos)
			}
		}
	case tok != nil && tok.Type == TokenInteger:
		ind, err := parser.ParseIndirectObject()
		if err != nil {
			return err
		}
		stream, ok := ind.Object.(*Stream)
		if !ok {
			return formatErrorf("invalid XRef stream at %d", startXRef)
		}
		dict, err = x.processXRefStream(stream)
		if err != nil {
			return err
		}
		if x.topDict == nil {
			x.topDict = dict
		}
	default:
		return formatErrorf("invalid XRef stream header at %d", startXRef)
	}

	switch prev := dict.Get("Prev").(type) {
	case Int:
		x.startXRefQueue = append(x.startXRefQueue, int64(prev))
	case IndirectRef:
		x.startXRefQueue = append(x.startXRefQueue, int64(prev.Number))
	}
	return nil
}

// processXRefTable reads a table whose "xref" keyword is the parser's
// current token, and its trailer.
func (x *XRef) processXRefTable(parser *Parser) (Dict, error) {
	if x.tableState == nil {
		if err := parser.nextToken(); err != nil {
			return nil, err
		}
		x.tableState = &tableState{parser: parser.State()}
	}

	if err := x.readXRefTable(parser); err != nil {
		return nil, err
	}

	if !parser.CurrentToken().Is("trailer") {
		return nil, formatErrorf("invalid XRef table: could not find trailer dictionary")
	}
	if err := parser.nextToken(); err != nil {
		return nil, err
	}
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, err
	}
	var dict Dict
	switch v := obj.(type) {
	case Dict:
		dict = v
	case *Stream:
		dict = v.Dict
	default:
		return nil, formatErrorf("invalid XRef table: could not parse trailer dictionary")
	}

	x.tableState = nil
	return dict, nil
}

func (x *XRef) readXRefTable(parser *Parser) error {
	ts := x.tableState
	parser.Restore(ts.parser)

	for {
		if !ts.inSubsection {
			if parser.CurrentToken().Is("trailer") {
				break
			}
			first, err := parser.ParseObject()
			if err != nil {
				return err
			}
			count, err := parser.ParseObject()
			if err != nil {
				return err
			}
			firstInt, ok1 := first.(Int)
			countInt, ok2 := count.(Int)
			if !ok1 || !ok2 {
				return formatErrorf("invalid XRef table: wrong types in subsection header")
			}
			ts.firstEntryNum = int(firstInt)
			ts.entryCount = int(countInt)
			ts.inSubsection = true
		}

		for i := ts.entryNum; i < ts.entryCount; i++ {
			ts.entryNum = i
			ts.parser = parser.State()

			offset, err := parser.ParseObject()
			if err != nil {
				return err
			}
			gen, err := parser.ParseObject()
			if err != nil {
				return err
			}
			typ, err := parser.ParseObject()
			if err != nil {
				return err
			}

			offsetInt, ok1 := offset.(Int)
			genInt, ok2 := gen.(Int)
			entry := &XRefEntry{Offset: int64(offsetInt), Generation: int(genInt)}
			switch typ {
			case Keyword("f"):
				entry.Type = EntryFree
			case Keyword("n"):
				entry.Type = EntryUncompressed
			default:
				ok2 = false
			}
			if !ok1 || !ok2 {
				return formatErrorf("invalid entry in XRef subsection: %d, %d", ts.firstEntryNum, ts.entryCount)
			}
			if entry.Type == EntryUncompressed && entry.Offset < 0 {
				return formatErrorf("negative offset %d in XRef entry %d", entry.Offset, i+ts.firstEntryNum)
			}

			// A first entry "free, numbered 1" is an off-by-one in the subsection header.
			if i == 0 && entry.Type == EntryFree && ts.firstEntryNum == 1 {
				ts.firstEntryNum = 0
			}
			x.setEntry(i+ts.firstEntryNum, entry)
		}

		ts.entryNum = 0
		ts.inSubsection = false
		ts.parser = parser.State()
	}

	if e, ok := x.entries[0]; ok && e.Type != EntryFree {
		return formatErrorf("invalid XRef table: unexpected first object")
	}
	return nil
}

// processXRefStream reads the entries of a cross-reference stream and
// returns its dictionary, which doubles as the trailer.
func (x *XRef) processXRefStream(stream *Stream) (Dict, error) {
	if x.streamState == nil {
		state, err := newStreamState(stream.Dict)
		if err != nil {
			return nil, err
		}
		x.streamState = state
	}

	src, err := xrefStreamSource(stream)
	if err != nil {
		return nil, err
	}
	if err := x.readXRefStream(src); err != nil {
		return nil, err
	}

	x.streamState = nil
	return stream.Dict, nil
}

func newStreamState(dict Dict) (*streamState, error) {
	state := &streamState{}

	w, ok := dict.GetArray("W")
	if !ok || len(w) < 3 {
		return nil, formatErrorf("invalid XRef stream: /W must be an array of three integers")
	}
	for i := 0; i < 3; i++ {
		n, ok := w.GetInt(i)
		if !ok || n < 0 {
			return nil, formatErrorf("invalid XRef entry fields length: %v", w)
		}
		state.byteWidths[i] = int(n)
	}

	if index, ok := dict.GetArray("Index"); ok {
		for i := range index {
			n, ok := index.GetInt(i)
			if !ok {
				return nil, formatErrorf("invalid XRef range fields: %v", index)
			}
			state.entryRanges = append(state.entryRanges, int(n))
		}
		if len(state.entryRanges)%2 != 0 {
			return nil, formatErrorf("invalid XRef range fields: %v", index)
		}
	} else {
		size, ok := dict.GetInt("Size")
		if !ok {
			return nil, formatErrorf("invalid XRef stream: missing /Size")
		}
		state.entryRanges = []int{0, int(size)}
	}
	return state, nil
}

// xrefStreamSource returns the entry data of an xref stream. An unfiltered
// stream is read in place, so its rows can fail and resume individually.
func xrefStreamSource(stream *Stream) (Source, error) {
	if stream.Dict.Get("Filter") == nil && stream.transform == nil {
		if src := stream.Source(); src != nil {
			return src.MakeSubStream(src.Start(), src.Length()), nil
		}
		return NewMemorySource(stream.Data), nil
	}
	return stream.DecodedSource()
}

func (x *XRef) readXRefStream(src Source) error {
	ss := x.streamState
	src.Seek(src.Start() + ss.streamPos)

	typeWidth, offsetWidth, genWidth := ss.byteWidths[0], ss.byteWidths[1], ss.byteWidths[2]
	rowWidth := typeWidth + offsetWidth + genWidth
	if rowWidth == 0 {
		return formatErrorf("invalid XRef entry fields length: all zero")
	}

	for len(ss.entryRanges) > 0 {
		first, n := ss.entryRanges[0], ss.entryRanges[1]

		for i := ss.entryNum; i < n; i++ {
			ss.entryNum = i
			ss.streamPos = src.Pos() - src.Start()

			row, err := src.GetBytes(rowWidth)
			if err != nil {
				return err
			}
			if len(row) < rowWidth {
				return formatErrorf("truncated XRef stream at entry %d", first+i)
			}

			typ := 1
			if typeWidth > 0 {
				typ = int(readBigEndianInt(row[:typeWidth]))
			}
			entry := &XRefEntry{
				Offset:     readBigEndianInt(row[typeWidth : typeWidth+offsetWidth]),
				Generation: int(readBigEndianInt(row[typeWidth+offsetWidth:])),
			}
			switch typ {
			case 0:
				entry.Type = EntryFree
			case 1:
				entry.Type = EntryUncompressed
			case 2:
				entry.Type = EntryCompressed
			default:
				return formatErrorf("invalid XRef entry type: %d", typ)
			}
			if entry.Type != EntryFree && entry.Offset < 0 {
				return formatErrorf("negative offset %d in XRef stream entry %d", entry.Offset, first+i)
			}
			x.setEntry(first+i, entry)
		}

		ss.entryNum = 0
		ss.streamPos = src.Pos() - src.Start()
		ss.entryRanges = ss.entryRanges[2:]
	}
	return nil
}

// readBigEndianInt reads a big-endian unsigned integer of len(b) bytes.
func readBigEndianInt(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

var (
	trailerBytes   = []byte("trailer")
	startxrefBytes = []byte("startxref")
	endobjBytes    = []byte("endobj")
	xrefNameBytes  = []byte("/XRef")
)

// indexObjects rebuilds the entry table by scanning the whole file for
// "N G obj" headers, trailers and cross-reference streams. The first
// definition of an object number wins. It returns the first trailer that
// carries an ID, or the last trailer found.
func (x *XRef) indexObjects() (Dict, error) {
	start := x.stream.Start()
	buf, err := x.stream.GetByteRange(start, x.stream.End())
	if err != nil {
		return nil, err
	}

	x.entries = make(map[int]*XRefEntry)
	x.cache = make(map[int]Object)
	x.startXRefQueue = nil
	x.tableState = nil
	x.streamState = nil

	var trailers, xrefStms []int64
	length := len(buf)
	pos := 0
	for pos < length {
		ch := buf[pos]
		if ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' {
			pos++
			continue
		}
		if ch == '%' {
			for pos < length && buf[pos] != '\r' && buf[pos] != '\n' {
				pos++
			}
			continue
		}

		token := readLineToken(buf, pos)
		switch {
		case hasKeywordPrefix(token, "xref"):
			pos += skipUntil(buf, pos, trailerBytes)
			trailers = append(trailers, int64(pos))
			pos += skipUntil(buf, pos, startxrefBytes)
		case isObjHeader(token):
			num, gen := parseObjHeader(token)
			if _, ok := x.entries[num]; !ok {
				x.entries[num] = &XRefEntry{Type: EntryUncompressed, Offset: int64(pos), Generation: gen}
			}
			contentLength := skipUntil(buf, pos, endobjBytes) + len(endobjBytes)
			end := pos + contentLength
			if end > length {
				end = length
			}
			content := buf[pos:end]
			if i := bytes.Index(content, xrefNameBytes); i >= 0 && i+len(xrefNameBytes) < len(content) &&
				content[i+len(xrefNameBytes)] < 64 {
				xrefStms = append(xrefStms, int64(pos))
				x.xrefstms[int64(pos)] = true
			}
			pos += contentLength
		case hasKeywordPrefix(token, "trailer"):
			trailers = append(trailers, int64(pos))
			pos += skipUntil(buf, pos, startxrefBytes)
		default:
			pos += len(token) + 1
		}
	}

	for _, stm := range xrefStms {
		x.startXRefQueue = append(x.startXRefQueue, stm)
		if _, err := x.readXRef(true); err != nil {
			return nil, err
		}
	}

	var dict Dict
	for _, t := range trailers {
		d, err := x.trailerAt(t)
		if err != nil {
			if _, missing := IsMissingData(err); missing {
				return nil, err
			}
			continue
		}
		if d == nil {
			continue
		}
		dict = d
		if d.Has("ID") {
			return d, nil
		}
	}
	if dict != nil {
		return dict, nil
	}

	// Files with only xref streams carry the trailer in the stream dictionary.
	if x.topDict != nil {
		return x.topDict, nil
	}
	return nil, ErrInvalidPDF
}

func (x *XRef) trailerAt(pos int64) (Dict, error) {
	parser, err := NewParser(x.stream.MakeSubStream(x.stream.Start()+pos, 0))
	if err != nil {
		return nil, err
	}
	if !parser.CurrentToken().Is("trailer") {
		return nil, nil
	}
	if err := parser.nextToken(); err != nil {
		return nil, err
	}
	obj, err := parser.ParseObject()
	if err != nil {
		return nil, err
	}
	dict, _ := obj.(Dict)
	return dict, nil
}

// readLineToken returns the bytes from offset up to the next CR, LF or '<'.
func readLineToken(data []byte, offset int) []byte {
	end := offset
	for end < len(data) && data[end] != '\n' && data[end] != '\r' && data[end] != '<' {
		end++
	}
	return data[offset:end]
}

// skipUntil returns how many bytes from offset precede the next occurrence
// of what, or the remaining length when there is none.
func skipUntil(data []byte, offset int, what []byte) int {
	if offset >= len(data) {
		return 0
	}
	if i := bytes.Index(data[offset:], what); i >= 0 {
		return i
	}
	return len(data) - offset
}

func hasKeywordPrefix(token []byte, kw string) bool {
	if !bytes.HasPrefix(token, []byte(kw)) {
		return false
	}
	return len(token) == len(kw) || isWhitespace(token[len(kw)])
}

// isObjHeader matches "<digits> <ws> <digits> <ws> obj" followed by a
// non-word character or the end of the token.
func isObjHeader(token []byte) bool {
	i := 0
	for pass := 0; pass < 2; pass++ {
		start := i
		for i < len(token) && isDigit(token[i]) {
			i++
		}
		if i == start {
			return false
		}
		ws := i
		for i < len(token) && isWhitespace(token[i]) {
			i++
		}
		if i == ws {
			return false
		}
	}
	if !bytes.HasPrefix(token[i:], []byte("obj")) {
		return false
	}
	i += 3
	if i == len(token) {
		return true
	}
	c := token[i]
	return !(isDigit(c) || c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'))
}

func parseObjHeader(token []byte) (int, int) {
	fields := bytes.Fields(token)
	num, _ := strconv.Atoi(string(fields[0]))
	gen, _ := strconv.Atoi(string(fields[1]))
	return num, gen
}

// GetEntry returns the in-use entry for num, or nil when the object is free
// or unknown.
func (x *XRef) GetEntry(num int) *XRefEntry {
	e, ok := x.entries[num]
	if !ok || e.Type == EntryFree || e.Offset == 0 {
		return nil
	}
	return e
}

// ResolveReference implements ReferenceResolver.
func (x *XRef) ResolveReference(ref IndirectRef) (Object, error) {
	return x.Fetch(ref, false)
}

// FetchIfRef fetches obj when it is a reference and returns it unchanged
// otherwise.
func (x *XRef) FetchIfRef(obj Object, suppressEncryption bool) (Object, error) {
	if ref, ok := obj.(IndirectRef); ok {
		return x.Fetch(ref, suppressEncryption)
	}
	return obj, nil
}

// Fetch resolves ref to its decoded object. Repeated fetches return the
// cached object. A reference to a free or unknown object resolves to Null.
// Fetch fails with a *MissingDataError when the object's bytes have not
// arrived.
func (x *XRef) Fetch(ref IndirectRef, suppressEncryption bool) (Object, error) {
	num := ref.Number
	if obj, ok := x.cache[num]; ok {
		return obj, nil
	}

	entry := x.GetEntry(num)
	if entry == nil {
		// Entries can still appear while the chain is being read.
		if x.trailer != nil {
			x.cache[num] = Null{}
		}
		return Null{}, nil
	}

	if entry.Type == EntryUncompressed {
		return x.fetchUncompressed(ref, entry, suppressEncryption)
	}
	return x.fetchCompressed(ref, entry)
}

func (x *XRef) fetchUncompressed(ref IndirectRef, entry *XRefEntry, suppressEncryption bool) (Object, error) {
	if entry.Generation != ref.Generation {
		return nil, formatErrorf("inconsistent generation in XRef: %s", ref)
	}

	if entry.Offset < 0 || entry.Offset >= x.stream.Length() {
		return nil, formatErrorf("bad (uncompressed) XRef entry %s: offset %d outside document", ref, entry.Offset)
	}
	parser, err := NewParser(x.stream.MakeSubStream(x.stream.Start()+entry.Offset, 0))
	if err != nil {
		return nil, err
	}
	parser.SetReferenceResolver(x)
	if !suppressEncryption && x.encrypt != nil {
		parser.SetCipherTransform(x.encrypt.CreateCipherTransform(ref.Number, ref.Generation))
	}

	ind, err := parser.ParseIndirectObject()
	if err != nil {
		if _, missing := IsMissingData(err); missing {
			return nil, err
		}
		return nil, formatErrorf("bad (uncompressed) XRef entry %s: %v", ref, err)
	}
	if ind.Ref != ref {
		return nil, formatErrorf("bad (uncompressed) XRef entry: expected %s, found %s", ref, ind.Ref)
	}

	x.uncompressedParses++
	x.cache[ref.Number] = ind.Object
	return ind.Object, nil
}

func (x *XRef) fetchCompressed(ref IndirectRef, entry *XRefEntry) (Object, error) {
	containerNum := int(entry.Offset)
	container, err := x.Fetch(IndirectRef{Number: containerNum}, false)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, formatErrorf("bad ObjStm stream %d for %s", containerNum, ref)
	}

	objStm, err := NewObjectStream(stream)
	if err != nil {
		return nil, err
	}
	objs, nums, err := objStm.Objects()
	if err != nil {
		return nil, err
	}
	x.compressedParses++

	for i, num := range nums {
		e := x.GetEntry(num)
		if e == nil || e.Type != EntryCompressed || int(e.Offset) != containerNum || e.Generation != i {
			continue
		}
		if _, cached := x.cache[num]; !cached {
			x.cache[num] = objs[i]
		}
	}

	if entry.Generation >= 0 && entry.Generation < len(objs) && nums[entry.Generation] == ref.Number {
		return objs[entry.Generation], nil
	}

	// The entry's index disagrees with the container header; trust the header.
	obj, index, err := objStm.GetObjectByNumber(ref.Number)
	if err != nil {
		return nil, formatErrorf("bad (compressed) XRef entry %s: %v", ref, err)
	}
	x.log.Infof("object %s found at index %d of ObjStm %d, not %d", ref, index, containerNum, entry.Generation)
	x.cache[ref.Number] = obj
	return obj, nil
}

// FetchAsync fetches ref, loading missing byte ranges through the range
// loader and retrying until the object resolves or a different error occurs.
func (x *XRef) FetchAsync(ctx context.Context, ref IndirectRef, suppressEncryption bool) (Object, error) {
	for {
		obj, err := x.Fetch(ref, suppressEncryption)
		m, missing := IsMissingData(err)
		if !missing || x.loader == nil {
			return obj, err
		}
		if err := x.loader.LoadRange(ctx, m.Begin, m.End); err != nil {
			return nil, err
		}
	}
}

// FetchIfRefAsync is FetchIfRef with the retry behaviour of FetchAsync.
func (x *XRef) FetchIfRefAsync(ctx context.Context, obj Object, suppressEncryption bool) (Object, error) {
	if ref, ok := obj.(IndirectRef); ok {
		return x.FetchAsync(ctx, ref, suppressEncryption)
	}
	return obj, nil
}

// FindStartXRef returns the offset recorded after the last startxref
// keyword within the final 1024 bytes of src.
func FindStartXRef(src Source) (int64, error) {
	readSize := int64(1024)
	if src.Length() < readSize {
		readSize = src.Length()
	}
	buf, err := src.GetByteRange(src.End()-readSize, src.End())
	if err != nil {
		return 0, err
	}

	idx := bytes.LastIndex(buf, startxrefBytes)
	if idx == -1 {
		return 0, ErrStartXRefNotFound
	}

	rest := buf[idx+len(startxrefBytes):]
	i := 0
	for i < len(rest) && isWhitespace(rest[i]) {
		i++
	}
	j := i
	for j < len(rest) && isDigit(rest[j]) {
		j++
	}
	if i == j {
		return 0, formatErrorf("invalid startxref offset")
	}
	return strconv.ParseInt(string(rest[i:j]), 10, 64)
}
