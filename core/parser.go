package core

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
)

// ReferenceResolver is an interface for resolving indirect references.
// This allows the parser to resolve indirect stream lengths when needed.
type ReferenceResolver interface {
	ResolveReference(ref IndirectRef) (Object, error)
}

// ParserState is a snapshot of the parser's position and lookahead. Taking
// a snapshot before a unit of work and restoring it after a
// *MissingDataError replays that unit exactly.
type ParserState struct {
	Pos     int64
	Current *Token
	Peek    *Token
}

// Parser parses PDF objects from a Source using a Lexer for tokenization.
// It supports parsing all PDF object types including indirect objects and streams.
type Parser struct {
	lexer        *Lexer
	currentToken *Token // Current token being processed
	peekToken    *Token // Next token (lookahead)
	resolver     ReferenceResolver
	transform    CipherTransform
}

// NewParser creates a new PDF parser reading src from its current position.
// It loads the first two tokens for lookahead, which may already fail with
// a *MissingDataError.
func NewParser(src Source) (*Parser, error) {
	p := &Parser{
		lexer: NewLexer(src),
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return p, nil
}

// SetReferenceResolver sets the reference resolver for the parser.
// This is needed to resolve indirect stream lengths.
func (p *Parser) SetReferenceResolver(resolver ReferenceResolver) {
	p.resolver = resolver
}

// SetCipherTransform sets the transform used to decrypt strings and
// streams of the object being parsed.
func (p *Parser) SetCipherTransform(t CipherTransform) {
	p.transform = t
}

// State returns a snapshot of the parser.
func (p *Parser) State() ParserState {
	return ParserState{Pos: p.lexer.Pos(), Current: p.currentToken, Peek: p.peekToken}
}

// Restore rewinds the parser to a snapshot taken on a parser over the
// same backing buffer.
func (p *Parser) Restore(s ParserState) {
	p.lexer.src.Seek(s.Pos)
	p.currentToken = s.Current
	p.peekToken = s.Peek
}

// CurrentToken returns the token the parser is positioned on.
func (p *Parser) CurrentToken() *Token {
	return p.currentToken
}

// nextToken advances the parser to the next token by shifting the lookahead.
func (p *Parser) nextToken() error {
	p.currentToken = p.peekToken

	// Stream data follows "stream"; parseStream reads it directly.
	if p.currentToken.Is("stream") {
		p.peekToken = nil
		return nil
	}

	token, err := p.lexer.NextToken()
	if err != nil {
		return err
	}
	p.peekToken = token
	return nil
}

// skipComments skips over any consecutive comment tokens.
func (p *Parser) skipComments() error {
	for p.currentToken != nil && p.currentToken.Type == TokenComment {
		if err := p.nextToken(); err != nil {
			return err
		}
	}
	return nil
}

// ParseObject parses and returns the next PDF object from the input.
// It handles all PDF object types: null, boolean, integer, real, string,
// name, array, dictionary, and indirect references. Other keywords are
// returned as Keyword values.
func (p *Parser) ParseObject() (Object, error) {
	if err := p.skipComments(); err != nil {
		return nil, err
	}

	if p.currentToken == nil {
		return nil, formatErrorf("unexpected end of input")
	}

	switch p.currentToken.Type {
	case TokenEOF:
		return nil, io.EOF

	case TokenKeyword:
		keyword := string(p.currentToken.Value)
		var obj Object
		switch keyword {
		case "null":
			obj = Null{}
		case "true":
			obj = Bool(true)
		case "false":
			obj = Bool(false)
		default:
			obj = Keyword(keyword)
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return obj, nil

	case TokenInteger:
		return p.parseNumber()

	case TokenReal:
		val, err := strconv.ParseFloat(string(p.currentToken.Value), 64)
		if err != nil {
			val = 0
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return Real(val), nil

	case TokenString:
		val := p.currentToken.Value
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return p.decryptString(val), nil

	case TokenHexString:
		hexStr := p.currentToken.Value
		if len(hexStr)%2 != 0 {
			hexStr = append(append([]byte{}, hexStr...), '0')
		}
		result := make([]byte, len(hexStr)/2)
		for i := 0; i < len(hexStr); i += 2 {
			result[i/2] = hexValue(hexStr[i])<<4 | hexValue(hexStr[i+1])
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return p.decryptString(result), nil

	case TokenName:
		val := string(p.currentToken.Value)
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return Name(val), nil

	case TokenArrayStart:
		return p.parseArray()

	case TokenDictStart:
		return p.parseDict()

	default:
		return nil, formatErrorf("unexpected token %v at position %d", p.currentToken.Type, p.currentToken.Pos)
	}
}

func (p *Parser) decryptString(b []byte) Object {
	if p.transform != nil {
		b = p.transform.DecryptString(b)
	}
	return String(b)
}

// parseNumber parses an integer, real number, or indirect reference.
// Indirect references are detected by lookahead: "num gen R" pattern.
func (p *Parser) parseNumber() (Object, error) {
	firstToken := string(p.currentToken.Value)

	firstInt, err := strconv.ParseInt(firstToken, 10, 64)
	if err != nil {
		f, err := strconv.ParseFloat(firstToken, 64)
		if err != nil {
			// Malformed numbers such as "-" or "+-" read as zero.
			f = 0
		}
		if err := p.nextToken(); err != nil {
			return nil, err
		}
		return Real(f), nil
	}

	if p.peekToken != nil && p.peekToken.Type == TokenInteger {
		secondInt, err := strconv.ParseInt(string(p.peekToken.Value), 10, 64)
		if err == nil {
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			if p.peekToken != nil && p.peekToken.Type == TokenIndirectRef {
				if err := p.nextToken(); err != nil {
					return nil, err
				}
				if err := p.nextToken(); err != nil {
					return nil, err
				}
				return IndirectRef{
					Number:     int(firstInt),
					Generation: int(secondInt),
				}, nil
			}
			// Not an indirect ref; the parser now sits on the second integer.
			return Int(firstInt), nil
		}
	}

	if err := p.nextToken(); err != nil {
		return nil, err
	}
	return Int(firstInt), nil
}

// parseArray parses a PDF array "[obj1 obj2 ...]".
func (p *Parser) parseArray() (Object, error) {
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	arr := Array{}
	for {
		if err := p.skipComments(); err != nil {
			return nil, err
		}
		if p.currentToken == nil {
			return nil, formatErrorf("unexpected end of input in array")
		}
		if p.currentToken.Type == TokenArrayEnd {
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			break
		}
		if p.currentToken.Type == TokenEOF {
			return nil, formatErrorf("unexpected EOF in array")
		}

		obj, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing array element: %w", err)
		}
		arr = append(arr, obj)
	}

	return arr, nil
}

// parseDict parses a PDF dictionary "<< /Key value ... >>".
func (p *Parser) parseDict() (Object, error) {
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	dict := make(Dict)
	for {
		if err := p.skipComments(); err != nil {
			return nil, err
		}
		if p.currentToken == nil {
			return nil, formatErrorf("unexpected end of input in dictionary")
		}
		if p.currentToken.Type == TokenDictEnd {
			if err := p.nextToken(); err != nil {
				return nil, err
			}
			break
		}
		if p.currentToken.Type == TokenEOF {
			return nil, formatErrorf("unexpected EOF in dictionary")
		}
		if p.currentToken.Type != TokenName {
			return nil, formatErrorf("expected name for dictionary key, got %v", p.currentToken.Type)
		}
		key := string(p.currentToken.Value)
		if err := p.nextToken(); err != nil {
			return nil, err
		}

		value, err := p.ParseObject()
		if err != nil {
			return nil, fmt.Errorf("error parsing dictionary value for key '%s': %w", key, err)
		}

		// A null value is equivalent to an absent entry.
		if _, isNull := value.(Null); !isNull {
			dict[key] = value
		}
	}

	return dict, nil
}

// ParseIndirectObject parses an indirect object definition.
// Format: "num gen obj <object> endobj" or "num gen obj <dict> stream ... endstream endobj".
// A missing endobj is tolerated.
func (p *Parser) ParseIndirectObject() (*IndirectObject, error) {
	if err := p.skipComments(); err != nil {
		return nil, err
	}

	num, err := p.expectInt("object number")
	if err != nil {
		return nil, err
	}
	gen, err := p.expectInt("generation number")
	if err != nil {
		return nil, err
	}

	if !p.currentToken.Is("obj") {
		return nil, formatErrorf("expected 'obj' keyword at position %d", p.tokenPos())
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	obj, err := p.ParseObject()
	if err != nil {
		return nil, fmt.Errorf("error parsing indirect object value: %w", err)
	}

	if p.currentToken.Is("stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, formatErrorf("stream must follow a dictionary")
		}
		stream, err := p.parseStream(dict)
		if err != nil {
			return nil, fmt.Errorf("error parsing stream: %w", err)
		}
		obj = stream
	}

	if p.currentToken.Is("endobj") {
		if err := p.nextToken(); err != nil {
			return nil, err
		}
	}

	return &IndirectObject{
		Ref:    IndirectRef{Number: num, Generation: gen},
		Object: obj,
	}, nil
}

func (p *Parser) expectInt(what string) (int, error) {
	if p.currentToken == nil || p.currentToken.Type != TokenInteger {
		return 0, formatErrorf("expected %s at position %d", what, p.tokenPos())
	}
	v, err := strconv.Atoi(string(p.currentToken.Value))
	if err != nil {
		return 0, formatErrorf("invalid %s: %s", what, p.currentToken.Value)
	}
	if err := p.nextToken(); err != nil {
		return 0, err
	}
	return v, nil
}

func (p *Parser) tokenPos() int64 {
	if p.currentToken == nil {
		return p.lexer.Pos()
	}
	return p.currentToken.Pos
}

// parseStream parses a stream object after the "stream" keyword. The body
// is not read: the stream keeps a view of it in the source, so a stream
// whose body has not arrived can still be returned.
func (p *Parser) parseStream(dict Dict) (*Stream, error) {
	length, err := p.streamLength(dict)
	if err != nil {
		return nil, err
	}

	// The lexer sits right after the 'stream' keyword.
	if err := p.lexer.SkipStreamEOL(); err != nil {
		return nil, err
	}

	src := p.lexer.Source()
	start := src.Pos()

	ok := false
	if length >= 0 && start+length <= src.End() {
		src.Seek(start + length)
		token, err := p.lexer.NextToken()
		if err != nil {
			return nil, err
		}
		ok = token.Is("endstream")
	}
	if !ok {
		length, err = p.findStreamLength(start)
		if err != nil {
			return nil, err
		}
	}

	stream := &Stream{
		Dict:      dict,
		source:    src.MakeSubStream(start, length),
		transform: p.transform,
	}
	if length == 0 {
		stream.source = NewMemorySource(nil)
	}

	// Reload the lookahead after endstream.
	p.currentToken = nil
	p.peekToken = nil
	if err := p.nextToken(); err != nil {
		return nil, err
	}
	if err := p.nextToken(); err != nil {
		return nil, err
	}

	return stream, nil
}

func (p *Parser) streamLength(dict Dict) (int64, error) {
	switch v := dict.Get("Length").(type) {
	case Int:
		return int64(v), nil
	case IndirectRef:
		if p.resolver == nil {
			return -1, nil
		}
		resolved, err := p.resolver.ResolveReference(v)
		if err != nil {
			if _, missing := IsMissingData(err); missing {
				return 0, err
			}
			return -1, nil
		}
		if n, ok := resolved.(Int); ok {
			return int64(n), nil
		}
	}
	return -1, nil
}

var endstreamKeyword = []byte("endstream")

// findStreamLength scans forward from start for the endstream keyword and
// leaves the source positioned after it. Trailing EOL bytes before the
// keyword are not counted.
func (p *Parser) findStreamLength(start int64) (int64, error) {
	const block = 8192
	src := p.lexer.Source()
	end := src.End()

	for pos := start; pos < end; pos += block - int64(len(endstreamKeyword)) {
		stop := pos + block
		if stop > end {
			stop = end
		}
		buf, err := src.GetByteRange(pos, stop)
		if err != nil {
			return 0, err
		}
		if i := bytes.Index(buf, endstreamKeyword); i >= 0 {
			found := pos + int64(i)
			src.Seek(found + int64(len(endstreamKeyword)))
			length := found - start
			if i >= 1 && buf[i-1] == '\n' {
				length--
				i--
			}
			if i >= 1 && buf[i-1] == '\r' {
				length--
			}
			if length < 0 {
				length = 0
			}
			return length, nil
		}
		if stop == end {
			break
		}
	}
	return 0, formatErrorf("missing endstream for stream at %d", start)
}
