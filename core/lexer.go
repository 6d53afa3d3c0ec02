package core

import (
	"bytes"
	"fmt"
	"io"
)

// TokenType represents the type of token
type TokenType int

const (
	TokenEOF TokenType = iota
	TokenWhitespace
	TokenComment
	TokenKeyword     // true, false, null, obj, endobj, stream, endstream, xref, trailer, etc.
	TokenInteger     // 123
	TokenReal        // 3.14
	TokenString      // (hello)
	TokenHexString   // <48656C6C6F>
	TokenName        // /Type
	TokenArrayStart  // [
	TokenArrayEnd    // ]
	TokenDictStart   // <<
	TokenDictEnd     // >>
	TokenIndirectRef // R (after two numbers)
)

// Token represents a lexical token. Tokens are never modified after the
// lexer returns them, so they can be shared between parser snapshots.
type Token struct {
	Type  TokenType
	Value []byte
	Pos   int64 // Position in source
}

// Is reports whether the token is the keyword kw.
func (t *Token) Is(kw string) bool {
	return t != nil && t.Type == TokenKeyword && string(t.Value) == kw
}

// Lexer performs lexical analysis of PDF content read from a Source. The
// lexer keeps no state besides the source cursor, so restoring the cursor
// restores the lexer.
type Lexer struct {
	src Source
}

// NewLexer creates a new lexer
func NewLexer(src Source) *Lexer {
	return &Lexer{src: src}
}

// Source returns the underlying source.
func (l *Lexer) Source() Source {
	return l.src
}

// Pos returns the absolute position of the next unread byte.
func (l *Lexer) Pos() int64 {
	return l.src.Pos()
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() (*Token, error) {
	if err := l.skipWhitespace(); err != nil && err != io.EOF {
		return nil, err
	}

	b, err := l.peek()
	if err == io.EOF {
		return &Token{Type: TokenEOF, Pos: l.src.Pos()}, nil
	}
	if err != nil {
		return nil, err
	}

	if b == '%' {
		return l.readComment()
	}

	switch b {
	case '[':
		l.readByte()
		return &Token{Type: TokenArrayStart, Value: []byte{'['}, Pos: l.src.Pos() - 1}, nil
	case ']':
		l.readByte()
		return &Token{Type: TokenArrayEnd, Value: []byte{']'}, Pos: l.src.Pos() - 1}, nil
	case '(':
		return l.readString()
	case '<':
		// Could be << (dict start) or <hex string>
		next, err := l.peekN(2)
		if err != nil {
			return nil, err
		}
		if len(next) == 2 && next[1] == '<' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictStart, Value: []byte{'<', '<'}, Pos: l.src.Pos() - 2}, nil
		}
		return l.readHexString()
	case '>':
		next, err := l.peekN(2)
		if err != nil {
			return nil, err
		}
		if len(next) == 2 && next[1] == '>' {
			l.readByte()
			l.readByte()
			return &Token{Type: TokenDictEnd, Value: []byte{'>', '>'}, Pos: l.src.Pos() - 2}, nil
		}
		return nil, formatErrorf("unexpected '>' at position %d", l.src.Pos())
	case '/':
		return l.readName()
	case ')', '{', '}':
		return nil, formatErrorf("unexpected character '%c' at position %d", b, l.src.Pos())
	}

	if isDigit(b) || b == '-' || b == '+' || b == '.' {
		return l.readNumber()
	}

	return l.readKeyword()
}

// readByte reads a single byte and advances position
func (l *Lexer) readByte() (byte, error) {
	c, err := l.src.GetByte()
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, io.EOF
	}
	return byte(c), nil
}

// peek looks at the next byte without consuming it
func (l *Lexer) peek() (byte, error) {
	c, err := l.src.PeekByte()
	if err != nil {
		return 0, err
	}
	if c < 0 {
		return 0, io.EOF
	}
	return byte(c), nil
}

// peekN looks at the next n bytes without consuming them
func (l *Lexer) peekN(n int) ([]byte, error) {
	return l.src.PeekBytes(n)
}

// skipWhitespace skips all whitespace characters
// PDF whitespace: space (0x20), tab (0x09), LF (0x0A), CR (0x0D), FF (0x0C), null (0x00)
func (l *Lexer) skipWhitespace() error {
	for {
		b, err := l.peek()
		if err != nil {
			return err
		}
		if !isWhitespace(b) {
			return nil
		}
		l.readByte()
	}
}

// readComment reads a comment (% to end of line)
func (l *Lexer) readComment() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer

	b, err := l.readByte()
	if err != nil {
		return nil, err
	}
	buf.WriteByte(b)

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if b == '\r' || b == '\n' {
			l.readByte()
			if b == '\r' {
				next, err := l.peek()
				if err != nil && err != io.EOF {
					return nil, err
				}
				if err == nil && next == '\n' {
					l.readByte()
				}
			}
			break
		}

		l.readByte()
		buf.WriteByte(b)
	}

	return &Token{Type: TokenComment, Value: buf.Bytes(), Pos: startPos}, nil
}

// readString reads a literal string (hello)
func (l *Lexer) readString() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer

	b, err := l.readByte()
	if err != nil {
		return nil, err
	}
	if b != '(' {
		return nil, formatErrorf("expected '(' at position %d", startPos)
	}

	depth := 1
	for depth > 0 {
		b, err := l.readByte()
		if err == io.EOF {
			return nil, formatErrorf("unterminated string starting at %d", startPos)
		}
		if err != nil {
			return nil, err
		}

		switch b {
		case '(':
			depth++
			buf.WriteByte(b)
		case ')':
			depth--
			if depth > 0 {
				buf.WriteByte(b)
			}
		case '\\':
			next, err := l.readByte()
			if err != nil {
				return nil, err
			}
			switch next {
			case 'n':
				buf.WriteByte('\n')
			case 'r':
				buf.WriteByte('\r')
			case 't':
				buf.WriteByte('\t')
			case 'b':
				buf.WriteByte('\b')
			case 'f':
				buf.WriteByte('\f')
			case '(', ')', '\\':
				buf.WriteByte(next)
			case '\r', '\n':
				// Line continuation
				if next == '\r' {
					peek, err := l.peek()
					if err != nil && err != io.EOF {
						return nil, err
					}
					if err == nil && peek == '\n' {
						l.readByte()
					}
				}
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := next - '0'
				for i := 0; i < 2; i++ {
					peek, err := l.peek()
					if err != nil && err != io.EOF {
						return nil, err
					}
					if err != nil || !isOctalDigit(peek) {
						break
					}
					l.readByte()
					val = val*8 + (peek - '0')
				}
				buf.WriteByte(val)
			default:
				buf.WriteByte(next)
			}
		default:
			buf.WriteByte(b)
		}
	}

	return &Token{Type: TokenString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readHexString reads a hexadecimal string <48656C6C6F>
func (l *Lexer) readHexString() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer

	b, err := l.readByte()
	if err != nil {
		return nil, err
	}
	if b != '<' {
		return nil, formatErrorf("expected '<' at position %d", startPos)
	}

	for {
		b, err := l.readByte()
		if err == io.EOF {
			return nil, formatErrorf("unterminated hex string starting at %d", startPos)
		}
		if err != nil {
			return nil, err
		}
		if b == '>' {
			break
		}
		if isWhitespace(b) {
			continue
		}
		if !isHexDigit(b) {
			return nil, formatErrorf("invalid hex digit '%c' at position %d", b, l.src.Pos()-1)
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenHexString, Value: buf.Bytes(), Pos: startPos}, nil
}

// readName reads a name object /Type
func (l *Lexer) readName() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer

	if _, err := l.readByte(); err != nil {
		return nil, err
	}

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.readByte()

		if b == '#' {
			hex, err := l.peekN(2)
			if err != nil {
				return nil, err
			}
			if len(hex) == 2 && isHexDigit(hex[0]) && isHexDigit(hex[1]) {
				l.src.Skip(2)
				buf.WriteByte(hexValue(hex[0])*16 + hexValue(hex[1]))
				continue
			}
		}
		buf.WriteByte(b)
	}

	return &Token{Type: TokenName, Value: buf.Bytes(), Pos: startPos}, nil
}

// readNumber reads an integer or real number
func (l *Lexer) readNumber() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer
	hasDecimal := false

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if b == '.' {
			if hasDecimal {
				break
			}
			hasDecimal = true
		} else if !isDigit(b) && !(buf.Len() == 0 && (b == '-' || b == '+')) {
			break
		}
		l.readByte()
		buf.WriteByte(b)
	}

	tokenType := TokenInteger
	if hasDecimal {
		tokenType = TokenReal
	}

	return &Token{Type: tokenType, Value: buf.Bytes(), Pos: startPos}, nil
}

// readKeyword reads a keyword (true, false, null, R, obj, endobj, etc.).
// A keyword runs until whitespace or a delimiter.
func (l *Lexer) readKeyword() (*Token, error) {
	startPos := l.src.Pos()
	var buf bytes.Buffer

	for {
		b, err := l.peek()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if isWhitespace(b) || isDelimiter(b) {
			break
		}
		l.readByte()
		buf.WriteByte(b)
	}

	value := buf.Bytes()
	if len(value) == 1 && value[0] == 'R' {
		return &Token{Type: TokenIndirectRef, Value: value, Pos: startPos}, nil
	}

	return &Token{Type: TokenKeyword, Value: value, Pos: startPos}, nil
}

// SkipStreamEOL skips the end-of-line marker that follows the "stream"
// keyword: CRLF, LF, or a lone CR as written by some producers.
func (l *Lexer) SkipStreamEOL() error {
	b, err := l.peek()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return err
	}
	switch b {
	case '\n':
		l.readByte()
	case '\r':
		l.readByte()
		next, err := l.peek()
		if err != nil && err != io.EOF {
			return err
		}
		if err == nil && next == '\n' {
			l.readByte()
		}
	}
	return nil
}

// Helper functions

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' || b == 0
}

func isDelimiter(b byte) bool {
	return b == '(' || b == ')' || b == '<' || b == '>' || b == '[' || b == ']' ||
		b == '{' || b == '}' || b == '/' || b == '%'
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isOctalDigit(b byte) bool {
	return b >= '0' && b <= '7'
}

func isHexDigit(b byte) bool {
	return (b >= '0' && b <= '9') || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

func hexValue(b byte) byte {
	switch {
	case b >= '0' && b <= '9':
		return b - '0'
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10
	}
	return 0
}

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenWhitespace:
		return "Whitespace"
	case TokenComment:
		return "Comment"
	case TokenKeyword:
		return "Keyword"
	case TokenInteger:
		return "Integer"
	case TokenReal:
		return "Real"
	case TokenString:
		return "String"
	case TokenHexString:
		return "HexString"
	case TokenName:
		return "Name"
	case TokenArrayStart:
		return "ArrayStart"
	case TokenArrayEnd:
		return "ArrayEnd"
	case TokenDictStart:
		return "DictStart"
	case TokenDictEnd:
		return "DictEnd"
	case TokenIndirectRef:
		return "IndirectRef"
	}
	return fmt.Sprintf("TokenType(%d)", int(t))
}
