package core

import "testing"

// TestTokenTypeString tests the String method on TokenType
func TestTokenTypeString(t *testing.T) {
	tests := []struct {
		token TokenType
		want  string
	}{
		{TokenEOF, "EOF"},
		{TokenWhitespace, "Whitespace"},
		{TokenComment, "Comment"},
		{TokenKeyword, "Keyword"},
		{TokenInteger, "Integer"},
		{TokenReal, "Real"},
		{TokenString, "String"},
		{TokenHexString, "HexString"},
		{TokenName, "Name"},
		{TokenArrayStart, "ArrayStart"},
		{TokenArrayEnd, "ArrayEnd"},
		{TokenDictStart, "DictStart"},
		{TokenDictEnd, "DictEnd"},
		{TokenIndirectRef, "IndirectRef"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.token.String(); got != tt.want {
				t.Errorf("TokenType.String() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestLexerEOF tests EOF handling
func TestLexerEOF(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"whitespace only", "   \t\n\r  "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(NewMemorySource([]byte(tt.input)))
			token, err := lexer.NextToken()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token.Type != TokenEOF {
				t.Errorf("expected TokenEOF, got %v", token.Type)
			}
		})
	}
}

// TestLexerSingleToken tests the first token read from each input
func TestLexerSingleToken(t *testing.T) {
	tests := []struct {
		name  string
		input string
		typ   TokenType
		value string
	}{
		{"header comment", "%PDF-1.7", TokenComment, "%PDF-1.7"},
		{"comment CRLF", "%comment\r\n", TokenComment, "%comment"},
		{"empty comment", "%\n", TokenComment, "%"},
		{"array start", "  [  ", TokenArrayStart, "["},
		{"array end", "]", TokenArrayEnd, "]"},
		{"dict start", "<<", TokenDictStart, "<<"},
		{"dict end", ">>", TokenDictEnd, ">>"},
		{"string", "(hello world)", TokenString, "hello world"},
		{"empty string", "()", TokenString, ""},
		{"nested parens", "(a(b(c)d)e)", TokenString, "a(b(c)d)e"},
		{"escapes", `(\n\r\t\b\f)`, TokenString, "\n\r\t\b\f"},
		{"escaped parens", `(\(\))`, TokenString, "()"},
		{"escaped backslash", `(\\)`, TokenString, `\`},
		{"line continuation", "(hello\\\r\nworld)", TokenString, "helloworld"},
		{"octal", `(\101\142)`, TokenString, "Ab"},
		{"hex", "<48 65\n6C\r6C 6F>", TokenHexString, "48656C6C6F"},
		{"empty hex", "<>", TokenHexString, ""},
		{"odd hex", "<012>", TokenHexString, "012"},
		{"name", "/BaseFont", TokenName, "BaseFont"},
		{"empty name", "/", TokenName, ""},
		{"name escapes", "/Name#20With#23Hash", TokenName, "Name With#Hash"},
		{"name before array", "/Name[", TokenName, "Name"},
		{"name before dict", "/Name<<", TokenName, "Name"},
		{"int", "-456", TokenInteger, "-456"},
		{"signed int", "+789", TokenInteger, "+789"},
		{"real", "3.14", TokenReal, "3.14"},
		{"leading decimal", ".5", TokenReal, ".5"},
		{"trailing decimal", "5.", TokenReal, "5."},
		{"keyword", "startxref", TokenKeyword, "startxref"},
		{"boolean", "false", TokenKeyword, "false"},
		{"reference marker", "R", TokenIndirectRef, "R"},
		{"leading whitespace", "  \t\n\r\f\x00 123", TokenInteger, "123"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := NewLexer(NewMemorySource([]byte(tt.input))).NextToken()
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if token.Type != tt.typ {
				t.Errorf("got type %v, want %v", token.Type, tt.typ)
			}
			if string(token.Value) != tt.value {
				t.Errorf("got value %q, want %q", token.Value, tt.value)
			}
		})
	}
}

// TestLexerTokenSequences tests tokenizing object syntax as it appears in
// document bodies, including offsets of each token
func TestLexerTokenSequences(t *testing.T) {
	type tok struct {
		typ   TokenType
		value string
		pos   int64
	}
	tests := []struct {
		name  string
		input string
		want  []tok
	}{
		{
			name:  "mixed",
			input: "123 456 /Name (string) [ << >> ] true null R",
			want: []tok{
				{TokenInteger, "123", 0}, {TokenInteger, "456", 4}, {TokenName, "Name", 8},
				{TokenString, "string", 14}, {TokenArrayStart, "[", 23}, {TokenDictStart, "<<", 25},
				{TokenDictEnd, ">>", 28}, {TokenArrayEnd, "]", 31}, {TokenKeyword, "true", 33},
				{TokenKeyword, "null", 38}, {TokenIndirectRef, "R", 43},
			},
		},
		{
			name:  "page dictionary",
			input: "<</Type/Page/MediaBox[0 0 612 792]/Contents 12 0 R>>",
			want: []tok{
				{TokenDictStart, "<<", 0}, {TokenName, "Type", 2}, {TokenName, "Page", 7},
				{TokenName, "MediaBox", 12}, {TokenArrayStart, "[", 21}, {TokenInteger, "0", 22},
				{TokenInteger, "0", 24}, {TokenInteger, "612", 26}, {TokenInteger, "792", 30},
				{TokenArrayEnd, "]", 33}, {TokenName, "Contents", 34}, {TokenInteger, "12", 44},
				{TokenInteger, "0", 47}, {TokenIndirectRef, "R", 49}, {TokenDictEnd, ">>", 50},
			},
		},
		{
			name:  "indirect object",
			input: "12 0 obj\r\n<</Length 3>>stream",
			want: []tok{
				{TokenInteger, "12", 0}, {TokenInteger, "0", 3}, {TokenKeyword, "obj", 5},
				{TokenDictStart, "<<", 10}, {TokenName, "Length", 12}, {TokenInteger, "3", 20},
				{TokenDictEnd, ">>", 21}, {TokenKeyword, "stream", 23},
			},
		},
		{
			name:  "comments and newlines",
			input: "%PDF-1.7\r123 %c\n456\r\nendobj",
			want: []tok{
				{TokenComment, "%PDF-1.7", 0}, {TokenInteger, "123", 9}, {TokenComment, "%c", 13},
				{TokenInteger, "456", 16}, {TokenKeyword, "endobj", 21},
			},
		},
		{
			name:  "binary hex",
			input: "<DEADBEEF> endstream",
			want:  []tok{{TokenHexString, "DEADBEEF", 0}, {TokenKeyword, "endstream", 11}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(NewMemorySource([]byte(tt.input)))
			for i, want := range tt.want {
				token, err := lexer.NextToken()
				if err != nil {
					t.Fatalf("token %d: unexpected error: %v", i, err)
				}
				if token.Type != want.typ || string(token.Value) != want.value {
					t.Errorf("token %d: got %v %q, want %v %q", i, token.Type, token.Value, want.typ, want.value)
				}
				if token.Pos != want.pos {
					t.Errorf("token %d: got position %d, want %d", i, token.Pos, want.pos)
				}
			}
			token, err := lexer.NextToken()
			if err != nil || token.Type != TokenEOF {
				t.Errorf("expected EOF, got %v, %v", token, err)
			}
		})
	}
}


// TestLexerErrors tests error handling
func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"single > without pair", ">", true},
		{"invalid hex digit", "<ZZ>", true},
		{"unclosed string", "(hello", true},
		{"unbalanced close paren", ")", true},
		{"brace", "{", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lexer := NewLexer(NewMemorySource([]byte(tt.input)))
			_, err := lexer.NextToken()
			if (err != nil) != tt.wantErr {
				t.Errorf("wantErr=%v, got error: %v", tt.wantErr, err)
			}
		})
	}
}

// TestLexerMissingData tests that a token crossing into unloaded bytes fails
// with the missing range and leaves the cursor where the token began.
func TestLexerMissingData(t *testing.T) {
	src := newPartialSource([]byte("123 /LongName 456"), 4)
	src.load(0, 8)

	lexer := NewLexer(src)
	token, err := lexer.NextToken()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(token.Value) != "123" {
		t.Fatalf("expected 123, got %q", token.Value)
	}

	before := lexer.Pos()
	_, err = lexer.NextToken()
	m, ok := IsMissingData(err)
	if !ok {
		t.Fatalf("expected missing data, got %v", err)
	}
	if m.Begin != 8 || m.End != 9 {
		t.Errorf("missing range = [%d, %d), want [8, 9)", m.Begin, m.End)
	}

	src.load(8, 17)
	src.Seek(before)
	token, err = lexer.NextToken()
	if err != nil {
		t.Fatalf("unexpected error after load: %v", err)
	}
	if string(token.Value) != "LongName" {
		t.Errorf("expected LongName, got %q", token.Value)
	}
}
