package aql

import (
	"strings"
	"unicode/utf8"

	"github.com/roach88/aqlengine/internal/queryir"
)

// ---------------------------------------------------------------------------
// Tokenizer
// ---------------------------------------------------------------------------

type tokenKind int

const (
	tokEOF    tokenKind = iota
	tokIdent            // Identifier, keyword, RM type or archetype id
	tokString           // Quoted string (quotes stripped, escapes resolved)
	tokNumber           // Integer or decimal literal
	tokParam            // $name (dollar stripped)
	tokLBrack           // [
	tokRBrack           // ]
	tokLBrace           // {
	tokRBrace           // }
	tokLParen           // (
	tokRParen           // )
	tokComma            // ,
	tokSlash            // /
	tokEq               // =
	tokNe               // !=
	tokGt               // >
	tokGe               // >=
	tokLt               // <
	tokLe               // <=
)

type token struct {
	Kind tokenKind
	Text string // Source text for punctuation and idents; decoded value for strings
	Pos  queryir.Pos
}

// display renders the token for error messages.
func (t token) display() string {
	switch t.Kind {
	case tokEOF:
		return "end of query"
	case tokString:
		return "'" + t.Text + "'"
	case tokParam:
		return "$" + t.Text
	default:
		return t.Text
	}
}

// keyword reports whether the token is the given keyword, case-insensitively.
func (t token) keyword(kw string) bool {
	return t.Kind == tokIdent && strings.EqualFold(t.Text, kw)
}

// reserved words cannot name variables or aliases.
var reserved = map[string]bool{
	"select": true, "as": true, "from": true, "contains": true, "where": true,
	"and": true, "or": true, "not": true, "matches": true, "order": true,
	"by": true, "asc": true, "desc": true, "ascending": true, "descending": true,
	"limit": true, "offset": true, "true": true, "false": true, "null": true,
}

func isReserved(word string) bool {
	return reserved[strings.ToLower(word)]
}

type lexer struct {
	src  string
	off  int
	line int
	col  int
}

// tokenize splits query text into tokens. The final token is always tokEOF.
func tokenize(src string) ([]token, error) {
	lx := &lexer{src: src, line: 1, col: 1}
	var tokens []token
	for {
		tok, err := lx.next()
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
		if tok.Kind == tokEOF {
			return tokens, nil
		}
	}
}

func (lx *lexer) pos() queryir.Pos {
	return queryir.Pos{Offset: lx.off, Line: lx.line, Column: lx.col}
}

func (lx *lexer) peekByte(ahead int) byte {
	if lx.off+ahead >= len(lx.src) {
		return 0
	}
	return lx.src[lx.off+ahead]
}

// advance consumes one rune, tracking line and column.
func (lx *lexer) advance() rune {
	r, size := utf8.DecodeRuneInString(lx.src[lx.off:])
	lx.off += size
	if r == '\n' {
		lx.line++
		lx.col = 1
	} else {
		lx.col++
	}
	return r
}

func (lx *lexer) next() (token, error) {
	for lx.off < len(lx.src) && isSpace(lx.src[lx.off]) {
		lx.advance()
	}
	start := lx.pos()
	if lx.off >= len(lx.src) {
		return token{Kind: tokEOF, Pos: start}, nil
	}

	ch := lx.src[lx.off]
	switch {
	case ch == '\'' || ch == '"':
		return lx.lexString(start, ch)
	case ch == '$':
		lx.advance()
		begin := lx.off
		for lx.off < len(lx.src) && isParamChar(lx.src[lx.off]) {
			lx.advance()
		}
		if lx.off == begin {
			return token{}, &SyntaxError{Pos: start, Token: "$", Message: "expected parameter name after $"}
		}
		return token{Kind: tokParam, Text: lx.src[begin:lx.off], Pos: start}, nil
	case isDigit(ch) || (ch == '-' && isDigit(lx.peekByte(1))):
		return lx.lexNumber(start)
	case isIdentStart(ch):
		begin := lx.off
		for lx.off < len(lx.src) && isIdentChar(lx.src[lx.off]) {
			lx.advance()
		}
		return token{Kind: tokIdent, Text: lx.src[begin:lx.off], Pos: start}, nil
	}

	if kind, text, ok := lx.operator(); ok {
		for range len(text) {
			lx.advance()
		}
		return token{Kind: kind, Text: text, Pos: start}, nil
	}

	r, _ := utf8.DecodeRuneInString(lx.src[lx.off:])
	return token{}, &SyntaxError{Pos: start, Token: string(r), Message: "unexpected character"}
}

func (lx *lexer) operator() (tokenKind, string, bool) {
	switch lx.src[lx.off] {
	case '[':
		return tokLBrack, "[", true
	case ']':
		return tokRBrack, "]", true
	case '{':
		return tokLBrace, "{", true
	case '}':
		return tokRBrace, "}", true
	case '(':
		return tokLParen, "(", true
	case ')':
		return tokRParen, ")", true
	case ',':
		return tokComma, ",", true
	case '/':
		return tokSlash, "/", true
	case '=':
		return tokEq, "=", true
	case '!':
		if lx.peekByte(1) == '=' {
			return tokNe, "!=", true
		}
	case '>':
		if lx.peekByte(1) == '=' {
			return tokGe, ">=", true
		}
		return tokGt, ">", true
	case '<':
		if lx.peekByte(1) == '=' {
			return tokLe, "<=", true
		}
		if lx.peekByte(1) == '>' {
			return tokNe, "<>", true
		}
		return tokLt, "<", true
	}
	return tokEOF, "", false
}

// lexString reads a quoted string. A backslash escapes the next character.
func (lx *lexer) lexString(start queryir.Pos, quote byte) (token, error) {
	lx.advance()
	var b strings.Builder
	for {
		if lx.off >= len(lx.src) {
			return token{}, &SyntaxError{Pos: start, Token: string(quote), Message: "unterminated string"}
		}
		ch := lx.src[lx.off]
		switch {
		case ch == quote:
			lx.advance()
			return token{Kind: tokString, Text: b.String(), Pos: start}, nil
		case ch == '\\' && lx.off+1 < len(lx.src):
			lx.advance()
			b.WriteRune(lx.advance())
		default:
			b.WriteRune(lx.advance())
		}
	}
}

func (lx *lexer) lexNumber(start queryir.Pos) (token, error) {
	begin := lx.off
	if lx.src[lx.off] == '-' {
		lx.advance()
	}
	for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
		lx.advance()
	}
	if lx.peekByte(0) == '.' && isDigit(lx.peekByte(1)) {
		lx.advance()
		for lx.off < len(lx.src) && isDigit(lx.src[lx.off]) {
			lx.advance()
		}
	}
	text := lx.src[begin:lx.off]
	if lx.off < len(lx.src) && isIdentStart(lx.src[lx.off]) {
		return token{}, &SyntaxError{Pos: start, Token: text, Message: "malformed number"}
	}
	return token{Kind: tokNumber, Text: text, Pos: start}, nil
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r'
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch byte) bool {
	return ch == '_' || (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z')
}

// isIdentChar admits '.' and '-' so archetype ids (openEHR-EHR-OBSERVATION.minimal.v1)
// and dotted at-codes (at0001.1) lex as one identifier.
func isIdentChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch) || ch == '.' || ch == '-'
}

func isParamChar(ch byte) bool {
	return isIdentStart(ch) || isDigit(ch)
}
