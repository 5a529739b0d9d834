package parser

import (
	"fmt"
	"strings"
	"unicode"
)

// TokenType represents the type of a lexical token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError
	TokenIdent
	TokenNumber
	TokenString

	// Keywords
	TokenSelect
	TokenFrom
	TokenWhere
	TokenAnd
	TokenOr
	TokenNot
	TokenIn
	TokenLimit

	// Operators
	TokenEq        // =
	TokenNe        // <> or !=
	TokenLt        // <
	TokenGt        // >
	TokenLe        // <=
	TokenGe        // >=
	TokenMinus     // -
	TokenStar      // *
	TokenComma     // ,
	TokenLParen    // (
	TokenRParen    // )
	TokenSemicolon // ;
)

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in input
}

var keywords = map[string]TokenType{
	"SELECT": TokenSelect,
	"FROM":   TokenFrom,
	"WHERE":  TokenWhere,
	"AND":    TokenAnd,
	"OR":     TokenOr,
	"NOT":    TokenNot,
	"IN":     TokenIn,
	"LIMIT":  TokenLimit,
}

// Lexer tokenizes a SQL input string.
type Lexer struct {
	input string
	pos   int
}

// NewLexer creates a lexer over the input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Next returns the next token.
func (l *Lexer) Next() Token {
	l.skipWhitespace()

	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: l.pos}
	}

	start := l.pos
	c := l.input[l.pos]

	switch {
	case isIdentStart(c):
		return l.lexIdent()
	case c >= '0' && c <= '9':
		return l.lexNumber()
	case c == '\'':
		return l.lexString()
	}

	l.pos++
	switch c {
	case '=':
		return Token{Type: TokenEq, Literal: "=", Pos: start}
	case '<':
		if l.peek() == '=' {
			l.pos++
			return Token{Type: TokenLe, Literal: "<=", Pos: start}
		}
		if l.peek() == '>' {
			l.pos++
			return Token{Type: TokenNe, Literal: "<>", Pos: start}
		}
		return Token{Type: TokenLt, Literal: "<", Pos: start}
	case '>':
		if l.peek() == '=' {
			l.pos++
			return Token{Type: TokenGe, Literal: ">=", Pos: start}
		}
		return Token{Type: TokenGt, Literal: ">", Pos: start}
	case '!':
		if l.peek() == '=' {
			l.pos++
			return Token{Type: TokenNe, Literal: "!=", Pos: start}
		}
		return Token{Type: TokenError, Literal: "!", Pos: start}
	case '-':
		return Token{Type: TokenMinus, Literal: "-", Pos: start}
	case '*':
		return Token{Type: TokenStar, Literal: "*", Pos: start}
	case ',':
		return Token{Type: TokenComma, Literal: ",", Pos: start}
	case '(':
		return Token{Type: TokenLParen, Literal: "(", Pos: start}
	case ')':
		return Token{Type: TokenRParen, Literal: ")", Pos: start}
	case ';':
		return Token{Type: TokenSemicolon, Literal: ";", Pos: start}
	}

	return Token{Type: TokenError, Literal: string(c), Pos: start}
}

func (l *Lexer) peek() byte {
	if l.pos >= len(l.input) {
		return 0
	}
	return l.input[l.pos]
}

func (l *Lexer) skipWhitespace() {
	for l.pos < len(l.input) && unicode.IsSpace(rune(l.input[l.pos])) {
		l.pos++
	}
}

// lexIdent reads an identifier. Dots followed by another identifier
// character stay inside the token, so dotted names like payload.mark or
// system.parts_index lex as one identifier.
func (l *Lexer) lexIdent() Token {
	start := l.pos
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if isIdentPart(c) {
			l.pos++
			continue
		}
		if c == '.' && l.pos+1 < len(l.input) && isIdentStart(l.input[l.pos+1]) {
			l.pos += 2
			continue
		}
		break
	}

	literal := l.input[start:l.pos]
	if !strings.Contains(literal, ".") {
		if tok, ok := keywords[strings.ToUpper(literal)]; ok {
			return Token{Type: tok, Literal: literal, Pos: start}
		}
	}
	return Token{Type: TokenIdent, Literal: literal, Pos: start}
}

func (l *Lexer) lexNumber() Token {
	start := l.pos
	seenDot := false
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c >= '0' && c <= '9' {
			l.pos++
			continue
		}
		if c == '.' && !seenDot {
			seenDot = true
			l.pos++
			continue
		}
		break
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: start}
}

func (l *Lexer) lexString() Token {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		if c == '\'' {
			// '' escapes a quote
			if l.pos+1 < len(l.input) && l.input[l.pos+1] == '\'' {
				sb.WriteByte('\'')
				l.pos += 2
				continue
			}
			l.pos++
			return Token{Type: TokenString, Literal: sb.String(), Pos: start}
		}
		sb.WriteByte(c)
		l.pos++
	}
	return Token{Type: TokenError, Literal: fmt.Sprintf("unterminated string at %d", start), Pos: start}
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}
