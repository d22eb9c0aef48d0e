package parser

import (
	"fmt"
	"strconv"

	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokRef
	tokInt
	tokAssign
	tokPlus
	tokMinus
)

func (k tokenKind) String() string {
	switch k {
	case tokEOF:
		return "end of statement"
	case tokRef:
		return "account reference"
	case tokInt:
		return "integer"
	case tokAssign:
		return "'='"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	}
	return fmt.Sprintf("token(%d)", int(k))
}

type token struct {
	kind tokenKind
	// text is the source text of the token.
	text string
	// pos is the byte offset of the token within the statement.
	pos int
	// For tokRef: the letter and the number of trailing '*'.
	letter byte
	depth  int
	// For tokInt.
	value int64
}

// lexer splits one statement into tokens. Whitespace between tokens is optional, but the indirection markers of a
// reference must follow its letter directly.
type lexer struct {
	src string
	pos int
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	start := l.pos
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: start}, nil
	}
	c := l.src[l.pos]
	switch {
	case c == '=':
		l.pos++
		return token{kind: tokAssign, text: "=", pos: start}, nil
	case c == '+':
		l.pos++
		return token{kind: tokPlus, text: "+", pos: start}, nil
	case c == '-':
		l.pos++
		return token{kind: tokMinus, text: "-", pos: start}, nil
	case isDigit(c):
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
		text := l.src[start:l.pos]
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return token{}, txnerr.Invalid("parse", "bad integer %q at %d", text, start)
		}
		return token{kind: tokInt, text: text, pos: start, value: v}, nil
	case isLetter(c):
		l.pos++
		for l.pos < len(l.src) && l.src[l.pos] == '*' {
			l.pos++
		}
		text := l.src[start:l.pos]
		return token{kind: tokRef, text: text, pos: start, letter: c, depth: len(text) - 1}, nil
	}
	return token{}, txnerr.Invalid("parse", "unexpected %q at %d", c, start)
}
