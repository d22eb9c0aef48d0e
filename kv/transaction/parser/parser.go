// Package parser turns transaction text into statements.
//
//	transaction ::= statement (';' statement)*
//	statement   ::= ref '=' operand ( ('+'|'-') operand )*
//	ref         ::= LETTER ('*')*
//	operand     ::= ref | INTEGER
//
// Letters are case sensitive; account 0 is 'A'. Each '*' after a letter is one level of indirection, resolved at
// execution time against the values the transaction has read.
package parser

import (
	"strings"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/pingcap/errors"
)

// Ref names an account, possibly through a chain of indirections.
type Ref struct {
	Account int
	// Depth is the number of indirection markers.
	Depth int
}

func (r Ref) String() string {
	return account.Name(r.Account) + strings.Repeat("*", r.Depth)
}

// Operand is either an integer literal or an account reference.
type Operand struct {
	IsRef   bool
	Ref     Ref
	Literal int64
}

// Term is a signed operand of the right-hand side.
type Term struct {
	// Sign is +1 or -1. The first term is always positive.
	Sign    int64
	Operand Operand
}

// Statement assigns the sum of its terms to Target.
type Statement struct {
	Target Ref
	Terms  []Term
	Text   string
}

type Transaction struct {
	Text       string
	Statements []Statement
}

// Parse parses a whole transaction. numAccounts bounds the letters which may appear.
func Parse(text string, numAccounts int) (*Transaction, error) {
	parts := strings.Split(text, ";")
	txn := &Transaction{Text: text, Statements: make([]Statement, 0, len(parts))}
	for i, part := range parts {
		stmt, err := ParseStatement(part, numAccounts)
		if err != nil {
			return nil, errors.Annotatef(err, "statement %d", i+1)
		}
		txn.Statements = append(txn.Statements, *stmt)
	}
	return txn, nil
}

type statementParser struct {
	lex         lexer
	tok         token
	numAccounts int
}

func (p *statementParser) advance() error {
	tok, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = tok
	return nil
}

func (p *statementParser) unexpected(want string) error {
	if p.tok.kind == tokEOF {
		return txnerr.Invalid("parse", "expected %s, found %s", want, p.tok.kind)
	}
	return txnerr.Invalid("parse", "expected %s, found %q at %d", want, p.tok.text, p.tok.pos)
}

func (p *statementParser) ref() (Ref, error) {
	if p.tok.kind != tokRef {
		return Ref{}, p.unexpected("account reference")
	}
	idx, ok := account.Index(p.tok.letter)
	if !ok || idx >= p.numAccounts {
		return Ref{}, txnerr.Invalid("parse", "no account named %q", string(p.tok.letter))
	}
	r := Ref{Account: idx, Depth: p.tok.depth}
	return r, p.advance()
}

func (p *statementParser) operand() (Operand, error) {
	switch p.tok.kind {
	case tokInt:
		op := Operand{Literal: p.tok.value}
		return op, p.advance()
	case tokRef:
		r, err := p.ref()
		return Operand{IsRef: true, Ref: r}, err
	}
	return Operand{}, p.unexpected("operand")
}

// ParseStatement parses a single assignment.
func ParseStatement(text string, numAccounts int) (*Statement, error) {
	p := &statementParser{lex: lexer{src: text}, numAccounts: numAccounts}
	if err := p.advance(); err != nil {
		return nil, err
	}
	if p.tok.kind == tokEOF {
		return nil, txnerr.Invalid("parse", "empty statement")
	}
	target, err := p.ref()
	if err != nil {
		return nil, err
	}
	if p.tok.kind != tokAssign {
		return nil, p.unexpected("'='")
	}
	if err := p.advance(); err != nil {
		return nil, err
	}
	first, err := p.operand()
	if err != nil {
		return nil, err
	}
	stmt := &Statement{
		Target: target,
		Terms:  []Term{{Sign: 1, Operand: first}},
		Text:   strings.TrimSpace(text),
	}
	for p.tok.kind != tokEOF {
		var sign int64
		switch p.tok.kind {
		case tokPlus:
			sign = 1
		case tokMinus:
			sign = -1
		default:
			return nil, p.unexpected("'+' or '-'")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		op, err := p.operand()
		if err != nil {
			return nil, err
		}
		stmt.Terms = append(stmt.Terms, Term{Sign: sign, Operand: op})
	}
	return stmt, nil
}
