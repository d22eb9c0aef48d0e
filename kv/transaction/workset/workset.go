package workset

// A Set is the private view of the accounts that one attempt at one statement has. Every account the statement
// touches (the target, every operand, and every account visited on the way through an indirection chain) is peeked
// exactly once and the value is kept in the cache. All later reads, including the resolution of further
// indirections, use the cached value, never the live one. The executor later verifies each cached value against the
// live account before committing.
//
// A Set is thrown away whenever an attempt fails; the next attempt starts from an empty cache.

import (
	"sort"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/transaction/parser"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/pingcap/errors"
)

type Set struct {
	table *account.Table
	id    account.TxnID
	cache map[int]int64

	target int
	result int64
}

func New(table *account.Table, id account.TxnID) *Set {
	return &Set{
		table:  table,
		id:     id,
		cache:  make(map[int]int64),
		target: -1,
	}
}

// read returns the cached value of account i, peeking it first if it has not been read yet.
func (s *Set) read(i int) (int64, error) {
	if v, ok := s.cache[i]; ok {
		return v, nil
	}
	a, err := s.table.Get(i)
	if err != nil {
		return 0, err
	}
	v, err := a.Peek(s.id)
	if err != nil {
		return 0, errors.Trace(err)
	}
	s.cache[i] = v
	return v, nil
}

// Resolve follows ref's indirection chain and returns the index of the account it finally names. Each level of
// indirection takes the cached value of the current account modulo the number of accounts as the next index.
func (s *Set) Resolve(ref parser.Ref) (int, error) {
	idx := ref.Account
	v, err := s.read(idx)
	if err != nil {
		return 0, err
	}
	n := int64(s.table.Len())
	for k := 0; k < ref.Depth; k++ {
		next := v % n
		if next < 0 {
			return 0, txnerr.Invalid("resolve", "%s: account %s holds %d, which does not name an account",
				ref, account.Name(idx), v)
		}
		idx = int(next)
		if v, err = s.read(idx); err != nil {
			return 0, err
		}
	}
	return idx, nil
}

func (s *Set) operand(op parser.Operand) (int64, error) {
	if !op.IsRef {
		return op.Literal, nil
	}
	idx, err := s.Resolve(op.Ref)
	if err != nil {
		return 0, err
	}
	return s.cache[idx], nil
}

// Eval resolves the statement's target and computes its right-hand side, filling the cache along the way.
func (s *Set) Eval(stmt *parser.Statement) error {
	target, err := s.Resolve(stmt.Target)
	if err != nil {
		return err
	}
	var result int64
	for _, term := range stmt.Terms {
		v, err := s.operand(term.Operand)
		if err != nil {
			return err
		}
		result += term.Sign * v
	}
	s.target = target
	s.result = result
	return nil
}

// Target returns the index the statement writes to, or -1 before Eval succeeds.
func (s *Set) Target() int {
	return s.target
}

// Result returns the value the statement will write.
func (s *Set) Result() int64 {
	return s.result
}

// Value returns the cached value of account i.
func (s *Set) Value(i int) (int64, bool) {
	v, ok := s.cache[i]
	return v, ok
}

// Indexes returns every cached account index in ascending order.
func (s *Set) Indexes() []int {
	idxs := make([]int, 0, len(s.cache))
	for i := range s.cache {
		idxs = append(idxs, i)
	}
	sort.Ints(idxs)
	return idxs
}

func (s *Set) Len() int {
	return len(s.cache)
}
