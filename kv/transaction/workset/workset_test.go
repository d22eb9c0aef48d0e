package workset

import (
	"testing"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/transaction/parser"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func eval(t *testing.T, table *account.Table, text string) *Set {
	stmt, err := parser.ParseStatement(text, table.Len())
	require.NoError(t, err)
	s := New(table, 1)
	require.NoError(t, s.Eval(stmt))
	return s
}

func TestEvalSimple(t *testing.T) {
	table := account.NewDefaultTable(0)
	s := eval(t, table, "A = B + 1")
	assert.Equal(t, 0, s.Target())
	assert.Equal(t, int64(25), s.Result())
	// The target is part of the working set even though its value is not used.
	assert.Equal(t, []int{0, 1}, s.Indexes())

	s = eval(t, table, "Z = 7 - C - C + 100")
	assert.Equal(t, 25, s.Target())
	assert.Equal(t, int64(7-23-23+100), s.Result())
	assert.Equal(t, []int{2, 25}, s.Indexes())
}

func TestResolveIndirection(t *testing.T) {
	table := account.NewDefaultTable(0)
	// C holds 23 -> X, X holds 2 -> C.
	s := eval(t, table, "C** = 5")
	assert.Equal(t, 2, s.Target())
	assert.Equal(t, int64(5), s.Result())
	assert.Equal(t, []int{2, 23}, s.Indexes())

	s = eval(t, table, "A = A*")
	// A holds 25 -> Z, which holds 0.
	assert.Equal(t, int64(0), s.Result())
	assert.Equal(t, []int{0, 25}, s.Indexes())
}

func TestResolveUsesCachedValues(t *testing.T) {
	values := account.DefaultValues()
	values[0] = 27 // A* -> B
	table := account.NewTable(values, 0)
	s := New(table, 1)

	idx, err := s.Resolve(parser.Ref{Account: 0, Depth: 1})
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	// Change A behind the set's back; resolution keeps using the snapshot.
	a, _ := table.Get(0)
	require.NoError(t, a.Open(2, true))
	require.NoError(t, a.Update(2, 3))
	require.NoError(t, a.Close(2))

	idx, err = s.Resolve(parser.Ref{Account: 0, Depth: 2})
	require.NoError(t, err)
	// A(27) -> B(24) -> Y
	assert.Equal(t, 24, idx)
	v, ok := s.Value(0)
	assert.True(t, ok)
	assert.Equal(t, int64(27), v)
}

func TestResolveNegativeIndex(t *testing.T) {
	values := account.DefaultValues()
	values[3] = -4
	table := account.NewTable(values, 0)
	stmt, err := parser.ParseStatement("A = D*", table.Len())
	require.NoError(t, err)
	err = New(table, 1).Eval(stmt)
	assert.True(t, txnerr.IsInvalid(err))
}

func TestPeekWhileHolding(t *testing.T) {
	table := account.NewDefaultTable(0)
	a, _ := table.Get(0)
	require.NoError(t, a.Open(1, false))
	stmt, err := parser.ParseStatement("A = 1", table.Len())
	require.NoError(t, err)
	err = New(table, 1).Eval(stmt)
	assert.True(t, txnerr.IsUsage(err))
}
