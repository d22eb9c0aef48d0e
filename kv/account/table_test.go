package account

import (
	"testing"

	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTable(t *testing.T) {
	table := NewDefaultTable(0)
	assert.Equal(t, NumLetters, table.Len())
	values := table.Values()
	assert.Equal(t, int64(25), values[0])
	assert.Equal(t, int64(0), values[25])

	b, err := table.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "B", b.Name())
	assert.Equal(t, "B=24(free)", b.String())

	_, err = table.Get(26)
	assert.True(t, txnerr.IsInvalid(err))
	_, err = table.Get(-1)
	assert.True(t, txnerr.IsInvalid(err))
}

func TestIndex(t *testing.T) {
	i, ok := Index('A')
	assert.True(t, ok)
	assert.Equal(t, 0, i)
	i, ok = Index('Z')
	assert.True(t, ok)
	assert.Equal(t, 25, i)
	_, ok = Index('a')
	assert.False(t, ok)
	_, ok = Index('[')
	assert.False(t, ok)
	assert.Equal(t, "X", Name(23))
}
