package account

import (
	"sync"
	"testing"

	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeek(t *testing.T) {
	a := NewAccount(0, 42, 0)
	v, err := a.Peek(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	// Another txn holding the latch does not stop a peek.
	require.NoError(t, a.Open(2, true))
	v, err = a.Peek(1)
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	// Peeking something you hold is a protocol error.
	_, err = a.Peek(2)
	assert.True(t, txnerr.IsUsage(err))
	require.NoError(t, a.Close(2))
	require.NoError(t, a.Open(3, false))
	_, err = a.Peek(3)
	assert.True(t, txnerr.IsUsage(err))
}

func TestOpenRead(t *testing.T) {
	a := NewAccount(1, 0, 0)
	require.NoError(t, a.Open(1, false))
	require.NoError(t, a.Open(2, false))
	assert.Equal(t, Shared, a.State())

	// Twice is a usage error.
	assert.True(t, txnerr.IsUsage(a.Open(1, false)))

	require.NoError(t, a.Close(1))
	require.NoError(t, a.Close(2))
	assert.Equal(t, Free, a.State())

	require.NoError(t, a.Open(3, true))
	assert.True(t, txnerr.IsAbort(a.Open(1, false)))
	// The writer cannot open for reading afterwards either.
	assert.True(t, txnerr.IsUsage(a.Open(3, false)))
}

func TestOpenWrite(t *testing.T) {
	a := NewAccount(2, 0, 0)
	require.NoError(t, a.Open(1, true))
	assert.Equal(t, Exclusive, a.State())
	assert.True(t, txnerr.IsUsage(a.Open(1, true)))
	assert.True(t, txnerr.IsAbort(a.Open(2, true)))
	require.NoError(t, a.Close(1))

	// Somebody else reading blocks a writer.
	require.NoError(t, a.Open(2, false))
	assert.True(t, txnerr.IsAbort(a.Open(1, true)))

	// So do two readers, even if one of them is the requester.
	require.NoError(t, a.Open(1, false))
	assert.True(t, txnerr.IsAbort(a.Open(1, true)))
	require.NoError(t, a.Close(2))

	// Sole reader upgrades.
	require.NoError(t, a.Open(1, true))
	assert.Equal(t, Upgraded, a.State())
	writer, readers := a.Holders()
	assert.Equal(t, TxnID(1), writer)
	assert.Equal(t, []TxnID{1}, readers)

	// Close drops both roles at once.
	require.NoError(t, a.Close(1))
	assert.Equal(t, Free, a.State())
}

func TestVerify(t *testing.T) {
	a := NewAccount(3, 10, 0)
	assert.True(t, txnerr.IsUsage(a.Verify(1, 10)))

	require.NoError(t, a.Open(1, false))
	require.NoError(t, a.Verify(1, 10))
	assert.True(t, txnerr.IsAbort(a.Verify(1, 11)))

	// A writer that is not also a reader cannot verify.
	require.NoError(t, a.Close(1))
	require.NoError(t, a.Open(2, true))
	assert.True(t, txnerr.IsUsage(a.Verify(2, 10)))
}

func TestUpdate(t *testing.T) {
	a := NewAccount(4, 10, 0)
	assert.True(t, txnerr.IsUsage(a.Update(1, 11)))
	require.NoError(t, a.Open(1, false))
	assert.True(t, txnerr.IsUsage(a.Update(1, 11)))
	require.NoError(t, a.Open(1, true))
	require.NoError(t, a.Update(1, 11))
	require.NoError(t, a.Close(1))
	assert.Equal(t, int64(11), a.Value())
}

func TestClose(t *testing.T) {
	a := NewAccount(5, 0, 0)
	assert.True(t, txnerr.IsUsage(a.Close(1)))
	require.NoError(t, a.Open(1, false))
	require.NoError(t, a.Close(1))
	assert.True(t, txnerr.IsUsage(a.Close(1)))
}

// Many goroutines hammer one account; at every point the latch must hold at most one writer, and a writer must never
// share the latch with another reader.
func TestMutualExclusion(t *testing.T) {
	a := NewAccount(6, 0, 0)
	var wg sync.WaitGroup
	var violations sync.Map
	for i := 1; i <= 16; i++ {
		wg.Add(1)
		go func(id TxnID) {
			defer wg.Done()
			for n := 0; n < 500; n++ {
				forWriting := (int(id)+n)%3 == 0
				if err := a.Open(id, forWriting); err != nil {
					continue
				}
				writer, readers := a.Holders()
				if writer != 0 {
					for _, r := range readers {
						if r != writer {
							violations.Store(n, writer)
						}
					}
				}
				if forWriting && writer != id {
					violations.Store(n, id)
				}
				if err := a.Close(id); err != nil {
					t.Error(err)
				}
			}
		}(TxnID(i))
	}
	wg.Wait()
	violations.Range(func(k, v interface{}) bool {
		t.Errorf("latch invariant broken at iteration %v by txn %v", k, v)
		return true
	})
	assert.Equal(t, Free, a.State())
}
