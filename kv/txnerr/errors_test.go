package txnerr

import (
	"testing"

	"github.com/pingcap/errors"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	abort := Abort("open", 3, "writer %d holds the latch", 7)
	assert.True(t, IsAbort(abort))
	assert.False(t, IsUsage(abort))
	assert.Equal(t, "abort: open account 3: writer 7 holds the latch", abort.Error())

	usage := Usage("update", 1, "not the writer")
	assert.True(t, IsUsage(usage))
	k, ok := KindOf(usage)
	assert.True(t, ok)
	assert.Equal(t, KindUsage, k)

	invalid := Invalid("parse", "unexpected %q", "?")
	assert.True(t, IsInvalid(invalid))
	assert.Equal(t, `invalid transaction: parse: unexpected "?"`, invalid.Error())
}

func TestKindOfWrapped(t *testing.T) {
	err := errors.Annotate(errors.Trace(Abort("verify", 0, "stale")), "statement 2")
	assert.True(t, IsAbort(err))

	err = errors.Trace(Invalid("resolve", "index %d out of range", 30))
	assert.True(t, IsInvalid(err))

	_, ok := KindOf(errors.New("plain"))
	assert.False(t, ok)
	_, ok = KindOf(nil)
	assert.False(t, ok)
}
