package account

import (
	"time"

	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
)

const (
	// NumLetters is the number of accounts in the default table, one per letter A..Z.
	NumLetters = 26
	// First is the letter of account 0.
	First = 'A'
)

// Table is the set of accounts shared by every transaction of a run. It is created once and never resized.
type Table struct {
	accounts []*Account
}

// NewTable creates a table with one account per value.
func NewTable(values []int64, delay time.Duration) *Table {
	t := &Table{accounts: make([]*Account, len(values))}
	for i, v := range values {
		t.accounts[i] = NewAccount(i, v, delay)
	}
	return t
}

// NewDefaultTable creates the 26 accounts A..Z, account i starting at 25-i.
func NewDefaultTable(delay time.Duration) *Table {
	return NewTable(DefaultValues(), delay)
}

func DefaultValues() []int64 {
	values := make([]int64, NumLetters)
	for i := range values {
		values[i] = int64(NumLetters - 1 - i)
	}
	return values
}

func (t *Table) Len() int {
	return len(t.accounts)
}

// Get returns the account at index i. An index outside the table makes the transaction invalid.
func (t *Table) Get(i int) (*Account, error) {
	if i < 0 || i >= len(t.accounts) {
		return nil, txnerr.Invalid("resolve", "account index %d out of range [0, %d)", i, len(t.accounts))
	}
	return t.accounts[i], nil
}

// Values returns the stored value of every account, in index order.
func (t *Table) Values() []int64 {
	values := make([]int64, len(t.accounts))
	for i, a := range t.accounts {
		values[i] = a.Value()
	}
	return values
}

// Name returns the letter of account i.
func Name(i int) string {
	return string(rune(First + i))
}

// Index returns the account index named by letter c, and false if c is not a letter in A..Z.
func Index(c byte) (int, bool) {
	if c < First || c >= First+NumLetters {
		return 0, false
	}
	return int(c - First), true
}
