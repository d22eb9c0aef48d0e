package account

// An Account is a single numbered cell holding an integer value, guarded by a reader/writer latch. The latch never
// blocks: a request which conflicts with the current holders fails with an abort error (see txnerr) and it is up to
// the caller to retry, back off, or give up. This lets a transaction take optimistic snapshots with Peek, decide what
// it wants to do, and only then try to open the accounts it touched.
//
// Every operation is preceded by a simulated access latency. The delay is taken outside of the account's mutex so it
// does not serialize unrelated callers; the mutex is held only while the latch state is inspected or changed.
//
// The latch moves between four states:
//
//	Free      --open(read)-->   Shared
//	Free      --open(write)-->  Exclusive
//	Shared{t} --open(write) by t-->  Upgraded   (the only read-to-write transition)
//	any       --close(t)-->     t's roles removed
//
// A writer never coexists with a reader other than itself.

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
)

// TxnID identifies the unit of work accessing an account. The zero TxnID is never assigned.
type TxnID uint64

type LatchState int

const (
	Free LatchState = iota
	// Shared: one or more readers, no writer.
	Shared
	// Exclusive: a writer and no readers.
	Exclusive
	// Upgraded: a writer which is also the sole reader.
	Upgraded
)

func (s LatchState) String() string {
	switch s {
	case Free:
		return "free"
	case Shared:
		return "shared"
	case Exclusive:
		return "exclusive"
	case Upgraded:
		return "upgraded"
	}
	return fmt.Sprintf("LatchState(%d)", int(s))
}

type Account struct {
	index int
	delay time.Duration

	mu      sync.Mutex
	value   int64
	writer  TxnID
	readers map[TxnID]struct{}
}

// NewAccount creates an account at position index holding value. Every latch operation sleeps for delay first.
func NewAccount(index int, value int64, delay time.Duration) *Account {
	return &Account{
		index:   index,
		delay:   delay,
		value:   value,
		readers: make(map[TxnID]struct{}),
	}
}

func (a *Account) Index() int {
	return a.index
}

// Name returns the letter naming the account.
func (a *Account) Name() string {
	return Name(a.index)
}

func (a *Account) simulateLatency() {
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
}

func (a *Account) holdsLocked(id TxnID) bool {
	_, reading := a.readers[id]
	return reading || a.writer == id
}

// Peek returns the current value. Peeking is only allowed before opening the account; it is fine to peek while some
// other transaction has the account open.
func (a *Account) Peek(id TxnID) (int64, error) {
	a.simulateLatency()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.holdsLocked(id) {
		return 0, txnerr.Usage("peek", a.index, "txn %d peeked an account it already holds", id)
	}
	return a.value, nil
}

// Open acquires the latch for reading or writing. It fails fast with an abort error when the latch is held in a
// conflicting mode.
func (a *Account) Open(id TxnID, forWriting bool) error {
	a.simulateLatency()
	a.mu.Lock()
	defer a.mu.Unlock()
	if forWriting {
		return a.openWriteLocked(id)
	}
	return a.openReadLocked(id)
}

func (a *Account) openWriteLocked(id TxnID) error {
	if a.writer == id {
		return txnerr.Usage("open", a.index, "txn %d already holds the write latch", id)
	}
	if a.writer != 0 {
		return txnerr.Abort("open", a.index, "txn %d holds the write latch", a.writer)
	}
	switch len(a.readers) {
	case 0:
		// Free -> Exclusive
		a.writer = id
		return nil
	case 1:
		if _, self := a.readers[id]; self {
			// Shared{id} -> Upgraded
			a.writer = id
			return nil
		}
	}
	return txnerr.Abort("open", a.index, "%d other readers hold the latch", a.otherReadersLocked(id))
}

func (a *Account) openReadLocked(id TxnID) error {
	if a.holdsLocked(id) {
		return txnerr.Usage("open", a.index, "txn %d already holds the latch", id)
	}
	if a.writer != 0 {
		return txnerr.Abort("open", a.index, "txn %d holds the write latch", a.writer)
	}
	a.readers[id] = struct{}{}
	return nil
}

func (a *Account) otherReadersLocked(id TxnID) int {
	n := len(a.readers)
	if _, ok := a.readers[id]; ok {
		n--
	}
	return n
}

// Verify checks that the value has not changed since the caller's snapshot. The caller must hold a read latch.
func (a *Account) Verify(id TxnID, expected int64) error {
	a.simulateLatency()
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.readers[id]; !ok {
		return txnerr.Usage("verify", a.index, "txn %d is not a reader", id)
	}
	if a.value != expected {
		return txnerr.Abort("verify", a.index, "expected %d, found %d", expected, a.value)
	}
	return nil
}

// Update stores a new value. The caller must hold the write latch.
func (a *Account) Update(id TxnID, value int64) error {
	a.simulateLatency()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.writer != id {
		return txnerr.Usage("update", a.index, "txn %d is not the writer", id)
	}
	a.value = value
	return nil
}

// Close releases every role id holds on the account.
func (a *Account) Close(id TxnID) error {
	a.simulateLatency()
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.holdsLocked(id) {
		return txnerr.Usage("close", a.index, "txn %d holds no latch", id)
	}
	if a.writer == id {
		a.writer = 0
	}
	delete(a.readers, id)
	return nil
}

// State returns the current latch state.
func (a *Account) State() LatchState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stateLocked()
}

func (a *Account) stateLocked() LatchState {
	switch {
	case a.writer == 0 && len(a.readers) == 0:
		return Free
	case a.writer == 0:
		return Shared
	case len(a.readers) == 0:
		return Exclusive
	default:
		return Upgraded
	}
}

// Holders returns the current writer (zero if none) and the readers in ascending order.
func (a *Account) Holders() (TxnID, []TxnID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	readers := make([]TxnID, 0, len(a.readers))
	for id := range a.readers {
		readers = append(readers, id)
	}
	sort.Slice(readers, func(i, j int) bool { return readers[i] < readers[j] })
	return a.writer, readers
}

// Value reads the stored value without touching the latch or sleeping. It is meant for reports taken once no
// transaction is running.
func (a *Account) Value() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.value
}

func (a *Account) String() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return fmt.Sprintf("%s=%d(%s)", Name(a.index), a.value, a.stateLocked())
}
