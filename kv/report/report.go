package report

import (
	"fmt"
	"io"
	"sync"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap/errors"
)

// CommitSink is told about every statement that commits.
type CommitSink interface {
	Committed(txn string)
}

// Discard drops every commit notification.
var Discard CommitSink = discard{}

type discard struct{}

func (discard) Committed(string) {}

// WriterSink writes one "commit: <txn>" line per commit. Lines from concurrent transactions never interleave.
type WriterSink struct {
	mu  sync.Mutex
	w   io.Writer
	err error
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Committed(txn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return
	}
	_, s.err = fmt.Fprintf(s.w, "commit: %s\n", txn)
}

// Err returns the first write error, if any.
func (s *WriterSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Trace(s.err)
}

// CollectSink keeps every commit in memory, in commit order.
type CollectSink struct {
	mu      sync.Mutex
	commits []string
}

func (s *CollectSink) Committed(txn string) {
	s.mu.Lock()
	s.commits = append(s.commits, txn)
	s.mu.Unlock()
}

func (s *CollectSink) Commits() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.commits...)
}

// DumpAccounts prints the final value of every account, one line each in index order, together with the value
// modulo the number of accounts (the index it names when used for indirection).
func DumpAccounts(w io.Writer, table *account.Table) error {
	if _, err := fmt.Fprintln(w, "final values:"); err != nil {
		return errors.Trace(err)
	}
	n := int64(table.Len())
	for i, v := range table.Values() {
		_, err := fmt.Fprintf(w, "    %02d %s: %11d (%02d)\n", i, account.Name(i), v, v%n)
		if err != nil {
			return errors.Trace(err)
		}
	}
	return nil
}
