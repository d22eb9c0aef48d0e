// Package txnerr defines the three kinds of failure a transaction can run into.
//
// Callers switch on the Kind instead of on concrete types:
//
//	KindAbort               a conflict with another transaction; always retryable and never
//	                        surfaced past the executor.
//	KindUsage               the latch protocol was violated, which means the executor has a
//	                        bug. It stops the run.
//	KindInvalidTransaction  the transaction text is malformed or names an account that does
//	                        not exist. Only that transaction is skipped.
package txnerr

import (
	"fmt"

	"github.com/pingcap/errors"
)

type Kind int

const (
	KindAbort Kind = iota + 1
	KindUsage
	KindInvalidTransaction
)

func (k Kind) String() string {
	switch k {
	case KindAbort:
		return "abort"
	case KindUsage:
		return "usage"
	case KindInvalidTransaction:
		return "invalid transaction"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// NoAccount is used as Error.Account when the failure is not tied to one account.
const NoAccount = -1

type Error struct {
	Kind Kind
	// Op is the operation that failed, e.g. "open", "verify" or "parse".
	Op      string
	Account int
	Msg     string
}

func (e *Error) Error() string {
	if e.Account == NoAccount {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Msg)
	}
	return fmt.Sprintf("%s: %s account %d: %s", e.Kind, e.Op, e.Account, e.Msg)
}

func newError(kind Kind, op string, account int, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Account: account, Msg: fmt.Sprintf(format, args...)}
}

// Abort returns a retryable conflict error.
func Abort(op string, account int, format string, args ...interface{}) error {
	return newError(KindAbort, op, account, format, args...)
}

// Usage returns a protocol violation. Usage errors carry a stack trace since they point at a bug.
func Usage(op string, account int, format string, args ...interface{}) error {
	return errors.WithStack(newError(KindUsage, op, account, format, args...))
}

// Invalid returns an error for a transaction that cannot be parsed or resolved.
func Invalid(op string, format string, args ...interface{}) error {
	return newError(KindInvalidTransaction, op, NoAccount, format, args...)
}

// KindOf returns the kind of err, looking through errors.Trace/Annotate wrappers.
func KindOf(err error) (Kind, bool) {
	if err == nil {
		return 0, false
	}
	if e, ok := errors.Cause(err).(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}

func IsAbort(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindAbort
}

func IsUsage(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUsage
}

func IsInvalid(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindInvalidTransaction
}
