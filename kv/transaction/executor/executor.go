package executor

// An Executor runs one transaction against the shared account table. Statements run one after the other in source
// order, and each commits before the next starts. A statement is executed optimistically:
//
//  1. resolve: peek every account the statement refers to into a fresh working set and compute the new value;
//  2. acquire: open every cached account for reading, in ascending index order, and upgrade the target to writing;
//  3. validate: verify that every cached value is still the live value;
//  4. commit: update the target;
//  5. release: close everything opened in 2, whatever happened.
//
// An abort during validation means another transaction committed to an account we read, so the attempt is thrown
// away and the statement starts over from 1. A conflicting open is retried on the spot (busy-wait). Since two
// transactions can each hold a latch the other one wants (the simplest case being two readers of the same account
// which both want to upgrade it), spinning is bounded by MaxSpins: once exhausted the attempt is released and
// retried after a randomized backoff, which breaks the cycle.

import (
	"context"
	"runtime"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/config"
	"github.com/pingcap-incubator/tinyocc/kv/metrics"
	"github.com/pingcap-incubator/tinyocc/kv/report"
	"github.com/pingcap-incubator/tinyocc/kv/transaction/parser"
	"github.com/pingcap-incubator/tinyocc/kv/transaction/workset"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

type Options struct {
	// MaxSpins bounds the consecutive aborted opens of one account within an attempt. Zero means no bound.
	MaxSpins       int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	// Sink is told about every committed statement. Nil discards.
	Sink report.CommitSink
	// An optional validation function, only used for testing. It runs after a successful validation, right before
	// the commit, while every latch of the attempt is still held.
	Validation func(id account.TxnID, ws *workset.Set)
}

func OptionsFromConfig(cfg *config.Config, sink report.CommitSink) Options {
	return Options{
		MaxSpins:       cfg.MaxSpins,
		BackoffInitial: cfg.BackoffInitial.Duration,
		BackoffMax:     cfg.BackoffMax.Duration,
		Sink:           sink,
	}
}

type Stats struct {
	Attempts         int64
	Commits          int64
	OpenAborts       int64
	ValidationAborts int64
	SpinExhausted    int64
}

// Retries returns the number of attempts which did not commit.
func (s Stats) Retries() int64 {
	return s.Attempts - s.Commits
}

type Executor struct {
	table   *account.Table
	id      account.TxnID
	text    string
	opts    Options
	backoff backoff.BackOff
	stats   Stats
}

// New creates an executor for the transaction text. id must be unique among the executors sharing table.
func New(table *account.Table, id account.TxnID, text string, opts Options) *Executor {
	if opts.Sink == nil {
		opts.Sink = report.Discard
	}
	return &Executor{
		table:   table,
		id:      id,
		text:    text,
		opts:    opts,
		backoff: newBackOff(opts),
	}
}

func newBackOff(opts Options) backoff.BackOff {
	if opts.BackoffInitial <= 0 {
		return &backoff.ZeroBackOff{}
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = opts.BackoffInitial
	b.MaxInterval = opts.BackoffMax
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

func (e *Executor) ID() account.TxnID {
	return e.id
}

func (e *Executor) Text() string {
	return e.text
}

func (e *Executor) Stats() Stats {
	return e.stats
}

// Run executes every statement of the transaction. It returns an invalid-transaction error if the text does not
// parse (nothing is executed) or if a statement cannot be resolved (statements before it stay committed), a usage
// error if the latch protocol was broken, and the context's error if ctx is done first. ctx is checked before every
// statement attempt, so no statement starts once ctx is done.
func (e *Executor) Run(ctx context.Context) error {
	txn, err := parser.Parse(e.text, e.table.Len())
	if err != nil {
		return errors.Trace(err)
	}
	for i := range txn.Statements {
		if err := ctx.Err(); err != nil {
			return errors.Annotatef(err, "txn %d statement %d", e.id, i+1)
		}
		if err := e.runStatement(ctx, &txn.Statements[i]); err != nil {
			return errors.Annotatef(err, "txn %d statement %d", e.id, i+1)
		}
	}
	return nil
}

func (e *Executor) runStatement(ctx context.Context, stmt *parser.Statement) error {
	start := time.Now()
	e.backoff.Reset()
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return errors.Trace(err)
		}
		e.stats.Attempts++
		committed, err := e.attempt(ctx, stmt)
		if err != nil {
			return err
		}
		if committed {
			e.stats.Commits++
			metrics.CommitCounter.Inc()
			metrics.StatementDuration.Observe(time.Since(start).Seconds())
			metrics.AttemptsHistogram.Observe(float64(attempt))
			e.opts.Sink.Committed(e.text)
			return nil
		}
		wait := e.backoff.NextBackOff()
		log.Debug("statement aborted, retrying",
			zap.Uint64("txn", uint64(e.id)),
			zap.String("statement", stmt.Text),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait))
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return errors.Trace(ctx.Err())
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	case <-timer.C:
		return nil
	}
}

// attempt makes one pass through resolve, acquire, validate, commit and release. It reports false without an error
// when the attempt was aborted and should be retried.
func (e *Executor) attempt(ctx context.Context, stmt *parser.Statement) (committed bool, err error) {
	ws := workset.New(e.table, e.id)
	if err := ws.Eval(stmt); err != nil {
		return false, err
	}

	held := make([]*account.Account, 0, ws.Len())
	defer func() {
		if rerr := e.release(held); rerr != nil && err == nil {
			committed, err = false, rerr
		}
	}()

	for _, idx := range ws.Indexes() {
		a, err := e.table.Get(idx)
		if err != nil {
			return false, err
		}
		if ok, err := e.open(ctx, a, false); !ok || err != nil {
			return false, err
		}
		held = append(held, a)
		if idx == ws.Target() {
			if ok, err := e.open(ctx, a, true); !ok || err != nil {
				return false, err
			}
		}
	}

	for _, a := range held {
		expected, _ := ws.Value(a.Index())
		if err := a.Verify(e.id, expected); err != nil {
			if !txnerr.IsAbort(err) {
				return false, errors.Trace(err)
			}
			e.stats.ValidationAborts++
			metrics.AbortCounter.WithLabelValues(metrics.ReasonValidation).Inc()
			log.Debug("validation failed",
				zap.Uint64("txn", uint64(e.id)),
				zap.String("account", a.Name()),
				zap.Error(err))
			return false, nil
		}
	}

	if e.opts.Validation != nil {
		e.opts.Validation(e.id, ws)
	}
	target, err := e.table.Get(ws.Target())
	if err != nil {
		return false, err
	}
	if err := target.Update(e.id, ws.Result()); err != nil {
		return false, errors.Trace(err)
	}
	return true, nil
}

// open busy-waits for a latch. It reports false without an error when MaxSpins conflicts in a row were seen.
func (e *Executor) open(ctx context.Context, a *account.Account, forWriting bool) (bool, error) {
	for spins := 1; ; spins++ {
		err := a.Open(e.id, forWriting)
		if err == nil {
			return true, nil
		}
		if !txnerr.IsAbort(err) {
			return false, errors.Trace(err)
		}
		e.stats.OpenAborts++
		metrics.AbortCounter.WithLabelValues(metrics.ReasonOpenConflict).Inc()
		if e.opts.MaxSpins > 0 && spins >= e.opts.MaxSpins {
			e.stats.SpinExhausted++
			metrics.AbortCounter.WithLabelValues(metrics.ReasonSpinExhausted).Inc()
			log.Debug("gave up waiting for latch",
				zap.Uint64("txn", uint64(e.id)),
				zap.String("account", a.Name()),
				zap.Bool("write", forWriting),
				zap.Int("spins", spins))
			return false, nil
		}
		if err := ctx.Err(); err != nil {
			return false, errors.Trace(err)
		}
		runtime.Gosched()
	}
}

// release closes every account opened by the attempt. Close drops the read and the write latch together.
func (e *Executor) release(held []*account.Account) error {
	var first error
	for _, a := range held {
		if err := a.Close(e.id); err != nil && first == nil {
			first = errors.Trace(err)
		}
	}
	return first
}
