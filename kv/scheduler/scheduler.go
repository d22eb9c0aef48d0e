package scheduler

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/config"
	"github.com/pingcap-incubator/tinyocc/kv/metrics"
	"github.com/pingcap-incubator/tinyocc/kv/report"
	"github.com/pingcap-incubator/tinyocc/kv/transaction/executor"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/pingcap-incubator/tinyocc/kv/util/worker"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/atomic"
	"go.uber.org/zap"
)

// maxLineSize bounds the length of one transaction.
const maxLineSize = 1 << 20

// Result summarizes a run.
type Result struct {
	// Submitted transactions, one per non-blank input line.
	Submitted int64
	// Transactions whose every statement committed.
	Committed int64
	// Invalid transactions, skipped.
	Skipped int64
	// Transactions still running when the run was cancelled.
	Abandoned int64
	// Statement attempts which did not commit, over all transactions.
	Retries  int64
	Elapsed  time.Duration
	TimedOut bool
}

// Scheduler runs every transaction of a batch on its own executor, at most cfg.Workers at a time, against one shared
// table.
type Scheduler struct {
	table *account.Table
	cfg   *config.Config
	opts  executor.Options

	nextID    atomic.Uint64
	committed atomic.Int64
	skipped   atomic.Int64
	retries   atomic.Int64
}

func New(table *account.Table, cfg *config.Config, sink report.CommitSink) *Scheduler {
	return &Scheduler{
		table: table,
		cfg:   cfg,
		opts:  executor.OptionsFromConfig(cfg, sink),
	}
}

type task struct {
	id   account.TxnID
	line int
	text string
}

// RunFile runs the transactions of the file at path, one per line.
func (s *Scheduler) RunFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Trace(err)
	}
	defer f.Close()
	return s.Run(ctx, f)
}

// Run reads transactions from r, one per line, and executes them concurrently. It returns once every transaction has
// finished or the configured timeout has elapsed, in which case the transactions still running are abandoned and
// Result.TimedOut is set. Invalid transactions are skipped with a warning. A usage error stops the whole run and is
// returned.
func (s *Scheduler) Run(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	s.committed.Store(0)
	s.skipped.Store(0)
	s.retries.Store(0)
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout.Duration)
	defer cancel()

	pool := worker.NewPool("executor", s.cfg.Workers)
	pool.Start(runCtx, worker.TaskHandlerFunc(s.handle))
	log.Info("scheduler started",
		zap.Int("workers", pool.Size()),
		zap.Int("accounts", s.table.Len()),
		zap.Duration("timeout", s.cfg.Timeout.Duration))

	var submitted int64
	scanner := newScanner(r)
	for line := 1; scanner.Scan(); line++ {
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}
		t := &task{id: account.TxnID(s.nextID.Inc()), line: line, text: text}
		if err := pool.Submit(t); err != nil {
			log.Warn("stop submitting transactions", zap.Int("line", line), zap.Error(err))
			break
		}
		submitted++
	}
	pool.Stop()
	runErr := pool.Wait()

	res := &Result{
		Submitted: submitted,
		Committed: s.committed.Load(),
		Skipped:   s.skipped.Load(),
		Retries:   s.retries.Load(),
		Elapsed:   time.Since(start),
	}
	res.Abandoned = res.Submitted - res.Committed - res.Skipped
	res.TimedOut = ctx.Err() == nil && runCtx.Err() == context.DeadlineExceeded

	if runErr != nil {
		return res, errors.Trace(runErr)
	}
	if err := scanner.Err(); err != nil {
		return res, errors.Annotate(err, "read transactions")
	}
	if err := ctx.Err(); err != nil {
		return res, errors.Trace(err)
	}
	if res.TimedOut {
		log.Warn("run timed out, outstanding transactions abandoned",
			zap.Int64("abandoned", res.Abandoned),
			zap.Duration("elapsed", res.Elapsed))
	}
	log.Info("scheduler finished",
		zap.Int64("submitted", res.Submitted),
		zap.Int64("committed", res.Committed),
		zap.Int64("skipped", res.Skipped),
		zap.Int64("retries", res.Retries),
		zap.Duration("elapsed", res.Elapsed))
	return res, nil
}

func (s *Scheduler) handle(ctx context.Context, t worker.Task) error {
	tk := t.(*task)
	metrics.InflightGauge.Inc()
	defer metrics.InflightGauge.Dec()

	e := executor.New(s.table, tk.id, tk.text, s.opts)
	err := e.Run(ctx)
	s.retries.Add(e.Stats().Retries())
	switch {
	case err == nil:
		s.committed.Inc()
		return nil
	case txnerr.IsInvalid(err):
		s.skipped.Inc()
		metrics.SkippedCounter.Inc()
		log.Warn("skip invalid transaction",
			zap.Int("line", tk.line),
			zap.String("text", tk.text),
			zap.Error(err))
		return nil
	case isContextErr(err):
		log.Debug("transaction abandoned",
			zap.Uint64("txn", uint64(tk.id)),
			zap.String("text", tk.text))
		return nil
	}
	log.Error("transaction failed",
		zap.Uint64("txn", uint64(tk.id)),
		zap.Int("line", tk.line),
		zap.String("text", tk.text),
		zap.Error(err))
	return err
}

// RunSerial reads every transaction from r and executes them one after another in input order.
func (s *Scheduler) RunSerial(ctx context.Context, r io.Reader) (*Result, error) {
	start := time.Now()
	var txns []string
	scanner := newScanner(r)
	for scanner.Scan() {
		if text := strings.TrimRight(scanner.Text(), "\r"); strings.TrimSpace(text) != "" {
			txns = append(txns, text)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Annotate(err, "read transactions")
	}
	skipped, err := executor.RunSerial(ctx, s.table, txns, s.opts)
	res := &Result{
		Submitted: int64(len(txns)),
		Skipped:   int64(skipped),
		Elapsed:   time.Since(start),
	}
	if err != nil {
		return res, errors.Trace(err)
	}
	res.Committed = res.Submitted - res.Skipped
	return res, nil
}

func newScanner(r io.Reader) *bufio.Scanner {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineSize)
	return scanner
}

func isContextErr(err error) bool {
	cause := errors.Cause(err)
	return cause == context.Canceled || cause == context.DeadlineExceeded
}
