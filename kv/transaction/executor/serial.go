package executor

import (
	"context"

	"github.com/pingcap-incubator/tinyocc/kv/account"
	"github.com/pingcap-incubator/tinyocc/kv/txnerr"
	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"go.uber.org/zap"
)

// RunSerial executes the transactions one at a time, in order, on the calling goroutine. With nothing running
// concurrently every attempt commits at once, so the result is the reference any concurrent run must match for some
// ordering of the same transactions. Invalid transactions are skipped; their count is returned.
func RunSerial(ctx context.Context, table *account.Table, txns []string, opts Options) (skipped int, err error) {
	for i, text := range txns {
		e := New(table, account.TxnID(i+1), text, opts)
		if err := e.Run(ctx); err != nil {
			if txnerr.IsInvalid(err) {
				log.Warn("skip invalid transaction", zap.String("text", text), zap.Error(err))
				skipped++
				continue
			}
			return skipped, errors.Trace(err)
		}
	}
	return skipped, nil
}
