package tinyocc

/*
TinyOCC runs a batch of account-update transactions concurrently against a shared table of 26 accounts (A to Z), using
optimistic concurrency control. It is intended for teaching and experimentation. The final state of a run is the state
some one-at-a-time ordering of the same statements would produce, while transactions which touch different accounts
run in parallel. There is no lock manager: every account carries its own small reader/writer latch which never blocks,
and transactions validate what they read before they write.

Building TinyOCC produces one executable, tinyocc, which reads a file with one transaction per line, prints a line for
every statement it commits and finally prints the value of every account.

The `tinyocc` module is organized into the following packages:

* `kv/account`: the accounts and their latches.
* `kv/transaction`: parsing transactions and executing them optimistically; see kv/transaction/doc.go.
* `kv/scheduler`: hands transactions to a bounded pool of workers and waits for them.
* `kv/report`: commit lines and the final account report.
* `kv/config`, `kv/metrics`, `kv/txnerr`, `kv/util`: configuration, prometheus metrics, error kinds and helpers.
* `log`: logger setup.
* `cmd/tinyocc`: the command line entry point.
*/
