package transaction

// The transaction package implements TinyOCC's 'transaction' layer. It takes the text of a transaction and turns it into
// reads and writes of the shared account table (kv/account), making sure that concurrently executing transactions do not
// interfere with each other.
//
// A transaction is a sequence of statements separated by ';'. Each statement assigns the sum of some integers and
// account values to one account, e.g. `A = B + C* - 3`. A '*' after an account name is an indirection: `C*` is the
// account whose index is the value of C modulo the number of accounts. Within this package, `parser` turns text into
// statements, `workset` holds the values one attempt at a statement has read, and `executor` runs statements.
//
// Each statement is executed optimistically and atomically; a transaction as a whole is not atomic: if its third
// statement turns out to be invalid, the first two stay committed.
//
// ## Latches and validation
//
// Every account has a reader/writer latch (see kv/account). Latches are never waited on: an `Open` that conflicts with
// the current holders fails with an abort error and the executor decides what to do about it. A statement is executed
// in five steps:
//
// 1. resolve: peek every account the statement mentions, including every account visited on an indirection chain, into
//    a fresh working set. The right-hand side and the target are computed from these cached values only.
// 2. acquire: open every cached account for reading, in ascending index order, and upgrade the target to a write latch.
//    An aborted open is retried on the spot.
// 3. validate: verify that every cached value is still the value in the account. If one changed, another statement
//    committed in between and the attempt is thrown away.
// 4. commit: update the target.
// 5. release: close every latch opened in 2.
//
// Because a statement only commits after every value it used has been validated while it holds read latches on all of
// them, and because nobody can take a write latch while somebody else reads, the committed statements are serializable.
//
// ## Stalls
//
// Busy-waiting alone does not guarantee progress. Two statements can each hold a latch the other needs; the simplest
// case is two statements reading the same account which both want to write it, since an upgrade requires being the
// only reader. Acquiring in index order removes cycles between distinct accounts but not this one. The executor bounds
// the number of aborted opens per account (config max-spins); when the bound is hit it releases everything, waits a
// randomized, exponentially growing time, and starts the statement over.
