package engine

import "fmt"

// BatchError reports a batch that stopped part way through appending. The
// first Committed accepted transactions are in the ledger; Row is the input
// index of the transaction that failed.
type BatchError struct {
	Err       error
	Row       int
	Committed int
}

func (e *BatchError) Error() string {
	return fmt.Sprintf("batch stopped at row %d after committing %d transactions: %v", e.Row, e.Committed, e.Err)
}

func (e *BatchError) Unwrap() error {
	return e.Err
}
