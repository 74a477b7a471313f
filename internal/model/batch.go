package model

// BatchResult is the outcome of classifying one uploaded batch for a card.
type BatchResult struct {
	BatchID string
	CardID  string

	// Accepted holds the non-duplicate transactions in input order and
	// Results their match results, index for index.
	Accepted []Transaction
	Results  []MatchResult

	// DuplicateRows are input indexes flagged as already in the ledger or
	// repeated earlier in the same batch.
	DuplicateRows   []int
	SnapshotVersion int64
	Duplicates      int
	Unmatched       int
	Committed       int
	DryRun          bool
}

// Pending returns the accepted transactions no pattern matched.
func (r *BatchResult) Pending() []Transaction {
	var pending []Transaction
	for i, res := range r.Results {
		if !res.IsMatched() {
			pending = append(pending, r.Accepted[i])
		}
	}
	return pending
}

// Matched returns the number of accepted transactions that received a label.
func (r *BatchResult) Matched() int {
	return len(r.Accepted) - r.Unmatched
}

// RematchResult summarizes a rematch run over unmatched ledger entries.
type RematchResult struct {
	Total   int
	Matched int
	Failed  int
}
