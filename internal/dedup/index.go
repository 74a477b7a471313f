// Package dedup detects transactions that are already present in the ledger.
package dedup

import "github.com/Veraticus/cardledger/internal/model"

// Index is the set of ledger keys already committed for a card, extended as a
// batch is folded in. It is not safe for concurrent use.
type Index struct {
	keys map[model.LedgerKey]struct{}
}

// NewIndex builds an index from existing ledger keys.
func NewIndex(keys []model.LedgerKey) *Index {
	idx := &Index{keys: make(map[model.LedgerKey]struct{}, len(keys))}
	for _, k := range keys {
		idx.Add(k)
	}
	return idx
}

// IsDuplicate reports whether key has been seen.
func (idx *Index) IsDuplicate(key model.LedgerKey) bool {
	_, ok := idx.keys[normalize(key)]
	return ok
}

// Add records key.
func (idx *Index) Add(key model.LedgerKey) {
	idx.keys[normalize(key)] = struct{}{}
}

// CheckAndAdd reports whether key was already present and records it if not.
// Folding a batch through CheckAndAdd in order flags repeats within the batch
// itself as well as repeats of committed rows.
func (idx *Index) CheckAndAdd(key model.LedgerKey) bool {
	if idx.IsDuplicate(key) {
		return true
	}
	idx.Add(key)
	return false
}

// Len returns the number of distinct keys in the index.
func (idx *Index) Len() int {
	return len(idx.keys)
}

func normalize(key model.LedgerKey) model.LedgerKey {
	key.Merchant = model.NormalizeMerchant(key.Merchant)
	return key
}
