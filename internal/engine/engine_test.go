package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
	"github.com/Veraticus/cardledger/internal/pattern"
	"github.com/Veraticus/cardledger/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger is an in-memory ledger with failure injection.
type fakeLedger struct {
	keysErr   error
	appendErr error
	updateErr error
	entries   map[string][]model.LedgerEntry
	failAfter int // Append fails once this many rows were written in a session; -1 disables
	mu        sync.Mutex
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{entries: make(map[string][]model.LedgerEntry), failAfter: -1}
}

func (f *fakeLedger) WithLedger(_ context.Context, cardID string, fn func(service.LedgerSession) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(&fakeSession{ledger: f, cardID: cardID})
}

func (f *fakeLedger) LedgerCards(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var cards []string
	for card := range f.entries {
		cards = append(cards, card)
	}
	return cards, nil
}

func (f *fakeLedger) GetEntry(_ context.Context, id string) (*model.LedgerEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entries := range f.entries {
		for _, e := range entries {
			if e.ID == id {
				return &e, nil
			}
		}
	}
	return nil, common.ErrNotFound
}

func (f *fakeLedger) UpdateEntryMatch(ctx context.Context, id string, result model.MatchResult, status model.MatchStatus) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	entry, err := f.GetEntry(ctx, id)
	if err != nil {
		return err
	}
	return f.WithLedger(ctx, entry.Transaction.CardID, func(s service.LedgerSession) error {
		return s.UpdateMatch(ctx, id, result, status)
	})
}

type fakeSession struct {
	ledger  *fakeLedger
	cardID  string
	written int
}

func (s *fakeSession) CardID() string { return s.cardID }

func (s *fakeSession) Keys(_ context.Context) ([]model.LedgerKey, error) {
	if s.ledger.keysErr != nil {
		return nil, s.ledger.keysErr
	}
	var keys []model.LedgerKey
	for _, e := range s.ledger.entries[s.cardID] {
		keys = append(keys, e.Key())
	}
	return keys, nil
}

func (s *fakeSession) Append(_ context.Context, entry *model.LedgerEntry) error {
	if s.ledger.failAfter >= 0 && s.written >= s.ledger.failAfter {
		return s.ledger.appendErr
	}
	s.ledger.entries[s.cardID] = append(s.ledger.entries[s.cardID], *entry)
	s.written++
	return nil
}

func (s *fakeSession) Unmatched(_ context.Context) ([]model.LedgerEntry, error) {
	var out []model.LedgerEntry
	for _, e := range s.ledger.entries[s.cardID] {
		if e.UsageLabel == "" {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *fakeSession) UpdateMatch(_ context.Context, id string, result model.MatchResult, status model.MatchStatus) error {
	entries := s.ledger.entries[s.cardID]
	for i := range entries {
		if entries[i].ID == id {
			entries[i].ApplyResult(result, status)
			return nil
		}
	}
	return common.ErrNotFound
}

// fakePatterns counts use-count bumps and records learned patterns.
type fakePatterns struct {
	learnErr error
	uses     map[int]int
	learned  []model.Pattern
	mu       sync.Mutex
}

func newFakePatterns() *fakePatterns {
	return &fakePatterns{uses: make(map[int]int)}
}

func (f *fakePatterns) IncrementUseCount(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uses[id]++
	return nil
}

func (f *fakePatterns) FindOrCreate(_ context.Context, merchantKey, usageLabel string, scope model.Scope, createdBy string) (model.Pattern, model.UpsertOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.learnErr != nil {
		return model.Pattern{}, model.OutcomeUnchanged, f.learnErr
	}
	p := model.Pattern{
		ID:          100 + len(f.learned),
		MerchantKey: merchantKey,
		UsageLabel:  usageLabel,
		Scope:       scope,
		Kind:        model.KindExact,
		CreatedBy:   createdBy,
		IsActive:    true,
	}
	if !scope.IsGlobal() {
		p.Priority = model.DefaultCardPriority
	}
	f.learned = append(f.learned, p)
	return p, model.OutcomeCreated, nil
}

// reviewDay is the calendar day a review file reports for txn(_, _, d, _).
func reviewDay(d int) time.Time {
	return time.Date(2025, 7, d, 0, 0, 0, 0, time.UTC)
}

func testSnapshot() *pattern.Snapshot {
	return pattern.NewSnapshot(1, []model.Pattern{
		{ID: 1, MerchantKey: "스타벅스강남점", UsageLabel: "복리후생비", Kind: model.KindExact, IsActive: true},
		{ID: 2, MerchantKey: "한국도로공사 하이패스", UsageLabel: "여비교통비", Kind: model.KindExact, IsActive: true},
		{ID: 3, MerchantKey: "한국도로공사 하이패스", UsageLabel: "차량유지비", Kind: model.KindExact, Scope: model.CardScope("6902"), Priority: 10, IsActive: true},
		{ID: 4, MerchantKey: "쿠팡", UsageLabel: "소모품비", Kind: model.KindContains, IsActive: true},
	})
}

func txn(card, merchant string, day int, amount int64) model.Transaction {
	return model.Transaction{
		Date:            time.Date(2025, 7, day, 12, 0, 0, 0, time.UTC),
		RawMerchantName: merchant,
		CardID:          card,
		Amount:          amount,
	}
}

func TestClassifyBatch(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := newFakePatterns()

	var progressCalls int
	eng := NewWithConfig(store, ledger, Config{
		Workers:  3,
		Progress: func(done, total int) { progressCalls++ },
	})

	batch := []model.Transaction{
		txn("6902", "한국도로공사 하이패스", 1, 3200),
		txn("6902", " 스타벅스강남점 ", 2, 5600),
		txn("6902", "쿠팡(주)-쿠팡(주)", 3, 32900),
		txn("6902", "처음보는가게", 4, 10000),
		txn("", "스타벅스강남점", 2, 5600), // same charge as row 1 once trimmed
	}

	result, err := eng.ClassifyBatch(ctx, testSnapshot(), "6902", batch)
	require.NoError(t, err)

	assert.NotEmpty(t, result.BatchID)
	assert.Equal(t, int64(1), result.SnapshotVersion)
	require.Len(t, result.Results, 4)
	assert.Equal(t, []int{4}, result.DuplicateRows)
	assert.Equal(t, 1, result.Duplicates)
	assert.Equal(t, 1, result.Unmatched)
	assert.Equal(t, 4, result.Committed)
	assert.Equal(t, 3, result.Matched())
	assert.Equal(t, 4, progressCalls)

	assert.Equal(t, model.MatchKindCardSpecific, result.Results[0].Kind)
	assert.Equal(t, "차량유지비", result.Results[0].UsageLabel)
	assert.Equal(t, model.MatchKindExact, result.Results[1].Kind)
	assert.Equal(t, model.MatchKindRule, result.Results[2].Kind)
	assert.Equal(t, 0.9, result.Results[2].Confidence)
	assert.Equal(t, model.MatchKindNone, result.Results[3].Kind)

	pending := result.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "처음보는가게", pending[0].RawMerchantName)

	entries := ledger.entries["6902"]
	require.Len(t, entries, 4)
	assert.Equal(t, "스타벅스강남점", entries[1].Transaction.RawMerchantName)
	assert.Equal(t, model.StatusAuto, entries[0].Status)
	assert.Equal(t, model.StatusPending, entries[3].Status)
	for _, e := range entries {
		assert.Equal(t, result.BatchID, e.BatchID)
	}

	assert.Equal(t, map[int]int{1: 1, 3: 1, 4: 1}, store.uses)
}

func TestClassifyBatch_DuplicatesAgainstHistory(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	eng := New(newFakePatterns(), ledger)

	committed := txn("3987", "맥도날드 안산고잔DT점", 7, 8400)
	_, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{committed})
	require.NoError(t, err)

	later := committed
	later.Date = later.Date.Add(5 * time.Hour)
	changed := committed
	changed.Amount = 8401

	result, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{later, changed})
	require.NoError(t, err)
	assert.Equal(t, []int{0}, result.DuplicateRows)
	assert.Equal(t, 1, result.Committed)
	assert.Len(t, ledger.entries["3987"], 2)
}

func TestClassifyBatch_LedgerUnavailable(t *testing.T) {
	ledger := newFakeLedger()
	ledger.keysErr = errors.New("database is locked")
	store := newFakePatterns()
	eng := New(store, ledger)

	_, err := eng.ClassifyBatch(context.Background(), testSnapshot(), "3987",
		[]model.Transaction{txn("3987", "스타벅스강남점", 1, 5600)})

	require.Error(t, err)
	assert.ErrorIs(t, err, common.ErrLedgerUnavailable)
	assert.Empty(t, ledger.entries["3987"])
	assert.Empty(t, store.uses, "nothing is matched when dedup cannot be established")
}

func TestClassifyBatch_PartialCommit(t *testing.T) {
	ledger := newFakeLedger()
	ledger.failAfter = 2
	ledger.appendErr = errors.New("disk full")
	eng := New(newFakePatterns(), ledger)

	batch := []model.Transaction{
		txn("9980", "스타벅스강남점", 1, 5600),
		txn("9980", "스타벅스강남점", 1, 5600), // duplicate, skipped
		txn("9980", "쿠팡(주)", 2, 12000),
		txn("9980", "처음보는가게", 3, 7000),
		txn("9980", "또다른가게", 4, 8000),
	}

	result, err := eng.ClassifyBatch(context.Background(), testSnapshot(), "9980", batch)
	require.Error(t, err)

	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, 3, batchErr.Row)
	assert.Equal(t, 2, batchErr.Committed)
	assert.EqualError(t, errors.Unwrap(err), "disk full")

	require.NotNil(t, result)
	assert.Equal(t, 2, result.Committed)
	assert.Len(t, ledger.entries["9980"], 2)
}

func TestClassifyBatch_CardMismatch(t *testing.T) {
	ledger := newFakeLedger()
	eng := New(newFakePatterns(), ledger)

	_, err := eng.ClassifyBatch(context.Background(), testSnapshot(), "3987", []model.Transaction{
		txn("3987", "스타벅스강남점", 1, 5600),
		txn("6902", "스타벅스강남점", 1, 5600),
	})
	assert.ErrorIs(t, err, common.ErrCardMismatch)
	assert.Empty(t, ledger.entries)

	_, err = eng.ClassifyBatch(context.Background(), testSnapshot(), " ", nil)
	assert.ErrorIs(t, err, common.ErrCardMismatch)
}

func TestPreview_IsIdempotentAndWritesNothing(t *testing.T) {
	ledger := newFakeLedger()
	store := newFakePatterns()
	eng := New(store, ledger)
	snap := testSnapshot()

	batch := []model.Transaction{
		txn("6902", "한국도로공사 하이패스", 1, 3200),
		txn("6902", "쿠팡(주)", 2, 12000),
		txn("6902", "처음보는가게", 3, 7000),
	}

	first, err := eng.Preview(context.Background(), snap, "6902", batch)
	require.NoError(t, err)
	second, err := eng.Preview(context.Background(), snap, "6902", batch)
	require.NoError(t, err)

	assert.Equal(t, first.Results, second.Results)
	assert.True(t, first.DryRun)
	assert.Zero(t, first.Committed)
	assert.Empty(t, ledger.entries)
	assert.Empty(t, store.uses)
}

func TestRematch(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := newFakePatterns()
	eng := New(store, ledger)

	empty := pattern.NewSnapshot(1, nil)
	_, err := eng.ClassifyBatch(ctx, empty, "3987", []model.Transaction{
		txn("3987", "스타벅스강남점", 1, 5600),
		txn("3987", "처음보는가게", 2, 7000),
	})
	require.NoError(t, err)
	_, err = eng.ClassifyBatch(ctx, empty, "6902", []model.Transaction{
		txn("6902", "한국도로공사 하이패스", 1, 3200),
	})
	require.NoError(t, err)

	got, err := eng.Rematch(ctx, testSnapshot(), "3987")
	require.NoError(t, err)
	assert.Equal(t, model.RematchResult{Total: 2, Matched: 1}, got)

	got, err = eng.Rematch(ctx, testSnapshot(), "")
	require.NoError(t, err)
	assert.Equal(t, model.RematchResult{Total: 2, Matched: 1}, got)

	toll := ledger.entries["6902"][0]
	assert.Equal(t, "차량유지비", toll.UsageLabel)
	assert.Equal(t, model.MatchKindCardSpecific, toll.MatchKind)
	assert.Equal(t, model.StatusAuto, toll.Status)
}

func TestOverride(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := newFakePatterns()
	eng := New(store, ledger)

	_, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{
		txn("3987", "처음보는가게", 2, 7000),
	})
	require.NoError(t, err)
	id := ledger.entries["3987"][0].ID

	entry, err := eng.Override(ctx, id, " 회의비 ", OverrideOptions{SavePattern: true})
	require.NoError(t, err)
	assert.Equal(t, "회의비", entry.UsageLabel)
	assert.Equal(t, model.StatusManual, entry.Status)
	assert.Equal(t, model.MatchKindOverride, entry.MatchKind)

	require.Len(t, store.learned, 1)
	assert.Equal(t, "처음보는가게", store.learned[0].MerchantKey)
	assert.True(t, store.learned[0].Scope.IsGlobal())
	assert.Equal(t, model.CreatedByManual, store.learned[0].CreatedBy)
	require.NotNil(t, entry.PatternID)
	assert.Equal(t, store.learned[0].ID, *entry.PatternID)

	stored := ledger.entries["3987"][0]
	assert.Equal(t, "회의비", stored.UsageLabel)
	require.NotNil(t, stored.PatternID)
	assert.Equal(t, store.learned[0].ID, *stored.PatternID)

	_, err = eng.Override(ctx, id, "", OverrideOptions{})
	assert.ErrorIs(t, err, common.ErrMalformedReviewRow)
	_, err = eng.Override(ctx, "missing", "회의비", OverrideOptions{})
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestOverridePerCardSavesCardPattern(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	store := newFakePatterns()
	eng := New(store, ledger)

	_, err := eng.ClassifyBatch(ctx, testSnapshot(), "6902", []model.Transaction{
		txn("6902", "처음보는가게", 2, 7000),
	})
	require.NoError(t, err)
	id := ledger.entries["6902"][0].ID

	entry, err := eng.Override(ctx, id, "차량유지비", OverrideOptions{SavePattern: true, PerCard: true})
	require.NoError(t, err)

	require.Len(t, store.learned, 1)
	learned := store.learned[0]
	assert.Equal(t, model.CardScope("6902"), learned.Scope)
	assert.Equal(t, model.DefaultCardPriority, learned.Priority)
	require.NotNil(t, entry.PatternID)
	assert.Equal(t, learned.ID, *entry.PatternID)
}

func TestOverrideUpdatesEntryBeforeSavingPattern(t *testing.T) {
	ctx := context.Background()

	t.Run("failed update saves nothing", func(t *testing.T) {
		ledger := newFakeLedger()
		store := newFakePatterns()
		eng := New(store, ledger)

		_, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{
			txn("3987", "처음보는가게", 2, 7000),
		})
		require.NoError(t, err)

		ledger.updateErr = errors.New("disk full")
		_, err = eng.Override(ctx, ledger.entries["3987"][0].ID, "회의비", OverrideOptions{SavePattern: true})
		require.Error(t, err)
		assert.Empty(t, store.learned)
		assert.Empty(t, ledger.entries["3987"][0].UsageLabel)
	})

	t.Run("failed save keeps the label", func(t *testing.T) {
		ledger := newFakeLedger()
		store := newFakePatterns()
		store.learnErr = errors.New("locked")
		eng := New(store, ledger)

		_, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{
			txn("3987", "처음보는가게", 2, 7000),
		})
		require.NoError(t, err)

		entry, err := eng.Override(ctx, ledger.entries["3987"][0].ID, "회의비", OverrideOptions{SavePattern: true})
		require.Error(t, err)
		require.NotNil(t, entry)
		assert.Equal(t, "회의비", entry.UsageLabel)
		assert.Nil(t, entry.PatternID)
		assert.Equal(t, model.StatusManual, ledger.entries["3987"][0].Status)
	})
}

func TestApplyReview(t *testing.T) {
	ctx := context.Background()
	ledger := newFakeLedger()
	eng := New(newFakePatterns(), ledger)

	_, err := eng.ClassifyBatch(ctx, testSnapshot(), "3987", []model.Transaction{
		txn("3987", "처음보는가게", 2, 7000),
		txn("3987", "다른가게", 3, 1200),
		txn("3987", "스타벅스강남점", 3, 5600),
	})
	require.NoError(t, err)

	snap := pattern.NewSnapshot(2, []model.Pattern{
		{ID: 9, MerchantKey: "처음보는가게", UsageLabel: "회의비", Kind: model.KindExact, IsActive: true},
	})
	rows := []model.ReviewRow{
		{Date: reviewDay(2), CardID: "3987", MerchantName: "처음보는가게", Amount: 7000, UsageLabel: "회의비"},
		{Date: reviewDay(3), CardID: "3987", MerchantName: "다른가게", Amount: 1200, UsageLabel: "소모품비"},
		{Date: reviewDay(9), CardID: "3987", MerchantName: "없는가게", Amount: 100, UsageLabel: "소모품비"},
		{CardID: "3987", MerchantName: "다른가게", Amount: 1200, UsageLabel: "소모품비"},
	}

	result, err := eng.ApplyReview(ctx, snap, rows)
	require.NoError(t, err)
	assert.Equal(t, model.RematchResult{Total: 2, Matched: 2}, result)

	entries := ledger.entries["3987"]
	assert.Equal(t, "회의비", entries[0].UsageLabel)
	assert.Equal(t, model.StatusManual, entries[0].Status)
	require.NotNil(t, entries[0].PatternID)
	assert.Equal(t, 9, *entries[0].PatternID)

	assert.Equal(t, "소모품비", entries[1].UsageLabel)
	assert.Equal(t, model.StatusManual, entries[1].Status)
	assert.Nil(t, entries[1].PatternID)

	assert.Equal(t, model.StatusAuto, entries[2].Status)
}

func TestSuggest(t *testing.T) {
	eng := New(newFakePatterns(), newFakeLedger())

	got := eng.Suggest(testSnapshot(), "쿠팡(주)-쿠팡(주)", "3987")
	require.Len(t, got, 1)
	assert.Equal(t, pattern.ScorePatternInName, got[0].Score)
}
