package dedup

import (
	"testing"
	"time"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02 15:04", s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func TestIndex_IsDuplicate(t *testing.T) {
	committed := model.NewLedgerKey("3987", day(t, "2025-07-07 12:31"), "맥도날드 안산고잔DT점", 8400)
	idx := NewIndex([]model.LedgerKey{committed})

	tests := []struct {
		name string
		key  model.LedgerKey
		want bool
	}{
		{
			name: "same charge",
			key:  model.NewLedgerKey("3987", day(t, "2025-07-07 12:31"), "맥도날드 안산고잔DT점", 8400),
			want: true,
		},
		{
			name: "same day different time",
			key:  model.NewLedgerKey("3987", day(t, "2025-07-07 19:02"), "맥도날드 안산고잔DT점", 8400),
			want: true,
		},
		{
			name: "surrounding whitespace ignored",
			key:  model.LedgerKey{CardID: "3987", Day: "2025-07-07", Merchant: " 맥도날드 안산고잔DT점  ", Amount: 8400},
			want: true,
		},
		{
			name: "amount differs by one",
			key:  model.NewLedgerKey("3987", day(t, "2025-07-07 12:31"), "맥도날드 안산고잔DT점", 8401),
			want: false,
		},
		{
			name: "different day",
			key:  model.NewLedgerKey("3987", day(t, "2025-07-08 12:31"), "맥도날드 안산고잔DT점", 8400),
			want: false,
		},
		{
			name: "different card",
			key:  model.NewLedgerKey("6902", day(t, "2025-07-07 12:31"), "맥도날드 안산고잔DT점", 8400),
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.IsDuplicate(tt.key))
		})
	}
}

func TestIndex_CheckAndAddWithinBatch(t *testing.T) {
	idx := NewIndex(nil)
	key := model.NewLedgerKey("6974", day(t, "2025-07-10 09:00"), "쿠팡(주)-쿠팡(주)", 32900)

	assert.False(t, idx.CheckAndAdd(key), "first occurrence is new")
	assert.True(t, idx.CheckAndAdd(key), "second occurrence in the same batch is a duplicate")
	assert.Equal(t, 1, idx.Len())
}

func TestNewIndex_CollapsesRepeats(t *testing.T) {
	k := model.NewLedgerKey("3987", day(t, "2025-07-07 12:31"), "스타벅스강남점", 5600)
	idx := NewIndex([]model.LedgerKey{k, k})
	assert.Equal(t, 1, idx.Len())
}
