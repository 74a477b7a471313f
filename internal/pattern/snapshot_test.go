package pattern

import (
	"testing"

	"github.com/Veraticus/cardledger/internal/model"
	"github.com/stretchr/testify/assert"
)

func TestSnapshot_FindExact(t *testing.T) {
	snap := NewSnapshot(3, []model.Pattern{
		exact(1, "쿠팡(주)", "소모품비", model.GlobalScope()),
		func() model.Pattern {
			p := exact(2, "쿠팡(주)", "사무용품비", model.GlobalScope())
			p.Priority = 5
			return p
		}(),
		exact(3, "쿠팡(주)", "도서인쇄비", model.CardScope("9980")),
	})

	assert.Equal(t, int64(3), snap.Version())
	assert.Equal(t, 3, snap.Len())

	p, ok := snap.FindExact("쿠팡(주)", "9980")
	assert.True(t, ok)
	assert.Equal(t, 3, p.ID)

	p, ok = snap.FindExact("쿠팡(주)", "6974")
	assert.True(t, ok)
	assert.Equal(t, 2, p.ID, "highest priority global pattern wins")

	_, ok = snap.FindExactInScope("쿠팡(주)", model.CardScope("6974"))
	assert.False(t, ok)

	_, ok = snap.FindExact("쿠팡", "9980")
	assert.False(t, ok)
}

func TestSnapshot_FindMatchingContainsOrdering(t *testing.T) {
	popular := rule(1, model.KindContains, "주유소", "차량유지비", model.GlobalScope(), 0)
	popular.UseCount = 40
	quiet := rule(2, model.KindContains, "SK", "여비교통비", model.GlobalScope(), 0)
	quiet.UseCount = 2
	urgent := rule(3, model.KindContains, "에너지", "연료비", model.GlobalScope(), 5)

	snap := NewSnapshot(1, []model.Pattern{quiet, popular, urgent})

	p, ok := snap.FindMatchingContains("SK에너지 주유소", "3987", "")
	assert.True(t, ok)
	assert.Equal(t, 3, p.ID, "priority dominates")

	p, ok = snap.FindMatchingContains("SK 주유소", "3987", "")
	assert.True(t, ok)
	assert.Equal(t, 1, p.ID, "use count breaks priority ties")
}

func TestSnapshot_SkipsInvalidRegex(t *testing.T) {
	snap := NewSnapshot(1, []model.Pattern{
		rule(1, model.KindRegex, `(`, "소모품비", model.GlobalScope(), 0),
	})

	_, ok := snap.FindMatchingContains("(", "3987", "")
	assert.False(t, ok)
}

func TestSnapshot_PatternsIsCopy(t *testing.T) {
	snap := NewSnapshot(1, []model.Pattern{exact(1, "A", "B", model.GlobalScope())})
	ps := snap.Patterns()
	ps[0].UsageLabel = "changed"

	p, _ := snap.FindExact("A", "")
	assert.Equal(t, "B", p.UsageLabel)
	assert.Equal(t, "B", snap.Patterns()[0].UsageLabel)
}
