package pattern

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
)

// Ensure Snapshot implements Finder interface.
var _ Finder = (*Snapshot)(nil)

type exactKey struct {
	merchant string
	scope    model.Scope
}

// Snapshot is an immutable, versioned view of the active patterns. It is loaded
// once per batch and is safe for concurrent use.
type Snapshot struct {
	loadedAt time.Time
	exact    map[exactKey][]model.Pattern
	compiled map[int]*regexp.Regexp
	rules    []model.Pattern
	all      []model.Pattern
	version  int64
}

// NewSnapshot indexes the active patterns. Inactive patterns are dropped and
// regex patterns that fail to compile are skipped.
func NewSnapshot(version int64, patterns []model.Pattern) *Snapshot {
	s := &Snapshot{
		loadedAt: time.Now(),
		version:  version,
		exact:    make(map[exactKey][]model.Pattern),
		compiled: make(map[int]*regexp.Regexp),
	}

	for _, p := range patterns {
		if !p.IsActive {
			continue
		}
		s.all = append(s.all, p)

		switch p.Kind {
		case model.KindExact:
			k := exactKey{merchant: p.MerchantKey, scope: p.Scope}
			s.exact[k] = append(s.exact[k], p)
		case model.KindContains:
			s.rules = append(s.rules, p)
		case model.KindRegex:
			re, err := common.CompileFullMatch(p.MerchantKey)
			if err != nil {
				slog.Warn("Skipping pattern with invalid regex",
					"pattern_id", p.ID,
					"expr", p.MerchantKey,
					"error", err)
				continue
			}
			s.compiled[p.ID] = re
			s.rules = append(s.rules, p)
		}
	}

	for k := range s.exact {
		candidates := s.exact[k]
		sort.SliceStable(candidates, func(i, j int) bool {
			if candidates[i].Priority != candidates[j].Priority {
				return candidates[i].Priority > candidates[j].Priority
			}
			return candidates[i].ID < candidates[j].ID
		})
	}

	sort.SliceStable(s.rules, func(i, j int) bool {
		a, b := s.rules[i], s.rules[j]
		if a.Priority != b.Priority {
			return a.Priority > b.Priority
		}
		if a.UseCount != b.UseCount {
			return a.UseCount > b.UseCount
		}
		return a.ID < b.ID
	})

	return s
}

// Version identifies the pattern store revision the snapshot was taken from.
func (s *Snapshot) Version() int64 {
	return s.version
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Len returns the number of active patterns in the snapshot.
func (s *Snapshot) Len() int {
	return len(s.all)
}

// Patterns returns a copy of the active patterns.
func (s *Snapshot) Patterns() []model.Pattern {
	out := make([]model.Pattern, len(s.all))
	copy(out, s.all)
	return out
}

// FindExact returns the highest-priority exact pattern scoped to cardID,
// otherwise the highest-priority global one.
func (s *Snapshot) FindExact(merchantKey, cardID string) (model.Pattern, bool) {
	if cardID != "" {
		if p, ok := s.FindExactInScope(merchantKey, model.CardScope(cardID)); ok {
			return p, true
		}
	}
	return s.FindExactInScope(merchantKey, model.GlobalScope())
}

// FindExactInScope returns the highest-priority exact pattern in exactly the given scope.
func (s *Snapshot) FindExactInScope(merchantKey string, scope model.Scope) (model.Pattern, bool) {
	candidates := s.exact[exactKey{merchant: merchantKey, scope: scope}]
	if len(candidates) == 0 {
		return model.Pattern{}, false
	}
	return candidates[0], true
}

// FindMatchingContains walks contains and regex patterns by priority then use
// count and returns the first whose predicate and scope both hold.
func (s *Snapshot) FindMatchingContains(merchantKey, cardID, industryCode string) (model.Pattern, bool) {
	for _, p := range s.rules {
		if !p.Scope.Includes(cardID) {
			continue
		}
		if p.IndustryCode != "" && !strings.Contains(industryCode, p.IndustryCode) {
			continue
		}
		if s.holds(p, merchantKey) {
			return p, true
		}
	}
	return model.Pattern{}, false
}

func (s *Snapshot) holds(p model.Pattern, merchantKey string) bool {
	switch p.Kind {
	case model.KindContains:
		return p.MerchantKey != "" && strings.Contains(merchantKey, p.MerchantKey)
	case model.KindRegex:
		re, ok := s.compiled[p.ID]
		return ok && re.MatchString(merchantKey)
	}
	return false
}
