package pattern

import (
	"fmt"
	"strings"

	"github.com/Veraticus/cardledger/internal/common"
	"github.com/Veraticus/cardledger/internal/model"
)

// Validate checks that a pattern has a usable predicate and label before it is stored.
func Validate(p model.Pattern) error {
	if !p.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", common.ErrInvalidPattern, p.Kind)
	}
	if strings.TrimSpace(p.UsageLabel) == "" {
		return fmt.Errorf("%w: missing usage label", common.ErrInvalidPattern)
	}
	if p.MerchantKey != model.NormalizeMerchant(p.MerchantKey) {
		return fmt.Errorf("%w: merchant key %q is not trimmed", common.ErrInvalidPattern, p.MerchantKey)
	}

	switch p.Kind {
	case model.KindExact:
		if p.MerchantKey == "" {
			return fmt.Errorf("%w: exact pattern with empty merchant key", common.ErrInvalidPattern)
		}
		if p.IndustryCode != "" {
			return fmt.Errorf("%w: industry condition is only valid on rule patterns", common.ErrInvalidPattern)
		}
	case model.KindContains:
		if p.MerchantKey == "" {
			return fmt.Errorf("%w: contains pattern with empty merchant key", common.ErrInvalidPatternScope)
		}
	case model.KindRegex:
		if p.MerchantKey == "" {
			return fmt.Errorf("%w: regex pattern with empty expression", common.ErrInvalidPatternScope)
		}
		if _, err := common.CompileFullMatch(p.MerchantKey); err != nil {
			return fmt.Errorf("%w: %v", common.ErrInvalidPatternScope, err)
		}
	}

	return nil
}
