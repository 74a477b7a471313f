package model

import "time"

// ReviewRow is one line of a manually reviewed pending report.
type ReviewRow struct {
	Date         time.Time
	CardID       string
	MerchantName string
	IndustryCode string
	UsageLabel   string // Final usage chosen by the reviewer, empty when left blank
	Line         int
	Amount       int64
}

// LearnedPair records a merchant/usage association applied by the learning feed.
type LearnedPair struct {
	MerchantKey string
	UsageLabel  string
	Scope       Scope
}

// LearnReport summarizes a bulk learning run.
type LearnReport struct {
	Applied   []LearnedPair
	Created   int
	Updated   int
	Unchanged int
	Skipped   int
}

// Learned returns the number of patterns created or updated.
func (r LearnReport) Learned() int {
	return r.Created + r.Updated
}
