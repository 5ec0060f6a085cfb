package matcher

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// Origin identifies where a record was imported from.
type Origin string

const (
	OriginAmazon        Origin = "amazon"
	OriginPayPal        Origin = "paypal"
	OriginCardStatement Origin = "card_statement"
	OriginBankStatement Origin = "bank_statement"
	OriginManual        Origin = "manual"
)

var allOrigins = []Origin{
	OriginAmazon,
	OriginPayPal,
	OriginCardStatement,
	OriginBankStatement,
	OriginManual,
}

// Valid reports whether o is one of the known origins.
func (o Origin) Valid() bool {
	for _, known := range allOrigins {
		if o == known {
			return true
		}
	}
	return false
}

// ParseOrigin converts a stored or configured origin name.
func ParseOrigin(s string) (Origin, error) {
	o := Origin(s)
	if !o.Valid() {
		return "", fmt.Errorf("unknown origin %q", s)
	}
	return o, nil
}

// Confidence is the certainty attached to a match or suggestion.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// Cardinality describes how many records sit on each side of a match.
type Cardinality string

const (
	CardinalityOneToOne  Cardinality = "one_to_one"
	CardinalityManyToOne Cardinality = "many_to_one"
	// CardinalityOneToMany is accepted for stored data; no pass emits it.
	CardinalityOneToMany Cardinality = "one_to_many"
)

// cardinalityFor infers cardinality from the number of context records.
func cardinalityFor(contextCount int) Cardinality {
	if contextCount > 1 {
		return CardinalityManyToOne
	}
	return CardinalityOneToOne
}

// SuggestionSource tells how a suggestion was produced.
type SuggestionSource string

const (
	// SourceAmount suggestions came out of amount reconciliation (near misses).
	SourceAmount SuggestionSource = "amount"
	// SourceProximity suggestions are based on date proximity only.
	SourceProximity SuggestionSource = "proximity"
)

// Record is a single imported transaction.
type Record struct {
	ID            string
	Date          time.Time
	Amount        float64 // signed; compared by magnitude
	Description   string
	Beneficiary   string
	Origin        Origin
	IsContextOnly bool
	ExistingLinks []string
}

var (
	errMissingDate     = errors.New("missing or invalid date")
	errNonFiniteAmount = errors.New("non-finite amount")
	errMissingRecordID = errors.New("missing record id")
)

// Validate reports why a record cannot take part in reconciliation.
func (r Record) Validate() error {
	if r.ID == "" {
		return errMissingRecordID
	}
	if r.Date.IsZero() {
		return errMissingDate
	}
	if math.IsNaN(r.Amount) || math.IsInf(r.Amount, 0) {
		return errNonFiniteAmount
	}
	return nil
}

// Linked reports whether the record already carries links.
func (r Record) Linked() bool {
	return len(r.ExistingLinks) > 0
}

// magnitude returns |Amount|. Only call on validated records.
func (r Record) magnitude() decimal.Decimal {
	return decimal.NewFromFloat(r.Amount).Abs()
}

// MatchResult is an accepted link between one charge record and its context records.
type MatchResult struct {
	ChargeID         string
	ContextIDs       []string
	Cardinality      Cardinality
	Confidence       Confidence
	ChargeAmount     decimal.Decimal // |charge amount|
	TotalAmount      decimal.Decimal // sum of |context amounts|
	AmountDifference decimal.Decimal
	Tolerance        decimal.Decimal
	MaxDayDiff       int
	Score            float64
	Reason           string
}

// MatchSuggestion is a candidate link surfaced for review. It is never applied automatically.
type MatchSuggestion struct {
	ChargeID         string
	CandidateIDs     []string
	Cardinality      Cardinality
	Confidence       Confidence
	Source           SuggestionSource
	ChargeAmount     decimal.Decimal
	TotalAmount      decimal.Decimal
	AmountDifference decimal.Decimal
	MaxDayDiff       int
	Score            float64 // 0-100
	Reason           string
}

// Stats summarizes a single reconciliation pass over one pattern type.
type Stats struct {
	ChargeRecords        int
	ContextRecords       int
	ChargesAlreadyLinked int
	ContextAlreadyLinked int

	InvalidRecords   int
	InvalidRecordIDs []string

	ChargesMatched   int
	ContextMatched   int
	OneToOneMatches  int
	ManyToOneMatches int
	ChargesSuggested int

	// Unmatched counts records left with neither a match nor a suggestion.
	UnmatchedCharges int
	UnmatchedContext int
}

// Result is the output of Engine.Reconcile.
type Result struct {
	PatternType PatternType
	Matches     []MatchResult
	Suggestions []MatchSuggestion
	Stats       Stats
}
