package matcher

import (
	"regexp"
)

// Partition is the outcome of classifying records for one pattern type.
type Partition struct {
	Charges []Record
	Context []Record
	// Invalid holds records with a bad date or amount, regardless of side.
	Invalid []Record
}

// Classifier splits records into charge and context sides for a pattern type.
type Classifier struct {
	patternType   PatternType
	patterns      []*regexp.Regexp
	contextOrigin Origin
}

// NewClassifier compiles the pattern table for patternType.
func NewClassifier(patternType PatternType, table PatternTable) (*Classifier, error) {
	compiled, err := compileTable(table)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		patternType:   patternType,
		patterns:      compiled,
		contextOrigin: table.ContextOrigin,
	}, nil
}

// PatternType returns the pattern type this classifier was built for.
func (c *Classifier) PatternType() PatternType {
	return c.patternType
}

// IsCharge reports whether r belongs on the charge side.
func (c *Classifier) IsCharge(r Record) bool {
	if r.IsContextOnly {
		return false
	}
	for _, re := range c.patterns {
		if re.MatchString(r.Description) {
			return true
		}
		if r.Beneficiary != "" && re.MatchString(r.Beneficiary) {
			return true
		}
	}
	return false
}

// IsContext reports whether r belongs on the context side.
func (c *Classifier) IsContext(r Record) bool {
	return r.IsContextOnly && r.Origin == c.contextOrigin
}

// Classify partitions records. Records matching neither side are dropped.
func (c *Classifier) Classify(records []Record) Partition {
	var p Partition
	for _, r := range records {
		if err := r.Validate(); err != nil {
			p.Invalid = append(p.Invalid, r)
			continue
		}
		switch {
		case c.IsCharge(r):
			p.Charges = append(p.Charges, r)
		case c.IsContext(r):
			p.Context = append(p.Context, r)
		}
	}
	return p
}
