package matcher

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 5, cfg.MaxDateDifferenceInDays)
	assert.Equal(t, 10, cfg.SuggestionWindowDays())
	assert.Equal(t, 8, cfg.CombinationSearchLimit)
	assert.Equal(t, 10, cfg.SuggestionCandidateCap)
	assert.Equal(t, []PatternType{PatternAmazon, PatternCardAcquirer, PatternPayPal}, cfg.PatternTypes())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"negative window", func(c *Config) { c.MaxDateDifferenceInDays = -1 }, "max date difference"},
		{"negative exact tolerance", func(c *Config) { c.ExactMatchTolerance = -0.01 }, "exact match tolerance cannot be negative"},
		{"NaN percent", func(c *Config) { c.SumMatchTolerancePercent = math.NaN() }, "must be a finite number"},
		{"percent above one", func(c *Config) { c.SumMatchTolerancePercent = 2 }, "must be a fraction"},
		{"negative floor", func(c *Config) { c.AbsoluteToleranceFloor = -1 }, "absolute tolerance floor"},
		{"search limit too high", func(c *Config) { c.CombinationSearchLimit = 64 }, "combination search limit"},
		{"zero cap", func(c *Config) { c.SuggestionCandidateCap = 0 }, "suggestion candidate cap"},
		{"proximity score above 100", func(c *Config) { c.ProximityScore = 101 }, "proximity score"},
		{"negative high confidence days", func(c *Config) { c.HighConfidenceMaxDays = -2 }, "high confidence"},
		{"no tables", func(c *Config) { c.PatternTables = nil }, "no pattern tables"},
		{"broken table", func(c *Config) {
			c.PatternTables[PatternPayPal] = PatternTable{ChargePatterns: []string{"["}, ContextOrigin: OriginPayPal}
		}, `pattern table "paypal"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestConfig_ZeroSearchLimitIsAllowed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CombinationSearchLimit = 0

	assert.NoError(t, cfg.Validate())
}
