package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
)

func TestParseReconcileFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags, err := ParseReconcileFlags(nil)
		require.NoError(t, err)
		assert.Empty(t, flags.Patterns)
		assert.Equal(t, 0, flags.LookbackDays)
		assert.False(t, flags.DryRun)
		assert.False(t, flags.JSON)
	})

	t.Run("all flags", func(t *testing.T) {
		flags, err := ParseReconcileFlags([]string{
			"-config", "ledger.yaml", "-pattern", "amazon,paypal", "-days", "14", "-dry-run", "-verbose", "-json",
		})
		require.NoError(t, err)
		assert.Equal(t, "ledger.yaml", flags.ConfigPath)
		assert.Equal(t, "amazon,paypal", flags.Patterns)
		assert.Equal(t, 14, flags.LookbackDays)
		assert.True(t, flags.DryRun)
		assert.True(t, flags.Verbose)
		assert.True(t, flags.JSON)
	})

	t.Run("rejects negative lookback", func(t *testing.T) {
		_, err := ParseReconcileFlags([]string{"-days", "-1"})
		assert.Error(t, err)
	})

	t.Run("rejects unknown flag", func(t *testing.T) {
		_, err := ParseReconcileFlags([]string{"-max", "3"})
		assert.Error(t, err)
	})
}

func TestReconcileFlags_ToOptions(t *testing.T) {
	cfg := config.Default()

	t.Run("falls back to configured patterns and lookback", func(t *testing.T) {
		opts, err := ReconcileFlags{DryRun: true}.ToOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, cfg.Reconcile.EnabledPatternTypes(), opts.PatternTypes)
		assert.Equal(t, cfg.Reconcile.LookbackDays, opts.LookbackDays)
		assert.True(t, opts.DryRun)
	})

	t.Run("parses a pattern list", func(t *testing.T) {
		opts, err := ReconcileFlags{Patterns: " paypal , amazon,", LookbackDays: 7}.ToOptions(cfg)
		require.NoError(t, err)
		assert.Equal(t, []matcher.PatternType{matcher.PatternPayPal, matcher.PatternAmazon}, opts.PatternTypes)
		assert.Equal(t, 7, opts.LookbackDays)
	})

	t.Run("rejects unknown pattern type", func(t *testing.T) {
		_, err := ReconcileFlags{Patterns: "venmo"}.ToOptions(cfg)
		assert.ErrorIs(t, err, matcher.ErrUnknownPatternType)
	})
}

func TestParseImportFlags(t *testing.T) {
	t.Run("collects repeated files", func(t *testing.T) {
		flags, err := ParseImportFlags([]string{
			"-amazon", "orders.json", "-bank", "jan.csv", "-bank", "feb.csv", "-paypal", "pp.csv", "-card", "visa.csv",
		})
		require.NoError(t, err)
		assert.Equal(t, []string{"orders.json"}, flags.Amazon)
		assert.Equal(t, []string{"jan.csv", "feb.csv"}, flags.Bank)
		assert.Equal(t, []string{"pp.csv"}, flags.PayPal)
		assert.Equal(t, []string{"visa.csv"}, flags.Card)
	})

	t.Run("requires at least one file", func(t *testing.T) {
		_, err := ParseImportFlags([]string{"-verbose"})
		assert.Error(t, err)
	})
}

func TestParseServeFlags(t *testing.T) {
	flags, err := ParseServeFlags([]string{"-port", "9000"})
	require.NoError(t, err)
	assert.Equal(t, 9000, flags.Port)
}
