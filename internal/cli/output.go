package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/storage"
)

// PrintHeader prints the application header
func PrintHeader(w io.Writer, command string, dryRun bool) {
	mode := "APPLY"
	if dryRun {
		mode = "DRY-RUN"
	}
	fmt.Fprintf(w, "ledger-reconcile: %s (%s mode)\n", command, mode)
}

// PrintRunSummary prints per-pattern results and the run totals
func PrintRunSummary(w io.Writer, result *reconcile.Result, stats *storage.Stats) {
	fmt.Fprintln(w, strings.Repeat("-", 60))
	for _, p := range result.Patterns {
		fmt.Fprintf(w, "%-14s charges=%d context=%d matched=%d (1:1=%d N:1=%d) suggested=%d",
			p.PatternType,
			p.Stats.ChargeRecords,
			p.Stats.ContextRecords,
			p.Stats.ChargesMatched,
			p.Stats.OneToOneMatches,
			p.Stats.ManyToOneMatches,
			p.Stats.ChargesSuggested,
		)
		if p.Stats.InvalidRecords > 0 {
			fmt.Fprintf(w, " invalid=%d", p.Stats.InvalidRecords)
		}
		fmt.Fprintln(w)
		for _, m := range p.Matches {
			fmt.Fprintf(w, "  %-6s %s <- %s (%s)\n", m.Confidence, m.ChargeID, strings.Join(m.ContextIDs(), ", "), m.Reason)
		}
		for _, s := range p.Suggestions {
			fmt.Fprintf(w, "  ?      %s <- %s (score %.0f, %s)\n", s.ChargeID, strings.Join(s.CandidateIDs, ", "), s.Score, s.Reason)
		}
	}

	c := result.Counts
	fmt.Fprintln(w, strings.Repeat("-", 60))
	fmt.Fprintf(w, "Summary: Matched=%d Suggested=%d Unmatched=%d Unmatched context=%d\n",
		c.AutoMatched, c.Suggested, c.UnmatchedCharges, c.UnmatchedContext)

	if stats != nil && stats.TotalRecords > 0 {
		fmt.Fprintf(w, "\nStore: Records=%d Linked=%d Matches=%d Open suggestions=%d\n",
			stats.TotalRecords, stats.LinkedRecords, stats.TotalMatches, stats.OpenSuggestions)
	}

	if result.DryRun {
		fmt.Fprintln(w, "\nDry run: nothing was written.")
	}
}

// PrintJSON writes v as indented JSON
func PrintJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintImportSummary prints one line per file plus rejected rows
func PrintImportSummary(w io.Writer, summary *ImportSummary) {
	for _, f := range summary.Files {
		fmt.Fprintf(w, "%-7s %s: imported=%d rejected=%d\n", f.Kind, f.Path, f.Imported, len(f.Errors))
		for _, rowErr := range f.Errors {
			fmt.Fprintf(w, "  - %v\n", rowErr)
		}
	}
	fmt.Fprintf(w, "Summary: Imported=%d Rejected=%d\n", summary.Imported, summary.Rejected)
}
