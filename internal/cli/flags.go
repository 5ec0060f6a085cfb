package cli

import (
	"flag"
	"fmt"
	"strings"

	"github.com/eshaffer321/ledger-reconcile/internal/application/reconcile"
	"github.com/eshaffer321/ledger-reconcile/internal/domain/matcher"
	"github.com/eshaffer321/ledger-reconcile/internal/infrastructure/config"
)

// ReconcileFlags are the flags of the reconcile command
type ReconcileFlags struct {
	ConfigPath   string
	Patterns     string // comma-separated, empty = configured pattern types
	LookbackDays int    // 0 = configured lookback
	DryRun       bool
	Verbose      bool
	JSON         bool
}

// ParseReconcileFlags parses reconcile flags from args (normally os.Args[1:])
func ParseReconcileFlags(args []string) (*ReconcileFlags, error) {
	flags := &ReconcileFlags{}
	fs := flag.NewFlagSet("reconcile", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path")
	fs.StringVar(&flags.Patterns, "pattern", "", "Pattern types to run, comma-separated (empty = all configured)")
	fs.IntVar(&flags.LookbackDays, "days", 0, "Number of days to look back (0 = configured default)")
	fs.BoolVar(&flags.DryRun, "dry-run", false, "Report matches without writing anything")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	fs.BoolVar(&flags.JSON, "json", false, "Print the result as JSON")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if flags.LookbackDays < 0 {
		return nil, fmt.Errorf("-days cannot be negative: %d", flags.LookbackDays)
	}
	return flags, nil
}

// ToOptions converts the flags to orchestrator options, checking pattern
// types against the configuration
func (f ReconcileFlags) ToOptions(cfg *config.Config) (reconcile.Options, error) {
	opts := reconcile.Options{
		LookbackDays: f.LookbackDays,
		DryRun:       f.DryRun,
	}
	if opts.LookbackDays == 0 {
		opts.LookbackDays = cfg.Reconcile.LookbackDays
	}

	if strings.TrimSpace(f.Patterns) == "" {
		opts.PatternTypes = cfg.Reconcile.EnabledPatternTypes()
		return opts, nil
	}
	for _, name := range strings.Split(f.Patterns, ",") {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := cfg.Reconcile.Patterns[name]; !ok {
			return opts, fmt.Errorf("%w: %q", matcher.ErrUnknownPatternType, name)
		}
		opts.PatternTypes = append(opts.PatternTypes, matcher.PatternType(name))
	}
	return opts, nil
}

// fileList is a repeatable string flag
type fileList []string

func (l *fileList) String() string {
	return strings.Join(*l, ",")
}

func (l *fileList) Set(value string) error {
	*l = append(*l, value)
	return nil
}

// ImportFlags are the flags of the import command
type ImportFlags struct {
	ConfigPath string
	Amazon     []string
	Bank       []string
	PayPal     []string
	Card       []string
	Verbose    bool
}

// ParseImportFlags parses import flags from args
func ParseImportFlags(args []string) (*ImportFlags, error) {
	var amazon, bank, paypal, card fileList
	flags := &ImportFlags{}
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path")
	fs.Var(&amazon, "amazon", "Amazon order export (JSON), repeatable")
	fs.Var(&bank, "bank", "Bank statement CSV, repeatable")
	fs.Var(&paypal, "paypal", "PayPal activity CSV, repeatable")
	fs.Var(&card, "card", "Credit card statement CSV, repeatable")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	flags.Amazon, flags.Bank, flags.PayPal, flags.Card = amazon, bank, paypal, card
	if len(flags.Amazon)+len(flags.Bank)+len(flags.PayPal)+len(flags.Card) == 0 {
		return nil, fmt.Errorf("nothing to import: pass at least one of -amazon, -bank, -paypal, -card")
	}
	return flags, nil
}

// ServeFlags holds the CLI flags for the serve command.
type ServeFlags struct {
	ConfigPath string
	Port       int // 0 = configured port
	Verbose    bool
}

// ParseServeFlags parses command line flags for the serve command.
func ParseServeFlags(args []string) (*ServeFlags, error) {
	flags := &ServeFlags{}
	fs := flag.NewFlagSet("api", flag.ContinueOnError)
	fs.StringVar(&flags.ConfigPath, "config", "", "Configuration file path")
	fs.IntVar(&flags.Port, "port", 0, "Port to listen on (0 = configured port)")
	fs.BoolVar(&flags.Verbose, "verbose", false, "Verbose output")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return flags, nil
}
