package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/ledger-reconcile/internal/cli"
)

func main() {
	flags, err := cli.ParseImportFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app, err := cli.NewApp(cfg, "import", flags.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	summary, err := cli.RunImport(app.Store, flags)
	cli.PrintImportSummary(os.Stdout, summary)
	if err != nil {
		app.Logger.Error("Import failed", "error", err)
		os.Exit(1)
	}
}
