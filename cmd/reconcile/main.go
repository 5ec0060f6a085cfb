package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/eshaffer321/ledger-reconcile/internal/cli"
)

func main() {
	flags, err := cli.ParseReconcileFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	opts, err := flags.ToOptions(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}

	app, err := cli.NewApp(cfg, "reconcile", flags.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !flags.JSON {
		cli.PrintHeader(os.Stdout, "reconcile", flags.DryRun)
		fmt.Printf("Patterns: %v | Lookback: %d days\n\n", opts.PatternTypes, opts.LookbackDays)
	}

	result, err := app.Orchestrator.Run(ctx, opts)
	if err != nil {
		app.Logger.Error("Reconciliation failed", "error", err)
		os.Exit(1)
	}

	if flags.JSON {
		if err := cli.PrintJSON(os.Stdout, result); err != nil {
			app.Logger.Error("Failed to write result", "error", err)
			os.Exit(1)
		}
		return
	}

	stats, err := app.Store.GetStats()
	if err != nil {
		app.Logger.Warn("Failed to load store stats", "error", err)
	}
	cli.PrintRunSummary(os.Stdout, result, stats)
}
