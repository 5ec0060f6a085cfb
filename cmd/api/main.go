package main

import (
	"fmt"
	"os"

	"github.com/eshaffer321/ledger-reconcile/internal/cli"
)

func main() {
	flags, err := cli.ParseServeFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	cfg, err := cli.LoadConfig(flags.ConfigPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app, err := cli.NewApp(cfg, "api", flags.Verbose)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = app.Close() }()

	if err := cli.RunServe(app, flags); err != nil {
		app.Logger.Error("API server failed", "error", err)
		os.Exit(1)
	}
}
