// Command snapbookctl runs event admin tasks against the configured backends.
package main

import (
	"context"
	"fmt"
	"os"

	"snapbook/internal/app"
	"snapbook/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	log := app.NewLogger(cfg)

	c := &cli{
		out: os.Stdout,
		cfg: cfg,
		open: func(ctx context.Context) (*app.Runtime, error) {
			return app.Build(ctx, cfg, log)
		},
	}
	if err := newRootCmd(c).Execute(); err != nil {
		os.Exit(1)
	}
}
