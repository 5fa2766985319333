// Package main runs a single claim and reinvest pass and prints its summary.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"fee-reinvestor/internal/app"
	"fee-reinvestor/internal/config"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/logging"
)

func main() {
	mode := flag.String("mode", "", "Reinvest mode override (direct, collector)")
	timeout := flag.Duration("timeout", 10*time.Minute, "Upper bound on the pass")
	withResults := flag.Bool("results", true, "Include per-wallet results in output")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *mode != "" {
		cfg.Policy.Mode = domain.ReinvestMode(*mode)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	logger, syncLogs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLogs()

	summary, err := runPass(cfg, logger, *timeout)
	if err != nil {
		logger.Error("pass failed", zap.Error(err))
		syncLogs()
		os.Exit(1)
	}

	if !*withResults {
		trimmed := *summary
		trimmed.Results = nil
		summary = &trimmed
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		fmt.Fprintf(os.Stderr, "Error encoding summary: %v\n", err)
		os.Exit(1)
	}
}

func runPass(cfg *config.Config, logger *zap.Logger, timeout time.Duration) (*domain.PassSummary, error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	defer stores.Close()

	orch, closeOrch, err := app.NewOrchestrator(ctx, cfg, stores, logger)
	if err != nil {
		return nil, err
	}
	defer closeOrch()

	return orch.Run(ctx, "cli")
}
