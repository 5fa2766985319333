// Package main renders the pass history report and the activity CSV.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"fee-reinvestor/internal/app"
	"fee-reinvestor/internal/config"
	"fee-reinvestor/internal/domain"
	"fee-reinvestor/internal/logging"
	"fee-reinvestor/internal/reporting"
)

func main() {
	outputDir := flag.String("output-dir", "docs", "Output directory for generated files")
	runLimit := flag.Int("runs", 20, "Number of recent passes to include")
	activityLimit := flag.Int("activity", 500, "Number of activity records to export")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, syncLogs, err := logging.New(cfg.LogLevel, cfg.LogDevelopment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer syncLogs()

	ctx := context.Background()

	stores, err := app.OpenStores(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening stores: %v\n", err)
		os.Exit(1)
	}
	defer stores.Close()

	report, err := reporting.NewGenerator(stores.Runs, stores.Activity).Generate(ctx, *runLimit)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error generating report: %v\n", err)
		os.Exit(1)
	}

	records, err := stores.Activity.List(ctx, domain.ActivityFilter{Feed: domain.FeedAll, Limit: *activityLimit})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing activity: %v\n", err)
		os.Exit(1)
	}
	activityCSV, err := reporting.RenderActivityCSV(records)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error rendering activity: %v\n", err)
		os.Exit(1)
	}

	if err := os.MkdirAll(*outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating output dir: %v\n", err)
		os.Exit(1)
	}

	files := map[string]string{
		"REPORT_REINVEST.md": reporting.RenderMarkdown(report),
		"activity.csv":       activityCSV,
	}
	for name, content := range files {
		path := filepath.Join(*outputDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			fmt.Fprintf(os.Stderr, "Error writing %s: %v\n", path, err)
			os.Exit(1)
		}
	}

	fmt.Printf("Report generated successfully:\n")
	fmt.Printf("  - %s/REPORT_REINVEST.md\n", *outputDir)
	fmt.Printf("  - %s/activity.csv\n", *outputDir)
}
