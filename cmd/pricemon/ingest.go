package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/discovery"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/parser"
	"github.com/FACorreiaa/da-price-monitor/internal/domain/bulletin/repository"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Run one ingest and store the report",
	Long: `Locate, download and parse the latest bulletin and store it as a new report.
With --file a local PDF or text file is ingested instead of downloading.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		sourceURL, _ := cmd.Flags().GetString("url")
		day, _ := cmd.Flags().GetString("date")

		deps, err := InitDependencies(cfg, logger)
		if err != nil {
			return err
		}
		defer deps.Cleanup()

		ctx := cmd.Context()
		if file == "" {
			res, err := deps.PriceService.Ingest(ctx, repository.TriggerCLI)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		}

		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		if sourceURL == "" {
			sourceURL = "file://" + filepath.Base(file)
		}
		when, err := documentDate(day, file)
		if err != nil {
			return err
		}

		res, err := deps.PriceService.IngestDocument(ctx, repository.TriggerCLI, data, sourceURL, when)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var parseCmd = &cobra.Command{
	Use:   "parse FILE",
	Short: "Parse a bulletin PDF or text file and print the report as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		day, _ := cmd.Flags().GetString("date")
		sourceURL, _ := cmd.Flags().GetString("url")

		extractor, _, err := newExtractor(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		when, err := documentDate(day, args[0])
		if err != nil {
			return err
		}
		if sourceURL == "" {
			sourceURL = "file://" + filepath.Base(args[0])
		}

		report, err := extractor.Report(data, sourceURL, when)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), report)
	},
}

func init() {
	ingestCmd.Flags().String("file", "", "ingest a local PDF or text file instead of downloading")
	ingestCmd.Flags().String("url", "", "source URL recorded with --file")
	ingestCmd.Flags().String("date", "", "bulletin date (YYYY-MM-DD) recorded with --file")

	parseCmd.Flags().String("url", "", "source URL recorded in the report")
	parseCmd.Flags().String("date", "", "bulletin date (YYYY-MM-DD), defaults to the date in the file name")
}

// documentDate resolves the bulletin date from the flag, then the file name,
// then today in Manila.
func documentDate(flag, file string) (time.Time, error) {
	if flag != "" {
		d, err := parser.ParseDate(flag)
		if err != nil {
			return time.Time{}, err
		}
		return d.Time, nil
	}
	if d, ok := discovery.DateFromURL(filepath.Base(file)); ok {
		return d, nil
	}
	return time.Now().In(discovery.Manila), nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
