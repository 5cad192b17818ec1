package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

func main() {
	dataDir := flag.String("data", "./data", "content data directory")
	start := flag.String("start", "scene_001", "scene a new session starts at")
	format := flag.String("format", "text", "output format: text, json, or yaml")
	flag.Parse()

	// Loader warnings go to stderr so yaml/json output stays parseable.
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	validator := NewDataValidator(*dataDir, *start, logger)
	report := validator.Validate()

	if err := writeReport(os.Stdout, report, *format); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write report: %v\n", err)
		os.Exit(2)
	}

	if len(report.Errors) > 0 {
		os.Exit(1)
	}
}

func writeReport(w io.Writer, report *Report, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "text":
		fmt.Fprintf(w, "Validating %s...\n", report.DataDir)
		fmt.Fprintf(w, "%d scenes, %d characters, %d locations, %d actions\n",
			report.Scenes, report.Characters, report.Locations, report.Actions)
		for _, issue := range report.Warnings {
			fmt.Fprintf(w, "  warning: %s\n", issue)
		}
		for _, issue := range report.Errors {
			fmt.Fprintf(w, "  - %s\n", issue)
		}
		if len(report.Errors) > 0 {
			fmt.Fprintf(w, "Validation failed with %d errors\n", len(report.Errors))
			return nil
		}
		fmt.Fprintln(w, "Content is valid!")
		return nil
	default:
		return fmt.Errorf("unknown format %q (want %s)", format, strings.Join([]string{"text", "json", "yaml"}, ", "))
	}
}
