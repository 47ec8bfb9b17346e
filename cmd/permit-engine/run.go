// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pdiddy/permit-engine/internal/notice"
	"github.com/pdiddy/permit-engine/internal/pipeline"
	"github.com/pdiddy/permit-engine/internal/report"
	"github.com/pdiddy/permit-engine/pkg/types"
)

var runCmd = &cobra.Command{
	Use:   "run [notice-file]",
	Short: "Run the resolution pipeline against an extracted Examiner's Notice",
	Long: `Run loads deficiency items from a notice file (YAML or JSON), routes each
item to its category specialist, drafts and audits a correction response per
item, and writes the result as a JSON payload and a Markdown response document.

With --stream, progress events are printed to stdout as newline-delimited
JSON while the run proceeds.`,
	Args: cobra.ExactArgs(1),
	RunE: runPipeline,
}

func runPipeline(cmd *cobra.Command, args []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	stream, _ := cmd.Flags().GetBool("stream")
	outputDir, _ := cmd.Flags().GetString("output-dir")

	logger := newLogger(verbose)
	cfg := loadConfig()

	eng, err := buildEngine(cfg, logger, nil)
	if err != nil {
		return err
	}
	defer eng.Close()

	session := types.NewSession("", "")
	n, err := notice.Load(args[0], session.ID)
	if err != nil {
		return err
	}
	session.PropertyAddress = n.PropertyAddress
	session.SuiteType = n.SuiteType

	var reporter pipeline.Reporter = pipeline.NopReporter{}
	if stream {
		reporter = pipeline.NewNDJSONReporter(os.Stdout)
	}

	logger.Info("starting pipeline run",
		"session", session.ID, "address", n.PropertyAddress,
		"suite", n.SuiteType, "items", len(n.Items))

	result, err := eng.Orchestrator.Run(cmd.Context(), session, n.Items, reporter)
	if err != nil {
		return fmt.Errorf("pipeline run: %w", err)
	}

	if err := writeReports(outputDir, result); err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Processed %d of %d item(s) (%d unhandled). Reports in %s/\n",
		result.Summary.Processed, result.Summary.Total, result.Summary.Unhandled, outputDir)
	return nil
}

// writeReports writes the JSON payload and the Markdown response document
// named by session id.
func writeReports(dir string, result types.PipelineResult) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	jsonPath := filepath.Join(dir, result.SessionID.String()+".json")
	jf, err := os.Create(jsonPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", jsonPath, err)
	}
	defer jf.Close()
	if err := report.WriteJSON(jf, result); err != nil {
		return err
	}

	mdPath := filepath.Join(dir, result.SessionID.String()+".md")
	mf, err := os.Create(mdPath)
	if err != nil {
		return fmt.Errorf("creating %s: %w", mdPath, err)
	}
	defer mf.Close()
	return report.WriteMarkdown(mf, result)
}

func init() {
	runCmd.Flags().Bool("stream", false, "print progress events to stdout as NDJSON")
	runCmd.Flags().String("output-dir", "output", "directory for the JSON and Markdown reports")
	runCmd.Flags().Bool("verbose", false, "enable debug logging")

	rootCmd.AddCommand(runCmd)
}
