package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/analyticsops/pbi-push-pipeline/internal/app"
	"github.com/analyticsops/pbi-push-pipeline/internal/util"
)

func main() {
	ctx := context.Background()

	if len(os.Args) < 2 {
		usage(os.Stderr)
		os.Exit(2)
	}

	switch os.Args[1] {
	case "help", "-h", "--help":
		usage(os.Stdout)
		return
	case "run":
		os.Exit(runPipeline(ctx, os.Args[2:]))
	default:
		_, _ = fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		usage(os.Stderr)
		os.Exit(2)
	}
}

func runPipeline(ctx context.Context, args []string) int {
	defaults, err := app.LoadDefaults()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	defaultBatch, err := envInt("PBI_BATCH_SIZE", defaults.BatchSize)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var dataDir string
	var datasetName string
	var reportName string
	var apiBaseURL string
	var settle time.Duration
	var rateLimitRPS float64
	var batchSize int

	fs.StringVar(&dataDir, "data-dir", envString("PBI_DATA_DIR", defaults.DataDir), "Directory of tabular files (.csv, .xlsx) (env: PBI_DATA_DIR)")
	fs.StringVar(&datasetName, "dataset-name", "", "Dataset name (default: Dataset_<timestamp>)")
	fs.StringVar(&reportName, "report-name", "", "Cloned report name (default: Report_<timestamp>)")
	fs.StringVar(&apiBaseURL, "api-base-url", envString("PBI_API_BASE_URL", defaults.APIBaseURL), "Power BI API base URL override (env: PBI_API_BASE_URL)")
	fs.DurationVar(&settle, "provision-settle", defaults.ProvisionSettle, "Wait between dataset creation and first upload; negative disables")
	fs.Float64Var(&rateLimitRPS, "rate-limit-rps", defaults.RateLimitRPS, "Row push request rate limit (RPS), 0 disables")
	fs.IntVar(&batchSize, "batch-size", defaultBatch, "Max rows per push request, 0 uses the API cap (env: PBI_BATCH_SIZE)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	creds, err := app.LoadCredentials()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "config error: %s\n", util.RedactSecrets(err.Error()))
		return 2
	}

	res, err := app.Run(ctx, app.Config{
		Credentials:     creds,
		DataDir:         dataDir,
		DatasetName:     datasetName,
		ReportName:      reportName,
		APIBaseURL:      apiBaseURL,
		AuthorityBase:   strings.TrimSpace(os.Getenv("PBI_AUTHORITY_BASE")),
		ProvisionSettle: settle,
		RateLimitRPS:    rateLimitRPS,
		BatchSize:       batchSize,
	})
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "run aborted (state=%s): %s\n", res.State, util.RedactSecrets(err.Error()))
		return 1
	}
	if len(res.FailedTables) > 0 {
		_, _ = fmt.Fprintf(os.Stderr, "completed with failed table upload(s): %s\n", strings.Join(res.FailedTables, ", "))
	}
	if res.CloneErr != nil {
		_, _ = fmt.Fprintf(os.Stderr, "report clone failed: %s\n", util.RedactSecrets(res.CloneErr.Error()))
	}
	return 0
}

func usage(w *os.File) {
	_, _ = fmt.Fprintf(w, `pbipush: one-shot Power BI push pipeline

Reads tabular files from a local directory, creates a push dataset whose
schemas are derived from the files, uploads all rows, and clones an existing
report onto the new dataset.

Usage:
  pbipush <command> [flags]

Commands:
  run   Execute the pipeline once
  help  Show this message

Environment (required):
  PBI_TENANT_ID      Azure AD tenant id
  PBI_CLIENT_ID      service principal client id
  PBI_CLIENT_SECRET  service principal client secret
  PBI_WORKSPACE_ID   target workspace id
  PBI_REPORT_ID      report to clone

Environment (optional):
  PBI_DATA_DIR         directory of tabular files (default Data)
  PBI_API_BASE_URL     API base URL override (mocks, sovereign clouds)
  PBI_AUTHORITY_BASE   token authority override (mocks)
  PBI_PIPELINE_CONFIG  path to a YAML config file with defaults

Exit codes:
  0  pipeline completed (clone attempted; may include failed tables)
  1  aborted before provisioning completed
  2  usage or configuration error

`)
}

func envString(varName, fallback string) string {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(varName string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(varName))
	if v == "" {
		return fallback, nil
	}
	out, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", varName, v, err)
	}
	return out, nil
}
