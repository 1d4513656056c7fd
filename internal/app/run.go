// Package app sequences the push pipeline: authenticate, load tables, derive
// schemas, provision the dataset, push rows, clone the report.
package app

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/analyticsops/pbi-push-pipeline/internal/auth"
	"github.com/analyticsops/pbi-push-pipeline/internal/powerbi"
	"github.com/analyticsops/pbi-push-pipeline/internal/tabular"
	"github.com/analyticsops/pbi-push-pipeline/internal/util"
)

// State is the orchestrator's position in the pipeline.
type State string

const (
	StateInit          State = "Init"
	StateAuthenticated State = "Authenticated"
	StateLoaded        State = "Loaded"
	StateSchemaBuilt   State = "SchemaBuilt"
	StateProvisioned   State = "Provisioned"
	StateCloned        State = "Cloned"
	StateAborted       State = "Aborted"
)

// Config is everything one run needs. Credentials are mandatory; zero values
// elsewhere fall back to defaults.
type Config struct {
	Credentials Credentials

	// DataDir is the directory scanned for tabular files.
	DataDir string

	// DatasetName and ReportName override the generated timestamped names.
	DatasetName string
	ReportName  string

	// APIBaseURL and AuthorityBase override the remote endpoints (mocks).
	APIBaseURL    string
	AuthorityBase string

	// ProvisionSettle is the blind wait between dataset creation and the
	// first upload, absorbing asynchronous provisioning. Not a readiness
	// poll. Negative disables; zero uses the 5s default.
	ProvisionSettle time.Duration

	// RateLimitRPS and BatchSize tune row pushes; zero uses client defaults.
	RateLimitRPS float64
	BatchSize    int

	// LogWriter receives progress lines. nil uses os.Stdout.
	LogWriter io.Writer
}

// Result records where a run ended and what it created. Tests and callers
// assert on State rather than on printed output.
type Result struct {
	State        State
	DatasetID    string
	DatasetName  string
	ReportName   string
	Tables       []string
	FailedTables []string
	Report       *powerbi.Report

	// CloneErr is set when the final clone attempt failed. The run still
	// counts as completed: dataset creation and uploads are not rolled back.
	CloneErr error
}

// Run executes the pipeline once. It returns a non-nil Result in every case;
// the error is non-nil only for aborting failures (auth, empty load, dataset
// provisioning), mirroring the state machine's terminal states.
func Run(ctx context.Context, cfg Config) (*Result, error) {
	w := cfg.LogWriter
	if w == nil {
		w = os.Stdout
	}
	logger := log.New(w, "", log.LstdFlags)
	runID := uuid.NewString()
	logf := func(format string, args ...any) {
		prefix := make([]any, 0, len(args)+1)
		prefix = append(prefix, runID)
		prefix = append(prefix, args...)
		logger.Printf("run=%s "+format, prefix...)
	}

	res := &Result{State: StateInit}

	stamp := time.Now().Format("20060102_150405")
	res.DatasetName = cfg.DatasetName
	if res.DatasetName == "" {
		res.DatasetName = "Dataset_" + stamp
	}
	res.ReportName = cfg.ReportName
	if res.ReportName == "" {
		res.ReportName = "Report_" + stamp
	}

	// Token acquisition precedes loading, so an auth failure means no file
	// is read and no later step runs.
	token, err := auth.Acquire(ctx, auth.Config{
		TenantID:      cfg.Credentials.TenantID,
		ClientID:      cfg.Credentials.ClientID,
		ClientSecret:  cfg.Credentials.ClientSecret,
		AuthorityBase: cfg.AuthorityBase,
	})
	if err != nil {
		res.State = StateAborted
		return res, fmt.Errorf("acquire token: %w", err)
	}
	res.State = StateAuthenticated
	logf("token acquired for tenant %s", cfg.Credentials.TenantID)

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = DefaultConfig().DataDir
	}
	logf("loading tabular files from %s", dataDir)
	tables, order := tabular.LoadTables(dataDir, logf)
	if len(order) == 0 {
		res.State = StateAborted
		return res, fmt.Errorf("no tabular files loaded from %s", dataDir)
	}
	res.State = StateLoaded
	res.Tables = order
	logf("loaded %d table(s): %v", len(order), order)

	schemas := make([]powerbi.TableSchema, 0, len(order))
	for _, name := range order {
		schemas = append(schemas, powerbi.SchemaFor(tables[name]))
	}
	res.State = StateSchemaBuilt

	client, err := powerbi.NewClient(cfg.Credentials.WorkspaceID, token, powerbi.Options{
		BaseURL:      cfg.APIBaseURL,
		RateLimitRPS: cfg.RateLimitRPS,
		BatchSize:    cfg.BatchSize,
	})
	if err != nil {
		res.State = StateAborted
		return res, fmt.Errorf("configure client: %w", err)
	}

	logf("creating dataset %q with %d table(s)", res.DatasetName, len(schemas))
	datasetID, err := client.CreateDataset(ctx, res.DatasetName, schemas)
	if err != nil {
		res.State = StateAborted
		return res, fmt.Errorf("provision dataset: %w", err)
	}
	res.State = StateProvisioned
	res.DatasetID = datasetID
	logf("dataset created: id=%s", datasetID)

	settle := cfg.ProvisionSettle
	if settle == 0 {
		settle = DefaultConfig().ProvisionSettle
	}
	if settle > 0 {
		logf("waiting %s for dataset to settle", settle)
		select {
		case <-time.After(settle):
		case <-ctx.Done():
			res.State = StateAborted
			return res, ctx.Err()
		}
	}

	for _, name := range order {
		logf("uploading %d row(s) to table %s", len(tables[name].Rows), name)
		if err := client.PushRows(ctx, datasetID, name, powerbi.Rows(tables[name])); err != nil {
			logf("upload to table %s failed: %s", name, util.RedactSecrets(err.Error()))
			res.FailedTables = append(res.FailedTables, name)
			continue
		}
		logf("table %s uploaded", name)
	}

	logf("cloning report %s as %q onto dataset %s", cfg.Credentials.ReportID, res.ReportName, datasetID)
	report, err := client.CloneReport(ctx, cfg.Credentials.ReportID, res.ReportName, datasetID)
	if err != nil {
		res.CloneErr = err
		logf("clone failed: %s", util.RedactSecrets(err.Error()))
		return res, nil
	}
	res.State = StateCloned
	res.Report = report
	logf("report cloned: id=%s name=%q", report.ID, report.Name)
	return res, nil
}
