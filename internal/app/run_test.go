package app_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/analyticsops/pbi-push-pipeline/internal/app"
	"github.com/analyticsops/pbi-push-pipeline/internal/auth"
	"github.com/analyticsops/pbi-push-pipeline/internal/mockpbi"
	"github.com/analyticsops/pbi-push-pipeline/internal/powerbi"
)

func testCredentials() app.Credentials {
	return app.Credentials{
		TenantID:     "tenant-1",
		ClientID:     "client-1",
		ClientSecret: "secret-1",
		WorkspaceID:  "ws-1",
		ReportID:     "rep-1",
	}
}

func newPipelineEnv(t *testing.T) (*mockpbi.Server, app.Config) {
	t.Helper()
	mock := mockpbi.New("mock-token")
	ts := httptest.NewServer(mock.Handler())
	t.Cleanup(ts.Close)

	cfg := app.Config{
		Credentials:     testCredentials(),
		AuthorityBase:   ts.URL,
		APIBaseURL:      ts.URL + "/v1.0/myorg",
		ProvisionSettle: -1, // no blind wait in tests
		LogWriter:       io.Discard,
	}
	return mock, cfg
}

func writeDataDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"Sales.csv":     "id,amount,ts\n1,10.5,2024-01-15T10:30:00Z\n2,20.25,\n",
		"Customers.csv": "name,active\nalice,true\nbob,false\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	return dir
}

func TestRun_EndToEnd(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)
	cfg.DatasetName = "TestDataset"
	cfg.ReportName = "TestReport"

	res, err := app.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != app.StateCloned {
		t.Fatalf("state = %s, want %s", res.State, app.StateCloned)
	}
	if res.DatasetID != "mock-dataset-1" {
		t.Fatalf("dataset id = %q", res.DatasetID)
	}
	if len(res.FailedTables) != 0 {
		t.Fatalf("unexpected failed tables: %#v", res.FailedTables)
	}
	if res.Report == nil || res.Report.Name != "TestReport" {
		t.Fatalf("unexpected report: %#v", res.Report)
	}

	// Exact call sequence: token, dataset create, one rows push per table in
	// listing order, then the clone.
	calls := mock.Calls()
	wantPaths := []string{
		"/tenant-1/oauth2/token",
		"/v1.0/myorg/groups/ws-1/datasets",
		"/v1.0/myorg/groups/ws-1/datasets/mock-dataset-1/tables/Customers/rows",
		"/v1.0/myorg/groups/ws-1/datasets/mock-dataset-1/tables/Sales/rows",
		"/v1.0/myorg/groups/ws-1/reports/rep-1/Clone",
	}
	if len(calls) != len(wantPaths) {
		t.Fatalf("expected %d calls, got %d: %#v", len(wantPaths), len(calls), calls)
	}
	for i, want := range wantPaths {
		if calls[i].Path != want {
			t.Fatalf("call[%d] = %q, want %q (all=%#v)", i, calls[i].Path, want, calls)
		}
	}

	datasets := mock.Datasets()
	if len(datasets) != 1 {
		t.Fatalf("expected 1 dataset, got %#v", datasets)
	}
	if datasets[0].Name != "TestDataset" || datasets[0].DefaultMode != "Push" {
		t.Fatalf("unexpected dataset: %#v", datasets[0])
	}
	if len(datasets[0].Tables) != 2 {
		t.Fatalf("expected 2 table schemas, got %d", len(datasets[0].Tables))
	}

	pushes := mock.Pushes()
	if len(pushes) != 2 {
		t.Fatalf("expected 2 pushes, got %#v", pushes)
	}
	if pushes[0].Table != "Customers" || pushes[1].Table != "Sales" {
		t.Fatalf("push order: %q then %q", pushes[0].Table, pushes[1].Table)
	}
	if len(pushes[1].Rows) != 2 {
		t.Fatalf("Sales rows = %#v", pushes[1].Rows)
	}
	// Empty datetime cell must arrive as an explicit null.
	if v, present := pushes[1].Rows[1]["ts"]; !present || v != nil {
		t.Fatalf("null ts not preserved: %#v", pushes[1].Rows[1])
	}

	clones := mock.Clones()
	if len(clones) != 1 || clones[0].TargetModelID != "mock-dataset-1" || clones[0].ReportID != "rep-1" {
		t.Fatalf("unexpected clones: %#v", clones)
	}
}

func TestRun_AuthFailureAbortsBeforeAnythingElse(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)
	mock.FailToken(http.StatusUnauthorized)

	res, err := app.Run(context.Background(), cfg)
	if res.State != app.StateAborted {
		t.Fatalf("state = %s, want %s", res.State, app.StateAborted)
	}
	var authErr *auth.AuthError
	if !errors.As(err, &authErr) || authErr.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 *AuthError, got %v", err)
	}
	if calls := mock.Calls(); len(calls) != 1 || !strings.HasSuffix(calls[0].Path, "/oauth2/token") {
		t.Fatalf("expected only the token call, got %#v", calls)
	}
}

func TestRun_EmptyDirectoryAbortsWithoutAPICalls(t *testing.T) {
	for _, tc := range []struct {
		name string
		dir  func(t *testing.T) string
	}{
		{name: "missing", dir: func(t *testing.T) string { return filepath.Join(t.TempDir(), "absent") }},
		{name: "empty", dir: func(t *testing.T) string { return t.TempDir() }},
	} {
		t.Run(tc.name, func(t *testing.T) {
			mock, cfg := newPipelineEnv(t)
			cfg.DataDir = tc.dir(t)

			res, err := app.Run(context.Background(), cfg)
			if res.State != app.StateAborted {
				t.Fatalf("state = %s, want %s", res.State, app.StateAborted)
			}
			if err == nil || !strings.Contains(err.Error(), "no tabular files") {
				t.Fatalf("unexpected error: %v", err)
			}
			// Only the token exchange happened; the dataset API was never touched.
			for _, c := range mock.Calls() {
				if strings.HasPrefix(c.Path, "/v1.0/") {
					t.Fatalf("unexpected API call: %#v", c)
				}
			}
		})
	}
}

func TestRun_ProvisionFailureStopsUploadsAndClone(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)
	mock.FailDatasetCreate(http.StatusForbidden)

	res, err := app.Run(context.Background(), cfg)
	if res.State != app.StateAborted {
		t.Fatalf("state = %s, want %s", res.State, app.StateAborted)
	}
	var apiErr *powerbi.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 *APIError, got %v", err)
	}
	if len(mock.Pushes()) != 0 || len(mock.Clones()) != 0 {
		t.Fatalf("uploads/clone attempted after failed provisioning: %#v / %#v", mock.Pushes(), mock.Clones())
	}
}

func TestRun_UploadFailureContinuesToNextTableAndClone(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)
	mock.FailRows("Customers", http.StatusTooManyRequests)

	res, err := app.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != app.StateCloned {
		t.Fatalf("state = %s, want %s", res.State, app.StateCloned)
	}
	if len(res.FailedTables) != 1 || res.FailedTables[0] != "Customers" {
		t.Fatalf("failed tables = %#v", res.FailedTables)
	}

	// Sales (after Customers in listing order) was still pushed, and the
	// clone was still attempted.
	pushes := mock.Pushes()
	if len(pushes) != 1 || pushes[0].Table != "Sales" {
		t.Fatalf("unexpected pushes: %#v", pushes)
	}
	if len(mock.Clones()) != 1 {
		t.Fatalf("clone not attempted: %#v", mock.Clones())
	}
}

func TestRun_CloneFailureIsRecordedNotFatal(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)
	mock.FailClone(http.StatusNotFound)

	res, err := app.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.State != app.StateProvisioned {
		t.Fatalf("state = %s, want %s", res.State, app.StateProvisioned)
	}
	var cloneErr *powerbi.CloneError
	if !errors.As(res.CloneErr, &cloneErr) {
		t.Fatalf("expected *CloneError, got %v", res.CloneErr)
	}
	// Uploads were not rolled back.
	if len(mock.Pushes()) != 2 {
		t.Fatalf("expected 2 pushes, got %#v", mock.Pushes())
	}
}

func TestRun_GeneratedNames(t *testing.T) {
	mock, cfg := newPipelineEnv(t)
	cfg.DataDir = writeDataDir(t)

	res, err := app.Run(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.HasPrefix(res.DatasetName, "Dataset_") {
		t.Fatalf("dataset name = %q", res.DatasetName)
	}
	if !strings.HasPrefix(res.ReportName, "Report_") {
		t.Fatalf("report name = %q", res.ReportName)
	}
	if got := mock.Datasets()[0].Name; got != res.DatasetName {
		t.Fatalf("created dataset name %q != %q", got, res.DatasetName)
	}
}
