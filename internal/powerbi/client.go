// Package powerbi implements the Power BI REST API surface used by the
// push pipeline: dataset creation, row pushes, and report cloning.
package powerbi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/time/rate"
)

// DefaultBaseURL is the Power BI REST API base for the caller's organization.
const DefaultBaseURL = "https://api.powerbi.com/v1.0/myorg"

// DefaultBatchSize is the push API's documented per-request row cap.
const DefaultBatchSize = 10000

// Options tunes optional client behavior. The zero value uses defaults.
type Options struct {
	// BaseURL overrides the API base (local mock, sovereign clouds).
	BaseURL string

	// RateLimitRPS limits row-push requests per second across the run.
	// The push API enforces per-minute request caps. <= 0 disables.
	RateLimitRPS float64

	// BatchSize caps rows per push request. <= 0 uses DefaultBatchSize.
	BatchSize int

	// HTTPClient overrides the transport. nil uses http.DefaultClient
	// semantics (no client-side timeout; a hung endpoint stalls the run).
	HTTPClient *http.Client
}

// Client is a minimal HTTP client for the Power BI endpoints used by this
// pipeline. All calls are synchronous and attempted exactly once.
type Client struct {
	baseURL     *url.URL
	workspaceID string
	token       string
	http        *http.Client
	limiter     *rate.Limiter
	batchSize   int
}

// NewClient constructs a client scoped to one workspace, authenticating every
// request with the given bearer token.
func NewClient(workspaceID, token string, opts Options) (*Client, error) {
	if strings.TrimSpace(workspaceID) == "" {
		return nil, fmt.Errorf("workspace id is required")
	}
	raw := strings.TrimSpace(opts.BaseURL)
	if raw == "" {
		raw = DefaultBaseURL
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse API base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("API base URL must include a host (got %q)", opts.BaseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/")

	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), 1)
	}
	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	return &Client{
		baseURL:     u,
		workspaceID: strings.TrimSpace(workspaceID),
		token:       strings.TrimSpace(token),
		http:        hc,
		limiter:     limiter,
		batchSize:   batchSize,
	}, nil
}

// BatchSize reports the effective rows-per-request cap.
func (c *Client) BatchSize() int {
	return c.batchSize
}

type createDatasetRequest struct {
	Name        string        `json:"name"`
	DefaultMode string        `json:"defaultMode"`
	Tables      []TableSchema `json:"tables"`
}

type createDatasetResponse struct {
	ID string `json:"id"`
}

// CreateDataset creates a push-mode dataset holding all given table schemas
// and returns its identifier. The service answers 201 when provisioning is
// synchronous and 202 when it is queued; both count as success.
func (c *Client) CreateDataset(ctx context.Context, name string, tables []TableSchema) (string, error) {
	body := createDatasetRequest{
		Name:        name,
		DefaultMode: "Push",
		Tables:      tables,
	}

	u := c.resolve("groups", c.workspaceID, "datasets")
	resp, rb, err := c.postJSON(ctx, u, body)
	if err != nil {
		return "", fmt.Errorf("create dataset: %w", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return "", newAPIError("createDataset", resp, rb)
	}

	var out createDatasetResponse
	if err := json.Unmarshal(rb, &out); err != nil {
		return "", fmt.Errorf("parse create dataset response: %w", err)
	}
	if strings.TrimSpace(out.ID) == "" {
		return "", fmt.Errorf("create dataset response missing id")
	}
	return strings.TrimSpace(out.ID), nil
}

type pushRowsRequest struct {
	Rows []map[string]any `json:"rows"`
}

// PushRows pushes all rows into one table of the dataset, splitting them into
// requests of at most BatchSize rows. Any failed request fails the whole
// table; there is no per-row retry.
func (c *Client) PushRows(ctx context.Context, datasetID, tableName string, rows []map[string]any) error {
	u := c.resolve("groups", c.workspaceID, "datasets", datasetID, "tables", tableName, "rows")

	for _, batch := range chunkRows(rows, c.batchSize) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return fmt.Errorf("push rows to %s: %w", tableName, err)
			}
		}
		resp, rb, err := c.postJSON(ctx, u, pushRowsRequest{Rows: batch})
		if err != nil {
			return fmt.Errorf("push rows to %s: %w", tableName, err)
		}
		if resp.StatusCode != http.StatusOK {
			return newAPIError("pushRows", resp, rb)
		}
	}
	return nil
}

type cloneReportRequest struct {
	Name              string `json:"name"`
	TargetModelID     string `json:"targetModelId"`
	TargetWorkspaceID string `json:"targetWorkspaceId"`
}

// Report is the metadata of a cloned report.
type Report struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	DatasetID string `json:"datasetId"`
	WebURL    string `json:"webUrl"`
	EmbedURL  string `json:"embedUrl"`
}

// CloneReport duplicates the given report inside the workspace, rebinding the
// clone to targetDatasetID. Failures carry remediation hints because the
// endpoint's own errors rarely say which referenced resource is wrong.
func (c *Client) CloneReport(ctx context.Context, reportID, newName, targetDatasetID string) (*Report, error) {
	body := cloneReportRequest{
		Name:              newName,
		TargetModelID:     targetDatasetID,
		TargetWorkspaceID: c.workspaceID,
	}

	u := c.resolve("groups", c.workspaceID, "reports", reportID, "Clone")
	resp, rb, err := c.postJSON(ctx, u, body)
	if err != nil {
		return nil, fmt.Errorf("clone report: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &CloneError{
			Err:         newAPIError("cloneReport", resp, rb),
			WorkspaceID: c.workspaceID,
			ReportID:    reportID,
			DatasetID:   targetDatasetID,
		}
	}

	var out Report
	if err := json.Unmarshal(rb, &out); err != nil {
		return nil, fmt.Errorf("parse clone report response: %w", err)
	}
	return &out, nil
}

// postJSON issues one JSON POST and returns the response (body already read
// and closed) plus the body bytes. Non-2xx statuses are returned to the caller
// for classification, since the accepted statuses differ per endpoint.
func (c *Client) postJSON(ctx context.Context, u *url.URL, payload any) (*http.Response, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(b))
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	rb, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, rb, nil
}

func (c *Client) resolve(segments ...string) *url.URL {
	// JoinPath escapes each segment, so table names with spaces stay intact.
	return c.baseURL.JoinPath(segments...)
}
