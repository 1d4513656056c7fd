// Package mockpbi implements a minimal "Power BI-like" API surface for tests
// and local smoke runs: the Azure AD token endpoint plus dataset creation,
// row pushes, and report cloning.
package mockpbi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// Call records a request made to the mock service.
type Call struct {
	Method string
	Path   string
}

// Dataset records a dataset created through the mock API.
type Dataset struct {
	ID          string
	Name        string
	DefaultMode string
	Tables      []json.RawMessage
}

// RowsPush records one rows POST into a dataset table.
type RowsPush struct {
	DatasetID string
	Table     string
	Rows      []map[string]any
}

// Clone records a report clone request.
type Clone struct {
	ReportID      string
	Name          string
	TargetModelID string
}

// Server implements the mock API. Failure injection is per endpoint; a zero
// status means the endpoint succeeds.
type Server struct {
	mu sync.Mutex

	token string

	calls    []Call
	datasets []Dataset
	pushes   []RowsPush
	clones   []Clone

	nextDataset int

	failTokenStatus  int
	failCreateStatus int
	failCloneStatus  int
	failRowsTables   map[string]int
}

// New constructs a mock server issuing (and requiring) the given bearer token.
func New(token string) *Server {
	return &Server{
		token:          token,
		nextDataset:    1,
		failRowsTables: make(map[string]int),
	}
}

// FailToken makes the token endpoint answer with the given status.
func (s *Server) FailToken(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failTokenStatus = status
}

// FailDatasetCreate makes dataset creation answer with the given status.
func (s *Server) FailDatasetCreate(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCreateStatus = status
}

// FailRows makes row pushes into the named table answer with the given status.
func (s *Server) FailRows(table string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRowsTables[table] = status
}

// FailClone makes report cloning answer with the given status.
func (s *Server) FailClone(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failCloneStatus = status
}

// Calls returns a snapshot of all requests seen so far.
func (s *Server) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Datasets returns a snapshot of created datasets.
func (s *Server) Datasets() []Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Dataset, len(s.datasets))
	copy(out, s.datasets)
	return out
}

// Pushes returns a snapshot of row pushes.
func (s *Server) Pushes() []RowsPush {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RowsPush, len(s.pushes))
	copy(out, s.pushes)
	return out
}

// Clones returns a snapshot of clone requests.
func (s *Server) Clones() []Clone {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Clone, len(s.clones))
	copy(out, s.clones)
	return out
}

// Handler returns an http.Handler serving the mock API. The token endpoint is
// /{tenant}/oauth2/token; API endpoints live under /v1.0/myorg/groups/.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.recordCall(r)

		if r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/oauth2/token") {
			s.handleToken(w, r)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/v1.0/myorg/groups/") {
			s.handleAPI(w, r)
			return
		}
		http.NotFound(w, r)
	})
}

func (s *Server) recordCall(r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, Call{Method: r.Method, Path: r.URL.Path})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	failStatus := s.failTokenStatus
	token := s.token
	s.mu.Unlock()

	if err := r.ParseForm(); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed form body")
		return
	}
	if r.PostForm.Get("grant_type") != "client_credentials" {
		writeError(w, http.StatusBadRequest, "UnsupportedGrantType", "expected client_credentials")
		return
	}
	if failStatus != 0 {
		writeError(w, failStatus, "InvalidClient", "client credentials rejected")
		return
	}
	if strings.TrimSpace(r.PostForm.Get("client_id")) == "" || strings.TrimSpace(r.PostForm.Get("client_secret")) == "" {
		writeError(w, http.StatusUnauthorized, "InvalidClient", "missing client credentials")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"expires_in":   "3599",
		"resource":     r.PostForm.Get("resource"),
	})
}

func (s *Server) authorize(w http.ResponseWriter, r *http.Request) bool {
	s.mu.Lock()
	expected := "Bearer " + s.token
	s.mu.Unlock()

	if r.Header.Get("Authorization") != expected {
		writeError(w, http.StatusUnauthorized, "TokenInvalid", "access token is missing or invalid")
		return false
	}
	return true
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(w, r) {
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "MethodNotAllowed", "only POST is supported")
		return
	}

	// /v1.0/myorg/groups/{ws}/datasets
	// /v1.0/myorg/groups/{ws}/datasets/{id}/tables/{table}/rows
	// /v1.0/myorg/groups/{ws}/reports/{id}/Clone
	rest := strings.TrimPrefix(r.URL.Path, "/v1.0/myorg/groups/")
	parts := strings.Split(rest, "/")
	if len(parts) < 2 {
		http.NotFound(w, r)
		return
	}

	switch {
	case len(parts) == 2 && parts[1] == "datasets":
		s.handleCreateDataset(w, r)
	case len(parts) == 6 && parts[1] == "datasets" && parts[3] == "tables" && parts[5] == "rows":
		s.handlePushRows(w, r, parts[2], parts[4])
	case len(parts) == 4 && parts[1] == "reports" && parts[3] == "Clone":
		s.handleClone(w, r, parts[2])
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleCreateDataset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string            `json:"name"`
		DefaultMode string            `json:"defaultMode"`
		Tables      []json.RawMessage `json:"tables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed dataset payload")
		return
	}

	s.mu.Lock()
	failStatus := s.failCreateStatus
	id := fmt.Sprintf("mock-dataset-%d", s.nextDataset)
	if failStatus == 0 {
		s.nextDataset++
		s.datasets = append(s.datasets, Dataset{
			ID:          id,
			Name:        req.Name,
			DefaultMode: req.DefaultMode,
			Tables:      req.Tables,
		})
	}
	s.mu.Unlock()

	if failStatus != 0 {
		writeError(w, failStatus, "PowerBIEntityLimitReached", "dataset creation rejected")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":          id,
		"name":        req.Name,
		"defaultMode": req.DefaultMode,
	})
}

func (s *Server) handlePushRows(w http.ResponseWriter, r *http.Request, datasetID, table string) {
	var req struct {
		Rows []map[string]any `json:"rows"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed rows payload")
		return
	}

	s.mu.Lock()
	failStatus := s.failRowsTables[table]
	known := false
	for _, d := range s.datasets {
		if d.ID == datasetID {
			known = true
			break
		}
	}
	if failStatus == 0 && known {
		s.pushes = append(s.pushes, RowsPush{DatasetID: datasetID, Table: table, Rows: req.Rows})
	}
	s.mu.Unlock()

	if !known {
		writeError(w, http.StatusNotFound, "ItemNotFound", "dataset not found")
		return
	}
	if failStatus != 0 {
		writeError(w, failStatus, "RequestLimitExceeded", "rows push rejected")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{})
}

func (s *Server) handleClone(w http.ResponseWriter, r *http.Request, reportID string) {
	var req struct {
		Name              string `json:"name"`
		TargetModelID     string `json:"targetModelId"`
		TargetWorkspaceID string `json:"targetWorkspaceId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed clone payload")
		return
	}

	s.mu.Lock()
	failStatus := s.failCloneStatus
	if failStatus == 0 {
		s.clones = append(s.clones, Clone{ReportID: reportID, Name: req.Name, TargetModelID: req.TargetModelID})
	}
	s.mu.Unlock()

	if failStatus != 0 {
		if failStatus == http.StatusNotFound {
			// Real clone failures are frequently bare 404s with no detail.
			http.NotFound(w, r)
			return
		}
		writeError(w, failStatus, "InvalidRequest", "clone rejected")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":        "mock-report-" + reportID,
		"name":      req.Name,
		"datasetId": req.TargetModelID,
		"webUrl":    "https://app.powerbi.invalid/reports/mock-report-" + reportID,
		"embedUrl":  "https://app.powerbi.invalid/reportEmbed?reportId=mock-report-" + reportID,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
