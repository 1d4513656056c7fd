package powerbi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/analyticsops/pbi-push-pipeline/internal/util"
)

// errorEnvelope is the standard error shape returned by the Power BI REST API.
// Responses may include additional fields; we intentionally ignore them.
type errorEnvelope struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// APIError is a sanitized summary of a non-success Power BI API response.
//
// Important: do not include raw response bodies here (can leak PII/tokens).
type APIError struct {
	Op         string
	StatusCode int
	Status     string
	ErrorCode  string
	Message    string

	// Snippet is a redacted, truncated hint for responses without the
	// standard error envelope.
	Snippet string
}

func (e *APIError) Error() string {
	if e == nil {
		return "power bi api error"
	}
	parts := []string{
		fmt.Sprintf("power bi api error: op=%s status=%s", strings.TrimSpace(e.Op), strings.TrimSpace(e.Status)),
	}
	if strings.TrimSpace(e.ErrorCode) != "" {
		parts = append(parts, "code="+strings.TrimSpace(e.ErrorCode))
	}
	if strings.TrimSpace(e.Message) != "" {
		parts = append(parts, "message="+strings.TrimSpace(e.Message))
	}
	if strings.TrimSpace(e.Snippet) != "" {
		parts = append(parts, "body="+strings.TrimSpace(e.Snippet))
	}
	return strings.Join(parts, " ")
}

func newAPIError(op string, resp *http.Response, body []byte) *APIError {
	e := &APIError{Op: op}
	if resp != nil {
		e.StatusCode = resp.StatusCode
		e.Status = resp.Status
	}

	// Best effort: parse the Power BI error envelope.
	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil {
		e.ErrorCode = strings.TrimSpace(env.Error.Code)
		e.Message = util.RedactSecrets(env.Error.Message)
		if e.ErrorCode != "" || e.Message != "" {
			return e
		}
	}

	// Fallback: include a small, redacted hint only.
	e.Snippet = redactAndTruncate(body)
	return e
}

// CloneError wraps a failed report clone with remediation hints. The clone
// endpoint frequently answers with a bare 404 that does not say which of the
// referenced resources is missing.
type CloneError struct {
	Err         *APIError
	WorkspaceID string
	ReportID    string
	DatasetID   string
}

func (e *CloneError) Error() string {
	if e == nil {
		return "clone report failed"
	}
	return fmt.Sprintf(
		"clone report failed: %v (verify workspace %q, report %q, and dataset %q exist and are accessible, and that the token has Report.ReadWrite.All and Dataset.ReadWrite.All)",
		e.Err, e.WorkspaceID, e.ReportID, e.DatasetID,
	)
}

func (e *CloneError) Unwrap() error {
	if e == nil || e.Err == nil {
		return nil
	}
	return e.Err
}

func redactAndTruncate(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	// Keep this small: response bodies can contain sensitive data.
	const max = 256
	b := body
	if len(b) > max {
		b = b[:max]
	}
	s := util.RedactSecrets(string(b))
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if len(body) > max {
		return s + "..."
	}
	return s
}
