// Package auth acquires Azure AD bearer tokens for the Power BI API via the
// OAuth2 client-credentials flow.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/analyticsops/pbi-push-pipeline/internal/util"
)

const (
	// DefaultAuthorityBase is the Azure AD token authority.
	DefaultAuthorityBase = "https://login.microsoftonline.com"

	// DefaultResource is the audience for Power BI API tokens.
	DefaultResource = "https://analysis.windows.net/powerbi/api"
)

// Config identifies the service principal to exchange for a token.
type Config struct {
	TenantID     string
	ClientID     string
	ClientSecret string

	// AuthorityBase overrides the token authority (local mock). Empty uses
	// DefaultAuthorityBase.
	AuthorityBase string

	// Resource overrides the token audience. Empty uses DefaultResource.
	Resource string
}

// AuthError reports a rejected token request. Rejection is fatal for a run:
// there is no retry and no fallback.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	if e == nil {
		return "token request rejected"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("token request rejected: status=%d", e.StatusCode)
	}
	return fmt.Sprintf("token request rejected: status=%d body=%s", e.StatusCode, e.Body)
}

// Acquire exchanges client credentials for a bearer token. The token is used
// for the whole run; expiry is not tracked and the token is never persisted.
func Acquire(ctx context.Context, cfg Config) (string, error) {
	if strings.TrimSpace(cfg.TenantID) == "" {
		return "", fmt.Errorf("tenant id is required")
	}
	if strings.TrimSpace(cfg.ClientID) == "" {
		return "", fmt.Errorf("client id is required")
	}
	if strings.TrimSpace(cfg.ClientSecret) == "" {
		return "", fmt.Errorf("client secret is required")
	}

	authority := strings.TrimRight(strings.TrimSpace(cfg.AuthorityBase), "/")
	if authority == "" {
		authority = DefaultAuthorityBase
	}
	resource := strings.TrimSpace(cfg.Resource)
	if resource == "" {
		resource = DefaultResource
	}

	conf := &clientcredentials.Config{
		ClientID:     strings.TrimSpace(cfg.ClientID),
		ClientSecret: strings.TrimSpace(cfg.ClientSecret),
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/token", authority, url.PathEscape(strings.TrimSpace(cfg.TenantID))),
		EndpointParams: url.Values{
			"resource": {resource},
		},
		// The v1 token endpoint expects client credentials in the form body.
		AuthStyle: oauth2.AuthStyleInParams,
	}

	tok, err := conf.Token(ctx)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) && rerr.Response != nil {
			return "", &AuthError{
				StatusCode: rerr.Response.StatusCode,
				Body:       util.RedactSecrets(truncate(string(rerr.Body), 256)),
			}
		}
		return "", fmt.Errorf("request token: %w", err)
	}
	if strings.TrimSpace(tok.AccessToken) == "" {
		return "", fmt.Errorf("token response missing access_token")
	}
	return tok.AccessToken, nil
}

func truncate(s string, max int) string {
	s = strings.TrimSpace(s)
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
