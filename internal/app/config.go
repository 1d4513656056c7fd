package app

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credentials are the service-principal and target identifiers for one run.
// They are loaded once at startup and passed explicitly; components never read
// them from process globals.
type Credentials struct {
	TenantID     string
	ClientID     string
	ClientSecret string
	WorkspaceID  string
	ReportID     string
}

// LoadCredentials reads the required identifiers from the environment.
func LoadCredentials() (Credentials, error) {
	creds := Credentials{}
	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"PBI_TENANT_ID", &creds.TenantID},
		{"PBI_CLIENT_ID", &creds.ClientID},
		{"PBI_CLIENT_SECRET", &creds.ClientSecret},
		{"PBI_WORKSPACE_ID", &creds.WorkspaceID},
		{"PBI_REPORT_ID", &creds.ReportID},
	} {
		val := strings.TrimSpace(os.Getenv(v.name))
		if val == "" {
			return Credentials{}, fmt.Errorf("%s is required", v.name)
		}
		*v.dst = val
	}
	return creds, nil
}

// Defaults are the tunable pipeline settings with their built-in values,
// optionally overridden by a YAML config file.
type Defaults struct {
	DataDir         string
	APIBaseURL      string
	ProvisionSettle time.Duration
	RateLimitRPS    float64
	BatchSize       int
}

// DefaultConfig returns the built-in settings: read ./Data, talk to the public
// API, and wait 5s after provisioning before the first upload.
func DefaultConfig() Defaults {
	return Defaults{
		DataDir:         "Data",
		APIBaseURL:      "",
		ProvisionSettle: 5 * time.Second,
		RateLimitRPS:    0,
		BatchSize:       0,
	}
}

// fileConfig mirrors the optional YAML pipeline config file.
type fileConfig struct {
	DataDir         string  `yaml:"dataDir"`
	APIBaseURL      string  `yaml:"apiBaseURL"`
	ProvisionSettle string  `yaml:"provisionSettle"`
	RateLimitRPS    float64 `yaml:"rateLimitRPS"`
	BatchSize       int     `yaml:"batchSize"`
}

// LoadDefaults returns the built-in settings, overlaid with the YAML file
// named by PBI_PIPELINE_CONFIG when that variable is set.
func LoadDefaults() (Defaults, error) {
	d := DefaultConfig()
	path := strings.TrimSpace(os.Getenv("PBI_PIPELINE_CONFIG"))
	if path == "" {
		return d, nil
	}
	if err := applyConfigFile(&d, path); err != nil {
		return Defaults{}, err
	}
	return d, nil
}

func applyConfigFile(d *Defaults, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read pipeline config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parse pipeline config YAML: %w", err)
	}

	if strings.TrimSpace(fc.DataDir) != "" {
		d.DataDir = strings.TrimSpace(fc.DataDir)
	}
	if strings.TrimSpace(fc.APIBaseURL) != "" {
		d.APIBaseURL = strings.TrimSpace(fc.APIBaseURL)
	}
	if strings.TrimSpace(fc.ProvisionSettle) != "" {
		settle, err := time.ParseDuration(strings.TrimSpace(fc.ProvisionSettle))
		if err != nil {
			return fmt.Errorf("pipeline config: invalid provisionSettle %q: %w", fc.ProvisionSettle, err)
		}
		d.ProvisionSettle = settle
	}
	if fc.RateLimitRPS > 0 {
		d.RateLimitRPS = fc.RateLimitRPS
	}
	if fc.BatchSize > 0 {
		d.BatchSize = fc.BatchSize
	}
	return nil
}
