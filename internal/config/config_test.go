package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/coldcall/coldcall/internal/config"
)

func validConfig() config.Config {
	return config.Config{
		TargetURL:  "http://localhost:8545",
		Transport:  config.TransportHTTP,
		Datasets:   []string{config.DatasetBlocks},
		StartBlock: 0,
		EndBlock:   100,
		ChunkSize:  10,
		Workers:    4,
		Timeout:    30 * time.Second,
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantMsg string
	}{
		{
			name:    "missing target",
			mutate:  func(c *config.Config) { c.TargetURL = "  " },
			wantMsg: "target is required",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *config.Config) { c.Transport = "carrier-pigeon" },
			wantMsg: "unknown transport",
		},
		{
			name:    "no datasets",
			mutate:  func(c *config.Config) { c.Datasets = nil },
			wantMsg: "at least one dataset",
		},
		{
			name:    "unknown dataset",
			mutate:  func(c *config.Config) { c.Datasets = []string{"uncles"} },
			wantMsg: "unknown dataset",
		},
		{
			name: "inverted block range",
			mutate: func(c *config.Config) {
				c.StartBlock = 50
				c.EndBlock = 10
			},
			wantMsg: "before start block",
		},
		{
			name:    "zero workers",
			mutate:  func(c *config.Config) { c.Workers = 0 },
			wantMsg: "workers must be >= 1",
		},
		{
			name:    "negative rate",
			mutate:  func(c *config.Config) { c.Rate = -1 },
			wantMsg: "rate must be >= 0",
		},
		{
			name: "dashboard with json output",
			mutate: func(c *config.Config) {
				c.Dashboard = true
				c.JSONOutput = true
			},
			wantMsg: "mutually exclusive",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() should have failed")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() error = %q, want it to contain %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidationErrorCollectsAllIssues(t *testing.T) {
	cfg := validConfig()
	cfg.TargetURL = ""
	cfg.Workers = 0
	cfg.Rate = -5

	err := cfg.Validate()
	var verr config.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %T", err)
	}
	if len(verr.Issues()) != 3 {
		t.Errorf("expected 3 issues, got %d: %v", len(verr.Issues()), verr.Issues())
	}
}

func TestTracingConfigShouldPropagate(t *testing.T) {
	enabled := config.TracingConfig{Endpoint: "localhost:4317"}
	if !enabled.ShouldPropagate() {
		t.Error("expected propagation to follow Enabled by default")
	}

	off := false
	overridden := config.TracingConfig{Endpoint: "localhost:4317", Propagate: &off}
	if overridden.ShouldPropagate() {
		t.Error("explicit propagate=false must win over Enabled")
	}
}
