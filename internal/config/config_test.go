package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workflow.RevisionCap != 2 {
		t.Errorf("Expected default revision cap 2, got %d", cfg.Workflow.RevisionCap)
	}
	if cfg.Workflow.FeedbackPolicy != FeedbackPolicyKeepStatus {
		t.Errorf("Expected default feedback policy %q, got %q", FeedbackPolicyKeepStatus, cfg.Workflow.FeedbackPolicy)
	}
	if cfg.Workflow.OperationTimeout != 10*time.Second {
		t.Errorf("Expected 10s operation timeout, got %v", cfg.Workflow.OperationTimeout)
	}
	if cfg.Email.Provider != "log" {
		t.Errorf("Expected log email provider, got %q", cfg.Email.Provider)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WORKFLOW_REVISION_CAP", "5")
	t.Setenv("WORKFLOW_FEEDBACK_POLICY", FeedbackPolicyRequestRevision)
	t.Setenv("OPERATION_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Workflow.RevisionCap != 5 {
		t.Errorf("Expected revision cap 5, got %d", cfg.Workflow.RevisionCap)
	}
	if cfg.Workflow.FeedbackPolicy != FeedbackPolicyRequestRevision {
		t.Errorf("Expected request-revision policy, got %q", cfg.Workflow.FeedbackPolicy)
	}
	if cfg.Workflow.OperationTimeout != 3*time.Second {
		t.Errorf("Expected 3s timeout, got %v", cfg.Workflow.OperationTimeout)
	}
	if len(cfg.Server.CorsAllowedOrigins) != 2 || cfg.Server.CorsAllowedOrigins[1] != "https://b.example" {
		t.Errorf("Unexpected CORS origins: %v", cfg.Server.CorsAllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Host: "localhost", Name: "db"},
			Auth:     AuthConfig{JWTSecret: "s"},
			Workflow: WorkflowConfig{RevisionCap: 2, FeedbackPolicy: FeedbackPolicyKeepStatus, OperationTimeout: time.Second, ExportTimeout: time.Minute},
			Email:    EmailConfig{Provider: "log", PollInterval: time.Second, MaxAttempts: 5},
			Storage:  StorageConfig{LocalPath: "/tmp"},
		}
	}

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"missing jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
		{"negative revision cap", func(c *Config) { c.Workflow.RevisionCap = -1 }, true},
		{"unknown feedback policy", func(c *Config) { c.Workflow.FeedbackPolicy = "maybe" }, true},
		{"zero timeout", func(c *Config) { c.Workflow.OperationTimeout = 0 }, true},
		{"zero export timeout", func(c *Config) { c.Workflow.ExportTimeout = 0 }, true},
		{"negative conflict retries", func(c *Config) { c.Workflow.ConflictRetries = -1 }, true},
		{"no conflict retries", func(c *Config) { c.Workflow.ConflictRetries = 0 }, false},
		{"zero email poll interval", func(c *Config) { c.Email.PollInterval = 0 }, true},
		{"negative email poll interval", func(c *Config) { c.Email.PollInterval = -time.Second }, true},
		{"zero email attempts", func(c *Config) { c.Email.MaxAttempts = 0 }, true},
		{"brevo without key", func(c *Config) { c.Email.Provider = "brevo" }, true},
		{"unknown email provider", func(c *Config) { c.Email.Provider = "pigeon" }, true},
		{"no storage", func(c *Config) { c.Storage.LocalPath = "" }, true},
		{"bucket only", func(c *Config) { c.Storage.LocalPath = ""; c.Storage.Bucket = "media" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
