package config

import "testing"

func validConfig() *Config {
	cfg := Default()
	cfg.Root.Dir = "/tmp"
	cfg.Auth.BearerToken = "secret"
	cfg.Auth.AllowedOrigins = []string{"https://example.test"}
	cfg.Exec.AllowedCmds = []string{"echo"}
	return cfg
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	if err := validConfig().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_RejectsMissingRootDir(t *testing.T) {
	cfg := validConfig()
	cfg.Root.Dir = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing root.dir")
	}
}

func TestValidate_RejectsEmptyAllowedOrigins(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.AllowedOrigins = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty allowed_origins")
	}
}

func TestValidate_RejectsEmptyAllowedCmds(t *testing.T) {
	cfg := validConfig()
	cfg.Exec.AllowedCmds = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for empty allowed_cmds")
	}
}

func TestValidate_RejectsNonPositiveLimits(t *testing.T) {
	cfg := validConfig()
	cfg.Limits.MaxRequestKB = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for non-positive max_request_kb")
	}
}
