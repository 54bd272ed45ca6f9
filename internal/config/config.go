// Package config defines Valet's typed, validated-at-startup settings
// model. The layout (nested section structs decoded from a single JSON5
// file, then overlaid with environment variables for secrets) is grounded
// on github.com/nextlevelbuilder/goclaw's internal/config package.
package config

import "fmt"

// Config is the root, immutable-after-load settings object (spec.md §3).
// Every field is read once at startup; nothing mutates at runtime.
type Config struct {
	Root   RootConfig   `json:"root"`
	Server ServerConfig `json:"server"`
	Auth   AuthConfig   `json:"auth"`
	Limits LimitsConfig `json:"limits"`
	Exec   ExecConfig   `json:"exec"`
	Tunnel TunnelConfig `json:"tunnel,omitempty"`
}

// RootConfig names the single directory outside which no file operation
// may reach.
type RootConfig struct {
	Dir string `json:"dir"`
}

// ServerConfig is the loopback address and URL prefix tools are served under.
type ServerConfig struct {
	BindAddr string `json:"bind_addr"`
	Port     int    `json:"port"`
	BasePath string `json:"base_path"`
}

// AuthConfig carries the bearer token (URL-path secret) and Origin allow-list.
type AuthConfig struct {
	// BearerToken is normally supplied via the VALET_BEARER_TOKEN env var
	// (see Load) rather than committed to the config file.
	BearerToken    string   `json:"bearer_token,omitempty"`
	AllowedOrigins []string `json:"allowed_origins"`
}

// LimitsConfig bounds request/response sizes and rate.
type LimitsConfig struct {
	MaxRequestKB  int `json:"max_request_kb"`
	MaxStdoutKB   int `json:"max_stdout_kb"`
	RateCapacity  int `json:"rate_capacity"`
	RateRefillPS  int `json:"rate_refill_per_sec"`
	GlobalCap     int `json:"global_rate_capacity"`
	GlobalRefillS int `json:"global_rate_refill_per_sec"`
}

// ExecConfig names the allow-listed commands, the environment variables
// forwarded to children, and the default wall-clock timeout.
type ExecConfig struct {
	TimeoutS    int      `json:"timeout_s"`
	AllowedCmds []string `json:"allowed_cmds"`
	PassEnv     []string `json:"pass_env"`
}

// TunnelConfig is informational only (see SPEC_FULL.md §1.2): Valet never
// dials out, it only records the externally-reachable hostname its operator
// is publishing it under via an external tunnel, for the readiness line. It
// is not written to the audit log. Mirrors the shape of goclaw's TailscaleConfig.Hostname, minus
// everything tsnet-specific.
type TunnelConfig struct {
	Hostname string `json:"hostname,omitempty"`
}

// Default returns a Config with the same sense of "sensible defaults" the
// teacher's config.Default() provides — callers still must supply root.dir,
// auth.allowed_origins, and exec.allowed_cmds, which have no safe default.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			BindAddr: "127.0.0.1",
			Port:     8787,
			BasePath: "/mcp",
		},
		Limits: LimitsConfig{
			MaxRequestKB:  256,
			MaxStdoutKB:   1024,
			RateCapacity:  5,
			RateRefillPS:  1,
			GlobalCap:     20,
			GlobalRefillS: 5,
		},
		Exec: ExecConfig{
			TimeoutS: 30,
		},
	}
}

// Validate checks every invariant spec.md §3/§4.A requires before the
// readiness line may be emitted. It fails loudly and exactly once per
// problem encountered, returning the first.
func (c *Config) Validate() error {
	if c.Root.Dir == "" {
		return fmt.Errorf("root.dir is required")
	}
	if c.Server.BindAddr == "" {
		return fmt.Errorf("server.bind_addr is required")
	}
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be positive")
	}
	if c.Server.BasePath == "" || c.Server.BasePath[0] != '/' {
		return fmt.Errorf("server.base_path must be a non-empty path starting with /")
	}
	if c.Auth.BearerToken == "" {
		return fmt.Errorf("auth.bearer_token is required (set in config or VALET_BEARER_TOKEN)")
	}
	if len(c.Auth.AllowedOrigins) == 0 {
		return fmt.Errorf("auth.allowed_origins must list at least one origin")
	}
	for _, o := range c.Auth.AllowedOrigins {
		if o == "" {
			return fmt.Errorf("auth.allowed_origins entries must not be empty")
		}
	}
	if c.Limits.MaxRequestKB <= 0 {
		return fmt.Errorf("limits.max_request_kb must be positive")
	}
	if c.Limits.MaxStdoutKB <= 0 {
		return fmt.Errorf("limits.max_stdout_kb must be positive")
	}
	if c.Limits.RateCapacity <= 0 || c.Limits.RateRefillPS <= 0 {
		return fmt.Errorf("limits.rate_capacity and limits.rate_refill_per_sec must be positive")
	}
	if c.Limits.GlobalCap <= 0 || c.Limits.GlobalRefillS <= 0 {
		return fmt.Errorf("limits.global_rate_capacity and limits.global_rate_refill_per_sec must be positive")
	}
	if c.Exec.TimeoutS <= 0 {
		return fmt.Errorf("exec.timeout_s must be positive")
	}
	if len(c.Exec.AllowedCmds) == 0 {
		return fmt.Errorf("exec.allowed_cmds must list at least one command")
	}
	return nil
}
