package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// sectionKeys enumerates the only keys each section of the config file may
// carry. Anything else is a startup failure — spec.md §4.A requires strict
// parsing ("Unknown fields are rejected").
var sectionKeys = map[string]map[string]bool{
	"":       {"root": true, "server": true, "auth": true, "limits": true, "exec": true, "tunnel": true},
	"root":   {"dir": true},
	"server": {"bind_addr": true, "port": true, "base_path": true},
	"auth":   {"bearer_token": true, "allowed_origins": true},
	"limits": {
		"max_request_kb": true, "max_stdout_kb": true,
		"rate_capacity": true, "rate_refill_per_sec": true,
		"global_rate_capacity": true, "global_rate_refill_per_sec": true,
	},
	"exec":   {"timeout_s": true, "allowed_cmds": true, "pass_env": true},
	"tunnel": {"hostname": true},
}

// rejectUnknownKeys walks the decoded document and fails on any key not
// named in sectionKeys for that section.
func rejectUnknownKeys(section string, m map[string]interface{}) error {
	allowed := sectionKeys[section]
	for k, v := range m {
		if !allowed[k] {
			name := k
			if section != "" {
				name = section + "." + k
			}
			return fmt.Errorf("unknown config key %q", name)
		}
		if sub, ok := v.(map[string]interface{}); ok {
			if err := rejectUnknownKeys(k, sub); err != nil {
				return err
			}
		}
	}
	return nil
}

// Load reads config from a JSON5 file, rejects unknown keys, overlays
// environment variables (see applyEnvOverrides), canonicalizes root.dir, and validates the
// result. A missing or malformed file is a startup failure (spec.md §6:
// exit code 1), unlike the teacher's Load which tolerates a missing file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var doc map[string]interface{}
	if err := json5.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := rejectUnknownKeys("", doc); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.canonicalizeRoot(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides overlays the bearer token (VALET_BEARER_TOKEN) from the
// environment, matching the teacher's convention (internal/config/config_load.go)
// of never requiring secrets to live in the config file on disk. It also
// overlays the non-secret bind address (VALET_BIND_ADDR), port (VALET_PORT)
// and comma-separated allowed origins (VALET_ALLOWED_ORIGINS).
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VALET_BEARER_TOKEN"); v != "" {
		c.Auth.BearerToken = v
	}
	if v := os.Getenv("VALET_BIND_ADDR"); v != "" {
		c.Server.BindAddr = v
	}
	if v := os.Getenv("VALET_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil && port > 0 {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("VALET_ALLOWED_ORIGINS"); v != "" {
		c.Auth.AllowedOrigins = strings.Split(v, ",")
	}
}

// canonicalizeRoot resolves root.dir to an absolute, symlink-canonical path
// and confirms it exists and is a directory (spec.md §3: "must exist and be
// a directory at startup").
func (c *Config) canonicalizeRoot() error {
	if c.Root.Dir == "" {
		return nil // Validate() reports the specific error
	}
	abs, err := filepath.Abs(c.Root.Dir)
	if err != nil {
		return fmt.Errorf("root.dir: %w", err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("root.dir %q: %w", c.Root.Dir, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return fmt.Errorf("root.dir %q: %w", c.Root.Dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root.dir %q is not a directory", c.Root.Dir)
	}
	c.Root.Dir = real
	return nil
}
