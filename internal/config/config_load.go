package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/titanous/json5"
)

// Load reads config from a JSON5 file, then overlays env vars.
// A missing file is not an error: defaults plus env apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := json5.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyEnvOverrides()
	return cfg, nil
}

// applyEnvOverrides overlays env vars onto the config.
// Env vars take precedence over file values.
func (c *Config) applyEnvOverrides() {
	envStr := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	envInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	envBool := func(key string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = v == "1" || strings.EqualFold(v, "true")
		}
	}

	envStr("OVERBLICK_SOCKET_DIR", &c.Supervisor.SocketDir)
	envStr("OVERBLICK_DATA_DIR", &c.Supervisor.DataDir)
	envInt("OVERBLICK_MAX_RESTARTS", &c.Supervisor.MaxRestarts)

	envStr("OVERBLICK_LLM_API_BASE", &c.LLM.APIBase)
	envStr("OVERBLICK_LLM_API_KEY", &c.LLM.APIKey)
	envStr("OVERBLICK_LLM_MODEL", &c.LLM.Model)
	envInt("OVERBLICK_LLM_TIMEOUT_SECONDS", &c.LLM.TimeoutSeconds)
	envInt("OVERBLICK_LLM_RATE_LIMIT_RPM", &c.LLM.RateLimitRPM)

	envStr("OVERBLICK_OTLP_ENDPOINT", &c.Tracing.Endpoint)
	envBool("OVERBLICK_TRACING", &c.Tracing.Enabled)
	envBool("OVERBLICK_VERBOSE", &c.Verbose)
}

// SocketDir resolves the effective socket directory.
func (c *Config) SocketDir() string {
	if c.Supervisor.SocketDir != "" {
		return ExpandHome(c.Supervisor.SocketDir)
	}
	return filepath.Join(os.TempDir(), "overblick")
}

// DataDir resolves the effective data directory.
func (c *Config) DataDir() string {
	if c.Supervisor.DataDir != "" {
		return ExpandHome(c.Supervisor.DataDir)
	}
	return ExpandHome("~/.overblick")
}

// AgentDataDir returns the per-identity state directory.
func (c *Config) AgentDataDir(identity string) string {
	return filepath.Join(c.DataDir(), "agents", identity)
}

// ExpandHome expands a leading ~ to the user's home directory.
func ExpandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return path
}
