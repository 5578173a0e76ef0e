// Package config holds the supervisor and agent runtime configuration:
// defaults, JSON5 config file, env overrides, and a change watcher.
package config

import (
	"time"
)

// Config is the root configuration for the Overblick runtime.
type Config struct {
	Supervisor SupervisorConfig `json:"supervisor"`
	Agents     AgentsConfig     `json:"agents"`
	LLM        LLMConfig        `json:"llm"`
	Research   ResearchConfig   `json:"research"`
	Tracing    TracingConfig    `json:"tracing,omitempty"`
	Verbose    bool             `json:"verbose,omitempty"`
}

// SupervisorConfig controls the parent process.
type SupervisorConfig struct {
	// SocketDir holds the unix socket and token file. Default: <tempdir>/overblick.
	SocketDir string `json:"socket_dir,omitempty"`
	// DataDir is the root for per-identity state and the audit log.
	DataDir string `json:"data_dir,omitempty"`
	// Agents lists the managed identities to spawn at startup.
	Agents []ManagedAgent `json:"agents,omitempty"`
	// MaxRestarts caps automatic restarts per agent (default 3).
	MaxRestarts int `json:"max_restarts,omitempty"`
	// StopGraceSeconds is how long an agent gets to exit before SIGKILL (default 5).
	StopGraceSeconds int `json:"stop_grace_seconds,omitempty"`
	// CleanupSchedule is a cron expression gating the expired-message sweep.
	CleanupSchedule string `json:"cleanup_schedule,omitempty"`
}

// ManagedAgent declares one child agent.
type ManagedAgent struct {
	Name    string   `json:"name"`
	Plugins []string `json:"plugins,omitempty"`
	// AcceptedTypes restricts inter-agent message admission; empty = accept-all.
	AcceptedTypes []string `json:"accepted_types,omitempty"`
	// MaxQueue caps the pending inter-agent queue (default 100).
	MaxQueue int `json:"max_queue,omitempty"`
}

// AgentsConfig holds per-agent loop defaults.
type AgentsConfig struct {
	// MaxActionsPerTick caps how many planned actions execute per tick.
	MaxActionsPerTick int `json:"max_actions_per_tick,omitempty"`
	// TickIntervalSeconds is the pause between ticks (default 60).
	TickIntervalSeconds int `json:"tick_interval_seconds,omitempty"`
}

// LLMConfig points at an OpenAI-compatible model server.
// The API key is read from env OVERBLICK_LLM_API_KEY only, never from file.
type LLMConfig struct {
	APIBase        string `json:"api_base,omitempty"`
	APIKey         string `json:"-"`
	Model          string `json:"model,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
	// RateLimitRPM throttles outbound LLM calls; 0 disables.
	RateLimitRPM int `json:"rate_limit_rpm,omitempty"`
}

// ResearchConfig controls the supervisor's web research handler.
type ResearchConfig struct {
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`
	MaxResultChars int `json:"max_result_chars,omitempty"`
}

// TracingConfig configures the optional OTLP trace exporter.
type TracingConfig struct {
	Enabled  bool   `json:"enabled,omitempty"`
	Endpoint string `json:"endpoint,omitempty"`
	// Protocol is "grpc" (default) or "http".
	Protocol string `json:"protocol,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Supervisor: SupervisorConfig{
			MaxRestarts:      3,
			StopGraceSeconds: 5,
			CleanupSchedule:  "* * * * *",
		},
		Agents: AgentsConfig{
			MaxActionsPerTick:   5,
			TickIntervalSeconds: 60,
		},
		LLM: LLMConfig{
			APIBase:        "http://localhost:8080/v1",
			Model:          "local",
			TimeoutSeconds: 180,
		},
		Research: ResearchConfig{
			TimeoutSeconds: 15,
			MaxResultChars: 3000,
		},
		Tracing: TracingConfig{
			Protocol: "grpc",
		},
	}
}

// StopGrace returns the agent stop grace period as a duration.
func (c *SupervisorConfig) StopGrace() time.Duration {
	if c.StopGraceSeconds <= 0 {
		return 5 * time.Second
	}
	return time.Duration(c.StopGraceSeconds) * time.Second
}

// TickInterval returns the pause between loop ticks.
func (c *AgentsConfig) TickInterval() time.Duration {
	if c.TickIntervalSeconds <= 0 {
		return time.Minute
	}
	return time.Duration(c.TickIntervalSeconds) * time.Second
}

// Timeout returns the LLM call timeout.
func (c *LLMConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return 180 * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}
