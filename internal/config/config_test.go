package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Supervisor.MaxRestarts != 3 {
		t.Errorf("MaxRestarts = %d, want 3", cfg.Supervisor.MaxRestarts)
	}
	if cfg.Agents.MaxActionsPerTick != 5 {
		t.Errorf("MaxActionsPerTick = %d, want 5", cfg.Agents.MaxActionsPerTick)
	}
	if cfg.Research.TimeoutSeconds != 15 {
		t.Errorf("Research.TimeoutSeconds = %d, want 15", cfg.Research.TimeoutSeconds)
	}
}

func TestLoad_JSON5WithComments(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		// fleet definition
		supervisor: {
			max_restarts: 5,
			agents: [
				{name: "logtamer", plugins: ["heartbeat"], max_queue: 10},
			],
		},
		agents: {max_actions_per_tick: 2},
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Supervisor.MaxRestarts != 5 {
		t.Errorf("MaxRestarts = %d, want 5", cfg.Supervisor.MaxRestarts)
	}
	if len(cfg.Supervisor.Agents) != 1 || cfg.Supervisor.Agents[0].Name != "logtamer" {
		t.Fatalf("agents = %+v", cfg.Supervisor.Agents)
	}
	if cfg.Supervisor.Agents[0].MaxQueue != 10 {
		t.Errorf("MaxQueue = %d, want 10", cfg.Supervisor.Agents[0].MaxQueue)
	}
	if cfg.Agents.MaxActionsPerTick != 2 {
		t.Errorf("MaxActionsPerTick = %d, want 2", cfg.Agents.MaxActionsPerTick)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OVERBLICK_LLM_API_BASE", "http://127.0.0.1:9999/v1")
	t.Setenv("OVERBLICK_LLM_API_KEY", "sk-test")
	t.Setenv("OVERBLICK_MAX_RESTARTS", "7")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LLM.APIBase != "http://127.0.0.1:9999/v1" {
		t.Errorf("APIBase = %q", cfg.LLM.APIBase)
	}
	if cfg.LLM.APIKey != "sk-test" {
		t.Errorf("APIKey not read from env")
	}
	if cfg.Supervisor.MaxRestarts != 7 {
		t.Errorf("MaxRestarts = %d, want 7", cfg.Supervisor.MaxRestarts)
	}
}

func TestDurationsAndDirs(t *testing.T) {
	cfg := Default()
	if cfg.Supervisor.StopGrace() != 5*time.Second {
		t.Errorf("StopGrace = %v", cfg.Supervisor.StopGrace())
	}
	if cfg.Agents.TickInterval() != time.Minute {
		t.Errorf("TickInterval = %v", cfg.Agents.TickInterval())
	}
	if cfg.LLM.Timeout() != 180*time.Second {
		t.Errorf("LLM Timeout = %v", cfg.LLM.Timeout())
	}
	if cfg.SocketDir() == "" || cfg.DataDir() == "" {
		t.Error("dirs should resolve to non-empty defaults")
	}
	if got := cfg.AgentDataDir("x"); filepath.Base(got) != "x" {
		t.Errorf("AgentDataDir = %q", got)
	}
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	os.WriteFile(path, []byte(`{supervisor:{max_restarts:1}}`), 0o644)

	changed := make(chan *Config, 1)
	stop, err := Watch(path, func(c *Config) {
		select {
		case changed <- c:
		default:
		}
	})
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}
	defer stop()

	os.WriteFile(path, []byte(`{supervisor:{max_restarts:9}}`), 0o644)

	select {
	case cfg := <-changed:
		if cfg.Supervisor.MaxRestarts != 9 {
			t.Errorf("reloaded MaxRestarts = %d, want 9", cfg.Supervisor.MaxRestarts)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("watcher did not fire")
	}
}
