package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-accessors/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-accessors/internal/instance"
)

const configEnv = config.EnvPrefix + "CONFIG"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestRun_InvalidConfig verifies run fails with an invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv(configEnv, "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
	if !strings.Contains(err.Error(), "loading configuration") {
		t.Errorf("error = %v, want loading configuration failure", err)
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	t.Setenv(configEnv, writeConfig(t, `
host:
  id: test-host
database:
  path: ""
mqtt:
  enabled: false
api:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
`))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestRun_StartupAndShutdown runs the host with every network service
// disabled and one accessor of an unknown kind, which must be skipped.
func TestRun_StartupAndShutdown(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "test.db")
	t.Setenv(configEnv, writeConfig(t, `
host:
  id: test-host
  health_interval: 5
database:
  path: "`+dbPath+`"
  wal_mode: true
  busy_timeout: 5
mqtt:
  enabled: false
api:
  enabled: false
influxdb:
  enabled: false
redis:
  enabled: false
logging:
  level: error
  format: text
  output: stdout
accessors:
  - id: mystery
    kind: no-such-kind
`))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() error = %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("run() did not return after cancel")
	}

	if _, err := os.Stat(dbPath); err != nil {
		t.Errorf("database not created: %v", err)
	}
}

// TestGetConfigPath_Default verifies the default config path.
func TestGetConfigPath_Default(t *testing.T) {
	t.Setenv(configEnv, "")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies the environment override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	expected := "/custom/path/config.yaml"
	t.Setenv(configEnv, expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestSeedRecords(t *testing.T) {
	off := false
	records := seedRecords([]config.AccessorConfig{
		{ID: "lamp", Kind: "hue", Params: map[string]string{"bridge": "10.0.0.2"}},
		{ID: "robot", Kind: "scarab", Enabled: &off},
	})

	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if !records[0].Enabled || records[1].Enabled {
		t.Errorf("enabled = %v,%v, want true,false", records[0].Enabled, records[1].Enabled)
	}
	for _, r := range records {
		if r.Source != instance.SourceConfig {
			t.Errorf("%s source = %q, want %q", r.ID, r.Source, instance.SourceConfig)
		}
	}
	if records[0].Params["bridge"] != "10.0.0.2" {
		t.Errorf("params = %v", records[0].Params)
	}
}
