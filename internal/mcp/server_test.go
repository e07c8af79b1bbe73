package mcp

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nvandessel/orderlattice/internal/config"
	"github.com/nvandessel/orderlattice/internal/store"
)

// testSettings keeps tool calls fast: L=8 with short schedules.
func testSettings() *config.OrderConfig {
	cfg := config.Default()
	cfg.Simulation.Size = 8
	cfg.Simulation.EquilibrationSweeps = 200
	cfg.Simulation.SamplingSweeps = 200
	cfg.Sweep.Workers = 2
	return cfg
}

func setupTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	tmpDir := t.TempDir()

	rs, err := store.NewSQLiteResultStore(filepath.Join(tmpDir, "results.db"))
	if err != nil {
		t.Fatalf("NewSQLiteResultStore failed: %v", err)
	}

	server, err := NewServer(&Config{
		Name:     "test-server",
		Version:  "v1.0.0",
		Store:    rs,
		Settings: testSettings(),
		AuditDir: tmpDir,
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	t.Cleanup(func() { server.Close() })

	return server, tmpDir
}

func TestNewServer(t *testing.T) {
	server, tmpDir := setupTestServer(t)

	if server.server == nil {
		t.Error("Server.server is nil")
	}
	if server.store == nil {
		t.Error("Server.store is nil")
	}
	if server.auditLogger == nil {
		t.Error("Server.auditLogger is nil with AuditDir set")
	}
	if server.settings.Simulation.Size != 8 {
		t.Errorf("settings size = %d, want 8", server.settings.Simulation.Size)
	}
	if _, err := os.Stat(filepath.Join(tmpDir, "audit.jsonl")); err != nil {
		t.Errorf("audit log not created: %v", err)
	}
}

func TestNewServer_RequiresStore(t *testing.T) {
	if _, err := NewServer(&Config{Name: "test-server"}); err == nil {
		t.Error("NewServer without store should fail")
	}
}

func TestNewServer_Defaults(t *testing.T) {
	server, err := NewServer(&Config{
		Name:  "test-server",
		Store: store.NewInMemoryResultStore(),
	})
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	defer server.Close()

	if server.settings == nil || server.settings.Simulation.Size != config.Default().Simulation.Size {
		t.Error("nil Settings should fall back to config.Default()")
	}
	if server.logger == nil {
		t.Error("logger should default to a discard logger")
	}
	if server.auditLogger != nil {
		t.Error("empty AuditDir should disable auditing")
	}
}

func TestServer_CloseTwice(t *testing.T) {
	server, _ := setupTestServer(t)

	if err := server.Close(); err != nil {
		t.Fatalf("first Close: %v", err)
	}
	if err := server.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
}
