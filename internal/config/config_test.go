package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Note: t.Parallel() is intentionally omitted in this package.
// These tests share process-global environment variables; t.Setenv in
// TestLoad_EnvOverride would race with any concurrent reader.

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "python", cfg.Python.Interpreter)
	assert.Equal(t, "pip", cfg.Python.PackageManager)
	assert.Equal(t, "requirements.txt", cfg.Paths.Manifest)
	assert.Equal(t, "mcp_server.py", cfg.Paths.EntryPoint)
	assert.Equal(t, []string{"ts_files", "output"}, cfg.Paths.Directories)
	assert.False(t, cfg.Provision.Strict)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)
	assert.Equal(t, "m3u8-mcp-launcher", cfg.Telemetry.ServiceName)
	assert.Equal(t, "m3u8.launcher.events", cfg.Notify.Subject)

	// BaseDir falls back to the directory holding the running binary.
	exe, err := os.Executable()
	require.NoError(t, err)
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	assert.Equal(t, filepath.Dir(exe), cfg.Paths.BaseDir)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("M3U8_LAUNCHER_PYTHON_INTERPRETER", "python3")
	t.Setenv("M3U8_LAUNCHER_PATHS_BASE_DIR", "/opt/m3u8")
	t.Setenv("M3U8_LAUNCHER_PROVISION_STRICT", "true")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "python3", cfg.Python.Interpreter)
	assert.Equal(t, "/opt/m3u8", cfg.Paths.BaseDir)
	assert.True(t, cfg.Provision.Strict)
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "launcher.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
python:
  interpreter: python3
  package_manager: pip3
paths:
  base_dir: /srv/mcp
  directories: [cache]
status:
  addr: "127.0.0.1:8089"
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "pip3", cfg.Python.PackageManager)
	assert.Equal(t, []string{"cache"}, cfg.Paths.Directories)
	assert.Equal(t, "127.0.0.1:8089", cfg.Status.Addr)
	assert.Equal(t, "/srv/mcp/requirements.txt", cfg.Paths.ManifestPath())
	assert.Equal(t, "/srv/mcp/mcp_server.py", cfg.Paths.EntryPointPath())
}

func TestLoad_InvalidFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	assert.Error(t, err)
}

func TestPathsConfig_AbsolutePathsKept(t *testing.T) {
	p := PathsConfig{BaseDir: "/srv/mcp", Manifest: "/etc/reqs.txt", EntryPoint: "srv/main.py"}

	assert.Equal(t, "/etc/reqs.txt", p.ManifestPath())
	assert.Equal(t, "/srv/mcp/srv/main.py", p.EntryPointPath())
}

func TestLoad_EnvIsolation(t *testing.T) {
	require.Empty(t, os.Getenv("M3U8_LAUNCHER_PYTHON_INTERPRETER"))

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "python", cfg.Python.Interpreter)
}
