package orchestrator_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
	"github.com/zxb7500644/m3u8-mcp/internal/python"
	"github.com/zxb7500644/m3u8-mcp/internal/workdir"
)

// launchFixture lays out a launcher directory in a temp dir. echo, true and
// sh stand in for python and pip so the scenarios run without a Python
// toolchain.
type launchFixture struct {
	base      string
	workDir   string
	manifest  string
	script    string
	serverOut *bytes.Buffer
}

func newFixture(t *testing.T, withManifest bool) *launchFixture {
	t.Helper()
	root := t.TempDir()
	f := &launchFixture{
		base:      filepath.Join(root, "launcher"),
		workDir:   filepath.Join(root, "cwd"),
		serverOut: &bytes.Buffer{},
	}
	require.NoError(t, os.MkdirAll(f.base, 0o755))
	require.NoError(t, os.MkdirAll(f.workDir, 0o755))

	f.manifest = filepath.Join(f.base, "requirements.txt")
	if withManifest {
		require.NoError(t, os.WriteFile(f.manifest, []byte("mcp\nm3u8\npycryptodome\n"), 0o600))
	}
	f.script = filepath.Join(f.base, "mcp_server.py")
	require.NoError(t, os.WriteFile(f.script, []byte("echo server-started\n"), 0o600))
	return f
}

func (f *launchFixture) dir(name string) string { return filepath.Join(f.workDir, name) }

func (f *launchFixture) orchestrator(interpreter string) *orchestrator.Orchestrator {
	sup := &python.Supervisor{
		Interpreter: "sh",
		Stdin:       bytes.NewReader(nil),
		Stdout:      f.serverOut,
		Stderr:      f.serverOut,
	}
	installer := &python.Installer{PackageManager: "true", Stdout: &bytes.Buffer{}, Stderr: &bytes.Buffer{}}

	return orchestrator.New(
		python.NewInterpreter(interpreter),
		installer,
		workdir.NewProvisioner(),
		sup,
		orchestrator.Plan{
			Manifest:    f.manifest,
			EntryPoint:  f.script,
			Directories: []string{f.dir("ts_files"), f.dir("output")},
		},
	)
}

func waitExit(t *testing.T, proc orchestrator.Process) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- proc.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("server did not exit")
	}
}

func TestLaunch_ScenarioA_AllPresent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result, proc, err := f.orchestrator("echo").Launch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, proc)

	assert.Equal(t, orchestrator.StateServerLaunched, result.State)
	assert.Equal(t, orchestrator.StatusOK, result.Status)
	assert.DirExists(t, f.dir("ts_files"))
	assert.DirExists(t, f.dir("output"))

	waitExit(t, proc)
	assert.Equal(t, "server-started\n", f.serverOut.String())
}

func TestLaunch_ScenarioB_ManifestMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, false)

	result, proc, err := f.orchestrator("echo").Launch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, python.ErrManifestMissing)
	assert.ErrorIs(t, err, orchestrator.ErrBootstrapFailed)
	assert.Nil(t, proc)
	assert.Equal(t, orchestrator.StateFailed, result.State)

	dirs, ok := result.Phase(orchestrator.PhaseDirectories)
	require.True(t, ok)
	assert.Equal(t, orchestrator.StatusSkipped, dirs.Status)

	// Never attempted directory creation or the server.
	assert.NoDirExists(t, f.dir("ts_files"))
	assert.NoDirExists(t, f.dir("output"))
	assert.Empty(t, f.serverOut.String())
}

func TestLaunch_ScenarioC_OneDirectoryExists(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	require.NoError(t, os.Mkdir(f.dir("ts_files"), 0o755))

	result, proc, err := f.orchestrator("echo").Launch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, proc)

	assert.Equal(t, orchestrator.StateServerLaunched, result.State)
	assert.DirExists(t, f.dir("output"))
	waitExit(t, proc)
}

func TestLaunch_InterpreterMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)

	result, proc, err := f.orchestrator("m3u8-launcher-no-such-python").Launch(context.Background())
	assert.ErrorIs(t, err, python.ErrInterpreterUnavailable)
	assert.Nil(t, proc)
	assert.Equal(t, orchestrator.StateFailed, result.State)

	for _, name := range []string{orchestrator.PhaseDependencies, orchestrator.PhaseDirectories} {
		p, ok := result.Phase(name)
		require.True(t, ok)
		assert.Equal(t, orchestrator.StatusSkipped, p.Status, name)
	}
	assert.NoDirExists(t, f.dir("ts_files"))
}

func TestLaunch_EntryPointMissing(t *testing.T) {
	t.Parallel()

	f := newFixture(t, true)
	require.NoError(t, os.Remove(f.script))

	result, proc, err := f.orchestrator("echo").Launch(context.Background())
	assert.ErrorIs(t, err, python.ErrEntryPointMissing)
	assert.Nil(t, proc)
	assert.Equal(t, orchestrator.StateFailed, result.State)

	// Directories were provisioned before the entry point check.
	assert.DirExists(t, f.dir("ts_files"))
}
