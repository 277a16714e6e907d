package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

// noopLogger returns a slog.Logger that discards all output.
func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// --- Mock step implementations ---

type okEnv struct{}

func (okEnv) CheckVersion(context.Context) (string, error) { return "3.12.0", nil }

type okInstaller struct{}

func (okInstaller) Install(context.Context, string) error { return nil }

type okProvisioner struct{}

func (okProvisioner) Ensure(_ context.Context, dirs []string) []orchestrator.DirResult {
	out := make([]orchestrator.DirResult, len(dirs))
	for i, d := range dirs {
		out[i] = orchestrator.DirResult{Path: d, Status: orchestrator.DirExists}
	}
	return out
}

type runningSupervisor struct{}

func (runningSupervisor) Start(context.Context, string, func(error)) (orchestrator.Process, error) {
	return &fakeProcess{pid: 321, running: true}, nil
}

// TestStatusFlow_NotReadyThenReady drives a real orchestrator through the
// router: /ready is 503 before launch and 200 after, /status reports the pid.
func TestStatusFlow_NotReadyThenReady(t *testing.T) {
	t.Parallel()

	o := orchestrator.New(okEnv{}, okInstaller{}, okProvisioner{}, runningSupervisor{}, orchestrator.Plan{
		Manifest:    "requirements.txt",
		EntryPoint:  "mcp_server.py",
		Directories: []string{"ts_files", "output"},
	})

	srv := httptest.NewServer(NewRouter(o, "m3u8-mcp-launcher-test").Handler())
	defer srv.Close()
	client := srv.Client()

	resp, err := client.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	_, _, err = o.Launch(context.Background())
	require.NoError(t, err)

	resp, err = client.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = client.Get(srv.URL + "/status")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Status    string `json:"status"`
		Bootstrap struct {
			State  string `json:"state"`
			Phases []struct {
				Name   string `json:"name"`
				Status string `json:"status"`
			} `json:"phases"`
		} `json:"bootstrap"`
		Server struct {
			PID     int  `json:"pid"`
			Running bool `json:"running"`
		} `json:"server"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "server-launched", body.Bootstrap.State)
	require.Len(t, body.Bootstrap.Phases, 4)
	assert.Equal(t, "server", body.Bootstrap.Phases[3].Name)
	assert.Equal(t, 321, body.Server.PID)
	assert.True(t, body.Server.Running)
}
