package orchestrator

import (
	"sync"
	"time"
)

// Status values used across BootstrapResult and PhaseResult.
const (
	StatusOK         = "ok"
	StatusError      = "error"
	StatusInProgress = "in-progress"
	StatusSkipped    = "skipped"
)

// State is a position in the launcher's linear state machine:
// init → env-checked → deps-installed → dirs-ready → server-launched.
// Any gating failure moves to failed.
type State string

const (
	StateInit           State = "init"
	StateEnvChecked     State = "env-checked"
	StateDepsInstalled  State = "deps-installed"
	StateDirsReady      State = "dirs-ready"
	StateServerLaunched State = "server-launched"
	StateFailed         State = "failed"
)

// Phase names, in execution order.
const (
	PhaseEnvironment  = "environment"
	PhaseDependencies = "dependencies"
	PhaseDirectories  = "directories"
	PhaseServer       = "server"
)

// Directory outcomes reported by a DirectoryProvisioner.
const (
	DirCreated = "created"
	DirExists  = "exists"
	DirFailed  = "error"
)

// BootstrapResult is the aggregate result of a bootstrap run. Phases are kept
// in execution order; phases after a gating failure are recorded as skipped.
// The embedded mutex guards reads from the status server while the launcher
// goroutine is still writing.
type BootstrapResult struct {
	sync.Mutex
	Status string        `json:"status"` // "ok", "error", "in-progress"
	State  State         `json:"state"`
	Phases []PhaseResult `json:"phases"`

	failure error
}

// PhaseResult represents the outcome of a single bootstrap phase.
type PhaseResult struct {
	Name   string `json:"name"`
	Status string `json:"status"` // "ok", "error", "skipped"
	Detail string `json:"detail,omitempty"`
	Error  string `json:"error,omitempty"`
}

// DirResult is the outcome for one directory handled by the provisioner.
type DirResult struct {
	Path   string `json:"path"`
	Status string `json:"status"` // "created", "exists", "error"
	Error  string `json:"error,omitempty"`
}

// LaunchEvent is published to a Notifier at each externally visible step.
type LaunchEvent struct {
	Type  string    `json:"type"`
	State State     `json:"state"`
	PID   int       `json:"pid,omitempty"`
	Error string    `json:"error,omitempty"`
	Time  time.Time `json:"time"`
}

// Event types carried by LaunchEvent.Type.
const (
	EventBootstrapCompleted = "bootstrap.completed"
	EventBootstrapFailed    = "bootstrap.failed"
	EventServerLaunched     = "server.launched"
	EventServerSpawnError   = "server.spawn_error"
	EventServerExited       = "server.exited"
)

// Phase returns the named phase and whether it was recorded.
func (r *BootstrapResult) Phase(name string) (PhaseResult, bool) {
	for _, p := range r.Phases {
		if p.Name == name {
			return p, true
		}
	}
	return PhaseResult{}, false
}

// Err returns the error that moved the run to StateFailed, if any.
func (r *BootstrapResult) Err() error {
	return r.failure
}
