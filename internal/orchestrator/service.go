package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "m3u8-mcp-launcher"

var (
	// ErrBootstrapInProgress is returned when RunBootstrap is called while a
	// bootstrap is already running.
	ErrBootstrapInProgress = errors.New("bootstrap already in progress")

	// ErrBootstrapFailed wraps the error of the gating phase that aborted a run.
	ErrBootstrapFailed = errors.New("bootstrap failed")

	// ErrDirectoriesFailed is the directories phase error in strict mode.
	ErrDirectoriesFailed = errors.New("one or more directories could not be created")
)

// EnvChecker is satisfied by *python.Interpreter.
type EnvChecker interface {
	CheckVersion(ctx context.Context) (string, error)
}

// DependencyInstaller is satisfied by *python.Installer.
type DependencyInstaller interface {
	Install(ctx context.Context, manifest string) error
}

// DirectoryProvisioner is satisfied by *workdir.Provisioner.
type DirectoryProvisioner interface {
	Ensure(ctx context.Context, dirs []string) []DirResult
}

// ServerSupervisor is satisfied by *python.Supervisor. Start must return as
// soon as the spawn call has been issued.
type ServerSupervisor interface {
	Start(ctx context.Context, script string, onError func(error)) (Process, error)
}

// Process is a spawned server the launcher references but does not own.
type Process interface {
	PID() int
	Running() bool
	Wait() error
}

// Notifier receives launch events. Implementations must not block for long;
// delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, ev LaunchEvent)
}

// Plan holds the fixed inputs of a launch.
type Plan struct {
	Manifest    string
	EntryPoint  string
	Directories []string
	// StrictDirectories makes any per-directory failure fail the phase.
	StrictDirectories bool
}

// Orchestrator runs the bootstrap phases in order and launches the server.
type Orchestrator struct {
	env    EnvChecker
	deps   DependencyInstaller
	dirs   DirectoryProvisioner
	server ServerSupervisor
	plan   Plan

	notifier  Notifier
	phaseRuns metric.Int64Counter

	bootstrapInProgress atomic.Bool
	lastResult          *BootstrapResult
	process             Process
	resultMu            sync.RWMutex
}

// New constructs an Orchestrator. The concrete python and workdir types
// satisfy the interfaces defined in this package.
func New(env EnvChecker, deps DependencyInstaller, dirs DirectoryProvisioner, server ServerSupervisor, plan Plan) *Orchestrator {
	o := &Orchestrator{
		env:    env,
		deps:   deps,
		dirs:   dirs,
		server: server,
		plan:   plan,
	}

	counter, err := otel.Meter(instrumentationName).Int64Counter(
		"launcher.phase.runs",
		metric.WithDescription("Bootstrap phase executions by outcome"),
	)
	if err != nil {
		slog.Warn("phase counter unavailable", "err", err)
	} else {
		o.phaseRuns = counter
	}

	return o
}

// SetNotifier attaches n to receive launch events. A nil notifier disables
// notifications.
func (o *Orchestrator) SetNotifier(n Notifier) {
	o.notifier = n
}

// RunBootstrap runs the environment, dependency and directory phases in
// order. The first gating failure marks the remaining phases skipped and
// moves the result to StateFailed; RunBootstrap itself only errors with
// ErrBootstrapInProgress.
func (o *Orchestrator) RunBootstrap(ctx context.Context) (*BootstrapResult, error) {
	if !o.bootstrapInProgress.CompareAndSwap(false, true) {
		return nil, ErrBootstrapInProgress
	}
	defer o.bootstrapInProgress.Store(false)

	result := &BootstrapResult{
		Status: StatusInProgress,
		State:  StateInit,
	}
	o.storeResult(result)

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "launcher.bootstrap")
	defer span.End()

	slog.DebugContext(ctx, "bootstrap started")

	phases := []struct {
		name string
		next State
		run  func(context.Context) (string, error)
	}{
		{PhaseEnvironment, StateEnvChecked, o.checkEnvironment},
		{PhaseDependencies, StateDepsInstalled, o.installDependencies},
		{PhaseDirectories, StateDirsReady, o.provisionDirectories},
	}

	for i, p := range phases {
		detail, err := o.runPhase(ctx, p.name, p.run)
		if err != nil {
			result.Lock()
			result.Phases = append(result.Phases, PhaseResult{Name: p.name, Status: StatusError, Detail: detail, Error: err.Error()})
			for _, rest := range phases[i+1:] {
				result.Phases = append(result.Phases, PhaseResult{Name: rest.name, Status: StatusSkipped})
			}
			result.Status = StatusError
			result.State = StateFailed
			result.failure = fmt.Errorf("%w: %s: %w", ErrBootstrapFailed, p.name, err)
			result.Unlock()

			span.SetAttributes(attribute.String("bootstrap.failed_phase", p.name))
			span.SetStatus(codes.Error, err.Error())
			o.notify(ctx, LaunchEvent{Type: EventBootstrapFailed, State: StateFailed, Error: err.Error()})
			return result, nil
		}

		result.Lock()
		result.Phases = append(result.Phases, PhaseResult{Name: p.name, Status: StatusOK, Detail: detail})
		result.State = p.next
		result.Unlock()
	}

	result.Lock()
	result.Status = StatusOK
	result.Unlock()

	span.SetStatus(codes.Ok, "")
	slog.DebugContext(ctx, "bootstrap completed", "state", result.State)
	o.notify(ctx, LaunchEvent{Type: EventBootstrapCompleted, State: StateDirsReady})

	return result, nil
}

// Launch runs the bootstrap and, when every gating phase passed, starts the
// server. It returns as soon as the spawn call has been issued. Spawn errors
// reported asynchronously go to the log and the notifier, never to the
// returned error.
func (o *Orchestrator) Launch(ctx context.Context) (*BootstrapResult, Process, error) {
	result, err := o.RunBootstrap(ctx)
	if err != nil {
		return nil, nil, err
	}
	if result.Status != StatusOK {
		return result, nil, result.Err()
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "launcher.server")
	defer span.End()

	onError := func(spawnErr error) {
		slog.Error(fmt.Sprintf("MCP服务器启动错误: %v", spawnErr))
		o.notify(context.WithoutCancel(ctx), LaunchEvent{Type: EventServerSpawnError, State: StateServerLaunched, Error: spawnErr.Error()})
	}

	proc, err := o.server.Start(ctx, o.plan.EntryPoint, onError)
	o.countPhase(ctx, PhaseServer, err)
	if err != nil {
		result.Lock()
		result.Phases = append(result.Phases, PhaseResult{Name: PhaseServer, Status: StatusError, Error: err.Error()})
		result.Status = StatusError
		result.State = StateFailed
		result.failure = fmt.Errorf("%w: %s: %w", ErrBootstrapFailed, PhaseServer, err)
		result.Unlock()

		span.SetStatus(codes.Error, err.Error())
		o.notify(ctx, LaunchEvent{Type: EventBootstrapFailed, State: StateFailed, Error: err.Error()})
		return result, nil, result.Err()
	}

	result.Lock()
	result.Phases = append(result.Phases, PhaseResult{Name: PhaseServer, Status: StatusOK, Detail: fmt.Sprintf("pid %d", proc.PID())})
	result.State = StateServerLaunched
	result.Unlock()

	o.resultMu.Lock()
	o.process = proc
	o.resultMu.Unlock()

	span.SetAttributes(attribute.Int("server.pid", proc.PID()))
	span.SetStatus(codes.Ok, "")
	o.notify(ctx, LaunchEvent{Type: EventServerLaunched, State: StateServerLaunched, PID: proc.PID()})

	return result, proc, nil
}

// ServerExited records that the launched server has terminated. It does not
// affect the launcher's exit status.
func (o *Orchestrator) ServerExited(ctx context.Context, waitErr error) {
	ev := LaunchEvent{Type: EventServerExited, State: StateServerLaunched}
	o.resultMu.RLock()
	if o.process != nil {
		ev.PID = o.process.PID()
	}
	o.resultMu.RUnlock()
	if waitErr != nil {
		ev.Error = waitErr.Error()
	}
	o.notify(ctx, ev)
}

// IsBootstrapInProgress returns true while a bootstrap run is active.
func (o *Orchestrator) IsBootstrapInProgress() bool {
	return o.bootstrapInProgress.Load()
}

// IsReady returns true once the directories phase has passed.
func (o *Orchestrator) IsReady() bool {
	o.resultMu.RLock()
	r := o.lastResult
	o.resultMu.RUnlock()
	if r == nil {
		return false
	}
	r.Lock()
	defer r.Unlock()
	return r.Status == StatusOK
}

// Snapshot returns a copy of the last result and the launched process, if
// any. The copy is safe to marshal while the launcher keeps running.
func (o *Orchestrator) Snapshot() (*BootstrapResult, Process) {
	o.resultMu.RLock()
	r, proc := o.lastResult, o.process
	o.resultMu.RUnlock()
	if r == nil {
		return nil, proc
	}

	r.Lock()
	defer r.Unlock()
	return &BootstrapResult{
		Status:  r.Status,
		State:   r.State,
		Phases:  append([]PhaseResult(nil), r.Phases...),
		failure: r.failure,
	}, proc
}

func (o *Orchestrator) checkEnvironment(ctx context.Context) (string, error) {
	return o.env.CheckVersion(ctx)
}

func (o *Orchestrator) installDependencies(ctx context.Context) (string, error) {
	return o.plan.Manifest, o.deps.Install(ctx, o.plan.Manifest)
}

func (o *Orchestrator) provisionDirectories(ctx context.Context) (string, error) {
	results := o.dirs.Ensure(ctx, o.plan.Directories)

	var failed []string
	for _, r := range results {
		if r.Status == DirFailed {
			failed = append(failed, r.Path)
		}
	}
	detail := fmt.Sprintf("%d/%d ready", len(results)-len(failed), len(results))

	if len(failed) > 0 && o.plan.StrictDirectories {
		return detail, fmt.Errorf("%w: %v", ErrDirectoriesFailed, failed)
	}
	return detail, nil
}

// runPhase wraps a single phase in a span and records its outcome.
func (o *Orchestrator) runPhase(ctx context.Context, name string, fn func(context.Context) (string, error)) (string, error) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "launcher.phase."+name)
	defer span.End()

	detail, err := fn(ctx)
	o.countPhase(ctx, name, err)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		slog.DebugContext(ctx, "bootstrap phase failed", "phase", name, "error", err)
		return detail, err
	}
	slog.DebugContext(ctx, "bootstrap phase ok", "phase", name)
	return detail, nil
}

func (o *Orchestrator) countPhase(ctx context.Context, name string, err error) {
	if o.phaseRuns == nil {
		return
	}
	status := StatusOK
	if err != nil {
		status = StatusError
	}
	o.phaseRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", name),
		attribute.String("status", status),
	))
}

func (o *Orchestrator) notify(ctx context.Context, ev LaunchEvent) {
	if o.notifier == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	o.notifier.Notify(ctx, ev)
}

func (o *Orchestrator) storeResult(r *BootstrapResult) {
	o.resultMu.Lock()
	o.lastResult = r
	o.resultMu.Unlock()
}
