package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/zxb7500644/m3u8-mcp/internal/api"
	"github.com/zxb7500644/m3u8-mcp/internal/clients"
	"github.com/zxb7500644/m3u8-mcp/internal/config"
	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
	"github.com/zxb7500644/m3u8-mcp/internal/python"
	"github.com/zxb7500644/m3u8-mcp/internal/telemetry"
	"github.com/zxb7500644/m3u8-mcp/internal/workdir"
)

// AppContext holds all constructed application dependencies shared across
// subcommands. It is built once in PersistentPreRunE.
type AppContext struct {
	cfg          *config.Config
	otelProvider *telemetry.Provider
	orchestrator *orchestrator.Orchestrator
	notifier     *clients.NATSNotifier
	router       *api.Router
	closeLog     func() error
}

// buildAppContext constructs all application dependencies from cfg:
//  1. Re-initialises the logger with the configured level and log file
//  2. Initialises the OTEL provider (best-effort, non-fatal)
//  3. Creates the four step implementations and the orchestrator
//  4. Creates the NATS notifier and the status router when configured
func buildAppContext(cfg *config.Config) (*AppContext, error) {
	app := &AppContext{cfg: cfg}

	closeLog, err := initLogger(cfg.Telemetry.LogLevel, cfg.Telemetry.LogFile)
	if err != nil {
		return nil, err
	}
	app.closeLog = closeLog

	// OTEL is best-effort: a missing collector must never block the launch.
	if cfg.Telemetry.OTLPEndpoint == "" {
		slog.Debug("OTEL telemetry disabled (no endpoint configured)")
	} else {
		tp, err := telemetry.InitProvider(
			context.Background(),
			cfg.Telemetry.OTLPEndpoint,
			cfg.Telemetry.ServiceName,
			cfg.Telemetry.OTLPInsecure,
		)
		if err != nil {
			slog.Warn("OTEL provider init failed, telemetry disabled", "err", err)
		} else {
			app.otelProvider = tp
		}
	}

	plan := orchestrator.Plan{
		Manifest:          cfg.Paths.ManifestPath(),
		EntryPoint:        cfg.Paths.EntryPointPath(),
		Directories:       cfg.Paths.Directories,
		StrictDirectories: cfg.Provision.Strict,
	}

	app.orchestrator = orchestrator.New(
		python.NewInterpreter(cfg.Python.Interpreter),
		python.NewInstaller(cfg.Python.PackageManager),
		workdir.NewProvisioner(),
		python.NewSupervisor(cfg.Python.Interpreter),
		plan,
	)

	if cfg.Notify.NATSURL != "" {
		app.notifier = clients.NewNATSNotifier(cfg.Notify, clients.NewCircuitBreaker("nats"))
		app.orchestrator.SetNotifier(app.notifier)
	}

	if cfg.Status.Addr != "" {
		app.router = api.NewRouter(app.orchestrator, cfg.Telemetry.ServiceName)
	}

	return app, nil
}

// shutdown releases everything buildAppContext opened. It never touches the
// launched server.
func (a *AppContext) shutdown() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.otelProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			slog.Warn("OTEL shutdown error", "err", err)
		}
	}
	if a.closeLog != nil {
		a.closeLog() //nolint:errcheck
	}
}
