package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

func runLaunch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer app.shutdown()

	slog.Info("欢迎使用MCP M3U8下载器")

	_, proc, err := app.orchestrator.Launch(ctx)
	if err != nil {
		slog.Error("初始化失败，程序退出")
		return err
	}

	return app.supervise(ctx, proc)
}

// supervise keeps the launcher attached to the server until the server exits
// or ctx is cancelled, serving the status API meanwhile when configured. It
// never kills the server and ignores its exit status: once the server is
// launched the launcher exits 0.
func (a *AppContext) supervise(ctx context.Context, proc orchestrator.Process) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	exited := make(chan error, 1)
	go func() { exited <- proc.Wait() }()

	// Use a plain errgroup (no context): neither goroutine can fail the
	// launch after the server is running.
	var g errgroup.Group

	g.Go(func() error {
		select {
		case waitErr := <-exited:
			slog.Debug("server exited", "pid", proc.PID(), "err", waitErr)
			a.orchestrator.ServerExited(context.WithoutCancel(ctx), waitErr)
		case <-ctx.Done():
			slog.Debug("launcher detaching from server", "pid", proc.PID())
		}
		cancel()
		return nil
	})

	if a.router != nil {
		g.Go(func() error {
			a.serveStatus(ctx)
			return nil
		})
	}

	return g.Wait()
}

// serveStatus runs the status HTTP server until ctx is done. Listen errors
// are logged, not returned.
func (a *AppContext) serveStatus(ctx context.Context) {
	srv := &http.Server{
		Addr:              a.cfg.Status.Addr,
		Handler:           a.router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Debug("status server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		slog.Warn("status server error", "addr", srv.Addr, "err", err)
		return
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("status server shutdown failed", "err", err)
	}
}
