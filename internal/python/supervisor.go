package python

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

// Supervisor starts the MCP server script under the interpreter with the
// launcher's own stdio, so whoever invoked the launcher talks to the server
// directly.
type Supervisor struct {
	Interpreter string
	Stdin       io.Reader
	Stdout      io.Writer
	Stderr      io.Writer
}

// NewSupervisor returns a Supervisor wired to os.Stdin, os.Stdout and
// os.Stderr.
func NewSupervisor(interpreter string) *Supervisor {
	return &Supervisor{
		Interpreter: interpreter,
		Stdin:       os.Stdin,
		Stdout:      os.Stdout,
		Stderr:      os.Stderr,
	}
}

// Start spawns `<interpreter> script` and returns without waiting for it. A
// missing script is returned as ErrEntryPointMissing. Failures of the spawn
// itself go to onError and leave a Process that has already finished; they
// are not returned.
//
// The child is deliberately not bound to ctx: cancelling the launcher's
// context must not kill the server.
func (s *Supervisor) Start(ctx context.Context, script string, onError func(error)) (orchestrator.Process, error) {
	slog.InfoContext(ctx, "正在启动MCP服务器...")

	if _, err := os.Stat(script); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("未找到%s文件", filepath.Base(script)), "path", script)
		return nil, fmt.Errorf("%w: %s", ErrEntryPointMissing, script)
	}

	cmd := exec.Command(s.Interpreter, script) //nolint:contextcheck
	cmd.Stdin = s.Stdin
	cmd.Stdout = s.Stdout
	cmd.Stderr = s.Stderr

	p := &Process{cmd: cmd, done: make(chan struct{})}

	if err := cmd.Start(); err != nil {
		p.err = err
		close(p.done)
		if onError != nil {
			onError(err)
		}
		return p, nil
	}

	slog.DebugContext(ctx, "server spawned", "pid", cmd.Process.Pid, "script", script)

	go func() {
		p.err = cmd.Wait()
		close(p.done)
	}()

	return p, nil
}

// Process is a server started by Supervisor.
type Process struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error
}

// PID returns the child's process id, or 0 if it never started.
func (p *Process) PID() int {
	if p.cmd.Process == nil {
		return 0
	}
	return p.cmd.Process.Pid
}

// Running reports whether the child is still alive.
func (p *Process) Running() bool {
	select {
	case <-p.done:
		return false
	default:
		return true
	}
}

// Wait blocks until the child exits and returns its exit error, or the spawn
// error when it never started.
func (p *Process) Wait() error {
	<-p.done
	return p.err
}

// Done is closed once the child has exited.
func (p *Process) Done() <-chan struct{} {
	return p.done
}
