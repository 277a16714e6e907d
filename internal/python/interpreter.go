// Package python drives the Python toolchain the MCP server runs on: the
// interpreter version check, pip installs and the server process itself.
package python

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// versionArgs asks the interpreter for its full version banner.
var versionArgs = []string{"-c", "import sys; print(sys.version)"}

// Interpreter is the Python binary used for the version check and to run the
// server. Name may be a bare command resolved through PATH.
type Interpreter struct {
	Name string
}

// NewInterpreter returns an Interpreter for the given command name.
func NewInterpreter(name string) *Interpreter {
	return &Interpreter{Name: name}
}

// CheckVersion runs the version query and returns the trimmed banner. It does
// not compare versions; any interpreter that answers with exit status 0 passes.
func (i *Interpreter) CheckVersion(ctx context.Context) (string, error) {
	slog.InfoContext(ctx, "正在检查Python环境...")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, i.Name, versionArgs...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		version := strings.TrimSpace(stdout.String())
		slog.InfoContext(ctx, "Python已安装: "+version)
		return version, nil
	case errors.As(err, &exitErr):
		slog.ErrorContext(ctx, "Python未安装或无法正常运行",
			"exit_code", exitErr.ExitCode(),
			"stderr", strings.TrimSpace(stderr.String()),
		)
		slog.ErrorContext(ctx, "请安装Python 3.6或更高版本")
		return "", fmt.Errorf("%w: %s exited with status %d", ErrInterpreterUnavailable, i.Name, exitErr.ExitCode())
	default:
		slog.ErrorContext(ctx, "检查Python失败:", "error", err)
		return "", fmt.Errorf("%w: %w", ErrInterpreterUnavailable, err)
	}
}
