package python

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
)

// Installer installs a requirements manifest with pip (or a compatible
// package manager). The package manager's output streams straight to the
// console so progress is visible live.
type Installer struct {
	PackageManager string
	Stdout         io.Writer
	Stderr         io.Writer
}

// NewInstaller returns an Installer writing pip output to the launcher's
// stderr. The launcher's stdout is reserved for the server's protocol stream.
func NewInstaller(packageManager string) *Installer {
	return &Installer{
		PackageManager: packageManager,
		Stdout:         os.Stderr,
		Stderr:         os.Stderr,
	}
}

// Install runs `<package-manager> install -r manifest` once. A missing
// manifest fails before anything is executed.
func (in *Installer) Install(ctx context.Context, manifest string) error {
	slog.InfoContext(ctx, "正在安装依赖...")

	if _, err := os.Stat(manifest); err != nil {
		slog.ErrorContext(ctx, fmt.Sprintf("缺少%s文件", filepath.Base(manifest)), "path", manifest)
		return fmt.Errorf("%w: %s", ErrManifestMissing, manifest)
	}

	cmd := exec.CommandContext(ctx, in.PackageManager, "install", "-r", manifest)
	cmd.Stdout = in.Stdout
	cmd.Stderr = in.Stderr

	err := cmd.Run()

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		slog.InfoContext(ctx, "依赖安装成功")
		return nil
	case errors.As(err, &exitErr):
		slog.ErrorContext(ctx, "依赖安装失败", "exit_code", exitErr.ExitCode())
		return fmt.Errorf("%w: %s exited with status %d", ErrInstallFailed, in.PackageManager, exitErr.ExitCode())
	default:
		slog.ErrorContext(ctx, "安装依赖时出错:", "error", err)
		return fmt.Errorf("%w: %w", ErrInstallFailed, err)
	}
}
