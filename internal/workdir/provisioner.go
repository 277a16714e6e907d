// Package workdir creates the working directories the MCP server expects to
// find next to it.
package workdir

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

// Provisioner ensures a set of directories exists. Relative paths resolve
// against the process working directory.
type Provisioner struct {
	perm  fs.FileMode
	stat  func(string) (fs.FileInfo, error)
	mkdir func(string, fs.FileMode) error
}

// NewProvisioner returns a Provisioner that creates directories with 0755.
func NewProvisioner() *Provisioner {
	return &Provisioner{
		perm:  0o755,
		stat:  os.Stat,
		mkdir: os.MkdirAll,
	}
}

// Ensure walks dirs in order. A directory that cannot be created is logged
// and reported with DirFailed; the remaining directories are still handled.
func (p *Provisioner) Ensure(ctx context.Context, dirs []string) []orchestrator.DirResult {
	slog.InfoContext(ctx, "正在创建必要的目录...")

	results := make([]orchestrator.DirResult, 0, len(dirs))
	for _, dir := range dirs {
		results = append(results, p.ensureOne(ctx, dir))
	}
	return results
}

func (p *Provisioner) ensureOne(ctx context.Context, dir string) orchestrator.DirResult {
	info, err := p.stat(dir)
	switch {
	case err == nil && info.IsDir():
		slog.InfoContext(ctx, "目录已存在: "+dir)
		return orchestrator.DirResult{Path: dir, Status: orchestrator.DirExists}
	case err == nil:
		err = fmt.Errorf("%s exists and is not a directory", dir)
	case errors.Is(err, fs.ErrNotExist):
		err = p.mkdir(dir, p.perm)
		if err == nil {
			slog.InfoContext(ctx, "创建目录: "+dir)
			return orchestrator.DirResult{Path: dir, Status: orchestrator.DirCreated}
		}
	}

	slog.ErrorContext(ctx, fmt.Sprintf("创建目录 %s 失败:", dir), "error", err)
	return orchestrator.DirResult{Path: dir, Status: orchestrator.DirFailed, Error: err.Error()}
}
