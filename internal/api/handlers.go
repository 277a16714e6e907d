package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

// launcherService is the subset of *orchestrator.Orchestrator used by the
// HTTP handlers. Declaring it as an interface allows test doubles to be injected.
type launcherService interface {
	IsReady() bool
	IsBootstrapInProgress() bool
	Snapshot() (*orchestrator.BootstrapResult, orchestrator.Process)
}

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	launcher launcherService
}

// serverStatus describes the spawned MCP server.
type serverStatus struct {
	PID     int  `json:"pid"`
	Running bool `json:"running"`
}

// Health handles GET /health. It always returns 200 while the launcher is
// alive.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"mode":   "shallow",
	})
}

// Ready handles GET /ready.
// 200 once bootstrap succeeded and the server process is running; 503 otherwise.
func (h *Handler) Ready(c *gin.Context) {
	_, proc := h.launcher.Snapshot()
	if h.launcher.IsReady() && proc != nil && proc.Running() {
		c.JSON(http.StatusOK, gin.H{"ready": true})
		return
	}
	c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
}

// Status handles GET /status and reports the last bootstrap result with the
// server process state.
func (h *Handler) Status(c *gin.Context) {
	if h.launcher.IsBootstrapInProgress() {
		c.JSON(http.StatusOK, gin.H{"status": orchestrator.StatusInProgress})
		return
	}

	result, proc := h.launcher.Snapshot()
	if result == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "not-started"})
		return
	}

	body := gin.H{
		"status":    result.Status,
		"bootstrap": result,
	}
	if proc != nil {
		body["server"] = serverStatus{PID: proc.PID(), Running: proc.Running()}
	}
	c.JSON(http.StatusOK, body)
}
