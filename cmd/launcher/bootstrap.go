package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zxb7500644/m3u8-mcp/internal/orchestrator"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Prepare the Python environment without starting the server",
	Long: `Bootstrap runs the environment check, the dependency install and the
directory provisioning, prints a JSON result to stdout, and exits 0 on
success or 1 on failure. mcp_server.py is not started.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	defer app.shutdown()

	slog.Info("欢迎使用MCP M3U8下载器")

	result, err := app.orchestrator.RunBootstrap(context.Background())
	if err != nil {
		printResult(orchestrator.StatusError, err.Error())
		return fmt.Errorf("bootstrap failed: %w", err)
	}

	printBootstrapResult(result)

	if result.Status == orchestrator.StatusError {
		slog.Error("初始化失败，程序退出")
		return result.Err()
	}
	return nil
}

func printBootstrapResult(result *orchestrator.BootstrapResult) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", result.Status)
	}
}

func printResult(status, errMsg string) {
	result := map[string]string{"status": status}
	if errMsg != "" {
		result["error"] = errMsg
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		fmt.Fprintf(os.Stdout, `{"status":%q}`+"\n", status)
	}
}
