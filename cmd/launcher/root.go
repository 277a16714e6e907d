package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/zxb7500644/m3u8-mcp/internal/config"
	"github.com/zxb7500644/m3u8-mcp/internal/telemetry"
)

var (
	cfgFile  string
	logLevel string

	// cfg is populated by PersistentPreRunE and shared with all subcommands.
	cfg *config.Config

	// app holds all wired dependencies; populated by PersistentPreRunE.
	app *AppContext
)

var rootCmd = &cobra.Command{
	Use:   "m3u8-mcp",
	Short: "Bootstrap and start the M3U8 downloader MCP server",
	Long: `m3u8-mcp prepares the Python environment for the M3U8 downloader MCP
server and starts it on this process's stdin/stdout.

With no subcommand it runs, in order: the Python environment check,
pip install -r requirements.txt, creation of the ts_files and output
directories, and the launch of mcp_server.py. Any failure before the
launch exits with status 1.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runLaunch,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (YAML)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, err := initLogger(logLevel, ""); err != nil {
			return err
		}

		var err error
		cfg, err = config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		// --log-level flag takes precedence over value in config file.
		if cmd.Flags().Changed("log-level") {
			cfg.Telemetry.LogLevel = logLevel
		}

		app, err = buildAppContext(cfg)
		if err != nil {
			return fmt.Errorf("building app context: %w", err)
		}

		return nil
	}

	rootCmd.AddCommand(bootstrapCmd)
}

// Execute is the entry point called by main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initLogger installs the default logger. Diagnostics go to stderr; stdout
// belongs to the MCP server once it is launched.
func initLogger(level, logFile string) (func() error, error) {
	logger, closer, err := telemetry.NewLogger(level, os.Stderr, logFile)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	return closer.Close, nil
}
