package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration for the launcher.
type Config struct {
	Python    PythonConfig    `mapstructure:"python"`
	Paths     PathsConfig     `mapstructure:"paths"`
	Provision ProvisionConfig `mapstructure:"provision"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Status    StatusConfig    `mapstructure:"status"`
	Notify    NotifyConfig    `mapstructure:"notify"`
}

type PythonConfig struct {
	Interpreter    string `mapstructure:"interpreter"`
	PackageManager string `mapstructure:"package_manager"`
}

// PathsConfig locates the manifest and entry point. Relative Manifest and
// EntryPoint values resolve against BaseDir; Directories resolve against the
// working directory.
type PathsConfig struct {
	BaseDir     string   `mapstructure:"base_dir"`
	Manifest    string   `mapstructure:"manifest"`
	EntryPoint  string   `mapstructure:"entry_point"`
	Directories []string `mapstructure:"directories"`
}

type ProvisionConfig struct {
	Strict bool `mapstructure:"strict"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	ServiceName  string `mapstructure:"service_name"`
	LogLevel     string `mapstructure:"log_level"`
	LogFile      string `mapstructure:"log_file"`
}

type StatusConfig struct {
	Addr string `mapstructure:"addr"`
}

type NotifyConfig struct {
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// Load reads config from the optional YAML file at path, then overlays
// environment variables with the M3U8_LAUNCHER_ prefix
// (e.g. M3U8_LAUNCHER_PYTHON_INTERPRETER).
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("M3U8_LAUNCHER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if cfg.Paths.BaseDir == "" {
		dir, err := executableDir()
		if err != nil {
			return nil, fmt.Errorf("resolving launcher directory: %w", err)
		}
		cfg.Paths.BaseDir = dir
	}

	return &cfg, nil
}

// ManifestPath returns the absolute-or-base-relative path of the dependency
// manifest.
func (p PathsConfig) ManifestPath() string {
	return p.resolve(p.Manifest)
}

// EntryPointPath returns the path of the server script.
func (p PathsConfig) EntryPointPath() string {
	return p.resolve(p.EntryPoint)
}

func (p PathsConfig) resolve(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(p.BaseDir, name)
}

func executableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("python.interpreter", "python")
	v.SetDefault("python.package_manager", "pip")

	v.SetDefault("paths.base_dir", "")
	v.SetDefault("paths.manifest", "requirements.txt")
	v.SetDefault("paths.entry_point", "mcp_server.py")
	v.SetDefault("paths.directories", []string{"ts_files", "output"})

	v.SetDefault("provision.strict", false)

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.otlp_insecure", true)
	v.SetDefault("telemetry.service_name", "m3u8-mcp-launcher")
	v.SetDefault("telemetry.log_level", "info")
	v.SetDefault("telemetry.log_file", "")

	v.SetDefault("status.addr", "")

	v.SetDefault("notify.nats_url", "")
	v.SetDefault("notify.subject", "m3u8.launcher.events")
}
