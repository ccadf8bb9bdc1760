package application

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/tarasyarema/interviewer/internal/relay"
	"github.com/tarasyarema/interviewer/internal/server"
	zlog "github.com/tarasyarema/interviewer/pkg/log"
	"github.com/tarasyarema/interviewer/pkg/metrics"
	zviper "github.com/tarasyarema/interviewer/pkg/util/viper"
)

// Application is the main runtime container for the relay service.
// It owns configuration, logging and the server lifecycle.
type Application struct {
	cfg *zviper.Config
	srv *server.Server
}

// New creates a new Application instance.
func New() *Application {
	return &Application{}
}

// Run is the entry of the relay application. It loads configuration,
// initializes logging and metrics, and serves until ctx is cancelled.
//
// Configuration file resolution priority:
//  1. Default: ./config.yaml (optional; defaults apply when missing)
//  2. Env: INTERVIEWER_CONFIG_FILE_PATH
//  3. CLI: --config <path> or --config=<path>
func (a *Application) Run(ctx context.Context) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	a.cfg = cfg

	if err := a.initLogging(); err != nil {
		return err
	}

	srvCfg, err := a.serverConfig()
	if err != nil {
		return err
	}

	metrics.Register(metrics.GetRegisterer())

	srv, err := server.New(srvCfg, relay.NewCoordinator())
	if err != nil {
		return err
	}
	a.srv = srv

	return srv.Run(ctx)
}

// Config returns the loaded configuration, if any.
func (a *Application) Config() *zviper.Config {
	return a.cfg
}

// loadConfig resolves the config file path and loads it via the viper wrapper.
// A missing default config file is not an error; explicit paths must exist.
func (a *Application) loadConfig() (*zviper.Config, error) {
	configPath := "./config.yaml"
	explicit := false

	if envPath := os.Getenv("INTERVIEWER_CONFIG_FILE_PATH"); envPath != "" {
		configPath = envPath
		explicit = true
	}

	args := os.Args[1:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--config" {
			if i+1 >= len(args) {
				return nil, fmt.Errorf("missing value after --config")
			}
			configPath = args[i+1]
			explicit = true
			i++
			continue
		}
		if strings.HasPrefix(arg, "--config=") {
			if val := strings.TrimPrefix(arg, "--config="); val != "" {
				configPath = val
				explicit = true
			}
			continue
		}
	}

	cfg := zviper.New()
	cfg.SetDefault("server.port", defaultPort)
	cfg.SetDefault("server.bind", "")
	cfg.SetDefault("server.metrics-port", 0)
	cfg.SetDefault("server.write-pool-size", 0)

	if err := cfg.LoadFile(configPath); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config file %q: %w", configPath, err)
		}
	}

	return cfg, nil
}

// defaultPort is the WebSocket port used when nothing else is configured.
const defaultPort = 1337

// serverConfig builds the listener configuration.
//
// The bare PORT environment variable is honored for compatibility with
// platform schedulers that inject it; it takes precedence over the file.
func (a *Application) serverConfig() (server.Config, error) {
	var cfg server.Config
	if err := a.cfg.UnmarshalKey("server", &cfg); err != nil {
		return server.Config{}, fmt.Errorf("invalid server config: %w", err)
	}

	if raw := strings.TrimSpace(os.Getenv("PORT")); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil {
			return server.Config{}, fmt.Errorf("invalid PORT %q: %w", raw, err)
		}
		cfg.Port = port
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return server.Config{}, fmt.Errorf("port %d out of range", cfg.Port)
	}

	return cfg, nil
}

// initLogging configures the process-wide logger based on
// INTERVIEWER_LOG_* env vars, falling back to the "logging" config section.
//
// Priority:
//   - INTERVIEWER_LOG_LEVEL: log level (default "info").
//   - INTERVIEWER_LOG_STDOUT: whether to log to stdout (default true).
//   - INTERVIEWER_LOG_FORMAT: log format ("text" or "json", default "text").
//   - INTERVIEWER_LOG_FILE_DIR: log directory.
//   - INTERVIEWER_LOG_FILE: log file name (empty means no file).
func (a *Application) initLogging() error {
	cfg := &zlog.Config{
		Level:  getenvDefault("INTERVIEWER_LOG_LEVEL", "info"),
		Format: getenvDefault("INTERVIEWER_LOG_FORMAT", "text"),
		Stdout: getenvBool("INTERVIEWER_LOG_STDOUT", true),
		File: zlog.FileLogConfig{
			RootPath: getenvDefault("INTERVIEWER_LOG_FILE_DIR", ""),
			Filename: getenvDefault("INTERVIEWER_LOG_FILE", ""),
		},
	}

	if a.cfg != nil {
		var fileCfg zlog.Config
		if err := a.cfg.UnmarshalKey("logging", &fileCfg); err == nil && fileCfg.Level != "" {
			if os.Getenv("INTERVIEWER_LOG_LEVEL") == "" {
				cfg.Level = fileCfg.Level
			}
			if os.Getenv("INTERVIEWER_LOG_FORMAT") == "" && fileCfg.Format != "" {
				cfg.Format = fileCfg.Format
			}
			if fileCfg.File.Filename != "" && cfg.File.Filename == "" {
				cfg.File = fileCfg.File
			}
		}
	}

	logger, props, err := zlog.InitLogger(cfg)
	if err != nil {
		return fmt.Errorf("init global logger: %w", err)
	}
	zlog.ReplaceGlobals(logger, props)
	return nil
}

func getenvDefault(key, def string) string {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	return val
}

func getenvBool(key string, def bool) bool {
	val := strings.TrimSpace(os.Getenv(key))
	if val == "" {
		return def
	}
	switch strings.ToLower(val) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}
