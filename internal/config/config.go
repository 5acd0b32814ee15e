package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/observability"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/session"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
)

// Environment keys read by Load.
const (
	EnvHTTPAddr     = "EVAL_HTTP_ADDR"
	EnvSessionHost  = "EVAL_SESSION_HOST"
	EnvReadTimeout  = "EVAL_READ_TIMEOUT"
	EnvLogDir       = "EVAL_LOG_DIR"
	EnvSQLitePath   = "EVAL_SQLITE_PATH"
	EnvLogJSON      = "EVAL_LOG_JSON"
	EnvScenarioSeed = "EVAL_SCENARIO_SEED"
	EnvLogSeverity  = "EVAL_LOG_SEVERITY"
	EnvLogBuffer    = "EVAL_LOG_BUFFER"
	EnvPprofTrace   = "ENABLE_PPROF_TRACE"
)

// Config is the process configuration.
type Config struct {
	// HTTPAddr serves the viewer websocket and diagnostics.
	HTTPAddr string
	// SessionHost is the interface per-team TCP listeners bind to.
	SessionHost string
	ReadTimeout time.Duration
	// ScenarioSeed pins every session's scenario. Empty draws a fresh seed
	// per session.
	ScenarioSeed  string
	Logging       logging.Config
	Observability observability.Config
	Logger        telemetry.Logger
}

func Default() Config {
	return Config{
		HTTPAddr:    ":8001",
		SessionHost: "",
		ReadTimeout: session.DefaultReadTimeout,
		Logging:     logging.DefaultConfig(),
	}
}

// Load reads the optional dotenv files, then applies environment overrides
// on top of Default. Invalid values are reported through logger and ignored.
func Load(logger telemetry.Logger, files ...string) Config {
	logger = telemetry.Or(logger)
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Printf("failed to load env file: %v", err)
	}
	cfg := Default()
	cfg.Logger = logger
	applyEnv(&cfg, logger, os.LookupEnv)
	return cfg
}

func applyEnv(cfg *Config, logger telemetry.Logger, lookup func(string) (string, bool)) {
	get := func(key string) (string, bool) {
		raw, ok := lookup(key)
		return raw, ok && raw != ""
	}

	if raw, ok := get(EnvHTTPAddr); ok {
		cfg.HTTPAddr = raw
	}
	if raw, ok := get(EnvSessionHost); ok {
		cfg.SessionHost = raw
	}
	if raw, ok := get(EnvReadTimeout); ok {
		if value, err := parseTimeout(raw); err == nil {
			cfg.ReadTimeout = value
		} else {
			logger.Printf("invalid %s=%q: %v", EnvReadTimeout, raw, err)
		}
	}
	if raw, ok := get(EnvLogDir); ok {
		cfg.Logging.Evaluation.Dir = raw
	}
	if raw, ok := get(EnvSQLitePath); ok {
		cfg.Logging.SQLite.Path = raw
		if !cfg.Logging.HasSink(logging.SinkSQLite) {
			cfg.Logging.EnabledSinks = append(cfg.Logging.EnabledSinks, logging.SinkSQLite)
		}
	}
	if raw, ok := get(EnvLogJSON); ok {
		cfg.Logging.JSON.FilePath = raw
		if !cfg.Logging.HasSink(logging.SinkJSON) {
			cfg.Logging.EnabledSinks = append(cfg.Logging.EnabledSinks, logging.SinkJSON)
		}
	}
	if raw, ok := get(EnvScenarioSeed); ok {
		cfg.ScenarioSeed = raw
	}
	if raw, ok := get(EnvLogSeverity); ok {
		if value, ok := logging.ParseSeverity(raw); ok {
			cfg.Logging.MinimumSeverity = value
		} else {
			logger.Printf("invalid %s=%q: expected debug, info, warn or error", EnvLogSeverity, raw)
		}
	}
	if raw, ok := get(EnvLogBuffer); ok {
		if value, err := strconv.Atoi(raw); err == nil && value > 0 {
			cfg.Logging.BufferSize = value
		} else {
			logger.Printf("invalid %s=%q: must be a positive integer", EnvLogBuffer, raw)
		}
	}
	if raw, ok := get(EnvPprofTrace); ok {
		if value, err := strconv.ParseBool(raw); err == nil {
			cfg.Observability.EnablePprofTrace = value
		} else {
			logger.Printf("invalid %s=%q: %v", EnvPprofTrace, raw, err)
		}
	}
}

// parseTimeout accepts a Go duration or a plain number of seconds.
func parseTimeout(raw string) (time.Duration, error) {
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0, errors.New("must be positive")
		}
		return time.Duration(seconds * float64(time.Second)), nil
	}
	value, err := time.ParseDuration(raw)
	if err != nil {
		return 0, err
	}
	if value <= 0 {
		return 0, errors.New("must be positive")
	}
	return value, nil
}
