package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/chronicle-lab/tsreport/internal/utils"
)

// Config captures the settings required to boot the report engine.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Analysis  AnalysisConfig  `yaml:"analysis"`
	Chunking  ChunkingConfig  `yaml:"chunking"`
	Resources ResourcesConfig `yaml:"resources"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig controls the HTTP listener behaviour.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// AnalysisConfig bounds the adaptive analysis pipeline.
type AnalysisConfig struct {
	PerformanceThreshold int           `yaml:"performanceThreshold"`
	MaxWorkers           int           `yaml:"maxWorkers"`
	TaskTimeout          time.Duration `yaml:"taskTimeout"`
	ADFMaxColumns        int           `yaml:"adfMaxColumns"`
	ADFSignificance      float64       `yaml:"adfSignificance"`
}

// ChunkingConfig sizes row-range chunks against a memory budget.
type ChunkingConfig struct {
	MemoryBudgetMB float64 `yaml:"memoryBudgetMB"`
	MinChunkRows   int     `yaml:"minChunkRows"`
	MaxChunkRows   int     `yaml:"maxChunkRows"`
	OverlapRatio   float64 `yaml:"overlapRatio"`
}

// ResourcesConfig controls the in-process resource monitor.
type ResourcesConfig struct {
	MaxMemoryMB   float64 `yaml:"maxMemoryMB"`
	GCThresholdMB float64 `yaml:"gcThresholdMB"`
}

// HistoryConfig controls SQLite-backed report persistence.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Load initialises Config from a YAML file and optional environment
// overrides, then validates it.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("TSREPORT_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects programmer-error-class configuration.
func (c *Config) Validate() error {
	if c.Analysis.PerformanceThreshold <= 0 {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"analysis.performanceThreshold must be positive", nil)
	}
	if c.Analysis.MaxWorkers <= 0 {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"analysis.maxWorkers must be positive", nil)
	}
	if c.Analysis.ADFSignificance <= 0 || c.Analysis.ADFSignificance >= 1 {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"analysis.adfSignificance must be in (0, 1)", nil)
	}
	if c.Chunking.MemoryBudgetMB <= 0 {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"chunking.memoryBudgetMB must be positive", nil)
	}
	if c.Chunking.MinChunkRows <= 0 || c.Chunking.MaxChunkRows < c.Chunking.MinChunkRows {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"chunking row bounds must satisfy 0 < min <= max", nil)
	}
	if c.Chunking.OverlapRatio < 0 || c.Chunking.OverlapRatio >= 1 {
		return utils.NewAppError("config.Validate", utils.CodeInvalidConfig,
			"chunking.overlapRatio must be in [0, 1)", nil)
	}
	return nil
}

func defaultConfig() Config {
	workers := 4
	if cpus := runtime.NumCPU(); cpus < workers {
		workers = cpus
	}

	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Analysis: AnalysisConfig{
			PerformanceThreshold: 10000,
			MaxWorkers:           workers,
			TaskTimeout:          30 * time.Second,
			ADFMaxColumns:        5,
			ADFSignificance:      0.05,
		},
		Chunking: ChunkingConfig{
			MemoryBudgetMB: 500,
			MinChunkRows:   1000,
			MaxChunkRows:   1000000,
			OverlapRatio:   0.1,
		},
		Resources: ResourcesConfig{
			MaxMemoryMB:   1024,
			GCThresholdMB: 800,
		},
		History: HistoryConfig{
			Enabled: true,
			Path:    "tsreport.db",
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TSREPORT_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("TSREPORT_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("TSREPORT_PERFORMANCE_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.PerformanceThreshold = n
		}
	}
	if v := os.Getenv("TSREPORT_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Analysis.MaxWorkers = n
		}
	}
	if v := os.Getenv("TSREPORT_TASK_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Analysis.TaskTimeout = d
		}
	}
	if v := os.Getenv("TSREPORT_ADF_SIGNIFICANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Analysis.ADFSignificance = f
		}
	}
	if v := os.Getenv("TSREPORT_MEMORY_BUDGET_MB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Chunking.MemoryBudgetMB = f
		}
	}
	if v := os.Getenv("TSREPORT_MAX_MEMORY_MB"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Resources.MaxMemoryMB = f
		}
	}
	if v := os.Getenv("TSREPORT_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}
	if v := os.Getenv("TSREPORT_HISTORY_ENABLED"); v != "" {
		cfg.History.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("TSREPORT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TSREPORT_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
}
