package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"pddlgrader/internal/common/cache"
	"pddlgrader/internal/common/mq"
	"pddlgrader/internal/common/storage"
	"pddlgrader/internal/grader/model"
	"pddlgrader/internal/grader/solver"
	"pddlgrader/pkg/utils/logger"

	"gopkg.in/yaml.v3"
)

const (
	defaultBaselineDomain = "./baseline_domain.pddl"
	defaultWorkers        = 8
	defaultSolveTimeout   = 10 * time.Minute
	defaultStoreTimeout   = 10 * time.Second

	backendFile   = "file"
	backendRedis  = "redis"
	backendObject = "object"
)

// ModeConfig holds the inputs and outputs of one grading mode.
type ModeConfig struct {
	SubmissionsDir    string `yaml:"submissionsDir"`
	BaselineProblem   string `yaml:"baselineProblem"`
	Output            string `yaml:"output"`
	AcceptedDecisions string `yaml:"acceptedDecisions"`
	RejectedDecisions string `yaml:"rejectedDecisions"`
	// KnownWrong lists reference submissions whose plans fail without a prompt.
	KnownWrong []string `yaml:"knownWrong"`
}

// GradingConfig holds worker pool and judge settings.
type GradingConfig struct {
	Workers      int           `yaml:"workers"`
	SolveTimeout time.Duration `yaml:"solveTimeout"`
	Judge        string        `yaml:"judge"`
}

// DecisionsConfig selects where judgments are persisted.
type DecisionsConfig struct {
	Backend   string        `yaml:"backend"`
	KeyPrefix string        `yaml:"keyPrefix"`
	Timeout   time.Duration `yaml:"timeout"`
}

// ReportConfig controls report upload.
type ReportConfig struct {
	Upload bool   `yaml:"upload"`
	Prefix string `yaml:"prefix"`
}

// AppConfig holds pddl-grader config.
type AppConfig struct {
	Logger         logger.Config       `yaml:"logger"`
	Solver         solver.Config       `yaml:"solver"`
	Grading        GradingConfig       `yaml:"grading"`
	BaselineDomain string              `yaml:"baselineDomain"`
	Mode1          ModeConfig          `yaml:"mode1"`
	Mode2          ModeConfig          `yaml:"mode2"`
	Decisions      DecisionsConfig     `yaml:"decisions"`
	Report         ReportConfig        `yaml:"report"`
	Redis          cache.RedisConfig   `yaml:"redis"`
	MinIO          storage.MinIOConfig `yaml:"minio"`
	Kafka          mq.KafkaConfig      `yaml:"kafka"`
}

// loadAppConfig reads path. A missing file at the default path yields the built-in defaults.
func loadAppConfig(path string, required bool) (*AppConfig, error) {
	cfg := &AppConfig{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file failed: %w", err)
		}
	case errors.Is(err, fs.ErrNotExist) && !required:
	default:
		return nil, fmt.Errorf("read config file failed: %w", err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *AppConfig) {
	cfg.Solver.ApplyDefaults()
	if cfg.Grading.Workers <= 0 {
		cfg.Grading.Workers = defaultWorkers
	}
	if cfg.Grading.SolveTimeout <= 0 {
		cfg.Grading.SolveTimeout = defaultSolveTimeout
	}
	if cfg.Grading.Judge == "" {
		cfg.Grading.Judge = "console"
	}
	if cfg.BaselineDomain == "" {
		cfg.BaselineDomain = defaultBaselineDomain
	}
	applyModeDefaults(&cfg.Mode1, 1)
	applyModeDefaults(&cfg.Mode2, 2)
	if cfg.Decisions.Backend == "" {
		cfg.Decisions.Backend = backendFile
	}
	cfg.Decisions.Backend = strings.ToLower(cfg.Decisions.Backend)
	if cfg.Decisions.Timeout <= 0 {
		cfg.Decisions.Timeout = defaultStoreTimeout
	}
	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
	}
}

func applyModeDefaults(m *ModeConfig, n int) {
	if m.SubmissionsDir == "" {
		m.SubmissionsDir = fmt.Sprintf("./pddl_%d_submissions", n)
	}
	if m.BaselineProblem == "" {
		m.BaselineProblem = fmt.Sprintf("./baseline_problem_%d.pddl", n)
	}
	if m.Output == "" {
		m.Output = fmt.Sprintf("pddl_%d_grades.csv", n)
	}
	if m.AcceptedDecisions == "" {
		m.AcceptedDecisions = fmt.Sprintf("pddl_%d_accepted.json", n)
	}
	if m.RejectedDecisions == "" {
		m.RejectedDecisions = fmt.Sprintf("pddl_%d_rejected.json", n)
	}
}

func validate(cfg *AppConfig) error {
	switch cfg.Decisions.Backend {
	case backendFile:
	case backendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("decisions backend redis requires redis.addr")
		}
	case backendObject:
		if !cfg.MinIO.Enabled() || cfg.MinIO.Bucket == "" {
			return fmt.Errorf("decisions backend object requires minio.endpoint and minio.bucket")
		}
	default:
		return fmt.Errorf("unknown decisions backend %q", cfg.Decisions.Backend)
	}
	if cfg.Report.Upload && (!cfg.MinIO.Enabled() || cfg.MinIO.Bucket == "") {
		return fmt.Errorf("report upload requires minio.endpoint and minio.bucket")
	}
	return nil
}

// ForMode returns the settings of the selected mode.
func (c *AppConfig) ForMode(mode model.Mode) ModeConfig {
	if mode == model.ModeProblem {
		return c.Mode2
	}
	return c.Mode1
}

// Inputs returns the baseline domain and problem to solve, and the fixed file paired with
// every student file.
func (c *AppConfig) Inputs(mode model.Mode) (domain, problem, fixed string) {
	m := c.ForMode(mode)
	if mode == model.ModeDomain {
		return c.BaselineDomain, m.BaselineProblem, m.BaselineProblem
	}
	return c.BaselineDomain, m.BaselineProblem, c.BaselineDomain
}
