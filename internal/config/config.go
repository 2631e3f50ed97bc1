package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/lca-gsa/internal/model"
)

// Config holds the full application configuration.
type Config struct {
	Cache        CacheConfig        `yaml:"cache" mapstructure:"cache"`
	Simulation   SimulationConfig   `yaml:"simulation" mapstructure:"simulation"`
	Sensitivity  SensitivityConfig  `yaml:"sensitivity" mapstructure:"sensitivity"`
	Contribution ContributionConfig `yaml:"contribution" mapstructure:"contribution"`
	Validation   ValidationConfig   `yaml:"validation" mapstructure:"validation"`
	Engine       EngineConfig       `yaml:"engine" mapstructure:"engine"`
	Ledger       LedgerConfig       `yaml:"ledger" mapstructure:"ledger"`
	Retry        RetryConfig        `yaml:"retry" mapstructure:"retry"`
	Log          LogConfig          `yaml:"log" mapstructure:"log"`
	Metrics      MetricsConfig      `yaml:"metrics" mapstructure:"metrics"`
}

// CacheConfig locates the result cache.
type CacheConfig struct {
	Root        string `yaml:"root" mapstructure:"root"`
	Fingerprint string `yaml:"fingerprint" mapstructure:"fingerprint"`
}

// SimulationConfig holds default Monte Carlo settings.
type SimulationConfig struct {
	Iterations int   `yaml:"iterations" mapstructure:"iterations"`
	ChunkSize  int   `yaml:"chunk_size" mapstructure:"chunk_size"`
	Seed       int64 `yaml:"seed" mapstructure:"seed"`
}

// SensitivityConfig configures method selection and the non-linear fallback.
type SensitivityConfig struct {
	LinearityThreshold   float64 `yaml:"linearity_threshold" mapstructure:"linearity_threshold"`
	BoostingRounds       int     `yaml:"boosting_rounds" mapstructure:"boosting_rounds"`
	BoostingLearningRate float64 `yaml:"boosting_learning_rate" mapstructure:"boosting_learning_rate"`
}

// ContributionConfig bounds the graph traversal.
type ContributionConfig struct {
	Cutoff  float64 `yaml:"cutoff" mapstructure:"cutoff"`
	MaxCalc int     `yaml:"max_calc" mapstructure:"max_calc"`
}

// ValidationConfig holds the default influential sweep.
type ValidationConfig struct {
	MinInfluential  int `yaml:"min_influential" mapstructure:"min_influential"`
	MaxInfluential  int `yaml:"max_influential" mapstructure:"max_influential"`
	StepInfluential int `yaml:"step_influential" mapstructure:"step_influential"`
	Iterations      int `yaml:"iterations" mapstructure:"iterations"`
}

// EngineConfig locates the inventory model database.
type EngineConfig struct {
	ModelDB string `yaml:"model_db" mapstructure:"model_db"`
}

// LedgerConfig locates the run ledger database.
type LedgerConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// RetryConfig bounds retries of transient engine failures in long commands.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff     time.Duration `yaml:"max_backoff" mapstructure:"max_backoff"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MetricsConfig configures the prometheus textfile dump.
type MetricsConfig struct {
	Textfile string `yaml:"textfile" mapstructure:"textfile"`
}

// SimulationDefaults converts the simulation section to a model config.
func (c *Config) SimulationDefaults() model.SimulationConfig {
	return model.SimulationConfig{
		Iterations: c.Simulation.Iterations,
		ChunkSize:  c.Simulation.ChunkSize,
		Seed:       c.Simulation.Seed,
	}
}

// ValidationDefaults converts the validation section to a model config.
func (c *Config) ValidationDefaults() model.ValidationConfig {
	return model.ValidationConfig{
		MinInfluential:  c.Validation.MinInfluential,
		MaxInfluential:  c.Validation.MaxInfluential,
		StepInfluential: c.Validation.StepInfluential,
		Iterations:      c.Validation.Iterations,
	}
}

// Validate checks bounds that would otherwise surface deep inside a run.
func (c *Config) Validate() error {
	var errs []string
	if c.Cache.Root == "" {
		errs = append(errs, "cache.root is required")
	}
	if c.Sensitivity.LinearityThreshold < 0 || c.Sensitivity.LinearityThreshold > 1 {
		errs = append(errs, "sensitivity.linearity_threshold must be between 0 and 1")
	}
	if c.Sensitivity.BoostingRounds <= 0 {
		errs = append(errs, "sensitivity.boosting_rounds must be > 0")
	}
	if c.Sensitivity.BoostingLearningRate <= 0 || c.Sensitivity.BoostingLearningRate > 1 {
		errs = append(errs, "sensitivity.boosting_learning_rate must be in (0, 1]")
	}
	if c.Contribution.Cutoff < 0 || c.Contribution.Cutoff >= 1 {
		errs = append(errs, "contribution.cutoff must be in [0, 1)")
	}
	if c.Contribution.MaxCalc <= 0 {
		errs = append(errs, "contribution.max_calc must be > 0")
	}
	if c.Retry.MaxAttempts <= 0 {
		errs = append(errs, "retry.max_attempts must be > 0")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("GSA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	v.SetDefault("cache.root", filepath.Join(home, "gsa-dash-cache"))
	v.SetDefault("cache.fingerprint", "strict")
	v.SetDefault("simulation.iterations", 500)
	v.SetDefault("simulation.chunk_size", 50)
	v.SetDefault("simulation.seed", 923458)
	v.SetDefault("sensitivity.linearity_threshold", 0.7)
	v.SetDefault("sensitivity.boosting_rounds", 100)
	v.SetDefault("sensitivity.boosting_learning_rate", 0.1)
	v.SetDefault("contribution.cutoff", 0.005)
	v.SetDefault("contribution.max_calc", 10000)
	v.SetDefault("validation.min_influential", 10)
	v.SetDefault("validation.max_influential", 60)
	v.SetDefault("validation.step_influential", 10)
	v.SetDefault("validation.iterations", 100)
	v.SetDefault("engine.model_db", "")
	v.SetDefault("ledger.path", "")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff", time.Second)
	v.SetDefault("retry.max_backoff", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("metrics.textfile", "")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	// Database paths default to files under the cache root.
	if cfg.Engine.ModelDB == "" {
		cfg.Engine.ModelDB = filepath.Join(cfg.Cache.Root, "model.db")
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = filepath.Join(cfg.Cache.Root, "ledger.db")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
