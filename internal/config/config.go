package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Refdata    RefdataConfig    `yaml:"refdata" mapstructure:"refdata"`
	Engine     EngineConfig     `yaml:"engine" mapstructure:"engine"`
	Thresholds ThresholdsConfig `yaml:"thresholds" mapstructure:"thresholds"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// AnthropicConfig holds the semantic analyzer credentials and tuning.
type AnthropicConfig struct {
	APIKey         string  `yaml:"api_key" mapstructure:"api_key"`
	Model          string  `yaml:"model" mapstructure:"model"`
	MaxTokens      int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	MaxAttempts    int     `yaml:"max_attempts" mapstructure:"max_attempts"`
	RequestsPerSec float64 `yaml:"requests_per_sec" mapstructure:"requests_per_sec"`
	TimeoutSecs    int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	// CachePath enables the persistent answer cache when non-empty.
	CachePath string `yaml:"cache_path" mapstructure:"cache_path"`
}

// RefdataConfig locates the reference datasets on disk.
type RefdataConfig struct {
	RulesDir         string `yaml:"rules_dir" mapstructure:"rules_dir"`
	RegistrationFile string `yaml:"registration_file" mapstructure:"registration_file"`
	GlossaryFile     string `yaml:"glossary_file" mapstructure:"glossary_file"`
	ProspectusFile   string `yaml:"prospectus_file" mapstructure:"prospectus_file"`
	FalsePositives   string `yaml:"false_positives" mapstructure:"false_positives"`
}

// EngineConfig tunes the run orchestration and filtering.
type EngineConfig struct {
	ConfidenceThreshold int `yaml:"confidence_threshold" mapstructure:"confidence_threshold"`
	// FundFamily and ServiceProviders are classifier exclusions: names that
	// must never be treated as securities mentions.
	FundFamily       []string `yaml:"fund_family" mapstructure:"fund_family"`
	ServiceProviders []string `yaml:"service_providers" mapstructure:"service_providers"`
}

// ThresholdsConfig tunes the per-module check limits.
type ThresholdsConfig struct {
	DisclaimerSimilarity float64                `yaml:"disclaimer_similarity" mapstructure:"disclaimer_similarity"`
	DisclaimerPartial    float64                `yaml:"disclaimer_partial" mapstructure:"disclaimer_partial"`
	SecurityRepetition   int                    `yaml:"security_repetition" mapstructure:"security_repetition"`
	MinTrackRecordYears  int                    `yaml:"min_track_record_years" mapstructure:"min_track_record_years"`
	ESGBands             map[string]ESGBandConf `yaml:"esg_bands" mapstructure:"esg_bands"`
}

// ESGBandConf bounds the ESG content fraction for one classification tier.
type ESGBandConf struct {
	Min float64 `yaml:"min" mapstructure:"min"`
	Max float64 `yaml:"max" mapstructure:"max"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("COMPLIANCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 512)
	v.SetDefault("anthropic.max_attempts", 3)
	v.SetDefault("anthropic.requests_per_sec", 2)
	v.SetDefault("anthropic.timeout_secs", 30)
	v.SetDefault("anthropic.cache_path", "")
	v.SetDefault("refdata.rules_dir", "rules")
	// AutomaticEnv only surfaces keys viper already knows about, so every
	// field needs at least an empty default to be settable via env alone.
	v.SetDefault("refdata.registration_file", "")
	v.SetDefault("refdata.glossary_file", "")
	v.SetDefault("refdata.prospectus_file", "")
	v.SetDefault("refdata.false_positives", "")
	v.SetDefault("engine.confidence_threshold", 75)
	v.SetDefault("engine.fund_family", []string{})
	v.SetDefault("engine.service_providers", []string{})
	v.SetDefault("thresholds.disclaimer_similarity", 0.90)
	v.SetDefault("thresholds.disclaimer_partial", 0.50)
	v.SetDefault("thresholds.security_repetition", 3)
	v.SetDefault("thresholds.min_track_record_years", 5)
	v.SetDefault("thresholds.esg_bands", map[string]map[string]float64{
		"article_6": {"min": 0, "max": 0.10},
		"article_8": {"min": 0.10, "max": 1.0},
		"article_9": {"min": 0.25, "max": 1.0},
	})

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

	return &cfg, nil
}

// Validate checks that the fields a command needs are present.
func (c *Config) Validate(command string) error {
	var missing []string
	switch command {
	case "analyze":
		if c.Anthropic.APIKey == "" {
			missing = append(missing, "anthropic.api_key is required")
		}
		if c.Refdata.RulesDir == "" {
			missing = append(missing, "refdata.rules_dir is required")
		}
	case "rules":
		if c.Refdata.RulesDir == "" {
			missing = append(missing, "refdata.rules_dir is required")
		}
	}
	if len(missing) > 0 {
		return eris.New("config: " + strings.Join(missing, "; "))
	}
	return nil
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
