package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 512, cfg.Anthropic.MaxTokens)
	assert.Equal(t, 3, cfg.Anthropic.MaxAttempts)
	assert.InDelta(t, 2.0, cfg.Anthropic.RequestsPerSec, 0.001)
	assert.Equal(t, 30, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, "rules", cfg.Refdata.RulesDir)
	assert.Equal(t, 75, cfg.Engine.ConfidenceThreshold)
	assert.InDelta(t, 0.90, cfg.Thresholds.DisclaimerSimilarity, 0.001)
	assert.InDelta(t, 0.50, cfg.Thresholds.DisclaimerPartial, 0.001)
	assert.Equal(t, 3, cfg.Thresholds.SecurityRepetition)
	assert.Equal(t, 5, cfg.Thresholds.MinTrackRecordYears)
	assert.InDelta(t, 0.10, cfg.Thresholds.ESGBands["article_6"].Max, 0.001)
	assert.InDelta(t, 0.25, cfg.Thresholds.ESGBands["article_9"].Min, 0.001)
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
  format: console
anthropic:
  model: claude-sonnet-4-5-20250929
engine:
  confidence_threshold: 60
  fund_family:
    - ACME Global Equity Fund
refdata:
  rules_dir: /etc/compliance/rules
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, 60, cfg.Engine.ConfidenceThreshold)
	assert.Equal(t, []string{"ACME Global Equity Fund"}, cfg.Engine.FundFamily)
	assert.Equal(t, "/etc/compliance/rules", cfg.Refdata.RulesDir)
	// Defaults still apply for unset values
	assert.Equal(t, 512, cfg.Anthropic.MaxTokens)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	yaml := `
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("COMPLIANCE_LOG_LEVEL", "warn")
	t.Setenv("COMPLIANCE_ANTHROPIC_API_KEY", "sk-ant-test")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "sk-ant-test", cfg.Anthropic.APIKey)
}

func TestLoadEnvOnlyKeys(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	// No config file: keys without a non-empty default must still be
	// reachable through the environment alone.
	t.Setenv("COMPLIANCE_ANTHROPIC_API_KEY", "sk-ant-env-only")
	t.Setenv("COMPLIANCE_ANTHROPIC_CACHE_PATH", "/tmp/answers.db")
	t.Setenv("COMPLIANCE_REFDATA_REGISTRATION_FILE", "reg.xlsx")
	t.Setenv("COMPLIANCE_REFDATA_GLOSSARY_FILE", "glossary.yaml")
	t.Setenv("COMPLIANCE_REFDATA_PROSPECTUS_FILE", "facts.json")
	t.Setenv("COMPLIANCE_REFDATA_FALSE_POSITIVES", "patterns.yaml")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-env-only", cfg.Anthropic.APIKey)
	assert.Equal(t, "/tmp/answers.db", cfg.Anthropic.CachePath)
	assert.Equal(t, "reg.xlsx", cfg.Refdata.RegistrationFile)
	assert.Equal(t, "glossary.yaml", cfg.Refdata.GlossaryFile)
	assert.Equal(t, "facts.json", cfg.Refdata.ProspectusFile)
	assert.Equal(t, "patterns.yaml", cfg.Refdata.FalsePositives)

	require.NoError(t, cfg.Validate("analyze"))
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })

	t.Setenv("COMPLIANCE_ENGINE_CONFIDENCE_THRESHOLD", "80")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 80, cfg.Engine.ConfidenceThreshold)
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

func TestValidateAnalyze_AllPresent(t *testing.T) {
	cfg := &Config{}
	cfg.Anthropic.APIKey = "sk-ant-key"
	cfg.Refdata.RulesDir = "rules"

	assert.NoError(t, cfg.Validate("analyze"))
}

func TestValidateAnalyze_MissingFields(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate("analyze")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic.api_key is required")
	assert.Contains(t, err.Error(), "refdata.rules_dir is required")
}

func TestValidateRules_MissingDir(t *testing.T) {
	cfg := &Config{}

	err := cfg.Validate("rules")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "refdata.rules_dir is required")
}
