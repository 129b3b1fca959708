package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/checks"
	"github.com/sells-group/compliance-cli/internal/config"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/engine"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
	anthropicpkg "github.com/sells-group/compliance-cli/pkg/anthropic"
)

var (
	analyzeDocument  string
	analyzeOverrides string
	analyzeOutput    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Evaluate one extracted marketing document",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("analyze"); err != nil {
			return err
		}

		doc, err := loadDocument(analyzeDocument)
		if err != nil {
			return err
		}

		overrides, err := loadOverrides(analyzeOverrides)
		if err != nil {
			return err
		}

		ref, err := refdata.Load(refdata.Paths{
			RulesDir:         cfg.Refdata.RulesDir,
			RegistrationFile: cfg.Refdata.RegistrationFile,
			GlossaryFile:     cfg.Refdata.GlossaryFile,
			ProspectusFile:   cfg.Refdata.ProspectusFile,
			FalsePositives:   cfg.Refdata.FalsePositives,
		})
		if err != nil {
			return eris.Wrap(err, "load reference data")
		}

		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.APIKey)

		opts := analyzer.Options{
			Model:          cfg.Anthropic.Model,
			MaxTokens:      int64(cfg.Anthropic.MaxTokens),
			RequestTimeout: time.Duration(cfg.Anthropic.TimeoutSecs) * time.Second,
			MaxAttempts:    cfg.Anthropic.MaxAttempts,
			RequestsPerSec: cfg.Anthropic.RequestsPerSec,
		}
		if cfg.Anthropic.CachePath != "" {
			cache, err := analyzer.OpenAnswerCache(cfg.Anthropic.CachePath, cfg.Anthropic.Model)
			if err != nil {
				zap.L().Warn("answer cache unavailable, running without it", zap.Error(err))
			} else {
				defer cache.Close()
				opts.Cache = cache
			}
		}
		an := analyzer.NewClaude(anthropicClient, opts)

		eng := engine.New(ref, an, engine.Options{
			Thresholds:          thresholdsFromConfig(cfg.Thresholds),
			ConfidenceThreshold: cfg.Engine.ConfidenceThreshold,
			FundFamily:          cfg.Engine.FundFamily,
			ServiceProviders:    cfg.Engine.ServiceProviders,
			Model:               cfg.Anthropic.Model,
		})

		report, err := eng.Run(ctx, doc, overrides)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		zap.L().Info("analysis complete",
			zap.String("run_id", report.RunID),
			zap.String("fund", report.FundName),
			zap.Int("violations", len(report.Violations)),
			zap.Float64("score", report.ComplianceScore),
			zap.Int("analyzer_calls", report.Cost.AnalyzerCalls),
		)

		return emitReport(report, analyzeOutput)
	},
}

func loadDocument(path string) (*model.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read document")
	}
	var doc model.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrap(err, "parse document")
	}
	return &doc, nil
}

// loadOverrides reads the optional metadata overrides file, a flat YAML map
// of metadata field to value.
func loadOverrides(path string) (docctx.Overrides, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "read overrides")
	}
	var out docctx.Overrides
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "parse overrides")
	}
	return out, nil
}

func thresholdsFromConfig(tc config.ThresholdsConfig) checks.Thresholds {
	th := checks.Thresholds{
		DisclaimerSimilarity: tc.DisclaimerSimilarity,
		DisclaimerPartial:    tc.DisclaimerPartial,
		SecurityRepetition:   tc.SecurityRepetition,
		MinTrackRecordYears:  tc.MinTrackRecordYears,
	}
	if len(tc.ESGBands) > 0 {
		th.ESGBands = make(map[string]checks.ESGBand, len(tc.ESGBands))
		for tier, band := range tc.ESGBands {
			th.ESGBands[tier] = checks.ESGBand{Min: band.Min, Max: band.Max}
		}
	}
	return th
}

func emitReport(report *model.Report, format string) error {
	switch format {
	case "summary":
		fmt.Println(engine.Summary(report))
		return nil
	case "list":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report.Violations)
	case "json":
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	default:
		return eris.Errorf("unknown output format %q", format)
	}
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeDocument, "document", "", "extracted document JSON file (required)")
	analyzeCmd.Flags().StringVar(&analyzeOverrides, "overrides", "", "metadata overrides YAML file")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "json", "output format: json, list or summary")
	_ = analyzeCmd.MarkFlagRequired("document")
	rootCmd.AddCommand(analyzeCmd)
}
