// Package engine orchestrates one compliance run: it builds the document
// context, runs the eight check modules concurrently with per-module failure
// isolation, filters the merged candidate violations and aggregates the
// final report.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/checks"
	"github.com/sells-group/compliance-cli/internal/classifier"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// Options configures one engine instance.
type Options struct {
	Thresholds checks.Thresholds
	// ConfidenceThreshold is the minimum confidence a non-critical violation
	// needs to be reported. Default 75.
	ConfidenceThreshold int
	// FundFamily and ServiceProviders are configured classifier exclusions.
	FundFamily       []string
	ServiceProviders []string
	// Model prices the run's token usage in the cost summary.
	Model string
}

// statsProvider is implemented by analyzer adapters that track usage.
type statsProvider interface {
	Stats() analyzer.Stats
}

// Engine runs compliance evaluations. Safe for sequential reuse across
// documents; each run gets a fresh document context.
type Engine struct {
	ref  *refdata.Store
	an   analyzer.Analyzer
	opts Options
}

// New builds an engine. Zero option fields fall back to defaults.
func New(ref *refdata.Store, an analyzer.Analyzer, opts Options) *Engine {
	if opts.ConfidenceThreshold == 0 {
		opts.ConfidenceThreshold = 75
	}
	if opts.Thresholds.DisclaimerSimilarity == 0 {
		opts.Thresholds = checks.DefaultThresholds()
	}
	return &Engine{ref: ref, an: an, opts: opts}
}

type moduleResult struct {
	module model.CheckModule
	result *checks.Result
	err    error
}

// Run evaluates one document and produces the immutable report. Only a
// structural document failure returns an error; every module-local failure
// is converted into report metadata.
func (e *Engine) Run(ctx context.Context, doc *model.Document, overrides docctx.Overrides) (*model.Report, error) {
	started := time.Now()

	runCtx, err := docctx.New(doc, overrides)
	if err != nil {
		return nil, eris.Wrap(err, "engine: run aborted")
	}

	var before analyzer.Stats
	if sp, ok := e.an.(statsProvider); ok {
		before = sp.Stats()
	}

	in := &checks.Input{
		Doc:        doc,
		Ctx:        runCtx,
		Ref:        e.ref,
		Classifier: classifier.New(runCtx, e.an, e.opts.FundFamily, e.opts.ServiceProviders),
		Analyzer:   e.an,
		Thresholds: e.opts.Thresholds,
	}

	modules := checks.All()
	results := make([]moduleResult, len(modules))

	g, gctx := errgroup.WithContext(ctx)
	for i, m := range modules {
		i, m := i, m
		g.Go(func() error {
			results[i] = e.runModule(gctx, m, in)
			return nil
		})
	}
	// Goroutines never return errors; isolation happens in runModule.
	_ = g.Wait()

	var candidates []model.Violation
	var skipped []model.SkippedCheck
	outcomes := make([]model.ModuleOutcome, 0, len(modules))
	for _, r := range results {
		outcome := model.ModuleOutcome{Module: r.module, Status: "ran"}
		switch {
		case r.err != nil:
			outcome.Status = "skipped"
			outcome.Reason = r.err.Error()
		case len(r.result.Degraded) > 0:
			outcome.Status = "degraded"
			outcome.Reason = r.result.Degraded[0]
		}
		if r.result != nil {
			outcome.Findings = len(r.result.Violations)
			candidates = append(candidates, r.result.Violations...)
			skipped = append(skipped, r.result.Skipped...)
		}
		outcomes = append(outcomes, outcome)
	}

	kept, filteredOut := filterViolations(candidates, e.ref.FalsePositive, e.opts.ConfidenceThreshold)
	report := aggregate(doc, kept, filteredOut, skipped, outcomes)
	report.Cost = e.costSummary(before)

	zap.L().Info("engine: run complete",
		zap.String("run_id", report.RunID),
		zap.Int("candidates", len(candidates)),
		zap.Int("reported", len(kept)),
		zap.Int("filtered_out", len(filteredOut)),
		zap.Float64("compliance_score", report.ComplianceScore),
		zap.Duration("elapsed", time.Since(started)),
	)
	return report, nil
}

// runModule isolates one module: an error or panic becomes a skipped
// outcome, never an aborted run.
func (e *Engine) runModule(ctx context.Context, m checks.Module, in *checks.Input) (out moduleResult) {
	out = moduleResult{module: m.Name()}
	defer func() {
		if r := recover(); r != nil {
			out.err = eris.Errorf("module panicked: %v", r)
			zap.L().Error("engine: module panicked",
				zap.String("module", string(m.Name())),
				zap.Any("panic", r),
			)
		}
	}()

	res, err := m.Run(ctx, in)
	if err != nil {
		out.err = err
		zap.L().Error("engine: module failed",
			zap.String("module", string(m.Name())),
			zap.Error(err),
		)
		return out
	}
	out.result = res
	return out
}

func (e *Engine) costSummary(before analyzer.Stats) model.CostSummary {
	sp, ok := e.an.(statsProvider)
	if !ok {
		return model.CostSummary{}
	}
	after := sp.Stats()
	usage := after.Usage
	usage.InputTokens -= before.Usage.InputTokens
	usage.OutputTokens -= before.Usage.OutputTokens
	usage.CacheCreationInputTokens -= before.Usage.CacheCreationInputTokens
	usage.CacheReadInputTokens -= before.Usage.CacheReadInputTokens
	usage.LogCost(e.opts.Model, "analyze")
	return model.CostSummary{
		AnalyzerCalls:    after.Calls - before.Calls,
		CacheHits:        after.CacheHits - before.CacheHits,
		InputTokens:      usage.InputTokens,
		OutputTokens:     usage.OutputTokens,
		EstimatedCostUSD: usage.EstimateCost(e.opts.Model),
	}
}

// aggregate builds the report from the filtered violation set.
func aggregate(doc *model.Document, kept, filteredOut []model.Violation, skipped []model.SkippedCheck, outcomes []model.ModuleOutcome) *model.Report {
	model.SortViolations(kept)
	model.SortViolations(filteredOut)

	byModule := make(map[model.CheckModule][]model.Violation)
	bySeverity := make(map[model.Severity]int)
	bySlideViolations := make(map[int][]model.Violation)
	for _, v := range kept {
		byModule[v.Module] = append(byModule[v.Module], v)
		bySeverity[v.Severity]++
		bySlideViolations[v.Location.SlideNumber] = append(bySlideViolations[v.Location.SlideNumber], v)
	}

	var bySlide []model.SlideReport
	compliant := 0
	for _, slide := range doc.Slides() {
		vs := bySlideViolations[slide.Number]
		if len(vs) == 0 {
			compliant++
			continue
		}
		bySlide = append(bySlide, model.SlideReport{SlideNumber: slide.Number, Violations: vs})
	}
	// Document-level findings carry slide number 0.
	if vs := bySlideViolations[0]; len(vs) > 0 {
		bySlide = append([]model.SlideReport{{SlideNumber: 0, Violations: vs}}, bySlide...)
	}

	total := doc.SlideCount()
	score := 0.0
	if total > 0 {
		score = float64(compliant) / float64(total)
	}

	return &model.Report{
		RunID:           uuid.NewString(),
		GeneratedAt:     time.Now().UTC(),
		FundISIN:        doc.Metadata.FundISIN,
		FundName:        doc.Metadata.FundName,
		ComplianceScore: score,
		TotalSlides:     total,
		CompliantSlides: compliant,
		Violations:      kept,
		BySlide:         bySlide,
		ByModule:        byModule,
		BySeverity:      bySeverity,
		ModulesRun:      outcomes,
		Skipped:         skipped,
		FilteredOut:     filteredOut,
	}
}

// Summary renders a short human-readable digest of a report.
func Summary(r *model.Report) string {
	return fmt.Sprintf("%d violations (%d critical, %d major, %d warning) across %d of %d slides, score %.0f%%",
		len(r.Violations),
		r.BySeverity[model.SeverityCritical],
		r.BySeverity[model.SeverityMajor],
		r.BySeverity[model.SeverityWarning],
		r.TotalSlides-r.CompliantSlides,
		r.TotalSlides,
		r.ComplianceScore*100,
	)
}
