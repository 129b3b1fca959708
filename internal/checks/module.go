// Package checks implements the eight independent rule evaluation modules.
// Every module consumes the document, its own rule set, the reference data,
// the entity classifier and the semantic analyzer, and emits candidate
// violations. Modules are pure with respect to their inputs except for the
// guarded caches in the document context.
package checks

import (
	"context"
	"fmt"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/classifier"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// Thresholds carries the tunable limits the modules compare against.
type Thresholds struct {
	// DisclaimerSimilarity is the word-set similarity at or above which a
	// disclaimer counts as present. Default 0.90.
	DisclaimerSimilarity float64
	// DisclaimerPartial is the similarity above which a below-threshold
	// match is reported as "present but incomplete" instead of "missing".
	// Default 0.50.
	DisclaimerPartial float64
	// SecurityRepetition is the mention count at which a security term
	// becomes a violation. Default 3.
	SecurityRepetition int
	// MinTrackRecordYears is the minimum performance history a fund-subject
	// performance slide must show. Default 5.
	MinTrackRecordYears int
	// ESGBands maps an ESG classification tier to the allowed fraction of
	// ESG content.
	ESGBands map[string]ESGBand
}

// ESGBand bounds the ESG content fraction for one classification tier.
type ESGBand struct {
	Min float64 `mapstructure:"min"`
	Max float64 `mapstructure:"max"`
}

// DefaultThresholds returns the production defaults.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DisclaimerSimilarity: 0.90,
		DisclaimerPartial:    0.50,
		SecurityRepetition:   3,
		MinTrackRecordYears:  5,
		ESGBands: map[string]ESGBand{
			"article_6": {Min: 0, Max: 0.10},
			"article_8": {Min: 0.10, Max: 1.0},
			"article_9": {Min: 0.25, Max: 1.0},
		},
	}
}

// Input is the shared read-only input of every module run.
type Input struct {
	Doc        *model.Document
	Ctx        *docctx.Context
	Ref        *refdata.Store
	Classifier *classifier.Classifier
	Analyzer   analyzer.Analyzer
	Thresholds Thresholds
}

// Result is one module's output: candidate violations plus explicit records
// of everything that could not be checked.
type Result struct {
	Violations []model.Violation
	Skipped    []model.SkippedCheck
	// Degraded notes reference data this module needed but could not get.
	Degraded []string
}

// Module is the contract all eight check modules share.
type Module interface {
	Name() model.CheckModule
	Run(ctx context.Context, in *Input) (*Result, error)
}

// All returns the eight modules in canonical order.
func All() []Module {
	return []Module{
		&Structure{},
		&Registration{},
		&Disclaimers{},
		&General{},
		&Securities{},
		&ESG{},
		&Performance{},
		&Prospectus{},
	}
}

// moduleRules fetches the module's rule set, or records degradation and
// emits the "not verified" advisory when the rule file is unavailable.
func moduleRules(in *Input, m model.CheckModule, res *Result) ([]model.Rule, bool) {
	rules, ok := in.Ref.Rules(m)
	if !ok {
		res.Degraded = append(res.Degraded, fmt.Sprintf("rule file for %s unavailable", m))
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          fmt.Sprintf("%s-unverified", m),
			Module:          m,
			Severity:        model.SeverityWarning,
			Location:        model.Location{SlideNumber: 0, Section: "document"},
			Confidence:      100,
			DetectionMethod: model.DetectionFieldCheck,
			Explanation:     fmt.Sprintf("%s checks not verified: rule data unavailable", m),
			ManualReview:    true,
		}))
		return nil, false
	}
	return rules, true
}

// findRule returns the rule with the given ID, or a fallback built from the
// arguments so a thinner rule file still produces correctly attributed
// violations.
func findRule(rules []model.Rule, id string, m model.CheckModule, sev model.Severity, desc string) model.Rule {
	for _, r := range rules {
		if r.ID == id {
			return r
		}
	}
	return model.Rule{ID: id, Module: m, Severity: sev, Description: desc}
}

// skipIfNotApplicable records a skip when the rule needs a client type the
// run does not know. Returns true when the rule should be skipped.
func skipIfNotApplicable(r model.Rule, in *Input, res *Result) bool {
	if r.Applies(in.Ctx.Metadata) {
		return false
	}
	if r.AppliesTo != "" && in.Ctx.Metadata.ClientType == model.ClientUnknown {
		res.Skipped = append(res.Skipped, model.SkippedCheck{
			RuleID: r.ID,
			Module: r.Module,
			Reason: "skipped_insufficient_metadata",
		})
	}
	return true
}

// manualReviewViolation converts an exhausted analyzer failure into the
// warning finding the error policy requires instead of failing the module.
func manualReviewViolation(r model.Rule, slide int, section string, err error) model.Violation {
	return model.NewViolation(model.Violation{
		RuleID:          r.ID,
		Module:          r.Module,
		Severity:        model.SeverityWarning,
		Location:        model.Location{SlideNumber: slide, Section: section},
		Confidence:      100,
		DetectionMethod: model.DetectionSemantic,
		Explanation:     fmt.Sprintf("manual review required: %s (analyzer unavailable: %v)", r.Description, err),
		ManualReview:    true,
	})
}

// excerpt trims evidence to a reviewable length.
func excerpt(s string) string {
	const max = 240
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
