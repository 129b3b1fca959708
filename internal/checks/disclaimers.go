package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// Disclaimers fuzzy-matches the required disclaimer templates, selected from
// the glossary by language, client type and management company, against the
// document's disclaimer-bearing pages.
type Disclaimers struct{}

func (d *Disclaimers) Name() model.CheckModule { return model.ModuleDisclaimers }

func (d *Disclaimers) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleDisclaimers, res)
	if !ok {
		return res, nil
	}
	missingRule := findRule(rules, "DISC-MISSING", model.ModuleDisclaimers, model.SeverityCritical,
		"Required disclaimer must be present")
	partialRule := findRule(rules, "DISC-PARTIAL", model.ModuleDisclaimers, model.SeverityMajor,
		"Required disclaimer must be complete")

	if in.Ref.Glossary == nil {
		res.Degraded = append(res.Degraded, "disclaimer glossary unavailable")
		res.Violations = append(res.Violations, d.advisory(missingRule, "disclaimer glossary unavailable"))
		return res, nil
	}

	templates := in.Ref.Glossary.Templates(in.Ctx.Metadata)
	if len(templates) == 0 {
		// No glossary entry for this (language, client type, company) key:
		// missing reference data, not a missing disclaimer.
		reason := fmt.Sprintf("no glossary entry for language=%s client_type=%s company=%s",
			in.Ctx.Metadata.Language, in.Ctx.Metadata.ClientType, in.Ctx.Metadata.ManagementCompany)
		res.Degraded = append(res.Degraded, reason)
		res.Violations = append(res.Violations, d.advisory(missingRule, reason))
		return res, nil
	}

	for _, tmpl := range templates {
		if !tmpl.Required {
			continue
		}
		d.matchTemplate(in, tmpl, missingRule, partialRule, res)
	}
	return res, nil
}

func (d *Disclaimers) matchTemplate(in *Input, tmpl refdata.DisclaimerTemplate, missingRule, partialRule model.Rule, res *Result) {
	// Structured field first: when the disclaimer page carries a dedicated
	// field for this template, that field is authoritative. The isolated
	// field compares with Jaccard, which penalizes padding that containment
	// over a whole slide would forgive.
	if dp := in.Doc.DisclaimerPage; dp != nil {
		if v, ok := dp.Content[tmpl.Key]; ok && strings.TrimSpace(v) != "" {
			d.judge(in, tmpl, missingRule, partialRule, res,
				wordSetSimilarity(tmpl.Text, v), dp.Number, v)
			return
		}
	}

	best := 0.0
	bestSlide := 0
	bestText := ""

	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		if text == "" {
			continue
		}
		sim := containmentSimilarity(tmpl.Text, text)
		if sim > best {
			best = sim
			bestSlide = slide.Number
			bestText = text
		}
	}

	d.judge(in, tmpl, missingRule, partialRule, res, best, bestSlide, bestText)
}

func (d *Disclaimers) judge(in *Input, tmpl refdata.DisclaimerTemplate, missingRule, partialRule model.Rule, res *Result, best float64, bestSlide int, bestText string) {
	switch {
	case best >= in.Thresholds.DisclaimerSimilarity:
		return
	case best >= in.Thresholds.DisclaimerPartial:
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          partialRule.ID,
			Module:          partialRule.Module,
			Severity:        partialRule.Severity,
			Location:        model.Location{SlideNumber: bestSlide, Section: "disclaimer"},
			Evidence:        excerpt(bestText),
			Confidence:      int(best * 100),
			DetectionMethod: model.DetectionKeywordMatch,
			Explanation: fmt.Sprintf("disclaimer %q present but incomplete (%.0f%% of template vocabulary)",
				tmpl.Key, best*100),
			SuggestedFix: "replace with the full canonical template text: " + excerpt(tmpl.Text),
		}))
	default:
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          missingRule.ID,
			Module:          missingRule.Module,
			Severity:        missingRule.Severity,
			Location:        model.Location{SlideNumber: 0, Section: "document"},
			Evidence:        excerpt(tmpl.Text),
			Confidence:      100,
			DetectionMethod: model.DetectionKeywordMatch,
			Explanation:     fmt.Sprintf("required disclaimer %q missing", tmpl.Key),
			SuggestedFix:    "add the canonical template text to the disclaimer slide",
		}))
	}
}

func (d *Disclaimers) advisory(rule model.Rule, reason string) model.Violation {
	return model.NewViolation(model.Violation{
		RuleID:          rule.ID,
		Module:          rule.Module,
		Severity:        model.SeverityWarning,
		Location:        model.Location{SlideNumber: 0, Section: "document"},
		Confidence:      100,
		DetectionMethod: model.DetectionCrossReference,
		Explanation:     "disclaimers not verified: " + reason,
		ManualReview:    true,
	})
}
