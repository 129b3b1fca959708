package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/model"
)

// General evaluates the flat set of independent general-conduct rules:
// source-and-date citations, opinion attenuation, anglicism glossary
// requirements, internal-limit prohibitions and so on. It is the one module
// driven entirely by the rule file, dispatching exhaustively on the
// validation variant.
type General struct{}

func (g *General) Name() model.CheckModule { return model.ModuleGeneral }

func (g *General) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleGeneral, res)
	if !ok {
		return res, nil
	}

	for _, r := range rules {
		if skipIfNotApplicable(r, in, res) {
			continue
		}

		switch v := r.Validation.(type) {
		case model.PresenceValidation:
			g.checkPresence(in, r, v, res)
		case model.AbsenceValidation:
			g.checkAbsence(in, r, v, res)
		case model.FormatValidation:
			g.checkFormat(in, r, v, res)
		case model.SemanticValidation:
			g.checkSemantic(ctx, in, r, v, res)
		case model.ExternalReferenceValidation:
			res.Skipped = append(res.Skipped, model.SkippedCheck{
				RuleID: r.ID,
				Module: r.Module,
				Reason: "external_reference rules belong to a dedicated module",
			})
		}
	}
	return res, nil
}

// checkPresence requires at least one keyword somewhere in the document.
func (g *General) checkPresence(in *Input, r model.Rule, v model.PresenceValidation, res *Result) {
	for _, slide := range in.Doc.Slides() {
		text := strings.ToLower(slide.AllText())
		for _, kw := range v.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				return
			}
		}
	}
	res.Violations = append(res.Violations, model.NewViolation(model.Violation{
		RuleID:          r.ID,
		Module:          r.Module,
		Severity:        r.Severity,
		Location:        model.Location{SlideNumber: 0, Section: "document"},
		Evidence:        fmt.Sprintf("none of %v found", v.Keywords),
		Confidence:      100,
		DetectionMethod: model.DetectionKeywordMatch,
		Explanation:     r.Description,
		SuggestedFix:    r.SuggestedFix,
	}))
}

// checkAbsence flags every slide containing a forbidden term.
func (g *General) checkAbsence(in *Input, r model.Rule, v model.AbsenceValidation, res *Result) {
	for _, slide := range in.Doc.Slides() {
		full := slide.AllText()
		lower := strings.ToLower(full)
		for _, term := range v.ForbiddenTerms {
			if idx := strings.Index(lower, strings.ToLower(term)); idx >= 0 {
				res.Violations = append(res.Violations, model.NewViolation(model.Violation{
					RuleID:          r.ID,
					Module:          r.Module,
					Severity:        r.Severity,
					Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
					Evidence:        excerpt(full[idx:]),
					Confidence:      100,
					DetectionMethod: model.DetectionKeywordMatch,
					Explanation:     fmt.Sprintf("%s: forbidden term %q", r.Description, term),
					SuggestedFix:    r.SuggestedFix,
				}))
				break // one finding per slide per rule
			}
		}
	}
}

func (g *General) checkFormat(in *Input, r model.Rule, v model.FormatValidation, res *Result) {
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		res.Skipped = append(res.Skipped, model.SkippedCheck{
			RuleID: r.ID,
			Module: r.Module,
			Reason: fmt.Sprintf("invalid format pattern: %v", err),
		})
		return
	}
	for _, slide := range in.Doc.Slides() {
		value, _ := slide.Field(v.Field)
		if value == "" {
			continue
		}
		if !re.MatchString(value) {
			res.Violations = append(res.Violations, model.NewViolation(model.Violation{
				RuleID:          r.ID,
				Module:          r.Module,
				Severity:        r.Severity,
				Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
				Evidence:        excerpt(value),
				Confidence:      100,
				DetectionMethod: model.DetectionFieldCheck,
				Explanation:     r.Description,
				SuggestedFix:    r.SuggestedFix,
			}))
		}
	}
}

// checkSemantic asks the analyzer about each slide passing the keyword
// pre-filter. The pre-filter keeps the call count proportional to relevant
// slides, not document length.
func (g *General) checkSemantic(ctx context.Context, in *Input, r model.Rule, v model.SemanticValidation, res *Result) {
	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		if text == "" || !g.keywordHit(text, v.Keywords) {
			continue
		}

		ans, err := in.Analyzer.Ask(ctx, analyzer.Question{
			Subject: "general-rule:" + r.ID,
			Prompt: v.Question +
				" Answer with \"violation\" true or false and quote the offending text in \"evidence\".",
			Context: text,
			Schema:  map[string]string{"violation": "bool", "evidence": "string"},
		})
		if err != nil {
			res.Violations = append(res.Violations, manualReviewViolation(r, slide.Number, "body", err))
			continue
		}
		if !ans.Bool("violation") {
			continue
		}
		evidence := ans.String("evidence")
		if evidence == "" {
			evidence = excerpt(text)
		}
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          r.ID,
			Module:          r.Module,
			Severity:        r.Severity,
			Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
			Evidence:        excerpt(evidence),
			Confidence:      ans.Confidence,
			DetectionMethod: model.DetectionSemantic,
			Explanation:     r.Description,
			SuggestedFix:    r.SuggestedFix,
		}))
	}
}

func (g *General) keywordHit(text string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
