package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Performance gates the performance rule set on whose performance a slide
// discusses. One cached semantic call per slide resolves the subject to
// fund, market or none; only fund-subject performance triggers the track
// record, benchmark and disclaimer-adjacency checks. A slide saying "the US
// market has historically been attractive" produces subject=market and no
// findings.
type Performance struct{}

func (p *Performance) Name() model.CheckModule { return model.ModulePerformance }

var (
	performanceMarkers = []string{
		"perform", "return", "rendement", "rendite", "wertentwicklung",
		"track record", "annualized", "annualis", "ytd", "cumul",
	}
	percentFigure = regexp.MustCompile(`[+-]?\d+(?:[.,]\d+)?\s*%`)
	yearFigure    = regexp.MustCompile(`\b(19|20)\d{2}\b`)
)

func (p *Performance) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModulePerformance, res)
	if !ok {
		return res, nil
	}
	trackRule := findRule(rules, "PERF-TRACK", model.ModulePerformance, model.SeverityMajor,
		"Fund performance must show the minimum track record length")
	benchRule := findRule(rules, "PERF-BENCH", model.ModulePerformance, model.SeverityMajor,
		"Fund performance must be shown against its benchmark")
	disclaimRule := findRule(rules, "PERF-DISCLAIMER", model.ModulePerformance, model.SeverityCritical,
		"Fund performance requires the past-performance warning on the same slide")

	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		if text == "" {
			continue
		}
		if !containsAny(text, performanceMarkers) && !percentFigure.MatchString(text) {
			continue
		}

		subject, err := p.slideSubject(ctx, in, slide.Number, text)
		if err != nil {
			res.Violations = append(res.Violations, manualReviewViolation(trackRule, slide.Number, "body", err))
			continue
		}
		if subject.Subject != "fund" {
			continue
		}

		p.checkTrackRecord(in, slide, text, trackRule, res)
		p.checkBenchmark(in, slide, text, benchRule, res)
		p.checkDisclaimerAdjacency(slide, text, disclaimRule, res)
	}
	return res, nil
}

// slideSubject resolves whose performance the slide discusses, at most one
// analyzer call per slide per run via the subject cache.
func (p *Performance) slideSubject(ctx context.Context, in *Input, slideNum int, text string) (docctx.SlideSubject, error) {
	summary := in.Ctx.SlideSummaries[slideNum]
	return in.Ctx.Subject(ctx, slideNum, func(ctx context.Context) (docctx.SlideSubject, error) {
		ans, err := in.Analyzer.Ask(ctx, analyzer.Question{
			Subject: "slide-subject",
			Prompt: "This slide contains performance-like figures or claims. Are they " +
				"about the fund itself, about the broader market or an index, or about " +
				"neither? Answer \"subject\" as one of: fund, market, none.",
			Context: summary + "\n\n" + text,
			Schema:  map[string]string{"subject": "string"},
		})
		if err != nil {
			return docctx.SlideSubject{}, err
		}
		subject := strings.ToLower(ans.String("subject"))
		switch subject {
		case "fund", "market", "none":
		default:
			subject = "none"
		}
		return docctx.SlideSubject{Subject: subject, Confidence: ans.Confidence}, nil
	})
}

func (p *Performance) checkTrackRecord(in *Input, slide *model.Slide, text string, rule model.Rule, res *Result) {
	years := map[string]bool{}
	for _, y := range yearFigure.FindAllString(text, -1) {
		years[y] = true
	}
	// Slides quoting figures without any year axis are handled by the
	// benchmark and disclaimer rules; the track record rule needs a series.
	if len(years) == 0 || len(years) >= in.Thresholds.MinTrackRecordYears {
		return
	}
	res.Violations = append(res.Violations, model.NewViolation(model.Violation{
		RuleID:          rule.ID,
		Module:          rule.Module,
		Severity:        rule.Severity,
		Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
		Evidence:        fmt.Sprintf("%d distinct years of history shown", len(years)),
		Confidence:      85,
		DetectionMethod: model.DetectionFieldCheck,
		Explanation: fmt.Sprintf("%s: %d years shown, %d required",
			rule.Description, len(years), in.Thresholds.MinTrackRecordYears),
		SuggestedFix: rule.SuggestedFix,
	}))
}

func (p *Performance) checkBenchmark(in *Input, slide *model.Slide, text string, rule model.Rule, res *Result) {
	if in.Ref.Prospectus == nil || in.Ref.Prospectus.BenchmarkName == "" {
		// Cannot verify without the prospectus benchmark; the prospectus
		// module reports the degradation.
		return
	}
	lower := strings.ToLower(text)
	if strings.Contains(lower, strings.ToLower(in.Ref.Prospectus.BenchmarkName)) ||
		strings.Contains(lower, "benchmark") || strings.Contains(lower, "indice") {
		return
	}
	res.Violations = append(res.Violations, model.NewViolation(model.Violation{
		RuleID:          rule.ID,
		Module:          rule.Module,
		Severity:        rule.Severity,
		Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
		Evidence:        excerpt(text),
		Confidence:      80,
		DetectionMethod: model.DetectionCrossReference,
		Explanation: fmt.Sprintf("%s: benchmark %q not shown alongside fund performance",
			rule.Description, in.Ref.Prospectus.BenchmarkName),
		SuggestedFix: rule.SuggestedFix,
	}))
}

var pastPerformanceWarnings = []string{
	"past performance", "performances passées", "performance passée",
	"frühere wertentwicklung", "die wertentwicklung der vergangenheit",
}

func (p *Performance) checkDisclaimerAdjacency(slide *model.Slide, text string, rule model.Rule, res *Result) {
	if containsAny(text, pastPerformanceWarnings) {
		return
	}
	res.Violations = append(res.Violations, model.NewViolation(model.Violation{
		RuleID:          rule.ID,
		Module:          rule.Module,
		Severity:        rule.Severity,
		Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
		Evidence:        excerpt(text),
		Confidence:      90,
		DetectionMethod: model.DetectionKeywordMatch,
		Explanation:     rule.Description,
		SuggestedFix:    rule.SuggestedFix,
	}))
}
