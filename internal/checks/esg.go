package checks

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/model"
)

// ESG computes the fraction of document text that is ESG content, one cached
// semantic judgment per slide, and compares it against the band allowed for
// the fund's declared ESG classification tier: an article-6 fund must not
// read like an impact fund, an article-9 fund must substantiate its label.
type ESG struct{}

func (e *ESG) Name() model.CheckModule { return model.ModuleESG }

// esgMarkers cheaply settle slides that obviously are or are not ESG
// content; only ambiguous slides cost an analyzer call.
var esgMarkers = []string{
	"esg", "sustainab", "durable", "nachhaltig", "climate", "climat",
	"carbon", "emission", "biodiversity", "sfdr", "article 8", "article 9",
	"social", "governance", "exclusion", "impact",
}

func (e *ESG) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleESG, res)
	if !ok {
		return res, nil
	}
	rule := findRule(rules, "ESG-SHARE", model.ModuleESG, model.SeverityMajor,
		"ESG content share must match the fund's ESG classification")

	tier := strings.ToLower(strings.TrimSpace(in.Ctx.Metadata.ESGClassification))
	if tier == "" {
		res.Skipped = append(res.Skipped, model.SkippedCheck{
			RuleID: rule.ID,
			Module: rule.Module,
			Reason: "skipped_insufficient_metadata",
		})
		return res, nil
	}
	band, ok := in.Thresholds.ESGBands[tier]
	if !ok {
		res.Skipped = append(res.Skipped, model.SkippedCheck{
			RuleID: rule.ID,
			Module: rule.Module,
			Reason: fmt.Sprintf("no ESG band configured for tier %q", tier),
		})
		return res, nil
	}

	var total, esgChars int
	lowConfidence := false
	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		if text == "" {
			continue
		}
		total += len(text)

		slideNum := slide.Number
		markerHit := containsAny(text, esgMarkers)
		isESG, err := in.Ctx.ESGSlide(ctx, slideNum, func(ctx context.Context) (bool, error) {
			if !markerHit {
				return false, nil
			}
			ans, askErr := in.Analyzer.Ask(ctx, analyzer.Question{
				Subject: "esg-content",
				Prompt: "Is this slide substantially about environmental, social or " +
					"governance characteristics of the investment strategy, rather than " +
					"merely mentioning an ESG term in passing?",
				Context: text,
				Schema:  map[string]string{"esg_content": "bool"},
			})
			if askErr != nil {
				return false, askErr
			}
			return ans.Bool("esg_content"), nil
		})
		if err != nil {
			// Count the marker hit as ESG content but flag the uncertainty.
			lowConfidence = true
			isESG = markerHit
		}
		if isESG {
			esgChars += len(text)
		}
	}

	if total == 0 {
		return res, nil
	}
	fraction := float64(esgChars) / float64(total)
	if fraction >= band.Min && fraction <= band.Max {
		return res, nil
	}

	direction := "exceeds"
	limit := band.Max
	if fraction < band.Min {
		direction = "falls short of"
		limit = band.Min
	}
	confidence := 90
	if lowConfidence {
		confidence = 60
	}
	res.Violations = append(res.Violations, model.NewViolation(model.Violation{
		RuleID:          rule.ID,
		Module:          rule.Module,
		Severity:        rule.Severity,
		Location:        model.Location{SlideNumber: 0, Section: "document"},
		Evidence:        fmt.Sprintf("ESG content share %.0f%%", fraction*100),
		Confidence:      confidence,
		DetectionMethod: model.DetectionSemantic,
		Explanation: fmt.Sprintf("%s: ESG share %.0f%% %s the %.0f%% bound for tier %q",
			rule.Description, fraction*100, direction, limit*100, tier),
		SuggestedFix: rule.SuggestedFix,
		ManualReview: lowConfidence,
	}))
	return res, nil
}
