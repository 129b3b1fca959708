package checks

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// Registration extracts the document's explicit distribution-authorization
// statement with a single analyzer call and cross-references the named
// countries against the registration table. One call per document, not per
// country: the analyzer returns the full list, normalization and the set
// difference are deterministic.
type Registration struct{}

func (g *Registration) Name() model.CheckModule { return model.ModuleRegistration }

// authorizationMarkers locate the slides carrying an explicit distribution
// statement so the analyzer sees only the relevant text.
var authorizationMarkers = []string{
	"authoris", "authoriz", "registered for distribution", "notified for",
	"enregistr", "autoris", "commercialis", "vertrieb", "zugelassen",
}

func (g *Registration) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleRegistration, res)
	if !ok {
		return res, nil
	}
	rule := findRule(rules, "REG-001", model.ModuleRegistration, model.SeverityCritical,
		"Distribution must only be claimed for countries where the fund is registered")

	if in.Ref.Registration == nil {
		res.Degraded = append(res.Degraded, "registration table unavailable")
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        model.SeverityWarning,
			Location:        model.Location{SlideNumber: 0, Section: "document"},
			Confidence:      100,
			DetectionMethod: model.DetectionCrossReference,
			Explanation:     "registration not verified: registration table unavailable",
			ManualReview:    true,
		}))
		return res, nil
	}

	isin := in.Ctx.Metadata.FundISIN
	authorized, known := in.Ref.Registration.AuthorizedCountries(isin)
	if !known {
		res.Degraded = append(res.Degraded, fmt.Sprintf("fund %s not in registration table", isin))
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        model.SeverityWarning,
			Location:        model.Location{SlideNumber: 0, Section: "document"},
			Evidence:        isin,
			Confidence:      100,
			DetectionMethod: model.DetectionCrossReference,
			Explanation:     "registration not verified: fund ISIN absent from registration table",
			ManualReview:    true,
		}))
		return res, nil
	}

	slide, statement := g.findStatement(in)
	if statement == "" {
		// No explicit authorization statement means nothing to cross-check.
		return res, nil
	}

	countries, err := g.extractCountries(ctx, in, statement)
	if err != nil {
		res.Violations = append(res.Violations, manualReviewViolation(rule, slide.Number, "authorization_statement", err))
		return res, nil
	}

	for _, country := range countries {
		if in.Ref.Registration.IsAuthorized(isin, country) {
			continue
		}
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        rule.Severity,
			Location:        model.Location{SlideNumber: slide.Number, Section: "authorization_statement"},
			Evidence:        country,
			Confidence:      100,
			DetectionMethod: model.DetectionCrossReference,
			Explanation: fmt.Sprintf("document claims distribution authorization in %q but fund %s is not registered there",
				country, isin),
			SuggestedFix: fmt.Sprintf("remove %q from the distribution statement or register the fund there", country),
		}))
	}

	zap.L().Debug("registration: cross-checked authorization statement",
		zap.Int("document_countries", len(countries)),
		zap.Int("authorized_countries", len(authorized)),
		zap.Int("violations", len(res.Violations)),
	)
	return res, nil
}

// findStatement returns the slide containing the explicit authorization
// statement and its full text.
func (g *Registration) findStatement(in *Input) (*model.Slide, string) {
	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		lower := strings.ToLower(text)
		for _, marker := range authorizationMarkers {
			if strings.Contains(lower, marker) {
				return slide, text
			}
		}
	}
	return &model.Slide{}, ""
}

// extractCountries asks the analyzer for the countries named in the explicit
// statement, excluding investment-universe and domicile mentions, then
// normalizes them.
func (g *Registration) extractCountries(ctx context.Context, in *Input, statement string) ([]string, error) {
	ans, err := in.Analyzer.Ask(ctx, analyzer.Question{
		Subject: "registration-countries",
		Prompt: "List the countries in which this text explicitly states the fund is " +
			"authorized, registered or notified for distribution. Exclude countries " +
			"mentioned only as investment universe, market exposure or fund domicile.",
		Context: statement,
		Schema:  map[string]string{"countries": "string_list"},
	})
	if err != nil {
		return nil, err
	}

	raw := ans.StringSlice("countries")
	out := make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for _, c := range raw {
		canon := refdata.CanonicalCountry(c)
		if canon == "" || seen[canon] {
			continue
		}
		seen[canon] = true
		out = append(out, c)
	}
	return out, nil
}
