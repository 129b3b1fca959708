package checks

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/classifier"
	"github.com/sells-group/compliance-cli/internal/model"
)

// Securities detects two things: the same classified security named too many
// times (promoting a single holding), and investment-advice language at the
// stock level. Advice detection is one cached semantic call per slide that
// explicitly distinguishes fund self-promotion, which is allowed, from
// stock-level recommendation, which is not.
type Securities struct{}

func (s *Securities) Name() model.CheckModule { return model.ModuleSecurities }

// candidateTerm matches capitalized token runs: "Nvidia", "LVMH", "Banco
// Santander". Sentence-leading words produce noise; the classifier's static
// exclusions absorb most of it.
var candidateTerm = regexp.MustCompile(`\b[A-Z][A-Za-z&'.-]+(?:\s+[A-Z][A-Za-z&'.-]+){0,2}\b`)

type mention struct {
	count      int
	firstSlide int
	context    string
}

func (s *Securities) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleSecurities, res)
	if !ok {
		return res, nil
	}
	repetitionRule := findRule(rules, "SEC-REPEAT", model.ModuleSecurities, model.SeverityMajor,
		"A single security must not be promoted through repeated mentions")
	adviceRule := findRule(rules, "SEC-ADVICE", model.ModuleSecurities, model.SeverityCritical,
		"Marketing material must not give stock-level investment advice")

	s.checkRepetition(ctx, in, repetitionRule, res)
	s.checkAdvice(ctx, in, adviceRule, res)
	return res, nil
}

func (s *Securities) checkRepetition(ctx context.Context, in *Input, rule model.Rule, res *Result) {
	mentions := make(map[string]*mention)
	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		for _, term := range candidateTerm.FindAllString(text, -1) {
			key := strings.ToLower(strings.TrimSpace(term))
			m, ok := mentions[key]
			if !ok {
				m = &mention{firstSlide: slide.Number, context: excerpt(text)}
				mentions[key] = m
			}
			m.count++
		}
	}

	terms := make([]string, 0, len(mentions))
	for term := range mentions {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	for _, term := range terms {
		m := mentions[term]
		if m.count < in.Thresholds.SecurityRepetition {
			continue
		}
		cls, err := in.Classifier.Classify(ctx, term, m.context)
		if err != nil {
			res.Violations = append(res.Violations, manualReviewViolation(rule, m.firstSlide, "body", err))
			continue
		}
		if !cls.IsSecurity {
			continue
		}
		confidence := cls.Confidence
		if cls.Type == classifier.TypeUnknown {
			// Conservative default from a failed classification: keep the
			// finding but mark it for review.
			confidence = 50
		}
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        rule.Severity,
			Location:        model.Location{SlideNumber: m.firstSlide, Section: "body"},
			Evidence:        fmt.Sprintf("%q mentioned %d times", term, m.count),
			Confidence:      confidence,
			DetectionMethod: model.DetectionSemantic,
			Explanation: fmt.Sprintf("%s: security %q named %d times (threshold %d)",
				rule.Description, term, m.count, in.Thresholds.SecurityRepetition),
			SuggestedFix: rule.SuggestedFix,
			ManualReview: cls.Type == classifier.TypeUnknown,
		}))
	}
}

// adviceMarkers pre-filter the slides worth an analyzer question.
var adviceMarkers = []string{
	"buy", "sell", "recommend", "opportunity", "attractive", "conviction",
	"acheter", "vendre", "recommand", "kaufen", "verkaufen", "empfehl",
}

func (s *Securities) checkAdvice(ctx context.Context, in *Input, rule model.Rule, res *Result) {
	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		if text == "" || !containsAny(text, adviceMarkers) {
			continue
		}

		slideNum := slide.Number
		isAdvice, evidence, confidence, err := in.Ctx.InvestmentAdvice(ctx, slideNum, func(ctx context.Context) (bool, string, int, error) {
			ans, askErr := in.Analyzer.Ask(ctx, analyzer.Question{
				Subject: "investment-advice",
				Prompt: "Does this slide recommend buying, selling or holding a specific " +
					"tradable security? Promotion of the fund itself is allowed and is not " +
					"a recommendation. Quote the recommending sentence in \"evidence\".",
				Context: text,
				Schema:  map[string]string{"recommendation": "bool", "evidence": "string"},
			})
			if askErr != nil {
				return false, "", 0, askErr
			}
			return ans.Bool("recommendation"), ans.String("evidence"), ans.Confidence, nil
		})
		if err != nil {
			res.Violations = append(res.Violations, manualReviewViolation(rule, slideNum, "body", err))
			continue
		}
		if !isAdvice {
			continue
		}
		if evidence == "" {
			evidence = excerpt(text)
		}
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        rule.Severity,
			Location:        model.Location{SlideNumber: slideNum, Section: "body"},
			Evidence:        excerpt(evidence),
			Confidence:      confidence,
			DetectionMethod: model.DetectionSemantic,
			Explanation:     rule.Description,
			SuggestedFix:    rule.SuggestedFix,
		}))
	}
}

func containsAny(text string, terms []string) bool {
	lower := strings.ToLower(text)
	for _, t := range terms {
		if strings.Contains(lower, t) {
			return true
		}
	}
	return false
}
