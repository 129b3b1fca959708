package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// Prospectus compares facts the document states against the prospectus-
// derived facts. Marketing material is expected to add detail to the
// prospectus; only a genuine contradiction is a violation, and the
// elaboration-versus-contradiction judgment is delegated to the analyzer
// when the exact comparison fails.
type Prospectus struct{}

func (p *Prospectus) Name() model.CheckModule { return model.ModuleProspectus }

func (p *Prospectus) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleProspectus, res)
	if !ok {
		return res, nil
	}
	benchRule := findRule(rules, "PROS-BENCH", model.ModuleProspectus, model.SeverityMajor,
		"Stated benchmark must match the prospectus")
	minInvestRule := findRule(rules, "PROS-MININVEST", model.ModuleProspectus, model.SeverityCritical,
		"Stated minimum investment must match the prospectus")
	allocRule := findRule(rules, "PROS-ALLOC", model.ModuleProspectus, model.SeverityMajor,
		"Stated asset-allocation limits must match the prospectus")

	if in.Ref.Prospectus == nil {
		res.Degraded = append(res.Degraded, "prospectus facts unavailable")
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          benchRule.ID,
			Module:          model.ModuleProspectus,
			Severity:        model.SeverityWarning,
			Location:        model.Location{SlideNumber: 0, Section: "document"},
			Confidence:      100,
			DetectionMethod: model.DetectionCrossReference,
			Explanation:     "prospectus alignment not verified: prospectus facts unavailable",
			ManualReview:    true,
		}))
		return res, nil
	}

	p.checkBenchmark(ctx, in, benchRule, res)
	p.checkMinimumInvestment(in, minInvestRule, res)
	p.checkAllocations(ctx, in, allocRule, res)
	return res, nil
}

var benchmarkLine = regexp.MustCompile(`(?i)(?:benchmark|indice de r[ée]f[ée]rence|referenzindex)\s*[:\-]?\s*(.+)`)

func (p *Prospectus) checkBenchmark(ctx context.Context, in *Input, rule model.Rule, res *Result) {
	want := in.Ref.Prospectus.BenchmarkName
	if want == "" {
		return
	}
	for _, slide := range in.Doc.Slides() {
		lines := make([]string, 0, len(slide.Text)+1)
		lines = append(lines, slide.Text...)
		if slide.Notes != "" {
			lines = append(lines, slide.Notes)
		}
		for _, line := range lines {
			m := benchmarkLine.FindStringSubmatch(line)
			if m == nil {
				continue
			}
			stated := strings.TrimSpace(m[1])
			if stated == "" {
				continue
			}
			if refdata.NormalizeName(stated) == refdata.NormalizeName(want) {
				continue
			}
			// Names differ: let the analyzer decide whether the document is
			// elaborating (adding share-class or net-return detail) or
			// contradicting the prospectus.
			contradiction, confidence, err := p.judgeContradiction(ctx, in,
				fmt.Sprintf("The fund prospectus names the benchmark %q. The marketing document states %q.", want, stated))
			if err != nil {
				res.Violations = append(res.Violations, manualReviewViolation(rule, slide.Number, "body", err))
				continue
			}
			if !contradiction {
				continue
			}
			res.Violations = append(res.Violations, model.NewViolation(model.Violation{
				RuleID:          rule.ID,
				Module:          rule.Module,
				Severity:        rule.Severity,
				Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
				Evidence:        fmt.Sprintf("document: %q / prospectus: %q", stated, want),
				Confidence:      confidence,
				DetectionMethod: model.DetectionCrossReference,
				Explanation:     rule.Description,
				SuggestedFix:    fmt.Sprintf("align the stated benchmark with the prospectus: %q", want),
			}))
		}
	}
}

// noneValues are document statements that deny a minimum exists.
var noneValues = map[string]bool{
	"none": true, "aucun": true, "aucune": true, "keine": true, "n/a": true,
	"no minimum": true, "-": true,
}

func (p *Prospectus) checkMinimumInvestment(in *Input, rule model.Rule, res *Result) {
	want, ok := in.Ref.Prospectus.Fact("minimum_investment")
	if !ok {
		return
	}
	for _, slide := range in.Doc.Slides() {
		stated, _ := slide.Field("minimum_investment")
		if stated == "" {
			continue
		}
		if amountsEqual(stated, want) {
			continue
		}
		// "None" against a real prospectus minimum is the unambiguous
		// contradiction; differing amounts likewise. Both are deterministic,
		// no analyzer needed.
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        rule.Severity,
			Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
			Evidence:        fmt.Sprintf("document: %q / prospectus: %q", stated, want),
			Confidence:      100,
			DetectionMethod: model.DetectionCrossReference,
			Explanation: fmt.Sprintf("%s: document states %q, prospectus requires %q",
				rule.Description, stated, want),
			SuggestedFix: fmt.Sprintf("state the prospectus minimum investment: %q", want),
		}))
		return // one finding per document for this fact
	}
}

var digits = regexp.MustCompile(`\d`)

// amountsEqual compares two monetary statements on their digit sequences,
// which survives thousand-separator and currency-format differences.
// A "None"-style statement never equals a real amount.
func amountsEqual(a, b string) bool {
	if noneValues[strings.ToLower(strings.TrimSpace(a))] {
		return !digits.MatchString(b)
	}
	digitsA := strings.Join(digits.FindAllString(a, -1), "")
	digitsB := strings.Join(digits.FindAllString(b, -1), "")
	return digitsA != "" && digitsA == digitsB
}

var percentStatement = regexp.MustCompile(`(?i)((?:minimum|maximum|at least|up to|jusqu'[àa]|au moins|min\.?|max\.?)[^.%]*\d+(?:[.,]\d+)?\s*%)`)

func (p *Prospectus) checkAllocations(ctx context.Context, in *Input, rule model.Rule, res *Result) {
	if len(in.Ref.Prospectus.AllocationLimits) == 0 {
		return
	}
	var limits []string
	for k, v := range in.Ref.Prospectus.AllocationLimits {
		limits = append(limits, fmt.Sprintf("%s: %s", k, v))
	}
	prospectusSide := strings.Join(limits, "; ")

	for _, slide := range in.Doc.Slides() {
		text := slide.AllText()
		statements := percentStatement.FindAllString(text, -1)
		if len(statements) == 0 {
			continue
		}
		contradiction, confidence, err := p.judgeContradiction(ctx, in,
			fmt.Sprintf("The prospectus sets these asset-allocation limits: %s. The marketing document states: %s.",
				prospectusSide, strings.Join(statements, "; ")))
		if err != nil {
			res.Violations = append(res.Violations, manualReviewViolation(rule, slide.Number, "body", err))
			continue
		}
		if !contradiction {
			continue
		}
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          rule.ID,
			Module:          rule.Module,
			Severity:        rule.Severity,
			Location:        model.Location{SlideNumber: slide.Number, Section: "body"},
			Evidence:        fmt.Sprintf("document: %q / prospectus: %q", strings.Join(statements, "; "), prospectusSide),
			Confidence:      confidence,
			DetectionMethod: model.DetectionCrossReference,
			Explanation:     rule.Description,
			SuggestedFix:    rule.SuggestedFix,
		}))
	}
}

// judgeContradiction asks whether two statements genuinely conflict or the
// document merely adds detail.
func (p *Prospectus) judgeContradiction(ctx context.Context, in *Input, pair string) (bool, int, error) {
	ans, err := in.Analyzer.Ask(ctx, analyzer.Question{
		Subject: "prospectus-alignment",
		Prompt: pair + " Marketing material may add detail to the prospectus. " +
			"Is the document statement a genuine numeric or factual contradiction " +
			"of the prospectus, or merely an elaboration?",
		Schema: map[string]string{"contradiction": "bool"},
	})
	if err != nil {
		return false, 0, err
	}
	return ans.Bool("contradiction"), ans.Confidence, nil
}
