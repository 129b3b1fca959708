package checks

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/sells-group/compliance-cli/internal/model"
)

// Structure verifies field presence on the fixed-position pages: cover,
// disclaimer slide and closing page. Pure presence/absence logic, no
// semantic calls.
type Structure struct{}

func (s *Structure) Name() model.CheckModule { return model.ModuleStructure }

func (s *Structure) Run(ctx context.Context, in *Input) (*Result, error) {
	res := &Result{}
	rules, ok := moduleRules(in, model.ModuleStructure, res)
	if !ok {
		return res, nil
	}

	for _, r := range rules {
		if skipIfNotApplicable(r, in, res) {
			continue
		}

		switch v := r.Validation.(type) {
		case model.PresenceValidation:
			s.checkPresence(in, r, v, res)
		case model.AbsenceValidation:
			s.checkAbsence(in, r, v, res)
		case model.FormatValidation:
			s.checkFormat(in, r, v, res)
		default:
			// Structure rules are deterministic field checks; anything else
			// in the file is a corpus mistake worth surfacing as a skip.
			res.Skipped = append(res.Skipped, model.SkippedCheck{
				RuleID: r.ID,
				Module: r.Module,
				Reason: "validation type not supported by structure module",
			})
		}
	}
	return res, nil
}

// fixedPages maps a presence field to the pages it may live on. Fields not
// listed are searched on all three fixed pages.
var fixedPageFields = map[string][]string{
	"promotional_document_mention": {"cover"},
	"target_audience_mention":      {"cover"},
	"full_risk_list":               {"disclaimer", "closing"},
	"contact_information":          {"closing"},
}

func (s *Structure) pages(in *Input, field string) []pageRef {
	wanted := fixedPageFields[field]
	if len(wanted) == 0 {
		wanted = []string{"cover", "disclaimer", "closing"}
	}
	var out []pageRef
	for _, name := range wanted {
		switch name {
		case "cover":
			if in.Doc.CoverPage != nil {
				out = append(out, pageRef{"cover_page", in.Doc.CoverPage})
			}
		case "disclaimer":
			if in.Doc.DisclaimerPage != nil {
				out = append(out, pageRef{"disclaimer_slide", in.Doc.DisclaimerPage})
			}
		case "closing":
			if in.Doc.ClosingPage != nil {
				out = append(out, pageRef{"closing_page", in.Doc.ClosingPage})
			}
		}
	}
	return out
}

type pageRef struct {
	section string
	slide   *model.Slide
}

func (s *Structure) checkPresence(in *Input, r model.Rule, v model.PresenceValidation, res *Result) {
	if v.Field != "" {
		pages := s.pages(in, v.Field)
		if len(pages) == 0 {
			res.Violations = append(res.Violations, model.NewViolation(model.Violation{
				RuleID:          r.ID,
				Module:          r.Module,
				Severity:        r.Severity,
				Location:        model.Location{SlideNumber: 0, Section: "document"},
				Confidence:      100,
				DetectionMethod: model.DetectionFieldCheck,
				Explanation:     fmt.Sprintf("%s: required page for field %q is missing entirely", r.Description, v.Field),
				SuggestedFix:    r.SuggestedFix,
			}))
			return
		}
		for _, p := range pages {
			if value, _ := p.slide.Field(v.Field); value != "" {
				return
			}
		}
		p := pages[0]
		res.Violations = append(res.Violations, model.NewViolation(model.Violation{
			RuleID:          r.ID,
			Module:          r.Module,
			Severity:        r.Severity,
			Location:        model.Location{SlideNumber: p.slide.Number, Section: p.section},
			Evidence:        fmt.Sprintf("field %q is empty", v.Field),
			Confidence:      100,
			DetectionMethod: model.DetectionFieldCheck,
			Explanation:     r.Description,
			SuggestedFix:    r.SuggestedFix,
		}))
		return
	}

	// Keyword presence: at least one keyword somewhere on a fixed page.
	for _, p := range s.pages(in, "") {
		text := strings.ToLower(p.slide.AllText())
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
		Evidence:        fmt.Sprintf("none of %v found on fixed pages", v.Keywords),
		Confidence:      100,
		DetectionMethod: model.DetectionKeywordMatch,
		Explanation:     r.Description,
		SuggestedFix:    r.SuggestedFix,
	}))
}

func (s *Structure) checkAbsence(in *Input, r model.Rule, v model.AbsenceValidation, res *Result) {
	for _, p := range s.pages(in, "") {
		text := strings.ToLower(p.slide.AllText())
		for _, term := range v.ForbiddenTerms {
			if idx := strings.Index(text, strings.ToLower(term)); idx >= 0 {
				res.Violations = append(res.Violations, model.NewViolation(model.Violation{
					RuleID:          r.ID,
					Module:          r.Module,
					Severity:        r.Severity,
					Location:        model.Location{SlideNumber: p.slide.Number, Section: p.section},
					Evidence:        excerpt(p.slide.AllText()[idx:]),
					Confidence:      100,
					DetectionMethod: model.DetectionKeywordMatch,
					Explanation:     fmt.Sprintf("%s: forbidden term %q present", r.Description, term),
					SuggestedFix:    r.SuggestedFix,
				}))
			}
		}
	}
}

func (s *Structure) checkFormat(in *Input, r model.Rule, v model.FormatValidation, res *Result) {
	re, err := regexp.Compile(v.Pattern)
	if err != nil {
		res.Skipped = append(res.Skipped, model.SkippedCheck{
			RuleID: r.ID,
			Module: r.Module,
			Reason: fmt.Sprintf("invalid format pattern: %v", err),
		})
		return
	}
	for _, p := range s.pages(in, v.Field) {
		value, _ := p.slide.Field(v.Field)
		if value == "" {
			continue // presence is a separate rule's concern
		}
		if !re.MatchString(value) {
			res.Violations = append(res.Violations, model.NewViolation(model.Violation{
				RuleID:          r.ID,
				Module:          r.Module,
				Severity:        r.Severity,
				Location:        model.Location{SlideNumber: p.slide.Number, Section: p.section},
				Evidence:        excerpt(value),
				Confidence:      100,
				DetectionMethod: model.DetectionFieldCheck,
				Explanation:     fmt.Sprintf("%s: %q does not match required format", r.Description, v.Field),
				SuggestedFix:    r.SuggestedFix,
			}))
		}
	}
}
