package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/classifier"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Ask(ctx context.Context, q analyzer.Question) (*analyzer.Answer, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*analyzer.Answer), args.Error(1)
}

// askSubject matches an Ask call by its question subject.
func askSubject(subject string) interface{} {
	return mock.MatchedBy(func(q analyzer.Question) bool {
		return q.Subject == subject
	})
}

func testMetadata() model.Metadata {
	return model.Metadata{
		ClientType:        model.ClientRetail,
		FundISIN:          "LU0123456789",
		FundName:          "ACME Global Equity Fund",
		Language:          "en",
		ManagementCompany: "ACME Asset Management",
	}
}

// testDoc builds a minimal valid document: cover, the given body slides,
// disclaimer and closing pages.
func testDoc(md model.Metadata, body ...model.Slide) *model.Document {
	if len(body) == 0 {
		body = []model.Slide{{Number: 2, Text: []string{"Strategy overview."}}}
	}
	return &model.Document{
		Metadata: md,
		CoverPage: &model.Slide{
			Number: 1,
			Content: map[string]string{
				"promotional_document_mention": "Promotional document",
				"target_audience_mention":      "For retail investors",
			},
		},
		BodySlides: body,
		DisclaimerPage: &model.Slide{
			Number:  90,
			Content: map[string]string{"full_risk_list": "Capital risk, liquidity risk."},
		},
		ClosingPage: &model.Slide{
			Number:  91,
			Content: map[string]string{"contact_information": "contact@acme.example"},
		},
	}
}

// testInput wires a full module input around the document. Rule sets are
// in-memory; datasets attach to the store afterwards via its exported fields.
func testInput(t *testing.T, doc *model.Document, a analyzer.Analyzer, rules map[model.CheckModule][]model.Rule) *Input {
	t.Helper()
	runCtx, err := docctx.New(doc, nil)
	require.NoError(t, err)
	if rules == nil {
		rules = make(map[model.CheckModule][]model.Rule)
		for _, m := range model.AllModules {
			rules[m] = []model.Rule{}
		}
	}
	return &Input{
		Doc:        doc,
		Ctx:        runCtx,
		Ref:        refdata.NewStore(rules),
		Classifier: classifier.New(runCtx, a, []string{"ACME Global Equity Fund", "ACME Fund"}, nil),
		Analyzer:   a,
		Thresholds: DefaultThresholds(),
	}
}

// allRules gives every module an empty rule set so modules fall back to
// their canonical built-in rules instead of reporting degradation.
func allRules() map[model.CheckModule][]model.Rule {
	rules := make(map[model.CheckModule][]model.Rule)
	for _, m := range model.AllModules {
		rules[m] = []model.Rule{}
	}
	return rules
}

func violationsByRule(violations []model.Violation, ruleID string) []model.Violation {
	var out []model.Violation
	for _, v := range violations {
		if v.RuleID == ruleID {
			out = append(out, v)
		}
	}
	return out
}
