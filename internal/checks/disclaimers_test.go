package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

const capitalRiskText = "The value of investments may fall as well as rise and investors may not get back the amount originally invested."

func testGlossary() *refdata.DisclaimerGlossary {
	return refdata.NewGlossary([]refdata.DisclaimerTemplate{
		{Key: "capital_risk", Language: "en", Client: "retail", Text: capitalRiskText, Required: true},
		{Key: "marketing_notice", Language: "en", Text: "This is a marketing communication.", Required: false},
	})
}

func TestDisclaimers_TemplatePresent(t *testing.T) {
	doc := testDoc(testMetadata())
	doc.DisclaimerPage.Text = []string{capitalRiskText}

	in := testInput(t, doc, &mockAnalyzer{}, allRules())
	in.Ref.Glossary = testGlossary()

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestDisclaimers_TemplateMissing(t *testing.T) {
	in := testInput(t, testDoc(testMetadata()), &mockAnalyzer{}, allRules())
	in.Ref.Glossary = testGlossary()

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "DISC-MISSING")
	require.Len(t, found, 1)
	assert.Equal(t, model.SeverityCritical, found[0].Severity)
	assert.Equal(t, 100, found[0].Confidence)
}

func TestDisclaimers_TruncatedTemplateIsPartial(t *testing.T) {
	doc := testDoc(testMetadata())
	// Roughly the first two thirds of the template.
	doc.DisclaimerPage.Text = []string{
		"The value of investments may fall as well as rise and investors",
	}

	in := testInput(t, doc, &mockAnalyzer{}, allRules())
	in.Ref.Glossary = testGlossary()

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "DISC-PARTIAL")
	require.Len(t, found, 1)
	assert.Equal(t, model.SeverityMajor, found[0].Severity)
	assert.Equal(t, 90, found[0].Location.SlideNumber)
	assert.Less(t, found[0].Confidence, 90)
	assert.GreaterOrEqual(t, found[0].Confidence, 50)
	assert.Empty(t, violationsByRule(res.Violations, "DISC-MISSING"))
}

func TestDisclaimers_DedicatedFieldReorderedIsPresent(t *testing.T) {
	doc := testDoc(testMetadata())
	// Same vocabulary, different sentence order.
	doc.DisclaimerPage.Content["capital_risk"] = "Investors may not get back the amount originally invested. " +
		"The value of investments may fall as well as rise."

	in := testInput(t, doc, &mockAnalyzer{}, allRules())
	in.Ref.Glossary = testGlossary()

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestDisclaimers_DedicatedFieldIsAuthoritative(t *testing.T) {
	doc := testDoc(testMetadata())
	// The field holds the full template diluted with unrelated wording. A
	// whole-slide containment scan would score this 1.0; the isolated field
	// judged with Jaccard does not.
	doc.DisclaimerPage.Content["capital_risk"] = capitalRiskText +
		" Additional marketing wording about diversified global exposure."

	in := testInput(t, doc, &mockAnalyzer{}, allRules())
	in.Ref.Glossary = testGlossary()

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "DISC-PARTIAL")
	require.Len(t, found, 1)
	assert.Equal(t, 90, found[0].Location.SlideNumber)
	assert.Less(t, found[0].Confidence, 90)
	assert.GreaterOrEqual(t, found[0].Confidence, 50)
	assert.Empty(t, violationsByRule(res.Violations, "DISC-MISSING"))
}

func TestDisclaimers_NoGlossaryEntryIsAdvisory(t *testing.T) {
	md := testMetadata()
	md.Language = "it"

	in := testInput(t, testDoc(md), &mockAnalyzer{}, allRules())
	in.Ref.Glossary = refdata.NewGlossary([]refdata.DisclaimerTemplate{
		{Key: "capital_risk", Language: "en", Text: capitalRiskText, Required: true},
	})

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)

	// Missing reference data must not read as a missing disclaimer.
	require.Len(t, res.Violations, 1)
	v := res.Violations[0]
	assert.Equal(t, model.SeverityWarning, v.Severity)
	assert.True(t, v.ManualReview)
	assert.Contains(t, v.Explanation, "no glossary entry")
	assert.Len(t, res.Degraded, 1)
}

func TestDisclaimers_GlossaryUnavailableDegrades(t *testing.T) {
	in := testInput(t, testDoc(testMetadata()), &mockAnalyzer{}, allRules())
	in.Ref.Glossary = nil

	res, err := (&Disclaimers{}).Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Violations, 1)
	assert.Equal(t, model.SeverityWarning, res.Violations[0].Severity)
	assert.True(t, res.Violations[0].ManualReview)
}
