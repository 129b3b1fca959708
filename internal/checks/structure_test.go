package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

func structureRules() map[model.CheckModule][]model.Rule {
	rules := allRules()
	rules[model.ModuleStructure] = []model.Rule{
		{
			ID: "STR-PROMO", Module: model.ModuleStructure, Severity: model.SeverityCritical,
			Description: "Cover page must carry the promotional document mention",
			Validation:  model.PresenceValidation{Field: "promotional_document_mention"},
		},
		{
			ID: "STR-AUDIENCE", Module: model.ModuleStructure, Severity: model.SeverityMajor,
			Description: "Cover page must name the target audience",
			Validation:  model.PresenceValidation{Field: "target_audience_mention"},
		},
		{
			ID: "STR-GUARANTEE", Module: model.ModuleStructure, Severity: model.SeverityCritical,
			Description: "Fixed pages must not promise guaranteed returns",
			Validation:  model.AbsenceValidation{ForbiddenTerms: []string{"guaranteed returns"}},
		},
	}
	return rules
}

func TestStructure_AllFieldsPresent(t *testing.T) {
	a := &mockAnalyzer{}
	in := testInput(t, testDoc(testMetadata()), a, structureRules())

	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	a.AssertNotCalled(t, "Ask")
}

func TestStructure_EmptyPromotionalMention(t *testing.T) {
	doc := testDoc(testMetadata())
	doc.CoverPage.Content["promotional_document_mention"] = ""

	in := testInput(t, doc, &mockAnalyzer{}, structureRules())
	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)

	// An empty structured field is a missing mention, exactly one finding.
	found := violationsByRule(res.Violations, "STR-PROMO")
	require.Len(t, found, 1)
	assert.Equal(t, model.SeverityCritical, found[0].Severity)
	assert.Equal(t, 100, found[0].Confidence)
	assert.Equal(t, "cover_page", found[0].Location.Section)
	assert.Empty(t, violationsByRule(res.Violations, "STR-AUDIENCE"))
}

func TestStructure_MissingCoverPage(t *testing.T) {
	doc := testDoc(testMetadata())
	doc.CoverPage = nil

	in := testInput(t, doc, &mockAnalyzer{}, structureRules())
	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "STR-PROMO")
	require.Len(t, found, 1)
	assert.Contains(t, found[0].Explanation, "missing entirely")
}

func TestStructure_ForbiddenTermOnFixedPage(t *testing.T) {
	doc := testDoc(testMetadata())
	doc.DisclaimerPage.Content["full_risk_list"] = "Guaranteed returns regardless of markets."

	in := testInput(t, doc, &mockAnalyzer{}, structureRules())
	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "STR-GUARANTEE")
	require.Len(t, found, 1)
	assert.Equal(t, "disclaimer_slide", found[0].Location.Section)
}

func TestStructure_RuleFileUnavailable(t *testing.T) {
	rules := allRules()
	delete(rules, model.ModuleStructure)

	in := testInput(t, testDoc(testMetadata()), &mockAnalyzer{}, rules)
	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, res.Violations, 1)
	assert.Equal(t, "structure-unverified", res.Violations[0].RuleID)
	assert.True(t, res.Violations[0].ManualReview)
	assert.Len(t, res.Degraded, 1)
}

func TestStructure_RestrictedRuleSkippedForUnknownClient(t *testing.T) {
	rules := structureRules()
	rules[model.ModuleStructure] = append(rules[model.ModuleStructure], model.Rule{
		ID: "STR-RETAIL", Module: model.ModuleStructure, Severity: model.SeverityMajor,
		Description: "Retail documents must carry the KID reference",
		Validation:  model.PresenceValidation{Keywords: []string{"key information document"}},
		AppliesTo:   model.ClientRetail,
	})
	md := testMetadata()
	md.ClientType = model.ClientUnknown

	in := testInput(t, testDoc(md), &mockAnalyzer{}, rules)
	res, err := (&Structure{}).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Empty(t, violationsByRule(res.Violations, "STR-RETAIL"))
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "STR-RETAIL", res.Skipped[0].RuleID)
	assert.Equal(t, "skipped_insufficient_metadata", res.Skipped[0].Reason)
}
