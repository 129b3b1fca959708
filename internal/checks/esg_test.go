package checks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/model"
)

func TestESG_Article6OverweightESGContent(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, askSubject("esg-content")).Return(&analyzer.Answer{
		Fields:     map[string]any{"esg_content": true},
		Confidence: 90,
	}, nil)

	md := testMetadata()
	md.ESGClassification = "article_6"
	doc := testDoc(md,
		model.Slide{Number: 2, Text: []string{
			"Our sustainable investment process applies strict ESG exclusion criteria and climate targets across the whole portfolio construction.",
		}},
		model.Slide{Number: 3, Text: []string{
			"Carbon emission reduction and biodiversity impact drive every holding decision in this strategy.",
		}},
	)

	in := testInput(t, doc, a, allRules())
	res, err := (&ESG{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "ESG-SHARE")
	require.Len(t, found, 1)
	assert.Equal(t, model.SeverityMajor, found[0].Severity)
	assert.Equal(t, 90, found[0].Confidence)
	assert.Contains(t, found[0].Explanation, "article_6")
}

func TestESG_Article8WithinBand(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, askSubject("esg-content")).Return(&analyzer.Answer{
		Fields:     map[string]any{"esg_content": true},
		Confidence: 90,
	}, nil)

	md := testMetadata()
	md.ESGClassification = "article_8"
	doc := testDoc(md,
		model.Slide{Number: 2, Text: []string{
			"The strategy promotes environmental and social characteristics through ESG integration and exclusion policies.",
		}},
		model.Slide{Number: 3, Text: []string{"Portfolio positioning and sector allocation overview for the quarter."}},
	)

	in := testInput(t, doc, a, allRules())
	res, err := (&ESG{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
}

func TestESG_NoTierSkips(t *testing.T) {
	a := &mockAnalyzer{}
	md := testMetadata()
	md.ESGClassification = ""

	in := testInput(t, testDoc(md), a, allRules())
	res, err := (&ESG{}).Run(context.Background(), in)
	require.NoError(t, err)

	assert.Empty(t, res.Violations)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "skipped_insufficient_metadata", res.Skipped[0].Reason)
	a.AssertNotCalled(t, "Ask")
}

func TestESG_PassingMentionDoesNotCount(t *testing.T) {
	a := &mockAnalyzer{}
	// The marker hits but the analyzer judges it a passing mention.
	a.On("Ask", mock.Anything, askSubject("esg-content")).Return(&analyzer.Answer{
		Fields:     map[string]any{"esg_content": false},
		Confidence: 85,
	}, nil).Once()

	md := testMetadata()
	md.ESGClassification = "article_6"
	doc := testDoc(md,
		model.Slide{Number: 2, Text: []string{"The fund applies an ESG data feed among other inputs to risk monitoring."}},
	)

	in := testInput(t, doc, a, allRules())
	res, err := (&ESG{}).Run(context.Background(), in)
	require.NoError(t, err)
	assert.Empty(t, res.Violations)
	a.AssertExpectations(t)
}

func TestESG_AnalyzerFailureFallsBackToMarkers(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, mock.Anything).Return(nil, analyzer.ErrUnavailable)

	md := testMetadata()
	md.ESGClassification = "article_6"
	doc := testDoc(md,
		model.Slide{Number: 2, Text: []string{
			"Our sustainable ESG exclusion framework and climate emission targets shape the entire portfolio construction process here.",
		}},
	)

	in := testInput(t, doc, a, allRules())
	res, err := (&ESG{}).Run(context.Background(), in)
	require.NoError(t, err)

	found := violationsByRule(res.Violations, "ESG-SHARE")
	require.Len(t, found, 1)
	assert.Equal(t, 60, found[0].Confidence)
	assert.True(t, found[0].ManualReview)
}
