package classifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/docctx"
	"github.com/sells-group/compliance-cli/internal/model"
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

func newRunContext(t *testing.T) *docctx.Context {
	t.Helper()
	c, err := docctx.New(&model.Document{
		BodySlides: []model.Slide{{Number: 1, Text: []string{"text"}}},
	}, nil)
	require.NoError(t, err)
	return c
}

func TestClassify_StaticExclusions(t *testing.T) {
	a := &mockAnalyzer{}
	c := New(newRunContext(t), a, []string{"ACME Global Fund"}, []string{"State Street"})

	for _, term := range []string{"January", "EUR", "acme global fund", "STATE STREET"} {
		cls, err := c.Classify(context.Background(), term, "")
		require.NoError(t, err)
		assert.False(t, cls.IsSecurity, term)
	}
	// Service providers classify as such, not merely excluded.
	cls, err := c.Classify(context.Background(), "State Street", "")
	require.NoError(t, err)
	assert.Equal(t, TypeServiceProvider, cls.Type)

	a.AssertNotCalled(t, "Ask")
}

func TestClassify_SemanticOncePerTerm(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, mock.MatchedBy(func(q analyzer.Question) bool {
		return q.Subject == "classify-term"
	})).Return(&analyzer.Answer{
		Fields:     map[string]any{"category": "security", "is_security": true},
		Confidence: 92,
	}, nil).Once()

	c := New(newRunContext(t), a, nil, nil)

	for i := 0; i < 4; i++ {
		cls, err := c.Classify(context.Background(), "Nvidia", "the Nvidia position gained 30%")
		require.NoError(t, err)
		assert.True(t, cls.IsSecurity)
		assert.Equal(t, TypeSecurity, cls.Type)
		assert.Equal(t, 92, cls.Confidence)
	}
	a.AssertExpectations(t)
}

func TestClassify_AnalyzerFailureDefaultsConservative(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, mock.Anything).Return(nil, analyzer.ErrUnavailable).Once()

	c := New(newRunContext(t), a, nil, nil)
	cls, err := c.Classify(context.Background(), "Obscure Corp", "")
	require.NoError(t, err)
	assert.Equal(t, TypeUnknown, cls.Type)
	assert.True(t, cls.IsSecurity)
	assert.Equal(t, 0, cls.Confidence)

	// The conservative default is cached: no second analyzer attempt.
	_, err = c.Classify(context.Background(), "Obscure Corp", "")
	require.NoError(t, err)
	a.AssertExpectations(t)
}

func TestClassify_ConceptNotSecurity(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Ask", mock.Anything, mock.Anything).Return(&analyzer.Answer{
		Fields:     map[string]any{"category": "concept", "is_security": false},
		Confidence: 88,
	}, nil).Once()

	c := New(newRunContext(t), a, nil, nil)
	cls, err := c.Classify(context.Background(), "decarbonization", "")
	require.NoError(t, err)
	assert.Equal(t, TypeConcept, cls.Type)
	assert.False(t, cls.IsSecurity)
}

func TestClassify_EmptyTermExcluded(t *testing.T) {
	c := New(newRunContext(t), &mockAnalyzer{}, nil, nil)
	cls, err := c.Classify(context.Background(), "   ", "")
	require.NoError(t, err)
	assert.Equal(t, TypeExcluded, cls.Type)
}
