// Package classifier decides whether a term mentioned in a document is a
// tradable security, a service provider, or a general concept. Static lists
// settle the common cases; anything else costs exactly one analyzer call per
// distinct term per run, memoized through the document context.
package classifier

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/analyzer"
	"github.com/sells-group/compliance-cli/internal/docctx"
)

// Term types.
const (
	TypeSecurity        = "security"
	TypeServiceProvider = "service_provider"
	TypeConcept         = "concept"
	TypeExcluded        = "excluded"
	TypeUnknown         = "unknown"
)

// staticExclusions are terms that can never be securities mentions: month
// names, common financial vocabulary and units. Lowercased.
var staticExclusions = map[string]bool{
	"january": true, "february": true, "march": true, "april": true,
	"may": true, "june": true, "july": true, "august": true,
	"september": true, "october": true, "november": true, "december": true,
	"janvier": true, "fevrier": true, "mars": true, "avril": true,
	"mai": true, "juin": true, "juillet": true, "aout": true,
	"septembre": true, "octobre": true, "novembre": true, "decembre": true,
	"europe": true, "asia": true, "america": true, "equity": true,
	"equities": true, "bond": true, "bonds": true, "fund": true,
	"portfolio": true, "benchmark": true, "index": true, "esg": true,
	"usd": true, "eur": true, "chf": true, "gbp": true,
	"volatility": true, "duration": true, "yield": true,
}

// Classifier resolves term classifications against the run's caches.
type Classifier struct {
	ctx      *docctx.Context
	analyzer analyzer.Analyzer

	// extra holds configured exclusions: the fund family's own names and
	// known service providers, which would otherwise burn analyzer calls.
	fundFamily       map[string]bool
	serviceProviders map[string]bool
}

// New builds a classifier for one run. fundFamily and serviceProviders come
// from configuration and are matched case-insensitively.
func New(runCtx *docctx.Context, a analyzer.Analyzer, fundFamily, serviceProviders []string) *Classifier {
	c := &Classifier{
		ctx:              runCtx,
		analyzer:         a,
		fundFamily:       make(map[string]bool, len(fundFamily)),
		serviceProviders: make(map[string]bool, len(serviceProviders)),
	}
	for _, name := range fundFamily {
		c.fundFamily[strings.ToLower(strings.TrimSpace(name))] = true
	}
	for _, name := range serviceProviders {
		c.serviceProviders[strings.ToLower(strings.TrimSpace(name))] = true
	}
	return c
}

// Classify resolves a term's category. localContext is the text surrounding
// the mention, passed to the analyzer for disambiguation only; the result is
// cached by normalized term alone, treating a term's category as
// context-independent within one document. On analyzer failure the term is
// conservatively treated as a security so a possible violation is flagged
// for review rather than silently cleared.
func (c *Classifier) Classify(ctx context.Context, term, localContext string) (docctx.Classification, error) {
	normalized := strings.ToLower(strings.TrimSpace(term))
	if normalized == "" {
		return docctx.Classification{Type: TypeExcluded, Confidence: 100}, nil
	}

	if cls, ok := c.ctx.CachedClassification(normalized); ok {
		return cls, nil
	}

	if cls, ok := c.classifyStatic(normalized); ok {
		c.ctx.PutClassification(normalized, cls)
		return cls, nil
	}

	return c.ctx.Classification(ctx, normalized, func(ctx context.Context) (docctx.Classification, error) {
		cls, err := c.classifySemantic(ctx, term, localContext)
		if err != nil {
			zap.L().Warn("classifier: analyzer failed, defaulting to security",
				zap.String("term", term),
				zap.Error(err),
			)
			// Fail conservative: never cleared silently. Cached so the
			// failure costs one attempt per term per run.
			return docctx.Classification{Type: TypeUnknown, IsSecurity: true, Confidence: 0}, nil
		}
		return cls, nil
	})
}

func (c *Classifier) classifyStatic(normalized string) (docctx.Classification, bool) {
	switch {
	case staticExclusions[normalized]:
		return docctx.Classification{Type: TypeExcluded, Confidence: 100}, true
	case c.fundFamily[normalized]:
		return docctx.Classification{Type: TypeExcluded, Confidence: 100}, true
	case c.serviceProviders[normalized]:
		return docctx.Classification{Type: TypeServiceProvider, Confidence: 100}, true
	}
	return docctx.Classification{}, false
}

func (c *Classifier) classifySemantic(ctx context.Context, term, localContext string) (docctx.Classification, error) {
	ans, err := c.analyzer.Ask(ctx, analyzer.Question{
		Subject: "classify-term",
		Prompt: fmt.Sprintf(
			"Is %q a tradable security (a stock, bond or listed instrument of a single issuer), "+
				"a service provider (custodian, auditor, administrator), or a general concept, "+
				"given the surrounding text?", term),
		Context: localContext,
		Schema: map[string]string{
			"category":    "string", // "security" | "service_provider" | "concept"
			"is_security": "bool",
		},
	})
	if err != nil {
		return docctx.Classification{}, err
	}

	category := strings.ToLower(ans.String("category"))
	switch category {
	case TypeSecurity, TypeServiceProvider, TypeConcept:
	default:
		category = TypeUnknown
	}
	return docctx.Classification{
		Type:       category,
		IsSecurity: ans.Bool("is_security") || category == TypeSecurity,
		Confidence: ans.Confidence,
	}, nil
}
