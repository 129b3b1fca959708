// Package docctx holds the per-run mutable state shared by all check
// modules: resolved metadata, slide summaries and the two memoization caches
// that bound external analyzer calls to one per key per run.
package docctx

import (
	"context"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/compliance-cli/internal/model"
)

const summaryLength = 200

// Classification is a cached entity classification.
type Classification struct {
	Type       string // "security" | "service_provider" | "concept" | "excluded" | "unknown"
	IsSecurity bool
	Confidence int
}

// SlideSubject is a cached answer to "whose performance does this slide
// discuss".
type SlideSubject struct {
	Subject    string // "fund" | "market" | "none"
	Confidence int
}

// Context is built once per run and discarded at run end. It is mutated only
// through the guarded caches; everything else is read-only after New.
type Context struct {
	Metadata model.Metadata

	// SlideSummaries holds a one-line synopsis per slide, keyed by slide
	// number. Built before any check runs; used purely as disambiguation
	// context for semantic questions, never as a fact source.
	SlideSummaries map[int]string

	// MetadataComplete is false when client_type could not be resolved from
	// either the document or the override file. Modules skip client-type
	// dependent checks and record skipped_insufficient_metadata.
	MetadataComplete bool

	classifications *memoCache[Classification]
	subjects        *memoCache[SlideSubject]
	esgSlides       *memoCache[bool]
	advice          *memoCache[adviceJudgment]
}

type adviceJudgment struct {
	IsAdvice   bool
	Evidence   string
	Confidence int
}

// Overrides is the optional client-supplied metadata file with
// human-readable keys. Values fill fields the document left blank;
// client_type and management_company overrides take precedence over empty
// document fields.
type Overrides map[string]string

// New validates the document and builds the run context. A validation
// failure is structural and aborts the run before any module starts.
func New(doc *model.Document, overrides Overrides) (*Context, error) {
	if err := doc.Validate(); err != nil {
		return nil, eris.Wrap(err, "docctx: structural validation")
	}

	md := resolveMetadata(doc.Metadata, overrides)

	ctx := &Context{
		Metadata:         md,
		SlideSummaries:   make(map[int]string),
		MetadataComplete: md.ClientType != model.ClientUnknown,
		classifications:  newMemoCache[Classification](),
		subjects:         newMemoCache[SlideSubject](),
		esgSlides:        newMemoCache[bool](),
		advice:           newMemoCache[adviceJudgment](),
	}

	for _, slide := range doc.Slides() {
		ctx.SlideSummaries[slide.Number] = summarize(slide)
	}
	return ctx, nil
}

// resolveMetadata merges document metadata with the override file. Overrides
// win only where the document's own field is empty, except client_type and
// management_company where a non-empty override always wins.
func resolveMetadata(md model.Metadata, overrides Overrides) model.Metadata {
	get := func(keys ...string) string {
		for _, k := range keys {
			for ok, v := range overrides {
				if strings.EqualFold(strings.TrimSpace(ok), k) {
					return strings.TrimSpace(v)
				}
			}
		}
		return ""
	}

	// Overrides fill blanks only; a document's own field always stands.
	if v := get("is client professional"); v != "" && md.ClientType == "" {
		if isAffirmative(v) {
			md.ClientType = model.ClientProfessional
		} else {
			md.ClientType = model.ClientRetail
		}
	}
	if v := get("client type", "client_type"); v != "" && md.ClientType == "" {
		md.ClientType = model.ClientType(strings.ToLower(v))
	}
	if v := get("management company", "management_company"); v != "" && md.ManagementCompany == "" {
		md.ManagementCompany = v
	}
	if md.FundISIN == "" {
		md.FundISIN = get("fund isin", "isin")
	}
	if md.Language == "" {
		md.Language = get("language", "document language")
	}
	if md.ESGClassification == "" {
		md.ESGClassification = get("esg classification", "sfdr classification")
	}

	switch md.ClientType {
	case model.ClientRetail, model.ClientProfessional:
	default:
		md.ClientType = model.ClientUnknown
	}
	return md
}

func isAffirmative(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "yes", "true", "y", "oui", "ja", "1":
		return true
	}
	return false
}

// summarize extracts the first ~200 characters of normalized slide text.
func summarize(s *model.Slide) string {
	text := strings.Join(strings.Fields(s.Title+" "+s.AllText()), " ")
	if len(text) > summaryLength {
		cut := summaryLength
		// Back up to a rune boundary so the summary stays valid UTF-8.
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

// Classification returns the cached classification for a normalized term,
// computing it at most once per run per term.
func (c *Context) Classification(ctx context.Context, term string, compute func(ctx context.Context) (Classification, error)) (Classification, error) {
	return c.classifications.GetOrCompute(ctx, normalizeTerm(term), compute)
}

// CachedClassification performs a lookup without computing.
func (c *Context) CachedClassification(term string) (Classification, bool) {
	return c.classifications.Get(normalizeTerm(term))
}

// PutClassification stores a classification computed outside the cache path
// (static exclusion lists).
func (c *Context) PutClassification(term string, cls Classification) {
	c.classifications.Put(normalizeTerm(term), cls)
}

// Subject returns the cached performance subject for a slide, computing it
// at most once per run per slide.
func (c *Context) Subject(ctx context.Context, slideNumber int, compute func(ctx context.Context) (SlideSubject, error)) (SlideSubject, error) {
	return c.subjects.GetOrCompute(ctx, strconv.Itoa(slideNumber), compute)
}

// ESGSlide returns the cached is-this-slide-ESG judgment for a slide.
func (c *Context) ESGSlide(ctx context.Context, slideNumber int, compute func(ctx context.Context) (bool, error)) (bool, error) {
	return c.esgSlides.GetOrCompute(ctx, strconv.Itoa(slideNumber), compute)
}

// InvestmentAdvice returns the cached advice judgment for a slide.
func (c *Context) InvestmentAdvice(ctx context.Context, slideNumber int, compute func(ctx context.Context) (bool, string, int, error)) (isAdvice bool, evidence string, confidence int, err error) {
	j, err := c.advice.GetOrCompute(ctx, strconv.Itoa(slideNumber), func(ctx context.Context) (adviceJudgment, error) {
		a, e, conf, err := compute(ctx)
		return adviceJudgment{IsAdvice: a, Evidence: e, Confidence: conf}, err
	})
	if err != nil {
		return false, "", 0, err
	}
	return j.IsAdvice, j.Evidence, j.Confidence, nil
}

// ClassifiedTerms returns how many distinct terms have been classified.
func (c *Context) ClassifiedTerms() int {
	return c.classifications.Len()
}

func normalizeTerm(term string) string {
	return strings.ToLower(strings.TrimSpace(term))
}
