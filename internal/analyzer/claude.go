package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/compliance-cli/internal/resilience"
	"github.com/sells-group/compliance-cli/pkg/anthropic"
)

const systemPrompt = `You review marketing documents for investment funds.
Answer the question about the provided text precisely. Respond with a single
JSON object matching the requested fields exactly, plus a "confidence" field
between 0 and 100. No commentary outside the JSON object.`

// Options configures the Claude-backed analyzer.
type Options struct {
	Model          string
	MaxTokens      int64
	RequestTimeout time.Duration // per attempt, default 30s
	MaxAttempts    int           // total attempts per question, default 3
	RequestsPerSec float64       // rate limit, default 2
	Cache          *AnswerCache  // optional persistent cache
}

// Stats is a snapshot of analyzer activity for one adapter lifetime.
type Stats struct {
	Calls          int
	CacheHits      int
	Failures       int
	Usage          anthropic.TokenUsage
}

// Claude implements Analyzer on top of pkg/anthropic, layering per-attempt
// timeout, bounded retry, a circuit breaker, rate limiting, schema
// validation with repair-and-reparse, and an optional persistent cache.
type Claude struct {
	client  anthropic.Client
	opts    Options
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
	retry   resilience.RetryConfig

	mu    sync.Mutex
	stats Stats
}

// NewClaude creates the production analyzer adapter.
func NewClaude(client anthropic.Client, opts Options) *Claude {
	if opts.Model == "" {
		opts.Model = "claude-haiku-4-5-20251001"
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 512
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.RequestsPerSec <= 0 {
		opts.RequestsPerSec = 2
	}

	retryCfg := resilience.DefaultRetryConfig()
	retryCfg.MaxAttempts = opts.MaxAttempts
	retryCfg.OnRetry = resilience.RetryLogger("anthropic", "ask")

	return &Claude{
		client:  client,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSec), 1),
		breaker: resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:   retryCfg,
	}
}

// Ask answers one bounded question. Failures that survive retry and repair
// are returned wrapped in ErrUnavailable; the caller decides whether that
// becomes a manual-review finding.
func (c *Claude) Ask(ctx context.Context, q Question) (*Answer, error) {
	if c.opts.Cache != nil {
		if ans, ok := c.opts.Cache.Get(ctx, q); ok {
			c.mu.Lock()
			c.stats.CacheHits++
			c.mu.Unlock()
			return ans, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "analyzer: rate limit wait")
	}

	ans, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (*Answer, error) {
		var out *Answer
		callErr := c.breaker.Execute(ctx, func(ctx context.Context) error {
			attempt, err := c.ask(ctx, q)
			if err != nil {
				return err
			}
			out = attempt
			return nil
		})
		return out, callErr
	})
	if err != nil {
		c.mu.Lock()
		c.stats.Failures++
		c.mu.Unlock()
		zap.L().Warn("analyzer: question failed",
			zap.String("subject", q.Subject),
			zap.Error(err),
		)
		return nil, eris.Wrap(ErrUnavailable, err.Error())
	}

	if c.opts.Cache != nil {
		c.opts.Cache.Put(ctx, q, ans)
	}
	return ans, nil
}

func (c *Claude) ask(ctx context.Context, q Question) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, c.opts.RequestTimeout)
	defer cancel()

	resp, err := c.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     c.opts.Model,
		MaxTokens: c.opts.MaxTokens,
		System:    anthropic.BuildCachedSystemBlocks(systemPrompt),
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(q)},
		},
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.stats.Calls++
	c.stats.Usage.Add(resp.Usage)
	c.mu.Unlock()

	fields, err := parseStructured(resp.Text(), q.Schema)
	if err != nil {
		// Malformed after repair: transient from the retry loop's point of
		// view, a re-ask often yields well-formed JSON.
		return nil, resilience.NewTransientError(err, 0)
	}

	return &Answer{
		Fields:     fields,
		Confidence: extractConfidence(fields),
	}, nil
}

// Stats returns a snapshot of the adapter's counters.
func (c *Claude) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func buildPrompt(q Question) string {
	var b strings.Builder
	b.WriteString(q.Prompt)
	b.WriteString("\n\nExpected JSON fields:\n")

	names := make([]string, 0, len(q.Schema))
	for name := range q.Schema {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&b, "- %q (%s)\n", name, q.Schema[name])
	}

	if q.Context != "" {
		b.WriteString("\nText:\n\"\"\"\n")
		b.WriteString(q.Context)
		b.WriteString("\n\"\"\"")
	}
	return b.String()
}

// marshalAnswer serializes an answer for the persistent cache.
func marshalAnswer(a *Answer) ([]byte, error) {
	return json.Marshal(struct {
		Fields     map[string]any `json:"fields"`
		Confidence int            `json:"confidence"`
	}{a.Fields, a.Confidence})
}

func unmarshalAnswer(data []byte) (*Answer, error) {
	var wire struct {
		Fields     map[string]any `json:"fields"`
		Confidence int            `json:"confidence"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, err
	}
	return &Answer{Fields: wire.Fields, Confidence: wire.Confidence}, nil
}
