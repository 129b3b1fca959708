// Package analyzer defines the semantic analyzer port: a single bounded
// operation that answers a natural-language question about a text span with
// a structured reply and a confidence score. Check modules depend only on
// the Analyzer interface; transport, retry, schema repair and caching live
// in the Claude adapter.
package analyzer

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// Question is one bounded question about a text span. Schema constrains the
// expected reply shape so the adapter can validate and repair malformed
// replies before they reach a check module.
type Question struct {
	// Subject is a stable identifier for what is being asked, used as the
	// cache key component, e.g. "classify-term" or "slide-subject".
	Subject string
	// Prompt is the question itself.
	Prompt string
	// Context is the document text the question is about.
	Context string
	// Schema maps expected reply field names to type hints:
	// "string", "number", "bool" or "string_list".
	Schema map[string]string
}

// CacheKey returns a deterministic key covering everything that influences
// the answer.
func (q Question) CacheKey() string {
	fields := make([]string, 0, len(q.Schema))
	for k, v := range q.Schema {
		fields = append(fields, k+":"+v)
	}
	sort.Strings(fields)
	return fmt.Sprintf("%s|%s|%s|%s", q.Subject, q.Prompt, q.Context, strings.Join(fields, ","))
}

// Answer is a validated structured reply.
type Answer struct {
	Fields     map[string]any
	Confidence int // 0-100
}

// String returns a string field, or "" when absent or mistyped.
func (a *Answer) String(key string) string {
	if a == nil {
		return ""
	}
	s, _ := a.Fields[key].(string)
	return s
}

// Bool returns a bool field. Accepts JSON booleans and "yes"/"no"/"true"/
// "false" strings, which analyzer replies sometimes use.
func (a *Answer) Bool(key string) bool {
	if a == nil {
		return false
	}
	switch v := a.Fields[key].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "true":
			return true
		}
	}
	return false
}

// Float returns a numeric field, or 0 when absent.
func (a *Answer) Float(key string) float64 {
	if a == nil {
		return 0
	}
	switch v := a.Fields[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	}
	return 0
}

// StringSlice returns a string-list field.
func (a *Answer) StringSlice(key string) []string {
	if a == nil {
		return nil
	}
	raw, ok := a.Fields[key].([]any)
	if !ok {
		if direct, ok2 := a.Fields[key].([]string); ok2 {
			return direct
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// Analyzer answers bounded questions about document text.
type Analyzer interface {
	Ask(ctx context.Context, q Question) (*Answer, error)
}

// ErrUnavailable wraps analyzer failures that exhausted retries and repair.
// Check modules convert it into a "manual review required" warning
// violation, never a thrown error.
var ErrUnavailable = eris.New("analyzer: unavailable")
