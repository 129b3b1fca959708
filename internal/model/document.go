package model

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"
)

// ClientType identifies the intended audience of a marketing document.
type ClientType string

const (
	ClientRetail       ClientType = "retail"
	ClientProfessional ClientType = "professional"
	ClientUnknown      ClientType = "unknown"
)

// Metadata holds document-level facts resolved from the document itself,
// optionally overridden by an external metadata file.
type Metadata struct {
	ClientType        ClientType `json:"client_type"`
	FundISIN          string     `json:"fund_isin"`
	FundName          string     `json:"fund_name"`
	ESGClassification string     `json:"esg_classification"`
	DocumentType      string     `json:"document_type"`
	ManagementCompany string     `json:"management_company"`
	Language          string     `json:"language"`
}

// Slide is one page of the document model. Fixed-position pages (cover,
// disclaimer, closing) carry their structured fields in Content; body slides
// carry free text, tables and notes.
type Slide struct {
	Number  int               `json:"slide_number"`
	Title   string            `json:"title,omitempty"`
	Text    []string          `json:"text,omitempty"`
	Tables  [][]string        `json:"tables,omitempty"`
	Notes   string            `json:"notes,omitempty"`
	Content map[string]string `json:"content,omitempty"`
	Layout  map[string]string `json:"layout,omitempty"`
}

// AllText returns the slide's text lines, table cells, structured content
// values and notes joined into a single searchable string.
func (s *Slide) AllText() string {
	var b strings.Builder
	for _, line := range s.Text {
		b.WriteString(line)
		b.WriteString("\n")
	}
	for _, row := range s.Tables {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	// Map order is random; sort keys so excerpts are stable across runs.
	keys := make([]string, 0, len(s.Content))
	for k := range s.Content {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.WriteString(s.Content[k])
		b.WriteString("\n")
	}
	if s.Notes != "" {
		b.WriteString(s.Notes)
		b.WriteString("\n")
	}
	return b.String()
}

// Field returns a structured content field, falling back to a case-insensitive
// scan of the free text for "key: value" lines. The bool reports whether the
// value came from the structured field (true) or the free-text fallback.
func (s *Slide) Field(key string) (string, bool) {
	if v, ok := s.Content[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v), true
	}
	needle := strings.ToLower(strings.ReplaceAll(key, "_", " "))
	for _, line := range s.Text {
		lower := strings.ToLower(line)
		if idx := strings.Index(lower, needle+":"); idx >= 0 {
			return strings.TrimSpace(line[idx+len(needle)+1:]), false
		}
	}
	return "", false
}

// Document is the structured representation of one marketing document.
// Immutable once loaded; owned exclusively by a single run.
type Document struct {
	Metadata       Metadata `json:"document_metadata"`
	CoverPage      *Slide   `json:"cover_page,omitempty"`
	DisclaimerPage *Slide   `json:"disclaimer_slide,omitempty"`
	BodySlides     []Slide  `json:"body_slides"`
	ClosingPage    *Slide   `json:"closing_page,omitempty"`
}

// Slides returns all pages in presentation order: cover, body, disclaimer,
// closing. Nil fixed pages are omitted.
func (d *Document) Slides() []*Slide {
	out := make([]*Slide, 0, len(d.BodySlides)+3)
	if d.CoverPage != nil {
		out = append(out, d.CoverPage)
	}
	for i := range d.BodySlides {
		out = append(out, &d.BodySlides[i])
	}
	if d.DisclaimerPage != nil {
		out = append(out, d.DisclaimerPage)
	}
	if d.ClosingPage != nil {
		out = append(out, d.ClosingPage)
	}
	return out
}

// SlideCount returns the number of pages including fixed-position ones.
func (d *Document) SlideCount() int {
	return len(d.Slides())
}

// Validate performs the minimal shape validation required before a run may
// start. Failures here are structural and abort the run.
func (d *Document) Validate() error {
	if d == nil {
		return eris.New("document: nil")
	}
	if len(d.BodySlides) == 0 {
		return eris.New("document: no body slides")
	}
	seen := make(map[int]bool, len(d.BodySlides))
	for i := range d.BodySlides {
		n := d.BodySlides[i].Number
		if n <= 0 {
			return eris.Errorf("document: body slide %d has invalid slide_number %d", i, n)
		}
		if seen[n] {
			return eris.Errorf("document: duplicate slide_number %d", n)
		}
		seen[n] = true
	}
	return nil
}
