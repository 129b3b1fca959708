package model

import (
	"github.com/google/uuid"
)

// DetectionMethod records how a violation was found.
type DetectionMethod string

const (
	DetectionFieldCheck     DetectionMethod = "field-check"
	DetectionKeywordMatch   DetectionMethod = "keyword-match"
	DetectionSemantic       DetectionMethod = "semantic"
	DetectionCrossReference DetectionMethod = "cross-reference"
)

// Location pins a violation to a slide and section.
type Location struct {
	SlideNumber int    `json:"slide_number"`
	Section     string `json:"section"`
}

// Violation is one compliance finding. Created by a check module as a
// candidate; the filter produces a reduced copy of the list, never edits
// violations in place.
type Violation struct {
	ID              string          `json:"violation_id"`
	RuleID          string          `json:"rule_id"`
	Module          CheckModule     `json:"module"`
	Severity        Severity        `json:"severity"`
	Location        Location        `json:"location"`
	Evidence        string          `json:"evidence"`
	Confidence      int             `json:"confidence"` // 0-100
	DetectionMethod DetectionMethod `json:"detection_method"`
	Explanation     string          `json:"explanation"`
	SuggestedFix    string          `json:"suggested_fix,omitempty"`
	// ManualReview marks findings that exist only because the analyzer could
	// not give a confident answer; they require human confirmation.
	ManualReview bool `json:"manual_review,omitempty"`
}

// NewViolation assigns a fresh ID to a finding.
func NewViolation(v Violation) Violation {
	v.ID = uuid.NewString()
	return v
}
