package model

import (
	"sort"
	"time"
)

// ModuleOutcome describes whether a check module ran, was degraded by missing
// reference data, or was skipped after an unrecoverable failure.
type ModuleOutcome struct {
	Module   CheckModule `json:"module"`
	Status   string      `json:"status"` // "ran" | "degraded" | "skipped"
	Reason   string      `json:"reason,omitempty"`
	Findings int         `json:"findings"`
}

// SkippedCheck records a rule that could not be evaluated, with the reason.
// Skips are surfaced in the report rather than silently ignored.
type SkippedCheck struct {
	RuleID string      `json:"rule_id"`
	Module CheckModule `json:"module"`
	Reason string      `json:"reason"` // e.g. "skipped_insufficient_metadata"
}

// SlideReport groups a slide's violations.
type SlideReport struct {
	SlideNumber int         `json:"slide_number"`
	Violations  []Violation `json:"violations"`
}

// CostSummary attributes analyzer usage to the run.
type CostSummary struct {
	AnalyzerCalls    int     `json:"analyzer_calls"`
	CacheHits        int     `json:"cache_hits"`
	InputTokens      int64   `json:"input_tokens"`
	OutputTokens     int64   `json:"output_tokens"`
	EstimatedCostUSD float64 `json:"estimated_cost_usd"`
}

// Report is the immutable final output of one run.
type Report struct {
	RunID           string                      `json:"run_id"`
	GeneratedAt     time.Time                   `json:"generated_at"`
	FundISIN        string                      `json:"fund_isin,omitempty"`
	FundName        string                      `json:"fund_name,omitempty"`
	ComplianceScore float64                     `json:"compliance_score"`
	TotalSlides     int                         `json:"total_slides"`
	CompliantSlides int                         `json:"compliant_slides"`
	Violations      []Violation                 `json:"violations"`
	BySlide         []SlideReport               `json:"by_slide"`
	ByModule        map[CheckModule][]Violation `json:"by_module"`
	BySeverity      map[Severity]int            `json:"by_severity"`
	ModulesRun      []ModuleOutcome             `json:"modules_run"`
	Skipped         []SkippedCheck              `json:"skipped_checks,omitempty"`
	FilteredOut     []Violation                 `json:"filtered_out,omitempty"`
	Cost            CostSummary                 `json:"cost"`
}

// SortViolations orders a violation list by slide, then severity (critical
// first), then rule ID. Used everywhere a deterministic ordering is required.
func SortViolations(vs []Violation) {
	sort.SliceStable(vs, func(i, j int) bool {
		if vs[i].Location.SlideNumber != vs[j].Location.SlideNumber {
			return vs[i].Location.SlideNumber < vs[j].Location.SlideNumber
		}
		if vs[i].Severity.Rank() != vs[j].Severity.Rank() {
			return vs[i].Severity.Rank() < vs[j].Severity.Rank()
		}
		return vs[i].RuleID < vs[j].RuleID
	})
}
