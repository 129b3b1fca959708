package engine

import (
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

// filterViolations applies the false-positive pattern list and the
// confidence threshold to the merged candidate set. Critical violations
// bypass the threshold but not the pattern list. The input is never mutated;
// dropped candidates are returned for the report's audit section.
func filterViolations(candidates []model.Violation, patterns []refdata.FalsePositivePattern, threshold int) (kept, filteredOut []model.Violation) {
	for _, v := range candidates {
		if p, ok := matchPattern(v, patterns); ok {
			zap.L().Debug("filter: false-positive pattern hit",
				zap.String("rule_id", v.RuleID),
				zap.String("evidence_substring", p.EvidenceSubstring),
			)
			filteredOut = append(filteredOut, v)
			continue
		}
		if v.Severity != model.SeverityCritical && v.Confidence < threshold {
			filteredOut = append(filteredOut, v)
			continue
		}
		kept = append(kept, v)
	}
	return kept, filteredOut
}

func matchPattern(v model.Violation, patterns []refdata.FalsePositivePattern) (refdata.FalsePositivePattern, bool) {
	evidence := strings.ToLower(v.Evidence)
	for _, p := range patterns {
		if p.RuleID != v.RuleID {
			continue
		}
		if p.EvidenceSubstring == "" {
			return p, true
		}
		if strings.Contains(evidence, strings.ToLower(p.EvidenceSubstring)) {
			return p, true
		}
	}
	return refdata.FalsePositivePattern{}, false
}
