package model

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/rotisserie/eris"
)

// CheckModule names one of the eight independent rule categories.
type CheckModule string

const (
	ModuleStructure    CheckModule = "structure"
	ModuleRegistration CheckModule = "registration"
	ModuleDisclaimers  CheckModule = "disclaimers"
	ModuleGeneral      CheckModule = "general"
	ModuleSecurities   CheckModule = "securities"
	ModuleESG          CheckModule = "esg"
	ModulePerformance  CheckModule = "performance"
	ModuleProspectus   CheckModule = "prospectus"
)

// AllModules lists the check modules in canonical report order.
var AllModules = []CheckModule{
	ModuleStructure,
	ModuleRegistration,
	ModuleDisclaimers,
	ModuleGeneral,
	ModuleSecurities,
	ModuleESG,
	ModulePerformance,
	ModuleProspectus,
}

// Severity ranks a violation.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityWarning  Severity = "warning"
)

// Rank returns the sort weight for a severity, critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityMajor:
		return 1
	case SeverityWarning:
		return 2
	default:
		return 3
	}
}

// Validation is the tagged variant describing how a rule is checked. Each
// concrete type carries only the fields its check needs; dispatch is an
// exhaustive type switch so a new validation kind is a compile-time addition.
type Validation interface {
	validationKind() string
}

// PresenceValidation requires a field or keyword set to be present.
type PresenceValidation struct {
	Field    string   // structured field name, e.g. "promotional_document_mention"
	Keywords []string // alternative: at least one keyword must appear
}

// AbsenceValidation forbids any of the listed terms.
type AbsenceValidation struct {
	ForbiddenTerms []string
}

// FormatValidation requires matching text to satisfy a format pattern.
type FormatValidation struct {
	Field   string
	Pattern string
}

// ExternalReferenceValidation checks document statements against a reference
// dataset (registration table, glossary, prospectus facts).
type ExternalReferenceValidation struct {
	Dataset string // "registration" | "glossary" | "prospectus"
	Fact    string // which fact within the dataset, e.g. "minimum_investment"
}

// SemanticValidation delegates the judgment to the semantic analyzer.
type SemanticValidation struct {
	Question string   // bounded question template
	Keywords []string // pre-filter: only ask when one of these appears
}

func (PresenceValidation) validationKind() string          { return "presence" }
func (AbsenceValidation) validationKind() string           { return "absence" }
func (FormatValidation) validationKind() string            { return "format" }
func (ExternalReferenceValidation) validationKind() string { return "external_reference" }
func (SemanticValidation) validationKind() string          { return "semantic" }

// Rule is one immutable compliance rule, loaded from a module's rule file and
// shared read-only across a run.
type Rule struct {
	ID          string
	Module      CheckModule
	Severity    Severity
	Description string
	Validation  Validation
	// AppliesTo restricts the rule to a client type. Empty means always.
	AppliesTo ClientType
	// SuggestedFix is surfaced verbatim on violations of this rule.
	SuggestedFix string
}

// Applies reports whether the rule is in force for the given metadata. Rules
// restricted to a client type do not apply when the type is unknown; the
// caller records those as skipped, not passed.
func (r *Rule) Applies(md Metadata) bool {
	if r.AppliesTo == "" {
		return true
	}
	return r.AppliesTo == md.ClientType
}

// rawRule is the YAML wire shape of a rule.
type rawRule struct {
	RuleID         string   `yaml:"rule_id"`
	Severity       string   `yaml:"severity"`
	Description    string   `yaml:"description"`
	ValidationType string   `yaml:"validation_type"`
	Field          string   `yaml:"field,omitempty"`
	Pattern        string   `yaml:"pattern,omitempty"`
	Keywords       []string `yaml:"keywords,omitempty"`
	ForbiddenTerms []string `yaml:"forbidden_terms,omitempty"`
	Dataset        string   `yaml:"dataset,omitempty"`
	Fact           string   `yaml:"fact,omitempty"`
	Question       string   `yaml:"question,omitempty"`
	AppliesIf      string   `yaml:"applies_if,omitempty"`
	SuggestedFix   string   `yaml:"suggested_fix,omitempty"`
}

// RuleFile is the YAML wire shape of one module's rule file.
type RuleFile struct {
	Category string    `yaml:"category"`
	Rules    []rawRule `yaml:"rules"`
}

// ParseRuleFile decodes one module's rule file and converts each record into
// a typed Rule. Unknown validation types and malformed applies_if predicates
// are hard errors so a bad corpus is caught at load, not mid-run.
func ParseRuleFile(data []byte, module CheckModule) ([]Rule, error) {
	var rf RuleFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return nil, eris.Wrapf(err, "rules: parse %s file", module)
	}

	rules := make([]Rule, 0, len(rf.Rules))
	seen := make(map[string]bool, len(rf.Rules))
	for _, raw := range rf.Rules {
		if raw.RuleID == "" {
			return nil, eris.Errorf("rules: %s: rule with empty rule_id", module)
		}
		if seen[raw.RuleID] {
			return nil, eris.Errorf("rules: %s: duplicate rule_id %q", module, raw.RuleID)
		}
		seen[raw.RuleID] = true

		r, err := raw.toRule(module)
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

func (raw rawRule) toRule(module CheckModule) (Rule, error) {
	var v Validation
	switch raw.ValidationType {
	case "presence":
		v = PresenceValidation{Field: raw.Field, Keywords: raw.Keywords}
	case "absence":
		v = AbsenceValidation{ForbiddenTerms: raw.ForbiddenTerms}
	case "format":
		v = FormatValidation{Field: raw.Field, Pattern: raw.Pattern}
	case "external_reference":
		v = ExternalReferenceValidation{Dataset: raw.Dataset, Fact: raw.Fact}
	case "semantic":
		v = SemanticValidation{Question: raw.Question, Keywords: raw.Keywords}
	default:
		return Rule{}, eris.Errorf("rules: %s/%s: unknown validation_type %q",
			module, raw.RuleID, raw.ValidationType)
	}

	var sev Severity
	switch raw.Severity {
	case "critical":
		sev = SeverityCritical
	case "major":
		sev = SeverityMajor
	case "warning", "":
		sev = SeverityWarning
	default:
		return Rule{}, eris.Errorf("rules: %s/%s: unknown severity %q",
			module, raw.RuleID, raw.Severity)
	}

	applies, err := parseAppliesIf(raw.AppliesIf)
	if err != nil {
		return Rule{}, eris.Wrapf(err, "rules: %s/%s", module, raw.RuleID)
	}

	return Rule{
		ID:           raw.RuleID,
		Module:       module,
		Severity:     sev,
		Description:  raw.Description,
		Validation:   v,
		AppliesTo:    applies,
		SuggestedFix: raw.SuggestedFix,
	}, nil
}

// parseAppliesIf understands predicates of the form "client_type=retail".
func parseAppliesIf(expr string) (ClientType, error) {
	if expr == "" {
		return "", nil
	}
	var ct string
	if _, err := fmt.Sscanf(expr, "client_type=%s", &ct); err != nil {
		return "", eris.Errorf("unsupported applies_if predicate %q", expr)
	}
	switch ClientType(ct) {
	case ClientRetail, ClientProfessional:
		return ClientType(ct), nil
	default:
		return "", eris.Errorf("applies_if references unknown client_type %q", ct)
	}
}
