package refdata

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/model"
)

// FalsePositivePattern suppresses known systematic false positives: a
// candidate violation matching the rule ID whose evidence contains the
// substring is filtered out (but retained for audit).
type FalsePositivePattern struct {
	RuleID            string `yaml:"rule_id"`
	EvidenceSubstring string `yaml:"evidence_substring"`
	Note              string `yaml:"note,omitempty"`
}

// Store is the read-only reference data for one run: per-module rule sets,
// the registration table, the disclaimer glossary, prospectus facts and the
// false-positive pattern list. Every dataset is optional; Missing records
// what could not be loaded so modules can degrade explicitly.
type Store struct {
	rules         map[model.CheckModule][]model.Rule
	Registration  *RegistrationTable
	Glossary      *DisclaimerGlossary
	Prospectus    *ProspectusFacts
	FalsePositive []FalsePositivePattern

	// Missing maps a dataset name to the load failure reason.
	Missing map[string]string
}

// Paths locates the reference data on disk. Empty fields are skipped.
type Paths struct {
	RulesDir         string
	RegistrationFile string
	GlossaryFile     string
	ProspectusFile   string
	FalsePositives   string
}

// NewStore builds an in-memory store from already-parsed rule sets. The
// remaining datasets are assigned directly to the exported fields.
func NewStore(rules map[model.CheckModule][]model.Rule) *Store {
	if rules == nil {
		rules = make(map[model.CheckModule][]model.Rule)
	}
	return &Store{rules: rules, Missing: make(map[string]string)}
}

// Rules returns a module's rule set and whether its rule file was loaded.
func (s *Store) Rules(m model.CheckModule) ([]model.Rule, bool) {
	rules, ok := s.rules[m]
	return rules, ok
}

// Load reads all reference data. Individual datasets failing to load are
// recorded in Missing and logged, never fatal: a module with no rule file
// runs degraded, reporting "not verified" rather than a false pass.
func Load(paths Paths) (*Store, error) {
	s := &Store{
		rules:   make(map[model.CheckModule][]model.Rule),
		Missing: make(map[string]string),
	}
	log := zap.L()

	for _, m := range model.AllModules {
		if paths.RulesDir == "" {
			s.Missing["rules/"+string(m)] = "rules directory not configured"
			continue
		}
		path := filepath.Join(paths.RulesDir, string(m)+".yaml")
		data, err := os.ReadFile(path)
		if err != nil {
			s.Missing["rules/"+string(m)] = err.Error()
			log.Warn("refdata: rule file unavailable",
				zap.String("module", string(m)),
				zap.Error(err),
			)
			continue
		}
		rules, err := model.ParseRuleFile(data, m)
		if err != nil {
			// A malformed rule file is a corpus defect, not a runtime
			// condition to degrade around.
			return nil, eris.Wrapf(err, "refdata: rule file %s", path)
		}
		s.rules[m] = rules
	}

	if paths.RegistrationFile != "" {
		reg, err := LoadRegistration(paths.RegistrationFile)
		if err != nil {
			s.Missing["registration"] = err.Error()
			log.Warn("refdata: registration table unavailable", zap.Error(err))
		} else {
			s.Registration = reg
		}
	} else {
		s.Missing["registration"] = "not configured"
	}

	if paths.GlossaryFile != "" {
		gl, err := LoadGlossary(paths.GlossaryFile)
		if err != nil {
			s.Missing["glossary"] = err.Error()
			log.Warn("refdata: disclaimer glossary unavailable", zap.Error(err))
		} else {
			s.Glossary = gl
		}
	} else {
		s.Missing["glossary"] = "not configured"
	}

	if paths.ProspectusFile != "" {
		facts, err := LoadProspectusFacts(paths.ProspectusFile)
		if err != nil {
			s.Missing["prospectus"] = err.Error()
			log.Warn("refdata: prospectus facts unavailable", zap.Error(err))
		} else {
			s.Prospectus = facts
		}
	} else {
		s.Missing["prospectus"] = "not configured"
	}

	if paths.FalsePositives != "" {
		patterns, err := loadFalsePositives(paths.FalsePositives)
		if err != nil {
			s.Missing["false_positives"] = err.Error()
			log.Warn("refdata: false-positive patterns unavailable", zap.Error(err))
		} else {
			s.FalsePositive = patterns
		}
	}

	return s, nil
}

type falsePositiveFile struct {
	Patterns []FalsePositivePattern `yaml:"patterns"`
}

func loadFalsePositives(path string) ([]FalsePositivePattern, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read false-positive patterns")
	}
	var f falsePositiveFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "refdata: parse false-positive patterns")
	}
	return f.Patterns, nil
}
