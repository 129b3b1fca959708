package refdata

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// ProspectusFacts holds key facts extracted upstream from the fund
// prospectus. All fields are optional; an empty value degrades the checks
// that need it, never the run.
type ProspectusFacts struct {
	BenchmarkName      string            `json:"benchmark_name,omitempty"`
	BenchmarkSpec      string            `json:"benchmark_specification,omitempty"`
	MinimumInvestment  string            `json:"minimum_investment,omitempty"`
	ManagementFee      string            `json:"management_fee,omitempty"`
	AllocationLimits   map[string]string `json:"asset_allocation_thresholds,omitempty"`
	Risks              []string          `json:"risks,omitempty"`
}

// LoadProspectusFacts reads prospectus facts from JSON.
func LoadProspectusFacts(path string) (*ProspectusFacts, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read prospectus facts")
	}
	var facts ProspectusFacts
	if err := json.Unmarshal(data, &facts); err != nil {
		return nil, eris.Wrap(err, "refdata: parse prospectus facts")
	}
	return &facts, nil
}

// Fact returns a named prospectus fact by its rule-file key.
func (p *ProspectusFacts) Fact(name string) (string, bool) {
	if p == nil {
		return "", false
	}
	switch strings.ToLower(name) {
	case "benchmark_name":
		return p.BenchmarkName, p.BenchmarkName != ""
	case "benchmark_specification":
		return p.BenchmarkSpec, p.BenchmarkSpec != ""
	case "minimum_investment":
		return p.MinimumInvestment, p.MinimumInvestment != ""
	case "management_fee":
		return p.ManagementFee, p.ManagementFee != ""
	default:
		if v, ok := p.AllocationLimits[name]; ok && v != "" {
			return v, true
		}
		return "", false
	}
}
