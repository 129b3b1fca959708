package refdata

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/compliance-cli/internal/model"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Germany", "germany"},
		{"  Luxembourg  ", "luxembourg"},
		{"Allemagne (Fund)", "allemagne"},
		{"Côte d'Ivoire", "cote d'ivoire"},
		{"ESPAÑA", "espana"},
		{"United   Kingdom", "united kingdom"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeName(c.in), c.in)
	}
}

func TestNormalizeName_Idempotent(t *testing.T) {
	for _, s := range []string{"Allemagne (Fund)", "España", "  Hong Kong SAR ", "Österreich"} {
		once := NormalizeName(s)
		assert.Equal(t, once, NormalizeName(once))
	}
}

func TestNormalize_DistinctWithoutAlias(t *testing.T) {
	// Distinct canonical forms unless the alias table maps them.
	assert.NotEqual(t, NormalizeName("Germany"), NormalizeName("Allemagne (Fund)"))
	// With the alias table they resolve to the same canonical country.
	assert.Equal(t, CanonicalCountry("Germany"), CanonicalCountry("Allemagne (Fund)"))
	assert.Equal(t, "spain", CanonicalCountry("España"))
	assert.Equal(t, "austria", CanonicalCountry("Österreich"))
}

func TestRegistrationJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "reg.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"fund_name":"Fund X","isin":"LU0000000001","share_class":"A","country":"France","status":"authorized"},
		{"fund_name":"Fund X","isin":"LU0000000001","share_class":"A","country":"Germany","status":"registered"},
		{"fund_name":"Fund X","isin":"LU0000000001","share_class":"A","country":"Luxembourg","status":"authorized"},
		{"fund_name":"Fund X","isin":"LU0000000001","share_class":"A","country":"Spain","status":"withdrawn"}
	]`), 0o644))

	table, err := LoadRegistrationJSON(path)
	require.NoError(t, err)

	countries, ok := table.AuthorizedCountries("LU0000000001")
	require.True(t, ok)
	assert.Len(t, countries, 3)

	assert.True(t, table.IsAuthorized("LU0000000001", "France"))
	assert.True(t, table.IsAuthorized("LU0000000001", "Allemagne"))
	assert.False(t, table.IsAuthorized("LU0000000001", "Spain")) // withdrawn
	assert.False(t, table.IsAuthorized("LU0000000002", "France"))
}

func TestRegistration_SubstringMatch(t *testing.T) {
	table := &RegistrationTable{byISIN: map[string]map[string]bool{
		"LU1": {"hong kong sar": true},
	}}
	assert.True(t, table.IsAuthorized("LU1", "Hong Kong"))
}

func TestGlossaryTemplates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "glossary.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
templates:
  - key: capital_risk
    language: fr
    client_type: retail
    text: "Le capital investi n'est pas garanti."
    required: true
  - key: capital_risk
    language: fr
    client_type: retail
    management_company: ACME Asset Management
    text: "ACME: le capital investi n'est pas garanti."
    required: true
  - key: past_performance
    language: de
    client_type: professional
    text: "Die Wertentwicklung der Vergangenheit ist kein Indikator."
`), 0o644))

	g, err := LoadGlossary(path)
	require.NoError(t, err)

	md := model.Metadata{Language: "fr", ClientType: model.ClientRetail, ManagementCompany: "ACME Asset Management"}
	templates := g.Templates(md)
	require.NotEmpty(t, templates)
	assert.Contains(t, templates[0].Text, "ACME")

	// No entry for (de, retail): missing reference data, not zero disclaimers.
	none := g.Templates(model.Metadata{Language: "de", ClientType: model.ClientRetail})
	assert.Empty(t, none)
}

func TestProspectusFact(t *testing.T) {
	facts := &ProspectusFacts{
		MinimumInvestment: "USD 150,000",
		AllocationLimits:  map[string]string{"equity_max": "60%"},
	}
	v, ok := facts.Fact("minimum_investment")
	assert.True(t, ok)
	assert.Equal(t, "USD 150,000", v)

	v, ok = facts.Fact("equity_max")
	assert.True(t, ok)
	assert.Equal(t, "60%", v)

	_, ok = facts.Fact("benchmark_name")
	assert.False(t, ok)

	var nilFacts *ProspectusFacts
	_, ok = nilFacts.Fact("minimum_investment")
	assert.False(t, ok)
}

func TestLoad_MissingDatasetsRecorded(t *testing.T) {
	dir := t.TempDir()
	// Only one rule file present.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "structure.yaml"), []byte(`
category: structure
rules:
  - rule_id: STRUCT-001
    severity: critical
    validation_type: presence
    field: promotional_document_mention
`), 0o644))

	store, err := Load(Paths{RulesDir: dir})
	require.NoError(t, err)

	rules, ok := store.Rules(model.ModuleStructure)
	assert.True(t, ok)
	assert.Len(t, rules, 1)

	_, ok = store.Rules(model.ModuleESG)
	assert.False(t, ok)
	assert.Contains(t, store.Missing, "rules/esg")
	assert.Contains(t, store.Missing, "registration")
	assert.Contains(t, store.Missing, "glossary")
	assert.Contains(t, store.Missing, "prospectus")
}

func TestLoad_MalformedRuleFileFatal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "general.yaml"), []byte(`
rules:
  - rule_id: G-1
    validation_type: nonsense
`), 0o644))

	_, err := Load(Paths{RulesDir: dir})
	require.Error(t, err)
}
