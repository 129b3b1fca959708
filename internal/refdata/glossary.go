package refdata

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/compliance-cli/internal/model"
)

// DisclaimerTemplate is one canonical disclaimer text.
type DisclaimerTemplate struct {
	Key      string `yaml:"key"` // stable template name, e.g. "capital_risk"
	Language string `yaml:"language"`
	Client   string `yaml:"client_type"`
	Company  string `yaml:"management_company"`
	Text     string `yaml:"text"`
	Required bool   `yaml:"required"`
}

// DisclaimerGlossary indexes disclaimer templates by
// (language, client type, management company).
type DisclaimerGlossary struct {
	templates []DisclaimerTemplate
}

// NewGlossary builds a glossary from already-parsed templates.
func NewGlossary(templates []DisclaimerTemplate) *DisclaimerGlossary {
	return &DisclaimerGlossary{templates: templates}
}

// Len returns the number of templates in the glossary.
func (g *DisclaimerGlossary) Len() int {
	return len(g.templates)
}

type glossaryFile struct {
	Templates []DisclaimerTemplate `yaml:"templates"`
}

// LoadGlossary reads a disclaimer glossary YAML file.
func LoadGlossary(path string) (*DisclaimerGlossary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "refdata: read glossary")
	}
	var gf glossaryFile
	if err := yaml.Unmarshal(data, &gf); err != nil {
		return nil, eris.Wrap(err, "refdata: parse glossary")
	}
	return &DisclaimerGlossary{templates: gf.Templates}, nil
}

// Templates returns the templates applicable to the given metadata, falling
// back from company-specific to company-neutral entries. An empty result
// means the glossary has no entry for this (language, client, company) key;
// the Disclaimers module treats that as missing reference data, not as a
// missing disclaimer.
func (g *DisclaimerGlossary) Templates(md model.Metadata) []DisclaimerTemplate {
	if g == nil {
		return nil
	}
	lang := strings.ToLower(md.Language)
	client := string(md.ClientType)
	company := NormalizeName(md.ManagementCompany)

	var exact, neutral []DisclaimerTemplate
	for _, t := range g.templates {
		if !strings.EqualFold(t.Language, lang) && t.Language != "" && lang != "" {
			continue
		}
		if t.Client != "" && t.Client != client {
			continue
		}
		switch {
		case t.Company == "":
			neutral = append(neutral, t)
		case NormalizeName(t.Company) == company:
			exact = append(exact, t)
		}
	}
	if len(exact) > 0 {
		return append(exact, neutral...)
	}
	return neutral
}
