package main

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/compliance-cli/internal/model"
	"github.com/sells-group/compliance-cli/internal/refdata"
)

type refdataStatus struct {
	Rules        map[model.CheckModule]int `json:"rules"`
	Registration int                       `json:"registration_funds"`
	Glossary     int                       `json:"glossary_templates"`
	Prospectus   bool                      `json:"prospectus_facts"`
	Patterns     int                       `json:"false_positive_patterns"`
	Missing      map[string]string         `json:"missing,omitempty"`
}

var refdataCmd = &cobra.Command{
	Use:   "refdata",
	Short: "Inspect the configured reference datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		ref, err := refdata.Load(refdata.Paths{
			RulesDir:         cfg.Refdata.RulesDir,
			RegistrationFile: cfg.Refdata.RegistrationFile,
			GlossaryFile:     cfg.Refdata.GlossaryFile,
			ProspectusFile:   cfg.Refdata.ProspectusFile,
			FalsePositives:   cfg.Refdata.FalsePositives,
		})
		if err != nil {
			return eris.Wrap(err, "load reference data")
		}

		status := refdataStatus{
			Rules:      make(map[model.CheckModule]int, len(model.AllModules)),
			Prospectus: ref.Prospectus != nil,
			Patterns:   len(ref.FalsePositive),
			Missing:    ref.Missing,
		}
		for _, m := range model.AllModules {
			if rules, ok := ref.Rules(m); ok {
				status.Rules[m] = len(rules)
			}
		}
		if ref.Registration != nil {
			status.Registration = ref.Registration.Funds()
		}
		if ref.Glossary != nil {
			status.Glossary = ref.Glossary.Len()
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	},
}

func init() {
	rootCmd.AddCommand(refdataCmd)
}
