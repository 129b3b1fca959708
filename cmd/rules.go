package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/compliance-cli/internal/model"
)

var rulesModule string

type ruleFileStatus struct {
	Module model.CheckModule `json:"module"`
	File   string            `json:"file"`
	Rules  []string          `json:"rules,omitempty"`
	Error  string            `json:"error,omitempty"`
}

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Validate and list the configured rule files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("rules"); err != nil {
			return err
		}

		var statuses []ruleFileStatus
		invalid := 0
		for _, m := range model.AllModules {
			if rulesModule != "" && rulesModule != string(m) {
				continue
			}
			path := filepath.Join(cfg.Refdata.RulesDir, string(m)+".yaml")
			st := ruleFileStatus{Module: m, File: path}

			data, err := os.ReadFile(path)
			if err != nil {
				st.Error = err.Error()
				invalid++
				statuses = append(statuses, st)
				continue
			}
			rules, err := model.ParseRuleFile(data, m)
			if err != nil {
				st.Error = err.Error()
				invalid++
				statuses = append(statuses, st)
				continue
			}
			for _, r := range rules {
				st.Rules = append(st.Rules, r.ID)
			}
			statuses = append(statuses, st)
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(statuses); err != nil {
			return err
		}
		if invalid > 0 {
			return eris.Errorf("%d rule file(s) failed validation", invalid)
		}
		return nil
	},
}

func init() {
	rulesCmd.Flags().StringVar(&rulesModule, "module", "", "restrict to one check module")
	rootCmd.AddCommand(rulesCmd)
}
