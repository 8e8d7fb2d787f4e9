// Package risk ships a rule-based reference implementation of the risk
// analyzer contract. The production scoring algorithm lives outside this
// repository; anything implementing domain.RiskAnalyzer can replace it.
package risk

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule matches keywords against a message and contributes weight to its
// score.
type Rule struct {
	Name     string   `yaml:"name"`
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
	Weight   int      `yaml:"weight"`
}

// RuleSet is a named collection of rules with a flagging threshold.
type RuleSet struct {
	Name          string `yaml:"name"`
	FlagThreshold int    `yaml:"flagThreshold"`
	Rules         []Rule `yaml:"rules"`
}

// DefaultRuleSet returns the built-in rules used when no rules directory
// is configured.
func DefaultRuleSet() RuleSet {
	return RuleSet{
		Name:          "builtin",
		FlagThreshold: 60,
		Rules: []Rule{
			{
				Name:     "financial-pressure",
				Category: "financial",
				Keywords: []string{"wire transfer", "urgent payment", "invoice overdue", "gift card"},
				Weight:   40,
			},
			{
				Name:     "data-exfiltration",
				Category: "exfiltration",
				Keywords: []string{"customer list", "source code", "export database", "personal dropbox"},
				Weight:   50,
			},
			{
				Name:     "credential-sharing",
				Category: "credentials",
				Keywords: []string{"password is", "login as me", "my credentials", "api key"},
				Weight:   35,
			},
			{
				Name:     "offboarding-risk",
				Category: "retention",
				Keywords: []string{"resignation", "final day", "competitor offer"},
				Weight:   25,
			},
		},
	}
}

// LoadRulesDirectory loads rule sets from YAML files in dir and merges
// them into one set. Files must have a .yaml or .yml extension. A missing
// directory is not an error: the default rule set is returned.
func LoadRulesDirectory(dir string, logger *slog.Logger) (RuleSet, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if dir == "" {
		return DefaultRuleSet(), nil
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		logger.Debug("rules directory does not exist, using builtin rules", "dir", dir)
		return DefaultRuleSet(), nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return RuleSet{}, fmt.Errorf("read rules dir: %w", err)
	}

	merged := RuleSet{Name: "merged", FlagThreshold: DefaultRuleSet().FlagThreshold}
	loaded := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml") {
			continue
		}

		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logger.Warn("cannot read rules file", "path", path, "err", err)
			continue
		}

		var rs RuleSet
		if err := yaml.Unmarshal(data, &rs); err != nil {
			logger.Warn("cannot parse rules file", "path", path, "err", err)
			continue
		}
		if rs.FlagThreshold > 0 {
			merged.FlagThreshold = rs.FlagThreshold
		}
		merged.Rules = append(merged.Rules, rs.Rules...)
		loaded++
		logger.Info("loaded risk rules", "file", name, "rules", len(rs.Rules))
	}

	if loaded == 0 {
		return DefaultRuleSet(), nil
	}
	return merged, nil
}
