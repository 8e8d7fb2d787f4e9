package risk

import (
	"context"
	"log/slog"
	"strings"

	"github.com/ronyzarom/SecureWatch-sub001/internal/domain"
)

// Analyzer scores messages by keyword rules. Scores are clamped to 0..100
// and a message is flagged when the score reaches the rule set's
// threshold.
type Analyzer struct {
	rules  RuleSet
	logger *slog.Logger
}

// NewAnalyzer creates an Analyzer for the given rule set.
func NewAnalyzer(rules RuleSet, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	if rules.FlagThreshold <= 0 {
		rules.FlagThreshold = DefaultRuleSet().FlagThreshold
	}
	return &Analyzer{rules: rules, logger: logger}
}

// Score evaluates one canonical message. Outbound messages from
// unresolved senders are weighted up slightly: mail leaving the
// organization from an account not linked to an employee is its own
// signal.
func (a *Analyzer) Score(ctx context.Context, m *domain.CanonicalMessage, id domain.ResolvedIdentity) (domain.RiskResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.RiskResult{}, err
	}

	haystack := strings.ToLower(m.Subject + "\n" + m.BodyText)
	score := 0
	category := ""
	topWeight := 0

	for _, rule := range a.rules.Rules {
		for _, kw := range rule.Keywords {
			if kw == "" {
				continue
			}
			if strings.Contains(haystack, strings.ToLower(kw)) {
				score += rule.Weight
				if rule.Weight > topWeight {
					topWeight = rule.Weight
					category = rule.Category
				}
				break // one hit per rule
			}
		}
	}

	if score > 0 && m.Direction == domain.DirectionOutbound && !id.Resolved() {
		score += 10
	}
	if score > 100 {
		score = 100
	}

	return domain.RiskResult{
		Score:    score,
		Flagged:  score >= a.rules.FlagThreshold,
		Category: category,
	}, nil
}
