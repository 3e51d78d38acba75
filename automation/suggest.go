package automation

import "context"

// Suggestion is advisory feedback about a rule. Suggestions never affect
// rule execution.
type Suggestion struct {
	RuleID     string  `json:"ruleId"`
	Kind       string  `json:"kind"`
	Message    string  `json:"message"`
	Confidence float64 `json:"confidence"`
}

// SuggestionProvider analyzes a rule and proposes improvements. The engine
// tolerates a missing or failing provider; correctness never depends on it.
type SuggestionProvider interface {
	Analyze(ctx context.Context, rule *Rule) ([]Suggestion, error)
}

// HeuristicSuggestionProvider is the built-in provider: deterministic
// checks on rule shape and aggregate outcomes. Model-backed providers plug
// in behind the same interface.
type HeuristicSuggestionProvider struct{}

func (HeuristicSuggestionProvider) Analyze(_ context.Context, rule *Rule) ([]Suggestion, error) {
	var out []Suggestion

	if len(rule.Conditions) == 0 && rule.Expression == "" {
		out = append(out, Suggestion{
			RuleID:     rule.ID,
			Kind:       "unconditional",
			Message:    "rule has no conditions and will fire on every matching event",
			Confidence: 0.9,
		})
	}

	if rule.Active && rule.ExecutionCount == 0 {
		out = append(out, Suggestion{
			RuleID:     rule.ID,
			Kind:       "never_executed",
			Message:    "rule is active but has never executed; check its trigger and conditions",
			Confidence: 0.6,
		})
	}

	if rule.ExecutionCount >= 10 && rule.Metrics.SuccessRate < 0.5 {
		out = append(out, Suggestion{
			RuleID:     rule.ID,
			Kind:       "low_success_rate",
			Message:    "more than half of this rule's runs fail; inspect recent execution errors",
			Confidence: 0.8,
		})
	}

	return out, nil
}
