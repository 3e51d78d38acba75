package automation

import (
	"context"
	"testing"
)

func TestHeuristicSuggestionProvider(t *testing.T) {
	provider := HeuristicSuggestionProvider{}

	tests := []struct {
		name      string
		rule      *Rule
		wantKinds []string
	}{
		{
			name: "healthy rule gets nothing",
			rule: &Rule{
				ID:             "r",
				Conditions:     []Condition{{Field: "x", Operator: OpExists}},
				Active:         true,
				ExecutionCount: 20,
				Metrics:        RuleMetrics{SuccessCount: 18, SuccessRate: 0.9},
			},
			wantKinds: nil,
		},
		{
			name: "unconditional rule flagged",
			rule: &Rule{
				ID:             "r",
				Active:         true,
				ExecutionCount: 5,
				Metrics:        RuleMetrics{SuccessRate: 1},
			},
			wantKinds: []string{"unconditional"},
		},
		{
			name: "expression counts as a condition",
			rule: &Rule{
				ID:             "r",
				Expression:     "event.x > 1",
				Active:         true,
				ExecutionCount: 5,
				Metrics:        RuleMetrics{SuccessRate: 1},
			},
			wantKinds: nil,
		},
		{
			name: "active but never executed",
			rule: &Rule{
				ID:         "r",
				Conditions: []Condition{{Field: "x", Operator: OpExists}},
				Active:     true,
			},
			wantKinds: []string{"never_executed"},
		},
		{
			name: "inactive never-executed rule not flagged",
			rule: &Rule{
				ID:         "r",
				Conditions: []Condition{{Field: "x", Operator: OpExists}},
			},
			wantKinds: nil,
		},
		{
			name: "low success rate over enough runs",
			rule: &Rule{
				ID:             "r",
				Conditions:     []Condition{{Field: "x", Operator: OpExists}},
				Active:         true,
				ExecutionCount: 12,
				Metrics:        RuleMetrics{SuccessCount: 3, SuccessRate: 0.25},
			},
			wantKinds: []string{"low_success_rate"},
		},
		{
			name: "low rate with too few runs not flagged",
			rule: &Rule{
				ID:             "r",
				Conditions:     []Condition{{Field: "x", Operator: OpExists}},
				Active:         true,
				ExecutionCount: 4,
				Metrics:        RuleMetrics{SuccessCount: 1, SuccessRate: 0.25},
			},
			wantKinds: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := provider.Analyze(context.Background(), tt.rule)
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if len(got) != len(tt.wantKinds) {
				t.Fatalf("got %d suggestions (%v), want %d", len(got), got, len(tt.wantKinds))
			}
			for i, kind := range tt.wantKinds {
				if got[i].Kind != kind {
					t.Errorf("suggestion[%d].Kind = %q, want %q", i, got[i].Kind, kind)
				}
				if got[i].Confidence <= 0 || got[i].Confidence > 1 {
					t.Errorf("suggestion[%d].Confidence = %v out of range", i, got[i].Confidence)
				}
			}
		})
	}
}
