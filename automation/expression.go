package automation

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// expressionCostLimit caps CEL evaluation cost so a hostile or runaway
// expression cannot exhaust the process.
const expressionCostLimit = 1_000_000

// programCache compiles and caches the optional rule-level CEL expressions.
// Expressions see the event payload as the dynamic variable "event".
type programCache struct {
	env      *cel.Env
	programs map[string]cel.Program
	mu       sync.RWMutex
}

func newProgramCache() (*programCache, error) {
	env, err := cel.NewEnv(
		cel.Variable("event", cel.DynType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &programCache{
		env:      env,
		programs: make(map[string]cel.Program),
	}, nil
}

// compile type-checks and caches the expression for a rule. An empty
// expression clears any cached program.
func (pc *programCache) compile(ruleID, expression string) error {
	if expression == "" {
		pc.remove(ruleID)
		return nil
	}

	ast, issues := pc.env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return fmt.Errorf("expression compile error: %w", issues.Err())
	}

	prog, err := pc.env.Program(ast, cel.CostLimit(expressionCostLimit))
	if err != nil {
		return fmt.Errorf("expression program error: %w", err)
	}

	pc.mu.Lock()
	pc.programs[ruleID] = prog
	pc.mu.Unlock()
	return nil
}

func (pc *programCache) remove(ruleID string) {
	pc.mu.Lock()
	delete(pc.programs, ruleID)
	pc.mu.Unlock()
}

// eval runs the compiled expression for a rule against the payload.
// Non-boolean results evaluate to false: an expression that does not
// produce a boolean never matches.
func (pc *programCache) eval(ruleID string, payload map[string]any) (bool, error) {
	pc.mu.RLock()
	prog, ok := pc.programs[ruleID]
	pc.mu.RUnlock()

	if !ok {
		return false, fmt.Errorf("rule %s expression is not compiled", ruleID)
	}

	out, _, err := prog.Eval(map[string]any{"event": payload})
	if err != nil {
		return false, err
	}

	b, ok := out.Value().(bool)
	return ok && b, nil
}
