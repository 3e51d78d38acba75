// Package automation implements an event-condition-action rule engine for
// workforce operations: domain events and recurring schedules are matched
// against declarative rules whose actions drive the surrounding
// application's job, shift, worker, notification and payment collaborators.
package automation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shiftlane/automation/internal/logger"
)

const conditionsNotMet = "Conditions not met"

// Engine owns a rule registry and an execution log, routes incoming events
// to matching rules, and drives recurring schedules. Construct one per
// scope (tenant, test); there is no package-level instance.
type Engine struct {
	store    RuleStore
	log      ExecutionLog
	executor *Executor
	programs *programCache
	sched    *scheduler
	suggest  SuggestionProvider

	// delayUnit is the wall-clock meaning of Action.DelayMinutes.
	// Production value is time.Minute; tests shrink it.
	delayUnit time.Duration

	mu      sync.Mutex
	started bool
	delayed map[*time.Timer]struct{}

	// updateMu serializes every read-modify-write of stored rules, both
	// counter bumps after an execution and UpdateRule patches, so neither
	// can overwrite the other with a stale copy.
	updateMu sync.Mutex
}

// NewEngine creates an engine over the given store, log and executor, and
// compiles the expressions of all rules already in the store.
func NewEngine(store RuleStore, execLog ExecutionLog, executor *Executor) (*Engine, error) {
	programs, err := newProgramCache()
	if err != nil {
		return nil, err
	}

	e := &Engine{
		store:     store,
		log:       execLog,
		executor:  executor,
		programs:  programs,
		delayUnit: time.Minute,
		delayed:   make(map[*time.Timer]struct{}),
	}
	e.sched = newScheduler(e)

	rules, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	for _, r := range rules {
		if err := programs.compile(r.ID, r.Expression); err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.ID, err)
		}
	}
	return e, nil
}

// SetSuggestionProvider installs the optional advisory provider.
func (e *Engine) SetSuggestionProvider(p SuggestionProvider) {
	e.suggest = p
}

// AddRule registers a new rule. A missing ID is generated. Counters and
// metrics start at zero regardless of what the caller passed. Fails with
// ErrDuplicateRule if the ID is taken; an invalid CEL expression is
// rejected before the store is touched.
func (e *Engine) AddRule(rule *Rule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.ExecutionCount = 0
	rule.LastExecuted = nil
	rule.Metrics = RuleMetrics{}

	if err := e.programs.compile(rule.ID, rule.Expression); err != nil {
		return fmt.Errorf("rule validation failed: %w", err)
	}

	if err := e.store.Add(rule); err != nil {
		e.programs.remove(rule.ID)
		return err
	}

	e.rearm(rule)
	return nil
}

// RemoveRule deletes a rule and reports whether it existed. Past execution
// records are kept.
func (e *Engine) RemoveRule(id string) bool {
	if err := e.store.Delete(id); err != nil {
		return false
	}
	e.programs.remove(id)
	e.sched.disarm(id)
	return true
}

// UpdateRule merges the patch into an existing rule. Returns
// ErrRuleNotFound for an unknown ID; an invalid new expression rejects the
// whole patch.
func (e *Engine) UpdateRule(id string, patch RulePatch) error {
	rule, err := e.applyPatch(id, patch)
	if err != nil {
		return err
	}
	e.rearm(rule)
	return nil
}

func (e *Engine) applyPatch(id string, patch RulePatch) (*Rule, error) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	rule, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}

	if patch.Name != nil {
		rule.Name = *patch.Name
	}
	if patch.Description != nil {
		rule.Description = *patch.Description
	}
	if patch.Trigger != nil {
		rule.Trigger = *patch.Trigger
	}
	if patch.Conditions != nil {
		rule.Conditions = *patch.Conditions
	}
	if patch.Actions != nil {
		rule.Actions = *patch.Actions
	}
	if patch.Active != nil {
		rule.Active = *patch.Active
	}
	if patch.Expression != nil {
		if err := e.programs.compile(id, *patch.Expression); err != nil {
			return nil, fmt.Errorf("rule validation failed: %w", err)
		}
		rule.Expression = *patch.Expression
	}

	if err := e.store.Update(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ActivateRule enables a rule. Returns true whenever the rule exists,
// including when it was already active.
func (e *Engine) ActivateRule(id string) bool {
	active := true
	return e.UpdateRule(id, RulePatch{Active: &active}) == nil
}

// DeactivateRule disables a rule. Returns true whenever the rule exists,
// including when it was already inactive.
func (e *Engine) DeactivateRule(id string) bool {
	active := false
	return e.UpdateRule(id, RulePatch{Active: &active}) == nil
}

// Rule returns one rule by ID.
func (e *Engine) Rule(id string) (*Rule, error) {
	return e.store.Get(id)
}

// Rules returns all registered rules, oldest first.
func (e *Engine) Rules() ([]*Rule, error) {
	rules, err := e.store.List()
	if err != nil {
		return nil, err
	}
	sortRules(rules)
	return rules, nil
}

// Executions returns up to limit execution records, newest first.
func (e *Engine) Executions(limit int) ([]*ExecutionRecord, error) {
	return e.log.Recent(limit)
}

// Stats aggregates outcomes across the whole execution log.
func (e *Engine) Stats() (ExecutionStats, error) {
	return e.log.Stats()
}

// TriggerEvent routes a domain event to every active rule with a matching
// trigger type and executes each independently. One rule's failure never
// blocks the others, and no rule- or action-level failure propagates to
// the caller; outcomes are returned as execution records.
func (e *Engine) TriggerEvent(ctx context.Context, eventType TriggerType, payload map[string]any) []*ExecutionRecord {
	rules, err := e.store.ListActive()
	if err != nil {
		logger.Error("list rules for event failed", "event", string(eventType), "error", err)
		return nil
	}
	sortRules(rules)

	var records []*ExecutionRecord
	for _, rule := range rules {
		if rule.Trigger.Type != eventType {
			continue
		}
		rec, err := e.ExecuteRule(ctx, rule.ID, payload)
		if err != nil {
			// Rule raced away between listing and execution.
			logger.Warn("rule skipped during dispatch", "ruleId", rule.ID, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records
}

// ExecuteRule runs one rule against a payload. Direct calls on a missing
// or inactive rule are hard errors; everything that happens inside the run
// itself becomes part of the returned record. The rule's execution counter
// and metrics are updated regardless of outcome.
func (e *Engine) ExecuteRule(ctx context.Context, id string, payload map[string]any) (*ExecutionRecord, error) {
	rule, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if !rule.Active {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleInactive)
	}

	start := time.Now()
	rec := &ExecutionRecord{
		ID:          uuid.NewString(),
		RuleID:      rule.ID,
		TriggerType: rule.Trigger.Type,
		Payload:     payload,
		StartedAt:   start,
	}

	e.run(ctx, rule, payload, rec)

	rec.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)
	if err := e.log.Append(rec); err != nil {
		logger.Error("append execution record failed", "ruleId", rule.ID, "error", err)
	}
	e.recordOutcome(rule.ID, rec)
	return rec, nil
}

// run evaluates conditions and executes actions, filling in the record.
// Panics anywhere inside the run surface here as a failed result.
func (e *Engine) run(ctx context.Context, rule *Rule, payload map[string]any, rec *ExecutionRecord) {
	defer func() {
		if r := recover(); r != nil {
			rec.Result = ResultFailed
			rec.Errors = append(rec.Errors, fmt.Sprintf("panic: %v", r))
		}
	}()

	matched := EvalConditions(rule.Conditions, payload)
	if matched && rule.Expression != "" {
		ok, err := e.programs.eval(rule.ID, payload)
		if err != nil {
			rec.Result = ResultFailed
			rec.Errors = append(rec.Errors, fmt.Sprintf("expression: %v", err))
			return
		}
		matched = ok
	}
	if !matched {
		rec.Result = ResultFailed
		rec.Errors = append(rec.Errors, conditionsNotMet)
		return
	}

	for _, action := range rule.Actions {
		if action.DelayMinutes > 0 {
			e.scheduleDelayed(rec, action, payload)
			continue
		}
		if err := e.safeExecute(ctx, action, payload); err != nil {
			rec.Errors = append(rec.Errors, fmt.Sprintf("%s: %v", action.Type, err))
			continue
		}
		rec.ExecutedActions = append(rec.ExecutedActions, action.Type)
	}

	if len(rec.Errors) > 0 {
		rec.Result = ResultPartial
	} else {
		rec.Result = ResultSuccess
	}
}

// safeExecute runs one action, converting a panic in a collaborator into
// an ordinary action error.
func (e *Engine) safeExecute(ctx context.Context, action Action, payload map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return e.executor.Execute(ctx, action, payload)
}

// scheduleDelayed arms a fire-and-forget timer that executes the action
// through the same executor contract and records its outcome as a separate
// execution record referencing the originating one. The origin record does
// not wait for, or reflect, the deferred outcome.
func (e *Engine) scheduleDelayed(origin *ExecutionRecord, action Action, payload map[string]any) {
	delay := time.Duration(action.DelayMinutes) * e.delayUnit
	deferred := action
	deferred.DelayMinutes = 0

	e.mu.Lock()
	defer e.mu.Unlock()

	var t *time.Timer
	t = time.AfterFunc(delay, func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("panic in delayed action", "ruleId", origin.RuleID, "panic", r)
			}
		}()
		e.mu.Lock()
		delete(e.delayed, t)
		e.mu.Unlock()

		start := time.Now()
		rec := &ExecutionRecord{
			ID:           uuid.NewString(),
			RuleID:       origin.RuleID,
			TriggerType:  origin.TriggerType,
			Payload:      payload,
			StartedAt:    start,
			DeferredFrom: origin.ID,
		}
		if err := e.safeExecute(context.Background(), deferred, payload); err != nil {
			rec.Result = ResultFailed
			rec.Errors = []string{fmt.Sprintf("%s: %v", deferred.Type, err)}
		} else {
			rec.Result = ResultSuccess
			rec.ExecutedActions = []ActionType{deferred.Type}
		}
		rec.DurationMS = float64(time.Since(start)) / float64(time.Millisecond)
		if err := e.log.Append(rec); err != nil {
			logger.Error("append deferred record failed", "ruleId", origin.RuleID, "error", err)
		}
	})
	e.delayed[t] = struct{}{}
}

// recordOutcome bumps the rule's counters and recomputes its aggregate
// metrics, keeping ExecutionCount equal to the sum of the per-result
// counts.
func (e *Engine) recordOutcome(ruleID string, rec *ExecutionRecord) {
	e.updateMu.Lock()
	defer e.updateMu.Unlock()

	rule, err := e.store.Get(ruleID)
	if err != nil {
		return
	}

	now := rec.StartedAt
	rule.ExecutionCount++
	rule.LastExecuted = &now

	m := &rule.Metrics
	switch rec.Result {
	case ResultSuccess:
		m.SuccessCount++
	case ResultPartial:
		m.PartialCount++
	default:
		m.ErrorCount++
	}
	n := float64(rule.ExecutionCount)
	m.AvgExecutionMS = (m.AvgExecutionMS*(n-1) + rec.DurationMS) / n
	m.SuccessRate = float64(m.SuccessCount) / n

	if err := e.store.Update(rule); err != nil {
		logger.Warn("persist rule metrics failed", "ruleId", rule.ID, "error", err)
	}
}

// AnalyzeRule asks the optional suggestion provider for advice about a
// rule. Without a provider it returns no suggestions.
func (e *Engine) AnalyzeRule(ctx context.Context, id string) ([]Suggestion, error) {
	rule, err := e.store.Get(id)
	if err != nil {
		return nil, err
	}
	if e.suggest == nil {
		return nil, nil
	}
	suggestions, err := e.suggest.Analyze(ctx, rule)
	if err != nil {
		logger.Warn("suggestion provider failed", "ruleId", id, "error", err)
		return nil, nil
	}
	return suggestions, nil
}

// Start arms the recurring schedule of every active schedule_time rule.
// Calling Start on a running engine has no additional effect.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return nil
	}
	e.started = true
	e.mu.Unlock()

	e.sched.reset()
	rules, err := e.store.ListActive()
	if err != nil {
		return fmt.Errorf("arm schedules: %w", err)
	}
	for _, r := range rules {
		if r.Trigger.Type == TriggerScheduleTime {
			e.sched.arm(r.ID, r.Trigger.Schedule)
		}
	}
	return nil
}

// Stop cancels all pending recurring fires and delayed-action timers.
// In-flight executions are allowed to complete.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.started = false
	for t := range e.delayed {
		t.Stop()
		delete(e.delayed, t)
	}
	e.mu.Unlock()

	e.sched.stop()
}

// Started reports whether the engine is running.
func (e *Engine) Started() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.started
}

// rearm refreshes the schedule timer of a rule after a mutation, but only
// while the engine is running.
func (e *Engine) rearm(rule *Rule) {
	e.mu.Lock()
	started := e.started
	e.mu.Unlock()
	if !started {
		return
	}
	if rule.Active && rule.Trigger.Type == TriggerScheduleTime {
		e.sched.arm(rule.ID, rule.Trigger.Schedule)
	} else {
		e.sched.disarm(rule.ID)
	}
}

func sortRules(rules []*Rule) {
	sort.Slice(rules, func(i, j int) bool {
		if rules[i].CreatedAt.Equal(rules[j].CreatedAt) {
			return rules[i].ID < rules[j].ID
		}
		return rules[i].CreatedAt.Before(rules[j].CreatedAt)
	})
}

// IsNotFound reports whether err means the addressed rule does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRuleNotFound)
}
