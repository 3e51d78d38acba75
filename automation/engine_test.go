package automation

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shiftlane/automation/workforce"
)

func newTestEngine(t *testing.T) (*Engine, *workforce.MemoryStore) {
	t.Helper()
	world := workforce.NewMemoryStore()
	engine, err := NewEngine(NewInMemoryRuleStore(), NewInMemoryExecutionLog(), &Executor{
		Jobs:     world,
		Shifts:   world,
		Workers:  world,
		Notifier: world,
		Payments: world,
		Email:    world,
		Tasks:    world,
	})
	if err != nil {
		t.Fatalf("NewEngine() error: %v", err)
	}
	t.Cleanup(engine.Stop)
	return engine, world
}

func assignUrgentRule() *Rule {
	return &Rule{
		ID:      "assign-urgent",
		Name:    "Assign urgent jobs",
		Trigger: Trigger{Type: TriggerJobCreated},
		Conditions: []Condition{
			{Field: "priority", Operator: OpEquals, Value: "high"},
		},
		Actions: []Action{{
			Type:       ActionAssignWorker,
			Assignment: &AssignmentConfig{Criteria: CriteriaBestMatch},
		}},
		Active: true,
	}
}

func TestAddRule(t *testing.T) {
	engine, _ := newTestEngine(t)

	t.Run("generates missing id and zeroes counters", func(t *testing.T) {
		last := time.Now()
		rule := &Rule{
			Name:           "noisy input",
			Trigger:        Trigger{Type: TriggerUserRegistered},
			Actions:        []Action{{Type: ActionSendEmail, Email: &EmailConfig{To: "x"}}},
			Active:         true,
			ExecutionCount: 99,
			LastExecuted:   &last,
			Metrics:        RuleMetrics{SuccessCount: 99},
		}
		if err := engine.AddRule(rule); err != nil {
			t.Fatalf("AddRule() error: %v", err)
		}
		if rule.ID == "" {
			t.Error("AddRule() left ID empty")
		}
		got, err := engine.Rule(rule.ID)
		if err != nil {
			t.Fatalf("Rule() error: %v", err)
		}
		if got.ExecutionCount != 0 || got.LastExecuted != nil || got.Metrics.SuccessCount != 0 {
			t.Errorf("counters not zeroed: %+v", got)
		}
	})

	t.Run("duplicate id rejected", func(t *testing.T) {
		if err := engine.AddRule(assignUrgentRule()); err != nil {
			t.Fatalf("AddRule() error: %v", err)
		}
		err := engine.AddRule(assignUrgentRule())
		if !errors.Is(err, ErrDuplicateRule) {
			t.Errorf("AddRule() error = %v, want ErrDuplicateRule", err)
		}
	})

	t.Run("invalid expression rejected before store", func(t *testing.T) {
		rule := assignUrgentRule()
		rule.ID = "bad-expr"
		rule.Expression = "event.amount >"
		if err := engine.AddRule(rule); err == nil {
			t.Fatal("AddRule() accepted an invalid expression")
		}
		if _, err := engine.Rule("bad-expr"); !IsNotFound(err) {
			t.Error("invalid rule reached the store")
		}
	})
}

func TestRemoveRule(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}
	if !engine.RemoveRule("assign-urgent") {
		t.Error("RemoveRule() = false for existing rule")
	}
	if engine.RemoveRule("assign-urgent") {
		t.Error("RemoveRule() = true for removed rule")
	}
}

func TestUpdateRule(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}

	name := "renamed"
	expr := `event.priority == "high"`
	if err := engine.UpdateRule("assign-urgent", RulePatch{Name: &name, Expression: &expr}); err != nil {
		t.Fatalf("UpdateRule() error: %v", err)
	}
	got, _ := engine.Rule("assign-urgent")
	if got.Name != "renamed" || got.Expression != expr {
		t.Errorf("patched rule = %+v", got)
	}
	// Untouched fields survive a partial patch.
	if len(got.Conditions) != 1 || !got.Active {
		t.Errorf("patch clobbered unset fields: %+v", got)
	}

	t.Run("missing rule", func(t *testing.T) {
		err := engine.UpdateRule("ghost", RulePatch{Name: &name})
		if !errors.Is(err, ErrRuleNotFound) {
			t.Errorf("UpdateRule() error = %v, want ErrRuleNotFound", err)
		}
	})

	t.Run("invalid expression rejects whole patch", func(t *testing.T) {
		bad := "event.x >"
		other := "should not apply"
		err := engine.UpdateRule("assign-urgent", RulePatch{Name: &other, Expression: &bad})
		if err == nil {
			t.Fatal("UpdateRule() accepted an invalid expression")
		}
		got, _ := engine.Rule("assign-urgent")
		if got.Name != "renamed" {
			t.Error("rejected patch still mutated the rule")
		}
	})
}

func TestActivateDeactivateIdempotent(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 2; i++ {
		if !engine.DeactivateRule("assign-urgent") {
			t.Errorf("DeactivateRule() call %d = false, want true", i+1)
		}
		got, _ := engine.Rule("assign-urgent")
		if got.Active {
			t.Errorf("rule still active after deactivate call %d", i+1)
		}
	}

	for i := 0; i < 2; i++ {
		if !engine.ActivateRule("assign-urgent") {
			t.Errorf("ActivateRule() call %d = false, want true", i+1)
		}
	}
	got, _ := engine.Rule("assign-urgent")
	if !got.Active {
		t.Error("rule inactive after activate")
	}

	if engine.ActivateRule("ghost") || engine.DeactivateRule("ghost") {
		t.Error("toggles returned true for a missing rule")
	}
}

// Scenario: a job_created event with priority high assigns the matching
// worker and records success.
func TestTriggerEventAssignsWorker(t *testing.T) {
	engine, world := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}
	world.PutJob(&workforce.Job{
		ID: "J1", Title: "Emergency repair",
		RequiredSkills: []string{"plumbing"}, ExperienceLevel: workforce.LevelMid,
	})
	world.PutWorker(&workforce.Worker{
		ID: "W1", Skills: []string{"plumbing"},
		ExperienceLevel: workforce.LevelMid, Available: true, Rating: 5,
	})

	recs := engine.TriggerEvent(context.Background(), TriggerJobCreated,
		map[string]any{"priority": "high", "jobId": "J1"})

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	if recs[0].Result != ResultSuccess {
		t.Errorf("result = %s (errors %v), want success", recs[0].Result, recs[0].Errors)
	}
	shifts := world.Shifts()
	if len(shifts) != 1 || shifts[0].WorkerID != "W1" {
		t.Errorf("shifts = %v, want one assigned to W1", shifts)
	}
}

// Scenario: the same rule with a low-priority payload fails condition
// evaluation, creates nothing, and records the failure.
func TestTriggerEventConditionsNotMet(t *testing.T) {
	engine, world := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}

	recs := engine.TriggerEvent(context.Background(), TriggerJobCreated,
		map[string]any{"priority": "low", "jobId": "J1"})

	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Result != ResultFailed {
		t.Errorf("result = %s, want failed", rec.Result)
	}
	if len(rec.Errors) != 1 || rec.Errors[0] != "Conditions not met" {
		t.Errorf("errors = %v, want [Conditions not met]", rec.Errors)
	}
	if len(world.Shifts()) != 0 {
		t.Error("actions ran despite unmet conditions")
	}
}

func TestTriggerEventIgnoresOtherTriggersAndInactiveRules(t *testing.T) {
	engine, _ := newTestEngine(t)

	other := assignUrgentRule()
	other.ID = "on-shift"
	other.Trigger = Trigger{Type: TriggerShiftCompleted}
	other.Conditions = nil
	if err := engine.AddRule(other); err != nil {
		t.Fatal(err)
	}

	off := assignUrgentRule()
	off.ID = "switched-off"
	off.Active = false
	if err := engine.AddRule(off); err != nil {
		t.Fatal(err)
	}

	recs := engine.TriggerEvent(context.Background(), TriggerJobCreated,
		map[string]any{"priority": "high"})
	if len(recs) != 0 {
		t.Errorf("got %d records, want 0", len(recs))
	}
}

// Scenario: a webhook action hitting an endpoint that returns 500 yields a
// partial record with errors while the counter still advances.
func TestExecuteRulePartialOnFailingWebhook(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine, _ := newTestEngine(t)
	rule := &Rule{
		ID:      "hook",
		Name:    "call out",
		Trigger: Trigger{Type: TriggerPaymentProcessed},
		Actions: []Action{{
			Type:    ActionWebhookCall,
			Webhook: &WebhookConfig{URL: srv.URL},
		}},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	rec, err := engine.ExecuteRule(context.Background(), "hook", map[string]any{"amount": 10})
	if err != nil {
		t.Fatalf("ExecuteRule() error: %v", err)
	}
	if rec.Result != ResultPartial {
		t.Errorf("result = %s, want partial", rec.Result)
	}
	if len(rec.Errors) == 0 {
		t.Error("errors empty, want webhook failure recorded")
	}

	got, _ := engine.Rule("hook")
	if got.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", got.ExecutionCount)
	}
}

func TestExecuteRuleDoesNotShortCircuitAfterFailingAction(t *testing.T) {
	engine, world := newTestEngine(t)
	rule := &Rule{
		ID:      "three-step",
		Name:    "mixed outcome",
		Trigger: Trigger{Type: TriggerShiftCompleted},
		Actions: []Action{
			{Type: ActionSendNotification, Notification: &NotificationConfig{
				Recipients: []string{"worker"}, Title: "before", Message: "m"}},
			{Type: ActionUpdateStatus, Status: &StatusConfig{EntityType: "shift", Status: "paid"}},
			{Type: ActionCreateTask, Task: &TaskConfig{TaskType: "audit", Title: "after"}},
		},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	// No shift "ghost" exists, so the middle action fails.
	rec, err := engine.ExecuteRule(context.Background(), "three-step",
		map[string]any{"workerId": "w-1", "shiftId": "ghost"})
	if err != nil {
		t.Fatalf("ExecuteRule() error: %v", err)
	}

	if rec.Result != ResultPartial {
		t.Errorf("result = %s, want partial", rec.Result)
	}
	if len(rec.ExecutedActions) != 2 ||
		rec.ExecutedActions[0] != ActionSendNotification ||
		rec.ExecutedActions[1] != ActionCreateTask {
		t.Errorf("executedActions = %v, want actions before and after the failure", rec.ExecutedActions)
	}
	if len(world.Tasks()) != 1 {
		t.Error("action after the failing one was not attempted")
	}
}

func TestExecuteRuleHardErrors(t *testing.T) {
	engine, _ := newTestEngine(t)
	rule := assignUrgentRule()
	rule.Active = false
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	if _, err := engine.ExecuteRule(context.Background(), "ghost", nil); !errors.Is(err, ErrRuleNotFound) {
		t.Errorf("missing rule error = %v, want ErrRuleNotFound", err)
	}
	if _, err := engine.ExecuteRule(context.Background(), "assign-urgent", nil); !errors.Is(err, ErrRuleInactive) {
		t.Errorf("inactive rule error = %v, want ErrRuleInactive", err)
	}
}

func TestExecutionCountAdvancesRegardlessOfOutcome(t *testing.T) {
	engine, _ := newTestEngine(t)
	rule := assignUrgentRule()
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	payloads := []map[string]any{
		{"priority": "low"},              // failed: conditions not met
		{"priority": "high"},             // partial: no jobId for the action
		{"priority": "low"},              // failed again
		{"priority": "high", "x": "y"},   // partial again
		{"priority": "low", "jobId": ""}, // failed
	}
	for _, p := range payloads {
		if _, err := engine.ExecuteRule(context.Background(), "assign-urgent", p); err != nil {
			t.Fatalf("ExecuteRule() error: %v", err)
		}
	}

	got, _ := engine.Rule("assign-urgent")
	if got.ExecutionCount != len(payloads) {
		t.Errorf("ExecutionCount = %d, want %d", got.ExecutionCount, len(payloads))
	}
	m := got.Metrics
	if m.SuccessCount+m.ErrorCount+m.PartialCount != got.ExecutionCount {
		t.Errorf("metrics do not sum to ExecutionCount: %+v", m)
	}
	if got.LastExecuted == nil {
		t.Error("LastExecuted not set")
	}
}

func TestConcurrentPatchesDoNotLoseExecutions(t *testing.T) {
	engine, _ := newTestEngine(t)
	if err := engine.AddRule(assignUrgentRule()); err != nil {
		t.Fatal(err)
	}

	const executions = 50
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < executions; i++ {
			if _, err := engine.ExecuteRule(context.Background(), "assign-urgent", map[string]any{"priority": "low"}); err != nil {
				t.Errorf("ExecuteRule() error: %v", err)
				return
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < executions; i++ {
			desc := "patched"
			if err := engine.UpdateRule("assign-urgent", RulePatch{Description: &desc}); err != nil {
				t.Errorf("UpdateRule() error: %v", err)
				return
			}
		}
	}()
	wg.Wait()

	got, _ := engine.Rule("assign-urgent")
	if got.ExecutionCount != executions {
		t.Errorf("ExecutionCount = %d, want %d (a patch overwrote the counters)", got.ExecutionCount, executions)
	}
	m := got.Metrics
	if m.SuccessCount+m.ErrorCount+m.PartialCount != got.ExecutionCount {
		t.Errorf("metrics do not sum to ExecutionCount: %+v", m)
	}
	if got.Description != "patched" {
		t.Errorf("Description = %q, want patched", got.Description)
	}
}

func TestExecuteRuleWithExpression(t *testing.T) {
	engine, world := newTestEngine(t)
	world.PutWorker(&workforce.Worker{ID: "w-1", Available: true})

	rule := &Rule{
		ID:      "big-payment",
		Name:    "notify on big payments",
		Trigger: Trigger{Type: TriggerPaymentProcessed},
		Conditions: []Condition{
			{Field: "currency", Operator: OpEquals, Value: "USD"},
		},
		Expression: `event.amount > 1000.0 && event.status != "refunded"`,
		Actions: []Action{{
			Type: ActionSendNotification,
			Notification: &NotificationConfig{
				Recipients: []string{"ops-team"}, Title: "big payment", Message: "{{amount}}"},
		}},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	t.Run("conditions and expression both hold", func(t *testing.T) {
		rec, err := engine.ExecuteRule(context.Background(), "big-payment",
			map[string]any{"currency": "USD", "amount": 2500.0, "status": "settled"})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Result != ResultSuccess {
			t.Errorf("result = %s (errors %v), want success", rec.Result, rec.Errors)
		}
	})

	t.Run("expression rejects", func(t *testing.T) {
		rec, err := engine.ExecuteRule(context.Background(), "big-payment",
			map[string]any{"currency": "USD", "amount": 50.0, "status": "settled"})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Result != ResultFailed {
			t.Errorf("result = %s, want failed", rec.Result)
		}
	})

	t.Run("conditions reject before expression", func(t *testing.T) {
		rec, err := engine.ExecuteRule(context.Background(), "big-payment",
			map[string]any{"currency": "EUR", "amount": 2500.0, "status": "settled"})
		if err != nil {
			t.Fatal(err)
		}
		if rec.Result != ResultFailed || rec.Errors[0] != "Conditions not met" {
			t.Errorf("record = %+v", rec)
		}
	})
}

func TestDelayedActionRecordsSeparateExecution(t *testing.T) {
	engine, world := newTestEngine(t)
	engine.delayUnit = time.Millisecond

	rule := &Rule{
		ID:      "follow-up",
		Name:    "delayed welcome",
		Trigger: Trigger{Type: TriggerUserRegistered},
		Actions: []Action{
			{Type: ActionSendNotification, Notification: &NotificationConfig{
				Recipients: []string{"u-1"}, Title: "now", Message: "m"}},
			{Type: ActionSendEmail, DelayMinutes: 5, Email: &EmailConfig{
				To: "{{email}}", Subject: "later", Body: "b"}},
		},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	origin, err := engine.ExecuteRule(context.Background(), "follow-up",
		map[string]any{"email": "ada@example.com"})
	if err != nil {
		t.Fatal(err)
	}
	if origin.Result != ResultSuccess {
		t.Errorf("origin result = %s (errors %v)", origin.Result, origin.Errors)
	}
	if len(origin.ExecutedActions) != 1 || origin.ExecutedActions[0] != ActionSendNotification {
		t.Errorf("origin executedActions = %v, want only the immediate action", origin.ExecutedActions)
	}

	deadline := time.Now().Add(2 * time.Second)
	var deferred *ExecutionRecord
	for time.Now().Before(deadline) {
		recs, err := engine.Executions(0)
		if err != nil {
			t.Fatal(err)
		}
		for _, r := range recs {
			if r.DeferredFrom != "" {
				deferred = r
			}
		}
		if deferred != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if deferred == nil {
		t.Fatal("deferred execution record never appeared")
	}
	if deferred.DeferredFrom != origin.ID {
		t.Errorf("DeferredFrom = %q, want %q", deferred.DeferredFrom, origin.ID)
	}
	if deferred.Result != ResultSuccess {
		t.Errorf("deferred result = %s (errors %v)", deferred.Result, deferred.Errors)
	}
	if emails := world.Emails(); len(emails) != 1 || emails[0].To != "ada@example.com" {
		t.Errorf("emails = %v", emails)
	}

	// Only the direct run counts against the rule's counters.
	got, _ := engine.Rule("follow-up")
	if got.ExecutionCount != 1 {
		t.Errorf("ExecutionCount = %d, want 1", got.ExecutionCount)
	}
}

func TestStopCancelsDelayedActions(t *testing.T) {
	engine, world := newTestEngine(t)
	engine.delayUnit = time.Millisecond

	rule := &Rule{
		ID:      "slow",
		Name:    "long delay",
		Trigger: Trigger{Type: TriggerUserRegistered},
		Actions: []Action{{Type: ActionSendEmail, DelayMinutes: 100, Email: &EmailConfig{
			To: "x@example.com", Subject: "s", Body: "b"}}},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.ExecuteRule(context.Background(), "slow", map[string]any{}); err != nil {
		t.Fatal(err)
	}

	engine.Stop()
	time.Sleep(250 * time.Millisecond)

	if emails := world.Emails(); len(emails) != 0 {
		t.Errorf("delayed action ran after Stop(): %v", emails)
	}
	recs, _ := engine.Executions(0)
	if len(recs) != 1 {
		t.Errorf("got %d records, want just the origin", len(recs))
	}
}

func TestSchedulerFiresRecurringRule(t *testing.T) {
	engine, world := newTestEngine(t)
	world.PutWorker(&workforce.Worker{ID: "w-1", Available: true})

	// A daily schedule cannot be waited on in a unit test, so this only
	// asserts timer arming and teardown.
	rule := &Rule{
		ID:      "nightly",
		Name:    "nightly report",
		Trigger: Trigger{Type: TriggerScheduleTime, Schedule: &ScheduleSpec{
			Frequency: FrequencyDaily, TimeOfDay: "09:00"}},
		Actions: []Action{{Type: ActionSendNotification, Notification: &NotificationConfig{
			Recipients: []string{"ops"}, Title: "t", Message: "m"}}},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	if err := engine.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	if !engine.Started() {
		t.Error("Started() = false after Start()")
	}
	if err := engine.Start(); err != nil {
		t.Errorf("second Start() error: %v", err)
	}

	engine.sched.mu.Lock()
	_, armed := engine.sched.timers["nightly"]
	engine.sched.mu.Unlock()
	if !armed {
		t.Error("schedule timer not armed after Start()")
	}

	if !engine.DeactivateRule("nightly") {
		t.Fatal("DeactivateRule() failed")
	}
	engine.sched.mu.Lock()
	_, armed = engine.sched.timers["nightly"]
	engine.sched.mu.Unlock()
	if armed {
		t.Error("schedule timer still armed after deactivation")
	}

	engine.Stop()
	if engine.Started() {
		t.Error("Started() = true after Stop()")
	}
}

func TestSchedulerFireExecutesSyntheticPayload(t *testing.T) {
	engine, _ := newTestEngine(t)

	rule := &Rule{
		ID:      "tick",
		Name:    "tick",
		Trigger: Trigger{Type: TriggerScheduleTime, Schedule: &ScheduleSpec{
			Frequency: FrequencyDaily, TimeOfDay: "09:00"}},
		Conditions: []Condition{{Field: "trigger", Operator: OpEquals, Value: "schedule_time"}},
		Actions: []Action{{Type: ActionSendNotification, Notification: &NotificationConfig{
			Recipients: []string{"ops"}, Title: "scheduled {{ruleId}}", Message: "m"}}},
		Active: true,
	}
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}
	if err := engine.Start(); err != nil {
		t.Fatal(err)
	}

	// Drive the fire path directly instead of waiting for the cron instant.
	engine.sched.fire("tick")

	recs, err := engine.Executions(0)
	if err != nil {
		t.Fatal(err)
	}
	if len(recs) != 1 {
		t.Fatalf("got %d records, want 1", len(recs))
	}
	rec := recs[0]
	if rec.Result != ResultSuccess {
		t.Errorf("result = %s (errors %v)", rec.Result, rec.Errors)
	}
	if rec.TriggerType != TriggerScheduleTime {
		t.Errorf("trigger type = %s", rec.TriggerType)
	}
	if rec.Payload["ruleId"] != "tick" {
		t.Errorf("payload = %v", rec.Payload)
	}
	if _, ok := rec.Payload["scheduledAt"]; !ok {
		t.Error("payload missing scheduledAt")
	}
}

func TestAnalyzeRule(t *testing.T) {
	engine, _ := newTestEngine(t)
	rule := assignUrgentRule()
	rule.Conditions = nil
	if err := engine.AddRule(rule); err != nil {
		t.Fatal(err)
	}

	t.Run("no provider means no suggestions", func(t *testing.T) {
		got, err := engine.AnalyzeRule(context.Background(), "assign-urgent")
		if err != nil || got != nil {
			t.Errorf("AnalyzeRule() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("heuristic provider", func(t *testing.T) {
		engine.SetSuggestionProvider(HeuristicSuggestionProvider{})
		got, err := engine.AnalyzeRule(context.Background(), "assign-urgent")
		if err != nil {
			t.Fatal(err)
		}
		kinds := make(map[string]bool)
		for _, s := range got {
			kinds[s.Kind] = true
		}
		if !kinds["unconditional"] || !kinds["never_executed"] {
			t.Errorf("suggestion kinds = %v", kinds)
		}
	})

	t.Run("failing provider is tolerated", func(t *testing.T) {
		engine.SetSuggestionProvider(failingProvider{})
		got, err := engine.AnalyzeRule(context.Background(), "assign-urgent")
		if err != nil || got != nil {
			t.Errorf("AnalyzeRule() = %v, %v; want nil, nil", got, err)
		}
	})

	t.Run("missing rule", func(t *testing.T) {
		if _, err := engine.AnalyzeRule(context.Background(), "ghost"); !IsNotFound(err) {
			t.Errorf("AnalyzeRule() error = %v, want not-found", err)
		}
	})
}

type failingProvider struct{}

func (failingProvider) Analyze(context.Context, *Rule) ([]Suggestion, error) {
	return nil, errors.New("model unavailable")
}

func TestDefaultRules(t *testing.T) {
	engine, _ := newTestEngine(t)
	for _, r := range DefaultRules() {
		if err := engine.AddRule(r); err != nil {
			t.Fatalf("AddRule(%s) error: %v", r.ID, err)
		}
	}
	rules, err := engine.Rules()
	if err != nil {
		t.Fatal(err)
	}
	if len(rules) != 2 {
		t.Fatalf("got %d default rules, want 2", len(rules))
	}
	for _, r := range rules {
		if !r.Active {
			t.Errorf("default rule %s is not active", r.ID)
		}
		if len(r.Actions) == 0 {
			t.Errorf("default rule %s has no actions", r.ID)
		}
	}
}
