package automation

import "time"

// TriggerType identifies the domain event (or schedule) that makes a rule
// eligible for evaluation.
type TriggerType string

const (
	TriggerJobCreated       TriggerType = "job_created"
	TriggerShiftCompleted   TriggerType = "shift_completed"
	TriggerPaymentProcessed TriggerType = "payment_processed"
	TriggerUserRegistered   TriggerType = "user_registered"
	TriggerScheduleTime     TriggerType = "schedule_time"
)

// Frequency is the recurrence interval of a schedule_time trigger.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ScheduleSpec describes when a schedule_time trigger fires.
// TimeOfDay uses 24-hour "HH:MM". DaysOfWeek (lowercase English day names)
// only applies to weekly recurrence.
type ScheduleSpec struct {
	Frequency  Frequency `json:"frequency"`
	TimeOfDay  string    `json:"timeOfDay"`
	DaysOfWeek []string  `json:"daysOfWeek,omitempty"`
}

// Trigger is a tagged variant: Schedule is set iff Type is schedule_time.
type Trigger struct {
	Type     TriggerType   `json:"type"`
	Schedule *ScheduleSpec `json:"schedule,omitempty"`
}

// Operator is the comparison applied by a condition.
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpExists      Operator = "exists"
)

// Condition compares one payload field (dotted path) against a value.
// All conditions of a rule are ANDed; richer boolean logic goes through
// the rule-level CEL expression instead.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
}

// ActionType identifies the side effect a rule action performs.
type ActionType string

const (
	ActionSendNotification ActionType = "send_notification"
	ActionAssignWorker     ActionType = "assign_worker"
	ActionUpdateStatus     ActionType = "update_status"
	ActionCreateTask       ActionType = "create_task"
	ActionSendEmail        ActionType = "send_email"
	ActionWebhookCall      ActionType = "webhook_call"
)

// NotificationConfig configures a send_notification action.
// Recipients are role names ("worker", "client") resolved against the event
// payload, or literal user IDs. Title and Message may carry {{field}}
// tokens substituted from the payload.
type NotificationConfig struct {
	Recipients []string `json:"recipients"`
	Title      string   `json:"title"`
	Message    string   `json:"message"`
	Priority   string   `json:"priority,omitempty"`
}

// AssignmentConfig configures an assign_worker action.
// Criteria "best_match" runs the scoring heuristic; anything else picks the
// first available candidate.
type AssignmentConfig struct {
	Criteria     string `json:"criteria"`
	NotifyWorker bool   `json:"notifyWorker,omitempty"`
}

// StatusConfig configures an update_status action.
type StatusConfig struct {
	EntityType string `json:"entityType"` // "job" or "shift"
	Status     string `json:"status"`
}

// TaskConfig configures a create_task action.
type TaskConfig struct {
	TaskType string `json:"taskType"`
	Title    string `json:"title"`
	Assignee string `json:"assignee,omitempty"`
}

// EmailConfig configures a send_email action. All fields may carry
// {{field}} tokens.
type EmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebhookConfig configures a webhook_call action.
type WebhookConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Action is a tagged variant: exactly the config matching Type is set.
// DelayMinutes > 0 defers execution; deferred outcomes are recorded as a
// separate ExecutionRecord referencing the originating one.
type Action struct {
	Type         ActionType          `json:"type"`
	DelayMinutes int                 `json:"delayMinutes,omitempty"`
	Notification *NotificationConfig `json:"notification,omitempty"`
	Assignment   *AssignmentConfig   `json:"assignment,omitempty"`
	Status       *StatusConfig       `json:"status,omitempty"`
	Task         *TaskConfig         `json:"task,omitempty"`
	Email        *EmailConfig        `json:"email,omitempty"`
	Webhook      *WebhookConfig      `json:"webhook,omitempty"`
}

// RuleMetrics aggregates execution outcomes for one rule. Recomputed by the
// engine after every run, never edited directly.
// Invariant: ExecutionCount == SuccessCount + ErrorCount + PartialCount.
type RuleMetrics struct {
	SuccessCount   int     `json:"successCount"`
	ErrorCount     int     `json:"errorCount"`
	PartialCount   int     `json:"partialCount"`
	AvgExecutionMS float64 `json:"averageExecutionTime"`
	SuccessRate    float64 `json:"successRate"`
}

// Rule is a declarative event-condition-action rule.
// Expression is an optional CEL expression over the event payload
// (variable "event"); when present it is ANDed with Conditions.
type Rule struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Description    string      `json:"description,omitempty"`
	Trigger        Trigger     `json:"trigger"`
	Conditions     []Condition `json:"conditions,omitempty"`
	Actions        []Action    `json:"actions"`
	Active         bool        `json:"active"`
	OrganizationID string      `json:"organizationId,omitempty"`
	Expression     string      `json:"expression,omitempty"`
	ExecutionCount int         `json:"executionCount"`
	LastExecuted   *time.Time  `json:"lastExecuted,omitempty"`
	Metrics        RuleMetrics `json:"metrics"`
	CreatedAt      time.Time   `json:"createdAt"`
	UpdatedAt      time.Time   `json:"updatedAt"`
}

// Clone returns a deep copy so callers cannot mutate registry state:
// action configs and composite condition values are copied, not shared.
func (r *Rule) Clone() *Rule {
	c := *r
	if r.LastExecuted != nil {
		t := *r.LastExecuted
		c.LastExecuted = &t
	}
	if r.Conditions != nil {
		c.Conditions = make([]Condition, len(r.Conditions))
		for i, cond := range r.Conditions {
			cond.Value = cloneValue(cond.Value)
			c.Conditions[i] = cond
		}
	}
	if r.Actions != nil {
		c.Actions = make([]Action, len(r.Actions))
		for i, a := range r.Actions {
			c.Actions[i] = a.clone()
		}
	}
	return &c
}

func (a Action) clone() Action {
	c := a
	if a.Notification != nil {
		n := *a.Notification
		n.Recipients = append([]string(nil), a.Notification.Recipients...)
		c.Notification = &n
	}
	if a.Assignment != nil {
		v := *a.Assignment
		c.Assignment = &v
	}
	if a.Status != nil {
		v := *a.Status
		c.Status = &v
	}
	if a.Task != nil {
		v := *a.Task
		c.Task = &v
	}
	if a.Email != nil {
		v := *a.Email
		c.Email = &v
	}
	if a.Webhook != nil {
		w := *a.Webhook
		if a.Webhook.Headers != nil {
			w.Headers = make(map[string]string, len(a.Webhook.Headers))
			for k, v := range a.Webhook.Headers {
				w.Headers[k] = v
			}
		}
		c.Webhook = &w
	}
	return c
}

// cloneValue copies JSON-shaped values (nested maps and arrays); scalars
// are returned as-is.
func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = cloneValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}

// RulePatch is a partial-field merge applied by UpdateRule. Nil fields are
// left untouched.
type RulePatch struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Trigger     *Trigger     `json:"trigger,omitempty"`
	Conditions  *[]Condition `json:"conditions,omitempty"`
	Actions     *[]Action    `json:"actions,omitempty"`
	Active      *bool        `json:"active,omitempty"`
	Expression  *string      `json:"expression,omitempty"`
}

// Result is the overall outcome of one rule run.
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailed  Result = "failed"
	ResultPartial Result = "partial"
)

// ExecutionRecord is a write-once log entry describing one rule run.
// DeferredFrom is set on records produced by delayed actions and holds the
// ID of the originating record.
type ExecutionRecord struct {
	ID              string         `json:"id"`
	RuleID          string         `json:"ruleId"`
	TriggerType     TriggerType    `json:"triggerType"`
	Payload         map[string]any `json:"payload,omitempty"`
	Result          Result         `json:"result"`
	ExecutedActions []ActionType   `json:"executedActions,omitempty"`
	Errors          []string       `json:"errors,omitempty"`
	DurationMS      float64        `json:"durationMs"`
	StartedAt       time.Time      `json:"startedAt"`
	DeferredFrom    string         `json:"deferredFrom,omitempty"`
}

// ExecutionStats aggregates outcomes across the whole execution log.
type ExecutionStats struct {
	Total         int     `json:"total"`
	Succeeded     int     `json:"succeeded"`
	Failed        int     `json:"failed"`
	Partial       int     `json:"partial"`
	SuccessRate   float64 `json:"successRate"`
	AvgDurationMS float64 `json:"avgDurationMs"`
}
