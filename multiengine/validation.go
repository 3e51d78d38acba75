package multiengine

import (
	"fmt"
	"regexp"
	"time"

	"github.com/shiftlane/automation/automation"
)

const (
	maxNameLength        = 200
	maxDescriptionLength = 2000
	maxConditions        = 50
	maxActions           = 20
	maxDelayMinutes      = 7 * 24 * 60 // one week
)

var validTriggerTypes = map[automation.TriggerType]bool{
	automation.TriggerJobCreated:       true,
	automation.TriggerShiftCompleted:   true,
	automation.TriggerPaymentProcessed: true,
	automation.TriggerUserRegistered:   true,
	automation.TriggerScheduleTime:     true,
}

var validOperators = map[automation.Operator]bool{
	automation.OpEquals:      true,
	automation.OpNotEquals:   true,
	automation.OpGreaterThan: true,
	automation.OpLessThan:    true,
	automation.OpContains:    true,
	automation.OpExists:      true,
}

// fieldPathPattern accepts dotted paths of identifiers, e.g. "shift.workerId".
var fieldPathPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*(\.[a-zA-Z_][a-zA-Z0-9_]*)*$`)

// ValidateRule checks a rule before it reaches an engine. Returns nil if
// the rule is well-formed.
func ValidateRule(r *automation.Rule) error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}
	if len(r.Name) > maxNameLength {
		return fmt.Errorf("rule name exceeds %d characters", maxNameLength)
	}
	if len(r.Description) > maxDescriptionLength {
		return fmt.Errorf("rule description exceeds %d characters", maxDescriptionLength)
	}

	if err := validateTrigger(r.Trigger); err != nil {
		return err
	}

	if len(r.Conditions) > maxConditions {
		return fmt.Errorf("rule has %d conditions, maximum is %d", len(r.Conditions), maxConditions)
	}
	for i, c := range r.Conditions {
		if err := validateCondition(c); err != nil {
			return fmt.Errorf("condition %d: %w", i, err)
		}
	}

	if len(r.Actions) == 0 {
		return fmt.Errorf("rule must have at least one action")
	}
	if len(r.Actions) > maxActions {
		return fmt.Errorf("rule has %d actions, maximum is %d", len(r.Actions), maxActions)
	}
	for i, a := range r.Actions {
		if err := validateAction(a); err != nil {
			return fmt.Errorf("action %d: %w", i, err)
		}
	}
	return nil
}

func validateTrigger(t automation.Trigger) error {
	if !validTriggerTypes[t.Type] {
		return fmt.Errorf("unknown trigger type %q", t.Type)
	}
	if t.Type == automation.TriggerScheduleTime {
		if t.Schedule == nil {
			return fmt.Errorf("schedule_time trigger requires a schedule")
		}
		if _, err := automation.NextFire(t.Schedule, time.Now()); err != nil {
			return fmt.Errorf("invalid schedule: %w", err)
		}
		return nil
	}
	if t.Schedule != nil {
		return fmt.Errorf("%s trigger must not carry a schedule", t.Type)
	}
	return nil
}

func validateCondition(c automation.Condition) error {
	if c.Field == "" {
		return fmt.Errorf("field is required")
	}
	if !fieldPathPattern.MatchString(c.Field) {
		return fmt.Errorf("field %q is not a valid dotted path", c.Field)
	}
	if !validOperators[c.Operator] {
		return fmt.Errorf("unknown operator %q", c.Operator)
	}
	if c.Operator != automation.OpExists && c.Value == nil {
		return fmt.Errorf("operator %s requires a comparison value", c.Operator)
	}
	return nil
}

func validateAction(a automation.Action) error {
	if a.DelayMinutes < 0 {
		return fmt.Errorf("delay must not be negative")
	}
	if a.DelayMinutes > maxDelayMinutes {
		return fmt.Errorf("delay exceeds %d minutes", maxDelayMinutes)
	}

	switch a.Type {
	case automation.ActionSendNotification:
		if a.Notification == nil {
			return fmt.Errorf("send_notification requires a notification config")
		}
		if len(a.Notification.Recipients) == 0 {
			return fmt.Errorf("send_notification requires at least one recipient")
		}
		if a.Notification.Message == "" {
			return fmt.Errorf("send_notification requires a message")
		}
	case automation.ActionAssignWorker:
		if a.Assignment == nil {
			return fmt.Errorf("assign_worker requires an assignment config")
		}
	case automation.ActionUpdateStatus:
		if a.Status == nil {
			return fmt.Errorf("update_status requires a status config")
		}
		if a.Status.EntityType != "job" && a.Status.EntityType != "shift" {
			return fmt.Errorf("update_status entity type must be job or shift, got %q", a.Status.EntityType)
		}
		if a.Status.Status == "" {
			return fmt.Errorf("update_status requires a target status")
		}
	case automation.ActionCreateTask:
		if a.Task == nil {
			return fmt.Errorf("create_task requires a task config")
		}
		if a.Task.TaskType == "" {
			return fmt.Errorf("create_task requires a task type")
		}
	case automation.ActionSendEmail:
		if a.Email == nil {
			return fmt.Errorf("send_email requires an email config")
		}
		if a.Email.To == "" {
			return fmt.Errorf("send_email requires a recipient")
		}
	case automation.ActionWebhookCall:
		if a.Webhook == nil {
			return fmt.Errorf("webhook_call requires a webhook config")
		}
		if !validWebhookURL(a.Webhook.URL) {
			return fmt.Errorf("webhook_call URL must be http or https, got %q", a.Webhook.URL)
		}
	default:
		return fmt.Errorf("unknown action type %q", a.Type)
	}
	return nil
}

var webhookURLPattern = regexp.MustCompile(`^https?://`)

func validWebhookURL(url string) bool {
	return webhookURLPattern.MatchString(url)
}
