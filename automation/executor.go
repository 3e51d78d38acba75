package automation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"github.com/shiftlane/automation/workforce"
)

// Executor dispatches rule actions to their external collaborators. All
// fields except the collaborators an action actually touches may be nil;
// dispatching an action whose collaborator is missing is an action failure,
// not a panic.
type Executor struct {
	Jobs     workforce.JobStore
	Shifts   workforce.ShiftStore
	Workers  workforce.WorkerStore
	Notifier workforce.NotificationSender
	Payments workforce.PaymentProcessor
	Email    workforce.EmailSender
	Tasks    workforce.TaskStore

	// HTTPClient performs webhook calls. A nil client falls back to one
	// with a 10 second timeout so a webhook cannot hang a rule run.
	HTTPClient *http.Client

	// Now is swappable for tests; defaults to time.Now.
	Now func() time.Time
}

const (
	webhookTimeout     = 10 * time.Second
	defaultShiftLength = 8 * time.Hour
)

// Execute runs a single action against the event payload. Delay handling
// lives in the engine; Execute always runs immediately.
func (ex *Executor) Execute(ctx context.Context, action Action, payload map[string]any) error {
	switch action.Type {
	case ActionSendNotification:
		return ex.sendNotification(ctx, action.Notification, payload)
	case ActionAssignWorker:
		return ex.assignWorker(ctx, action.Assignment, payload)
	case ActionUpdateStatus:
		return ex.updateStatus(ctx, action.Status, payload)
	case ActionCreateTask:
		return ex.createTask(ctx, action.Task, payload)
	case ActionSendEmail:
		return ex.sendEmail(ctx, action.Email, payload)
	case ActionWebhookCall:
		return ex.webhookCall(ctx, action.Webhook, payload)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownAction, action.Type)
	}
}

func (ex *Executor) sendNotification(ctx context.Context, cfg *NotificationConfig, payload map[string]any) error {
	if cfg == nil || ex.Notifier == nil {
		return fmt.Errorf("%w: send_notification", ErrUnknownAction)
	}

	recipients := resolveRecipients(cfg.Recipients, payload)
	if len(recipients) == 0 {
		return errors.New("send_notification: no resolvable recipients")
	}

	priority := cfg.Priority
	if priority == "" {
		priority = "normal"
	}

	var errs []error
	for _, userID := range recipients {
		n := workforce.Notification{
			RecipientUserID: userID,
			Type:            "automation",
			Title:           substituteTokens(cfg.Title, payload),
			Message:         substituteTokens(cfg.Message, payload),
			Priority:        priority,
			CreatedAt:       ex.now(),
			Metadata:        payload,
		}
		if err := ex.Notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("notify %s: %w", userID, err))
		}
	}
	return errors.Join(errs...)
}

func (ex *Executor) assignWorker(ctx context.Context, cfg *AssignmentConfig, payload map[string]any) error {
	if cfg == nil || ex.Jobs == nil || ex.Workers == nil || ex.Shifts == nil {
		return fmt.Errorf("%w: assign_worker", ErrUnknownAction)
	}

	jobID := payloadString(payload, "jobId")
	if jobID == "" {
		return errors.New("assign_worker: payload has no jobId")
	}

	job, err := ex.Jobs.JobByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("assign_worker: %w", err)
	}

	candidates, err := ex.Workers.AvailableWorkers(ctx, job.RequiredSkills)
	if err != nil {
		return fmt.Errorf("assign_worker: list workers: %w", err)
	}

	worker := SelectBest(candidates, job, cfg.Criteria)
	if worker == nil {
		return fmt.Errorf("assign_worker: no suitable worker for job %s", jobID)
	}

	start := ex.now()
	shift, err := ex.Shifts.CreateShift(ctx, &workforce.Shift{
		JobID:     jobID,
		WorkerID:  worker.ID,
		Status:    "scheduled",
		StartTime: start,
		EndTime:   start.Add(defaultShiftLength),
	})
	if err != nil {
		return fmt.Errorf("assign_worker: create shift: %w", err)
	}

	if cfg.NotifyWorker && ex.Notifier != nil {
		n := workforce.Notification{
			RecipientUserID: worker.ID,
			Type:            "assignment",
			Title:           "New shift assigned",
			Message:         fmt.Sprintf("You have been assigned to %s", job.Title),
			Priority:        "high",
			CreatedAt:       ex.now(),
			Metadata:        map[string]any{"jobId": jobID, "shiftId": shift.ID},
		}
		if err := ex.Notifier.Send(ctx, n); err != nil {
			return fmt.Errorf("assign_worker: notify %s: %w", worker.ID, err)
		}
	}
	return nil
}

func (ex *Executor) updateStatus(ctx context.Context, cfg *StatusConfig, payload map[string]any) error {
	if cfg == nil {
		return fmt.Errorf("%w: update_status", ErrUnknownAction)
	}

	switch cfg.EntityType {
	case "job":
		if ex.Jobs == nil {
			return fmt.Errorf("%w: update_status job", ErrUnknownAction)
		}
		id := payloadString(payload, "jobId")
		if id == "" {
			return errors.New("update_status: payload has no jobId")
		}
		return ex.Jobs.UpdateJob(ctx, id, map[string]any{"status": cfg.Status})
	case "shift":
		if ex.Shifts == nil {
			return fmt.Errorf("%w: update_status shift", ErrUnknownAction)
		}
		id := payloadString(payload, "shiftId")
		if id == "" {
			return errors.New("update_status: payload has no shiftId")
		}
		return ex.Shifts.UpdateShift(ctx, id, map[string]any{"status": cfg.Status})
	default:
		return fmt.Errorf("update_status: unsupported entity type %q", cfg.EntityType)
	}
}

func (ex *Executor) createTask(ctx context.Context, cfg *TaskConfig, payload map[string]any) error {
	if cfg == nil || ex.Tasks == nil {
		return fmt.Errorf("%w: create_task", ErrUnknownAction)
	}

	relatedID := payloadString(payload, "shiftId")
	if relatedID == "" {
		relatedID = payloadString(payload, "jobId")
	}

	if _, err := ex.Tasks.CreateTask(ctx, &workforce.Task{
		Type:      cfg.TaskType,
		Title:     substituteTokens(cfg.Title, payload),
		Assignee:  cfg.Assignee,
		RelatedID: relatedID,
		CreatedAt: ex.now(),
	}); err != nil {
		return fmt.Errorf("create_task: %w", err)
	}

	// A payment task for an already-completed shift settles immediately
	// instead of waiting for a human to pick the task up.
	if cfg.TaskType == "process_payment" && ex.Shifts != nil && ex.Payments != nil {
		shiftID := payloadString(payload, "shiftId")
		if shiftID == "" {
			return nil
		}
		shift, err := ex.Shifts.ShiftByID(ctx, shiftID)
		if err != nil {
			return fmt.Errorf("create_task: %w", err)
		}
		if shift.Status == "completed" {
			if err := ex.Payments.ProcessShiftPayment(ctx, shiftID); err != nil {
				return fmt.Errorf("create_task: process payment: %w", err)
			}
		}
	}
	return nil
}

func (ex *Executor) sendEmail(ctx context.Context, cfg *EmailConfig, payload map[string]any) error {
	if cfg == nil || ex.Email == nil {
		return fmt.Errorf("%w: send_email", ErrUnknownAction)
	}
	return ex.Email.SendEmail(ctx, workforce.Email{
		To:      substituteTokens(cfg.To, payload),
		Subject: substituteTokens(cfg.Subject, payload),
		Body:    substituteTokens(cfg.Body, payload),
	})
}

func (ex *Executor) webhookCall(ctx context.Context, cfg *WebhookConfig, payload map[string]any) error {
	if cfg == nil || cfg.URL == "" {
		return fmt.Errorf("%w: webhook_call", ErrUnknownAction)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("webhook_call: encode payload: %w", err)
	}

	method := cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	req, err := http.NewRequestWithContext(ctx, method, cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook_call: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range cfg.Headers {
		req.Header.Set(k, v)
	}

	client := ex.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: webhookTimeout}
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook_call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook_call: %s returned %d", cfg.URL, resp.StatusCode)
	}
	return nil
}

func (ex *Executor) now() time.Time {
	if ex.Now != nil {
		return ex.Now()
	}
	return time.Now()
}

// resolveRecipients maps recipient roles to user IDs from the payload.
// Entries that are not known roles are treated as literal user IDs.
func resolveRecipients(recipients []string, payload map[string]any) []string {
	var out []string
	for _, r := range recipients {
		switch r {
		case "worker":
			if id := payloadString(payload, "workerId"); id != "" {
				out = append(out, id)
			}
		case "client":
			if id := payloadString(payload, "clientId"); id != "" {
				out = append(out, id)
			}
		default:
			out = append(out, r)
		}
	}
	return out
}

var tokenPattern = regexp.MustCompile(`\{\{\s*([a-zA-Z0-9_.]+)\s*\}\}`)

// substituteTokens replaces {{field}} tokens with payload values resolved
// by dotted path. Unresolvable tokens are left as-is.
func substituteTokens(template string, payload map[string]any) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(tok string) string {
		field := tokenPattern.FindStringSubmatch(tok)[1]
		if v, ok := lookupPath(payload, field); ok && v != nil {
			return stringify(v)
		}
		return tok
	})
}

func payloadString(payload map[string]any, key string) string {
	v, ok := payload[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
