package workforce

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a job, shift or worker does not exist.
var ErrNotFound = errors.New("workforce: not found")

// JobStore provides job lookup and mutation.
type JobStore interface {
	JobByID(ctx context.Context, id string) (*Job, error)
	UpdateJob(ctx context.Context, id string, fields map[string]any) error
}

// ShiftStore provides shift creation, lookup and mutation.
type ShiftStore interface {
	CreateShift(ctx context.Context, shift *Shift) (*Shift, error)
	ShiftByID(ctx context.Context, id string) (*Shift, error)
	UpdateShift(ctx context.Context, id string, fields map[string]any) error
}

// WorkerStore lists workers available for assignment, pre-filtered by the
// job's required skills (a worker matching any of them qualifies; an empty
// skill list returns all available workers).
type WorkerStore interface {
	AvailableWorkers(ctx context.Context, requiredSkills []string) ([]*Worker, error)
}

// NotificationSender delivers one notification to one user.
type NotificationSender interface {
	Send(ctx context.Context, n Notification) error
}

// PaymentProcessor settles payment for a completed shift.
type PaymentProcessor interface {
	ProcessShiftPayment(ctx context.Context, shiftID string) error
}

// EmailSender delivers outbound email.
type EmailSender interface {
	SendEmail(ctx context.Context, e Email) error
}

// TaskStore records internal task descriptors.
type TaskStore interface {
	CreateTask(ctx context.Context, t *Task) (*Task, error)
}
