package workforce

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a thread-safe in-memory implementation of every
// collaborator contract. The standalone server uses it when no database is
// configured; tests use it everywhere.
type MemoryStore struct {
	mu            sync.RWMutex
	jobs          map[string]*Job
	shifts        map[string]*Shift
	workers       map[string]*Worker
	tasks         map[string]*Task
	notifications []Notification
	emails        []Email
	payments      []string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:    make(map[string]*Job),
		shifts:  make(map[string]*Shift),
		workers: make(map[string]*Worker),
		tasks:   make(map[string]*Task),
	}
}

// PutJob inserts or replaces a job.
func (s *MemoryStore) PutJob(j *Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// PutWorker inserts or replaces a worker.
func (s *MemoryStore) PutWorker(w *Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.workers[w.ID] = w
}

// PutShift inserts or replaces a shift.
func (s *MemoryStore) PutShift(sh *Shift) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shifts[sh.ID] = sh
}

func (s *MemoryStore) JobByID(_ context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	c := *j
	return &c, nil
}

func (s *MemoryStore) UpdateJob(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	applyJobFields(j, fields)
	return nil
}

func (s *MemoryStore) CreateShift(_ context.Context, shift *Shift) (*Shift, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *shift
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.shifts[c.ID] = &c
	out := c
	return &out, nil
}

func (s *MemoryStore) ShiftByID(_ context.Context, id string) (*Shift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shifts[id]
	if !ok {
		return nil, fmt.Errorf("shift %s: %w", id, ErrNotFound)
	}
	c := *sh
	return &c, nil
}

func (s *MemoryStore) UpdateShift(_ context.Context, id string, fields map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sh, ok := s.shifts[id]
	if !ok {
		return fmt.Errorf("shift %s: %w", id, ErrNotFound)
	}
	applyShiftFields(sh, fields)
	return nil
}

func (s *MemoryStore) AvailableWorkers(_ context.Context, requiredSkills []string) ([]*Worker, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Worker
	for _, w := range s.workers {
		if !w.Available {
			continue
		}
		if len(requiredSkills) > 0 && !hasAnySkill(w.Skills, requiredSkills) {
			continue
		}
		c := *w
		out = append(out, &c)
	}
	return out, nil
}

func (s *MemoryStore) Send(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *MemoryStore) SendEmail(_ context.Context, e Email) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emails = append(s.emails, e)
	return nil
}

func (s *MemoryStore) ProcessShiftPayment(_ context.Context, shiftID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.shifts[shiftID]; !ok {
		return fmt.Errorf("shift %s: %w", shiftID, ErrNotFound)
	}
	s.payments = append(s.payments, shiftID)
	return nil
}

func (s *MemoryStore) CreateTask(_ context.Context, t *Task) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *t
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.tasks[c.ID] = &c
	out := c
	return &out, nil
}

// Shifts returns a snapshot of all shifts, for inspection by callers.
func (s *MemoryStore) Shifts() []*Shift {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Shift, 0, len(s.shifts))
	for _, sh := range s.shifts {
		c := *sh
		out = append(out, &c)
	}
	return out
}

// Notifications returns a snapshot of delivered notifications.
func (s *MemoryStore) Notifications() []Notification {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Notification(nil), s.notifications...)
}

// Emails returns a snapshot of delivered emails.
func (s *MemoryStore) Emails() []Email {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Email(nil), s.emails...)
}

// Payments returns the shift IDs payment was processed for.
func (s *MemoryStore) Payments() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.payments...)
}

// Tasks returns a snapshot of recorded tasks.
func (s *MemoryStore) Tasks() []*Task {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		c := *t
		out = append(out, &c)
	}
	return out
}

func hasAnySkill(have, want []string) bool {
	for _, w := range want {
		for _, h := range have {
			if h == w {
				return true
			}
		}
	}
	return false
}

func applyJobFields(j *Job, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				j.Status = s
			}
		case "priority":
			if s, ok := v.(string); ok {
				j.Priority = s
			}
		case "title":
			if s, ok := v.(string); ok {
				j.Title = s
			}
		}
	}
}

func applyShiftFields(sh *Shift, fields map[string]any) {
	for k, v := range fields {
		switch k {
		case "status":
			if s, ok := v.(string); ok {
				sh.Status = s
			}
		case "workerId":
			if s, ok := v.(string); ok {
				sh.WorkerID = s
			}
		}
	}
}
