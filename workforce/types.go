// Package workforce defines the domain collaborators the automation engine
// reads from and writes to: jobs, shifts, workers, notifications, payments.
// The engine only sees the narrow interfaces in stores.go; the surrounding
// application supplies real implementations.
package workforce

import "time"

// ExperienceLevel of a worker or required by a job.
const (
	LevelEntry  = "entry"
	LevelMid    = "mid"
	LevelSenior = "senior"
)

// Job is a unit of work posted by a client.
type Job struct {
	ID              string         `json:"id"`
	Title           string         `json:"title"`
	Status          string         `json:"status"`
	Priority        string         `json:"priority,omitempty"`
	RequiredSkills  []string       `json:"requiredSkills,omitempty"`
	ExperienceLevel string         `json:"experienceLevel,omitempty"`
	OrganizationID  string         `json:"organizationId,omitempty"`
	ClientID        string         `json:"clientId,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Shift assigns a worker to a job for a time window.
type Shift struct {
	ID        string    `json:"id"`
	JobID     string    `json:"jobId"`
	WorkerID  string    `json:"workerId"`
	Status    string    `json:"status"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`
}

// Worker is a candidate for job assignment. A zero Rating is treated as
// unrated and scored with the default of 4.
type Worker struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Skills          []string `json:"skills,omitempty"`
	ExperienceLevel string   `json:"experienceLevel,omitempty"`
	Available       bool     `json:"available"`
	Rating          float64  `json:"rating,omitempty"`
}

// Notification is one message delivered to one user.
type Notification struct {
	RecipientUserID string         `json:"recipientUserId"`
	Type            string         `json:"type"`
	Title           string         `json:"title"`
	Message         string         `json:"message"`
	Priority        string         `json:"priority,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// Email is an outbound message handed to the email sender.
type Email struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Task is an internal work item created by a create_task action.
type Task struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Title     string    `json:"title"`
	Assignee  string    `json:"assignee,omitempty"`
	RelatedID string    `json:"relatedId,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}
