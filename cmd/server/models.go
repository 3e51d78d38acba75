package main

import "github.com/shiftlane/automation/automation"

// API request and response models.

// CreateRuleRequest is the body for POST /rules.
type CreateRuleRequest struct {
	ID          string                 `json:"id,omitempty"`
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Trigger     automation.Trigger     `json:"trigger"`
	Conditions  []automation.Condition `json:"conditions,omitempty"`
	Actions     []automation.Action    `json:"actions"`
	Active      bool                   `json:"active"`
	Expression  string                 `json:"expression,omitempty"`
}

// TriggerEventRequest is the body for POST /events.
type TriggerEventRequest struct {
	Type    automation.TriggerType `json:"type"`
	Payload map[string]any         `json:"payload"`
}

// TriggerEventResponse lists the execution records one event produced.
type TriggerEventResponse struct {
	Executions []*automation.ExecutionRecord `json:"executions"`
}

// RulesListResponse is the body for GET /rules.
type RulesListResponse struct {
	Rules []*automation.Rule `json:"rules"`
}

// ExecutionsResponse is the body for GET /executions.
type ExecutionsResponse struct {
	Executions []*automation.ExecutionRecord `json:"executions"`
}

// SuggestionsResponse is the body for GET /rules/{ruleId}/suggestions.
type SuggestionsResponse struct {
	Suggestions []automation.Suggestion `json:"suggestions"`
}

// ErrorResponse is the shape of every error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
