package automation

import "errors"

var (
	// ErrRuleNotFound is returned when an operation addresses an unknown
	// rule ID.
	ErrRuleNotFound = errors.New("automation: rule not found")

	// ErrRuleInactive is returned when ExecuteRule is called directly on a
	// deactivated rule. Event dispatch never hits this; it filters first.
	ErrRuleInactive = errors.New("automation: rule is inactive")

	// ErrDuplicateRule is returned when AddRule sees an ID already in use.
	ErrDuplicateRule = errors.New("automation: rule already exists")

	// ErrUnknownAction is returned for an action type the executor does
	// not handle, or an action missing its typed configuration.
	ErrUnknownAction = errors.New("automation: unknown or misconfigured action")
)
