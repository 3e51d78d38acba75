package automation

import (
	"fmt"
	"sync"
	"time"
)

// RuleStore manages rule persistence and retrieval.
type RuleStore interface {
	// Add a new rule. Fails with ErrDuplicateRule if the ID is taken.
	Add(rule *Rule) error

	// Get a rule by ID. Fails with ErrRuleNotFound if absent.
	Get(id string) (*Rule, error)

	// List all rules.
	List() ([]*Rule, error)

	// ListActive returns only active rules.
	ListActive() ([]*Rule, error)

	// Update replaces an existing rule.
	Update(rule *Rule) error

	// Delete a rule.
	Delete(id string) error
}

// InMemoryRuleStore implements RuleStore using a mutex-guarded map.
// Rules are cloned on the way in and out so callers never share registry
// state.
type InMemoryRuleStore struct {
	rules map[string]*Rule
	mu    sync.RWMutex
}

// NewInMemoryRuleStore creates an empty in-memory rule store.
func NewInMemoryRuleStore() *InMemoryRuleStore {
	return &InMemoryRuleStore{
		rules: make(map[string]*Rule),
	}
}

// Add adds a new rule, setting CreatedAt/UpdatedAt.
func (s *InMemoryRuleStore) Add(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[rule.ID]; exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrDuplicateRule)
	}

	c := rule.Clone()
	now := time.Now()
	c.CreatedAt = now
	c.UpdatedAt = now
	s.rules[c.ID] = c
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return nil
}

// Get retrieves a rule by ID.
func (s *InMemoryRuleStore) Get(id string) (*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rule, exists := s.rules[id]
	if !exists {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return rule.Clone(), nil
}

// List returns all rules.
func (s *InMemoryRuleStore) List() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Rule, 0, len(s.rules))
	for _, rule := range s.rules {
		out = append(out, rule.Clone())
	}
	return out, nil
}

// ListActive returns only active rules.
func (s *InMemoryRuleStore) ListActive() ([]*Rule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Rule
	for _, rule := range s.rules {
		if rule.Active {
			active = append(active, rule.Clone())
		}
	}
	return active, nil
}

// Update replaces an existing rule, preserving its CreatedAt.
func (s *InMemoryRuleStore) Update(rule *Rule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.rules[rule.ID]
	if !exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	}

	c := rule.Clone()
	c.CreatedAt = existing.CreatedAt
	c.UpdatedAt = time.Now()
	s.rules[c.ID] = c
	return nil
}

// Delete removes a rule.
func (s *InMemoryRuleStore) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.rules[id]; !exists {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}

	delete(s.rules, id)
	return nil
}
