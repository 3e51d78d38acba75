// Package multiengine manages one automation engine per organization so
// tenants' rules, schedules and execution logs never interfere.
package multiengine

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/shiftlane/automation/automation"
)

// StoreFactory builds the rule store backing one organization's engine.
type StoreFactory func(orgID string) automation.RuleStore

// LogFactory builds the execution log backing one organization's engine.
type LogFactory func(orgID string) automation.ExecutionLog

// Manager owns the per-organization engines.
type Manager struct {
	engines  map[string]*automation.Engine
	stores   StoreFactory
	logs     LogFactory
	executor *automation.Executor
	suggest  automation.SuggestionProvider
	mu       sync.RWMutex
}

// NewManager creates a manager that builds engines from the given
// factories, all sharing one action executor.
func NewManager(stores StoreFactory, logs LogFactory, executor *automation.Executor) *Manager {
	return &Manager{
		engines:  make(map[string]*automation.Engine),
		stores:   stores,
		logs:     logs,
		executor: executor,
	}
}

// SetSuggestionProvider installs the advisory provider on all future
// engines.
func (m *Manager) SetSuggestionProvider(p automation.SuggestionProvider) {
	m.suggest = p
}

// Create builds and starts the engine for an organization. Fails if one
// already exists.
func (m *Manager) Create(orgID string) (*automation.Engine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.engines[orgID]; exists {
		return nil, fmt.Errorf("organization %s already has an engine", orgID)
	}
	return m.createLocked(orgID)
}

func (m *Manager) createLocked(orgID string) (*automation.Engine, error) {
	engine, err := automation.NewEngine(m.stores(orgID), m.logs(orgID), m.executor)
	if err != nil {
		return nil, fmt.Errorf("create engine for %s: %w", orgID, err)
	}
	if m.suggest != nil {
		engine.SetSuggestionProvider(m.suggest)
	}
	if err := engine.Start(); err != nil {
		return nil, fmt.Errorf("start engine for %s: %w", orgID, err)
	}
	m.engines[orgID] = engine
	return engine, nil
}

// Engine returns the engine for an organization.
func (m *Manager) Engine(orgID string) (*automation.Engine, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	engine, exists := m.engines[orgID]
	if !exists {
		return nil, fmt.Errorf("organization %s not found", orgID)
	}
	return engine, nil
}

// EngineOrCreate returns the organization's engine, building it on first
// use.
func (m *Manager) EngineOrCreate(orgID string) (*automation.Engine, error) {
	m.mu.RLock()
	engine, exists := m.engines[orgID]
	m.mu.RUnlock()
	if exists {
		return engine, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if engine, exists := m.engines[orgID]; exists {
		return engine, nil
	}
	return m.createLocked(orgID)
}

// List returns the IDs of all organizations with a loaded engine.
func (m *Manager) List() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]string, 0, len(m.engines))
	for orgID := range m.engines {
		out = append(out, orgID)
	}
	return out
}

// Delete stops and removes an organization's engine. Stored rules are not
// touched.
func (m *Manager) Delete(orgID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	engine, exists := m.engines[orgID]
	if !exists {
		return fmt.Errorf("organization %s not found", orgID)
	}
	engine.Stop()
	delete(m.engines, orgID)
	return nil
}

// StopAll stops every engine. Used on shutdown.
func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, engine := range m.engines {
		engine.Stop()
	}
}

// LoadOrganizations builds an engine for every organization in the
// database.
func (m *Manager) LoadOrganizations(db *sql.DB) error {
	rows, err := db.Query(`SELECT id FROM organizations`)
	if err != nil {
		return fmt.Errorf("failed to fetch organizations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var orgID string
		if err := rows.Scan(&orgID); err != nil {
			return fmt.Errorf("failed to scan organization: %w", err)
		}
		if _, err := m.Create(orgID); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating organizations: %w", err)
	}
	return nil
}
