package automation

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// PostgresRuleStore implements RuleStore backed by PostgreSQL, scoped to
// one organization.
type PostgresRuleStore struct {
	db    *sql.DB
	orgID string
}

// NewPostgresRuleStore creates a PostgreSQL-backed RuleStore for one
// organization.
func NewPostgresRuleStore(db *sql.DB, orgID string) *PostgresRuleStore {
	return &PostgresRuleStore{db: db, orgID: orgID}
}

const ruleColumns = `id, name, description, trigger, conditions, actions, active,
	expression, execution_count, last_executed, metrics, created_at, updated_at`

// Add inserts a new rule.
func (s *PostgresRuleStore) Add(rule *Rule) error {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1 AND organization_id = $2)
	`, rule.ID, s.orgID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check rule existence: %w", err)
	}
	if exists {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrDuplicateRule)
	}

	now := time.Now()
	rule.CreatedAt = now
	rule.UpdatedAt = now

	trigger, conditions, actions, metrics, err := marshalRuleFields(rule)
	if err != nil {
		return err
	}

	_, err = s.db.Exec(`
		INSERT INTO rules (id, organization_id, name, description, trigger, conditions,
			actions, active, expression, execution_count, last_executed, metrics,
			created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, rule.ID, s.orgID, rule.Name, rule.Description, trigger, conditions,
		actions, rule.Active, rule.Expression, rule.ExecutionCount,
		rule.LastExecuted, metrics, rule.CreatedAt, rule.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert rule: %w", err)
	}
	return nil
}

// Get retrieves a rule by ID.
func (s *PostgresRuleStore) Get(id string) (*Rule, error) {
	row := s.db.QueryRow(`
		SELECT `+ruleColumns+`
		FROM rules
		WHERE id = $1 AND organization_id = $2
	`, id, s.orgID)

	rule, err := scanRule(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule: %w", err)
	}
	return rule, nil
}

// List returns all rules for the organization, oldest first.
func (s *PostgresRuleStore) List() ([]*Rule, error) {
	return s.list(`
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE organization_id = $1
		ORDER BY created_at ASC
	`)
}

// ListActive returns only active rules, oldest first.
func (s *PostgresRuleStore) ListActive() ([]*Rule, error) {
	return s.list(`
		SELECT ` + ruleColumns + `
		FROM rules
		WHERE organization_id = $1 AND active = true
		ORDER BY created_at ASC
	`)
}

func (s *PostgresRuleStore) list(query string) ([]*Rule, error) {
	rows, err := s.db.Query(query, s.orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}
	defer rows.Close()

	var out []*Rule
	for rows.Next() {
		rule, err := scanRule(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}
		out = append(out, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rules: %w", err)
	}
	return out, nil
}

// Update replaces an existing rule.
func (s *PostgresRuleStore) Update(rule *Rule) error {
	rule.UpdatedAt = time.Now()

	trigger, conditions, actions, metrics, err := marshalRuleFields(rule)
	if err != nil {
		return err
	}

	result, err := s.db.Exec(`
		UPDATE rules
		SET name = $1, description = $2, trigger = $3, conditions = $4,
			actions = $5, active = $6, expression = $7, execution_count = $8,
			last_executed = $9, metrics = $10, updated_at = $11
		WHERE id = $12 AND organization_id = $13
	`, rule.Name, rule.Description, trigger, conditions, actions, rule.Active,
		rule.Expression, rule.ExecutionCount, rule.LastExecuted, metrics,
		rule.UpdatedAt, rule.ID, s.orgID)
	if err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", rule.ID, ErrRuleNotFound)
	}
	return nil
}

// Delete removes a rule.
func (s *PostgresRuleStore) Delete(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM rules
		WHERE id = $1 AND organization_id = $2
	`, id, s.orgID)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule %s: %w", id, ErrRuleNotFound)
	}
	return nil
}

func marshalRuleFields(rule *Rule) (trigger, conditions, actions, metrics []byte, err error) {
	if trigger, err = json.Marshal(rule.Trigger); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal trigger: %w", err)
	}
	if conditions, err = json.Marshal(rule.Conditions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal conditions: %w", err)
	}
	if actions, err = json.Marshal(rule.Actions); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal actions: %w", err)
	}
	if metrics, err = json.Marshal(rule.Metrics); err != nil {
		return nil, nil, nil, nil, fmt.Errorf("marshal metrics: %w", err)
	}
	return trigger, conditions, actions, metrics, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRule(row rowScanner) (*Rule, error) {
	var (
		rule         Rule
		trigger      []byte
		conditions   []byte
		actions      []byte
		metrics      []byte
		lastExecuted sql.NullTime
	)
	err := row.Scan(
		&rule.ID, &rule.Name, &rule.Description, &trigger, &conditions,
		&actions, &rule.Active, &rule.Expression, &rule.ExecutionCount,
		&lastExecuted, &metrics, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(trigger, &rule.Trigger); err != nil {
		return nil, fmt.Errorf("unmarshal trigger: %w", err)
	}
	if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
		return nil, fmt.Errorf("unmarshal conditions: %w", err)
	}
	if err := json.Unmarshal(actions, &rule.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	if err := json.Unmarshal(metrics, &rule.Metrics); err != nil {
		return nil, fmt.Errorf("unmarshal metrics: %w", err)
	}
	if lastExecuted.Valid {
		t := lastExecuted.Time
		rule.LastExecuted = &t
	}
	return &rule, nil
}
