package automation

import (
	"database/sql"
	"encoding/json"
	"fmt"
)

// PostgresExecutionLog implements ExecutionLog backed by PostgreSQL,
// scoped to one organization. Rows are insert-only; nothing updates or
// deletes them.
type PostgresExecutionLog struct {
	db    *sql.DB
	orgID string
}

// NewPostgresExecutionLog creates a PostgreSQL-backed execution log for
// one organization.
func NewPostgresExecutionLog(db *sql.DB, orgID string) *PostgresExecutionLog {
	return &PostgresExecutionLog{db: db, orgID: orgID}
}

// Append inserts one execution record.
func (l *PostgresExecutionLog) Append(rec *ExecutionRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	executed, err := json.Marshal(rec.ExecutedActions)
	if err != nil {
		return fmt.Errorf("marshal executed actions: %w", err)
	}
	errs, err := json.Marshal(rec.Errors)
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	_, err = l.db.Exec(`
		INSERT INTO executions (id, organization_id, rule_id, trigger_type,
			payload, result, executed_actions, errors, duration_ms,
			started_at, deferred_from)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
	`, rec.ID, l.orgID, rec.RuleID, string(rec.TriggerType), payload,
		string(rec.Result), executed, errs, rec.DurationMS, rec.StartedAt,
		rec.DeferredFrom)
	if err != nil {
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (l *PostgresExecutionLog) Recent(limit int) ([]*ExecutionRecord, error) {
	query := `
		SELECT id, rule_id, trigger_type, payload, result, executed_actions,
			errors, duration_ms, started_at, COALESCE(deferred_from, '')
		FROM executions
		WHERE organization_id = $1
		ORDER BY started_at DESC, id DESC`
	args := []any{l.orgID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list executions: %w", err)
	}
	defer rows.Close()

	var out []*ExecutionRecord
	for rows.Next() {
		var (
			rec      ExecutionRecord
			payload  []byte
			executed []byte
			errsJSON []byte
		)
		if err := rows.Scan(&rec.ID, &rec.RuleID, &rec.TriggerType, &payload,
			&rec.Result, &executed, &errsJSON, &rec.DurationMS, &rec.StartedAt,
			&rec.DeferredFrom); err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := json.Unmarshal(executed, &rec.ExecutedActions); err != nil {
			return nil, fmt.Errorf("unmarshal executed actions: %w", err)
		}
		if err := json.Unmarshal(errsJSON, &rec.Errors); err != nil {
			return nil, fmt.Errorf("unmarshal errors: %w", err)
		}
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}
	return out, nil
}

// Stats aggregates outcomes over the organization's executions.
func (l *PostgresExecutionLog) Stats() (ExecutionStats, error) {
	var stats ExecutionStats
	err := l.db.QueryRow(`
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE result = 'success'),
			COUNT(*) FILTER (WHERE result = 'failed'),
			COUNT(*) FILTER (WHERE result = 'partial'),
			COALESCE(AVG(duration_ms), 0)
		FROM executions
		WHERE organization_id = $1
	`, l.orgID).Scan(&stats.Total, &stats.Succeeded, &stats.Failed,
		&stats.Partial, &stats.AvgDurationMS)
	if err != nil {
		return ExecutionStats{}, fmt.Errorf("failed to aggregate executions: %w", err)
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
	}
	return stats, nil
}
