package automation

import "sync"

// ExecutionLog is the append-only record of rule runs. Records are
// write-once; nothing ever mutates an appended record.
type ExecutionLog interface {
	Append(rec *ExecutionRecord) error

	// Recent returns up to limit records, newest first. limit <= 0 means
	// all records.
	Recent(limit int) ([]*ExecutionRecord, error)

	// Stats aggregates outcomes over the whole log.
	Stats() (ExecutionStats, error)
}

// InMemoryExecutionLog keeps records in an append-only slice.
type InMemoryExecutionLog struct {
	records []*ExecutionRecord
	mu      sync.RWMutex
}

// NewInMemoryExecutionLog creates an empty log.
func NewInMemoryExecutionLog() *InMemoryExecutionLog {
	return &InMemoryExecutionLog{}
}

// Append adds a record to the log.
func (l *InMemoryExecutionLog) Append(rec *ExecutionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, rec)
	return nil
}

// Recent returns up to limit records, newest first.
func (l *InMemoryExecutionLog) Recent(limit int) ([]*ExecutionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	n := len(l.records)
	if limit <= 0 || limit > n {
		limit = n
	}

	out := make([]*ExecutionRecord, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, l.records[i])
	}
	return out, nil
}

// Stats aggregates outcomes over the whole log.
func (l *InMemoryExecutionLog) Stats() (ExecutionStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var stats ExecutionStats
	var totalDur float64
	for _, rec := range l.records {
		stats.Total++
		totalDur += rec.DurationMS
		switch rec.Result {
		case ResultSuccess:
			stats.Succeeded++
		case ResultFailed:
			stats.Failed++
		case ResultPartial:
			stats.Partial++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = float64(stats.Succeeded) / float64(stats.Total)
		stats.AvgDurationMS = totalDur / float64(stats.Total)
	}
	return stats, nil
}
