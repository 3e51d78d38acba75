package automation

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/shiftlane/automation/internal/logger"
)

var cronWeekdays = map[string]string{
	"sunday":    "SUN",
	"monday":    "MON",
	"tuesday":   "TUE",
	"wednesday": "WED",
	"thursday":  "THU",
	"friday":    "FRI",
	"saturday":  "SAT",
}

// cronSpec renders a ScheduleSpec as a standard five-field cron expression.
// Monthly recurrence fires on day 1 of the month.
func cronSpec(spec *ScheduleSpec) (string, error) {
	if spec == nil {
		return "", fmt.Errorf("schedule spec is nil")
	}

	hour, minute, err := parseTimeOfDay(spec.TimeOfDay)
	if err != nil {
		return "", err
	}

	switch spec.Frequency {
	case FrequencyDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case FrequencyWeekly:
		days := make([]string, 0, len(spec.DaysOfWeek))
		for _, d := range spec.DaysOfWeek {
			abbr, ok := cronWeekdays[strings.ToLower(d)]
			if !ok {
				return "", fmt.Errorf("unknown day of week %q", d)
			}
			days = append(days, abbr)
		}
		if len(days) == 0 {
			// Weekly with no days behaves like daily.
			return fmt.Sprintf("%d %d * * *", minute, hour), nil
		}
		return fmt.Sprintf("%d %d * * %s", minute, hour, strings.Join(days, ",")), nil
	case FrequencyMonthly:
		return fmt.Sprintf("%d %d 1 * *", minute, hour), nil
	default:
		return "", fmt.Errorf("unknown frequency %q", spec.Frequency)
	}
}

func parseTimeOfDay(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// NextFire computes the first instant strictly after `after` at which the
// schedule fires. Cron resolution is wall-clock, so day-of-week and
// time-of-day stay correct across DST transitions.
func NextFire(spec *ScheduleSpec, after time.Time) (time.Time, error) {
	expr, err := cronSpec(spec)
	if err != nil {
		return time.Time{}, err
	}
	sched, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse schedule %q: %w", expr, err)
	}
	return sched.Next(after), nil
}

// scheduler arms one self-rescheduling one-shot timer per schedule_time
// rule. Each fire recomputes its own next instant before executing, so
// execution latency never accumulates as drift.
type scheduler struct {
	engine  *Engine
	timers  map[string]*time.Timer
	mu      sync.Mutex
	stopped bool
}

func newScheduler(e *Engine) *scheduler {
	return &scheduler{
		engine: e,
		timers: make(map[string]*time.Timer),
	}
}

// arm schedules the next fire for a rule, replacing any existing timer.
func (s *scheduler) arm(ruleID string, spec *ScheduleSpec) {
	next, err := NextFire(spec, time.Now())
	if err != nil {
		logger.Warn("cannot arm schedule", "ruleId", ruleID, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	if t, ok := s.timers[ruleID]; ok {
		t.Stop()
	}
	s.timers[ruleID] = time.AfterFunc(time.Until(next), func() {
		s.fire(ruleID)
	})
}

// disarm cancels the pending fire for a rule.
func (s *scheduler) disarm(ruleID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[ruleID]; ok {
		t.Stop()
		delete(s.timers, ruleID)
	}
}

// fire is the timer callback boundary: panics are recovered and logged,
// and the next recurrence is armed before the rule executes. A failed run
// never disables future recurrences.
func (s *scheduler) fire(ruleID string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in scheduled rule", "ruleId", ruleID, "panic", r)
		}
	}()

	rule, err := s.engine.store.Get(ruleID)
	if err != nil || !rule.Active || rule.Trigger.Type != TriggerScheduleTime {
		s.disarm(ruleID)
		return
	}

	s.arm(ruleID, rule.Trigger.Schedule)

	payload := map[string]any{
		"trigger":     string(TriggerScheduleTime),
		"ruleId":      ruleID,
		"scheduledAt": time.Now().Format(time.RFC3339),
	}
	if _, err := s.engine.ExecuteRule(context.Background(), ruleID, payload); err != nil {
		logger.Warn("scheduled rule execution rejected", "ruleId", ruleID, "error", err)
	}
}

// stop cancels every pending timer. In-flight fires complete.
func (s *scheduler) stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	for id, t := range s.timers {
		t.Stop()
		delete(s.timers, id)
	}
}

// reset makes a stopped scheduler armable again.
func (s *scheduler) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = false
}
