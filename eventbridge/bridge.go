// Package eventbridge feeds domain events from the NATS bus into an
// automation engine. The engine itself never subscribes to anything; the
// bridge is an optional adapter the host wires in.
package eventbridge

import (
	"context"
	"encoding/json"

	"github.com/nats-io/nats.go"

	"github.com/shiftlane/automation/automation"
	"github.com/shiftlane/automation/internal/logger"
)

// Subject convention: events.<entity>.<verb>.
const subjectWildcard = "events.>"

var subjectTriggers = map[string]automation.TriggerType{
	"events.job.created":       automation.TriggerJobCreated,
	"events.shift.completed":   automation.TriggerShiftCompleted,
	"events.payment.processed": automation.TriggerPaymentProcessed,
	"events.user.registered":   automation.TriggerUserRegistered,
}

// TriggerForSubject maps a bus subject to its trigger type.
func TriggerForSubject(subject string) (automation.TriggerType, bool) {
	t, ok := subjectTriggers[subject]
	return t, ok
}

// SubjectForTrigger maps a trigger type back to its bus subject.
// schedule_time has no subject; schedules fire inside the engine.
func SubjectForTrigger(t automation.TriggerType) (string, bool) {
	for subject, trigger := range subjectTriggers {
		if trigger == t {
			return subject, true
		}
	}
	return "", false
}

// Dispatcher receives decoded bus events. *automation.Engine satisfies it.
type Dispatcher interface {
	TriggerEvent(ctx context.Context, eventType automation.TriggerType, payload map[string]any) []*automation.ExecutionRecord
}

// Bridge subscribes to the event subjects and forwards decoded payloads to
// the dispatcher.
type Bridge struct {
	conn       *nats.Conn
	dispatcher Dispatcher
	sub        *nats.Subscription
}

// New creates a bridge over an established NATS connection.
func New(conn *nats.Conn, dispatcher Dispatcher) *Bridge {
	return &Bridge{conn: conn, dispatcher: dispatcher}
}

// Start subscribes to the event subjects. Malformed messages are logged
// and dropped; they never reach the dispatcher.
func (b *Bridge) Start() error {
	sub, err := b.conn.Subscribe(subjectWildcard, b.handle)
	if err != nil {
		return err
	}
	b.sub = sub
	return nil
}

func (b *Bridge) handle(msg *nats.Msg) {
	trigger, ok := TriggerForSubject(msg.Subject)
	if !ok {
		logger.Debug("ignoring unknown event subject", "subject", msg.Subject)
		return
	}

	var payload map[string]any
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &payload); err != nil {
			logger.Warn("dropping malformed event", "subject", msg.Subject, "error", err)
			return
		}
	}

	b.dispatcher.TriggerEvent(context.Background(), trigger, payload)
}

// Close drains the subscription.
func (b *Bridge) Close() error {
	if b.sub == nil {
		return nil
	}
	return b.sub.Drain()
}
