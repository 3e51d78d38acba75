package automation

// DefaultRules returns the automations the product ships with. Hosts seed
// them at startup; IDs are fixed so reseeding is a no-op duplicate error.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			ID:          "default-auto-assign-urgent",
			Name:        "Auto-assign urgent jobs",
			Description: "Assign the best matching worker as soon as a high-priority job is created",
			Trigger:     Trigger{Type: TriggerJobCreated},
			Conditions: []Condition{
				{Field: "priority", Operator: OpEquals, Value: "high"},
			},
			Actions: []Action{
				{
					Type: ActionAssignWorker,
					Assignment: &AssignmentConfig{
						Criteria:     CriteriaBestMatch,
						NotifyWorker: true,
					},
				},
			},
			Active: true,
		},
		{
			ID:          "default-pay-completed-shifts",
			Name:        "Process payment on shift completion",
			Description: "Create a payment task (settled immediately for completed shifts) and notify the worker",
			Trigger:     Trigger{Type: TriggerShiftCompleted},
			Actions: []Action{
				{
					Type: ActionCreateTask,
					Task: &TaskConfig{
						TaskType: "process_payment",
						Title:    "Process payment for shift {{shiftId}}",
					},
				},
				{
					Type: ActionSendNotification,
					Notification: &NotificationConfig{
						Recipients: []string{"worker"},
						Title:      "Shift completed",
						Message:    "Your shift {{shiftId}} is complete and payment is on its way",
					},
				},
			},
			Active: true,
		},
	}
}
