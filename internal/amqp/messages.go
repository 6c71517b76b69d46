package amqp

import (
	"encoding/json"
	"time"
)

// Event types double as routing keys on the events exchange.
const (
	EventExpenseCreated   = "expense.created"
	EventExpenseDeleted   = "expense.deleted"
	EventInstallmentPaid  = "installment.paid"
	EventInstallmentsPaid = "installments.paid"
	EventStoreCleared     = "store.cleared"
)

// ExpenseEvent notifies listeners that local data changed. It carries ids
// only; listeners read current state through the storage operations.
type ExpenseEvent struct {
	Type          string    `json:"type"`
	ExpenseID     string    `json:"expense_id,omitempty"`
	InstallmentID string    `json:"installment_id,omitempty"`
	MonthKeys     []string  `json:"month_keys,omitempty"`
	Paid          *bool     `json:"paid,omitempty"`
	Count         int       `json:"count,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewExpenseEvent(eventType, expenseID string) *ExpenseEvent {
	return &ExpenseEvent{
		Type:      eventType,
		ExpenseID: expenseID,
		Timestamp: time.Now(),
	}
}

// WithPaid records the paid state the event applied.
func (e *ExpenseEvent) WithPaid(paid bool) *ExpenseEvent {
	e.Paid = &paid
	return e
}

func (e *ExpenseEvent) ToJSON() ([]byte, error) {
	return json.Marshal(e)
}

func ExpenseEventFromJSON(data []byte) (*ExpenseEvent, error) {
	var e ExpenseEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}
