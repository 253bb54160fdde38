package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"finca/internal/core"
)

const (
	CollectionExpenses      = "expenses"
	CollectionContributions = "contributions"
	CollectionAttachments   = "attachments"

	ActionCreated = "created"
	ActionDeleted = "deleted"
)

// RecordEvent announces a confirmed ledger mutation. Created events carry the
// record so consumers need no access to the store.
type RecordEvent struct {
	Collection   string             `json:"collection"`
	Action       string             `json:"action"`
	ID           string             `json:"id"`
	Timestamp    time.Time          `json:"timestamp"`
	Expense      *core.Expense      `json:"expense,omitempty"`
	Contribution *core.Contribution `json:"contribution,omitempty"`
	Attachment   *core.Attachment   `json:"attachment,omitempty"`
}

// OrphanedBlob names a stored object no attachment record points to.
type OrphanedBlob struct {
	Key       string    `json:"key"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

func NewExpenseCreated(e core.Expense) *RecordEvent {
	return &RecordEvent{Collection: CollectionExpenses, Action: ActionCreated, ID: e.ID, Timestamp: time.Now(), Expense: &e}
}

func NewContributionCreated(c core.Contribution) *RecordEvent {
	return &RecordEvent{Collection: CollectionContributions, Action: ActionCreated, ID: c.ID, Timestamp: time.Now(), Contribution: &c}
}

func NewAttachmentCreated(a core.Attachment) *RecordEvent {
	return &RecordEvent{Collection: CollectionAttachments, Action: ActionCreated, ID: a.ID, Timestamp: time.Now(), Attachment: &a}
}

// NewRecordDeleted builds the delete event for id in collection.
func NewRecordDeleted(collection, id string) *RecordEvent {
	return &RecordEvent{Collection: collection, Action: ActionDeleted, ID: id, Timestamp: time.Now()}
}

func NewOrphanedBlob(key, expenseID, reason string) *OrphanedBlob {
	return &OrphanedBlob{Key: key, ExpenseID: expenseID, Reason: reason, Timestamp: time.Now()}
}

func (m *RecordEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RecordEventFromJSON decodes and checks a record event.
func RecordEventFromJSON(data []byte) (*RecordEvent, error) {
	var msg RecordEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ID == "" || msg.Collection == "" {
		return nil, fmt.Errorf("record event missing id or collection")
	}
	switch msg.Action {
	case ActionCreated, ActionDeleted:
	default:
		return nil, fmt.Errorf("record event: unknown action %q", msg.Action)
	}
	return &msg, nil
}

func (m *OrphanedBlob) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func OrphanedBlobFromJSON(data []byte) (*OrphanedBlob, error) {
	var msg OrphanedBlob
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Key == "" {
		return nil, fmt.Errorf("orphaned blob message missing key")
	}
	return &msg, nil
}
