package core

// Record is the read-side view shared by expenses and contributions.
type Record interface {
	RecordID() string
	RecordDate() Date
	RecordAmount() float64
}

// Identifiable is a Record that can be given an id on insertion.
type Identifiable[R any] interface {
	Record
	WithID(id string) R
}

func (e Expense) RecordID() string      { return e.ID }
func (e Expense) RecordDate() Date      { return e.Date }
func (e Expense) RecordAmount() float64 { return e.Amount }

// WithID returns a copy of e carrying id.
func (e Expense) WithID(id string) Expense {
	e.ID = id
	return e
}

func (c Contribution) RecordID() string      { return c.ID }
func (c Contribution) RecordDate() Date      { return c.Date }
func (c Contribution) RecordAmount() float64 { return c.Amount }

// WithID returns a copy of c carrying id.
func (c Contribution) WithID(id string) Contribution {
	c.ID = id
	return c
}
