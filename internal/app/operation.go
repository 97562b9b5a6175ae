package app

import "time"

// Operation tracks a CLI command that changes alarms or OS state. It lives
// in memory with ID 0 until the command first mutates something; then it is
// written to the operations table and finished in Close.
type Operation struct {
	ID         int64
	Name       string
	Parameters string
	Status     string // "success" or "error"
	StartedAt  time.Time
}

// NewOperation creates an in-memory operation.
func NewOperation(name, parameters string, startedAt time.Time) *Operation {
	return &Operation{
		Name:       name,
		Parameters: parameters,
		Status:     "success",
		StartedAt:  startedAt,
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}

// Record marks the operation failed when err is non-nil and returns err.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}
