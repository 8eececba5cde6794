package domain

import "time"

// Failure classifications recorded on dead-letter entries.
const (
	FailureTypeValidation = "validation"
	FailureTypePermanent  = "permanent"
	FailureTypeTransient  = "transient"
	FailureTypeUnknown    = "unknown"
)

// DeadLetter is an append-only record of a job that exhausted its retry
// budget or failed permanently. Entries stay inspectable for operator-driven
// requeue once the underlying cause is fixed.
type DeadLetter struct {
	ID            int64      `db:"id"`
	Queue         string     `db:"queue"`
	JobType       string     `db:"job_type"`
	CorrelationID string     `db:"correlation_id"`
	Envelope      []byte     `db:"envelope"` // original job, verbatim
	FailureType   string     `db:"failure_type"`
	Attempts      int        `db:"attempts"`
	LastError     string     `db:"last_error"`
	CreatedAt     time.Time  `db:"created_at"`
	ReplayedAt    *time.Time `db:"replayed_at"`
}
