package usecase

import "time"

const (
	// DefaultTransactionTimeout bounds one coordinator operation end to end,
	// lease waits included.
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultLeaseTimeout is how long a unit of work waits for an account lease.
	DefaultLeaseTimeout = 5 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour
)

// Operation outcomes reported to MetricsRecorder.
const (
	OutcomeCompleted    = "completed"
	OutcomeFailed       = "failed"
	OutcomeRejected     = "rejected"
	OutcomeLeaseTimeout = "lease_timeout"
	OutcomeError        = "error"
)
