package domain

// RunOutcome is the result of one refresh cycle.
type RunOutcome string

const (
	RunCompleted RunOutcome = "COMPLETED"
	RunFailed    RunOutcome = "FAILED"
)

// String returns the string representation of RunOutcome.
func (o RunOutcome) String() string {
	return string(o)
}

// IsValid checks if the outcome is a valid value.
func (o RunOutcome) IsValid() bool {
	return o == RunCompleted || o == RunFailed
}

// RefreshRun is the persisted record of one load + refresh cycle.
// Corresponds to refresh_runs table in PostgreSQL.
type RefreshRun struct {
	ID               string     // uuid
	CandyMachine     string     // machine address, empty when unset
	Wallet           string     // connected wallet, empty when disconnected
	Outcome          RunOutcome // COMPLETED or FAILED
	MintAllowed      bool
	GuardCount       int
	OwnedTokens      int
	GalleryEntries   int
	MetadataFailures int     // owned tokens dropped from the gallery
	ChainTime        int64   // unix seconds passed to the evaluator
	Error            *string // evaluator or loader error (nullable)
	StartedAt        int64   // ms
	FinishedAt       int64   // ms
}

// GuardEvaluationRecord is one guard evaluation of a refresh run.
// Corresponds to guard_evaluations table in ClickHouse.
type GuardEvaluationRecord struct {
	RunID        string
	CandyMachine string
	Wallet       string
	Label        string
	Allowed      bool
	MaxAmount    uint64
	Reason       string
	EvaluatedAt  int64 // ms
}
