package schemas

import "time"

// Decision is the final classification of one target.
type Decision string

const (
	DecisionDone               Decision = "DONE"
	DecisionNotFound           Decision = "SKIPPED_NOT_FOUND"
	DecisionRateLimited        Decision = "SKIPPED_RATE_LIMITED"
	DecisionFailedVerification Decision = "FAILED_VERIFICATION"
	DecisionBlocked            Decision = "BLOCKED"
)

// ActionOutcome is emitted exactly once per processed target and consumed by
// the outcome sinks. The core does not retain it beyond the current iteration.
type ActionOutcome struct {
	RunID      string    `json:"run_id"`
	Target     Target    `json:"target"`
	Decision   Decision  `json:"decision"`
	Timestamp  time.Time `json:"timestamp"`
	DryRun     bool      `json:"dry_run"`
	Reason     string    `json:"reason,omitempty"`
	ClickPoint *Point    `json:"click_point,omitempty"`
	Confidence float64   `json:"confidence,omitempty"`
	// Committed is set once the click that commits the action was sent in a
	// live run, whether or not the result could be verified afterwards.
	Committed bool `json:"committed,omitempty"`
}

// CountsTowardQuota reports whether the outcome spent daily quota: live
// actions that completed or were committed do.
func (o ActionOutcome) CountsTowardQuota() bool {
	return !o.DryRun && (o.Decision == DecisionDone || o.Committed)
}

// HaltReason tells the operator why a batch stopped.
type HaltReason string

const (
	HaltFinished      HaltReason = "finished"
	HaltDailyLimit    HaltReason = "daily_limit"
	HaltSessionLimit  HaltReason = "session_limit"
	HaltBlockDetected HaltReason = "block_detected"
	HaltManualStop    HaltReason = "manual_stop"
	// HaltSinkError means an outcome could not be recorded, so the run
	// stopped rather than act without a journal entry.
	HaltSinkError HaltReason = "sink_error"
)

// RunSummary describes a finished batch.
type RunSummary struct {
	RunID    string           `json:"run_id"`
	Started  time.Time        `json:"started"`
	Finished time.Time        `json:"finished"`
	Counts   map[Decision]int `json:"counts"`
	Halt     HaltReason       `json:"halt"`
	Detail   string           `json:"detail,omitempty"`
}
