package schemas

import "errors"

// Error taxonomy shared by the vision, safety and execution layers. All are
// sentinel values meant to be compared with errors.Is.
var (
	// ErrNotFound: the visual target is absent from the current view. Recoverable by scroll/retry.
	ErrNotFound = errors.New("target not found in viewport")
	// ErrLowConfidence: a degraded frame. Recoverable by re-capture.
	ErrLowConfidence = errors.New("low confidence capture")
	// ErrVerificationMismatch: identity or state could not be confirmed. Never retried.
	ErrVerificationMismatch = errors.New("verification mismatch")
	// ErrBlockDetected: the platform is throttling the account. Fatal for the run.
	ErrBlockDetected = errors.New("block signal detected")
	// ErrDailyLimit: the daily cap is reached. Fatal for the day.
	ErrDailyLimit = errors.New("daily action limit reached")
	// ErrSessionLimit: the per-run cap is reached. Fatal for the run.
	ErrSessionLimit = errors.New("session action limit reached")
	// ErrManualStop: an operator asked the run to stop.
	ErrManualStop = errors.New("stopped by request")
)
