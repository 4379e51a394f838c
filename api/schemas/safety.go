package schemas

import "time"

// SafetyStatus is the state of the safety governor.
type SafetyStatus string

const (
	StatusRunning       SafetyStatus = "RUNNING"
	StatusCooldown      SafetyStatus = "COOLDOWN"
	StatusHaltedDaily   SafetyStatus = "HALTED_DAILY_LIMIT"
	StatusHaltedBlocked SafetyStatus = "HALTED_BLOCK_DETECTED"
	StatusHaltedManual  SafetyStatus = "HALTED_MANUAL"
)

// Terminal reports whether no further action may ever be authorized in this run.
func (s SafetyStatus) Terminal() bool {
	switch s {
	case StatusHaltedDaily, StatusHaltedBlocked, StatusHaltedManual:
		return true
	}
	return false
}

// SafetyState is a snapshot of the governor's counters.
type SafetyState struct {
	ActionsToday      int          `json:"actions_today"`
	ActionsSincePause int          `json:"actions_since_pause"`
	LastActionTime    time.Time    `json:"last_action_time"`
	CooldownUntil     time.Time    `json:"cooldown_until"`
	Status            SafetyStatus `json:"status"`
	// HaltReason carries the human readable cause of a terminal state.
	HaltReason string `json:"halt_reason,omitempty"`
}

// Verdict is the answer of the governor to an authorization request.
type Verdict string

const (
	VerdictAllow Verdict = "ALLOW"
	VerdictWait  Verdict = "WAIT"
	VerdictDeny  Verdict = "DENY"
)

// Authorization is returned before every action. For ALLOW, Delay is the
// randomized inter-action pause the caller must sleep before acting; for WAIT
// it is the remaining cooldown.
type Authorization struct {
	Verdict Verdict       `json:"verdict"`
	Delay   time.Duration `json:"delay"`
	Reason  string        `json:"reason,omitempty"`
	// Err is the taxonomy error behind a DENY (ErrDailyLimit, ErrBlockDetected, ErrManualStop).
	Err error `json:"-"`
}
