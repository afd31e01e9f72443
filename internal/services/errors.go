package services

import "errors"

// Policy denials and evidence shortfalls are expected outcomes, not faults.
// Handlers match on these to pick status codes; everything else is treated
// as an upstream failure.
var (
	ErrNotUnlocked          = errors.New("undercurrents not unlocked")
	ErrPendingResponse      = errors.New("pending undercurrent response")
	ErrWeeklyQuotaReached   = errors.New("weekly undercurrent quota reached")
	ErrNothingAvailable     = errors.New("nothing available right now")
	ErrInsufficientEvidence = errors.New("insufficient evidence")
	ErrPipelineBusy         = errors.New("pipeline already running for user")
	ErrAlreadySentToday     = errors.New("message already sent today")
)
