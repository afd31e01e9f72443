package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/yungbote/meridian-backend/internal/logger"
	"github.com/yungbote/meridian-backend/internal/types"
)

const (
	DecisionSilent     = "SILENT"
	DecisionNudge      = "NUDGE"
	DecisionChatInvite = "CHAT_INVITE"
)

// Decision is produced fresh on every evaluation cycle and never persisted
// as its own entity; its effect lands as a SentMessage.
type Decision struct {
	State   string
	Signal  *types.Signal
	Reason  string
	Message string
}

// signalPriority lists types in descending decision priority; among multiple
// qualifying signals of the same resulting state, the first type found in
// this order wins.
var signalPriority = []string{
	types.SignalFlight,
	types.SignalInterview,
	types.SignalEvent,
	types.SignalTransition,
	types.SignalObsession,
}

// Message pools are deliberately small and human; repeats across days are
// acceptable, robotic sameness within a day is not.
var messagePools = map[string][]string{
	types.SignalFlight: {
		"Flight's coming up soon. Packed yet?",
		"You fly out in a few hours. Anything still on your list?",
		"Almost wheels-up. How are you feeling about the trip?",
	},
	types.SignalInterview: {
		"Interview's tomorrow, right? Rooting for you.",
		"Big conversation coming up. Want to talk through it?",
		"Thinking about your interview. You've done the work.",
	},
	types.SignalEvent: {
		"That event is almost here. Know who you want to meet?",
		"Coming up on your calendar soon. Worth a minute to think about what you want out of it?",
		"Your event's around the corner. Excited or obligated?",
	},
	types.SignalTransition: {
		"You've been circling a change for a while now. Want to actually talk about it?",
		"Something's been shifting for you lately. I'm around if you want to dig in.",
		"This keeps coming up. Maybe it's worth a real conversation.",
	},
	types.SignalObsession: {
		"You keep coming back to this. What's pulling you in?",
		"Third time this has shown up lately. Want to go deeper on it?",
		"This one clearly has its hooks in you. Curious where it's going.",
	},
}

// DecisionEvaluator applies the per-type eligibility rules to the recent
// signal window and picks at most one signal to act on. Time-sensitive
// nudges always outrank pattern-based chat invites.
type DecisionEvaluator interface {
	Evaluate(signals []*types.Signal) Decision
}

type decisionEvaluator struct {
	log *logger.Logger
	now func() time.Time

	mu  sync.Mutex
	rng *rand.Rand
}

// NewDecisionEvaluator takes an explicit randomness source so template
// selection stays seedable in tests while keeping run-time variety.
func NewDecisionEvaluator(baseLog *logger.Logger, rng *rand.Rand) DecisionEvaluator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &decisionEvaluator{
		log: baseLog.With("service", "DecisionEvaluator"),
		now: func() time.Time { return time.Now().UTC() },
		rng: rng,
	}
}

func (e *decisionEvaluator) Evaluate(signals []*types.Signal) Decision {
	now := e.now()

	var nudge *types.Signal
	var invite *types.Signal
	var nudgeReason, inviteReason string

	for _, typ := range signalPriority {
		for _, sig := range signals {
			if sig.Type != typ {
				continue
			}
			switch typ {
			case types.SignalFlight, types.SignalInterview, types.SignalEvent:
				if nudge != nil {
					continue
				}
				if ok, reason := nudgeWindowMet(sig, now); ok {
					nudge = sig
					nudgeReason = reason
				}
			case types.SignalTransition:
				if invite != nil {
					continue
				}
				if sig.OccurredAt.Before(now.Add(-5*24*time.Hour)) && persistentTransition(signals, now) {
					invite = sig
					inviteReason = "repeated transition signals persisting past 5 days"
				}
			case types.SignalObsession:
				if invite != nil {
					continue
				}
				if recurringObsession(signals, sig.Domain) {
					invite = sig
					inviteReason = fmt.Sprintf("recurring interest in %s", sig.Domain)
				}
			}
		}
	}

	if nudge != nil {
		return Decision{
			State:   DecisionNudge,
			Signal:  nudge,
			Reason:  nudgeReason,
			Message: e.pickMessage(nudge.Type),
		}
	}
	if invite != nil {
		return Decision{
			State:   DecisionChatInvite,
			Signal:  invite,
			Reason:  inviteReason,
			Message: e.pickMessage(invite.Type),
		}
	}
	return Decision{State: DecisionSilent, Reason: "no action criteria met"}
}

// nudgeWindowMet checks the time-sensitivity window for deadline-bearing
// signal types: the expiry must still be ahead but within the type's horizon.
func nudgeWindowMet(sig *types.Signal, now time.Time) (bool, string) {
	if sig.ExpiresAt == nil {
		return false, ""
	}
	hoursUntil := sig.ExpiresAt.Sub(now).Hours()
	if hoursUntil <= 0 {
		return false, ""
	}
	var window float64
	switch sig.Type {
	case types.SignalFlight:
		window = 12
	case types.SignalInterview:
		window = 24
	case types.SignalEvent:
		window = 48
	default:
		return false, ""
	}
	if hoursUntil >= window {
		return false, ""
	}
	return true, fmt.Sprintf("%s within %.0fh window", sig.Type, window)
}

// persistentTransition requires corroboration: at least two transition
// signals that have each lingered for more than five days.
func persistentTransition(signals []*types.Signal, now time.Time) bool {
	cutoff := now.Add(-5 * 24 * time.Hour)
	old := 0
	for _, sig := range signals {
		if sig.Type == types.SignalTransition && sig.OccurredAt.Before(cutoff) {
			old++
		}
	}
	return old >= 2
}

// recurringObsession requires three or more signals sharing both type and
// domain before an invite fires.
func recurringObsession(signals []*types.Signal, domain string) bool {
	count := 0
	for _, sig := range signals {
		if sig.Type == types.SignalObsession && sig.Domain == domain {
			count++
		}
	}
	return count >= 3
}

func (e *decisionEvaluator) pickMessage(signalType string) string {
	pool := messagePools[signalType]
	if len(pool) == 0 {
		return ""
	}
	e.mu.Lock()
	idx := e.rng.Intn(len(pool))
	e.mu.Unlock()
	return pool[idx]
}
