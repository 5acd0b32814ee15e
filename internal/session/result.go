package session

import (
	"time"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
)

// Match codes reported for a submission.
const (
	MatchError = -1
	Matched    = 0
	Mismatched = 1
)

// NoPlayer is the player id reported when no submission could be read.
const NoPlayer = -1

const (
	timeoutText  = "Timeout"
	decodeText   = "Decoding JSON has failed"
	keyErrorText = "Key error in the received Json"
	diffPrefix   = "Game state difference : "
)

// Outcome classifies what happened to one player read.
type Outcome int

const (
	OutcomeScored Outcome = iota
	OutcomeTimeout
	OutcomeDisconnected
	OutcomeDecodeError
	OutcomeDuplicate
	OutcomeInvalidPlayer
	OutcomeStopped
)

func (o Outcome) String() string {
	switch o {
	case OutcomeScored:
		return "scored"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeDisconnected:
		return "disconnected"
	case OutcomeDecodeError:
		return "decode_error"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeInvalidPlayer:
		return "invalid_player"
	case OutcomeStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// PlayerResult is the outcome of one HandleOnePlayer call.
type PlayerResult struct {
	Outcome Outcome
	// Match is MatchError, Matched or Mismatched.
	Match    int
	PlayerID int
	// Message is the diagnostic shown to the viewer.
	Message      string
	Action       string
	ResponseTime time.Duration
	// Remaining is the read budget left for the rest of the round.
	Remaining time.Duration
	Diff      combat.Diff
}

// Scored reports whether the submission changed the combat state.
func (r PlayerResult) Scored() bool {
	return r.Outcome == OutcomeScored
}

// Fatal reports whether the session can no longer continue.
func (r PlayerResult) Fatal() bool {
	return r.Outcome == OutcomeDisconnected || r.Outcome == OutcomeStopped
}
