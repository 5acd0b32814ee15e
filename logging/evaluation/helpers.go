package evaluation

import (
	"context"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
)

const (
	// EventPlayerResponse is emitted once per scored submission.
	EventPlayerResponse logging.EventType = "evaluation.player_response"
	// EventRoundTimeout is emitted when a round runs out of read budget.
	EventRoundTimeout logging.EventType = "evaluation.round_timeout"
	// EventSubmissionRejected is emitted for undecodable, duplicate or invalid submissions.
	EventSubmissionRejected logging.EventType = "evaluation.submission_rejected"
	// EventRoundAdvanced is emitted when the scenario cursor moves on.
	EventRoundAdvanced logging.EventType = "evaluation.round_advanced"
	// EventSummary is emitted once when a team's evaluation ends.
	EventSummary logging.EventType = "evaluation.summary"
)

// PlayerResponsePayload is the append-only result record of one submission.
type PlayerResponsePayload struct {
	ResponseTime      float64         `json:"response_time"`
	PlayerID          int             `json:"player_id"`
	CorrectAction     string          `json:"correct_action"`
	PredictedAction   string          `json:"predicted_action"`
	ActionMatched     int             `json:"action_matched"`
	GameStateReceived combat.Reported `json:"game_state_received"`
	GameStateExpected combat.Snapshot `json:"game_state_expected"`
}

// RoundTimeoutPayload captures how many submissions a round was missing.
type RoundTimeoutPayload struct {
	Label    string `json:"label"`
	Received int    `json:"received"`
	Expected int    `json:"expected"`
}

// SubmissionRejectedPayload describes a discarded submission.
type SubmissionRejectedPayload struct {
	Reason   string `json:"reason"`
	PlayerID int    `json:"player_id,omitempty"`
}

// RoundAdvancedPayload captures the cursor after a round.
type RoundAdvancedPayload struct {
	Label   string `json:"label"`
	Running bool   `json:"running"`
}

// SummaryPayload captures the final score of one action class.
type SummaryPayload struct {
	Class        string `json:"class"`
	Matched      int    `json:"matched"`
	Total        int    `json:"total"`
	MeanResponse string `json:"mean_response"`
	Median       string `json:"median_response"`
}

// PlayerResponse publishes a scored submission. It never blocks scoring.
func PlayerResponse(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload PlayerResponsePayload, extra map[string]any) {
	publish(ctx, pub, EventPlayerResponse, logging.SeverityInfo, round, actor, payload, extra)
}

// RoundTimeout publishes a warning for a round that ran out of time.
func RoundTimeout(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload RoundTimeoutPayload, extra map[string]any) {
	publish(ctx, pub, EventRoundTimeout, logging.SeverityWarn, round, actor, payload, extra)
}

// SubmissionRejected publishes a warning for a discarded submission.
func SubmissionRejected(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload SubmissionRejectedPayload, extra map[string]any) {
	publish(ctx, pub, EventSubmissionRejected, logging.SeverityWarn, round, actor, payload, extra)
}

// RoundAdvanced publishes a debug event when the scenario cursor moves.
func RoundAdvanced(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload RoundAdvancedPayload, extra map[string]any) {
	publish(ctx, pub, EventRoundAdvanced, logging.SeverityDebug, round, actor, payload, extra)
}

// Summary publishes the final score of one action class.
func Summary(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload SummaryPayload, extra map[string]any) {
	publish(ctx, pub, EventSummary, logging.SeverityInfo, 0, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, round uint64, actor logging.EntityRef, payload any, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Round:    round,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryEvaluation,
		Payload:  payload,
		Extra:    extra,
	})
}
