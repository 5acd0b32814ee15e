package lifecycle

import (
	"context"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
)

const (
	// EventTeamConnected is emitted when a team's client connects to its session port.
	EventTeamConnected logging.EventType = "lifecycle.team_connected"
	// EventTeamVerified is emitted after the handshake check.
	EventTeamVerified logging.EventType = "lifecycle.team_verified"
	// EventTeamDisconnected is emitted when a session ends.
	EventTeamDisconnected logging.EventType = "lifecycle.team_disconnected"
)

// TeamConnectedPayload captures session setup metadata.
type TeamConnectedPayload struct {
	Port          int    `json:"port"`
	Players       int    `json:"players"`
	HasVisualizer bool   `json:"hasVisualizer"`
	Remote        string `json:"remote,omitempty"`
}

// TeamVerifiedPayload captures the handshake outcome.
type TeamVerifiedPayload struct {
	Success   bool    `json:"success"`
	Remaining float64 `json:"remainingSeconds"`
	Reason    string  `json:"reason,omitempty"`
}

// TeamDisconnectedPayload captures why a session ended.
type TeamDisconnectedPayload struct {
	Reason string `json:"reason"`
}

// TeamConnected publishes a connection event.
func TeamConnected(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload TeamConnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTeamConnected,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// TeamVerified publishes the handshake result; failures are warnings.
func TeamVerified(ctx context.Context, pub logging.Publisher, actor logging.EntityRef, payload TeamVerifiedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	severity := logging.SeverityInfo
	if !payload.Success {
		severity = logging.SeverityWarn
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTeamVerified,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}

// TeamDisconnected publishes a session teardown event.
func TeamDisconnected(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload TeamDisconnectedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     EventTeamDisconnected,
		Round:    round,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	})
}
