package network

import (
	"context"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
)

const (
	// EventReadTimeout is emitted when a framed read exhausts its budget.
	EventReadTimeout logging.EventType = "network.read_timeout"
	// EventPeerDisconnected is emitted when the client closes the stream.
	EventPeerDisconnected logging.EventType = "network.peer_disconnected"
	// EventSendFailed is emitted when the authoritative state cannot be written.
	EventSendFailed logging.EventType = "network.send_failed"
	// EventMalformedFrame is emitted when a length prefix cannot be parsed.
	EventMalformedFrame logging.EventType = "network.malformed_frame"
)

// ErrorPayload carries the transport error text.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ReadTimeout publishes a debug event for an expired read.
func ReadTimeout(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload ErrorPayload, extra map[string]any) {
	publish(ctx, pub, EventReadTimeout, logging.SeverityDebug, round, actor, payload, extra)
}

// PeerDisconnected publishes a warning when the client goes away.
func PeerDisconnected(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload ErrorPayload, extra map[string]any) {
	publish(ctx, pub, EventPeerDisconnected, logging.SeverityWarn, round, actor, payload, extra)
}

// SendFailed publishes an error when an outbound frame cannot be written.
func SendFailed(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload ErrorPayload, extra map[string]any) {
	publish(ctx, pub, EventSendFailed, logging.SeverityError, round, actor, payload, extra)
}

// MalformedFrame publishes a warning for an unparsable frame header.
func MalformedFrame(ctx context.Context, pub logging.Publisher, round uint64, actor logging.EntityRef, payload ErrorPayload, extra map[string]any) {
	publish(ctx, pub, EventMalformedFrame, logging.SeverityWarn, round, actor, payload, extra)
}

func publish(ctx context.Context, pub logging.Publisher, typ logging.EventType, severity logging.Severity, round uint64, actor logging.EntityRef, payload ErrorPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	pub.Publish(ctx, logging.Event{
		Type:     typ,
		Round:    round,
		Actor:    actor,
		Severity: severity,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	})
}
