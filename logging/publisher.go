package logging

import (
	"context"
	"strconv"
	"time"
)

type EventType string

type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarn
	SeverityError
)

// ParseSeverity maps a configuration string onto a severity.
func ParseSeverity(value string) (Severity, bool) {
	switch value {
	case "debug":
		return SeverityDebug, true
	case "info":
		return SeverityInfo, true
	case "warn", "warning":
		return SeverityWarn, true
	case "error":
		return SeverityError, true
	default:
		return SeverityInfo, false
	}
}

func (s Severity) String() string {
	switch s {
	case SeverityDebug:
		return "debug"
	case SeverityInfo:
		return "info"
	case SeverityWarn:
		return "warn"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

type EntityKind string

const (
	EntityKindUnknown EntityKind = "unknown"
	EntityKindTeam    EntityKind = "team"
	EntityKindPlayer  EntityKind = "player"
	EntityKindViewer  EntityKind = "viewer"
	EntityKindServer  EntityKind = "server"
)

// Event is one structured record routed to every sink. Round is the
// one-based scenario round the event belongs to, or zero outside play.
type Event struct {
	Type     EventType      `json:"type"`
	Round    uint64         `json:"round"`
	Time     time.Time      `json:"time"`
	Actor    EntityRef      `json:"actor"`
	Targets  []EntityRef    `json:"targets,omitempty"`
	Severity Severity       `json:"severity"`
	Category string         `json:"category,omitempty"`
	Payload  any            `json:"payload,omitempty"`
	Extra    map[string]any `json:"extra,omitempty"`
}

type EntityRef struct {
	ID   string     `json:"id"`
	Kind EntityKind `json:"kind"`
}

// TeamRef identifies a team session.
func TeamRef(team string) EntityRef {
	return EntityRef{ID: team, Kind: EntityKindTeam}
}

// PlayerRef identifies one player of a team.
func PlayerRef(team string, playerID int) EntityRef {
	return EntityRef{ID: team + "/" + strconv.Itoa(playerID), Kind: EntityKindPlayer}
}

const (
	CategoryEvaluation = "evaluation"
	CategoryLifecycle  = "lifecycle"
	CategoryNetwork    = "network"
	CategorySystem     = "system"
)

// Well-known Extra keys attached per session with WithFields.
const (
	FieldTeam    = "team"
	FieldPlayers = "players"
	FieldRun     = "run"
	FieldSeed    = "seed"
)

type Publisher interface {
	Publish(ctx context.Context, event Event)
}

type PublisherFunc func(ctx context.Context, event Event)

func (f PublisherFunc) Publish(ctx context.Context, event Event) {
	if f == nil {
		return
	}
	f(ctx, event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, Event) {}

func NopPublisher() Publisher {
	return nopPublisher{}
}

type fieldPublisher struct {
	next   Publisher
	fields map[string]any
}

func (p *fieldPublisher) Publish(ctx context.Context, event Event) {
	if p.next == nil {
		return
	}
	p.next.Publish(ctx, mergeFields(event, p.fields))
}

func mergeFields(event Event, fields map[string]any) Event {
	if len(fields) == 0 {
		return event
	}
	event = cloneEvent(event)
	if event.Extra == nil {
		event.Extra = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if _, exists := event.Extra[k]; !exists {
			event.Extra[k] = v
		}
	}
	return event
}

func cloneEvent(event Event) Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}

// CloneEvent returns a copy of event whose slices and maps can be modified
// without affecting the original.
func CloneEvent(event Event) Event {
	return cloneEvent(event)
}

// WithFields decorates p so every event carries fields in Extra. Keys set on
// the event itself win.
func WithFields(p Publisher, fields map[string]any) Publisher {
	if p == nil {
		return NopPublisher()
	}
	if len(fields) == 0 {
		return p
	}
	copied := make(map[string]any, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &fieldPublisher{next: p, fields: copied}
}

func (e Event) WithExtra(key string, value any) Event {
	e = cloneEvent(e)
	if e.Extra == nil {
		e.Extra = make(map[string]any, 1)
	}
	e.Extra[key] = value
	return e
}

// ExtraString returns the string stored under key in Extra, if any.
func (e Event) ExtraString(key string) string {
	if e.Extra == nil {
		return ""
	}
	switch v := e.Extra[key].(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	default:
		return ""
	}
}
