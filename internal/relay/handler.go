package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/clock"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/session"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
)

// ErrVerificationFailed is returned when the evaluation client fails the
// encrypted handshake.
var ErrVerificationFailed = errors.New("verification failed")

const (
	duplicateText = "Connection denied: Duplicate connection to eval_server"
	nextText      = "next"
	writeWait     = 10 * time.Second
)

// Config wires a Handler to the shared registry and sinks.
type Config struct {
	Registry *session.Registry
	// SessionHost is the interface per-team TCP listeners bind to.
	SessionHost string
	ReadTimeout time.Duration
	// Seed is the root scenario seed. Empty means a fresh seed per session.
	Seed string

	Clock     clock.Clock
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// BaseContext ends every relay when cancelled, including hijacked
	// connections the HTTP server no longer tracks.
	BaseContext context.Context
	NewRunID    func() string
}

// Handler drives one evaluation per viewer websocket.
type Handler struct {
	cfg      Config
	registry *session.Registry
	logger   telemetry.Logger
	pub      logging.Publisher
	upgrader websocket.Upgrader
}

func NewHandler(cfg Config) *Handler {
	if cfg.Registry == nil {
		cfg.Registry = session.NewRegistry()
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = session.DefaultReadTimeout
	}
	if cfg.NewRunID == nil {
		cfg.NewRunID = uuid.NewString
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}

	return &Handler{
		cfg:      cfg,
		registry: cfg.Registry,
		logger:   telemetry.Or(cfg.Logger),
		pub:      pub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// Registry returns the registry sessions are tracked in.
func (h *Handler) Registry() *session.Registry {
	return h.registry
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	if h.cfg.BaseContext != nil {
		stop := context.AfterFunc(h.cfg.BaseContext, cancel)
		defer stop()
	}
	h.Serve(ctx, conn)
}

// Serve runs the relay on an upgraded connection until the scenario ends or
// either peer goes away.
func (h *Handler) Serve(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	_, data, err := conn.ReadMessage()
	if err != nil {
		h.logger.Printf("waiting for handshake: %v", err)
		return
	}
	hs, err := ParseHandshake(data)
	if err != nil {
		h.logger.Printf("handshake data loading failed: %v", err)
		return
	}

	v := &viewer{conn: conn}
	s, err := h.open(ctx, v, hs)
	if err != nil {
		h.logger.Printf("[%s] session not opened: %v", hs.GroupName, err)
		return
	}
	defer func() {
		h.registry.Remove(s)
		s.Stop()
	}()
	h.evaluate(ctx, v, s)
}

// open creates the team session, waits for its evaluation client and
// verifies it. The returned session is registered.
func (h *Handler) open(ctx context.Context, v *viewer, hs Handshake) (*session.Session, error) {
	team := hs.GroupName
	if h.registry.Contains(team) {
		v.send(newMessage(TypeError, duplicateText))
		return nil, session.ErrDuplicateTeam
	}

	seed := h.cfg.Seed
	if seed == "" {
		seed = uuid.NewString()
	}
	s, err := session.New(session.Config{
		Team:          team,
		Secret:        hs.Password,
		Players:       int(hs.NumPlayer),
		HasVisualizer: hs.HasVisualizer(),
		Host:          h.cfg.SessionHost,
		ReadTimeout:   h.cfg.ReadTimeout,
		RunID:         h.cfg.NewRunID(),
		Seed:          seed,
		Clock:         h.cfg.Clock,
		Logger:        h.logger,
		Publisher:     h.pub,
	})
	if err != nil {
		v.send(newMessage(TypeError, "Connection denied: "+err.Error()))
		return nil, err
	}

	port := s.Port()
	v.send(newMessage(TypeInfo, "Welcome: "+team))
	v.send(newMessage(TypeInfo, separator))
	v.send(newMessage(TypeInfo, fmt.Sprintf("TCP server waiting for connection from eval_client on port number %d ", port)))
	v.send(newMessage(TypeNumMove, fmt.Sprintf("%s Port:%d", team, port)))

	if err := s.Accept(ctx); err != nil {
		s.Stop()
		return nil, err
	}
	// The viewer may have left while the listener was waiting.
	if err := v.ping(); err != nil {
		h.logger.Printf("[%s] terminated dangling TCP server: port_num=%d", team, port)
		s.Stop()
		return nil, err
	}
	if h.registry.Contains(team) {
		v.send(newMessage(TypeError, duplicateText))
		s.Stop()
		return nil, session.ErrDuplicateTeam
	}

	v.send(newMessage(TypeInfoY, "eval_client connected"))
	v.send(newMessage(TypeInfo, "Verifying Password"))
	ok, remaining := s.VerifyHandshake(ctx)
	switch {
	case ok:
		v.send(newMessage(TypeInfoY, "Successful"))
		v.send(newMessage(TypeInfo, separator))
		if err := h.registry.Register(s); err != nil {
			v.send(newMessage(TypeError, duplicateText))
			s.Stop()
			return nil, err
		}
		return s, nil
	case remaining <= 0:
		v.send(newMessage(TypeError, "Failed: Timeout"))
	default:
		v.send(newMessage(TypeError, "Failed"))
	}
	v.send(newMessage(TypeInfo, separator))
	s.Stop()
	return nil, ErrVerificationFailed
}

// evaluate runs rounds until the scenario is exhausted, then reports the
// per-class accuracy and response times.
func (h *Handler) evaluate(ctx context.Context, v *viewer, s *session.Session) {
	pub := logging.WithFields(h.pub, map[string]any{
		logging.FieldTeam:    s.Team(),
		logging.FieldPlayers: s.Players(),
		logging.FieldRun:     s.RunID(),
	})
	actor := logging.TeamRef(s.Team())
	gun := newTally(ClassGun, s.GunActionTotal())
	ai := newTally(ClassAI, s.AIActionTotal())

	for s.Running() && ctx.Err() == nil {
		p1, p2 := s.CurrentPositions()
		v.send(positionMessage(p1, p2))

		next := v.next()

		label := s.CurrentRoundLabel()
		v.send(newMessage(TypeNumMove, label))
		a1, a2 := s.CurrentActions()
		v.send(actionMessage(a1, a2))

		if !next || v.failed() {
			break
		}
		v.send(newMessage(TypeInfo, separator))

		deadline := s.RoundDeadline()
		processed := session.NoPlayer
		received, timedOut := 0, false
		for i, n := 0, s.Players(); i < n; i++ {
			res := s.HandleOnePlayer(ctx, processed, deadline)
			processed = res.PlayerID

			if res.Match == session.Mismatched {
				v.send(newMessage(TypeInfoY, "Action received: "+res.Action))
			}
			if res.Match == session.MatchError {
				v.send(newMessage(TypeError, res.Message))
				timedOut = timedOut || res.Outcome == session.OutcomeTimeout
				if res.Fatal() {
					break
				}
				continue
			}

			received++
			if res.Match == session.Matched {
				if res.Action == scenario.ActionShoot.String() {
					gun.record(res.ResponseTime)
				} else {
					ai.record(res.ResponseTime)
				}
			}
			v.send(actionMatchMessage(res.Match, res.PlayerID, res.Message))
			if err := s.SendAuthoritativeState(ctx); err != nil {
				h.logger.Printf("[%s] %v", s.Team(), err)
			}
		}
		if timedOut {
			evaluation.RoundTimeout(ctx, pub, s.Round(), actor, evaluation.RoundTimeoutPayload{
				Label:    label,
				Received: received,
				Expected: s.Players(),
			}, nil)
		}
		s.AdvanceRound(ctx)
	}

	v.send(newMessage(TypeNumMove, "Eval Terminated"))
	v.send(newMessage(TypeInfoY, "------------------- Stat -------------------"))
	for _, t := range []*tally{gun, ai} {
		text, payload := t.summary(s.ReadTimeout())
		v.send(newMessage(TypeInfo, text))
		evaluation.Summary(ctx, pub, actor, payload, nil)
	}
}

// viewer writes relay messages to the browser. The first write failure is
// remembered so the round loop can stop.
type viewer struct {
	conn *websocket.Conn
	err  error
}

func (v *viewer) send(msg Message) {
	if v.err != nil {
		return
	}
	data, err := json.Marshal(msg)
	if err != nil {
		v.err = err
		return
	}
	if err := v.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		v.err = err
		return
	}
	v.err = v.conn.WriteMessage(websocket.TextMessage, data)
}

func (v *viewer) ping() error {
	if v.err != nil {
		return v.err
	}
	return v.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// next blocks until the viewer clicks next.
func (v *viewer) next() bool {
	if v.err != nil {
		return false
	}
	_, data, err := v.conn.ReadMessage()
	if err != nil {
		v.err = err
		return false
	}
	return string(data) == nextText
}

func (v *viewer) failed() bool {
	return v.err != nil
}
