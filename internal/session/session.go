package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"go.uber.org/multierr"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/clock"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/protocol"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/lifecycle"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/network"
)

// DefaultReadTimeout bounds the handshake, every round and every send.
const DefaultReadTimeout = 60 * time.Second

const handshakeText = "hello"

var (
	// ErrStopped is returned by operations on a stopped session.
	ErrStopped = errors.New("session stopped")
	// ErrInvalidPlayers is returned for player counts other than one or two.
	ErrInvalidPlayers = errors.New("player count must be 1 or 2")
)

// Config describes one team's session.
type Config struct {
	Team          string
	Secret        string
	Players       int
	HasVisualizer bool
	// Host is the interface the per-team listener binds to; the port is
	// always chosen by the kernel.
	Host        string
	ReadTimeout time.Duration
	RunID       string
	Seed        string

	Clock     clock.Clock
	Logger    telemetry.Logger
	Publisher logging.Publisher
	// Scenario replaces the generated move sequence. RNG seeds the
	// generator when Scenario is nil.
	Scenario *scenario.Scenario
	RNG      *rand.Rand
}

// Session owns the TCP peer of one team: the listener it announces, the
// decrypting reader, the scenario cursor and the authoritative combat state.
// Reads and writes happen on the caller's goroutine one at a time; Stop may
// be called from anywhere.
type Session struct {
	cfg      Config
	clock    clock.Clock
	logger   telemetry.Logger
	pub      logging.Publisher
	cipher   *protocol.Cipher
	listener net.Listener
	scenario *scenario.Scenario
	state    *combat.State

	mu      sync.Mutex
	conn    net.Conn
	running bool
	closed  bool
	reason  string
}

// New validates cfg and binds the session's listener.
func New(cfg Config) (*Session, error) {
	if cfg.Players < 1 || cfg.Players > 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidPlayers, cfg.Players)
	}
	cipher, err := protocol.NewCipher(cfg.Secret)
	if err != nil {
		return nil, err
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	sc := cfg.Scenario
	if sc == nil {
		rng := cfg.RNG
		if rng == nil {
			rng = scenario.NewRNG(cfg.Seed, cfg.Team)
		}
		sc = scenario.Generate(rng, cfg.Players)
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(cfg.Host, "0"))
	if err != nil {
		return nil, fmt.Errorf("bind session listener: %w", err)
	}

	fields := map[string]any{
		logging.FieldTeam:    cfg.Team,
		logging.FieldPlayers: cfg.Players,
	}
	if cfg.RunID != "" {
		fields[logging.FieldRun] = cfg.RunID
	}
	if cfg.Seed != "" {
		fields[logging.FieldSeed] = cfg.Seed
	}
	pub := cfg.Publisher
	if pub == nil {
		pub = logging.NopPublisher()
	}

	return &Session{
		cfg:      cfg,
		clock:    clock.Or(cfg.Clock),
		logger:   telemetry.WithPrefix(cfg.Logger, cfg.Team),
		pub:      logging.WithFields(pub, fields),
		cipher:   cipher,
		listener: listener,
		scenario: sc,
		state:    combat.NewState(),
		running:  true,
	}, nil
}

func (s *Session) Team() string        { return s.cfg.Team }
func (s *Session) Players() int        { return s.cfg.Players }
func (s *Session) HasVisualizer() bool { return s.cfg.HasVisualizer }
func (s *Session) RunID() string       { return s.cfg.RunID }

// ReadTimeout is the per-round read budget.
func (s *Session) ReadTimeout() time.Duration { return s.cfg.ReadTimeout }

// Port returns the TCP port the evaluation client must connect to.
func (s *Session) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	_, port, _ := net.SplitHostPort(s.listener.Addr().String())
	n, _ := strconv.Atoi(port)
	return n
}

// Addr returns the listener address.
func (s *Session) Addr() net.Addr {
	return s.listener.Addr()
}

// Running reports whether the session still expects rounds.
func (s *Session) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Round is the one-based number of the current round.
func (s *Session) Round() uint64 {
	return uint64(s.scenario.Index() + 1)
}

func (s *Session) actor() logging.EntityRef {
	return logging.TeamRef(s.cfg.Team)
}

// Accept waits for the single evaluation client. The listener is closed
// once a peer connects.
func (s *Session) Accept(ctx context.Context) error {
	if !s.Running() {
		return ErrStopped
	}
	type accepted struct {
		conn net.Conn
		err  error
	}
	ch := make(chan accepted, 1)
	go func() {
		conn, err := s.listener.Accept()
		ch <- accepted{conn: conn, err: err}
	}()

	var res accepted
	select {
	case res = <-ch:
	case <-ctx.Done():
		s.listener.Close()
		if res = <-ch; res.conn != nil {
			res.conn.Close()
		}
		return ctx.Err()
	}
	if res.err != nil {
		if !s.Running() {
			return ErrStopped
		}
		return fmt.Errorf("accept evaluation client: %w", res.err)
	}
	s.listener.Close()

	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		res.conn.Close()
		return ErrStopped
	}
	s.conn = res.conn
	s.mu.Unlock()

	s.logger.Printf("evaluation client connected from %s", res.conn.RemoteAddr())
	lifecycle.TeamConnected(ctx, s.pub, s.actor(), lifecycle.TeamConnectedPayload{
		Port:          s.Port(),
		Players:       s.cfg.Players,
		HasVisualizer: s.cfg.HasVisualizer,
		Remote:        res.conn.RemoteAddr().String(),
	}, nil)
	return nil
}

// RoundDeadline starts the read budget shared by every player of a round.
func (s *Session) RoundDeadline() clock.Deadline {
	return clock.After(s.clock, s.cfg.ReadTimeout)
}

// VerifyHandshake reads the first message, which must decrypt to "hello".
// It returns the outcome and the handshake budget left; a timed out
// handshake reports no budget left.
func (s *Session) VerifyHandshake(ctx context.Context) (bool, time.Duration) {
	deadline := clock.After(s.clock, s.cfg.ReadTimeout)
	text, err := s.readText(ctx, deadline)
	remaining := deadline.Remaining()

	payload := lifecycle.TeamVerifiedPayload{Success: err == nil && text == handshakeText}
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		remaining = 0
		payload.Reason = "timeout"
	case err != nil:
		payload.Reason = err.Error()
	case !payload.Success:
		payload.Reason = "unexpected handshake message"
	}
	payload.Remaining = max(remaining, 0).Seconds()
	if payload.Success {
		s.logger.Printf("handshake verified")
	} else {
		s.logger.Printf("handshake failed: %s", payload.Reason)
	}
	lifecycle.TeamVerified(ctx, s.pub, s.actor(), payload, nil)
	return payload.Success, remaining
}

// HandleOnePlayer reads and scores one submission within deadline. processed
// is the player id already scored this round, or NoPlayer.
func (s *Session) HandleOnePlayer(ctx context.Context, processed int, deadline clock.Deadline) PlayerResult {
	start := s.clock.Now()
	result := PlayerResult{Match: MatchError, PlayerID: NoPlayer}

	text, err := s.readText(ctx, deadline)
	if err != nil {
		return s.readFailure(ctx, result, deadline, err)
	}
	result.Remaining = deadline.Remaining()

	sub, err := protocol.DecodeSubmission(text)
	if err != nil {
		s.logger.Printf("handle player: %s: %v", decodeText, err)
		result.Outcome = OutcomeDecodeError
		result.Message = decodeText
		s.reject(ctx, NoPlayer, err.Error())
		return result
	}

	result.PlayerID = sub.PlayerID
	result.Action = sub.Action
	switch {
	case sub.PlayerID == processed:
		result.Outcome = OutcomeDuplicate
		result.Message = fmt.Sprintf("player_id %d received twice, discarding the packet", sub.PlayerID)
		s.reject(ctx, sub.PlayerID, "duplicate")
		return result
	case sub.PlayerID < 1 || sub.PlayerID > s.cfg.Players:
		result.Outcome = OutcomeInvalidPlayer
		result.Message = fmt.Sprintf("player_id %d INVALID, discarding the packet", sub.PlayerID)
		s.reject(ctx, sub.PlayerID, "invalid player id")
		return result
	}

	expected := s.scenario.ExpectedAction(sub.PlayerID)
	action := scenario.ParseAction(sub.Action)
	result.Match = Mismatched
	if action == expected {
		result.Match = Matched
	}

	p1, p2 := s.scenario.Positions()
	actorQuadrant, opponentQuadrant := p1, p2
	if sub.PlayerID == 2 {
		actorQuadrant, opponentQuadrant = p2, p1
	}
	s.state.Apply(sub.PlayerID, action, actorQuadrant, opponentQuadrant, s.cfg.HasVisualizer)

	diff, err := s.state.Diff(sub.GameState)
	if err != nil {
		result.Message = keyErrorText
	} else {
		result.Diff = diff
		result.Message = diffPrefix + diff.String()
	}
	result.Outcome = OutcomeScored
	result.ResponseTime = s.clock.Now().Sub(start)

	evaluation.PlayerResponse(ctx, s.pub, s.Round(), logging.PlayerRef(s.cfg.Team, sub.PlayerID), evaluation.PlayerResponsePayload{
		ResponseTime:      result.ResponseTime.Seconds(),
		PlayerID:          sub.PlayerID,
		CorrectAction:     expected.String(),
		PredictedAction:   sub.Action,
		ActionMatched:     result.Match,
		GameStateReceived: sub.GameState,
		GameStateExpected: s.state.Snapshot(),
	}, nil)
	return result
}

func (s *Session) readFailure(ctx context.Context, result PlayerResult, deadline clock.Deadline, err error) PlayerResult {
	result.Message = timeoutText
	result.Remaining = deadline.Remaining()
	switch {
	case errors.Is(err, protocol.ErrTimeout):
		result.Outcome = OutcomeTimeout
		result.Remaining = 0
		s.logger.Printf("timeout while receiving data")
		network.ReadTimeout(ctx, s.pub, s.Round(), s.actor(), network.ErrorPayload{Error: err.Error()}, nil)
	case errors.Is(err, protocol.ErrMalformedFrame):
		result.Outcome = OutcomeDecodeError
		result.Message = decodeText
		s.logger.Printf("malformed frame: %v", err)
		network.MalformedFrame(ctx, s.pub, s.Round(), s.actor(), network.ErrorPayload{Error: err.Error()}, nil)
	case errors.Is(err, protocol.ErrDecryption):
		result.Outcome = OutcomeDecodeError
		result.Message = decodeText
		s.logger.Printf("decrypt message: %v", err)
		s.reject(ctx, NoPlayer, err.Error())
	case errors.Is(err, ErrStopped), ctx.Err() != nil:
		result.Outcome = OutcomeStopped
	default:
		result.Outcome = OutcomeDisconnected
		s.logger.Printf("client disconnected: %v", err)
		network.PeerDisconnected(ctx, s.pub, s.Round(), s.actor(), network.ErrorPayload{Error: err.Error()}, nil)
		s.stop(ctx, "peer disconnected")
	}
	return result
}

func (s *Session) reject(ctx context.Context, playerID int, reason string) {
	payload := evaluation.SubmissionRejectedPayload{Reason: reason}
	if playerID != NoPlayer {
		payload.PlayerID = playerID
	}
	evaluation.SubmissionRejected(ctx, s.pub, s.Round(), s.actor(), payload, nil)
}

// readText reads one frame within deadline and decrypts it.
func (s *Session) readText(ctx context.Context, deadline clock.Deadline) (string, error) {
	conn := s.connection()
	if conn == nil {
		return "", ErrStopped
	}
	stopWatch := context.AfterFunc(ctx, func() {
		conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stopWatch()

	payload, err := protocol.ReadFrame(contextReader{ctx: ctx, Conn: conn}, deadline)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !s.Running() {
			return "", ErrStopped
		}
		return "", err
	}
	return s.cipher.Decrypt(payload)
}

// contextReader refuses to start a read once ctx is done.
type contextReader struct {
	ctx context.Context
	net.Conn
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.Conn.Read(p)
}

func (s *Session) connection() net.Conn {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return nil
	}
	return s.conn
}

// CurrentRoundLabel renders "<round> / <rounds>".
func (s *Session) CurrentRoundLabel() string {
	return s.scenario.Label()
}

// CurrentPositions returns the quadrants both players should be in.
func (s *Session) CurrentPositions() (scenario.Quadrant, scenario.Quadrant) {
	return s.scenario.Positions()
}

// CurrentActions returns the actions both players should perform.
func (s *Session) CurrentActions() (scenario.Action, scenario.Action) {
	return s.scenario.Actions()
}

// GunActionTotal is the number of gun actions in the scenario.
func (s *Session) GunActionTotal() int {
	return s.scenario.GunActions()
}

// AIActionTotal is the number of non-gun actions in the scenario.
func (s *Session) AIActionTotal() int {
	return s.scenario.AIActions()
}

// State returns a copy of the authoritative combat state.
func (s *Session) State() combat.Snapshot {
	return s.state.Snapshot()
}

// AdvanceRound moves the scenario cursor once per completed round. The
// session stops running after the last round.
func (s *Session) AdvanceRound(ctx context.Context) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	if !s.scenario.Advance() {
		s.running = false
		s.reason = "scenario exhausted"
	}
	running := s.running
	s.mu.Unlock()

	evaluation.RoundAdvanced(ctx, s.pub, s.Round(), s.actor(), evaluation.RoundAdvancedPayload{
		Label:   s.scenario.Label(),
		Running: running,
	}, nil)
}

// SendAuthoritativeState writes the current state as a plaintext frame. A
// write timeout is reported without ending the session; any other write
// failure stops it.
func (s *Session) SendAuthoritativeState(ctx context.Context) error {
	conn := s.connection()
	if conn == nil {
		return nil
	}
	frame, err := protocol.EncodeState(s.state.Snapshot())
	if err != nil {
		return err
	}
	if err := conn.SetWriteDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
		return s.sendFailed(ctx, err)
	}
	if _, err := conn.Write(frame); err != nil {
		return s.sendFailed(ctx, err)
	}
	return nil
}

func (s *Session) sendFailed(ctx context.Context, err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		s.logger.Printf("send game state: timeout while sending data")
		network.SendFailed(ctx, s.pub, s.Round(), s.actor(), network.ErrorPayload{Error: err.Error()}, nil)
		return fmt.Errorf("%w: %v", protocol.ErrTimeout, err)
	}
	s.logger.Printf("send game state: connection terminated: %v", err)
	network.SendFailed(ctx, s.pub, s.Round(), s.actor(), network.ErrorPayload{Error: err.Error()}, nil)
	s.stop(ctx, "send failed")
	return fmt.Errorf("%w: %v", protocol.ErrDisconnected, err)
}

// Stop closes the connection and the listener. It is safe to call more
// than once.
func (s *Session) Stop() error {
	return s.stop(context.Background(), "stopped")
}

func (s *Session) stop(ctx context.Context, reason string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.running || s.reason == "" {
		s.reason = reason
	}
	s.running = false
	conn := s.conn
	s.conn = nil
	reason = s.reason
	s.mu.Unlock()

	var err error
	if conn != nil {
		err = multierr.Append(err, conn.Close())
	}
	if closeErr := s.listener.Close(); closeErr != nil && !errors.Is(closeErr, net.ErrClosed) {
		err = multierr.Append(err, closeErr)
	}
	s.logger.Printf("session closed: %s", reason)
	lifecycle.TeamDisconnected(ctx, s.pub, s.Round(), s.actor(), lifecycle.TeamDisconnectedPayload{Reason: reason}, nil)
	return err
}
