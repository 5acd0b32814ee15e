package session

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/clock"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/protocol"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/scenario"
	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/telemetry"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
)

const testSecret = "PLSPLSPLSPLSWORK"

type recorder struct {
	mu     sync.Mutex
	events []logging.Event
}

func (r *recorder) Publish(_ context.Context, event logging.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recorder) ofType(typ logging.EventType) []logging.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logging.Event
	for _, event := range r.events {
		if event.Type == typ {
			out = append(out, event)
		}
	}
	return out
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	cipher *protocol.Cipher
}

func (c *testClient) send(text string) {
	c.t.Helper()
	frame, err := c.cipher.EncryptFrame(text)
	if err != nil {
		c.t.Fatalf("encrypt: %v", err)
	}
	if _, err := c.conn.Write(frame); err != nil {
		c.t.Fatalf("write: %v", err)
	}
}

func (c *testClient) submit(playerID int, action string, reported combat.Reported) {
	c.t.Helper()
	data, err := json.Marshal(map[string]any{
		"player_id":  playerID,
		"action":     action,
		"game_state": reported,
	})
	if err != nil {
		c.t.Fatalf("marshal: %v", err)
	}
	c.send(string(data))
}

func (c *testClient) readState() combat.Snapshot {
	c.t.Helper()
	payload, err := protocol.ReadFrame(c.conn, clock.After(nil, 2*time.Second))
	if err != nil {
		c.t.Fatalf("read state: %v", err)
	}
	var snapshot combat.Snapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		c.t.Fatalf("decode state: %v", err)
	}
	return snapshot
}

func newTestSession(t *testing.T, cfg Config) (*Session, *testClient, *recorder) {
	t.Helper()
	rec := &recorder{}
	if cfg.Team == "" {
		cfg.Team = "B01"
	}
	if cfg.Secret == "" {
		cfg.Secret = testSecret
	}
	if cfg.Players == 0 {
		cfg.Players = 2
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 2 * time.Second
	}
	cfg.Host = "127.0.0.1"
	cfg.Logger = telemetry.Discard
	cfg.Publisher = rec

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(func() { s.Stop() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	accepted := make(chan error, 1)
	go func() { accepted <- s.Accept(ctx) }()

	conn, err := net.Dial("tcp", s.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := <-accepted; err != nil {
		t.Fatalf("accept: %v", err)
	}
	cipher, err := protocol.NewCipher(cfg.Secret)
	if err != nil {
		t.Fatalf("cipher: %v", err)
	}
	return s, &testClient{t: t, conn: conn, cipher: cipher}, rec
}

func fixedScenario() *scenario.Scenario {
	return scenario.FromMoves([]scenario.Move{
		{Action1: scenario.ActionShoot, Position1: 1, Action2: scenario.ActionBomb, Position2: 3},
		{Action1: scenario.ActionHulk, Position1: 2, Action2: scenario.ActionShield, Position2: 4},
		{Action1: scenario.ActionLogout, Position1: 1, Action2: scenario.ActionLogout, Position2: 3},
	})
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	if _, err := New(Config{Team: "B01", Secret: "short", Players: 2}); !errors.Is(err, protocol.ErrInvalidKeySize) {
		t.Fatalf("expected key size error, got %v", err)
	}
	if _, err := New(Config{Team: "B01", Secret: testSecret, Players: 3}); !errors.Is(err, ErrInvalidPlayers) {
		t.Fatalf("expected player count error, got %v", err)
	}
}

func TestVerifyHandshake(t *testing.T) {
	s, client, rec := newTestSession(t, Config{})
	client.send("hello")
	ok, remaining := s.VerifyHandshake(context.Background())
	if !ok {
		t.Fatalf("expected handshake to succeed")
	}
	if remaining <= 0 || remaining > s.ReadTimeout() {
		t.Fatalf("unexpected remaining budget %v", remaining)
	}
	if len(rec.ofType("lifecycle.team_verified")) != 1 {
		t.Fatalf("expected a verification event")
	}
}

func TestVerifyHandshakeRejectsWrongTextAndTimeout(t *testing.T) {
	s, client, _ := newTestSession(t, Config{})
	client.send("hullo")
	if ok, remaining := s.VerifyHandshake(context.Background()); ok || remaining <= 0 {
		t.Fatalf("expected a failed handshake with budget left, got %v %v", ok, remaining)
	}

	s, _, _ = newTestSession(t, Config{ReadTimeout: 50 * time.Millisecond})
	if ok, remaining := s.VerifyHandshake(context.Background()); ok || remaining != 0 {
		t.Fatalf("expected a timed out handshake, got %v %v", ok, remaining)
	}
}

func TestShootMatchesAndReturnsEmptyDiff(t *testing.T) {
	s, client, rec := newTestSession(t, Config{Scenario: fixedScenario(), HasVisualizer: true})

	expected := combat.NewState()
	expected.Apply(1, scenario.ActionShoot, 1, 3, true)
	client.submit(1, "gun", expected.Snapshot().Reported())

	result := s.HandleOnePlayer(context.Background(), NoPlayer, s.RoundDeadline())
	if result.Outcome != OutcomeScored || result.Match != Matched || result.PlayerID != 1 {
		t.Fatalf("unexpected result %+v", result)
	}
	if !result.Diff.Empty() {
		t.Fatalf("expected an empty diff, got %s", result.Diff)
	}
	if result.Message != `Game state difference : {"p1":{},"p2":{}}` {
		t.Fatalf("unexpected message %q", result.Message)
	}
	state := s.State()
	if state.P2.HP != combat.MaxHP-combat.BulletDamage || state.P1.Bullets != combat.MaxBullets-1 {
		t.Fatalf("unexpected state %+v", state)
	}

	if err := s.SendAuthoritativeState(context.Background()); err != nil {
		t.Fatalf("send state: %v", err)
	}
	if got := client.readState(); got != state {
		t.Fatalf("expected client to receive %+v, got %+v", state, got)
	}

	responses := rec.ofType(evaluation.EventPlayerResponse)
	if len(responses) != 1 {
		t.Fatalf("expected one response record, got %d", len(responses))
	}
	payload := responses[0].Payload.(evaluation.PlayerResponsePayload)
	if payload.CorrectAction != "gun" || payload.PredictedAction != "gun" || payload.ActionMatched != Matched {
		t.Fatalf("unexpected record %+v", payload)
	}
	if responses[0].ExtraString(logging.FieldTeam) != "B01" {
		t.Fatalf("expected session fields on the record, got %v", responses[0].Extra)
	}
}

func TestExtraReportedKeysAreIgnored(t *testing.T) {
	s, client, _ := newTestSession(t, Config{Scenario: fixedScenario(), HasVisualizer: true})

	expected := combat.NewState()
	expected.Apply(1, scenario.ActionShoot, 1, 3, true)
	reported := expected.Snapshot().Reported()
	var p1 map[string]any
	if err := json.Unmarshal(reported["p1"], &p1); err != nil {
		t.Fatalf("decode p1: %v", err)
	}
	p1["name"] = "alice"
	data, err := json.Marshal(map[string]any{
		"player_id": 1.0,
		"action":    "gun",
		"game_state": map[string]any{
			"round": 3,
			"p1":    p1,
			"p2":    reported["p2"],
		},
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	client.send(string(data))

	result := s.HandleOnePlayer(context.Background(), NoPlayer, s.RoundDeadline())
	if result.Outcome != OutcomeScored || result.Match != Matched || result.PlayerID != 1 {
		t.Fatalf("expected the submission to be scored, got %+v", result)
	}
	if !result.Diff.Empty() {
		t.Fatalf("expected an empty diff, got %s", result.Diff)
	}
	if state := s.State(); state != expected.Snapshot() {
		t.Fatalf("expected the shot to be applied, got %+v", state)
	}
}

func TestDuplicateAndInvalidPlayersAreDiscarded(t *testing.T) {
	s, client, _ := newTestSession(t, Config{Scenario: fixedScenario(), HasVisualizer: true})
	reported := combat.NewState().Snapshot().Reported()
	deadline := s.RoundDeadline()

	client.submit(1, "gun", reported)
	first := s.HandleOnePlayer(context.Background(), NoPlayer, deadline)
	if first.Outcome != OutcomeScored {
		t.Fatalf("expected first submission to score, got %+v", first)
	}
	if first.Match != Matched || first.Diff.Empty() {
		t.Fatalf("expected a match with a stale reported state, got %+v", first)
	}
	before := s.State()

	client.submit(1, "gun", reported)
	dup := s.HandleOnePlayer(context.Background(), first.PlayerID, deadline)
	if dup.Outcome != OutcomeDuplicate || dup.Match != MatchError {
		t.Fatalf("expected duplicate, got %+v", dup)
	}
	if dup.Message != "player_id 1 received twice, discarding the packet" {
		t.Fatalf("unexpected message %q", dup.Message)
	}
	if s.State() != before {
		t.Fatalf("duplicate submission changed the state")
	}

	client.submit(3, "gun", reported)
	invalid := s.HandleOnePlayer(context.Background(), first.PlayerID, deadline)
	if invalid.Outcome != OutcomeInvalidPlayer || invalid.Message != "player_id 3 INVALID, discarding the packet" {
		t.Fatalf("expected invalid player, got %+v", invalid)
	}
	if s.State() != before {
		t.Fatalf("invalid submission changed the state")
	}
}

func TestMismatchDecodeAndKeyErrors(t *testing.T) {
	s, client, _ := newTestSession(t, Config{Scenario: fixedScenario(), HasVisualizer: true})
	deadline := s.RoundDeadline()

	client.send("not json")
	if res := s.HandleOnePlayer(context.Background(), NoPlayer, deadline); res.Outcome != OutcomeDecodeError || res.Message != "Decoding JSON has failed" {
		t.Fatalf("expected decode error, got %+v", res)
	}

	client.submit(2, "reload", combat.Reported{"p1": json.RawMessage(`{}`)})
	res := s.HandleOnePlayer(context.Background(), NoPlayer, deadline)
	if res.Outcome != OutcomeScored || res.Match != Mismatched {
		t.Fatalf("expected a scored mismatch, got %+v", res)
	}
	if res.Message != "Key error in the received Json" {
		t.Fatalf("expected key error message, got %q", res.Message)
	}

	if _, err := client.conn.Write([]byte("12_not-base64!!")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if res := s.HandleOnePlayer(context.Background(), NoPlayer, deadline); res.Outcome != OutcomeDecodeError {
		t.Fatalf("expected undecryptable payload to be a decode error, got %+v", res)
	}
	if !s.Running() {
		t.Fatalf("decode errors must not stop the session")
	}
}

func TestRoundBudgetIsSharedBetweenPlayers(t *testing.T) {
	s, client, _ := newTestSession(t, Config{Scenario: fixedScenario(), ReadTimeout: 300 * time.Millisecond})
	deadline := s.RoundDeadline()

	go func() {
		time.Sleep(200 * time.Millisecond)
		client.submit(1, "gun", combat.NewState().Snapshot().Reported())
	}()
	first := s.HandleOnePlayer(context.Background(), NoPlayer, deadline)
	if first.Outcome != OutcomeScored {
		t.Fatalf("expected first player to be scored, got %+v", first)
	}
	if first.Remaining >= 150*time.Millisecond {
		t.Fatalf("expected the wait to be charged to the round budget, got %v left", first.Remaining)
	}

	second := s.HandleOnePlayer(context.Background(), first.PlayerID, deadline)
	if second.Outcome != OutcomeTimeout || second.Message != "Timeout" || second.Remaining != 0 {
		t.Fatalf("expected second player to inherit the spent budget, got %+v", second)
	}
	if !s.Running() {
		t.Fatalf("a timeout must not stop the session")
	}
}

func TestDisconnectStopsSession(t *testing.T) {
	s, client, rec := newTestSession(t, Config{Scenario: fixedScenario()})
	client.conn.Close()

	res := s.HandleOnePlayer(context.Background(), NoPlayer, s.RoundDeadline())
	if res.Outcome != OutcomeDisconnected || !res.Fatal() {
		t.Fatalf("expected disconnect, got %+v", res)
	}
	if s.Running() {
		t.Fatalf("expected session to stop")
	}
	if len(rec.ofType("lifecycle.team_disconnected")) != 1 {
		t.Fatalf("expected a disconnect event")
	}
	if res := s.HandleOnePlayer(context.Background(), NoPlayer, s.RoundDeadline()); res.Outcome != OutcomeStopped {
		t.Fatalf("expected stopped session to refuse reads, got %+v", res)
	}
}

func TestHandleOnePlayerHonoursCancellation(t *testing.T) {
	s, _, _ := newTestSession(t, Config{Scenario: fixedScenario(), ReadTimeout: 5 * time.Second})
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	started := time.Now()
	res := s.HandleOnePlayer(ctx, NoPlayer, s.RoundDeadline())
	if res.Outcome != OutcomeStopped {
		t.Fatalf("expected cancellation to stop the read, got %+v", res)
	}
	if time.Since(started) > 2*time.Second {
		t.Fatalf("cancellation took too long")
	}
}

func TestAdvanceRoundStopsAfterLastMove(t *testing.T) {
	s, _, _ := newTestSession(t, Config{Scenario: fixedScenario()})
	if s.CurrentRoundLabel() != "1 / 3" {
		t.Fatalf("unexpected label %q", s.CurrentRoundLabel())
	}
	p1, p2 := s.CurrentPositions()
	a1, a2 := s.CurrentActions()
	if p1 != 1 || p2 != 3 || a1 != scenario.ActionShoot || a2 != scenario.ActionBomb {
		t.Fatalf("unexpected first round %d %d %s %s", p1, p2, a1, a2)
	}
	if s.GunActionTotal() != 1 || s.AIActionTotal() != 5 {
		t.Fatalf("unexpected totals gun=%d ai=%d", s.GunActionTotal(), s.AIActionTotal())
	}

	s.AdvanceRound(context.Background())
	s.AdvanceRound(context.Background())
	if !s.Running() || s.CurrentRoundLabel() != "3 / 3" {
		t.Fatalf("expected to be on the last round, got %q", s.CurrentRoundLabel())
	}
	s.AdvanceRound(context.Background())
	if s.Running() {
		t.Fatalf("expected session to stop after the last round")
	}
	if s.CurrentRoundLabel() != "3 / 3" {
		t.Fatalf("cursor must not move past the last move")
	}
	if err := s.SendAuthoritativeState(context.Background()); err != nil {
		t.Fatalf("send after exhaustion should be a no-op, got %v", err)
	}
}

func TestAcceptHonoursCancellation(t *testing.T) {
	s, err := New(Config{Team: "B02", Secret: testSecret, Players: 1, Host: "127.0.0.1", Logger: telemetry.Discard})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	defer s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Accept(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected accept to give up, got %v", err)
	}
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	newSession := func(team string) *Session {
		s, err := New(Config{Team: team, Secret: testSecret, Players: 1, Host: "127.0.0.1", Logger: telemetry.Discard})
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		return s
	}
	b02 := newSession("B02")
	b01 := newSession("B01")
	if err := registry.Register(b02); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := registry.Register(b01); err != nil {
		t.Fatalf("register: %v", err)
	}

	dup := newSession("B01")
	defer dup.Stop()
	if err := registry.Register(dup); !errors.Is(err, ErrDuplicateTeam) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if registry.Remove(dup) {
		t.Fatalf("a different session must not remove the registered one")
	}
	if !registry.Contains("B01") || registry.Len() != 2 {
		t.Fatalf("expected both teams to stay registered")
	}
	if got := registry.Teams(); len(got) != 2 || got[0] != "B01" || got[1] != "B02" {
		t.Fatalf("unexpected teams %v", got)
	}

	if !registry.Remove(b01) || registry.Contains("B01") {
		t.Fatalf("expected B01 to be removed")
	}
	b01.Stop()

	if err := registry.StopAll(); err != nil {
		t.Fatalf("stop all: %v", err)
	}
	if registry.Len() != 0 || b02.Running() {
		t.Fatalf("expected every session stopped and removed")
	}
}
