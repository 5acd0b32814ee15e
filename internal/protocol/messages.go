package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/woowenjun99/CG4002-Evaluation-Server/internal/combat"
)

var (
	// ErrDecode is returned when a submission is not valid JSON.
	ErrDecode = errors.New("decoding JSON has failed")
	// ErrMissingKey is returned when a submission lacks a required key.
	ErrMissingKey = errors.New("key error in the received json")
)

// Submission is one player's round report.
type Submission struct {
	PlayerID  int             `json:"player_id" jsonschema:"required,minimum=1,maximum=2,description=Player the action belongs to"`
	Action    string          `json:"action" jsonschema:"required,enum=gun,enum=shield,enum=bomb,enum=reload,enum=ironMan,enum=hulk,enum=captAmerica,enum=shangChi,enum=logout,description=Action the client detected"`
	GameState combat.Snapshot `json:"game_state" jsonschema:"required,description=State the client believes both players are in"`
}

// wireSubmission keeps every key optional so absent keys can be told apart
// from zero values.
type wireSubmission struct {
	PlayerID  *json.Number    `json:"player_id"`
	Action    *string         `json:"action"`
	GameState combat.Reported `json:"game_state"`
}

// Decoded is a parsed submission with the reported state kept in its raw
// numeric form for diffing.
type Decoded struct {
	PlayerID  int
	Action    string
	GameState combat.Reported
}

// DecodeSubmission parses a decrypted round submission.
func DecodeSubmission(text string) (Decoded, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var wire wireSubmission
	if err := dec.Decode(&wire); err != nil {
		return Decoded{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	switch {
	case wire.PlayerID == nil:
		return Decoded{}, fmt.Errorf("%w: player_id", ErrMissingKey)
	case wire.Action == nil:
		return Decoded{}, fmt.Errorf("%w: action", ErrMissingKey)
	case wire.GameState == nil:
		return Decoded{}, fmt.Errorf("%w: game_state", ErrMissingKey)
	}
	id, ok := integral(*wire.PlayerID)
	if !ok {
		return Decoded{}, fmt.Errorf("%w: player_id %q is not an integer", ErrDecode, wire.PlayerID.String())
	}
	return Decoded{PlayerID: id, Action: *wire.Action, GameState: wire.GameState}, nil
}

// integral accepts 1 as well as 1.0 or 1e0.
func integral(n json.Number) (int, bool) {
	if id, err := n.Int64(); err == nil {
		return int(id), true
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}

// EncodeState renders the authoritative state as an outbound plaintext frame.
func EncodeState(snapshot combat.Snapshot) ([]byte, error) {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return nil, fmt.Errorf("marshal state: %w", err)
	}
	return EncodeFrame(data), nil
}
