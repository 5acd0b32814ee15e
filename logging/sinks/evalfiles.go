package sinks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/multierr"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
)

// EvaluationFiles appends one JSON line per scored submission to
// <dir>/<team>_<players>_logs.json. Every other event is ignored.
type EvaluationFiles struct {
	dir   string
	mu    sync.Mutex
	files map[string]*os.File
}

// ResponseRecord is one line of an evaluation file.
type ResponseRecord struct {
	ID                string  `json:"id"`
	Timestamp         float64 `json:"timestamp"`
	ResponseTime      float64 `json:"response_time"`
	PlayerID          int     `json:"player_id"`
	CorrectAction     string  `json:"correct_action"`
	PredictedAction   string  `json:"predicted_action"`
	ActionMatched     int     `json:"action_matched"`
	GameStateReceived any     `json:"game_state_received"`
	GameStateExpected any     `json:"game_state_expected"`
}

func NewEvaluationFiles(cfg logging.EvaluationConfig) (*EvaluationFiles, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = "evaluation_logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create evaluation log directory: %w", err)
	}
	return &EvaluationFiles{dir: dir, files: make(map[string]*os.File)}, nil
}

// Path returns the file a team's records are appended to.
func (s *EvaluationFiles) Path(team string, players int) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s_%d_logs.json", sanitizeName(team), players))
}

func (s *EvaluationFiles) Write(event logging.Event) error {
	if event.Type != evaluation.EventPlayerResponse {
		return nil
	}
	payload, ok := event.Payload.(evaluation.PlayerResponsePayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}
	team := event.ExtraString(logging.FieldTeam)
	if team == "" {
		return errors.New("player response without team field")
	}
	players, _ := event.Extra[logging.FieldPlayers].(int)

	record := ResponseRecord{
		ID:                event.ExtraString(logging.FieldRun),
		Timestamp:         float64(event.Time.UnixNano()) / 1e9,
		ResponseTime:      payload.ResponseTime,
		PlayerID:          payload.PlayerID,
		CorrectAction:     payload.CorrectAction,
		PredictedAction:   payload.PredictedAction,
		ActionMatched:     payload.ActionMatched,
		GameStateReceived: payload.GameStateReceived,
		GameStateExpected: payload.GameStateExpected,
	}
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.open(s.Path(team, players))
	if err != nil {
		return err
	}
	_, err = f.Write(append(line, '\n'))
	return err
}

func (s *EvaluationFiles) open(path string) (*os.File, error) {
	if f, ok := s.files[path]; ok {
		return f, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open evaluation log: %w", err)
	}
	s.files[path] = f
	return f, nil
}

func (s *EvaluationFiles) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var err error
	for path, f := range s.files {
		err = multierr.Append(err, f.Close())
		delete(s.files, path)
	}
	return err
}

func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, name)
}
