package sinks

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/woowenjun99/CG4002-Evaluation-Server/logging"
	"github.com/woowenjun99/CG4002-Evaluation-Server/logging/evaluation"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLite stores scored submissions and final summaries in a SQLite file.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens path, enables WAL and applies pending migrations.
func NewSQLite(ctx context.Context, cfg logging.SQLiteConfig) (*SQLite, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite sink requires a path")
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, fsys)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

func (s *SQLite) Write(event logging.Event) error {
	switch payload := event.Payload.(type) {
	case evaluation.PlayerResponsePayload:
		if event.Type != evaluation.EventPlayerResponse {
			return nil
		}
		return s.saveResponse(event, payload)
	case evaluation.SummaryPayload:
		if event.Type != evaluation.EventSummary {
			return nil
		}
		return s.saveSummary(event, payload)
	default:
		return nil
	}
}

func (s *SQLite) saveResponse(event logging.Event, payload evaluation.PlayerResponsePayload) error {
	received, err := json.Marshal(payload.GameStateReceived)
	if err != nil {
		return err
	}
	expected, err := json.Marshal(payload.GameStateExpected)
	if err != nil {
		return err
	}
	players, _ := event.Extra[logging.FieldPlayers].(int)

	query := `INSERT INTO responses (
		run_id, team, players, round, player_id, correct_action, predicted_action,
		action_matched, response_time, game_state_received, game_state_expected, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.Exec(query,
		event.ExtraString(logging.FieldRun), event.ExtraString(logging.FieldTeam), players,
		event.Round, payload.PlayerID, payload.CorrectAction, payload.PredictedAction,
		payload.ActionMatched, payload.ResponseTime, string(received), string(expected), event.Time.UTC(),
	)
	return err
}

func (s *SQLite) saveSummary(event logging.Event, payload evaluation.SummaryPayload) error {
	query := `INSERT INTO summaries (
		run_id, team, class, matched, total, mean_response, median_response, recorded_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.Exec(query,
		event.ExtraString(logging.FieldRun), event.ExtraString(logging.FieldTeam),
		payload.Class, payload.Matched, payload.Total, payload.MeanResponse, payload.Median, event.Time.UTC(),
	)
	return err
}

// MatchedCount returns how many responses of a run matched the scenario.
func (s *SQLite) MatchedCount(ctx context.Context, runID string) (matched, total int, err error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(CASE WHEN action_matched = 0 THEN 1 ELSE 0 END), 0), COUNT(*) FROM responses WHERE run_id = ?`,
		runID,
	)
	err = row.Scan(&matched, &total)
	return matched, total, err
}

func (s *SQLite) Close(context.Context) error {
	return s.db.Close()
}
