package optimization

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// RunRepository persists optimization run records.
type RunRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

// NewRunRepository creates a new run repository.
func NewRunRepository(db *sql.DB, log zerolog.Logger) *RunRepository {
	return &RunRepository{
		db:  db,
		log: log.With().Str("component", "run_repository").Logger(),
	}
}

// Save inserts one run record. Slice and map fields are stored as JSON.
func (r *RunRepository) Save(run Run) error {
	tickers, err := json.Marshal(run.Tickers)
	if err != nil {
		return fmt.Errorf("failed to encode tickers: %w", err)
	}
	hybrid, err := json.Marshal(run.HybridWeights)
	if err != nil {
		return fmt.Errorf("failed to encode hybrid weights: %w", err)
	}
	classical, err := json.Marshal(run.ClassicalWeights)
	if err != nil {
		return fmt.Errorf("failed to encode classical weights: %w", err)
	}

	_, err = r.db.Exec(`
		INSERT INTO optimization_runs
		(id, created_at, tickers, risk_tolerance, backend, energy, hybrid_weights, classical_weights)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.CreatedAt.UTC().Format(time.RFC3339),
		string(tickers),
		run.RiskTolerance,
		run.Backend,
		run.Energy,
		string(hybrid),
		string(classical),
	)
	if err != nil {
		return fmt.Errorf("failed to insert optimization run: %w", err)
	}

	r.log.Debug().Str("run_id", run.ID).Msg("Saved optimization run")
	return nil
}

// Recent returns the newest runs, most recent first.
func (r *RunRepository) Recent(limit int) ([]Run, error) {
	rows, err := r.db.Query(`
		SELECT id, created_at, tickers, risk_tolerance, backend, energy, hybrid_weights, classical_weights
		FROM optimization_runs
		ORDER BY created_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query optimization runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var run Run
		var createdAt, tickers, hybrid, classical string
		if err := rows.Scan(
			&run.ID,
			&createdAt,
			&tickers,
			&run.RiskTolerance,
			&run.Backend,
			&run.Energy,
			&hybrid,
			&classical,
		); err != nil {
			return nil, fmt.Errorf("failed to scan optimization run: %w", err)
		}

		run.CreatedAt, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to parse created_at for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(tickers), &run.Tickers); err != nil {
			return nil, fmt.Errorf("failed to decode tickers for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(hybrid), &run.HybridWeights); err != nil {
			return nil, fmt.Errorf("failed to decode hybrid weights for run %s: %w", run.ID, err)
		}
		if err := json.Unmarshal([]byte(classical), &run.ClassicalWeights); err != nil {
			return nil, fmt.Errorf("failed to decode classical weights for run %s: %w", run.ID, err)
		}

		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate optimization runs: %w", err)
	}

	return runs, nil
}
