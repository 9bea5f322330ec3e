// Package stats computes answer-history statistics for the admin API.
package stats

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Service runs aggregate queries over the answer history.
type Service struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

func NewService(pool *pgxpool.Pool, logger zerolog.Logger) *Service {
	return &Service{
		pool:   pool,
		logger: logger.With().Str("component", "stats_service").Logger(),
	}
}

// PersonSummary is one row of the short per-person overview.
type PersonSummary struct {
	PersonID  string  `json:"person_id"`
	Total     int     `json:"total"`
	Answered  int     `json:"answered"`
	Correct   int     `json:"correct"`
	PointsSum float64 `json:"points_sum"`
}

// Short returns one summary row per person with any history.
func (s *Service) Short(ctx context.Context) ([]PersonSummary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT person_id::text,
		       COUNT(*),
		       COUNT(*) FILTER (WHERE state = 'ANSWERED'),
		       COUNT(*) FILTER (WHERE state = 'ANSWERED' AND points > 0),
		       COALESCE(SUM(points), 0)
		FROM answers
		GROUP BY person_id
		ORDER BY person_id`)
	if err != nil {
		return nil, fmt.Errorf("query short statistics: %w", err)
	}
	defer rows.Close()

	var summaries []PersonSummary
	for rows.Next() {
		var row PersonSummary
		if err := rows.Scan(&row.PersonID, &row.Total, &row.Answered, &row.Correct, &row.PointsSum); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summaries = append(summaries, row)
	}
	return summaries, rows.Err()
}

// QuestionProgress is one question's history for one person.
type QuestionProgress struct {
	QuestionID string     `json:"question_id"`
	Text       string     `json:"text"`
	Answers    int        `json:"answers"`
	PointsSum  float64    `json:"points_sum"`
	LastAnswer *time.Time `json:"last_answer,omitempty"`
}

// ForPerson returns per-question progress for one person.
func (s *Service) ForPerson(ctx context.Context, personID uuid.UUID) ([]QuestionProgress, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT a.question_id::text, q.text, COUNT(*), COALESCE(SUM(a.points), 0), MAX(a.answer_time)
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE a.person_id = $1::uuid
		GROUP BY a.question_id, q.text
		ORDER BY q.text`,
		personID.String())
	if err != nil {
		return nil, fmt.Errorf("query person statistics: %w", err)
	}
	defer rows.Close()

	var progress []QuestionProgress
	for rows.Next() {
		var row QuestionProgress
		if err := rows.Scan(&row.QuestionID, &row.Text, &row.Answers, &row.PointsSum, &row.LastAnswer); err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		progress = append(progress, row)
	}
	return progress, rows.Err()
}
