package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

const answerColumns = `id::text, question_id::text, person_id::text,
	COALESCE(person_answer, ''), ask_time, answer_time, points, state`

// AnswerStore persists answer records and enforces the state machine at
// the SQL level: conditional updates make ANSWERED terminal even under
// concurrent registration.
type AnswerStore struct {
	pool *pgxpool.Pool
}

func NewAnswerStore(pool *pgxpool.Pool) *AnswerStore {
	return &AnswerStore{pool: pool}
}

func scanAnswer(row pgx.Row) (*model.AnswerRecord, error) {
	var (
		rec          model.AnswerRecord
		id, qID, pID string
		askTime      *time.Time
	)
	err := row.Scan(&id, &qID, &pID, &rec.PersonAnswer, &askTime, &rec.AnswerTime, &rec.Points, &rec.State)
	if err != nil {
		return nil, err
	}
	rec.ID = uuid.MustParse(id)
	rec.QuestionID = uuid.MustParse(qID)
	rec.PersonID = uuid.MustParse(pID)
	if askTime != nil {
		rec.AskTime = *askTime
	}
	return &rec, nil
}

// Due returns the person's NOT_ANSWERED records whose ask time has passed,
// oldest first.
func (s *AnswerStore) Due(ctx context.Context, personID uuid.UUID, now time.Time) ([]*model.AnswerRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+answerColumns+`
		FROM answers
		WHERE person_id = $1::uuid AND state = $2 AND ask_time IS NOT NULL AND ask_time <= $3
		ORDER BY ask_time`,
		personID.String(), model.StateNotAnswered, now)
	if err != nil {
		return nil, fmt.Errorf("query due answers: %w", err)
	}
	defer rows.Close()

	var records []*model.AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due answer: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Stats aggregates the person's whole history per question in one query.
func (s *AnswerStore) Stats(ctx context.Context, personID uuid.UUID) (map[uuid.UUID]model.AnswerStats, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id::text, COALESCE(SUM(points), 0), MIN(ask_time), MAX(ask_time), COUNT(*)
		FROM answers
		WHERE person_id = $1::uuid AND ask_time IS NOT NULL
		GROUP BY question_id`,
		personID.String())
	if err != nil {
		return nil, fmt.Errorf("query answer stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[uuid.UUID]model.AnswerStats)
	for rows.Next() {
		var (
			qID string
			st  model.AnswerStats
		)
		if err := rows.Scan(&qID, &st.PointsSum, &st.FirstAsk, &st.LastAsk, &st.Count); err != nil {
			return nil, fmt.Errorf("scan answer stats: %w", err)
		}
		st.QuestionID = uuid.MustParse(qID)
		stats[st.QuestionID] = st
	}
	return stats, rows.Err()
}

func (s *AnswerStore) Create(ctx context.Context, rec *model.AnswerRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO answers (id, question_id, person_id, ask_time, state, points)
		VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6)`,
		rec.ID.String(), rec.QuestionID.String(), rec.PersonID.String(),
		nullableTime(rec.AskTime), rec.State, rec.Points)
	if err != nil {
		return fmt.Errorf("insert answer: %w", err)
	}
	return nil
}

func (s *AnswerStore) Answer(ctx context.Context, id uuid.UUID) (*model.AnswerRecord, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+answerColumns+` FROM answers WHERE id = $1::uuid`, id.String())
	rec, err := scanAnswer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("answer %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query answer: %w", err)
	}
	return rec, nil
}

// SaveAnswered persists the ANSWERED transition. The WHERE clause keeps
// ANSWERED terminal: a second registration affects zero rows and comes
// back as model.ErrConflict.
func (s *AnswerStore) SaveAnswered(ctx context.Context, rec *model.AnswerRecord) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE answers
		SET person_answer = $2, answer_time = $3, points = $4, state = $5
		WHERE id = $1::uuid AND state <> $5`,
		rec.ID.String(), rec.PersonAnswer, rec.AnswerTime, rec.Points, model.StateAnswered)
	if err != nil {
		return fmt.Errorf("update answer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		if _, err := s.Answer(ctx, rec.ID); err != nil {
			return err
		}
		return model.ErrConflict
	}
	return nil
}

// MarkTransferred is a conditional no-op outside NOT_ANSWERED; ask_time is
// backfilled when the record was created without one.
func (s *AnswerStore) MarkTransferred(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE answers
		SET state = $2, ask_time = COALESCE(ask_time, $3)
		WHERE id = $1::uuid AND state = $4`,
		id.String(), model.StateTransferred, at, model.StateNotAnswered)
	if err != nil {
		return fmt.Errorf("mark transferred: %w", err)
	}
	return nil
}

// AnswerFilter narrows List; nil fields match everything.
type AnswerFilter struct {
	PersonID   *uuid.UUID
	QuestionID *uuid.UUID
}

func (s *AnswerStore) List(ctx context.Context, filter AnswerFilter) ([]*model.AnswerRecord, error) {
	query := `SELECT ` + answerColumns + ` FROM answers WHERE 1=1`
	args := []any{}
	if filter.PersonID != nil {
		args = append(args, filter.PersonID.String())
		query += fmt.Sprintf(" AND person_id = $%d::uuid", len(args))
	}
	if filter.QuestionID != nil {
		args = append(args, filter.QuestionID.String())
		query += fmt.Sprintf(" AND question_id = $%d::uuid", len(args))
	}
	query += " ORDER BY ask_time NULLS LAST"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list answers: %w", err)
	}
	defer rows.Close()

	var records []*model.AnswerRecord
	for rows.Next() {
		rec, err := scanAnswer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// UpdatePoints serves the out-of-band grading correction API. Points may
// change after the fact; state never regresses.
func (s *AnswerStore) UpdatePoints(ctx context.Context, id uuid.UUID, points float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE answers SET points = $2 WHERE id = $1::uuid`, id.String(), points)
	if err != nil {
		return fmt.Errorf("update points: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("answer %s: %w", id, model.ErrNotFound)
	}
	return nil
}
