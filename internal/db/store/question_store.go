package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

const questionColumns = `q.id::text, q.text, COALESCE(q.subject, ''),
	COALESCE(q.options, '[]'::jsonb), q.answer, q.level, COALESCE(q.article_url, ''), q.type, q.created_at`

// QuestionStore persists questions with their group memberships.
type QuestionStore struct {
	pool *pgxpool.Pool
}

func NewQuestionStore(pool *pgxpool.Pool) *QuestionStore {
	return &QuestionStore{pool: pool}
}

func scanQuestion(row pgx.Row) (model.Question, error) {
	var (
		q       model.Question
		id      string
		options []byte
	)
	err := row.Scan(&id, &q.Text, &q.Subject, &options, &q.Answer, &q.Level, &q.ArticleURL, &q.Type, &q.CreatedAt)
	if err != nil {
		return model.Question{}, err
	}
	q.ID = uuid.MustParse(id)
	if err := json.Unmarshal(options, &q.Options); err != nil {
		return model.Question{}, fmt.Errorf("decode options: %w", err)
	}
	return q, nil
}

func (s *QuestionStore) Question(ctx context.Context, id uuid.UUID) (model.Question, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+questionColumns+` FROM questions q WHERE q.id = $1::uuid`, id.String())
	q, err := scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Question{}, fmt.Errorf("question %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return model.Question{}, fmt.Errorf("query question: %w", err)
	}
	groups, err := s.groupsFor(ctx, []uuid.UUID{q.ID})
	if err != nil {
		return model.Question{}, err
	}
	q.Groups = groups[q.ID]
	return q, nil
}

// PoolFor computes the eligible pool: questions in any of the person's
// groups, excluding the given ids (the questions already due).
func (s *QuestionStore) PoolFor(ctx context.Context, person *model.Person, exclude []uuid.UUID) ([]model.Question, error) {
	groupIDs := person.GroupIDs()
	if len(groupIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT `+questionColumns+`
		FROM questions q
		WHERE EXISTS (
			SELECT 1 FROM question_groups qg
			WHERE qg.question_id = q.id AND qg.group_id = ANY($1::uuid[])
		)
		AND NOT (q.id = ANY($2::uuid[]))
		ORDER BY q.created_at`,
		uuidStrings(groupIDs), uuidStrings(exclude))
	if err != nil {
		return nil, fmt.Errorf("query question pool: %w", err)
	}
	defer rows.Close()

	pool, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachGroups(ctx, pool); err != nil {
		return nil, err
	}
	return pool, nil
}

func (s *QuestionStore) List(ctx context.Context) ([]model.Question, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+questionColumns+` FROM questions q ORDER BY q.created_at`)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	defer rows.Close()

	questions, err := collectQuestions(rows)
	if err != nil {
		return nil, err
	}
	if err := s.attachGroups(ctx, questions); err != nil {
		return nil, err
	}
	return questions, nil
}

func (s *QuestionStore) Create(ctx context.Context, q model.Question) error {
	options, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO questions (id, text, subject, options, answer, level, article_url, type, created_at)
		VALUES ($1::uuid, $2, NULLIF($3, ''), $4, $5, $6, NULLIF($7, ''), $8, $9)`,
		q.ID.String(), q.Text, q.Subject, options, q.Answer, q.Level, q.ArticleURL, q.Type, q.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	for _, group := range q.Groups {
		_, err = tx.Exec(ctx, `
			INSERT INTO question_groups (question_id, group_id) VALUES ($1::uuid, $2::uuid)`,
			q.ID.String(), group.String())
		if err != nil {
			return fmt.Errorf("insert question group: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *QuestionStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM questions WHERE id = $1::uuid`, id.String())
	if err != nil {
		return fmt.Errorf("delete question: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("question %s: %w", id, model.ErrNotFound)
	}
	return nil
}

func collectQuestions(rows pgx.Rows) ([]model.Question, error) {
	var questions []model.Question
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *QuestionStore) attachGroups(ctx context.Context, questions []model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}
	groups, err := s.groupsFor(ctx, ids)
	if err != nil {
		return err
	}
	for i := range questions {
		questions[i].Groups = groups[questions[i].ID]
	}
	return nil
}

func (s *QuestionStore) groupsFor(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT question_id::text, group_id::text
		FROM question_groups
		WHERE question_id = ANY($1::uuid[])`,
		uuidStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("query question groups: %w", err)
	}
	defer rows.Close()

	groups := make(map[uuid.UUID][]uuid.UUID)
	for rows.Next() {
		var qID, gID string
		if err := rows.Scan(&qID, &gID); err != nil {
			return nil, fmt.Errorf("scan question group: %w", err)
		}
		id := uuid.MustParse(qID)
		groups[id] = append(groups[id], uuid.MustParse(gID))
	}
	return groups, rows.Err()
}
