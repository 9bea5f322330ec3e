package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/PluxCo/testing-platform-old/internal/model"
)

// PersonStore is the person directory with group memberships and target
// levels. The scheduling core treats it as read-only; the admin API may
// upsert entries synced from an external identity system.
type PersonStore struct {
	pool *pgxpool.Pool
}

func NewPersonStore(pool *pgxpool.Pool) *PersonStore {
	return &PersonStore{pool: pool}
}

func (s *PersonStore) People(ctx context.Context) ([]*model.Person, error) {
	rows, err := s.pool.Query(ctx, `SELECT id::text, full_name FROM persons ORDER BY full_name`)
	if err != nil {
		return nil, fmt.Errorf("list persons: %w", err)
	}
	defer rows.Close()

	var people []*model.Person
	byID := make(map[uuid.UUID]*model.Person)
	for rows.Next() {
		var (
			id     string
			person model.Person
		)
		if err := rows.Scan(&id, &person.FullName); err != nil {
			return nil, fmt.Errorf("scan person: %w", err)
		}
		person.ID = uuid.MustParse(id)
		people = append(people, &person)
		byID[person.ID] = &person
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memberships, err := s.pool.Query(ctx,
		`SELECT person_id::text, group_id::text, target_level FROM person_groups`)
	if err != nil {
		return nil, fmt.Errorf("list person groups: %w", err)
	}
	defer memberships.Close()

	for memberships.Next() {
		var (
			pID, gID string
			level    int
		)
		if err := memberships.Scan(&pID, &gID, &level); err != nil {
			return nil, fmt.Errorf("scan person group: %w", err)
		}
		if person, ok := byID[uuid.MustParse(pID)]; ok {
			person.Memberships = append(person.Memberships, model.GroupMembership{
				GroupID:     uuid.MustParse(gID),
				TargetLevel: level,
			})
		}
	}
	return people, memberships.Err()
}

func (s *PersonStore) Person(ctx context.Context, id uuid.UUID) (*model.Person, error) {
	var (
		person model.Person
		rawID  string
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id::text, full_name FROM persons WHERE id = $1::uuid`, id.String()).
		Scan(&rawID, &person.FullName)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("person %s: %w", id, model.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("query person: %w", err)
	}
	person.ID = uuid.MustParse(rawID)

	rows, err := s.pool.Query(ctx,
		`SELECT group_id::text, target_level FROM person_groups WHERE person_id = $1::uuid`,
		id.String())
	if err != nil {
		return nil, fmt.Errorf("query person groups: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			gID   string
			level int
		)
		if err := rows.Scan(&gID, &level); err != nil {
			return nil, fmt.Errorf("scan person group: %w", err)
		}
		person.Memberships = append(person.Memberships, model.GroupMembership{
			GroupID:     uuid.MustParse(gID),
			TargetLevel: level,
		})
	}
	return &person, rows.Err()
}

// Save upserts a person and replaces their memberships in one transaction.
func (s *PersonStore) Save(ctx context.Context, person *model.Person) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO persons (id, full_name) VALUES ($1::uuid, $2)
		ON CONFLICT (id) DO UPDATE SET full_name = EXCLUDED.full_name`,
		person.ID.String(), person.FullName)
	if err != nil {
		return fmt.Errorf("upsert person: %w", err)
	}

	_, err = tx.Exec(ctx, `DELETE FROM person_groups WHERE person_id = $1::uuid`, person.ID.String())
	if err != nil {
		return fmt.Errorf("clear person groups: %w", err)
	}
	for _, m := range person.Memberships {
		_, err = tx.Exec(ctx, `
			INSERT INTO person_groups (person_id, group_id, target_level)
			VALUES ($1::uuid, $2::uuid, $3)`,
			person.ID.String(), m.GroupID.String(), m.TargetLevel)
		if err != nil {
			return fmt.Errorf("insert person group: %w", err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PersonStore) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM persons WHERE id = $1::uuid`, id.String())
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("person %s: %w", id, model.ErrNotFound)
	}
	return nil
}
