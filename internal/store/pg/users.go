package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

const userColumns = `id, identity, password_hash, year_of_birth, preferred_voice, story_count, created_at, updated_at`

// PGUserStore implements store.UserStore backed by Postgres.
type PGUserStore struct {
	db *sqlx.DB
}

func NewPGUserStore(db *sqlx.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) GetUser(ctx context.Context, identity string) (*store.UserProfile, error) {
	var u store.UserProfile
	err := s.db.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE identity = $1`, identity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *PGUserStore) UpsertUser(ctx context.Context, u *store.UserProfile) error {
	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO users (id, identity, password_hash, year_of_birth, preferred_voice, story_count, created_at, updated_at)
		 VALUES (:id, :identity, :password_hash, :year_of_birth, :preferred_voice, :story_count, :created_at, :updated_at)
		 ON CONFLICT (identity) DO UPDATE SET
		   year_of_birth = EXCLUDED.year_of_birth,
		   preferred_voice = EXCLUDED.preferred_voice,
		   updated_at = EXCLUDED.updated_at`, u)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *PGUserStore) IncrementStoryCount(ctx context.Context, identity string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET story_count = story_count + 1, updated_at = $2 WHERE identity = $1`,
		identity, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("increment story count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *PGUserStore) Close() error { return s.db.Close() }
