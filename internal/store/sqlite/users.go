// Package sqlite is the standalone-mode user store, a single SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/nextlevelbuilder/storycast/internal/store"
)

// UserStore implements store.UserStore on SQLite.
type UserStore struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and initializes the schema.
func Open(path string) (*UserStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &UserStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	slog.Info("user store opened", "path", path)
	return s, nil
}

func (s *UserStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			identity TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL DEFAULT '',
			year_of_birth INTEGER NOT NULL DEFAULT 0,
			preferred_voice TEXT NOT NULL DEFAULT '',
			story_count INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now')),
			updated_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:min(len(stmt), 60)], err)
		}
	}
	return nil
}

func (s *UserStore) GetUser(ctx context.Context, identity string) (*store.UserProfile, error) {
	var (
		u                store.UserProfile
		id               string
		created, updated int64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, identity, password_hash, year_of_birth, preferred_voice, story_count, created_at, updated_at
		 FROM users WHERE identity = ?`, identity,
	).Scan(&id, &u.Identity, &u.PasswordHash, &u.YearOfBirth, &u.PreferredVoice, &u.StoryCount, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if u.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get user: bad id %q: %w", id, err)
	}
	u.CreatedAt = time.Unix(created, 0).UTC()
	u.UpdatedAt = time.Unix(updated, 0).UTC()
	return &u, nil
}

func (s *UserStore) UpsertUser(ctx context.Context, u *store.UserProfile) error {
	now := time.Now().UTC()
	if u.ID == uuid.Nil {
		u.ID = store.GenNewID()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, identity, password_hash, year_of_birth, preferred_voice, story_count, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(identity) DO UPDATE SET
		   year_of_birth = excluded.year_of_birth,
		   preferred_voice = excluded.preferred_voice,
		   updated_at = excluded.updated_at`,
		u.ID.String(), u.Identity, u.PasswordHash, u.YearOfBirth, u.PreferredVoice, u.StoryCount,
		u.CreatedAt.Unix(), u.UpdatedAt.Unix())
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *UserStore) IncrementStoryCount(ctx context.Context, identity string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE users SET story_count = story_count + 1, updated_at = ? WHERE identity = ?`,
		time.Now().UTC().Unix(), identity)
	if err != nil {
		return fmt.Errorf("increment story count: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrUserNotFound
	}
	return nil
}

func (s *UserStore) Close() error { return s.db.Close() }
