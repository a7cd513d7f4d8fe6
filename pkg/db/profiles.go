package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

var ErrProfileNotFound = errors.New("profile not found")

// Profile is one installation's configuration namespace.
type Profile struct {
	ID        int64
	Name      string
	Timezone  string
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ProfileStore provides profile operations.
type ProfileStore interface {
	Get(ctx context.Context, id int64) (*Profile, error)
	GetByName(ctx context.Context, name string) (*Profile, error)
	GetActive(ctx context.Context) (*Profile, error)
	List(ctx context.Context) ([]*Profile, error)
	Create(ctx context.Context, p *Profile) error
	SetActive(ctx context.Context, id int64) error
}

// Profiles returns a ProfileStore for this database.
func (db *DB) Profiles() ProfileStore {
	return &profileStore{db: db}
}

type profileStore struct {
	db *DB
}

const profileColumns = `id, name, timezone, is_active, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanProfile(row scanner) (*Profile, error) {
	p := &Profile{}
	var createdAt, updatedAt string
	err := row.Scan(&p.ID, &p.Name, &p.Timezone, &p.IsActive, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	p.CreatedAt, _ = time.Parse(time.DateTime, createdAt)
	p.UpdatedAt, _ = time.Parse(time.DateTime, updatedAt)
	return p, nil
}

func (s *profileStore) Get(ctx context.Context, id int64) (*Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id))
}

func (s *profileStore) GetByName(ctx context.Context, name string) (*Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE name = ?`, name))
}

func (s *profileStore) GetActive(ctx context.Context) (*Profile, error) {
	return scanProfile(s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM profiles WHERE is_active = 1 LIMIT 1`))
}

func (s *profileStore) List(ctx context.Context) ([]*Profile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+profileColumns+` FROM profiles ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []*Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *profileStore) Create(ctx context.Context, p *Profile) error {
	if p.Timezone == "" {
		p.Timezone = "UTC"
	}
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO profiles (name, timezone, is_active) VALUES (?, ?, ?)`,
		p.Name, p.Timezone, p.IsActive)
	if err != nil {
		return fmt.Errorf("failed to create profile: %w", err)
	}
	p.ID, err = result.LastInsertId()
	return err
}

// SetActive makes id the only active profile.
func (s *profileStore) SetActive(ctx context.Context, id int64) error {
	return s.db.Tx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE profiles SET is_active = 0, updated_at = datetime('now') WHERE is_active = 1`); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `UPDATE profiles SET is_active = 1, updated_at = datetime('now') WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if n, err := result.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return ErrProfileNotFound
		}
		return nil
	})
}
