// README: Driver store backed by PostgreSQL. Status changes for dispatch go through CompareAndSetStatus.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickup/internal/geo"
	"pickup/internal/types"
)

const uniqueViolation = "23505"

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, d *Driver) error {
	lat, lng := splitPoint(d.Location)
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (
			id, first_name, last_name, email, phone, status,
			lat, lng, rating, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(d.ID), d.FirstName, d.LastName, d.Email, d.Phone, string(d.Status),
		lat, lng, d.Rating, d.CreatedAt, d.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrDuplicateEmail
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, status,
		       lat, lng, rating, created_at, updated_at
		FROM drivers
		WHERE id = $1`, string(id),
	)

	var d Driver
	var lat, lng *float64
	err := row.Scan(
		&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Status,
		&lat, &lng, &d.Rating, &d.CreatedAt, &d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	d.Location = joinPoint(lat, lng)
	return &d, nil
}

// List filters by status when one is given. Newest drivers come first.
func (s *Store) List(ctx context.Context, status Status, limit int) ([]Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, status,
		       lat, lng, rating, created_at, updated_at
		FROM drivers
		WHERE $1::text = '' OR status = $1::text
		ORDER BY created_at DESC, id
		LIMIT $2`, string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Driver
	for rows.Next() {
		var d Driver
		var lat, lng *float64
		if err := rows.Scan(
			&d.ID, &d.FirstName, &d.LastName, &d.Email, &d.Phone, &d.Status,
			&lat, &lng, &d.Rating, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		d.Location = joinPoint(lat, lng)
		out = append(out, d)
	}
	return out, rows.Err()
}

// CompareAndSetStatus moves the driver from expected to next in a single
// conditional update. It reports false when the driver was not in expected.
func (s *Store) CompareAndSetStatus(ctx context.Context, id types.ID, expected, next Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`,
		string(next), string(id), string(expected),
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// SetStatus overwrites the status regardless of its current value.
func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET status = $1, updated_at = NOW() WHERE id = $2`,
		string(status), string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) UpdateLocation(ctx context.Context, id types.ID, p geo.Point, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers SET lat = $1, lng = $2, updated_at = $3 WHERE id = $4`,
		p.Lat, p.Lng, at, string(id),
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func splitPoint(p *geo.Point) (*float64, *float64) {
	if p == nil {
		return nil, nil
	}
	lat, lng := p.Lat, p.Lng
	return &lat, &lng
}

func joinPoint(lat, lng *float64) *geo.Point {
	if lat == nil || lng == nil {
		return nil
	}
	return &geo.Point{Lat: *lat, Lng: *lng}
}
