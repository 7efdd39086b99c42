// README: Pickup request store backed by PostgreSQL. Status updates use optimistic locking on status_version.
package pickup

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"pickup/internal/types"
)

const (
	uniqueViolation   = "23505"
	activeDriverIndex = "pickup_requests_active_driver_idx"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

func (s *Store) Create(ctx context.Context, r *Request) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO pickup_requests (
			id, customer_name, customer_phone, pickup_address_id,
			pickup_lat, pickup_lng, driver_id, status, status_version,
			estimated_arrival_seconds, requested_at, assigned_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8, $9,
			$10, $11, $12
		)`,
		string(r.ID),
		r.CustomerName,
		r.CustomerPhone,
		toStringPtr(r.PickupAddressID),
		r.Pickup.Lat, r.Pickup.Lng,
		toStringPtr(r.DriverID),
		string(r.Status),
		r.StatusVersion,
		toSecondsPtr(r.EstimatedArrival),
		r.RequestedAt,
		r.AssignedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == activeDriverIndex {
		return ErrDriverBusy
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, customer_name, customer_phone, pickup_address_id,
		       pickup_lat, pickup_lng, driver_id, status, status_version,
		       estimated_arrival_seconds, requested_at, assigned_at,
		       started_at, completed_at, cancelled_at, cancellation_reason
		FROM pickup_requests
		WHERE id = $1`, string(id),
	)

	var r Request
	var addressID, driverID *string
	var etaSeconds *int64
	err := row.Scan(
		&r.ID, &r.CustomerName, &r.CustomerPhone, &addressID,
		&r.Pickup.Lat, &r.Pickup.Lng, &driverID, &r.Status, &r.StatusVersion,
		&etaSeconds, &r.RequestedAt, &r.AssignedAt,
		&r.StartedAt, &r.CompletedAt, &r.CancelledAt, &r.CancelReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	r.PickupAddressID = toIDPtr(addressID)
	r.DriverID = toIDPtr(driverID)
	if etaSeconds != nil {
		d := time.Duration(*etaSeconds) * time.Second
		r.EstimatedArrival = &d
	}
	return &r, nil
}

// UpdateStatus moves the request from (from, version) to `to` and stamps the
// matching timestamp. It reports false when another writer got there first.
func (s *Store) UpdateStatus(ctx context.Context, id types.ID, from, to Status, version int, reason *string) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE pickup_requests
		SET status = $1,
		    status_version = status_version + 1,
		    started_at = CASE WHEN $1 = 'in_progress' THEN NOW() ELSE started_at END,
		    completed_at = CASE WHEN $1 = 'completed' THEN NOW() ELSE completed_at END,
		    cancelled_at = CASE WHEN $1 = 'cancelled' THEN NOW() ELSE cancelled_at END,
		    cancellation_reason = COALESCE($2, cancellation_reason)
		WHERE id = $3 AND status = $4 AND status_version = $5`,
		string(to),
		reason,
		string(id),
		string(from),
		version,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// Revert restores prev after a transition to `from` that could not be
// finished. It only applies if nothing else touched the row since.
func (s *Store) Revert(ctx context.Context, prev *Request, from Status) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE pickup_requests
		SET status = $1,
		    status_version = $2,
		    started_at = $3,
		    completed_at = $4,
		    cancelled_at = $5,
		    cancellation_reason = $6
		WHERE id = $7 AND status = $8 AND status_version = $9`,
		string(prev.Status),
		prev.StatusVersion,
		prev.StartedAt,
		prev.CompletedAt,
		prev.CancelledAt,
		prev.CancelReason,
		string(prev.ID),
		string(from),
		prev.StatusVersion+1,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func toIDPtr(v *string) *types.ID {
	if v == nil {
		return nil
	}
	id := types.ID(*v)
	return &id
}

func toSecondsPtr(d *time.Duration) *int64 {
	if d == nil {
		return nil
	}
	secs := int64(d.Round(time.Second) / time.Second)
	return &secs
}
