// README: Candidate lookup backed by PostgreSQL. Distances use the haversine formula in SQL.
package matching

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"pickup/internal/geo"
	"pickup/internal/modules/driver"
)

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

// NearbyAvailable returns available drivers with a known position within
// radiusMeters of p, nearest first, ties broken by id.
func (s *Store) NearbyAvailable(ctx context.Context, p geo.Point, radiusMeters float64, limit int) ([]Candidate, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, first_name, last_name, email, phone, status,
		       lat, lng, rating, created_at, updated_at, distance
		FROM (
			SELECT d.*,
			       2 * $3::float8 * asin(least(1, sqrt(
			           power(sin(radians(d.lat - $1::float8) / 2), 2) +
			           cos(radians($1::float8)) * cos(radians(d.lat)) *
			           power(sin(radians(d.lng - $2::float8) / 2), 2)
			       ))) AS distance
			FROM drivers d
			WHERE d.status = 'available'
			  AND d.lat IS NOT NULL
			  AND d.lng IS NOT NULL
		) nearby
		WHERE distance <= $4
		ORDER BY distance ASC, id ASC
		LIMIT $5`,
		p.Lat, p.Lng, geo.EarthRadiusMeters, radiusMeters, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		var lat, lng float64
		if err := rows.Scan(
			&c.Driver.ID, &c.Driver.FirstName, &c.Driver.LastName, &c.Driver.Email, &c.Driver.Phone, &c.Driver.Status,
			&lat, &lng, &c.Driver.Rating, &c.Driver.CreatedAt, &c.Driver.UpdatedAt, &c.DistanceMeters,
		); err != nil {
			return nil, err
		}
		c.Driver.Location = &geo.Point{Lat: lat, Lng: lng}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ CandidateSource = (*Store)(nil)
var _ DriverClaimer = (*driver.Store)(nil)
