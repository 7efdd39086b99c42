// README: Driver aggregate and availability statuses.
package driver

import (
	"errors"
	"time"

	"pickup/internal/geo"
	"pickup/internal/types"
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusInService Status = "in_service"
	StatusOffline   Status = "offline"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusInService, StatusOffline:
		return true
	}
	return false
}

var (
	ErrNotFound       = errors.New("driver not found")
	ErrBadRequest     = errors.New("bad request")
	ErrDuplicateEmail = errors.New("driver email already registered")
)

type Driver struct {
	ID        types.ID
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Status    Status
	// Location is nil until the driver reports a position.
	Location  *geo.Point
	Rating    *float64
	CreatedAt time.Time
	UpdatedAt time.Time
}
