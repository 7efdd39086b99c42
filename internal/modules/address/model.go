// README: Address entity. Location is optional; dispatch requires it.
package address

import (
	"errors"
	"time"

	"pickup/internal/geo"
	"pickup/internal/types"
)

var (
	ErrNotFound   = errors.New("address not found")
	ErrBadRequest = errors.New("bad request")
)

type Address struct {
	ID        types.ID
	Street    string
	City      string
	State     string
	ZipCode   string
	Country   string
	Location  *geo.Point
	CreatedAt time.Time
	UpdatedAt time.Time
}
