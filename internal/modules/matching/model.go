// README: Dispatch inputs, candidates and outcomes.
package matching

import (
	"errors"

	"pickup/internal/geo"
	"pickup/internal/modules/driver"
	"pickup/internal/modules/eta"
	"pickup/internal/modules/pickup"
	"pickup/internal/types"
)

var (
	ErrValidation        = errors.New("invalid dispatch request")
	ErrNoAvailableDriver = errors.New("no available drivers")
	ErrCommitFailed      = errors.New("failed to persist assignment")
)

const (
	// DefaultRadiusMeters bounds the candidate search around the pickup.
	DefaultRadiusMeters = 100000.0
	// DefaultMaxCandidates is how many nearby drivers are tried in order.
	DefaultMaxCandidates = 5
)

// Candidate is an available driver near the pickup. DistanceMeters is the
// great-circle distance from the driver to the pickup.
type Candidate struct {
	Driver         driver.Driver
	DistanceMeters float64
}

type DispatchCommand struct {
	CustomerName    string
	CustomerPhone   string
	PickupAddressID *types.ID
	Pickup          *geo.Point
}

// Assignment is the outcome of a successful dispatch.
type Assignment struct {
	Request *pickup.Request
	Driver  driver.Driver
	ETA     eta.Result
}
