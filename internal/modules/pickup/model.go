// README: Pickup request aggregate and lifecycle statuses.
package pickup

import (
	"time"

	"pickup/internal/geo"
	"pickup/internal/types"
)

type Status string

const (
	StatusRequested  Status = "requested"
	StatusAssigned   Status = "assigned"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
)

type Request struct {
	ID              types.ID
	CustomerName    string
	CustomerPhone   string
	PickupAddressID *types.ID
	Pickup          geo.Point
	DriverID        *types.ID
	Status          Status
	StatusVersion   int
	// EstimatedArrival is the driver-to-pickup time computed at dispatch.
	EstimatedArrival *time.Duration
	RequestedAt      time.Time
	AssignedAt       *time.Time
	StartedAt        *time.Time
	CompletedAt      *time.Time
	CancelledAt      *time.Time
	CancelReason     *string
}

// AllowedTransitions represents the request lifecycle as code.
var AllowedTransitions = map[Status][]Status{
	StatusRequested:  {StatusAssigned, StatusCancelled},
	StatusAssigned:   {StatusInProgress, StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	next, ok := AllowedTransitions[from]
	if !ok {
		return false
	}
	for _, s := range next {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no transition leaves s.
func IsTerminal(s Status) bool {
	_, ok := AllowedTransitions[s]
	return !ok
}

// IsActive reports whether a request in s holds its driver.
func IsActive(s Status) bool {
	return s == StatusAssigned || s == StatusInProgress
}
