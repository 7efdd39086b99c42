// README: Base handler utilities (JSON helpers, error mapping, shared DTOs).
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/geo"
	"pickup/internal/modules/address"
	"pickup/internal/modules/driver"
	"pickup/internal/modules/matching"
	"pickup/internal/modules/pickup"
)

// ReasonNoAvailableDrivers tags the 404 returned when dispatch finds nobody.
const ReasonNoAvailableDrivers = "no_available_drivers"

type errorResponse struct {
	Detail string `json:"detail"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Detail: msg})
}

func writeInternal(c *gin.Context, err error) {
	_ = c.Error(err)
	writeError(c, http.StatusInternalServerError, "internal error")
}

func writeDispatchError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, matching.ErrValidation):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, matching.ErrNoAvailableDriver):
		writeJSON(c, http.StatusNotFound, errorResponse{Detail: "no available drivers nearby", Reason: ReasonNoAvailableDrivers})
	case errors.Is(err, matching.ErrCommitFailed):
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, matching.ErrCommitFailed.Error())
	default:
		writeInternal(c, err)
	}
}

func writePickupError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pickup.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, pickup.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, pickup.ErrInvalidState), errors.Is(err, pickup.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeDriverError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, driver.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, driver.ErrDuplicateEmail):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeInternal(c, err)
	}
}

func writeAddressError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, address.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, address.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeInternal(c, err)
	}
}

// pointFromLatLng accepts both coordinates or neither.
func pointFromLatLng(lat, lng *float64) (*geo.Point, bool) {
	if lat == nil && lng == nil {
		return nil, true
	}
	if lat == nil || lng == nil {
		return nil, false
	}
	p := geo.Point{Lat: *lat, Lng: *lng}
	return &p, p.Valid()
}

// formatDuration renders d as HH:MM:SS, rounded to the second.
func formatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	if secs < 0 {
		secs = 0
	}
	return fmt.Sprintf("%02d:%02d:%02d", secs/3600, (secs%3600)/60, secs%60)
}
