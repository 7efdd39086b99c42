// README: Driver handlers: registration, lookup, position updates and availability overrides.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/geo"
	"pickup/internal/modules/driver"
	"pickup/internal/types"
)

type DriverService interface {
	Create(ctx context.Context, cmd driver.CreateCommand) (*driver.Driver, error)
	Get(ctx context.Context, id types.ID) (*driver.Driver, error)
	List(ctx context.Context, q driver.ListQuery) ([]driver.Driver, error)
	UpdateLocation(ctx context.Context, cmd driver.UpdateLocationCommand) (*driver.Driver, error)
	SetAvailable(ctx context.Context, id types.ID) (*driver.Driver, error)
	SetOffline(ctx context.Context, id types.ID) (*driver.Driver, error)
}

type DriverHandler struct {
	drivers DriverService
}

func NewDriverHandler(svc DriverService) *DriverHandler {
	return &DriverHandler{drivers: svc}
}

type createDriverReq struct {
	FirstName string   `json:"first_name" binding:"required"`
	LastName  string   `json:"last_name" binding:"required"`
	Email     string   `json:"email" binding:"required"`
	Phone     string   `json:"phone" binding:"required"`
	Status    string   `json:"status"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Rating    *float64 `json:"rating"`
}

type updateLocationReq struct {
	Latitude  *float64 `json:"latitude" binding:"required"`
	Longitude *float64 `json:"longitude" binding:"required"`
}

type driverResponse struct {
	ID        types.ID      `json:"id"`
	FirstName string        `json:"first_name"`
	LastName  string        `json:"last_name"`
	Email     string        `json:"email"`
	Phone     string        `json:"phone"`
	Status    driver.Status `json:"status"`
	Location  *geo.Point    `json:"current_location"`
	Rating    *float64      `json:"rating"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func toDriverResponse(d *driver.Driver) driverResponse {
	return driverResponse{
		ID:        d.ID,
		FirstName: d.FirstName,
		LastName:  d.LastName,
		Email:     d.Email,
		Phone:     d.Phone,
		Status:    d.Status,
		Location:  d.Location,
		Rating:    d.Rating,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func (h *DriverHandler) Create(c *gin.Context) {
	var req createDriverReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	loc, ok := pointFromLatLng(req.Latitude, req.Longitude)
	if !ok {
		writeError(c, http.StatusBadRequest, "latitude and longitude must be given together and be in range")
		return
	}
	d, err := h.drivers.Create(c.Request.Context(), driver.CreateCommand{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Phone:     req.Phone,
		Location:  loc,
		Rating:    req.Rating,
		Status:    driver.Status(req.Status),
	})
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toDriverResponse(d))
}

func (h *DriverHandler) Get(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResponse(d))
}

// List serves GET /drivers?status=available&limit=20.
func (h *DriverHandler) List(c *gin.Context) {
	q := driver.ListQuery{Status: driver.Status(c.Query("status"))}
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(c, http.StatusBadRequest, "limit must be an integer")
			return
		}
		q.Limit = n
	}
	list, err := h.drivers.List(c.Request.Context(), q)
	if err != nil {
		writeDriverError(c, err)
		return
	}
	out := make([]driverResponse, 0, len(list))
	for i := range list {
		out = append(out, toDriverResponse(&list[i]))
	}
	writeJSON(c, http.StatusOK, out)
}

func (h *DriverHandler) UpdateLocation(c *gin.Context) {
	var req updateLocationReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "latitude and longitude are required")
		return
	}
	d, err := h.drivers.UpdateLocation(c.Request.Context(), driver.UpdateLocationCommand{
		DriverID: types.ID(c.Param("id")),
		Location: geo.Point{Lat: *req.Latitude, Lng: *req.Longitude},
	})
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResponse(d))
}

func (h *DriverHandler) SetAvailable(c *gin.Context) {
	d, err := h.drivers.SetAvailable(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResponse(d))
}

func (h *DriverHandler) SetOffline(c *gin.Context) {
	d, err := h.drivers.SetOffline(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverResponse(d))
}
