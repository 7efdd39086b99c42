// README: Pickup service handlers: dispatch on create, then get/start/complete/cancel.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/geo"
	"pickup/internal/modules/address"
	"pickup/internal/modules/matching"
	"pickup/internal/modules/pickup"
	"pickup/internal/types"
)

type Dispatcher interface {
	Dispatch(ctx context.Context, cmd matching.DispatchCommand) (*matching.Assignment, error)
}

type PickupService interface {
	Get(ctx context.Context, id types.ID) (*pickup.Request, error)
	Start(ctx context.Context, cmd pickup.StartCommand) (*pickup.Request, error)
	Complete(ctx context.Context, cmd pickup.CompleteCommand) (*pickup.Request, error)
	Cancel(ctx context.Context, cmd pickup.CancelCommand) (*pickup.Request, error)
}

type AddressReader interface {
	Get(ctx context.Context, id types.ID) (*address.Address, error)
}

type ServiceHandler struct {
	dispatch  Dispatcher
	pickups   PickupService
	addresses AddressReader
}

func NewServiceHandler(dispatch Dispatcher, pickups PickupService, addresses AddressReader) *ServiceHandler {
	return &ServiceHandler{dispatch: dispatch, pickups: pickups, addresses: addresses}
}

type createServiceReq struct {
	CustomerName    string `json:"customer_name" binding:"required"`
	CustomerPhone   string `json:"customer_phone" binding:"required"`
	PickupAddressID string `json:"pickup_address_id" binding:"required"`
}

type cancelServiceReq struct {
	Reason string `json:"reason"`
}

type serviceResponse struct {
	ID                      types.ID        `json:"id"`
	CustomerName            string          `json:"customer_name"`
	CustomerPhone           string          `json:"customer_phone"`
	PickupAddressID         *types.ID       `json:"pickup_address_id"`
	Pickup                  geo.Point       `json:"pickup_location"`
	DriverID                *types.ID       `json:"driver_id"`
	Driver                  *driverResponse `json:"driver,omitempty"`
	Status                  pickup.Status   `json:"status"`
	EstimatedArrival        *string         `json:"estimated_arrival"`
	EstimatedArrivalSeconds *int64          `json:"estimated_arrival_seconds"`
	ETASource               string          `json:"eta_source,omitempty"`
	RequestedAt             time.Time       `json:"requested_at"`
	AssignedAt              *time.Time      `json:"assigned_at"`
	StartedAt               *time.Time      `json:"started_at"`
	CompletedAt             *time.Time      `json:"completed_at"`
	CancelledAt             *time.Time      `json:"cancelled_at"`
	CancellationReason      *string         `json:"cancellation_reason"`
}

func toServiceResponse(r *pickup.Request) serviceResponse {
	resp := serviceResponse{
		ID:                 r.ID,
		CustomerName:       r.CustomerName,
		CustomerPhone:      r.CustomerPhone,
		PickupAddressID:    r.PickupAddressID,
		Pickup:             r.Pickup,
		DriverID:           r.DriverID,
		Status:             r.Status,
		RequestedAt:        r.RequestedAt,
		AssignedAt:         r.AssignedAt,
		StartedAt:          r.StartedAt,
		CompletedAt:        r.CompletedAt,
		CancelledAt:        r.CancelledAt,
		CancellationReason: r.CancelReason,
	}
	if r.EstimatedArrival != nil {
		s := formatDuration(*r.EstimatedArrival)
		secs := int64(r.EstimatedArrival.Round(time.Second) / time.Second)
		resp.EstimatedArrival = &s
		resp.EstimatedArrivalSeconds = &secs
	}
	return resp
}

// Create dispatches the nearest available driver to the pickup address.
func (h *ServiceHandler) Create(c *gin.Context) {
	var req createServiceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "customer_name, customer_phone and pickup_address_id are required")
		return
	}
	addressID := types.ID(strings.TrimSpace(req.PickupAddressID))
	if !types.ValidID(string(addressID)) {
		writeError(c, http.StatusBadRequest, "pickup_address_id is not a valid id")
		return
	}

	addr, err := h.addresses.Get(c.Request.Context(), addressID)
	if errors.Is(err, address.ErrNotFound) {
		writeError(c, http.StatusBadRequest, "pickup address does not exist")
		return
	}
	if err != nil {
		writeInternal(c, err)
		return
	}
	if addr.Location == nil {
		writeError(c, http.StatusBadRequest, "pickup address must have coordinates")
		return
	}

	a, err := h.dispatch.Dispatch(c.Request.Context(), matching.DispatchCommand{
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		PickupAddressID: &addr.ID,
		Pickup:          addr.Location,
	})
	if err != nil {
		writeDispatchError(c, err)
		return
	}

	resp := toServiceResponse(a.Request)
	d := toDriverResponse(&a.Driver)
	resp.Driver = &d
	resp.ETASource = string(a.ETA.Source)
	writeJSON(c, http.StatusCreated, resp)
}

func (h *ServiceHandler) Get(c *gin.Context) {
	r, err := h.pickups.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writePickupError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResponse(r))
}

func (h *ServiceHandler) Start(c *gin.Context) {
	r, err := h.pickups.Start(c.Request.Context(), pickup.StartCommand{RequestID: types.ID(c.Param("id"))})
	if err != nil {
		writePickupError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResponse(r))
}

func (h *ServiceHandler) Complete(c *gin.Context) {
	r, err := h.pickups.Complete(c.Request.Context(), pickup.CompleteCommand{RequestID: types.ID(c.Param("id"))})
	if err != nil {
		writePickupError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResponse(r))
}

func (h *ServiceHandler) Cancel(c *gin.Context) {
	var req cancelServiceReq
	// body is optional
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			writeError(c, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	r, err := h.pickups.Cancel(c.Request.Context(), pickup.CancelCommand{
		RequestID: types.ID(c.Param("id")),
		Reason:    req.Reason,
	})
	if err != nil {
		writePickupError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toServiceResponse(r))
}
