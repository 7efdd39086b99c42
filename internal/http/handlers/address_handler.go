// README: Address handlers for create/get.
package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"pickup/internal/geo"
	"pickup/internal/modules/address"
	"pickup/internal/types"
)

type AddressService interface {
	Create(ctx context.Context, cmd address.CreateCommand) (*address.Address, error)
	Get(ctx context.Context, id types.ID) (*address.Address, error)
}

type AddressHandler struct {
	addresses AddressService
}

func NewAddressHandler(svc AddressService) *AddressHandler {
	return &AddressHandler{addresses: svc}
}

type createAddressReq struct {
	Street    string   `json:"street" binding:"required"`
	City      string   `json:"city" binding:"required"`
	State     string   `json:"state" binding:"required"`
	ZipCode   string   `json:"zip_code" binding:"required"`
	Country   string   `json:"country" binding:"required"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type addressResponse struct {
	ID        types.ID   `json:"id"`
	Street    string     `json:"street"`
	City      string     `json:"city"`
	State     string     `json:"state"`
	ZipCode   string     `json:"zip_code"`
	Country   string     `json:"country"`
	Location  *geo.Point `json:"location"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func toAddressResponse(a *address.Address) addressResponse {
	return addressResponse{
		ID:        a.ID,
		Street:    a.Street,
		City:      a.City,
		State:     a.State,
		ZipCode:   a.ZipCode,
		Country:   a.Country,
		Location:  a.Location,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

func (h *AddressHandler) Create(c *gin.Context) {
	var req createAddressReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid request body")
		return
	}
	loc, ok := pointFromLatLng(req.Latitude, req.Longitude)
	if !ok {
		writeError(c, http.StatusBadRequest, "latitude and longitude must be given together and be in range")
		return
	}
	a, err := h.addresses.Create(c.Request.Context(), address.CreateCommand{
		Street:   req.Street,
		City:     req.City,
		State:    req.State,
		ZipCode:  req.ZipCode,
		Country:  req.Country,
		Location: loc,
	})
	if err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toAddressResponse(a))
}

func (h *AddressHandler) Get(c *gin.Context) {
	a, err := h.addresses.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeAddressError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toAddressResponse(a))
}
