// README: HTTP router registration.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"pickup/internal/http/handlers"
	"pickup/internal/http/middleware"
)

type RouterDeps struct {
	Dispatch  handlers.Dispatcher
	Pickups   handlers.PickupService
	Drivers   handlers.DriverService
	Addresses handlers.AddressService
	// Gatherer backs /metrics. Nil falls back to the default registry.
	Gatherer prometheus.Gatherer
	Logger   zerolog.Logger
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery(deps.Logger), middleware.Logging(deps.Logger))

	services := handlers.NewServiceHandler(deps.Dispatch, deps.Pickups, deps.Addresses)
	r.POST("/services", services.Create)
	r.GET("/services/:id", services.Get)
	r.POST("/services/:id/start", services.Start)
	r.POST("/services/:id/complete", services.Complete)
	r.POST("/services/:id/cancel", services.Cancel)

	drivers := handlers.NewDriverHandler(deps.Drivers)
	r.POST("/drivers", drivers.Create)
	r.GET("/drivers", drivers.List)
	r.GET("/drivers/:id", drivers.Get)
	r.PUT("/drivers/:id/location", drivers.UpdateLocation)
	r.POST("/drivers/:id/set_available", drivers.SetAvailable)
	r.POST("/drivers/:id/set_offline", drivers.SetOffline)

	addresses := handlers.NewAddressHandler(deps.Addresses)
	r.POST("/addresses", addresses.Create)
	r.GET("/addresses/:id", addresses.Get)

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
