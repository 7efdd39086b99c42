// README: Google Directions client used as the live ETA router (driving, departure now, best-guess traffic).
package maps

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"pickup/internal/geo"

	"googlemaps.github.io/maps"
)

var ErrNoRoute = errors.New("no route found")

// RouteOptions tunes the Directions request. Zero values are omitted.
type RouteOptions struct {
	Language     string
	Region       string
	Alternatives bool
	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
	// BaseURL points the client at a different host, mainly for tests.
	BaseURL string
}

// RouteService handles interactions with Google Maps API.
type RouteService struct {
	client *maps.Client
	opts   RouteOptions
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string, opts RouteOptions) (*RouteService, error) {
	clientOpts := []maps.ClientOption{maps.WithAPIKey(apiKey)}
	if opts.HTTPClient != nil {
		clientOpts = append(clientOpts, maps.WithHTTPClient(opts.HTTPClient))
	}
	if opts.BaseURL != "" {
		clientOpts = append(clientOpts, maps.WithBaseURL(opts.BaseURL))
	}
	client, err := maps.NewClient(clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &RouteService{client: client, opts: opts}, nil
}

// Route returns the traffic-aware driving time from origin to destination.
// The first leg of the first route is used; its duration in traffic wins
// over the plain duration when present.
func (s *RouteService) Route(ctx context.Context, origin, destination geo.Point) (time.Duration, error) {
	r := &maps.DirectionsRequest{
		Origin:        origin.String(),
		Destination:   destination.String(),
		Mode:          maps.TravelModeDriving,
		DepartureTime: "now",
		TrafficModel:  maps.TrafficModelBestGuess,
		Units:         maps.UnitsMetric,
		Language:      s.opts.Language,
		Region:        s.opts.Region,
		Alternatives:  s.opts.Alternatives,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return 0, fmt.Errorf("maps api error: %w", err)
	}

	if len(routes) == 0 || len(routes[0].Legs) == 0 || routes[0].Legs[0] == nil {
		return 0, ErrNoRoute
	}

	leg := routes[0].Legs[0]
	d := leg.DurationInTraffic
	if d <= 0 {
		d = leg.Duration
	}
	if d <= 0 {
		return 0, fmt.Errorf("%w: non-positive duration", ErrNoRoute)
	}
	return d, nil
}
