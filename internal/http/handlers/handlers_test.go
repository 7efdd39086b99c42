// README: Handler tests over a Gin engine with in-memory service fakes.
package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pickup/internal/geo"
	"pickup/internal/http/handlers"
	"pickup/internal/modules/address"
	"pickup/internal/modules/driver"
	"pickup/internal/modules/eta"
	"pickup/internal/modules/matching"
	"pickup/internal/modules/pickup"
	"pickup/internal/types"
)

type fakeAddresses struct {
	items map[types.ID]*address.Address
	err   error
}

func (f *fakeAddresses) Create(ctx context.Context, cmd address.CreateCommand) (*address.Address, error) {
	if cmd.Street == "" {
		return nil, address.ErrBadRequest
	}
	a := &address.Address{ID: types.NewID(), Street: cmd.Street, City: cmd.City, State: cmd.State,
		ZipCode: cmd.ZipCode, Country: cmd.Country, Location: cmd.Location}
	f.items[a.ID] = a
	return a, nil
}

func (f *fakeAddresses) Get(ctx context.Context, id types.ID) (*address.Address, error) {
	if f.err != nil {
		return nil, f.err
	}
	a, ok := f.items[id]
	if !ok {
		return nil, address.ErrNotFound
	}
	return a, nil
}

type fakeDispatcher struct {
	got *matching.DispatchCommand
	err error
}

func (f *fakeDispatcher) Dispatch(ctx context.Context, cmd matching.DispatchCommand) (*matching.Assignment, error) {
	f.got = &cmd
	if f.err != nil {
		return nil, f.err
	}
	d := driver.Driver{ID: types.NewID(), FirstName: "Carlos", Status: driver.StatusInService,
		Location: &geo.Point{Lat: 4.6584, Lng: -74.0936}}
	eta7 := 7*time.Minute + 5*time.Second
	now := time.Now().UTC()
	return &matching.Assignment{
		Request: &pickup.Request{
			ID: types.NewID(), CustomerName: cmd.CustomerName, CustomerPhone: cmd.CustomerPhone,
			PickupAddressID: cmd.PickupAddressID, Pickup: *cmd.Pickup, DriverID: &d.ID,
			Status: pickup.StatusAssigned, EstimatedArrival: &eta7, RequestedAt: now, AssignedAt: &now,
		},
		Driver: d,
		ETA:    eta.Result{Duration: eta7, Source: eta.SourceFallback},
	}, nil
}

type fakePickups struct {
	err error
}

func (f *fakePickups) result(id types.ID, s pickup.Status) (*pickup.Request, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &pickup.Request{ID: id, Status: s}, nil
}

func (f *fakePickups) Get(ctx context.Context, id types.ID) (*pickup.Request, error) {
	return f.result(id, pickup.StatusAssigned)
}

func (f *fakePickups) Start(ctx context.Context, cmd pickup.StartCommand) (*pickup.Request, error) {
	return f.result(cmd.RequestID, pickup.StatusInProgress)
}

func (f *fakePickups) Complete(ctx context.Context, cmd pickup.CompleteCommand) (*pickup.Request, error) {
	return f.result(cmd.RequestID, pickup.StatusCompleted)
}

func (f *fakePickups) Cancel(ctx context.Context, cmd pickup.CancelCommand) (*pickup.Request, error) {
	r, err := f.result(cmd.RequestID, pickup.StatusCancelled)
	if r != nil && cmd.Reason != "" {
		r.CancelReason = &cmd.Reason
	}
	return r, err
}

type fakeDrivers struct {
	err      error
	lastList driver.ListQuery
}

func (f *fakeDrivers) Create(ctx context.Context, cmd driver.CreateCommand) (*driver.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &driver.Driver{ID: types.NewID(), FirstName: cmd.FirstName, Email: cmd.Email,
		Status: driver.StatusAvailable, Location: cmd.Location}, nil
}

func (f *fakeDrivers) Get(ctx context.Context, id types.ID) (*driver.Driver, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &driver.Driver{ID: id, Status: driver.StatusAvailable}, nil
}

func (f *fakeDrivers) List(ctx context.Context, q driver.ListQuery) ([]driver.Driver, error) {
	if q.Status != "" && !q.Status.Valid() {
		return nil, driver.ErrBadRequest
	}
	f.lastList = q
	return []driver.Driver{{ID: types.NewID(), Status: driver.StatusAvailable}}, f.err
}

func (f *fakeDrivers) UpdateLocation(ctx context.Context, cmd driver.UpdateLocationCommand) (*driver.Driver, error) {
	if !cmd.Location.Valid() {
		return nil, driver.ErrBadRequest
	}
	loc := cmd.Location
	return &driver.Driver{ID: cmd.DriverID, Location: &loc}, nil
}

func (f *fakeDrivers) SetAvailable(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return &driver.Driver{ID: id, Status: driver.StatusAvailable}, f.err
}

func (f *fakeDrivers) SetOffline(ctx context.Context, id types.ID) (*driver.Driver, error) {
	return &driver.Driver{ID: id, Status: driver.StatusOffline}, f.err
}

type testEnv struct {
	router     *gin.Engine
	addresses  *fakeAddresses
	dispatcher *fakeDispatcher
	pickups    *fakePickups
	drivers    *fakeDrivers
}

func newEnv() *testEnv {
	gin.SetMode(gin.TestMode)
	env := &testEnv{
		addresses:  &fakeAddresses{items: map[types.ID]*address.Address{}},
		dispatcher: &fakeDispatcher{},
		pickups:    &fakePickups{},
		drivers:    &fakeDrivers{},
	}
	r := gin.New()
	sh := handlers.NewServiceHandler(env.dispatcher, env.pickups, env.addresses)
	r.POST("/services", sh.Create)
	r.GET("/services/:id", sh.Get)
	r.POST("/services/:id/start", sh.Start)
	r.POST("/services/:id/complete", sh.Complete)
	r.POST("/services/:id/cancel", sh.Cancel)
	dh := handlers.NewDriverHandler(env.drivers)
	r.POST("/drivers", dh.Create)
	r.GET("/drivers", dh.List)
	r.GET("/drivers/:id", dh.Get)
	r.PUT("/drivers/:id/location", dh.UpdateLocation)
	r.POST("/drivers/:id/set_offline", dh.SetOffline)
	ah := handlers.NewAddressHandler(env.addresses)
	r.POST("/addresses", ah.Create)
	r.GET("/addresses/:id", ah.Get)
	env.router = r
	return env
}

func (e *testEnv) addAddress(loc *geo.Point) types.ID {
	a := &address.Address{ID: types.NewID(), Street: "Calle 26", City: "Bogotá", Location: loc}
	e.addresses.items[a.ID] = a
	return a.ID
}

func doRequest(r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestCreateService_Assigns(t *testing.T) {
	env := newEnv()
	pickupAt := geo.Point{Lat: 4.6627, Lng: -74.0576}
	addrID := env.addAddress(&pickupAt)

	w := doRequest(env.router, http.MethodPost, "/services", map[string]any{
		"customer_name":     "Laura Gómez",
		"customer_phone":    "3001234567",
		"pickup_address_id": addrID,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	body := decode(t, w)
	assert.Equal(t, "assigned", body["status"])
	assert.Equal(t, "00:07:05", body["estimated_arrival"])
	assert.EqualValues(t, 425, body["estimated_arrival_seconds"])
	assert.Equal(t, "fallback", body["eta_source"])
	drv, ok := body["driver"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "in_service", drv["status"])

	require.NotNil(t, env.dispatcher.got)
	assert.Equal(t, pickupAt, *env.dispatcher.got.Pickup)
	assert.Equal(t, addrID, *env.dispatcher.got.PickupAddressID)
}

func TestCreateService_BadInput(t *testing.T) {
	env := newEnv()
	noCoords := env.addAddress(nil)

	cases := map[string]map[string]any{
		"missing fields":        {"customer_name": "x"},
		"malformed address id":  {"customer_name": "x", "customer_phone": "1", "pickup_address_id": "12"},
		"unknown address":       {"customer_name": "x", "customer_phone": "1", "pickup_address_id": types.NewID()},
		"address without point": {"customer_name": "x", "customer_phone": "1", "pickup_address_id": noCoords},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := doRequest(env.router, http.MethodPost, "/services", body)
			assert.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			assert.NotEmpty(t, decode(t, w)["detail"])
		})
	}
	assert.Nil(t, env.dispatcher.got, "dispatch must not run on bad input")
}

func TestCreateService_DispatchErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		reason string
	}{
		{"no drivers", matching.ErrNoAvailableDriver, http.StatusNotFound, handlers.ReasonNoAvailableDrivers},
		{"validation", matching.ErrValidation, http.StatusBadRequest, ""},
		{"commit", errors.Join(matching.ErrCommitFailed, errors.New("insert")), http.StatusInternalServerError, ""},
		{"other", errors.New("boom"), http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			env := newEnv()
			env.dispatcher.err = tc.err
			addrID := env.addAddress(&geo.Point{Lat: 1, Lng: 1})

			w := doRequest(env.router, http.MethodPost, "/services", map[string]any{
				"customer_name": "x", "customer_phone": "1", "pickup_address_id": addrID,
			})
			assert.Equal(t, tc.status, w.Code)
			if tc.reason != "" {
				assert.Equal(t, tc.reason, decode(t, w)["reason"])
			}
		})
	}
}

func TestServiceLifecycleEndpoints(t *testing.T) {
	env := newEnv()
	id := types.NewID()

	w := doRequest(env.router, http.MethodPost, "/services/"+string(id)+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "completed", decode(t, w)["status"])

	w = doRequest(env.router, http.MethodPost, "/services/"+string(id)+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "in_progress", decode(t, w)["status"])

	w = doRequest(env.router, http.MethodPost, "/services/"+string(id)+"/cancel", map[string]any{"reason": "no show"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "cancelled", body["status"])
	assert.Equal(t, "no show", body["cancellation_reason"])

	w = doRequest(env.router, http.MethodGet, "/services/"+string(id), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, decode(t, w)["estimated_arrival"])
}

func TestServiceLifecycleErrors(t *testing.T) {
	cases := map[error]int{
		pickup.ErrNotFound:     http.StatusNotFound,
		pickup.ErrInvalidState: http.StatusConflict,
		pickup.ErrConflict:     http.StatusConflict,
		pickup.ErrBadRequest:   http.StatusBadRequest,
	}
	for err, status := range cases {
		env := newEnv()
		env.pickups.err = err
		w := doRequest(env.router, http.MethodPost, "/services/"+string(types.NewID())+"/complete", nil)
		assert.Equal(t, status, w.Code, err.Error())
	}
}

func TestDriverEndpoints(t *testing.T) {
	env := newEnv()

	w := doRequest(env.router, http.MethodPost, "/drivers", map[string]any{
		"first_name": "Carlos", "last_name": "Pérez", "email": "c@example.com", "phone": "300",
		"latitude": 4.6584, "longitude": -74.0936,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "available", body["status"])
	loc, ok := body["current_location"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 4.6584, loc["lat"], 1e-9)

	w = doRequest(env.router, http.MethodPost, "/drivers", map[string]any{
		"first_name": "Carlos", "last_name": "Pérez", "email": "c@example.com", "phone": "300",
		"latitude": 4.6584,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	id := string(types.NewID())
	w = doRequest(env.router, http.MethodPut, "/drivers/"+id+"/location", map[string]any{"latitude": 0, "longitude": 0})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doRequest(env.router, http.MethodPut, "/drivers/"+id+"/location", map[string]any{"latitude": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(env.router, http.MethodPost, "/drivers/"+id+"/set_offline", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "offline", decode(t, w)["status"])

	env.drivers.err = driver.ErrNotFound
	w = doRequest(env.router, http.MethodGet, "/drivers/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	env.drivers.err = driver.ErrDuplicateEmail
	w = doRequest(env.router, http.MethodPost, "/drivers", map[string]any{
		"first_name": "a", "last_name": "b", "email": "c@example.com", "phone": "1",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAddressEndpoints(t *testing.T) {
	env := newEnv()

	w := doRequest(env.router, http.MethodPost, "/addresses", map[string]any{
		"street": "Calle 26", "city": "Bogotá", "state": "Cundinamarca", "zip_code": "111321", "country": "Colombia",
		"latitude": 4.6627, "longitude": -74.0576,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)

	w = doRequest(env.router, http.MethodGet, "/addresses/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Bogotá", decode(t, w)["city"])

	w = doRequest(env.router, http.MethodGet, "/addresses/"+string(types.NewID()), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doRequest(env.router, http.MethodPost, "/addresses", map[string]any{"street": "x"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListDrivers(t *testing.T) {
	env := newEnv()

	w := doRequest(env.router, http.MethodGet, "/drivers?status=available&limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "available", out[0]["status"])
	assert.Equal(t, driver.ListQuery{Status: driver.StatusAvailable, Limit: 10}, env.drivers.lastList)

	w = doRequest(env.router, http.MethodGet, "/drivers?limit=ten", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doRequest(env.router, http.MethodGet, "/drivers?status=busy", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
