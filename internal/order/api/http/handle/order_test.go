package handle_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"comandero/internal/order/api/http/handle"
	"comandero/internal/order/app/core"
	"comandero/internal/order/app/services"
	"comandero/internal/order/domain/dto"
	"comandero/internal/order/domain/models"
	"comandero/internal/xpkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	mu         sync.Mutex
	nextID     int64
	orders     map[int64]models.Order
	items      map[int64][]models.OrderItem
	events     map[int64][]models.OrderEvent
	byExternal map[string]int64
}

func newMemRepo() *memRepo {
	return &memRepo{
		nextID:     1,
		orders:     map[int64]models.Order{},
		items:      map[int64][]models.OrderItem{},
		events:     map[int64][]models.OrderEvent{},
		byExternal: map[string]int64{},
	}
}

func (m *memRepo) Create(_ context.Context, order models.Order, items []models.OrderItem) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if order.ExternalID != "" {
		if _, dup := m.byExternal[order.ExternalID]; dup {
			return models.Order{}, core.ErrDuplicateOrder
		}
		m.byExternal[order.ExternalID] = m.nextID
	}
	order.ID = m.nextID
	m.nextID++
	order.Version = 1
	order.CreatedAt = time.Now().UTC()
	order.UpdatedAt = order.CreatedAt
	m.orders[order.ID] = order
	m.items[order.ID] = items
	m.events[order.ID] = append(m.events[order.ID], models.OrderEvent{OrderID: order.ID, EventType: "created", Description: "order created"})
	return order, nil
}

func (m *memRepo) Get(_ context.Context, id int64) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return models.Order{}, core.ErrNotFound
	}
	return order, nil
}

func (m *memRepo) GetDetail(ctx context.Context, id int64) (models.OrderDetail, error) {
	order, err := m.Get(ctx, id)
	if err != nil {
		return models.OrderDetail{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.OrderDetail{Order: order, Items: m.items[id]}, nil
}

func (m *memRepo) GetByExternalID(_ context.Context, externalID string) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.byExternal[externalID]; ok {
		return m.orders[id], nil
	}
	return models.Order{}, core.ErrNotFound
}

func (m *memRepo) List(_ context.Context, filter core.ListFilter) ([]models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.Order{}
	for _, o := range m.orders {
		if o.RestaurantID == filter.TenantID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memRepo) ListKitchenTickets(_ context.Context, tenantID int64) ([]models.OrderDetail, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.OrderDetail{}
	for _, o := range m.orders {
		if o.RestaurantID == tenantID && o.Status == models.StatusPending &&
			(o.OrderType == models.TypeDineIn || o.OrderType == models.TypeTakeout) {
			out = append(out, models.OrderDetail{Order: o, Items: m.items[o.ID]})
		}
	}
	return out, nil
}

func (m *memRepo) ListEvents(_ context.Context, orderID int64) ([]models.OrderEvent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.events[orderID], nil
}

func (m *memRepo) ApplyTransition(_ context.Context, id int64, patch core.TransitionPatch) (core.TransitionResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return core.TransitionResult{}, core.ErrNotFound
	}
	outcome, err := core.ApplyPatch(current, patch)
	if err != nil {
		return core.TransitionResult{}, err
	}
	if len(outcome.Changed) == 0 {
		return core.TransitionResult{Order: current}, nil
	}
	updated := outcome.Order
	updated.Version++
	updated.UpdatedAt = time.Now().UTC()
	m.orders[id] = updated
	m.events[id] = append(m.events[id], outcome.Events...)
	return core.TransitionResult{Order: updated, Changed: outcome.Changed, BecameReady: outcome.BecameReady, AppendedEvents: outcome.Events}, nil
}

func (m *memRepo) ReplaceItems(_ context.Context, id int64, header core.HeaderPatch, items []models.OrderItem) (models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.orders[id]
	if !ok {
		return models.Order{}, core.ErrNotFound
	}
	if current.Status != models.StatusPending && current.Status != models.StatusInProgress {
		return models.Order{}, core.ErrOrderLocked
	}
	current.CustomerName = header.CustomerName
	current.CustomerPhone = header.CustomerPhone
	current.CustomerAddress = header.CustomerAddress
	current.TableNumber = header.TableNumber
	current.Version++
	m.orders[id] = current
	m.items[id] = items
	return current, nil
}

type memTenants struct{}

func (memTenants) TenantOfWaiter(_ context.Context, _ int64) (int64, error) {
	return 0, core.ErrNotFound
}

func (memTenants) TenantOfProduct(_ context.Context, _ int64) (int64, error) {
	return 0, core.ErrNotFound
}

func (memTenants) TenantActive(_ context.Context, tenantID int64) (bool, error) {
	return tenantID == 1, nil
}

type noopFeed struct{}

func (noopFeed) PublishInsert(_ context.Context, _ models.Order) error { return nil }
func (noopFeed) PublishUpdate(_ context.Context, _ int64, _ map[string]any, _ int64) error {
	return nil
}
func (noopFeed) Close() error { return nil }

type noopNotifier struct{}

func (noopNotifier) NotifyReady(_ models.OrderDetail) {}

type testEnv struct {
	svc   *services.OrderService
	repo  *memRepo
	mylog logger.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mylog, err := logger.New("ERROR")
	require.NoError(t, err)

	repo := newMemRepo()
	svc := services.NewOrderService(repo, memTenants{}, noopFeed{}, noopNotifier{}, mylog)
	return &testEnv{svc: svc, repo: repo, mylog: mylog}
}

// withClaims stands in for the bearer middleware: it plants decoded claims on
// the request context the way AuthMiddleware.Require does.
func withClaims(claims core.Claims, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := context.WithValue(r.Context(), handle.ClaimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// muxAs routes the API the way the server does, authenticated as claims.
func (e *testEnv) muxAs(claims core.Claims) *http.ServeMux {
	orders := handle.NewOrderHandler(e.svc, e.mylog)
	kitchen := handle.NewKitchenHandler(e.svc, e.mylog)

	mux := http.NewServeMux()
	mux.Handle("POST /orders", orders.Create())
	mux.Handle("GET /orders/{id}", withClaims(claims, orders.Get()))
	mux.Handle("GET /orders/{id}/events", withClaims(claims, orders.Events()))
	mux.Handle("PATCH /orders/{id}", withClaims(claims, orders.Transition()))
	mux.Handle("GET /kitchen/orders", kitchen.Tickets())
	mux.Handle("POST /kitchen/orders/{id}/ready", kitchen.MarkReady())
	return mux
}

func newTestMux(t *testing.T) (*http.ServeMux, *testEnv) {
	t.Helper()
	env := newTestEnv(t)
	return env.muxAs(core.Claims{Role: core.RoleAdmin, TenantID: 1, ActorID: 1}), env
}

func doJSON(t *testing.T, mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func createBody(externalID string) dto.CreateOrderRequest {
	tenant := int64(1)
	return dto.CreateOrderRequest{
		ExternalID:    externalID,
		CustomerName:  "Ana",
		CustomerPhone: "5551234",
		Items:         []dto.Item{{Name: "burger", Quantity: 2, UnitPrice: 10}},
		TotalAmount:   20,
		RestaurantID:  &tenant,
	}
}

func TestCreateEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/orders", createBody("555_1700000000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var view dto.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "pendiente", view.Status)
	assert.Equal(t, int64(1), view.RestaurantID)

	// Replaying the same external id conflicts.
	rec = doJSON(t, mux, http.MethodPost, "/orders", createBody("555_1700000000"))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateEndpointRejectsBadInput(t *testing.T) {
	mux, _ := newTestMux(t)

	// Delivery without the idempotency key.
	rec := doJSON(t, mux, http.MethodPost, "/orders", createBody(""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unparseable body.
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString("{not json"))
	raw := httptest.NewRecorder()
	mux.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
}

func TestGetEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/orders", createBody("555_1700000000"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/orders/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var view dto.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Items, 1)
	assert.Equal(t, "burger", view.Items[0].Name)

	rec = doJSON(t, mux, http.MethodGet, "/orders/99", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/orders/abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEventsEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/orders", createBody("555_1700000000"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodGet, "/orders/1/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var events []dto.EventView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &events))
	require.Len(t, events, 1)
	assert.Equal(t, "created", events[0].EventType)

	rec = doJSON(t, mux, http.MethodGet, "/orders/99/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTransitionEndpoint(t *testing.T) {
	mux, _ := newTestMux(t)

	rec := doJSON(t, mux, http.MethodPost, "/orders", createBody("555_1700000000"))
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, mux, http.MethodPatch, "/orders/1", map[string]any{"status": "en_proceso"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view dto.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "en_proceso", view.Status)
	assert.Equal(t, int64(2), view.Version)

	// Illegal edge.
	rec = doJSON(t, mux, http.MethodPatch, "/orders/1", map[string]any{"status": "entregado"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Stale version.
	rec = doJSON(t, mux, http.MethodPatch, "/orders/1", map[string]any{"status": "finalizado", "version": 1})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestScopedEndpointsHideForeignTenant(t *testing.T) {
	env := newTestEnv(t)
	owner := env.muxAs(core.Claims{Role: core.RoleAdmin, TenantID: 1, ActorID: 1})
	foreign := env.muxAs(core.Claims{Role: core.RoleAdmin, TenantID: 2, ActorID: 1})

	rec := doJSON(t, owner, http.MethodPost, "/orders", createBody("555_1700000000"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Another restaurant's identity cannot see or move the order; the
	// responses do not reveal that it exists.
	rec = doJSON(t, foreign, http.MethodGet, "/orders/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, foreign, http.MethodGet, "/orders/1/events", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = doJSON(t, foreign, http.MethodPatch, "/orders/1", map[string]any{"status": "en_proceso"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// The owning restaurant is unaffected.
	rec = doJSON(t, owner, http.MethodGet, "/orders/1", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, owner, http.MethodPatch, "/orders/1", map[string]any{"status": "en_proceso"})
	assert.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func TestScopedEndpointsRequireIdentity(t *testing.T) {
	env := newTestEnv(t)
	orders := handle.NewOrderHandler(env.svc, env.mylog)

	req := httptest.NewRequest(http.MethodGet, "/orders/1", nil)
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	orders.Get()(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestKitchenEndpoints(t *testing.T) {
	mux, _ := newTestMux(t)

	body := createBody("")
	body.OrderType = "takeout"
	rec := doJSON(t, mux, http.MethodPost, "/orders", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, mux, http.MethodGet, "/kitchen/orders", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code, "restaurant_id is mandatory")

	rec = doJSON(t, mux, http.MethodGet, "/kitchen/orders?restaurant_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var tickets []dto.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	require.Len(t, tickets, 1)

	rec = doJSON(t, mux, http.MethodPost, "/kitchen/orders/1/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view dto.OrderView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, "finalizado", view.Status)

	// The completed ticket leaves the board.
	rec = doJSON(t, mux, http.MethodGet, "/kitchen/orders?restaurant_id=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	tickets = nil
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tickets))
	assert.Empty(t, tickets)
}
