package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"furnistore/cache"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/metrics"
	"furnistore/middleware"
	"furnistore/models"
	"furnistore/notify"
	"furnistore/ratelimit"
	"furnistore/services"
	"furnistore/testutil"
)

const origin = "https://shop.example.com"

func init() {
	gin.SetMode(gin.TestMode)
}

type server struct {
	t        *testing.T
	engine   *gin.Engine
	store    *testutil.Store
	gateway  *testutil.Gateway
	accounts *services.Accounts
	healthy  error
}

func newServer(t *testing.T) *server {
	t.Helper()
	store := testutil.NewStore()
	gw := testutil.NewGateway("whsec_test")
	m := metrics.New(prometheus.NewRegistry())
	log := logging.Discard()
	bundle := i18n.MustLoad()

	accounts := services.NewAccounts(store.Users, "test-secret", time.Hour)
	dispatcher := notify.NewDispatcher(store.Outbox, notify.LogSender{Log: log}, m, log)
	s := &server{t: t, store: store, gateway: gw, accounts: accounts}

	s.engine = NewEngine(Deps{
		Responder: &middleware.Responder{Bundle: bundle, Log: log},
		Accounts:  accounts,
		Catalog:   services.NewCatalog(store.Products, cache.NewLocal(100, time.Minute), time.Minute, log),
		Carts:     services.NewCarts(store, store.Carts, store.Products),
		Orders:    services.NewOrders(store, store.Orders, store.Products, gw, "usd", origin, m, log),
		Reconciler: services.NewReconciler(services.ReconcilerDeps{
			Tx:       store,
			Orders:   store.Orders,
			Carts:    store.Carts,
			Products: store.Products,
			Events:   store.WebhookEvents,
			Outbox:   store.Outbox,
			Gateway:  gw,
			Mailer:   dispatcher,
			Bundle:   bundle,
			Metrics:  m,
			Log:      log,
		}),
		Relay:           dispatcher,
		Metrics:         m,
		Log:             log,
		AllowedOrigins:  []string{origin},
		MaxBodyBytes:    4096,
		RequestTimeout:  5 * time.Second,
		CheckoutLimiter: ratelimit.NewLocal(100, ratelimit.Rule{Limit: 3, Window: time.Minute}),
		Health:          func(context.Context) error { return s.healthy },
	})
	return s
}

func (s *server) do(method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	s.t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(s.t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func browser(token string) http.Header {
	h := http.Header{}
	h.Set("Origin", origin)
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (s *server) login(email, password string) string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/login", gin.H{"email": email, "password": password}, browser(""))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode(s.t, w)["token"].(string)
}

func (s *server) customer() string {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/register",
		gin.H{"name": "Ana", "email": "ana@example.com", "password": "correct-horse"}, browser(""))
	require.Equal(s.t, http.StatusCreated, w.Code, w.Body.String())
	return s.login("ana@example.com", "correct-horse")
}

func (s *server) admin() string {
	s.t.Helper()
	_, err := s.accounts.CreateAdmin(context.Background(), services.RegisterInput{
		Name: "Root", Email: "root@example.com", Password: "admin-password",
	})
	require.NoError(s.t, err)
	return s.login("root@example.com", "admin-password")
}

func (s *server) product(price string, stock int) models.Product {
	return s.store.Products.Seed(models.Product{
		Name:     "Oak Table",
		Category: "tables",
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
	})[0]
}

func (s *server) order(idHex string) models.Order {
	s.t.Helper()
	id, err := primitive.ObjectIDFromHex(idHex)
	require.NoError(s.t, err)
	o, err := s.store.Orders.Get(context.Background(), id)
	require.NoError(s.t, err)
	return o
}

func checkoutBody(p models.Product, qty int) gin.H {
	return gin.H{
		"name": "Ana", "email": "ana@example.com", "address": "1 Elm St",
		"city": "Springfield", "country": "US", "zip": "12345",
		"items": []gin.H{{"productId": p.ID.Hex(), "quantity": qty}},
	}
}

func (s *server) checkout(token string, p models.Product, qty int) map[string]any {
	s.t.Helper()
	w := s.do(http.MethodPost, "/api/user/checkout", checkoutBody(p, qty), browser(token))
	require.Equal(s.t, http.StatusOK, w.Code, w.Body.String())
	return decode(s.t, w)
}

func (s *server) webhook(payload []byte, header http.Header) *httptest.ResponseRecorder {
	return s.do(http.MethodPost, "/api/webhooks/payment", payload, header)
}

func TestCheckoutAndPaymentFlow(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 10)

	res := s.checkout(token, p, 2)
	assert.Equal(t, "sess_1", res["id"])
	assert.Equal(t, "https://pay.example.com/sess_1", res["url"])

	order := s.order(res["orderId"].(string))
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, decimal.RequireFromString("100").Equal(order.TotalAmount))

	payload, header := s.gateway.PaidWebhook("evt_1", order)
	w := s.webhook(payload, header)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, map[string]any{"received": true, "duplicate": false}, decode(t, w))

	paid := s.order(order.ID.Hex())
	assert.Equal(t, models.OrderPaid, paid.Status)

	w = s.webhook(payload, header)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]any{"received": true, "duplicate": true}, decode(t, w))

	msgs := s.store.Outbox.All()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.OutboxSent, msgs[0].Status)
}

func TestWebhookInvalidSignature(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 10)
	order := s.order(s.checkout(token, p, 1)["orderId"].(string))

	payload, header := s.gateway.PaidWebhook("evt_1", order)
	header.Set(testutil.SignatureHeader, "bogus")
	w := s.webhook(payload, header)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid webhook signature", decode(t, w)["message"])
	assert.Equal(t, models.OrderPending, s.order(order.ID.Hex()).Status)
	assert.Zero(t, s.store.WebhookEvents.Count())
}

func TestWebhookIgnoresOriginButNotBodyLimit(t *testing.T) {
	s := newServer(t)
	payload, header := s.gateway.Webhook(testutil.WebhookBody{ID: "evt_other", Type: "charge.refunded"})
	header.Set("Origin", "https://provider.example.net")

	w := s.webhook(payload, header)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())

	big := []byte(`{"id":"evt_big","pad":"` + strings.Repeat("x", 5000) + `"}`)
	w = s.webhook(big, http.Header{})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestCheckoutRejectsCrossOrigin(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 10)

	h := browser(token)
	h.Set("Origin", "https://evil.example.com")
	w := s.do(http.MethodPost, "/api/user/checkout", checkoutBody(p, 1), h)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Empty(t, s.gateway.Requests)
}

func TestCheckoutErrors(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 1)

	w := s.do(http.MethodPost, "/api/user/checkout", checkoutBody(p, 1), browser(""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(http.MethodPost, "/api/user/checkout", checkoutBody(p, 5), browser(token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Not enough stock for Oak Table, available: 1", decode(t, w)["message"])

	w = s.do(http.MethodPost, "/api/user/checkout", []byte(`{"items":`), browser(token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "Invalid request body", decode(t, w)["message"])

	body := checkoutBody(p, 1)
	delete(body, "email")
	w = s.do(http.MethodPost, "/api/user/checkout", body, browser(token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, decode(t, w)["fields"], "email")
}

func TestCheckoutRateLimited(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 100)

	for i := 0; i < 3; i++ {
		s.checkout(token, p, 1)
	}
	w := s.do(http.MethodPost, "/api/user/checkout", checkoutBody(p, 1), browser(token))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
}

func TestAdminStatusTransition(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("50.00", 10)
	orderID := s.checkout(token, p, 1)["orderId"].(string)

	w := s.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", gin.H{"status": "SHIPPED"}, browser(token))
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := s.admin()
	w = s.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", gin.H{"status": "SHIPPED"}, browser(admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OrderShipped, s.order(orderID).Status)

	w = s.do(http.MethodPatch, "/api/admin/orders/"+orderID+"/status", gin.H{"status": "PAID"}, browser(admin))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = s.do(http.MethodPatch, "/api/admin/orders/"+primitive.NewObjectID().Hex()+"/status", gin.H{"status": "SHIPPED"}, browser(admin))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodGet, "/api/admin/orders?status=shipped", nil, browser(admin))
	require.Equal(t, http.StatusOK, w.Code)
	data := decode(t, w)["data"].(map[string]any)
	assert.Equal(t, float64(1), data["total"])
}

func TestCustomerOrdersAndCart(t *testing.T) {
	s := newServer(t)
	token := s.customer()
	p := s.product("19.99", 10)

	w := s.do(http.MethodPost, "/api/user/cart", gin.H{"productId": p.ID.Hex(), "quantity": 2}, browser(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/user/cart", nil, browser(token))
	require.Equal(t, http.StatusOK, w.Code)
	cart := decode(t, w)["data"].(map[string]any)
	assert.Len(t, cart["items"], 1)

	w = s.do(http.MethodPut, "/api/user/cart/"+p.ID.Hex(), gin.H{"quantity": 0}, browser(token))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Product removed from cart", decode(t, w)["message"])

	orderID := s.checkout(token, p, 1)["orderId"].(string)
	w = s.do(http.MethodGet, "/api/user/orders/"+orderID, nil, browser(token))
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPut, "/api/user/orders/"+orderID+"/cancel", nil, browser(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OrderCanceled, s.order(orderID).Status)

	w = s.do(http.MethodPut, "/api/user/orders/"+orderID+"/cancel", nil, browser(token))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestLogoutRevokesToken(t *testing.T) {
	s := newServer(t)
	token := s.customer()

	w := s.do(http.MethodPost, "/api/logout", nil, browser(token))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodGet, "/api/user/cart", nil, browser(token))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPublicCatalog(t *testing.T) {
	s := newServer(t)
	p := s.product("50.00", 10)

	w := s.do(http.MethodGet, "/api/products?category=tables", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 1)

	w = s.do(http.MethodGet, "/api/products/"+p.ID.Hex(), nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/products/not-an-id", nil, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestAdminRelayOutbox(t *testing.T) {
	s := newServer(t)
	admin := s.admin()
	require.NoError(t, s.store.Outbox.Enqueue(context.Background(), models.OutboxMessage{
		ID: "msg-1", To: "ana@example.com", Subject: "hi", Status: models.OutboxPending, CreatedAt: time.Now(),
	}))

	w := s.do(http.MethodPost, "/api/admin/outbox/relay", nil, browser(admin))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.OutboxSent, s.store.Outbox.All()[0].Status)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)

	w := s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	s.healthy = errors.New("no primary")
	w = s.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "furnistore_http_requests_total")
}
