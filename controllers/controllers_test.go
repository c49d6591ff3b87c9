package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"furnistore/cache"
	"furnistore/i18n"
	"furnistore/logging"
	"furnistore/middleware"
	"furnistore/services"
	"furnistore/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newProductRouter(store *testutil.Store) *gin.Engine {
	log := logging.Discard()
	bundle := i18n.MustLoad()
	ctl := &ProductController{
		Base:    Base{R: &middleware.Responder{Bundle: bundle, Log: log}},
		Catalog: services.NewCatalog(store.Products, cache.NewLocal(10, time.Minute), time.Minute, log),
	}
	r := gin.New()
	r.Use(middleware.Locale(bundle))
	r.POST("/products", ctl.Create)
	r.PUT("/products/:id", ctl.Update)
	r.GET("/products", ctl.List)
	return r
}

func send(r *gin.Engine, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func body(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestCreateProduct(t *testing.T) {
	store := testutil.NewStore()
	r := newProductRouter(store)

	w := send(r, http.MethodPost, "/products",
		`{"name":"Oak Table","description":"Solid oak","category":"tables","price":"49.999","stock":3}`, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	data := body(t, w)["data"].(map[string]any)
	assert.Equal(t, "50", data["price"])

	w = send(r, http.MethodGet, "/products", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, body(t, w)["data"], 1)
}

func TestCreateProductValidation(t *testing.T) {
	r := newProductRouter(testutil.NewStore())

	w := send(r, http.MethodPost, "/products", `{"description":"x","category":"tables","price":"10"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	fields := body(t, w)["fields"].(map[string]any)
	assert.Contains(t, fields, "name")

	w = send(r, http.MethodPost, "/products", `{"name":"A","description":"x","category":"tables","price":"0"}`, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, body(t, w)["fields"], "price")

	w = send(r, http.MethodPost, "/products", `not json`, map[string]string{"Accept-Language": "id"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.NotEqual(t, "Invalid request body", body(t, w)["message"])
}

func TestUpdateUnknownProduct(t *testing.T) {
	r := newProductRouter(testutil.NewStore())

	w := send(r, http.MethodPut, "/products/65f0c0ffee0000000000aaaa", `{"stock":4}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Product not found", body(t, w)["message"])
}

func TestHandlersRequirePrincipal(t *testing.T) {
	bundle := i18n.MustLoad()
	ctl := &CartController{Base: Base{R: &middleware.Responder{Bundle: bundle, Log: logging.Discard()}}}
	r := gin.New()
	r.GET("/cart", ctl.Get)

	w := send(r, http.MethodGet, "/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
