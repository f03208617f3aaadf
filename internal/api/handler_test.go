package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"tickify/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	gin.EnableJsonDecoderDisallowUnknownFields()

	router := gin.New()
	NewHandler(nil, nil, nil, nil, nil).SetupRoutes(router)
	return router
}

func TestUpdateTicketTypeRejectsUnknownFields(t *testing.T) {
	router := newTestRouter()

	// total_quantity is not an updatable field; it must 400, not be
	// silently dropped
	body := `{"price_cents": 2500, "total_quantity": 999}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/tickets/tt-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "merch-1")
	req.Header.Set("X-User-Role", models.RoleMerchant)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid request body")
}

func TestUpdateEventRejectsUnknownFields(t *testing.T) {
	router := newTestRouter()

	body := `{"title": "New Title", "status": "published"}`
	req := httptest.NewRequest(http.MethodPatch, "/api/v1/events/event-1", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "merch-1")
	req.Header.Set("X-User-Role", models.RoleMerchant)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAuthRequiredMissingHeaders(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredUnknownRole(t *testing.T) {
	router := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	req.Header.Set("X-User-Id", "user-1")
	req.Header.Set("X-User-Role", "superuser")

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRoleBlocksWrongRole(t *testing.T) {
	router := newTestRouter()

	// order creation is a customer operation
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-Id", "merch-1")
	req.Header.Set("X-User-Role", models.RoleMerchant)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
}
