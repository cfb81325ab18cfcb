package inventory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	repo "github.com/Additional-Code/fulfillment/internal/repository/inventory"
	orderrepo "github.com/Additional-Code/fulfillment/internal/repository/order"
	service "github.com/Additional-Code/fulfillment/internal/service/inventory"
)

func TestRegisterWasteAndStock(t *testing.T) {
	conns := dbtest.New(t)
	svc := service.NewService(service.Params{
		Repository: repo.NewRepository(conns),
		Orders:     orderrepo.NewRepository(conns),
		Publisher:  messaging.NewNoopClient("test"),
		Config:     config.Config{Inventory: config.Inventory{DefaultLowStockThreshold: 10}},
		Logger:     zaptest.NewLogger(t),
	})

	e := echo.New()
	e.Validator = request.NewValidator()
	e.Use(auth.Middleware(auth.NewTokenManager(config.Config{})))
	Register(e, NewHandler(svc))

	call := func(method, path, body string) (int, map[string]any) {
		req := httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(auth.HeaderDepartment, "warehouse")
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		var out map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
		return rec.Code, out
	}

	code, body := call(http.MethodPost, "/inventory", `{"productId": 4, "stockQuantity": 40, "minStockLevel": 5}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, float64(10), body["data"].(map[string]any)["lowStockThreshold"])

	code, body = call(http.MethodPost, "/inventory/4/waste", `{"wasteAmount": 32, "reason": "contaminated batch"}`)
	require.Equal(t, http.StatusOK, code)
	record := body["data"].(map[string]any)["inventoryRecord"].(map[string]any)
	assert.Equal(t, float64(8), record["finalInventory"])
	assert.Equal(t, "low_stock", record["level"])

	code, _ = call(http.MethodPost, "/inventory/4/stock", `{"delta": -41, "reason": "recount"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = call(http.MethodPost, "/inventory/4/waste", `{"wasteAmount": 1}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = call(http.MethodGet, "/inventory/4/adjustments?limit=5", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["data"], 1)

	code, _ = call(http.MethodGet, "/inventory/5", "")
	assert.Equal(t, http.StatusNotFound, code)
}
