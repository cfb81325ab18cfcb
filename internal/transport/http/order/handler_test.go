package order

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/fulfillment/internal/auth"
	"github.com/Additional-Code/fulfillment/internal/cache"
	"github.com/Additional-Code/fulfillment/internal/config"
	"github.com/Additional-Code/fulfillment/internal/database/dbtest"
	"github.com/Additional-Code/fulfillment/internal/messaging"
	"github.com/Additional-Code/fulfillment/internal/presentation/http/request"
	orderrepo "github.com/Additional-Code/fulfillment/internal/repository/order"
	service "github.com/Additional-Code/fulfillment/internal/service/order"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Kind    string         `json:"kind"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func newServer(t *testing.T) *echo.Echo {
	t.Helper()
	conns := dbtest.New(t)
	svc := service.NewService(service.Params{
		Repository: orderrepo.NewRepository(conns),
		Cache:      cache.NewNoopStore(),
		Logger:     zaptest.NewLogger(t),
		Publisher:  messaging.NewNoopClient("test"),
	})

	e := echo.New()
	e.Validator = request.NewValidator()
	e.Use(auth.Middleware(auth.NewTokenManager(config.Config{})))
	Register(e, NewHandler(svc))
	return e
}

func call(t *testing.T, e *echo.Echo, method, path, dept, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if dept != "" {
		req.Header.Set(auth.HeaderDepartment, dept)
		req.Header.Set(auth.HeaderActor, dept+"-user")
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), rec.Body.String())
	return rec.Code, env
}

const createBody = `{
	"customerOrderId": "WEB-77",
	"customerId": 5,
	"customerPhone": "+6281234567890",
	"totalAmount": "125000",
	"currency": "idr",
	"paymentMethod": "bank_transfer",
	"notes": "leave at the gate",
	"items": [{"productId": 9, "quantity": 2, "unitPrice": "62500"}]
}`

func createOrder(t *testing.T, e *echo.Echo) int64 {
	t.Helper()
	code, env := call(t, e, http.MethodPost, "/orders", "customer", createBody)
	require.Equal(t, http.StatusCreated, code)

	var order struct {
		ID       int64             `json:"id"`
		Status   string            `json:"status"`
		Currency string            `json:"currency"`
		Notes    map[string]string `json:"notes"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &order))
	assert.Equal(t, "pending_payment", order.Status)
	assert.Equal(t, "IDR", order.Currency)
	assert.Equal(t, "leave at the gate", order.Notes["customer"])
	return order.ID
}

func TestCreateAndFetch(t *testing.T) {
	e := newServer(t)
	id := createOrder(t, e)

	code, env := call(t, e, http.MethodGet, fmt.Sprintf("/orders/%d", id), "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)

	code, _ = call(t, e, http.MethodPost, "/orders", "customer", createBody)
	assert.Equal(t, http.StatusConflict, code)

	code, env = call(t, e, http.MethodGet, "/orders/999", "", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", env.Error.Kind)
}

func TestCreateRequiresIdentityAndValidPayload(t *testing.T) {
	e := newServer(t)

	code, env := call(t, e, http.MethodPost, "/orders", "", createBody)
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthorized", env.Error.Kind)

	code, env = call(t, e, http.MethodPost, "/orders", "customer", `{"customerId": 5, "currency": "IDR", "paymentMethod": "cod"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "CustomerOrderID", env.Error.Details["field"])
}

func TestTransitionRoutes(t *testing.T) {
	e := newServer(t)
	id := createOrder(t, e)
	base := fmt.Sprintf("/orders/%d", id)

	code, _ := call(t, e, http.MethodPost, base+"/transitions", "customer",
		`{"expectedStatus": "pending_payment", "targetStatus": "finance_pending"}`)
	require.Equal(t, http.StatusOK, code)

	code, env := call(t, e, http.MethodPost, base+"/transitions", "customer",
		`{"expectedStatus": "pending_payment", "targetStatus": "finance_pending"}`)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "finance_pending", env.Error.Details["actual"])

	code, env = call(t, e, http.MethodPost, base+"/transitions", "finance",
		`{"expectedStatus": "finance_pending", "targetStatus": "finance_approved"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code, "approval must go through the finance routes")
	assert.Equal(t, "illegal_transition", env.Error.Kind)

	code, _ = call(t, e, http.MethodPost, base+"/warehouse/process", "warehouse", `{"status": "warehouse_pending"}`)
	assert.Equal(t, http.StatusConflict, code)

	code, env = call(t, e, http.MethodPost, base+"/warehouse/process", "warehouse", `{"status": "delivered"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "delivered", env.Error.Details["status"])

	code, _ = call(t, e, http.MethodGet, base+"/history", "", "")
	assert.Equal(t, http.StatusOK, code)
}

func TestStageRoutesCancelFromAnyStage(t *testing.T) {
	e := newServer(t)
	id := createOrder(t, e)

	code, env := call(t, e, http.MethodPost, fmt.Sprintf("/orders/%d/transitions", id), "admin",
		`{"expectedStatus": "pending_payment", "targetStatus": "cancelled", "notes": "duplicate order"}`)
	require.Equal(t, http.StatusOK, code)

	var body struct {
		Order struct {
			Status string `json:"status"`
		} `json:"order"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &body))
	assert.Equal(t, "cancelled", body.Order.Status)

	code, env = call(t, e, http.MethodPost, fmt.Sprintf("/orders/%d/logistics/assign", id), "logistics", `{"expectedStatus": "cancelled"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "illegal_transition", env.Error.Kind)
}
