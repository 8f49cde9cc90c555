package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/catalog"
	"github.com/vladislavdragonenkov/storefront/internal/checkout"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	"github.com/vladislavdragonenkov/storefront/internal/metrics"
	"github.com/vladislavdragonenkov/storefront/internal/reconcile"
	"github.com/vladislavdragonenkov/storefront/internal/service/payment"
	"github.com/vladislavdragonenkov/storefront/internal/session"
	"github.com/vladislavdragonenkov/storefront/internal/storage/memory"
	"github.com/vladislavdragonenkov/storefront/internal/submission"
)

type apiEnv struct {
	handler  http.Handler
	server   *httptest.Server
	registry *session.Registry
	orders   *memory.OrderBackend
	payments *payment.MockService
	printer  *memory.PrintSink
}

func newAPIEnv(t *testing.T) *apiEnv {
	t.Helper()
	env := &apiEnv{
		orders:   memory.NewOrderBackend(),
		payments: payment.NewMockService(),
		printer:  memory.NewPrintSink(),
	}
	env.registry = session.NewRegistry(session.Deps{
		KV:       memory.NewKVStoreFactory(),
		Orders:   env.orders,
		Payments: env.payments,
		Printer:  env.printer,
		Metrics:  metrics.NewCheckoutMetricsWithRegisterer(prometheus.NewRegistry()),
	})
	cache := catalog.NewCache(memory.NewCatalogProvider(memory.DemoCatalog()), 0, nil)
	env.handler = NewHandler(env.registry, cache, nil).Routes()
	env.server = httptest.NewServer(env.handler)
	t.Cleanup(env.server.Close)
	return env
}

func (e *apiEnv) do(t *testing.T, method, path, sessionID string, body interface{}) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sessionID != "" {
		req.Header.Set(SessionHeader, sessionID)
	}
	resp, err := e.server.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestAPI_RequiresSession(t *testing.T) {
	env := newAPIEnv(t)

	resp := env.do(t, http.MethodGet, "/v1/cart", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "session_required", decode[ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodGet, "/v1/catalog", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cat := decode[domain.Catalog](t, resp)
	assert.Len(t, cat.Stores, 2)
}

func TestAPI_CartMutations(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "cart-session"

	resp := env.do(t, http.MethodPost, "/v1/cart/items", sid, map[string]interface{}{
		"productId": "emp-carne",
		"quantity":  2,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[LineResponse](t, resp)
	assert.Equal(t, int64(450), added.Line.PriceMinor, "price comes from the catalog")
	assert.Equal(t, int64(900), added.Totals.Subtotal)

	resp = env.do(t, http.MethodPost, "/v1/cart/items", sid, map[string]interface{}{"productId": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/cart/items", sid, map[string]interface{}{"productId": "emp-carne", "quantity": -1})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPatch, "/v1/cart/items/emp-carne", sid, map[string]interface{}{"quantity": 5})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, decode[CartResponse](t, resp).Totals.ItemCount)

	resp = env.do(t, http.MethodPut, "/v1/cart/delivery", sid, map[string]string{"zone": "Norte"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[CartResponse](t, resp)
	assert.Equal(t, int64(500), view.Totals.DeliveryFee)
	assert.Equal(t, int64(2750), view.Totals.Total)

	resp = env.do(t, http.MethodPut, "/v1/cart/promo", sid, map[string]string{"code": " verano "})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[CartResponse](t, resp)
	require.NotNil(t, view.Cart.PromoCode)
	assert.Equal(t, "VERANO", view.Cart.PromoCode.Code)
	assert.Zero(t, view.Totals.Discount, "unverified promo gives no discount")

	resp = env.do(t, http.MethodPut, "/v1/cart/promo", sid, map[string]string{"code": " "})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/v1/cart/items/missing", sid, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = env.do(t, http.MethodDelete, "/v1/cart", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[CartResponse](t, resp)
	assert.Empty(t, view.Cart.Items)
	assert.Nil(t, view.Cart.PromoCode)

	resp = env.do(t, http.MethodGet, "/v1/cart", "other-session", nil)
	assert.Empty(t, decode[CartResponse](t, resp).Cart.Items, "sessions do not share carts")
}

func TestAPI_AddCombo(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "combo-session"

	resp := env.do(t, http.MethodPost, "/v1/cart/combos", sid, map[string]interface{}{
		"comboId": "combo-docena",
		"picks": []map[string]interface{}{
			{"productId": "emp-carne", "quantity": 4},
			{"productId": "emp-pollo", "quantity": 2},
			{"productId": "soda-cola", "quantity": 1},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	added := decode[LineResponse](t, resp)
	assert.True(t, added.Line.IsCombo)
	assert.Equal(t, int64(2900), added.Line.PriceMinor)
	assert.Len(t, added.Line.ComboDetails, 3)

	resp = env.do(t, http.MethodPost, "/v1/cart/combos", sid, map[string]interface{}{
		"comboId": "combo-docena",
		"picks":   []map[string]interface{}{{"productId": "emp-carne", "quantity": 2}},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "combo_selection_invalid", decode[ErrorResponse](t, resp).Code)

	resp = env.do(t, http.MethodPost, "/v1/cart/combos", sid, map[string]interface{}{"comboId": "nope"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_StepNavigation(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "steps-session"

	resp := env.do(t, http.MethodPost, "/v1/checkout/next", sid, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	step := decode[StepResponse](t, resp)
	assert.False(t, step.Accepted)
	assert.Equal(t, checkout.StepDelivery, step.CurrentStep)
	assert.Equal(t, checkout.MsgRequired, step.Errors[checkout.FieldStore])

	resp = env.do(t, http.MethodPut, "/v1/cart/store", sid, map[string]string{"storeId": "store-norte"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/checkout/steps/customer_info", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	step = decode[StepResponse](t, resp)
	assert.Equal(t, checkout.StepCustomerInfo, step.CurrentStep)

	resp = env.do(t, http.MethodPost, "/v1/checkout/steps/9", sid, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/checkout/prev", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, checkout.StepDelivery, decode[StepResponse](t, resp).CurrentStep)
}

func fillPickupForm(t *testing.T, env *apiEnv, sid string, payment checkout.PaymentChoice) {
	t.Helper()
	resp := env.do(t, http.MethodPut, "/v1/cart/store", sid, map[string]string{"storeId": "store-norte"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp = env.do(t, http.MethodPost, "/v1/cart/items", sid, map[string]interface{}{"productId": "emp-carne", "quantity": 5})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = env.do(t, http.MethodPatch, "/v1/checkout/form", sid, map[string]interface{}{
		"form": map[string]interface{}{
			"deliveryType":  "pickup",
			"customerInfo":  map[string]string{"name": "Ana", "phone": "1155550000"},
			"paymentMethod": payment,
		},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_SubmitCash(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "cash-session"
	fillPickupForm(t, env, sid, checkout.PaymentChoiceCash)

	resp := env.do(t, http.MethodPost, "/v1/checkout/submit", sid, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	outcome := decode[SubmitResponse](t, resp)
	assert.NotEmpty(t, outcome.TrackingOrderID)
	assert.Empty(t, outcome.RedirectURL)
	assert.Len(t, env.printer.Jobs(), 1)

	resp = env.do(t, http.MethodGet, "/v1/cart", sid, nil)
	assert.Empty(t, decode[CartResponse](t, resp).Cart.Items)

	resp = env.do(t, http.MethodGet, "/v1/checkout/status", sid, nil)
	assert.Equal(t, submission.StateCompleted, decode[submission.Status](t, resp).State)
}

func TestAPI_SubmitCompletesAfterClientDisconnect(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "gone-session"
	fillPickupForm(t, env, sid, checkout.PaymentChoiceCash)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/submit", nil).WithContext(ctx)
	req.Header.Set(SessionHeader, sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 1, env.orders.Count())
	assert.Len(t, env.printer.Jobs(), 1)

	resp := env.do(t, http.MethodGet, "/v1/checkout/status", sid, nil)
	status := decode[submission.Status](t, resp)
	assert.Equal(t, submission.StateCompleted, status.State)
	assert.NotEmpty(t, status.OrderID)
}

func TestAPI_ResumeCompletesAfterClientDisconnect(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "gone-online-session"
	fillPickupForm(t, env, sid, checkout.PaymentChoiceMercadoPago)

	env.payments.SetErr(errors.New("provider timeout"))
	resp := env.do(t, http.MethodPost, "/v1/checkout/submit", sid, nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	env.payments.SetErr(nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/v1/checkout/resume", nil).WithContext(ctx)
	req.Header.Set(SessionHeader, sid)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var outcome SubmitResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&outcome))
	assert.True(t, outcome.Resumed)
	assert.NotEmpty(t, outcome.RedirectURL)
	assert.Equal(t, 1, env.orders.Count())
}

func TestAPI_SubmitValidationFailure(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "invalid-session"

	resp := env.do(t, http.MethodPut, "/v1/cart/store", sid, map[string]string{"storeId": "store-norte"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = env.do(t, http.MethodPost, "/v1/checkout/submit", sid, nil)
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "validation_failed", body.Code)
	assert.Contains(t, body.Fields, checkout.FieldCustomerName)
	assert.Zero(t, env.orders.Count())

	resp = env.do(t, http.MethodGet, "/v1/checkout", sid, nil)
	view := decode[CheckoutResponse](t, resp)
	assert.Contains(t, view.Errors, checkout.FieldCustomerName, "field errors are shown on the form")
	assert.Equal(t, submission.StageValidation, view.Submission.FailedStage)
}

func TestAPI_PartialFailureAndResume(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "online-session"
	fillPickupForm(t, env, sid, checkout.PaymentChoiceMercadoPago)

	env.payments.SetErr(errors.New("provider timeout"))
	resp := env.do(t, http.MethodPost, "/v1/checkout/submit", sid, nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	body := decode[ErrorResponse](t, resp)
	assert.Equal(t, "partial_failure", body.Code)
	assert.Equal(t, submission.StagePaymentPreference, body.Stage)
	require.NotEmpty(t, body.OrderID)

	resp = env.do(t, http.MethodGet, "/v1/checkout/status", sid, nil)
	status := decode[submission.Status](t, resp)
	assert.Equal(t, submission.StateFailed, status.State)
	assert.Equal(t, body.OrderID, status.OrderID)

	env.payments.SetErr(nil)
	resp = env.do(t, http.MethodPost, "/v1/checkout/resume", sid, nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	outcome := decode[SubmitResponse](t, resp)
	assert.Equal(t, body.OrderID, outcome.OrderID)
	assert.True(t, outcome.Resumed)
	assert.Contains(t, outcome.RedirectURL, body.OrderID)
	assert.Equal(t, 1, env.orders.Count(), "resume never creates a second order")

	resp = env.do(t, http.MethodPost, "/v1/checkout/resume", sid, nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPI_CheckoutShowsPendingSnapshot(t *testing.T) {
	env := newAPIEnv(t)
	const sid = "returning-session"
	ctx := context.Background()

	order, err := env.orders.CreateOrder(ctx, domain.OrderRequest{PaymentMethod: domain.PaymentMethodMercadoPago})
	require.NoError(t, err)

	sess, err := env.registry.Get(ctx, sid)
	require.NoError(t, err)
	_, err = sess.Cart.SavePendingPaymentTotals(ctx, order.ID)
	require.NoError(t, err)

	resp := env.do(t, http.MethodGet, "/v1/checkout", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view := decode[CheckoutResponse](t, resp)
	assert.Equal(t, reconcile.SourceSnapshot, view.TotalsSource)
	assert.Equal(t, order.ID, view.PendingOrder)

	require.NoError(t, env.orders.SetStatus(order.ID, domain.OrderStatusPaid))
	resp = env.do(t, http.MethodGet, "/v1/checkout", sid, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	view = decode[CheckoutResponse](t, resp)
	assert.Equal(t, reconcile.SourceLive, view.TotalsSource, "paid order must not keep snapshot totals")
	assert.Empty(t, view.PendingOrder)

	_, found, err := sess.Cart.LoadPendingPayment(ctx)
	require.NoError(t, err)
	assert.False(t, found)
}
