package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"payment-gateway/internal/config"
	"payment-gateway/internal/engine"
	"payment-gateway/internal/idgen"
	"payment-gateway/internal/ledger"
	"payment-gateway/internal/model"
	"payment-gateway/internal/settlement"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type downStore struct {
	*ledger.MemoryStore
}

func (downStore) Ping(context.Context) error {
	return errors.New("connection refused")
}

type HandlerTestSuite struct {
	suite.Suite
	store     *ledger.MemoryStore
	simulator *settlement.Simulator
	router    *gin.Engine
}

func (s *HandlerTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (s *HandlerTestSuite) SetupTest() {
	s.store = ledger.NewMemoryStore(ledger.TestMerchant())
	s.simulator = settlement.NewSimulator(config.Settlement{
		TestMode:    true,
		TestSuccess: true,
		TestDelay:   20 * time.Millisecond,
		Parallelism: 10,
	}, discard)
	eng := engine.New(s.store, idgen.New(11), s.simulator, discard)
	s.router = NewHandler(eng, s.store, discard, true).Router()
}

func (s *HandlerTestSuite) TearDownTest() {
	s.Require().NoError(s.simulator.Shutdown(context.Background()))
}

func (s *HandlerTestSuite) do(method, path string, body any, authed bool) *httptest.ResponseRecorder {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		reader = bytes.NewBuffer(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authed {
		req.Header.Set(HeaderAPIKey, ledger.TestMerchantKey)
		req.Header.Set(HeaderAPISecret, ledger.TestMerchantSecret)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	body := decode[map[string]map[string]string](t, rec)
	return body["error"]["code"]
}

func (s *HandlerTestSuite) createOrder(amount int64) map[string]any {
	rec := s.do(http.MethodPost, "/api/v1/orders", map[string]any{"amount": amount}, true)
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return decode[map[string]any](s.T(), rec)
}

func (s *HandlerTestSuite) TestUPIPaymentSettlesAndPaysOrder() {
	t := s.T()

	order := s.createOrder(500)
	assert.Equal(t, "created", order["status"])
	assert.Equal(t, float64(500), order["amount"])
	assert.Equal(t, "INR", order["currency"])

	rec := s.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": order["id"],
		"method":   "upi",
		"vpa":      "alice@bank",
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payment := decode[map[string]any](t, rec)
	assert.Equal(t, "processing", payment["status"])
	assert.Equal(t, "upi", payment["method"])
	assert.Equal(t, "alice@bank", payment["vpa"])
	assert.NotContains(t, payment, "card_network")
	assert.NotContains(t, payment, "merchant_id")

	paymentPath := "/api/v1/payments/" + payment["id"].(string)
	assert.Eventually(t, func() bool {
		rec := s.do(http.MethodGet, paymentPath, nil, true)
		return rec.Code == http.StatusOK && decode[map[string]any](t, rec)["status"] == "success"
	}, 2*time.Second, 10*time.Millisecond)

	rec = s.do(http.MethodGet, "/api/v1/orders/"+order["id"].(string), nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "paid", decode[map[string]any](t, rec)["status"])
}

func (s *HandlerTestSuite) TestCreateOrder_AmountTooSmall() {
	rec := s.do(http.MethodPost, "/api/v1/orders", map[string]any{"amount": 50}, true)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "BAD_REQUEST_ERROR", errorCode(s.T(), rec))
}

func (s *HandlerTestSuite) TestCreateOrder_MalformedBody() {
	rec := s.do(http.MethodPost, "/api/v1/orders", `{"amount":`, true)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "BAD_REQUEST_ERROR", errorCode(s.T(), rec))
}

func (s *HandlerTestSuite) TestCreatePayment_InvalidCard() {
	order := s.createOrder(500)

	rec := s.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": order["id"],
		"method":   "card",
		"card": map[string]any{
			"number":       "4111111111111112",
			"expiry_month": 12,
			"expiry_year":  "30",
			"cvv":          "123",
			"holder_name":  "Alice",
		},
	}, true)

	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "INVALID_CARD", errorCode(s.T(), rec))
}

func (s *HandlerTestSuite) TestCreatePayment_CardWithNumericExpiry() {
	t := s.T()
	order := s.createOrder(500)

	rec := s.do(http.MethodPost, "/api/v1/payments", map[string]any{
		"order_id": order["id"],
		"method":   "card",
		"card": map[string]any{
			"number":       "5500 0000 0000 0004",
			"expiry_month": 12,
			"expiry_year":  30,
			"cvv":          123,
			"holder_name":  "Alice",
		},
	}, true)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	payment := decode[map[string]any](t, rec)
	assert.Equal(t, "mastercard", payment["card_network"])
	assert.Equal(t, "0004", payment["card_last4"])
	assert.NotContains(t, payment, "vpa")
}

func (s *HandlerTestSuite) TestCreatePayment_InvalidVPAAndMethod() {
	order := s.createOrder(500)

	rec := s.do(http.MethodPost, "/api/v1/payments", map[string]any{"order_id": order["id"], "method": "upi", "vpa": "user name@bank"}, true)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "INVALID_VPA", errorCode(s.T(), rec))

	rec = s.do(http.MethodPost, "/api/v1/payments", map[string]any{"order_id": order["id"], "method": "wallet"}, true)
	assert.Equal(s.T(), http.StatusBadRequest, rec.Code)
	assert.Equal(s.T(), "BAD_REQUEST_ERROR", errorCode(s.T(), rec))

	rec = s.do(http.MethodPost, "/api/v1/payments", map[string]any{"order_id": "order_unknown", "method": "upi", "vpa": "a@b"}, true)
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	assert.Equal(s.T(), "NOT_FOUND_ERROR", errorCode(s.T(), rec))
}

func (s *HandlerTestSuite) TestGetPayment_Unknown() {
	rec := s.do(http.MethodGet, "/api/v1/payments/pay_"+uuid.NewString()[:16], nil, true)

	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
	assert.Equal(s.T(), "NOT_FOUND_ERROR", errorCode(s.T(), rec))
}

func (s *HandlerTestSuite) TestAuthentication() {
	t := s.T()

	rec := s.do(http.MethodPost, "/api/v1/orders", map[string]any{"amount": 500}, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":{"code":"AUTHENTICATION_ERROR","description":"Invalid API credentials"}}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set(HeaderAPIKey, ledger.TestMerchantKey)
	req.Header.Set(HeaderAPISecret, "wrong")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	inactive := ledger.TestMerchant()
	inactive.ID = uuid.New()
	inactive.Email = "inactive@example.com"
	inactive.APIKey = "key_inactive"
	inactive.Active = false
	s.store.AddMerchant(inactive)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/payments", nil)
	req.Header.Set(HeaderAPIKey, inactive.APIKey)
	req.Header.Set(HeaderAPISecret, inactive.APISecret)
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func (s *HandlerTestSuite) TestPublicEndpoints() {
	t := s.T()
	order := s.createOrder(900)
	id := order["id"].(string)

	rec := s.do(http.MethodGet, "/api/v1/orders/"+id+"/public", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"`+id+`","amount":900,"currency":"INR","status":"created"}`, rec.Body.String())

	rec = s.do(http.MethodGet, "/api/v1/orders/"+id, nil, false)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodPost, "/api/v1/checkout/pay", map[string]any{"order_id": id, "method": "upi", "vpa": "bob@okhdfc"}, false)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "processing", decode[map[string]any](t, rec)["status"])

	rec = s.do(http.MethodGet, "/api/v1/test/merchant", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	merchant := decode[TestMerchant](t, rec)
	assert.Equal(t, ledger.TestMerchantID, merchant.ID)
	assert.Equal(t, ledger.TestMerchantKey, merchant.APIKey)
	assert.True(t, merchant.Seeded)
}

func (s *HandlerTestSuite) TestListPaymentsAndStats() {
	t := s.T()
	order := s.createOrder(500)
	for _, vpa := range []string{"a@bank", "b@bank"} {
		rec := s.do(http.MethodPost, "/api/v1/payments", map[string]any{"order_id": order["id"], "method": "upi", "vpa": vpa}, true)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := s.do(http.MethodGet, "/api/v1/payments?limit=1", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[PaymentList](t, rec)
	assert.Equal(t, 1, list.Count)
	assert.Len(t, list.Items, 1)

	rec = s.do(http.MethodGet, "/api/v1/payments?limit=abc", nil, true)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, s.simulator.Shutdown(context.Background()))

	rec = s.do(http.MethodGet, "/api/v1/payments/stats", nil, true)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.PaymentStats](t, rec)
	assert.Equal(t, int64(2), stats.TotalTransactions)
	assert.Equal(t, int64(2), stats.SuccessfulTransactions)
	assert.Equal(t, int64(1000), stats.TotalAmount)
	assert.Equal(t, float64(100), stats.SuccessRate)
}

func (s *HandlerTestSuite) TestHealthAndMetrics() {
	t := s.T()

	rec := s.do(http.MethodGet, "/health", nil, false)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[Health](t, rec)
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "connected", health.Database)
	_, err := time.Parse(time.RFC3339, health.Timestamp)
	assert.NoError(t, err)

	rec = s.do(http.MethodGet, "/metrics", nil, false)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(http.MethodGet, "/nope", nil, false)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND_ERROR", errorCode(t, rec))
}

func (s *HandlerTestSuite) TestHealth_DatabaseDown() {
	eng := engine.New(s.store, idgen.New(1), s.simulator, discard)
	router := NewHandler(eng, downStore{s.store}, discard, false).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(s.T(), http.StatusOK, rec.Code)
	assert.Equal(s.T(), "disconnected", decode[Health](s.T(), rec).Database)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/test/merchant", nil))
	assert.Equal(s.T(), http.StatusNotFound, rec.Code)
}

func (s *HandlerTestSuite) TestRequestIDEchoed() {
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(HeaderRequestID, "req-123")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(s.T(), "req-123", rec.Header().Get(HeaderRequestID))
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}
