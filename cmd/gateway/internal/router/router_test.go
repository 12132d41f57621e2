package router_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/RogueTeam/ilpgateway/cmd/gateway/internal/router"
	"github.com/RogueTeam/ilpgateway/gateway"
	"github.com/RogueTeam/ilpgateway/openpayments/mock"
	"github.com/RogueTeam/ilpgateway/sessions"
	"github.com/RogueTeam/ilpgateway/sessions/memory"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type server struct {
	network *mock.Mock
	engine  *gin.Engine
}

func newServer(t *testing.T, debug bool, limiter *router.RateLimiter) *server {
	gin.SetMode(gin.TestMode)

	network := mock.New(mock.Config{BaseUrl: "https://example.test", Fee: 5})
	sending := network.AddWallet("gateway", "USD", 2)
	network.AddWallet("wallet-b", "USD", 2)

	ctrl := gateway.New(gateway.Config{
		Store:         memory.New(),
		Client:        network,
		SendingWallet: sending.Id,
	})

	engine := gin.New()
	r := router.Router{
		Gateway:     &ctrl,
		Base:        engine,
		RateLimiter: limiter,
		Debug:       debug,
		Version:     "test",
	}
	r.Register(t.Context())
	return &server{network: network, engine: engine}
}

func (s *server) do(t *testing.T, method, path string, body any, out any) (status int) {
	var contents []byte
	if body != nil {
		var err error
		contents, err = json.Marshal(body)
		require.Nil(t, err, "failed to marshal body")
	}

	req := httptest.NewRequest(method, path, bytes.NewReader(contents))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	s.engine.ServeHTTP(res, req)

	if out != nil {
		err := json.Unmarshal(res.Body.Bytes(), out)
		require.Nil(t, err, "failed to decode response: %s", res.Body.String())
	}
	return res.Code
}

func Test_Flow(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t, false, nil)

	var initiated router.InitiateResponse
	status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "https://example.test/wallet-b", Amount: 500}, &initiated)
	require.Equal(t, http.StatusCreated, status)
	assertions.Equal(sessions.StatusPendingAuthorization, initiated.Status)
	assertions.Equal("505", initiated.DebitAmount.Value)
	assertions.Equal("5.05", initiated.DebitAmount.Formatted)
	assertions.NotEmpty(initiated.AuthorizationUrl)

	var report router.StatusResponse
	status = s.do(t, http.MethodGet, router.PaymentsPath+"/"+initiated.SessionId, nil, &report)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal(sessions.StatusPendingAuthorization, report.Status)
	assertions.Nil(report.CompletedAt)

	var failure router.ErrorResponse
	status = s.do(t, http.MethodPost, router.PaymentsPath+"/unknown/complete", nil, &failure)
	assertions.Equal(http.StatusNotFound, status)
	assertions.Equal(gateway.KindNotFound, failure.Error)

	require.Nil(t, s.network.Authorize(initiated.AuthorizationUrl), "failed to authorize")

	var completed router.CompleteResponse
	status = s.do(t, http.MethodPost, router.PaymentsPath+"/"+initiated.SessionId+"/complete", nil, &completed)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal(sessions.StatusCompleted, completed.Status)
	assertions.NotEmpty(completed.OutgoingPayment.Id)
	assertions.Equal(uint64(500), completed.Summary.Amount)
	assertions.Equal("5.05", completed.Summary.DebitAmount.Formatted)

	status = s.do(t, http.MethodPost, router.PaymentsPath+"/"+initiated.SessionId+"/complete", nil, &failure)
	assertions.Equal(http.StatusConflict, status, "double completion should conflict")
	assertions.Equal(gateway.KindInvalidState, failure.Error)

	status = s.do(t, http.MethodDelete, router.PaymentsPath+"/"+initiated.SessionId, nil, &failure)
	assertions.Equal(http.StatusConflict, status, "completed sessions can't be cancelled")

	status = s.do(t, http.MethodGet, router.PaymentsPath+"/"+initiated.SessionId, nil, &report)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal(sessions.StatusCompleted, report.Status)
	assertions.NotNil(report.CompletedAt)
}

func Test_Cancel(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t, false, nil)

	var initiated router.InitiateResponse
	status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "https://example.test/wallet-b", Amount: 100}, &initiated)
	require.Equal(t, http.StatusCreated, status)

	var cancelled router.CancelResponse
	status = s.do(t, http.MethodDelete, router.PaymentsPath+"/"+initiated.SessionId, nil, &cancelled)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal(initiated.SessionId, cancelled.SessionId)

	var failure router.ErrorResponse
	status = s.do(t, http.MethodGet, router.PaymentsPath+"/"+initiated.SessionId, nil, &failure)
	assertions.Equal(http.StatusNotFound, status)
}

func Test_Validation(t *testing.T) {
	t.Run("Release", func(t *testing.T) {
		assertions := assert.New(t)
		s := newServer(t, false, nil)

		var failure router.ErrorResponse
		status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "http://example.test/wallet-b", Amount: -1}, &failure)
		assertions.Equal(http.StatusBadRequest, status)
		assertions.Equal(gateway.KindValidation, failure.Error)
		assertions.Len(failure.Problems, 2, "every problem should be listed")
		assertions.Empty(failure.Details, "details are only shown in debug mode")
		assertions.Equal(uint64(0), s.network.TotalCalls())
	})

	t.Run("Debug", func(t *testing.T) {
		assertions := assert.New(t)
		s := newServer(t, true, nil)

		var failure router.ErrorResponse
		status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "https://example.test/wallet-b", Amount: 0}, &failure)
		assertions.Equal(http.StatusBadRequest, status)
		assertions.NotEmpty(failure.Details)
	})

	t.Run("Malformed body", func(t *testing.T) {
		assertions := assert.New(t)
		s := newServer(t, false, nil)

		var failure router.ErrorResponse
		status := s.do(t, http.MethodPost, router.PaymentsPath, map[string]string{"amount": "lots"}, &failure)
		assertions.Equal(http.StatusBadRequest, status)
		assertions.Equal(gateway.KindValidation, failure.Error)
	})

	t.Run("Unknown wallet", func(t *testing.T) {
		s := newServer(t, false, nil)

		var failure router.ErrorResponse
		status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "https://example.test/nobody", Amount: 10}, &failure)
		assert.Equal(t, http.StatusBadGateway, status)
		assert.Equal(t, gateway.KindWalletLookup, failure.Error)
	})
}

func Test_Service(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t, true, nil)

	status := s.do(t, http.MethodPost, router.PaymentsPath, &router.InitiateRequest{ReceivingWallet: "https://example.test/wallet-b", Amount: 100}, nil)
	require.Equal(t, http.StatusCreated, status)

	var health router.HealthResponse
	status = s.do(t, http.MethodGet, router.HealthPath, nil, &health)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal("ok", health.Status)
	assertions.Equal(1, health.ActiveSessions)

	var stats router.StatsResponse
	status = s.do(t, http.MethodGet, router.StatsPath, nil, &stats)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal(1, stats.Total)
	assertions.Equal(1, stats.ByStatus[sessions.StatusPendingAuthorization])
	assertions.NotNil(stats.Oldest)

	var config router.ConfigResponse
	status = s.do(t, http.MethodGet, router.ConfigPath, nil, &config)
	assertions.Equal(http.StatusOK, status)
	assertions.Equal("https://example.test/gateway", config.SendingWallet)
	assertions.Equal(uint64(gateway.DefaultMaxAmount), config.MaxAmount)
	assertions.Equal(router.EnvironmentDebug, config.Environment)
	assertions.Equal("test", config.Version)
}

func Test_RateLimit(t *testing.T) {
	assertions := assert.New(t)
	s := newServer(t, false, router.NewRateLimiter(0.001, 2))

	assertions.Equal(http.StatusOK, s.do(t, http.MethodGet, router.ConfigPath, nil, nil))
	assertions.Equal(http.StatusOK, s.do(t, http.MethodGet, router.ConfigPath, nil, nil))

	var failure router.ErrorResponse
	status := s.do(t, http.MethodGet, router.ConfigPath, nil, &failure)
	assertions.Equal(http.StatusTooManyRequests, status, "burst should be exhausted")
	assertions.Equal(gateway.ErrorKind("rate-limited"), failure.Error)
}

func Test_StatusFor(t *testing.T) {
	type Test struct {
		Kind     gateway.ErrorKind
		Expected int
	}
	tests := []Test{
		{Kind: gateway.KindValidation, Expected: http.StatusBadRequest},
		{Kind: gateway.KindWalletLookup, Expected: http.StatusBadGateway},
		{Kind: gateway.KindTimeout, Expected: http.StatusGatewayTimeout},
		{Kind: gateway.KindGrant, Expected: http.StatusBadGateway},
		{Kind: gateway.KindResource, Expected: http.StatusBadGateway},
		{Kind: gateway.KindNotFound, Expected: http.StatusNotFound},
		{Kind: gateway.KindInvalidState, Expected: http.StatusConflict},
		{Kind: gateway.KindInternalConfig, Expected: http.StatusInternalServerError},
		{Kind: gateway.KindInternal, Expected: http.StatusInternalServerError},
	}
	for _, test := range tests {
		assert.Equal(t, test.Expected, router.StatusFor(test.Kind), test.Kind)
	}
}
