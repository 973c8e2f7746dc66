package restapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"kaia_defi/internal/app/port"
	"kaia_defi/internal/app/service"
	"kaia_defi/internal/domain/entity"
	"kaia_defi/internal/infrastructure/configloader"
	"kaia_defi/internal/infrastructure/contracts"
	"kaia_defi/internal/infrastructure/contracts/contractstest"
	networkdefinition "kaia_defi/internal/infrastructure/network/definition"
	"kaia_defi/internal/pkg/logger"

	"github.com/gin-gonic/gin"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type sessionsStub struct {
	mu       sync.Mutex
	current  port.Session
	registry port.NetworkRegistry
}

func (s *sessionsStub) Current() port.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *sessionsStub) Connect(context.Context) (entity.SessionView, error) {
	return s.Current().SessionView, nil
}

func (s *sessionsStub) Disconnect() entity.SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = port.Session{SessionView: entity.SessionView{State: entity.StateDisconnected}}
	return s.current.SessionView
}

func (s *sessionsStub) SwitchNetwork(_ context.Context, chainID uint64) (entity.SessionView, error) {
	if !s.registry.IsSupported(chainID) {
		return s.Current().SessionView, fmt.Errorf("%w: chain %d", entity.ErrWrongNetwork, chainID)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.ChainID = chainID
	return s.current.SessionView, nil
}

type testAPI struct {
	router   *gin.Engine
	world    *contractstest.World
	sessions *sessionsStub
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	registry := networkdefinition.NewNetworkDefinitionProvider(logger.Nop{}, nil, nil)
	world := contractstest.NewWorld(registry, 1001)
	signer := contractstest.NewSigner()
	world.Fund(signer.Address(), 1000)

	sessions := &sessionsStub{registry: registry, current: port.Session{
		SessionView: entity.SessionView{
			Address:          signer.Address().Hex(),
			ChainID:          1001,
			State:            entity.StateConnected,
			SupportedNetwork: true,
		},
		Backend: world.Backend,
		Signer:  signer,
	}}
	deps := service.Deps{
		Sessions:  sessions,
		Contracts: contracts.NewFactory(registry, contracts.Options{ReceiptPollInterval: time.Millisecond}, logger.Nop{}),
		Registry:  registry,
		Logger:    logger.Nop{},
	}
	prices := service.NewPriceService(nil, &configloader.Config{TokenPriceSvc: configloader.TokenPriceServiceConfig{
		Stablecoins:  []string{"KUSD"},
		StaticPrices: map[string]float64{"KAIA": 0.85},
	}}, logger.Nop{})
	balances := service.NewBalancesService(deps, prices, []string{"KAIA", "KUSD", "WKAIA"})
	staking := service.NewStakingService(deps)
	farms := service.NewFarmsService(deps, prices, 2)

	h := &Handlers{
		Sessions: sessions,
		Balances: balances,
		Swap: service.NewSwapService(deps, balances, service.SwapConfig{
			DefaultFrom: "KAIA", DefaultTo: "KUSD", DefaultSlippage: 0.5, GasLimit: 250000,
		}),
		Staking: staking,
		Borrow: service.NewBorrowService(deps, balances, service.BorrowConfig{
			DefaultCollateral: "KAIA", DefaultBorrow: "KUSD", DefaultLiquidationLTV: 90, CollateralTokens: []string{"KAIA"},
		}),
		Farms:     farms,
		Portfolio: service.NewPortfolioService(deps, balances, staking, farms, prices),
		Network:   service.NewNetworkService(deps),
	}
	return &testAPI{
		router:   SetupRouter(h, configloader.ServerConfig{}, logger.Nop{}),
		world:    world,
		sessions: sessions,
	}
}

func (a *testAPI) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var reader *bytes.Reader
	if body == "" {
		reader = bytes.NewReader(nil)
	} else {
		reader = bytes.NewReader([]byte(body))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Header().Get("Content-Type") != "" && rec.Body.Len() > 0 && rec.Body.Bytes()[0] == '{' {
		require.NoError(t, jsoniter.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{entity.ErrWalletNotConnected, http.StatusUnauthorized},
		{fmt.Errorf("%w: chain 1", entity.ErrWrongNetwork), http.StatusConflict},
		{entity.ErrStaleResult, http.StatusConflict},
		{entity.ErrInvalidAmount, http.StatusBadRequest},
		{entity.ErrInvalidAddress, http.StatusBadRequest},
		{entity.ErrInvalidHash, http.StatusBadRequest},
		{entity.ErrUnknownToken, http.StatusBadRequest},
		{entity.ErrUnknownFarm, http.StatusNotFound},
		{&entity.NotDeployedError{Name: "Farm", ChainID: 8217}, http.StatusNotFound},
		{&entity.InsufficientBalanceError{Symbol: "KAIA", Available: "1"}, http.StatusUnprocessableEntity},
		{entity.ErrNoLiquidity, http.StatusUnprocessableEntity},
		{entity.ErrLTVTooHigh, http.StatusUnprocessableEntity},
		{&entity.ContractError{Op: "stake", Reason: "paused", Err: entity.ErrContractReverted}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestSessionRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodGet, "/api/v1/session", "")
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "connected", data["state"])
	assert.NotEmpty(t, body["request_id"])
	assert.Equal(t, body["request_id"], rec.Header().Get(RequestIDHeader))

	rec, _ = api.do(t, http.MethodPost, "/api/v1/session/network", `{"chainId": 1}`)
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/session/network", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(t, http.MethodPost, "/api/v1/session/disconnect", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disconnected", body["data"].(map[string]any)["state"])

	rec, _ = api.do(t, http.MethodGet, "/api/v1/session/events", "")
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestRequestIDIsPropagated(t *testing.T) {
	api := newTestAPI(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/session", nil)
	req.Header.Set(RequestIDHeader, "4f9d2b1c-8a57-4c1e-9a51-2f3e6b7d8c90")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	assert.Equal(t, "4f9d2b1c-8a57-4c1e-9a51-2f3e6b7d8c90", rec.Header().Get(RequestIDHeader))
}

func TestBalancesRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodGet, "/api/v1/balances", "")
	require.Equal(t, http.StatusOK, rec.Code)
	balances := body["data"].(map[string]any)["balances"].([]any)
	assert.Len(t, balances, 3)

	rec, body = api.do(t, http.MethodPost, "/api/v1/balances/wrap", `{"amount":"5000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "Available: 1000 KAIA")

	rec, _ = api.do(t, http.MethodPost, "/api/v1/balances/wrap", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(t, http.MethodPost, "/api/v1/balances/wrap", `{"amount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	tx := body["data"].(map[string]any)["tx"].(map[string]any)
	assert.Equal(t, "success", tx["status"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/balances/transfer", `{"symbol":"KUSD","to":"nope","amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/balances/mint-test-tokens", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActionsRequireConnection(t *testing.T) {
	api := newTestAPI(t)
	api.sessions.Disconnect()

	rec, body := api.do(t, http.MethodGet, "/api/v1/staking", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", body["data"].(map[string]any)["staked"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/staking/stake", `{"amount":"1"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	rec, _ = api.do(t, http.MethodGet, "/api/v1/network", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, api.world.Backend.Sent())
}

func TestSwapRoutes(t *testing.T) {
	api := newTestAPI(t)
	api.world.DEX.SetPool(api.world.Tokens["KAIA"].Address, api.world.Tokens["KUSD"].Address, contractstest.Ether(1000), contractstest.Ether(1000))

	rec, body := api.do(t, http.MethodGet, "/api/v1/swap/pools?tokenA=KAIA&tokenB=KUSD", "")
	require.Equal(t, http.StatusOK, rec.Code)
	pool := body["data"].(map[string]any)
	assert.Equal(t, "1000", pool["pool"].(map[string]any)["reserveA"])
	assert.Equal(t, "0", pool["userLiquidity"])
	rec, _ = api.do(t, http.MethodGet, "/api/v1/swap/pools?tokenA=KAIA", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body = api.do(t, http.MethodPut, "/api/v1/swap", `{"fromAmount":"10","slippage":1}`)
	require.Equal(t, http.StatusOK, rec.Code)
	data := body["data"].(map[string]any)
	assert.Equal(t, "9.90099009900990099", data["toAmount"])
	assert.Equal(t, "9.801980", data["minimumReceived"])

	rec, body = api.do(t, http.MethodGet, "/api/v1/swap/quote", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1.00", body["data"].(map[string]any)["priceImpact"])

	rec, _ = api.do(t, http.MethodPut, "/api/v1/swap", `{"fromAmount":"5000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = api.do(t, http.MethodPut, "/api/v1/swap", `{"fromAmount":"10"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/swap/execute", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"approve", "swapExactTokensForTokens"}, api.world.Backend.SentMethods())
}

func TestFarmAndTxRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, _ := api.do(t, http.MethodPost, "/api/v1/farms/abc/harvest", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec, _ = api.do(t, http.MethodPost, "/api/v1/farms/5/harvest", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = api.do(t, http.MethodGet, "/api/v1/tx/0x12", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, body := api.do(t, http.MethodGet, "/api/v1/portfolio", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 1850.0, body["data"].(map[string]any)["totalValueUsd"], 1e-9)
}

func TestBorrowRoutes(t *testing.T) {
	api := newTestAPI(t)

	rec, body := api.do(t, http.MethodPut, "/api/v1/borrow", `{"collateralAmount":"100","borrowAmount":"95"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	pos := body["data"].(map[string]any)["position"].(map[string]any)
	assert.Equal(t, "liquidatable", pos["health"])
	assert.Equal(t, "75", body["data"].(map[string]any)["maxBorrow"])

	rec, _ = api.do(t, http.MethodPost, "/api/v1/borrow/execute", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec, _ = api.do(t, http.MethodPost, "/api/v1/borrow/repay", `{"amount":"1"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	api := newTestAPI(t)
	rec, _ := api.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
