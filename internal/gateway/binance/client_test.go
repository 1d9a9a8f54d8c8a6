package binance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tathienbao/signal-bridge/internal/types"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := DefaultConfig()
	cfg.BaseURL = srv.URL
	cfg.MaxRequestsPerSecond = 1000
	return NewClient(cfg, Credentials{APIKey: "k", APISecret: "s"}, nil)
}

func TestClient_CurrentPrice(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"60000.50000000"}`))
	})

	price, err := c.CurrentPrice(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, price.Equal(decimal.RequireFromString("60000.5")), "price = %s", price)
}

func TestClient_CurrentPrice_Unavailable(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{"code":-1001,"msg":"Internal error"}`))
	})

	_, err := c.CurrentPrice(context.Background(), "BTCUSDT")
	assert.ErrorIs(t, err, types.ErrMarketDataUnavailable)
}

func TestClient_InstrumentRules(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{
			"symbol":"BTCUSDT",
			"quantityPrecision":3,
			"pricePrecision":2,
			"filters":[
				{"filterType":"LOT_SIZE","stepSize":"0.001"},
				{"filterType":"MIN_NOTIONAL","notional":"100"}
			]}]}`))
	})

	rules, err := c.InstrumentRules(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, rules.MinNotional.Equal(decimal.NewFromInt(100)))
	assert.True(t, rules.QuantityStep.Equal(decimal.RequireFromString("0.001")))
	assert.Equal(t, int32(3), rules.QuantityPrecision)
	assert.Equal(t, int32(2), rules.PricePrecision)
}

func TestClient_InstrumentRules_UnknownSymbol(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[]}`))
	})

	_, err := c.InstrumentRules(context.Background(), "NOPEUSDT")
	assert.ErrorIs(t, err, types.ErrMarketDataUnavailable)
}

func TestClient_NetPosition(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("signature"), "position risk must be signed")
		assert.Equal(t, "k", r.Header.Get("X-MBX-APIKEY"))
		w.Write([]byte(`[{"symbol":"BTCUSDT","positionAmt":"-0.020"}]`))
	})

	pos, err := c.NetPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, pos.SignedQuantity.Equal(decimal.RequireFromString("-0.02")), "qty = %s", pos.SignedQuantity)
	assert.Equal(t, types.SideShort, pos.Side())
}

func TestClient_NetPosition_NoEntryMeansFlat(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	})

	pos, err := c.NetPosition(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.True(t, pos.SignedQuantity.IsZero())
}

func TestClient_SubmitMarketOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/fapi/v1/order", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "BTCUSDT", q.Get("symbol"))
		assert.Equal(t, "SELL", q.Get("side"))
		assert.Equal(t, "MARKET", q.Get("type"))
		assert.Equal(t, "0.02", q.Get("quantity"))
		assert.Equal(t, "true", q.Get("reduceOnly"))
		w.Write([]byte(`{"orderId":123456}`))
	})

	orderID, err := c.SubmitMarketOrder(context.Background(), "BTCUSDT", types.SideShort, decimal.RequireFromString("0.02"), true)
	require.NoError(t, err)
	assert.Equal(t, "123456", orderID)
}

func TestClient_SubmitLimitOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "LIMIT", q.Get("type"))
		assert.Equal(t, "60000", q.Get("price"))
		assert.Equal(t, "GTC", q.Get("timeInForce"))
		w.Write([]byte(`{"orderId":7}`))
	})

	orderID, err := c.SubmitLimitOrder(context.Background(), "BTCUSDT", types.SideLong,
		decimal.RequireFromString("0.01"), decimal.NewFromInt(60000), false)
	require.NoError(t, err)
	assert.Equal(t, "7", orderID)
}

func TestClient_SubmitOrder_MapsBrokerRejection(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2019,"msg":"Margin is insufficient."}`))
	})

	_, err := c.SubmitMarketOrder(context.Background(), "BTCUSDT", types.SideLong, decimal.NewFromInt(1), false)
	require.Error(t, err)

	var execErr *types.ExecError
	require.True(t, errors.As(err, &execErr))
	assert.Equal(t, types.ExecErrorInsufficientMargin, execErr.Kind)
	assert.Equal(t, "Margin is insufficient.", execErr.Raw)
}

func TestClient_AccountBalance(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"asset":"BNB","balance":"1.5"},{"asset":"USDT","balance":"950.25"}]`))
	})

	balance, err := c.AccountBalance(context.Background())
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.RequireFromString("950.25")), "balance = %s", balance)
}

func TestClient_CancelOrder(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		assert.Equal(t, "123", r.URL.Query().Get("orderId"))
		w.Write([]byte(`{"orderId":123,"status":"CANCELED"}`))
	})

	err := c.CancelOrder(context.Background(), "BTCUSDT", "123")
	assert.NoError(t, err)
}
