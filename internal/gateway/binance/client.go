// Package binance implements the gateway against Binance USD-M futures.
package binance

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
	"golang.org/x/time/rate"
)

// Client implements gateway.Gateway for Binance USD-M futures over signed
// REST. It performs no caching: every read reflects live exchange state.
type Client struct {
	cfg     Config
	creds   Credentials
	httpc   *http.Client
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewClient creates a Binance gateway client.
func NewClient(cfg Config, creds Credentials, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxRequestsPerSecond <= 0 {
		cfg.MaxRequestsPerSecond = DefaultConfig().MaxRequestsPerSecond
	}
	if cfg.RecvWindowMs <= 0 {
		cfg.RecvWindowMs = DefaultConfig().RecvWindowMs
	}

	return &Client{
		cfg:     cfg,
		creds:   creds,
		httpc:   &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.MaxRequestsPerSecond), cfg.MaxRequestsPerSecond),
		logger:  logger,
	}
}

// Name identifies the broker.
func (c *Client) Name() string { return "binance" }

// CurrentPrice returns the futures mark price.
func (c *Client) CurrentPrice(ctx context.Context, instrument string) (decimal.Decimal, error) {
	params := url.Values{"symbol": {instrument}}
	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/premiumIndex", params, false)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: mark price %s: %v", types.ErrMarketDataUnavailable, instrument, err)
	}

	var resp struct {
		MarkPrice string `json:"markPrice"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode mark price: %v", types.ErrMarketDataUnavailable, err)
	}

	price, err := decimal.NewFromString(resp.MarkPrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: parse mark price %q: %v", types.ErrMarketDataUnavailable, resp.MarkPrice, err)
	}
	return price, nil
}

// InstrumentRules fetches the symbol's filters from exchange info.
func (c *Client) InstrumentRules(ctx context.Context, instrument string) (types.InstrumentRules, error) {
	params := url.Values{"symbol": {instrument}}
	body, err := c.do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false)
	if err != nil {
		return types.InstrumentRules{}, fmt.Errorf("%w: exchange info %s: %v", types.ErrMarketDataUnavailable, instrument, err)
	}

	var resp struct {
		Symbols []struct {
			Symbol            string `json:"symbol"`
			QuantityPrecision int32  `json:"quantityPrecision"`
			PricePrecision    int32  `json:"pricePrecision"`
			Filters           []struct {
				FilterType string `json:"filterType"`
				StepSize   string `json:"stepSize"`
				Notional   string `json:"notional"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.InstrumentRules{}, fmt.Errorf("%w: decode exchange info: %v", types.ErrMarketDataUnavailable, err)
	}

	for _, sym := range resp.Symbols {
		if sym.Symbol != instrument {
			continue
		}

		rules := types.InstrumentRules{
			QuantityPrecision: sym.QuantityPrecision,
			PricePrecision:    sym.PricePrecision,
			// Binance futures default when the filter is absent.
			MinNotional: decimal.NewFromInt(10),
		}
		for _, filter := range sym.Filters {
			switch filter.FilterType {
			case "LOT_SIZE":
				if step, err := decimal.NewFromString(filter.StepSize); err == nil {
					rules.QuantityStep = step
				}
			case "MIN_NOTIONAL":
				if notional, err := decimal.NewFromString(filter.Notional); err == nil {
					rules.MinNotional = notional
				}
			}
		}
		return rules, nil
	}

	return types.InstrumentRules{}, fmt.Errorf("%w: unknown symbol %s", types.ErrMarketDataUnavailable, instrument)
}

// NetPosition returns the account's signed position for the instrument.
func (c *Client) NetPosition(ctx context.Context, instrument string) (types.NetPosition, error) {
	params := url.Values{"symbol": {instrument}}
	body, err := c.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true)
	if err != nil {
		return types.NetPosition{}, fmt.Errorf("%w: position risk %s: %v", types.ErrMarketDataUnavailable, instrument, err)
	}

	var resp []struct {
		Symbol      string `json:"symbol"`
		PositionAmt string `json:"positionAmt"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return types.NetPosition{}, fmt.Errorf("%w: decode position risk: %v", types.ErrMarketDataUnavailable, err)
	}

	for _, pos := range resp {
		if pos.Symbol != instrument {
			continue
		}
		qty, err := decimal.NewFromString(pos.PositionAmt)
		if err != nil {
			return types.NetPosition{}, fmt.Errorf("%w: parse position amount %q: %v", types.ErrMarketDataUnavailable, pos.PositionAmt, err)
		}
		return types.NetPosition{Instrument: instrument, SignedQuantity: qty}, nil
	}

	// No entry means no exposure.
	return types.NetPosition{Instrument: instrument}, nil
}

// AccountBalance returns the USDT futures wallet balance.
func (c *Client) AccountBalance(ctx context.Context) (decimal.Decimal, error) {
	body, err := c.do(ctx, http.MethodGet, "/fapi/v2/balance", url.Values{}, true)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: balance: %v", types.ErrMarketDataUnavailable, err)
	}

	var resp []struct {
		Asset   string `json:"asset"`
		Balance string `json:"balance"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return decimal.Zero, fmt.Errorf("%w: decode balance: %v", types.ErrMarketDataUnavailable, err)
	}

	for _, entry := range resp {
		if entry.Asset == "USDT" {
			balance, err := decimal.NewFromString(entry.Balance)
			if err != nil {
				return decimal.Zero, fmt.Errorf("%w: parse balance %q: %v", types.ErrMarketDataUnavailable, entry.Balance, err)
			}
			return balance, nil
		}
	}
	return decimal.Zero, nil
}

// SubmitMarketOrder places a market order.
func (c *Client) SubmitMarketOrder(ctx context.Context, instrument string, side types.Side, qty decimal.Decimal, reduceOnly bool) (string, error) {
	params := url.Values{
		"symbol":   {instrument},
		"side":     {orderSide(side)},
		"type":     {"MARKET"},
		"quantity": {qty.String()},
	}
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	return c.placeOrder(ctx, params)
}

// SubmitLimitOrder places a GTC limit order.
func (c *Client) SubmitLimitOrder(ctx context.Context, instrument string, side types.Side, qty, price decimal.Decimal, reduceOnly bool) (string, error) {
	params := url.Values{
		"symbol":      {instrument},
		"side":        {orderSide(side)},
		"type":        {"LIMIT"},
		"quantity":    {qty.String()},
		"price":       {price.String()},
		"timeInForce": {"GTC"},
	}
	if reduceOnly {
		params.Set("reduceOnly", "true")
	}
	return c.placeOrder(ctx, params)
}

func (c *Client) placeOrder(ctx context.Context, params url.Values) (string, error) {
	body, err := c.do(ctx, http.MethodPost, "/fapi/v1/order", params, true)
	if err != nil {
		var apiErr *apiError
		if errors.As(err, &apiErr) {
			mapped := mapOrderError(c.Name(), apiErr)
			c.logger.Warn("order rejected by broker",
				"symbol", params.Get("symbol"),
				"side", params.Get("side"),
				"kind", mapped.Kind,
				"raw", apiErr.Msg,
			)
			return "", mapped
		}
		return "", err
	}

	var resp struct {
		OrderID int64 `json:"orderId"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode order response: %w", err)
	}

	orderID := strconv.FormatInt(resp.OrderID, 10)
	c.logger.Info("order placed",
		"order_id", orderID,
		"symbol", params.Get("symbol"),
		"side", params.Get("side"),
		"type", params.Get("type"),
		"quantity", params.Get("quantity"),
	)
	return orderID, nil
}

// CancelOrder cancels an open order.
func (c *Client) CancelOrder(ctx context.Context, instrument, orderID string) error {
	params := url.Values{
		"symbol":  {instrument},
		"orderId": {orderID},
	}
	if _, err := c.do(ctx, http.MethodDelete, "/fapi/v1/order", params, true); err != nil {
		return fmt.Errorf("cancel order %s: %w", orderID, err)
	}
	return nil
}

// do performs one rate-limited REST call, signing when required, and
// returns the response body or an *apiError on a non-2xx response.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, signed bool) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	query := params.Encode()
	if signed {
		params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
		params.Set("recvWindow", strconv.Itoa(c.cfg.RecvWindowMs))
		query = params.Encode()
		// The signature covers the query string exactly as sent, so it is
		// appended rather than re-encoded.
		query += "&signature=" + c.sign(query)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.baseURL()+path+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", c.creds.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err != nil || apiErr.Msg == "" {
			apiErr = apiError{Code: -resp.StatusCode, Msg: string(body)}
		}
		return nil, &apiErr
	}
	return body, nil
}

// sign computes the HMAC-SHA256 signature over the query string.
func (c *Client) sign(query string) string {
	mac := hmac.New(sha256.New, []byte(c.creds.APISecret))
	mac.Write([]byte(query))
	return hex.EncodeToString(mac.Sum(nil))
}

func orderSide(side types.Side) string {
	if side == types.SideShort {
		return "SELL"
	}
	return "BUY"
}
