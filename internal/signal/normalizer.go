// Package signal converts loosely-typed inbound payloads into canonical
// trade intents.
package signal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tathienbao/signal-bridge/internal/types"
)

// Raw is the inbound signal payload as delivered by the webhook or email
// layer. Field vocabulary follows the TradingView alert convention: either
// "direction" or the legacy "action" carries the side, and "symbol" is
// accepted as an alias for "instrument".
type Raw struct {
	Instrument string
	Direction  string
	Quantity   string
	OrderStyle string
	LimitPrice string
	Broker     string
	ReceivedAt time.Time
}

// rawJSON mirrors the wire shape, including legacy aliases. Quantities and
// prices arrive as either JSON numbers or strings depending on the sender.
type rawJSON struct {
	Instrument string      `json:"instrument"`
	Symbol     string      `json:"symbol"`
	Direction  string      `json:"direction"`
	Action     string      `json:"action"`
	Side       string      `json:"side"`
	Quantity   json.Number `json:"quantity"`
	OrderStyle string      `json:"orderStyle"`
	Type       string      `json:"type"`
	LimitPrice json.Number `json:"limitPrice"`
	Price      json.Number `json:"price"`
	Broker     string      `json:"broker"`
}

// UnmarshalJSON decodes a payload, preferring canonical field names and
// falling back to the legacy aliases.
func (r *Raw) UnmarshalJSON(data []byte) error {
	var aux rawJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	r.Instrument = firstNonEmpty(aux.Instrument, aux.Symbol)
	r.Direction = firstNonEmpty(aux.Direction, aux.Action, aux.Side)
	r.Quantity = aux.Quantity.String()
	r.OrderStyle = firstNonEmpty(aux.OrderStyle, aux.Type)
	r.LimitPrice = firstNonEmpty(aux.LimitPrice.String(), aux.Price.String())
	r.Broker = aux.Broker
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Config holds normalizer settings.
type Config struct {
	// QuoteSuffixes is the set of recognized quote-currency tickers.
	QuoteSuffixes []string
	// DefaultQuote is appended when a symbol carries no recognized suffix.
	DefaultQuote string
}

// DefaultConfig returns the conventional crypto-futures quote set.
func DefaultConfig() Config {
	return Config{
		QuoteSuffixes: []string{"USDT", "USDC", "BUSD", "BNB"},
		DefaultQuote:  "USDT",
	}
}

// Normalizer turns raw payloads into validated TradeIntents.
// Pure function of its input apart from logging.
type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

// NewNormalizer creates a normalizer.
func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if len(cfg.QuoteSuffixes) == 0 {
		cfg = DefaultConfig()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize converts a raw payload into a canonical TradeIntent.
//
// Symbol repair is best effort, not strict validation: a symbol without a
// recognized quote suffix gets the default quote appended rather than being
// rejected, so "BTC" becomes "BTCUSDT".
func (n *Normalizer) Normalize(raw Raw) (types.TradeIntent, error) {
	instrument := n.repairSymbol(strings.ToUpper(strings.TrimSpace(raw.Instrument)))
	if instrument == "" {
		return types.TradeIntent{}, types.ErrMissingInstrument
	}

	direction, err := parseDirection(raw.Direction)
	if err != nil {
		return types.TradeIntent{}, err
	}

	qty, err := decimal.NewFromString(strings.TrimSpace(raw.Quantity))
	if err != nil || qty.LessThanOrEqual(decimal.Zero) {
		return types.TradeIntent{}, fmt.Errorf("%w: %q", types.ErrInvalidQuantity, raw.Quantity)
	}

	style := types.StyleMarket
	if strings.EqualFold(strings.TrimSpace(raw.OrderStyle), "LIMIT") {
		style = types.StyleLimit
	}

	limitPrice := decimal.Zero
	if style == types.StyleLimit {
		limitPrice, err = decimal.NewFromString(strings.TrimSpace(raw.LimitPrice))
		if err != nil || limitPrice.LessThanOrEqual(decimal.Zero) {
			return types.TradeIntent{}, fmt.Errorf("%w: %q", types.ErrMissingLimitPrice, raw.LimitPrice)
		}
	}

	receivedAt := raw.ReceivedAt
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return types.NewTradeIntent(instrument, direction, qty, style, limitPrice, receivedAt)
}

// repairSymbol appends the default quote currency when the symbol does not
// end in a recognized quote suffix. Any embedded default-quote fragment is
// stripped first so "BTCUSDTX" does not become "BTCUSDTXUSDT...USDT".
func (n *Normalizer) repairSymbol(symbol string) string {
	if symbol == "" {
		return ""
	}
	for _, suffix := range n.cfg.QuoteSuffixes {
		if strings.HasSuffix(symbol, suffix) {
			return symbol
		}
	}

	repaired := strings.ReplaceAll(symbol, n.cfg.DefaultQuote, "") + n.cfg.DefaultQuote
	n.logger.Warn("symbol missing quote suffix, repairing",
		"symbol", symbol,
		"repaired", repaired,
	)
	return repaired
}

func parseDirection(token string) (types.Side, error) {
	switch strings.ToUpper(strings.TrimSpace(token)) {
	case "BUY", "LONG":
		return types.SideLong, nil
	case "SELL", "SHORT":
		return types.SideShort, nil
	default:
		return types.SideFlat, fmt.Errorf("%w: %q", types.ErrUnrecognizedDirection, token)
	}
}
