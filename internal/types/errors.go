package types

import "errors"

// Sentinel errors for the signal bridge.
var (
	// Normalization errors (caller input defects, never retried)
	ErrMissingInstrument     = errors.New("missing instrument")
	ErrUnrecognizedDirection = errors.New("unrecognized direction")
	ErrInvalidQuantity       = errors.New("quantity must be positive")
	ErrMissingLimitPrice     = errors.New("limit order requires a positive price")

	// Market data errors (transient, safe to retry the whole intent)
	ErrMarketDataUnavailable = errors.New("market data unavailable")

	// Dispatch errors
	ErrUnknownBroker = errors.New("unknown broker")

	// Validation errors
	ErrInvalidConfig = errors.New("invalid configuration")

	// State errors
	ErrStateNotFound = errors.New("state not found")
)

// ExecErrorKind classifies broker rejections into the shared taxonomy.
type ExecErrorKind int

const (
	ExecErrorUnknown ExecErrorKind = iota
	ExecErrorInsufficientBalance
	ExecErrorInsufficientMargin
	ExecErrorInvalidQuantity
	ExecErrorNotionalTooSmall
)

func (k ExecErrorKind) String() string {
	switch k {
	case ExecErrorInsufficientBalance:
		return "INSUFFICIENT_BALANCE"
	case ExecErrorInsufficientMargin:
		return "INSUFFICIENT_MARGIN"
	case ExecErrorInvalidQuantity:
		return "INVALID_QUANTITY_FOR_INSTRUMENT"
	case ExecErrorNotionalTooSmall:
		return "NOTIONAL_TOO_SMALL_AT_BROKER"
	default:
		return "UNKNOWN"
	}
}

// MarshalJSON encodes the kind as its string form.
func (k ExecErrorKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// ExecError is a broker rejection mapped into the shared taxonomy.
// Raw preserves the broker's original error text; broker error text is not
// a stable contract, so only Kind should be matched on.
type ExecError struct {
	Kind   ExecErrorKind
	Broker string
	Raw    string
}

func (e *ExecError) Error() string {
	if e.Raw == "" {
		return e.Broker + ": " + e.Kind.String()
	}
	return e.Broker + ": " + e.Kind.String() + ": " + e.Raw
}

// NewExecError creates an ExecError for a broker.
func NewExecError(kind ExecErrorKind, broker, raw string) *ExecError {
	return &ExecError{Kind: kind, Broker: broker, Raw: raw}
}

// ExecErrorKindOf extracts the taxonomy kind from an error chain.
// Returns ExecErrorUnknown for non-execution errors.
func ExecErrorKindOf(err error) ExecErrorKind {
	var execErr *ExecError
	if errors.As(err, &execErr) {
		return execErr.Kind
	}
	return ExecErrorUnknown
}
