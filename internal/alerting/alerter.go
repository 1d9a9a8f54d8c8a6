// Package alerting delivers operational notifications for the signal bridge.
package alerting

import (
	"context"
	"fmt"
)

// Severity represents the alert severity level.
type Severity int

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = iota
	// SeverityWarning is for warning messages.
	SeverityWarning
	// SeverityHigh is for high priority alerts.
	SeverityHigh
	// SeverityCritical is for critical alerts requiring immediate attention.
	SeverityCritical
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityHigh:
		return "HIGH"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// Emoji returns an emoji for the severity level.
func (s Severity) Emoji() string {
	switch s {
	case SeverityInfo:
		return "ℹ️"
	case SeverityWarning:
		return "⚠️"
	case SeverityHigh:
		return "🔴"
	case SeverityCritical:
		return "🚨"
	default:
		return "❓"
	}
}

// Alerter defines the interface for sending alerts.
type Alerter interface {
	// Alert sends an alert with the given severity and message.
	Alert(ctx context.Context, severity Severity, message string, fields ...any) error
	// Name returns the name of the alerter.
	Name() string
}

// FormatFields converts variadic key/value pairs to a bulleted string.
func FormatFields(fields ...any) string {
	if len(fields) == 0 {
		return ""
	}

	result := ""
	for i := 0; i < len(fields)-1; i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		value := fields[i+1]
		if result != "" {
			result += "\n"
		}
		result += fmt.Sprintf("• %s: %v", key, value)
	}
	return result
}

// Event represents a pre-defined alert event type.
type Event string

const (
	// EventSignalRejected is sent when a signal fails normalization or risk checks.
	EventSignalRejected Event = "signal_rejected"
	// EventOrderRejected is sent when a broker rejects an order.
	EventOrderRejected Event = "order_rejected"
	// EventPartialExecution is sent when a plan only partially fills.
	EventPartialExecution Event = "partial_execution"
	// EventPositionOpened is sent when a position is opened.
	EventPositionOpened Event = "position_opened"
	// EventPositionClosed is sent when a position is closed.
	EventPositionClosed Event = "position_closed"
	// EventDailyLossBreached is sent when the daily loss cap halts trading.
	EventDailyLossBreached Event = "daily_loss_breached"
	// EventDrawdownBreached is sent when the drawdown cap halts trading.
	EventDrawdownBreached Event = "drawdown_breached"
	// EventServiceStarted is sent when the bridge starts.
	EventServiceStarted Event = "service_started"
	// EventServiceStopped is sent when the bridge stops.
	EventServiceStopped Event = "service_stopped"
)

// EventSeverity returns the default severity for an event.
func EventSeverity(event Event) Severity {
	switch event {
	case EventDailyLossBreached, EventDrawdownBreached:
		return SeverityCritical
	case EventPartialExecution:
		return SeverityHigh
	case EventSignalRejected, EventOrderRejected:
		return SeverityWarning
	default:
		return SeverityInfo
	}
}
