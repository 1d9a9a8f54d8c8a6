package alerting

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSeverity_String(t *testing.T) {
	tests := []struct {
		severity Severity
		want     string
	}{
		{SeverityInfo, "INFO"},
		{SeverityWarning, "WARNING"},
		{SeverityHigh, "HIGH"},
		{SeverityCritical, "CRITICAL"},
		{Severity(99), "UNKNOWN"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := tt.severity.String(); got != tt.want {
				t.Errorf("Severity.String() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFormatFields(t *testing.T) {
	tests := []struct {
		name   string
		fields []any
		want   string
	}{
		{
			name:   "empty fields",
			fields: nil,
			want:   "",
		},
		{
			name:   "single pair",
			fields: []any{"instrument", "BTCUSDT"},
			want:   "• instrument: BTCUSDT",
		},
		{
			name:   "two pairs",
			fields: []any{"instrument", "BTCUSDT", "quantity", 0.5},
			want:   "• instrument: BTCUSDT\n• quantity: 0.5",
		},
		{
			name:   "non-string key skipped",
			fields: []any{42, "value", "broker", "binance"},
			want:   "• broker: binance",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatFields(tt.fields...); got != tt.want {
				t.Errorf("FormatFields() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventSeverity(t *testing.T) {
	tests := []struct {
		event Event
		want  Severity
	}{
		{EventDailyLossBreached, SeverityCritical},
		{EventDrawdownBreached, SeverityCritical},
		{EventPartialExecution, SeverityHigh},
		{EventSignalRejected, SeverityWarning},
		{EventOrderRejected, SeverityWarning},
		{EventPositionOpened, SeverityInfo},
		{EventServiceStarted, SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(string(tt.event), func(t *testing.T) {
			if got := EventSeverity(tt.event); got != tt.want {
				t.Errorf("EventSeverity(%s) = %v, want %v", tt.event, got, tt.want)
			}
		})
	}
}

func TestMockAlerter(t *testing.T) {
	mock := NewMockAlerter()

	if err := mock.Alert(context.Background(), SeverityWarning, "order rejected", "broker", "binance"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}

	if mock.Count() != 1 {
		t.Errorf("Count() = %d, want 1", mock.Count())
	}
	if !mock.HasAlertWithSeverity(SeverityWarning) {
		t.Error("HasAlertWithSeverity(SeverityWarning) = false, want true")
	}
	if !mock.HasAlertContaining("rejected") {
		t.Error("HasAlertContaining(rejected) = false, want true")
	}
	if mock.HasAlertWithSeverity(SeverityCritical) {
		t.Error("HasAlertWithSeverity(SeverityCritical) = true, want false")
	}
}

func TestMultiAlerter_FansOut(t *testing.T) {
	mock1 := NewMockAlerter()
	mock2 := NewMockAlerter()
	multi := NewMultiAlerter(nil, mock1, mock2)

	if err := multi.Alert(context.Background(), SeverityInfo, "position opened"); err != nil {
		t.Fatalf("Alert() error = %v", err)
	}

	if mock1.Count() != 1 || mock2.Count() != 1 {
		t.Errorf("counts = %d, %d, want 1, 1", mock1.Count(), mock2.Count())
	}
}

func TestMultiAlerter_Empty(t *testing.T) {
	multi := NewMultiAlerter(nil)

	if err := multi.Alert(context.Background(), SeverityCritical, "drawdown breached"); err != nil {
		t.Errorf("Alert() error = %v, want nil", err)
	}
}

func TestMultiAlerter_AlertEvent(t *testing.T) {
	mock := NewMockAlerter()
	multi := NewMultiAlerter(nil, mock)

	if err := multi.AlertEvent(context.Background(), EventDrawdownBreached, "trading halted"); err != nil {
		t.Fatalf("AlertEvent() error = %v", err)
	}

	if !mock.HasAlertWithSeverity(SeverityCritical) {
		t.Error("event severity not propagated, want CRITICAL")
	}
}

func TestTelegramAlerter_Alert(t *testing.T) {
	var gotPath string
	var gotMsg telegramMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotMsg); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(telegramResponse{OK: true})
	}))
	defer srv.Close()

	alerter := NewTelegramAlerter(TelegramConfig{
		BotToken: "test-token",
		ChatID:   "12345",
		APIBase:  srv.URL,
	})

	err := alerter.Alert(context.Background(), SeverityHigh, "partial execution", "instrument", "BTCUSDT")
	if err != nil {
		t.Fatalf("Alert() error = %v", err)
	}

	if gotPath != "/bottest-token/sendMessage" {
		t.Errorf("path = %s, want /bottest-token/sendMessage", gotPath)
	}
	if gotMsg.ChatID != "12345" {
		t.Errorf("chat_id = %s, want 12345", gotMsg.ChatID)
	}
	if !strings.Contains(gotMsg.Text, "partial execution") {
		t.Errorf("text %q missing message", gotMsg.Text)
	}
	if !strings.Contains(gotMsg.Text, "BTCUSDT") {
		t.Errorf("text %q missing fields", gotMsg.Text)
	}
}

func TestTelegramAlerter_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(telegramResponse{OK: false, Description: "chat not found"})
	}))
	defer srv.Close()

	alerter := NewTelegramAlerter(TelegramConfig{
		BotToken: "test-token",
		ChatID:   "bad",
		APIBase:  srv.URL,
	})

	err := alerter.Alert(context.Background(), SeverityInfo, "hello")
	if err == nil {
		t.Fatal("Alert() error = nil, want API error")
	}
	if !strings.Contains(err.Error(), "chat not found") {
		t.Errorf("error = %v, want to contain description", err)
	}
}
