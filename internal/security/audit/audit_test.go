package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
)

func TestLogActionCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	al := NewLogger(slog.New(slog.NewJSONHandler(&buf, nil)))

	ctx := WithRequestID(context.Background(), "req-abc123")
	al.LogAction(ctx, 7, "update", "aquarium", "3", "ok", "")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse audit entry: %v", err)
	}
	if entry["request_id"] != "req-abc123" {
		t.Errorf("request_id = %v, want req-abc123", entry["request_id"])
	}
	if entry["action"] != "update" || entry["resource"] != "aquarium" {
		t.Errorf("unexpected entry fields: %v", entry)
	}
}

func TestRequestIDFromContextAbsent(t *testing.T) {
	if id := RequestIDFromContext(context.Background()); id != "" {
		t.Errorf("expected empty request id, got %q", id)
	}
}
