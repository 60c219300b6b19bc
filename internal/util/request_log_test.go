package util

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWithRequestLogUsesContextLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "debug", "json")

	h := WithRequestLog("foodshare", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"msg":"x"}`))
	}))
	req := httptest.NewRequest(http.MethodGet, "/listings/1", nil)
	req = req.WithContext(ContextWithLogger(req.Context(), logger.With("request_id", "rid-1")))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["request_id"] != "rid-1" || entry["service"] != "foodshare" {
		t.Fatalf("unexpected log fields: %v", entry)
	}
	if entry["status"] != float64(http.StatusNotFound) {
		t.Fatalf("status = %v", entry["status"])
	}
	if entry["level"] != slog.LevelWarn.String() {
		t.Fatalf("level = %v, want WARN", entry["level"])
	}
	if entry["bytes"] != float64(len(`{"msg":"x"}`)) {
		t.Fatalf("bytes = %v", entry["bytes"])
	}
}
