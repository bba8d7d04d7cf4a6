package handlers

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/preston-bernstein/live-score-service/internal/http/requestutil"
	"github.com/preston-bernstein/live-score-service/internal/testutil"
)

func TestWriteErrorIncludesRequestIDFromContext(t *testing.T) {
	logger, _ := testutil.NewBufferLogger()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req = req.WithContext(requestutil.WithRequestID(req.Context(), "abc123"))

	rr := testutil.ServeRequest(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusTeapot, "boom", logger)
	}), req)

	testutil.AssertStatus(t, rr, http.StatusTeapot)
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content type json, got %s", got)
	}
	var body map[string]string
	testutil.DecodeJSON(t, rr, &body)
	if body["requestId"] != "abc123" || body["error"] != "boom" {
		t.Fatalf("unexpected body %v", body)
	}
}

func TestWriteErrorFallsBackToHeaderRequestID(t *testing.T) {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "header-id")
	writeError(rr, req, http.StatusTeapot, "boom", nil)
	if !bytes.Contains(rr.Body.Bytes(), []byte("header-id")) {
		t.Fatalf("expected header request id used when context missing")
	}
}

func TestWriteJSONLogsEncodeError(t *testing.T) {
	logger, buf := testutil.NewBufferLogger()
	rr := testutil.Serve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, make(chan int), logger)
	}), http.MethodGet, "/encode-error", nil)

	testutil.AssertStatus(t, rr, http.StatusOK)
	if buf.Len() == 0 {
		t.Fatalf("expected logger to record encode error")
	}
}

func TestWriteFieldErrorsIsFlatMap(t *testing.T) {
	rr := httptest.NewRecorder()
	writeFieldErrors(rr, map[string]string{"eventId": "must not be blank"}, nil)

	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	var body map[string]string
	testutil.DecodeJSON(t, rr, &body)
	if len(body) != 1 || body["eventId"] != "must not be blank" {
		t.Fatalf("unexpected body %v", body)
	}
}
