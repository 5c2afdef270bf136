package log

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newBufferLogger(buf *bytes.Buffer) *Logger {
	return New(Config{
		Component: "http",
		Handler:   slog.NewTextHandler(buf, nil),
	})
}

func TestMiddlewareInstallsRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf)

	var got *Logger
	handler := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = FromContext(r.Context())
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/expenses", nil))

	if got != logger {
		t.Error("FromContext did not return the middleware's logger")
	}

	out := buf.String()
	for _, want := range []string{"Request completed", "method=GET", "path=/api/expenses", "status=418"} {
		if !strings.Contains(out, want) {
			t.Errorf("request log missing %q:\n%s", want, out)
		}
	}
}

func TestFromContextFallsBack(t *testing.T) {
	logger := FromContext(context.Background())
	if logger == nil {
		t.Fatal("FromContext returned nil without middleware")
	}
	// Must be usable as-is.
	logger.Debug("fallback logger works")
}
