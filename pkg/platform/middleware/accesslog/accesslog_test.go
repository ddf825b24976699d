package accesslog

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rollcall/pkg/requestcontext"
)

func TestMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	h := Middleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	req := httptest.NewRequest(http.MethodPost, "/attendance", nil)
	req = req.WithContext(requestcontext.With(req.Context(), requestcontext.Request{ID: "req-7", ClientIP: "192.0.2.9"}))
	h.ServeHTTP(httptest.NewRecorder(), req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "req-7", line["request_id"])
	assert.Equal(t, "/attendance", line["path"])
	assert.EqualValues(t, http.StatusServiceUnavailable, line["status"])
	assert.Equal(t, "192.0.2.9", line["client_ip"])
}
