package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "rollcall/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		status   int
		code     string
		wantDesc string
	}{
		{"duplicate student", dErrors.New(dErrors.CodeConflict, "student already registered"), http.StatusConflict, "conflict", "student already registered"},
		{"unknown student", dErrors.New(dErrors.CodeNotFound, "no such student"), http.StatusNotFound, "not_found", "no such student"},
		{"wrapped ledger rejection", fmt.Errorf("mark: %w", dErrors.New(dErrors.CodeUnprocessable, "caller is not the owner")), http.StatusUnprocessableEntity, "unprocessable", "caller is not the owner"},
		{"internal hides detail", dErrors.New(dErrors.CodeInternal, "pool exhausted"), http.StatusInternalServerError, "internal_error", ""},
		{"plain error is internal", errors.New("boom"), http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)

			if w.Code != tc.status {
				t.Fatalf("status = %d, want %d", w.Code, tc.status)
			}
			var body ErrorResponse
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body.Error != tc.code || body.ErrorDescription != tc.wantDesc {
				t.Fatalf("body = %+v, want code %q description %q", body, tc.code, tc.wantDesc)
			}
		})
	}
}

type markRequest struct {
	Target string `json:"target"`
}

func (r *markRequest) Validate() error {
	if r.Target == "" {
		return dErrors.New(dErrors.CodeValidation, "target is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		name       string
		body       string
		wantOK     bool
		wantStatus int
		wantCode   string
	}{
		{name: "valid body", body: `{"target":"0xabc"}`, wantOK: true},
		{name: "malformed json", body: `{"target":`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "unknown field", body: `{"target":"0xabc","extra":1}`, wantStatus: http.StatusBadRequest, wantCode: "bad_request"},
		{name: "fails validation", body: `{}`, wantStatus: http.StatusBadRequest, wantCode: "validation_error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/attendance", strings.NewReader(tc.body))
			w := httptest.NewRecorder()

			req, ok := DecodeAndPrepare[markRequest](w, r, logger, r.Context(), "req-1")

			if ok != tc.wantOK {
				t.Fatalf("expected ok=%v, got %v", tc.wantOK, ok)
			}
			if tc.wantOK {
				if req.Target != "0xabc" {
					t.Fatalf("unexpected target %q", req.Target)
				}
				return
			}
			if w.Code != tc.wantStatus {
				t.Fatalf("expected status %d, got %d", tc.wantStatus, w.Code)
			}
			var body map[string]string
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("decode response: %v", err)
			}
			if body["error"] != tc.wantCode {
				t.Fatalf("expected error %q, got %q", tc.wantCode, body["error"])
			}
		})
	}
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeConflict:      http.StatusConflict,
		dErrors.CodeNotFound:      http.StatusNotFound,
		dErrors.CodeUnprocessable: http.StatusUnprocessableEntity,
		dErrors.CodeUnavailable:   http.StatusServiceUnavailable,
		dErrors.CodeTimeout:       http.StatusGatewayTimeout,
		dErrors.Code("unknown"):   http.StatusInternalServerError,
	}
	for code, want := range cases {
		if got := StatusFor(code); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", code, got, want)
		}
	}
}
