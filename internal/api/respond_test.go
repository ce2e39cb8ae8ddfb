package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/errors"
	"github.com/mahmoudabboud-bit/express-load-flow-sub000/pkg/logger"
)

func testServer() *Server {
	return &Server{logger: logger.NewLoggerTo(io.Discard, io.Discard, "error")}
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) ApiResponse {
	t.Helper()

	var resp ApiResponse

	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}

	return resp
}

func TestRespondWithErrorMapsTaxonomy(t *testing.T) {
	tests := []struct {
		err      error
		wantCode int
	}{
		{apperrors.NewAuthorizationError("no access"), http.StatusForbidden},
		{apperrors.NewInvalidTransitionError("cannot deliver"), http.StatusConflict},
		{apperrors.NewValidationError("bad weight"), http.StatusBadRequest},
		{apperrors.NewNotFoundError("load not found"), http.StatusNotFound},
		{apperrors.NewStoreUnavailableError("timeout"), http.StatusServiceUnavailable},
	}

	s := testServer()

	for _, tt := range tests {
		rec := httptest.NewRecorder()
		s.respondWithError(rec, tt.err)

		if rec.Code != tt.wantCode {
			t.Errorf("%v: got status %d, want %d", tt.err, rec.Code, tt.wantCode)
		}

		resp := decodeResponse(t, rec)

		if resp.Success {
			t.Errorf("%v: response marked successful", tt.err)
		}

		if resp.Error == "" {
			t.Errorf("%v: response has no error message", tt.err)
		}
	}
}

func TestRespondWithResultDowngradesDegradedDispatch(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()

	s.respondWithResult(rec, http.StatusOK,
		map[string]string{"id": "lod-abc12345"},
		apperrors.NewDispatchDegradedError("status committed but notifications degraded"))

	if rec.Code != http.StatusOK {
		t.Errorf("got status %d, want 200 for a degraded success", rec.Code)
	}

	resp := decodeResponse(t, rec)

	if !resp.Success {
		t.Error("a degraded dispatch is still a success")
	}

	if resp.Warning == "" {
		t.Error("the degradation must surface as a warning")
	}

	if resp.Error != "" {
		t.Error("a degraded success must not carry an error")
	}
}

func TestRespondWithResultPassesThroughRealErrors(t *testing.T) {
	s := testServer()
	rec := httptest.NewRecorder()

	s.respondWithResult(rec, http.StatusOK, nil, apperrors.NewStoreUnavailableError("down"))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("got status %d, want 503", rec.Code)
	}

	resp := decodeResponse(t, rec)

	if resp.Success || resp.Warning != "" {
		t.Error("a real failure must not be downgraded to a warning")
	}
}

func TestPaginationParams(t *testing.T) {
	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 50, 0},
		{"?limit=10&offset=20", 10, 20},
		{"?limit=0", 50, 0},
		{"?limit=9999", 50, 0},
		{"?offset=-5", 50, 0},
		{"?limit=abc", 50, 0},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/api/v1/loads"+tt.query, nil)
		limit, offset := paginationParams(r)

		if limit != tt.wantLimit || offset != tt.wantOffset {
			t.Errorf("%q: got (%d, %d), want (%d, %d)",
				tt.query, limit, offset, tt.wantLimit, tt.wantOffset)
		}
	}
}
