package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pscheid92/playtime/internal/domain"
	apperrors "github.com/pscheid92/playtime/internal/platform/errors"
)

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req.RemoteAddr = testRemoteAddr
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

func TestTrack_ReturnsReport(t *testing.T) {
	tracker := &mockTracker{report: domain.TickReport{Checked: 3, Started: 1, Completed: 1}}
	srv := newTestServer(t, tracker)

	rec := serve(srv, http.MethodGet, "/track")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SUCCESS: Checked 3 friends. 2 new events logged.", rec.Body.String())
	assert.Equal(t, int32(1), tracker.calls.Load())
}

func TestTrack_RootRunsTick(t *testing.T) {
	tracker := &mockTracker{report: domain.TickReport{Checked: 1}}
	srv := newTestServer(t, tracker)

	rec := serve(srv, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SUCCESS: Checked 1 friends. 0 new events logged.", rec.Body.String())
}

func TestTrack_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantType   apperrors.ErrorType
	}{
		{"tick in progress", domain.ErrTickInProgress, http.StatusConflict, apperrors.TypeConflict},
		{"presence unavailable", fmt.Errorf("fetch presence: %w", domain.ErrPresenceUnavailable), http.StatusBadGateway, apperrors.TypeExternal},
		{"other failure", errors.New("load session cache: boom"), http.StatusInternalServerError, apperrors.TypeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, &mockTracker{err: tt.err})

			rec := serve(srv, http.MethodGet, "/track")

			assert.Equal(t, tt.wantStatus, rec.Code)
			var resp apperrors.ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantType, resp.Type)
		})
	}
}

func TestTrack_CountsErrorsByType(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, &mockTracker{err: domain.ErrTickInProgress}, withRegistry(reg))

	serve(srv, http.MethodGet, "/track")

	assert.Equal(t, 1.0, testutil.ToFloat64(srv.httpMetrics.ErrorsTotal.WithLabelValues(string(apperrors.TypeConflict))))
	assert.Equal(t, 1.0, testutil.ToFloat64(srv.httpMetrics.RequestsTotal.WithLabelValues(http.MethodGet, "/track", "409")))
}

func TestTrack_RateLimited(t *testing.T) {
	tracker := &mockTracker{}
	srv := newTestServer(t, tracker)

	var limited bool
	for range trackBurst + 1 {
		if serve(srv, http.MethodGet, "/track").Code == http.StatusTooManyRequests {
			limited = true
		}
	}

	assert.True(t, limited)
	assert.Equal(t, int32(trackBurst), tracker.calls.Load())
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	srv := newTestServer(t, &mockTracker{}, withRegistry(reg))

	serve(srv, http.MethodGet, "/track")
	rec := serve(srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "playtime_http_requests_total")
}

func TestMetricsRoute_DisabledWithoutRegistry(t *testing.T) {
	srv := newTestServer(t, &mockTracker{})

	rec := serve(srv, http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
