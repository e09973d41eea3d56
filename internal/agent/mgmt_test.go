package agent

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Quaternioneer/trezor-agent/internal/audit"
	"github.com/Quaternioneer/trezor-agent/internal/config"
)

func TestManagementEndpoints(t *testing.T) {
	srv := newServerWithComponents(config.Server{}, &fakeRegistry{}, &fakeBackend{}, audit.NewNopLogger())
	srv.initManagement()

	for _, path := range []string{"/-/healthy", "/-/ready"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Echo.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}

	req := httptest.NewRequest(http.MethodGet, "/-/version", nil)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "TREZOR")
	assert.Contains(t, rec.Body.String(), "2.1.11")
}

func TestManagementReadyReportsMissingComponents(t *testing.T) {
	srv := &Server{quit: make(chan struct{})}
	srv.initManagement()

	req := httptest.NewRequest(http.MethodGet, "/-/ready", nil)
	rec := httptest.NewRecorder()
	srv.Echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStartManagementDisabledByDefault(t *testing.T) {
	srv := newServerWithComponents(config.Server{}, &fakeRegistry{}, &fakeBackend{}, audit.NewNopLogger())
	require.NoError(t, srv.StartManagement(), "no listen address means nothing to start")
}
