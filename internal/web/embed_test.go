package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterStaticRoutes(t *testing.T) {
	require.True(t, HasEmbeddedFiles())

	e := echo.New()
	require.NoError(t, RegisterStaticRoutes(e))

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantBody   string
	}{
		{name: "root serves console", target: "/", wantStatus: http.StatusOK, wantBody: "Field Unit Dashboard"},
		{name: "script asset", target: "/app.js", wantStatus: http.StatusOK, wantBody: "/api/ws/view"},
		{name: "unknown path falls back", target: "/units/FU-1", wantStatus: http.StatusOK, wantBody: "Field Unit Dashboard"},
		{name: "api paths are not the page", target: "/api/nope", wantStatus: http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
		})
	}
}
