package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fu-tracker/dashboard/internal/catalog"
	"github.com/fu-tracker/dashboard/internal/command"
	"github.com/fu-tracker/dashboard/internal/dashboard"
	"github.com/fu-tracker/dashboard/internal/models"
	"github.com/fu-tracker/dashboard/internal/observability"
	"github.com/fu-tracker/dashboard/internal/testutil"
	"github.com/fu-tracker/dashboard/internal/view"
)

type testEnv struct {
	e      *echo.Echo
	dash   *dashboard.Dashboard
	sender *testutil.FakeSender
}

func newTestEnv(t *testing.T, loadCatalog bool) *testEnv {
	t.Helper()

	metrics, err := observability.NewDashboardCollector(prometheus.NewRegistry())
	require.NoError(t, err)

	sender := testutil.NewFakeSender()
	dash := dashboard.New(dashboard.Options{
		Emitter: command.NewEmitter(sender, metrics, nil),
		Metrics: metrics,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		dash.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	if loadCatalog {
		require.NoError(t, dash.LoadCatalog(context.Background(), catalog.Load(testutil.Catalog())))
	}

	e := echo.New()
	SetupMiddleware(e)
	RegisterRoutes(e, NewHandlers(&Dependencies{
		Dashboard: dash,
		Metrics:   metrics.Handler(),
		Version:   "test",
	}))

	return &testEnv{e: e, dash: dash, sender: sender}
}

func (env *testEnv) do(method, target string, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	env.e.ServeHTTP(rec, req)
	return rec
}

func decodeAPIError(t *testing.T, rec *httptest.ResponseRecorder) APIError {
	t.Helper()
	var apiErr APIError
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestHealthHandler(t *testing.T) {
	env := newTestEnv(t, true)

	rec := env.do(http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "test", body["version"])
	assert.Equal(t, float64(4), body["catalog_size"])

	env.dash.ChannelState(true, nil)
	rec = env.do(http.MethodGet, "/api/health", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestStatusHandler_ReportsCatalogFailure(t *testing.T) {
	env := newTestEnv(t, false)
	env.dash.CatalogFailed(catalog.ErrLoadFailure)

	rec := env.do(http.MethodGet, "/api/status", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var status dashboard.Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.CatalogLoaded)
	assert.Contains(t, status.CatalogError, "catalog load failed")
}

func TestCatalogHandler(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name       string
		target     string
		wantStatus int
		wantNames  []string
	}{
		{
			name:       "full catalog sorted",
			target:     "/api/catalog",
			wantStatus: http.StatusOK,
			wantNames:  []string{"ISS", "METEOR-M2", "NOAA 15", "NOAA 19"},
		},
		{
			name:       "case-insensitive search",
			target:     "/api/catalog?q=noaa",
			wantStatus: http.StatusOK,
			wantNames:  []string{"NOAA 15", "NOAA 19"},
		},
		{
			name:       "limit",
			target:     "/api/catalog?limit=1",
			wantStatus: http.StatusOK,
			wantNames:  []string{"ISS"},
		},
		{
			name:       "invalid limit",
			target:     "/api/catalog?limit=abc",
			wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(http.MethodGet, tt.target, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus != http.StatusOK {
				assert.Equal(t, "VALIDATION_ERROR", decodeAPIError(t, rec).Code)
				return
			}

			var body struct {
				Satellites []string `json:"satellites"`
				Total      int      `json:"total"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantNames, body.Satellites)
			assert.Equal(t, 4, body.Total)
		})
	}
}

func TestUnitHandlers_ListAndGet(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	require.NoError(t, env.dash.ApplySnapshot(ctx, []models.FieldUnit{
		testutil.FullUnit("B", "ISS", 21.5, 40, 52.1, 4.3, 180, 45),
		{FuID: "A", Az: models.Float(10)},
	}))

	rec := env.do(http.MethodGet, "/api/units", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var list struct {
		Units []view.UnitState `json:"units"`
		Total int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, "A", list.Units[0].FuID)
	assert.Equal(t, "10°", list.Units[0].Fields[view.FieldAzimuth])
	assert.Equal(t, "B", list.Units[1].FuID)
	assert.Equal(t, "21.5 °C", list.Units[1].Fields[view.FieldTemperature])
	assert.Equal(t, "ISS", list.Units[1].Control.Selected)

	rec = env.do(http.MethodGet, "/api/units/B", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"fu_id":"B"`)

	rec = env.do(http.MethodGet, "/api/units/Z", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", decodeAPIError(t, rec).Code)
}

func TestUnitHandlers_ListMsgpack(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.dash.ApplySnapshot(context.Background(), testutil.Units("A", "B")))

	rec := env.do(http.MethodGet, "/api/units.msgpack", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/msgpack", rec.Header().Get(echo.HeaderContentType))

	var body struct {
		Units []view.UnitState `msgpack:"units"`
		Total int              `msgpack:"total"`
	}
	require.NoError(t, msgpack.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Total)
	assert.Equal(t, "A", body.Units[0].FuID)
	assert.Equal(t, view.Placeholder+" %", body.Units[0].Fields[view.FieldHumidity])
}

func TestUnitHandlers_GetUnitNamedMsgpack(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.dash.ApplySnapshot(context.Background(), testutil.Units("msgpack")))

	rec := env.do(http.MethodGet, "/api/units/msgpack", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var unit view.UnitState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unit))
	assert.Equal(t, "msgpack", unit.FuID)
}

func TestUnitHandlers_SelectSatellite(t *testing.T) {
	tests := []struct {
		name       string
		fuID       string
		body       string
		failSend   bool
		wantStatus int
		wantCode   string
		wantSent   int
	}{
		{name: "valid selection", fuID: "A", body: `{"satellite_name":"ISS"}`, wantStatus: http.StatusAccepted, wantSent: 1},
		{name: "placeholder is ignored", fuID: "A", body: `{"satellite_name":""}`, wantStatus: http.StatusNoContent},
		{name: "undefined is ignored", fuID: "A", body: `{"satellite_name":"undefined"}`, wantStatus: http.StatusNoContent},
		{name: "unknown option", fuID: "A", body: `{"satellite_name":"GOES 16"}`, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
		{name: "unknown unit", fuID: "Z", body: `{"satellite_name":"ISS"}`, wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "send failure", fuID: "A", body: `{"satellite_name":"ISS"}`, failSend: true, wantStatus: http.StatusBadGateway, wantCode: "UPSTREAM_ERROR"},
		{name: "malformed body", fuID: "A", body: `{"satellite_name":`, wantStatus: http.StatusBadRequest, wantCode: "BAD_REQUEST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, true)
			require.NoError(t, env.dash.ApplySnapshot(context.Background(), testutil.Units("A")))
			if tt.failSend {
				env.sender.FailWith(assert.AnError)
			}

			rec := env.do(http.MethodPost, "/api/units/"+tt.fuID+"/selection", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, decodeAPIError(t, rec).Code)
			}
			assert.Len(t, env.sender.Intents(), tt.wantSent)
		})
	}
}

func TestUnitHandlers_SelectionSurvivesSnapshot(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	require.NoError(t, env.dash.ApplySnapshot(ctx, testutil.Units("A", "B")))

	rec := env.do(http.MethodPost, "/api/units/B/selection", `{"satellite_name":"NOAA 19"}`)
	require.Equal(t, http.StatusAccepted, rec.Code)

	require.NoError(t, env.dash.ApplySnapshot(ctx, testutil.Units("B")))

	rec = env.do(http.MethodGet, "/api/units/B", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var unit view.UnitState
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &unit))
	assert.Equal(t, "NOAA 19", unit.Control.Selected)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/api/units/A", "").Code)
	assert.Equal(t, []models.SelectionIntent{{FuID: "B", SatelliteName: "NOAA 19"}}, env.sender.Intents())
}

func TestUnitHandlers_Logs(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.dash.AppendLog(context.Background(), "FU-1 connected"))

	rec := env.do(http.MethodGet, "/api/logs", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Lines []string `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, []string{"FU-1 connected"}, body.Lines)
}

func TestMetricsRoute(t *testing.T) {
	env := newTestEnv(t, true)
	require.NoError(t, env.dash.ApplySnapshot(context.Background(), testutil.Units("A")))

	rec := env.do(http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dashboard_rendered_units 1")
}

func TestErrorHandler(t *testing.T) {
	e := echo.New()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "api error", err: NewNotFoundError("field unit", "X"), wantStatus: http.StatusNotFound, wantCode: "NOT_FOUND"},
		{name: "echo error", err: echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), wantStatus: http.StatusMethodNotAllowed, wantCode: "HTTP_ERROR"},
		{name: "unknown error", err: assert.AnError, wantStatus: http.StatusInternalServerError, wantCode: "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", bytes.NewReader(nil)), rec)

			ErrorHandler(tt.err, c)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantCode, decodeAPIError(t, rec).Code)
		})
	}
}
