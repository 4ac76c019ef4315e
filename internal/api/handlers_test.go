package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/analysis"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/metrics"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/models"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/service"
	"github.com/scsresearch1/voc-analytics-dashboard-sub000/internal/state"
)

const sampleCSV = `SNO,Phase,Heater_Profile,BME1_Temp,BME1_Hum
1,Puff,322,23.4,45.6
2,Puff,322,23.6,45.8
3,Pre-Puff,338,21.0,40.0
`

func newTestRouter(t *testing.T, src service.DataSource, opts service.Options) (http.Handler, *metrics.Collector) {
	t.Helper()

	collector := metrics.New()
	opts.Metrics = collector
	svc := service.NewAnalyticsService(src, analysis.NewCSVService(nil), state.NewCache(collector), opts)

	r := chi.NewRouter()
	r.Use(RequestLogger(collector))
	NewHandler(svc).RegisterRoutes(r)
	return r, collector
}

func newFileRouter(t *testing.T) http.Handler {
	t.Helper()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run1.csv"), []byte(sampleCSV), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.csv"), nil, 0o600))

	src, err := service.NewFileSource(dir)
	require.NoError(t, err)

	r, _ := newTestRouter(t, src, service.Options{MaxConcurrent: 2})
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestListFiles(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/files")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.FilesResponse](t, rec)
	require.Len(t, resp.Files, 2)
	assert.Equal(t, "empty.csv", resp.Files[0].Name)
	assert.Equal(t, "run1.csv", resp.Files[1].Name)
}

func TestGetSensors(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/sensors?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, []string{"Temperature", "Humidity"}, decode[[]string](t, rec))
}

func TestGetSummary(t *testing.T) {
	t.Parallel()

	h := newFileRouter(t)

	rec := get(t, h, "/api/summary?name=run1.csv&column=Temperature")
	require.Equal(t, http.StatusOK, rec.Code)

	s := decode[map[string]any](t, rec)
	assert.EqualValues(t, 3, s["count"])
	assert.InDelta(t, 21.0, s["min"], 1e-12)
	assert.InDelta(t, 23.4, s["median"], 1e-12)

	rec = get(t, h, "/api/summary?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 2)
}

func TestGetSummary_NonNumericColumn(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/summary?name=run1.csv&column=Phase")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"min":null,"max":null,"mean":null,"median":null,"std":null,"count":0}`, rec.Body.String())
}

func TestErrors(t *testing.T) {
	t.Parallel()

	h := newFileRouter(t)
	tests := []struct {
		target string
		status int
	}{
		{target: "/api/sensors", status: http.StatusBadRequest},
		{target: "/api/summary?column=Temperature", status: http.StatusBadRequest},
		{target: "/api/summary?name=run1.csv&column=CO2", status: http.StatusNotFound},
		{target: "/api/summary?name=missing.csv&column=Temperature", status: http.StatusNotFound},
		{target: "/api/correlation?name=../etc/passwd", status: http.StatusNotFound},
		{target: "/api/distribution?name=run1.csv", status: http.StatusBadRequest},
		{target: "/api/distribution?name=run1.csv&column=Humidity&bins=abc", status: http.StatusBadRequest},
		{target: "/api/distribution?name=run1.csv&column=Humidity&bins=100000", status: http.StatusBadRequest},
		{target: "/api/groups?name=run1.csv&keys=Batch", status: http.StatusNotFound},
		{target: "/api/groups/nested?name=run1.csv&outer=Phase", status: http.StatusBadRequest},
		{target: "/api/sensors?name=empty.csv", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.target, func(t *testing.T) {
			t.Parallel()

			rec := get(t, h, tt.target)
			assert.Equal(t, tt.status, rec.Code)
			assert.NotEmpty(t, decode[models.ErrorResponse](t, rec).Error)
		})
	}
}

func TestGetCorrelation(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/correlation?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)

	m := decode[analysis.CorrelationMatrix](t, rec)
	assert.Equal(t, []string{"Temperature", "Humidity"}, m.Sensors)
	require.Len(t, m.Values, 2)
	assert.Equal(t, 1.0, m.Values[0][0])
	assert.Equal(t, m.Values[0][1], m.Values[1][0])
}

func TestGetBoxplot(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/boxplot?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Sensors []string                  `json:"sensors"`
		Stats   map[string]map[string]any `json:"stats"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"Temperature", "Humidity"}, resp.Sensors)
	assert.Contains(t, resp.Stats["Temperature"], "q1")
	assert.Contains(t, resp.Stats["Temperature"], "outliers")
}

func TestGetDistribution(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/distribution?name=run1.csv&column=Humidity&bins=5")
	require.Equal(t, http.StatusOK, rec.Code)

	var fit struct {
		X          []float64 `json:"x"`
		Y          []float64 `json:"y"`
		Bins       []any     `json:"bins"`
		Degenerate bool      `json:"degenerate"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fit))
	assert.Len(t, fit.X, analysis.CurvePoints)
	assert.Len(t, fit.Y, analysis.CurvePoints)
	assert.Len(t, fit.Bins, 5)
	assert.False(t, fit.Degenerate)
}

func TestGetGroups(t *testing.T) {
	t.Parallel()

	h := newFileRouter(t)

	rec := get(t, h, "/api/groups?name=run1.csv&keys=Phase,Heater_Profile")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.GroupsResponse](t, rec)
	assert.Equal(t, []string{"Phase", "Heater_Profile"}, resp.Keys)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, []string{"Puff", "322"}, resp.Groups[0].Values)
	assert.Equal(t, 2, resp.Groups[0].Size)
	assert.Equal(t, []int{0, 1}, resp.Groups[0].Rows)
	assert.Equal(t, 1, resp.Groups[1].Size)

	// default keys
	rec = get(t, h, "/api/groups?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[models.GroupsResponse](t, rec).Groups, 2)
}

func TestGetNestedGroups(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/groups/nested?name=run1.csv&outer=Heater_Profile&inner=Phase")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.NestedGroupsResponse](t, rec)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, []string{"322"}, resp.Groups[0].Values)
	require.Len(t, resp.Groups[0].Groups, 1)
	assert.Equal(t, []string{"Puff"}, resp.Groups[0].Groups[0].Values)
}

func TestGetColumns(t *testing.T) {
	t.Parallel()

	rec := get(t, newFileRouter(t), "/api/columns?name=run1.csv")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.ColumnsResponse](t, rec)
	assert.Equal(t, 3, resp.Dataset.Rows)
	require.Len(t, resp.Columns, 5)
	assert.Equal(t, "Temperature", resp.Columns[3].Sensor)
}

// blockingSource never finishes loading until released.
type blockingSource struct {
	release chan struct{}
}

func (b blockingSource) List(context.Context) ([]models.FileInfo, error) { return nil, nil }

func (b blockingSource) Version(context.Context, string) (string, error) { return "v1", nil }

func (b blockingSource) Load(_ context.Context, name string) (*state.Dataset, error) {
	<-b.release
	return state.Parse(name, sampleCSV)
}

func (b blockingSource) Close() error { return nil }

func TestTimeout(t *testing.T) {
	t.Parallel()

	src := blockingSource{release: make(chan struct{})}
	t.Cleanup(func() { close(src.release) })

	h, _ := newTestRouter(t, src, service.Options{Timeout: 20 * time.Millisecond})

	rec := get(t, h, "/api/correlation?name=slow.csv")
	assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
}

func TestRequestLogger_RecordsRoutePattern(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "run1.csv"), []byte(sampleCSV), 0o600))
	src, err := service.NewFileSource(dir)
	require.NoError(t, err)

	h, collector := newTestRouter(t, src, service.Options{})
	get(t, h, "/api/sensors?name=run1.csv")
	get(t, h, "/nope")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `route="/api/sensors",status="200"`)
	assert.Contains(t, string(body), `route="unmatched",status="404"`)
}
