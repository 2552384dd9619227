package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"locksmith-coverage/internal/db"
	"locksmith-coverage/internal/models"
	"locksmith-coverage/internal/profile"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Meta    *meta           `json:"meta"`
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()

	database, err := db.New(filepath.Join(dir, "coverage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	profiles, err := profile.Open(filepath.Join(dir, "profiles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { profiles.Close() })

	_, err = database.InsertBaselineBatch([]models.CoverageBaseline{
		{Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023, ToolFamily: models.FamilyAutel, Status: models.StatusFull},
		{Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023, ToolFamily: models.FamilySmartPro, Status: models.StatusNone},
		{Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023, ToolFamily: models.FamilyLonsdor, Status: models.StatusFull},
		{Make: "Ford", Model: "F-150", YearStart: 2021, YearEnd: 2023, ToolFamily: models.FamilyVVDI, Status: models.StatusPartial},
		{Make: "Nissan", Model: "Leaf", YearStart: 2018, YearEnd: 2020, ToolFamily: models.FamilyAutel, Status: models.StatusNone},
	})
	require.NoError(t, err)

	return NewServer(database, profiles, Options{Registry: prometheus.NewRegistry(), Workers: 2})
}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestHealth_SetsRequestID(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, env.Success)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
}

func TestReadiness_Endpoint(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/readiness",
		`{"make":"Ford","model":"F-150","year":2022,"tools":{"tool_ids":["autel_im608_pro2"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Readiness
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Equal(t, models.ReadinessReady, got.Status)
	assert.Empty(t, got.Blockers)
	assert.Equal(t, "Ford F-150 2022", got.Vehicle)
}

func TestReadiness_WithProfile(t *testing.T) {
	s := newTestServer(t)
	rec, _ := do(t, s, http.MethodPut, "/api/v1/profiles/van-1",
		`{"name":"Van","tools":{"tool_ids":["vvdi2"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodPost, "/api/v1/readiness",
		`{"make":"Ford","model":"F-150","year":2022,"profile_id":"van-1"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Readiness
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.NotEqual(t, models.ReadinessReady, got.Status)
	require.NotEmpty(t, got.Blockers)
	assert.True(t, strings.HasPrefix(got.Blockers[0], "vvdi: "))

	rec, _ = do(t, s, http.MethodPost, "/api/v1/readiness",
		`{"make":"Ford","model":"F-150","year":2022,"profile_id":"missing"}`)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReadiness_Validation(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/readiness", `{"make":"Ford"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/readiness", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFleetReadiness_KeepsOrder(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/readiness/fleet", `{
		"vehicles":[
			{"make":"Nissan","model":"Leaf","year":2019},
			{"make":"Ford","model":"F-150","year":2022}
		],
		"tools":{"tool_ids":["autel_im608_pro2"]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Readiness
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 2)
	assert.Equal(t, models.ReadinessCannotService, got[0].Status)
	assert.Equal(t, models.ReadinessReady, got[1].Status)
}

func TestInfer_Endpoint(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/coverage/infer",
		`{"tool_id":"autel_im508s","status":"Yes","platform_tag":"CAN FD","year_end":2021}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got inferResponse
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.False(t, got.Verdict.Covered)
	assert.Equal(t, models.ReasonPlatformExcluded, got.Verdict.Reason)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/coverage/infer", `{"status":"Yes"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHeatmap_Endpoint(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/v1/heatmap", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Heatmap
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got.Groups, 2)
	assert.Equal(t, "Ford F-150 2021-2023", got.Groups[0].VehicleGroupLabel)
	assert.Equal(t, models.HeatGreen, got.Groups[0].Status)
	assert.Equal(t, models.HeatRed, got.Groups[1].Status)
	assert.Equal(t, 1, got.Counts.Red)

	rec, env = do(t, s, http.MethodGet, "/api/v1/heatmap?make=nissan", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &got))
	assert.Len(t, got.Groups, 1)
}

func TestBaselines_BatchAndList(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/baselines/batch", `[
		{"make":"Kia","model":"Soul","year_start":2020,"tool_family":"vvdi","status":"Check"},
		{"make":"Kia","model":"Soul","year_start":2020,"tool_family":"obdstar","status":"Yes"}
	]`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, env.Meta)
	assert.Len(t, env.Meta.Warnings, 1)

	rec, env = do(t, s, http.MethodGet, "/api/v1/baselines?make=kia&tool_family=VVDI", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.CoverageBaseline
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, models.StatusCheck, got[0].Status)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/baselines?tool_family=obdstar", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, env = do(t, s, http.MethodPost, "/api/v1/baselines/batch", `[{"make":"Kia"}]`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.False(t, env.Success)
}

func TestVehicles_Endpoints(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/v1/vehicles?make=ford", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var list []models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/vehicles/"+strconv.FormatInt(list[0].ID, 10), "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/vehicles/9999", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/vehicles?year=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProfiles_CRUD(t *testing.T) {
	s := newTestServer(t)

	rec, _ := do(t, s, http.MethodGet, "/api/v1/profiles/shop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = do(t, s, http.MethodPut, "/api/v1/profiles/shop", `{"tools":{"tool_ids":["Lonsdor_K518ISE"]}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec, env := do(t, s, http.MethodGet, "/api/v1/profiles", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []models.OwnedProfile
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, []string{"lonsdor_k518ise"}, list[0].Tools.ToolIDs)

	rec, _ = do(t, s, http.MethodDelete, "/api/v1/profiles/shop", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = do(t, s, http.MethodDelete, "/api/v1/profiles/shop", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTiersStatsAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec, env := do(t, s, http.MethodGet, "/api/v1/tiers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var tiers []models.ToolTier
	require.NoError(t, json.Unmarshal(env.Data, &tiers))
	assert.NotEmpty(t, tiers)

	rec, env = do(t, s, http.MethodGet, "/api/v1/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var stats db.Stats
	require.NoError(t, json.Unmarshal(env.Data, &stats))
	assert.Equal(t, int64(5), stats.TotalBaselines)

	do(t, s, http.MethodPost, "/api/v1/readiness", `{"make":"Ford","model":"F-150","year":2022}`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	metricsRec := httptest.NewRecorder()
	s.Router().ServeHTTP(metricsRec, req)
	require.Equal(t, http.StatusOK, metricsRec.Code)
	body := metricsRec.Body.String()
	assert.Contains(t, body, "keycov_readiness_total")
	assert.Contains(t, body, "keycov_http_request_duration_seconds")
}

func TestFleetReadiness_RepeatedVehiclesShareAssessment(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/readiness/fleet", `{
		"vehicles":[
			{"make":"Ford","model":"F-150","year":2022},
			{"make":"ford","model":"f-150","year":2022},
			{"make":"Nissan","model":"Leaf","year":2019},
			{"make":"Ford","model":"F-150","year":2022}
		],
		"tools":{"tool_ids":["autel_im608_pro2"]}
	}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Readiness
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 4)
	assert.Equal(t, models.ReadinessReady, got[0].Status)
	assert.Equal(t, got[0], got[1])
	assert.Equal(t, got[0], got[3])
	assert.Equal(t, models.ReadinessCannotService, got[2].Status)
	assert.Equal(t, 4, env.Meta.Total)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/readiness/fleet",
		`{"vehicles":[{"make":"Ford","model":"F-150","year":2022},{"make":"Ford"}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestVehicles_CreateDrivesPlatformExclusion(t *testing.T) {
	s := newTestServer(t)
	readiness := func() models.Readiness {
		rec, env := do(t, s, http.MethodPost, "/api/v1/readiness",
			`{"make":"Ford","model":"F-150","year":2022,"tools":{"tool_ids":["autel_im508s"]}}`)
		require.Equal(t, http.StatusOK, rec.Code)
		var r models.Readiness
		require.NoError(t, json.Unmarshal(env.Data, &r))
		return r
	}

	before := readiness()
	assert.Equal(t, models.ReadinessNeedParts, before.Status)
	assert.Equal(t, "autel: needs verification", before.Blockers[0])

	rec, env := do(t, s, http.MethodPost, "/api/v1/vehicles",
		`{"make":"Ford","model":"F-150","year_start":2021,"year_end":2023,"platform_tag":"CAN FD"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.Vehicle
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ID)
	assert.Equal(t, "CAN FD", created.PlatformTag)

	after := readiness()
	assert.Equal(t, models.ReadinessNeedSubscription, after.Status)
	assert.Equal(t, "autel: platform excluded (CAN FD)", after.Blockers[0])

	rec, env = do(t, s, http.MethodPost, "/api/v1/vehicles", `{"make":"Toyota","year_start":2018}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, env.Error, "model is required")
}

func TestBaselines_CreateSingle(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodPost, "/api/v1/baselines",
		`{"make":"Kia","model":"Soul","year_start":2020,"year_end":2022,"tool_family":"lonsdor","status":"Partial",
		  "limitations":[{"category":"pin required"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	var created models.CoverageBaseline
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ID)

	rec, env = do(t, s, http.MethodGet, "/api/v1/baselines?make=kia", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got []models.CoverageBaseline
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got, 1)
	assert.Equal(t, []models.Limitation{{Category: models.LimitPINRequired}}, got[0].Limitations)

	rec, _ = do(t, s, http.MethodPost, "/api/v1/baselines", `{"make":"Kia","tool_family":"obdstar"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTools_ListsToolsWithoutTier(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/v1/tools", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var tools []struct {
		ID     string            `json:"id"`
		Family models.ToolFamily `json:"family"`
		Tier   *models.ToolTier  `json:"tier"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tools))
	byID := make(map[string]int)
	for i, tool := range tools {
		byID[tool.ID] = i
	}
	require.Contains(t, byID, "smart_pro")
	assert.Nil(t, tools[byID["smart_pro"]].Tier)
	require.Contains(t, byID, "autel_im508s")
	require.NotNil(t, tools[byID["autel_im508s"]].Tier)
	assert.Equal(t, 75, tools[byID["autel_im508s"]].Tier.CoveragePercent)
}

func TestHeatmap_SortBySeverity(t *testing.T) {
	s := newTestServer(t)
	rec, env := do(t, s, http.MethodGet, "/api/v1/heatmap?sort=severity", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.Heatmap
	require.NoError(t, json.Unmarshal(env.Data, &got))
	require.Len(t, got.Groups, 2)
	assert.Equal(t, models.HeatRed, got.Groups[0].Status)
	assert.Equal(t, "Nissan Leaf 2018-2020", got.Groups[0].VehicleGroupLabel)

	rec, _ = do(t, s, http.MethodGet, "/api/v1/heatmap?sort=colour", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
