package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stitts-dev/caddie-engine/internal/api/handlers"
	"github.com/stitts-dev/caddie-engine/internal/course"
	"github.com/stitts-dev/caddie-engine/internal/geom"
	"github.com/stitts-dev/caddie-engine/internal/learning"
	"github.com/stitts-dev/caddie-engine/internal/mc"
	"github.com/stitts-dev/caddie-engine/internal/planner"
	"github.com/stitts-dev/caddie-engine/internal/player"
	"github.com/stitts-dev/caddie-engine/internal/playslike"
	"github.com/stitts-dev/caddie-engine/internal/storage"
	"github.com/stitts-dev/caddie-engine/pkg/config"
	"github.com/stitts-dev/caddie-engine/pkg/utils"
)

func newTestRouter(t *testing.T) (*gin.Engine, Dependencies) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := storage.NewMemoryStore()
	telemetry, err := learning.NewTelemetryStore(filepath.Join(t.TempDir(), "telemetry.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = telemetry.Close() })

	learningStore := learning.NewStore(store, logger)
	deps := Dependencies{
		Config:          &config.Config{TuningLambda: 0.1},
		Logger:          logger,
		Planner:         planner.New(planner.DefaultTuning(), logger),
		Store:           store,
		Dispersion:      player.NewDispersionStore(store, logger, 6),
		Tuning:          playslike.NewTuningStore(store, logger),
		LearningStore:   learningStore,
		Telemetry:       telemetry,
		LearningService: learning.NewService(telemetry, learningStore, learning.Options{}, 0, logger),
	}

	router := gin.New()
	health := handlers.NewHealthHandler(store, telemetry, logger)
	router.GET("/health", health.GetHealth)
	SetupRoutes(router.Group("/api/v1"), deps)
	return router, deps
}

func performJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) *utils.AppError {
	t.Helper()
	var resp utils.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	return resp.Error
}

func geoNorth(northM float64) geom.GeoPoint {
	return geom.GeoPoint{Lat: 59.3293 + northM/111320.0, Lon: 18.0686}
}

func TestPlanTeeValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", gin.H{
		"pin": geoNorth(300),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "tee and pin coordinates are required", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", gin.H{
		"tee": geoNorth(0),
		"pin": geoNorth(300),
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Bundle or courseId is required", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", gin.H{
		"tee":      geoNorth(0),
		"pin":      geoNorth(300),
		"courseId": "pebble",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No course provider configured; send an inline bundle", decodeError(t, w).Message)
}

func TestPlanTeeInlineBundle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", gin.H{
		"tee":    geoNorth(0),
		"pin":    geoNorth(400),
		"bundle": course.Bundle{},
		"useMC":  false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool             `json:"success"`
		Data    planner.ShotPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Equal(t, "tee", resp.Data.Kind)
	assert.NotEmpty(t, resp.Data.Club)
	assert.Nil(t, resp.Data.MC)
	assert.Positive(t, resp.Data.CarryM)
}

func TestPlanTeeMonteCarloDeterministic(t *testing.T) {
	router, _ := newTestRouter(t)

	body := gin.H{
		"tee":     geoNorth(0),
		"pin":     geoNorth(380),
		"bundle":  course.Bundle{},
		"samples": 256,
		"seed":    7,
	}
	first := performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", body)
	second := performJSON(t, router, http.MethodPost, "/api/v1/plan/tee", body)
	require.Equal(t, http.StatusOK, first.Code)
	require.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())

	var resp struct {
		Data planner.ShotPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(first.Body.Bytes(), &resp))
	require.NotNil(t, resp.Data.MC)
	assert.Equal(t, 256, resp.Data.MC.Samples)
	require.NotNil(t, resp.Data.EV)
}

func TestPlanApproachInlineBundle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/plan/approach", gin.H{
		"ball":   geoNorth(0),
		"pin":    geoNorth(150),
		"bundle": course.Bundle{},
		"useMC":  false,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data planner.ShotPlan `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "approach", resp.Data.Kind)
	assert.Equal(t, player.Iron7, resp.Data.Club)

	w = performJSON(t, router, http.MethodPost, "/api/v1/plan/approach", gin.H{
		"pin":    geoNorth(150),
		"bundle": course.Bundle{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "ball and pin coordinates are required", decodeError(t, w).Message)
}

func TestSimulateEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/simulate", gin.H{
		"samples":     200,
		"longSigma_m": 10,
		"latSigma_m":  5,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "range_m must be positive", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/simulate", gin.H{
		"samples":     200,
		"seed":        1,
		"range_m":     150,
		"longSigma_m": 10,
		"latSigma_m":  5,
		"features": []gin.H{
			{
				"kind": "fairway",
				"rings": [][]geom.Point{{
					{X: -20, Y: 100}, {X: 20, Y: 100}, {X: 20, Y: 200}, {X: -20, Y: 200},
				}},
			},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Success bool      `json:"success"`
		Data    mc.SimOut `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.True(t, resp.Success)
	assert.Greater(t, resp.Data.PFairway, 0.5)
	assert.Zero(t, resp.Data.PHazard)
}

func TestSimulateAggregateEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/simulate/aggregate", gin.H{
		"samples":     256,
		"seed":        3,
		"range_m":     150,
		"sigmaLong_m": 8,
		"sigmaLat_m":  5,
		"hazards": []gin.H{
			{
				"id":    "pond",
				"label": "water left",
				"rings": [][]geom.Point{{
					{X: -60, Y: 120}, {X: -10, Y: 120}, {X: -10, Y: 180}, {X: -60, Y: 180},
				}},
			},
		},
		"greenTargets": []gin.H{
			{
				"id": "green",
				"rings": [][]geom.Point{{
					{X: -15, Y: 135}, {X: 15, Y: 135}, {X: 15, Y: 165}, {X: -15, Y: 165},
				}},
			},
		},
		"pin": geom.Point{X: 0, Y: 150},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data mc.Result `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 256, resp.Data.Samples)
	assert.Greater(t, resp.Data.SuccessRate, 0.5)
	assert.Positive(t, resp.Data.ExpectedDistanceToPin)
}

func TestPlaysLikeDeltaEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/playslike/delta", gin.H{
		"wind": gin.H{"speed_mps": 6},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "baseDistance_m must be positive", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/playslike/delta", gin.H{
		"baseDistance_m": 150,
		"wind": gin.H{
			"speed_mps":          6,
			"direction_deg_from": 0,
			"targetAzimuth_deg":  0,
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data playslike.WindSlopeDelta `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.InDelta(t, -150*playslike.DefaultHeadPerMps*6, resp.Data.DeltaHeadM, 1e-9)
	assert.InDelta(t, resp.Data.DeltaHeadM, resp.Data.DeltaTotalM, 1e-9)
}

func TestPlaysLikeLearnAndCoeffsLifecycle(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/playslike/learn", gin.H{"shots": []gin.H{}})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "shots must not be empty", decodeError(t, w).Message)

	temp := 5.0
	shots := make([]gin.H, 0, 120)
	for i := 0; i < 120; i++ {
		base := 120.0 + 15.0*float64(i%5)
		shots = append(shots, gin.H{
			"baseDistance_m": base,
			"actual_carry_m": base + 0.002*base*(20.0-temp),
			"temperatureC":   temp,
		})
	}
	w = performJSON(t, router, http.MethodPost, "/api/v1/playslike/learn", gin.H{"shots": shots})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var learned struct {
		Data playslike.TuningSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &learned))
	assert.Equal(t, 120, learned.Data.Samples)
	assert.Positive(t, learned.Data.Alpha)

	w = performJSON(t, router, http.MethodGet, "/api/v1/playslike/coeffs", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var coeffs struct {
		Data struct {
			Defaults  playslike.PersonalCoefficients `json:"defaults"`
			Personal  *playslike.TuningSnapshot      `json:"personal"`
			Effective playslike.PersonalCoefficients `json:"effective"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &coeffs))
	require.NotNil(t, coeffs.Data.Personal)
	assert.Equal(t, 120, coeffs.Data.Personal.Samples)

	w = performJSON(t, router, http.MethodDelete, "/api/v1/playslike/coeffs", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Fresh decode target: unmarshal leaves absent fields untouched and would
	// keep the earlier Personal pointer alive.
	w = performJSON(t, router, http.MethodGet, "/api/v1/playslike/coeffs", nil)
	var cleared struct {
		Data struct {
			Defaults  playslike.PersonalCoefficients `json:"defaults"`
			Personal  *playslike.TuningSnapshot      `json:"personal"`
			Effective playslike.PersonalCoefficients `json:"effective"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Nil(t, cleared.Data.Personal)
	assert.Equal(t, cleared.Data.Defaults, cleared.Data.Effective)
}

func TestStrategyLaneEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/strategy/lane", gin.H{
		"profile": "neutral",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "rawDist_m must be positive", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/strategy/lane", gin.H{
		"rawDist_m":   200,
		"laneWidth_m": 30,
		"profile":     "neutral",
		"dispersion":  gin.H{"sigma_m": 14},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Data planner.StrategyDecision `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, planner.ProfileNeutral, resp.Data.Profile)
	assert.Zero(t, resp.Data.Recommended.OffsetM)
	assert.InDelta(t, 200, resp.Data.Recommended.CarryM, 10+1e-9)
}

func TestStrategyDangerSideEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/strategy/danger-side", gin.H{
		"reasons": []gin.H{
			{"kind": "hazard", "label": "water left", "value": 0.4, "direction": "left"},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data struct {
			Side string `json:"side"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "left", resp.Data.Side)
}

func TestDispersionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodGet, "/api/v1/player/dispersion", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var snapshot struct {
		Data player.DispersionSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	assert.Empty(t, snapshot.Data.Clubs)

	w = performJSON(t, router, http.MethodPut, "/api/v1/player/dispersion", gin.H{
		"clubs": gin.H{},
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "clubs must not be empty", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPut, "/api/v1/player/dispersion", gin.H{
		"clubs": gin.H{
			"driver": gin.H{"sigma_long_m": 22, "sigma_lat_m": 11, "n": 40},
		},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &snapshot))
	require.Contains(t, snapshot.Data.Clubs, player.Driver)
	assert.Equal(t, 40, snapshot.Data.Clubs[player.Driver].N)

	w = performJSON(t, router, http.MethodDelete, "/api/v1/player/dispersion", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// Fresh decode target: unmarshal merges into an existing clubs map, so
	// reusing the struct above would keep the driver entry.
	w = performJSON(t, router, http.MethodGet, "/api/v1/player/dispersion", nil)
	var cleared struct {
		Data player.DispersionSnapshot `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cleared))
	assert.Empty(t, cleared.Data.Clubs)
}

func TestTelemetryValidation(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodPost, "/api/v1/telemetry/accepts", gin.H{
		"profile":   "neutral",
		"presented": 10,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "clubId is required", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/telemetry/accepts", gin.H{
		"profile": "neutral",
		"clubId":  "driver",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "presented must be positive", decodeError(t, w).Message)

	w = performJSON(t, router, http.MethodPost, "/api/v1/telemetry/outcomes", gin.H{
		"profile": "neutral",
		"clubId":  "driver",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "tp+fn must be positive", decodeError(t, w).Message)
}

func TestLearningFoldFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodGet, "/api/v1/learning/suggestions?profile=neutral&club=driver", nil)
	require.Equal(t, http.StatusNotFound, w.Code)

	w = performJSON(t, router, http.MethodPost, "/api/v1/telemetry/accepts", gin.H{
		"profile":   "neutral",
		"clubId":    "driver",
		"presented": 200,
		"accepted":  150,
		"ts":        1000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performJSON(t, router, http.MethodPost, "/api/v1/telemetry/outcomes", gin.H{
		"profile": "neutral",
		"clubId":  "driver",
		"tp":      60,
		"fn":      140,
		"ts":      2000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performJSON(t, router, http.MethodPost, "/api/v1/learning/fold", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = performJSON(t, router, http.MethodGet, "/api/v1/learning/suggestions?profile=neutral&club=driver", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var single struct {
		Data learning.Suggestion `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &single))
	assert.Equal(t, "driver", single.Data.ClubID)
	assert.InDelta(t, 0.3, single.Data.SuccessEma, 1e-9)
	assert.InDelta(t, 0.05, single.Data.HazardDelta, 1e-9)
	assert.InDelta(t, -0.05, single.Data.DistanceDelta, 1e-9)
	assert.Equal(t, 200, single.Data.SampleSize)

	w = performJSON(t, router, http.MethodGet, "/api/v1/learning/suggestions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var all struct {
		Data learning.SuggestionMap `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	require.Contains(t, all.Data, planner.ProfileNeutral)
	assert.Contains(t, all.Data[planner.ProfileNeutral], "driver")
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	w := performJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var status handlers.HealthStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "caddie-engine", status.Service)
	assert.Equal(t, "ok", status.Checks["store"])
	assert.Equal(t, "ok", status.Checks["telemetry"])
}
