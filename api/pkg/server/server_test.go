package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/simulation"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/types"
	"github.com/atriumhq/atrium/api/pkg/workflow"
)

func newTestConfig(adminToken string) *config.ServerConfig {
	cfg := &config.ServerConfig{
		Prediction: config.Prediction{
			TimeSlotRegex:               `^\d{2}-\d{2}$`,
			RollingWindowDays:           7,
			DefaultOccupancyProbability: 0.5,
			MinTrainingRows:             10,
			ModelMaxIter:                200,
			RandomState:                 42,
			ModelVersion:                "v1",
		},
		Allocation: config.Allocation{
			IdleProbabilityThreshold: 0.5,
			StakeholderUsageCap:      0.8,
			SolverMaxTimeSeconds:     5,
			SolverRandomSeed:         42,
			ObjectiveScale:           1000,
			CPSATWorkers:             1,
			ForecastHistoryDays:      30,
			SolverEngine:             "cpsat",
			EnableGreedyFallback:     true,
		},
		Simulation: config.Simulation{
			CPSATWorkers:     1,
			SolverRandomSeed: 42,
		},
	}
	cfg.App.AdminToken = adminToken
	return cfg
}

type serverFixture struct {
	server *AtriumAPIServer
	store  *store.SQLiteStore
	rooms  []types.Room
}

// newFixture builds a fully wired server over a seeded temp store. An empty
// adminToken disables the bearer guard.
func newFixture(t *testing.T, adminToken string, train bool) *serverFixture {
	t.Helper()
	ctx := context.Background()

	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	rooms := make([]types.Room, 0, 2)
	for i, name := range []string{"Room A", "Room B"} {
		room, err := s.CreateRoom(ctx, &types.Room{
			Name: name, Capacity: 30 + i*10, RoomType: "Classroom", Location: "Block 1",
		})
		require.NoError(t, err)
		rooms = append(rooms, *room)
	}

	if train {
		var records []types.BookingRecord
		for day := 1; day <= 20; day++ {
			for _, room := range rooms {
				records = append(records, types.BookingRecord{
					RoomID:   room.ID,
					Date:     fmt.Sprintf("2026-01-%02d", day),
					TimeSlot: "09-11",
					Occupied: day % 2,
				})
			}
		}
		require.NoError(t, s.CreateBookingRecords(ctx, records))
	}

	cfg := newTestConfig(adminToken)
	predictor, err := prediction.NewPredictor(cfg, s)
	require.NoError(t, err)
	if train {
		require.NoError(t, predictor.Train(ctx))
	}

	allocator := allocation.NewAllocator(cfg, s, predictor)
	simulator := simulation.NewSimulator(cfg, s, predictor)
	wf := workflow.NewWorkflow(cfg, s, predictor, allocator, simulator)
	return &serverFixture{
		server: NewServer(cfg, s, predictor, allocator, simulator, wf),
		store:  s,
		rooms:  rooms,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, bearer string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	recorder := httptest.NewRecorder()
	f.server.router.ServeHTTP(recorder, req)
	return recorder
}

func (f *serverFixture) login(t *testing.T, adminToken string) string {
	t.Helper()
	recorder := f.do(t, http.MethodPost, "/login", "", map[string]string{"admin_token": adminToken})
	require.Equal(t, http.StatusOK, recorder.Code)
	var payload struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	require.Equal(t, "bearer", payload.TokenType)
	require.NotEmpty(t, payload.AccessToken)
	return payload.AccessToken
}

func TestBearerGuard(t *testing.T) {
	fixture := newFixture(t, "secret-admin-token", true)

	recorder := fixture.do(t, http.MethodGet, "/model_metadata", "", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = fixture.do(t, http.MethodGet, "/model_metadata", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	session := fixture.login(t, "secret-admin-token")
	recorder = fixture.do(t, http.MethodGet, "/model_metadata", session, nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestLoginRejectsWrongToken(t *testing.T) {
	fixture := newFixture(t, "secret-admin-token", false)

	recorder := fixture.do(t, http.MethodPost, "/login", "", map[string]string{"admin_token": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)

	recorder = fixture.do(t, http.MethodPost, "/login", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestGuardDisabledWithoutAdminToken(t *testing.T) {
	fixture := newFixture(t, "", true)

	recorder := fixture.do(t, http.MethodGet, "/model_metadata", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPublicSurface(t *testing.T) {
	fixture := newFixture(t, "secret-admin-token", false)

	for _, path := range []string{"/", "/dashboard"} {
		recorder := fixture.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusOK, recorder.Code)
		assert.Contains(t, recorder.Header().Get("Content-Type"), "text/html")
	}

	recorder := fixture.do(t, http.MethodGet, "/demo_context", "", nil)
	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestPredictAvailabilityStatusMapping(t *testing.T) {
	fixture := newFixture(t, "", true)

	recorder := fixture.do(t, http.MethodPost, "/predict_availability", "", map[string]any{
		"room_id": fixture.rooms[0].ID, "date": "2026-03-02", "time_slot": "09-11",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	var result types.PredictionResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	assert.GreaterOrEqual(t, result.IdleProbability, 0.0)
	assert.LessOrEqual(t, result.IdleProbability, 1.0)

	recorder = fixture.do(t, http.MethodPost, "/predict_availability", "", map[string]any{
		"room_id": fixture.rooms[0].ID, "date": "2026-03-02", "time_slot": "9am",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = fixture.do(t, http.MethodPost, "/predict_availability", "", map[string]any{
		"room_id": 9999, "date": "2026-03-02", "time_slot": "09-11",
	})
	assert.Equal(t, http.StatusNotFound, recorder.Code)
}

func TestPredictAvailabilityModelNotReady(t *testing.T) {
	fixture := newFixture(t, "", false)

	recorder := fixture.do(t, http.MethodPost, "/predict_availability", "", map[string]any{
		"room_id": fixture.rooms[0].ID, "date": "2026-03-02", "time_slot": "09-11",
	})
	assert.Equal(t, http.StatusServiceUnavailable, recorder.Code)
}

func TestApproveWithoutDraft(t *testing.T) {
	fixture := newFixture(t, "", true)

	recorder := fixture.do(t, http.MethodPost, "/approve", "", nil)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestCreateRequestValidationAndDefaults(t *testing.T) {
	fixture := newFixture(t, "", false)

	recorder := fixture.do(t, http.MethodPost, "/requests", "", map[string]any{
		"requested_capacity": 0, "requested_date": "2026-03-02", "requested_time_slot": "09-11",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = fixture.do(t, http.MethodPost, "/requests", "", map[string]any{
		"requested_capacity": 20, "requested_date": "02/03/2026", "requested_time_slot": "09-11",
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)

	recorder = fixture.do(t, http.MethodPost, "/requests", "", map[string]any{
		"requested_capacity": 20, "requested_date": "2026-03-02", "requested_time_slot": "09-11",
	})
	require.Equal(t, http.StatusOK, recorder.Code)
	var created types.AllocationRequest
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &created))
	assert.Equal(t, "UNKNOWN", created.StakeholderID)
	assert.Equal(t, 1.0, created.PriorityWeight)
	assert.Equal(t, types.RequestStatusPending, created.Status)
}

func TestOptimizeAllocationEndToEnd(t *testing.T) {
	fixture := newFixture(t, "", true)
	ctx := context.Background()

	_, err := fixture.store.CreateRequest(ctx, &types.AllocationRequest{
		RequestedCapacity: 10,
		RequestedDate:     "2026-03-02",
		RequestedTimeSlot: "09-11",
		StakeholderID:     "dept_a",
		PriorityWeight:    1.0,
	})
	require.NoError(t, err)
	for _, room := range fixture.rooms {
		require.NoError(t, fixture.store.SavePrediction(ctx, &types.IdlePrediction{
			RoomID: room.ID, Date: "2026-03-02", TimeSlot: "09-11", IdleProbability: 0.9,
		}))
	}

	recorder := fixture.do(t, http.MethodPost, "/optimize_allocation", "", map[string]any{
		"requested_date": "2026-03-02", "requested_time_slot": "09-11",
	})
	require.Equal(t, http.StatusOK, recorder.Code)

	var result types.OptimizationResult
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &result))
	require.Len(t, result.Allocations, 1)

	logs, err := fixture.store.CountAllocationLogs(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), logs)
}

func TestSimulateValidationError(t *testing.T) {
	fixture := newFixture(t, "", true)

	recorder := fixture.do(t, http.MethodPost, "/simulate", "", map[string]any{
		"idle_probability_threshold": 1.5,
	})
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
}

func TestRetrain(t *testing.T) {
	fixture := newFixture(t, "", true)

	recorder := fixture.do(t, http.MethodPost, "/retrain", "", nil)
	require.Equal(t, http.StatusOK, recorder.Code)
	var payload struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "RETRAINED", payload.Status)
}
