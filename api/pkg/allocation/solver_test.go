package allocation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/api/pkg/types"
)

func testSolveConfig() Config {
	return Config{
		IdleProbabilityThreshold: 0.5,
		StakeholderUsageCap:      0.6,
		SolverMaxTimeSeconds:     5,
		SolverRandomSeed:         42,
		ObjectiveScale:           1000,
		Workers:                  1,
		Engine:                   EngineCPSAT,
		EnableGreedyFallback:     true,
	}
}

func testRooms() []types.Room {
	return []types.Room{
		{ID: 1, Name: "Room A", Capacity: 30, RoomType: "Classroom"},
		{ID: 2, Name: "Room B", Capacity: 50, RoomType: "Auditorium"},
		{ID: 3, Name: "Room C", Capacity: 20, RoomType: "Lab"},
	}
}

func TestSolveRespectsThresholdAndCapacity(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 10, RequestedCapacity: 25, StakeholderID: "dept_a", PriorityWeight: 1.5},
		{ID: 11, RequestedCapacity: 45, StakeholderID: "dept_b", PriorityWeight: 1.0},
		{ID: 12, RequestedCapacity: 60, StakeholderID: "dept_c", PriorityWeight: 2.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.4},
		{RoomID: 3, IdleProbability: 0.7},
	}

	result, err := Solve(rooms, requests, predictions, testSolveConfig())
	require.NoError(t, err)

	idleByRoom := map[uint]float64{1: 0.9, 2: 0.4, 3: 0.7}
	capacityByRoom := map[uint]int{1: 30, 2: 50, 3: 20}
	capacityByRequest := map[uint]int{10: 25, 11: 45, 12: 60}
	for _, decision := range result.Allocations {
		assert.Greater(t, idleByRoom[decision.RoomID], 0.5)
		assert.GreaterOrEqual(t, capacityByRoom[decision.RoomID], capacityByRequest[decision.RequestID])
	}
	// request 11 needs 45 seats but the only room that size is below the
	// idle threshold; request 12 fits nowhere
	assert.Contains(t, result.UnassignedRequestIDs, uint(11))
	assert.Contains(t, result.UnassignedRequestIDs, uint(12))
}

func TestSolveAssignsRoomsAndRequestsAtMostOnce(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 10, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
		{ID: 11, RequestedCapacity: 10, StakeholderID: "dept_b", PriorityWeight: 1.0},
		{ID: 12, RequestedCapacity: 10, StakeholderID: "dept_c", PriorityWeight: 1.0},
		{ID: 13, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.8},
		{RoomID: 2, IdleProbability: 0.9},
		{RoomID: 3, IdleProbability: 0.7},
	}

	result, err := Solve(rooms, requests, predictions, testSolveConfig())
	require.NoError(t, err)

	seenRooms := map[uint]bool{}
	seenRequests := map[uint]bool{}
	for _, decision := range result.Allocations {
		assert.False(t, seenRooms[decision.RoomID], "room %d assigned twice", decision.RoomID)
		assert.False(t, seenRequests[decision.RequestID], "request %d assigned twice", decision.RequestID)
		seenRooms[decision.RoomID] = true
		seenRequests[decision.RequestID] = true
	}
	assert.Len(t, result.Allocations, 3)
}

func TestSolveZeroIdleRooms(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 20, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
		{ID: 21, RequestedCapacity: 10, StakeholderID: "dept_b", PriorityWeight: 1.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.2},
		{RoomID: 2, IdleProbability: 0.2},
		{RoomID: 3, IdleProbability: 0.2},
	}
	cfg := testSolveConfig()
	cfg.IdleProbabilityThreshold = 0.8

	result, err := Solve(rooms, requests, predictions, cfg)
	require.NoError(t, err)

	assert.Empty(t, result.Allocations)
	assert.Equal(t, 0.0, result.ObjectiveValue)
	assert.ElementsMatch(t, []uint{20, 21}, result.UnassignedRequestIDs)
}

func TestSolveStakeholderCapLimitsSingleStakeholder(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 30, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
		{ID: 31, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.8},
		{RoomID: 3, IdleProbability: 0.7},
	}
	cfg := testSolveConfig()
	cfg.StakeholderUsageCap = 0.5

	for _, engine := range []string{EngineCPSAT, EngineGreedy} {
		cfg.Engine = engine
		result, err := Solve(rooms, requests, predictions, cfg)
		require.NoError(t, err, "engine %s", engine)
		assert.Len(t, result.Allocations, 1, "engine %s", engine)
		assert.Len(t, result.UnassignedRequestIDs, 1, "engine %s", engine)
	}
}

func TestSolveGreedyDeterminism(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 40, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.4},
		{ID: 41, RequestedCapacity: 15, StakeholderID: "dept_b", PriorityWeight: 1.1},
		{ID: 42, RequestedCapacity: 20, StakeholderID: "dept_c", PriorityWeight: 1.8},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.85},
		{RoomID: 2, IdleProbability: 0.65},
		{RoomID: 3, IdleProbability: 0.75},
	}
	cfg := testSolveConfig()
	cfg.Engine = EngineGreedy

	first, err := Solve(rooms, requests, predictions, cfg)
	require.NoError(t, err)
	second, err := Solve(rooms, requests, predictions, cfg)
	require.NoError(t, err)

	assert.Equal(t, first.Allocations, second.Allocations)
	assert.Equal(t, first.UnassignedRequestIDs, second.UnassignedRequestIDs)
	assert.Equal(t, first.ObjectiveValue, second.ObjectiveValue)
}

func TestSolveUnknownEngineFallbackDisabled(t *testing.T) {
	cfg := testSolveConfig()
	cfg.Engine = "cplex"
	cfg.EnableGreedyFallback = false

	_, err := Solve(testRooms(), []types.AllocationRequest{
		{ID: 50, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
	}, nil, cfg)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSolverUnavailable))
}

func TestSolveUnknownEngineFallsBackToGreedy(t *testing.T) {
	cfg := testSolveConfig()
	cfg.Engine = "cplex"
	cfg.EnableGreedyFallback = true

	result, err := Solve(testRooms(), []types.AllocationRequest{
		{ID: 51, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
	}, []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
	}, cfg)
	require.NoError(t, err)
	assert.Len(t, result.Allocations, 1)
}

func TestBranchAndBoundBeatsGreedyOnAdversarialInput(t *testing.T) {
	// greedy gives the big room to the small request and strands the large
	// request; the exact engine finds the two-pair matching
	rooms := []types.Room{
		{ID: 1, Capacity: 30},
		{ID: 2, Capacity: 10},
	}
	requests := []types.AllocationRequest{
		{ID: 60, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
		{ID: 61, RequestedCapacity: 25, StakeholderID: "dept_b", PriorityWeight: 1.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.8},
	}
	cfg := testSolveConfig()

	cfg.Engine = EngineGreedy
	greedyResult, err := Solve(rooms, requests, predictions, cfg)
	require.NoError(t, err)
	assert.Len(t, greedyResult.Allocations, 1)

	cfg.Engine = EngineCPSAT
	exactResult, err := Solve(rooms, requests, predictions, cfg)
	require.NoError(t, err)

	assert.Greater(t, exactResult.ObjectiveValue, greedyResult.ObjectiveValue)
	assert.Len(t, exactResult.Allocations, 2)
}

func TestCapLimitCeiling(t *testing.T) {
	problem := &assignmentProblem{CapScaled: 500, Scale: 1000}

	assert.Equal(t, int64(1), problem.capLimit(1))
	assert.Equal(t, int64(1), problem.capLimit(2))
	assert.Equal(t, int64(2), problem.capLimit(3))
	assert.Equal(t, int64(2), problem.capLimit(4))

	problem.CapScaled = 600
	assert.Equal(t, int64(1), problem.capLimit(1))
	assert.Equal(t, int64(2), problem.capLimit(2))
	assert.Equal(t, int64(2), problem.capLimit(3))
}

func TestBuildProblemPairOrdering(t *testing.T) {
	rooms := testRooms()
	requests := []types.AllocationRequest{
		{ID: 70, RequestedCapacity: 10, StakeholderID: "dept_a", PriorityWeight: 1.0},
		{ID: 71, RequestedCapacity: 10, StakeholderID: "dept_b", PriorityWeight: 1.0},
	}
	predictions := []types.IdlePrediction{
		{RoomID: 1, IdleProbability: 0.9},
		{RoomID: 2, IdleProbability: 0.9},
		{RoomID: 3, IdleProbability: 0.6},
	}

	problem := buildProblem(rooms, requests, predictions, testSolveConfig())
	require.Len(t, problem.Pairs, 6)
	for i := 1; i < len(problem.Pairs); i++ {
		previous, current := problem.Pairs[i-1], problem.Pairs[i]
		if previous.Coefficient == current.Coefficient {
			if previous.RequestID == current.RequestID {
				assert.Less(t, previous.RoomID, current.RoomID)
			} else {
				assert.Less(t, previous.RequestID, current.RequestID)
			}
		} else {
			assert.Greater(t, previous.Coefficient, current.Coefficient)
		}
	}
}
