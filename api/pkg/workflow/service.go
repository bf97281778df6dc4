package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/simulation"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/types"
)

// allocationDraft holds the parameters of the last allocation preview so
// approval re-runs the exact same solve with persistence on.
type allocationDraft struct {
	RequestedDate            string
	RequestedTimeSlot        string
	IdleProbabilityThreshold *float64
	StakeholderUsageCap      *float64
}

// Workflow coordinates the predict, preview, simulate and approve steps
// the operator dashboard walks through. The draft and the cached metrics
// are the only mutable state and both live behind the mutex.
type Workflow struct {
	cfg       *config.ServerConfig
	store     store.Store
	predictor *prediction.Predictor
	allocator *allocation.Allocator
	simulator *simulation.Simulator

	mu            sync.Mutex
	draft         *allocationDraft
	latestMetrics *types.WorkflowMetrics
}

func NewWorkflow(
	cfg *config.ServerConfig,
	s store.Store,
	predictor *prediction.Predictor,
	allocator *allocation.Allocator,
	simulator *simulation.Simulator,
) *Workflow {
	return &Workflow{
		cfg:       cfg,
		store:     s,
		predictor: predictor,
		allocator: allocator,
		simulator: simulator,
	}
}

// PredictionRow is one per-room entry of the prediction step.
type PredictionRow struct {
	RoomID                   uint    `json:"room_id"`
	Date                     string  `json:"date"`
	TimeSlot                 string  `json:"time_slot"`
	PredictedIdleProbability float64 `json:"predicted_idle_probability"`
	ConfidenceScore          float64 `json:"confidence_score"`
}

// PredictResult is the payload of the prediction workflow step.
type PredictResult struct {
	Predictions []PredictionRow `json:"predictions"`
}

// PredictIdleProbabilities runs persisted inference for the requested
// rooms, or for every room when roomIDs is empty.
func (w *Workflow) PredictIdleProbabilities(ctx context.Context, targetDate, targetTimeSlot string, roomIDs []uint) (*PredictResult, error) {
	var targetRooms []uint
	if len(roomIDs) > 0 {
		unique := map[uint]bool{}
		for _, roomID := range roomIDs {
			if roomID == 0 {
				return nil, newValidationError("room_ids values must be positive integers")
			}
			unique[roomID] = true
		}
		for roomID := range unique {
			targetRooms = append(targetRooms, roomID)
		}
		sort.Slice(targetRooms, func(i, j int) bool { return targetRooms[i] < targetRooms[j] })
	} else {
		rooms, err := w.store.ListRooms(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list rooms: %w", err)
		}
		for _, room := range rooms {
			targetRooms = append(targetRooms, room.ID)
		}
	}

	rows := make([]PredictionRow, 0, len(targetRooms))
	for _, roomID := range targetRooms {
		result, err := w.predictor.Predict(ctx, roomID, targetDate, targetTimeSlot, true)
		if err != nil {
			return nil, err
		}
		rows = append(rows, PredictionRow{
			RoomID:                   roomID,
			Date:                     targetDate,
			TimeSlot:                 targetTimeSlot,
			PredictedIdleProbability: result.IdleProbability,
			ConfidenceScore:          result.ConfidenceScore,
		})
	}

	log.Info().
		Str("date", targetDate).
		Str("time_slot", targetTimeSlot).
		Int("rooms", len(rows)).
		Msg("workflow prediction step completed")
	return &PredictResult{Predictions: rows}, nil
}

// constraint statuses of an allocation preview row.
const (
	ConstraintStatusSatisfied  = "SATISFIED"
	ConstraintStatusUnassigned = "UNASSIGNED"
)

// PreviewRow is one request entry of an allocation preview. RoomID is nil
// when the request stayed unassigned.
type PreviewRow struct {
	RoomID           *uint   `json:"room_id"`
	Stakeholder      string  `json:"stakeholder"`
	TimeSlot         string  `json:"time_slot"`
	AllocationScore  float64 `json:"allocation_score"`
	PriorityWeight   float64 `json:"priority_weight"`
	ConstraintStatus string  `json:"constraint_status"`
}

// PreviewResult is the payload of an allocation preview. The underlying
// solve runs without persistence.
type PreviewResult struct {
	Allocations          []PreviewRow `json:"allocations"`
	ObjectiveValue       float64      `json:"objective_value"`
	FairnessMetric       float64      `json:"fairness_metric"`
	UnassignedRequestIDs []uint       `json:"unassigned_request_ids"`
}

// PreviewAllocation runs a dry solve for the window, builds per-request
// preview rows and stashes the parameters as the pending draft.
func (w *Workflow) PreviewAllocation(ctx context.Context, requestedDate, requestedTimeSlot string, idleThreshold, stakeholderCap *float64) (*PreviewResult, error) {
	result, err := w.allocator.Optimize(ctx, allocation.OptimizeParams{
		RequestedDate:            requestedDate,
		RequestedTimeSlot:        requestedTimeSlot,
		IdleProbabilityThreshold: idleThreshold,
		StakeholderUsageCap:      stakeholderCap,
		PersistOutputs:           false,
	})
	if err != nil {
		return nil, err
	}

	requests, err := w.store.ListPendingRequests(ctx, requestedDate, requestedTimeSlot)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	requestByID := make(map[uint]types.AllocationRequest, len(requests))
	for _, request := range requests {
		requestByID[request.ID] = request
	}

	rows := make([]PreviewRow, 0, len(requests))
	for _, decision := range result.Allocations {
		request, ok := requestByID[decision.RequestID]
		if !ok {
			continue
		}
		roomID := decision.RoomID
		rows = append(rows, PreviewRow{
			RoomID:           &roomID,
			Stakeholder:      request.StakeholderID,
			TimeSlot:         request.RequestedTimeSlot,
			AllocationScore:  decision.Score,
			PriorityWeight:   request.PriorityWeight,
			ConstraintStatus: ConstraintStatusSatisfied,
		})
	}
	for _, requestID := range result.UnassignedRequestIDs {
		request, ok := requestByID[requestID]
		if !ok {
			continue
		}
		rows = append(rows, PreviewRow{
			Stakeholder:      request.StakeholderID,
			TimeSlot:         request.RequestedTimeSlot,
			PriorityWeight:   request.PriorityWeight,
			ConstraintStatus: ConstraintStatusUnassigned,
		})
	}

	w.mu.Lock()
	w.draft = &allocationDraft{
		RequestedDate:            requestedDate,
		RequestedTimeSlot:        requestedTimeSlot,
		IdleProbabilityThreshold: idleThreshold,
		StakeholderUsageCap:      stakeholderCap,
	}
	w.mu.Unlock()

	log.Info().
		Str("date", requestedDate).
		Str("time_slot", requestedTimeSlot).
		Int("allocations", len(result.Allocations)).
		Int("unassigned", len(result.UnassignedRequestIDs)).
		Msg("allocation preview drafted")

	return &PreviewResult{
		Allocations:          rows,
		ObjectiveValue:       result.ObjectiveValue,
		FairnessMetric:       result.FairnessMetric,
		UnassignedRequestIDs: result.UnassignedRequestIDs,
	}, nil
}

// SimulationParams are the dashboard-facing what-if inputs. The single
// stakeholder weight multiplies every pending stakeholder's adjustment on
// top of any explicit per-stakeholder entries.
type SimulationParams struct {
	IdleProbabilityThreshold  *float64           `json:"idle_probability_threshold,omitempty"`
	StakeholderUsageCap       *float64           `json:"stakeholder_usage_cap,omitempty"`
	StakeholderPriorityWeight *float64           `json:"stakeholder_priority_weight,omitempty"`
	CapacityOverride          map[uint]int       `json:"capacity_override,omitempty"`
	PriorityAdjustment        map[string]float64 `json:"priority_adjustment,omitempty"`
}

// SimulationResult is the comparison payload plus the dashboard metrics
// derived from it.
type SimulationResult struct {
	Baseline   types.SimulationMetrics `json:"baseline"`
	Simulation types.SimulationMetrics `json:"simulation"`
	Delta      types.SimulationDelta   `json:"delta"`
	Metrics    types.WorkflowMetrics   `json:"metrics"`
}

func (w *Workflow) buildPriorityAdjustment(ctx context.Context, params SimulationParams) (map[string]float64, error) {
	adjustments := make(map[string]float64, len(params.PriorityAdjustment))
	for stakeholder, weight := range params.PriorityAdjustment {
		adjustments[stakeholder] = weight
	}
	if params.StakeholderPriorityWeight != nil {
		if *params.StakeholderPriorityWeight <= 0 {
			return nil, newValidationError("stakeholder_priority_weight must be > 0")
		}
		pending, err := w.store.ListAllPendingRequests(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list pending requests: %w", err)
		}
		stakeholders := map[string]bool{}
		for _, request := range pending {
			stakeholders[request.StakeholderID] = true
		}
		for stakeholder := range stakeholders {
			current, ok := adjustments[stakeholder]
			if !ok {
				current = 1.0
			}
			adjustments[stakeholder] = current * *params.StakeholderPriorityWeight
		}
	}
	if len(adjustments) == 0 {
		return nil, nil
	}
	return adjustments, nil
}

func toWorkflowMetrics(comparison *types.SimulationComparison) types.WorkflowMetrics {
	return types.WorkflowMetrics{
		BaselineIdleActivationRate:  comparison.Baseline.UtilizationRate,
		SimulatedIdleActivationRate: comparison.Simulation.UtilizationRate,
		AllocationEfficiencyScore:   comparison.Simulation.ObjectiveValue,
		UtilizationDeltaPercentage:  comparison.Delta.UtilizationChange * 100,
	}
}

// RunSimulation folds the dashboard inputs into temporary constraints,
// runs the comparison and caches the derived metrics.
func (w *Workflow) RunSimulation(ctx context.Context, params SimulationParams) (*SimulationResult, error) {
	adjustments, err := w.buildPriorityAdjustment(ctx, params)
	if err != nil {
		return nil, err
	}

	comparison, err := w.simulator.RunSimulation(ctx, types.TemporaryConstraints{
		IdleThreshold:      params.IdleProbabilityThreshold,
		StakeholderCap:     params.StakeholderUsageCap,
		CapacityOverride:   params.CapacityOverride,
		PriorityAdjustment: adjustments,
	})
	if err != nil {
		return nil, err
	}

	metrics := toWorkflowMetrics(comparison)
	w.mu.Lock()
	w.latestMetrics = &metrics
	w.mu.Unlock()

	return &SimulationResult{
		Baseline:   comparison.Baseline,
		Simulation: comparison.Simulation,
		Delta:      comparison.Delta,
		Metrics:    metrics,
	}, nil
}

// ApprovalResult is the payload of an approved allocation.
type ApprovalResult struct {
	Status                   string  `json:"status"`
	ApprovedAllocationsCount int     `json:"approved_allocations_count"`
	ObjectiveValue           float64 `json:"objective_value"`
	FairnessMetric           float64 `json:"fairness_metric"`
}

// ApproveLatestAllocation re-runs the drafted solve with persistence on
// and clears the draft. The allocated requests leave the pending pool in
// the same transaction that writes the logs.
func (w *Workflow) ApproveLatestAllocation(ctx context.Context) (*ApprovalResult, error) {
	w.mu.Lock()
	draft := w.draft
	w.mu.Unlock()
	if draft == nil {
		return nil, ErrDraftNotFound
	}

	result, err := w.allocator.Optimize(ctx, allocation.OptimizeParams{
		RequestedDate:            draft.RequestedDate,
		RequestedTimeSlot:        draft.RequestedTimeSlot,
		IdleProbabilityThreshold: draft.IdleProbabilityThreshold,
		StakeholderUsageCap:      draft.StakeholderUsageCap,
		PersistOutputs:           true,
	})
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.draft = nil
	w.mu.Unlock()

	log.Info().
		Str("date", draft.RequestedDate).
		Str("time_slot", draft.RequestedTimeSlot).
		Int("approved_allocations", len(result.Allocations)).
		Float64("objective_value", result.ObjectiveValue).
		Msg("allocation approved")

	return &ApprovalResult{
		Status:                   "APPROVED",
		ApprovedAllocationsCount: len(result.Allocations),
		ObjectiveValue:           result.ObjectiveValue,
		FairnessMetric:           result.FairnessMetric,
	}, nil
}

// GetMetrics returns the cached dashboard metrics, running a default
// simulation when no run happened yet.
func (w *Workflow) GetMetrics(ctx context.Context) (*types.WorkflowMetrics, error) {
	w.mu.Lock()
	cached := w.latestMetrics
	w.mu.Unlock()
	if cached != nil {
		metrics := *cached
		return &metrics, nil
	}

	result, err := w.RunSimulation(ctx, SimulationParams{})
	if err != nil {
		return nil, err
	}
	metrics := result.Metrics
	return &metrics, nil
}

// PendingWindow summarises one pending (date, slot) window for the demo
// context payload.
type PendingWindow struct {
	RequestedDate     string `json:"requested_date"`
	RequestedTimeSlot string `json:"requested_time_slot"`
	RequestCount      int    `json:"request_count"`
}

// DemoContext points a fresh dashboard session at the earliest pending
// window so the operator never has to guess a date.
type DemoContext struct {
	DefaultDate         string               `json:"default_date,omitempty"`
	DefaultTimeSlot     string               `json:"default_time_slot,omitempty"`
	PendingWindows      []PendingWindow      `json:"pending_windows"`
	PendingRequestCount int                  `json:"pending_request_count"`
	Rooms               []types.Room         `json:"rooms"`
	LastTraining        *types.ModelMetadata `json:"last_training,omitempty"`
}

// GetDemoContext aggregates the pending request pool into windows sorted
// by date then slot.
func (w *Workflow) GetDemoContext(ctx context.Context) (*DemoContext, error) {
	pending, err := w.store.ListAllPendingRequests(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}
	rooms, err := w.store.ListRooms(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}

	counts := map[types.SlotKey]int{}
	for _, request := range pending {
		counts[types.SlotKey{Date: request.RequestedDate, TimeSlot: request.RequestedTimeSlot}]++
	}
	keys := make([]types.SlotKey, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].TimeSlot < keys[j].TimeSlot
	})

	windows := make([]PendingWindow, 0, len(keys))
	for _, key := range keys {
		windows = append(windows, PendingWindow{
			RequestedDate:     key.Date,
			RequestedTimeSlot: key.TimeSlot,
			RequestCount:      counts[key],
		})
	}

	demoContext := &DemoContext{
		PendingWindows:      windows,
		PendingRequestCount: len(pending),
		Rooms:               rooms,
	}
	if len(windows) > 0 {
		demoContext.DefaultDate = windows[0].RequestedDate
		demoContext.DefaultTimeSlot = windows[0].RequestedTimeSlot
	}
	if w.predictor != nil {
		if metadata, err := w.predictor.Metadata(ctx); err == nil {
			demoContext.LastTraining = metadata
		}
	}
	return demoContext, nil
}
