package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/atriumhq/atrium/api/pkg/allocation"
	"github.com/atriumhq/atrium/api/pkg/auth"
	"github.com/atriumhq/atrium/api/pkg/prediction"
	"github.com/atriumhq/atrium/api/pkg/simulation"
	"github.com/atriumhq/atrium/api/pkg/system"
	"github.com/atriumhq/atrium/api/pkg/types"
	"github.com/atriumhq/atrium/api/pkg/workflow"
)

func decodeBody(req *http.Request, target any) *system.HTTPError {
	if err := json.NewDecoder(req.Body).Decode(target); err != nil {
		return system.NewHTTPError400(fmt.Sprintf("invalid request body: %s", err))
	}
	return nil
}

func predictionError(err error) *system.HTTPError {
	switch {
	case prediction.IsValidationError(err):
		return system.NewHTTPError400(err.Error())
	case errors.Is(err, prediction.ErrRoomNotFound):
		return system.NewHTTPError404(err.Error())
	case errors.Is(err, prediction.ErrModelNotReady):
		return system.NewHTTPError503(err.Error())
	default:
		return system.NewHTTPError500(err.Error())
	}
}

func allocationError(err error) *system.HTTPError {
	switch {
	case allocation.IsValidationError(err), errors.Is(err, workflow.ErrDraftNotFound):
		return system.NewHTTPError400(err.Error())
	case errors.Is(err, allocation.ErrSolverUnavailable):
		return system.NewHTTPError503(err.Error())
	default:
		return system.NewHTTPError500(err.Error())
	}
}

func simulationError(err error) *system.HTTPError {
	switch {
	case simulation.IsValidationError(err), workflow.IsValidationError(err), allocation.IsValidationError(err):
		return system.NewHTTPError400(err.Error())
	case errors.Is(err, allocation.ErrSolverUnavailable):
		return system.NewHTTPError503(err.Error())
	default:
		return system.NewHTTPError500(err.Error())
	}
}

type loginRequest struct {
	AdminToken string `json:"admin_token"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (s *AtriumAPIServer) login(_ http.ResponseWriter, req *http.Request) (*loginResponse, *system.HTTPError) {
	var payload loginRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}
	if payload.AdminToken == "" {
		return nil, system.NewHTTPError400("admin_token is required")
	}

	token, err := s.authenticator.Login(payload.AdminToken)
	if err != nil {
		if errors.Is(err, auth.ErrAdminTokenNotConfigured) || errors.Is(err, auth.ErrInvalidToken) {
			return nil, system.NewHTTPError401(err.Error())
		}
		return nil, system.NewHTTPError500(err.Error())
	}
	return &loginResponse{AccessToken: token, TokenType: "bearer"}, nil
}

type predictAvailabilityRequest struct {
	RoomID   uint   `json:"room_id"`
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
}

func (s *AtriumAPIServer) predictAvailability(_ http.ResponseWriter, req *http.Request) (*types.PredictionResult, *system.HTTPError) {
	var payload predictAvailabilityRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}

	result, err := s.Predictor.Predict(req.Context(), payload.RoomID, payload.Date, payload.TimeSlot, true)
	if err != nil {
		return nil, predictionError(err)
	}
	return result, nil
}

type optimizeAllocationRequest struct {
	RequestedDate            string   `json:"requested_date"`
	RequestedTimeSlot        string   `json:"requested_time_slot"`
	IdleProbabilityThreshold *float64 `json:"idle_probability_threshold,omitempty"`
	StakeholderUsageCap      *float64 `json:"stakeholder_usage_cap,omitempty"`
}

func (s *AtriumAPIServer) optimizeAllocation(_ http.ResponseWriter, req *http.Request) (*types.OptimizationResult, *system.HTTPError) {
	var payload optimizeAllocationRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}

	result, err := s.Allocator.Optimize(req.Context(), allocation.OptimizeParams{
		RequestedDate:            payload.RequestedDate,
		RequestedTimeSlot:        payload.RequestedTimeSlot,
		IdleProbabilityThreshold: payload.IdleProbabilityThreshold,
		StakeholderUsageCap:      payload.StakeholderUsageCap,
		PersistOutputs:           true,
	})
	if err != nil {
		return nil, allocationError(err)
	}
	return result, nil
}

type simulateRequest struct {
	TemporaryConstraints      types.TemporaryConstraints `json:"temporary_constraints"`
	StakeholderPriorityWeight *float64                   `json:"stakeholder_priority_weight,omitempty"`
	IdleProbabilityThreshold  *float64                   `json:"idle_probability_threshold,omitempty"`
	StakeholderUsageCap       *float64                   `json:"stakeholder_usage_cap,omitempty"`
}

func (s *AtriumAPIServer) simulate(_ http.ResponseWriter, req *http.Request) (*workflow.SimulationResult, *system.HTTPError) {
	var payload simulateRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}

	// top-level threshold and cap take precedence over the nested ones
	idleThreshold := payload.TemporaryConstraints.IdleThreshold
	if payload.IdleProbabilityThreshold != nil {
		idleThreshold = payload.IdleProbabilityThreshold
	}
	stakeholderCap := payload.TemporaryConstraints.StakeholderCap
	if payload.StakeholderUsageCap != nil {
		stakeholderCap = payload.StakeholderUsageCap
	}

	result, err := s.Workflow.RunSimulation(req.Context(), workflow.SimulationParams{
		IdleProbabilityThreshold:  idleThreshold,
		StakeholderUsageCap:       stakeholderCap,
		StakeholderPriorityWeight: payload.StakeholderPriorityWeight,
		CapacityOverride:          payload.TemporaryConstraints.CapacityOverride,
		PriorityAdjustment:        payload.TemporaryConstraints.PriorityAdjustment,
	})
	if err != nil {
		return nil, simulationError(err)
	}
	return result, nil
}

type predictWorkflowRequest struct {
	Date     string `json:"date"`
	TimeSlot string `json:"time_slot"`
	RoomIDs  []uint `json:"room_ids,omitempty"`
}

func (s *AtriumAPIServer) predictWorkflow(_ http.ResponseWriter, req *http.Request) (*workflow.PredictResult, *system.HTTPError) {
	var payload predictWorkflowRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}

	result, err := s.Workflow.PredictIdleProbabilities(req.Context(), payload.Date, payload.TimeSlot, payload.RoomIDs)
	if err != nil {
		if workflow.IsValidationError(err) {
			return nil, system.NewHTTPError400(err.Error())
		}
		return nil, predictionError(err)
	}
	return result, nil
}

type allocatePreviewRequest struct {
	RequestedDate            string   `json:"requested_date"`
	RequestedTimeSlot        string   `json:"requested_time_slot"`
	IdleProbabilityThreshold *float64 `json:"idle_probability_threshold,omitempty"`
	StakeholderUsageCap      *float64 `json:"stakeholder_usage_cap,omitempty"`
}

func (s *AtriumAPIServer) allocatePreview(_ http.ResponseWriter, req *http.Request) (*workflow.PreviewResult, *system.HTTPError) {
	var payload allocatePreviewRequest
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}

	result, err := s.Workflow.PreviewAllocation(
		req.Context(),
		payload.RequestedDate,
		payload.RequestedTimeSlot,
		payload.IdleProbabilityThreshold,
		payload.StakeholderUsageCap,
	)
	if err != nil {
		return nil, allocationError(err)
	}
	return result, nil
}

func (s *AtriumAPIServer) approve(_ http.ResponseWriter, req *http.Request) (*workflow.ApprovalResult, *system.HTTPError) {
	result, err := s.Workflow.ApproveLatestAllocation(req.Context())
	if err != nil {
		return nil, allocationError(err)
	}
	return result, nil
}

func (s *AtriumAPIServer) metrics(_ http.ResponseWriter, req *http.Request) (*types.WorkflowMetrics, *system.HTTPError) {
	result, err := s.Workflow.GetMetrics(req.Context())
	if err != nil {
		return nil, simulationError(err)
	}
	return result, nil
}

type demoContextResponse struct {
	*workflow.DemoContext
	AuthEnabled bool `json:"auth_enabled"`
}

func (s *AtriumAPIServer) demoContext(_ http.ResponseWriter, req *http.Request) (*demoContextResponse, *system.HTTPError) {
	result, err := s.Workflow.GetDemoContext(req.Context())
	if err != nil {
		return nil, system.NewHTTPError500(err.Error())
	}
	return &demoContextResponse{DemoContext: result, AuthEnabled: s.authenticator.Enabled()}, nil
}

type createRequestPayload struct {
	RequestedCapacity int     `json:"requested_capacity"`
	RequestedDate     string  `json:"requested_date"`
	RequestedTimeSlot string  `json:"requested_time_slot"`
	StakeholderID     string  `json:"stakeholder_id"`
	PriorityWeight    float64 `json:"priority_weight"`
}

func (s *AtriumAPIServer) createRequest(_ http.ResponseWriter, req *http.Request) (*types.AllocationRequest, *system.HTTPError) {
	var payload createRequestPayload
	if httpErr := decodeBody(req, &payload); httpErr != nil {
		return nil, httpErr
	}
	if payload.RequestedCapacity <= 0 {
		return nil, system.NewHTTPError400("requested_capacity must be > 0")
	}
	if _, err := time.Parse("2006-01-02", payload.RequestedDate); err != nil {
		return nil, system.NewHTTPError400("requested_date must follow YYYY-MM-DD format")
	}
	if payload.RequestedTimeSlot == "" {
		return nil, system.NewHTTPError400("requested_time_slot is required")
	}
	if payload.PriorityWeight < 0 {
		return nil, system.NewHTTPError400("priority_weight must be >= 0")
	}
	if payload.PriorityWeight == 0 {
		payload.PriorityWeight = 1.0
	}
	if payload.StakeholderID == "" {
		payload.StakeholderID = "UNKNOWN"
	}

	request := &types.AllocationRequest{
		RequestedCapacity: payload.RequestedCapacity,
		RequestedDate:     payload.RequestedDate,
		RequestedTimeSlot: payload.RequestedTimeSlot,
		StakeholderID:     payload.StakeholderID,
		PriorityWeight:    payload.PriorityWeight,
		Status:            types.RequestStatusPending,
	}
	created, err := s.Store.CreateRequest(req.Context(), request)
	if err != nil {
		return nil, system.NewHTTPError500(err.Error())
	}
	return created, nil
}

type retrainResponse struct {
	Status string `json:"status"`
}

func (s *AtriumAPIServer) retrain(_ http.ResponseWriter, req *http.Request) (*retrainResponse, *system.HTTPError) {
	if err := s.Predictor.Retrain(req.Context()); err != nil {
		return nil, predictionError(err)
	}
	return &retrainResponse{Status: "RETRAINED"}, nil
}

func (s *AtriumAPIServer) modelMetadata(_ http.ResponseWriter, req *http.Request) (*types.ModelMetadata, *system.HTTPError) {
	metadata, err := s.Predictor.Metadata(req.Context())
	if err != nil {
		return nil, predictionError(err)
	}
	return metadata, nil
}
