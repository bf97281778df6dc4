package store

import (
	"context"
	"errors"

	"github.com/atriumhq/atrium/api/pkg/types"
)

var ErrNotFound = errors.New("not found")

// Store owns every read and write against durable state. It carries no
// business rules: pruning, scoring and lifecycle decisions live in the
// services that call it.
type Store interface {
	// rooms
	CreateRoom(ctx context.Context, room *types.Room) (*types.Room, error)
	GetRoom(ctx context.Context, roomID uint) (*types.Room, error)
	ListRooms(ctx context.Context) ([]types.Room, error)

	// booking history
	CreateBookingRecords(ctx context.Context, records []types.BookingRecord) error
	GetBookingHistoryForTraining(ctx context.Context) ([]types.BookingRecord, error)
	GetHistoricalOccupancyFrequency(ctx context.Context, roomID uint, timeSlot string) (*float64, error)
	GetRollingOccupancyAverage(ctx context.Context, roomID uint, timeSlot, targetDate string, windowDays int) (*float64, error)
	GetGlobalOccupancyFrequency(ctx context.Context) (*float64, error)

	// requests
	CreateRequest(ctx context.Context, request *types.AllocationRequest) (*types.AllocationRequest, error)
	GetRequest(ctx context.Context, requestID uint) (*types.AllocationRequest, error)
	ListPendingRequests(ctx context.Context, requestedDate, requestedTimeSlot string) ([]types.AllocationRequest, error)
	ListAllPendingRequests(ctx context.Context) ([]types.AllocationRequest, error)
	GetHistoricalRequestCountsByTimeSlot(ctx context.Context, lookbackDays int, targetDate string) (map[string]int, error)

	// predictions
	SavePrediction(ctx context.Context, prediction *types.IdlePrediction) error
	ListIdlePredictions(ctx context.Context, requestedDate, requestedTimeSlot string) ([]types.IdlePrediction, error)
	CountPredictions(ctx context.Context) (int64, error)

	// allocation outputs, written atomically on approval
	PersistAllocationOutcome(ctx context.Context, forecastDate string, forecasts []types.DemandForecast, result *types.OptimizationResult) error
	CountAllocationLogs(ctx context.Context) (int64, error)
	CountForecastLogs(ctx context.Context) (int64, error)

	// model metadata
	SaveModelMetadata(ctx context.Context, metadata *types.ModelMetadata) error
	GetModelMetadata(ctx context.Context) (*types.ModelMetadata, error)
}
