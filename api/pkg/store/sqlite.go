package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// SQLiteStore implements Store on a single SQLite file. Every call runs on
// a short-lived connection from gorm's pool; multi-row writes happen inside
// one transaction so there are no partial commits.
type SQLiteStore struct {
	databasePath string
	gdb          *gorm.DB
}

func NewSQLiteStore(databasePath string) (*SQLiteStore, error) {
	if dir := filepath.Dir(databasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	gdb, err := gorm.Open(sqlite.Open(databasePath+"?_foreign_keys=on"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{
		databasePath: databasePath,
		gdb:          gdb,
	}
	if err := store.autoMigrate(); err != nil {
		return nil, err
	}

	log.Info().Str("database_path", databasePath).Msg("database initialized")
	return store, nil
}

func (s *SQLiteStore) autoMigrate() error {
	err := s.gdb.AutoMigrate(
		&types.Room{},
		&types.BookingRecord{},
		&types.AllocationRequest{},
		&types.IdlePrediction{},
		&types.AllocationLog{},
		&types.DemandForecastLog{},
		&types.ModelMetadata{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database schema: %w", err)
	}

	// Pre-stakeholder databases lack this column. AutoMigrate adds it for
	// tables it created itself, but an externally created Requests table
	// needs the explicit backfill.
	if !s.gdb.Migrator().HasColumn(&types.AllocationRequest{}, "stakeholder_id") {
		if err := s.gdb.Exec(
			`ALTER TABLE Requests ADD COLUMN stakeholder_id TEXT NOT NULL DEFAULT 'UNKNOWN'`,
		).Error; err != nil {
			return fmt.Errorf("failed to backfill stakeholder_id column: %w", err)
		}
		log.Info().Msg("backfilled Requests.stakeholder_id column")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.gdb.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLiteStore) CreateRoom(ctx context.Context, room *types.Room) (*types.Room, error) {
	if room.Capacity <= 0 {
		return nil, fmt.Errorf("room capacity must be positive")
	}
	if err := s.gdb.WithContext(ctx).Create(room).Error; err != nil {
		return nil, err
	}
	return room, nil
}

func (s *SQLiteStore) GetRoom(ctx context.Context, roomID uint) (*types.Room, error) {
	var room types.Room
	err := s.gdb.WithContext(ctx).Where("id = ?", roomID).First(&room).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &room, nil
}

func (s *SQLiteStore) ListRooms(ctx context.Context) ([]types.Room, error) {
	var rooms []types.Room
	err := s.gdb.WithContext(ctx).Order("id ASC").Find(&rooms).Error
	if err != nil {
		return nil, err
	}
	return rooms, nil
}

func (s *SQLiteStore) CreateBookingRecords(ctx context.Context, records []types.BookingRecord) error {
	if len(records) == 0 {
		return nil
	}
	return s.gdb.WithContext(ctx).CreateInBatches(records, 500).Error
}

// GetBookingHistoryForTraining loads the full history joined with room_type,
// ordered so the predictor's causal scan sees rows date-ascending.
func (s *SQLiteStore) GetBookingHistoryForTraining(ctx context.Context) ([]types.BookingRecord, error) {
	var records []types.BookingRecord
	err := s.gdb.WithContext(ctx).
		Table("BookingHistory AS bh").
		Select("bh.id, bh.room_id, bh.date, bh.time_slot, bh.occupied, r.room_type AS room_type").
		Joins("INNER JOIN Rooms AS r ON r.id = bh.room_id").
		Order("bh.date ASC, bh.room_id ASC, bh.time_slot ASC").
		Scan(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLiteStore) GetHistoricalOccupancyFrequency(ctx context.Context, roomID uint, timeSlot string) (*float64, error) {
	var avg *float64
	err := s.gdb.WithContext(ctx).
		Model(&types.BookingRecord{}).
		Select("AVG(occupied)").
		Where("room_id = ? AND time_slot = ?", roomID, timeSlot).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	return avg, nil
}

// GetRollingOccupancyAverage returns the mean occupancy over the trailing
// windowDays ending strictly before targetDate, or nil when no rows fall
// inside the window.
func (s *SQLiteStore) GetRollingOccupancyAverage(ctx context.Context, roomID uint, timeSlot, targetDate string, windowDays int) (*float64, error) {
	var avg *float64
	err := s.gdb.WithContext(ctx).
		Model(&types.BookingRecord{}).
		Select("AVG(occupied)").
		Where("room_id = ? AND time_slot = ? AND date < ? AND date >= date(?, ?)",
			roomID, timeSlot, targetDate, targetDate, fmt.Sprintf("-%d day", windowDays)).
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	return avg, nil
}

func (s *SQLiteStore) GetGlobalOccupancyFrequency(ctx context.Context) (*float64, error) {
	var avg *float64
	err := s.gdb.WithContext(ctx).
		Model(&types.BookingRecord{}).
		Select("AVG(occupied)").
		Scan(&avg).Error
	if err != nil {
		return nil, err
	}
	return avg, nil
}

func (s *SQLiteStore) CreateRequest(ctx context.Context, request *types.AllocationRequest) (*types.AllocationRequest, error) {
	if request.RequestedCapacity <= 0 {
		return nil, fmt.Errorf("requested_capacity must be positive")
	}
	if request.PriorityWeight <= 0 {
		request.PriorityWeight = 1.0
	}
	if request.StakeholderID == "" {
		request.StakeholderID = "UNKNOWN"
	}
	if request.Status == "" {
		request.Status = types.RequestStatusPending
	}
	if err := s.gdb.WithContext(ctx).Create(request).Error; err != nil {
		return nil, err
	}
	return request, nil
}

func (s *SQLiteStore) GetRequest(ctx context.Context, requestID uint) (*types.AllocationRequest, error) {
	var request types.AllocationRequest
	err := s.gdb.WithContext(ctx).Where("id = ?", requestID).First(&request).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &request, nil
}

func (s *SQLiteStore) ListPendingRequests(ctx context.Context, requestedDate, requestedTimeSlot string) ([]types.AllocationRequest, error) {
	var requests []types.AllocationRequest
	err := s.gdb.WithContext(ctx).
		Where("requested_date = ? AND requested_time_slot = ? AND status = ?",
			requestedDate, requestedTimeSlot, types.RequestStatusPending).
		Order("id ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *SQLiteStore) ListAllPendingRequests(ctx context.Context) ([]types.AllocationRequest, error) {
	var requests []types.AllocationRequest
	err := s.gdb.WithContext(ctx).
		Where("status = ?", types.RequestStatusPending).
		Order("requested_date ASC, requested_time_slot ASC, id ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (s *SQLiteStore) GetHistoricalRequestCountsByTimeSlot(ctx context.Context, lookbackDays int, targetDate string) (map[string]int, error) {
	type slotCount struct {
		TimeSlot string
		Count    int
	}
	var rows []slotCount
	err := s.gdb.WithContext(ctx).
		Model(&types.AllocationRequest{}).
		Select("requested_time_slot AS time_slot, COUNT(*) AS count").
		Where("requested_date < ? AND requested_date >= date(?, ?)",
			targetDate, targetDate, fmt.Sprintf("-%d day", lookbackDays)).
		Group("requested_time_slot").
		Order("requested_time_slot ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.TimeSlot] = row.Count
	}
	return counts, nil
}

func (s *SQLiteStore) SavePrediction(ctx context.Context, prediction *types.IdlePrediction) error {
	return s.gdb.WithContext(ctx).Create(prediction).Error
}

// ListIdlePredictions returns the latest prediction per room for one
// (date, slot) window. Later inserts win.
func (s *SQLiteStore) ListIdlePredictions(ctx context.Context, requestedDate, requestedTimeSlot string) ([]types.IdlePrediction, error) {
	var predictions []types.IdlePrediction
	err := s.gdb.WithContext(ctx).Raw(`
		SELECT p.id, p.room_id, p.date, p.time_slot, p.idle_probability, p.created_at
		FROM Predictions AS p
		INNER JOIN (
			SELECT room_id, MAX(id) AS max_id
			FROM Predictions
			WHERE date = ? AND time_slot = ?
			GROUP BY room_id
		) AS latest ON latest.max_id = p.id
		ORDER BY p.room_id ASC
	`, requestedDate, requestedTimeSlot).Scan(&predictions).Error
	if err != nil {
		return nil, err
	}
	return predictions, nil
}

func (s *SQLiteStore) CountPredictions(ctx context.Context) (int64, error) {
	var count int64
	err := s.gdb.WithContext(ctx).Model(&types.IdlePrediction{}).Count(&count).Error
	return count, err
}

// PersistAllocationOutcome writes forecast rows, allocation logs and the
// request status transitions in that order inside a single transaction.
func (s *SQLiteStore) PersistAllocationOutcome(ctx context.Context, forecastDate string, forecasts []types.DemandForecast, result *types.OptimizationResult) error {
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, forecast := range forecasts {
			row := types.DemandForecastLog{
				ForecastDate:         forecastDate,
				TimeSlot:             forecast.TimeSlot,
				HistoricalCount:      forecast.HistoricalCount,
				DemandIntensityScore: forecast.DemandIntensityScore,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}

		allocatedIDs := make([]uint, 0, len(result.Allocations))
		for _, decision := range result.Allocations {
			row := types.AllocationLog{
				RequestID:       decision.RequestID,
				RoomID:          decision.RoomID,
				AllocationScore: decision.Score,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
			allocatedIDs = append(allocatedIDs, decision.RequestID)
		}

		if len(allocatedIDs) > 0 {
			err := tx.Model(&types.AllocationRequest{}).
				Where("id IN ?", allocatedIDs).
				Update("status", types.RequestStatusAllocated).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SQLiteStore) CountAllocationLogs(ctx context.Context) (int64, error) {
	var count int64
	err := s.gdb.WithContext(ctx).Model(&types.AllocationLog{}).Count(&count).Error
	return count, err
}

func (s *SQLiteStore) CountForecastLogs(ctx context.Context) (int64, error) {
	var count int64
	err := s.gdb.WithContext(ctx).Model(&types.DemandForecastLog{}).Count(&count).Error
	return count, err
}

// SaveModelMetadata overwrites the previous training record so the table
// always holds exactly the latest run.
func (s *SQLiteStore) SaveModelMetadata(ctx context.Context, metadata *types.ModelMetadata) error {
	return s.gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&types.ModelMetadata{}).Error; err != nil {
			return err
		}
		return tx.Create(metadata).Error
	})
}

func (s *SQLiteStore) GetModelMetadata(ctx context.Context) (*types.ModelMetadata, error) {
	var metadata types.ModelMetadata
	err := s.gdb.WithContext(ctx).Order("id DESC").First(&metadata).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &metadata, nil
}

// compile-time interface check
var _ Store = (*SQLiteStore)(nil)
