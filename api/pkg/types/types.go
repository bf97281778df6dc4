package types

import "time"

// RequestStatus tracks the lifecycle of an allocation request.
type RequestStatus string

const (
	RequestStatusPending   RequestStatus = "PENDING"
	RequestStatusAllocated RequestStatus = "ALLOCATED"
)

// Room is a bookable space. Capacity is immutable after creation.
type Room struct {
	ID        uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	Name      string    `json:"name" gorm:"not null"`
	Capacity  int       `json:"capacity" gorm:"not null;check:capacity > 0"`
	RoomType  string    `json:"room_type" gorm:"not null"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

func (Room) TableName() string {
	return "Rooms"
}

// BookingRecord is one historical observation of a room in a slot.
// RoomType is denormalised onto the record when loaded for training.
type BookingRecord struct {
	ID       uint   `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomID   uint   `json:"room_id" gorm:"not null;index:idx_booking_room_slot_date,priority:1"`
	Date     string `json:"date" gorm:"not null;index:idx_booking_room_slot_date,priority:3"`
	TimeSlot string `json:"time_slot" gorm:"not null;index:idx_booking_room_slot_date,priority:2"`
	Occupied int    `json:"occupied" gorm:"not null;check:occupied IN (0,1)"`
	RoomType string `json:"room_type" gorm:"->;-:migration"`
}

func (BookingRecord) TableName() string {
	return "BookingHistory"
}

// AllocationRequest is a pending demand for a room in a (date, slot) window.
type AllocationRequest struct {
	ID                uint          `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestedCapacity int           `json:"requested_capacity" gorm:"not null;check:requested_capacity > 0"`
	RequestedDate     string        `json:"requested_date" gorm:"not null;index:idx_requests_date_slot_status,priority:1"`
	RequestedTimeSlot string        `json:"requested_time_slot" gorm:"not null;index:idx_requests_date_slot_status,priority:2"`
	StakeholderID     string        `json:"stakeholder_id" gorm:"not null;default:UNKNOWN"`
	PriorityWeight    float64       `json:"priority_weight" gorm:"not null;default:1.0"`
	Status            RequestStatus `json:"status" gorm:"not null;default:PENDING;index:idx_requests_date_slot_status,priority:3"`
}

func (AllocationRequest) TableName() string {
	return "Requests"
}

// IdlePrediction is one persisted inference output. The latest row per
// (room, date, slot) wins.
type IdlePrediction struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RoomID          uint      `json:"room_id" gorm:"not null;index:idx_predictions_room_date_slot,priority:1"`
	Date            string    `json:"date" gorm:"not null;index:idx_predictions_room_date_slot,priority:2"`
	TimeSlot        string    `json:"time_slot" gorm:"not null;index:idx_predictions_room_date_slot,priority:3"`
	IdleProbability float64   `json:"idle_probability" gorm:"not null"`
	CreatedAt       time.Time `json:"created_at"`
}

func (IdlePrediction) TableName() string {
	return "Predictions"
}

// AllocationLog is the append-only audit record of an approved assignment.
type AllocationLog struct {
	ID              uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	RequestID       uint      `json:"request_id" gorm:"not null"`
	RoomID          uint      `json:"room_id" gorm:"not null"`
	AllocationScore float64   `json:"allocation_score"`
	AllocatedAt     time.Time `json:"allocated_at" gorm:"autoCreateTime"`
}

func (AllocationLog) TableName() string {
	return "AllocationLogs"
}

// DemandForecastLog persists one forecast row per (forecast date, slot).
type DemandForecastLog struct {
	ID                   uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ForecastDate         string    `json:"forecast_date" gorm:"not null"`
	TimeSlot             string    `json:"time_slot" gorm:"not null"`
	HistoricalCount      int       `json:"historical_count" gorm:"not null"`
	DemandIntensityScore float64   `json:"demand_intensity_score" gorm:"not null"`
	CreatedAt            time.Time `json:"created_at"`
}

func (DemandForecastLog) TableName() string {
	return "DemandForecastLogs"
}

// ModelMetadata records the last completed training run. Overwritten on
// every training.
type ModelMetadata struct {
	ID           uint      `json:"id" gorm:"primaryKey;autoIncrement"`
	ModelType    string    `json:"model_type" gorm:"not null"`
	ModelVersion string    `json:"model_version" gorm:"not null"`
	TrainedAt    time.Time `json:"trained_at" gorm:"not null"`
	TrainingRows int       `json:"training_rows" gorm:"not null"`
}

func (ModelMetadata) TableName() string {
	return "ModelMetadataLogs"
}

// DemandForecast is the in-memory forecast row computed before each solve.
type DemandForecast struct {
	TimeSlot             string  `json:"time_slot"`
	HistoricalCount      int     `json:"historical_count"`
	DemandIntensityScore float64 `json:"demand_intensity_score"`
}

// AllocationDecision is one (request -> room) assignment from a solve.
type AllocationDecision struct {
	RequestID     uint    `json:"request_id"`
	RoomID        uint    `json:"room_id"`
	Score         float64 `json:"score"`
	StakeholderID string  `json:"stakeholder_id"`
}

// OptimizationResult is the outcome of one Allocator solve.
type OptimizationResult struct {
	Allocations          []AllocationDecision `json:"allocations"`
	ObjectiveValue       float64              `json:"objective_value"`
	FairnessMetric       float64              `json:"fairness_metric"`
	UnassignedRequestIDs []uint               `json:"unassigned_request_ids"`
}

// PredictionResult is a single idle-probability inference.
type PredictionResult struct {
	IdleProbability float64 `json:"idle_probability"`
	ConfidenceScore float64 `json:"confidence_score"`
}
