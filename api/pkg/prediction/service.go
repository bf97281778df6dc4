package prediction

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/atriumhq/atrium/api/pkg/config"
	"github.com/atriumhq/atrium/api/pkg/store"
	"github.com/atriumhq/atrium/api/pkg/types"
)

// Predictor trains and serves the idle-probability model. The trained model
// is shared-read across inferences and exclusive-write during training.
type Predictor struct {
	cfg   *config.ServerConfig
	store store.Store

	slotPattern *regexp.Regexp

	mu       sync.RWMutex
	model    classifier
	encoder  *oneHotEncoder
	metadata *types.ModelMetadata
}

func NewPredictor(cfg *config.ServerConfig, s store.Store) (*Predictor, error) {
	slotPattern, err := regexp.Compile(cfg.Prediction.TimeSlotRegex)
	if err != nil {
		return nil, fmt.Errorf("invalid PREDICTION_TIME_SLOT_REGEX: %w", err)
	}
	return &Predictor{
		cfg:         cfg,
		store:       s,
		slotPattern: slotPattern,
	}, nil
}

func (p *Predictor) validateInputs(roomID uint, date, timeSlot string) error {
	if roomID == 0 {
		return newValidationError("room_id must be a positive integer")
	}
	if _, err := time.Parse("2006-01-02", date); err != nil {
		return newValidationError("date must follow YYYY-MM-DD format")
	}
	if !p.slotPattern.MatchString(timeSlot) {
		return newValidationError("time_slot must follow HH-HH format with 24-hour boundaries")
	}
	startHour, endHour, err := parseSlotHours(timeSlot)
	if err != nil {
		return newValidationError("time_slot must follow HH-HH format with 24-hour boundaries")
	}
	if startHour > 23 || endHour > 23 {
		return newValidationError("time_slot hours must be within 0-23")
	}
	if startHour >= endHour {
		return newValidationError("time_slot start hour must be less than end hour")
	}
	return nil
}

func parseSlotHours(timeSlot string) (int, int, error) {
	parts := strings.Split(timeSlot, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed time_slot %q", timeSlot)
	}
	startHour, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, err
	}
	endHour, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, err
	}
	return startHour, endHour, nil
}

// Train fits the model from the full booking history and persists the
// training metadata. It holds the write lock for the whole run so no
// inference observes a half-replaced model.
func (p *Predictor) Train(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Info().Msg("prediction training started")
	records, err := p.store.GetBookingHistoryForTraining(ctx)
	if err != nil {
		return fmt.Errorf("failed to load booking history: %w", err)
	}
	if len(records) < p.cfg.Prediction.MinTrainingRows {
		return fmt.Errorf("%w: insufficient booking history (%d rows, need %d)",
			ErrModelNotReady, len(records), p.cfg.Prediction.MinTrainingRows)
	}

	set := buildTrainingSet(records, p.cfg.Prediction.RollingWindowDays)
	if len(set.rows) == 0 {
		return fmt.Errorf("%w: training data is empty after feature engineering", ErrModelNotReady)
	}

	encoder := fitEncoder(set.rows)
	features := make([][]float64, len(set.rows))
	for i, row := range set.rows {
		features[i] = encoder.encode(row)
	}

	var model classifier
	if hasBothClasses(set.labels) {
		logistic, err := fitLogisticRegression(features, set.labels, p.cfg.Prediction.ModelMaxIter)
		if err != nil {
			return fmt.Errorf("logistic regression fit failed: %w", err)
		}
		model = logistic
	} else {
		model = fitMostFrequent(set.labels)
		log.Warn().Str("model", modelTypeMostFrequent).
			Msg("training labels contained a single class, falling back to most-frequent predictor")
	}

	metadata := &types.ModelMetadata{
		ModelType:    model.modelType(),
		ModelVersion: p.cfg.Prediction.ModelVersion,
		TrainedAt:    time.Now().UTC(),
		TrainingRows: len(records),
	}
	if err := p.store.SaveModelMetadata(ctx, metadata); err != nil {
		return fmt.Errorf("failed to persist model metadata: %w", err)
	}

	p.model = model
	p.encoder = encoder
	p.metadata = metadata

	log.Info().
		Int("rows", len(records)).
		Str("model", metadata.ModelType).
		Str("version", metadata.ModelVersion).
		Time("trained_at", metadata.TrainedAt).
		Msg("prediction training completed")
	return nil
}

// Retrain is the explicit operator retraining hook.
func (p *Predictor) Retrain(ctx context.Context) error {
	log.Info().Msg("manual model retraining requested")
	return p.Train(ctx)
}

func hasBothClasses(labels []int) bool {
	seenZero, seenOne := false, false
	for _, label := range labels {
		if label == 0 {
			seenZero = true
		} else {
			seenOne = true
		}
		if seenZero && seenOne {
			return true
		}
	}
	return false
}

// Predict runs a single inference, optionally persisting the prediction.
// Concurrent predictions share the read lock; training excludes them.
func (p *Predictor) Predict(ctx context.Context, roomID uint, date, timeSlot string, persist bool) (*types.PredictionResult, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if err := p.validateInputs(roomID, date, timeSlot); err != nil {
		return nil, err
	}
	if p.model == nil {
		return nil, fmt.Errorf("%w: call Train first", ErrModelNotReady)
	}

	row, err := p.prepareFeatures(ctx, roomID, date, timeSlot)
	if err != nil {
		return nil, err
	}

	occupancyProbability := p.model.occupancyProbability(p.encoder.encode(*row))
	idleProbability := clamp01(1 - occupancyProbability)
	confidence := math.Abs(idleProbability-0.5) * 2

	if persist {
		err := p.store.SavePrediction(ctx, &types.IdlePrediction{
			RoomID:          roomID,
			Date:            date,
			TimeSlot:        timeSlot,
			IdleProbability: idleProbability,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to persist prediction: %w", err)
		}
	}

	log.Info().
		Uint("room_id", roomID).
		Str("date", date).
		Str("time_slot", timeSlot).
		Float64("idle_probability", idleProbability).
		Float64("confidence_score", confidence).
		Msg("prediction inference completed")

	return &types.PredictionResult{
		IdleProbability: idleProbability,
		ConfidenceScore: confidence,
	}, nil
}

// prepareFeatures assembles the inference feature row, cascading through
// rolling average -> historical frequency -> global baseline -> configured
// default when history is sparse.
func (p *Predictor) prepareFeatures(ctx context.Context, roomID uint, date, timeSlot string) (*featureRow, error) {
	room, err := p.store.GetRoom(ctx, roomID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: room_id %d", ErrRoomNotFound, roomID)
		}
		return nil, err
	}

	globalFrequency := p.cfg.Prediction.DefaultOccupancyProbability
	if global, err := p.store.GetGlobalOccupancyFrequency(ctx); err != nil {
		return nil, err
	} else if global != nil {
		globalFrequency = *global
	}

	historicalFrequency := globalFrequency
	if historical, err := p.store.GetHistoricalOccupancyFrequency(ctx, roomID, timeSlot); err != nil {
		return nil, err
	} else if historical != nil {
		historicalFrequency = *historical
	}

	rollingAverage := historicalFrequency
	if rolling, err := p.store.GetRollingOccupancyAverage(ctx, roomID, timeSlot, date, p.cfg.Prediction.RollingWindowDays); err != nil {
		return nil, err
	} else if rolling != nil {
		rollingAverage = *rolling
	}

	parsedDate, _ := time.Parse("2006-01-02", date)
	return &featureRow{
		DayOfWeek:                     pythonWeekday(parsedDate),
		TimeSlot:                      timeSlot,
		RoomType:                      room.RoomType,
		HistoricalOccupancyFrequency:  historicalFrequency,
		RollingWindowOccupancyAverage: rollingAverage,
	}, nil
}

// Metadata returns the latest training metadata, falling back to the
// persisted record when the in-process model has not been trained yet.
func (p *Predictor) Metadata(ctx context.Context) (*types.ModelMetadata, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata != nil {
		return p.metadata, nil
	}
	persisted, err := p.store.GetModelMetadata(ctx)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: no training metadata available", ErrModelNotReady)
		}
		return nil, err
	}
	return persisted, nil
}

func clamp01(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
