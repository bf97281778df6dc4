package prediction

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atriumhq/atrium/api/pkg/types"
)

func TestPythonWeekday(t *testing.T) {
	monday := time.Date(2026, 2, 23, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, pythonWeekday(monday))
	assert.Equal(t, 5, pythonWeekday(monday.AddDate(0, 0, 5))) // Saturday
	assert.Equal(t, 6, pythonWeekday(monday.AddDate(0, 0, 6))) // Sunday
}

func TestBuildTrainingSetCausalAggregates(t *testing.T) {
	records := []types.BookingRecord{
		{RoomID: 1, Date: "2026-02-01", TimeSlot: "09-11", Occupied: 1, RoomType: "Classroom"},
		{RoomID: 1, Date: "2026-02-02", TimeSlot: "09-11", Occupied: 0, RoomType: "Classroom"},
		{RoomID: 1, Date: "2026-02-03", TimeSlot: "09-11", Occupied: 1, RoomType: "Classroom"},
	}

	set := buildTrainingSet(records, 7)
	require.Len(t, set.rows, 3)
	assert.InDelta(t, 2.0/3.0, set.globalOccupancyMean, 1e-12)

	// first row has no prior observations, so both features fall back to
	// the global mean
	assert.InDelta(t, 2.0/3.0, set.rows[0].HistoricalOccupancyFrequency, 1e-12)
	assert.InDelta(t, 2.0/3.0, set.rows[0].RollingWindowOccupancyAverage, 1e-12)

	// second row sees only the first observation
	assert.InDelta(t, 1.0, set.rows[1].HistoricalOccupancyFrequency, 1e-12)
	assert.InDelta(t, 1.0, set.rows[1].RollingWindowOccupancyAverage, 1e-12)

	// third row sees the first two
	assert.InDelta(t, 0.5, set.rows[2].HistoricalOccupancyFrequency, 1e-12)
	assert.InDelta(t, 0.5, set.rows[2].RollingWindowOccupancyAverage, 1e-12)

	assert.Equal(t, []int{1, 0, 1}, set.labels)
}

func TestBuildTrainingSetWindowExcludesOldRows(t *testing.T) {
	records := []types.BookingRecord{
		{RoomID: 1, Date: "2026-01-01", TimeSlot: "09-11", Occupied: 1, RoomType: "Lab"},
		{RoomID: 1, Date: "2026-02-20", TimeSlot: "09-11", Occupied: 0, RoomType: "Lab"},
		{RoomID: 1, Date: "2026-02-23", TimeSlot: "09-11", Occupied: 0, RoomType: "Lab"},
	}

	set := buildTrainingSet(records, 7)
	require.Len(t, set.rows, 3)

	// the last row's cumulative frequency covers both priors, but its
	// trailing 7-day window only contains the 02-20 observation
	assert.InDelta(t, 0.5, set.rows[2].HistoricalOccupancyFrequency, 1e-12)
	assert.InDelta(t, 0.0, set.rows[2].RollingWindowOccupancyAverage, 1e-12)
}

func TestBuildTrainingSetGroupsByRoomAndSlot(t *testing.T) {
	records := []types.BookingRecord{
		{RoomID: 1, Date: "2026-02-01", TimeSlot: "09-11", Occupied: 1, RoomType: "Classroom"},
		{RoomID: 2, Date: "2026-02-02", TimeSlot: "09-11", Occupied: 0, RoomType: "Lab"},
		{RoomID: 1, Date: "2026-02-02", TimeSlot: "11-13", Occupied: 0, RoomType: "Classroom"},
	}

	set := buildTrainingSet(records, 7)
	require.Len(t, set.rows, 3)

	// every row is first in its own (room, slot) group, so all fall back
	// to the global mean
	for _, row := range set.rows {
		assert.InDelta(t, 1.0/3.0, row.HistoricalOccupancyFrequency, 1e-12)
	}
}

func TestBuildTrainingSetDropsUnparseableDates(t *testing.T) {
	records := []types.BookingRecord{
		{RoomID: 1, Date: "not-a-date", TimeSlot: "09-11", Occupied: 1, RoomType: "Lab"},
		{RoomID: 1, Date: "2026-02-01", TimeSlot: "09-11", Occupied: 0, RoomType: "Lab"},
	}

	set := buildTrainingSet(records, 7)
	assert.Len(t, set.rows, 1)
}

func TestOneHotEncoderUnknownCategory(t *testing.T) {
	rows := []featureRow{
		{TimeSlot: "09-11", RoomType: "Classroom"},
		{TimeSlot: "11-13", RoomType: "Lab"},
	}
	encoder := fitEncoder(rows)
	require.Equal(t, 2+2+3, encoder.width())

	encoded := encoder.encode(featureRow{
		DayOfWeek:                     3,
		TimeSlot:                      "15-17",
		RoomType:                      "Theatre",
		HistoricalOccupancyFrequency:  0.4,
		RollingWindowOccupancyAverage: 0.6,
	})
	// unknown categories encode to all zeros
	assert.Equal(t, []float64{0, 0, 0, 0, 3, 0.4, 0.6}, encoded)
}

func TestFitMostFrequent(t *testing.T) {
	assert.Equal(t, 1.0, fitMostFrequent([]int{1, 1, 0}).occupancyProbability(nil))
	assert.Equal(t, 0.0, fitMostFrequent([]int{0, 0, 1}).occupancyProbability(nil))
	// ties resolve to occupied
	assert.Equal(t, 1.0, fitMostFrequent([]int{0, 1}).occupancyProbability(nil))
}

func TestFitLogisticRegressionSeparatesClasses(t *testing.T) {
	features := [][]float64{
		{0.1}, {0.2}, {0.15}, {0.9}, {0.85}, {0.95},
	}
	labels := []int{0, 0, 0, 1, 1, 1}

	model, err := fitLogisticRegression(features, labels, 200)
	require.NoError(t, err)

	low := model.occupancyProbability([]float64{0.1})
	high := model.occupancyProbability([]float64{0.9})
	assert.Less(t, low, 0.5)
	assert.Greater(t, high, 0.5)
}

func TestFitLogisticRegressionIsDeterministic(t *testing.T) {
	features := [][]float64{
		{0.1, 1}, {0.3, 0}, {0.6, 1}, {0.9, 0}, {0.2, 1}, {0.8, 0},
	}
	labels := []int{0, 0, 1, 1, 0, 1}

	first, err := fitLogisticRegression(features, labels, 100)
	require.NoError(t, err)
	second, err := fitLogisticRegression(features, labels, 100)
	require.NoError(t, err)

	assert.Equal(t, first.intercept, second.intercept)
	assert.Equal(t, first.weights, second.weights)
}
