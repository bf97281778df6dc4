package prediction

import (
	"sort"
	"time"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// featureRow is one model-ready observation. The categorical fields are
// one-hot encoded by the encoder; the numeric fields pass through.
type featureRow struct {
	DayOfWeek                     int
	TimeSlot                      string
	RoomType                      string
	HistoricalOccupancyFrequency  float64
	RollingWindowOccupancyAverage float64
}

type trainingSet struct {
	rows                []featureRow
	labels              []int
	globalOccupancyMean float64
}

type datedOccupancy struct {
	date     time.Time
	occupied int
}

// buildTrainingSet derives the causal historical features for every booking
// record. Rows are grouped by (room, slot) and scanned date-ascending; the
// running aggregates for a row use only strictly prior rows in its group,
// never the row itself. Records with unparseable dates are dropped.
func buildTrainingSet(records []types.BookingRecord, rollingWindowDays int) trainingSet {
	type groupKey struct {
		roomID   uint
		timeSlot string
	}

	parsed := make([]struct {
		record types.BookingRecord
		date   time.Time
	}, 0, len(records))
	occupiedSum := 0
	for _, record := range records {
		date, err := time.Parse("2006-01-02", record.Date)
		if err != nil {
			continue
		}
		parsed = append(parsed, struct {
			record types.BookingRecord
			date   time.Time
		}{record: record, date: date})
		occupiedSum += record.Occupied
	}
	if len(parsed) == 0 {
		return trainingSet{}
	}
	globalMean := float64(occupiedSum) / float64(len(parsed))

	sort.SliceStable(parsed, func(i, j int) bool {
		a, b := parsed[i], parsed[j]
		if a.record.RoomID != b.record.RoomID {
			return a.record.RoomID < b.record.RoomID
		}
		if a.record.TimeSlot != b.record.TimeSlot {
			return a.record.TimeSlot < b.record.TimeSlot
		}
		return a.date.Before(b.date)
	})

	priorCount := make(map[groupKey]int)
	priorSum := make(map[groupKey]int)
	priorWindow := make(map[groupKey][]datedOccupancy)

	set := trainingSet{
		rows:                make([]featureRow, 0, len(parsed)),
		labels:              make([]int, 0, len(parsed)),
		globalOccupancyMean: globalMean,
	}

	for _, entry := range parsed {
		key := groupKey{roomID: entry.record.RoomID, timeSlot: entry.record.TimeSlot}

		historicalFrequency := globalMean
		if count := priorCount[key]; count > 0 {
			historicalFrequency = float64(priorSum[key]) / float64(count)
		}

		rollingAverage := historicalFrequency
		if windowMean, ok := trailingWindowMean(priorWindow[key], entry.date, rollingWindowDays); ok {
			rollingAverage = windowMean
		}

		set.rows = append(set.rows, featureRow{
			DayOfWeek:                     pythonWeekday(entry.date),
			TimeSlot:                      entry.record.TimeSlot,
			RoomType:                      entry.record.RoomType,
			HistoricalOccupancyFrequency:  historicalFrequency,
			RollingWindowOccupancyAverage: rollingAverage,
		})
		set.labels = append(set.labels, entry.record.Occupied)

		priorCount[key]++
		priorSum[key] += entry.record.Occupied
		priorWindow[key] = append(priorWindow[key], datedOccupancy{date: entry.date, occupied: entry.record.Occupied})
	}

	return set
}

// trailingWindowMean averages the occupancy of prior observations whose
// date falls inside the windowDays calendar days ending strictly before
// target. The prior slice is date-ascending so older entries can be skipped
// from the front.
func trailingWindowMean(prior []datedOccupancy, target time.Time, windowDays int) (float64, bool) {
	windowStart := target.AddDate(0, 0, -windowDays)
	sum, count := 0, 0
	for i := len(prior) - 1; i >= 0; i-- {
		if !prior[i].date.Before(target) {
			continue
		}
		if prior[i].date.Before(windowStart) {
			break
		}
		sum += prior[i].occupied
		count++
	}
	if count == 0 {
		return 0, false
	}
	return float64(sum) / float64(count), true
}

// pythonWeekday maps Monday to 0 .. Sunday to 6, matching the day-of-week
// convention the model was specified with.
func pythonWeekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}
