package allocation

import (
	"sort"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// ForecastDemand computes frequency-based demand intensity per time slot.
// The slot universe is the union of historical slots and the slots of the
// current pending requests; intensity is normalised by the busiest
// historical slot, or zero when there is no history at all.
func ForecastDemand(requests []types.AllocationRequest, historicalCountsBySlot map[string]int) []types.DemandForecast {
	slotSet := map[string]struct{}{}
	for slot := range historicalCountsBySlot {
		slotSet[slot] = struct{}{}
	}
	for _, request := range requests {
		slotSet[request.RequestedTimeSlot] = struct{}{}
	}
	if len(slotSet) == 0 {
		return nil
	}

	slots := make([]string, 0, len(slotSet))
	for slot := range slotSet {
		slots = append(slots, slot)
	}
	sort.Strings(slots)

	maxHistorical := 0
	for _, slot := range slots {
		if count := historicalCountsBySlot[slot]; count > maxHistorical {
			maxHistorical = count
		}
	}

	forecasts := make([]types.DemandForecast, 0, len(slots))
	for _, slot := range slots {
		historicalCount := historicalCountsBySlot[slot]
		intensity := 0.0
		if maxHistorical > 0 {
			intensity = float64(historicalCount) / float64(maxHistorical)
		}
		forecasts = append(forecasts, types.DemandForecast{
			TimeSlot:             slot,
			HistoricalCount:      historicalCount,
			DemandIntensityScore: intensity,
		})
	}
	return forecasts
}
