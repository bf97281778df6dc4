package simulation

import (
	"sort"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// ScenarioDataset is the in-memory snapshot a simulation run operates on:
// all rooms, all pending requests grouped by (date, slot), and the latest
// idle prediction per room for each window. Scenario runs work on a deep
// copy so temporary constraints never alias baseline data.
type ScenarioDataset struct {
	Rooms             []types.Room
	RequestsBySlot    map[types.SlotKey][]types.AllocationRequest
	PredictionsBySlot map[types.SlotKey][]types.IdlePrediction
}

// SortedKeys returns the pending (date, slot) windows in deterministic
// order: date ascending, then slot ascending.
func (d *ScenarioDataset) SortedKeys() []types.SlotKey {
	keys := make([]types.SlotKey, 0, len(d.RequestsBySlot))
	for key := range d.RequestsBySlot {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date < keys[j].Date
		}
		return keys[i].TimeSlot < keys[j].TimeSlot
	})
	return keys
}

// AllRequests returns every pending request across windows in sorted key
// order.
func (d *ScenarioDataset) AllRequests() []types.AllocationRequest {
	var aggregated []types.AllocationRequest
	for _, key := range d.SortedKeys() {
		aggregated = append(aggregated, d.RequestsBySlot[key]...)
	}
	return aggregated
}

// DeepCopy clones the dataset so scenario mutation cannot leak into the
// baseline. All element types are value types, so copying the slices and
// maps is a full deep copy.
func (d *ScenarioDataset) DeepCopy() *ScenarioDataset {
	clone := &ScenarioDataset{
		Rooms:             make([]types.Room, len(d.Rooms)),
		RequestsBySlot:    make(map[types.SlotKey][]types.AllocationRequest, len(d.RequestsBySlot)),
		PredictionsBySlot: make(map[types.SlotKey][]types.IdlePrediction, len(d.PredictionsBySlot)),
	}
	copy(clone.Rooms, d.Rooms)
	for key, requests := range d.RequestsBySlot {
		cloned := make([]types.AllocationRequest, len(requests))
		copy(cloned, requests)
		clone.RequestsBySlot[key] = cloned
	}
	for key, predictions := range d.PredictionsBySlot {
		cloned := make([]types.IdlePrediction, len(predictions))
		copy(cloned, predictions)
		clone.PredictionsBySlot[key] = cloned
	}
	return clone
}
