package allocation

import (
	"math"
	"sort"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// candidatePair is one admitted (room, request) decision variable with its
// integer objective coefficient.
type candidatePair struct {
	RoomID        uint
	RequestID     uint
	StakeholderID string
	Coefficient   int64
}

// assignmentProblem is the pruned integer model handed to a solver engine.
// Pairs are pre-sorted by (coefficient DESC, request id ASC, room id ASC)
// so every engine sees the same deterministic variable order.
type assignmentProblem struct {
	Pairs     []candidatePair
	Requests  []types.AllocationRequest
	CapScaled int64
	Scale     int64
}

// buildProblem applies the pruning rules and integerises the objective:
// rooms at or below the idle threshold are excluded, as are pairs whose
// room cannot hold the requested capacity. Coefficients are
// round(idle * weight * scale), floored at zero.
func buildProblem(
	rooms []types.Room,
	requests []types.AllocationRequest,
	predictions []types.IdlePrediction,
	cfg Config,
) *assignmentProblem {
	idleByRoom := make(map[uint]float64, len(predictions))
	for _, prediction := range predictions {
		idleByRoom[prediction.RoomID] = prediction.IdleProbability
	}

	pairs := make([]candidatePair, 0, len(rooms)*len(requests))
	for _, room := range rooms {
		idleProbability := idleByRoom[room.ID]
		if idleProbability <= cfg.IdleProbabilityThreshold {
			continue
		}
		for _, request := range requests {
			if room.Capacity < request.RequestedCapacity {
				continue
			}
			coefficient := int64(math.Round(idleProbability * request.PriorityWeight * float64(cfg.ObjectiveScale)))
			if coefficient < 0 {
				coefficient = 0
			}
			pairs = append(pairs, candidatePair{
				RoomID:        room.ID,
				RequestID:     request.ID,
				StakeholderID: request.StakeholderID,
				Coefficient:   coefficient,
			})
		}
	}

	sort.SliceStable(pairs, func(i, j int) bool {
		a, b := pairs[i], pairs[j]
		if a.Coefficient != b.Coefficient {
			return a.Coefficient > b.Coefficient
		}
		if a.RequestID != b.RequestID {
			return a.RequestID < b.RequestID
		}
		return a.RoomID < b.RoomID
	})

	return &assignmentProblem{
		Pairs:     pairs,
		Requests:  requests,
		CapScaled: int64(math.Round(cfg.StakeholderUsageCap * float64(cfg.ObjectiveScale))),
		Scale:     int64(cfg.ObjectiveScale),
	}
}

// capSatisfied checks the stakeholder fairness constraint for a complete
// candidate assignment: every stakeholder's count must stay within
// ceil(cap * total), evaluated in scaled integer arithmetic so no float
// comparison is involved. The ceiling keeps a sole stakeholder allocatable
// at all: with cap 0.5 and one assignment, 1 <= ceil(0.5 * 1) holds.
func (p *assignmentProblem) capSatisfied(countsByStakeholder map[string]int64, total int64) bool {
	for _, count := range countsByStakeholder {
		if count > p.capLimit(total) {
			return false
		}
	}
	return true
}

// capLimit is ceil(cap_scaled * total / scale).
func (p *assignmentProblem) capLimit(total int64) int64 {
	return (p.CapScaled*total + p.Scale - 1) / p.Scale
}
