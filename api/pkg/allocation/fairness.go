package allocation

import (
	"sort"

	"github.com/atriumhq/atrium/api/pkg/types"
)

// ComputeFairnessMetric returns Jain's fairness index over per-stakeholder
// allocation counts. Every stakeholder present in the request set counts,
// including those that received nothing. Returns 0 when there are no
// allocations or no stakeholders; returns 1 iff every stakeholder received
// the same count.
func ComputeFairnessMetric(requests []types.AllocationRequest, allocations []types.AllocationDecision) float64 {
	if len(allocations) == 0 {
		return 0
	}

	allocatedCounts := map[string]int{}
	for _, decision := range allocations {
		allocatedCounts[decision.StakeholderID]++
	}

	stakeholderSet := map[string]struct{}{}
	for _, request := range requests {
		stakeholderSet[request.StakeholderID] = struct{}{}
	}
	if len(stakeholderSet) == 0 {
		return 0
	}

	stakeholders := make([]string, 0, len(stakeholderSet))
	for stakeholder := range stakeholderSet {
		stakeholders = append(stakeholders, stakeholder)
	}
	sort.Strings(stakeholders)

	sum, sumSquares := 0.0, 0.0
	for _, stakeholder := range stakeholders {
		value := float64(allocatedCounts[stakeholder])
		sum += value
		sumSquares += value * value
	}

	denominator := float64(len(stakeholders)) * sumSquares
	if denominator == 0 {
		return 0
	}
	return (sum * sum) / denominator
}
