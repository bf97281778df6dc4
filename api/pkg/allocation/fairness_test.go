package allocation

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/atriumhq/atrium/api/pkg/types"
)

func TestFairnessMetricEqualCounts(t *testing.T) {
	requests := []types.AllocationRequest{
		{ID: 1, StakeholderID: "dept_a"},
		{ID: 2, StakeholderID: "dept_b"},
	}
	allocations := []types.AllocationDecision{
		{RequestID: 1, RoomID: 1, StakeholderID: "dept_a"},
		{RequestID: 2, RoomID: 2, StakeholderID: "dept_b"},
	}
	assert.InDelta(t, 1.0, ComputeFairnessMetric(requests, allocations), 1e-12)
}

func TestFairnessMetricSkewedCounts(t *testing.T) {
	requests := []types.AllocationRequest{
		{ID: 1, StakeholderID: "dept_a"},
		{ID: 2, StakeholderID: "dept_a"},
		{ID: 3, StakeholderID: "dept_b"},
	}
	allocations := []types.AllocationDecision{
		{RequestID: 1, RoomID: 1, StakeholderID: "dept_a"},
		{RequestID: 2, RoomID: 2, StakeholderID: "dept_a"},
	}

	// Jain index for counts (2, 0) over two stakeholders is 0.5
	assert.InDelta(t, 0.5, ComputeFairnessMetric(requests, allocations), 1e-12)
}

func TestFairnessMetricNoAllocations(t *testing.T) {
	requests := []types.AllocationRequest{
		{ID: 1, StakeholderID: "dept_a"},
	}
	assert.Equal(t, 0.0, ComputeFairnessMetric(requests, nil))
}

func TestFairnessMetricBounds(t *testing.T) {
	requests := []types.AllocationRequest{
		{ID: 1, StakeholderID: "dept_a"},
		{ID: 2, StakeholderID: "dept_b"},
		{ID: 3, StakeholderID: "dept_c"},
	}
	allocations := []types.AllocationDecision{
		{RequestID: 1, RoomID: 1, StakeholderID: "dept_a"},
		{RequestID: 2, RoomID: 2, StakeholderID: "dept_b"},
	}

	value := ComputeFairnessMetric(requests, allocations)
	assert.GreaterOrEqual(t, value, 0.0)
	assert.LessOrEqual(t, value, 1.0)
	assert.Less(t, value, 1.0)
}
