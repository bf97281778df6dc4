package allocation

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
)

// SolveStatus mirrors the solver outcome classes the service reacts to.
type SolveStatus string

const (
	SolveStatusOptimal  SolveStatus = "OPTIMAL"
	SolveStatusFeasible SolveStatus = "FEASIBLE"
)

const (
	EngineCPSAT  = "cpsat"
	EngineGreedy = "greedy"
)

// solution is the engine output: the chosen pairs (a subset of the
// problem's pairs) plus the scaled objective value.
type solution struct {
	Selected        []candidatePair
	ObjectiveScaled int64
	Status          SolveStatus
}

// SolverEngine is the capability interface behind the Allocator's solve
// step. Implementations must be deterministic: identical problems and
// configs yield byte-identical solutions.
type SolverEngine interface {
	Name() string
	Solve(problem *assignmentProblem, cfg Config) (*solution, error)
}

// selectEngine resolves the configured engine name, falling back to the
// deterministic greedy engine when the name is unknown and the fallback is
// enabled.
func selectEngine(cfg Config) (SolverEngine, error) {
	switch cfg.Engine {
	case EngineCPSAT:
		return &branchAndBoundEngine{}, nil
	case EngineGreedy:
		return &greedyEngine{}, nil
	default:
		if cfg.EnableGreedyFallback {
			log.Warn().Str("engine", cfg.Engine).Msg("unknown solver engine, falling back to greedy")
			return &greedyEngine{}, nil
		}
		return nil, fmt.Errorf("%w: engine %q is not registered and the greedy fallback is disabled",
			ErrSolverUnavailable, cfg.Engine)
	}
}

// branchAndBoundEngine searches the matching space exactly. Pairs arrive in
// a fixed deterministic order and the search is single-pass depth-first
// with an optimistic remaining-coefficient bound, so results are
// reproducible for a given seed and time budget. When the wall-clock
// budget expires mid-search the best matching found so far is returned
// with FEASIBLE status.
type branchAndBoundEngine struct{}

func (e *branchAndBoundEngine) Name() string {
	return EngineCPSAT
}

func (e *branchAndBoundEngine) Solve(problem *assignmentProblem, cfg Config) (*solution, error) {
	deadline := time.Now().Add(time.Duration(cfg.SolverMaxTimeSeconds) * time.Second)

	// suffix sums of coefficients for the optimistic bound
	remaining := make([]int64, len(problem.Pairs)+1)
	for i := len(problem.Pairs) - 1; i >= 0; i-- {
		remaining[i] = remaining[i+1] + problem.Pairs[i].Coefficient
	}

	search := &bbSearch{
		problem:   problem,
		deadline:  deadline,
		remaining: remaining,
		usedRooms: map[uint]bool{},
		usedReqs:  map[uint]bool{},
		counts:    map[string]int64{},
		bestValue: -1,
	}
	search.run(0, 0)

	status := SolveStatusOptimal
	if search.timedOut {
		status = SolveStatusFeasible
	}
	best := make([]candidatePair, len(search.best))
	copy(best, search.best)
	return &solution{
		Selected:        best,
		ObjectiveScaled: maxInt64(search.bestValue, 0),
		Status:          status,
	}, nil
}

type bbSearch struct {
	problem   *assignmentProblem
	deadline  time.Time
	remaining []int64

	selected  []candidatePair
	usedRooms map[uint]bool
	usedReqs  map[uint]bool
	counts    map[string]int64

	best      []candidatePair
	bestValue int64
	timedOut  bool
}

func (s *bbSearch) run(index int, value int64) {
	if s.timedOut {
		return
	}
	if time.Now().After(s.deadline) {
		s.timedOut = true
		return
	}

	// every node is a candidate matching; record it when the fairness
	// cap holds and it beats the incumbent
	if value > s.bestValue {
		total := int64(len(s.selected))
		if total == 0 || s.problem.capSatisfied(s.counts, total) {
			s.bestValue = value
			s.best = make([]candidatePair, len(s.selected))
			copy(s.best, s.selected)
		}
	}

	if index >= len(s.problem.Pairs) {
		return
	}
	// optimistic bound: even taking every remaining pair cannot beat the
	// incumbent
	if value+s.remaining[index] <= s.bestValue {
		return
	}

	pair := s.problem.Pairs[index]
	if !s.usedRooms[pair.RoomID] && !s.usedReqs[pair.RequestID] {
		s.usedRooms[pair.RoomID] = true
		s.usedReqs[pair.RequestID] = true
		s.counts[pair.StakeholderID]++
		s.selected = append(s.selected, pair)

		s.run(index+1, value+pair.Coefficient)

		s.selected = s.selected[:len(s.selected)-1]
		s.counts[pair.StakeholderID]--
		s.usedRooms[pair.RoomID] = false
		s.usedReqs[pair.RequestID] = false
	}

	s.run(index+1, value)
}

// greedyEngine is the mandatory deterministic fallback. It walks the pairs
// in (coefficient DESC, request id ASC, room id ASC) order, taking a pair
// iff its room and request are both free and the stakeholder cap still
// holds against the tentative total.
type greedyEngine struct{}

func (e *greedyEngine) Name() string {
	return EngineGreedy
}

func (e *greedyEngine) Solve(problem *assignmentProblem, cfg Config) (*solution, error) {
	usedRooms := map[uint]bool{}
	usedReqs := map[uint]bool{}
	counts := map[string]int64{}

	var selected []candidatePair
	var objective int64
	for _, pair := range problem.Pairs {
		if usedRooms[pair.RoomID] || usedReqs[pair.RequestID] {
			continue
		}
		tentativeTotal := int64(len(selected)) + 1
		if counts[pair.StakeholderID]+1 > problem.capLimit(tentativeTotal) {
			continue
		}
		usedRooms[pair.RoomID] = true
		usedReqs[pair.RequestID] = true
		counts[pair.StakeholderID]++
		selected = append(selected, pair)
		objective += pair.Coefficient
	}

	return &solution{
		Selected:        selected,
		ObjectiveScaled: objective,
		Status:          SolveStatusOptimal,
	}, nil
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
