package sched

// Lane is a sequential track of mutually dependent instructions, listed by
// their index in the submitted batch.
type Lane []int

// Plan is the execution plan for one batch.
//
// Lanes never conflict with each other, so they may run concurrently in any
// interleaving; instructions inside a lane run in submission order. The
// result equals running the whole batch serially in submission order.
type Plan struct {
	Lanes     []Lane
	Conflicts int // number of conflict edges
	graph     *conflictGraph
}

// PlanBatch builds the plan for the given access manifests, one per
// instruction in submission order.
func PlanBatch(accesses []Access) *Plan {
	g := buildConflictGraph(accesses)
	components := g.components()

	lanes := make([]Lane, 0, len(components))
	for _, c := range components {
		lanes = append(lanes, Lane(c))
	}

	return &Plan{
		Lanes:     lanes,
		Conflicts: g.edgeCount(),
		graph:     g,
	}
}

// Size returns the number of instructions covered by the plan.
func (p *Plan) Size() int {
	if p.graph == nil {
		return 0
	}
	return p.graph.n
}

// Levels groups instructions by DAG depth: everything an instruction in level
// N conflicts with and follows sits in a lower level.
func (p *Plan) Levels() [][]int {
	if p.graph == nil {
		return nil
	}
	return p.graph.levels()
}

// DependsOn returns the earlier instructions that index must wait for.
func (p *Plan) DependsOn(index int) []int {
	if p.graph == nil {
		return nil
	}
	return append([]int(nil), p.graph.parents[index]...)
}
