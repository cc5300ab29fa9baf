package pipeline

import (
	"fmt"
	"sort"
)

// ExecutionPlan represents the planned execution order of stages.
type ExecutionPlan struct {
	Order []StageName
	Graph map[StageName][]StageName // dependency -> dependents
}

// BuildExecutionPlan creates an execution plan for the requested stages plus
// their transitive dependencies, ordered by topological sort. Ties break
// alphabetically so the order is deterministic.
func BuildExecutionPlan(registry *Registry, stages []StageName) (*ExecutionPlan, error) {
	if len(stages) == 0 {
		return &ExecutionPlan{Order: []StageName{}, Graph: make(map[StageName][]StageName)}, nil
	}

	for _, stage := range stages {
		if _, exists := registry.Get(stage); !exists {
			return nil, fmt.Errorf("stage %s not found in registry", stage)
		}
	}

	graph := make(map[StageName][]StageName)
	stageSet := make(map[StageName]bool)
	for _, stage := range stages {
		stageSet[stage] = true
	}

	// Pull in dependencies transitively.
	var addDependencies func(StageName) error
	addDependencies = func(stage StageName) error {
		for _, dep := range Dependencies(stage) {
			if _, exists := registry.Get(dep); !exists {
				return fmt.Errorf("dependency %s not found", dep)
			}
			if !stageSet[dep] {
				stageSet[dep] = true
				if err := addDependencies(dep); err != nil {
					return err
				}
			}
			graph[dep] = append(graph[dep], stage)
		}
		return nil
	}
	for _, stage := range stages {
		if err := addDependencies(stage); err != nil {
			return nil, fmt.Errorf("resolving dependencies for %s: %w", stage, err)
		}
	}

	inDegree := make(map[StageName]int, len(stageSet))
	for stage := range stageSet {
		inDegree[stage] = 0
	}
	for _, dependents := range graph {
		for _, dependent := range dependents {
			inDegree[dependent]++
		}
	}

	queue := make([]StageName, 0, len(stageSet))
	for stage, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, stage)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i] < queue[j] })

	var order []StageName
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		order = append(order, current)

		dependents := graph[current]
		sort.Slice(dependents, func(i, j int) bool { return dependents[i] < dependents[j] })
		for _, dependent := range dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(order) != len(stageSet) {
		return nil, fmt.Errorf("circular dependency detected among stages")
	}

	return &ExecutionPlan{Order: order, Graph: graph}, nil
}

// Precedes reports whether a comes before b in the plan.
func (p *ExecutionPlan) Precedes(a, b StageName) bool {
	ai, bi := -1, -1
	for i, s := range p.Order {
		switch s {
		case a:
			ai = i
		case b:
			bi = i
		}
	}
	return ai >= 0 && bi >= 0 && ai < bi
}
