// Package taskgraph parses and validates the layered task breakdown
// (tasks.yaml). Dependencies may only point at tasks in strictly earlier
// layers, which makes dependency cycles unrepresentable by construction;
// any violation is a terminal parse error, not a warning.
package taskgraph

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Task is one unit of implementation work.
type Task struct {
	ID          string   `yaml:"id"`
	Description string   `yaml:"description,omitempty"`
	DependsOn   []string `yaml:"depends_on,omitempty"`
	Done        bool     `yaml:"done,omitempty"`
}

// Layer is an ordered group of tasks. Layer order is declaration order.
type Layer struct {
	Name  string `yaml:"name"`
	Tasks []Task `yaml:"tasks"`
}

// Graph is the full task breakdown for one change.
type Graph struct {
	Layers []Layer `yaml:"layers"`
}

// Parse decodes and validates a task graph from YAML.
func Parse(data []byte) (*Graph, error) {
	var g Graph
	if err := yaml.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("parse task graph: %w", err)
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return &g, nil
}

// Validate checks the structural invariants: at least one layer, non-empty
// unique task ids, and dependencies that reference only strictly earlier
// layers.
func (g *Graph) Validate() error {
	if len(g.Layers) == 0 {
		return fmt.Errorf("task graph has no layers")
	}

	// layerOf maps task id -> declared layer index.
	layerOf := make(map[string]int)
	for li, layer := range g.Layers {
		if layer.Name == "" {
			return fmt.Errorf("layer %d has no name", li+1)
		}
		if len(layer.Tasks) == 0 {
			return fmt.Errorf("layer %q has no tasks", layer.Name)
		}
		for _, task := range layer.Tasks {
			if task.ID == "" {
				return fmt.Errorf("layer %q contains a task without an id", layer.Name)
			}
			if prev, dup := layerOf[task.ID]; dup {
				return fmt.Errorf("duplicate task id %q (layers %q and %q)", task.ID, g.Layers[prev].Name, layer.Name)
			}
			layerOf[task.ID] = li
		}
	}

	for li, layer := range g.Layers {
		for _, task := range layer.Tasks {
			for _, dep := range task.DependsOn {
				depLayer, ok := layerOf[dep]
				if !ok {
					return fmt.Errorf("task %q depends on unknown task %q", task.ID, dep)
				}
				if depLayer >= li {
					return fmt.Errorf("task %q (layer %q) depends on %q in a non-earlier layer %q",
						task.ID, layer.Name, dep, g.Layers[depLayer].Name)
				}
			}
		}
	}
	return nil
}

// AllDone reports whether every task in every layer is marked done.
func (g *Graph) AllDone() bool {
	for _, layer := range g.Layers {
		for _, task := range layer.Tasks {
			if !task.Done {
				return false
			}
		}
	}
	return true
}

// TaskCount returns the total number of tasks.
func (g *Graph) TaskCount() int {
	n := 0
	for _, layer := range g.Layers {
		n += len(layer.Tasks)
	}
	return n
}
