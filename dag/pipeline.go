package dag

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"go.yaml.in/yaml/v3"
)

// Pipeline is a YAML-declared graph definition.
type Pipeline struct {
	// Name is the pipeline identifier.
	Name string `yaml:"name"`
	// Nodes defines the pipeline's node specifications.
	Nodes []NodeDef `yaml:"nodes"`
}

// NodeDef defines a node within a pipeline.
type NodeDef struct {
	// Component is the registry lookup key for this node.
	Component string `yaml:"component"`
	// DependsOn lists node names this node depends on.
	DependsOn []string `yaml:"depends_on,omitempty"`
}

// ParsePipeline decodes a pipeline definition.
func ParsePipeline(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("dag: parsing pipeline: %w", err)
	}
	if p.Name == "" {
		return nil, fmt.Errorf("dag: pipeline has no name")
	}
	if len(p.Nodes) == 0 {
		return nil, fmt.Errorf("dag: pipeline %q has no nodes", p.Name)
	}
	return &p, nil
}

// LoadPipeline reads and decodes a pipeline definition from disk.
func LoadPipeline(path string) (*Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dag: reading %s: %w", path, err)
	}
	return ParsePipeline(data)
}

// ResolvePipeline converts a Pipeline into an executable Graph by looking
// up node implementations in the registry.
func ResolvePipeline(p *Pipeline, registry *Registry) (*Graph, error) {
	g := &Graph{Nodes: make(map[string]Node)}
	for _, def := range p.Nodes {
		if _, exists := g.Nodes[def.Component]; exists {
			return nil, fmt.Errorf("dag: pipeline %q declares %q twice", p.Name, def.Component)
		}
		node, ok := registry.Get(def.Component)
		if !ok {
			return nil, fmt.Errorf("dag: component %q not found in registry", def.Component)
		}
		g.Nodes[def.Component] = node
		for _, dep := range def.DependsOn {
			g.Edges = append(g.Edges, Edge{From: dep, To: def.Component})
		}
	}
	if _, err := BuildLevels(g); err != nil {
		return nil, err
	}
	return g, nil
}

// Registry provides named node lookup for graph construction.
type Registry struct {
	mu    sync.RWMutex
	nodes map[string]Node
}

// NewRegistry creates a new empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]Node)}
}

// Register adds a node under its own name.
func (r *Registry) Register(node Node) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nodes[node.Name()] = node
}

// Get retrieves a node by name.
func (r *Registry) Get(name string) (Node, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.nodes[name]
	return n, ok
}

// List returns sorted names of all registered nodes.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.nodes))
	for name := range r.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
