package orchestrator

import (
	"embed"
	"fmt"

	"github.com/kbukum/meetscribe/dag"
)

//go:embed pipelines/*.yaml
var pipelineFS embed.FS

// Pipeline names.
const (
	pipelineProcess  = "process"
	pipelineFinalize = "finalize"
	pipelineSpeakers = "speakers"
)

func loadGraphs(reg *dag.Registry) (map[string]*dag.Graph, error) {
	graphs := make(map[string]*dag.Graph, 3)
	for _, name := range []string{pipelineProcess, pipelineFinalize, pipelineSpeakers} {
		data, err := pipelineFS.ReadFile("pipelines/" + name + ".yaml")
		if err != nil {
			return nil, fmt.Errorf("orchestrator: read pipeline %s: %w", name, err)
		}
		p, err := dag.ParsePipeline(data)
		if err != nil {
			return nil, err
		}
		g, err := dag.ResolvePipeline(p, reg)
		if err != nil {
			return nil, err
		}
		graphs[p.Name] = g
	}
	return graphs, nil
}
