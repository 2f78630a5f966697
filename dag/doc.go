// Package dag is a small DAG execution engine used to run the batch
// processing pipeline as dependency-ordered stages.
//
// Nodes in the same level run concurrently. Execution stops after the first
// level containing a failure and reports the failed node as a *StageError.
// A NodeFilter can skip nodes, which lets callers resume from cached work
// or run only a subset of the graph.
//
// Graphs are usually declared as a YAML Pipeline and resolved against a
// Registry of node implementations:
//
//	p, _ := dag.ParsePipeline(processYAML)
//	g, _ := dag.ResolvePipeline(p, registry)
//	res, err := (&dag.Engine{}).ExecuteStreaming(ctx, g, state, filter)
package dag
