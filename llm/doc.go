// Package llm provides the text-completion contract used for speaker naming.
//
// Backends implement [Provider]. Two ship with the module:
//
//   - llm/ollama: Ollama's native /api/chat endpoint over HTTP
//   - llm/openai: any OpenAI-compatible chat completions API via go-openai
//
// A [provider.Manager] selects between configured backends; [FromManager]
// exposes the manager itself as a Provider so callers stay unaware of the
// selection.
//
// # Usage
//
//	m := llm.NewManager(llm.WithSelector(&provider.PrioritySelector[llm.Provider]{
//	    Priority: []string{"ollama", "openai"},
//	}))
//	m.Register("ollama", ollama.Factory())
//	_ = m.Initialize("ollama", cfg.Ollama.ToMap())
//
//	var out struct{ Speakers []Mapping }
//	err := llm.CompleteStructured(ctx, llm.AsRequestResponse(llm.FromManager(m)), system, user, &out)
package llm
