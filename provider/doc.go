// Package provider is a small generic framework for the external backends
// meetscribe talks to: the transcription, diarization, embedding and LLM
// sidecars, and event sinks.
//
// Two interaction patterns are defined:
//   - RequestResponse[I, O]: one input, one output (sidecar HTTP calls)
//   - Sink[I]: one input, acknowledgement only (event publishing)
//
// Cross-cutting behaviour is layered with Middleware and Chain:
//
//	wrapped := provider.Chain(
//	    provider.WithLogging[In, Out](log),
//	    provider.WithMetrics[In, Out](metrics),
//	    provider.WithTracing[In, Out]("meetscribe"),
//	)(raw)
//
// WithResilience adds bulkhead, circuit breaker and retry around Execute.
// Registry and Manager select between interchangeable implementations,
// for example the LLM backend named in configuration.
package provider
