// Package resilience holds the fault-isolation primitives used around
// external collaborators and background work:
//
//   - CircuitBreaker fails fast when a sidecar (whisper, pyannote, embedding,
//     LLM) keeps failing, so queued jobs surface an error instead of hanging.
//   - Bulkhead bounds concurrency: one slot per running pipeline job, and a
//     per-session cap on in-flight chunk transcriptions.
//   - Retry is reserved for fire-and-forget plumbing (notification publish);
//     pipeline stages never retry external-service errors.
package resilience
