// Package transcription defines the speech-to-text contract consumed by the
// pipeline and the live coordinator.
//
// A provider turns an audio payload into timed tokens. Two model tiers are
// distinguished: TierFull for batch processing and finalization, TierFast for
// low-latency live chunks.
//
// # Backends
//
//   - transcription/whisper: faster-whisper HTTP sidecar
package transcription
