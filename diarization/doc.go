// Package diarization defines the speaker diarization contract consumed by
// the pipeline.
//
// A provider turns a waveform into speaker-labelled turns. Labels are opaque
// and only stable within one call.
//
// # Backends
//
//   - diarization/pyannote: pyannote HTTP sidecar
package diarization
