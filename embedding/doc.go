// Package embedding defines the voice embedding contract and the vector
// helpers shared by live clustering and voice-profile matching.
//
// # Backends
//
//   - embedding/sidecar: speaker-embedding HTTP sidecar
package embedding
