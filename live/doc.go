// Package live coordinates live recording sessions.
//
// A Session accepts self-contained encoded audio chunks. Every chunk is
// stored for reconstruction and then decoded, transcribed with the fast
// transcription tier and embedded on its own goroutine. A sequencer puts
// the results back into arrival order before provisional speakers are
// assigned by centroid clustering and partial segments are published.
//
// Stop drains the partial path, rebuilds the full recording from the stored
// chunks and hands it to the orchestrator for finalization. A polish pass
// refines speaker names periodically while recording and once more after
// finalization. Sessions without activity are stopped by an idle sweeper.
package live
