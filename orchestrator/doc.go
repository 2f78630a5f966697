// Package orchestrator runs the batch transcription pipeline.
//
// A run is a job. Process, Reprocess and Finalize validate the meeting,
// create the job through the store's one-active-job guard and return the
// job immediately; the stages run on a bounded worker pool.
//
// Stages are dag nodes declared in embedded YAML pipelines:
//
//	normalization -> transcription ----\
//	              \-> diarization -------> alignment -> speaker_identification -> persist
//
// Transcription and diarization run in parallel. Finalization of a live
// recording inserts a speaker_estimate stage between them when no speaker
// bounds are set. The speaker-id-only scope replaces the first four stages
// with relabel, which reads the existing segments.
//
// Every stage boundary records progress on the job and publishes it. A
// failing stage stops the run; the job records the stage name and error
// code and the meeting is marked failed. The transcript is written in a
// single transaction by the persist stage, so a failed run leaves the
// previous transcript untouched. Normalized audio, transcription tokens and
// diarization turns are retained so later runs can skip those stages.
package orchestrator
