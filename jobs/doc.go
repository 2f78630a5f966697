// Package jobs tracks job progress and fans meeting events out to
// subscribers.
//
// A Tracker owns the job state transitions that happen outside the
// transcript commit: start, stage progress and failure. Every transition is
// persisted first and then published through a Notifier. The Fanout
// notifier delivers one event to the in-process SSE hub, the meeting's
// Redis channel and the Kafka jobs topic; a failing destination is logged
// and never fails the job.
package jobs
