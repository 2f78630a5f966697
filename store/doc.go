// Package store persists meetings, transcripts, jobs and voice profiles.
//
// Every multi-row change runs in one transaction: a transcript commit either
// replaces all speakers and segments of a meeting and completes its job, or
// leaves the previous state untouched. The one-active-job rule is enforced
// in SQL by a conditional insert, backed by a partial unique index.
package store
