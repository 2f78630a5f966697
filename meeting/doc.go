// Package meeting holds the domain model shared by the pipeline, the live
// coordinator and the HTTP surface: meetings, segments, speakers, jobs and
// voice profiles, their status enums, and the event payloads published on a
// meeting's event stream.
//
// The persisted types carry gorm tags and are migrated by the store package.
// LiveSegment, Token and Turn are transient and never written as rows.
package meeting
