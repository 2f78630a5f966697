// Package sse fans out per-meeting events (progress, partial segments,
// speaker reassignments) to connected listeners. Listeners are Server-Sent
// Events streams or websocket relays; both register a Client with the Hub
// under an ID of the form "meeting:{id}:{listener}" so a broadcast to
// MeetingPattern(id) reaches every listener of that meeting.
//
// The hub delivers messages from one broadcaster in the order they were
// broadcast. A listener whose buffer is full misses messages rather than
// stalling the others.
package sse
