// Package api exposes meetings, jobs, transcripts and voice profiles over
// HTTP, and live recording over a websocket.
//
// Routes are registered on a gin router by Handler.Register:
//
//	GET    /api/meetings                    list meetings
//	POST   /api/meetings                    upload an audio file (multipart)
//	POST   /api/meetings/live               create a live meeting
//	GET    /api/meetings/:id                meeting with segments and speakers
//	PATCH  /api/meetings/:id                edit title or vocabulary
//	DELETE /api/meetings/:id                delete a meeting and its audio
//	POST   /api/meetings/:id/process        start processing
//	POST   /api/meetings/:id/reprocess      repeat part of the pipeline
//	GET    /api/meetings/:id/jobs           jobs of a meeting
//	GET    /api/meetings/:id/segments       transcript segments
//	GET    /api/meetings/:id/speakers       speakers
//	POST   /api/meetings/:id/speakers/merge merge two speakers
//	GET    /api/meetings/:id/events         server-sent meeting events
//	GET    /api/meetings/:id/live           websocket live recording
//	GET    /api/jobs/:id                    one job
//	PUT    /api/segments/:id                edit segment text
//	PUT    /api/speakers/:id                rename a speaker
//	POST   /api/speakers/:id/profile        save a speaker as a voice profile
//	GET    /api/profiles                    list voice profiles
//	DELETE /api/profiles/:id                delete a voice profile
//
// With authentication enabled, meeting, job, segment and speaker routes need
// the "meetings" scope and profile routes the "profiles" scope; reads need
// ":read" and writes ":write". The live socket needs "meetings:record".
//
// The live websocket takes binary frames as audio chunks and JSON text
// frames as commands ({"type":"stop_recording"}, {"type":"ping"}). Every
// meeting event is relayed to the socket as a JSON text frame.
package api
