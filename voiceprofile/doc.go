// Package voiceprofile keeps named voice embeddings that persist across
// meetings.
//
// A profile is created the first time a speaker is saved under a name and
// refined by a running average on every later save. Matching compares a
// speaker's mean embedding against all profiles by cosine similarity.
package voiceprofile
