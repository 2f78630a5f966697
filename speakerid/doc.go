// Package speakerid names the speakers of an aligned transcript.
//
// Names come from self-introductions in the opening minutes, found by a
// text-completion prompt that returns a label to name mapping. When voice
// profiles are enabled, a named speaker whose mean embedding is close to a
// stored profile takes the profile's name instead. Speakers left unnamed
// get ordinal "Participant N" labels by first appearance.
package speakerid
