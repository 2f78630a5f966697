// Package testutil provides shared fixtures for meetscribe package tests.
//
// It starts a real store on a temporary SQLite file, a local blob store in a
// temporary directory, and in-memory fakes for every external capability.
//
//	func TestPipeline(t *testing.T) {
//	    env := testutil.NewEnv(t)
//	    m := env.Meeting(t, meeting.StatusUploaded)
//	    // ...
//	}
//
// Components started through T(t).Setup are stopped when the test ends.
package testutil
