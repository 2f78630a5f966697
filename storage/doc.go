// Package storage holds the blob store for meeting audio: raw uploads,
// normalized waveforms and live chunks.
//
// Backends register themselves by provider name; import the ones the
// binary should support:
//
//	import (
//	    _ "github.com/kbukum/meetscribe/storage/local"
//	    _ "github.com/kbukum/meetscribe/storage/s3"
//	)
//
// # Configuration
//
//	storage:
//	  enabled: true
//	  provider: "s3"
//	  bucket: "meetscribe-audio"
//	  region: "eu-west-1"
package storage
