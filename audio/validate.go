package audio

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/kbukum/meetscribe/errors"
)

// containerTypes are non-audio MIME types that commonly carry an audio track.
var containerTypes = map[string]string{
	"video/webm":      "webm",
	"video/mp4":       "mp4",
	"video/quicktime": "mov",
	"video/x-matroska": "mkv",
	"application/ogg": "ogg",
}

// Validate sniffs data and returns the file extension to store it under.
// Empty or non-audio payloads are rejected as INVALID_INPUT.
func Validate(data []byte) (string, error) {
	if len(data) == 0 {
		return "", apperrors.InvalidInput("file", "audio file is empty")
	}
	mt := mimetype.Detect(data)
	for m := mt; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "audio/") {
			return strings.TrimPrefix(mt.Extension(), "."), nil
		}
		if ext, ok := containerTypes[m.String()]; ok {
			return ext, nil
		}
	}
	return "", apperrors.InvalidInput("file", "unsupported audio format "+mt.String()).
		WithDetail("mime", mt.String())
}
