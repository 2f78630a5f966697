// Package audio prepares meeting audio for the transcription services.
//
// Uploaded files are sniffed with mimetype before a job is created, then
// normalized by ffmpeg to 16 kHz mono 16-bit WAV. Live chunks are decoded to
// raw PCM through ffmpeg's stdin and stdout without touching the disk.
package audio
