package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
)

// Waveform format produced by the normalizer.
const (
	SampleRate     = 16000
	Channels       = 1
	BitsPerSample  = 16
	bytesPerSample = BitsPerSample / 8
	wavHeaderSize  = 44
)

// ErrNotWAV is returned when a payload has no RIFF/WAVE header.
var ErrNotWAV = errors.New("audio: not a WAV file")

// EncodeWAV wraps 16 kHz mono s16le PCM in a canonical 44-byte WAV header.
func EncodeWAV(pcm []byte) []byte {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	byteRate := SampleRate * Channels * bytesPerSample

	buf.WriteString("RIFF")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(36+len(pcm)))
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(16))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(1))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(Channels))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(SampleRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint32(byteRate))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(Channels*bytesPerSample))
	_ = binary.Write(&buf, binary.LittleEndian, uint16(BitsPerSample))
	buf.WriteString("data")
	_ = binary.Write(&buf, binary.LittleEndian, uint32(len(pcm)))
	buf.Write(pcm)
	return buf.Bytes()
}

// PCM returns the sample bytes of a WAV payload by locating its data chunk.
func PCM(wav []byte) ([]byte, error) {
	if len(wav) < 12 || string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}
	off := 12
	for off+8 <= len(wav) {
		id := string(wav[off : off+4])
		size := int(binary.LittleEndian.Uint32(wav[off+4 : off+8]))
		off += 8
		if id == "data" {
			end := off + size
			if end > len(wav) || size == 0 {
				end = len(wav)
			}
			return wav[off:end], nil
		}
		off += size + size%2
	}
	return nil, ErrNotWAV
}

// Duration returns the length in seconds of 16 kHz mono s16le PCM.
func Duration(pcm []byte) float64 {
	return float64(len(pcm)/bytesPerSample) / SampleRate
}

// Slice returns the PCM between start and end seconds, clamped to bounds.
func Slice(pcm []byte, start, end float64) []byte {
	from := offset(start, len(pcm))
	to := offset(end, len(pcm))
	if to <= from {
		return nil
	}
	return pcm[from:to]
}

func offset(sec float64, n int) int {
	if sec <= 0 {
		return 0
	}
	off := int(sec*SampleRate) * bytesPerSample
	if off > n {
		off = n - n%bytesPerSample
	}
	return off
}

// RMS returns the root mean square amplitude of s16le PCM.
func RMS(pcm []byte) float64 {
	n := len(pcm) / bytesPerSample
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))) // #nosec G115 - reinterpreting sample bits
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}
