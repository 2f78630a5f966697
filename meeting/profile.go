package meeting

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// VoiceProfile is a named speaker embedding shared across meetings.
type VoiceProfile struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"not null;index" json:"name"`
	Embedding   []byte    `gorm:"not null" json:"-"`
	SampleCount int       `gorm:"not null;default:1" json:"sample_count"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// BeforeCreate assigns a UUID when none is set.
func (p *VoiceProfile) BeforeCreate(_ *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Vector decodes the stored embedding.
func (p *VoiceProfile) Vector() []float32 {
	return DecodeVector(p.Embedding)
}

// SetVector encodes v as the stored embedding.
func (p *VoiceProfile) SetVector(v []float32) {
	p.Embedding = EncodeVector(v)
}

// EncodeVector packs v as little-endian float32 values.
func EncodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

// DecodeVector unpacks little-endian float32 values. Trailing bytes are ignored.
func DecodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v
}
