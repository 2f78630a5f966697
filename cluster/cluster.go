// Package cluster assigns provisional speaker labels to live segments by
// incremental centroid matching over voice embeddings.
package cluster

import (
	"fmt"

	"github.com/kbukum/meetscribe/embedding"
)

// Defaults used when a Tracker is built from a zero Config.
const (
	DefaultThreshold = 0.45
	DefaultKeep      = 0.7
)

// Config tunes centroid matching.
type Config struct {
	// Threshold is the minimum cosine similarity to join an existing centroid.
	Threshold float64 `yaml:"threshold" mapstructure:"threshold"`
	// Keep is the weight of the old centroid when a match updates it.
	Keep float64 `yaml:"keep" mapstructure:"keep"`
}

// ApplyDefaults fills in zero-value fields.
func (c *Config) ApplyDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.Keep <= 0 || c.Keep >= 1 {
		c.Keep = DefaultKeep
	}
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Threshold > 1 {
		return fmt.Errorf("cluster: threshold must be <= 1, got %v", c.Threshold)
	}
	return nil
}

type centroid struct {
	label string
	vec   []float32
	hits  int
}

// Tracker holds the centroids of one live session. It is not safe for
// concurrent use; the session feeds it in chunk order.
type Tracker struct {
	cfg       Config
	centroids []centroid
	last      string
}

// New creates an empty Tracker.
func New(cfg Config) *Tracker {
	cfg.ApplyDefaults()
	return &Tracker{cfg: cfg}
}

// Assign returns the label of the nearest centroid whose similarity reaches
// the threshold, blending vec into it, or starts a new "Speaker N" centroid.
func (t *Tracker) Assign(vec []float32) (label string, created bool) {
	best, bestSim := -1, 0.0
	for i, c := range t.centroids {
		if sim := embedding.Cosine(vec, c.vec); sim > bestSim {
			best, bestSim = i, sim
		}
	}

	if best >= 0 && bestSim >= t.cfg.Threshold {
		c := &t.centroids[best]
		c.vec = embedding.Blend(c.vec, vec, t.cfg.Keep)
		c.hits++
		t.last = c.label
		return c.label, false
	}

	label = fmt.Sprintf("Speaker %d", len(t.centroids)+1)
	t.centroids = append(t.centroids, centroid{
		label: label,
		vec:   append([]float32(nil), vec...),
		hits:  1,
	})
	t.last = label
	return label, true
}

// Reuse returns the most recently assigned label, for segments too short to
// embed reliably.
func (t *Tracker) Reuse() string {
	if t.last == "" {
		return "Speaker 1"
	}
	return t.last
}

// Len returns the number of centroids.
func (t *Tracker) Len() int { return len(t.centroids) }

// Centroid returns a copy of the centroid for label.
func (t *Tracker) Centroid(label string) ([]float32, bool) {
	for _, c := range t.centroids {
		if c.label == label {
			return append([]float32(nil), c.vec...), true
		}
	}
	return nil, false
}
