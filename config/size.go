package config

import (
	"fmt"
	"strings"
)

// ParseSize converts a human-readable size ("10MB", "512KB", "2GB", "1024")
// into bytes.
func ParseSize(s string) (int64, error) {
	raw := strings.ToUpper(strings.TrimSpace(s))
	if raw == "" {
		return 0, fmt.Errorf("empty size")
	}

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(raw, "GB"):
		multiplier = 1 << 30
		raw = raw[:len(raw)-2]
	case strings.HasSuffix(raw, "MB"):
		multiplier = 1 << 20
		raw = raw[:len(raw)-2]
	case strings.HasSuffix(raw, "KB"):
		multiplier = 1 << 10
		raw = raw[:len(raw)-2]
	case strings.HasSuffix(raw, "B"):
		raw = raw[:len(raw)-1]
	}

	var val int64
	if _, err := fmt.Sscanf(strings.TrimSpace(raw), "%d", &val); err != nil {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	if val < 0 {
		return 0, fmt.Errorf("negative size %q", s)
	}
	return val * multiplier, nil
}
