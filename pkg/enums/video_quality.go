package enums

import "fmt"

// VideoQuality is a rung on the fixed mp4 quality ladder.
type VideoQuality string

const (
	VideoQuality480p  VideoQuality = "480p"
	VideoQuality720p  VideoQuality = "720p"
	VideoQuality1080p VideoQuality = "1080p"
)

// QualityLadder lists qualities from lowest to highest.
var QualityLadder = []VideoQuality{
	VideoQuality480p,
	VideoQuality720p,
	VideoQuality1080p,
}

// String implements fmt.Stringer.
func (q VideoQuality) String() string {
	return string(q)
}

// IsValid reports whether the value is known.
func (q VideoQuality) IsValid() bool {
	return q.Index() >= 0
}

// Index returns the ladder position or -1 for unknown qualities.
func (q VideoQuality) Index() int {
	for i, candidate := range QualityLadder {
		if candidate == q {
			return i
		}
	}
	return -1
}

// ParseVideoQuality converts raw input into a VideoQuality.
func ParseVideoQuality(value string) (VideoQuality, error) {
	for _, candidate := range QualityLadder {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid video quality %q", value)
}
