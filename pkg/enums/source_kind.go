package enums

import "fmt"

// SourceKind describes how a video source is played back.
type SourceKind string

const (
	SourceKindIframe SourceKind = "iframe"
	SourceKindMp4    SourceKind = "mp4"
	SourceKindHls    SourceKind = "hls"
)

var validSourceKinds = []SourceKind{
	SourceKindIframe,
	SourceKindMp4,
	SourceKindHls,
}

// String implements fmt.Stringer.
func (k SourceKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k SourceKind) IsValid() bool {
	for _, candidate := range validSourceKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// FallbackRank orders kinds for default synthesis: hls, then iframe, then mp4.
func (k SourceKind) FallbackRank() int {
	switch k {
	case SourceKindHls:
		return 0
	case SourceKindIframe:
		return 1
	case SourceKindMp4:
		return 2
	}
	return 3
}

// ParseSourceKind converts raw input into a SourceKind.
func ParseSourceKind(value string) (SourceKind, error) {
	for _, candidate := range validSourceKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid source kind %q", value)
}
