package enums

import "fmt"

// ContentKind classifies catalog entries.
type ContentKind string

const (
	ContentKindMovie  ContentKind = "movie"
	ContentKindSeries ContentKind = "series"
	ContentKindAnime  ContentKind = "anime"
)

var validContentKinds = []ContentKind{
	ContentKindMovie,
	ContentKindSeries,
	ContentKindAnime,
}

// String implements fmt.Stringer.
func (k ContentKind) String() string {
	return string(k)
}

// IsValid reports whether the value is known.
func (k ContentKind) IsValid() bool {
	for _, candidate := range validContentKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// HasEpisodes reports whether the kind is organized into seasons and episodes.
func (k ContentKind) HasEpisodes() bool {
	return k == ContentKindSeries || k == ContentKindAnime
}

// ParseContentKind converts raw input into a ContentKind.
func ParseContentKind(value string) (ContentKind, error) {
	for _, candidate := range validContentKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid content kind %q", value)
}
