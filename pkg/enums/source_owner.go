package enums

// SourceOwnerType says whether a video source hangs off a content item or an episode.
type SourceOwnerType string

const (
	SourceOwnerContent SourceOwnerType = "content"
	SourceOwnerEpisode SourceOwnerType = "episode"
)

// IsValid reports whether the value is known.
func (o SourceOwnerType) IsValid() bool {
	return o == SourceOwnerContent || o == SourceOwnerEpisode
}
