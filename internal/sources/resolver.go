// Package sources picks the concrete stream a viewer should request for a
// content item, given what the viewer is entitled to and the requesting device.
package sources

import (
	"sort"

	"github.com/angelmondragon/playgate/internal/entitlement"
	"github.com/angelmondragon/playgate/internal/policy"
	"github.com/angelmondragon/playgate/pkg/enums"
	pkgerrors "github.com/angelmondragon/playgate/pkg/errors"
)

// PlaybackDescriptor tells the client which URL to request next.
type PlaybackDescriptor struct {
	Kind          enums.SourceKind       `json:"kind"`
	URL           string                 `json:"url"`
	Quality       *enums.VideoQuality    `json:"quality,omitempty"`
	ServerLabel   string                 `json:"server_label"`
	Basis         enums.EntitlementBasis `json:"basis"`
	RemainingDays *int                   `json:"remaining_days,omitempty"`
}

// Eligible returns the sources usable with the granted tier on the device, in list order.
func Eligible(list []policy.VideoSource, ent entitlement.Entitlement, device enums.DeviceClass) []policy.VideoSource {
	if !ent.Granted {
		return nil
	}
	out := make([]policy.VideoSource, 0, len(list))
	for _, src := range list {
		if !ent.GrantedTier.Covers(src.RequiredTier) {
			continue
		}
		if !src.Permission.Allows(device) {
			continue
		}
		out = append(out, src)
	}
	return out
}

// Resolve filters the list, chooses the default candidate and settles the mp4
// quality. Candidates that cannot produce a URL are skipped in ranking order.
func Resolve(list []policy.VideoSource, ent entitlement.Entitlement, device enums.DeviceClass, hint *enums.VideoQuality) (PlaybackDescriptor, error) {
	candidates := rank(Eligible(list, ent, device))
	for _, src := range candidates {
		desc, ok := describe(src, hint)
		if !ok {
			continue
		}
		desc.Basis = ent.Basis
		desc.RemainingDays = ent.RemainingDays
		return desc, nil
	}
	return PlaybackDescriptor{}, pkgerrors.New(pkgerrors.CodeNoEligibleSource, "no source is available for this device").
		WithDetails(map[string]any{"device": device, "granted_tier": ent.GrantedTier})
}

// rank orders eligible sources by selection preference: the marked default
// first, then hls, iframe, mp4, each in original list order.
func rank(eligible []policy.VideoSource) []policy.VideoSource {
	ranked := make([]policy.VideoSource, len(eligible))
	copy(ranked, eligible)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].IsDefault != ranked[j].IsDefault {
			return ranked[i].IsDefault
		}
		return ranked[i].Kind.FallbackRank() < ranked[j].Kind.FallbackRank()
	})
	return ranked
}

func describe(src policy.VideoSource, hint *enums.VideoQuality) (PlaybackDescriptor, bool) {
	desc := PlaybackDescriptor{Kind: src.Kind, ServerLabel: src.ServerLabel}
	if src.Kind != enums.SourceKindMp4 {
		if src.URL == "" {
			return PlaybackDescriptor{}, false
		}
		desc.URL = src.URL
		return desc, true
	}

	quality, ok := PickQuality(src.QualityURLs, hint, src.DefaultQuality)
	if !ok {
		return PlaybackDescriptor{}, false
	}
	desc.URL = src.QualityURLs[quality]
	desc.Quality = &quality
	return desc, true
}

// PickQuality returns the hint when offered, else the source default when
// offered, else the offered quality nearest the target on the ladder,
// preferring the lower one on ties. The target is the hint, then the default,
// then the top of the ladder.
func PickQuality(offered map[enums.VideoQuality]string, hint *enums.VideoQuality, fallback enums.VideoQuality) (enums.VideoQuality, bool) {
	available := make([]enums.VideoQuality, 0, len(enums.QualityLadder))
	for _, q := range enums.QualityLadder {
		if url, ok := offered[q]; ok && url != "" {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		return "", false
	}

	has := func(q enums.VideoQuality) bool {
		for _, candidate := range available {
			if candidate == q {
				return true
			}
		}
		return false
	}

	if hint != nil && has(*hint) {
		return *hint, true
	}
	if fallback != "" && has(fallback) {
		return fallback, true
	}

	target := len(enums.QualityLadder) - 1
	switch {
	case hint != nil && hint.IsValid():
		target = hint.Index()
	case fallback.IsValid():
		target = fallback.Index()
	}

	best := available[0]
	bestDistance := -1
	for _, q := range available {
		distance := q.Index() - target
		if distance < 0 {
			distance = -distance
		}
		// available is ascending, so on equal distance the lower quality is kept.
		if bestDistance < 0 || distance < bestDistance {
			best = q
			bestDistance = distance
		}
	}
	return best, true
}
