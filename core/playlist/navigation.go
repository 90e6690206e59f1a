// Package playlist computes next/previous tracks over the catalog order. The
// playlist loops: next of the last track is the first and vice versa.
package playlist

import (
	"WaveDeck/model"

	"github.com/samber/lo"
)

func indexOf(tracks []*model.Track, currentID string) int {
	_, idx, found := lo.FindIndexOf(tracks, func(t *model.Track) bool {
		return t != nil && t.ID == currentID
	})
	if !found {
		return -1
	}
	return idx
}

// Next returns the track after currentID. ok is false when the playlist is empty or
// currentID is not in it.
func Next(tracks []*model.Track, currentID string) (*model.Track, bool) {
	idx := indexOf(tracks, currentID)
	if idx < 0 {
		return nil, false
	}
	return tracks[(idx+1)%len(tracks)], true
}

// Previous returns the track before currentID, with the same guards as Next.
func Previous(tracks []*model.Track, currentID string) (*model.Track, bool) {
	idx := indexOf(tracks, currentID)
	if idx < 0 {
		return nil, false
	}
	if idx == 0 {
		return tracks[len(tracks)-1], true
	}
	return tracks[idx-1], true
}
