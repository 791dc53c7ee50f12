// Package playlist holds the client-side playlist logic: sort order and the
// change detection used by the poll fallback. The authoritative playlist
// lives server-side; this package only works on the fetched copy.
package playlist

import (
	"sort"

	"github.com/samber/lo"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/auxkit/auxroom/cmd/common/api"
)

// SortKey selects the playlist ordering.
type SortKey string

const (
	SortByPosition SortKey = "position"
	SortByTitle    SortKey = "title"
)

var titleCollator = collate.New(language.Und, collate.Loose)

// Sort returns a sorted copy of tracks. The sort is stable: tracks with equal
// keys keep their fetch order. Position sorts ascending with a missing
// position counting as 0; title sorts with locale-aware collation.
func Sort(tracks []api.Track, key SortKey) []api.Track {
	sorted := make([]api.Track, len(tracks))
	copy(sorted, tracks)

	switch key {
	case SortByTitle:
		sort.SliceStable(sorted, func(i, j int) bool {
			return titleCollator.CompareString(sorted[i].Title, sorted[j].Title) < 0
		})
	default:
		sort.SliceStable(sorted, func(i, j int) bool {
			return sorted[i].Position < sorted[j].Position
		})
	}
	return sorted
}

// IDs returns the id projection of tracks, in order.
func IDs(tracks []api.Track) []int {
	return lo.Map(tracks, func(t api.Track, _ int) int { return t.TrackID })
}

// IndexOf returns the index of the track with the given id, or -1.
func IndexOf(tracks []api.Track, trackID int) int {
	return lo.IndexOf(IDs(tracks), trackID)
}

// Snapshot remembers the last seen id sequence for change detection.
type Snapshot struct {
	ids []int
	set bool
}

// Update compares ids against the previous snapshot and stores them.
// The comparison is element-wise and order-sensitive: a reorder with
// identical membership still counts as a change. The first update always
// reports changed so the initial render happens.
func (s *Snapshot) Update(ids []int) bool {
	changed := !s.set || !equalIDs(s.ids, ids)
	s.ids = append([]int(nil), ids...)
	s.set = true
	return changed
}

func equalIDs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
