/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

package timeline

import (
	"slices"
	"strings"
	"time"
)

// Segment is a run of time-contiguous points inferred to be one
// continuous movement. It always has at least 2 points, ascending by time.
type Segment []Point

// Start returns the time of the first point.
func (s Segment) Start() time.Time { return s[0].Time() }

// End returns the time of the last point.
func (s Segment) End() time.Time { return s[len(s)-1].Time() }

// Gap thresholds by mode of transport.
const (
	TransitGap    = 3 * time.Hour
	PedestrianGap = 10 * time.Minute
	DefaultGap    = 30 * time.Minute
)

var (
	transitModes    = []string{"driving", "train", "subway", "tram", "bus", "ferry"}
	pedestrianModes = []string{"walking", "on-foot", "running"}
)

// SegmentPoints splits points into segments of continuous movement.
// The input is not modified and need not be sorted.
//
// A point within CoordTolerance of the last retained point is dropped
// as a stationary re-sample. A new segment starts whenever the time
// since the previous point exceeds the GapThreshold for the pair. Only
// segments with 2 or more points are returned.
func SegmentPoints(points []Point) []Segment {
	sorted := slices.Clone(points)
	SortPoints(sorted)

	var (
		segments []Segment
		current  Segment
		last     Point
		haveLast bool
	)
	commit := func() {
		if len(current) >= 2 {
			segments = append(segments, current)
		}
		current = nil
	}

	for _, p := range sorted {
		if haveLast && SameLocation(last, p) {
			continue
		}
		last, haveLast = p, true

		if len(current) == 0 {
			current = Segment{p}
			continue
		}
		prev := current[len(current)-1]
		timeDiff := time.Duration(p.Timestamp-prev.Timestamp) * time.Millisecond
		if timeDiff > GapThreshold(prev, p) {
			commit()
			current = Segment{p}
			continue
		}
		current = append(current, p)
	}
	commit()

	return segments
}

// GapThreshold returns the longest time allowed between two consecutive
// points of the same segment. Sparse sampling is expected when either
// point is in fast transit, while pedestrian traces are dense enough that
// a short gap indicates a real stop.
func GapThreshold(prev, next Point) time.Duration {
	a, b := normalizeMode(prev.ActivityType), normalizeMode(next.ActivityType)
	switch {
	case matchesMode(a, transitModes) || matchesMode(b, transitModes):
		return TransitGap
	case matchesMode(a, pedestrianModes) || matchesMode(b, pedestrianModes):
		return PedestrianGap
	}
	return DefaultGap
}

var modeReplacer = strings.NewReplacer("_", "-", " ", "-")

func normalizeMode(activity string) string {
	return modeReplacer.Replace(strings.ToLower(activity))
}

func matchesMode(activity string, modes []string) bool {
	if activity == "" {
		return false
	}
	for _, m := range modes {
		if strings.Contains(activity, m) {
			return true
		}
	}
	return false
}
