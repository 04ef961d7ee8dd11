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
	"cmp"
	"math"
	"slices"
	"time"
)

// SourceTag records which kind of input record a point was derived from.
type SourceTag int

const (
	// SourceRaw points came from a flat list of raw location records.
	SourceRaw SourceTag = iota
	// SourceActivityPath points came from the path of an activity record.
	SourceActivityPath
	// SourceVisit points came from a place visit.
	SourceVisit
)

func (s SourceTag) String() string {
	switch s {
	case SourceRaw:
		return "raw"
	case SourceActivityPath:
		return "activity_path"
	case SourceVisit:
		return "visit"
	}
	return "unknown"
}

// Point is a canonical location data point. Coordinates are integers with the
// decimal point moved right 7 places so that no precision is lost while
// comparing or deduplicating them.
type Point struct {
	LatitudeE7   int64     // degrees latitude times 1e7
	LongitudeE7  int64     // degrees longitude times 1e7
	Timestamp    int64     // unix milliseconds
	Source       SourceTag // kind of record this point came from
	ActivityType string    // classified activity, if known (e.g. "walking", "in bus")
}

// Latitude returns the latitude in degrees.
func (p Point) Latitude() float64 { return float64(p.LatitudeE7) / PlacesMult }

// Longitude returns the longitude in degrees.
func (p Point) Longitude() float64 { return float64(p.LongitudeE7) / PlacesMult }

// Time returns the timestamp of the point as a time.Time in UTC.
func (p Point) Time() time.Time { return time.UnixMilli(p.Timestamp).UTC() }

// Coord returns the coordinate of the point in degrees.
func (p Point) Coord() Coord { return Coord{Lat: p.Latitude(), Lon: p.Longitude()} }

// Valid returns true if the point's coordinates are within the
// range of valid latitudes and longitudes.
func (p Point) Valid() bool {
	return ValidE7(p.LatitudeE7, p.LongitudeE7)
}

// ValidE7 returns true if the integer-encoded latitude and longitude are
// within [-90,90] and [-180,180] degrees, respectively.
func ValidE7(latE7, lonE7 int64) bool {
	return -maxLatE7 <= latE7 && latE7 <= maxLatE7 &&
		-maxLonE7 <= lonE7 && lonE7 <= maxLonE7
}

// Coord is a coordinate pair in degrees, as produced by map-matching.
type Coord struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// NearlyEqual returns true if both axes of c and other differ by no more
// than CoordTolerance degrees.
func (c Coord) NearlyEqual(other Coord) bool {
	const tol = CoordTolerance + floatSlack
	return math.Abs(c.Lat-other.Lat) <= tol && math.Abs(c.Lon-other.Lon) <= tol
}

// SameLocation returns true if a and b are no more than CoordTolerance
// apart on both axes. It compares the E7 integers, so it is exact.
func SameLocation(a, b Point) bool {
	return abs(a.LatitudeE7-b.LatitudeE7) <= 1 && abs(a.LongitudeE7-b.LongitudeE7) <= 1
}

// Coords returns the coordinates of points, in order.
func Coords(points []Point) []Coord {
	coords := make([]Coord, len(points))
	for i, p := range points {
		coords[i] = p.Coord()
	}
	return coords
}

// SortPoints sorts points by timestamp, ascending. Points with equal
// timestamps keep their relative order.
func SortPoints(points []Point) {
	slices.SortStableFunc(points, func(a, b Point) int {
		return cmp.Compare(a.Timestamp, b.Timestamp)
	})
}

// SuppressConsecutiveDuplicates removes each point whose coordinates are
// identical to the point retained just before it. It is not a global
// deduplication: a location revisited later is kept. The input slice
// is not modified.
func SuppressConsecutiveDuplicates(points []Point) []Point {
	out := make([]Point, 0, len(points))
	for _, p := range points {
		if n := len(out); n > 0 &&
			out[n-1].LatitudeE7 == p.LatitudeE7 &&
			out[n-1].LongitudeE7 == p.LongitudeE7 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// SuppressNearDuplicateCoords removes coordinates that are within
// CoordTolerance of the coordinate retained before them.
func SuppressNearDuplicateCoords(coords []Coord) []Coord {
	out := make([]Coord, 0, len(coords))
	for _, c := range coords {
		if n := len(out); n > 0 && out[n-1].NearlyEqual(c) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func abs(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

const (
	// Places is the number of decimal places preserved by E7 encoding.
	Places = 7
	// PlacesMult converts between degrees and E7 integers.
	PlacesMult = 1e7

	// CoordTolerance is the largest difference, in degrees, between
	// two coordinates that are still considered the same location.
	CoordTolerance = 1e-7

	// absorbs the error of subtracting two float64 degrees
	floatSlack = 1e-12

	maxLatE7 = 90 * PlacesMult
	maxLonE7 = 180 * PlacesMult
)
