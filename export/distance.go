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

package export

import (
	"github.com/golang/geo/s2"
	"github.com/timelinize/trackexport/timeline"
)

const earthRadiusMeters = 6371008.8

// distance returns the great-circle distance between a and b in meters.
func distance(a, b timeline.Point) float64 {
	p1 := s2.LatLngFromDegrees(a.Latitude(), a.Longitude())
	p2 := s2.LatLngFromDegrees(b.Latitude(), b.Longitude())
	return p1.Distance(p2).Radians() * earthRadiusMeters
}

// segmentDistance returns the length of the path through seg in meters.
func segmentDistance(seg timeline.Segment) float64 {
	var d float64
	for i := 1; i < len(seg); i++ {
		d += distance(seg[i-1], seg[i])
	}
	return d
}

func totalDistance(segments []timeline.Segment) float64 {
	var d float64
	for _, seg := range segments {
		d += segmentDistance(seg)
	}
	return d
}
