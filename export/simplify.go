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
	"math"

	"github.com/timelinize/trackexport/timeline"
)

// epsilon scales a simplification factor in [0,10] to the RDP epsilon
// in E7 units. 10,000 is quite a high epsilon and, indeed, it does thin
// out the path quite significantly, but the algorithm is quite amazing
// in that it does preserve the essence of the path.
func epsilon(simplification float64) float64 {
	if simplification == 0 {
		return 0
	}
	// To scale a number x into range [a,b]:
	// x_scaled = (b-a) * ((x - x_min) / (x_max - x_min)) + a
	const xMin, xMax = 0.0, 10.0
	const epsMin, epsMax = 10.0, 10000.0
	return (epsMax-epsMin)*((simplification-xMin)/(xMax-xMin)) + epsMin
}

// simplifySegments simplifies each segment with the given factor.
// Segments are copied, never modified in place.
func simplifySegments(segments []timeline.Segment, simplification float64) []timeline.Segment {
	ep := epsilon(simplification)
	if ep == 0 {
		return segments
	}
	out := make([]timeline.Segment, len(segments))
	for i, seg := range segments {
		out[i] = simplifyPath(seg, ep)
	}
	return out
}

// A Go implementation of the Ramer-Douglas-Peucker Algorithm.
// Interactive demo and information: https://karthaus.nl/rdp/
//
// Borrowed from github.com/calvinfeng/rdp-path-simplification and
// heavily modified.
//
// As explained by Karthaus:
//
//	"The Ramer-Douglas-Peucker algorithm is an algorithm for reducing the
//	number of points in a curve that is approximated by a series of points.
//	It does so by "thinking" of a line between the first and last point in
//	a set of points that form the curve. It checks which point in between
//	is farthest away from this line. If the point (and as follows, all other
//	in-between points) is closer than a given distance 'epsilon', it removes
//	all these in-between points. If on the other hand this 'outlier point'
//	is farther away from our imaginary line than epsilon, the curve is split
//	in two parts:
//
//	1. From the first point up to and including the outlier
//	2. The outlier and the remaining points.
//
//	The function is recursively called on both resulting curves, and the two
//	reduced forms of the curve are put back together."
//
// This implementation always preserves visits, which are too important
// to drop: they're where the person actually was for a while.
func simplifyPath(points timeline.Segment, ep float64) timeline.Segment {
	const dimensions = 2
	if len(points) <= dimensions {
		return append(timeline.Segment(nil), points...)
	}

	l := line{points[0], points[len(points)-1]}

	idx, maxDist := seekMostDistantPoint(l, points)
	if maxDist >= ep || maxDist == -1 {
		left := simplifyPath(points[:idx+1], ep)
		right := simplifyPath(points[idx:], ep)
		return append(left[:len(left)-1], right...)
	}

	// if the most distant point is still too close, then just return the two end points
	return timeline.Segment{points[0], points[len(points)-1]}
}

// seekMostDistantPoint returns the index of the most distant point from
// the line, using perpendicular distance. For visits, it returns the
// index of the visit and a maxDist of -1, so they are never dropped.
func seekMostDistantPoint(l line, points timeline.Segment) (idx int, maxDist float64) {
	// start at 1, and stop before the last point; otherwise the
	// recursion never ends
	for i := 1; i < len(points)-1; i++ {
		if points[i].Source == timeline.SourceVisit {
			return i, -1
		}
		if d := l.distanceToPoint(points[i]); d > maxDist {
			maxDist = d
			idx = i
		}
	}
	return idx, maxDist
}

type line struct {
	start, end timeline.Point
}

// distanceToPoint returns the perpendicular distance of a point to the
// line, in E7 units. If the line has no length, the distance to its
// start is returned.
func (l line) distanceToPoint(pt timeline.Point) float64 {
	a, b, c := l.coefficients()
	if a == 0 && b == 0 {
		return math.Hypot(float64(pt.LatitudeE7-l.start.LatitudeE7), float64(pt.LongitudeE7-l.start.LongitudeE7))
	}
	return math.Abs(a*float64(pt.LatitudeE7)+b*float64(pt.LongitudeE7)+c) / math.Hypot(a, b)
}

// coefficients returns the three coefficients that define a line.
// A line can represent by the following equation.
//
//	ax + by + c = 0
//
// They are floats because the products of E7 coordinates can
// overflow an int64.
func (l line) coefficients() (a, b, c float64) {
	x1, y1 := float64(l.start.LatitudeE7), float64(l.start.LongitudeE7)
	x2, y2 := float64(l.end.LatitudeE7), float64(l.end.LongitudeE7)
	a = y1 - y2
	b = x2 - x1
	c = x1*y2 - x2*y1
	return a, b, c
}
