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
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/timelinize/trackexport/timeline"
)

// GeoJSON serializes the same content as KML into an RFC 7946
// FeatureCollection: one LineString feature per segment and, if points
// are shown, one Point feature per point. Style properties follow the
// simplestyle convention so that common viewers color the tracks.
func GeoJSON(segments []timeline.Segment, points []timeline.Point, opts StyleOptions) ([]byte, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	segments = simplifySegments(segments, opts.Simplification)
	loc := opts.location(segments, points)

	fc := geojson.NewFeatureCollection()
	fc.ExtraMembers = geojson.Properties{
		"name":        opts.Name,
		"description": summary(segments, points, opts, loc),
	}

	for i, seg := range segments {
		f := geojson.NewFeature(LineString(seg))
		f.Properties["name"] = segmentName(seg, loc)
		f.Properties["track"] = i + 1
		f.Properties["start"] = seg.Start().Format(time.RFC3339)
		f.Properties["end"] = seg.End().Format(time.RFC3339)
		f.Properties["distance_m"] = roundTo(segmentDistance(seg), 1)
		f.Properties["stroke"] = opts.Color
		f.Properties["stroke-width"] = opts.Width
		f.Properties["stroke-opacity"] = opts.Opacity
		fc.Append(f)
	}

	if opts.showPoints() {
		for i, p := range points {
			f := geojson.NewFeature(orb.Point{p.Longitude(), p.Latitude()})
			f.Properties["name"] = pointName(i+1, p, loc, opts.ShowLabels)
			f.Properties["time"] = p.Time().Format(time.RFC3339)
			f.Properties["source"] = p.Source.String()
			if p.ActivityType != "" {
				f.Properties["activity"] = p.ActivityType
			}
			f.Properties["marker-color"] = opts.PointColor
			fc.Append(f)
		}
	}

	out, err := fc.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("encoding GeoJSON: %w", err)
	}
	return out, nil
}

// LineString converts seg into an orb geometry (lon, lat order).
func LineString(seg timeline.Segment) orb.LineString {
	ls := make(orb.LineString, len(seg))
	for i, p := range seg {
		ls[i] = orb.Point{p.Longitude(), p.Latitude()}
	}
	return ls
}

func roundTo(v float64, places int) float64 {
	mult := 1.0
	for range places {
		mult *= 10
	}
	return float64(int64(v*mult+0.5)) / mult
}
