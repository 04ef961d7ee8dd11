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

package trackapp

import (
	"context"
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/timelinize/trackexport/timeline"
	"golang.org/x/sync/errgroup"
)

// PreviewSegment is a segment with its resolved geometry.
type PreviewSegment struct {
	Points  timeline.Segment
	Coords  []timeline.Coord
	Matched bool // false if Coords are the raw points
}

// Preview segments the points of the period and resolves the geometry
// of each segment by map-matching. Segments are resolved concurrently.
// It only fails if ctx is cancelled.
func (a *App) Preview(ctx context.Context, points []timeline.Point, period timeline.Period) ([]PreviewSegment, error) {
	segments := timeline.SegmentPoints(timeline.Select(points, period))
	out := make([]PreviewSegment, len(segments))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(a.cfg.PreviewConcurrency)
	for i, seg := range segments {
		g.Go(func() error {
			coords, matched, err := a.resolver.ResolveOrRaw(ctx, seg)
			if err != nil {
				return err
			}
			out[i] = PreviewSegment{Points: seg, Coords: coords, Matched: matched}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// PreviewGeoJSON renders the resolved geometry of the segments as a
// GeoJSON FeatureCollection, one LineString per segment.
func PreviewGeoJSON(segments []PreviewSegment) ([]byte, error) {
	fc := geojson.NewFeatureCollection()
	for i, seg := range segments {
		ls := make(orb.LineString, len(seg.Coords))
		for j, c := range seg.Coords {
			ls[j] = orb.Point{c.Lon, c.Lat}
		}
		f := geojson.NewFeature(ls)
		f.Properties["segment"] = i + 1
		f.Properties["matched"] = seg.Matched
		f.Properties["points"] = len(seg.Points)
		if len(seg.Points) > 0 {
			f.Properties["start"] = seg.Points.Start()
			f.Properties["end"] = seg.Points.End()
		}
		fc.Append(f)
	}
	return json.MarshalIndent(fc, "", "\t")
}
