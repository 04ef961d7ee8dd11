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

package googlelocation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

/*
The 2024/2025 on-device location histories have the following differences between Android and iOS:

1. 	On iOS, semanticSegments that have a timelinePath are all grouped at the end of the array.
	The chronological ordering is reset at the start of the group.
2. 	On iOS, timelinePath points are formatted like "geo:12.123456,-123.123456" but on Android
	they are formatted like "12.1234567°, -123.1234567°" (notice one more digit of precision).
3. 	On iOS, timelinePath points are only timestampped with a "durationMinutesOffsetFromStartTime"
	field (which is a string), whereas on Android, each point has its own complete timestamp.

Since all points are sorted at the end, the reset in (1) doesn't matter here.
*/

// onDeviceRecord is one element of the on-device export from iOS.
type onDeviceRecord struct {
	StartTime string `json:"startTime"` // e.g. 2024-06-21T19:51:13.014-06:00
	EndTime   string `json:"endTime"`
	Activity  *struct {
		Start        geoString `json:"start"`
		End          geoString `json:"end"`
		TopCandidate struct {
			Type        string `json:"type"`
			Probability string `json:"probability"`
		} `json:"topCandidate"`
		DistanceMeters string `json:"distanceMeters"`

		TimelinePath []vertex `json:"timelinePath"`
		WaypointPath struct {
			Waypoints []vertex `json:"waypoints"`
		} `json:"waypointPath"`
		SimplifiedRawPath struct {
			Points []vertex `json:"points"`
		} `json:"simplifiedRawPath"`
		Points []vertex `json:"points"`
		Path   []vertex `json:"path"`
	} `json:"activity,omitempty"`
	Visit *struct {
		HierarchyLevel string `json:"hierarchyLevel"`
		TopCandidate   struct {
			PlaceLocation geoString `json:"placeLocation"`
			SemanticType  string    `json:"semanticType"`
			PlaceID       string    `json:"placeID"`
		} `json:"topCandidate"`
		Probability string `json:"probability"`
	} `json:"visit,omitempty"`
	TimelinePath []vertex `json:"timelinePath"`
}

func (r onDeviceRecord) record(n *normalizer) record {
	rec := record{
		start: n.activityTime(r.StartTime),
		end:   n.activityTime(r.EndTime),
	}

	switch {
	case r.Visit != nil && r.Visit.TopCandidate.PlaceLocation != "":
		rec.kind = recordVisit
		rec.startPoint = geoVertex(r.Visit.TopCandidate.PlaceLocation)

	case r.Activity != nil:
		rec.kind = recordActivity
		rec.activityType = r.Activity.TopCandidate.Type
		rec.path = firstPath(
			r.TimelinePath,
			r.Activity.TimelinePath,
			r.Activity.WaypointPath.Waypoints,
			r.Activity.SimplifiedRawPath.Points,
			r.Activity.Points,
			r.Activity.Path,
		)
		if r.Activity.Start != "" {
			rec.startPoint = geoVertex(r.Activity.Start)
		}
		if r.Activity.End != "" {
			rec.endPoint = geoVertex(r.Activity.End)
		}

	case len(r.TimelinePath) > 0:
		rec.kind = recordActivity
		rec.path = r.TimelinePath
	}

	return rec
}

func geoVertex(g geoString) *vertex {
	v := new(vertex)
	v.latE7, v.lonE7, v.err = g.parse()
	return v
}

func degreeVertex(d degreeString) *vertex {
	v := new(vertex)
	v.latE7, v.lonE7, v.err = d.parse()
	return v
}

// semanticSegment contains the primary majority of on-device location
// history from Android devices starting in about 2025.
type semanticSegment struct {
	StartTime    string   `json:"startTime"`
	EndTime      string   `json:"endTime"`
	TimelinePath []vertex `json:"timelinePath,omitempty"`
	Visit        *struct {
		HierarchyLevel int     `json:"hierarchyLevel"`
		Probability    float64 `json:"probability"`
		TopCandidate   struct {
			PlaceID       string `json:"placeId"`
			SemanticType  string `json:"semanticType"`
			PlaceLocation struct {
				LatLng degreeString `json:"latLng"`
			} `json:"placeLocation"`
		} `json:"topCandidate"`
	} `json:"visit,omitempty"`
	Activity *struct {
		Start struct {
			LatLng degreeString `json:"latLng"`
		} `json:"start"`
		End struct {
			LatLng degreeString `json:"latLng"`
		} `json:"end"`
		DistanceMeters float64 `json:"distanceMeters"`
		TopCandidate   struct {
			Type        string  `json:"type"`
			Probability float64 `json:"probability"`
		} `json:"topCandidate"`
	} `json:"activity,omitempty"`
}

func (s semanticSegment) record(n *normalizer) record {
	rec := record{
		start: n.activityTime(s.StartTime),
		end:   n.activityTime(s.EndTime),
	}

	switch {
	case s.Visit != nil && s.Visit.TopCandidate.PlaceLocation.LatLng != "":
		rec.kind = recordVisit
		rec.startPoint = degreeVertex(s.Visit.TopCandidate.PlaceLocation.LatLng)

	case s.Activity != nil:
		rec.kind = recordActivity
		rec.activityType = s.Activity.TopCandidate.Type
		rec.path = s.TimelinePath
		if s.Activity.Start.LatLng != "" {
			rec.startPoint = degreeVertex(s.Activity.Start.LatLng)
		}
		if s.Activity.End.LatLng != "" {
			rec.endPoint = degreeVertex(s.Activity.End.LatLng)
		}

	case len(s.TimelinePath) > 0:
		rec.kind = recordActivity
		rec.path = s.TimelinePath
	}

	return rec
}

// activityTime parses a record timestamp, substituting the current
// time if it can't be parsed.
func (n *normalizer) activityTime(s string) time.Time {
	t, err := parseActivityTime(s, n.opts.TimeZone)
	if err != nil {
		now := n.opts.Now()
		n.opts.Logger.Debug("unparseable record timestamp; using current time", zap.Error(err), zap.Time("substitute", now))
		return now
	}
	return t
}

// addRecord converts rec into points.
func (n *normalizer) addRecord(rec record) {
	switch rec.kind {
	case recordVisit:
		v := rec.startPoint
		if v == nil || v.err != nil {
			n.reject("visit without place location", vertexErr(v))
			return
		}
		n.add(timeline.Point{
			LatitudeE7:  v.latE7,
			LongitudeE7: v.lonE7,
			Timestamp:   rec.start.UnixMilli(),
			Source:      timeline.SourceVisit,
		})

	case recordActivity:
		activityType := rec.activityType
		if activityType == "" {
			activityType = "unknown"
		}

		path := rec.path
		if len(path) == 0 {
			// fall back to the endpoints of the activity
			for _, v := range []*vertex{rec.startPoint, rec.endPoint} {
				if v != nil {
					path = append(path, *v)
				}
			}
		}
		if len(path) == 0 {
			n.reject("activity without path", timeline.ErrPointRejected)
			return
		}

		timestamps := n.pathTimestamps(rec, path)
		for i, v := range path {
			if v.err != nil {
				n.reject("bad path vertex", v.err)
				continue
			}
			n.add(timeline.Point{
				LatitudeE7:   v.latE7,
				LongitudeE7:  v.lonE7,
				Timestamp:    timestamps[i],
				Source:       timeline.SourceActivityPath,
				ActivityType: activityType,
			})
		}

	default:
		n.reject("record is not an activity or visit", timeline.ErrPointRejected)
	}
}

// pathTimestamps assigns a timestamp to each vertex of path. If every
// vertex has a minute offset, those are used; otherwise if every vertex
// has its own time, those are used; otherwise the timestamps are
// interpolated linearly between the start and end of the record.
func (n *normalizer) pathTimestamps(rec record, path []vertex) []int64 {
	start, end := rec.start.UnixMilli(), rec.end.UnixMilli()
	timestamps := make([]int64, len(path))

	allOffsets, allTimes := true, true
	for _, v := range path {
		allOffsets = allOffsets && v.hasOffset
		allTimes = allTimes && (v.hasTimestamp || v.timestamp != "")
	}

	switch {
	case allOffsets:
		for i, v := range path {
			timestamps[i] = start + int64(math.Round(v.offsetMin*float64(time.Minute.Milliseconds())))
		}
		return timestamps

	case allTimes:
		ok := true
		for i, v := range path {
			if v.hasTimestamp {
				timestamps[i] = v.timestampMs
				continue
			}
			t, err := parseActivityTime(v.timestamp, n.opts.TimeZone)
			if err != nil {
				ok = false
				break
			}
			timestamps[i] = t.UnixMilli()
		}
		if ok {
			return timestamps
		}
	}

	if len(path) == 1 {
		timestamps[0] = start
		return timestamps
	}
	span := end - start
	last := int64(len(path) - 1)
	for i := range path {
		timestamps[i] = start + span*int64(i)/last
	}
	return timestamps
}

func vertexErr(v *vertex) error {
	if v == nil {
		return errors.New("missing location")
	}
	return fmt.Errorf("%w: %w", timeline.ErrPointRejected, v.err)
}
