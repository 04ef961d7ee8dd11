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
	"strconv"
	"time"

	"go.uber.org/zap"
)

// timelineObject is an element of the monthly Semantic Location History
// files from Takeout. Only the fields needed for tracks are decoded.
type timelineObject struct {
	ActivitySegment *struct {
		ActivityType string `json:"activityType"`
		Activities   []struct {
			ActivityType string  `json:"activityType"`
			Probability  float64 `json:"probability"`
		} `json:"activities"`
		Duration      legacyDuration `json:"duration"`
		StartLocation *vertex        `json:"startLocation"`
		EndLocation   *vertex        `json:"endLocation"`
		WaypointPath  struct {
			Waypoints []vertex `json:"waypoints"`
		} `json:"waypointPath"`
		SimplifiedRawPath struct {
			Points []vertex `json:"points"`
		} `json:"simplifiedRawPath"`
		TransitPath struct {
			Name         string   `json:"name"`
			TransitStops []vertex `json:"transitStops"`
		} `json:"transitPath"`
	} `json:"activitySegment"`
	PlaceVisit *struct {
		Duration legacyDuration `json:"duration"`
		Location *vertex        `json:"location"`
		// older files have the center of the visit instead of (or in addition to) a location
		CenterLatE7 *int64 `json:"centerLatE7"`
		CenterLngE7 *int64 `json:"centerLngE7"`
	} `json:"placeVisit"`
}

type legacyDuration struct {
	StartTimestampMs string `json:"startTimestampMs"`
	EndTimestampMs   string `json:"endTimestampMs"`
	StartTimestamp   string `json:"startTimestamp"` // newer files use RFC 3339
	EndTimestamp     string `json:"endTimestamp"`
}

func (o timelineObject) record(n *normalizer) record {
	var rec record

	switch {
	case o.PlaceVisit != nil:
		rec.kind = recordVisit
		rec.start = n.legacyTime(o.PlaceVisit.Duration.StartTimestampMs, o.PlaceVisit.Duration.StartTimestamp)
		rec.end = n.legacyTime(o.PlaceVisit.Duration.EndTimestampMs, o.PlaceVisit.Duration.EndTimestamp)
		rec.startPoint = o.PlaceVisit.Location
		if (rec.startPoint == nil || rec.startPoint.err != nil) &&
			o.PlaceVisit.CenterLatE7 != nil && o.PlaceVisit.CenterLngE7 != nil {
			rec.startPoint = &vertex{latE7: *o.PlaceVisit.CenterLatE7, lonE7: *o.PlaceVisit.CenterLngE7}
		}

	case o.ActivitySegment != nil:
		seg := o.ActivitySegment
		rec.kind = recordActivity
		rec.start = n.legacyTime(seg.Duration.StartTimestampMs, seg.Duration.StartTimestamp)
		rec.end = n.legacyTime(seg.Duration.EndTimestampMs, seg.Duration.EndTimestamp)
		rec.activityType = seg.ActivityType
		if rec.activityType == "" && len(seg.Activities) > 0 {
			rec.activityType = seg.Activities[0].ActivityType
		}
		rec.path = firstPath(
			seg.WaypointPath.Waypoints,
			seg.SimplifiedRawPath.Points,
			seg.TransitPath.TransitStops,
		)
		rec.startPoint = seg.StartLocation
		rec.endPoint = seg.EndLocation
	}

	return rec
}

// legacyTime parses the absolute timestamp of a semantic location
// history object, which is either in unix milliseconds or RFC 3339.
// Unlike on-device exports, these timestamps are always in UTC.
func (n *normalizer) legacyTime(ms, rfc3339 string) time.Time {
	if ms != "" {
		if val, err := strconv.ParseInt(ms, 10, 64); err == nil {
			return time.UnixMilli(val)
		}
	}
	if t, err := time.Parse(time.RFC3339Nano, rfc3339); err == nil {
		return t
	}
	now := n.opts.Now()
	n.opts.Logger.Debug("unparseable timestamp; using current time",
		zap.String("timestamp_ms", ms),
		zap.String("timestamp", rfc3339),
		zap.Time("substitute", now))
	return now
}
