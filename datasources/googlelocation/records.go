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
	"time"

	"github.com/tidwall/gjson"
	"github.com/timelinize/trackexport/timeline"
)

// pointList adds the points of a Records.json-style document, where
// each element of "locations" is already a single location:
//
//	{
//		"latitudeE7": 300000000,
//		"longitudeE7": -1050000000,
//		"timestamp": "2022-01-12T17:20:43.431Z",
//		"activity": [{"activity": [{"type": "WALKING", "confidence": 80}]}]
//	}
//
// Older exports use "timestampMs"; some third-party tools write float
// degrees as "latitude"/"longitude" or "lat"/"lng".
func (n *normalizer) pointList(doc []byte) {
	gjson.GetBytes(doc, "locations").ForEach(func(_, loc gjson.Result) bool {
		p, err := rawPoint(loc)
		if err != nil {
			n.reject("bad location record", err)
			return true
		}
		n.add(p)
		return true
	})
}

func rawPoint(loc gjson.Result) (timeline.Point, error) {
	if !loc.IsObject() {
		return timeline.Point{}, fmt.Errorf("%w: not an object", timeline.ErrPointRejected)
	}

	latE7, lonE7, err := coordFields(loc)
	if err != nil {
		return timeline.Point{}, fmt.Errorf("%w: %w", timeline.ErrPointRejected, err)
	}

	ts, err := rawTimestamp(loc)
	if err != nil {
		return timeline.Point{}, fmt.Errorf("%w: %w", timeline.ErrPointRejected, err)
	}

	return timeline.Point{
		LatitudeE7:   latE7,
		LongitudeE7:  lonE7,
		Timestamp:    ts,
		Source:       timeline.SourceRaw,
		ActivityType: topActivity(loc),
	}, nil
}

// rawTimestamp returns the unix-millisecond timestamp of a location
// record. These are absolute times, so the zone is honored.
func rawTimestamp(loc gjson.Result) (int64, error) {
	if ts := loc.Get("timestamp"); ts.Type == gjson.String {
		t, err := time.Parse(time.RFC3339Nano, ts.Str)
		if err != nil {
			return 0, err
		}
		return t.UnixMilli(), nil
	}
	if ms := loc.Get("timestampMs"); ms.Exists() {
		if val, ok := intValue(ms); ok {
			return val, nil
		}
		return 0, fmt.Errorf("bad timestampMs: %s", ms.Raw)
	}
	return 0, errors.New("no timestamp")
}

// topActivity returns the type of the activity with the highest
// confidence across all of the record's activity readings.
func topActivity(loc gjson.Result) string {
	var (
		best     string
		bestConf int64 = -1
	)
	loc.Get("activity.#.activity").ForEach(func(_, readings gjson.Result) bool {
		readings.ForEach(func(_, act gjson.Result) bool {
			if conf := act.Get("confidence").Int(); conf > bestConf {
				best, bestConf = act.Get("type").String(), conf
			}
			return true
		})
		return true
	})
	return best
}
