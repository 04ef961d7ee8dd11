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
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type geoString string // EXAMPLE: "geo:30.123456,-105.987654"

func (g geoString) parse() (latE7, lonE7 int64, err error) {
	const prefix = "geo:"
	if !strings.HasPrefix(string(g), prefix) {
		return 0, 0, errors.New("not a valid geo string: missing prefix")
	}
	latStr, lonStr, ok := strings.Cut(string(g[len(prefix):]), ",")
	if !ok {
		return 0, 0, errors.New("not a valid geo string: missing comma separator")
	}
	latE7, err = FloatStringToIntE7(latStr)
	if err != nil {
		return 0, 0, fmt.Errorf("not a valid geo string: bad latitude: %s: %w", latStr, err)
	}
	// a geo URI may have parameters after the coordinates, like ";u=35"
	lonStr, _, _ = strings.Cut(lonStr, ";")
	lonE7, err = FloatStringToIntE7(lonStr)
	if err != nil {
		return 0, 0, fmt.Errorf("not a valid geo string: bad longitude: %s: %w", lonStr, err)
	}
	return latE7, lonE7, nil
}

type degreeString string // EXAMPLE: "31.1234567°, -73.1234567°"

func (d degreeString) parse() (latE7, lonE7 int64, err error) {
	str := strings.ReplaceAll(string(d), "°", "") // remove degree symbols
	latStr, lonStr, ok := strings.Cut(str, ",")   // split lat and lon (could still have spaces for now)
	if !ok {
		return 0, 0, errors.New("not a valid degree string: missing comma separator")
	}
	latE7, err = FloatStringToIntE7(latStr)
	if err != nil {
		return 0, 0, fmt.Errorf("not a valid degree string: bad latitude: %s: %w", latStr, err)
	}
	lonE7, err = FloatStringToIntE7(lonStr)
	if err != nil {
		return 0, 0, fmt.Errorf("not a valid degree string: bad longitude: %s: %w", lonStr, err)
	}
	return latE7, lonE7, nil
}

// parseCoordString parses either a geo string or a degree string.
func parseCoordString(s string) (latE7, lonE7 int64, err error) {
	if strings.HasPrefix(s, "geo:") {
		return geoString(s).parse()
	}
	return degreeString(s).parse()
}

// vertex is one point of a path. Paths come in many shapes across the
// various exports, so a vertex can be decoded from a geo or degree
// string, or from an object with any of these fields:
//
//	{"point": "geo:...", "durationMinutesOffsetFromStartTime": "5"}
//	{"point": "12.34°, 56.78°", "time": "2025-01-01T10:00:00.000-07:00"}
//	{"latE7": 123400000, "lngE7": 567800000, "timestampMs": "1700000000000"}
//	{"latitudeE7": 123400000, "longitudeE7": 567800000}
//	{"lat": 12.34, "lng": 56.78}
//	{"latitude": 12.34, "longitude": 56.78}
type vertex struct {
	latE7, lonE7 int64
	err          error // set if the coordinates couldn't be decoded

	offsetMin    float64 // minutes after the start of the record; may be fractional
	hasOffset    bool
	timestamp    string // absolute time, as in the document
	timestampMs  int64
	hasTimestamp bool
}

func (v *vertex) UnmarshalJSON(data []byte) error {
	*v = vertex{}
	res := gjson.ParseBytes(data)

	if res.Type == gjson.String {
		v.latE7, v.lonE7, v.err = parseCoordString(res.Str)
		return nil
	}
	if !res.IsObject() {
		v.err = fmt.Errorf("unsupported vertex: %s", res.Raw)
		return nil
	}

	v.latE7, v.lonE7, v.err = coordFields(res)

	if off := res.Get("durationMinutesOffsetFromStartTime"); off.Exists() {
		if minutes, err := strconv.ParseFloat(strings.TrimSpace(numberString(off)), 64); err == nil {
			v.offsetMin, v.hasOffset = minutes, true
		}
	}
	if ts := res.Get("time"); ts.Type == gjson.String {
		v.timestamp = ts.Str
	}
	if ms := res.Get("timestampMs"); ms.Exists() {
		if val, ok := intValue(ms); ok {
			v.timestampMs, v.hasTimestamp = val, true
		}
	}

	return nil
}

// coordFields extracts coordinates from whichever of the known
// encodings obj has.
func coordFields(obj gjson.Result) (latE7, lonE7 int64, err error) {
	if point := obj.Get("point"); point.Type == gjson.String {
		return parseCoordString(point.Str)
	}
	if latLng := obj.Get("latLng"); latLng.Type == gjson.String {
		return parseCoordString(latLng.Str)
	}
	for _, enc := range coordEncodings {
		lat, lon := obj.Get(enc.lat), obj.Get(enc.lon)
		if !lat.Exists() || !lon.Exists() {
			continue
		}
		if enc.e7 {
			latVal, latOK := intValue(lat)
			lonVal, lonOK := intValue(lon)
			if !latOK || !lonOK {
				return 0, 0, fmt.Errorf("bad %s/%s: %s, %s", enc.lat, enc.lon, lat.Raw, lon.Raw)
			}
			return latVal, lonVal, nil
		}
		latVal, err := FloatStringToIntE7(numberString(lat))
		if err != nil {
			return 0, 0, fmt.Errorf("bad %s: %s: %w", enc.lat, lat.Raw, err)
		}
		lonVal, err := FloatStringToIntE7(numberString(lon))
		if err != nil {
			return 0, 0, fmt.Errorf("bad %s: %s: %w", enc.lon, lon.Raw, err)
		}
		return latVal, lonVal, nil
	}
	return 0, 0, errors.New("no coordinates")
}

// coordEncodings lists the known pairs of coordinate fields, in order
// of preference.
var coordEncodings = []struct {
	lat, lon string
	e7       bool
}{
	{"latitudeE7", "longitudeE7", true},
	{"latitude", "longitude", false},
	{"lat", "lng", false},
	{"lat", "lon", false},
	{"latE7", "lngE7", true},
}

// intValue returns the integer value of a JSON number or numeric string.
func intValue(res gjson.Result) (int64, bool) {
	switch res.Type {
	case gjson.Number:
		if strings.ContainsAny(res.Raw, ".eE") {
			return int64(res.Num), true
		}
		v, err := strconv.ParseInt(res.Raw, 10, 64)
		return v, err == nil
	case gjson.String:
		v, err := strconv.ParseInt(strings.TrimSpace(res.Str), 10, 64)
		return v, err == nil
	}
	return 0, false
}

// numberString returns the textual representation of a JSON number
// or numeric string, without going through a float.
func numberString(res gjson.Result) string {
	if res.Type == gjson.String {
		return res.Str
	}
	return res.Raw
}

// parseActivityTime parses a record timestamp as a wall-clock time in
// loc. Any trailing "Z" or UTC offset is ignored.
func parseActivityTime(s string, loc *time.Location) (time.Time, error) {
	s = stripZone(strings.TrimSpace(s))
	for _, layout := range []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp: %q", s)
}

// stripZone removes a trailing "Z" or numeric UTC offset
// ("+hh:mm", "-hhmm", "+hh") from a timestamp.
func stripZone(s string) string {
	if strings.HasSuffix(s, "Z") || strings.HasSuffix(s, "z") {
		return s[:len(s)-1]
	}
	clock := strings.IndexAny(s, "T ")
	if clock < 0 {
		return s
	}
	if i := strings.LastIndexAny(s, "+-"); i > clock {
		return s[:i]
	}
	return s
}

// record is the common form of the activity, visit, and path records
// of all the timeline-style exports.
type record struct {
	kind         recordKind
	start, end   time.Time
	activityType string

	// the path of an activity, in the order of priority it was found
	path []vertex

	// endpoints of an activity, if it has no path; or the place of a visit
	startPoint, endPoint *vertex
}

type recordKind int

const (
	recordNone recordKind = iota
	recordActivity
	recordVisit
)

// firstPath returns the first non-empty path.
func firstPath(paths ...[]vertex) []vertex {
	for _, p := range paths {
		if len(p) > 0 {
			return p
		}
	}
	return nil
}
