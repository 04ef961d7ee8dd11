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
	"slices"
	"testing"
	"time"

	"github.com/timelinize/trackexport/internal/testhelpers"
	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		TimeZone: time.UTC,
		Now:      func() time.Time { return fixedNow },
		Logger:   zap.NewNop(),
	}
}

func at(hour, minute int) int64 {
	return time.Date(2024, 5, 1, hour, minute, 0, 0, time.UTC).UnixMilli()
}

func TestNormalizeActivityWithOffsets(t *testing.T) {
	doc := `[{
		"startTime": "2024-05-01T10:00:00.000-07:00",
		"endTime": "2024-05-01T10:10:00.000-07:00",
		"activity": {
			"start": "geo:52.000000,13.000000",
			"end": "geo:52.020000,13.020000",
			"topCandidate": {"type": "walking", "probability": "0.950000"}
		},
		"timelinePath": [
			{"point": "geo:52.000000,13.000000", "durationMinutesOffsetFromStartTime": "0"},
			{"point": "geo:52.010000,13.010000", "durationMinutesOffsetFromStartTime": "5"},
			{"point": "geo:52.020000,13.020000", "durationMinutesOffsetFromStartTime": "10"}
		]
	}]`

	points, err := Normalize([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	expect := []timeline.Point{
		{LatitudeE7: 520000000, LongitudeE7: 130000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "walking"},
		{LatitudeE7: 520100000, LongitudeE7: 130100000, Timestamp: at(10, 5), Source: timeline.SourceActivityPath, ActivityType: "walking"},
		{LatitudeE7: 520200000, LongitudeE7: 130200000, Timestamp: at(10, 10), Source: timeline.SourceActivityPath, ActivityType: "walking"},
	}
	if !slices.Equal(points, expect) {
		t.Errorf("expected %+v, got %+v", expect, points)
	}
}

func TestNormalizeActivityRecords(t *testing.T) {
	for i, tc := range []struct {
		doc    string
		expect []timeline.Point
	}{
		{
			// waypoints without offsets are interpolated
			doc: `[{
				"startTime": "2024-05-01T10:00:00Z",
				"endTime": "2024-05-01T10:10:00Z",
				"activity": {
					"topCandidate": {"type": "in bus"},
					"waypointPath": {"waypoints": [
						{"latE7": 10, "lngE7": 10},
						{"latE7": 20, "lngE7": 20},
						{"latE7": 30, "lngE7": 30}
					]}
				}
			}]`,
			expect: []timeline.Point{
				{LatitudeE7: 10, LongitudeE7: 10, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "in bus"},
				{LatitudeE7: 20, LongitudeE7: 20, Timestamp: at(10, 5), Source: timeline.SourceActivityPath, ActivityType: "in bus"},
				{LatitudeE7: 30, LongitudeE7: 30, Timestamp: at(10, 10), Source: timeline.SourceActivityPath, ActivityType: "in bus"},
			},
		},
		{
			// an incomplete set of offsets is ignored in favor of interpolation
			doc: `[{
				"startTime": "2024-05-01T10:00:00",
				"endTime": "2024-05-01T10:20:00",
				"timelinePath": [
					{"point": "geo:1.0,1.0", "durationMinutesOffsetFromStartTime": "3"},
					{"point": "geo:2.0,2.0"}
				]
			}]`,
			expect: []timeline.Point{
				{LatitudeE7: 10000000, LongitudeE7: 10000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 20000000, LongitudeE7: 20000000, Timestamp: at(10, 20), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
			},
		},
		{
			// offsets can be fractional minutes, as strings or numbers
			doc: `[{
				"startTime": "2024-05-01T10:00:00Z",
				"endTime": "2024-05-01T10:10:00Z",
				"timelinePath": [
					{"point": "geo:1.0,1.0", "durationMinutesOffsetFromStartTime": "0"},
					{"point": "geo:2.0,2.0", "durationMinutesOffsetFromStartTime": "5.5"},
					{"point": "geo:3.0,3.0", "durationMinutesOffsetFromStartTime": 7.25}
				]
			}]`,
			expect: []timeline.Point{
				{LatitudeE7: 10000000, LongitudeE7: 10000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 20000000, LongitudeE7: 20000000, Timestamp: at(10, 5) + 30_000, Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 30000000, LongitudeE7: 30000000, Timestamp: at(10, 7) + 15_000, Source: timeline.SourceActivityPath, ActivityType: "unknown"},
			},
		},
		{
			// no path: fall back to start and end
			doc: `[{
				"startTime": "2024-05-01T10:00:00.000+02:00",
				"endTime": "2024-05-01T11:00:00.000+02:00",
				"activity": {
					"start": "geo:1.5,-1.5",
					"end": "geo:2.5,-2.5",
					"topCandidate": {"type": "in passenger vehicle"}
				}
			}]`,
			expect: []timeline.Point{
				{LatitudeE7: 15000000, LongitudeE7: -15000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "in passenger vehicle"},
				{LatitudeE7: 25000000, LongitudeE7: -25000000, Timestamp: at(11, 0), Source: timeline.SourceActivityPath, ActivityType: "in passenger vehicle"},
			},
		},
		{
			// visit, and a single-point path which gets the start time
			doc: `[
				{
					"startTime": "2024-05-01T12:00:00Z",
					"endTime": "2024-05-01T13:00:00Z",
					"visit": {"topCandidate": {"placeLocation": "geo:5.000000,6.000000"}}
				},
				{
					"startTime": "2024-05-01T09:00:00Z",
					"endTime": "2024-05-01T09:30:00Z",
					"activity": {"points": ["geo:7.0,8.0"]}
				}
			]`,
			expect: []timeline.Point{
				{LatitudeE7: 70000000, LongitudeE7: 80000000, Timestamp: at(9, 0), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 50000000, LongitudeE7: 60000000, Timestamp: at(12, 0), Source: timeline.SourceVisit},
			},
		},
		{
			// consecutive duplicates are suppressed, invalid coordinates dropped
			doc: `[{
				"startTime": "2024-05-01T10:00:00Z",
				"endTime": "2024-05-01T10:30:00Z",
				"timelinePath": [
					{"point": "geo:1.0,1.0", "durationMinutesOffsetFromStartTime": "0"},
					{"point": "geo:1.0,1.0", "durationMinutesOffsetFromStartTime": "10"},
					{"point": "geo:91.0,1.0", "durationMinutesOffsetFromStartTime": "15"},
					{"point": "geo:nope", "durationMinutesOffsetFromStartTime": "18"},
					{"point": "geo:2.0,2.0", "durationMinutesOffsetFromStartTime": "20"},
					{"point": "geo:1.0,1.0", "durationMinutesOffsetFromStartTime": "30"}
				]
			}]`,
			expect: []timeline.Point{
				{LatitudeE7: 10000000, LongitudeE7: 10000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 20000000, LongitudeE7: 20000000, Timestamp: at(10, 20), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
				{LatitudeE7: 10000000, LongitudeE7: 10000000, Timestamp: at(10, 30), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
			},
		},
	} {
		actual, err := Normalize([]byte(tc.doc), testOptions())
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if !slices.Equal(actual, tc.expect) {
			t.Errorf("Test %d: expected:\n%+v\ngot:\n%+v", i, tc.expect, actual)
		}
	}
}

func TestNormalizeUnparseableTimestamp(t *testing.T) {
	doc := `[{"startTime": "yesterday", "endTime": "", "visit": {"topCandidate": {"placeLocation": "geo:1.0,2.0"}}}]`
	points, err := Normalize([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(points) != 1 || points[0].Timestamp != fixedNow.UnixMilli() {
		t.Errorf("expected one point at the current time, got %+v", points)
	}
}

func TestNormalizeRejectedCount(t *testing.T) {
	doc := `[
		{"startTime": "2024-05-01T10:00:00Z", "endTime": "2024-05-01T10:00:00Z", "visit": {"topCandidate": {"placeLocation": "geo:100.0,2.0"}}},
		{"startTime": "2024-05-01T10:00:00Z", "endTime": "2024-05-01T10:00:00Z", "visit": {"topCandidate": {}}},
		42,
		{"startTime": "2024-05-01T10:00:00Z", "endTime": "2024-05-01T10:00:00Z", "visit": {"topCandidate": {"placeLocation": "geo:10.0,2.0"}}}
	]`
	result, err := Process([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.Shape != ShapeOnDevice {
		t.Errorf("expected shape %s, got %s", ShapeOnDevice, result.Shape)
	}
	if len(result.Points) != 1 {
		t.Errorf("expected 1 point, got %d", len(result.Points))
	}
	if result.Rejected != 3 {
		t.Errorf("expected 3 rejected records, got %d", result.Rejected)
	}
}

func TestNormalizePointList(t *testing.T) {
	doc := `{"locations": [
		{"latitudeE7": 520000000, "longitudeE7": 130000000, "timestamp": "2024-05-01T10:05:00Z",
			"activity": [
				{"activity": [{"type": "STILL", "confidence": 40}, {"type": "WALKING", "confidence": 55}]},
				{"activity": [{"type": "IN_VEHICLE", "confidence": 50}]}
			]},
		{"latitude": 52.1, "longitude": 13.1, "timestampMs": "1714557600000"},
		{"lat": -33.8688, "lng": 151.2093, "timestamp": "2024-05-01T12:00:00+02:00"},
		{"latE7": 10, "lngE7": 20, "timestampMs": 1714557600000},
		{"latitudeE7": 520000000, "longitudeE7": 130000000, "timestamp": "2024-05-01T10:06:00Z"},
		{"latitudeE7": 950000000, "longitudeE7": 130000000, "timestamp": "2024-05-01T10:07:00Z"},
		{"latitudeE7": -9223372036854775808, "longitudeE7": 130000000, "timestamp": "2024-05-01T10:08:00Z"},
		{"latitude": "-922337203685.4775808", "longitude": "13.0", "timestamp": "2024-05-01T10:09:00Z"},
		{"latitudeE7": 10, "longitudeE7": 10},
		{"timestamp": "2024-05-01T10:07:00Z"}
	]}`

	result, err := Process([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.Shape != ShapePointList {
		t.Errorf("expected point list, got %s", result.Shape)
	}
	expect := []timeline.Point{
		{LatitudeE7: 521000000, LongitudeE7: 131000000, Timestamp: at(10, 0)},
		{LatitudeE7: -338688000, LongitudeE7: 1512093000, Timestamp: at(10, 0)},
		{LatitudeE7: 10, LongitudeE7: 20, Timestamp: at(10, 0)},
		{LatitudeE7: 520000000, LongitudeE7: 130000000, Timestamp: at(10, 5), ActivityType: "WALKING"},
		{LatitudeE7: 520000000, LongitudeE7: 130000000, Timestamp: at(10, 6)},
	}
	if !slices.Equal(result.Points, expect) {
		t.Errorf("expected:\n%+v\ngot:\n%+v", expect, result.Points)
	}
	if result.Rejected != 5 {
		t.Errorf("expected 5 rejected, got %d", result.Rejected)
	}
}

func TestNormalizeSemanticSegments(t *testing.T) {
	doc := `{"semanticSegments": [
		{
			"startTime": "2025-01-10T08:00:00.000-05:00",
			"endTime": "2025-01-10T08:30:00.000-05:00",
			"timelinePath": [
				{"point": "40.7000000°, -74.0000000°", "time": "2025-01-10T08:00:00.000-05:00"},
				{"point": "40.7100000°, -74.0100000°", "time": "2025-01-10T08:07:00.000-05:00"}
			]
		},
		{
			"startTime": "2025-01-10T08:30:00.000-05:00",
			"endTime": "2025-01-10T09:00:00.000-05:00",
			"activity": {
				"start": {"latLng": "40.7100000°, -74.0100000°"},
				"end": {"latLng": "40.7500000°, -73.9900000°"},
				"topCandidate": {"type": "IN_SUBWAY", "probability": 0.8}
			}
		},
		{
			"startTime": "2025-01-10T09:05:00.000-05:00",
			"endTime": "2025-01-10T10:00:00.000-05:00",
			"visit": {"topCandidate": {"placeLocation": {"latLng": "40.7501234°, -73.9901234°"}}}
		}
	]}`

	points, err := Normalize([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	ts := func(h, m int) int64 { return time.Date(2025, 1, 10, h, m, 0, 0, time.UTC).UnixMilli() }
	expect := []timeline.Point{
		{LatitudeE7: 407000000, LongitudeE7: -740000000, Timestamp: ts(8, 0), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
		{LatitudeE7: 407100000, LongitudeE7: -740100000, Timestamp: ts(8, 7), Source: timeline.SourceActivityPath, ActivityType: "unknown"},
		{LatitudeE7: 407500000, LongitudeE7: -739900000, Timestamp: ts(9, 0), Source: timeline.SourceActivityPath, ActivityType: "IN_SUBWAY"},
		{LatitudeE7: 407501234, LongitudeE7: -739901234, Timestamp: ts(9, 5), Source: timeline.SourceVisit},
	}
	// the start of the subway ride (8:30) is suppressed as a duplicate of the last path point
	if !slices.Equal(points, expect) {
		t.Errorf("expected:\n%+v\ngot:\n%+v", expect, points)
	}
}

func TestNormalizeTimelineObjects(t *testing.T) {
	doc := `{"timelineObjects": [
		{"activitySegment": {
			"startLocation": {"latitudeE7": 520000000, "longitudeE7": 130000000},
			"endLocation": {"latitudeE7": 523000000, "longitudeE7": 133000000},
			"duration": {"startTimestamp": "2024-05-01T10:00:00Z", "endTimestamp": "2024-05-01T10:30:00Z"},
			"activityType": "IN_BUS",
			"waypointPath": {"waypoints": [
				{"latE7": 520000000, "lngE7": 130000000},
				{"latE7": 521000000, "lngE7": 131000000},
				{"latE7": 522000000, "lngE7": 132000000},
				{"latE7": 523000000, "lngE7": 133000000}
			]}
		}},
		{"placeVisit": {
			"location": {"latitudeE7": 523000000, "longitudeE7": 133000000, "name": "Home"},
			"duration": {"startTimestampMs": "1714559400000", "endTimestampMs": "1714563000000"}
		}}
	]}`

	points, err := Normalize([]byte(doc), testOptions())
	if err != nil {
		t.Fatal(err)
	}
	expect := []timeline.Point{
		{LatitudeE7: 520000000, LongitudeE7: 130000000, Timestamp: at(10, 0), Source: timeline.SourceActivityPath, ActivityType: "IN_BUS"},
		{LatitudeE7: 521000000, LongitudeE7: 131000000, Timestamp: at(10, 10), Source: timeline.SourceActivityPath, ActivityType: "IN_BUS"},
		{LatitudeE7: 522000000, LongitudeE7: 132000000, Timestamp: at(10, 20), Source: timeline.SourceActivityPath, ActivityType: "IN_BUS"},
		{LatitudeE7: 523000000, LongitudeE7: 133000000, Timestamp: at(10, 30), Source: timeline.SourceActivityPath, ActivityType: "IN_BUS"},
	}
	if !slices.Equal(points, expect) {
		t.Errorf("expected:\n%+v\ngot:\n%+v", expect, points)
	}
}

func TestDetectShape(t *testing.T) {
	for i, tc := range []struct {
		doc         string
		expect      Shape
		formatError bool
	}{
		{doc: `{"locations": []}`, expect: ShapePointList},
		{doc: `[]`, expect: ShapeOnDevice},
		{doc: `{"semanticSegments": [{}], "rawSignals": []}`, expect: ShapeSemanticSegments},
		{doc: `{"timelineObjects": []}`, expect: ShapeTimelineObjects},
		{doc: `{"locations": {}}`, formatError: true},
		{doc: `{"foo": "bar"}`, formatError: true},
		{doc: `"hello"`, formatError: true},
		{doc: `{not json`, formatError: true},
		{doc: ``, formatError: true},
	} {
		actual, err := DetectShape([]byte(tc.doc))
		var fe *timeline.FormatError
		if tc.formatError {
			if !errors.As(err, &fe) {
				t.Errorf("Test %d: expected FormatError, got %v", i, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
		}
		if actual != tc.expect {
			t.Errorf("Test %d: expected %s, got %s", i, tc.expect, actual)
		}
	}

	if _, err := Normalize([]byte(`{"foo": 1}`), testOptions()); err == nil {
		t.Error("expected error from Normalize for unrecognized document")
	}
}

func TestFloatStringToIntE7(t *testing.T) {
	for i, tc := range []struct {
		input  string
		expect int64
		err    bool
	}{
		{input: "52.5200066", expect: 525200066},
		{input: "-122.4194155", expect: -1224194155},
		{input: "1.23456789", expect: 12345678},
		{input: "1.5", expect: 15000000},
		{input: "12", expect: 120000000},
		{input: "-0.5", expect: -5000000},
		{input: " 40.7 ", expect: 407000000},
		{input: "+3.25", expect: 32500000},
		{input: "1e-3", expect: 10000},
		{input: "abc", err: true},
		{input: "", err: true},
	} {
		actual, err := FloatStringToIntE7(tc.input)
		if tc.err {
			if err == nil {
				t.Errorf("Test %d: expected error for %q, got %d", i, tc.input, actual)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error for %q: %v", i, tc.input, err)
			continue
		}
		if actual != tc.expect {
			t.Errorf("Test %d: expected %d for %q, got %d", i, tc.expect, tc.input, actual)
		}
	}
}

func TestParseActivityTime(t *testing.T) {
	loc := time.FixedZone("test", -6*60*60)
	for i, tc := range []struct {
		input  string
		expect time.Time
		err    bool
	}{
		{input: "2024-06-21T19:51:13.014-06:00", expect: time.Date(2024, 6, 21, 19, 51, 13, 14000000, loc)},
		{input: "2024-06-21T19:51:13Z", expect: time.Date(2024, 6, 21, 19, 51, 13, 0, loc)},
		{input: "2024-06-21T19:51:13+0200", expect: time.Date(2024, 6, 21, 19, 51, 13, 0, loc)},
		{input: "2024-06-21 19:51:13", expect: time.Date(2024, 6, 21, 19, 51, 13, 0, loc)},
		{input: "2024-06-21T19:51", expect: time.Date(2024, 6, 21, 19, 51, 0, 0, loc)},
		{input: "2024-06-21", expect: time.Date(2024, 6, 21, 0, 0, 0, 0, loc)},
		{input: "June 21", err: true},
		{input: "", err: true},
	} {
		actual, err := parseActivityTime(tc.input, loc)
		if tc.err {
			if err == nil {
				t.Errorf("Test %d: expected error for %q", i, tc.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error for %q: %v", i, tc.input, err)
			continue
		}
		if !actual.Equal(tc.expect) {
			t.Errorf("Test %d: expected %s for %q, got %s", i, tc.expect, tc.input, actual)
		}
	}
}

func TestFakeDocument(t *testing.T) {
	start := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	trips := timeline.FakeTrips(42, start, 9)

	doc, err := FakeDocument(trips, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	result, err := Process(doc, testOptions())
	if err != nil {
		t.Fatal(err)
	}
	if result.Shape != ShapeOnDevice {
		t.Errorf("expected on-device shape, got %s", result.Shape)
	}
	if result.Rejected != 0 {
		t.Errorf("expected no rejected records, got %d", result.Rejected)
	}
	if len(result.Points) < 2 {
		t.Fatalf("expected several points, got %d", len(result.Points))
	}
	testhelpers.AssertSorted(t, result.Points)
	if first := result.Points[0].Timestamp; first != start.UnixMilli() {
		t.Errorf("expected first point at %d, got %d", start.UnixMilli(), first)
	}
}
