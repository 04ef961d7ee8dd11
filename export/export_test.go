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
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/timelinize/trackexport/timeline"
)

var t0 = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func point(lat, lon float64, minute int) timeline.Point {
	return timeline.Point{
		LatitudeE7:  int64(math.Round(lat * timeline.PlacesMult)),
		LongitudeE7: int64(math.Round(lon * timeline.PlacesMult)),
		Timestamp:   t0.Add(time.Duration(minute) * time.Minute).UnixMilli(),
		Source:      timeline.SourceRaw,
	}
}

func TestKMLSingleSegment(t *testing.T) {
	seg := timeline.Segment{point(52.0, 13.0, 0), point(52.1, 13.1, 10)}

	out, err := KML([]timeline.Segment{seg}, seg, StyleOptions{TimeZone: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)

	if n := strings.Count(doc, "<LineString>"); n != 1 {
		t.Errorf("expected exactly 1 LineString, got %d", n)
	}
	if !strings.Contains(doc, "<coordinates>13.000000,52.000000,0 13.100000,52.100000,0</coordinates>") {
		t.Errorf("expected coordinates in order, got:\n%s", doc)
	}
	if !strings.Contains(doc, "<name>2024-05-01 10:00 - 10:10</name>") {
		t.Errorf("expected line named by time range, got:\n%s", doc)
	}
	if strings.Contains(doc, "<Point>") {
		t.Errorf("expected no point placemarks by default")
	}
	if !strings.HasPrefix(doc, xml.Header) {
		t.Errorf("expected XML header")
	}
	assertWellFormed(t, out)
}

func TestKMLPoints(t *testing.T) {
	pts := []timeline.Point{point(52.0, 13.0, 0), point(52.1, 13.1, 10), point(52.2, 13.2, 20)}
	seg := timeline.Segment(pts)

	out, err := KML([]timeline.Segment{seg}, pts, StyleOptions{TimeZone: time.UTC, ShowWaypoints: true})
	if err != nil {
		t.Fatal(err)
	}
	doc := string(out)
	if n := strings.Count(doc, "<Point>"); n != 3 {
		t.Errorf("expected 3 point placemarks, got %d", n)
	}
	for _, name := range []string{"<name>1</name>", "<name>2</name>", "<name>3</name>"} {
		if !strings.Contains(doc, name) {
			t.Errorf("expected %s in document", name)
		}
	}

	out, err = KML([]timeline.Segment{seg}, pts, StyleOptions{TimeZone: time.UTC, ShowLabels: true})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<name>2: 2024-05-01 10:10:00 UTC</name>") {
		t.Errorf("expected labeled point names, got:\n%s", out)
	}
	assertWellFormed(t, out)
}

func TestKMLEmpty(t *testing.T) {
	out, err := KML(nil, nil, StyleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(out), "<LineString>") {
		t.Errorf("expected no tracks")
	}
	if !strings.Contains(string(out), "<Document") {
		t.Errorf("expected a Document")
	}
	assertWellFormed(t, out)
}

func TestKMLDeterministic(t *testing.T) {
	seg := timeline.Segment{point(52.0, 13.0, 0), point(52.1, 13.1, 10), point(52.15, 13.3, 15)}
	opts := StyleOptions{TimeZone: time.UTC, ShowLabels: true, Color: "#ff8800", Opacity: 0.5}

	first, err := KML([]timeline.Segment{seg}, seg, opts)
	if err != nil {
		t.Fatal(err)
	}
	second, err := KML([]timeline.Segment{seg}, seg, opts)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(first, second) {
		t.Error("expected identical output for identical input")
	}
	if !strings.Contains(string(first), "<color>800088ff</color>") {
		t.Errorf("expected line color in aabbggrr order, got:\n%s", first)
	}
}

func TestKMLTimeZoneFromLocation(t *testing.T) {
	// 10:00 UTC is 12:00 in Berlin in May
	seg := timeline.Segment{point(52.52, 13.405, 0), point(52.53, 13.41, 10)}
	out, err := KML([]timeline.Segment{seg}, nil, StyleOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(out), "<name>2024-05-01 12:00 - 12:10</name>") {
		t.Errorf("expected segment name in local time, got:\n%s", out)
	}
}

func TestKMLColor(t *testing.T) {
	for i, tc := range []struct {
		color   string
		opacity float64
		expect  string
		err     bool
	}{
		{color: "#ff0000", opacity: 1, expect: "ff0000ff"},
		{color: "00ff00", opacity: 1, expect: "ff00ff00"},
		{color: "#123456", opacity: 0, expect: "00563412"},
		{color: "#abc", opacity: 1, expect: "ffccbbaa"},
		{color: "#12345", err: true},
		{color: "#gggggg", err: true},
	} {
		actual, err := KMLColor(tc.color, tc.opacity)
		if tc.err {
			if err == nil {
				t.Errorf("Test %d: expected error, got %s", i, actual)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if actual != tc.expect {
			t.Errorf("Test %d: expected %s, got %s", i, tc.expect, actual)
		}
	}
}

func TestInvalidStyle(t *testing.T) {
	for i, opts := range []StyleOptions{
		{Color: "red"},
		{Opacity: 2},
		{Simplification: 11},
	} {
		if _, err := KML(nil, nil, opts); err == nil {
			t.Errorf("Test %d: expected error", i)
		}
	}
}

func TestGeoJSON(t *testing.T) {
	segA := timeline.Segment{point(52.0, 13.0, 0), point(52.1, 13.1, 10)}
	segB := timeline.Segment{point(53.0, 14.0, 100), point(53.1, 14.1, 110), point(53.2, 14.2, 120)}
	points := append(append([]timeline.Point{}, segA...), segB...)

	out, err := GeoJSON([]timeline.Segment{segA, segB}, points, StyleOptions{TimeZone: time.UTC, ShowWaypoints: true})
	if err != nil {
		t.Fatal(err)
	}

	fc, err := geojson.UnmarshalFeatureCollection(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 7 {
		t.Fatalf("expected 7 features, got %d", len(fc.Features))
	}
	ls, ok := fc.Features[0].Geometry.(orb.LineString)
	if !ok {
		t.Fatalf("expected first feature to be a LineString, got %s", fc.Features[0].Geometry.GeoJSONType())
	}
	if len(ls) != 2 || ls[0] != (orb.Point{13.0, 52.0}) {
		t.Errorf("unexpected geometry: %v", ls)
	}
	if name := fc.Features[1].Properties.MustString("name"); name != "2024-05-01 11:40 - 12:00" {
		t.Errorf("unexpected name of second track: %s", name)
	}
	if _, ok := fc.Features[6].Geometry.(orb.Point); !ok {
		t.Errorf("expected last feature to be a Point")
	}

	out, err = GeoJSON(nil, nil, StyleOptions{TimeZone: time.UTC})
	if err != nil {
		t.Fatal(err)
	}
	fc, err = geojson.UnmarshalFeatureCollection(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(fc.Features) != 0 {
		t.Errorf("expected no features, got %d", len(fc.Features))
	}
}

func TestSimplify(t *testing.T) {
	// a straight line with a visit in the middle and a detour near the end
	seg := timeline.Segment{
		point(0, 0, 0),
		point(0, 0.001, 1),
		point(0, 0.002, 2),
		point(0, 0.003, 3),
		point(0.01, 0.004, 4),
		point(0, 0.005, 5),
	}
	seg[2].Source = timeline.SourceVisit

	simplified := simplifySegments([]timeline.Segment{seg}, 1)[0]

	var sawVisit, sawDetour bool
	for _, p := range simplified {
		sawVisit = sawVisit || p.Source == timeline.SourceVisit
		sawDetour = sawDetour || p.LatitudeE7 == 100000
	}
	if !sawVisit {
		t.Error("expected visit to be kept")
	}
	if !sawDetour {
		t.Error("expected detour to be kept")
	}
	if simplified[0] != seg[0] || simplified[len(simplified)-1] != seg[len(seg)-1] {
		t.Error("expected endpoints to be kept")
	}
	if len(simplified) >= len(seg) {
		t.Errorf("expected fewer points, got %d", len(simplified))
	}
	if seg[1].LongitudeE7 != 10000 {
		t.Error("input was modified")
	}

	if same := simplifySegments([]timeline.Segment{seg}, 0)[0]; len(same) != len(seg) {
		t.Error("expected no simplification with factor 0")
	}
}

// assertWellFormed fails if doc isn't well-formed XML.
func assertWellFormed(t *testing.T, doc []byte) {
	t.Helper()
	dec := xml.NewDecoder(bytes.NewReader(doc))
	for {
		_, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return
			}
			t.Fatalf("document is not well-formed: %v", err)
		}
	}
}
