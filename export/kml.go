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
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timelinize/trackexport/timeline"
)

// These structs mirror the subset of KML 2.2 that we write. Optional
// elements are pointers or omitempty so that the output stays minimal.
type kmlRoot struct {
	XMLName  xml.Name    `xml:"kml"`
	XMLNS    string      `xml:"xmlns,attr"`
	Document kmlDocument `xml:"Document"`
}

type kmlDocument struct {
	ID          string      `xml:"id,attr"`
	Name        string      `xml:"name"`
	Open        int         `xml:"open"`
	Description string      `xml:"description"`
	Styles      []kmlStyle  `xml:"Style"`
	Folders     []kmlFolder `xml:"Folder"`
}

type kmlStyle struct {
	ID         string         `xml:"id,attr"`
	LineStyle  *kmlLineStyle  `xml:"LineStyle,omitempty"`
	IconStyle  *kmlIconStyle  `xml:"IconStyle,omitempty"`
	LabelStyle *kmlLabelStyle `xml:"LabelStyle,omitempty"` // scale 0 hides labels
}

type kmlLineStyle struct {
	Color string  `xml:"color"`
	Width float64 `xml:"width"`
}

type kmlIconStyle struct {
	Color string  `xml:"color"`
	Scale float64 `xml:"scale"`
	Icon  struct {
		Href string `xml:"href"`
	} `xml:"Icon"`
}

type kmlLabelStyle struct {
	Scale float64 `xml:"scale"`
}

type kmlFolder struct {
	Name       string         `xml:"name"`
	Placemarks []kmlPlacemark `xml:"Placemark"`
}

type kmlPlacemark struct {
	Name        string         `xml:"name"`
	Description string         `xml:"description,omitempty"`
	TimeSpan    *kmlTimeSpan   `xml:"TimeSpan,omitempty"`
	TimeStamp   *kmlTimeStamp  `xml:"TimeStamp,omitempty"`
	StyleURL    string         `xml:"styleUrl"`
	LineString  *kmlLineString `xml:"LineString,omitempty"`
	Point       *kmlPoint      `xml:"Point,omitempty"`
}

type kmlTimeSpan struct {
	Begin string `xml:"begin"`
	End   string `xml:"end"`
}

type kmlTimeStamp struct {
	When string `xml:"when"`
}

type kmlLineString struct {
	Tessellate  int    `xml:"tessellate"`
	Coordinates string `xml:"coordinates"`
}

type kmlPoint struct {
	Coordinates string `xml:"coordinates"`
}

const (
	kmlNamespace  = "http://www.opengis.net/kml/2.2"
	lineStyleID   = "track"
	pointStyleID  = "waypoint"
	pointIconHref = "http://maps.google.com/mapfiles/kml/shapes/placemark_circle.png"
)

// KML serializes segments (and optionally the individual points) into a
// KML document. Each segment becomes one line placemark named by its
// local time range; if opts.ShowWaypoints or opts.ShowLabels is set,
// each of points becomes a point placemark named by its 1-based index.
//
// The output depends only on the inputs. Zero segments and points
// yield a valid document without any tracks.
func KML(segments []timeline.Segment, points []timeline.Point, opts StyleOptions) ([]byte, error) {
	opts, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	segments = simplifySegments(segments, opts.Simplification)
	loc := opts.location(segments, points)

	lineColor, err := KMLColor(opts.Color, opts.Opacity)
	if err != nil {
		return nil, err
	}
	pointColor, err := KMLColor(opts.PointColor, 1)
	if err != nil {
		return nil, err
	}

	doc := kmlDocument{
		ID:          "trackexport-" + documentID(segments, points).String(),
		Name:        opts.Name,
		Open:        1,
		Description: summary(segments, points, opts, loc),
		Styles: []kmlStyle{
			{
				ID:        lineStyleID,
				LineStyle: &kmlLineStyle{Color: lineColor, Width: opts.Width},
			},
		},
	}

	tracks := kmlFolder{Name: "Tracks"}
	for i, seg := range segments {
		tracks.Placemarks = append(tracks.Placemarks, kmlPlacemark{
			Name:        segmentName(seg, loc),
			Description: segmentDescription(i, seg),
			TimeSpan: &kmlTimeSpan{
				Begin: seg.Start().Format(time.RFC3339),
				End:   seg.End().Format(time.RFC3339),
			},
			StyleURL: "#" + lineStyleID,
			LineString: &kmlLineString{
				Tessellate:  1,
				Coordinates: kmlCoordinates(seg),
			},
		})
	}
	doc.Folders = append(doc.Folders, tracks)

	if opts.showPoints() {
		pointStyle := kmlStyle{
			ID:        pointStyleID,
			IconStyle: &kmlIconStyle{Color: pointColor, Scale: 0.6},
		}
		pointStyle.IconStyle.Icon.Href = pointIconHref
		if !opts.ShowLabels {
			pointStyle.LabelStyle = &kmlLabelStyle{Scale: 0}
		}
		doc.Styles = append(doc.Styles, pointStyle)

		waypoints := kmlFolder{Name: "Points"}
		for i, p := range points {
			waypoints.Placemarks = append(waypoints.Placemarks, kmlPlacemark{
				Name:        pointName(i+1, p, loc, opts.ShowLabels),
				Description: pointDescription(p),
				TimeStamp:   &kmlTimeStamp{When: p.Time().Format(time.RFC3339)},
				StyleURL:    "#" + pointStyleID,
				Point:       &kmlPoint{Coordinates: kmlCoordinate(p)},
			})
		}
		doc.Folders = append(doc.Folders, waypoints)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(kmlRoot{XMLNS: kmlNamespace, Document: doc}); err != nil {
		return nil, fmt.Errorf("encoding KML: %w", err)
	}
	buf.WriteByte('\n')

	return buf.Bytes(), nil
}

// kmlCoordinate formats p as "lon,lat,0" with six decimal places.
func kmlCoordinate(p timeline.Point) string {
	return strconv.FormatFloat(p.Longitude(), 'f', 6, 64) + "," +
		strconv.FormatFloat(p.Latitude(), 'f', 6, 64) + ",0"
}

// kmlCoordinates formats the points of seg as space-separated tuples.
func kmlCoordinates(seg timeline.Segment) string {
	tuples := make([]string, len(seg))
	for i, p := range seg {
		tuples[i] = kmlCoordinate(p)
	}
	return strings.Join(tuples, " ")
}

func segmentDescription(index int, seg timeline.Segment) string {
	desc := fmt.Sprintf("Track %d: %d points, %.2f km, %s",
		index+1, len(seg), segmentDistance(seg)/1000, seg.End().Sub(seg.Start()).Round(time.Second))
	if activity := seg[0].ActivityType; activity != "" && activity != "unknown" {
		desc += ", " + activity
	}
	return desc
}

func pointDescription(p timeline.Point) string {
	if p.ActivityType == "" {
		return p.Source.String()
	}
	return p.Source.String() + ", " + p.ActivityType
}

// documentID derives a stable ID from the content of a document, so
// that the same tracks always produce the same document.
func documentID(segments []timeline.Segment, points []timeline.Point) uuid.UUID {
	var sb strings.Builder
	for _, seg := range segments {
		for _, p := range seg {
			fmt.Fprintf(&sb, "%d,%d,%d;", p.LatitudeE7, p.LongitudeE7, p.Timestamp)
		}
		sb.WriteByte('|')
	}
	for _, p := range points {
		fmt.Fprintf(&sb, "%d,%d,%d;", p.LatitudeE7, p.LongitudeE7, p.Timestamp)
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(sb.String()))
}
