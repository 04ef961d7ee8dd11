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

// Package export serializes segmented tracks into documents for
// geographic viewers: KML and GeoJSON. Serialization is pure and
// deterministic; it never touches the network.
package export

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	_ "time/tzdata" // time zones resolved from coordinates must load on any system

	"github.com/ringsaturn/tzf"
	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

// StyleOptions configures the appearance and content of an exported
// document.
type StyleOptions struct {
	// Name of the document. Default: "Location history".
	Name string `json:"name,omitempty"`

	// Line color as "#rrggbb" (or "rrggbb"). Default: "#1e88e5".
	Color string `json:"color,omitempty"`

	// Line opacity in [0, 1]. Default (0): fully opaque.
	Opacity float64 `json:"opacity,omitempty"`

	// Line width in pixels. Default: 4.
	Width float64 `json:"width,omitempty"`

	// Marker color as "#rrggbb". Default: same as Color.
	PointColor string `json:"point_color,omitempty"`

	// Include one marker per point.
	ShowWaypoints bool `json:"show_waypoints,omitempty"`

	// Include one marker per point, and name each with its local time.
	ShowLabels bool `json:"show_labels,omitempty"`

	// Time zone for human-readable times. If nil, the zone at the
	// first point is used, falling back to UTC.
	TimeZone *time.Location `json:"-"`

	// Set to a value 1-10 to enable path simplification of each
	// segment. 10 means very aggressive simplification and 1 means to
	// only drop points on the straightest paths. Endpoints and visits
	// are always kept.
	Simplification float64 `json:"simplification,omitempty"`

	// The period being exported, if any; used in the description.
	Period *timeline.Period `json:"-"`
}

const (
	defaultName  = "Location history"
	defaultColor = "#1e88e5"
	defaultWidth = 4
)

func (o StyleOptions) withDefaults() (StyleOptions, error) {
	if o.Name == "" {
		o.Name = defaultName
	}
	if o.Color == "" {
		o.Color = defaultColor
	}
	if o.PointColor == "" {
		o.PointColor = o.Color
	}
	if o.Width <= 0 {
		o.Width = defaultWidth
	}
	if o.Opacity < 0 || o.Opacity > 1 {
		return o, fmt.Errorf("invalid opacity; must be in [0,1]: %f", o.Opacity)
	}
	if o.Opacity == 0 {
		o.Opacity = 1
	}
	if o.Simplification < 0 || o.Simplification > 10 {
		return o, fmt.Errorf("invalid simplification factor; must be in [0,10]: %f", o.Simplification)
	}
	if _, err := parseHexColor(o.Color); err != nil {
		return o, err
	}
	if _, err := parseHexColor(o.PointColor); err != nil {
		return o, err
	}
	return o, nil
}

func (o StyleOptions) showPoints() bool { return o.ShowWaypoints || o.ShowLabels }

// rgb is a color as red, green, and blue channels.
type rgb [3]uint8

func parseHexColor(s string) (rgb, error) {
	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return rgb{}, fmt.Errorf("invalid color %q: must be #rrggbb", s)
	}
	val, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return rgb{}, fmt.Errorf("invalid color %q: %w", s, err)
	}
	return rgb{uint8(val >> 16), uint8(val >> 8), uint8(val)}, nil
}

// KMLColor converts a "#rrggbb" color and an opacity in [0,1] into the
// "aabbggrr" channel order required by KML.
func KMLColor(color string, opacity float64) (string, error) {
	c, err := parseHexColor(color)
	if err != nil {
		return "", err
	}
	alpha := uint8(opacity*255 + 0.5)
	return fmt.Sprintf("%02x%02x%02x%02x", alpha, c[2], c[1], c[0]), nil
}

// tzFinder is loaded on first use; it's large.
var tzFinder = sync.OnceValues(func() (tzf.F, error) {
	return tzf.NewDefaultFinder()
})

// zoneAt returns the time zone at the given coordinate, or nil if it
// can't be determined.
func zoneAt(lat, lon float64) *time.Location {
	finder, err := tzFinder()
	if err != nil {
		timeline.Log.Named("export").Warn("loading time zone finder", zap.Error(err))
		return nil
	}
	name := finder.GetTimezoneName(lon, lat)
	if name == "" {
		return nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil
	}
	return loc
}

// location returns the time zone to render times in.
func (o StyleOptions) location(segments []timeline.Segment, points []timeline.Point) *time.Location {
	if o.TimeZone != nil {
		return o.TimeZone
	}
	var first *timeline.Point
	switch {
	case len(segments) > 0:
		first = &segments[0][0]
	case len(points) > 0:
		first = &points[0]
	}
	if first != nil {
		if loc := zoneAt(first.Latitude(), first.Longitude()); loc != nil {
			return loc
		}
	}
	return time.UTC
}

// segmentName labels a segment with its start and end in local time.
func segmentName(seg timeline.Segment, loc *time.Location) string {
	start, end := seg.Start().In(loc), seg.End().In(loc)
	if start.Format(time.DateOnly) == end.Format(time.DateOnly) {
		return start.Format("2006-01-02 15:04") + " - " + end.Format("15:04")
	}
	return start.Format("2006-01-02 15:04") + " - " + end.Format("2006-01-02 15:04")
}

// pointName labels the 1-based index-th point.
func pointName(index int, p timeline.Point, loc *time.Location, labels bool) string {
	if !labels {
		return strconv.Itoa(index)
	}
	return fmt.Sprintf("%d: %s", index, p.Time().In(loc).Format("2006-01-02 15:04:05 MST"))
}

// summary describes the contents of a document.
func summary(segments []timeline.Segment, points []timeline.Point, opts StyleOptions, loc *time.Location) string {
	var sb strings.Builder
	if opts.Period != nil {
		fmt.Fprintf(&sb, "Period %d: %s to %s. ", opts.Period.ID,
			opts.Period.Start.In(loc).Format(time.DateTime), opts.Period.End.In(loc).Format(time.DateTime))
	}
	var total int
	for _, seg := range segments {
		total += len(seg)
	}
	fmt.Fprintf(&sb, "%d tracks, %d track points, %d points. Distance: %.2f km.",
		len(segments), total, len(points), totalDistance(segments)/1000)
	return sb.String()
}
