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

// Package googlelocation normalizes Google Location History documents
// (aka Google Maps Timeline) into canonical points.
//
// Four shapes of document are supported: the legacy Takeout point list
// (Records.json), the on-device activity/visit export from iOS, the
// on-device semanticSegments export from Android, and the legacy
// semantic location history (timelineObjects).
//
// I found this website very helpful as documentation of the Takeout format:
// https://locationhistoryformat.com/
package googlelocation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

// Options configures normalization.
type Options struct {
	// The time zone in which to interpret the wall-clock timestamps
	// of activity and visit records. Default: time.Local.
	TimeZone *time.Location

	// Now returns the time to substitute for activity timestamps
	// that can't be parsed. Default: time.Now.
	Now func() time.Time

	// Logger receives debug logs about rejected records.
	// Default: timeline.Log named "googlelocation".
	Logger *zap.Logger
}

func (o Options) withDefaults() Options {
	if o.TimeZone == nil {
		o.TimeZone = time.Local
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = timeline.Log.Named("googlelocation")
	}
	return o
}

// Result is the outcome of normalizing one document.
type Result struct {
	Shape    Shape
	Points   []timeline.Point
	Rejected int // records or vertices dropped because they failed validation
}

// Normalize converts doc into canonical points, sorted by timestamp, with
// consecutive duplicate locations suppressed (the point-list shape is
// only sorted). It returns a *timeline.FormatError if doc is not one of
// the supported shapes. Individual records that fail validation are
// dropped, not reported as errors.
func Normalize(doc []byte, opts Options) ([]timeline.Point, error) {
	result, err := Process(doc, opts)
	if err != nil {
		return nil, err
	}
	return result.Points, nil
}

// Process is like Normalize, but returns the full Result.
func Process(doc []byte, opts Options) (Result, error) {
	opts = opts.withDefaults()

	shape, err := DetectShape(doc)
	if err != nil {
		return Result{}, err
	}

	n := &normalizer{opts: opts, result: Result{Shape: shape}}

	switch shape {
	case ShapePointList:
		n.pointList(doc)
		timeline.SortPoints(n.result.Points)
		return n.result, nil

	case ShapeOnDevice:
		eachRecord(n, gjson.ParseBytes(doc), func(rec onDeviceRecord) {
			n.addRecord(rec.record(n))
		})

	case ShapeSemanticSegments:
		eachRecord(n, gjson.GetBytes(doc, "semanticSegments"), func(seg semanticSegment) {
			n.addRecord(seg.record(n))
		})

	case ShapeTimelineObjects:
		eachRecord(n, gjson.GetBytes(doc, "timelineObjects"), func(obj timelineObject) {
			n.addRecord(obj.record(n))
		})
	}

	timeline.SortPoints(n.result.Points)
	n.result.Points = timeline.SuppressConsecutiveDuplicates(n.result.Points)

	return n.result, nil
}

// normalizer accumulates the points of one document.
type normalizer struct {
	opts   Options
	result Result
}

// eachRecord decodes each element of the JSON array arr into a T and
// passes it to fn. Elements that can't be decoded are rejected.
func eachRecord[T any](n *normalizer, arr gjson.Result, fn func(T)) {
	arr.ForEach(func(_, value gjson.Result) bool {
		var rec T
		if err := json.Unmarshal([]byte(value.Raw), &rec); err != nil {
			n.reject("malformed record", err)
			return true
		}
		fn(rec)
		return true
	})
}

func (n *normalizer) reject(reason string, err error) {
	n.result.Rejected++
	n.opts.Logger.Debug("dropping record",
		zap.String("reason", reason),
		zap.Error(err),
		zap.Stringer("shape", n.result.Shape))
}

func (n *normalizer) add(p timeline.Point) {
	if !p.Valid() {
		n.reject("coordinates out of range", fmt.Errorf("(%d, %d): %w", p.LatitudeE7, p.LongitudeE7, timeline.ErrPointRejected))
		return
	}
	n.result.Points = append(n.result.Points, p)
}

// FloatStringToIntE7 converts a float coordinate as a string to an integer
// with the decimal point moved right 7 places. Digits beyond the 7th
// decimal place are truncated. It does this without any floating-point
// arithmetic, so no precision is lost in the conversion.
func FloatStringToIntE7(coord string) (int64, error) {
	coord = strings.TrimSpace(coord)
	if coord == "" {
		return 0, errors.New("empty coordinate")
	}
	if strings.ContainsAny(coord, "eE") {
		// exponent notation; re-render it as plain decimal
		f, err := strconv.ParseFloat(coord, 64)
		if err != nil {
			return 0, err
		}
		coord = strconv.FormatFloat(f, 'f', -1, 64)
	}
	coord = strings.TrimPrefix(coord, "+")
	dotPos := strings.Index(coord, ".")
	if dotPos < 0 {
		coord += "."
		dotPos = len(coord) - 1
	}
	endPos := dotPos + 1 + timeline.Places
	if endPos >= len(coord) {
		coord += strings.Repeat("0", endPos-len(coord))
		endPos = len(coord)
	}
	reconstructed := coord[:dotPos] + coord[dotPos+1:endPos]

	return strconv.ParseInt(reconstructed, 10, 64)
}
