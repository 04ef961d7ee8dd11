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
	"path"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/timelinize/trackexport/timeline"
)

// Shape is the top-level structure of a location history document.
type Shape int

const (
	ShapeUnknown Shape = iota

	// {"locations": [...]} from Takeout (Records.json)
	ShapePointList

	// [...] of activity, visit, and path records, exported on-device from iOS
	ShapeOnDevice

	// {"semanticSegments": [...]} exported on-device from Android, since about 2025
	ShapeSemanticSegments

	// {"timelineObjects": [...]} from Takeout's monthly Semantic Location History files
	ShapeTimelineObjects
)

func (s Shape) String() string {
	switch s {
	case ShapePointList:
		return "point_list"
	case ShapeOnDevice:
		return "on_device"
	case ShapeSemanticSegments:
		return "semantic_segments"
	case ShapeTimelineObjects:
		return "timeline_objects"
	}
	return "unknown"
}

// DetectShape determines the shape of doc by probing its top-level
// structure, without decoding the whole document. It returns a
// *timeline.FormatError if the shape is not recognized.
func DetectShape(doc []byte) (Shape, error) {
	if !gjson.ValidBytes(doc) {
		return ShapeUnknown, &timeline.FormatError{Reason: "not valid JSON"}
	}

	root := gjson.ParseBytes(doc)
	switch {
	case root.IsArray():
		return ShapeOnDevice, nil
	case !root.IsObject():
		return ShapeUnknown, &timeline.FormatError{Reason: "top level is not an object or array"}
	case root.Get("locations").IsArray():
		return ShapePointList, nil
	case root.Get("semanticSegments").IsArray():
		return ShapeSemanticSegments, nil
	case root.Get("timelineObjects").IsArray():
		return ShapeTimelineObjects, nil
	}

	return ShapeUnknown, &timeline.FormatError{Reason: "no locations, semanticSegments, or timelineObjects field"}
}

// LooksLikeLocationHistory returns true if filename could be a location
// history document. It avoids opening every JSON file in an archive
// (can be slow), and it skips the files in a Takeout archive which are
// known not to contain location data.
func LooksLikeLocationHistory(filename string) bool {
	if !strings.EqualFold(path.Ext(filename), ".json") {
		return false
	}
	switch path.Base(filename) {
	case "Settings.json", "Timeline Edits.json", "Encrypted Backups.json":
		return false
	}
	return true
}
