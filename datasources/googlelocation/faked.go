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
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/timelinize/trackexport/timeline"
)

// FakeDocument renders trips as an on-device (iOS-style) location
// history document, with timestamps in the zone loc. Activities are
// written with both endpoints and a timelinePath of minute offsets.
func FakeDocument(trips []timeline.FakeTrip, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.Local
	}

	type fakeVertex struct {
		Point  string `json:"point"`
		Offset string `json:"durationMinutesOffsetFromStartTime"`
	}
	type fakeCandidate struct {
		Type          string `json:"type,omitempty"`
		Probability   string `json:"probability"`
		PlaceLocation string `json:"placeLocation,omitempty"`
	}
	type fakeActivity struct {
		Start        string        `json:"start"`
		End          string        `json:"end"`
		TopCandidate fakeCandidate `json:"topCandidate"`
		TimelinePath []fakeVertex  `json:"timelinePath"`
	}
	type fakeVisit struct {
		TopCandidate fakeCandidate `json:"topCandidate"`
	}
	type fakeRecord struct {
		StartTime string        `json:"startTime"`
		EndTime   string        `json:"endTime"`
		Activity  *fakeActivity `json:"activity,omitempty"`
		Visit     *fakeVisit    `json:"visit,omitempty"`
	}

	const layout = "2006-01-02T15:04:05.000-07:00"

	records := make([]fakeRecord, 0, len(trips))
	for _, trip := range trips {
		if len(trip.Path) == 0 {
			continue
		}
		rec := fakeRecord{
			StartTime: trip.Start.In(loc).Format(layout),
			EndTime:   trip.End.In(loc).Format(layout),
		}
		if trip.Visit {
			rec.Visit = &fakeVisit{
				TopCandidate: fakeCandidate{
					Probability:   "0.900000",
					PlaceLocation: geoURI(trip.Path[0]),
				},
			}
		} else {
			rec.Activity = &fakeActivity{
				Start: geoURI(trip.Path[0]),
				End:   geoURI(trip.Path[len(trip.Path)-1]),
				TopCandidate: fakeCandidate{
					Type:        trip.Activity,
					Probability: "0.800000",
				},
			}
			for i, c := range trip.Path {
				var offset int
				if i < len(trip.Offsets) {
					offset = trip.Offsets[i]
				}
				rec.Activity.TimelinePath = append(rec.Activity.TimelinePath, fakeVertex{
					Point:  geoURI(c),
					Offset: strconv.Itoa(offset),
				})
			}
		}
		records = append(records, rec)
	}

	return json.MarshalIndent(records, "", "\t")
}

func geoURI(c timeline.Coord) string {
	return fmt.Sprintf("geo:%.6f,%.6f", c.Lat, c.Lon)
}
