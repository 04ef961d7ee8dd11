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

// Package testhelpers has fixtures shared by tests of several packages.
package testhelpers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/timelinize/trackexport/timeline"
)

// PointListDoc returns a point-list (Records.json) document with n
// points one minute apart, starting at start and moving north from
// latE7 in steps of 0.001°.
func PointListDoc(start time.Time, n int, latE7 int64) []byte {
	type location struct {
		LatitudeE7  int64  `json:"latitudeE7"`
		LongitudeE7 int64  `json:"longitudeE7"`
		Timestamp   string `json:"timestamp"`
	}
	var doc struct {
		Locations []location `json:"locations"`
	}
	for i := range n {
		doc.Locations = append(doc.Locations, location{
			LatitudeE7:  latE7 + int64(i)*10000,
			LongitudeE7: 134000000,
			Timestamp:   start.Add(time.Duration(i) * time.Minute).UTC().Format(time.RFC3339),
		})
	}
	data, err := json.Marshal(doc)
	if err != nil {
		panic(err)
	}
	return data
}

// WriteFile writes data to path, creating parent folders.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatal(err)
	}
}

// AssertSorted fails the test if points are not in ascending time order.
func AssertSorted(t testing.TB, points []timeline.Point) {
	t.Helper()
	for i := 1; i < len(points); i++ {
		if points[i].Timestamp < points[i-1].Timestamp {
			t.Errorf("points out of order at index %d: %d < %d", i, points[i].Timestamp, points[i-1].Timestamp)
		}
	}
}
