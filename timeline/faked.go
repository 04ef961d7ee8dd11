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

package timeline

import (
	"math"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// FakeTrip is one generated stay or movement in a synthetic day.
type FakeTrip struct {
	Visit    bool   // if true, Path has exactly one coordinate
	Activity string // mode of transport; empty for visits
	Start    time.Time
	End      time.Time
	Path     []Coord
	Offsets  []int // minutes from Start for each coordinate in Path
}

// fake modes of transport and their speeds, in degrees per minute (roughly)
var fakeModes = []struct {
	name  string
	speed float64
}{
	{"walking", 0.00008},
	{"running", 0.00015},
	{"cycling", 0.0003},
	{"in passenger vehicle", 0.0008},
	{"in bus", 0.0005},
	{"in train", 0.0015},
	{"in subway", 0.0006},
}

// FakeTrips generates count alternating visits and movements, starting
// at start. The same seed always produces the same trips.
func FakeTrips(seed uint64, start time.Time, count int) []FakeTrip {
	faker := gofakeit.New(seed)

	pos := Coord{
		Lat: faker.Float64Range(-60, 60),
		Lon: faker.Float64Range(-170, 170),
	}
	ts := start.Truncate(time.Minute)

	trips := make([]FakeTrip, 0, count)
	for i := range count {
		if i%2 == 0 {
			dur := time.Duration(faker.Number(15, 180)) * time.Minute
			trips = append(trips, FakeTrip{
				Visit:   true,
				Start:   ts,
				End:     ts.Add(dur),
				Path:    []Coord{pos},
				Offsets: []int{0},
			})
			ts = ts.Add(dur)
			continue
		}

		mode := fakeModes[faker.Number(0, len(fakeModes)-1)]
		heading := faker.Float64Range(0, 2*math.Pi)
		vertices := faker.Number(2, 12)
		step := faker.Number(1, 6) // minutes between vertices

		trip := FakeTrip{Activity: mode.name, Start: ts}
		for v := range vertices {
			if v > 0 {
				heading += faker.Float64Range(-0.4, 0.4)
				dist := mode.speed * float64(step)
				pos = Coord{
					Lat: clampFloat(pos.Lat+dist*math.Cos(heading), -89, 89),
					Lon: clampFloat(pos.Lon+dist*math.Sin(heading), -179, 179),
				}
			}
			trip.Path = append(trip.Path, pos)
			trip.Offsets = append(trip.Offsets, v*step)
		}
		trip.End = ts.Add(time.Duration((vertices-1)*step) * time.Minute)
		trips = append(trips, trip)
		ts = trip.End.Add(time.Duration(faker.Number(0, 5)) * time.Minute)
	}

	return trips
}

// FakePoints generates n valid canonical points with random spacing in
// time and space, in no particular order. Some points repeat the
// location of the point before them.
func FakePoints(seed uint64, n int) []Point {
	faker := gofakeit.New(seed)
	modes := []string{"", "walking", "on_foot", "in bus", "driving", "flying", "unknown"}
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli()

	points := make([]Point, n)
	for i := range points {
		if i > 0 && faker.Number(0, 9) == 0 {
			points[i] = points[i-1]
			points[i].Timestamp += int64(faker.Number(1, 60_000))
			continue
		}
		points[i] = Point{
			LatitudeE7:   int64(faker.Number(-900_000_000, 900_000_000)),
			LongitudeE7:  int64(faker.Number(-1_800_000_000, 1_800_000_000)),
			Timestamp:    base + int64(faker.Number(0, 7*24*60*60*1000)),
			Source:       SourceTag(faker.Number(0, 2)),
			ActivityType: faker.RandomString(modes),
		}
	}
	return points
}

func clampFloat(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
