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
	"errors"
	"testing"
	"time"
)

func TestSelect(t *testing.T) {
	points := []Point{pt(1, 1, 20, ""), pt(2, 2, 0, ""), pt(3, 3, 10, ""), pt(4, 4, 11, ""), pt(5, 5, 9, "")}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	for i, tc := range []struct {
		start, end int // minutes after base
		expect     []int64
	}{
		{start: 0, end: 20, expect: []int64{1, 2, 3, 4, 5}},
		{start: 9, end: 10, expect: []int64{3, 5}},
		{start: 10, end: 10, expect: []int64{3}},
		{start: 21, end: 30, expect: nil},
	} {
		period := Period{
			ID:    1,
			Start: base.Add(time.Duration(tc.start) * time.Minute),
			End:   base.Add(time.Duration(tc.end) * time.Minute),
		}
		actual := Select(points, period)
		if len(actual) != len(tc.expect) {
			t.Errorf("Test %d: expected %d points, got %d", i, len(tc.expect), len(actual))
			continue
		}
		for j, p := range actual {
			if p.LatitudeE7 != tc.expect[j] {
				t.Errorf("Test %d: expected point %d to be %d, got %d", i, j, tc.expect[j], p.LatitudeE7)
			}
		}
	}
}

func TestPeriodSet(t *testing.T) {
	points := []Point{pt(1, 1, 0, ""), pt(2, 2, 60, ""), pt(3, 3, 120, "")}
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	at := func(minute int) time.Time { return base.Add(time.Duration(minute) * time.Minute) }

	ps := NewPeriodSet(points)
	if !ps.Min.Equal(at(0)) || !ps.Max.Equal(at(120)) {
		t.Fatalf("wrong bounds: %s - %s", ps.Min, ps.Max)
	}

	full := ps.FullRange()
	if full.ID != 1 || !full.Start.Equal(at(0)) || !full.End.Equal(at(120)) {
		t.Errorf("unexpected full range period: %s", full)
	}

	// clamped to dataset bounds, and swapped
	p2 := ps.Add(at(500), at(-30))
	if p2.ID != 2 || !p2.Start.Equal(at(0)) || !p2.End.Equal(at(120)) {
		t.Errorf("unexpected clamped period: %s", p2)
	}

	p3 := ps.Add(at(30), at(90))

	// start can't move past end
	updated, err := ps.Update(p3.ID, PeriodStart, at(100))
	if err != nil {
		t.Fatal(err)
	}
	if !updated.Start.Equal(at(90)) {
		t.Errorf("expected start to be clamped to end, got %s", updated)
	}

	// end can't move before start, or past the dataset
	updated, err = ps.Update(p3.ID, PeriodEnd, at(1000))
	if err != nil {
		t.Fatal(err)
	}
	if !updated.End.Equal(at(120)) {
		t.Errorf("expected end to be clamped to dataset, got %s", updated)
	}
	updated, err = ps.Update(p3.ID, PeriodEnd, at(10))
	if err != nil {
		t.Fatal(err)
	}
	if !updated.End.Equal(at(90)) {
		t.Errorf("expected end to be clamped to start, got %s", updated)
	}

	if err := ps.Remove(2); err != nil {
		t.Fatal(err)
	}
	periods := ps.Periods()
	if len(periods) != 2 {
		t.Fatalf("expected 2 periods, got %d", len(periods))
	}
	for i, p := range periods {
		if p.ID != i+1 {
			t.Errorf("expected period %d to have ID %d, got %d", i, i+1, p.ID)
		}
	}
	if !periods[1].Start.Equal(at(90)) {
		t.Errorf("expected former period 3 to be renumbered to 2, got %s", periods[1])
	}

	if err := ps.Remove(3); !errors.Is(err, errNoPeriod) {
		t.Errorf("expected errNoPeriod, got %v", err)
	}
	if _, err := ps.Update(0, PeriodStart, at(0)); !errors.Is(err, errNoPeriod) {
		t.Errorf("expected errNoPeriod, got %v", err)
	}
}
