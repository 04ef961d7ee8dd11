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
	"fmt"
	"slices"
	"time"
)

// Period is a window of time selected for counting, export, or preview.
// Both ends are inclusive.
type Period struct {
	ID    int       `json:"id"` // 1-based
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (p Period) String() string {
	return fmt.Sprintf("#%d [%s, %s]", p.ID, p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// Contains returns true if the unix-millisecond timestamp ms is
// within the period, inclusive of both ends.
func (p Period) Contains(ms int64) bool {
	return p.Start.UnixMilli() <= ms && ms <= p.End.UnixMilli()
}

// Select returns the points within period, in their input order.
func Select(points []Point, period Period) []Point {
	var out []Point
	for _, pt := range points {
		if period.Contains(pt.Timestamp) {
			out = append(out, pt)
		}
	}
	return out
}

// Bounds returns the earliest and latest timestamps of points. It
// returns false if there are no points.
func Bounds(points []Point) (minTime, maxTime time.Time, ok bool) {
	if len(points) == 0 {
		return
	}
	lo, hi := points[0].Timestamp, points[0].Timestamp
	for _, pt := range points[1:] {
		lo = min(lo, pt.Timestamp)
		hi = max(hi, pt.Timestamp)
	}
	return time.UnixMilli(lo).UTC(), time.UnixMilli(hi).UTC(), true
}

// PeriodField names one end of a period being edited.
type PeriodField int

const (
	PeriodStart PeriodField = iota
	PeriodEnd
)

var errNoPeriod = errors.New("no such period")

// PeriodSet is an ordered list of periods within the bounds of a
// dataset. IDs are always 1..n in order.
type PeriodSet struct {
	Min, Max time.Time
	periods  []Period
}

// NewPeriodSet returns an empty set bounded by the timestamps of points.
func NewPeriodSet(points []Point) *PeriodSet {
	minTime, maxTime, _ := Bounds(points)
	return &PeriodSet{Min: minTime, Max: maxTime}
}

// Periods returns a copy of the periods in the set.
func (ps *PeriodSet) Periods() []Period { return slices.Clone(ps.periods) }

// Len returns the number of periods.
func (ps *PeriodSet) Len() int { return len(ps.periods) }

// Get returns the period with the given ID.
func (ps *PeriodSet) Get(id int) (Period, bool) {
	if id < 1 || id > len(ps.periods) {
		return Period{}, false
	}
	return ps.periods[id-1], true
}

// Add appends a period clamped to the dataset bounds. If start is after
// end, they are swapped.
func (ps *PeriodSet) Add(start, end time.Time) Period {
	if start.After(end) {
		start, end = end, start
	}
	p := Period{
		ID:    len(ps.periods) + 1,
		Start: ps.clamp(start),
		End:   ps.clamp(end),
	}
	ps.periods = append(ps.periods, p)
	return p
}

// FullRange appends a period covering the whole dataset.
func (ps *PeriodSet) FullRange() Period {
	return ps.Add(ps.Min, ps.Max)
}

// Update changes one end of the period with the given ID. The new value
// is clamped to the dataset bounds and then against the other end of the
// period, so that Start never passes End.
func (ps *PeriodSet) Update(id int, field PeriodField, t time.Time) (Period, error) {
	if id < 1 || id > len(ps.periods) {
		return Period{}, fmt.Errorf("updating period %d: %w", id, errNoPeriod)
	}
	p := &ps.periods[id-1]
	t = ps.clamp(t)
	switch field {
	case PeriodStart:
		if t.After(p.End) {
			t = p.End
		}
		p.Start = t
	case PeriodEnd:
		if t.Before(p.Start) {
			t = p.Start
		}
		p.End = t
	default:
		return Period{}, fmt.Errorf("unknown period field %d", field)
	}
	return *p, nil
}

// Remove deletes the period with the given ID and renumbers the
// periods after it.
func (ps *PeriodSet) Remove(id int) error {
	if id < 1 || id > len(ps.periods) {
		return fmt.Errorf("removing period %d: %w", id, errNoPeriod)
	}
	ps.periods = slices.Delete(ps.periods, id-1, id)
	for i := range ps.periods {
		ps.periods[i].ID = i + 1
	}
	return nil
}

func (ps *PeriodSet) clamp(t time.Time) time.Time {
	if !ps.Min.IsZero() && t.Before(ps.Min) {
		return ps.Min
	}
	if !ps.Max.IsZero() && t.After(ps.Max) {
		return ps.Max
	}
	return t
}
