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

// Package mapmatch snaps location tracks to the road network. A
// Resolver tries the primary provider (Mapbox) while its monthly quota
// allows, then the secondary provider (OSRM), and otherwise leaves the
// raw points unchanged.
package mapmatch

import (
	"context"
	"errors"

	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

// activityPathShare is the fraction of points derived from activity
// paths at or above which a segment is not map-matched. Those paths
// are already snapped.
const activityPathShare = 0.5

// Resolver resolves the geometry of a segment through a chain of
// tiers: primary provider, secondary provider, raw points. It is safe
// for concurrent use; the quota is its only shared state.
type Resolver struct {
	Primary   *Mapbox // optional
	Quota     *Quota  // required if Primary is configured
	Secondary *OSRM   // optional
	Logger    *zap.Logger
}

func (r *Resolver) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Resolve returns the map-matched coordinates of points. It returns nil
// and no error if the raw points should be used unchanged. The only
// error is the context's, if it is done; partial results are then
// discarded.
func (r *Resolver) Resolve(ctx context.Context, points []timeline.Point) ([]timeline.Coord, error) {
	if len(points) == 0 {
		return nil, nil
	}
	if mostlyActivityPaths(points) {
		r.log().Debug("using activity paths as-is", zap.Int("points", len(points)))
		return timeline.Coords(points), nil
	}

	tiers := []struct {
		name    string
		attempt func(context.Context, []timeline.Point) []timeline.Coord
	}{
		{"mapbox", r.primaryAttempt},
		{"osrm", r.secondaryAttempt},
	}
	for _, tier := range tiers {
		coords := tier.attempt(ctx, points)
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if coords != nil {
			r.log().Debug("resolved segment geometry",
				zap.String("provider", tier.name),
				zap.Int("points", len(points)),
				zap.Int("coords", len(coords)))
			return coords, nil
		}
	}

	r.log().Debug("no provider could match segment; using raw points", zap.Int("points", len(points)))
	return nil, nil
}

// ResolveOrRaw is like Resolve, but substitutes the raw coordinates
// when no provider matched. The boolean reports whether the result
// came from a provider (or from activity paths).
func (r *Resolver) ResolveOrRaw(ctx context.Context, points []timeline.Point) ([]timeline.Coord, bool, error) {
	coords, err := r.Resolve(ctx, points)
	if err != nil {
		return nil, false, err
	}
	if coords == nil {
		return timeline.Coords(points), false, nil
	}
	return coords, true, nil
}

func mostlyActivityPaths(points []timeline.Point) bool {
	var n int
	for _, p := range points {
		if p.Source == timeline.SourceActivityPath {
			n++
		}
	}
	return float64(n) >= activityPathShare*float64(len(points))
}

// primaryAttempt returns nil if the primary provider is not configured,
// not eligible, or fails. Only a successful call is counted.
func (r *Resolver) primaryAttempt(ctx context.Context, points []timeline.Point) []timeline.Coord {
	if !r.Primary.Configured() || r.Quota == nil {
		return nil
	}
	if len(points) > MapboxMaxCoordinates {
		r.log().Debug("segment too large for primary provider",
			zap.Int("points", len(points)),
			zap.Int("max", MapboxMaxCoordinates))
		return nil
	}

	res, ok := r.Quota.Reserve(ctx)
	if !ok {
		return nil
	}
	coords, err := r.Primary.Match(ctx, points)
	if err != nil {
		res.Release()
		r.log().Warn("primary provider failed; falling back", zap.Error(err))
		return nil
	}
	if err := res.Commit(ctx); err != nil {
		// the call succeeded and was counted in memory
		r.log().Error("persisting provider usage", zap.Error(err))
	}
	return coords
}

// secondaryAttempt matches the points in chunks. A chunk that cannot be
// matched is routed between its endpoints, and a chunk that can be
// neither keeps its raw coordinates. It returns nil if fewer than two
// coordinates remain, or if no chunk was matched or routed.
func (r *Resolver) secondaryAttempt(ctx context.Context, points []timeline.Point) []timeline.Coord {
	if r.Secondary == nil {
		return nil
	}

	raw := timeline.Coords(points)
	size := r.Secondary.chunkSize()

	var (
		out      []timeline.Coord
		resolved int
	)
	for start := 0; start < len(raw); start += size {
		chunk := raw[start:min(start+size, len(raw))]
		if len(chunk) < 2 {
			out = append(out, chunk...)
			continue
		}

		coords, err := r.resolveChunk(ctx, chunk)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			r.log().Debug("using raw coordinates for chunk",
				zap.Int("offset", start),
				zap.Int("size", len(chunk)),
				zap.Error(err))
			out = append(out, chunk...)
			continue
		}
		out = append(out, coords...)
		resolved++
	}

	out = timeline.SuppressNearDuplicateCoords(out)
	if len(out) < 2 || resolved == 0 {
		return nil
	}
	return out
}

// resolveChunk matches one chunk, falling back to a route between its
// endpoints only when the match came back empty.
func (r *Resolver) resolveChunk(ctx context.Context, chunk []timeline.Coord) ([]timeline.Coord, error) {
	coords, err := r.Secondary.Match(ctx, chunk)
	if err == nil {
		return coords, nil
	}
	if !errors.Is(err, timeline.ErrEmptyResult) {
		return nil, err
	}
	return r.Secondary.Route(ctx, chunk[0], chunk[len(chunk)-1])
}
