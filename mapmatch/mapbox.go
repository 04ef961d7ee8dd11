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

package mapmatch

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/timelinize/trackexport/timeline"
)

// Defaults for the Mapbox Map Matching API.
const (
	MapboxBaseURL = "https://api.mapbox.com"
	MapboxProfile = "mapbox/driving"

	// MapboxMaxCoordinates is the most coordinates the API accepts in
	// one request.
	MapboxMaxCoordinates = 100

	// mapboxRadius is the search radius, in meters, sent for every
	// coordinate.
	mapboxRadius = 25
)

// errTooManyCoordinates is returned without making a request when the
// input is larger than the provider accepts.
var errTooManyCoordinates = errors.New("too many coordinates")

// Mapbox is a client for the Mapbox Map Matching API, the primary
// provider.
type Mapbox struct {
	Token   string
	Profile string // default MapboxProfile
	BaseURL string // default MapboxBaseURL
	Client  *http.Client
}

// Configured reports whether the client has an access token.
func (m *Mapbox) Configured() bool {
	return m != nil && m.Token != ""
}

// Match snaps points to the road network in one request. Point
// timestamps are sent so the provider can tell stops from travel.
func (m *Mapbox) Match(ctx context.Context, points []timeline.Point) ([]timeline.Coord, error) {
	if len(points) > MapboxMaxCoordinates {
		return nil, &timeline.ProviderError{
			Provider: "mapbox",
			Op:       "match",
			Err:      fmt.Errorf("%w: %d > %d", errTooManyCoordinates, len(points), MapboxMaxCoordinates),
		}
	}
	if len(points) < 2 {
		return nil, &timeline.ProviderError{Provider: "mapbox", Op: "match", Err: timeline.ErrEmptyResult}
	}

	timestamps := make([]string, len(points))
	for i, p := range points {
		timestamps[i] = strconv.FormatInt(p.Timestamp/1000, 10)
	}

	qs := url.Values{
		"access_token": {m.Token},
		"timestamps":   {strings.Join(timestamps, ";")},
		"geometries":   {"geojson"},
		"overview":     {"full"},
		"tidy":         {"true"},
		"radiuses":     {repeatJoin(strconv.Itoa(mapboxRadius), len(points))},
	}
	u := fmt.Sprintf("%s/matching/v5/%s/%s?%s",
		strings.TrimSuffix(cmp.Or(m.BaseURL, MapboxBaseURL), "/"),
		cmp.Or(m.Profile, MapboxProfile),
		coordPath(timeline.Coords(points)),
		qs.Encode())

	var resp matchResponse
	if err := getJSON(ctx, m.Client, "mapbox", "match", u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Matchings) == 0 {
		return nil, &timeline.ProviderError{Provider: "mapbox", Op: "match", StatusCode: http.StatusOK, Err: timeline.ErrEmptyResult}
	}
	coords, err := resp.Matchings[0].coords()
	if err != nil {
		return nil, &timeline.ProviderError{Provider: "mapbox", Op: "match", StatusCode: http.StatusOK, Err: err}
	}
	if len(coords) == 0 {
		return nil, &timeline.ProviderError{Provider: "mapbox", Op: "match", StatusCode: http.StatusOK, Err: timeline.ErrEmptyResult}
	}
	return coords, nil
}
