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
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/timelinize/trackexport/timeline"
)

// Defaults for the OSRM HTTP API.
const (
	OSRMBaseURL = "https://router.project-osrm.org"
	OSRMProfile = "driving"

	// OSRMMaxCoordinates is the largest chunk sent in one request.
	OSRMMaxCoordinates = 100
)

// OSRM is a client for the match and route services of an OSRM server,
// the secondary provider.
type OSRM struct {
	BaseURL   string // default OSRMBaseURL
	Profile   string // default OSRMProfile
	ChunkSize int    // coordinates per match request; default and maximum OSRMMaxCoordinates
	Client    *http.Client
}

func (o *OSRM) chunkSize() int {
	if o.ChunkSize < 2 || o.ChunkSize > OSRMMaxCoordinates {
		return OSRMMaxCoordinates
	}
	return o.ChunkSize
}

func (o *OSRM) endpoint(service string, coords []timeline.Coord, qs url.Values) string {
	return fmt.Sprintf("%s/%s/v1/%s/%s?%s",
		strings.TrimSuffix(cmp.Or(o.BaseURL, OSRMBaseURL), "/"),
		service,
		cmp.Or(o.Profile, OSRMProfile),
		coordPath(coords),
		qs.Encode())
}

// Match snaps coords to the road network. OSRM may split the trace into
// several matchings; their geometries are concatenated in order.
func (o *OSRM) Match(ctx context.Context, coords []timeline.Coord) ([]timeline.Coord, error) {
	u := o.endpoint("match", coords, url.Values{
		"geometries":  {"geojson"},
		"overview":    {"full"},
		"annotations": {"nodes"},
	})

	var resp matchResponse
	if err := getJSON(ctx, o.Client, "osrm", "match", u, &resp); err != nil {
		return nil, err
	}
	var out []timeline.Coord
	for _, m := range resp.Matchings {
		c, err := m.coords()
		if err != nil {
			return nil, &timeline.ProviderError{Provider: "osrm", Op: "match", StatusCode: http.StatusOK, Err: err}
		}
		out = append(out, c...)
	}
	if len(out) == 0 {
		return nil, &timeline.ProviderError{Provider: "osrm", Op: "match", StatusCode: http.StatusOK, Err: timeline.ErrEmptyResult}
	}
	return out, nil
}

// Route returns the road route between from and to.
func (o *OSRM) Route(ctx context.Context, from, to timeline.Coord) ([]timeline.Coord, error) {
	u := o.endpoint("route", []timeline.Coord{from, to}, url.Values{
		"geometries": {"geojson"},
		"overview":   {"full"},
	})

	var resp matchResponse
	if err := getJSON(ctx, o.Client, "osrm", "route", u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Routes) == 0 {
		return nil, &timeline.ProviderError{Provider: "osrm", Op: "route", StatusCode: http.StatusOK, Err: timeline.ErrEmptyResult}
	}
	coords, err := resp.Routes[0].coords()
	if err != nil {
		return nil, &timeline.ProviderError{Provider: "osrm", Op: "route", StatusCode: http.StatusOK, Err: err}
	}
	if len(coords) == 0 {
		return nil, &timeline.ProviderError{Provider: "osrm", Op: "route", StatusCode: http.StatusOK, Err: timeline.ErrEmptyResult}
	}
	return coords, nil
}
