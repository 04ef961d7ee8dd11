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
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/timelinize/trackexport/timeline"
)

// maxResponseSize bounds how much of a provider response is read.
const maxResponseSize = 32 << 20

// noResultCodes are response codes meaning the request was fine but
// nothing could be matched or routed. Both providers send them with a
// 4xx status.
var noResultCodes = map[string]bool{
	"NoMatch":   true,
	"NoRoute":   true,
	"NoSegment": true,
}

// matchResponse is the response body shared by both providers' match
// and route endpoints.
type matchResponse struct {
	Code      string          `json:"code"`
	Message   string          `json:"message,omitempty"`
	Matchings []matchGeometry `json:"matchings,omitempty"`
	Routes    []matchGeometry `json:"routes,omitempty"`
}

type matchGeometry struct {
	Confidence float64         `json:"confidence,omitempty"`
	Distance   float64         `json:"distance,omitempty"`
	Geometry   json.RawMessage `json:"geometry"`
}

// coords decodes the geometry, which must be a GeoJSON LineString.
func (g matchGeometry) coords() ([]timeline.Coord, error) {
	if len(g.Geometry) == 0 {
		return nil, nil
	}
	geom, err := geojson.UnmarshalGeometry(g.Geometry)
	if err != nil {
		return nil, fmt.Errorf("decoding geometry: %w", err)
	}
	ls, ok := geom.Coordinates.(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("expected LineString geometry, got %s", geom.Type)
	}
	coords := make([]timeline.Coord, len(ls))
	for i, p := range ls {
		coords[i] = timeline.Coord{Lat: p.Lat(), Lon: p.Lon()}
	}
	return coords, nil
}

// getJSON performs a GET request and decodes the JSON response body
// into v. Failures are returned as *timeline.ProviderError.
func getJSON(ctx context.Context, client *http.Client, provider, op, u string, v any) error {
	perr := func(status int, err error) error {
		return &timeline.ProviderError{Provider: provider, Op: op, StatusCode: status, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return perr(0, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "trackexport")

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return perr(0, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return perr(resp.StatusCode, fmt.Errorf("reading response body: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		// provider error bodies carry a JSON message
		var msg matchResponse
		if json.Unmarshal(body, &msg) == nil && msg.Code != "" {
			if noResultCodes[msg.Code] {
				return perr(resp.StatusCode, fmt.Errorf("%w: %s: %s", timeline.ErrEmptyResult, msg.Code, msg.Message))
			}
			return perr(resp.StatusCode, fmt.Errorf("%s: %s", msg.Code, msg.Message))
		}
		return perr(resp.StatusCode, errors.New(http.StatusText(resp.StatusCode)))
	}
	if err := json.Unmarshal(body, v); err != nil {
		return perr(resp.StatusCode, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

// coordPath renders coordinates as "lon,lat;lon,lat;..." with six
// decimal places.
func coordPath(coords []timeline.Coord) string {
	var sb strings.Builder
	for i, c := range coords {
		if i > 0 {
			sb.WriteByte(';')
		}
		sb.WriteString(strconv.FormatFloat(c.Lon, 'f', 6, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(c.Lat, 'f', 6, 64))
	}
	return sb.String()
}

// repeatJoin returns s repeated n times, separated by ';'.
func repeatJoin(s string, n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(s+";", n-1) + s
}
