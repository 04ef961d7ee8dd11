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
	"net/http"
	"sync"
	"time"
)

// RateLimit describes a rate limit.
type RateLimit struct {
	RequestsPerHour int `json:"requests_per_hour,omitempty"`
	BurstSize       int `json:"burst_size,omitempty"`
}

// RateLimitedRoundTripper is an http.RoundTripper that waits for a
// token before each request. Tokens are added at a fixed interval up
// to the burst size. Call Close to stop refilling tokens.
type RateLimitedRoundTripper struct {
	http.RoundTripper
	token     chan struct{}
	ticker    *time.Ticker
	done      chan struct{}
	closeOnce sync.Once
}

// NewRateLimitedRoundTripper adds rate limiting to rt based on the rate
// limiting policy. If rt is nil, http.DefaultTransport is used. If the
// policy has no rate, requests are not limited.
func NewRateLimitedRoundTripper(rt http.RoundTripper, rl RateLimit) *RateLimitedRoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	rrt := &RateLimitedRoundTripper{RoundTripper: rt, done: make(chan struct{})}
	if rl.RequestsPerHour <= 0 {
		return rrt
	}

	secondsBetweenReqs := 60.0 / (float64(rl.RequestsPerHour) / 60.0)
	millisBetweenReqs := secondsBetweenReqs * 1000.0
	reqInterval := time.Duration(millisBetweenReqs) * time.Millisecond
	if reqInterval < minInterval {
		reqInterval = minInterval
	}

	rrt.ticker = time.NewTicker(reqInterval)
	rrt.token = make(chan struct{}, max(rl.BurstSize, 1))

	for i := 0; i < cap(rrt.token); i++ {
		rrt.token <- struct{}{}
	}
	go func() {
		for {
			select {
			case <-rrt.done:
				return
			case <-rrt.ticker.C:
				select {
				case rrt.token <- struct{}{}:
				default:
				}
			}
		}
	}()

	return rrt
}

// RoundTrip waits for a token, or for the request's context to be done,
// then performs the request.
func (rt *RateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	if rt.token != nil {
		select {
		case <-rt.token:
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}
	}
	return rt.RoundTripper.RoundTrip(req)
}

// Close stops the token refill. It is idempotent.
func (rt *RateLimitedRoundTripper) Close() {
	rt.closeOnce.Do(func() {
		if rt.ticker != nil {
			rt.ticker.Stop()
		}
		close(rt.done)
	})
}

const minInterval = 100 * time.Millisecond
