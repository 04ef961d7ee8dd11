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
)

// FormatError is returned when an input document has none of the
// recognized shapes. It is fatal to the whole run.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "unrecognized location history format: " + e.Reason
}

// ErrPointRejected is used for an individual record whose coordinates or
// timestamp fail validation. Such records are dropped, never fatal.
var ErrPointRejected = errors.New("point rejected")

// ErrQuotaExceeded indicates the primary map-matching provider is not
// eligible because its monthly usage reached the fallback threshold.
var ErrQuotaExceeded = errors.New("provider quota exceeded")

// ProviderError describes a failed request to a map-matching provider.
// It causes the resolver to fall back to the next tier.
type ProviderError struct {
	Provider   string // e.g. "mapbox", "osrm"
	Op         string // e.g. "match", "route"
	StatusCode int    // HTTP status, if a response was received
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s: HTTP %d: %v", e.Provider, e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ErrEmptyResult is wrapped by a ProviderError when a provider
// answered successfully but returned no usable geometry.
var ErrEmptyResult = errors.New("empty result")
