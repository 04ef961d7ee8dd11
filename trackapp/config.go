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

package trackapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/timelinize/trackexport/export"
	"github.com/timelinize/trackexport/mapmatch"
	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
)

// Environment variables that override the config file.
const (
	EnvMapboxToken = "TRACKEXPORT_MAPBOX_TOKEN"
	EnvQuotaStore  = "TRACKEXPORT_QUOTA_STORE"
)

// Config describes how tracks are loaded, matched, and exported.
type Config struct {
	// Mapbox access token. If empty, the primary map-matching
	// provider is not used.
	MapboxToken   string `json:"mapbox_token,omitempty"`
	MapboxProfile string `json:"mapbox_profile,omitempty"`
	MapboxBaseURL string `json:"mapbox_base_url,omitempty"`

	// Number of Mapbox requests included per month, and the fraction
	// of it that may be used before falling back to OSRM.
	MonthlyLimit      int     `json:"monthly_limit,omitempty"`
	FallbackThreshold float64 `json:"fallback_threshold,omitempty"`

	// Where Mapbox usage is persisted; see mapmatch.OpenQuotaStore.
	// Default: a JSON file next to the config file.
	QuotaStore string `json:"quota_store,omitempty"`

	OSRMBaseURL   string `json:"osrm_base_url,omitempty"`
	OSRMProfile   string `json:"osrm_profile,omitempty"`
	OSRMChunkSize int    `json:"osrm_chunk_size,omitempty"`
	DisableOSRM   bool   `json:"disable_osrm,omitempty"`

	// Timeout of each request to a map-matching provider, e.g. "30s".
	RequestTimeout string             `json:"request_timeout,omitempty"`
	RateLimit      timeline.RateLimit `json:"rate_limit,omitempty"`

	// IANA name of the zone in which activity timestamps without an
	// offset are read, and exported times are shown. Default: local
	// zone for reading, and the zone at the first point for export.
	TimeZone string `json:"time_zone,omitempty"`

	// Number of segments resolved concurrently by Preview.
	PreviewConcurrency int `json:"preview_concurrency,omitempty"`

	Style export.StyleOptions `json:"style,omitempty"`

	log *zap.Logger
}

// Defaults
const (
	DefaultMonthlyLimit       = 100000
	DefaultFallbackThreshold  = 0.9
	DefaultRequestTimeout     = 30 * time.Second
	DefaultPreviewConcurrency = 4
)

// LoadConfig reads the config file at path, applies environment
// overrides, and fills in defaults. If path is empty, the default
// config file is used, and it is not an error for it to be missing.
func LoadConfig(path string) (*Config, error) {
	var cfg Config

	optional := path == ""
	if optional {
		path = DefaultConfigFilePath()
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && optional:
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("decoding config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	cfg.log.Debug("loaded config", zap.String("path", path), zap.Bool("mapbox", cfg.MapboxToken != ""))
	return &cfg, nil
}

func (cfg *Config) applyEnv() {
	if v := os.Getenv(EnvMapboxToken); v != "" {
		cfg.MapboxToken = v
	}
	if v := os.Getenv(EnvQuotaStore); v != "" {
		cfg.QuotaStore = v
	}
}

func (cfg *Config) fillDefaults() error {
	if cfg.log == nil {
		cfg.log = timeline.Log.Named("config")
	}
	if cfg.MonthlyLimit == 0 {
		cfg.MonthlyLimit = DefaultMonthlyLimit
	}
	if cfg.FallbackThreshold == 0 {
		cfg.FallbackThreshold = DefaultFallbackThreshold
	}
	if cfg.FallbackThreshold < 0 || cfg.FallbackThreshold > 1 {
		return fmt.Errorf("fallback threshold must be in [0,1]: %v", cfg.FallbackThreshold)
	}
	if cfg.OSRMChunkSize < 0 || cfg.OSRMChunkSize > mapmatch.OSRMMaxCoordinates {
		return fmt.Errorf("OSRM chunk size must be at most %d: %d", mapmatch.OSRMMaxCoordinates, cfg.OSRMChunkSize)
	}
	if cfg.PreviewConcurrency <= 0 {
		cfg.PreviewConcurrency = DefaultPreviewConcurrency
	}
	if _, err := cfg.requestTimeout(); err != nil {
		return err
	}
	if _, err := cfg.timeZone(); err != nil {
		return err
	}
	return nil
}

func (cfg *Config) requestTimeout() (time.Duration, error) {
	if cfg.RequestTimeout == "" {
		return DefaultRequestTimeout, nil
	}
	d, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		// a bare number is seconds
		secs, intErr := strconv.Atoi(cfg.RequestTimeout)
		if intErr != nil {
			return 0, fmt.Errorf("invalid request timeout %q: %w", cfg.RequestTimeout, err)
		}
		d = time.Duration(secs) * time.Second
	}
	if d <= 0 {
		return 0, fmt.Errorf("request timeout must be positive: %s", cfg.RequestTimeout)
	}
	return d, nil
}

// timeZone returns the configured zone, or nil if none is configured.
func (cfg *Config) timeZone() (*time.Location, error) {
	if cfg.TimeZone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(cfg.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}
	return loc, nil
}

// Save writes the config as indented JSON to path.
func (cfg *Config) Save(path string) error {
	err := os.MkdirAll(filepath.Dir(path), 0755)
	if err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	cfgFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer cfgFile.Close()
	enc := json.NewEncoder(cfgFile)
	enc.SetIndent("", "\t")
	if err = enc.Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if cfg.log != nil {
		cfg.log.Info("saved config file", zap.String("path", path))
	}
	return nil
}

// Redacted returns a copy of the config that is safe to print.
func (cfg *Config) Redacted() Config {
	out := *cfg
	if n := len(out.MapboxToken); n > 8 {
		out.MapboxToken = out.MapboxToken[:4] + "…" + out.MapboxToken[n-4:]
	} else if n > 0 {
		out.MapboxToken = "…"
	}
	return out
}

// DefaultConfigFilePath returns the file path where
// configuration is persisted.
func DefaultConfigFilePath() string {
	return filepath.Join(configDir(), "config.json")
}

// DefaultQuotaFilePath returns the file path where Mapbox usage is
// persisted if no quota store is configured.
func DefaultQuotaFilePath() string {
	return filepath.Join(configDir(), "provider_usage.json")
}

func configDir() string {
	cfgDir, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(cfgDir, "trackexport")
	}
	cfgDir, err = os.UserHomeDir()
	if err == nil {
		return filepath.Join(cfgDir, ".trackexport")
	}
	return ".trackexport"
}
