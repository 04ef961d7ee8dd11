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

// Package trackapp ties the pipeline together: it loads location
// history from files, directories, or archives, and counts, exports,
// or previews the tracks within periods of time.
package trackapp

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"slices"
	"time"

	"github.com/maruel/natural"
	"github.com/mholt/archives"
	"github.com/timelinize/trackexport/datasources/googlelocation"
	"github.com/timelinize/trackexport/export"
	"github.com/timelinize/trackexport/mapmatch"
	"github.com/timelinize/trackexport/timeline"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// App is the location track exporter. Its methods are safe for
// concurrent use.
type App struct {
	cfg       *Config
	log       *zap.Logger
	zone      *time.Location
	quota     *mapmatch.Quota // nil if Mapbox is not configured
	resolver  *mapmatch.Resolver
	transport *timeline.RateLimitedRoundTripper
}

// New returns an app configured by cfg. If a Mapbox token is
// configured, the quota store is opened and usage is loaded. The app
// must be closed when done.
func New(ctx context.Context, cfg *Config) (*App, error) {
	if cfg == nil {
		var err error
		if cfg, err = LoadConfig(""); err != nil {
			return nil, err
		}
	}
	if err := cfg.fillDefaults(); err != nil {
		return nil, err
	}
	timeout, err := cfg.requestTimeout()
	if err != nil {
		return nil, err
	}
	zone, err := cfg.timeZone()
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:       cfg,
		log:       timeline.Log.Named("app"),
		zone:      zone,
		transport: timeline.NewRateLimitedRoundTripper(nil, cfg.RateLimit),
	}
	httpClient := &http.Client{Timeout: timeout, Transport: app.transport}

	app.resolver = &mapmatch.Resolver{Logger: timeline.Log.Named("mapmatch")}

	if cfg.MapboxToken != "" {
		store, err := mapmatch.OpenQuotaStore(cfg.QuotaStore, DefaultQuotaFilePath())
		if err != nil {
			app.transport.Close()
			return nil, fmt.Errorf("opening quota store: %w", err)
		}
		app.quota = mapmatch.NewQuota(store, cfg.MapboxToken, cfg.MonthlyLimit, cfg.FallbackThreshold)
		if err := app.quota.Load(ctx); err != nil {
			app.Close()
			return nil, err
		}
		app.resolver.Primary = &mapmatch.Mapbox{
			Token:   cfg.MapboxToken,
			Profile: cfg.MapboxProfile,
			BaseURL: cfg.MapboxBaseURL,
			Client:  httpClient,
		}
		app.resolver.Quota = app.quota
	}
	if !cfg.DisableOSRM {
		app.resolver.Secondary = &mapmatch.OSRM{
			BaseURL:   cfg.OSRMBaseURL,
			Profile:   cfg.OSRMProfile,
			ChunkSize: cfg.OSRMChunkSize,
			Client:    httpClient,
		}
	}

	return app, nil
}

// Close releases the app's resources.
func (a *App) Close() error {
	a.transport.Close()
	if a.quota != nil {
		return a.quota.Close()
	}
	return nil
}

// Dataset is the location history loaded from one or more documents.
type Dataset struct {
	// All points, sorted by time. Each document's points are exactly
	// those it normalizes to on its own.
	Points []timeline.Point

	// The documents the points were loaded from.
	Files []FileSummary
}

// FileSummary describes one loaded document.
type FileSummary struct {
	Name     string
	Shape    googlelocation.Shape
	Points   int
	Rejected int
}

// Periods returns a period set spanning the dataset.
func (d Dataset) Periods() *timeline.PeriodSet {
	return timeline.NewPeriodSet(d.Points)
}

// Normalize converts one document into canonical points.
func (a *App) Normalize(doc []byte) (googlelocation.Result, error) {
	return googlelocation.Process(doc, googlelocation.Options{
		TimeZone: a.zone,
		Logger:   timeline.Log.Named("googlelocation"),
	})
}

// Load reads the location history at filename, which may be a single
// JSON document, a folder, or an archive such as a Takeout .zip. In
// folders and archives, every file that looks like location history is
// read, in natural order of their paths.
func (a *App) Load(ctx context.Context, filename string) (Dataset, error) {
	var ds Dataset

	fsys, err := archives.FileSystem(ctx, filename, nil)
	if err != nil {
		return ds, fmt.Errorf("opening %s: %w", filename, err)
	}

	// a regular (maybe compressed) file is read as a document no
	// matter its name
	if _, ok := fsys.(archives.FileFS); ok {
		doc, err := fs.ReadFile(fsys, ".")
		if err != nil {
			return ds, err
		}
		if err := a.addDocument(&ds, filename, doc); err != nil {
			return ds, err
		}
		a.finishDataset(&ds)
		return ds, nil
	}

	var names []string
	err = fs.WalkDir(fsys, ".", func(fpath string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			if fpath != "." && path.Base(fpath)[0] == '.' {
				return fs.SkipDir
			}
			return nil
		}
		if googlelocation.LooksLikeLocationHistory(fpath) {
			names = append(names, fpath)
		}
		return nil
	})
	if err != nil {
		return ds, fmt.Errorf("walking %s: %w", filename, err)
	}
	slices.SortFunc(names, func(a, b string) int {
		switch {
		case natural.Less(a, b):
			return -1
		case natural.Less(b, a):
			return 1
		}
		return 0
	})

	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return ds, err
		}
		doc, err := fs.ReadFile(fsys, name)
		if err != nil {
			return ds, fmt.Errorf("reading %s: %w", name, err)
		}
		err = a.addDocument(&ds, name, doc)
		var fmtErr *timeline.FormatError
		if errors.As(err, &fmtErr) {
			// other JSON files live alongside location history in exports
			a.log.Debug("skipping file", zap.String("file", name), zap.Error(err))
			continue
		}
		if err != nil {
			return ds, err
		}
	}
	if len(ds.Files) == 0 {
		return ds, fmt.Errorf("no location history found in %s", filename)
	}

	a.finishDataset(&ds)
	return ds, nil
}

func (a *App) addDocument(ds *Dataset, name string, doc []byte) error {
	res, err := a.Normalize(doc)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ds.Points = append(ds.Points, res.Points...)
	ds.Files = append(ds.Files, FileSummary{
		Name:     name,
		Shape:    res.Shape,
		Points:   len(res.Points),
		Rejected: res.Rejected,
	})
	a.log.Info("loaded location history",
		zap.String("file", name),
		zap.Stringer("shape", res.Shape),
		zap.Int("points", len(res.Points)),
		zap.Int("rejected", res.Rejected))
	return nil
}

// finishDataset orders the points of all documents as one stream.
// Duplicates were already handled per document, according to its shape,
// so merging never changes how many points a document contributes.
func (*App) finishDataset(ds *Dataset) {
	if len(ds.Files) < 2 {
		return
	}
	timeline.SortPoints(ds.Points)
}

// Count returns the number of points in the period.
func (*App) Count(points []timeline.Point, period timeline.Period) int {
	return len(timeline.Select(points, period))
}

// Format is an export document format.
type Format string

// Supported formats.
const (
	FormatKML     Format = "kml"
	FormatGeoJSON Format = "geojson"
)

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	if f == FormatGeoJSON {
		return ".geojson"
	}
	return ".kml"
}

// Document is an exported period.
type Document struct {
	Period   timeline.Period
	Filename string
	Data     []byte
	Segments int
	Points   int
}

// Export serializes the tracks of each period into a document. Periods
// are processed concurrently; documents are returned in the order of
// periods. Exported tracks use the raw points, not map-matched ones.
func (a *App) Export(ctx context.Context, points []timeline.Point, periods []timeline.Period, format Format, style export.StyleOptions) ([]Document, error) {
	if format == "" {
		format = FormatKML
	}
	if format != FormatKML && format != FormatGeoJSON {
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
	if style.TimeZone == nil {
		style.TimeZone = a.zone
	}

	docs := make([]Document, len(periods))
	g, ctx := errgroup.WithContext(ctx)
	for i, period := range periods {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			selected := timeline.Select(points, period)
			segments := timeline.SegmentPoints(selected)

			periodStyle := style
			periodStyle.Period = &period

			var data []byte
			var err error
			if format == FormatGeoJSON {
				data, err = export.GeoJSON(segments, selected, periodStyle)
			} else {
				data, err = export.KML(segments, selected, periodStyle)
			}
			if err != nil {
				return fmt.Errorf("exporting period %d: %w", period.ID, err)
			}

			docs[i] = Document{
				Period:   period,
				Filename: exportFilename(period, format),
				Data:     data,
				Segments: len(segments),
				Points:   len(selected),
			}
			a.log.Info("exported period",
				zap.Int("period", period.ID),
				zap.Int("points", len(selected)),
				zap.Int("segments", len(segments)),
				zap.Int("bytes", len(data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return docs, nil
}

func exportFilename(p timeline.Period, format Format) string {
	return fmt.Sprintf("track-%d-%s_%s%s", p.ID,
		p.Start.Format("20060102"), p.End.Format("20060102"), format.Ext())
}

// Quota returns the current Mapbox usage. It returns false if Mapbox is
// not configured.
func (a *App) Quota() (usage mapmatch.UsageRecord, eligible, ok bool) {
	if a.quota == nil {
		return mapmatch.UsageRecord{}, false, false
	}
	return a.quota.Usage(), a.quota.Eligible(), true
}

// Config returns the app's configuration.
func (a *App) Config() *Config { return a.cfg }
