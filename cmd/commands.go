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

package trackcmd

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/timelinize/trackexport/datasources/googlelocation"
	"github.com/timelinize/trackexport/export"
	"github.com/timelinize/trackexport/timeline"
	"github.com/timelinize/trackexport/trackapp"
	"go.uber.org/zap"
)

// periodFlags selects the periods a command works on: either one or
// more -period flags, or a single range given by -from and -to. With
// none of them, the whole dataset is one period.
type periodFlags struct {
	from, to string
	ranges   []string
}

func (pf *periodFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&pf.from, "from", "", "start of the period (date or date and time)")
	fs.StringVar(&pf.to, "to", "", "end of the period, inclusive")
	fs.Func("period", "a period as FROM,TO (repeatable)", func(s string) error {
		if !strings.Contains(s, ",") {
			return fmt.Errorf("period must be FROM,TO: %s", s)
		}
		pf.ranges = append(pf.ranges, s)
		return nil
	})
}

func (pf periodFlags) periods(points []timeline.Point, loc *time.Location) ([]timeline.Period, error) {
	ps := timeline.NewPeriodSet(points)

	if len(pf.ranges) > 0 {
		if pf.from != "" || pf.to != "" {
			return nil, errors.New("use either -period or -from/-to, not both")
		}
		for _, r := range pf.ranges {
			from, to, _ := strings.Cut(r, ",")
			start, end, err := parseRange(from, to, ps, loc)
			if err != nil {
				return nil, err
			}
			ps.Add(start, end)
		}
		return ps.Periods(), nil
	}

	if pf.from == "" && pf.to == "" {
		ps.FullRange()
		return ps.Periods(), nil
	}
	start, end, err := parseRange(pf.from, pf.to, ps, loc)
	if err != nil {
		return nil, err
	}
	ps.Add(start, end)
	return ps.Periods(), nil
}

// parseRange parses the ends of a period; an empty end is the
// dataset's bound on that side.
func parseRange(from, to string, ps *timeline.PeriodSet, loc *time.Location) (time.Time, time.Time, error) {
	start, end := ps.Min, ps.Max
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if start, err = parseTime(from, loc, false); err != nil {
			return start, end, err
		}
	}
	if to = strings.TrimSpace(to); to != "" {
		if end, err = parseTime(to, loc, true); err != nil {
			return start, end, err
		}
	}
	return start, end, nil
}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// parseTime parses s in loc. A date alone means the start of that day,
// or the end of it if endOfDay is true.
func parseTime(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	t, err := time.ParseInLocation(time.DateOnly, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized time: %s", s)
	}
	if endOfDay {
		t = t.AddDate(0, 0, 1).Add(-time.Millisecond)
	}
	return t, nil
}

func zone(cfg *trackapp.Config) *time.Location {
	if cfg.TimeZone != "" {
		if loc, err := time.LoadLocation(cfg.TimeZone); err == nil {
			return loc
		}
	}
	return time.Local
}

func countCommand(fs *flag.FlagSet, env *environment) func(context.Context, []string) error {
	var pf periodFlags
	pf.register(fs)

	return func(ctx context.Context, args []string) error {
		ds, err := env.app.Load(ctx, args[0])
		if err != nil {
			return err
		}
		periods, err := pf.periods(ds.Points, zone(env.cfg))
		if err != nil {
			return err
		}
		for _, p := range periods {
			fmt.Fprintf(env.stdout, "%s\t%s points\n", p, humanize.Comma(int64(env.app.Count(ds.Points, p))))
		}
		return nil
	}
}

func styleFlags(fs *flag.FlagSet, style *export.StyleOptions) {
	fs.StringVar(&style.Name, "name", style.Name, "document name")
	fs.StringVar(&style.Color, "color", style.Color, "line color as #rrggbb")
	fs.StringVar(&style.PointColor, "point-color", style.PointColor, "marker color as #rrggbb")
	fs.Float64Var(&style.Opacity, "opacity", style.Opacity, "line opacity in [0,1]")
	fs.Float64Var(&style.Width, "width", style.Width, "line width in pixels")
	fs.BoolVar(&style.ShowWaypoints, "waypoints", style.ShowWaypoints, "include a marker per point")
	fs.BoolVar(&style.ShowLabels, "labels", style.ShowLabels, "include a marker per point, labeled with its time")
	fs.Float64Var(&style.Simplification, "simplify", style.Simplification, "path simplification, 0 (off) to 10 (aggressive)")
}

func exportCommand(fs *flag.FlagSet, env *environment) func(context.Context, []string) error {
	var pf periodFlags
	pf.register(fs)
	format := fs.String("format", string(trackapp.FormatKML), "output format: kml or geojson")
	outDir := fs.String("out", ".", "folder to write documents to")
	style := env.cfg.Style
	styleFlags(fs, &style)

	return func(ctx context.Context, args []string) error {
		ds, err := env.app.Load(ctx, args[0])
		if err != nil {
			return err
		}
		periods, err := pf.periods(ds.Points, zone(env.cfg))
		if err != nil {
			return err
		}
		docs, err := env.app.Export(ctx, ds.Points, periods, trackapp.Format(strings.ToLower(*format)), style)
		if err != nil {
			return err
		}

		if err := os.MkdirAll(*outDir, 0755); err != nil {
			return err
		}
		for _, doc := range docs {
			name := filepath.Join(*outDir, doc.Filename)
			if err := os.WriteFile(name, doc.Data, 0644); err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s\t%s\t%s points\t%d tracks\n", name,
				humanize.Bytes(uint64(len(doc.Data))), humanize.Comma(int64(doc.Points)), doc.Segments)
		}
		return nil
	}
}

func previewCommand(fs *flag.FlagSet, env *environment) func(context.Context, []string) error {
	var pf periodFlags
	pf.register(fs)
	out := fs.String("out", "", "write the resolved tracks as GeoJSON to this file")

	return func(ctx context.Context, args []string) error {
		ds, err := env.app.Load(ctx, args[0])
		if err != nil {
			return err
		}
		periods, err := pf.periods(ds.Points, zone(env.cfg))
		if err != nil {
			return err
		}

		loc := zone(env.cfg)
		var all []trackapp.PreviewSegment
		for _, p := range periods {
			segments, err := env.app.Preview(ctx, ds.Points, p)
			if err != nil {
				return err
			}
			fmt.Fprintf(env.stdout, "%s\t%d tracks\n", p, len(segments))
			for i, seg := range segments {
				source := "raw"
				if seg.Matched {
					source = "matched"
				}
				fmt.Fprintf(env.stdout, "  %d\t%s - %s\t%d points\t%d coordinates (%s)\n", i+1,
					seg.Points.Start().In(loc).Format("2006-01-02 15:04"),
					seg.Points.End().In(loc).Format("15:04"),
					len(seg.Points), len(seg.Coords), source)
			}
			all = append(all, segments...)
		}

		if *out == "" {
			return nil
		}
		data, err := trackapp.PreviewGeoJSON(all)
		if err != nil {
			return err
		}
		return os.WriteFile(*out, data, 0644)
	}
}

func quotaCommand(_ *flag.FlagSet, env *environment) func(context.Context, []string) error {
	return func(context.Context, []string) error {
		usage, eligible, ok := env.app.Quota()
		if !ok {
			fmt.Fprintf(env.stdout, "Mapbox is not configured; set mapbox_token in the config or %s\n", trackapp.EnvMapboxToken)
			return nil
		}
		cfg := env.cfg
		fmt.Fprintf(env.stdout, "month:      %s\n", usage.LastResetMonth)
		fmt.Fprintf(env.stdout, "used:       %s of %s\n",
			humanize.Comma(int64(usage.UsageCount)), humanize.Comma(int64(cfg.MonthlyLimit)))
		fmt.Fprintf(env.stdout, "fallback:   at %.0f%% (%s requests)\n",
			cfg.FallbackThreshold*100, humanize.Comma(int64(cfg.FallbackThreshold*float64(cfg.MonthlyLimit))))
		fmt.Fprintf(env.stdout, "eligible:   %t\n", eligible)
		return nil
	}
}

func demoCommand(fs *flag.FlagSet, env *environment) func(context.Context, []string) error {
	seed := fs.Uint64("seed", 1, "random seed; the same seed produces the same document")
	trips := fs.Int("trips", 12, "number of visits and movements")
	start := fs.String("start", "2024-01-01T08:00", "time of the first visit")
	out := fs.String("out", "", "file to write to (default stdout)")

	return func(context.Context, []string) error {
		if *trips < 1 {
			return fmt.Errorf("trips must be positive: %d", *trips)
		}
		loc := zone(env.cfg)
		startTime, err := parseTime(*start, loc, false)
		if err != nil {
			return err
		}
		doc, err := googlelocation.FakeDocument(timeline.FakeTrips(*seed, startTime, *trips), loc)
		if err != nil {
			return err
		}
		if *out == "" {
			_, err := env.stdout.Write(append(doc, '\n'))
			return err
		}
		env.log.Info("writing demo document", zap.String("file", *out), zap.Int("trips", *trips))
		return os.WriteFile(*out, doc, 0644)
	}
}

func configCommand(fs *flag.FlagSet, env *environment) func(context.Context, []string) error {
	write := fs.Bool("write", false, "save the effective configuration to the config file")

	return func(context.Context, []string) error {
		if *write {
			return env.cfg.Save(cmp.Or(env.configFile, trackapp.DefaultConfigFilePath()))
		}
		enc := json.NewEncoder(env.stdout)
		enc.SetIndent("", "\t")
		return enc.Encode(env.cfg.Redacted())
	}
}
