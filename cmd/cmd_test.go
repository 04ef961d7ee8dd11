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
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/timelinize/trackexport/datasources/googlelocation"
	"github.com/timelinize/trackexport/internal/testhelpers"
	"github.com/timelinize/trackexport/timeline"
	"github.com/timelinize/trackexport/trackapp"
)

// testConfig writes a config file that keeps the commands offline.
func testConfig(t *testing.T) string {
	t.Helper()
	t.Setenv(trackapp.EnvMapboxToken, "")
	t.Setenv(trackapp.EnvQuotaStore, "")
	path := filepath.Join(t.TempDir(), "config.json")
	testhelpers.WriteFile(t, path, []byte(`{"disable_osrm": true, "time_zone": "UTC"}`))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	err := Run(context.Background(), args, &out)
	return out.String(), err
}

func TestRunStandardCommands(t *testing.T) {
	for i, tc := range []struct {
		args      []string
		expectErr bool
		contains  string
	}{
		{args: []string{"version"}, contains: "trackexport"},
		{args: []string{"help"}, contains: "Commands:"},
		{args: []string{}, expectErr: true},
		{args: []string{"frobnicate"}, expectErr: true},
		{args: []string{"-config", testConfig(t), "count"}, expectErr: true},
		{args: []string{"-config", testConfig(t), "quota"}, contains: "not configured"},
	} {
		out, err := run(t, tc.args...)
		if tc.expectErr {
			if err == nil {
				t.Errorf("Test %d: expected error for %v", i, tc.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if !strings.Contains(out, tc.contains) {
			t.Errorf("Test %d: expected output to contain %q, got: %s", i, tc.contains, out)
		}
	}
}

func TestDemoCountExportPreview(t *testing.T) {
	cfg := testConfig(t)
	dir := t.TempDir()
	input := filepath.Join(dir, "Timeline.json")

	// the same seed generates the same document
	a, err := run(t, "-config", cfg, "demo", "-seed", "7", "-trips", "9")
	if err != nil {
		t.Fatal(err)
	}
	b, err := run(t, "-config", cfg, "demo", "-seed", "7", "-trips", "9")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("expected deterministic demo output")
	}
	if shape, err := googlelocation.DetectShape([]byte(a)); err != nil || shape != googlelocation.ShapeOnDevice {
		t.Fatalf("expected on-device document, got %v (%v)", shape, err)
	}

	if _, err := run(t, "-config", cfg, "demo", "-seed", "7", "-trips", "9", "-out", input); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, "-config", cfg, "count", input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "#1 [") || !strings.Contains(out, "points") {
		t.Errorf("unexpected count output: %s", out)
	}

	outDir := filepath.Join(dir, "out")
	out, err = run(t, "-config", cfg, "export", "-format", "geojson", "-out", outDir, "-labels", input)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := os.ReadDir(outDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".geojson") {
		t.Errorf("expected one GeoJSON document, got %v (output: %s)", entries, out)
	}

	previewFile := filepath.Join(dir, "preview.geojson")
	out, err = run(t, "-config", cfg, "preview", "-out", previewFile, input)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "tracks") {
		t.Errorf("unexpected preview output: %s", out)
	}
	if _, err := os.Stat(previewFile); err != nil {
		t.Errorf("expected preview file: %v", err)
	}
}

func TestParseTime(t *testing.T) {
	for i, tc := range []struct {
		input     string
		endOfDay  bool
		expect    time.Time
		expectErr bool
	}{
		{input: "2024-05-01", expect: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)},
		{input: "2024-05-01", endOfDay: true, expect: time.Date(2024, 5, 1, 23, 59, 59, 999e6, time.UTC)},
		{input: "2024-05-01T08:30", endOfDay: true, expect: time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)},
		{input: "2024-05-01 08:30:15", expect: time.Date(2024, 5, 1, 8, 30, 15, 0, time.UTC)},
		{input: "2024-05-01T08:30:00+02:00", expect: time.Date(2024, 5, 1, 6, 30, 0, 0, time.UTC)},
		{input: "yesterday", expectErr: true},
	} {
		actual, err := parseTime(tc.input, time.UTC, tc.endOfDay)
		if tc.expectErr {
			if err == nil {
				t.Errorf("Test %d: expected error", i)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if !actual.Equal(tc.expect) {
			t.Errorf("Test %d: expected %s, got %s", i, tc.expect, actual)
		}
	}
}

func TestPeriodFlags(t *testing.T) {
	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	points := []timeline.Point{
		{LatitudeE7: 1, Timestamp: day.Add(6 * time.Hour).UnixMilli()},
		{LatitudeE7: 2, Timestamp: day.Add(50 * time.Hour).UnixMilli()},
	}

	for i, tc := range []struct {
		pf        periodFlags
		expect    [][2]time.Time
		expectErr bool
	}{
		{
			expect: [][2]time.Time{{day.Add(6 * time.Hour), day.Add(50 * time.Hour)}},
		},
		{
			pf:     periodFlags{from: "2024-05-02"},
			expect: [][2]time.Time{{day.Add(24 * time.Hour), day.Add(50 * time.Hour)}},
		},
		{
			pf: periodFlags{ranges: []string{"2024-05-01,2024-05-01", ",2024-05-03T00:00"}},
			expect: [][2]time.Time{
				{day.Add(6 * time.Hour), day.Add(24*time.Hour - time.Millisecond)},
				{day.Add(6 * time.Hour), day.Add(48 * time.Hour)},
			},
		},
		{pf: periodFlags{from: "2024-05-01", ranges: []string{"2024-05-01,2024-05-02"}}, expectErr: true},
		{pf: periodFlags{to: "soon"}, expectErr: true},
	} {
		periods, err := tc.pf.periods(points, time.UTC)
		if tc.expectErr {
			if err == nil {
				t.Errorf("Test %d: expected error", i)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: unexpected error: %v", i, err)
			continue
		}
		if len(periods) != len(tc.expect) {
			t.Errorf("Test %d: expected %d periods, got %d", i, len(tc.expect), len(periods))
			continue
		}
		for j, p := range periods {
			if p.ID != j+1 || !p.Start.Equal(tc.expect[j][0]) || !p.End.Equal(tc.expect[j][1]) {
				t.Errorf("Test %d: period %d: expected %v, got %s", i, j, tc.expect[j], p)
			}
		}
	}
}
