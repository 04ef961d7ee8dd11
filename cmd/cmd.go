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

// Package trackcmd facilitates the command line interface (CLI)
// and implements the main().
package trackcmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"sort"
	"strings"

	"github.com/timelinize/trackexport/timeline"
	"github.com/timelinize/trackexport/trackapp"
	"go.uber.org/zap"
)

// Main runs the program with the command line arguments and exits.
func Main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	trapSignals(cancel)

	if err := Run(ctx, os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		timeline.Log.Error("command failed", zap.Error(err))
		_ = timeline.Log.Sync()
		os.Exit(1)
	}
	_ = timeline.Log.Sync()
}

// Run parses args and runs the command they name, writing its output
// to stdout.
func Run(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("trackexport", flag.ContinueOnError)
	configFile := fs.String("config", "", "path to config file (default "+trackapp.DefaultConfigFilePath()+")")
	debugLog := fs.Bool("debug", false, "enable debug logging")
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage(fs)) }
	if err := fs.Parse(args); err != nil {
		return err
	}
	timeline.SetDebug(*debugLog)

	if fs.NArg() == 0 {
		fs.Usage()
		return errors.New("missing command")
	}
	name, cmdArgs := fs.Arg(0), fs.Args()[1:]

	switch name {
	case "help":
		fmt.Fprint(stdout, usage(fs))
		return nil
	case "version":
		fmt.Fprintln(stdout, "trackexport", version())
		return nil
	}

	cmd, ok := commands[name]
	if !ok {
		return fmt.Errorf("unknown command: %s (run 'trackexport help' for usage)", name)
	}

	cfg, err := trackapp.LoadConfig(*configFile)
	if err != nil {
		return err
	}
	env := &environment{cfg: cfg, configFile: *configFile, stdout: stdout, log: timeline.Log.Named("cmd")}

	cmdFlags := flag.NewFlagSet(name, flag.ContinueOnError)
	run := cmd.setup(cmdFlags, env)
	if err := cmdFlags.Parse(cmdArgs); err != nil {
		return err
	}
	if cmd.args >= 0 && cmdFlags.NArg() != cmd.args {
		return fmt.Errorf("%s: expected %d argument(s), got %d; usage: trackexport %s %s",
			name, cmd.args, cmdFlags.NArg(), name, cmd.usage)
	}
	if cmd.app {
		app, err := trackapp.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()
		env.app = app
	}

	if err := run(ctx, cmdFlags.Args()); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// environment is what a command runs with.
type environment struct {
	cfg        *trackapp.Config
	configFile string
	app        *trackapp.App // nil unless the command needs it
	stdout     io.Writer
	log        *zap.Logger
}

type command struct {
	usage string
	short string
	args  int  // number of positional arguments, or -1 for any
	app   bool // whether the command needs a running app

	// setup defines the command's flags and returns the function
	// that runs it
	setup func(fs *flag.FlagSet, env *environment) func(ctx context.Context, args []string) error
}

var commands = map[string]command{
	"count": {
		usage: "[-from T] [-to T] <input>",
		short: "Count the points in a period",
		args:  1,
		app:   true,
		setup: countCommand,
	},
	"export": {
		usage: "[-period FROM,TO]... [-format kml|geojson] [-out DIR] [style flags] <input>",
		short: "Write one track document per period",
		args:  1,
		app:   true,
		setup: exportCommand,
	},
	"preview": {
		usage: "[-from T] [-to T] [-out FILE] <input>",
		short: "Map-match the tracks of a period",
		args:  1,
		app:   true,
		setup: previewCommand,
	},
	"quota": {
		usage: "",
		short: "Show the map-matching provider usage this month",
		args:  0,
		app:   true,
		setup: quotaCommand,
	},
	"demo": {
		usage: "[-seed N] [-trips N] [-start DATE] [-out FILE]",
		short: "Generate a synthetic location history document",
		args:  0,
		setup: demoCommand,
	},
	"config": {
		usage: "[-write]",
		short: "Print the effective configuration",
		args:  0,
		setup: configCommand,
	},
}

func usage(fs *flag.FlagSet) string {
	var sb strings.Builder
	sb.WriteString("Usage: trackexport [flags] <command> [command flags] [args]\n\nCommands:\n")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(&sb, "  %-8s %s\n", name, commands[name].short)
		if u := commands[name].usage; u != "" {
			fmt.Fprintf(&sb, "           trackexport %s %s\n", name, u)
		}
	}
	fmt.Fprintf(&sb, "  %-8s %s\n", "help", "Show this help")
	fmt.Fprintf(&sb, "  %-8s %s\n", "version", "Print the version")

	sb.WriteString("\nFlags:\n")
	fs.VisitAll(func(f *flag.Flag) {
		fmt.Fprintf(&sb, "  -%s\n\t%s\n", f.Name, f.Usage)
	})
	return sb.String()
}

func version() string {
	info, ok := debug.ReadBuildInfo()
	if !ok || info.Main.Version == "" {
		return "(devel)"
	}
	return info.Main.Version
}
