// codeprint CLI - fingerprint code units and inspect executed ranges
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
	"github.com/tliron/commonlog"

	"github.com/chazu/codeprint/manifest"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("codeprint.cmd")

// env carries what every subcommand needs.
type env struct {
	stdout io.Writer
	stderr io.Writer
	cfg    *manifest.Manifest
}

type command struct {
	name    string
	summary string
	run     func(e *env, args []string) error
}

var commands = []command{
	{"hash", "print the fingerprint of a source file", runHash},
	{"encode", "render integers as six-character codes", runEncode},
	{"decode", "parse six-character codes", runDecode},
	{"ranges", "list executed ranges from the store or a snapshot", runRanges},
	{"units", "list stored code units", runUnits},
	{"serve", "serve diagnostics for a set of source files", runServe},
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("codeprint", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)
	verbose := fs.CountP("verbose", "v", "Increase log verbosity (repeatable)")
	configDir := fs.StringP("config", "c", ".", "Directory to search upward for codeprint.toml")
	logFile := fs.String("log-file", "", "Write logs to this file instead of stderr")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: codeprint [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-8s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  codeprint hash main.js                 # fingerprint a file\n")
		fmt.Fprintf(stderr, "  codeprint hash --kind construct a.js   # construct specialization\n")
		fmt.Fprintf(stderr, "  codeprint decode asqdSv                # code back to its integer\n")
		fmt.Fprintf(stderr, "  codeprint serve --db cov.db src/*.js   # diagnostics server\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cfg, err := manifest.FindAndLoad(*configDir)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading %s: %v\n", manifest.FileName, err)
		return 1
	}
	if cfg == nil {
		cfg = manifest.Default()
	}

	verbosity := cfg.Log.Verbosity + *verbose
	path := cfg.Resolve(cfg.Log.File)
	if *logFile != "" {
		path = *logFile
	}
	if path != "" {
		commonlog.Configure(verbosity, &path)
	} else {
		commonlog.Configure(verbosity, nil)
	}

	name := fs.Arg(0)
	for _, c := range commands {
		if c.name != name {
			continue
		}
		e := &env{stdout: stdout, stderr: stderr, cfg: cfg}
		if err := c.run(e, fs.Args()[1:]); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				return 0
			}
			log.Debugf("%s failed: %v", name, err)
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(stderr, "Unknown command %q\n\n", name)
	fs.Usage()
	return 2
}

// newFlagSet creates a subcommand flag set that reports errors instead of
// exiting.
func newFlagSet(e *env, name, usage string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	fs.Usage = func() {
		fmt.Fprintf(e.stderr, "Usage: codeprint %s %s\n\nOptions:\n", name, usage)
		fs.PrintDefaults()
	}
	return fs
}
