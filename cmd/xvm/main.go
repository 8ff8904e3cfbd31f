// xvm CLI - runs, disassembles and verifies module images
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/afero"
	"github.com/spf13/pflag"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/xtclang/xvm-sub016/manifest"
	"github.com/xtclang/xvm-sub016/vm/image"
)

var log = commonlog.GetLogger("xvm.cli")

// Exit codes.
const (
	exitOK        = 0
	exitException = 1 // also load and usage errors
	exitFault     = 2
)

// traceVerbosity is the commonlog verbosity at which dispatch traces,
// logged at debug level, are written.
const traceVerbosity = 2

type app struct {
	fs     afero.Fs
	stdout io.Writer
	stderr io.Writer

	// registry receives the engine and cache counters when metrics are
	// enabled.
	registry *prometheus.Registry
}

func main() {
	a := &app{fs: afero.NewOsFs(), stdout: os.Stdout, stderr: os.Stderr}
	os.Exit(a.main(os.Args[1:]))
}

func (a *app) main(args []string) int {
	if len(args) == 0 {
		a.usage()
		return exitException
	}
	switch args[0] {
	case "run":
		return a.handleRun(args[1:])
	case "disasm":
		return a.handleDisasm(args[1:])
	case "verify":
		return a.handleVerify(args[1:])
	case "help", "-h", "--help":
		a.usage()
		return exitOK
	}
	fmt.Fprintf(a.stderr, "Error: unknown command %q\n\n", args[0])
	a.usage()
	return exitException
}

func (a *app) usage() {
	fmt.Fprintf(a.stderr, "Usage: xvm <command> [options] image\n\n")
	fmt.Fprintf(a.stderr, "Commands:\n")
	fmt.Fprintf(a.stderr, "  run     run entry points of a module image\n")
	fmt.Fprintf(a.stderr, "  disasm  print the listing of every method\n")
	fmt.Fprintf(a.stderr, "  verify  decode and re-encode every method\n")
	fmt.Fprintf(a.stderr, "\nExamples:\n")
	fmt.Fprintf(a.stderr, "  xvm run app.xvmi                  # run the image's entry points\n")
	fmt.Fprintf(a.stderr, "  xvm run -e Main.run -e Main.bench app.xvmi\n")
	fmt.Fprintf(a.stderr, "  xvm run --trace-op CALL_01 -v app # resolve app through image.path\n")
	fmt.Fprintf(a.stderr, "  xvm disasm --class Point app.xvmi\n")
}

// globalFlags are accepted by every command.
type globalFlags struct {
	config   string
	verbose  int
	traceOps []string
}

func (g *globalFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&g.config, "config", "", "path to "+manifest.FileName+" or its directory (default: search upward)")
	flags.CountVarP(&g.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	flags.StringSliceVar(&g.traceOps, "trace-op", nil, "log every dispatch of the named opcode (repeatable)")
}

// newFlagSet creates the flag set of a command with the global flags.
func (a *app) newFlagSet(name, args string, g *globalFlags) *pflag.FlagSet {
	flags := pflag.NewFlagSet(name, pflag.ContinueOnError)
	flags.SetOutput(a.stderr)
	flags.Usage = func() {
		fmt.Fprintf(a.stderr, "Usage: xvm %s [options] %s\n\nOptions:\n", name, args)
		flags.PrintDefaults()
	}
	g.register(flags)
	return flags
}

// parse parses args and checks for exactly one positional argument. It
// returns the exit code to stop with, or -1 to continue.
func (a *app) parse(flags *pflag.FlagSet, args []string) int {
	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return exitOK
		}
		return exitException
	}
	if flags.NArg() != 1 {
		fmt.Fprintf(a.stderr, "Error: expected one image, got %d arguments\n", flags.NArg())
		flags.Usage()
		return exitException
	}
	return -1
}

// setup loads the configuration, merges the global flags into it and
// configures logging.
func (a *app) setup(g *globalFlags) (*manifest.Config, error) {
	cfg, err := a.loadConfig(g.config)
	if err != nil {
		return nil, err
	}
	cfg.Engine.Trace = append(cfg.Engine.Trace, g.traceOps...)
	if _, err := cfg.TraceOpcodes(); err != nil {
		return nil, err
	}

	verbosity := cfg.Log.Verbosity + g.verbose
	if len(cfg.Engine.Trace) > 0 && verbosity < traceVerbosity {
		verbosity = traceVerbosity
	}
	var path *string
	if cfg.Log.File != "" {
		path = &cfg.Log.File
	}
	commonlog.Configure(verbosity, path)

	if cfg.Dir != "" {
		log.Debugf("using %s", filepath.Join(cfg.Dir, manifest.FileName))
	}
	return cfg, nil
}

// load sets up the command and reads the image named by arg.
func (a *app) load(g *globalFlags, arg string) (*manifest.Config, string, *image.Image, error) {
	cfg, err := a.setup(g)
	if err != nil {
		return nil, "", nil, err
	}
	path, err := cfg.ResolveImage(a.fs, arg)
	if err != nil {
		return nil, "", nil, err
	}
	img, err := image.ReadFile(a.fs, path)
	if err != nil {
		return nil, "", nil, err
	}
	return cfg, path, img, nil
}

func (a *app) loadConfig(path string) (*manifest.Config, error) {
	if path != "" {
		dir := path
		if filepath.Base(path) == manifest.FileName {
			dir = filepath.Dir(path)
		}
		return manifest.Load(a.fs, dir)
	}
	cfg, err := manifest.FindAndLoad(a.fs, ".")
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = manifest.Default()
	}
	return cfg, nil
}

func (a *app) errorf(format string, args ...any) {
	fmt.Fprintf(a.stderr, "Error: "+format+"\n", args...)
}
