package main

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/xtclang/xvm-sub016/manifest"
	"github.com/xtclang/xvm-sub016/vm"
	"github.com/xtclang/xvm-sub016/vm/image"
	"github.com/xtclang/xvm-sub016/vm/object"
)

// entryResult is the outcome of one entry point.
type entryResult struct {
	name      string
	value     vm.Value
	exception *vm.Exception
	fault     error
}

// handleRun processes the `xvm run` subcommand.
// Usage:
//
//	xvm run app.xvmi                     # image or run.entries
//	xvm run -e Main.run -e Main.other app # in parallel
func (a *app) handleRun(args []string) int {
	var g globalFlags
	flags := a.newFlagSet("run", "image", &g)
	entries := flags.StringArrayP("entry", "e", nil, "entry point Class.method (repeatable)")
	if code := a.parse(flags, args); code >= 0 {
		return code
	}

	cfg, _, img, err := a.load(&g, flags.Arg(0))
	if err != nil {
		a.errorf("%v", err)
		return exitException
	}

	results, metrics, err := a.runImage(context.Background(), cfg, img, *entries)
	if err != nil {
		a.errorf("%v", err)
		return exitException
	}
	a.reportMetrics(metrics)

	code := exitOK
	for _, r := range results {
		switch {
		case r.fault != nil:
			a.errorf("%s: %v", r.name, r.fault)
			code = exitFault
		case r.exception != nil:
			fmt.Fprintf(a.stderr, "Unhandled exception in %s: %+v\n", r.name, r.exception)
			if code == exitOK {
				code = exitException
			}
		}
	}
	return code
}

// runImage links img into a fresh runtime and runs each entry point on
// its own call stack. Results are in entry order.
func (a *app) runImage(ctx context.Context, cfg *manifest.Config, img *image.Image, explicit []string) ([]entryResult, *vm.Metrics, error) {
	names := cfg.Entries(explicit, img)
	if len(names) == 0 {
		return nil, nil, fmt.Errorf("%s: no entry points; use -e Class.method", img.Module)
	}

	ropts := cfg.RuntimeOptions()
	ropts.Out = a.stdout
	var metrics *vm.Metrics
	if cfg.Metrics.Enabled {
		a.registry = prometheus.NewRegistry()
		ropts.Registerer = a.registry
		var err error
		if metrics, err = vm.NewMetrics(cfg.Metrics.Namespace, a.registry); err != nil {
			return nil, nil, err
		}
	}
	opts, err := cfg.EngineOptions(metrics)
	if err != nil {
		return nil, nil, err
	}

	rt, err := object.NewRuntime(ropts)
	if err != nil {
		return nil, nil, err
	}
	mod, err := image.Link(img, rt)
	if err != nil {
		return nil, nil, err
	}

	// every entry resolves before any runs
	type entry struct {
		method *vm.Method
		target vm.Value
	}
	resolved := make([]entry, len(names))
	for i, name := range names {
		m, target, err := mod.Entry(name)
		if err != nil {
			return nil, nil, err
		}
		resolved[i] = entry{m, target}
	}

	results := make([]entryResult, len(names))
	eg, ctx := errgroup.WithContext(ctx)
	for i, name := range names {
		eg.Go(func() error {
			r := runEntry(ctx, rt, opts, name, resolved[i].method, resolved[i].target)
			results[i] = r
			// a fault stops the other entries; an exception does not
			return r.fault
		})
	}
	if err := eg.Wait(); err != nil {
		log.Errorf("run stopped: %v", err)
	}

	for _, r := range results {
		if r.value != nil && r.value != object.Null {
			fmt.Fprintf(a.stdout, "%s => %s\n", r.name, rt.Render(r.value))
		}
	}
	return results, metrics, nil
}

func runEntry(ctx context.Context, rt vm.Runtime, opts vm.Options, name string, m *vm.Method, target vm.Value) entryResult {
	r := entryResult{name: name}
	cs := vm.NewCallStack(rt, opts)
	if err := cs.Start(m, target, nil, 1); err != nil {
		r.fault = err
		return r
	}
	log.Infof("running %s on call stack %d", name, cs.ID())

	err := cs.Run(ctx)
	var ex *vm.Exception
	switch {
	case err == nil:
		r.value = cs.Results()[0]
	case errors.As(err, &ex):
		r.exception = ex
	default:
		r.fault = err
	}
	return r
}

// reportMetrics logs the methods each run invoked, most invoked first.
func (a *app) reportMetrics(metrics *vm.Metrics) {
	hot := metrics.HotMethods(1)
	sort.Slice(hot, func(i, j int) bool {
		ni, nj := metrics.Invocations(hot[i]), metrics.Invocations(hot[j])
		if ni != nj {
			return ni > nj
		}
		return hot[i].String() < hot[j].String()
	})
	for _, m := range hot {
		log.Infof("%s: %d invocations", m, metrics.Invocations(m))
	}
}
