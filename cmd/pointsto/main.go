// Package main implements the CLI driver for the pointsto analyzer.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/715d/pointsto/pkg/pointsto"
	"github.com/715d/pointsto/pkg/typestate"
)

// Config holds all command-line configuration options for the analyzer.
type Config struct {
	Packages     []string // the Go packages to analyze
	Verbose      bool     // enables detailed output and statistics
	JSON         bool     // enables JSON output format
	BuildTags    []string // build tags to use during package loading
	Profile      bool     // enables CPU and memory profiling
	OptionsFile  string   // YAML file with engine options
	MaxRounds    int      // bound on propagation rounds
	Strict       bool     // only main, init and tests are entry points
	SkipTests    bool     // do not load test files
	FailOnAssert bool     // exit with exitFailingAssertions when assertions may fail
	Funcs        []string // only report these functions

	// Options are the engine parameters after merging the file and flags.
	Options typestate.Options
}

const (
	exitFailingAssertions = 1
	exitError             = 2
)

var (
	// Set via ldflags during build.
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

var cfg = Config{Options: typestate.DefaultOptions()}

func main() {
	rootCmd := newRootCmd()

	if err := rootCmd.Execute(); err != nil {
		_ = teardown(nil, nil)
		if err.Error() != "" {
			fmt.Fprintln(os.Stderr, err.Error())
		}
		var cErr *codedError
		if errors.As(err, &cErr) {
			os.Exit(cErr.code)
		}
		os.Exit(exitError)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pointsto [packages...]",
		Short: "Compute the types Go values may point to",
		Long: `pointsto runs a context-sensitive points-to analysis over Go programs.

For every reachable function it reports:
- The exact types each parameter and result may hold, and whether it may be nil
- The calling contexts the function was analyzed in
- Type assertions that may panic because a non-matching type reaches them`,
		Example: `  pointsto ./...                         # Analyze all packages
  pointsto --func main.run ./cmd/app     # Report a single function
  pointsto --calling-depth 3 ./...       # Deeper calling contexts
  pointsto --config pointsto.yaml ./...  # Options from a file
  pointsto --json . > report.json        # JSON output to file
  pointsto --fail-on-assert ./...        # Exit 1 on possibly failing assertions`,
		Args:               cobra.ArbitraryArgs,
		RunE:               runCommand,
		PersistentPreRunE:  setup,
		PersistentPostRunE: teardown,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Version:            version,
	}

	// Set custom version template to include build info.
	rootCmd.SetVersionTemplate(fmt.Sprintf("pointsto version %s\n  commit: %s\n  built:  %s\n", version, gitCommit, buildTime))

	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable verbose output")
	flags.BoolVar(&cfg.JSON, "json", false, "Output in JSON format")
	flags.StringSliceVar(&cfg.BuildTags, "build-tags", []string{}, "Build tags to use during package loading")
	flags.BoolVar(&cfg.Profile, "profile", false, "Enable CPU and memory profiling (writes cpu.prof and mem.prof to current directory)")
	flags.StringVar(&cfg.OptionsFile, "config", "", "YAML file with analysis options; explicitly set flags take precedence")
	flags.IntVar(&cfg.MaxRounds, "max-rounds", 0, "Maximum number of propagation rounds (0 for the default)")
	flags.BoolVar(&cfg.Strict, "strict", false, "Only use main, init and test functions as entry points")
	flags.BoolVar(&cfg.SkipTests, "skip-tests", false, "Do not load test files")
	flags.BoolVar(&cfg.FailOnAssert, "fail-on-assert", false, "Exit with status 1 when a type assertion may fail")
	flags.StringSliceVar(&cfg.Funcs, "func", nil, "Only report the named functions")

	defaults := typestate.DefaultOptions()
	flags.IntVar(&cfg.Options.MaxCallingContextDepth, "calling-depth", defaults.MaxCallingContextDepth, "Maximum calling context depth")
	flags.IntVar(&cfg.Options.MaxHeapContextDepth, "heap-depth", defaults.MaxHeapContextDepth, "Maximum heap context depth")
	flags.IntVar(&cfg.Options.MaxObjectSetSize, "max-object-set", defaults.MaxObjectSetSize, "Objects of one type a value may hold before they merge into one")
	flags.BoolVar(&cfg.Options.AllocationSiteSensitiveHeap, "allocation-sensitive", defaults.AllocationSiteSensitiveHeap, "Distinguish objects by allocation site and context")
	flags.BoolVar(&cfg.Options.HybridStaticContext, "hybrid-static", defaults.HybridStaticContext, "Extend calling contexts at static call sites")
	flags.BoolVar(&cfg.Options.ExtendedAsserts, "extended-asserts", defaults.ExtendedAsserts, "Check engine invariants (slow)")

	return rootCmd
}

func runCommand(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		cfg.Packages = args
	} else {
		cfg.Packages = []string{"./..."}
	}

	opts, err := resolveOptions(cmd.Flags(), cfg.OptionsFile, cfg.Options)
	if err != nil {
		return errWithCode(err, exitError)
	}
	cfg.Options = opts

	slog.Info("starting points-to analysis", "packages", cfg.Packages)

	report, err := runAnalysis(cmd.Context(), &cfg)
	if err != nil {
		return errWithCode(fmt.Errorf("analyze: %w", err), exitError)
	}

	if err := writeResults(os.Stdout, report, &cfg); err != nil {
		return errWithCode(fmt.Errorf("format results: %w", err), exitError)
	}

	if cfg.FailOnAssert && report.FailingAssertions() > 0 {
		return errWithCode(nil, exitFailingAssertions)
	}
	return nil
}

// optionFlags maps option flags to the fields they set.
var optionFlags = map[string]func(dst *typestate.Options, src typestate.Options){
	"calling-depth":        func(d *typestate.Options, s typestate.Options) { d.MaxCallingContextDepth = s.MaxCallingContextDepth },
	"heap-depth":           func(d *typestate.Options, s typestate.Options) { d.MaxHeapContextDepth = s.MaxHeapContextDepth },
	"max-object-set":       func(d *typestate.Options, s typestate.Options) { d.MaxObjectSetSize = s.MaxObjectSetSize },
	"allocation-sensitive": func(d *typestate.Options, s typestate.Options) { d.AllocationSiteSensitiveHeap = s.AllocationSiteSensitiveHeap },
	"hybrid-static":        func(d *typestate.Options, s typestate.Options) { d.HybridStaticContext = s.HybridStaticContext },
	"extended-asserts":     func(d *typestate.Options, s typestate.Options) { d.ExtendedAsserts = s.ExtendedAsserts },
}

// resolveOptions returns the options from path, or the defaults, with every
// explicitly set flag applied on top.
func resolveOptions(flags *pflag.FlagSet, path string, fromFlags typestate.Options) (typestate.Options, error) {
	if path == "" {
		if err := fromFlags.Validate(); err != nil {
			return typestate.Options{}, fmt.Errorf("invalid options: %w", err)
		}
		return fromFlags, nil
	}

	opts, err := typestate.LoadOptions(path)
	if err != nil {
		return typestate.Options{}, fmt.Errorf("loading config %s: %w", path, err)
	}
	for name, apply := range optionFlags {
		if flags.Changed(name) {
			apply(&opts, fromFlags)
		}
	}
	if err := opts.Validate(); err != nil {
		return typestate.Options{}, fmt.Errorf("invalid options: %w", err)
	}
	return opts, nil
}

func runAnalysis(ctx context.Context, cfg *Config) (*pointsto.Report, error) {
	start := time.Now()

	slog.Info("loading packages", "packages", cfg.Packages)
	if len(cfg.BuildTags) > 0 {
		slog.Info("using build tags", "tags", cfg.BuildTags)
	}

	pkgs, err := pointsto.LoadPackages(ctx, pointsto.LoaderOptions{
		Packages:  cfg.Packages,
		BuildTags: cfg.BuildTags,
		SkipTests: cfg.SkipTests,
	})
	if err != nil {
		return nil, fmt.Errorf("loading packages: %w", err)
	}
	slog.Info("loaded packages", "num", len(pkgs))

	slog.Info("running analysis", "options", cfg.Options)
	analyzer := pointsto.NewAnalyzer(pointsto.AnalyzerOptions{
		Options:   cfg.Options,
		MaxRounds: cfg.MaxRounds,
		Strict:    cfg.Strict,
	})
	report, err := analyzer.Analyze(ctx, pkgs)
	if err != nil {
		return nil, fmt.Errorf("analyze packages: %w", err)
	}
	slog.Info("analysis completed", "dur", time.Since(start), "converged", report.Stats.Converged)

	return report, nil
}

var cpuProfile *os.File

func setup(_ *cobra.Command, _ []string) error {
	// Disable logger unless verbose flag is set.
	slog.SetDefault(slog.New(slog.DiscardHandler))
	if cfg.Verbose {
		opts := &slog.HandlerOptions{Level: slog.LevelDebug}
		var handler slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.JSON {
			handler = slog.NewJSONHandler(os.Stderr, opts)
		}
		slog.SetDefault(slog.New(handler))
	}

	if !cfg.Profile {
		return nil
	}

	var err error
	cpuProfile, err = os.Create("cpu.prof")
	if err != nil {
		return fmt.Errorf("creating cpu.prof: %w", err)
	}
	if err := pprof.StartCPUProfile(cpuProfile); err != nil {
		_ = cpuProfile.Close()
		return fmt.Errorf("starting CPU profile: %w", err)
	}
	slog.Info("cpu profiling started", "file", "cpu.prof")
	return nil
}

func teardown(_ *cobra.Command, _ []string) error {
	if !cfg.Profile || cpuProfile == nil {
		return nil
	}

	pprof.StopCPUProfile()
	defer cpuProfile.Close()
	cpuProfile = nil
	slog.Info("cpu profiling stopped", "file", "cpu.prof")

	memFile, err := os.Create("mem.prof")
	if err != nil {
		return fmt.Errorf("creating mem.prof: %w", err)
	}
	defer memFile.Close()
	runtime.GC() // Get up-to-date statistics
	if err := pprof.WriteHeapProfile(memFile); err != nil {
		return fmt.Errorf("writing memory profile: %w", err)
	}
	slog.Info("memory profiling completed", "file", "mem.prof")
	return nil
}

func errWithCode(err error, code int) error {
	return &codedError{err: err, code: code}
}

type codedError struct {
	err  error
	code int
}

func (e *codedError) Error() string {
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e *codedError) Unwrap() error { return e.err }
