package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/715d/pointsto/pkg/pointsto"
)

func writeResults(w io.Writer, report *pointsto.Report, cfg *Config) error {
	funcs := selectFunctions(report, cfg.Funcs)

	var output string
	if cfg.JSON {
		var err error
		output, err = formatJSONOutput(report, funcs)
		if err != nil {
			return err
		}
	} else {
		output = formatTextOutput(report, funcs, cfg)
	}

	_, err := io.WriteString(w, output)
	return err
}

// selectFunctions returns the reports of names, or every report when names
// is empty. Unknown names are logged and skipped.
func selectFunctions(report *pointsto.Report, names []string) []pointsto.FunctionReport {
	if len(names) == 0 {
		return report.Functions
	}
	var out []pointsto.FunctionReport
	for _, name := range names {
		fr, ok := report.Function(name)
		if !ok {
			slog.Warn("function not analyzed", "func", name)
			continue
		}
		out = append(out, fr)
	}
	return out
}

func formatJSONOutput(report *pointsto.Report, funcs []pointsto.FunctionReport) (string, error) {
	data, err := json.MarshalIndent(jOutput{
		Functions: funcs,
		Stats:     report.Stats,
		Options:   report.Options,
		Version:   version,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling json output: %w", err)
	}
	return string(data) + "\n", nil
}

func formatTextOutput(report *pointsto.Report, funcs []pointsto.FunctionReport, cfg *Config) string {
	var output strings.Builder

	if cfg.Verbose {
		s := report.Stats
		slog.Info("",
			"functions", s.Functions,
			"clones", s.Clones,
			"types", s.Types,
			"objects", s.Objects,
			"contexts", s.Contexts,
			"collapses", s.Collapses,
			"recursive_components", s.RecursiveComponents,
			"rounds", s.Rounds,
			"converged", s.Converged,
			"analysis_duration", s.Duration.String())
	}

	for _, f := range funcs {
		fmt.Fprintf(&output, "%s:%d:%d %s", f.Position.Filename, f.Position.Line, f.Position.Column, f.Name)
		if cfg.Verbose {
			fmt.Fprintf(&output, " (%d contexts)", len(f.Contexts))
			if f.Recursive {
				output.WriteString(" recursive")
			}
		}
		output.WriteString("\n")

		for _, p := range f.Params {
			writeValue(&output, "param", p)
		}
		for _, r := range f.Results {
			writeValue(&output, "result", r)
		}
		if cfg.Verbose {
			for _, ctx := range f.Contexts {
				fmt.Fprintf(&output, "    context %s\n", ctx)
			}
		}
	}

	// Assertions go last so they are easy to grep.
	for _, f := range funcs {
		for _, a := range f.FailedAssertions {
			if a.Suppressed && !cfg.Verbose {
				continue
			}
			fmt.Fprintf(&output, "%s:%d:%d type assertion .(%s) may fail for %s",
				a.Position.Filename, a.Position.Line, a.Position.Column, a.Asserted, strings.Join(a.Failing, ", "))
			if a.Suppressed {
				fmt.Fprintf(&output, " (suppressed: %s)", a.Reason)
			}
			output.WriteString("\n")
		}
	}

	return output.String()
}

// writeValue writes one line per value, skipping values that never hold a
// reference.
func writeValue(b *strings.Builder, kind string, v pointsto.ValueReport) {
	if len(v.Types) == 0 && !v.CanBeNull {
		return
	}
	types := slices.Clone(v.Types)
	if v.CanBeNull {
		types = append(types, "nil")
	}
	fmt.Fprintf(b, "    %s %s %s: %s", kind, v.Name, v.Type, strings.Join(types, " | "))
	if v.Merged {
		b.WriteString(" (merged)")
	}
	b.WriteString("\n")
}

type jOutput struct {
	Functions []pointsto.FunctionReport `json:"functions"`
	Stats     any                       `json:"stats"`
	Options   any                       `json:"options"`
	Version   string                    `json:"version"`
	Timestamp string                    `json:"timestamp"`
}
