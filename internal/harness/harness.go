// Package harness runs the analyzer over the Go programs under testdata and
// checks the reported type states against each case's expected.yaml.
package harness

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/pointsto/pkg/pointsto"
)

// BuildConfiguration represents a single build configuration to test.
type BuildConfiguration struct {
	// Name is a descriptive name for this configuration.
	Name string `yaml:"name"`

	// BuildTags are the build tags to use when loading packages.
	BuildTags []string `yaml:"build_tags"`

	// EnableCGo indicates whether CGo should be enabled.
	EnableCGo bool `yaml:"enable_cgo"`

	// GOOS sets the target operating system.
	GOOS string `yaml:"goos,omitempty"`

	// GOARCH sets the target architecture.
	GOARCH string `yaml:"goarch,omitempty"`

	// Options are decoded over the default analysis options.
	Options yaml.Node `yaml:"options,omitempty"`

	// Strict limits entry points to main, init and tests.
	Strict bool `yaml:"strict,omitempty"`

	// Expect lists the functions to check for this configuration.
	Expect []FuncExpectation `yaml:"expect"`

	// ExpectedErrors lists any expected error messages for this configuration.
	ExpectedErrors []string `yaml:"expected_errors"`
}

// TestCase represents a single test scenario.
type TestCase struct {
	// Dir is the directory containing the test code.
	Dir string `yaml:"-"`

	// Repository contains optional git repository configuration for external testing.
	Repository *RepoConfig `yaml:"repository,omitempty"`

	// BuildConfigurations defines multiple build configurations to test.
	BuildConfigurations []BuildConfiguration `yaml:"build_configurations"`
}

// RepoConfig represents configuration for testing external repositories.
type RepoConfig struct {
	// URL is the git repository URL.
	URL string `yaml:"url"`

	// Ref is the git reference (commit, branch, or tag) to checkout.
	Ref string `yaml:"ref"`

	// Subdir is an optional subdirectory within the repository to test.
	Subdir string `yaml:"subdir,omitempty"`
}

// TestHarness manages test execution.
type TestHarness struct {
	// root is the root directory for test data
	root string
}

// NewHarness creates a new test harness.
func NewHarness(root string) *TestHarness {
	return &TestHarness{root: root}
}

// Run executes a test case with all its build configurations.
func (h *TestHarness) Run(t *testing.T, tc *TestCase) *TestResult {
	t.Helper()
	require.NotEmpty(t, tc.BuildConfigurations, "test case has no build configurations")

	var results []ConfigurationResult
	allSuccess := true
	for _, cfg := range tc.BuildConfigurations {
		cfgResult := h.runConfiguration(t, tc, cfg)
		results = append(results, *cfgResult)
		if !cfgResult.Success {
			allSuccess = false
		}
	}

	var resultMsg string
	if allSuccess {
		resultMsg = fmt.Sprintf("All %d configurations passed", len(tc.BuildConfigurations))
	} else {
		failedCount := 0
		var msgs []string
		for _, cr := range results {
			if !cr.Success {
				failedCount++
				msgs = append(msgs, fmt.Sprintf("[%s] %s:\n  %s",
					cr.Configuration.Name, cr.Message, strings.Join(cr.Details, "\n  ")))
			}
		}
		resultMsg = fmt.Sprintf("%d/%d configurations failed:\n%s",
			failedCount, len(tc.BuildConfigurations), strings.Join(msgs, "\n"))
	}

	return &TestResult{
		TestCase:             tc,
		ConfigurationResults: results,
		Success:              allSuccess,
		Message:              resultMsg,
	}
}

// runConfiguration executes analysis for a single build configuration
func (h *TestHarness) runConfiguration(t *testing.T, tc *TestCase, cfg BuildConfiguration) *ConfigurationResult {
	t.Helper()
	opts, err := decodeOptions(cfg.Options)
	if err != nil {
		return &ConfigurationResult{
			Configuration: cfg,
			Message:       "Invalid expected.yaml",
			Details:       []string{err.Error()},
		}
	}

	loaderConfig := &LoaderConfig{
		BuildTags: cfg.BuildTags,
		EnableCGo: cfg.EnableCGo,
		GOOS:      cfg.GOOS,
		GOARCH:    cfg.GOARCH,
	}

	var pkgs []*packages.Package
	if tc.Repository != nil {
		pkgs = LoadRepositoryPackages(t, tc.Repository, loaderConfig)
	} else {
		loaderConfig.Dir = filepath.Join(h.root, tc.Dir)
		pkgs = LoadPackages(t, loaderConfig)
	}

	report, err := pointsto.NewAnalyzer(pointsto.AnalyzerOptions{
		Options: opts,
		Strict:  cfg.Strict,
	}).Analyze(t.Context(), pkgs)
	if err != nil {
		for _, expectedErr := range cfg.ExpectedErrors {
			if strings.Contains(err.Error(), expectedErr) {
				return &ConfigurationResult{
					Configuration: cfg,
					Success:       true,
					Message:       fmt.Sprintf("Got expected error: %v", err),
				}
			}
		}
		require.NoError(t, err)
	}
	return h.validateConfigurationResults(cfg, report)
}

// validateConfigurationResults compares actual results with expected for a specific build configuration
func (h *TestHarness) validateConfigurationResults(cfg BuildConfiguration, report *pointsto.Report) *ConfigurationResult {
	cfgResult := ConfigurationResult{
		Configuration: cfg,
		Report:        report,
	}

	if err := validateExpectations(cfg.Expect); err != nil {
		cfgResult.Message = fmt.Sprintf("Invalid expected.yaml: %v", err)
		cfgResult.Details = []string{err.Error()}
		return &cfgResult
	}

	var details []string
	if !report.Stats.Converged {
		details = append(details, fmt.Sprintf("analysis did not converge after %d rounds", report.Stats.Rounds))
	}
	for _, exp := range cfg.Expect {
		fr, found := report.Function(exp.FuncName)
		switch {
		case exp.Unreached && found:
			details = append(details, fmt.Sprintf("%s: should not have been reached", exp.FuncName))
		case exp.Unreached:
		case !found:
			details = append(details, fmt.Sprintf("%s: not analyzed", exp.FuncName))
		default:
			details = append(details, h.compareFunction(exp, fr)...)
		}
	}

	cfgResult.Success = len(details) == 0
	cfgResult.Details = details
	if cfgResult.Success {
		cfgResult.Message = fmt.Sprintf("All %d expectations met", len(cfg.Expect))
	} else {
		cfgResult.Message = fmt.Sprintf("Test failed: %d mismatches", len(details))
	}
	return &cfgResult
}

func (h *TestHarness) compareFunction(exp FuncExpectation, fr pointsto.FunctionReport) []string {
	var details []string
	mismatch := func(format string, args ...any) {
		details = append(details, exp.FuncName+": "+fmt.Sprintf(format, args...))
	}

	if exp.Contexts != nil && *exp.Contexts != len(fr.Contexts) {
		mismatch("expected %d contexts, got %d %v", *exp.Contexts, len(fr.Contexts), fr.Contexts)
	}
	if exp.Recursive != nil && *exp.Recursive != fr.Recursive {
		mismatch("expected recursive=%v", *exp.Recursive)
	}
	if exp.Closure != nil && *exp.Closure != fr.Closure {
		mismatch("expected closure=%v", *exp.Closure)
	}
	if exp.File != "" && !strings.HasSuffix(relativeFile(h.root, fr.Position.Filename), exp.File) {
		mismatch("expected file ending with %q, got %q", exp.File, fr.Position.Filename)
	}

	for _, ve := range exp.Params {
		details = append(details, compareValue(exp.FuncName, "param", ve, fr.Params)...)
	}
	for _, ve := range exp.Results {
		details = append(details, compareValue(exp.FuncName, "result", ve, fr.Results)...)
	}

	if exp.FailingAssertions != nil {
		want := *exp.FailingAssertions
		if len(want) != len(fr.FailedAssertions) {
			mismatch("expected %d failing assertions, got %d %v", len(want), len(fr.FailedAssertions), fr.FailedAssertions)
			return details
		}
		for i, w := range want {
			got := fr.FailedAssertions[i]
			if w.Asserted != got.Asserted || !sameSet(w.Failing, got.Failing) || w.Suppressed != got.Suppressed {
				mismatch("assertion %d: expected .(%s) failing for %v (suppressed=%v), got .(%s) failing for %v (suppressed=%v)",
					i, w.Asserted, w.Failing, w.Suppressed, got.Asserted, got.Failing, got.Suppressed)
			}
		}
	}
	return details
}

func compareValue(funcName, kind string, exp ValueExpectation, values []pointsto.ValueReport) []string {
	i := slices.IndexFunc(values, func(v pointsto.ValueReport) bool { return v.Name == exp.Name })
	if i < 0 {
		return []string{fmt.Sprintf("%s: no %s named %q", funcName, kind, exp.Name)}
	}
	got := values[i]

	var details []string
	mismatch := func(format string, args ...any) {
		details = append(details, fmt.Sprintf("%s: %s %s: ", funcName, kind, exp.Name)+fmt.Sprintf(format, args...))
	}
	if !sameSet(exp.Types, got.Types) {
		mismatch("expected types %v, got %v", exp.Types, got.Types)
	}
	if exp.Objects != nil && *exp.Objects != got.Objects {
		mismatch("expected %d objects, got %d", *exp.Objects, got.Objects)
	}
	if exp.CanBeNull != nil && *exp.CanBeNull != got.CanBeNull {
		mismatch("expected can_be_null=%v", *exp.CanBeNull)
	}
	if exp.Merged != nil && *exp.Merged != got.Merged {
		mismatch("expected merged=%v", *exp.Merged)
	}
	return details
}

func sameSet(a, b []string) bool {
	a, b = slices.Clone(a), slices.Clone(b)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

// ConfigurationResult represents the result of running a single build configuration.
type ConfigurationResult struct {
	// Configuration is the build configuration that was run.
	Configuration BuildConfiguration

	// Report is the raw result from the analyzer.
	Report *pointsto.Report

	// Success indicates if this configuration passed.
	Success bool

	// Message provides a summary of the result for this configuration.
	Message string

	// Details provides detailed information about failures for this configuration.
	Details []string
}

// TestResult represents the result of running a test case.
type TestResult struct {
	// TestCase is the test case that was run.
	TestCase *TestCase

	// ConfigurationResults contains results for each build configuration.
	ConfigurationResults []ConfigurationResult

	// Success indicates if the test passed (all configurations passed)
	Success bool

	// Skipped indicates if the test was skipped.
	Skipped bool

	// Message provides a summary of the result.
	Message string
}

// validateExpectations checks that every expectation names a function.
func validateExpectations(expected []FuncExpectation) error {
	for i, exp := range expected {
		if strings.TrimSpace(exp.FuncName) == "" {
			return fmt.Errorf("expectation at index %d has empty or missing 'func' field", i)
		}
		for _, v := range slices.Concat(exp.Params, exp.Results) {
			if v.Name == "" {
				return fmt.Errorf("expectation for %s has a value without 'name'", exp.FuncName)
			}
		}
	}
	return nil
}

// relativeFile returns filename relative to the testdata root, or its base
// name when it lies elsewhere.
func relativeFile(root, filename string) string {
	if filename == "" {
		return ""
	}
	relPath, err := filepath.Rel(root, filename)
	if err != nil {
		return filepath.Base(filename)
	}
	return relPath
}
