package harness

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
	yaml "gopkg.in/yaml.v3"

	"github.com/715d/pointsto/pkg/pointsto"
)

// LoaderConfig configures package loading.
type LoaderConfig struct {
	// Dir is the directory to load packages from.
	Dir string

	// BuildTags are build tags to apply.
	BuildTags []string

	// EnableCGo enables CGo support.
	EnableCGo bool

	// GOOS overrides the target operating system.
	GOOS string

	// GOARCH overrides the target architecture.
	GOARCH string
}

// env returns the process environment adjusted for the configuration. Each
// case is its own module, so workspaces are disabled.
func (c *LoaderConfig) env() []string {
	env := os.Environ()
	cgo := "0"
	if c.EnableCGo {
		cgo = "1"
	}
	env = setEnv(env, "CGO_ENABLED", cgo)
	env = setEnv(env, "GOWORK", "off")
	if c.GOOS != "" {
		env = setEnv(env, "GOOS", c.GOOS)
	}
	if c.GOARCH != "" {
		env = setEnv(env, "GOARCH", c.GOARCH)
	}
	return env
}

// LoadPackages loads every package below the configured directory.
func LoadPackages(t *testing.T, loaderCfg *LoaderConfig) []*packages.Package {
	t.Helper()
	t.Logf("Loading packages from %q", loaderCfg.Dir)
	pkgs, err := pointsto.LoadPackages(t.Context(), pointsto.LoaderOptions{
		Packages:  []string{"./..."},
		BuildTags: loaderCfg.BuildTags,
		Dir:       loaderCfg.Dir,
		Env:       loaderCfg.env(),
	})
	require.NoError(t, err)
	return pkgs
}

// LoadTestCase reads dir/expected.yaml. The case is named by its path
// relative to root.
func LoadTestCase(t *testing.T, dir, root string) *TestCase {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(dir, "expected.yaml"))
	require.NoError(t, err)

	tc := &TestCase{}
	require.NoError(t, yaml.Unmarshal(data, tc), "decoding %s", dir)

	tc.Dir = filepath.Base(dir)
	if rel, err := filepath.Rel(root, dir); err == nil {
		tc.Dir = rel
	}
	return tc
}

// LoadRepositoryPackages clones a git repository and loads its packages.
func LoadRepositoryPackages(t *testing.T, repoCfg *RepoConfig, loaderCfg *LoaderConfig) []*packages.Package {
	t.Helper()

	cloneDir := filepath.Join(t.TempDir(), "repo")
	require.NoError(t, cloneRepository(t.Context(), repoCfg.URL, cloneDir, repoCfg.Ref))

	repoLoaderConfig := *loaderCfg
	repoLoaderConfig.Dir = filepath.Join(cloneDir, repoCfg.Subdir)
	return LoadPackages(t, &repoLoaderConfig)
}

// cloneRepository makes a shallow single-branch clone of ref into dir.
func cloneRepository(ctx context.Context, url, dir, ref string) error {
	args := []string{"clone", "--depth", "1", "--single-branch"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, url, dir)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w\n%s", cmd.String(), err, out)
	}
	return nil
}

// setEnv sets key in env, replacing an existing entry.
func setEnv(env []string, key, value string) []string {
	prefix := key + "="
	for i, e := range env {
		if strings.HasPrefix(e, prefix) {
			env[i] = prefix + value
			return env
		}
	}
	return append(env, prefix+value)
}
