package manifest

import (
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xtclang/xvm-sub016/pkg/bytecode"
	"github.com/xtclang/xvm-sub016/vm/image"
)

func writeFile(t *testing.T, fs afero.Fs, path, content string) {
	t.Helper()
	require.NoError(t, fs.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, afero.WriteFile(fs, path, []byte(content), 0o644))
}

func TestLoadConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/xvm.toml", `
[engine]
op_budget = 5000
max_depth = 64
trace = ["CALL_01", "jmpTrue"]

[cache]
call_chains = 128

[log]
verbosity = 2
file = "xvm.log"

[metrics]
enabled = true
namespace = "test"

[image]
path = ["build", "lib"]

[run]
entries = ["Main.run"]
`)

	c, err := Load(fs, "/proj")
	require.NoError(t, err)

	assert.Equal(t, "/proj", c.Dir)
	assert.Equal(t, Engine{OpBudget: 5000, MaxDepth: 64, Trace: []string{"CALL_01", "jmpTrue"}}, c.Engine)
	assert.Equal(t, 128, c.Cache.CallChains)
	assert.Equal(t, Log{Verbosity: 2, File: "xvm.log"}, c.Log)
	assert.Equal(t, []string{"build", "lib"}, c.Image.Path)
	assert.Equal(t, []string{"Main.run"}, c.Run.Entries)

	opts, err := c.EngineOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 5000, opts.OpBudget)
	assert.Equal(t, 64, opts.MaxDepth)
	assert.Equal(t, []bytecode.Opcode{bytecode.OpCall01, bytecode.OpJmpTrue}, opts.Trace)

	rt := c.RuntimeOptions()
	assert.Equal(t, 128, rt.ChainCacheSize)
	assert.Equal(t, "test", rt.Namespace)
}

func TestLoadConfigDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/xvm.toml", `
[log]
verbosity = 1
`)

	c, err := Load(fs, "/proj")
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Engine, c.Engine)
	assert.Equal(t, def.Cache, c.Cache)
	assert.Equal(t, 1_000_000, c.Engine.OpBudget)
	assert.Equal(t, 1024, c.Engine.MaxDepth)
	assert.Equal(t, 4096, c.Cache.CallChains)
	assert.Equal(t, 1, c.Log.Verbosity)
	assert.Empty(t, c.RuntimeOptions().Namespace, "metrics are off by default")
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"syntax", "[engine\n", "parse error"},
		{"unknown key", "[engine]\nop_budgt = 10\n", "unknown keys: engine.op_budgt"},
		{"budget", "[engine]\nop_budget = 0\n", "engine.op_budget must be positive"},
		{"depth", "[engine]\nmax_depth = -1\n", "engine.max_depth must be positive"},
		{"cache", "[cache]\ncall_chains = -5\n", "cache.call_chains"},
		{"trace", "[engine]\ntrace = [\"NOPE\"]\n", `unknown opcode "NOPE"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			writeFile(t, fs, "/proj/xvm.toml", tt.content)
			_, err := Load(fs, "/proj")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(afero.NewMemMapFs(), "/nowhere")
	assert.Error(t, err)
}

func TestFindAndLoad(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/xvm.toml", "[engine]\nmax_depth = 10\n")
	require.NoError(t, fs.MkdirAll("/proj/src/deep", 0o755))

	c, err := FindAndLoad(fs, "/proj/src/deep")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "/proj", c.Dir)
	assert.Equal(t, 10, c.Engine.MaxDepth)
}

func TestFindAndLoadNone(t *testing.T) {
	c, err := FindAndLoad(afero.NewMemMapFs(), "/empty/dir")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestResolveImage(t *testing.T) {
	fs := afero.NewMemMapFs()
	writeFile(t, fs, "/proj/build/app"+image.Extension, "x")
	writeFile(t, fs, "/proj/lib/util"+image.Extension, "x")
	writeFile(t, fs, "/other/direct"+image.Extension, "x")

	c := Default()
	c.Dir = "/proj"
	c.Image.Path = []string{"build", "lib"}

	tests := []struct {
		name, want string
	}{
		{"/other/direct" + image.Extension, "/other/direct" + image.Extension},
		{"app", "/proj/build/app" + image.Extension},
		{"util" + image.Extension, "/proj/lib/util" + image.Extension},
	}
	for _, tt := range tests {
		got, err := c.ResolveImage(fs, tt.name)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got)
	}

	_, err := c.ResolveImage(fs, "missing")
	assert.ErrorContains(t, err, `image "missing" not found`)
	_, err = c.ResolveImage(fs, "/abs/missing")
	assert.Error(t, err)
}

func TestEntries(t *testing.T) {
	img := &image.Image{Entries: []string{"Image.main"}}
	c := Default()

	assert.Equal(t, []string{"Image.main"}, c.Entries(nil, img))
	c.Run.Entries = []string{"Config.main"}
	assert.Equal(t, []string{"Config.main"}, c.Entries(nil, img))
	assert.Equal(t, []string{"Flag.main"}, c.Entries([]string{"Flag.main"}, img))
}
