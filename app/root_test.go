package app

import (
	"bytes"
	"context"
	"marketplace-watcher/config"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommandHasSubcommands(t *testing.T) {
	assert.Equal(t, "marketwatch", RootCmd.Use)

	found := map[string]bool{}
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Use] = true
	}
	for _, name := range []string{"run", "once", "serve", "export"} {
		assert.True(t, found[name], "missing subcommand %s", name)
	}

	flag := RootCmd.PersistentFlags().Lookup("config")
	require.NotNil(t, flag)
	assert.NotEmpty(t, flag.Usage)
}

func TestBuildCycle_RequiresSources(t *testing.T) {
	_, _, err := buildCycle(context.Background(), config.DefaultConfig(), zerolog.Nop())
	assert.Error(t, err)
}

func TestBuildCycle_WithoutArchive(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.SourceURLs = []string{"https://www.facebook.com/marketplace/brisbane/cars"}

	cycle, cleanup, err := buildCycle(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NotNil(t, cycle)
	cleanup()
}

func TestExportCommand(t *testing.T) {
	dir := t.TempDir()
	storePath := filepath.Join(dir, "saved_listings.json")
	require.NoError(t, os.WriteFile(storePath,
		[]byte(`{"http://x/1":{"price":{"current":"9,000"},"name":"Civic","location":"Perth","kilometers":"80K km","url":"http://x/1"}}`), 0o644))

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+storePath+"\nlog:\n  level: error\n"), 0o644))
	outPath := filepath.Join(dir, "out.csv")

	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetArgs([]string{"export", "--config", cfgPath, "--out", outPath})
	t.Cleanup(func() {
		RootCmd.SetArgs(nil)
		RootCmd.SetOut(nil)
	})

	require.NoError(t, RootCmd.Execute())
	assert.Contains(t, out.String(), "Exported 1 listings")

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Civic")
}

func TestExportCommand_MissingStore(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("store:\n  path: "+filepath.Join(dir, "none.json")+"\nlog:\n  level: error\n"), 0o644))

	RootCmd.SetArgs([]string{"export", "--config", cfgPath, "--out", filepath.Join(dir, "out.csv")})
	t.Cleanup(func() { RootCmd.SetArgs(nil) })

	err := RootCmd.Execute()
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "out.csv"))
	assert.True(t, os.IsNotExist(statErr))
}
