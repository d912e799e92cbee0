package docs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/keshon/lavaplay/internal/command"
	"github.com/keshon/lavaplay/internal/command/music"
	"github.com/keshon/lavaplay/pkg/cmd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func musicRegistry(t *testing.T) *cmd.Registry {
	t.Helper()
	r := cmd.NewRegistry()
	require.NoError(t, command.RegisterCommand(r, &music.MusicCommand{}))
	return r
}

func TestCommandSections(t *testing.T) {
	t.Parallel()

	out := CommandSections(musicRegistry(t))
	assert.Contains(t, out, "### 🎵 Music\n\n- **/music**: Control music playback\n")
	assert.Contains(t, out, "  - `/music play <input>`: Play a track or add it to the queue\n")
	assert.Contains(t, out, "  - `/music history`: Show recently played tracks\n")
}

func TestUpdateReadme(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tmpl := filepath.Join(dir, "README.md.tmpl")
	out := filepath.Join(dir, "README.md")
	require.NoError(t, os.WriteFile(tmpl, []byte("# Commands\n\n{{ .CommandSections }}"), 0o644))

	require.NoError(t, UpdateReadme(musicRegistry(t), tmpl, out))

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "# Commands\n\n### 🎵 Music")

	assert.Error(t, UpdateReadme(musicRegistry(t), filepath.Join(dir, "missing.tmpl"), out))
}
