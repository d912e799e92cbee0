package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests here use t.Setenv and therefore cannot run in parallel.

func TestNewDefaults(t *testing.T) {
	t.Setenv("NODE_HOST", "")
	os.Unsetenv("NODE_HOST")

	cfg, err := New()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.NodeHost)
	assert.Equal(t, 80, cfg.NodePort)
	assert.Equal(t, 1, cfg.NodeShardCount)
	assert.Equal(t, 10*time.Second, cfg.NodeSendTimeout)
	assert.Equal(t, "http://localhost:2333", cfg.ResolverURL)
	assert.Equal(t, "datastore.json", cfg.StoragePath)
	assert.True(t, cfg.InitSlashCommands)
	assert.Equal(t, "localhost:80", cfg.NodeAddr())
}

func TestNewFromEnvironment(t *testing.T) {
	t.Setenv("DISCORD_TOKEN", "token")
	t.Setenv("DISCORD_GUILD_BLACKLIST", "1,2")
	t.Setenv("NODE_HOST", "node.internal")
	t.Setenv("NODE_PORT", "2333")
	t.Setenv("NODE_PASSWORD", "youshallnotpass")
	t.Setenv("NODE_SHARD_COUNT", "4")
	t.Setenv("NODE_SEND_TIMEOUT", "3s")
	t.Setenv("RESOLVER_URL", "http://resolver:9000")

	cfg, err := New()
	require.NoError(t, err)
	require.NoError(t, cfg.RequireDiscord())

	assert.Equal(t, []string{"1", "2"}, cfg.DiscordGuildBlacklist)

	n := cfg.Node("987")
	assert.Equal(t, "node.internal", n.Host)
	assert.Equal(t, 2333, n.Port)
	assert.Equal(t, 4, n.ShardCount)
	assert.Equal(t, "987", n.UserID)
	assert.Equal(t, "youshallnotpass", n.Password)
	assert.Equal(t, 3*time.Second, n.SendTimeout)

	r := cfg.Resolver()
	assert.Equal(t, "http://resolver:9000", r.BaseURL)
	assert.Equal(t, "youshallnotpass", r.Password)
}

func TestNodeUserIDOverride(t *testing.T) {
	t.Setenv("NODE_USER_ID", "42")

	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "42", cfg.Node("987").UserID)
}

func TestNewRejectsBadValues(t *testing.T) {
	tests := []struct {
		name    string
		key     string
		value   string
		wantErr string
	}{
		{name: "port not a number", key: "NODE_PORT", value: "eighty", wantErr: "parse environment"},
		{name: "port out of range", key: "NODE_PORT", value: "70000", wantErr: "NODE_PORT"},
		{name: "no shards", key: "NODE_SHARD_COUNT", value: "0", wantErr: "NODE_SHARD_COUNT"},
		{name: "bad timeout", key: "NODE_SEND_TIMEOUT", value: "soon", wantErr: "parse environment"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv(tc.key, tc.value)
			_, err := New()
			assert.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestRequireDiscord(t *testing.T) {
	cfg := &Config{}
	assert.ErrorContains(t, cfg.RequireDiscord(), "DISCORD_TOKEN")
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("NODE_PASSWORD=from-file\n"), 0o600))

	t.Setenv("NODE_PASSWORD", "")
	os.Unsetenv("NODE_PASSWORD")

	assert.True(t, Load(path))
	cfg, err := New()
	require.NoError(t, err)
	assert.Equal(t, "from-file", cfg.NodePassword)

	assert.False(t, Load(filepath.Join(t.TempDir(), "missing.env")))
}

func TestCategoryWeight(t *testing.T) {
	assert.Less(t, CategoryWeight("🎵 Music"), CategoryWeight("🛠️ Maintenance"))
	assert.Equal(t, 100, CategoryWeight("Other"))
}
