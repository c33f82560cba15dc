package control

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/momentics/hioload-io/api"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 4096, cfg.Message.DefaultSize)
	assert.Equal(t, 5*time.Second, cfg.Session.DefaultTimeout)
}

func TestParseConfigOverridesDefaults(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
message:
  default_size: 8192
session:
  default_timeout: 250ms
executor:
  workers: 2
log:
  level: debug
  format: json
`))
	require.NoError(t, err)
	assert.Equal(t, 8192, cfg.Message.DefaultSize)
	assert.Equal(t, 250*time.Millisecond, cfg.Session.DefaultTimeout)
	assert.Equal(t, 2, cfg.Executor.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	// untouched keys keep defaults
	assert.Equal(t, 1, cfg.Loops)
	assert.Equal(t, 64, cfg.LoopBatch)
}

func TestParseConfigRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"size":    "message:\n  default_size: 0\n",
		"timeout": "session:\n  default_timeout: -1s\n",
		"loops":   "loops: 0\n",
		"level":   "log:\n  level: loud\n",
		"format":  "log:\n  format: xml\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseConfig([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, api.ErrInvalidArgument))
			assert.Equal(t, api.ErrCodeInvalidArgument, api.CodeOf(err))
		})
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hioload.yaml")
	require.NoError(t, os.WriteFile(path, []byte("loops: 3\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Loops)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestConfigYAMLRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Executor.Workers = 9
	out, err := cfg.YAML()
	require.NoError(t, err)

	back, err := ParseConfig(out)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func TestConfigStoreUpdate(t *testing.T) {
	cs := NewConfigStore(DefaultConfig())

	var calls int
	var seenOld, seenNew int
	cs.OnReload(func(old, cur *Config) {
		calls++
		seenOld = old.Executor.Workers
		seenNew = cur.Executor.Workers
	})

	next := cs.Snapshot().Clone()
	next.Executor.Workers = 16
	require.NoError(t, cs.Update(next))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 4, seenOld)
	assert.Equal(t, 16, seenNew)
	assert.Equal(t, 16, cs.Snapshot().Executor.Workers)

	// the store keeps its own copy
	next.Executor.Workers = 1
	assert.Equal(t, 16, cs.Snapshot().Executor.Workers)

	bad := cs.Snapshot().Clone()
	bad.Loops = 0
	assert.Error(t, cs.Update(bad))
	assert.Equal(t, 1, calls)
}
