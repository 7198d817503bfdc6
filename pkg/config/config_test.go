package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 500*time.Millisecond, cfg.Camera.Settle.D())
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "booth.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"port": 8080,
		"camera": {"width": 640, "height": 480, "captureTimeout": "3s", "controls": {"10094849": 1}},
		"storage": {"dir": "/var/lib/booth", "maxAge": "24h"}
	}`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 640, cfg.Camera.Width)
	assert.Equal(t, 30, cfg.Camera.FPS)
	// the still capture bound is fixed, a stale captureTimeout key changes nothing
	assert.Equal(t, Default().Camera.Settle, cfg.Camera.Settle)
	assert.Len(t, cfg.Camera.Settings(), 1)
	assert.Equal(t, "/var/lib/booth", cfg.Storage.Dir)
	assert.Equal(t, 24*time.Hour, cfg.Storage.MaxAge.D())
	assert.Equal(t, time.Hour, cfg.Storage.SweepInterval.D())
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"camera": {"hotplugSettle": 8}}`), 0o644))
	_, err := Load(bad)
	assert.Error(t, err)

	port := filepath.Join(dir, "port.json")
	require.NoError(t, os.WriteFile(port, []byte(`{"port": 0}`), 0o644))
	_, err = Load(port)
	assert.Error(t, err)

	settle := filepath.Join(dir, "settle.json")
	require.NoError(t, os.WriteFile(settle, []byte(`{"camera": {"hotplugSettle": "-1s"}}`), 0o644))
	_, err = Load(settle)
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDurationJSON(t *testing.T) {
	b, err := json.Marshal(Duration(90 * time.Second))
	require.NoError(t, err)
	assert.Equal(t, `"1m30s"`, string(b))
}
