package main

import (
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"http1d/application/web"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseArgsDefaults(t *testing.T) {
	cfg, err := parseArgs(nil, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, defaultConfig(), cfg)
	assert.Equal(t, "127.0.0.1:0", cfg.Address())
	assert.Equal(t, 10*time.Second, cfg.ServerOptions().ReadTimeout)
}

func TestParseArgsFlags(t *testing.T) {
	cfg, err := parseArgs([]string{
		"-host", "::1", "-port", "8080",
		"-read-timeout", "3s", "-max-body", "1024",
		"-dir", "/srv/www", "-compress", "-debug",
	}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "[::1]:8080", cfg.Address())
	assert.Equal(t, 3*time.Second, cfg.ReadTimeout)
	assert.Equal(t, uint64(1024), cfg.MaxBodySize)
	assert.Equal(t, "/srv/www", cfg.Dir)
	assert.True(t, cfg.Compress)

	opts := cfg.ServerOptions()
	assert.True(t, opts.Debug)
	assert.Equal(t, uint64(1024), opts.MaxBodySize)
}

func TestParseArgsErrors(t *testing.T) {
	_, err := parseArgs([]string{"-port", "x"}, io.Discard)
	assert.Error(t, err)

	_, err = parseArgs([]string{"extra"}, io.Discard)
	assert.Error(t, err)

	_, err = parseArgs([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, err = parseArgs([]string{"-config", filepath.Join(t.TempDir(), "missing.yaml")}, io.Discard)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigFileWithFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "http1d.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: 0.0.0.0
port: 9000
read_timeout: 30s
dir: /var/www
no_cache: true
`), 0o600))

	cfg, err := parseArgs([]string{"-config", path, "-port", "9001", "-no-cache=false"}, io.Discard)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "/var/www", cfg.Dir)
	assert.False(t, cfg.NoCache)
	// Untouched by both keeps the default.
	assert.Equal(t, defaultConfig().ShutdownTimeout, cfg.ShutdownTimeout)
}

func TestDecodeConfig(t *testing.T) {
	cfg, err := decodeConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, defaultConfig(), cfg)

	_, err = decodeConfig(strings.NewReader("bogus: 1\n"))
	assert.Error(t, err)

	_, err = decodeConfig(strings.NewReader("read_timeout: soon\n"))
	assert.Error(t, err)
}

func TestNewApp(t *testing.T) {
	app, ok := newApp(Config{NoCache: true}).(*web.App)
	require.True(t, ok)
	assert.True(t, app.PreventCaching)
	assert.IsType(t, web.EchoApp{}, app.Handler)

	app = newApp(Config{Dir: t.TempDir(), Compress: true}).(*web.App)
	cp, ok := app.Handler.(*web.Compress)
	require.True(t, ok)
	assert.IsType(t, &web.FileApp{}, cp.Handler)
}
