package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func confDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"app.toml":      "name = \"svc\"\nlevel = \"info\"\n[db.orders]\nhost = \"db1\"\nport = 5432\nurl = \"pg://${db.orders.host}:${db.orders.port}\"\n",
		"app-prod.yaml": "level: warn\n",
	}
	for name, data := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(data), 0o644))
	}
	return dir
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), err
}

func TestCandidates(t *testing.T) {
	out, err := execute(t, "candidates", "app", "--var", "env=prod", "--var", "region=us")
	require.NoError(t, err)
	assert.Equal(t, "app-prod-us\napp-prod\napp\n", out)

	out, err = execute(t, "candidates", "app", "--var", "env=prod", "--var", "region=us", "--strategy", "suffix")
	require.NoError(t, err)
	assert.Equal(t, "app-us\napp-prod\napp\n", out)

	_, err = execute(t, "candidates", "app", "--var", "bad")
	assert.Error(t, err)
}

func TestCandidates_WithDir(t *testing.T) {
	dir := confDir(t)
	out, err := execute(t, "candidates", "app", "--var", "env=prod", "--dir", dir)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], filepath.Join(dir, "app-prod.yaml"))
	assert.Contains(t, lines[1], filepath.Join(dir, "app.toml"))
}

func TestGet(t *testing.T) {
	dir := confDir(t)

	out, err := execute(t, "get", "level", "--dir", dir, "--app", "app", "--var", "env=prod")
	require.NoError(t, err)
	assert.Equal(t, "warn\n", out)

	out, err = execute(t, "get", "db.orders.url", "--dir", dir, "--app", "app")
	require.NoError(t, err)
	assert.Equal(t, "pg://db1:5432\n", out)

	out, err = execute(t, "get", "level", "--dir", dir, "--app", "app", "--var", "env=prod", "--layer")
	require.NoError(t, err)
	assert.Equal(t, "warn\t(application/app-prod)\n", out)

	out, err = execute(t, "get", "missing", "--dir", dir, "--default", "fallback")
	require.NoError(t, err)
	assert.Equal(t, "fallback\n", out)

	_, err = execute(t, "get", "missing", "--dir", dir)
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	dir := confDir(t)

	out, err := execute(t, "dump", "--dir", dir, "--app", "app", "--var", "env=prod")
	require.NoError(t, err)
	assert.Contains(t, out, "[application]\n")
	assert.Contains(t, out, "  [app-prod]\n")
	assert.Contains(t, out, "    level = warn\n")

	out, err = execute(t, "dump", "--dir", dir, "--app", "app", "--format", "json")
	require.NoError(t, err)
	require.True(t, gjson.Valid(out), out)
	assert.Equal(t, "info", gjson.Get(out, "level").String())
	assert.Equal(t, int64(5432), gjson.Get(out, "db.orders.port").Int())
	assert.Equal(t, "pg://db1:5432", gjson.Get(out, "db.orders.url").String())

	_, err = execute(t, "dump", "--dir", dir, "--format", "xml")
	assert.Error(t, err)
}

func TestBind(t *testing.T) {
	dir := confDir(t)

	out, err := execute(t, "bind", "db.${name}", "--param", "name=orders", "--dir", dir, "--app", "app")
	require.NoError(t, err)
	assert.Contains(t, out, "# db.orders\n")
	assert.Contains(t, out, "host = db1\n")
	assert.Contains(t, out, "url  = pg://db1:5432\n")

	_, err = execute(t, "bind", "db.${name}", "--dir", dir)
	assert.Error(t, err)
}

func TestLogFlags(t *testing.T) {
	_, err := execute(t, "candidates", "app", "--log-level", "loud")
	assert.ErrorContains(t, err, "invalid log level")

	_, err = execute(t, "candidates", "app", "--log-format", "xml")
	assert.ErrorContains(t, err, "invalid log format")

	_, err = execute(t, "candidates", "app", "--log-level", "debug", "--log-format", "json")
	assert.NoError(t, err)
}

func TestEnvDefaults(t *testing.T) {
	dir := confDir(t)
	t.Setenv("STRATA_DIR", dir)
	t.Setenv("STRATA_APP", "app")

	out, err := execute(t, "get", "name")
	require.NoError(t, err)
	assert.Equal(t, "svc\n", out)
}

func TestWatch_TracksKeys(t *testing.T) {
	dir := confDir(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(&stdout, &stderr)
	cmd.SetArgs([]string{"watch", "--dir", dir, "--app", "app", "--track", "level", "--track", "db.orders.url"})
	require.NoError(t, cmd.ExecuteContext(ctx))

	assert.Contains(t, stdout.String(), "level = info\n")
	assert.Contains(t, stdout.String(), "db.orders.url = pg://db1:5432\n")
}

func TestOpenMeteredRoot_ObservesProperties(t *testing.T) {
	opts := &globalOptions{
		dirs:   []string{confDir(t)},
		app:    "app",
		stdout: io.Discard,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	root, reg, m, err := openMeteredRoot(opts, true)
	require.NoError(t, err)
	defer root.Close()
	require.NotNil(t, m)

	printer := &eventPrinter{w: io.Discard}
	stop := printer.track(root.Properties(), "level")
	defer stop()

	families, err := reg.Gather()
	require.NoError(t, err)
	var resolutions float64
	for _, f := range families {
		if f.GetName() != "strata_property_resolutions_total" {
			continue
		}
		for _, metric := range f.GetMetric() {
			resolutions += metric.GetCounter().GetValue()
		}
	}
	assert.Positive(t, resolutions)

	root, reg, m, err = openMeteredRoot(opts, false)
	require.NoError(t, err)
	defer root.Close()
	assert.Nil(t, reg)
	assert.Nil(t, m)
}
