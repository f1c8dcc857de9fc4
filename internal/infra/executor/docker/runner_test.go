package docker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
)

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, "ghcr.io/joernio/joern:nightly", cfg.Image)
	assert.Equal(t, "linux/amd64", cfg.Platform)
	assert.Equal(t, "docker", cfg.DockerBin)
	assert.Equal(t, 300*time.Second, cfg.Timeout)
	assert.NotEmpty(t, cfg.JavaOpts)

	cfg = Config{Image: "joern:local", Timeout: time.Minute}.withDefaults()
	assert.Equal(t, "joern:local", cfg.Image)
	assert.Equal(t, time.Minute, cfg.Timeout)
}

func TestJavaFlags(t *testing.T) {
	assert.Equal(t, []string{"-J-Xmx8g", "-J-Dfile.encoding=UTF-8"},
		javaFlags([]string{"-Xmx8g", "-Dfile.encoding=UTF-8"}))
}

func TestReadOutputs(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, functionsFile),
		[]byte(`[{"name":"main","file":"main.c","lineNumber":1,"code":"int main() {}"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, callGraphFile),
		[]byte(`[{"name":"add","method":"main","file":"main.c","lineNumber":2}]`), 0o644))

	funcs, calls, err := readOutputs(dir)
	require.NoError(t, err)
	require.Len(t, funcs, 1)
	require.Len(t, calls, 1)
	assert.Equal(t, "main", funcs[0].Name)
	assert.Equal(t, "add", calls[0].Name)
}

func TestReadOutputsMissingFile(t *testing.T) {
	_, _, err := readOutputs(t.TempDir())
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindEngineFailure))
}

func TestReadOutputsMalformedPayload(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, functionsFile),
		[]byte(`Exception in thread "main" java.lang.OutOfMemoryError`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, callGraphFile), []byte(`[]`), 0o644))

	_, _, err := readOutputs(dir)
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindCleaningError))
}

func TestRunErrKinds(t *testing.T) {
	ctx := context.Background()
	err := runErr(ctx, "engine command", errors.New("exit status 1"), "boom")
	assert.True(t, domain.IsKind(err, domain.KindEngineFailure))
	assert.Contains(t, err.Error(), "stderr=boom")

	dctx, cancel := context.WithDeadline(ctx, time.Now().Add(-time.Second))
	defer cancel()
	err = runErr(dctx, "engine command", errors.New("signal: killed"), "")
	assert.True(t, domain.IsKind(err, domain.KindEngineTimeout))
}
