package main

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	code, err := run(out, &bytes.Buffer{}, []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	assert.Equal(t, 0, code)
	assert.Contains(t, out.String(), "Usage:", "expected help text on the output buffer")
}

func TestRun_UsageError(t *testing.T) {
	t.Parallel()

	code, err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{"-fleet", "2"})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "api-endpoint")
}

func TestRun_DryRunPrintsEnvironment(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	code, err := run(out, &bytes.Buffer{}, []string{"-dry-run", "--", "--steps", "100"})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	text := out.String()
	assert.Contains(t, text, "profile: default")
	assert.Contains(t, text, "python3 main.py --steps 100")
	for _, kv := range []string{
		"LD_PRELOAD=/usr/lib/x86_64-linux-gnu/libtcmalloc.so.4",
		"TF_CPP_MIN_LOG_LEVEL=4",
		"XRT_TPU_CONFIG=localservice;0;localhost:51011",
		"XLA_FLAGS=--xla_force_host_platform_device_count=48",
		"TCMALLOC_LARGE_ALLOC_REPORT_THRESHOLD=60000000000",
		"JAX_ENABLE_X64=0",
		"JAX_DEFAULT_DTYPE_BITS=32",
	} {
		assert.Contains(t, text, kv)
	}
}

func TestRun_MissingDownstreamBinary(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	configHCL := `
profile "ghost" {
  command = "binary-that-does-not-exist-5a6b7c"
  env     = {}
}
`
	writeFile(t, dir+"/launch.hcl", configHCL)

	code, err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{
		"-config", dir, "-profile", "ghost", "-spawn",
	})
	require.Error(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, err.Error(), "failed to execute")
}

func TestRun_SpawnPropagatesExitCode(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir+"/launch.hcl", `
profile "fail" {
  command = "false"
  env     = {}
}
`)

	code, err := run(&bytes.Buffer{}, &bytes.Buffer{}, []string{
		"-config", dir, "-profile", "fail", "-spawn",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0644))
}
