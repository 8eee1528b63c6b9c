package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"testing"

	"github.com/23skdu/reduced/internal/config"
	rerrors "github.com/23skdu/reduced/internal/errors"
	"github.com/23skdu/reduced/internal/simd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runArgs(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Cleanup(func() { _ = simd.Use("auto") })
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), append([]string{"-env-file", ""}, args...), &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

func TestRun_Uniform(t *testing.T) {
	out, logs, err := runArgs(t, "-size", "4096", "-iterations", "2", "-workers", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "--- complex_sum_soa ---")
	assert.Contains(t, out, "Iterations:  2")
	assert.Contains(t, out, "Result:      (2048, 2048)")
	assert.Contains(t, out, "Verify:      PASS")
	assert.Contains(t, logs, "Reduced benchmark starting")
}

func TestRun_RampWithGenericSum(t *testing.T) {
	out, _, err := runArgs(t, "-size", "4", "-iterations", "1", "-fill", "ramp", "-simd", "generic")
	require.NoError(t, err)
	assert.Contains(t, out, "Result:      (5120, 5120)")
	assert.Contains(t, out, "Verify:      PASS")
}

func TestRun_EnvironmentConfig(t *testing.T) {
	t.Setenv("REDUCED_SIZE", "1000")
	t.Setenv("REDUCED_ITERATIONS", "3")
	t.Setenv("REDUCED_LOG_LEVEL", "debug")

	out, logs, err := runArgs(t)
	require.NoError(t, err)
	assert.Contains(t, out, "Size:        1000")
	assert.Contains(t, out, "Iterations:  3")
	assert.Contains(t, logs, "Kernel run complete")
}

func TestRun_MemoryLimit(t *testing.T) {
	t.Setenv("REDUCED_MAX_MEMORY", "1024")
	out, _, err := runArgs(t, "-size", "4096")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrAllocation))
	assert.Empty(t, out)
}

func TestRun_InvalidSimd(t *testing.T) {
	_, _, err := runArgs(t, "-size", "16", "-simd", "quantum")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrConfiguration))
}

func TestRun_InvalidFill(t *testing.T) {
	_, _, err := runArgs(t, "-size", "16", "-fill", "sawtooth")
	require.Error(t, err)
	assert.True(t, errors.Is(err, rerrors.ErrConfiguration))
	assert.True(t, errors.Is(err, config.ErrInvalidFill))
}

func TestRun_BadFlag(t *testing.T) {
	_, stderr, err := runArgs(t, "-no-such-flag")
	require.Error(t, err)
	assert.Contains(t, stderr, "no-such-flag")

	_, _, err = runArgs(t, "-h")
	assert.ErrorIs(t, err, flag.ErrHelp)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"-env-file", "", "-size", "64"}, &stdout, &stderr)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApplyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	applyFlags(&cfg, 0, -1, 0, "", "", "")
	assert.Equal(t, config.DefaultConfig(), cfg)

	applyFlags(&cfg, 8, 0, 4, "ramp", "generic", ":9090")
	assert.Equal(t, 8, cfg.Size)
	assert.Equal(t, 0, cfg.Workers)
	assert.Equal(t, 4, cfg.Iterations)
	assert.Equal(t, "ramp", cfg.Fill)
	assert.Equal(t, "generic", cfg.SIMD)
	assert.Equal(t, ":9090", cfg.MetricsAddr)
}
