package util

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvDefaults(t *testing.T) {
	t.Setenv("TEST_STR", "hello")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BOOL", "true")
	t.Setenv("TEST_DUR", "30s")

	assert.Equal(t, "hello", GetEnvDefault("TEST_STR", "fallback"))
	assert.Equal(t, "fallback", GetEnvDefault("TEST_UNSET", "fallback"))

	assert.EqualValues(t, 42, GetIntEnvDefault("TEST_INT", 7))
	assert.EqualValues(t, 7, GetIntEnvDefault("TEST_UNSET", 7))

	assert.True(t, GetBoolEnvDefault("TEST_BOOL", false))
	assert.True(t, GetBoolEnvDefault("TEST_UNSET", true))

	assert.Equal(t, 30*time.Second, GetDurationEnvDefault("TEST_DUR", time.Minute))
	assert.Equal(t, time.Minute, GetDurationEnvDefault("TEST_UNSET", time.Minute))
}

func TestLoadEnv(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		os.Unsetenv("FOO_FROM_FILE")
		os.Unsetenv("QUOTED")
	})

	assert.Error(t, LoadEnv("dev")) // no file yet

	content := "# comment\nFOO_FROM_FILE=abc\nQUOTED=\"with quotes\"\nPRESET=file-value\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.dev"), []byte(content), 0o644))
	t.Setenv("PRESET", "env-value")

	assert.NoError(t, LoadEnv("dev"))
	assert.Equal(t, "abc", GetEnv("FOO_FROM_FILE"))
	assert.Equal(t, "with quotes", GetEnv("QUOTED"))
	// Real environment wins over the file.
	assert.Equal(t, "env-value", GetEnv("PRESET"))
}
