package cmd

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadTruncatedFile(t *testing.T) {
	dir := t.TempDir()

	short := filepath.Join(dir, "short.txt")
	require.NoError(t, os.WriteFile(short, []byte("hello thread"), 0o600))
	got, err := readTruncatedFile(short, 2000)
	require.NoError(t, err)
	assert.Equal(t, "hello thread", got)

	long := filepath.Join(dir, "long.txt")
	require.NoError(t, os.WriteFile(long, []byte(strings.Repeat("é", 12)), 0o600))
	got, err = readTruncatedFile(long, 10)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("é", 10)+"...", got)

	exact := filepath.Join(dir, "exact.txt")
	require.NoError(t, os.WriteFile(exact, []byte("abcde"), 0o600))
	got, err = readTruncatedFile(exact, 5)
	require.NoError(t, err)
	assert.Equal(t, "abcde", got)

	_, err = readTruncatedFile(filepath.Join(dir, "missing.txt"), 10)
	require.Error(t, err)
}

func TestPlatformPrompts(t *testing.T) {
	for _, platform := range []string{"x", "linkedin", "facebook", "reply"} {
		assert.NotEmpty(t, platformPrompts[platform], platform)
	}
	_, ok := platformPrompts["myspace"]
	assert.False(t, ok)
}

func TestLocalUser(t *testing.T) {
	t.Setenv("USER", "alice")
	assert.Equal(t, "alice", localUser())

	t.Setenv("USER", "")
	t.Setenv("USERNAME", "")
	assert.Equal(t, "local", localUser())
}
