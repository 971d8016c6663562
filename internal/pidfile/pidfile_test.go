package pidfile

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAcquireReleaseCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studiod.pid")

	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)

	running, gotPid, err := IsRunning(path)
	require.NoError(t, err)
	assert.True(t, running)
	assert.Equal(t, os.Getpid(), gotPid)

	require.NoError(t, Release(path))
	running, _, err = IsRunning(path)
	require.NoError(t, err)
	assert.False(t, running)
}

func TestAcquireRejectsLivePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studiod.pid")
	require.NoError(t, Acquire(path))
	// Second acquire sees our own live pid.
	assert.Error(t, Acquire(path))
}

func TestAcquireReclaimsStalePid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "studiod.pid")
	// Improbably large pid that no live process owns.
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(1<<22+12345)), 0644))
	require.NoError(t, Acquire(path))
	pid, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}
