package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockPath(t *testing.T) {
	l := NewLocker("/locks")
	assert.Equal(t, filepath.Join("/locks", ".verible.lock"), l.lockPath(ArtifactIdentifier{Name: "verible", Version: "v1"}))
	assert.Equal(t, filepath.Join("/locks", ".a-b-c.lock"), l.lockPath(ArtifactIdentifier{Name: "a/b:c"}))
}

func TestAcquireExclusiveWaitsForRelease(t *testing.T) {
	l := NewLocker(t.TempDir())
	id := ArtifactIdentifier{Name: "verible"}

	unlock, err := l.AcquireExclusive(context.Background(), id)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	_, err = l.AcquireExclusive(ctx, id)
	require.Error(t, err, "lock must not be granted while held")

	require.NoError(t, unlock())

	unlock, err = l.AcquireExclusive(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, unlock())
}
