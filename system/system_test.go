package system

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSample(t *testing.T) {
	snap, err := Sample(os.TempDir())
	require.NoError(t, err)

	for _, v := range []float64{snap.CPUPercent, snap.MemoryPercent, snap.DiskPercent} {
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestGetDiskUsage_MissingPath(t *testing.T) {
	_, err := GetDiskUsage("/definitely/not/a/real/path")
	assert.Error(t, err)
}
