package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteCSV(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "state.csv")
	err := writeCSV(path,
		[]string{"t", "x"},
		[][]float64{{0, 0}, {0.1, 0.25}, {0.2, 1}})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "t,x\n0,0\n0.1,0.25\n0.2,1\n", string(data))
}

func TestWriteCSVBadPath(t *testing.T) {
	t.Parallel()

	err := writeCSV(filepath.Join(t.TempDir(), "missing", "out.csv"), []string{"t"}, nil)
	assert.Error(t, err)
}
