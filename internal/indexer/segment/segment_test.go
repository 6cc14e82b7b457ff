package segment

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Recipe-Recommendation-Service/internal/indexer/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	idx, err := index.New(map[string][]int{
		"cumin":      {1, 2},
		"cumin seed": {1},
		"garlic":     {2},
	})
	require.NoError(t, err)

	path, err := NewWriter(t.TempDir()).Write("recipes.ridx", idx.Entries())
	require.NoError(t, err)
	return path
}

func TestWriteThenRead(t *testing.T) {
	path := writeSnapshot(t)

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, 3, r.Terms())
	assert.Equal(t, uint32(2), r.RecipeCount())

	ids, err := r.Search("cumin")
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, ids)

	ids, err = r.Search("saffron")
	require.NoError(t, err)
	assert.Nil(t, ids)

	all, err := r.ReadAll()
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{
		"cumin":      {1, 2},
		"cumin seed": {1},
		"garlic":     {2},
	}, all)
}

func TestOpenReaderRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ridx")
	require.NoError(t, os.WriteFile(path, make([]byte, HeaderSize+8), 0o644))

	_, err := OpenReader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad magic bytes")
}

func TestOpenReaderDetectsCorruptDictionary(t *testing.T) {
	path := writeSnapshot(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	// flip a byte inside the dictionary, which sits just before the footer
	data[len(data)-FooterSize-2] ^= 0xFF
	require.NoError(t, os.WriteFile(path, data, 0o644))

	_, err = OpenReader(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestOpenReaderRejectsOutOfRangeSections(t *testing.T) {
	cases := map[string]uint64{
		"huge dictionary":     1 << 62,
		"negative dictionary": math.MaxUint64,
	}
	for name, dictSize := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeSnapshot(t)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			binary.LittleEndian.PutUint64(data[24:32], dictSize)
			require.NoError(t, os.WriteFile(path, data, 0o644))

			_, err = OpenReader(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "corrupt snapshot")
		})
	}
}

func TestReadAllRejectsPostingsPastSection(t *testing.T) {
	path := writeSnapshot(t)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	// shrink the postings section so every dictionary entry overruns it
	binary.LittleEndian.PutUint64(data[40:48], 0)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	r, err := OpenReader(path)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.ReadAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "outside postings section")
}

func TestWriteRejectsEmpty(t *testing.T) {
	_, err := NewWriter(t.TempDir()).Write("empty.ridx", nil)
	assert.Error(t, err)
}
