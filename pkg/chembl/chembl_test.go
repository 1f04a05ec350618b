// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package chembl

import (
	"compress/gzip"
	"encoding/hex"
	"fmt"
	"math/rand"
	"os"
	"path"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestCSV writes a gzip compressed dataset with numRows compounds and 2 tasks.
// Row 3 has an invalid fingerprint, every 5th row has task "t2" missing.
func writeTestCSV(t *testing.T, dir, set string, numRows int) {
	rng := rand.New(rand.NewSource(7))
	var sb strings.Builder
	sb.WriteString(IDColumn + ",ecfp,t1,t2\n")
	fingerprint := make([]byte, 128)
	for row := range numRows {
		_, _ = rng.Read(fingerprint)
		fp := hex.EncodeToString(fingerprint)
		if row == 3 {
			fp = "not-hex"
		}
		t2 := fmt.Sprintf("%.3f", rng.NormFloat64()*2+5)
		if row%5 == 0 {
			t2 = ""
		}
		fmt.Fprintf(&sb, "CHEMBL%d,%s,%.3f,%s\n", row, fp, rng.NormFloat64()+1, t2)
	}
	f, err := os.Create(path.Join(dir, fmt.Sprintf("chembl_%s.csv.gz", set)))
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sb.String()))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())
}

func TestECFP(t *testing.T) {
	f, err := FeaturizerByName("ECFP")
	require.NoError(t, err)
	require.Equal(t, 1024, f.NumFeatures())

	raw := make([]byte, 128)
	raw[0] = 0x81  // Bits 0 and 7.
	raw[127] = 0x01 // Last bit.
	bits, err := f.Featurize(hex.EncodeToString(raw))
	require.NoError(t, err)
	require.Len(t, bits, 1024)
	var count int
	for _, b := range bits {
		if b != 0 {
			count++
		}
	}
	assert.Equal(t, 3, count)
	assert.Equal(t, float32(1), bits[0])
	assert.Equal(t, float32(1), bits[7])
	assert.Equal(t, float32(1), bits[1023])

	_, err = f.Featurize("abc")
	require.Error(t, err)
	_, err = f.Featurize(strings.Repeat("zz", 128))
	require.Error(t, err)

	_, err = FeaturizerByName("GraphConv")
	require.Error(t, err)
}

func TestSplitters(t *testing.T) {
	for _, name := range []string{"random", "index"} {
		s, err := SplitterByName(name)
		require.NoError(t, err)
		train, valid, test := s.Split(105, rand.New(rand.NewSource(123)))
		assert.Len(t, train, 84, name)
		assert.Len(t, valid, 10, name)
		assert.Len(t, test, 11, name)

		// Disjoint and complete.
		seen := make(map[int]bool)
		for _, rows := range [][]int{train, valid, test} {
			for _, row := range rows {
				assert.False(t, seen[row])
				seen[row] = true
			}
		}
		assert.Len(t, seen, 105)
	}

	// Random split is deterministic given the seed.
	train1, _, _ := RandomSplitter{}.Split(50, rand.New(rand.NewSource(123)))
	train2, _, _ := RandomSplitter{}.Split(50, rand.New(rand.NewSource(123)))
	train3, _, _ := RandomSplitter{}.Split(50, rand.New(rand.NewSource(124)))
	assert.Equal(t, train1, train2)
	assert.NotEqual(t, train1, train3)

	// Index split keeps the file order.
	train, _, test := IndexSplitter{}.Split(10, nil)
	assert.Equal(t, []int{0, 1, 2, 3, 4, 5, 6, 7}, train)
	assert.Equal(t, []int{9}, test)

	_, err := SplitterByName("scaffold")
	require.Error(t, err)
}

func TestNormalizationTransformer(t *testing.T) {
	p, err := NewPartition(
		[]string{"a", "b", "c", "d"},
		make([]float32, 4),
		[]float32{
			1, 7,
			2, 7,
			3, 0,
			4, 7,
		},
		[]float32{
			1, 1,
			1, 1,
			1, 0,
			1, 1,
		}, 1, 2)
	require.NoError(t, err)
	norm := NewNormalizationTransformer(p)
	assert.InDelta(t, 2.5, norm.Means[0], 1e-9)
	assert.InDelta(t, 7.0, norm.Means[1], 1e-9)
	assert.Equal(t, 1.0, norm.Stds[1], "zero standard deviation replaced by 1")

	original := make([]float64, len(p.Y))
	for ii, y := range p.Y {
		original[ii] = float64(y)
	}
	require.NoError(t, norm.Transform(p))
	assert.Equal(t, float32(0), p.Y[5], "missing labels are untouched")
	var sum float64
	for row := range 4 {
		sum += float64(p.Y[row*2])
	}
	assert.InDelta(t, 0.0, sum, 1e-6)

	values := make([]float64, len(p.Y))
	for ii, y := range p.Y {
		values[ii] = float64(y)
	}
	require.NoError(t, UntransformAll([]Transformer{norm}, values, 2))
	for ii := range values {
		if p.W[ii] != 0 {
			assert.InDelta(t, original[ii], values[ii], 1e-5)
		}
	}
	require.Error(t, norm.Untransform(values, 3))
}

func TestDiskLoader(t *testing.T) {
	dir := t.TempDir()
	writeTestCSV(t, dir, "test", 51)
	loader := DiskLoader{Dir: dir}
	opts := LoadOptions{ShardSize: 7, Featurizer: "ECFP", Set: "test", Split: "random", Seed: 123}
	tasks, splits, transformers, err := loader.Load(opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2"}, tasks)
	require.Len(t, transformers, 1)

	// One compound dropped: 50 = 40 + 5 + 5.
	assert.Equal(t, 40, splits.Train.Len())
	assert.Equal(t, 5, splits.Valid.Len())
	assert.Equal(t, 5, splits.Test.Len())
	assert.Equal(t, []int{1024}, splits.Train.DataShape())
	assert.Equal(t, 2, splits.Train.NumTasks)
	for _, p := range []*Partition{splits.Train, splits.Valid, splits.Test} {
		assert.NotContains(t, p.IDs, "CHEMBL3")
		for row, id := range p.IDs {
			var n int
			_, _ = fmt.Sscanf(id, "CHEMBL%d", &n)
			if n%5 == 0 {
				assert.Equal(t, float32(0), p.W[row*2+1], "compound %s has a missing t2", id)
			} else {
				assert.Equal(t, float32(1), p.W[row*2+1])
			}
		}
	}

	// The second load comes from the cache and matches.
	require.FileExists(t, loader.CachePath(opts))
	_, splits2, transformers2, err := loader.Load(opts)
	require.NoError(t, err)
	assert.Equal(t, splits.Train.IDs, splits2.Train.IDs)
	assert.Equal(t, splits.Test.Y, splits2.Test.Y)
	assert.Equal(t, transformers[0], transformers2[0])

	// Errors.
	_, _, _, err = loader.Load(LoadOptions{ShardSize: 7, Featurizer: "ECFP", Set: "missing", Split: "random"})
	require.Error(t, err)
	_, _, _, err = loader.Load(LoadOptions{ShardSize: 0, Featurizer: "ECFP", Set: "test", Split: "random"})
	require.Error(t, err)
}

func TestPartition(t *testing.T) {
	_, err := NewPartition([]string{"a"}, []float32{1, 2, 3}, []float32{1}, []float32{1}, 2, 1)
	require.Error(t, err)

	p, err := NewPartition([]string{"a", "b", "c"}, []float32{1, 2, 3, 4, 5, 6}, []float32{1, 2, 3}, []float32{1, 1, 0}, 2, 1)
	require.NoError(t, err)
	sub := p.Subset([]int{2, 0})
	assert.Equal(t, []string{"c", "a"}, sub.IDs)
	assert.Equal(t, []float32{5, 6, 1, 2}, sub.X)
	assert.Equal(t, []float32{0, 1}, sub.W)
	sl := p.Slice(1, 3)
	assert.Equal(t, []float32{3, 4, 5, 6}, sl.X)

	x, y, w := p.Tensors()
	assert.Equal(t, []int{3, 2}, x.Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, y.Shape().Dimensions)
	assert.Equal(t, []int{3, 1}, w.Shape().Dimensions)
}
