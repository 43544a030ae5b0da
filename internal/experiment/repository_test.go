package experiment

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepository_NumbersFiles(t *testing.T) {
	t.Parallel()
	base := t.TempDir()
	repo, err := NewRepository(base)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "Experiment Data"), repo.Dir())

	ctx := context.Background()
	exp := New(time.Now())
	exp.Add(Record{Time: time.Second, NumFeatures: 12, AvgConfidence: 0.5, PlaneArea: 0.75})

	p1, err := repo.Write(ctx, exp)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(repo.Dir(), "Experiment 1.txt"), p1)

	require.NoError(t, repo.Store(ctx, exp))
	_, err = os.Stat(filepath.Join(repo.Dir(), "Experiment 2.txt"))
	require.NoError(t, err)

	content, err := os.ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, "1.00 | 012 0.50 0.75\n", string(content))

	recs, err := ReadFile(p1)
	require.NoError(t, err)
	assert.Equal(t, exp.Records, recs)
}

func TestRepository_SkipsTakenNames(t *testing.T) {
	t.Parallel()
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	// One entry in the directory, but "Experiment 2.txt" is already taken.
	require.NoError(t, os.WriteFile(filepath.Join(repo.Dir(), "Experiment 2.txt"), nil, 0644))

	path, err := repo.Write(context.Background(), New(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, "Experiment 3.txt", filepath.Base(path))
}

func TestRepository_CancelledContext(t *testing.T) {
	t.Parallel()
	repo, err := NewRepository(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, repo.Store(ctx, New(time.Now())), context.Canceled)
}

func TestPlot(t *testing.T) {
	t.Parallel()
	exp := New(time.Now())
	for i := 0; i < 20; i++ {
		exp.Add(Record{
			Time:          time.Duration(i) * 100 * time.Millisecond,
			NumFeatures:   i * 10,
			AvgConfidence: float32(i) / 20,
			PlaneArea:     float64(i) * 0.1,
		})
	}

	dir := filepath.Join(t.TempDir(), "plots")
	paths, err := Plot(exp, dir)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Positive(t, info.Size())
	}

	_, err = Plot(New(time.Now()), dir)
	assert.Error(t, err)
}

func TestPlotSink_SkipsEmpty(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	sink := NewPlotSink(dir)

	exp := New(time.Now())
	require.NoError(t, sink.Store(context.Background(), exp))
	_, err := os.Stat(filepath.Join(dir, exp.ID))
	assert.True(t, os.IsNotExist(err))

	exp.Add(Record{Time: time.Second, NumFeatures: 1})
	require.NoError(t, sink.Store(context.Background(), exp))
	_, err = os.Stat(filepath.Join(dir, exp.ID, "features.png"))
	assert.NoError(t, err)
}
