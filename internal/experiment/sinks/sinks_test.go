package sinks

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Faultbox/arcloud/internal/config"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/experiment/sqlite"
)

func TestOpen_TextOnly(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(config.ExperimentConfig{DataDir: dir})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 1, s.Len())

	exp := experiment.New(time.Now())
	exp.Add(experiment.Record{Time: time.Second, NumFeatures: 1})
	require.NoError(t, s.Store(context.Background(), exp))

	_, err = os.Stat(filepath.Join(dir, experiment.DataDirName, "Experiment 1.txt"))
	assert.NoError(t, err)
}

func TestOpen_WithDatabase(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "experiments.db")

	s, err := Open(config.ExperimentConfig{DataDir: dir, Database: dbPath})
	require.NoError(t, err)
	assert.Equal(t, 2, s.Len())

	exp := experiment.New(time.Now())
	exp.Add(experiment.Record{Time: time.Second, NumFeatures: 3, AvgConfidence: 0.5})
	require.NoError(t, s.Store(context.Background(), exp))
	require.NoError(t, s.Close())

	db, err := sqlite.Open(dbPath)
	require.NoError(t, err)
	defer db.Close()
	got, err := db.Load(context.Background(), exp.ID)
	require.NoError(t, err)
	assert.Equal(t, exp.Records, got.Records)
}

func TestOpen_WithPlots(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	plots := filepath.Join(dir, "plots")

	s, err := Open(config.ExperimentConfig{DataDir: dir, PlotsDir: plots})
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 2, s.Len())

	exp := experiment.New(time.Now())
	exp.Add(experiment.Record{Time: time.Second, NumFeatures: 3, AvgConfidence: 0.5, PlaneArea: 1})
	exp.Add(experiment.Record{Time: 2 * time.Second, NumFeatures: 5, AvgConfidence: 0.6, PlaneArea: 2})
	require.NoError(t, s.Store(context.Background(), exp))

	for _, name := range []string{"features.png", "confidence.png", "plane_area.png"} {
		_, err := os.Stat(filepath.Join(plots, exp.ID, name))
		assert.NoError(t, err, name)
	}
}

func TestStore_JoinsErrors(t *testing.T) {
	t.Parallel()
	s, err := Open(config.ExperimentConfig{DataDir: t.TempDir()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Store(ctx, experiment.New(time.Now())), context.Canceled)
}
