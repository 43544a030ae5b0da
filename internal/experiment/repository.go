package experiment

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/logger"
)

// DataDirName is the directory experiments are written to, under the base directory.
const DataDirName = "Experiment Data"

// Sink stores finished experiments.
type Sink interface {
	Store(ctx context.Context, exp *Experiment) error
}

// Repository stores experiments as numbered text files:
// "<base>/Experiment Data/Experiment N.txt".
type Repository struct {
	dir string
}

// NewRepository creates the data directory under baseDir if needed.
func NewRepository(baseDir string) (*Repository, error) {
	dir := filepath.Join(baseDir, DataDirName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create experiment data dir: %w", err)
	}
	return &Repository{dir: dir}, nil
}

// Dir returns the data directory.
func (r *Repository) Dir() string {
	return r.dir
}

// Store implements Sink.
func (r *Repository) Store(ctx context.Context, exp *Experiment) error {
	_, err := r.Write(ctx, exp)
	return err
}

// Write stores exp in the next free "Experiment N.txt" and returns its path.
// N starts at one more than the number of entries already in the directory.
func (r *Repository) Write(ctx context.Context, exp *Experiment) (string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return "", fmt.Errorf("read experiment data dir: %w", err)
	}

	for n := len(entries) + 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		path := filepath.Join(r.dir, fmt.Sprintf("Experiment %d.txt", n))
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("create %s: %w", path, err)
		}

		if _, err := exp.WriteTo(f); err != nil {
			f.Close()
			return "", fmt.Errorf("write %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("close %s: %w", path, err)
		}

		logger.Info("experiment stored",
			zap.String("path", path),
			zap.String("id", exp.ID),
			zap.Int("records", len(exp.Records)),
		)
		return path, nil
	}
}

// ReadFile loads the records of a stored experiment file.
func ReadFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadRecords(f)
}
