// Package sinks opens the experiment sinks named by the configuration.
package sinks

import (
	"context"
	"errors"
	"fmt"

	"github.com/Faultbox/arcloud/internal/config"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/experiment/sqlite"
)

// Set stores experiments in several sinks.
type Set struct {
	sinks []experiment.Sink
	db    *sqlite.Store
}

// Open opens the text repository under cfg.DataDir, the SQLite store when
// cfg.Database is set and the chart renderer when cfg.PlotsDir is set.
func Open(cfg config.ExperimentConfig) (*Set, error) {
	repo, err := experiment.NewRepository(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	s := &Set{sinks: []experiment.Sink{repo}}

	if cfg.Database != "" {
		db, err := sqlite.Open(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open experiment database: %w", err)
		}
		s.db = db
		s.sinks = append(s.sinks, db)
	}
	if cfg.PlotsDir != "" {
		s.sinks = append(s.sinks, experiment.NewPlotSink(cfg.PlotsDir))
	}
	return s, nil
}

// Store implements experiment.Sink. Every sink is tried; failures are joined.
func (s *Set) Store(ctx context.Context, exp *experiment.Experiment) error {
	var errs []error
	for _, sink := range s.sinks {
		if err := sink.Store(ctx, exp); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Len returns the number of sinks.
func (s *Set) Len() int {
	return len(s.sinks)
}

// Close closes the database, if open.
func (s *Set) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
