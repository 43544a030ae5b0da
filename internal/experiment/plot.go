package experiment

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/Faultbox/arcloud/internal/logger"
)

// chart describes one time series rendered by Plot.
type chart struct {
	file  string
	title string
	yAxis string
	value func(Record) float64
}

var charts = []chart{
	{"features.png", "Tracked features", "Features", func(r Record) float64 { return float64(r.NumFeatures) }},
	{"confidence.png", "Average feature confidence", "Confidence", func(r Record) float64 { return float64(r.AvgConfidence) }},
	{"plane_area.png", "Largest plane", "Area (m²)", func(r Record) float64 { return r.PlaneArea }},
}

// Plot renders one PNG per tracked quantity into dir and returns the paths written.
func Plot(exp *Experiment, dir string) ([]string, error) {
	if len(exp.Records) == 0 {
		return nil, fmt.Errorf("experiment %s has no records", exp.ID)
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output dir: %w", err)
	}

	var paths []string
	for _, c := range charts {
		pts := make(plotter.XYs, len(exp.Records))
		for i, r := range exp.Records {
			pts[i] = plotter.XY{X: r.Time.Seconds(), Y: c.value(r)}
		}

		p := plot.New()
		p.Title.Text = c.title
		p.X.Label.Text = "Time (s)"
		p.Y.Label.Text = c.yAxis
		p.Add(plotter.NewGrid())

		line, err := plotter.NewLine(pts)
		if err != nil {
			return paths, err
		}
		line.Color = color.RGBA{R: 200, G: 40, B: 30, A: 255}
		line.Width = vg.Points(1)
		p.Add(line)

		path := filepath.Join(dir, c.file)
		if err := p.Save(10*vg.Inch, 4*vg.Inch, path); err != nil {
			return paths, fmt.Errorf("save %s: %w", path, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// PlotSink renders the charts of every stored experiment into <dir>/<experiment id>.
type PlotSink struct {
	dir string
}

// NewPlotSink creates a sink writing below dir.
func NewPlotSink(dir string) *PlotSink {
	return &PlotSink{dir: dir}
}

// Store implements Sink. Experiments without records are skipped.
func (s *PlotSink) Store(ctx context.Context, exp *Experiment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(exp.Records) == 0 {
		return nil
	}
	paths, err := Plot(exp, filepath.Join(s.dir, exp.ID))
	if err != nil {
		return fmt.Errorf("plot experiment %s: %w", exp.ID, err)
	}
	logger.Info("experiment plotted", zap.String("id", exp.ID), zap.Strings("files", paths))
	return nil
}
