// Package config handles application configuration loading and management.
package config

import (
	"fmt"

	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/tracking"
)

// Point cloud coloring modes.
const (
	ColoringUniform    = "uniform"
	ColoringConfidence = "confidence"
)

// Config holds all application settings.
type Config struct {
	Graphics   GraphicsConfig   `yaml:"graphics"`
	PointCloud PointCloudConfig `yaml:"point_cloud"`
	Source     SourceConfig     `yaml:"source"`
	Experiment ExperimentConfig `yaml:"experiment"`
	Logging    LoggingConfig    `yaml:"logging"`

	// Path is the file the config was loaded from; empty for pure defaults.
	Path string `yaml:"-"`
}

// GraphicsConfig holds display and rendering settings.
type GraphicsConfig struct {
	Width      int  `yaml:"width"`
	Height     int  `yaml:"height"`
	Fullscreen bool `yaml:"fullscreen"`
	VSync      bool `yaml:"vsync"`
	FPSLimit   int  `yaml:"fps_limit"`
	ShowFPS    bool `yaml:"show_fps"`
	ShowPlanes bool `yaml:"show_planes"`
	ShowBounds bool `yaml:"show_bounds"`

	ScreenshotDir string `yaml:"screenshot_dir"`
}

// PointCloudConfig holds point cloud visualisation settings.
type PointCloudConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Coloring string     `yaml:"coloring"` // "uniform" or "confidence"
	Color    [3]float32 `yaml:"color"`    // used by uniform coloring
}

// SourceConfig holds settings of the synthetic tracking source.
type SourceConfig struct {
	Seed         int64   `yaml:"seed"`
	MaxFeatures  int     `yaml:"max_features"`
	FrameRate    float64 `yaml:"frame_rate"`
	CloudEvery   int     `yaml:"cloud_every"`
	WarmupFrames int     `yaml:"warmup_frames"`
}

// ExperimentConfig holds experiment data settings.
type ExperimentConfig struct {
	DataDir  string `yaml:"data_dir"` // "Experiment Data" is created below it
	Database string `yaml:"database"` // SQLite file; empty disables the database sink
	PlotsDir string `yaml:"plots_dir"`
	Frames   int    `yaml:"frames"` // frames per headless run
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	src := tracking.DefaultSyntheticConfig()
	c := pointcloud.DefaultUniformColor
	return &Config{
		Graphics: GraphicsConfig{
			Width:      1280,
			Height:     720,
			Fullscreen: false,
			VSync:      true,
			FPSLimit:   0,
			ShowFPS:    false,
			ShowPlanes: true,
			ShowBounds: false,

			ScreenshotDir: "screenshots",
		},
		PointCloud: PointCloudConfig{
			Enabled:  true,
			Coloring: ColoringUniform,
			Color:    [3]float32{c.R, c.G, c.B},
		},
		Source: SourceConfig{
			Seed:         src.Seed,
			MaxFeatures:  src.MaxFeatures,
			FrameRate:    src.FrameRate,
			CloudEvery:   src.CloudEvery,
			WarmupFrames: src.WarmupFrames,
		},
		Experiment: ExperimentConfig{
			DataDir:  ".",
			Database: "",
			PlotsDir: "plots",
			Frames:   600,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate reports settings that cannot be used.
func (c *Config) Validate() error {
	if _, err := c.PointCloud.MaterialSpec(); err != nil {
		return err
	}
	if c.Source.MaxFeatures < 0 {
		return fmt.Errorf("source.max_features must not be negative, got %d", c.Source.MaxFeatures)
	}
	if c.Source.FrameRate < 0 {
		return fmt.Errorf("source.frame_rate must not be negative, got %g", c.Source.FrameRate)
	}
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics size must be positive, got %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	return nil
}

// MaterialSpec returns the materials for the configured coloring mode.
func (c PointCloudConfig) MaterialSpec() (pointcloud.MaterialSpec, error) {
	switch c.Coloring {
	case ColoringUniform, "":
		return pointcloud.UniformMaterial(pointcloud.Color{R: c.Color[0], G: c.Color[1], B: c.Color[2]}), nil
	case ColoringConfidence:
		return pointcloud.ConfidenceMaterials(pointcloud.DefaultConfidenceColors), nil
	default:
		return pointcloud.MaterialSpec{}, fmt.Errorf("unknown point_cloud.coloring %q", c.Coloring)
	}
}

// Synthetic returns the synthetic source settings.
func (c SourceConfig) Synthetic() tracking.SyntheticConfig {
	return tracking.SyntheticConfig{
		Seed:         c.Seed,
		MaxFeatures:  c.MaxFeatures,
		FrameRate:    c.FrameRate,
		CloudEvery:   c.CloudEvery,
		WarmupFrames: c.WarmupFrames,
	}
}
