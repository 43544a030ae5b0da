package config

import "flag"

var (
	flagConfig     = flag.String("config", "", "Path to config file")
	flagDebug      = flag.Bool("debug", false, "Enable debug logging")
	flagWindowed   = flag.Bool("windowed", false, "Run in windowed mode")
	flagFullscreen = flag.Bool("fullscreen", false, "Run in fullscreen mode")
	flagWidth      = flag.Int("width", 0, "Window width")
	flagHeight     = flag.Int("height", 0, "Window height")
	flagColoring   = flag.String("coloring", "", "Point cloud coloring: uniform or confidence")
	flagSeed       = flag.Int64("seed", 0, "Synthetic source seed")
	flagFrames     = flag.Int("frames", 0, "Frames per headless run")
	flagDataDir    = flag.String("data-dir", "", "Directory for experiment data")
	flagDatabase   = flag.String("db", "", "SQLite database for experiments")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// ParseArgs parses flags from args, for commands that take a subcommand first.
func ParseArgs(args []string) error {
	return flag.CommandLine.Parse(args)
}

// Args returns the arguments remaining after flags.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
		cfg.Graphics.ShowFPS = true
	}
	if *flagWindowed {
		cfg.Graphics.Fullscreen = false
	}
	if *flagFullscreen {
		cfg.Graphics.Fullscreen = true
	}
	if *flagWidth > 0 {
		cfg.Graphics.Width = *flagWidth
	}
	if *flagHeight > 0 {
		cfg.Graphics.Height = *flagHeight
	}
	if *flagColoring != "" {
		cfg.PointCloud.Coloring = *flagColoring
	}
	if *flagSeed != 0 {
		cfg.Source.Seed = *flagSeed
	}
	if *flagFrames > 0 {
		cfg.Experiment.Frames = *flagFrames
	}
	if *flagDataDir != "" {
		cfg.Experiment.DataDir = *flagDataDir
	}
	if *flagDatabase != "" {
		cfg.Experiment.Database = *flagDatabase
	}
}
