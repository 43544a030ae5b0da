// arexp runs headless tracking experiments and inspects their results.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Faultbox/arcloud/internal/config"
	"github.com/Faultbox/arcloud/internal/engine/pointcloud"
	"github.com/Faultbox/arcloud/internal/engine/scene"
	"github.com/Faultbox/arcloud/internal/experiment"
	"github.com/Faultbox/arcloud/internal/experiment/sinks"
	"github.com/Faultbox/arcloud/internal/experiment/sqlite"
	"github.com/Faultbox/arcloud/internal/logger"
	"github.com/Faultbox/arcloud/internal/session"
	"github.com/Faultbox/arcloud/internal/tracking"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	command := os.Args[1]
	args := os.Args[2:]

	switch command {
	case "run":
		cmdRun(args)
	case "plot":
		cmdPlot(args)
	case "list", "ls":
		cmdList(args)
	case "config":
		cmdConfig(args)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`arexp - AR tracking experiment utility

Usage:
  arexp <command> [options]

Commands:
  run [flags]                        Run a headless session and store the experiment
  plot <experiment.txt> <outdir>     Render charts of a stored experiment
  list <experiments.db>              List experiments in a database
  config [flags] [path]              Write the effective config (default: user config dir)

Run flags:
  -config <file>   Config file
  -frames <n>      Frames to run
  -seed <n>        Synthetic source seed
  -coloring <m>    uniform or confidence
  -data-dir <dir>  Directory for "Experiment Data"
  -db <file>       Also store in this SQLite database
  -debug           Debug logging

Examples:
  arexp run -frames 900 -db experiments.db
  arexp plot "Experiment Data/Experiment 1.txt" plots
  arexp list experiments.db`)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// countingSubmitter stands in for a renderer in headless runs.
type countingSubmitter struct {
	meshes int
	glyphs int
}

func (s *countingSubmitter) Submit(_ context.Context, mesh *pointcloud.Mesh) (scene.Renderable, error) {
	s.meshes++
	s.glyphs += mesh.GlyphCount()
	return noopRenderable{}, nil
}

type noopRenderable struct{}

func (noopRenderable) Release() {}

// headlessFactory creates color materials without a GPU.
type headlessFactory struct{}

func (headlessFactory) MakeOpaqueWithColor(_ context.Context, c pointcloud.Color) (pointcloud.Material, error) {
	return c, nil
}

func cmdRun(args []string) {
	if err := config.ParseArgs(args); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}
	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fatalf("logger: %v", err)
	}
	defer logger.Sync()

	spec, err := cfg.PointCloud.MaterialSpec()
	if err != nil {
		fatalf("%v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Headless runs are not paced.
	srcCfg := cfg.Source.Synthetic()
	srcCfg.FrameRate = 0
	src := tracking.NewSynthetic(srcCfg)
	defer src.Close()

	sub := &countingSubmitter{}
	node := scene.NewPointCloudNode(pointcloud.NewBuilder(), sub)
	if err := node.Activate(ctx, headlessFactory{}, spec); err != nil {
		fatalf("%v", err)
	}
	defer node.Deactivate()
	<-node.Prepared()
	if err := node.PrepareErr(); err != nil {
		fatalf("prepare point cloud: %v", err)
	}

	s := session.New(src, node, experiment.NewCollector(experiment.New(time.Now())))
	start := time.Now()
	if err := s.Run(ctx, cfg.Experiment.Frames); err != nil {
		fatalf("run: %v", err)
	}
	exp := s.Experiment()

	logger.Info("session finished",
		zap.Int("frames", s.Frames()),
		zap.Int("records", len(exp.Records)),
		zap.Int("meshes", sub.meshes),
		zap.Int("reallocations", node.Builder().Reallocations()),
		zap.Duration("elapsed", time.Since(start)),
	)

	store, err := sinks.Open(cfg.Experiment)
	if err != nil {
		fatalf("%v", err)
	}
	defer store.Close()
	if err := store.Store(ctx, exp); err != nil {
		fatalf("store experiment: %v", err)
	}

	fmt.Printf("Experiment %s: %d records over %s\n", exp.ID, len(exp.Records), exp.Duration())
	if n := len(exp.Records); n > 0 {
		fmt.Printf("Last: %s\n", exp.Records[n-1])
	}
}

func cmdPlot(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: arexp plot <experiment.txt> <outdir>")
		os.Exit(1)
	}

	records, err := experiment.ReadFile(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	exp := &experiment.Experiment{ID: name, Records: records}

	paths, err := experiment.Plot(exp, args[1])
	if err != nil {
		fatalf("%v", err)
	}
	for _, p := range paths {
		fmt.Println(p)
	}
}

func cmdList(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Usage: arexp list <experiments.db>")
		os.Exit(1)
	}
	if _, err := os.Stat(args[0]); err != nil {
		fatalf("%v", err)
	}

	db, err := sqlite.Open(args[0])
	if err != nil {
		fatalf("%v", err)
	}
	defer db.Close()

	summaries, err := db.List(context.Background())
	if err != nil {
		fatalf("%v", err)
	}

	fmt.Printf("%-36s  %-19s  %7s  %9s\n", "ID", "Started", "Records", "Duration")
	fmt.Println(strings.Repeat("-", 78))
	for _, s := range summaries {
		fmt.Printf("%-36s  %-19s  %7d  %9s\n",
			s.ID, s.StartedAt.Local().Format("2006-01-02 15:04:05"), s.Records, s.Duration)
	}
	fmt.Printf("\nTotal: %d experiments\n", len(summaries))
}

func cmdConfig(args []string) {
	if err := config.ParseArgs(args); err != nil {
		os.Exit(2)
	}
	cfg, err := config.Load()
	if err != nil {
		fatalf("config: %v", err)
	}

	if rest := config.Args(); len(rest) > 0 {
		err = cfg.SaveTo(rest[0])
	} else {
		err = cfg.Save()
	}
	if err != nil {
		fatalf("save config: %v", err)
	}
}
