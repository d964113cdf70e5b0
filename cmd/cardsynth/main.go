package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"

	"github.com/menta2k/cardsynth"
	"github.com/menta2k/cardsynth/internal/config"
)

func main() {
	logger, err := logs.NewLog()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}

	parser := argparse.NewParser("cardsynth", "Generate a synthetic card detection dataset")
	configFile := parser.String("c", "config", &argparse.Options{Help: "JSON configuration file (default: " + config.GetConfigPath() + " if it exists)", Default: ""})
	cardsDir := parser.String("", "cards", &argparse.Options{Help: "Directory of card images (overrides config)", Default: ""})
	backgroundsDir := parser.String("", "backgrounds", &argparse.Options{Help: "Directory of background images (overrides config)", Default: ""})
	imagesDir := parser.String("", "images", &argparse.Options{Help: "Output image directory (overrides config)", Default: ""})
	labelsDir := parser.String("", "labels", &argparse.Options{Help: "Output label directory (overrides config)", Default: ""})
	format := parser.String("f", "format", &argparse.Options{Help: "Output image format: png, jpg or webp (overrides config)", Default: ""})
	samples := parser.Int("n", "samples", &argparse.Options{Help: "Samples per card (0 keeps the config value)", Default: 0})
	seed := parser.Int("s", "seed", &argparse.Options{Help: "Random seed (0 keeps the config value)", Default: 0})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Number of worker goroutines (0 keeps the config value)", Default: 0})
	previewDir := parser.String("", "preview", &argparse.Options{Help: "Write labeled preview images to this directory", Default: ""})
	negatives := parser.Flag("", "negatives", &argparse.Options{Help: "Also generate negative grid collages", Default: false})
	skipPositives := parser.Flag("", "skip-positives", &argparse.Options{Help: "Do not generate labeled samples", Default: false})
	writeConfig := parser.String("", "write-config", &argparse.Options{Help: "Write the effective configuration to this file and exit", Default: ""})
	err = parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	cfg, source, err := config.Resolve(*configFile)
	if err != nil {
		logger.Errorf("Failed to load config: %v", err)
		os.Exit(1)
	}
	if source != "" {
		logger.Infof("Using configuration %s", source)
	}

	override := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	override(&cfg.Input.CardsDir, *cardsDir)
	override(&cfg.Input.BackgroundsDir, *backgroundsDir)
	override(&cfg.Output.ImagesDir, *imagesDir)
	override(&cfg.Output.LabelsDir, *labelsDir)
	override(&cfg.Output.ImageFormat, *format)
	override(&cfg.Output.PreviewDir, *previewDir)
	if *samples > 0 {
		cfg.Generation.SamplesPerCard = *samples
	}
	if *seed > 0 {
		cfg.Generation.Seed = uint64(*seed)
	}
	if *workers > 0 {
		cfg.Generation.Workers = *workers
	}

	if *writeConfig != "" {
		if err := cfg.SaveToFile(*writeConfig); err != nil {
			logger.Errorf("Failed to write config: %v", err)
			os.Exit(1)
		}
		logger.Infof("Configuration written to %s", *writeConfig)
		return
	}

	synth, err := cardsynth.New(cfg, logger)
	if err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Infof("cardsynth %s, seed %d", cardsynth.GetVersion(), synth.Seed())
	report, err := synth.Run(ctx, cardsynth.RunOptions{Positives: !*skipPositives, Negatives: *negatives})
	if err != nil {
		logger.Errorf("Generation failed: %v", err)
		os.Exit(1)
	}

	logger.Infof("Done: %d positives, %d negatives, %d skipped", report.Positives, report.Negatives, report.Skipped)
}
