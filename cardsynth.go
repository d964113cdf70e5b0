// Package cardsynth generates synthetic object-detection datasets for
// trading card recognition.
//
// Every source card is scaled, rotated and pasted onto a random background,
// then passed through photometric augmentations (blur, motion blur, brightness,
// sensor noise). Each sample gets a one-line YOLO label whose box is the
// axis-aligned bounds of the rotated card's padded canvas. Negative samples
// are grid collages of many distinct cards and carry no label.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"log"
//
//		"github.com/cyclopcam/logs"
//		"github.com/menta2k/cardsynth"
//	)
//
//	func main() {
//		logger, err := logs.NewLog()
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		cfg := cardsynth.DefaultConfig()
//		cfg.Input.CardsDir = "cards"
//		cfg.Input.BackgroundsDir = "backgrounds"
//
//		s, err := cardsynth.New(cfg, logger)
//		if err != nil {
//			log.Fatal(err)
//		}
//
//		report, err := s.Run(context.Background(), cardsynth.RunOptions{Positives: true, Negatives: true})
//		if err != nil {
//			log.Fatal(err)
//		}
//		logger.Infof("wrote %d samples and %d grids", report.Positives, report.Negatives)
//	}
//
// The package consists of these components:
//
// 1. Transform (pkg/transform): card resize, rotation and footprint math
// 2. Compose (pkg/compose): background fitting, alpha blending, grid collages
// 3. Effects (pkg/effects): the augmentation pipeline
// 4. Annotation (pkg/annotation): YOLO label formatting and parsing
// 5. Generator (pkg/generator): the per-sample loop and worker pool
//
// Output layout:
//
//   - images/<card>_<i>.<ext> and labels/<card>_<i>.txt for positives
//   - images/grid_image_<i>.<ext> with no label for negatives
//   - labels/classes.txt mapping class ids to card names
package cardsynth

import (
	"context"
	"errors"
	"fmt"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/cardsynth/internal/config"
	"github.com/menta2k/cardsynth/pkg/compose"
	"github.com/menta2k/cardsynth/pkg/generator"
)

// Version of the cardsynth library
const Version = "1.0.0"

// Config is the full generator configuration
type Config = config.Config

// Report summarizes what a run wrote and skipped
type Report = generator.Report

// DefaultConfig returns the stock configuration
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a JSON configuration file over the defaults
func LoadConfig(path string) (*Config, error) {
	return config.LoadFromFile(path)
}

// RunOptions selects which sample kinds a run produces
type RunOptions struct {
	Positives bool
	Negatives bool
}

// Synthesizer provides a high-level interface over the generator
type Synthesizer struct {
	gen *generator.Generator
	log logs.Log
}

// New creates a Synthesizer from cfg
func New(cfg *Config, log logs.Log) (*Synthesizer, error) {
	gen, err := generator.New(cfg, log)
	if err != nil {
		return nil, err
	}
	return &Synthesizer{gen: gen, log: log}, nil
}

// Seed returns the seed in use
func (s *Synthesizer) Seed() uint64 {
	return s.gen.Seed()
}

// Run generates positives, then negatives.
// Too few cards for a grid is logged and does not fail the run.
func (s *Synthesizer) Run(ctx context.Context, opts RunOptions) (Report, error) {
	var total Report

	if opts.Positives {
		r, err := s.gen.Generate(ctx)
		total = merge(total, r)
		if err != nil {
			return total, fmt.Errorf("failed to generate positives: %w", err)
		}
	}

	if opts.Negatives {
		r, err := s.gen.GenerateNegatives(ctx)
		total = merge(total, r)
		if errors.Is(err, compose.ErrNotEnoughCards) {
			s.log.Warnf("Skipping negative samples: %v", err)
		} else if err != nil {
			return total, fmt.Errorf("failed to generate negatives: %w", err)
		}
	}

	return total, nil
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}

func merge(a, b Report) Report {
	return Report{
		Positives: a.Positives + b.Positives,
		Negatives: a.Negatives + b.Negatives,
		Skipped:   a.Skipped + b.Skipped,
	}
}
