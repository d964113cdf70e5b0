// Package generator drives dataset synthesis: one labeled sample per
// (card, index) pair, plus unlabeled grid collages as negatives.
package generator

import (
	"context"
	"fmt"
	"image"
	"math/rand/v2"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/cardsynth/internal/config"
	"github.com/menta2k/cardsynth/internal/utils"
	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/compose"
	"github.com/menta2k/cardsynth/pkg/effects"
	"github.com/menta2k/cardsynth/pkg/imageio"
	"github.com/menta2k/cardsynth/pkg/preview"
	"github.com/menta2k/cardsynth/pkg/transform"
	"github.com/menta2k/cardsynth/pkg/types"
)

// ClassNamesFile is written to the labels directory at the start of a run
const ClassNamesFile = "classes.txt"

// gridStream separates the negative sample random streams from the positive ones
const gridStream = 0x67726964 << 32

// Report summarizes a run
type Report struct {
	Positives int
	Negatives int
	Skipped   int
}

// Generator produces positive and negative samples from a configuration
type Generator struct {
	cfg     *config.Config
	log     logs.Log
	layout  types.Layout
	effects effects.Pipeline
	seed    uint64
}

// New validates cfg and prepares a generator.
// A zero seed is replaced by one derived from the clock.
func New(cfg *config.Config, log logs.Log) (*Generator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	c := cfg.Card
	h := max(1, int(float64(c.MaxHeight)*c.MaxScale+0.5))
	w := max(1, int(float64(h)*c.AspectRatio+0.5))
	fw, fh := transform.MaxFootprint(w, h, c.MinRotation, c.MaxRotation)
	if fw > cfg.Canvas.Width || fh > cfg.Canvas.Height {
		return nil, fmt.Errorf("%w: rotated card can reach %dx%d on a %dx%d canvas",
			compose.ErrForegroundTooLarge, fw, fh, cfg.Canvas.Width, cfg.Canvas.Height)
	}

	seed := cfg.Generation.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}

	e := cfg.Effects
	return &Generator{
		cfg: cfg,
		log: log,
		layout: types.Layout{
			ImagesDir:   cfg.Output.ImagesDir,
			LabelsDir:   cfg.Output.LabelsDir,
			ImageFormat: cfg.Output.ImageFormat,
		},
		effects: effects.Pipeline{
			BlurProbability:       e.BlurProbability,
			BlurKernel:            e.BlurKernel,
			MotionBlurProbability: e.MotionBlurProbability,
			MotionBlurKernel:      e.MotionBlurKernel,
			BrightnessProbability: e.BrightnessProbability,
			BrightnessMin:         e.BrightnessMin,
			BrightnessMax:         e.BrightnessMax,
			NoiseProbability:      e.NoiseProbability,
			NoiseStdDev:           e.NoiseStdDev,
		},
		seed: seed,
	}, nil
}

// Seed returns the seed the run uses, so it can be logged and replayed
func (g *Generator) Seed() uint64 {
	return g.seed
}

// sampleRand returns the random stream for one positive sample.
// It depends only on the seed and the sample identity, never on scheduling.
func (g *Generator) sampleRand(classID, index int) *rand.Rand {
	return rand.New(rand.NewPCG(g.seed, uint64(classID)<<32|uint64(index)))
}

// Generate writes SamplesPerCard labeled samples for every card
func (g *Generator) Generate(ctx context.Context) (Report, error) {
	var report Report

	lib, err := LoadLibrary(g.log, g.cfg.Input.CardsDir, g.cfg.Input.BackgroundsDir)
	if err != nil {
		return report, err
	}

	for _, dir := range []string{g.cfg.Output.ImagesDir, g.cfg.Output.LabelsDir, g.cfg.Output.PreviewDir} {
		if dir == "" {
			continue
		}
		if err := utils.EnsureDir(dir); err != nil {
			return report, err
		}
	}

	if err := annotation.WriteClassNames(filepath.Join(g.cfg.Output.LabelsDir, ClassNamesFile), lib.ClassNames()); err != nil {
		return report, err
	}

	g.log.Infof("Generating %d samples for each of %d cards (seed %d, %d workers)",
		g.cfg.Generation.SamplesPerCard, len(lib.Cards), g.seed, g.cfg.Generation.Workers)

	var written, skipped atomic.Int64
	p := newPool(g.cfg.Generation.Workers)

	var runErr error
cards:
	for _, card := range lib.Cards {
		img, err := imageio.LoadImage(card.Path)
		if err != nil {
			g.log.Warnf("Skipping card %s: %v", card.Name, err)
			skipped.Add(int64(g.cfg.Generation.SamplesPerCard))
			continue
		}

		for i := 1; i <= g.cfg.Generation.SamplesPerCard; i++ {
			err := p.submit(ctx, func() {
				if err := g.positive(card, img, lib.Backgrounds, i); err != nil {
					g.log.Warnf("Sample %s_%d skipped: %v", card.Name, i, err)
					skipped.Add(1)
					return
				}
				written.Add(1)
			})
			if err != nil {
				runErr = err
				break cards
			}
		}
		g.log.Debugf("Queued samples for %s (class %d)", card.Name, card.ClassID)
	}
	p.wait()

	report.Positives = int(written.Load())
	report.Skipped = int(skipped.Load())
	if runErr != nil {
		return report, fmt.Errorf("generation interrupted: %w", runErr)
	}

	g.log.Infof("Wrote %d samples, skipped %d", report.Positives, report.Skipped)
	return report, nil
}

// positive builds, saves and labels one sample
func (g *Generator) positive(card Card, cardImg *image.NRGBA, backgrounds []string, index int) error {
	rng := g.sampleRand(card.ClassID, index)
	cw, ch := g.cfg.Canvas.Width, g.cfg.Canvas.Height

	canvas := compose.Blank(cw, ch)
	if len(backgrounds) > 0 {
		path := backgrounds[rng.IntN(len(backgrounds))]
		bg, err := imageio.LoadImage(path)
		if err != nil {
			return fmt.Errorf("failed to load background: %w", err)
		}
		canvas = compose.FitBackground(bg, cw, ch)
	}

	c := g.cfg.Card
	fg, _, _ := transform.Resize(cardImg, c.MaxHeight, c.AspectRatio, c.MinScale, c.MaxScale, rng)
	angle := c.MinRotation + rng.Float64()*(c.MaxRotation-c.MinRotation)
	fg = transform.Rotate(fg, angle)

	out, box, err := compose.Overlay(fg, canvas, rng)
	if err != nil {
		return err
	}
	out, applied := g.effects.Apply(out, rng)

	id := types.SampleID{CardName: card.Name, Index: index}
	art := g.layout.Positive(id)
	if err := imageio.SaveImage(out, art.ImagePath, g.cfg.Output.ImageFormat, g.cfg.Output.Quality); err != nil {
		return err
	}
	if err := annotation.Write(art.LabelPath, card.ClassID, box, cw, ch); err != nil {
		return err
	}

	if g.cfg.Output.PreviewDir != "" && index%g.cfg.Output.PreviewEvery == 0 {
		caption := fmt.Sprintf("%d %s", card.ClassID, card.Name)
		path := filepath.Join(g.cfg.Output.PreviewDir, id.BaseName()+".png")
		if err := imageio.SaveImage(preview.Draw(out, box, caption), path, "png", 0); err != nil {
			g.log.Warnf("Failed to write preview %s: %v", path, err)
		}
	}

	g.log.Debugf("Generated %s angle=%.1f box=%v effects=%+v", art.ImagePath, angle, box, applied)
	return nil
}

// GenerateNegatives writes Grid.Iterations unlabeled collages of distinct cards.
// If fewer cards decode than one grid needs, nothing is written and
// compose.ErrNotEnoughCards is returned for the caller to report.
func (g *Generator) GenerateNegatives(ctx context.Context) (Report, error) {
	var report Report

	lib, err := LoadLibrary(g.log, g.cfg.Input.CardsDir, "")
	if err != nil {
		return report, err
	}

	gc := g.cfg.Grid
	opts := compose.GridOptions{
		Rows:       gc.Rows,
		Cols:       gc.Cols,
		CellWidth:  gc.CellWidth,
		CellHeight: gc.CellHeight,
		OutputSize: gc.OutputSize,
	}

	cards := make([]image.Image, 0, len(lib.Cards))
	for _, card := range lib.Cards {
		img, err := imageio.LoadImage(card.Path)
		if err != nil {
			g.log.Warnf("Leaving card %s out of grids: %v", card.Name, err)
			continue
		}
		cards = append(cards, img)
	}
	if len(cards) < opts.Cells() {
		return report, fmt.Errorf("%w: have %d, need %d for a %dx%d grid",
			compose.ErrNotEnoughCards, len(cards), opts.Cells(), gc.Rows, gc.Cols)
	}

	if err := utils.EnsureDir(g.cfg.Output.ImagesDir); err != nil {
		return report, err
	}

	g.log.Infof("Generating %d negative grids from %d cards", gc.Iterations, len(cards))

	var written, skipped atomic.Int64
	p := newPool(g.cfg.Generation.Workers)

	var runErr error
	for i := 1; i <= gc.Iterations; i++ {
		err := p.submit(ctx, func() {
			rng := rand.New(rand.NewPCG(g.seed, gridStream|uint64(i)))
			grid, err := compose.BuildGrid(cards, opts, rng)
			if err == nil {
				err = imageio.SaveImage(grid, g.layout.Negative(i).ImagePath, g.cfg.Output.ImageFormat, g.cfg.Output.Quality)
			}
			if err != nil {
				g.log.Warnf("Grid %d skipped: %v", i, err)
				skipped.Add(1)
				return
			}
			written.Add(1)
		})
		if err != nil {
			runErr = err
			break
		}
	}
	p.wait()

	report.Negatives = int(written.Load())
	report.Skipped = int(skipped.Load())
	if runErr != nil {
		return report, fmt.Errorf("grid generation interrupted: %w", runErr)
	}

	g.log.Infof("Wrote %d negative grids", report.Negatives)
	return report, nil
}
