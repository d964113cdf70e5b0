package compose

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// ErrNotEnoughCards is returned when the pool can't fill a grid with distinct cards
var ErrNotEnoughCards = errors.New("not enough distinct cards for grid")

// GridOptions describes a card collage
type GridOptions struct {
	Rows       int
	Cols       int
	CellWidth  int
	CellHeight int
	OutputSize int
}

// DefaultGridOptions matches a 3x5 collage of 600x838 cards shrunk to 640x640
func DefaultGridOptions() GridOptions {
	return GridOptions{Rows: 3, Cols: 5, CellWidth: 600, CellHeight: 838, OutputSize: 640}
}

// Cells returns the number of cards one grid consumes
func (o GridOptions) Cells() int {
	return o.Rows * o.Cols
}

// BuildGrid samples Rows*Cols distinct cards from pool, tiles them left to right
// and top to bottom into cells of CellWidth x CellHeight, and downsamples the
// collage to OutputSize x OutputSize with a Lanczos filter.
func BuildGrid(pool []image.Image, opts GridOptions, rng *rand.Rand) (*image.NRGBA, error) {
	n := opts.Cells()
	if n < 1 || opts.CellWidth < 1 || opts.CellHeight < 1 || opts.OutputSize < 1 {
		return nil, fmt.Errorf("invalid grid options %+v", opts)
	}
	if len(pool) < n {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrNotEnoughCards, n, len(pool))
	}

	picks := rng.Perm(len(pool))[:n]
	grid := imaging.New(opts.Cols*opts.CellWidth, opts.Rows*opts.CellHeight, color.NRGBA{0, 0, 0, 255})
	for i, idx := range picks {
		row, col := i/opts.Cols, i%opts.Cols
		cell := fitCell(pool[idx], opts.CellWidth, opts.CellHeight)
		grid = imaging.Paste(grid, cell, image.Pt(col*opts.CellWidth, row*opts.CellHeight))
	}

	return imaging.Resize(grid, opts.OutputSize, opts.OutputSize, imaging.Lanczos), nil
}

// fitCell sizes a card to exactly one cell, flattened onto black so the collage stays opaque
func fitCell(card image.Image, w, h int) *image.NRGBA {
	b := card.Bounds()
	if b.Dx() != w || b.Dy() != h {
		card = imaging.Resize(card, w, h, imaging.Lanczos)
	}
	return imaging.Overlay(imaging.New(w, h, color.NRGBA{0, 0, 0, 255}), card, image.Pt(0, 0), 1)
}
