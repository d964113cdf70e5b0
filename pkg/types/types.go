package types

import (
	"fmt"
	"path/filepath"
)

// PixelBox is an axis-aligned box in canvas pixel space.
// A valid box satisfies 0 <= XMin < XMax <= width and 0 <= YMin < YMax <= height.
type PixelBox struct {
	XMin int `json:"x_min"`
	YMin int `json:"y_min"`
	XMax int `json:"x_max"`
	YMax int `json:"y_max"`
}

// Width returns the horizontal extent of the box
func (b PixelBox) Width() int {
	return b.XMax - b.XMin
}

// Height returns the vertical extent of the box
func (b PixelBox) Height() int {
	return b.YMax - b.YMin
}

// Within reports whether the box is non-empty and fits a w x h canvas
func (b PixelBox) Within(w, h int) bool {
	return b.XMin >= 0 && b.YMin >= 0 && b.XMin < b.XMax && b.YMin < b.YMax && b.XMax <= w && b.YMax <= h
}

// Normalize converts the box to center form relative to a w x h canvas
func (b PixelBox) Normalize(w, h int) Box {
	fw, fh := float64(w), float64(h)
	return Box{
		X: float64(b.XMin+b.XMax) / 2 / fw,
		Y: float64(b.YMin+b.YMax) / 2 / fh,
		W: float64(b.XMax-b.XMin) / fw,
		H: float64(b.YMax-b.YMin) / fh,
	}
}

// Box represents a normalized bounding box in center form with all fields in [0,1].
// X and Y are the box center.
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// SampleID identifies one positive sample of a card
type SampleID struct {
	CardName string
	Index    int
}

// BaseName returns the file stem shared by the sample's image and label
func (s SampleID) BaseName() string {
	return fmt.Sprintf("%s_%d", s.CardName, s.Index)
}

// Artifacts are the files persisted for one generated sample.
// LabelPath is empty for negative samples.
type Artifacts struct {
	ImagePath string
	LabelPath string
}

// Layout maps sample identities to their output files
type Layout struct {
	ImagesDir   string
	LabelsDir   string
	ImageFormat string
}

// Positive returns the image and label paths of a positive sample
func (l Layout) Positive(id SampleID) Artifacts {
	base := id.BaseName()
	return Artifacts{
		ImagePath: filepath.Join(l.ImagesDir, base+"."+l.ext()),
		LabelPath: filepath.Join(l.LabelsDir, base+".txt"),
	}
}

// Negative returns the image path of the index'th grid image. No label is written.
func (l Layout) Negative(index int) Artifacts {
	return Artifacts{
		ImagePath: filepath.Join(l.ImagesDir, fmt.Sprintf("grid_image_%d.%s", index, l.ext())),
	}
}

func (l Layout) ext() string {
	if l.ImageFormat == "" {
		return "png"
	}
	return l.ImageFormat
}
