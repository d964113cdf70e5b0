// Package effects applies the photometric augmentations that make a
// composited sample look like a camera capture.
package effects

import (
	"image"
	"image/color"
	"math"
	"math/rand/v2"

	"github.com/disintegration/imaging"
)

// Pipeline holds the trigger probability and parameters of every stage.
// Stages run in a fixed order and each one is gated by its own draw.
type Pipeline struct {
	BlurProbability       float64
	BlurKernel            int
	MotionBlurProbability float64
	MotionBlurKernel      int
	BrightnessProbability float64
	BrightnessMin         float64
	BrightnessMax         float64
	NoiseProbability      float64
	NoiseStdDev           float64
}

// DefaultPipeline returns the stock augmentation settings
func DefaultPipeline() Pipeline {
	return Pipeline{
		BlurProbability:       0.5,
		BlurKernel:            5,
		MotionBlurProbability: 0.3,
		MotionBlurKernel:      5,
		BrightnessProbability: 0.4,
		BrightnessMin:         0.7,
		BrightnessMax:         1.3,
		NoiseProbability:      0.3,
		NoiseStdDev:           2,
	}
}

// Applied records which stages fired for one sample
type Applied struct {
	Blur       bool
	MotionBlur bool
	Brightness bool
	Noise      bool
}

// Apply runs the pipeline on a copy of img
func (p Pipeline) Apply(img image.Image, rng *rand.Rand) (*image.NRGBA, Applied) {
	var applied Applied
	out := imaging.Clone(img)

	if rng.Float64() < p.BlurProbability {
		out = GaussianBlur(out, p.BlurKernel)
		applied.Blur = true
	}

	if rng.Float64() < p.MotionBlurProbability {
		out = MotionBlur(out, p.MotionBlurKernel, rng.IntN(p.MotionBlurKernel))
		applied.MotionBlur = true
	}

	if rng.Float64() < p.BrightnessProbability {
		factor := p.BrightnessMin + rng.Float64()*(p.BrightnessMax-p.BrightnessMin)
		out = Brightness(out, factor)
		applied.Brightness = true
	}

	if rng.Float64() < p.NoiseProbability {
		out = Noise(out, p.NoiseStdDev, rng)
		applied.Noise = true
	}

	return out, applied
}

// GaussianBlur convolves img with a size x size Gaussian kernel (size 3 or 5).
// Sigma is derived from the size the way OpenCV does for sigma=0.
func GaussianBlur(img image.Image, size int) *image.NRGBA {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	k1 := make([]float64, size)
	var sum float64
	for i := range k1 {
		d := float64(i - size/2)
		k1[i] = math.Exp(-d * d / (2 * sigma * sigma))
		sum += k1[i]
	}
	kernel := make([]float64, 0, size*size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			kernel = append(kernel, k1[y]*k1[x]/(sum*sum))
		}
	}
	return convolve(img, kernel)
}

// MotionBlur convolves img with a size x size kernel whose only non-zero row
// is row, filled with 1/size.
func MotionBlur(img image.Image, size, row int) *image.NRGBA {
	kernel := make([]float64, size*size)
	for x := 0; x < size; x++ {
		kernel[row*size+x] = 1 / float64(size)
	}
	return convolve(img, kernel)
}

// Brightness multiplies every color channel by factor and clips to [0,255].
// Alpha is left untouched.
func Brightness(img image.Image, factor float64) *image.NRGBA {
	scale := func(v uint8) uint8 {
		return uint8(math.Min(math.Max(float64(v)*factor, 0), 255))
	}
	return imaging.AdjustFunc(img, func(c color.NRGBA) color.NRGBA {
		return color.NRGBA{scale(c.R), scale(c.G), scale(c.B), c.A}
	})
}

// Noise adds zero-mean Gaussian noise with standard deviation stddev to every
// color channel. Results saturate to the 8-bit range when stored.
// Clamping here is deliberate: unclamped float noise would only be clipped
// later by the encoder, and 8-bit storage must not wrap around.
func Noise(img image.Image, stddev float64, rng *rand.Rand) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 0; i < len(out.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(out.Pix[i+c]) + rng.NormFloat64()*stddev
			out.Pix[i+c] = saturate(v)
		}
	}
	return out
}

func saturate(v float64) uint8 {
	v = math.Round(v)
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func convolve(img image.Image, kernel []float64) *image.NRGBA {
	switch len(kernel) {
	case 9:
		var k [9]float64
		copy(k[:], kernel)
		return imaging.Convolve3x3(img, k, nil)
	case 25:
		var k [25]float64
		copy(k[:], kernel)
		return imaging.Convolve5x5(img, k, nil)
	}
	panic("effects: unsupported kernel size")
}
