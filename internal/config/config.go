package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/menta2k/cardsynth/internal/utils"
)

// Config holds the application configuration
type Config struct {
	Input      InputConfig      `json:"input"`
	Canvas     CanvasConfig     `json:"canvas"`
	Card       CardConfig       `json:"card"`
	Effects    EffectsConfig    `json:"effects"`
	Grid       GridConfig       `json:"grid"`
	Generation GenerationConfig `json:"generation"`
	Output     OutputConfig     `json:"output"`
}

// InputConfig holds the source asset locations
type InputConfig struct {
	CardsDir       string `json:"cards_dir"`
	BackgroundsDir string `json:"backgrounds_dir"`
}

// CanvasConfig is the size of every generated image
type CanvasConfig struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// CardConfig controls the geometric transform of the foreground card
type CardConfig struct {
	AspectRatio float64 `json:"aspect_ratio"`
	MaxHeight   int     `json:"max_height"`
	MinScale    float64 `json:"min_scale"`
	MaxScale    float64 `json:"max_scale"`
	MinRotation float64 `json:"min_rotation"`
	MaxRotation float64 `json:"max_rotation"`
}

// EffectsConfig holds trigger probabilities and parameters of the photometric stages
type EffectsConfig struct {
	BlurProbability       float64 `json:"blur_probability"`
	BlurKernel            int     `json:"blur_kernel"`
	MotionBlurProbability float64 `json:"motion_blur_probability"`
	MotionBlurKernel      int     `json:"motion_blur_kernel"`
	BrightnessProbability float64 `json:"brightness_probability"`
	BrightnessMin         float64 `json:"brightness_min"`
	BrightnessMax         float64 `json:"brightness_max"`
	NoiseProbability      float64 `json:"noise_probability"`
	NoiseStdDev           float64 `json:"noise_stddev"`
}

// GridConfig controls negative sample generation
type GridConfig struct {
	Rows       int `json:"rows"`
	Cols       int `json:"cols"`
	CellWidth  int `json:"cell_width"`
	CellHeight int `json:"cell_height"`
	OutputSize int `json:"output_size"`
	Iterations int `json:"iterations"`
}

// GenerationConfig controls the positive sample loop
type GenerationConfig struct {
	SamplesPerCard int    `json:"samples_per_card"`
	Workers        int    `json:"workers"`
	Seed           uint64 `json:"seed"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	ImagesDir    string `json:"images_dir"`
	LabelsDir    string `json:"labels_dir"`
	ImageFormat  string `json:"image_format"`
	Quality      int    `json:"quality"`
	PreviewDir   string `json:"preview_dir"`
	PreviewEvery int    `json:"preview_every"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Input: InputConfig{
			CardsDir:       "cards",
			BackgroundsDir: "backgrounds",
		},
		Canvas: CanvasConfig{
			Width:  640,
			Height: 640,
		},
		Card: CardConfig{
			AspectRatio: 600.0 / 838.0,
			MaxHeight:   350,
			MinScale:    0.4,
			MaxScale:    1.0,
			MinRotation: -30,
			MaxRotation: 30,
		},
		Effects: EffectsConfig{
			BlurProbability:       0.5,
			BlurKernel:            5,
			MotionBlurProbability: 0.3,
			MotionBlurKernel:      5,
			BrightnessProbability: 0.4,
			BrightnessMin:         0.7,
			BrightnessMax:         1.3,
			NoiseProbability:      0.3,
			NoiseStdDev:           2,
		},
		Grid: GridConfig{
			Rows:       3,
			Cols:       5,
			CellWidth:  600,
			CellHeight: 838,
			OutputSize: 640,
			Iterations: 5000,
		},
		Generation: GenerationConfig{
			SamplesPerCard: 500,
			Workers:        1,
		},
		Output: OutputConfig{
			ImagesDir:    "datasets/images/all",
			LabelsDir:    "datasets/labels/all",
			ImageFormat:  "png",
			Quality:      95,
			PreviewEvery: 50,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
// Fields missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Input.CardsDir == "" {
		return fmt.Errorf("input.cards_dir cannot be empty")
	}

	if c.Canvas.Width < 1 || c.Canvas.Height < 1 {
		return fmt.Errorf("canvas width and height must be positive")
	}

	if c.Card.AspectRatio <= 0 {
		return fmt.Errorf("card.aspect_ratio must be positive")
	}
	if c.Card.MaxHeight < 1 {
		return fmt.Errorf("card.max_height must be positive")
	}
	if c.Card.MinScale <= 0 || c.Card.MinScale > c.Card.MaxScale {
		return fmt.Errorf("card scale range must satisfy 0 < min_scale <= max_scale")
	}
	if c.Card.MinRotation > c.Card.MaxRotation {
		return fmt.Errorf("card.min_rotation must not exceed card.max_rotation")
	}
	if c.Card.MinRotation < -90 || c.Card.MaxRotation > 90 {
		return fmt.Errorf("card rotation range must lie within [-90, 90]")
	}

	e := c.Effects
	for name, p := range map[string]float64{
		"effects.blur_probability":        e.BlurProbability,
		"effects.motion_blur_probability": e.MotionBlurProbability,
		"effects.brightness_probability":  e.BrightnessProbability,
		"effects.noise_probability":       e.NoiseProbability,
	} {
		if p < 0 || p > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if e.BlurKernel != 3 && e.BlurKernel != 5 {
		return fmt.Errorf("effects.blur_kernel must be 3 or 5")
	}
	if e.MotionBlurKernel != 3 && e.MotionBlurKernel != 5 {
		return fmt.Errorf("effects.motion_blur_kernel must be 3 or 5")
	}
	if e.BrightnessMin < 0 || e.BrightnessMin > e.BrightnessMax {
		return fmt.Errorf("brightness range must satisfy 0 <= brightness_min <= brightness_max")
	}
	if e.NoiseStdDev < 0 {
		return fmt.Errorf("effects.noise_stddev must not be negative")
	}

	g := c.Grid
	if g.Rows < 1 || g.Cols < 1 || g.CellWidth < 1 || g.CellHeight < 1 || g.OutputSize < 1 {
		return fmt.Errorf("grid rows, cols, cell size and output size must be positive")
	}
	if g.Iterations < 0 {
		return fmt.Errorf("grid.iterations must not be negative")
	}

	if c.Generation.SamplesPerCard < 0 {
		return fmt.Errorf("generation.samples_per_card must not be negative")
	}
	if c.Generation.Workers < 1 {
		return fmt.Errorf("generation.workers must be at least 1")
	}

	if c.Output.ImagesDir == "" || c.Output.LabelsDir == "" {
		return fmt.Errorf("output.images_dir and output.labels_dir cannot be empty")
	}
	switch c.Output.ImageFormat {
	case "png", "jpg", "webp":
	default:
		return fmt.Errorf("output.image_format must be one of png, jpg, webp")
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}
	if c.Output.PreviewDir != "" && c.Output.PreviewEvery < 1 {
		return fmt.Errorf("output.preview_every must be positive when preview_dir is set")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "cardsynth", "config.json")
}

// Resolve loads the configuration for a run and returns the file it came from.
// An explicit path must exist. Without one, the file at GetConfigPath is used
// when present, otherwise the defaults with an empty source.
func Resolve(explicit string) (*Config, string, error) {
	path := explicit
	if path == "" {
		path = GetConfigPath()
		if !utils.FileExists(path) {
			return Default(), "", nil
		}
	}
	cfg, err := LoadFromFile(path)
	if err != nil {
		return nil, path, err
	}
	return cfg, path, nil
}
