package generator

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/cardsynth/internal/config"
	"github.com/menta2k/cardsynth/pkg/annotation"
	"github.com/menta2k/cardsynth/pkg/compose"
	"github.com/menta2k/cardsynth/pkg/imageio"
)

func writeSolid(t *testing.T, path string, w, h int, c color.NRGBA) {
	t.Helper()
	require.NoError(t, imageio.SaveImage(imaging.New(w, h, c), path, "png", 0))
}

// testConfig points every directory into a fresh temp dir
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Input.CardsDir = filepath.Join(root, "cards")
	cfg.Input.BackgroundsDir = filepath.Join(root, "backgrounds")
	cfg.Output.ImagesDir = filepath.Join(root, "out", "images")
	cfg.Output.LabelsDir = filepath.Join(root, "out", "labels")
	cfg.Generation.Seed = 7
	require.NoError(t, os.MkdirAll(cfg.Input.CardsDir, 0755))
	require.NoError(t, os.MkdirAll(cfg.Input.BackgroundsDir, 0755))
	return cfg
}

func newGenerator(t *testing.T, cfg *config.Config) *Generator {
	t.Helper()
	g, err := New(cfg, logs.NewTestingLog(t))
	require.NoError(t, err)
	return g
}

func TestNewRejectsOversizedCard(t *testing.T) {
	cfg := config.Default()
	cfg.Canvas.Width = 300
	cfg.Canvas.Height = 300
	_, err := New(cfg, logs.NewTestingLog(t))
	assert.ErrorIs(t, err, compose.ErrForegroundTooLarge)
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Workers = 0
	_, err := New(cfg, logs.NewTestingLog(t))
	assert.Error(t, err)
}

func TestNewPicksSeed(t *testing.T) {
	cfg := config.Default()
	cfg.Generation.Seed = 0
	g, err := New(cfg, logs.NewTestingLog(t))
	require.NoError(t, err)
	assert.NotZero(t, g.Seed())
}

func TestGenerateSingleSample(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.SamplesPerCard = 1
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "OP01-001.png"), 600, 838, color.NRGBA{200, 30, 30, 255})
	writeSolid(t, filepath.Join(cfg.Input.BackgroundsDir, "table.png"), 640, 640, color.NRGBA{20, 90, 20, 255})

	report, err := newGenerator(t, cfg).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Positives: 1}, report)

	img, err := imageio.LoadImage(filepath.Join(cfg.Output.ImagesDir, "OP01-001_1.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 640), img.Bounds())

	data, err := os.ReadFile(filepath.Join(cfg.Output.LabelsDir, "OP01-001_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(string(data), "\n"))

	label, err := annotation.Parse(string(data))
	require.NoError(t, err)
	assert.Equal(t, 0, label.ClassID)
	b := label.Box
	assert.Greater(t, b.W, 0.0)
	assert.Greater(t, b.H, 0.0)
	assert.GreaterOrEqual(t, b.X-b.W/2, -1e-6)
	assert.LessOrEqual(t, b.X+b.W/2, 1+1e-6)
	assert.GreaterOrEqual(t, b.Y-b.H/2, -1e-6)
	assert.LessOrEqual(t, b.Y+b.H/2, 1+1e-6)

	names, err := os.ReadFile(filepath.Join(cfg.Output.LabelsDir, ClassNamesFile))
	require.NoError(t, err)
	assert.Equal(t, "OP01-001\n", string(names))
}

func TestGenerateWithoutBackgrounds(t *testing.T) {
	cfg := testConfig(t)
	cfg.Input.BackgroundsDir = filepath.Join(t.TempDir(), "missing")
	cfg.Generation.SamplesPerCard = 2
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 60, 84, color.NRGBA{255, 255, 255, 255})

	report, err := newGenerator(t, cfg).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Positives)

	img, err := imageio.LoadImage(filepath.Join(cfg.Output.ImagesDir, "a_2.png"))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 640, 640), img.Bounds())
}

func TestGenerateNoCards(t *testing.T) {
	cfg := testConfig(t)
	_, err := newGenerator(t, cfg).Generate(context.Background())
	assert.ErrorIs(t, err, ErrNoCards)

	cfg.Input.CardsDir = filepath.Join(t.TempDir(), "nope")
	_, err = newGenerator(t, cfg).Generate(context.Background())
	assert.ErrorIs(t, err, ErrNoCards)

	_, err = os.Stat(cfg.Output.ImagesDir)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerateSkipsCorruptCard(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.SamplesPerCard = 3
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 60, 84, color.NRGBA{0, 0, 255, 255})
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Input.CardsDir, "b.png"), []byte("not an image"), 0644))
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "c.png"), 60, 84, color.NRGBA{0, 255, 0, 255})

	report, err := newGenerator(t, cfg).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Positives: 6, Skipped: 3}, report)

	// ids stay tied to the sorted file list
	label, err := annotation.ReadFile(filepath.Join(cfg.Output.LabelsDir, "c_1.txt"))
	require.NoError(t, err)
	assert.Equal(t, 2, label.ClassID)
	assert.NoFileExists(t, filepath.Join(cfg.Output.ImagesDir, "b_1.png"))

	names, err := os.ReadFile(filepath.Join(cfg.Output.LabelsDir, ClassNamesFile))
	require.NoError(t, err)
	assert.Equal(t, "a\nb\nc\n", string(names))
}

func TestGenerateDeterministicAcrossWorkers(t *testing.T) {
	run := func(workers int) *config.Config {
		cfg := testConfig(t)
		cfg.Generation.SamplesPerCard = 4
		cfg.Generation.Workers = workers
		writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 120, 168, color.NRGBA{250, 240, 10, 255})
		writeSolid(t, filepath.Join(cfg.Input.CardsDir, "b.png"), 120, 168, color.NRGBA{10, 40, 250, 255})
		writeSolid(t, filepath.Join(cfg.Input.BackgroundsDir, "x.png"), 320, 320, color.NRGBA{90, 90, 90, 255})
		writeSolid(t, filepath.Join(cfg.Input.BackgroundsDir, "y.png"), 640, 480, color.NRGBA{30, 160, 30, 255})
		_, err := newGenerator(t, cfg).Generate(context.Background())
		require.NoError(t, err)
		return cfg
	}

	one := run(1)
	four := run(4)
	for _, card := range []string{"a", "b"} {
		for i := 1; i <= 4; i++ {
			base := fmt.Sprintf("%s_%d", card, i)
			for _, p := range [][2]string{
				{one.Output.ImagesDir, four.Output.ImagesDir},
				{one.Output.LabelsDir, four.Output.LabelsDir},
			} {
				ext := ".png"
				if p[0] == one.Output.LabelsDir {
					ext = ".txt"
				}
				x, err := os.ReadFile(filepath.Join(p[0], base+ext))
				require.NoError(t, err)
				y, err := os.ReadFile(filepath.Join(p[1], base+ext))
				require.NoError(t, err)
				assert.True(t, bytes.Equal(x, y), "%s%s differs between worker counts", base, ext)
			}
		}
	}
}

func TestGeneratePreviews(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.SamplesPerCard = 4
	cfg.Output.PreviewDir = filepath.Join(t.TempDir(), "preview")
	cfg.Output.PreviewEvery = 2
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 60, 84, color.NRGBA{255, 0, 0, 255})

	_, err := newGenerator(t, cfg).Generate(context.Background())
	require.NoError(t, err)

	entries, err := os.ReadDir(cfg.Output.PreviewDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"a_2.png", "a_4.png"}, names)
}

func TestGenerateCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.SamplesPerCard = 50
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 60, 84, color.NRGBA{255, 0, 0, 255})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	report, err := newGenerator(t, cfg).Generate(ctx)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Less(t, report.Positives, 50)
}

func gridConfig(t *testing.T, cards int) *config.Config {
	cfg := testConfig(t)
	cfg.Grid.CellWidth = 30
	cfg.Grid.CellHeight = 42
	cfg.Grid.Iterations = 3
	for i := 0; i < cards; i++ {
		c := color.NRGBA{uint8(i * 16), uint8(255 - i*16), 128, 255}
		writeSolid(t, filepath.Join(cfg.Input.CardsDir, fmt.Sprintf("card%02d.png", i)), 30, 42, c)
	}
	return cfg
}

func TestGenerateNegatives(t *testing.T) {
	cfg := gridConfig(t, 15)

	report, err := newGenerator(t, cfg).GenerateNegatives(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Negatives: 3}, report)

	entries, err := os.ReadDir(cfg.Output.ImagesDir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	for i := 1; i <= 3; i++ {
		img, err := imageio.LoadImage(filepath.Join(cfg.Output.ImagesDir, fmt.Sprintf("grid_image_%d.png", i)))
		require.NoError(t, err)
		assert.Equal(t, image.Rect(0, 0, 640, 640), img.Bounds())
	}

	_, err = os.Stat(cfg.Output.LabelsDir)
	assert.True(t, os.IsNotExist(err), "negatives must not produce labels")
}

func TestGenerateNegativesNotEnoughCards(t *testing.T) {
	cfg := gridConfig(t, 14)

	report, err := newGenerator(t, cfg).GenerateNegatives(context.Background())
	assert.ErrorIs(t, err, compose.ErrNotEnoughCards)
	assert.Zero(t, report.Negatives)

	_, err = os.Stat(cfg.Output.ImagesDir)
	assert.True(t, os.IsNotExist(err))
}

func TestLibraryClassNames(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.png", "a.jpg", "notes.txt", "c.webp"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
	lib, err := LoadLibrary(logs.NewTestingLog(t), dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, lib.ClassNames())
	assert.Empty(t, lib.Backgrounds)
}

func TestGenerateCardsSharingStem(t *testing.T) {
	cfg := testConfig(t)
	cfg.Generation.SamplesPerCard = 2
	writeSolid(t, filepath.Join(cfg.Input.CardsDir, "a.png"), 60, 84, color.NRGBA{255, 0, 0, 255})
	require.NoError(t, imageio.SaveImage(imaging.New(60, 84, color.NRGBA{0, 0, 255, 255}),
		filepath.Join(cfg.Input.CardsDir, "a.jpg"), "jpg", 95))

	report, err := newGenerator(t, cfg).Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Report{Positives: 4}, report)

	names, err := os.ReadFile(filepath.Join(cfg.Output.LabelsDir, ClassNamesFile))
	require.NoError(t, err)
	assert.Equal(t, "a_jpg\na_png\n", string(names))

	for classID, name := range []string{"a_jpg", "a_png"} {
		for i := 1; i <= 2; i++ {
			base := fmt.Sprintf("%s_%d", name, i)
			assert.FileExists(t, filepath.Join(cfg.Output.ImagesDir, base+".png"))
			label, err := annotation.ReadFile(filepath.Join(cfg.Output.LabelsDir, base+".txt"))
			require.NoError(t, err)
			assert.Equal(t, classID, label.ClassID, base)
		}
	}
	assert.NoFileExists(t, filepath.Join(cfg.Output.ImagesDir, "a_1.png"))
}

func TestLibraryNameStillTaken(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"a.jpg", "a.png", "a_jpg.png"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), nil, 0644))
	}
	lib, err := LoadLibrary(logs.NewTestingLog(t), dir, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"a_jpg", "a_png"}, lib.ClassNames())
	assert.Equal(t, 1, lib.Cards[1].ClassID)
}

// recordingLog keeps warnings and errors for inspection
type recordingLog struct {
	logs.Log
	mu     sync.Mutex
	warns  []string
	errors []string
}

func (r *recordingLog) Warnf(format string, a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.warns = append(r.warns, fmt.Sprintf(format, a...))
}

func (r *recordingLog) Errorf(format string, a ...interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, fmt.Sprintf(format, a...))
}

func TestGenerateNegativesLeavesReportingToCaller(t *testing.T) {
	cfg := gridConfig(t, 14)
	log := &recordingLog{Log: logs.NewTestingLog(t)}
	g, err := New(cfg, log)
	require.NoError(t, err)

	_, err = g.GenerateNegatives(context.Background())
	require.ErrorIs(t, err, compose.ErrNotEnoughCards)
	assert.Contains(t, err.Error(), "have 14, need 15")
	assert.Empty(t, log.errors)
	assert.Empty(t, log.warns)
}
