package generator

import (
	"errors"
	"fmt"

	"github.com/cyclopcam/logs"

	"github.com/menta2k/cardsynth/internal/utils"
)

// ErrNoCards is returned when the card library is missing or empty
var ErrNoCards = errors.New("no card images found")

// Card is one source card image and the class id its samples are labeled with
type Card struct {
	Name    string
	Path    string
	ClassID int
}

// Library is the set of source assets for one run.
// Class ids follow the sorted file order and never change during the run.
type Library struct {
	Cards       []Card
	Backgrounds []string
}

// LoadLibrary discovers card and background images.
// A missing or empty card directory is fatal; missing backgrounds are not.
func LoadLibrary(log logs.Log, cardsDir, backgroundsDir string) (*Library, error) {
	paths, err := utils.ListImageFiles(cardsDir)
	if err != nil {
		return nil, fmt.Errorf("%w in %s: %v", ErrNoCards, cardsDir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w in %s", ErrNoCards, cardsDir)
	}

	lib := &Library{}
	for _, name := range cardNames(log, paths) {
		if name.name == "" {
			continue
		}
		lib.Cards = append(lib.Cards, Card{Name: name.name, Path: name.path, ClassID: len(lib.Cards)})
	}

	if backgroundsDir != "" {
		if !utils.DirExists(backgroundsDir) {
			log.Warnf("Background directory %q does not exist, using blank canvases", backgroundsDir)
		} else if lib.Backgrounds, err = utils.ListImageFiles(backgroundsDir); err != nil {
			log.Warnf("No backgrounds available (%v), using blank canvases", err)
		} else if len(lib.Backgrounds) == 0 {
			log.Warnf("Background directory %q has no images, using blank canvases", backgroundsDir)
		}
	}

	log.Infof("Found %d cards and %d backgrounds", len(lib.Cards), len(lib.Backgrounds))
	return lib, nil
}

type namedPath struct {
	name string
	path string
}

// cardNames derives a unique sample name for every card file.
// Files sharing a stem (a.png, a.jpg) are told apart by their extension (a_png, a_jpg).
// A file whose name still collides gets an empty name and is left out.
func cardNames(log logs.Log, paths []string) []namedPath {
	stems := make(map[string]int, len(paths))
	for _, p := range paths {
		stems[utils.StemName(p)]++
	}

	seen := make(map[string]bool, len(paths))
	out := make([]namedPath, len(paths))
	for i, p := range paths {
		name := utils.StemName(p)
		if stems[name] > 1 {
			name += "_" + utils.GetFileExtension(p)
		}
		if seen[name] {
			log.Warnf("Skipping card %s: name %q is already taken", p, name)
			continue
		}
		seen[name] = true
		out[i] = namedPath{name: name, path: p}
	}
	return out
}

// ClassNames returns card names indexed by class id
func (l *Library) ClassNames() []string {
	names := make([]string, len(l.Cards))
	for _, c := range l.Cards {
		names[c.ClassID] = c.Name
	}
	return names
}
