// Package catalog describes the YOLO detection models trailcam can run.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrUnknownModel is returned for identifiers that are not in the catalog
var ErrUnknownModel = errors.New("unknown model")

// Model is one catalog entry. Benchmarks are only published for the v11 family;
// HasSpecs is false for the others.
type Model struct {
	File        string
	Family      string
	Size        string // n, s, m, l or x
	Name        string
	SizeMB      float64
	CPUMs       float64
	GPUMs       float64
	MAP50to95   float64
	Description string
	HasSpecs    bool
}

// DefaultFamily is used when a size is given without a family
const DefaultFamily = "yolo11"

var sizes = []string{"n", "s", "m", "l", "x"}

var models = buildModels()

func buildModels() []Model {
	v11 := []Model{
		{Size: "n", Name: "YOLOv11 Nano", SizeMB: 5.1, CPUMs: 2.4, GPUMs: 0.5, MAP50to95: 39.5, Description: "Fastest, smallest model for basic detection tasks"},
		{Size: "s", Name: "YOLOv11 Small", SizeMB: 19.8, CPUMs: 8.1, GPUMs: 0.7, MAP50to95: 47.0, Description: "Good balance of speed and accuracy"},
		{Size: "m", Name: "YOLOv11 Medium", SizeMB: 50.5, CPUMs: 18.4, GPUMs: 1.2, MAP50to95: 51.5, Description: "Better accuracy, moderate speed"},
		{Size: "l", Name: "YOLOv11 Large", SizeMB: 85.8, CPUMs: 27.6, GPUMs: 1.8, MAP50to95: 53.4, Description: "High accuracy, slower inference"},
		{Size: "x", Name: "YOLOv11 Extra Large", SizeMB: 140.4, CPUMs: 49.2, GPUMs: 2.8, MAP50to95: 54.7, Description: "Highest accuracy, slowest inference"},
	}

	var out []Model
	for _, m := range v11 {
		m.Family = "yolo11"
		m.File = "yolo11" + m.Size + ".onnx"
		m.HasSpecs = true
		out = append(out, m)
	}

	sizeNames := map[string]string{"n": "Nano", "s": "Small", "m": "Medium", "l": "Large", "x": "Extra Large"}
	for _, family := range []struct{ id, label string }{{"yolov10", "YOLOv10"}, {"yolov8", "YOLOv8"}} {
		for _, s := range sizes {
			out = append(out, Model{
				File:   family.id + s + ".onnx",
				Family: family.id,
				Size:   s,
				Name:   family.label + " " + sizeNames[s],
			})
		}
	}
	return out
}

// All returns every catalog entry, v11 first
func All() []Model {
	out := make([]Model, len(models))
	copy(out, models)
	return out
}

// Lookup finds a model by file name ("yolo11s.onnx"), bare name ("yolo11s")
// or size letter of the default family ("s").
func Lookup(id string) (Model, error) {
	key := strings.ToLower(strings.TrimSpace(id))
	if len(key) == 1 {
		key = DefaultFamily + key
	}
	key = strings.TrimSuffix(key, filepath.Ext(key))

	for _, m := range models {
		if strings.TrimSuffix(m.File, ".onnx") == key {
			return m, nil
		}
	}
	return Model{}, fmt.Errorf("%w: %q", ErrUnknownModel, id)
}

// UseCases lists the accepted Recommend arguments
func UseCases() []string {
	return []string{"speed", "general", "balanced", "accuracy", "best"}
}

// Recommend picks a v11 model for a use case. Unknown use cases get the
// general-purpose recommendation.
func Recommend(useCase string) Model {
	size := map[string]string{
		"general":  "s",
		"speed":    "n",
		"balanced": "m",
		"accuracy": "l",
		"best":     "x",
	}[strings.ToLower(useCase)]
	if size == "" {
		size = "s"
	}
	m, _ := Lookup(size)
	return m
}

// Path joins the model directory and file
func Path(dir string, m Model) string {
	return filepath.Join(dir, m.File)
}

// Available reports whether the model file exists in dir
func Available(dir string, m Model) bool {
	info, err := os.Stat(Path(dir, m))
	return err == nil && !info.IsDir()
}

// Local lists the .onnx files present in dir, sorted
func Local(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read model directory: %w", err)
	}

	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".onnx") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}
