// Package output validates inputs and lays out the per-run results directory.
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

var (
	// ErrMissingInput is returned when the model or the video does not exist
	ErrMissingInput = errors.New("required file not found")
	// ErrNotWritable is returned when the results directory cannot be used
	ErrNotWritable = errors.New("results directory not usable")
)

// RunDirLayout is the timestamp format of per-run directories, DDMMYYYY-HHMMSS
const RunDirLayout = "02012006-150405"

// SupportedVideoExtensions are the containers known to decode
var SupportedVideoExtensions = []string{".mp4", ".avi", ".mov", ".mkv", ".flv", ".wmv"}

// Layout is where one run writes its files
type Layout struct {
	BaseDir   string
	RunDir    string
	VideoPath string
}

// CheckFiles verifies that the model and the video exist and are regular files
func CheckFiles(modelPath, videoPath string) error {
	for _, f := range []struct{ kind, path string }{
		{"model", modelPath},
		{"video", videoPath},
	} {
		info, err := os.Stat(f.path)
		if err != nil {
			return fmt.Errorf("%w: %s file %s", ErrMissingInput, f.kind, f.path)
		}
		if info.IsDir() {
			return fmt.Errorf("%w: %s path %s is a directory", ErrMissingInput, f.kind, f.path)
		}
	}
	return nil
}

// SupportedVideo reports whether path has a known video extension
func SupportedVideo(path string) bool {
	return slices.Contains(SupportedVideoExtensions, strings.ToLower(filepath.Ext(path)))
}

// ValidateBase creates dir when missing and checks that it is a writable directory
func ValidateBase(dir string) (created bool, err error) {
	info, err := os.Stat(dir)
	switch {
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, fmt.Errorf("%w: %s: %w", ErrNotWritable, dir, err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("%w: %s: %w", ErrNotWritable, dir, err)
	case !info.IsDir():
		return false, fmt.Errorf("%w: %s exists but is not a directory", ErrNotWritable, dir)
	}

	if err := unix.Access(dir, unix.W_OK); err != nil {
		return false, fmt.Errorf("%w: %s is not writable", ErrNotWritable, dir)
	}
	return false, nil
}

// Prepare creates <base>/<DDMMYYYY-HHMMSS>/ for now and returns the layout
func Prepare(base, filename string, now time.Time) (Layout, error) {
	runDir := filepath.Join(base, now.Format(RunDirLayout))
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return Layout{}, fmt.Errorf("%w: %s: %w", ErrNotWritable, runDir, err)
	}
	if err := unix.Access(runDir, unix.W_OK); err != nil {
		return Layout{}, fmt.Errorf("%w: %s is not writable", ErrNotWritable, runDir)
	}
	return Layout{
		BaseDir:   base,
		RunDir:    runDir,
		VideoPath: filepath.Join(runDir, filename),
	}, nil
}
