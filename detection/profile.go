package detection

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultTrackerProfile is used when no profile is configured
const DefaultTrackerProfile = "bytetrack.yaml"

// ErrInvalidProfile is returned for tracker profiles with out-of-range settings
var ErrInvalidProfile = errors.New("invalid tracker profile")

//go:embed profiles/*.yaml
var bundledProfiles embed.FS

// TrackerProfile configures identity assignment. Thresholds are confidences in
// [0, 1]; MatchThresh is the largest accepted matching cost (1 - IoU).
type TrackerProfile struct {
	Name           string  `yaml:"-"`
	TrackerType    string  `yaml:"tracker_type"`
	HighThresh     float64 `yaml:"track_high_thresh"`
	LowThresh      float64 `yaml:"track_low_thresh"`
	NewTrackThresh float64 `yaml:"new_track_thresh"`
	TrackBuffer    int     `yaml:"track_buffer"`
	MatchThresh    float64 `yaml:"match_thresh"`
}

// MinIoU is the smallest overlap that associates a detection with a track
func (p TrackerProfile) MinIoU() float64 {
	return 1 - p.MatchThresh
}

// Validate checks the profile settings
func (p TrackerProfile) Validate() error {
	switch p.TrackerType {
	case "bytetrack", "botsort":
	default:
		return fmt.Errorf("%w: unknown tracker_type %q", ErrInvalidProfile, p.TrackerType)
	}
	for name, v := range map[string]float64{
		"track_high_thresh": p.HighThresh,
		"track_low_thresh":  p.LowThresh,
		"new_track_thresh":  p.NewTrackThresh,
		"match_thresh":      p.MatchThresh,
	} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%w: %s must be within [0, 1], got %v", ErrInvalidProfile, name, v)
		}
	}
	if p.LowThresh > p.HighThresh {
		return fmt.Errorf("%w: track_low_thresh %v above track_high_thresh %v", ErrInvalidProfile, p.LowThresh, p.HighThresh)
	}
	if p.TrackBuffer < 0 {
		return fmt.Errorf("%w: track_buffer must not be negative", ErrInvalidProfile)
	}
	return nil
}

// LoadTrackerProfile resolves identifier as a bundled profile name
// ("bytetrack.yaml", "botsort.yaml") or as a path to a YAML file.
func LoadTrackerProfile(identifier string) (TrackerProfile, error) {
	if identifier == "" {
		identifier = DefaultTrackerProfile
	}

	data, err := bundledProfiles.ReadFile("profiles/" + identifier)
	if err != nil {
		data, err = os.ReadFile(identifier)
		if err != nil {
			return TrackerProfile{}, fmt.Errorf("tracker profile %q is neither bundled nor readable: %w", identifier, err)
		}
	}

	var profile TrackerProfile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return TrackerProfile{}, fmt.Errorf("could not parse tracker profile %q: %w", identifier, err)
	}
	profile.Name = filepath.Base(identifier)
	if err := profile.Validate(); err != nil {
		return TrackerProfile{}, fmt.Errorf("tracker profile %q: %w", identifier, err)
	}
	return profile, nil
}

// BundledTrackerProfiles lists the profile names shipped with the binary
func BundledTrackerProfiles() []string {
	entries, err := bundledProfiles.ReadDir("profiles")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
