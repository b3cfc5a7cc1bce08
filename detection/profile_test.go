package detection_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/detection"
)

func TestLoadBundledProfiles(t *testing.T) {
	t.Parallel()

	names := detection.BundledTrackerProfiles()
	assert.ElementsMatch(t, []string{"botsort.yaml", "bytetrack.yaml"}, names)

	profile, err := detection.LoadTrackerProfile("")
	require.NoError(t, err)
	assert.Equal(t, "bytetrack.yaml", profile.Name)
	assert.Equal(t, "bytetrack", profile.TrackerType)
	assert.Equal(t, 30, profile.TrackBuffer)
	assert.InDelta(t, 0.2, profile.MinIoU(), 1e-9)
}

func TestLoadProfileFromFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "custom.yaml")
	content := "tracker_type: bytetrack\ntrack_high_thresh: 0.5\ntrack_low_thresh: 0.2\nnew_track_thresh: 0.6\ntrack_buffer: 10\nmatch_thresh: 0.7\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	profile, err := detection.LoadTrackerProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom.yaml", profile.Name)
	assert.InDelta(t, 0.5, profile.HighThresh, 1e-9)
	assert.Equal(t, 10, profile.TrackBuffer)
}

func TestLoadProfileRejectsInvalid(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tracker_type: bytetrack\ntrack_high_thresh: 1.5\n"), 0o600))

	_, err := detection.LoadTrackerProfile(bad)
	require.ErrorIs(t, err, detection.ErrInvalidProfile)

	_, err = detection.LoadTrackerProfile(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
