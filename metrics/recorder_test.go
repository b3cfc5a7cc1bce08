package metrics_test

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/metrics"
)

func TestRecorderCountsFrames(t *testing.T) {
	t.Parallel()

	r := metrics.NewRecorder()
	r.ObserveFrame(10*time.Millisecond, 3, false)
	r.ObserveFrame(20*time.Millisecond, 0, true)
	r.SetTrajectories(5)
	r.SetProgress(50)

	expected := `
# HELP trailcam_frames_processed_total Frames read, processed and written.
# TYPE trailcam_frames_processed_total counter
trailcam_frames_processed_total 2
# HELP trailcam_frame_errors_total Frames written raw because processing failed.
# TYPE trailcam_frame_errors_total counter
trailcam_frame_errors_total 1
# HELP trailcam_detections_total Objects detected over all frames.
# TYPE trailcam_detections_total counter
trailcam_detections_total 3
# HELP trailcam_active_trajectories Identities held by the trajectory store.
# TYPE trailcam_active_trajectories gauge
trailcam_active_trajectories 5
# HELP trailcam_progress_ratio Fraction of the input processed, 0 to 1.
# TYPE trailcam_progress_ratio gauge
trailcam_progress_ratio 0.5
`
	err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected),
		"trailcam_frames_processed_total",
		"trailcam_frame_errors_total",
		"trailcam_detections_total",
		"trailcam_active_trajectories",
		"trailcam_progress_ratio",
	)
	require.NoError(t, err)

	count, err := testutil.GatherAndCount(r.Registry(), "trailcam_frame_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestServeExposesMetrics(t *testing.T) {
	t.Parallel()

	r := metrics.NewRecorder()
	r.ObserveFrame(time.Millisecond, 1, false)

	srv, err := metrics.Serve("127.0.0.1:0", r, slog.Default())
	require.NoError(t, err)
	defer srv.Close()

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "trailcam_frames_processed_total 1")

	require.NoError(t, srv.Close())
}
