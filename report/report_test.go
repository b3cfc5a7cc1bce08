package report_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trailcam/report"
)

func sample(dir string) *report.Report {
	r := report.New()
	r.Timestamp = time.Date(2026, 3, 14, 9, 26, 53, 0, time.Local)
	r.InputPath = "media/clip.mp4"
	r.OutputPath = filepath.Join(dir, "result.mp4")
	r.FramesProcessed = 250
	r.TotalFrames = 250
	r.FrameErrors = 2
	r.Duration = 12500 * time.Millisecond
	r.Device = "cpu"
	r.Codec = "mp4v"
	r.Status = report.StatusCompleted
	return r
}

func TestNewAssignsRunID(t *testing.T) {
	t.Parallel()

	a, b := report.New(), report.New()
	_, err := uuid.Parse(a.RunID)
	require.NoError(t, err)
	assert.NotEqual(t, a.RunID, b.RunID)
}

func TestAverageFPS(t *testing.T) {
	t.Parallel()

	r := sample(t.TempDir())
	assert.InDelta(t, 20.0, r.AverageFPS(), 1e-9)

	r.Duration = 0
	assert.InDelta(t, 0.0, r.AverageFPS(), 1e-9)
}

func TestWriteFileFormat(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	r := sample(dir)

	path, err := r.WriteFile()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, report.FileName), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(string(data), "\n")

	assert.Equal(t, "Object Detection - Processing Report", lines[0])
	assert.Equal(t, strings.Repeat("=", 50), lines[1])
	assert.Equal(t, "Timestamp: 2026-03-14 09:26:53", lines[2])
	assert.Equal(t, "Frames Processed: 250/250", lines[3])
	assert.Equal(t, "Processing Time: 12.50 seconds", lines[4])
	assert.Equal(t, "Average FPS: 20.00", lines[5])
	assert.Equal(t, "Output Video: result.mp4", lines[6])
	assert.Equal(t, "Output Directory: "+dir, lines[7])
	assert.Contains(t, string(data), "Status: completed\n")
}

func TestLedgerRecordAndRecent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	dir := t.TempDir()
	ledger, err := report.OpenLedger(filepath.Join(dir, "nested", "runs.db"))
	require.NoError(t, err)
	defer ledger.Close()

	older := sample(dir)
	older.Timestamp = older.Timestamp.Add(-time.Hour)
	older.Status = report.StatusInterrupted
	newer := sample(dir)

	require.NoError(t, ledger.Record(ctx, older))
	require.NoError(t, ledger.Record(ctx, newer))

	runs, err := ledger.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, newer.RunID, runs[0].RunID)
	assert.Equal(t, report.StatusCompleted, runs[0].Status)
	assert.Equal(t, 250, runs[0].FramesProcessed)
	assert.Equal(t, 12500*time.Millisecond, runs[0].Duration)
	assert.True(t, newer.Timestamp.Equal(runs[0].Timestamp))
	assert.Equal(t, report.StatusInterrupted, runs[1].Status)

	runs, err = ledger.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}
