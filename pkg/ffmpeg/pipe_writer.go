// Package ffmpeg drives an external ffmpeg process that encodes raw frames
// written to its stdin.
package ffmpeg

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

// ErrNotRunning is returned when writing to a closed or exited encoder
var ErrNotRunning = errors.New("ffmpeg is not running")

// PipeConfig describes the encoder process
type PipeConfig struct {
	// Binary defaults to "ffmpeg" looked up on PATH
	Binary string
	Output string
	Width  int
	Height int
	FPS    float64
	// Codec defaults to libx264
	Codec string
	// TailLines is how much stderr is kept for error reports
	TailLines int
	Logger    *slog.Logger
}

// PipeWriter feeds bgr24 frames to an ffmpeg process
type PipeWriter struct {
	cmd       *exec.Cmd
	stdinPipe io.WriteCloser
	stdin     *bufio.Writer
	frameSize int
	monitor   *progressMonitor
	logger    *slog.Logger

	mu     sync.Mutex
	closed bool
}

// Args builds the ffmpeg command line for cfg, without the binary
func Args(cfg PipeConfig) []string {
	codec := cfg.Codec
	if codec == "" {
		codec = "libx264"
	}
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-nostats",
		"-progress", "pipe:2",
		"-y",

		// Raw video from our processed frames
		"-f", "rawvideo",
		"-pix_fmt", "bgr24",
		"-s", fmt.Sprintf("%dx%d", cfg.Width, cfg.Height),
		"-r", strconv.FormatFloat(cfg.FPS, 'f', -1, 64),
		"-i", "-",

		"-c:v", codec,
		"-preset", "medium",
		"-pix_fmt", "yuv420p",
		"-movflags", "+faststart",
		cfg.Output,
	}
}

// StartPipe starts the encoder. The process runs until Close.
func StartPipe(cfg PipeConfig) (*PipeWriter, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.FPS <= 0 {
		return nil, fmt.Errorf("invalid frame geometry %dx%d at %v fps", cfg.Width, cfg.Height, cfg.FPS)
	}
	binary := cfg.Binary
	if binary == "" {
		binary = "ffmpeg"
	}
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg binary not found: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "ffmpeg")
	if cfg.TailLines <= 0 {
		cfg.TailLines = 50
	}

	cmd := exec.Command(path, Args(cfg)...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("could not get FFmpeg stdin: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("could not get FFmpeg stderr: %w", err)
	}

	logger.Debug("executing", "cmd", strings.Join(cmd.Args, " "))
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("could not start FFmpeg: %w", err)
	}

	monitor := newProgressMonitor(cfg.TailLines, logger)
	go monitor.monitorOutput(stderr)

	logger.Info("ffmpeg started", "pid", cmd.Process.Pid, "output", cfg.Output)

	return &PipeWriter{
		cmd:       cmd,
		stdinPipe: stdin,
		stdin:     bufio.NewWriterSize(stdin, cfg.Width*cfg.Height*3),
		frameSize: cfg.Width * cfg.Height * 3,
		monitor:   monitor,
		logger:    logger,
	}, nil
}

// Write sends one raw bgr24 frame
func (pw *PipeWriter) Write(frame []byte) error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.closed {
		return ErrNotRunning
	}
	if len(frame) != pw.frameSize {
		return fmt.Errorf("frame is %d bytes, expected %d", len(frame), pw.frameSize)
	}
	if _, err := pw.stdin.Write(frame); err != nil {
		return fmt.Errorf("write to ffmpeg: %w%s", err, pw.tail())
	}
	return nil
}

// Encoded returns the frame counter last reported by ffmpeg
func (pw *PipeWriter) Encoded() int64 {
	return pw.monitor.encoded.Load()
}

// Running reports whether the writer still accepts frames
func (pw *PipeWriter) Running() bool {
	pw.mu.Lock()
	defer pw.mu.Unlock()
	return !pw.closed
}

// Recent returns the last stderr lines, oldest first
func (pw *PipeWriter) Recent() []string {
	return pw.monitor.buffer.GetRecent()
}

// Close flushes stdin, waits for ffmpeg to finish the file and reports a
// non-zero exit together with its last output. Later calls return nil.
func (pw *PipeWriter) Close() error {
	pw.mu.Lock()
	defer pw.mu.Unlock()

	if pw.closed {
		return nil
	}
	pw.closed = true

	var errs []error
	if err := pw.stdin.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("flush ffmpeg stdin: %w", err))
	}
	if err := pw.stdinPipe.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close ffmpeg stdin: %w", err))
	}

	// stderr must be drained before Wait closes it
	pw.monitor.wait()
	if err := pw.cmd.Wait(); err != nil {
		errs = append(errs, fmt.Errorf("ffmpeg exited: %w%s", err, pw.tail()))
	}

	pw.logger.Info("ffmpeg stopped", "frames_encoded", pw.Encoded())
	return errors.Join(errs...)
}

func (pw *PipeWriter) tail() string {
	lines := pw.monitor.buffer.GetRecent()
	if len(lines) == 0 {
		return ""
	}
	return "\n" + strings.Join(lines, "\n")
}
