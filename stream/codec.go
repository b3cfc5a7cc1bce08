package stream

import (
	"errors"
	"fmt"
	"log/slog"

	"gocv.io/x/gocv"

	"trailcam/pkg/ffmpeg"
)

// Sink is an opened video writer
type Sink interface {
	IsOpened() bool
	Write(frame gocv.Mat) error
	Close() error
}

// Candidate is one way of opening a sink
type Candidate struct {
	Name string
	Open func(path string, desc Descriptor) (Sink, error)
}

// CodecPolicy tries its candidates in order; the first sink that opens wins
type CodecPolicy struct {
	Candidates []Candidate
}

// DefaultCodecs is the OpenCV fourcc order tried for the output video
var DefaultCodecs = []string{"avc1", "mp4v", "XVID"}

// FourCC opens the sink through OpenCV's VideoWriter with the given codec
func FourCC(codec string) Candidate {
	return Candidate{
		Name: codec,
		Open: func(path string, desc Descriptor) (Sink, error) {
			vw, err := gocv.VideoWriterFile(path, codec, desc.FPS, desc.Width, desc.Height, true)
			if err != nil {
				return nil, err
			}
			return vw, nil
		},
	}
}

// FFmpegPipe opens the sink as an ffmpeg subprocess encoding raw frames
func FFmpegPipe(binary string, logger *slog.Logger) Candidate {
	return Candidate{
		Name: "ffmpeg",
		Open: func(path string, desc Descriptor) (Sink, error) {
			pw, err := ffmpeg.StartPipe(ffmpeg.PipeConfig{
				Binary: binary,
				Output: path,
				Width:  desc.Width,
				Height: desc.Height,
				FPS:    desc.FPS,
				Logger: logger,
			})
			if err != nil {
				return nil, err
			}
			return &pipeSink{pw: pw, width: desc.Width, height: desc.Height}, nil
		},
	}
}

// NewCodecPolicy builds the fourcc candidates for codecs, followed by the
// ffmpeg pipe when ffmpegBinary is not empty
func NewCodecPolicy(codecs []string, ffmpegBinary string, logger *slog.Logger) CodecPolicy {
	var policy CodecPolicy
	for _, c := range codecs {
		policy.Candidates = append(policy.Candidates, FourCC(c))
	}
	if ffmpegBinary != "" {
		policy.Candidates = append(policy.Candidates, FFmpegPipe(ffmpegBinary, logger))
	}
	return policy
}

// Open returns the first sink that opens and the name of its candidate. Every
// candidate that fails is closed before the next one is tried.
func (p CodecPolicy) Open(path string, desc Descriptor, logger *slog.Logger) (Sink, string, error) {
	if len(p.Candidates) == 0 {
		return nil, "", fmt.Errorf("%w: no codec candidates", ErrSinkOpen)
	}

	var errs []error
	for _, c := range p.Candidates {
		sink, err := c.Open(path, desc)
		if err == nil && sink != nil && sink.IsOpened() {
			return sink, c.Name, nil
		}
		if sink != nil {
			if cerr := sink.Close(); cerr != nil {
				logger.Warn("closing failed writer", "codec", c.Name, "error", cerr)
			}
		}
		if err == nil {
			err = errors.New("writer did not open")
		}
		logger.Warn("codec unavailable, trying next", "codec", c.Name, "error", err)
		errs = append(errs, fmt.Errorf("%s: %w", c.Name, err))
	}
	return nil, "", fmt.Errorf("%w: %s: %w", ErrSinkOpen, path, errors.Join(errs...))
}

// pipeSink adapts the ffmpeg writer to Mats
type pipeSink struct {
	pw     *ffmpeg.PipeWriter
	width  int
	height int
}

func (s *pipeSink) IsOpened() bool {
	return s.pw.Running()
}

func (s *pipeSink) Write(frame gocv.Mat) error {
	if frame.Cols() != s.width || frame.Rows() != s.height || frame.Type() != gocv.MatTypeCV8UC3 {
		return fmt.Errorf("frame %dx%d does not match sink %dx%d bgr24", frame.Cols(), frame.Rows(), s.width, s.height)
	}
	return s.pw.Write(frame.ToBytes())
}

func (s *pipeSink) Close() error {
	return s.pw.Close()
}
