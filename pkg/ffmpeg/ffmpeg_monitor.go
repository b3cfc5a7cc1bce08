package ffmpeg

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strconv"
	"sync"
	"sync/atomic"
	"time"
)

// OutputBuffer stores recent output lines for crash dump analysis
type OutputBuffer struct {
	lines    []string
	maxLines int
	index    int
	full     bool
	mutex    sync.RWMutex
}

// NewOutputBuffer creates a circular buffer for storing recent output
func NewOutputBuffer(maxLines int) *OutputBuffer {
	if maxLines <= 0 {
		maxLines = 1
	}
	return &OutputBuffer{
		lines:    make([]string, maxLines),
		maxLines: maxLines,
	}
}

// Add stores a new line in the circular buffer
func (ob *OutputBuffer) Add(line string) {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	ob.lines[ob.index] = fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05.000"), line)
	ob.index = (ob.index + 1) % ob.maxLines
	if ob.index == 0 {
		ob.full = true
	}
}

// GetRecent returns the most recent lines (oldest first)
func (ob *OutputBuffer) GetRecent() []string {
	ob.mutex.RLock()
	defer ob.mutex.RUnlock()

	if !ob.full && ob.index == 0 {
		return []string{} // No lines yet
	}

	var result []string
	if ob.full {
		// Buffer is full, start from current index (oldest)
		for i := 0; i < ob.maxLines; i++ {
			idx := (ob.index + i) % ob.maxLines
			if ob.lines[idx] != "" {
				result = append(result, ob.lines[idx])
			}
		}
	} else {
		for i := 0; i < ob.index; i++ {
			if ob.lines[i] != "" {
				result = append(result, ob.lines[i])
			}
		}
	}
	return result
}

// progressMonitor reads the encoder's stderr, keeping the tail for error
// reports and the frame counter from its progress lines
type progressMonitor struct {
	buffer  *OutputBuffer
	encoded atomic.Int64
	done    chan struct{}
	logger  *slog.Logger
}

var (
	frameRegex    = regexp.MustCompile(`^frame=\s*(\d+)`)
	keyValueRegex = regexp.MustCompile(`^[a-z_0-9]+=`)
)

func newProgressMonitor(tail int, logger *slog.Logger) *progressMonitor {
	return &progressMonitor{
		buffer: NewOutputBuffer(tail),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// monitorOutput consumes pipe until it is closed
func (pm *progressMonitor) monitorOutput(pipe io.Reader) {
	defer close(pm.done)

	scanner := bufio.NewScanner(pipe)
	// Increase buffer size to handle long FFmpeg lines
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Text()
		pm.processOutputLine(line)
	}
	if err := scanner.Err(); err != nil {
		pm.buffer.Add(fmt.Sprintf("SCANNER_ERROR: %v", err))
	}
}

func (pm *progressMonitor) processOutputLine(line string) {
	if matches := frameRegex.FindStringSubmatch(line); len(matches) > 1 {
		if frameNum, err := strconv.ParseInt(matches[1], 10, 64); err == nil {
			pm.encoded.Store(frameNum)
		}
		return
	}
	// -progress emits key=value lines; everything else is a real message
	if keyValueRegex.MatchString(line) {
		return
	}
	pm.buffer.Add(line)
	if pm.logger != nil {
		pm.logger.Debug("ffmpeg output", "line", line)
	}
}

func (pm *progressMonitor) wait() {
	<-pm.done
}
