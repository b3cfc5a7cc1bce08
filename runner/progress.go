package runner

import "time"

// Sample is the progress state after one written frame
type Sample struct {
	Processed int
	Total     int
	Elapsed   time.Duration // time spent on the last frame
}

// Percent is the share of the input processed, capped at 100. Unknown totals give 0.
func (s Sample) Percent() float64 {
	if s.Total <= 0 {
		return 0
	}
	return min(float64(s.Processed)/float64(s.Total)*100, 100)
}

// FPS is the instantaneous rate implied by the last frame's duration
func (s Sample) FPS() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return 1 / s.Elapsed.Seconds()
}

// Meter decides when progress is worth logging: once each time the integer
// percentage reaches the next multiple of step.
type Meter struct {
	step int
	next int
}

// NewMeter creates a meter emitting every step percent. Non-positive steps mean 1.
func NewMeter(step int) *Meter {
	if step <= 0 {
		step = 1
	}
	return &Meter{step: step, next: step}
}

// Observe returns true when s crosses the next step
func (m *Meter) Observe(s Sample) bool {
	if s.Total <= 0 {
		return false
	}
	pct := int(s.Percent())
	if pct < m.next {
		return false
	}
	m.next = (pct/m.step + 1) * m.step
	return true
}
