package tracking

import (
	"image"
)

// DefaultMaxHistory is the number of points kept per trajectory
const DefaultMaxHistory = 30

// Identity is the track identifier assigned by the detector. The store treats
// it as an opaque key.
type Identity int

// Point represents a single trajectory sample: the box center seen on a frame
type Point struct {
	Position image.Point
	Frame    int
}

// Trajectory is a read-only view over the points of one identity, oldest first.
// The zero value is an empty trajectory.
type Trajectory struct {
	r *ring
}

// Len returns the number of points in the trajectory
func (t Trajectory) Len() int {
	if t.r == nil {
		return 0
	}
	return t.r.n
}

// At returns the i-th point, 0 being the oldest
func (t Trajectory) At(i int) Point {
	return t.r.at(i)
}

// Last returns the most recent point and false when the trajectory is empty
func (t Trajectory) Last() (Point, bool) {
	if t.Len() == 0 {
		return Point{}, false
	}
	return t.r.at(t.r.n - 1), true
}

// Points copies the trajectory into a new slice in arrival order
func (t Trajectory) Points() []Point {
	points := make([]Point, t.Len())
	for i := range points {
		points[i] = t.r.at(i)
	}
	return points
}

// Positions copies only the pixel positions, ready for drawing
func (t Trajectory) Positions() []image.Point {
	positions := make([]image.Point, t.Len())
	for i := range positions {
		positions[i] = t.r.at(i).Position
	}
	return positions
}

// ring is a fixed-capacity FIFO. Once full, each push overwrites the oldest point.
type ring struct {
	buf  []Point
	head int
	n    int
}

func newRing(capacity int) *ring {
	return &ring{buf: make([]Point, capacity)}
}

func (r *ring) push(p Point) {
	capacity := len(r.buf)
	if r.n < capacity {
		r.buf[(r.head+r.n)%capacity] = p
		r.n++
		return
	}
	r.buf[r.head] = p
	r.head = (r.head + 1) % capacity
}

func (r *ring) at(i int) Point {
	if i < 0 || i >= r.n {
		panic("tracking: trajectory index out of range")
	}
	return r.buf[(r.head+i)%len(r.buf)]
}
