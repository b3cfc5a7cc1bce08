package tracking

// Store keeps a bounded trajectory per identity for the lifetime of one run.
// Identities are never removed unless idle eviction is enabled. It is owned by a
// single goroutine and is not safe for concurrent use.
type Store struct {
	maxHistory int
	idleFrames int
	tracks     map[Identity]*ring
}

// Option configures a Store
type Option func(*Store)

// WithIdleEviction lets Evict drop trajectories whose newest point is more than
// frames frames old. Zero disables eviction.
func WithIdleEviction(frames int) Option {
	return func(s *Store) {
		if frames > 0 {
			s.idleFrames = frames
		}
	}
}

// NewStore creates a store keeping at most maxHistory points per identity.
// Non-positive values fall back to DefaultMaxHistory.
func NewStore(maxHistory int, opts ...Option) *Store {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	s := &Store{
		maxHistory: maxHistory,
		tracks:     make(map[Identity]*ring),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxHistory returns the per-identity point limit
func (s *Store) MaxHistory() int {
	return s.maxHistory
}

// Update appends p to the trajectory of id, creating it on first sighting,
// and returns the resulting trajectory.
func (s *Store) Update(id Identity, p Point) Trajectory {
	r, ok := s.tracks[id]
	if !ok {
		r = newRing(s.maxHistory)
		s.tracks[id] = r
	}
	r.push(p)
	return Trajectory{r: r}
}

// Get returns the trajectory of id. Unknown identities yield an empty trajectory.
func (s *Store) Get(id Identity) Trajectory {
	r, ok := s.tracks[id]
	if !ok {
		return Trajectory{}
	}
	return Trajectory{r: r}
}

// Len returns the number of identities seen so far
func (s *Store) Len() int {
	return len(s.tracks)
}

// Evict drops idle trajectories relative to the current frame index and
// reports how many were removed. It does nothing unless idle eviction is enabled.
func (s *Store) Evict(currentFrame int) int {
	if s.idleFrames == 0 {
		return 0
	}
	removed := 0
	for id, r := range s.tracks {
		if r.n == 0 {
			continue
		}
		if currentFrame-r.at(r.n-1).Frame > s.idleFrames {
			delete(s.tracks, id)
			removed++
		}
	}
	return removed
}
