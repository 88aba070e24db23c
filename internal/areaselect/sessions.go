package areaselect

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
)

// State is the snapshot returned to clients after every draw action.
type State struct {
	Drawing   bool         `json:"drawing"`
	Points    [][2]float64 `json:"points"`
	Closed    bool         `json:"closed"`
	Area      [][2]float64 `json:"area"`
	AreaSqM   float64      `json:"area_sq_m"`
	Tolerance float64      `json:"tolerance"`
}

type session struct {
	sel     *Selector
	current AreaOfInterest
	touched time.Time
}

// Sessions keeps one Selector per user. Completed areas stay available as
// the user's current selection until the next StartDrawing or Clear.
type Sessions struct {
	mu      sync.Mutex
	byUser  map[string]*session
	opts    []Option
	idleTTL time.Duration
	now     func() time.Time
}

// NewSessions returns an empty registry. Sessions idle for longer than
// idleTTL are dropped the next time any user starts drawing.
func NewSessions(idleTTL time.Duration, opts ...Option) *Sessions {
	return &Sessions{
		byUser:  make(map[string]*session),
		opts:    opts,
		idleTTL: idleTTL,
		now:     time.Now,
	}
}

func (s *Sessions) get(userID string) *session {
	sess, ok := s.byUser[userID]
	if !ok {
		sess = &session{}
		sess.sel = New(func(aoi AreaOfInterest) { sess.current = aoi }, s.opts...)
		s.byUser[userID] = sess
	}
	sess.touched = s.now()
	return sess
}

// Start resets the user's selector and enters draw mode.
func (s *Sessions) Start(userID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	sess := s.get(userID)
	sess.current = nil
	sess.sel.StartDrawing()
	return sess.state()
}

// Add feeds one display-order click to the user's selector.
func (s *Sessions) Add(userID string, p orb.Point) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID)
	sess.sel.AddPoint(p)
	return sess.state()
}

// Clear empties the user's selection.
func (s *Sessions) Clear(userID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.get(userID)
	sess.sel.Clear()
	return sess.state()
}

// Get returns the user's state without changing it.
func (s *Sessions) Get(userID string) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[userID]
	if !ok {
		return emptyState(s.opts)
	}
	return sess.state()
}

// Current returns the user's last completed area, if any.
func (s *Sessions) Current(userID string) (AreaOfInterest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byUser[userID]
	if !ok || sess.current.Empty() {
		return nil, false
	}
	out := make(AreaOfInterest, len(sess.current))
	copy(out, sess.current)
	return out, true
}

// Len returns the number of tracked users.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser)
}

func (s *Sessions) pruneLocked() {
	if s.idleTTL <= 0 {
		return
	}
	cutoff := s.now().Add(-s.idleTTL)
	for id, sess := range s.byUser {
		if sess.touched.Before(cutoff) {
			delete(s.byUser, id)
		}
	}
}

func (sess *session) state() State {
	st := State{
		Drawing:   sess.sel.Drawing(),
		Points:    pairs(sess.sel.Points()),
		Closed:    !sess.current.Empty(),
		Area:      sess.current.Coordinates(),
		Tolerance: sess.sel.Tolerance(),
	}
	if st.Closed {
		st.AreaSqM = sess.current.AreaSqMeters()
	}
	return st
}

func emptyState(opts []Option) State {
	tmp := New(nil, opts...)
	return State{
		Points:    [][2]float64{},
		Area:      [][2]float64{},
		Tolerance: tmp.Tolerance(),
	}
}

func pairs(points []orb.Point) [][2]float64 {
	out := make([][2]float64, len(points))
	for i, p := range points {
		out[i] = [2]float64{p[0], p[1]}
	}
	return out
}
