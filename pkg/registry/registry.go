package registry

import (
	"fmt"
	"sort"
	"sync"
)

// Logger is the subset of a component logger the registry writes to.
type Logger interface {
	Debugf(format string, v ...interface{})
}

// Registry holds the frame records of every live browsing session.
//
// A Registry is constructed once at process start and handed to the message
// dispatcher. All operations hold the lock for their whole duration, so a
// reader never observes a partially applied registration.
type Registry struct {
	mu       sync.RWMutex
	sessions map[SessionID]*sessionFrames
	logger   Logger
}

// sessionFrames is the per-session URL index. order keeps first-registration
// order so sibling and flat-list ordering is stable across polls.
type sessionFrames struct {
	order []string
	byURL map[string]*FrameRecord
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger makes the registry log every accepted registration.
func WithLogger(l Logger) Option {
	return func(r *Registry) {
		r.logger = l
	}
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		sessions: make(map[SessionID]*sessionFrames),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register records that the frame at url sits depth levels below the
// top-level context of session. A second registration for the same url
// replaces the stored depth.
func (r *Registry) Register(session SessionID, url string, depth int) error {
	if session == "" {
		return fmt.Errorf("%w: %w", ErrInvalidSender, ErrInvalidSession)
	}
	if url == "" {
		return ErrInvalidSender
	}
	if depth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, depth)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	frames, ok := r.sessions[session]
	if !ok {
		frames = &sessionFrames{byURL: make(map[string]*FrameRecord)}
		r.sessions[session] = frames
	}

	if rec, exists := frames.byURL[url]; exists {
		rec.Depth = depth
	} else {
		frames.byURL[url] = &FrameRecord{URL: url, Depth: depth}
		frames.order = append(frames.order, url)
	}

	if r.logger != nil {
		r.logger.Debugf("Registered frame: %s, depth: %d, session: %s", url, depth, session)
	}
	return nil
}

// BuildTree reconstructs the frame tree of session from the recorded depths.
// It returns nil when the session has no frames.
//
// Every record at depth d+1 becomes a child of every record at depth d.
// Parent links are not recorded, so when two frames share a depth their
// subtrees cannot be told apart and each of them lists all frames of the
// next level. If no frame reported depth 0 the result is a flat list of
// childless nodes in registration order.
//
// Nodes on the same level share their Children slice; callers must treat
// the returned tree as read-only.
func (r *Registry) BuildTree(session SessionID) Tree {
	r.mu.RLock()
	defer r.mu.RUnlock()

	frames, ok := r.sessions[session]
	if !ok || len(frames.order) == 0 {
		return nil
	}

	byDepth := make(map[int][]FrameRecord)
	maxDepth := 0
	for _, url := range frames.order {
		rec := *frames.byURL[url]
		byDepth[rec.Depth] = append(byDepth[rec.Depth], rec)
		if rec.Depth > maxDepth {
			maxDepth = rec.Depth
		}
	}

	if len(byDepth[0]) == 0 {
		flat := make(Tree, 0, len(frames.order))
		for _, url := range frames.order {
			rec := frames.byURL[url]
			flat = append(flat, &Node{URL: rec.URL, Depth: rec.Depth})
		}
		return flat
	}

	// Build from the deepest level up so each level can hang the already
	// built next level under every one of its nodes.
	var below []*Node
	for d := maxDepth; d >= 0; d-- {
		level := make([]*Node, 0, len(byDepth[d]))
		children := below
		if children == nil {
			children = []*Node{}
		}
		for _, rec := range byDepth[d] {
			level = append(level, &Node{URL: rec.URL, Depth: rec.Depth, Children: children})
		}
		below = level
	}
	return below
}

// CloseSession drops every record of session. It reports whether the
// session had any state.
func (r *Registry) CloseSession(session SessionID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions[session]; !ok {
		return false
	}
	delete(r.sessions, session)
	return true
}

// Len returns the number of distinct frame URLs recorded for session.
func (r *Registry) Len(session SessionID) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if frames, ok := r.sessions[session]; ok {
		return len(frames.order)
	}
	return 0
}

// Sessions returns the ids of all sessions with recorded frames, sorted.
func (r *Registry) Sessions() []SessionID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]SessionID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot returns a deep copy of all records, in registration order per
// session.
func (r *Registry) Snapshot() map[SessionID][]FrameRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := make(map[SessionID][]FrameRecord, len(r.sessions))
	for id, frames := range r.sessions {
		recs := make([]FrameRecord, 0, len(frames.order))
		for _, url := range frames.order {
			recs = append(recs, *frames.byURL[url])
		}
		snap[id] = recs
	}
	return snap
}
