package session

import (
	"container/heap"
	"sync"
	"time"

	"github.com/ValentinKolb/dStream/rpc/common"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var Logger = logger.GetLogger(common.LoggerSession)

// IRegistry maps session (conversation) ids to the time they were first seen
type IRegistry interface {
	// Has reports whether the session is known
	Has(id string) bool
	// Touch inserts the session with the current time. If the session is already
	// known nothing changes, the first-seen time is retained. It returns true if
	// the session was inserted.
	Touch(id string) bool
	// LastSeen returns the time the session was inserted and false if it is unknown
	LastSeen(id string) (time.Time, bool)
	// Forget removes the session. It returns false if the session was unknown.
	Forget(id string) bool
	// Len returns the number of known sessions
	Len() int
	// Range calls f for every session until f returns false
	Range(f func(id string, added time.Time) bool)
	// EvictBefore forgets all sessions inserted before cutoff and returns their ids
	EvictBefore(cutoff time.Time) []string
}

var _ IRegistry = (*Registry)(nil)

// Option configures a Registry
type Option func(*Registry)

// WithClock replaces the clock used for first-seen timestamps
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// Registry is the default IRegistry. Reads are lock free, writes are serialized
// so that the map and the age index always agree.
type Registry struct {
	sessions *xsync.MapOf[string, time.Time]
	mu       sync.Mutex // guards writes and the age index
	ages     *ageHeap
	now      func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		sessions: xsync.NewMapOf[string, time.Time](),
		ages:     newAgeHeap(),
		now:      time.Now,
	}
	heap.Init(r.ages)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// --------------------------------------------------------------------------
// Interface Methods (docu see session.IRegistry)
// --------------------------------------------------------------------------

func (r *Registry) Has(id string) bool {
	_, ok := r.sessions.Load(id)
	return ok
}

func (r *Registry) Touch(id string) bool {
	if id == "" {
		return false
	}
	// fast path without the write lock
	if _, ok := r.sessions.Load(id); ok {
		return false
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	added := r.now()
	if _, loaded := r.sessions.LoadOrStore(id, added); loaded {
		return false
	}
	r.ages.add(id, added)

	Logger.Debugf("Registered session %s", id)
	return true
}

func (r *Registry) LastSeen(id string) (time.Time, bool) {
	return r.sessions.Load(id)
}

func (r *Registry) Forget(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sessions.LoadAndDelete(id); !ok {
		return false
	}
	r.ages.remove(id)

	Logger.Debugf("Forgot session %s", id)
	return true
}

func (r *Registry) Len() int {
	return r.sessions.Size()
}

func (r *Registry) Range(f func(id string, added time.Time) bool) {
	r.sessions.Range(f)
}

func (r *Registry) EvictBefore(cutoff time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var evicted []string
	for {
		oldest, ok := r.ages.peek()
		if !ok || !oldest.added.Before(cutoff) {
			break
		}
		heap.Pop(r.ages)
		r.sessions.Delete(oldest.id)
		evicted = append(evicted, oldest.id)
	}

	if len(evicted) > 0 {
		Logger.Infof("Evicted %d sessions first seen before %s", len(evicted), cutoff.Format(time.RFC3339))
	}
	return evicted
}
