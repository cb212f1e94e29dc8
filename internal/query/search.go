package query

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Searcher runs one search for term.
type Searcher func(ctx context.Context, term string) (any, error)

// Result is one delivered search answer.
type Result struct {
	Term  string `json:"term"`
	Seq   uint64 `json:"seq"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// SearchSession debounces keystrokes, runs the searcher for the settled term
// and delivers only answers that are still the latest.
type SearchSession struct {
	ID string

	ctx      context.Context
	cancel   context.CancelFunc
	search   Searcher
	seq      *Sequencer
	debounce *Debouncer[string]
	results  chan Result
	log      *zap.Logger
}

func newSearchSession(parent context.Context, id string, wait time.Duration, search Searcher, log *zap.Logger) *SearchSession {
	ctx, cancel := context.WithCancel(parent)
	s := &SearchSession{
		ID:      id,
		ctx:     ctx,
		cancel:  cancel,
		search:  search,
		seq:     NewSequencer(),
		results: make(chan Result, 1),
		log:     log,
	}
	s.debounce = NewDebouncer(wait, s.run)
	return s
}

// Input records a keystroke.
func (s *SearchSession) Input(term string) {
	s.debounce.Trigger(term)
}

// Results delivers settled answers until Done is closed.
func (s *SearchSession) Results() <-chan Result { return s.results }

// Done is closed once the session ends.
func (s *SearchSession) Done() <-chan struct{} { return s.ctx.Done() }

func (s *SearchSession) run(term string) {
	t := s.seq.Begin(s.ID)
	data, err := s.search(s.ctx, term)
	if s.ctx.Err() != nil || !s.seq.Commit(t) {
		s.log.Debug("search answer superseded", zap.String("session", s.ID), zap.String("term", term))
		return
	}
	res := Result{Term: term, Seq: t.Seq, Data: data}
	if err != nil {
		res = Result{Term: term, Seq: t.Seq, Error: err.Error()}
	}
	// The channel holds one answer; a newer one replaces an unread older one.
	for {
		select {
		case s.results <- res:
			return
		case <-s.ctx.Done():
			return
		default:
		}
		select {
		case <-s.results:
		default:
		}
	}
}

func (s *SearchSession) close() {
	s.debounce.Stop()
	s.cancel()
}

// Registry tracks open search sessions by id.
type Registry struct {
	wait time.Duration
	log  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*SearchSession
}

func NewRegistry(wait time.Duration, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	return &Registry{wait: wait, log: log, sessions: map[string]*SearchSession{}}
}

// Open starts a session bound to ctx, replacing any session with the same id.
func (r *Registry) Open(ctx context.Context, id string, search Searcher) *SearchSession {
	s := newSearchSession(ctx, id, r.wait, search, r.log)
	r.mu.Lock()
	old := r.sessions[id]
	r.sessions[id] = s
	r.mu.Unlock()
	if old != nil {
		old.close()
	}
	return s
}

func (r *Registry) Get(id string) (*SearchSession, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close ends s if it is still the registered session for its id.
func (r *Registry) Close(s *SearchSession) {
	r.mu.Lock()
	if r.sessions[s.ID] == s {
		delete(r.sessions, s.ID)
	}
	r.mu.Unlock()
	s.close()
}
