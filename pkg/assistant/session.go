package assistant

import (
	"sync"
	"sync/atomic"

	"github.com/hagglekit/hagglekit/pkg/analysis"
	"github.com/hagglekit/hagglekit/pkg/chat"
	"github.com/hagglekit/hagglekit/pkg/negotiation"
)

// Session owns one conversation: its append-only log, the read-only
// negotiation context, and the last screenshot analysis. A session
// allows at most one in-flight request; overlapping calls are refused
// rather than queued.
type Session struct {
	ID      string
	Log     *chat.Log
	Deal    negotiation.Context
	busy    atomic.Bool
	mu      sync.RWMutex
	lastRes *analysis.Result
}

func NewSession(id string, deal negotiation.Context) *Session {
	return &Session{
		ID:   id,
		Log:  chat.NewLog(),
		Deal: deal,
	}
}

// acquire marks the session busy. Returns false if a request is already
// in flight.
func (s *Session) acquire() bool {
	return s.busy.CompareAndSwap(false, true)
}

func (s *Session) release() {
	s.busy.Store(false)
}

// LastAnalysis returns the most recent analysis result, or nil.
func (s *Session) LastAnalysis() *analysis.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastRes
}

// setAnalysis replaces the analysis result wholesale.
func (s *Session) setAnalysis(res *analysis.Result) {
	s.mu.Lock()
	s.lastRes = res
	s.mu.Unlock()
}
