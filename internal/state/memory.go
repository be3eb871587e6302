package state

import (
	"errors"
	"sync"
	"time"

	"github.com/matst80/tcp2np/internal/pipe"
	"github.com/matst80/tcp2np/internal/relay"
)

type memoryStore struct {
	mu       sync.Mutex
	stats    Stats
	onChange func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{stats: Stats{Phase: relay.PhaseIdle.String()}}
}

var _ StateStore = (*memoryStore)(nil)

func (s *memoryStore) update(fn func(st *Stats)) {
	s.mu.Lock()
	fn(&s.stats)
	s.mu.Unlock()
	if s.onChange != nil {
		s.onChange()
	}
}

func (s *memoryStore) PhaseChanged(p relay.Phase) {
	s.update(func(st *Stats) { st.Phase = p.String() })
}

func (s *memoryStore) SessionOpened(sess relay.Session) {
	s.update(func(st *Stats) {
		st.TotalSessions++
		st.Session = &Session{ID: sess.ID, Remote: sess.Remote, Pipe: sess.Pipe, Started: sess.Started}
	})
}

func (s *memoryStore) SessionClosed(_ relay.Session, res relay.Result) {
	s.update(func(st *Stats) {
		st.Session = nil
		if res.PipeConnected {
			st.Relayed++
		}
		st.BytesToSocket += res.ToSocket
		st.BytesToPipe += res.ToPipe
		if res.Err == nil {
			return
		}
		st.LastError = res.Err.Error()
		switch {
		case errors.Is(res.Err, pipe.ErrConnectTimeout), errors.Is(res.Err, pipe.ErrConnectFailed):
			st.PipeFailures++
		case errors.Is(res.Err, relay.ErrStreamIO):
			st.StreamErrors++
		}
	})
}

func (s *memoryStore) SetClosing(closing bool) { s.update(func(st *Stats) { st.Closing = closing }) }
func (s *memoryStore) SetReady(ready bool)     { s.update(func(st *Stats) { st.Ready = ready }) }
func (s *memoryStore) IsClosing() bool         { s.mu.Lock(); defer s.mu.Unlock(); return s.stats.Closing }
func (s *memoryStore) IsReady() bool           { s.mu.Lock(); defer s.mu.Unlock(); return s.stats.Ready }

func (s *memoryStore) Stats() Stats {
	s.mu.Lock()
	st := s.stats
	if st.Session != nil {
		sess := *st.Session
		st.Session = &sess
	}
	s.mu.Unlock()
	st.Now = time.Now().UTC().Format(time.RFC3339)
	return st
}

func (s *memoryStore) Close() error { return nil }
