// Package session keeps bounded per-session conversation history in process
// memory. Sessions are cheap: they exist from the first History or Append
// call and disappear after sitting idle past the configured timeout.
package session

import (
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
)

const shardCount = 16

// state holds one session's history plus its serialization lock.
// opMu serializes whole query operations against the session; mu guards
// the fields for short reads and writes.
type state struct {
	opMu sync.Mutex

	mu       sync.Mutex
	turns    []domain.Turn
	lastSeen time.Time
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*state
}

// Store is a sharded in-memory session store with idle-based eviction.
type Store struct {
	shards      [shardCount]*shard
	historyCap  int
	idleTimeout time.Duration
	logger      *zap.Logger

	now  func() time.Time
	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a session store. historyCap bounds the number of retained
// turns per session; idleTimeout > 0 enables the background janitor that
// evicts sessions untouched for that long.
func New(historyCap int, idleTimeout time.Duration, logger *zap.Logger) (*Store, error) {
	if historyCap < 2 {
		return nil, fmt.Errorf("history cap must be >= 2, got %d: %w", historyCap, domain.ErrInvalidArgument)
	}

	s := &Store{
		historyCap:  historyCap,
		idleTimeout: idleTimeout,
		logger:      logger,
		now:         time.Now,
		done:        make(chan struct{}),
	}
	for i := range s.shards {
		s.shards[i] = &shard{sessions: make(map[string]*state)}
	}

	if idleTimeout > 0 {
		s.wg.Add(1)
		go s.janitor()
	}

	return s, nil
}

// ValidateID reports whether id is an acceptable session identifier.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("session ID is blank: %w", domain.ErrInvalidSession)
	}
	if len(id) > 128 {
		return fmt.Errorf("session ID exceeds 128 bytes: %w", domain.ErrInvalidSession)
	}
	for _, r := range id {
		if r < 0x20 || r == 0x7f {
			return fmt.Errorf("session ID contains control characters: %w", domain.ErrInvalidSession)
		}
	}
	return nil
}

// Lock acquires the session's operation lock. Concurrent queries against the
// same session run one at a time, in lock-acquisition order; other sessions
// are unaffected. The lookup can race the idle sweep, so after acquiring the
// lock the entry is re-checked against the map and the acquisition retried
// if the sweep evicted it in between.
func (s *Store) Lock(sessionID string) {
	sh := s.shards[shardIndex(sessionID)]
	for {
		st := s.get(sessionID)
		st.opMu.Lock()

		sh.mu.Lock()
		live := sh.sessions[sessionID] == st
		sh.mu.Unlock()
		if live {
			return
		}
		st.opMu.Unlock()
	}
}

// Unlock releases the session's operation lock.
func (s *Store) Unlock(sessionID string) {
	s.get(sessionID).opMu.Unlock()
}

// History returns a copy of the session's turns, oldest first. An unknown
// session yields an empty history.
func (s *Store) History(sessionID string) []domain.Turn {
	st := s.get(sessionID)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.lastSeen = s.now()
	out := make([]domain.Turn, len(st.turns))
	copy(out, st.turns)
	return out
}

// Append records a user turn and the paired assistant turn, evicting the
// oldest turns beyond the history cap.
func (s *Store) Append(sessionID string, turns ...domain.Turn) {
	if len(turns) == 0 {
		return
	}

	st := s.get(sessionID)

	st.mu.Lock()
	defer st.mu.Unlock()

	st.lastSeen = s.now()
	st.turns = append(st.turns, turns...)
	if excess := len(st.turns) - s.historyCap; excess > 0 {
		st.turns = append(st.turns[:0:0], st.turns[excess:]...)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += len(sh.sessions)
		sh.mu.Unlock()
	}
	return total
}

// Close stops the janitor. The store stays usable afterwards, it just no
// longer evicts idle sessions.
func (s *Store) Close() {
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.wg.Wait()
}

func (s *Store) get(sessionID string) *state {
	sh := s.shards[shardIndex(sessionID)]

	sh.mu.Lock()
	defer sh.mu.Unlock()

	st, ok := sh.sessions[sessionID]
	if !ok {
		st = &state{lastSeen: s.now()}
		sh.sessions[sessionID] = st
	}
	return st
}

func (s *Store) janitor() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.idleTimeout / 4)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.evictIdle()
		}
	}
}

// evictIdle drops sessions idle past the timeout. A session whose operation
// lock is held is in flight and gets skipped until the next sweep.
func (s *Store) evictIdle() {
	cutoff := s.now().Add(-s.idleTimeout)
	evicted := 0

	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, st := range sh.sessions {
			if !st.opMu.TryLock() {
				continue
			}
			st.mu.Lock()
			idle := st.lastSeen.Before(cutoff)
			st.mu.Unlock()

			// Delete before releasing the operation lock: a racing Lock
			// must never end up holding an entry the map no longer has.
			if idle {
				delete(sh.sessions, id)
				evicted++
			}
			st.opMu.Unlock()
		}
		sh.mu.Unlock()
	}

	if evicted > 0 {
		s.logger.Debug("Evicted idle sessions", zap.Int("count", evicted))
	}
}

func shardIndex(sessionID string) int {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return int(h.Sum32() % shardCount)
}
