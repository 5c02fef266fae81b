// Package session holds bounded per-session conversation history.
package session

import (
	"sync"
	"sync/atomic"
	"time"
)

// Role identifies which side of the conversation a message belongs to.
type Role string

const (
	RoleQuestion Role = "question"
	RoleAnswer   Role = "answer"
)

// Message is one conversational turn. Immutable once appended. SourceIDs
// carries the chunk ids attributed to an answer.
type Message struct {
	Role      Role
	Text      string
	Time      time.Time
	SourceIDs []string
}

// record is the state of one session. Its mutex serializes appends for that
// session id; different sessions never contend with each other beyond the
// map lookup. lastAccess is atomic because Append/History update it under
// rec.mu while get/Sweep read it under the store mutex.
type record struct {
	mu        sync.Mutex
	messages  []Message
	createdAt time.Time

	lastAccess atomic.Int64 // unix nanoseconds
}

func (r *record) touch(now time.Time) {
	r.lastAccess.Store(now.UnixNano())
}

func (r *record) idleSince(cutoff time.Time) bool {
	return time.Unix(0, r.lastAccess.Load()).Before(cutoff)
}

// Store is the process-wide session memory. Sessions are created lazily on
// first reference and evicted after the idle TTL; a session's message list
// is trimmed oldest-first once it exceeds maxMessages.
type Store struct {
	maxMessages int
	ttl         time.Duration

	now func() time.Time // overridable in tests

	mu       sync.Mutex
	sessions map[string]*record
}

// New creates a session store. maxMessages must be positive; ttl <= 0
// disables idle eviction.
func New(maxMessages int, ttl time.Duration) *Store {
	if maxMessages <= 0 {
		maxMessages = 20
	}
	return &Store{
		maxMessages: maxMessages,
		ttl:         ttl,
		now:         time.Now,
		sessions:    make(map[string]*record),
	}
}

// Append adds messages to the session, creating it if needed. Appends to
// the same session are serialized in arrival order; the oldest messages are
// dropped once the list exceeds the maximum.
func (s *Store) Append(sessionID string, msgs ...Message) {
	rec := s.get(sessionID, true)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.messages = append(rec.messages, msgs...)
	if over := len(rec.messages) - s.maxMessages; over > 0 {
		rec.messages = append([]Message(nil), rec.messages[over:]...)
	}
	rec.touch(s.now())
}

// History returns the most recent maxMessages messages of the session in
// chronological order. An unknown or expired session yields an empty
// history, not an error.
func (s *Store) History(sessionID string, maxMessages int) []Message {
	rec := s.get(sessionID, false)
	if rec == nil {
		return nil
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.touch(s.now())

	n := len(rec.messages)
	if maxMessages > 0 && maxMessages < n {
		n = maxMessages
	}
	out := make([]Message, n)
	copy(out, rec.messages[len(rec.messages)-n:])
	return out
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep evicts every session idle longer than the TTL and returns the
// number evicted. cmd/server runs this periodically; expiry is also checked
// on access, so a missed sweep never resurrects stale history.
func (s *Store) Sweep() int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, rec := range s.sessions {
		if rec.idleSince(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}

// get returns the session record, dropping it first when expired. With
// create set, a missing session is initialized.
func (s *Store) get(sessionID string, create bool) *record {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[sessionID]
	if ok && s.ttl > 0 && rec.idleSince(now.Add(-s.ttl)) {
		delete(s.sessions, sessionID)
		ok = false
	}
	if !ok {
		if !create {
			return nil
		}
		rec = &record{createdAt: now}
		rec.touch(now)
		s.sessions[sessionID] = rec
	}
	return rec
}
