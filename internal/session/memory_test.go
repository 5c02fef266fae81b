package session

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func msg(role Role, text string) Message {
	return Message{Role: role, Text: text, Time: time.Now()}
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := New(10, time.Hour)

	s.Append("sess-1",
		msg(RoleQuestion, "what is the sky?"),
		msg(RoleAnswer, "the sky is blue"),
	)

	history := s.History("sess-1", 0)
	require.Len(t, history, 2)
	assert.Equal(t, RoleQuestion, history[0].Role)
	assert.Equal(t, "what is the sky?", history[0].Text)
	assert.Equal(t, RoleAnswer, history[1].Role)
	assert.Equal(t, "the sky is blue", history[1].Text)
}

func TestStore_UnknownSessionIsEmpty(t *testing.T) {
	s := New(10, time.Hour)
	assert.Empty(t, s.History("never-seen", 0))
	assert.Equal(t, 0, s.Len(), "reading must not create sessions")
}

func TestStore_HistoryLimit(t *testing.T) {
	s := New(10, time.Hour)
	for i := 0; i < 6; i++ {
		s.Append("sess-1", msg(RoleQuestion, fmt.Sprintf("q%d", i)))
	}

	history := s.History("sess-1", 2)
	require.Len(t, history, 2)
	// The most recent messages, still in chronological order.
	assert.Equal(t, "q4", history[0].Text)
	assert.Equal(t, "q5", history[1].Text)
}

func TestStore_TrimsOldestFirst(t *testing.T) {
	s := New(4, time.Hour)
	for i := 0; i < 6; i++ {
		s.Append("sess-1", msg(RoleQuestion, fmt.Sprintf("q%d", i)))
	}

	history := s.History("sess-1", 0)
	require.Len(t, history, 4)
	assert.Equal(t, "q2", history[0].Text)
	assert.Equal(t, "q5", history[3].Text)
}

func TestStore_TTLExpiryOnAccess(t *testing.T) {
	now := time.Now()
	s := New(10, time.Hour)
	s.now = func() time.Time { return now }

	s.Append("sess-1", msg(RoleQuestion, "hello"))

	// Just inside the TTL: still there.
	now = now.Add(59 * time.Minute)
	require.Len(t, s.History("sess-1", 0), 1)

	// The access above refreshed the idle clock; expire past it.
	now = now.Add(61 * time.Minute)
	assert.Empty(t, s.History("sess-1", 0))
	assert.Equal(t, 0, s.Len(), "expired session is dropped, not resurrected")
}

func TestStore_AppendAfterExpiryStartsFresh(t *testing.T) {
	now := time.Now()
	s := New(10, time.Hour)
	s.now = func() time.Time { return now }

	s.Append("sess-1", msg(RoleQuestion, "old"))
	now = now.Add(2 * time.Hour)
	s.Append("sess-1", msg(RoleQuestion, "new"))

	history := s.History("sess-1", 0)
	require.Len(t, history, 1)
	assert.Equal(t, "new", history[0].Text)
}

func TestStore_Sweep(t *testing.T) {
	now := time.Now()
	s := New(10, time.Hour)
	s.now = func() time.Time { return now }

	s.Append("idle", msg(RoleQuestion, "a"))
	now = now.Add(30 * time.Minute)
	s.Append("active", msg(RoleQuestion, "b"))
	now = now.Add(45 * time.Minute)

	// "idle" is 75 minutes stale, "active" only 45.
	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 1, s.Len())
	assert.Empty(t, s.History("idle", 0))
	assert.Len(t, s.History("active", 0), 1)
}

func TestStore_SweepDisabledWithoutTTL(t *testing.T) {
	s := New(10, 0)
	s.Append("sess-1", msg(RoleQuestion, "a"))
	assert.Equal(t, 0, s.Sweep())
	assert.Len(t, s.History("sess-1", 0), 1)
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := New(10, time.Hour)
	s.Append("sess-1", msg(RoleQuestion, "one"))
	s.Append("sess-2", msg(RoleQuestion, "two"))

	require.Len(t, s.History("sess-1", 0), 1)
	assert.Equal(t, "one", s.History("sess-1", 0)[0].Text)
	assert.Equal(t, "two", s.History("sess-2", 0)[0].Text)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	s := New(1000, time.Hour)

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("shared", msg(RoleQuestion, fmt.Sprintf("g%d-%d", g, i)))
				s.History("shared", 10)
			}
		}(g)
	}
	wg.Wait()

	assert.Len(t, s.History("shared", 0), 400)
}

func TestStore_ConcurrentAccessWithSweep(t *testing.T) {
	s := New(100, time.Hour)

	// Appends and reads on one session while sweeps and expiry checks scan
	// the store; the idle timestamp is shared between both paths.
	var wg sync.WaitGroup
	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				s.Append("shared", msg(RoleQuestion, fmt.Sprintf("g%d-%d", g, i)))
				s.History("shared", 5)
			}
		}(g)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			s.Sweep()
			s.History("shared", 1)
		}
	}()
	wg.Wait()

	assert.NotEmpty(t, s.History("shared", 0))
	assert.Equal(t, 1, s.Len(), "an active session must never be swept")
}

func TestStore_HistoryIsACopy(t *testing.T) {
	s := New(10, time.Hour)
	s.Append("sess-1", msg(RoleQuestion, "original"))

	history := s.History("sess-1", 0)
	history[0].Text = "mutated"

	assert.Equal(t, "original", s.History("sess-1", 0)[0].Text)
}
