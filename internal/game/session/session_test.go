package session

import (
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEntity_Push(t *testing.T) {
	e := NewEntity("c1", 4)
	require.NoError(t, e.Push(Event{Name: "hello"}))

	evt := <-e.Events()
	assert.Equal(t, "hello", evt.Name)
}

func TestEntity_PushClosed(t *testing.T) {
	e := NewEntity("c1", 4)
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
	assert.Error(t, e.Push(Event{Name: "fail"}))
}

func TestEntity_PushFull(t *testing.T) {
	e := NewEntity("c1", 1)
	require.NoError(t, e.Push(Event{Name: "first"}))
	err := e.Push(Event{Name: "overflow"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buffer full")
}

func TestEntity_CloseIdempotent(t *testing.T) {
	e := NewEntity("c1", 4)
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())
	assert.True(t, e.IsClosed())
}

func TestEntity_Drain(t *testing.T) {
	e := NewEntity("c1", 4)
	require.NoError(t, e.Push(Event{Name: "a"}))
	require.NoError(t, e.Push(Event{Name: "b"}))

	got := e.Drain()
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, "b", got[1].Name)
	assert.Empty(t, e.Drain())
}

func TestSession_AttachDetach(t *testing.T) {
	now := time.Now()
	conn := NewEntity("c1", 4)
	s := New("s1", "Alice", conn, now)
	assert.True(t, s.Online())

	epoch := s.Detach(now.Add(time.Second))
	assert.False(t, s.Online())
	assert.Equal(t, uint64(1), epoch)
	assert.Equal(t, now.Add(time.Second), s.OfflineSince)

	s.Attach(NewEntity("c2", 4))
	assert.True(t, s.Online())
	assert.True(t, s.OfflineSince.IsZero())

	assert.Equal(t, uint64(2), s.Detach(now))
}

func TestSession_SendOffline(t *testing.T) {
	s := New("s1", "Alice", nil, time.Now())
	sent, err := s.Send(Event{Name: "x"})
	assert.False(t, sent)
	assert.NoError(t, err)
}

func TestSanitizeName(t *testing.T) {
	assert.Equal(t, "Alice", SanitizeName("  Alice \n", 24))
	assert.Equal(t, DefaultName, SanitizeName("   ", 24))
	assert.Equal(t, DefaultName, SanitizeName("\x00\x07", 24))
	assert.Equal(t, "Bob", SanitizeName("B\x1bob", 24))
	assert.Equal(t, "Zoë", SanitizeName("Zoëlle", 3))
}

func TestSanitizeName_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		name := rapid.String().Draw(rt, "name")
		maxLen := rapid.IntRange(1, 40).Draw(rt, "maxLen")
		got := SanitizeName(name, maxLen)
		assert.NotEmpty(rt, got)
		if got != DefaultName {
			assert.LessOrEqual(rt, utf8.RuneCountInString(got), maxLen)
		}
	})
}
