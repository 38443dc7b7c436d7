package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreSubmitAppendsUserThenPlaceholder(t *testing.T) {
	s := NewStore()
	s.SetInput("hello")

	turn, ok := s.Submit("hello")
	require.True(t, ok)

	st := s.Snapshot()
	require.Len(t, st.Messages, 2)
	assert.Equal(t, RoleUser, st.Messages[0].Role)
	assert.Equal(t, "hello", st.Messages[0].Content)
	assert.Equal(t, turn.UserID, st.Messages[0].ID)
	assert.Equal(t, RoleAssistant, st.Messages[1].Role)
	assert.Empty(t, st.Messages[1].Content)
	assert.Equal(t, turn.ReplyID, st.Messages[1].ID)
	assert.True(t, st.Busy)
	assert.Empty(t, st.Input)
}

func TestStoreSubmitTrimsAndRejects(t *testing.T) {
	s := NewStore()

	_, ok := s.Submit("   ")
	assert.False(t, ok, "blank text must be rejected")
	assert.Empty(t, s.Snapshot().Messages)

	turn, ok := s.Submit("  hi  ")
	require.True(t, ok)
	assert.Equal(t, "hi", turn.Query)

	_, ok = s.Submit("again")
	assert.False(t, ok, "submission while busy must be rejected")
	assert.Len(t, s.Snapshot().Messages, 2)
}

func TestStoreIDsUnique(t *testing.T) {
	s := NewStore()
	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		turn, ok := s.Submit("q")
		require.True(t, ok)
		require.False(t, seen[turn.UserID])
		require.False(t, seen[turn.ReplyID])
		seen[turn.UserID] = true
		seen[turn.ReplyID] = true
		s.SetBusy(false)
	}
	assert.Len(t, seen, 1000)
}

func TestStoreUpdateContent(t *testing.T) {
	s := NewStore()
	turn, _ := s.Submit("q")

	assert.True(t, s.UpdateContent(turn.ReplyID, "par"))
	assert.False(t, s.UpdateContent(turn.UserID, "edited"), "user messages are immutable")
	assert.False(t, s.UpdateContent("missing", "x"))

	s.FinishReveal(turn.ReplyID, "partial answer")
	assert.False(t, s.UpdateContent(turn.ReplyID, "late write"), "finished messages are immutable")

	st := s.Snapshot()
	assert.Equal(t, "q", st.Messages[0].Content)
	assert.Equal(t, "partial answer", st.Messages[1].Content)
	assert.False(t, st.Busy)
	assert.False(t, st.Typing)
}

func TestStoreSnapshotIsCopy(t *testing.T) {
	s := NewStore()
	id := s.AppendPlaceholder(RoleAssistant)
	snap := s.Snapshot()
	snap.Messages[0].Content = "mutated"

	s.UpdateContent(id, "real")
	assert.Equal(t, "real", s.Snapshot().Messages[0].Content)
}

func TestStoreChangesCoalesce(t *testing.T) {
	s := NewStore()
	s.SetInput("a")
	s.SetInput("ab")
	s.SetTyping(true)

	select {
	case <-s.Changes():
	default:
		t.Fatal("expected a change notification")
	}
	select {
	case <-s.Changes():
		t.Fatal("expected notifications to coalesce")
	default:
	}
}

func TestStateLastAnswer(t *testing.T) {
	s := NewStore()
	_, ok := s.Snapshot().LastAnswer()
	assert.False(t, ok)

	s.AppendMessage(RoleAssistant, "first")
	turn, _ := s.Submit("q")
	s.MarkError(turn.ReplyID)

	st := s.Snapshot()
	m, ok := st.LastAnswer()
	require.True(t, ok)
	assert.Equal(t, "first", m.Content, "empty placeholder is skipped")

	last, ok := st.Last()
	require.True(t, ok)
	assert.True(t, last.Error)
}
