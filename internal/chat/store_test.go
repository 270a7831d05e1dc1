package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendTrimsAndRejectsBlank(t *testing.T) {
	s := NewStore()

	msg, err := s.Send("  hello  ", map[string]any{"source": "input"})
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, RoleUser, msg.Role)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.Timestamp.IsZero())

	_, err = s.Send("   ", nil)
	assert.ErrorIs(t, err, ErrEmptyMessage)
	assert.Len(t, s.Snapshot().Messages, 1)
}

func TestAddMessageClearsError(t *testing.T) {
	s := NewStore()
	s.SetLoading(true)
	s.SetError("backend unavailable")

	st := s.Snapshot()
	assert.Equal(t, "backend unavailable", st.Error)
	assert.False(t, st.IsLoading, "an error stops the loading indicator")

	s.AddMessage(Message{Role: RoleSystem, Content: "retrying"})
	assert.Empty(t, s.Snapshot().Error)
}

func TestSetters(t *testing.T) {
	s := NewStore()
	s.SetConversationData(CompanyData{CompanyName: "Acme", LegalEntityType: LegalStructureLLC, ConfidenceScore: 0.9})
	s.SetCurrentStep(3)
	s.SetApplicationID("app-1")
	s.SetSessionID("sess-1")
	s.SetOpen(true)

	st := s.Snapshot()
	require.NotNil(t, st.ConversationData)
	assert.Equal(t, "Acme", st.ConversationData.CompanyName)
	assert.Equal(t, 3, st.CurrentStep)
	assert.Equal(t, "app-1", st.ApplicationID)
	assert.Equal(t, "sess-1", st.SessionID)
	assert.True(t, st.IsOpen)

	s.SetCurrentStep(99)
	assert.Equal(t, len(Steps)-1, s.Snapshot().CurrentStep)
	s.SetCurrentStep(-2)
	assert.Equal(t, 0, s.Snapshot().CurrentStep)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore()
	s.AddMessage(Message{Role: RoleUser, Content: "one"})
	s.SetConversationData(CompanyData{CompanyName: "Acme"})

	st := s.Snapshot()
	st.Messages[0].Content = "changed"
	st.ConversationData.CompanyName = "Other"

	again := s.Snapshot()
	assert.Equal(t, "one", again.Messages[0].Content)
	assert.Equal(t, "Acme", again.ConversationData.CompanyName)
}

func TestClearKeepsSessionAndDropsPersistedState(t *testing.T) {
	sessions := NewMemorySessionStore()
	s := NewStore(WithSessionStore(sessions))
	s.SetSessionID("sess-1")
	_, err := s.Send("hello", nil)
	require.NoError(t, err)

	blob, err := sessions.Load(context.Background(), SessionKey)
	require.NoError(t, err)
	require.NotNil(t, blob)

	s.Clear()
	st := s.Snapshot()
	assert.Empty(t, st.Messages)
	assert.Equal(t, "sess-1", st.SessionID)

	blob, err = sessions.Load(context.Background(), SessionKey)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestPersistenceExcludesTransientFlags(t *testing.T) {
	sessions := NewMemorySessionStore()
	s := NewStore(WithSessionStore(sessions))
	s.AddMessage(Message{Role: RoleUser, Content: "hi"})
	s.SetLoading(true)
	s.SetError("oops")

	blob, err := sessions.Load(context.Background(), SessionKey)
	require.NoError(t, err)
	var saved State
	require.NoError(t, json.Unmarshal(blob, &saved))
	assert.False(t, saved.IsLoading)
	assert.Empty(t, saved.Error)
	assert.Len(t, saved.Messages, 1)
}

func TestLoadRestoresSession(t *testing.T) {
	sessions := NewMemorySessionStore()
	first := NewStore(WithSessionStore(sessions))
	first.SetSessionID("sess-9")
	first.SetCurrentStep(2)
	first.AddMessage(Message{Role: RoleUser, Content: "register my company"})

	second := NewStore(WithSessionStore(sessions))
	require.NoError(t, second.Load(context.Background()))

	st := second.Snapshot()
	assert.Equal(t, "sess-9", st.SessionID)
	assert.Equal(t, 2, st.CurrentStep)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "register my company", st.Messages[0].Content)
}

func TestLoadIgnoresCorruptSession(t *testing.T) {
	sessions := NewMemorySessionStore()
	require.NoError(t, sessions.Save(context.Background(), SessionKey, []byte("{not json")))

	s := NewStore(WithSessionStore(sessions))
	require.NoError(t, s.Load(context.Background()))
	assert.Empty(t, s.Snapshot().Messages)
}

func TestSubscribersSeeChangesInOrder(t *testing.T) {
	s := NewStore()
	var mu sync.Mutex
	var counts []int
	unsubscribe := s.Subscribe(func(st State) {
		mu.Lock()
		counts = append(counts, len(st.Messages))
		mu.Unlock()
	})

	for i := 0; i < 3; i++ {
		s.AddMessage(Message{Role: RoleUser, Content: "m"})
	}
	unsubscribe()
	s.AddMessage(Message{Role: RoleUser, Content: "unseen"})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, counts)
}
