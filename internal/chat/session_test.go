package chat

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLiteSessionStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.db")
	store, err := NewSQLiteSessionStore(path)
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	blob, err := store.Load(ctx, SessionKey)
	require.NoError(t, err)
	assert.Nil(t, blob)

	require.NoError(t, store.Save(ctx, SessionKey, []byte(`{"messages":[]}`)))
	require.NoError(t, store.Save(ctx, SessionKey, []byte(`{"messages":[],"currentStep":1}`)))

	blob, err = store.Load(ctx, SessionKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"messages":[],"currentStep":1}`, string(blob))

	require.NoError(t, store.Delete(ctx, SessionKey))
	blob, err = store.Load(ctx, SessionKey)
	require.NoError(t, err)
	assert.Nil(t, blob)
}

func TestSQLiteSessionSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.db")

	first, err := NewSQLiteSessionStore(path)
	require.NoError(t, err)
	s := NewStore(WithSessionStore(first))
	s.SetApplicationID("app-42")
	s.AddMessage(Message{Role: RoleUser, Content: "hello"})
	require.NoError(t, first.Close())

	second, err := NewSQLiteSessionStore(path)
	require.NoError(t, err)
	defer second.Close()
	restored := NewStore(WithSessionStore(second))
	require.NoError(t, restored.Load(context.Background()))

	st := restored.Snapshot()
	assert.Equal(t, "app-42", st.ApplicationID)
	require.Len(t, st.Messages, 1)
	assert.Equal(t, "hello", st.Messages[0].Content)
}

func TestSQLiteSessionStoreRejectsEmptyPath(t *testing.T) {
	_, err := NewSQLiteSessionStore("")
	assert.Error(t, err)
}
