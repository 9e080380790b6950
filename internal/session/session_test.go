package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSession_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	s := NewFileSession(path, nil)

	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)

	require.NoError(t, s.Save(&TokenData{AccessToken: "abc"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "abc", token)

	loaded, err := s.Load()
	require.NoError(t, err)
	assert.False(t, loaded.StoredAt.IsZero())
}

func TestFileSession_Expired(t *testing.T) {
	s := NewFileSession(filepath.Join(t.TempDir(), "session.json"), nil)
	require.NoError(t, s.Save(&TokenData{AccessToken: "abc", ExpiresAt: time.Now().Add(30 * time.Second)}))

	_, err := s.Token(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestFileSession_OnUnauthorizedClears(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	s := NewFileSession(path, nil)
	require.NoError(t, s.Save(&TokenData{AccessToken: "abc"}))

	s.OnUnauthorized()

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.NoError(t, s.Clear())
}

func TestFileSession_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	_, err := NewFileSession(path, nil).Token(context.Background())
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotLoggedIn)
}

func TestTokenData_IsExpired(t *testing.T) {
	assert.False(t, (&TokenData{}).IsExpired())
	assert.False(t, (&TokenData{ExpiresAt: time.Now().Add(time.Hour)}).IsExpired())
	assert.True(t, (&TokenData{ExpiresAt: time.Now().Add(-time.Hour)}).IsExpired())
}

func TestStatic(t *testing.T) {
	called := false
	s := NewStatic("tok", func() { called = true })

	token, err := s.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok", token)

	s.OnUnauthorized()
	assert.True(t, called)

	_, err = NewStatic("", nil).Token(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
	NewStatic("", nil).OnUnauthorized()
}
