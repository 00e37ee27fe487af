package linktoken

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	tokens map[string]string // token -> userID
	used   map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{tokens: make(map[string]string), used: make(map[string]bool)}
}

func (s *fakeStore) CreateConnectToken(token, userID string) (time.Time, error) {
	s.tokens[token] = userID
	return time.Now().Add(15 * time.Minute), nil
}

func (s *fakeStore) ConsumeConnectToken(token string) (string, error) {
	userID, ok := s.tokens[token]
	if !ok || s.used[token] {
		return "", sql.ErrNoRows
	}
	s.used[token] = true
	return userID, nil
}

func TestCreateThenConsume_ReturnsBoundUserID(t *testing.T) {
	st := newFakeStore()
	issuer := NewIssuer(st)

	token, expiresAt, err := issuer.Create("user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.True(t, expiresAt.After(time.Now()))

	userID, err := issuer.Consume(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestConsume_DoubleConsumeReturnsInvalid(t *testing.T) {
	st := newFakeStore()
	issuer := NewIssuer(st)

	token, _, err := issuer.Create("user-1")
	require.NoError(t, err)

	_, err = issuer.Consume(token)
	require.NoError(t, err)

	_, err = issuer.Consume(token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestConsume_UnknownTokenReturnsInvalid(t *testing.T) {
	issuer := NewIssuer(newFakeStore())
	_, err := issuer.Consume("never-issued")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestCreate_EachCallMintsADistinctToken(t *testing.T) {
	st := newFakeStore()
	issuer := NewIssuer(st)

	t1, _, err := issuer.Create("user-1")
	require.NoError(t, err)
	t2, _, err := issuer.Create("user-1")
	require.NoError(t, err)

	assert.NotEqual(t, t1, t2)
}
