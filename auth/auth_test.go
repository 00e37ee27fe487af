package auth

import (
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---- helpers ----

func init() {
	SetJWTSecret("test-secret-key-for-unit-tests-1234567890")
}

func resetBlacklist() {
	tokenBlacklist.Lock()
	tokenBlacklist.items = make(map[string]time.Time)
	tokenBlacklist.Unlock()
	db = nil
}

// mockDB implements DatabaseLike for in-memory persistence tests.
type mockDB struct {
	mu     sync.Mutex
	tokens map[string]time.Time
}

func newMockDB() *mockDB {
	return &mockDB{tokens: make(map[string]time.Time)}
}

func (m *mockDB) BlacklistToken(tokenHash string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[tokenHash] = expiresAt
	return nil
}

func (m *mockDB) IsTokenBlacklisted(tokenHash string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.tokens[tokenHash]
	if !ok {
		return false
	}
	return time.Now().Before(exp)
}

func (m *mockDB) CleanExpiredTokens() (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	var cleaned int64
	for h, exp := range m.tokens {
		if now.After(exp) {
			delete(m.tokens, h)
			cleaned++
		}
	}
	return cleaned, nil
}

func (m *mockDB) GetAllBlacklistedTokens() (map[string]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]time.Time, len(m.tokens))
	for k, v := range m.tokens {
		out[k] = v
	}
	return out, nil
}

// ---- JWT tests ----

func TestGenerateToken_CreatesValidJWT(t *testing.T) {
	resetBlacklist()

	tokenStr, err := GenerateJWT("user-123", "test@example.com")
	require.NoError(t, err)
	assert.NotEmpty(t, tokenStr)

	claims, err := ValidateJWT(tokenStr)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "priceguard", claims.Issuer)
}

func TestGenerateJWT_ContainsExpiry(t *testing.T) {
	resetBlacklist()

	tokenStr, err := GenerateJWT("u1", "u1@test.com")
	require.NoError(t, err)

	claims, err := ValidateJWT(tokenStr)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	diff := time.Until(claims.ExpiresAt.Time)
	assert.InDelta(t, 24*time.Hour.Seconds(), diff.Seconds(), 10, "token should expire in ~24h")
}

func TestValidateToken_RejectsExpired(t *testing.T) {
	resetBlacklist()

	claims := Claims{
		UserID: "user-expired",
		Email:  "expired@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-1 * time.Second)),
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			NotBefore: jwt.NewNumericDate(time.Now().Add(-1 * time.Hour)),
			Issuer:    "priceguard",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenStr, err := token.SignedString(JWTSecret)
	require.NoError(t, err)

	_, err = ValidateJWT(tokenStr)
	assert.Error(t, err, "expired token should fail validation")
}

func TestValidateToken_RejectsMalformed(t *testing.T) {
	resetBlacklist()

	_, err := ValidateJWT("not-a-jwt-token")
	assert.Error(t, err)
}

func TestValidateToken_RejectsEmptyString(t *testing.T) {
	resetBlacklist()

	_, err := ValidateJWT("")
	assert.Error(t, err)
}

func TestValidateToken_RejectsWrongSecret(t *testing.T) {
	resetBlacklist()

	tokenStr, err := GenerateJWT("user-1", "u@e.com")
	require.NoError(t, err)

	old := make([]byte, len(JWTSecret))
	copy(old, JWTSecret)
	SetJWTSecret("different-secret")
	defer func() { JWTSecret = old }()

	_, err = ValidateJWT(tokenStr)
	assert.Error(t, err, "token signed with old secret should be rejected")
}

func TestValidateToken_RejectsBlacklisted(t *testing.T) {
	resetBlacklist()

	tokenStr, err := GenerateJWT("user-9", "u9@e.com")
	require.NoError(t, err)

	BlacklistToken(tokenStr, time.Now().Add(time.Hour))

	_, err = ValidateJWT(tokenStr)
	assert.Error(t, err, "revoked token should fail validation")
}

// ---- Blacklist tests ----

func TestBlacklistToken_BlocksAfterBlacklisting(t *testing.T) {
	resetBlacklist()

	token := "some-token-to-blacklist"
	assert.False(t, IsTokenBlacklisted(token))

	BlacklistToken(token, time.Now().Add(10*time.Minute))
	assert.True(t, IsTokenBlacklisted(token))
}

func TestBlacklist_ExpiredTokenAutoCleared(t *testing.T) {
	resetBlacklist()

	token := "already-expired"
	BlacklistToken(token, time.Now().Add(-1*time.Second))

	assert.False(t, IsTokenBlacklisted(token))
}

func TestBlacklist_DifferentTokensIndependent(t *testing.T) {
	resetBlacklist()

	BlacklistToken("token-A", time.Now().Add(10*time.Minute))
	assert.True(t, IsTokenBlacklisted("token-A"))
	assert.False(t, IsTokenBlacklisted("token-B"))
}

func TestBlacklist_Persistence_WithMockDB(t *testing.T) {
	resetBlacklist()
	mdb := newMockDB()
	SetDatabase(mdb)
	defer func() { db = nil }()

	token := "persist-me"
	exp := time.Now().Add(5 * time.Minute)
	BlacklistToken(token, exp)

	assert.True(t, IsTokenBlacklisted(token))

	tokenBlacklist.Lock()
	tokenBlacklist.items = make(map[string]time.Time)
	tokenBlacklist.Unlock()

	assert.True(t, IsTokenBlacklisted(token), "should find token via DB fallback")

	tokenBlacklist.RLock()
	_, inMem := tokenBlacklist.items[hashToken(token)]
	tokenBlacklist.RUnlock()
	assert.True(t, inMem, "should be back-filled into memory after DB lookup")
}

func TestLoadBlacklistFromDB(t *testing.T) {
	resetBlacklist()
	mdb := newMockDB()
	SetDatabase(mdb)
	defer func() { db = nil }()

	h := hashToken("preloaded-token")
	mdb.tokens[h] = time.Now().Add(10 * time.Minute)

	LoadBlacklistFromDB()

	tokenBlacklist.RLock()
	_, found := tokenBlacklist.items[h]
	tokenBlacklist.RUnlock()
	assert.True(t, found, "LoadBlacklistFromDB should populate memory cache")
}

// ---- Password hash tests ----

func TestHashPassword_RoundTrip(t *testing.T) {
	password := "mysecurepassword123!"
	hash, err := HashPassword(password)
	require.NoError(t, err)
	assert.NotEmpty(t, hash)
	assert.NotEqual(t, password, hash, "hash should differ from plaintext")

	assert.True(t, CheckPassword(password, hash), "correct password should verify")
	assert.False(t, CheckPassword("wrong-password", hash), "wrong password should not verify")
}

func TestCheckPassword_EmptyInputs(t *testing.T) {
	hash, err := HashPassword("abc123")
	require.NoError(t, err)

	assert.False(t, CheckPassword("", hash), "empty password should fail")
	assert.False(t, CheckPassword("abc123", ""), "empty hash should fail")
}

func TestHashPassword_DifferentHashesForSamePassword(t *testing.T) {
	hash1, err := HashPassword("samepass")
	require.NoError(t, err)
	hash2, err := HashPassword("samepass")
	require.NoError(t, err)
	assert.NotEqual(t, hash1, hash2, "bcrypt should produce different hashes due to salt")
	assert.True(t, CheckPassword("samepass", hash1))
	assert.True(t, CheckPassword("samepass", hash2))
}

// ---- hashToken test ----

func TestHashToken_Deterministic(t *testing.T) {
	h1 := hashToken("my-token")
	h2 := hashToken("my-token")
	assert.Equal(t, h1, h2, "same input should produce same hash")
	assert.Len(t, h1, 64, "SHA-256 hex should be 64 chars")
}

func TestHashToken_DifferentInputs(t *testing.T) {
	h1 := hashToken("token-a")
	h2 := hashToken("token-b")
	assert.NotEqual(t, h1, h2)
}
