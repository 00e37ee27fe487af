// Package auth handles JWT issuance and a persisted, sha256-hashed
// token-blacklist for priceguard's push-fabric handshake: bearer JWTs
// checked against revocation on every upgrade. OTP/2FA and the rest of the
// user-auth CRUD surface (signup, password reset) are out of scope here;
// this package only issues and revokes tokens for an already-authenticated
// user.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"priceguard/logger"
)

// JWTSecret signs and verifies push-fabric bearer tokens; set once at
// startup from config.Config.JWTSecret.
var JWTSecret []byte

var tokenBlacklist = struct {
	sync.RWMutex
	items map[string]time.Time
}{items: make(map[string]time.Time)}

// maxBlacklistEntries is the in-memory cache size past which expired entries
// are swept; if unexpired entries alone still exceed it, a warning is logged
// and the cache keeps them all.
const maxBlacklistEntries = 100_000

// DatabaseLike is the persistence seam the blacklist needs; store.Store
// implements it.
type DatabaseLike interface {
	BlacklistToken(tokenHash string, expiresAt time.Time) error
	IsTokenBlacklisted(tokenHash string) bool
	CleanExpiredTokens() (int64, error)
	GetAllBlacklistedTokens() (map[string]time.Time, error)
}

var db DatabaseLike

// SetDatabase wires the durable blacklist store; without it, revocation is
// memory-only and lost on restart.
func SetDatabase(d DatabaseLike) {
	db = d
}

func hashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// LoadBlacklistFromDB warms the in-memory cache from the database at
// startup, so a restart doesn't briefly accept tokens revoked before it.
func LoadBlacklistFromDB() {
	if db == nil {
		return
	}

	tokens, err := db.GetAllBlacklistedTokens()
	if err != nil {
		logger.Named("auth").Error().Err(err).Msg("load blacklist from db failed")
		return
	}

	tokenBlacklist.Lock()
	defer tokenBlacklist.Unlock()
	for hash, exp := range tokens {
		tokenBlacklist.items[hash] = exp
	}
	logger.Named("auth").Info().Int("count", len(tokens)).Msg("restored blacklist from db")
}

// StartBlacklistCleaner runs a background sweep removing expired entries
// from both the memory cache and the database.
func StartBlacklistCleaner(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			now := time.Now()
			tokenBlacklist.Lock()
			for t, e := range tokenBlacklist.items {
				if now.After(e) {
					delete(tokenBlacklist.items, t)
				}
			}
			tokenBlacklist.Unlock()

			if db != nil {
				if cleaned, err := db.CleanExpiredTokens(); err != nil {
					logger.Named("auth").Error().Err(err).Msg("clean expired blacklist tokens failed")
				} else if cleaned > 0 {
					logger.Named("auth").Debug().Int64("cleaned", cleaned).Msg("swept expired blacklist tokens")
				}
			}
		}
	}()
}

// SetJWTSecret installs the signing key used by GenerateJWT/ValidateJWT.
func SetJWTSecret(secret string) {
	JWTSecret = []byte(secret)
}

// BlacklistToken revokes token until exp, in memory and (if wired) durably.
func BlacklistToken(token string, exp time.Time) {
	hash := hashToken(token)

	tokenBlacklist.Lock()
	tokenBlacklist.items[hash] = exp
	if len(tokenBlacklist.items) > maxBlacklistEntries {
		now := time.Now()
		for t, e := range tokenBlacklist.items {
			if now.After(e) {
				delete(tokenBlacklist.items, t)
			}
		}
		if len(tokenBlacklist.items) > maxBlacklistEntries {
			logger.Named("auth").Warn().
				Int("size", len(tokenBlacklist.items)).
				Int("limit", maxBlacklistEntries).
				Msg("token blacklist exceeds limit after sweep")
		}
	}
	tokenBlacklist.Unlock()

	if db != nil {
		if err := db.BlacklistToken(hash, exp); err != nil {
			logger.Named("auth").Error().Err(err).Msg("persist blacklist token failed")
		}
	}
}

// IsTokenBlacklisted checks the memory cache first, falling back to the
// database and backfilling the cache on a hit.
func IsTokenBlacklisted(token string) bool {
	hash := hashToken(token)

	tokenBlacklist.Lock()
	if exp, ok := tokenBlacklist.items[hash]; ok {
		if time.Now().After(exp) {
			delete(tokenBlacklist.items, hash)
			tokenBlacklist.Unlock()
			return false
		}
		tokenBlacklist.Unlock()
		return true
	}
	tokenBlacklist.Unlock()

	if db != nil && db.IsTokenBlacklisted(hash) {
		// Exact expiry is unknown from this call; a conservative TTL keeps
		// the cache from going stale if the db record outlives it.
		tokenBlacklist.Lock()
		tokenBlacklist.items[hash] = time.Now().Add(24 * time.Hour)
		tokenBlacklist.Unlock()
		return true
	}

	return false
}

// Claims is the JWT payload priceguard issues and verifies.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// HashPassword bcrypt-hashes a password for storage.
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPassword reports whether password matches hash.
func CheckPassword(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

// GenerateJWT issues a 24h bearer token for userID/email.
func GenerateJWT(userID, email string) (string, error) {
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "priceguard",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(JWTSecret)
}

// ValidateJWT parses and verifies tokenString, rejecting blacklisted tokens.
func ValidateJWT(tokenString string) (*Claims, error) {
	if IsTokenBlacklisted(tokenString) {
		return nil, fmt.Errorf("auth: token revoked")
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
		}
		return JWTSecret, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, fmt.Errorf("auth: invalid token")
}
