package store

import (
	"database/sql"
	"errors"
	"time"
)

// ConnectTokenTTL is the lifetime of a connect token (~15 min).
const ConnectTokenTTL = 15 * time.Minute

// CreateConnectToken persists a fresh single-use token for userID, expiring
// after ConnectTokenTTL.
func (s *Store) CreateConnectToken(token, userID string) (expiresAt time.Time, err error) {
	expiresAt = time.Now().Add(ConnectTokenTTL)
	_, err = s.db.Exec(`INSERT INTO connect_tokens (token, user_id, expires_at, consumed) VALUES (?, ?, ?, 0)`,
		token, userID, expiresAt.Unix())
	return expiresAt, err
}

// ConsumeConnectToken atomically consumes token, returning the bound userID
// on first consume and sql.ErrNoRows on any subsequent or expired attempt:
// a second consume of the same token must never resolve to a userID.
func (s *Store) ConsumeConnectToken(token string) (string, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return "", err
	}
	defer tx.Rollback()

	var userID string
	var expiresAt int64
	var consumed bool
	err = tx.QueryRow(`SELECT user_id, expires_at, consumed FROM connect_tokens WHERE token = ?`, token).
		Scan(&userID, &expiresAt, &consumed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", sql.ErrNoRows
	}
	if err != nil {
		return "", err
	}
	if consumed || time.Now().Unix() > expiresAt {
		return "", sql.ErrNoRows
	}

	res, err := tx.Exec(`UPDATE connect_tokens SET consumed = 1 WHERE token = ? AND consumed = 0`, token)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}
	return userID, nil
}
