package store

import "time"

// BlacklistToken persists a hashed, revoked JWT until its expiry.
// Implements auth.DatabaseLike.
func (s *Store) BlacklistToken(tokenHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(`INSERT OR REPLACE INTO token_blacklist (token_hash, expires_at) VALUES (?, ?)`,
		tokenHash, expiresAt.Unix())
	return err
}

// IsTokenBlacklisted reports whether tokenHash is present and unexpired.
// Implements auth.DatabaseLike.
func (s *Store) IsTokenBlacklisted(tokenHash string) bool {
	var expiresAt int64
	err := s.db.Get(&expiresAt, `SELECT expires_at FROM token_blacklist WHERE token_hash = ?`, tokenHash)
	if err != nil {
		return false
	}
	return time.Now().Unix() <= expiresAt
}

// CleanExpiredTokens removes blacklist entries past their expiry, returning
// the number removed. Implements auth.DatabaseLike.
func (s *Store) CleanExpiredTokens() (int64, error) {
	res, err := s.db.Exec(`DELETE FROM token_blacklist WHERE expires_at < ?`, time.Now().Unix())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetAllBlacklistedTokens returns every unexpired blacklist entry, used to
// warm the in-memory cache on startup. Implements auth.DatabaseLike.
func (s *Store) GetAllBlacklistedTokens() (map[string]time.Time, error) {
	rows, err := s.db.Query(`SELECT token_hash, expires_at FROM token_blacklist WHERE expires_at >= ?`, time.Now().Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]time.Time)
	for rows.Next() {
		var hash string
		var exp int64
		if err := rows.Scan(&hash, &exp); err != nil {
			return nil, err
		}
		out[hash] = time.Unix(exp, 0)
	}
	return out, rows.Err()
}
