// Package linktoken implements external-service link tokens: a short-lived,
// single-use code that bridges a user action inside the service (a
// logged-in session requesting a "connect Telegram" link) to a later event
// produced outside it (the user pressing Start in the bot). Uses
// google/uuid for the opaque token, the same generator the push package
// uses for its session IDs.
package linktoken

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"priceguard/logger"
)

// ErrTokenInvalid covers an unknown, expired, or already-consumed token,
// collapsed into a single sentinel since the caller's handling is identical
// either way: a second consume of the same token must return nothing.
var ErrTokenInvalid = errors.New("linktoken: invalid or already-consumed token")

// Store is the persistence contract; store.Store satisfies it directly.
type Store interface {
	CreateConnectToken(token, userID string) (expiresAt time.Time, err error)
	ConsumeConnectToken(token string) (userID string, err error)
}

// Issuer mints and redeems ConnectTokens.
type Issuer struct {
	store Store
	log   zerolog.Logger
}

func NewIssuer(store Store) *Issuer {
	return &Issuer{store: store, log: logger.Named("linktoken")}
}

// Create mints a fresh single-use token bound to userID, expiring after
// store.ConnectTokenTTL (~15 min — long enough to switch to the Telegram
// app and tap Start, short enough that a leaked link doesn't stay valid).
func (i *Issuer) Create(userID string) (token string, expiresAt time.Time, err error) {
	token = uuid.NewString()
	expiresAt, err = i.store.CreateConnectToken(token, userID)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Consume atomically redeems token, returning the bound userID on first
// consume and ErrTokenInvalid on any subsequent, unknown, or expired
// attempt.
func (i *Issuer) Consume(token string) (userID string, err error) {
	userID, err = i.store.ConsumeConnectToken(token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrTokenInvalid
	}
	if err != nil {
		return "", err
	}
	return userID, nil
}
