package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"
)

// Alert is the full alert record the core reads and writes. Name and
// Description are set once at creation (by the out-of-scope REST surface)
// and never re-derived here; the engine only reads them back, to carry
// through into the trigger payload.
type Alert struct {
	ID           string          `db:"id"`
	UserID       string          `db:"user_id"`
	Name         string          `db:"name"`
	Description  string          `db:"description"`
	Exchange     string          `db:"exchange"`
	Market       string          `db:"market"`
	SymbolsRaw   string          `db:"symbols"`
	Symbols      []string        `db:"-"`
	TargetValue  float64         `db:"target_value"`
	InitialPrice sql.NullFloat64 `db:"initial_price"`
	Condition    sql.NullString  `db:"condition"`
	Active       bool            `db:"active"`
	Triggered    bool            `db:"triggered"`
	CreatedAt    int64           `db:"created_at"`
}

// Symbol is the single symbol the sweep evaluates the alert against: the
// data model carries a symbols slice but the sweep resolves price against
// one concrete (exchange, market, symbol), so the first entry is
// authoritative.
func (a *Alert) Symbol() string {
	if len(a.Symbols) == 0 {
		return ""
	}
	return a.Symbols[0]
}

func splitSymbols(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// CreateAlert persists a new active, untriggered alert. Validation of an
// invalid creation-time snapshot (initialPrice <= 0, or within ε of target)
// is the caller's responsibility (the out-of-scope creation API); the store
// does not re-derive or re-validate.
func (s *Store) CreateAlert(a *Alert) error {
	a.SymbolsRaw = strings.Join(a.Symbols, ",")
	a.Active = true
	a.Triggered = false
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().Unix()
	}
	return timed("insert", func() error {
		_, err := s.db.NamedExec(`
			INSERT INTO alerts (id, user_id, name, description, exchange, market, symbols, target_value, initial_price, condition, active, triggered, created_at)
			VALUES (:id, :user_id, :name, :description, :exchange, :market, :symbols, :target_value, :initial_price, :condition, :active, :triggered, :created_at)
		`, a)
		return err
	})
}

// ActiveAlerts loads every active, non-triggered alert — the universe each
// sweep iterates.
func (s *Store) ActiveAlerts() ([]*Alert, error) {
	var rows []*Alert
	err := timed("select", func() error {
		return s.db.Select(&rows, `SELECT * FROM alerts WHERE active = 1 AND triggered = 0`)
	})
	if err != nil {
		return nil, err
	}
	for _, a := range rows {
		a.Symbols = splitSymbols(a.SymbolsRaw)
	}
	return rows, nil
}

// ErrAlertAlreadyConsumed is returned by ConsumeAlert when a concurrent
// sweep (or the out-of-scope API) already consumed the alert; the engine
// treats this as a conflict and drops the event silently.
var ErrAlertAlreadyConsumed = errors.New("store: alert already consumed")

// ConsumeAlert atomically marks an alert triggered, treating the update as
// equivalent to a delete: exactly one of the racing consumers observes
// success, the rest observe ErrAlertAlreadyConsumed.
func (s *Store) ConsumeAlert(id string) error {
	return timed("update", func() error {
		res, err := s.db.Exec(`UPDATE alerts SET triggered = 1 WHERE id = ? AND active = 1 AND triggered = 0`, id)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrAlertAlreadyConsumed
		}
		return nil
	})
}
