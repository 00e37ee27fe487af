package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "priceguard.db")
	st, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestCreateAlert_ThenActiveAlertsReturnsIt(t *testing.T) {
	st := openTestStore(t)

	a := &Alert{
		ID:          "a1",
		UserID:      "u1",
		Exchange:    "binance",
		Market:      "spot",
		Symbols:     []string{"BTCUSDT"},
		TargetValue: 100,
	}
	require.NoError(t, st.CreateAlert(a))

	rows, err := st.ActiveAlerts()
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a1", rows[0].ID)
	assert.Equal(t, []string{"BTCUSDT"}, rows[0].Symbols)
	assert.True(t, rows[0].Active)
	assert.False(t, rows[0].Triggered)
}

func TestConsumeAlert_SecondCallReturnsAlreadyConsumed(t *testing.T) {
	st := openTestStore(t)

	a := &Alert{ID: "a2", UserID: "u1", Exchange: "binance", Market: "spot", Symbols: []string{"ETHUSDT"}, TargetValue: 5000}
	require.NoError(t, st.CreateAlert(a))

	require.NoError(t, st.ConsumeAlert("a2"))
	err := st.ConsumeAlert("a2")
	assert.ErrorIs(t, err, ErrAlertAlreadyConsumed)

	rows, err := st.ActiveAlerts()
	require.NoError(t, err)
	assert.Empty(t, rows, "a consumed alert drops out of the active set")
}

func TestConsumeAlert_UnknownIDReturnsAlreadyConsumed(t *testing.T) {
	st := openTestStore(t)
	err := st.ConsumeAlert("does-not-exist")
	assert.ErrorIs(t, err, ErrAlertAlreadyConsumed)
}

func TestConnectToken_CreateThenConsumeReturnsUserID(t *testing.T) {
	st := openTestStore(t)

	_, err := st.CreateConnectToken("tok-1", "u42")
	require.NoError(t, err)

	userID, err := st.ConsumeConnectToken("tok-1")
	require.NoError(t, err)
	assert.Equal(t, "u42", userID)

	_, err = st.ConsumeConnectToken("tok-1")
	assert.Error(t, err, "a token is single-use")
}

func TestTelegramLink_BindThenLookup(t *testing.T) {
	st := openTestStore(t)

	_, ok, err := st.TelegramChatID("u1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, st.LinkTelegramChat("u1", 555))
	chatID, ok, err := st.TelegramChatID("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(555), chatID)

	// re-linking (a second /start) replaces the bound chat rather than erroring.
	require.NoError(t, st.LinkTelegramChat("u1", 777))
	chatID, ok, err = st.TelegramChatID("u1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(777), chatID)
}

func TestBlacklistToken_IsTokenBlacklisted(t *testing.T) {
	st := openTestStore(t)
	assert.False(t, st.IsTokenBlacklisted("deadbeef"))

	require.NoError(t, st.BlacklistToken("deadbeef", time.Now().Add(time.Hour)))
	assert.True(t, st.IsTokenBlacklisted("deadbeef"))
}
