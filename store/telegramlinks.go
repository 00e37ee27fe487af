package store

import (
	"database/sql"
	"errors"
)

// LinkTelegramChat binds userID to a Telegram chat, implementing
// telegrambridge.Linker. A user relinking (pressing Start again, from a new
// chat) simply overwrites the prior binding.
func (s *Store) LinkTelegramChat(userID string, chatID int64) error {
	_, err := s.db.Exec(`INSERT INTO telegram_links (user_id, chat_id) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET chat_id = excluded.chat_id`, userID, chatID)
	return err
}

// TelegramChatID looks up the chat bound to userID, if any.
func (s *Store) TelegramChatID(userID string) (chatID int64, ok bool, err error) {
	err = s.db.Get(&chatID, `SELECT chat_id FROM telegram_links WHERE user_id = ?`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return chatID, true, nil
}
