package telegrambridge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeLookup struct {
	chats map[string]int64
}

func (f *fakeLookup) TelegramChatID(userID string) (int64, bool, error) {
	id, ok := f.chats[userID]
	return id, ok, nil
}

func TestNotify_NoBoundChatIsANoop(t *testing.T) {
	n := NewNotifier(nil, &fakeLookup{chats: map[string]int64{}})
	assert.NotPanics(t, func() {
		n.Notify("user-1", AlertPayload{Symbol: "BTCUSDT", TargetValue: 101, CurrentPrice: 101.3, Condition: "above"})
	})
}
