package exchange

import (
	"sync"
	"time"
)

// subscriptionWatchdog forces a reconnect if no confirmation/activity is
// seen on a websocket within a timeout (~10s): a server that silently stops
// pushing data without ever closing the TCP connection would otherwise
// never trigger the reconnect loop.
type subscriptionWatchdog struct {
	mu    sync.Mutex
	timer *time.Timer
}

func newSubscriptionWatchdog() *subscriptionWatchdog {
	return &subscriptionWatchdog{}
}

func (s *subscriptionWatchdog) arm(timeout time.Duration, onExpire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(timeout, onExpire)
}

// touch resets the watchdog, treating any inbound message (including the
// venue's own subscription-ack frame) as confirmation of liveness.
func (s *subscriptionWatchdog) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Reset(watchdogTimeout)
	}
}

func (s *subscriptionWatchdog) disarm() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
