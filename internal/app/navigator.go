package app

import (
	"sync"

	"wake-go/internal/wake"
)

// ScreenNavigator routes trigger links to the alarm screen. Until a screen
// is mounted every link fails with wake.ErrNavigatorNotReady, which the
// trigger handler retries.
type ScreenNavigator struct {
	mu     sync.Mutex
	screen func(wake.Payload) error
}

func NewScreenNavigator() *ScreenNavigator {
	return &ScreenNavigator{}
}

// Mount installs the alarm screen.
func (n *ScreenNavigator) Mount(screen func(wake.Payload) error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.screen = screen
}

func (n *ScreenNavigator) Unmount() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.screen = nil
}

func (n *ScreenNavigator) Navigate(link string) error {
	p, err := wake.ParseTriggerLink(link)
	if err != nil {
		return err
	}
	n.mu.Lock()
	screen := n.screen
	n.mu.Unlock()
	if screen == nil {
		return wake.ErrNavigatorNotReady
	}
	return screen(p)
}

var _ wake.Navigator = (*ScreenNavigator)(nil)
