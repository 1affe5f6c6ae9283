package session

import "github.com/sysreinstaller/vhdget/internal/domain"

// ChannelObserver adapts domain.SessionObserver to a channel.
type ChannelObserver struct {
	ch chan<- domain.SessionEvent
}

// NewChannelObserver creates a new channel-based observer.
func NewChannelObserver(ch chan<- domain.SessionEvent) *ChannelObserver {
	return &ChannelObserver{ch: ch}
}

// OnEvent sends the event to the channel (non-blocking if full).
func (o *ChannelObserver) OnEvent(event domain.SessionEvent) {
	select {
	case o.ch <- event:
	default: // Non-blocking if channel full
	}
}
