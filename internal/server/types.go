package server

import (
	"strings"

	"github.com/Tyrowin/roomchat/internal/chat"
)

// EventHandler consumes the events of every connection attached to a Hub.
// *chat.Handler satisfies it.
type EventHandler interface {
	HandleEvent(connID string, env chat.Envelope) error
	Disconnect(connID string)
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
