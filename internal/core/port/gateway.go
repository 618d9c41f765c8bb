package port

import (
	"github.com/Wyydra/roulette/internal/core/domain"
)

// ClientRegistry is how the core reaches connected clients.
type ClientRegistry interface {
	// Send delivers evt to id without blocking. It returns false when the
	// client is gone or cannot take more events; the result is informational.
	Send(id domain.ClientID, evt domain.Event) bool
	Unregister(id domain.ClientID)
}
