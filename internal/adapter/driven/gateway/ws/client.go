package ws

import "github.com/Wyydra/roulette/internal/core/domain"

type Client interface {
	ID() domain.ClientID
	// Deliver queues evt for the client without blocking and reports
	// whether it was accepted.
	Deliver(evt domain.Event) bool
	Close() error
}
