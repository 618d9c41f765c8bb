package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/Wyydra/roulette/internal/core/domain"
	"github.com/Wyydra/roulette/internal/core/port"
	"github.com/rs/zerolog/log"
)

var (
	ErrStopped   = errors.New("matchmaker stopped")
	ErrNotSignal = errors.New("event is not a relayable signal")
)

type Options struct {
	// PairOnNext makes Next attempt a pairing itself instead of waiting
	// for the client's follow-up start.
	PairOnNext bool
}

type Stats struct {
	Waiting     int    `json:"waiting"`
	Pairs       int    `json:"pairs"`
	Matches     uint64 `json:"matches"`
	Relayed     uint64 `json:"relayed"`
	Dropped     uint64 `json:"dropped"`
	PartnerLeft uint64 `json:"partner_left"`
}

// Matchmaker owns the waiting queue and the pair table. Both are only ever
// touched from the Run goroutine; exported methods hand an operation to it
// and return once the operation has been applied.
type Matchmaker struct {
	registry port.ClientRegistry
	opts     Options

	ops  chan func()
	done chan struct{}

	queue []domain.ClientID
	pairs map[domain.ClientID]domain.ClientID
	stats Stats
}

func NewMatchmaker(registry port.ClientRegistry, opts Options) *Matchmaker {
	return &Matchmaker{
		registry: registry,
		opts:     opts,
		ops:      make(chan func()),
		done:     make(chan struct{}),
		pairs:    make(map[domain.ClientID]domain.ClientID),
	}
}

// Run applies operations one at a time until ctx is cancelled.
func (m *Matchmaker) Run(ctx context.Context) error {
	defer close(m.done)
	log.Info().Bool("pair_on_next", m.opts.PairOnNext).Msg("Matchmaker started")
	for {
		select {
		case <-ctx.Done():
			log.Info().
				Int("waiting", len(m.queue)).
				Int("pairs", len(m.pairs)/2).
				Msg("Stopping matchmaker")
			return nil
		case op := <-m.ops:
			op()
		}
	}
}

func (m *Matchmaker) do(ctx context.Context, op func()) error {
	applied := make(chan struct{})
	select {
	case m.ops <- func() { op(); close(applied) }:
	case <-m.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// accepted ops always run to completion
	<-applied
	return nil
}

// Start puts id at the back of the queue, dropping whatever state it had
// before, and pairs the two oldest waiting clients if there are at least two.
func (m *Matchmaker) Start(ctx context.Context, id domain.ClientID) error {
	return m.do(ctx, func() {
		m.cleanup(id)
		m.enqueue(id)
		m.registry.Send(id, domain.NewEvent(domain.EventWaiting))
		m.tryPair()
	})
}

// Relay forwards a handshake payload to the sender's partner. Without a
// partner the payload is dropped.
func (m *Matchmaker) Relay(ctx context.Context, id domain.ClientID, kind domain.EventName, payload json.RawMessage) error {
	if !kind.IsSignal() {
		return fmt.Errorf("%w: %s", ErrNotSignal, kind)
	}
	return m.do(ctx, func() {
		partner, ok := m.pairs[id]
		if !ok {
			m.stats.Dropped++
			log.Debug().Str("client_id", id.String()).Str("kind", kind.String()).Msg("No partner, dropping signal")
			return
		}
		if !m.registry.Send(partner, domain.NewSignalEvent(kind, payload)) {
			m.stats.Dropped++
			return
		}
		m.stats.Relayed++
	})
}

// Next leaves the current pair and requeues id. The old partner is told
// via partner-left; id gets reset followed by waiting.
func (m *Matchmaker) Next(ctx context.Context, id domain.ClientID) error {
	return m.do(ctx, func() {
		m.cleanup(id)
		m.registry.Send(id, domain.NewEvent(domain.EventReset))
		m.registry.Send(id, domain.NewEvent(domain.EventWaiting))
		m.enqueue(id)
		if m.opts.PairOnNext {
			m.tryPair()
		}
	})
}

// Cleanup removes id from the queue and from any pair. Calling it for an
// idle or unknown id does nothing.
func (m *Matchmaker) Cleanup(ctx context.Context, id domain.ClientID) error {
	return m.do(ctx, func() {
		m.cleanup(id)
	})
}

// Disconnect is the terminal transition: cleanup, then drop the connection
// from the registry.
func (m *Matchmaker) Disconnect(ctx context.Context, id domain.ClientID) error {
	return m.do(ctx, func() {
		m.cleanup(id)
		m.registry.Unregister(id)
	})
}

func (m *Matchmaker) Snapshot(ctx context.Context) (Stats, error) {
	var s Stats
	err := m.do(ctx, func() {
		s = m.stats
		s.Waiting = len(m.queue)
		s.Pairs = len(m.pairs) / 2
	})
	return s, err
}

func (m *Matchmaker) enqueue(id domain.ClientID) {
	m.queue = append(m.queue, id)
}

func (m *Matchmaker) dequeue(id domain.ClientID) {
	if i := slices.Index(m.queue, id); i >= 0 {
		m.queue = slices.Delete(m.queue, i, i+1)
	}
}

// tryPair makes at most one pair per call.
func (m *Matchmaker) tryPair() {
	if len(m.queue) < 2 {
		return
	}
	a, b := m.queue[0], m.queue[1]
	m.queue = slices.Delete(m.queue, 0, 2)

	m.pairs[a] = b
	m.pairs[b] = a
	m.stats.Matches++

	m.registry.Send(a, domain.NewMatchedEvent(true))
	m.registry.Send(b, domain.NewMatchedEvent(false))

	log.Info().
		Str("initiator", a.String()).
		Str("responder", b.String()).
		Int("waiting", len(m.queue)).
		Msg("Clients paired")
}

func (m *Matchmaker) cleanup(id domain.ClientID) {
	m.dequeue(id)

	if partner, ok := m.pairs[id]; ok {
		delete(m.pairs, partner)
		if partner != id {
			m.registry.Send(partner, domain.NewEvent(domain.EventPartnerLeft))
			m.stats.PartnerLeft++
			log.Debug().Str("client_id", id.String()).Str("partner_id", partner.String()).Msg("Pair dissolved")
		}
	}
	delete(m.pairs, id)
}
