package services

import (
	"context"
	"sync"

	"swapit/internal/status"
	"swapit/models"
	"swapit/monitoring"
	"swapit/store"
)

// SessionRouter owns the ephemeral negotiation -> live connection
// bindings. Bindings are process-local and non-durable; routing only
// ever consults the table keyed by negotiation id, so concurrent
// negotiations cannot leak messages into each other.
type SessionRouter struct {
	negotiations store.NegotiationStore
	monitor      *monitoring.Monitor

	mu    sync.RWMutex
	rooms map[string]*roomBindings
	conns map[string]map[bindingKey]struct{}
}

type roomBindings struct {
	seller string
	buyer  string
}

type bindingKey struct {
	negotiationID string
	role          string
}

func NewSessionRouter(negotiations store.NegotiationStore, monitor *monitoring.Monitor) *SessionRouter {
	return &SessionRouter{
		negotiations: negotiations,
		monitor:      monitor,
		rooms:        make(map[string]*roomBindings),
		conns:        make(map[string]map[bindingKey]struct{}),
	}
}

// JoinAsRole validates the claimed identity against the negotiation
// record and binds conn to the (negotiation, role) seat. A join for an
// already-bound seat supersedes the prior handle: reconnect replaces
// the stale session. No binding is created or altered on a failed
// validation.
func (r *SessionRouter) JoinAsRole(ctx context.Context, negotiationID, role, claimedPartyID, conn string) error {
	if role != models.RoleSeller && role != models.RoleBuyer {
		return status.ErrRoleMismatch
	}

	nego, err := r.negotiations.FindNegotiation(ctx, negotiationID)
	if err != nil {
		return err
	}
	if nego.PartyID(role) != claimedPartyID {
		return status.ErrRoleMismatch
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	room, ok := r.rooms[negotiationID]
	if !ok {
		room = &roomBindings{}
		r.rooms[negotiationID] = room
	}

	key := bindingKey{negotiationID: negotiationID, role: role}

	prev := room.seat(role)
	if prev != "" && prev != conn {
		delete(r.conns[prev], key)
		if len(r.conns[prev]) == 0 {
			delete(r.conns, prev)
		}
	}

	room.setSeat(role, conn)
	if r.conns[conn] == nil {
		r.conns[conn] = make(map[bindingKey]struct{})
	}
	r.conns[conn][key] = struct{}{}

	r.monitor.SetActiveBindings(r.bindingCount())
	return nil
}

// Resolve returns the live connection for a role, if any. Absence is a
// normal state: the caller delivers to the transcript only.
func (r *SessionRouter) Resolve(negotiationID, role string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	room, ok := r.rooms[negotiationID]
	if !ok {
		return "", false
	}
	conn := room.seat(role)
	return conn, conn != ""
}

// OnDisconnect silently removes every binding held by conn. The event
// arrives asynchronously and may race in-flight mediation work, so it
// needs no negotiation context and synthesizes no message.
func (r *SessionRouter) OnDisconnect(conn string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for key := range r.conns[conn] {
		if room, ok := r.rooms[key.negotiationID]; ok {
			if room.seat(key.role) == conn {
				room.setSeat(key.role, "")
			}
			if room.seller == "" && room.buyer == "" {
				delete(r.rooms, key.negotiationID)
			}
		}
	}
	delete(r.conns, conn)

	r.monitor.SetActiveBindings(r.bindingCount())
}

func (r *SessionRouter) bindingCount() int {
	n := 0
	for _, keys := range r.conns {
		n += len(keys)
	}
	return n
}

func (b *roomBindings) seat(role string) string {
	if role == models.RoleSeller {
		return b.seller
	}
	return b.buyer
}

func (b *roomBindings) setSeat(role, conn string) {
	if role == models.RoleSeller {
		b.seller = conn
	} else {
		b.buyer = conn
	}
}
