// Package subscription tracks which live connections are interested in
// which symbols.
package subscription

import (
	"strings"
	"sync"
)

// Registry maps symbols to the set of connection ids subscribed to them.
// Join, Leave and DropConnection are idempotent; MembersOf returns a copy
// that is a lazily-consistent snapshot of membership.
type Registry struct {
	mu      sync.RWMutex
	members map[string]map[string]struct{}
}

// NewRegistry creates an empty subscription registry
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[string]struct{}),
	}
}

// Join subscribes a connection to a symbol. No-op if already subscribed.
func (r *Registry) Join(connID, symbol string) {
	symbol = strings.ToUpper(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[symbol]
	if !ok {
		set = make(map[string]struct{})
		r.members[symbol] = set
	}
	set[connID] = struct{}{}
}

// Leave unsubscribes a connection from a symbol. No-op if not subscribed.
func (r *Registry) Leave(connID, symbol string) {
	symbol = strings.ToUpper(symbol)

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.members[symbol]
	if !ok {
		return
	}
	delete(set, connID)
	if len(set) == 0 {
		delete(r.members, symbol)
	}
}

// MembersOf returns the connection ids currently subscribed to a symbol
func (r *Registry) MembersOf(symbol string) []string {
	symbol = strings.ToUpper(symbol)

	r.mu.RLock()
	defer r.mu.RUnlock()

	set := r.members[symbol]
	if len(set) == 0 {
		return nil
	}

	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}

// DropConnection removes every membership held by a connection. Safe to
// call for a connection that never joined anything.
func (r *Registry) DropConnection(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for symbol, set := range r.members {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.members, symbol)
		}
	}
}
