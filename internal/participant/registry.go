// Package participant tracks who is in the room. It only mirrors channel
// events reported by the session; it never owns or closes a channel.
package participant

import (
	"strings"
	"sync"
	"unicode/utf8"
)

const (
	// MaxNameLength is the longest display name kept, in runes.
	MaxNameLength = 20

	DefaultName = "Anonymous"
)

// Record describes one participant.
type Record struct {
	PeerID      string
	DisplayName string
	IsOwner     bool
	IsLocal     bool
}

// Registry is the ordered roster: local participant first, then others in
// the order they were first registered.
type Registry struct {
	mu     sync.RWMutex
	local  Record
	order  []string
	byPeer map[string]Record
}

func NewRegistry(local Record) *Registry {
	local.IsLocal = true
	local.DisplayName = NormalizeName(local.DisplayName)
	return &Registry{
		local:  local,
		byPeer: make(map[string]Record),
	}
}

// Register upserts a remote participant. It reports true only the first time
// a peer ID is seen; repeated announcements are no-ops.
func (r *Registry) Register(peerID, displayName string, isOwner bool) (Record, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if peerID == r.local.PeerID {
		return r.local, false
	}
	if rec, ok := r.byPeer[peerID]; ok {
		return rec, false
	}

	rec := Record{
		PeerID:      peerID,
		DisplayName: NormalizeName(displayName),
		IsOwner:     isOwner,
	}
	r.byPeer[peerID] = rec
	r.order = append(r.order, peerID)
	return rec, true
}

// Remove drops a remote participant and returns its display name.
func (r *Registry) Remove(peerID string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.byPeer[peerID]
	if !ok {
		return "", false
	}
	delete(r.byPeer, peerID)
	for i, id := range r.order {
		if id == peerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return rec.DisplayName, true
}

func (r *Registry) Get(peerID string) (Record, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if peerID == r.local.PeerID {
		return r.local, true
	}
	rec, ok := r.byPeer[peerID]
	return rec, ok
}

// All returns a snapshot of the roster.
func (r *Registry) All() []Record {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Record, 0, len(r.order)+1)
	out = append(out, r.local)
	for _, id := range r.order {
		out = append(out, r.byPeer[id])
	}
	return out
}

// Len counts participants including the local one.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order) + 1
}

// Local returns the local participant.
func (r *Registry) Local() Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.local
}

// Reset forgets every remote participant.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.order = nil
	r.byPeer = make(map[string]Record)
}

// NormalizeName trims whitespace, substitutes DefaultName for empty names and
// truncates to MaxNameLength runes.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return DefaultName
	}
	if utf8.RuneCountInString(name) <= MaxNameLength {
		return name
	}
	return strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
}
