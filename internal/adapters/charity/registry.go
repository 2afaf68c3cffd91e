// Package charity resolves free-text charity tags against a known registry.
package charity

import (
	"sort"
	"strings"
	"sync"
)

// Charity is a known payout target.
type Charity struct {
	ID            string   `koanf:"id" json:"id"`
	Name          string   `koanf:"name" json:"name"`
	PayoutAddress string   `koanf:"payout_address" json:"payout_address,omitempty"`
	Aliases       []string `koanf:"aliases" json:"-"`
}

// Registry resolves tags by id, name or alias, case-insensitively.
type Registry struct {
	mu     sync.RWMutex
	byID   map[string]Charity
	lookup map[string]string // folded key -> id
}

// NewRegistry builds a registry from charities. Entries without an id are skipped;
// a later entry with the same id replaces the earlier one.
func NewRegistry(charities ...Charity) *Registry {
	r := &Registry{
		byID:   make(map[string]Charity),
		lookup: make(map[string]string),
	}
	for _, c := range charities {
		r.Add(c)
	}
	return r
}

// Add registers c.
func (r *Registry) Add(c Charity) {
	id := strings.TrimSpace(c.ID)
	if id == "" {
		return
	}
	c.ID = id

	r.mu.Lock()
	defer r.mu.Unlock()

	r.byID[id] = c
	r.lookup[fold(id)] = id
	if c.Name != "" {
		r.lookup[fold(c.Name)] = id
	}
	for _, a := range c.Aliases {
		if k := fold(a); k != "" {
			r.lookup[k] = id
		}
	}
}

// Resolve maps a free-text tag to a known charity.
func (r *Registry) Resolve(tag string) (Charity, bool) {
	k := fold(tag)
	if k == "" {
		return Charity{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.lookup[k]
	if !ok {
		return Charity{}, false
	}
	return r.byID[id], true
}

// Get returns the charity with the exact id.
func (r *Registry) Get(id string) (Charity, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byID[id]
	return c, ok
}

// List returns all charities ordered by id.
func (r *Registry) List() []Charity {
	r.mu.RLock()
	out := make([]Charity, 0, len(r.byID))
	for _, c := range r.byID {
		out = append(out, c)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// fold normalizes a tag: trimmed, lower-case, inner whitespace collapsed to '-'.
func fold(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "-")
}
