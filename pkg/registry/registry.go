// Package registry holds the catalog of content-generation providers known
// to the router.
//
// The registry is seeded from configuration and afterwards only mutated
// through Update. Provider values handed out are copies; callers never share
// state with the registry.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"mercator-hq/conduit/pkg/config"
)

var (
	// ErrDuplicateProvider is returned when two providers share an ID.
	ErrDuplicateProvider = errors.New("duplicate provider")

	// ErrInvalidProvider is returned when a provider definition is unusable.
	ErrInvalidProvider = errors.New("invalid provider")
)

// Provider is a single upstream content-generation provider.
type Provider struct {
	ID           string   `json:"id"`
	CostPerToken float64  `json:"costPerToken"`
	RateLimit    int      `json:"rateLimit"`
	Specialties  []string `json:"specialties"`
	IsActive     bool     `json:"isActive"`
	Priority     int      `json:"priority"`
	HealthURL    string   `json:"healthUrl,omitempty"`
}

// HasSpecialty reports whether the provider advertises tag.
func (p Provider) HasSpecialty(tag string) bool {
	for _, s := range p.Specialties {
		if s == tag {
			return true
		}
	}
	return false
}

func (p Provider) clone() Provider {
	p.Specialties = append([]string(nil), p.Specialties...)
	return p
}

// Patch is a partial provider update. Nil fields are left unchanged.
type Patch struct {
	IsActive     *bool     `json:"isActive,omitempty"`
	Priority     *int      `json:"priority,omitempty"`
	CostPerToken *float64  `json:"costPerToken,omitempty"`
	RateLimit    *int      `json:"rateLimit,omitempty"`
	Specialties  *[]string `json:"specialties,omitempty"`
}

// Validate checks the patch values without applying them.
func (p Patch) Validate() error {
	if p.CostPerToken != nil && *p.CostPerToken < 0 {
		return fmt.Errorf("%w: cost per token must be non-negative", ErrInvalidProvider)
	}
	if p.RateLimit != nil && *p.RateLimit <= 0 {
		return fmt.Errorf("%w: rate limit must be positive", ErrInvalidProvider)
	}
	return nil
}

func (p Patch) apply(dst *Provider) {
	if p.IsActive != nil {
		dst.IsActive = *p.IsActive
	}
	if p.Priority != nil {
		dst.Priority = *p.Priority
	}
	if p.CostPerToken != nil {
		dst.CostPerToken = *p.CostPerToken
	}
	if p.RateLimit != nil {
		dst.RateLimit = *p.RateLimit
	}
	if p.Specialties != nil {
		dst.Specialties = append([]string(nil), (*p.Specialties)...)
	}
}

// Registry is a concurrency-safe provider catalog.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]*Provider
	seq       map[string]int // declaration order, used as the priority tiebreaker
}

// New creates a registry from an ordered provider list.
func New(providers []Provider) (*Registry, error) {
	r := &Registry{
		providers: make(map[string]*Provider, len(providers)),
		seq:       make(map[string]int, len(providers)),
	}
	for i, p := range providers {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: provider %d has no id", ErrInvalidProvider, i)
		}
		if p.RateLimit <= 0 {
			return nil, fmt.Errorf("%w: provider %q rate limit must be positive", ErrInvalidProvider, p.ID)
		}
		if _, exists := r.providers[p.ID]; exists {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateProvider, p.ID)
		}
		cp := p.clone()
		r.providers[p.ID] = &cp
		r.seq[p.ID] = i
	}
	return r, nil
}

// FromConfig creates a registry from the provider configuration section.
func FromConfig(cfgs []config.ProviderConfig) (*Registry, error) {
	providers := make([]Provider, 0, len(cfgs))
	for _, c := range cfgs {
		providers = append(providers, Provider{
			ID:           c.ID,
			CostPerToken: c.CostPerToken,
			RateLimit:    c.RateLimit,
			Specialties:  c.Specialties,
			IsActive:     c.IsActive(),
			Priority:     c.Priority,
			HealthURL:    c.HealthURL,
		})
	}
	return New(providers)
}

// Get returns a copy of the provider with the given ID.
func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[id]
	if !ok {
		return Provider{}, false
	}
	return p.clone(), true
}

// Has reports whether id is a known provider.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.providers[id]
	return ok
}

// Len returns the number of providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}

// List returns every provider ordered by priority, highest first. Providers
// with equal priority keep their declaration order.
func (r *Registry) List() []Provider {
	r.mu.RLock()
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p.clone())
	}
	seq := r.seq
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return seq[out[i].ID] < seq[out[j].ID]
	})
	return out
}

// IDs returns the provider IDs in List order.
func (r *Registry) IDs() []string {
	list := r.List()
	ids := make([]string, len(list))
	for i, p := range list {
		ids[i] = p.ID
	}
	return ids
}

// Update merges patch into the provider record and returns the result.
// Unknown IDs report false and change nothing.
func (r *Registry) Update(id string, patch Patch) (Provider, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.providers[id]
	if !ok {
		return Provider{}, false
	}
	patch.apply(p)
	return p.clone(), true
}
