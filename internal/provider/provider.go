// Package provider defines the adapter interface every OSINT source
// implements (§4.E) and a Registry that preserves registration order,
// since the merge engine's tie-breaking rule for equally-ranked fields
// falls back to registration order per §4.H.
package provider

import (
	"context"

	"github.com/duskline/reconforge/internal/record"
)

// Provider is one OSINT data source.
type Provider interface {
	// Name is the stable identifier used in cache keys, rate limiter
	// buckets, config credential lookups, and per-provider status.
	Name() string
	// Category groups related providers (e.g. "whois") for rate limit
	// defaults and reporting; distinct from Name so rdap/whois can
	// share a category while remaining separately named.
	Category() string
	// Supports reports whether this provider can enrich targets of typ.
	Supports(typ record.Type) bool
	// RequiresCredentials reports whether Fetch needs an API key/secret
	// that the caller must supply via Credentials.
	RequiresCredentials() bool
	// Fetch retrieves raw provider-specific data for target. It should
	// return a reconerr-classified error on failure, never panic.
	Fetch(ctx context.Context, target string, typ record.Type, creds Credentials) (raw []byte, err error)
	// Normalize converts a raw Fetch response into the unified record
	// schema. It must be total: malformed raw data produces a mostly
	// empty but valid record, not an error, since a provider partially
	// answering is still useful (§4.F).
	Normalize(target string, typ record.Type, raw []byte) (*record.Record, error)
}

// Credentials carries whatever secret a provider needs, keyed by its
// own convention (most need exactly one API key).
type Credentials map[string]string

// Get returns the named credential, or "" if unset.
func (c Credentials) Get(name string) string {
	if c == nil {
		return ""
	}
	return c[name]
}

// Registry holds providers in registration order. Order matters for
// merge tie-breaking (§4.H) and for deterministic iteration when
// fanning a scan out across "all applicable providers".
type Registry struct {
	order     []string
	providers map[string]Provider
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p, or replaces an existing provider with the same
// name in place (preserving its original position in Order).
func (r *Registry) Register(p Provider) {
	name := p.Name()
	if _, exists := r.providers[name]; !exists {
		r.order = append(r.order, name)
	}
	r.providers[name] = p
}

// Get returns the named provider and whether it was found.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// Order returns provider names in registration order.
func (r *Registry) Order() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// All returns every registered provider in registration order.
func (r *Registry) All() []Provider {
	out := make([]Provider, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.providers[name])
	}
	return out
}

// SupportingType returns, in registration order, every provider that
// supports typ.
func (r *Registry) SupportingType(typ record.Type) []Provider {
	var out []Provider
	for _, name := range r.order {
		p := r.providers[name]
		if p.Supports(typ) {
			out = append(out, p)
		}
	}
	return out
}

// Names returns every registered provider that appears in the given
// name list, preserving registration order rather than the input
// order, and reports any requested names that are not registered.
func (r *Registry) Names(requested []string) (found []Provider, unknown []string) {
	requestedSet := make(map[string]struct{}, len(requested))
	for _, n := range requested {
		requestedSet[n] = struct{}{}
	}
	for _, name := range r.order {
		if _, ok := requestedSet[name]; ok {
			found = append(found, r.providers[name])
			delete(requestedSet, name)
		}
	}
	for n := range requestedSet {
		unknown = append(unknown, n)
	}
	return found, unknown
}
