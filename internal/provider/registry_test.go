package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/record"
)

type stubProvider struct {
	name       string
	category   string
	types      []record.Type
	needsCreds bool
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Category() string { return s.category }
func (s *stubProvider) Supports(typ record.Type) bool {
	for _, t := range s.types {
		if t == typ {
			return true
		}
	}
	return false
}
func (s *stubProvider) RequiresCredentials() bool { return s.needsCreds }
func (s *stubProvider) Fetch(ctx context.Context, target string, typ record.Type, creds Credentials) ([]byte, error) {
	return []byte(`{}`), nil
}
func (s *stubProvider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	return record.New(s.name, target, typ), nil
}

func TestRegistry_PreservesRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "dns", types: []record.Type{record.TypeDomain}})
	r.Register(&stubProvider{name: "whois", types: []record.Type{record.TypeDomain}})
	r.Register(&stubProvider{name: "geoip", types: []record.Type{record.TypeIP}})

	assert.Equal(t, []string{"dns", "whois", "geoip"}, r.Order())
}

func TestRegistry_ReregisterKeepsOriginalPosition(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "dns", types: []record.Type{record.TypeDomain}})
	r.Register(&stubProvider{name: "whois", types: []record.Type{record.TypeDomain}})
	r.Register(&stubProvider{name: "dns", category: "updated", types: []record.Type{record.TypeDomain}})

	assert.Equal(t, []string{"dns", "whois"}, r.Order())
	p, ok := r.Get("dns")
	require.True(t, ok)
	assert.Equal(t, "updated", p.Category())
}

func TestRegistry_SupportingTypeFiltersAndPreservesOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "dns", types: []record.Type{record.TypeDomain}})
	r.Register(&stubProvider{name: "geoip", types: []record.Type{record.TypeIP}})
	r.Register(&stubProvider{name: "whois", types: []record.Type{record.TypeDomain}})

	supporting := r.SupportingType(record.TypeDomain)
	require.Len(t, supporting, 2)
	assert.Equal(t, "dns", supporting[0].Name())
	assert.Equal(t, "whois", supporting[1].Name())
}

func TestRegistry_NamesReportsUnknown(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubProvider{name: "dns", types: []record.Type{record.TypeDomain}})

	found, unknown := r.Names([]string{"dns", "bogus"})
	require.Len(t, found, 1)
	assert.Equal(t, "dns", found[0].Name())
	assert.Equal(t, []string{"bogus"}, unknown)
}

func TestRegistry_GetMissingReturnsFalse(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Get("nope")
	assert.False(t, ok)
}

func TestCredentials_GetOnNilMapIsEmpty(t *testing.T) {
	var c Credentials
	assert.Equal(t, "", c.Get("api_key"))
}
