package geoipprov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/record"
)

func TestProvider_SupportsOnlyIP(t *testing.T) {
	p := New(0)
	assert.True(t, p.Supports(record.TypeIP))
	assert.False(t, p.Supports(record.TypeDomain))
	assert.False(t, p.RequiresCredentials())
}

func TestProvider_NormalizePopulatesNetworkFields(t *testing.T) {
	p := New(0)
	raw := []byte(`{"org":"AS15169 Google LLC","city":"Mountain View","region":"California","country":"US"}`)

	rec, err := p.Normalize("8.8.8.8", record.TypeIP, raw)
	require.NoError(t, err)

	require.NotNil(t, rec.Network.ASN)
	assert.Equal(t, "AS15169 Google LLC", *rec.Network.ASN)
	assert.Equal(t, "Mountain View", *rec.Network.City)
	assert.Equal(t, "US", *rec.Network.Country)
}

func TestProvider_NormalizeMalformedRawYieldsEmptyRecord(t *testing.T) {
	p := New(0)
	rec, err := p.Normalize("8.8.8.8", record.TypeIP, []byte("not json"))
	require.NoError(t, err)
	assert.Nil(t, rec.Network.ASN)
}
