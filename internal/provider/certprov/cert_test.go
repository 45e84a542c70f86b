package certprov

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/record"
)

func TestProvider_SupportsOnlyDomain(t *testing.T) {
	p := New(0)
	assert.True(t, p.Supports(record.TypeDomain))
	assert.False(t, p.Supports(record.TypeIP))
	assert.False(t, p.RequiresCredentials())
}

func TestSplitNameValue_SplitsOnNewlines(t *testing.T) {
	names := splitNameValue("example.com\n*.example.com\nwww.example.com")
	assert.Equal(t, []string{"example.com", "*.example.com", "www.example.com"}, names)
}

func TestSplitNameValue_EmptyStringYieldsNoNames(t *testing.T) {
	assert.Empty(t, splitNameValue(""))
}

func TestProvider_NormalizeDeduplicatesSubjectNames(t *testing.T) {
	p := New(0)
	raw := []byte(`[{"common_name":"example.com","name_value":"example.com\nwww.example.com"},{"common_name":"example.com","name_value":"example.com"}]`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)

	var subjects []string
	require.NoError(t, json.Unmarshal(rec.Raw[Name], &subjects))
	assert.ElementsMatch(t, []string{"example.com", "www.example.com"}, subjects)
}

func TestProvider_NormalizeMalformedRawYieldsEmptyRecord(t *testing.T) {
	p := New(0)
	rec, err := p.Normalize("example.com", record.TypeDomain, []byte("not json"))
	require.NoError(t, err)
	assert.Empty(t, rec.Raw)
}
