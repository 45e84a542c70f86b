package dnsprov

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/record"
)

func TestProvider_SupportsOnlyDomain(t *testing.T) {
	p := New("", 0)
	assert.True(t, p.Supports(record.TypeDomain))
	assert.False(t, p.Supports(record.TypeIP))
	assert.False(t, p.Supports(record.TypeEmail))
	assert.False(t, p.RequiresCredentials())
}

func TestProvider_NormalizePopulatesResolvedFields(t *testing.T) {
	p := New("", 0)
	raw := []byte(`{"a":["93.184.216.34"],"aaaa":["2606:2800:220:1:248:1893:25c8:1946"],"mx":["mail.example.com"],"ns":["ns1.example.com","ns2.example.com"],"txt":["v=spf1 -all"]}`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"93.184.216.34", "2606:2800:220:1:248:1893:25c8:1946"}, rec.Resolved.IP.Values())
	assert.Equal(t, []string{"mail.example.com"}, rec.Resolved.MX.Values())
	assert.Equal(t, []string{"ns1.example.com", "ns2.example.com"}, rec.Resolved.NS.Values())
	assert.Equal(t, []string{"v=spf1 -all"}, rec.Resolved.TXT.Values())
	assert.Equal(t, Name, rec.Source)
}

func TestProvider_NormalizeMalformedRawYieldsEmptyRecordNotError(t *testing.T) {
	p := New("", 0)
	rec, err := p.Normalize("example.com", record.TypeDomain, []byte(`not json`))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Resolved.IP.Len())
}

func TestNew_DefaultsResolverAndTimeout(t *testing.T) {
	p := New("", 0)
	assert.Equal(t, "1.1.1.1:53", p.Resolver)
	assert.Greater(t, p.Timeout.Seconds(), 0.0)
}
