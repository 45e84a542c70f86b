package threatprov

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/record"
)

func TestProvider_RequiresCredentials(t *testing.T) {
	p := New(0)
	assert.True(t, p.RequiresCredentials())
	assert.True(t, p.Supports(record.TypeDomain))
	assert.True(t, p.Supports(record.TypeIP))
	assert.False(t, p.Supports(record.TypeEmail))
}

func TestProvider_FetchWithoutCredentialsReturnsCredentialsMissing(t *testing.T) {
	p := New(0)
	_, err := p.Fetch(context.Background(), "example.com", record.TypeDomain, provider.Credentials{})
	require.Error(t, err)
}

func TestRiskScore_ComputesPercentage(t *testing.T) {
	assert.Equal(t, 50, riskScore(vtAnalysisStats{Malicious: 5, Harmless: 5}))
	assert.Equal(t, 0, riskScore(vtAnalysisStats{}))
	assert.Equal(t, 100, riskScore(vtAnalysisStats{Malicious: 10}))
}

func TestProvider_NormalizeSetsRiskFields(t *testing.T) {
	p := New(0)
	raw := []byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":3,"suspicious":1,"harmless":56,"undetected":10},"categories":{"vendorA":"phishing"},"popular_threat_classification":{"suggested_threat_label":"phishing"}}}}`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)

	require.NotNil(t, rec.Risk.Score)
	assert.Equal(t, 5, *rec.Risk.Score)
	assert.True(t, rec.Risk.Malicious, "vendor threat classification flags the target even though the score is below 30")
	assert.Equal(t, []string{"phishing"}, rec.Risk.Categories.Values())
}

func TestProvider_NormalizeMaliciousFromScoreAlone(t *testing.T) {
	p := New(0)
	raw := []byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":30,"harmless":70}}}}`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)
	assert.Equal(t, 30, *rec.Risk.Score)
	assert.True(t, rec.Risk.Malicious)
}

func TestProvider_NormalizeLowScoreWithoutFlagIsNotMalicious(t *testing.T) {
	p := New(0)
	raw := []byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":5,"harmless":95}}}}`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)
	assert.Equal(t, 5, *rec.Risk.Score)
	assert.False(t, rec.Risk.Malicious)
}

func TestProvider_NormalizeNoDetectionsIsNotMalicious(t *testing.T) {
	p := New(0)
	raw := []byte(`{"data":{"attributes":{"last_analysis_stats":{"malicious":0,"harmless":70}}}}`)

	rec, err := p.Normalize("example.com", record.TypeDomain, raw)
	require.NoError(t, err)
	assert.False(t, rec.Risk.Malicious)
	assert.Equal(t, 0, *rec.Risk.Score)
}
