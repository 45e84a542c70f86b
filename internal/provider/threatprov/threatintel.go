// Package threatprov implements the threat-intelligence provider
// against VirusTotal's domain/IP report endpoint, scoring reports with
// the canonical §4.G formula: malicious and suspicious vendor votes
// weighted 1 and 0.5 respectively against the total engine count.
package threatprov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/reconerr"
	"github.com/duskline/reconforge/internal/record"
)

const Name = "threatintel"

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func New(timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Provider{
		BaseURL: "https://www.virustotal.com/api/v3",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "threatintel" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeDomain || typ == record.TypeIP
}

func (p *Provider) RequiresCredentials() bool { return true }

type vtAnalysisStats struct {
	Malicious  int `json:"malicious"`
	Suspicious int `json:"suspicious"`
	Harmless   int `json:"harmless"`
	Undetected int `json:"undetected"`
}

type vtResponse struct {
	Data struct {
		Attributes struct {
			LastAnalysisStats           vtAnalysisStats        `json:"last_analysis_stats"`
			Categories                  map[string]string      `json:"categories"`
			Reputation                  int                    `json:"reputation"`
			PopularThreatClassification map[string]interface{} `json:"popular_threat_classification"`
		} `json:"attributes"`
	} `json:"data"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	apiKey := creds.Get("api_key")
	if apiKey == "" {
		return nil, reconerr.CredentialsMissing(Name)
	}

	var path string
	switch typ {
	case record.TypeDomain:
		path = "/domains/" + target
	case record.TypeIP:
		path = "/ip_addresses/" + target
	default:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("threatintel provider only supports domain and ip targets"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.BaseURL+path, nil)
	if err != nil {
		return nil, reconerr.Internal(err)
	}
	req.Header.Set("x-apikey", apiKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, reconerr.Transient(Name, target, err, 1)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, reconerr.Transient(Name, target, err, 1)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("credentials rejected: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := reconerr.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, reconerr.TransientWithRetryAfter(Name, target, fmt.Errorf("rate limited"), 1, retryAfter)
	case resp.StatusCode == http.StatusNotFound:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("no report found"))
	case resp.StatusCode >= 500:
		return nil, reconerr.Transient(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode), 1)
	case resp.StatusCode >= 400:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	return body, nil
}

// riskScore implements the canonical §4.G formula:
// score = round(100 * (malicious + 0.5*suspicious) / (total or 1)),
// clamped to [0,100]. A report with zero total engines divides by 1
// rather than by zero.
func riskScore(stats vtAnalysisStats) int {
	total := stats.Malicious + stats.Suspicious + stats.Harmless + stats.Undetected
	if total == 0 {
		total = 1
	}
	weighted := float64(stats.Malicious) + 0.5*float64(stats.Suspicious)
	score := int(math.Round(100 * weighted / float64(total)))
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	return score
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)
	rec.Raw[Name] = json.RawMessage(raw)

	var parsed vtResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return rec, nil
	}

	stats := parsed.Data.Attributes.LastAnalysisStats
	score := riskScore(stats)
	rec.Risk.Score = record.IntPtr(score)
	providerFlagged := len(parsed.Data.Attributes.PopularThreatClassification) > 0
	rec.Risk.Malicious = score >= 30 || providerFlagged

	for _, category := range parsed.Data.Attributes.Categories {
		rec.Risk.Categories.Add(category)
	}

	return rec, nil
}
