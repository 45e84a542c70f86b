// Package geoipprov implements the IP geolocation provider against
// ipinfo.io, grounded in the Python original's normalizers/ipinfo.py.
// A token is optional: ipinfo.io serves a limited free tier
// unauthenticated, so this provider does not require credentials but
// uses one when present to raise its rate limit ceiling.
package geoipprov

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/reconerr"
	"github.com/duskline/reconforge/internal/record"
)

const Name = "geoip"

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func New(timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{
		BaseURL: "https://ipinfo.io",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "geoip" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeIP
}

func (p *Provider) RequiresCredentials() bool { return false }

type rawGeoIP struct {
	ASN     string `json:"org"`
	City    string `json:"city"`
	Region  string `json:"region"`
	Country string `json:"country"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	url := fmt.Sprintf("%s/%s/json", p.BaseURL, target)
	if token := creds.Get("api_key"); token != "" {
		url += "?token=" + token
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, reconerr.Internal(err)
	}

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
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := reconerr.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, reconerr.TransientWithRetryAfter(Name, target, fmt.Errorf("rate limited"), 1, retryAfter)
	case resp.StatusCode >= 500:
		return nil, reconerr.Transient(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode), 1)
	case resp.StatusCode >= 400:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	return body, nil
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)
	rec.Raw[Name] = json.RawMessage(raw)

	var parsed rawGeoIP
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return rec, nil
	}

	rec.Network.ASN = record.StrPtr(parsed.ASN)
	rec.Network.City = record.StrPtr(parsed.City)
	rec.Network.Region = record.StrPtr(parsed.Region)
	rec.Network.Country = record.StrPtr(parsed.Country)

	return rec, nil
}
