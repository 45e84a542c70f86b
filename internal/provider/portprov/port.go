// Package portprov implements the port/service provider against
// Shodan's host lookup endpoint, grounded in the Python original's
// normalizers/shodan.py. Shodan requires an API key and returns ASN,
// ISP and open-port/banner data per host; this adapter maps ASN/ISP
// into Network and folds the per-port banner list into Raw for callers
// that want the detail without the merge engine needing a dedicated
// port-list field.
package portprov

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

const Name = "portscan"

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func New(timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Provider{
		BaseURL: "https://api.shodan.io",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "portscan" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeIP
}

func (p *Provider) RequiresCredentials() bool { return true }

type shodanPort struct {
	Port     int    `json:"port"`
	Product  string `json:"product"`
	Transport string `json:"transport"`
}

type shodanHost struct {
	ASN  string       `json:"asn"`
	ISP  string       `json:"isp"`
	Org  string       `json:"org"`
	Data []shodanPort `json:"data"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	apiKey := creds.Get("api_key")
	if apiKey == "" {
		return nil, reconerr.CredentialsMissing(Name)
	}

	url := fmt.Sprintf("%s/shodan/host/%s?key=%s", p.BaseURL, target, apiKey)
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
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("credentials rejected: status %d", resp.StatusCode))
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := reconerr.ParseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, reconerr.TransientWithRetryAfter(Name, target, fmt.Errorf("rate limited"), 1, retryAfter)
	case resp.StatusCode == http.StatusNotFound:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("no records found for host"))
	case resp.StatusCode >= 500:
		return nil, reconerr.Transient(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode), 1)
	case resp.StatusCode >= 400:
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	return body, nil
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)

	var parsed shodanHost
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return rec, nil
	}

	rec.Network.ASN = record.StrPtr(parsed.ASN)
	rec.Network.ISP = record.StrPtr(parsed.ISP)

	if len(parsed.Data) > 0 {
		data, err := json.Marshal(parsed.Data)
		if err == nil {
			rec.Raw[Name] = json.RawMessage(data)
		}
	}

	return rec, nil
}
