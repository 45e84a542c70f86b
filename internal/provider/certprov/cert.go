// Package certprov queries crt.sh's JSON search endpoint for
// certificate transparency log entries. SPEC_FULL.md's domain stack
// considered wiring github.com/google/certificate-transparency-go
// here, since it is present in the teacher's transitive dependency
// graph (pulled in by zmap/zcrypto-adjacent CT tooling); that library
// speaks the CT log protocol directly (get-entries, get-sth) against a
// single log server, which is the wrong shape for "search across every
// public log for a hostname" — crt.sh already aggregates that across
// logs and returns it as one JSON array, so a plain HTTP+JSON client
// serves this provider's actual need. See DESIGN.md.
package certprov

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

const Name = "certdb"

type Provider struct {
	BaseURL string
	Client  *http.Client
}

func New(timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &Provider{
		BaseURL: "https://crt.sh",
		Client:  &http.Client{Timeout: timeout},
	}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "certdb" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeDomain
}

func (p *Provider) RequiresCredentials() bool { return false }

type crtEntry struct {
	CommonName string `json:"common_name"`
	NameValue  string `json:"name_value"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	url := fmt.Sprintf("%s/?q=%%25.%s&output=json", p.BaseURL, target)

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

	if len(body) == 0 {
		return []byte(`[]`), nil
	}
	return body, nil
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)

	var entries []crtEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return rec, nil
	}

	subjects := record.NewStringSet()
	for _, e := range entries {
		if e.CommonName != "" {
			subjects.Add(e.CommonName)
		}
		for _, name := range splitNameValue(e.NameValue) {
			subjects.Add(name)
		}
	}

	data, err := json.Marshal(subjects.Values())
	if err == nil {
		rec.Raw[Name] = json.RawMessage(data)
	}

	return rec, nil
}

func splitNameValue(nameValue string) []string {
	var names []string
	start := 0
	for i := 0; i <= len(nameValue); i++ {
		if i == len(nameValue) || nameValue[i] == '\n' {
			if i > start {
				names = append(names, nameValue[start:i])
			}
			start = i + 1
		}
	}
	return names
}
