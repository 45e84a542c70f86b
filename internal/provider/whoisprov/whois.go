// Package whoisprov implements the WHOIS registration-facts provider,
// grounded in the teacher's pkg/discovery/whois client which pairs
// github.com/likexian/whois for the raw text lookup with
// github.com/likexian/whois-parser for structured extraction, falling
// back to nothing (not a hand-rolled regex parser) when a TLD's WHOIS
// server returns a shape whois-parser doesn't recognize — an unparsed
// response still yields a mostly-empty record per §4.F.
package whoisprov

import (
	"context"
	"encoding/json"
	"time"

	whoisclient "github.com/likexian/whois"
	whoisparser "github.com/likexian/whois-parser"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/reconerr"
	"github.com/duskline/reconforge/internal/record"
)

const Name = "whois"

type Provider struct {
	Timeout time.Duration
}

func New(timeout time.Duration) *Provider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Provider{Timeout: timeout}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "whois" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeDomain
}

func (p *Provider) RequiresCredentials() bool { return false }

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	client := whoisclient.NewClient()
	client.SetTimeout(p.Timeout)

	raw, err := client.Whois(target)
	if err != nil {
		return nil, reconerr.Transient(Name, target, err, 1)
	}
	return []byte(raw), nil
}

type normalizedWhois struct {
	Registrar string   `json:"registrar"`
	Org       string   `json:"org"`
	Country   string   `json:"country"`
	Emails    []string `json:"emails"`
	Created   string   `json:"created"`
	Updated   string   `json:"updated"`
	Expires   string   `json:"expires"`
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)

	parsed, err := whoisparser.Parse(string(raw))
	if err != nil {
		// whois-parser fails often on thin/unusual registrar responses;
		// treat as a partial result rather than a provider failure.
		return rec, nil
	}

	if parsed.Registrar != nil {
		rec.Whois.Registrar = record.StrPtr(parsed.Registrar.Name)
	}
	if parsed.Registrant != nil {
		rec.Whois.Org = record.StrPtr(parsed.Registrant.Organization)
		rec.Whois.Country = record.StrPtr(parsed.Registrant.Country)
		if parsed.Registrant.Email != "" {
			rec.Whois.Emails.Add(parsed.Registrant.Email)
		}
	}
	if parsed.Administrative != nil && parsed.Administrative.Email != "" {
		rec.Whois.Emails.Add(parsed.Administrative.Email)
	}
	if parsed.Technical != nil && parsed.Technical.Email != "" {
		rec.Whois.Emails.Add(parsed.Technical.Email)
	}

	if parsed.Domain != nil {
		if ts := parseWhoisTime(parsed.Domain.CreatedDate); ts != nil {
			rec.Whois.Created = ts
		}
		if ts := parseWhoisTime(parsed.Domain.UpdatedDate); ts != nil {
			rec.Whois.Updated = ts
		}
		if ts := parseWhoisTime(parsed.Domain.ExpirationDate); ts != nil {
			rec.Whois.Expires = ts
		}
	}

	rec.Raw[Name] = json.RawMessage(mustMarshalRawSummary(parsed))

	return rec, nil
}

func mustMarshalRawSummary(parsed whoisparser.WhoisInfo) []byte {
	summary := normalizedWhois{}
	if parsed.Domain != nil {
		summary.Created = parsed.Domain.CreatedDate
		summary.Updated = parsed.Domain.UpdatedDate
		summary.Expires = parsed.Domain.ExpirationDate
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return []byte(`{}`)
	}
	return data
}

// parseWhoisTime tries the handful of layouts whois-parser normalizes
// dates to across different registries; an unparseable string yields
// nil rather than an error, consistent with Normalize's total contract.
func parseWhoisTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return &ts
		}
	}
	return nil
}
