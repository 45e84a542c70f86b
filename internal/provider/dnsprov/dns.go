// Package dnsprov implements the passive DNS provider: A/AAAA/MX/NS/TXT
// resolution against a configurable resolver, grounded in the
// teacher's bruteforce DNS client (pkg/discovery/dns) which already
// wraps github.com/miekg/dns directly rather than net.LookupHost, since
// the raw library exposes record types (MX, TXT) the standard resolver
// does not.
package dnsprov

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/reconerr"
	"github.com/duskline/reconforge/internal/record"
)

const Name = "dns"

// Provider queries a resolver directly over the wire for the record
// types the unified schema cares about.
type Provider struct {
	Resolver string // "ip:port", e.g. "1.1.1.1:53"
	Timeout  time.Duration
}

// New builds a Provider against the given resolver, defaulting to
// Cloudflare's public resolver and a 5s per-query timeout.
func New(resolver string, timeout time.Duration) *Provider {
	if resolver == "" {
		resolver = "1.1.1.1:53"
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Provider{Resolver: resolver, Timeout: timeout}
}

func (p *Provider) Name() string     { return Name }
func (p *Provider) Category() string { return "dns" }

func (p *Provider) Supports(typ record.Type) bool {
	return typ == record.TypeDomain
}

func (p *Provider) RequiresCredentials() bool { return false }

type rawResult struct {
	A   []string `json:"a"`
	AAAA []string `json:"aaaa"`
	MX  []string `json:"mx"`
	NS  []string `json:"ns"`
	TXT []string `json:"txt"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	if typ != record.TypeDomain {
		return nil, reconerr.Permanent(Name, target, fmt.Errorf("dns provider only supports domain targets"))
	}

	client := &dns.Client{Timeout: p.Timeout}
	result := rawResult{}

	queries := []struct {
		qtype uint16
		into  *[]string
		parse func(dns.RR) (string, bool)
	}{
		{dns.TypeA, &result.A, func(rr dns.RR) (string, bool) {
			a, ok := rr.(*dns.A)
			if !ok {
				return "", false
			}
			return a.A.String(), true
		}},
		{dns.TypeAAAA, &result.AAAA, func(rr dns.RR) (string, bool) {
			a, ok := rr.(*dns.AAAA)
			if !ok {
				return "", false
			}
			return a.AAAA.String(), true
		}},
		{dns.TypeMX, &result.MX, func(rr dns.RR) (string, bool) {
			mx, ok := rr.(*dns.MX)
			if !ok {
				return "", false
			}
			return fmt.Sprintf("%d %s", mx.Preference, strings.TrimSuffix(mx.Mx, ".")), true
		}},
		{dns.TypeNS, &result.NS, func(rr dns.RR) (string, bool) {
			ns, ok := rr.(*dns.NS)
			if !ok {
				return "", false
			}
			return ns.Ns, true
		}},
		{dns.TypeTXT, &result.TXT, func(rr dns.RR) (string, bool) {
			txt, ok := rr.(*dns.TXT)
			if !ok {
				return "", false
			}
			joined := ""
			for _, s := range txt.Txt {
				joined += s
			}
			return joined, true
		}},
	}

	var lastErr error
	answered := false
	for _, q := range queries {
		select {
		case <-ctx.Done():
			return nil, reconerr.Cancelled("dns fetch cancelled")
		default:
		}

		msg := new(dns.Msg)
		msg.SetQuestion(dns.Fqdn(target), q.qtype)
		msg.RecursionDesired = true

		resp, _, err := client.ExchangeContext(ctx, msg, p.Resolver)
		if err != nil {
			lastErr = err
			continue
		}
		if resp.Rcode != dns.RcodeSuccess && resp.Rcode != dns.RcodeNameError {
			lastErr = fmt.Errorf("resolver returned rcode %d", resp.Rcode)
			continue
		}
		answered = true
		for _, rr := range resp.Answer {
			if val, ok := q.parse(rr); ok {
				*q.into = append(*q.into, val)
			}
		}
	}

	if !answered && lastErr != nil {
		return nil, reconerr.Transient(Name, target, lastErr, 1)
	}

	return json.Marshal(result)
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)
	rec.Raw[Name] = json.RawMessage(raw)

	var result rawResult
	if err := json.Unmarshal(raw, &result); err != nil {
		// Malformed raw data still yields a valid, mostly-empty record
		// per §4.F rather than surfacing an error from Normalize.
		return rec, nil
	}

	for _, ip := range result.A {
		rec.Resolved.IP.Add(ip)
	}
	for _, ip := range result.AAAA {
		rec.Resolved.IP.Add(ip)
	}
	for _, mx := range result.MX {
		rec.Resolved.MX.Add(mx)
	}
	for _, ns := range result.NS {
		rec.Resolved.NS.Add(ns)
	}
	for _, txt := range result.TXT {
		rec.Resolved.TXT.Add(txt)
	}

	return rec, nil
}
