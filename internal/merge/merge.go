// Package merge implements the field-family merge rules of §4.H: set
// union for collection fields, first-non-empty for scalar identity
// fields (in registration order, so an earlier-registered provider
// wins ties), min/max timestamp for the whois date fields, max for the
// risk score, and logical OR for the malicious flag.
package merge

import (
	"time"

	"github.com/duskline/reconforge/internal/record"
)

// Merge combines records for the same target into one, in the order
// given. Order determines first-non-empty tie-breaking; callers should
// pass records in provider registration order (§4.H). target and typ
// identify the caller's original request and stamp the result even
// when records is empty, so the merged record always exists (§4.H,
// §7, §8) — never nil. A single-record input returns a new record
// carrying the same values with Source relabeled to MergedSource,
// rather than the same pointer.
func Merge(records []*record.Record, target string, typ record.Type) *record.Record {
	out := record.New(record.MergedSource, target, typ)

	for _, r := range records {
		if r == nil {
			continue
		}
		out.Resolved.IP.AddAll(r.Resolved.IP)
		out.Resolved.MX.AddAll(r.Resolved.MX)
		out.Resolved.NS.AddAll(r.Resolved.NS)
		out.Resolved.TXT.AddAll(r.Resolved.TXT)
		out.Whois.Emails.AddAll(r.Whois.Emails)
		out.Risk.Categories.AddAll(r.Risk.Categories)

		out.Whois.Registrar = firstNonEmpty(out.Whois.Registrar, r.Whois.Registrar)
		out.Whois.Org = firstNonEmpty(out.Whois.Org, r.Whois.Org)
		out.Whois.Country = firstNonEmpty(out.Whois.Country, r.Whois.Country)
		out.Network.ASN = firstNonEmpty(out.Network.ASN, r.Network.ASN)
		out.Network.ASNName = firstNonEmpty(out.Network.ASNName, r.Network.ASNName)
		out.Network.ISP = firstNonEmpty(out.Network.ISP, r.Network.ISP)
		out.Network.City = firstNonEmpty(out.Network.City, r.Network.City)
		out.Network.Region = firstNonEmpty(out.Network.Region, r.Network.Region)
		out.Network.Country = firstNonEmpty(out.Network.Country, r.Network.Country)

		out.Whois.Created = minTime(out.Whois.Created, r.Whois.Created)
		out.Whois.Updated = maxTime(out.Whois.Updated, r.Whois.Updated)
		out.Whois.Expires = maxTime(out.Whois.Expires, r.Whois.Expires)

		out.Risk.Score = maxInt(out.Risk.Score, r.Risk.Score)
		out.Risk.Malicious = out.Risk.Malicious || r.Risk.Malicious

		for k, v := range r.Raw {
			if _, exists := out.Raw[k]; !exists {
				out.Raw[k] = v
			}
		}
	}

	return out
}

// firstNonEmpty keeps current if it is already set, otherwise adopts
// candidate. Passing records in registration order makes this the
// earliest-registered provider's non-empty value winning ties.
func firstNonEmpty(current, candidate *string) *string {
	if current != nil && *current != "" {
		return current
	}
	if candidate != nil && *candidate != "" {
		return candidate
	}
	return current
}

func minTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.Before(*a) {
		return b
	}
	return a
}

func maxTime(a, b *time.Time) *time.Time {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if b.After(*a) {
		return b
	}
	return a
}

func maxInt(a, b *int) *int {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if *b > *a {
		return b
	}
	return a
}
