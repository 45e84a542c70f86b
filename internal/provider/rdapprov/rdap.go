// Package rdapprov implements a second registrar-facts provider using
// RDAP, the structured JSON successor to WHOIS, grounded in
// namelens-namelens's use of github.com/openrdap/rdap. RDAP's
// vCard-based contact structure and machine-readable event timestamps
// let this provider fill gaps whois-parser sometimes leaves blank, and
// the merge engine's first-non-empty rule (§4.H) means that, for a
// field both fill, whichever of whoisprov/rdapprov is registered first
// wins.
package rdapprov

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/openrdap/rdap"

	"github.com/duskline/reconforge/internal/provider"
	"github.com/duskline/reconforge/internal/reconerr"
	"github.com/duskline/reconforge/internal/record"
)

const Name = "rdap"

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
	return typ == record.TypeDomain || typ == record.TypeIP
}

func (p *Provider) RequiresCredentials() bool { return false }

type rawRDAP struct {
	Registrar string   `json:"registrar"`
	Country   string   `json:"country"`
	Emails    []string `json:"emails"`
	Created   string   `json:"created"`
	Updated   string   `json:"updated"`
	Expires   string   `json:"expires"`
}

func (p *Provider) Fetch(ctx context.Context, target string, typ record.Type, creds provider.Credentials) ([]byte, error) {
	client := &rdap.Client{
		HTTP: &http.Client{Timeout: p.Timeout},
	}

	var (
		resp *rdap.Response
		err  error
	)

	switch typ {
	case record.TypeDomain:
		req := rdap.NewDomainRequest(target).WithContext(ctx)
		resp, err = client.Do(req)
	case record.TypeIP:
		req := rdap.NewIPRequest(net.ParseIP(target)).WithContext(ctx)
		resp, err = client.Do(req)
	default:
		return nil, reconerr.Permanent(Name, target, errUnsupportedType)
	}

	if err != nil {
		if rdapErr, ok := err.(*rdap.ClientError); ok && rdapErr.Type == rdap.ObjectDoesNotExist {
			return nil, reconerr.Permanent(Name, target, err)
		}
		return nil, reconerr.Transient(Name, target, err, 1)
	}

	out := rawRDAP{}
	switch obj := resp.Object.(type) {
	case *rdap.Domain:
		fillFromEntities(&out, obj.Entities)
		fillFromEvents(&out, obj.Events)
	case *rdap.IPNetwork:
		fillFromEntities(&out, obj.Entities)
		fillFromEvents(&out, obj.Events)
	}

	return json.Marshal(out)
}

var errUnsupportedType = &unsupportedTypeError{}

type unsupportedTypeError struct{}

func (e *unsupportedTypeError) Error() string { return "rdap provider only supports domain and ip targets" }

func fillFromEntities(out *rawRDAP, entities []rdap.Entity) {
	for _, ent := range entities {
		isRegistrar := false
		for _, role := range ent.Roles {
			if role == "registrar" {
				isRegistrar = true
			}
		}
		if ent.VCard == nil {
			continue
		}
		if isRegistrar {
			if fn := ent.VCard.Name(); fn != "" {
				out.Registrar = fn
			}
		}
		if email := ent.VCard.Email(); email != "" {
			out.Emails = append(out.Emails, email)
		}
	}
}

func fillFromEvents(out *rawRDAP, events []rdap.Event) {
	for _, ev := range events {
		switch ev.Action {
		case "registration":
			out.Created = ev.Date
		case "last changed":
			out.Updated = ev.Date
		case "expiration":
			out.Expires = ev.Date
		}
	}
}

func (p *Provider) Normalize(target string, typ record.Type, raw []byte) (*record.Record, error) {
	rec := record.New(Name, target, typ)
	rec.Raw[Name] = json.RawMessage(raw)

	var parsed rawRDAP
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return rec, nil
	}

	rec.Whois.Registrar = record.StrPtr(parsed.Registrar)
	rec.Whois.Country = record.StrPtr(parsed.Country)
	for _, e := range parsed.Emails {
		rec.Whois.Emails.Add(e)
	}
	if ts, err := time.Parse(time.RFC3339, parsed.Created); err == nil {
		rec.Whois.Created = &ts
	}
	if ts, err := time.Parse(time.RFC3339, parsed.Updated); err == nil {
		rec.Whois.Updated = &ts
	}
	if ts, err := time.Parse(time.RFC3339, parsed.Expires); err == nil {
		rec.Whois.Expires = &ts
	}

	return rec, nil
}
