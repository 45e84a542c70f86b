// Package record defines the unified record schema every provider
// normalizer produces and the merge engine consumes. It replaces the
// dynamic, dict-shaped record of the source system with a precisely
// typed struct plus explicit set abstractions with deterministic
// iteration order.
package record

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
)

func marshalStrings(values []string) ([]byte, error) {
	return json.Marshal(values)
}

func unmarshalStrings(data []byte) ([]string, error) {
	var values []string
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, err
	}
	return values, nil
}

// Type is the closed set of target kinds the engine understands.
type Type string

const (
	TypeDomain Type = "domain"
	TypeIP     Type = "ip"
	TypeURL    Type = "url"
	TypeEmail  Type = "email"
)

// MergedSource is the source tag applied to the output of the merge
// engine, as opposed to a provider's own registered name.
const MergedSource = "merged"

// StringSet is an ordered, deduplicated collection of strings. Insertion
// order is preserved for serialization; equality is defined at the set
// level (order-independent).
type StringSet struct {
	values []string
	seen   map[string]struct{}
}

// NewStringSet builds a StringSet from zero or more initial values,
// preserving first-seen order and dropping duplicates.
func NewStringSet(values ...string) *StringSet {
	s := &StringSet{seen: make(map[string]struct{})}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v if not already present. Empty strings are ignored.
func (s *StringSet) Add(v string) {
	if v == "" {
		return
	}
	if s.seen == nil {
		s.seen = make(map[string]struct{})
	}
	if _, ok := s.seen[v]; ok {
		return
	}
	s.seen[v] = struct{}{}
	s.values = append(s.values, v)
}

// AddAll inserts every value from other, preserving other's first-seen
// order after this set's existing values.
func (s *StringSet) AddAll(other *StringSet) {
	if other == nil {
		return
	}
	for _, v := range other.values {
		s.Add(v)
	}
}

// Values returns the set contents in first-seen (insertion) order. The
// returned slice is never nil, so JSON serialization emits [] rather
// than null for an empty set (per §6.2).
func (s *StringSet) Values() []string {
	if s == nil || s.values == nil {
		return []string{}
	}
	return s.values
}

// Len reports the number of distinct elements.
func (s *StringSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.values)
}

// Equal compares two sets by content, ignoring order.
func (s *StringSet) Equal(other *StringSet) bool {
	a, b := s.Values(), other.Values()
	if len(a) != len(b) {
		return false
	}
	bSet := make(map[string]struct{}, len(b))
	for _, v := range b {
		bSet[v] = struct{}{}
	}
	for _, v := range a {
		if _, ok := bSet[v]; !ok {
			return false
		}
	}
	return true
}

// MarshalJSON emits the set as a plain JSON array in insertion order.
func (s *StringSet) MarshalJSON() ([]byte, error) {
	return marshalStrings(s.Values())
}

// UnmarshalJSON reconstructs a set from a JSON array, preserving array
// order as first-seen order.
func (s *StringSet) UnmarshalJSON(data []byte) error {
	values, err := unmarshalStrings(data)
	if err != nil {
		return err
	}
	*s = *NewStringSet(values...)
	return nil
}

// Resolved holds DNS-style resolution facts for a target.
type Resolved struct {
	IP  *StringSet `json:"ip"`
	MX  *StringSet `json:"mx"`
	NS  *StringSet `json:"ns"`
	TXT *StringSet `json:"txt"`
}

func newResolved() Resolved {
	return Resolved{IP: NewStringSet(), MX: NewStringSet(), NS: NewStringSet(), TXT: NewStringSet()}
}

// Whois holds registration facts. Single-value fields are optional
// (nil means "unset", as opposed to an empty string meaning "known
// empty").
type Whois struct {
	Registrar *string    `json:"registrar"`
	Org       *string    `json:"org"`
	Country   *string    `json:"country"`
	Emails    *StringSet `json:"emails"`
	Created   *time.Time `json:"created"`
	Updated   *time.Time `json:"updated"`
	Expires   *time.Time `json:"expires"`
}

func newWhois() Whois {
	return Whois{Emails: NewStringSet()}
}

// Network holds locality/geolocation facts.
type Network struct {
	ASN     *string `json:"asn"`
	ASNName *string `json:"asn_name"`
	ISP     *string `json:"isp"`
	City    *string `json:"city"`
	Region  *string `json:"region"`
	Country *string `json:"country"`
}

// Risk holds threat-intelligence signal.
type Risk struct {
	Score      *int       `json:"score"`
	Categories *StringSet `json:"categories"`
	Malicious  bool       `json:"malicious"`
}

func newRisk() Risk {
	return Risk{Categories: NewStringSet()}
}

// Record is the canonical shape every provider produces and the merge
// engine consumes.
type Record struct {
	Source   string                     `json:"source"`
	Type     Type                       `json:"type"`
	Target   string                     `json:"target"`
	Resolved Resolved                   `json:"resolved"`
	Whois    Whois                      `json:"whois"`
	Network  Network                    `json:"network"`
	Risk     Risk                       `json:"risk"`
	Raw      map[string]json.RawMessage `json:"raw"`
}

// New constructs an empty record for the given provider/merged source,
// target and type, with all collection fields initialized to their
// empty (never-nil) form.
func New(source string, target string, typ Type) *Record {
	return &Record{
		Source:   source,
		Type:     typ,
		Target:   target,
		Resolved: newResolved(),
		Whois:    newWhois(),
		Network:  Network{},
		Risk:     newRisk(),
		Raw:      map[string]json.RawMessage{},
	}
}

var (
	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	ipv4Pattern   = regexp.MustCompile(`^(\d{1,3}\.){3}\d{1,3}$`)
)

// ValidationError describes the first offending field found while
// validating a record. Validate is total: it never panics, and always
// returns a ValidationError rather than propagating one.
type ValidationError struct {
	Kind  string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Field)
}

func invalid(kind, field string) *ValidationError {
	return &ValidationError{Kind: kind, Field: field}
}

// Validate checks a record against the §3.1 invariants: type is one of
// the closed set, target is nonempty and shaped like its declared type,
// risk score (if present) is within [0,100], and source is nonempty.
// Set-valued fields are not re-checked for duplicates here: StringSet
// guarantees deduplication by construction.
func Validate(r *Record) error {
	if r == nil {
		return invalid("nil_record", "record")
	}
	switch r.Type {
	case TypeDomain, TypeIP, TypeURL, TypeEmail:
	default:
		return invalid("invalid_type", "type")
	}
	if strings.TrimSpace(r.Target) == "" {
		return invalid("empty_target", "target")
	}
	if !targetMatchesType(r.Target, r.Type) {
		return invalid("target_type_mismatch", "target")
	}
	if r.Risk.Score != nil && (*r.Risk.Score < 0 || *r.Risk.Score > 100) {
		return invalid("score_out_of_range", "risk.score")
	}
	if r.Source == "" {
		return invalid("empty_source", "source")
	}
	return nil
}

func targetMatchesType(target string, typ Type) bool {
	switch typ {
	case TypeDomain:
		return domainPattern.MatchString(target)
	case TypeIP:
		return ipv4Pattern.MatchString(target) || strings.Contains(target, ":")
	case TypeEmail:
		return emailPattern.MatchString(target)
	case TypeURL:
		return strings.Contains(target, "://")
	default:
		return false
	}
}

// Equal reports whether two records are semantically equal per §3.1:
// all typed fields equal after sorting set-valued fields (StringSet.Equal
// is already order-independent). Raw payloads are not compared byte by
// byte; only the number of Raw entries must match.
func Equal(a, b *Record) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.Source != b.Source || a.Type != b.Type || a.Target != b.Target {
		return false
	}
	if !a.Resolved.IP.Equal(b.Resolved.IP) || !a.Resolved.MX.Equal(b.Resolved.MX) ||
		!a.Resolved.NS.Equal(b.Resolved.NS) || !a.Resolved.TXT.Equal(b.Resolved.TXT) {
		return false
	}
	if !equalStrPtr(a.Whois.Registrar, b.Whois.Registrar) || !equalStrPtr(a.Whois.Org, b.Whois.Org) ||
		!equalStrPtr(a.Whois.Country, b.Whois.Country) || !a.Whois.Emails.Equal(b.Whois.Emails) ||
		!equalTimePtr(a.Whois.Created, b.Whois.Created) || !equalTimePtr(a.Whois.Updated, b.Whois.Updated) ||
		!equalTimePtr(a.Whois.Expires, b.Whois.Expires) {
		return false
	}
	if !equalStrPtr(a.Network.ASN, b.Network.ASN) || !equalStrPtr(a.Network.ASNName, b.Network.ASNName) ||
		!equalStrPtr(a.Network.ISP, b.Network.ISP) || !equalStrPtr(a.Network.City, b.Network.City) ||
		!equalStrPtr(a.Network.Region, b.Network.Region) || !equalStrPtr(a.Network.Country, b.Network.Country) {
		return false
	}
	if !equalIntPtr(a.Risk.Score, b.Risk.Score) || a.Risk.Malicious != b.Risk.Malicious ||
		!a.Risk.Categories.Equal(b.Risk.Categories) {
		return false
	}
	return len(a.Raw) == len(b.Raw)
}

func equalStrPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalIntPtr(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func equalTimePtr(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

// StrPtr and IntPtr are small helpers for building optional fields in
// normalizers without importing extra utility packages.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func IntPtr(i int) *int { return &i }
