// Package target implements the target-type auto-detection convenience
// described in SPEC_FULL.md §4 (supplemented feature 2, grounded in the
// Python original's _determine_target_type): given a raw string, guess
// whether it names a domain, IP, URL, or email. The core engine
// entrypoint still requires an explicit type; Detect exists only for
// callers (the CLI) that want to infer one.
package target

import (
	"fmt"
	"net"
	"regexp"
	"strings"

	"github.com/duskline/reconforge/internal/record"
)

var (
	emailPattern  = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
	domainPattern = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)+$`)
)

// Detect guesses a target's type from its raw string form. It returns
// an error only when raw matches none of the four known shapes.
func Detect(raw string) (record.Type, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", fmt.Errorf("empty target")
	}

	if strings.Contains(trimmed, "://") {
		return record.TypeURL, nil
	}
	if emailPattern.MatchString(trimmed) {
		return record.TypeEmail, nil
	}
	if ip := net.ParseIP(trimmed); ip != nil {
		return record.TypeIP, nil
	}
	if domainPattern.MatchString(trimmed) {
		return record.TypeDomain, nil
	}
	return "", fmt.Errorf("could not determine target type for %q", raw)
}
