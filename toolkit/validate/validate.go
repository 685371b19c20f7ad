// toolkit/validate/validate.go
package validate

import (
	"fmt"
	"strings"
)

// Email is a light, readable guardrail for fixture data.
// It is not an RFC validator; it catches empty, missing '@', or
// no dot in the domain.
func Email(s string) bool {
	s = strings.TrimSpace(s)
	at := strings.IndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	return strings.Contains(domain, ".") && !strings.HasSuffix(domain, ".")
}

// Problems collects field-level complaints so a caller can report all of
// them at once.
type Problems []string

// Addf records one problem.
func (p *Problems) Addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

// Required records a problem when s is blank.
func (p *Problems) Required(field, s string) {
	if strings.TrimSpace(s) == "" {
		p.Addf("%s is required", field)
	}
}

// Err returns nil when nothing was recorded, otherwise one error listing
// every problem prefixed with what.
func (p Problems) Err(what string) error {
	if len(p) == 0 {
		return nil
	}
	return fmt.Errorf("%s: %s", what, strings.Join(p, "; "))
}
