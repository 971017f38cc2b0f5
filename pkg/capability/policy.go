package capability

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/capload/pkg/typedef"
)

// Policy decides how many requested capabilities a type has to implement
type Policy int

const (
	// PolicyAny accepts a type implementing at least one requested capability
	PolicyAny Policy = iota
	// PolicyAll accepts a type implementing every requested capability
	PolicyAll
)

func (p Policy) String() string {
	switch p {
	case PolicyAny:
		return "any"
	case PolicyAll:
		return "all"
	default:
		return fmt.Sprintf("Policy(%d)", int(p))
	}
}

// ParsePolicy parses "any" or "all", case-insensitively
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(s) {
	case "", "any":
		return PolicyAny, nil
	case "all":
		return PolicyAll, nil
	default:
		return PolicyAny, fmt.Errorf("unknown capability policy: %s (must be any or all)", s)
	}
}

// Satisfies returns the capabilities in caps that some declared interface of
// t structurally matches, in request order. Only the interfaces t declares
// directly are considered.
func (m *Matcher) Satisfies(t *typedef.Type, caps []*typedef.Type) []*typedef.Type {
	if t == nil {
		return nil
	}

	ifaces := t.Interfaces()
	var matched []*typedef.Type
	for _, c := range caps {
		for _, iface := range ifaces {
			if m.Match(iface, c) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

// Accepts applies policy to t. An empty capability set accepts nothing.
func (m *Matcher) Accepts(t *typedef.Type, caps []*typedef.Type, policy Policy) bool {
	if t == nil || len(caps) == 0 {
		return false
	}

	switch policy {
	case PolicyAll:
		return len(m.Satisfies(t, caps)) == len(caps)
	default:
		for _, iface := range t.Interfaces() {
			for _, c := range caps {
				if m.Match(iface, c) {
					return true
				}
			}
		}
		return false
	}
}
