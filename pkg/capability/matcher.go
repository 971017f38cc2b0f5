package capability

import (
	"fmt"
	"sort"

	"github.com/platinummonkey/capload/pkg/typedef"
)

// MethodOrder selects how methods of two interfaces are paired up
type MethodOrder int

const (
	// OrderPositional pairs methods by declaration index. Interfaces declaring
	// the same methods in a different order do not match.
	OrderPositional MethodOrder = iota
	// OrderByName sorts both method lists by name before pairing them
	OrderByName
)

func (o MethodOrder) String() string {
	switch o {
	case OrderPositional:
		return "positional"
	case OrderByName:
		return "name"
	default:
		return fmt.Sprintf("MethodOrder(%d)", int(o))
	}
}

// ParseMethodOrder parses "positional" or "name"
func ParseMethodOrder(s string) (MethodOrder, error) {
	switch s {
	case "", "positional":
		return OrderPositional, nil
	case "name", "by-name":
		return OrderByName, nil
	default:
		return OrderPositional, fmt.Errorf("unknown method order: %s (must be positional or name)", s)
	}
}

// Rule identifies the check a comparison failed
type Rule string

const (
	RuleNil             Rule = "NIL_TYPE"
	RuleNotInterface    Rule = "NOT_INTERFACE"
	RuleSimpleName      Rule = "SIMPLE_NAME_DIFFERS"
	RuleAnnotations     Rule = "ANNOTATIONS_DIFFER"
	RuleMethodCount     Rule = "METHOD_COUNT_DIFFERS"
	RuleMethodName      Rule = "METHOD_NAME_DIFFERS"
	RuleReturnType      Rule = "RETURN_TYPE_DIFFERS"
	RuleParamCount      Rule = "PARAM_COUNT_DIFFERS"
	RuleParamType       Rule = "PARAM_TYPE_DIFFERS"
	RuleParamAnnotation Rule = "PARAM_ANNOTATIONS_DIFFER"
	RuleNoInterfaces    Rule = "NO_DECLARED_INTERFACES"
)

// Mismatch explains why a candidate does not match a capability
type Mismatch struct {
	Rule       Rule
	Location   string
	Candidate  string
	Capability string
}

func (m *Mismatch) Error() string {
	return fmt.Sprintf("%s at %s: candidate %q, capability %q", m.Rule, m.Location, m.Candidate, m.Capability)
}

// Option configures a Matcher
type Option func(*Matcher)

// WithMethodOrder sets the method pairing rule
func WithMethodOrder(order MethodOrder) Option {
	return func(m *Matcher) { m.order = order }
}

// Matcher decides whether a type loaded in one context structurally implements
// a capability interface defined in another. Types are compared by shape:
// simple name, annotations and methods. The namespace is ignored so that
// plugins built against a relocated copy of a capability still match.
type Matcher struct {
	order MethodOrder
}

// NewMatcher creates a matcher. The default method order is positional.
func NewMatcher(opts ...Option) *Matcher {
	m := &Matcher{order: OrderPositional}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// MethodOrder returns the configured method pairing rule
func (m *Matcher) MethodOrder() MethodOrder {
	return m.order
}

// Match reports whether candidate structurally equals capability
func (m *Matcher) Match(candidate, capability *typedef.Type) bool {
	return m.Explain(candidate, capability) == nil
}

// Explain runs the comparison and returns the first failed check, or nil when
// the types match. Checks run in a fixed order: kind, simple name,
// annotations, method count, then each method pair.
func (m *Matcher) Explain(candidate, capability *typedef.Type) *Mismatch {
	if candidate == nil || capability == nil {
		return &Mismatch{Rule: RuleNil, Location: "type", Candidate: describe(candidate), Capability: describe(capability)}
	}

	if !candidate.IsInterface() || !capability.IsInterface() {
		return &Mismatch{
			Rule:       RuleNotInterface,
			Location:   "kind",
			Candidate:  string(candidate.Kind()),
			Capability: string(capability.Kind()),
		}
	}

	if candidate.SimpleName() != capability.SimpleName() {
		return &Mismatch{
			Rule:       RuleSimpleName,
			Location:   "name",
			Candidate:  candidate.SimpleName(),
			Capability: capability.SimpleName(),
		}
	}

	if !AnnotationsEqual(candidate.Annotations(), capability.Annotations()) {
		return &Mismatch{
			Rule:       RuleAnnotations,
			Location:   "annotations",
			Candidate:  fmt.Sprint(candidate.Annotations()),
			Capability: fmt.Sprint(capability.Annotations()),
		}
	}

	cm, pm := candidate.Methods(), capability.Methods()
	if len(cm) != len(pm) {
		return &Mismatch{
			Rule:       RuleMethodCount,
			Location:   "methods",
			Candidate:  fmt.Sprint(len(cm)),
			Capability: fmt.Sprint(len(pm)),
		}
	}

	if m.order == OrderByName {
		sortMethods(cm)
		sortMethods(pm)
	}

	for i := range cm {
		if mm := compareMethod(i, cm[i], pm[i]); mm != nil {
			return mm
		}
	}

	return nil
}

func compareMethod(i int, a, b typedef.Method) *Mismatch {
	loc := fmt.Sprintf("methods[%d]", i)

	if a.Name != b.Name {
		return &Mismatch{Rule: RuleMethodName, Location: loc, Candidate: a.Name, Capability: b.Name}
	}
	loc = fmt.Sprintf("methods[%d] %s", i, a.Name)

	if a.Returns != b.Returns {
		return &Mismatch{Rule: RuleReturnType, Location: loc, Candidate: a.Returns, Capability: b.Returns}
	}

	if len(a.Params) != len(b.Params) {
		return &Mismatch{
			Rule:       RuleParamCount,
			Location:   loc,
			Candidate:  fmt.Sprint(len(a.Params)),
			Capability: fmt.Sprint(len(b.Params)),
		}
	}

	for j := range a.Params {
		ploc := fmt.Sprintf("%s params[%d]", loc, j)
		if a.Params[j].Type != b.Params[j].Type {
			return &Mismatch{Rule: RuleParamType, Location: ploc, Candidate: a.Params[j].Type, Capability: b.Params[j].Type}
		}
		if !AnnotationsEqual(a.Params[j].Annotations, b.Params[j].Annotations) {
			return &Mismatch{
				Rule:       RuleParamAnnotation,
				Location:   ploc,
				Candidate:  fmt.Sprint(a.Params[j].Annotations),
				Capability: fmt.Sprint(b.Params[j].Annotations),
			}
		}
	}

	return nil
}

// AnnotationsEqual compares two annotation lists as unordered multisets. Two
// elements are considered equal if either side's Equal accepts the other.
func AnnotationsEqual(a, b []typedef.Annotation) bool {
	if len(a) != len(b) {
		return false
	}

	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for j, y := range b {
			if used[j] {
				continue
			}
			if x.Equal(y) || y.Equal(x) {
				used[j] = true
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func sortMethods(methods []typedef.Method) {
	sort.SliceStable(methods, func(i, j int) bool {
		if methods[i].Name != methods[j].Name {
			return methods[i].Name < methods[j].Name
		}
		return methods[i].Signature() < methods[j].Signature()
	})
}

func describe(t *typedef.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.Name()
}
