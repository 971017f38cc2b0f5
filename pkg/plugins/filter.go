package plugins

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// DefaultArchiveSuffix is the file suffix of plugin archives
const DefaultArchiveSuffix = ".zip"

// Filter decides which files are plugins, which of their entries describe
// types, and which loaded types are pluggable. Implementations must be pure
// predicates and must not panic on malformed input.
type Filter interface {
	AcceptPlugin(path string) bool
	AcceptEntry(entryName string) bool
	TypeNameFor(entryName string) (string, bool)
	IsPluggable(t *typedef.Type) bool
}

// TypeSuffixer is implemented by filters that resolve entries with a suffix
// other than loader.DefaultTypeSuffix. The registry configures its loading
// context with the same suffix.
type TypeSuffixer interface {
	TypeSuffix() string
}

// Polarity decides how the name list of a StandardFilter is applied
type Polarity int

const (
	// Blacklist excludes listed archive names and accepts all others
	Blacklist Polarity = iota
	// Whitelist accepts only listed archive names
	Whitelist
)

func (p Polarity) String() string {
	if p == Whitelist {
		return "whitelist"
	}
	return "blacklist"
}

// StandardFilter accepts archives by suffix and name list, entries by type
// suffix, and types that implement the requested capabilities. Suffixes are
// compared case-insensitively.
//
// The mutators may be called concurrently with the predicates, but changing
// a filter during a load gives each unit whatever state it observes.
type StandardFilter struct {
	mu            sync.RWMutex
	archiveSuffix string
	typeSuffix    string
	capabilities  []*typedef.Type
	names         []string
	polarity      Polarity
	policy        capability.Policy
	matcher       *capability.Matcher
}

// NewStandardFilter creates a filter for the given capabilities with
// blacklist polarity, the ANY policy and positional method matching
func NewStandardFilter(capabilities ...*typedef.Type) *StandardFilter {
	f := &StandardFilter{
		archiveSuffix: DefaultArchiveSuffix,
		typeSuffix:    loader.DefaultTypeSuffix,
		polarity:      Blacklist,
		policy:        capability.PolicyAny,
		matcher:       capability.NewMatcher(),
	}
	return f.AddCapabilities(capabilities...)
}

// AddCapabilities appends capability descriptors. nil entries are ignored.
func (f *StandardFilter) AddCapabilities(capabilities ...*typedef.Type) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range capabilities {
		if c != nil {
			f.capabilities = append(f.capabilities, c)
		}
	}
	return f
}

// RemoveCapabilities removes every occurrence of the given handles
func (f *StandardFilter) RemoveCapabilities(capabilities ...*typedef.Type) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.capabilities = removeAll(f.capabilities, capabilities)
	return f
}

// AddNames appends archive base names to the name list
func (f *StandardFilter) AddNames(names ...string) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = append(f.names, names...)
	return f
}

// RemoveNames removes every occurrence of the given names from the name list
func (f *StandardFilter) RemoveNames(names ...string) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.names = removeAll(f.names, names)
	return f
}

// SetPolarity switches between blacklist and whitelist
func (f *StandardFilter) SetPolarity(p Polarity) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.polarity = p
	return f
}

// SetPolicy sets how many capabilities a type has to implement
func (f *StandardFilter) SetPolicy(p capability.Policy) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.policy = p
	return f
}

// SetMatcher replaces the structural matcher
func (f *StandardFilter) SetMatcher(m *capability.Matcher) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m != nil {
		f.matcher = m
	}
	return f
}

// SetArchiveSuffix changes the plugin file suffix
func (f *StandardFilter) SetArchiveSuffix(suffix string) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if suffix != "" {
		f.archiveSuffix = suffix
	}
	return f
}

// SetTypeSuffix changes the type descriptor entry suffix
func (f *StandardFilter) SetTypeSuffix(suffix string) *StandardFilter {
	f.mu.Lock()
	defer f.mu.Unlock()
	if suffix != "" {
		f.typeSuffix = suffix
	}
	return f
}

// Capabilities returns the requested capabilities
func (f *StandardFilter) Capabilities() []*typedef.Type {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]*typedef.Type(nil), f.capabilities...)
}

// Names returns the archive name list
func (f *StandardFilter) Names() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return append([]string(nil), f.names...)
}

// Polarity returns the name list polarity
func (f *StandardFilter) Polarity() Polarity {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.polarity
}

// Policy returns the capability policy
func (f *StandardFilter) Policy() capability.Policy {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.policy
}

// Matcher returns the structural matcher
func (f *StandardFilter) Matcher() *capability.Matcher {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.matcher
}

// TypeSuffix implements TypeSuffixer
func (f *StandardFilter) TypeSuffix() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.typeSuffix
}

// AcceptPlugin accepts existing regular files with the archive suffix whose
// base name passes the name list
func (f *StandardFilter) AcceptPlugin(path string) bool {
	if path == "" {
		return false
	}

	f.mu.RLock()
	base := filepath.Base(path)
	listed := contains(f.names, base)
	polarity := f.polarity
	suffix := f.archiveSuffix
	f.mu.RUnlock()

	if listed == (polarity == Blacklist) {
		return false
	}
	if !hasSuffixFold(base, suffix) {
		return false
	}

	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// AcceptEntry accepts non-directory entries with the type suffix
func (f *StandardFilter) AcceptEntry(entryName string) bool {
	if entryName == "" || strings.HasSuffix(entryName, "/") {
		return false
	}
	return hasSuffixFold(entryName, f.TypeSuffix())
}

// TypeNameFor strips the type suffix and maps path separators to dots. Entries
// that do not yield a valid dotted name, such as META-INF/x.type.yaml, are
// rejected.
func (f *StandardFilter) TypeNameFor(entryName string) (string, bool) {
	suffix := f.TypeSuffix()
	if !hasSuffixFold(entryName, suffix) {
		return "", false
	}

	name := strings.ReplaceAll(entryName[:len(entryName)-len(suffix)], "/", ".")
	if !typedef.ValidName(name) {
		return "", false
	}
	return name, true
}

// SimpleNameFor returns the unqualified type name an entry would define
func (f *StandardFilter) SimpleNameFor(entryName string) (string, bool) {
	name, ok := f.TypeNameFor(entryName)
	if !ok {
		return "", false
	}
	return typedef.SimpleName(name), true
}

// IsPluggable applies the capability policy to the interfaces t declares
func (f *StandardFilter) IsPluggable(t *typedef.Type) bool {
	f.mu.RLock()
	caps := f.capabilities
	policy := f.policy
	matcher := f.matcher
	f.mu.RUnlock()

	return matcher.Accepts(t, caps, policy)
}

// Explain returns, for each requested capability, why t does not implement it.
// Capabilities t does implement are absent from the result.
func (f *StandardFilter) Explain(t *typedef.Type) map[string]*capability.Mismatch {
	f.mu.RLock()
	caps := append([]*typedef.Type(nil), f.capabilities...)
	matcher := f.matcher
	f.mu.RUnlock()

	out := make(map[string]*capability.Mismatch)
	if t == nil {
		return out
	}

	ifaces := t.Interfaces()
	for _, c := range caps {
		var first *capability.Mismatch
		matched := false
		for _, iface := range ifaces {
			mm := matcher.Explain(iface, c)
			if mm == nil {
				matched = true
				break
			}
			if first == nil {
				first = mm
			}
		}
		if matched {
			continue
		}
		if first == nil {
			first = &capability.Mismatch{
				Rule:       capability.RuleNoInterfaces,
				Location:   "interfaces",
				Candidate:  t.Name() + " declares no interfaces",
				Capability: c.Name(),
			}
		}
		out[c.Name()] = first
	}
	return out
}

func hasSuffixFold(s, suffix string) bool {
	return len(s) >= len(suffix) && strings.EqualFold(s[len(s)-len(suffix):], suffix)
}

func contains[T comparable](list []T, v T) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func removeAll[T comparable](list, drop []T) []T {
	if len(drop) == 0 {
		return list
	}
	out := list[:0:0]
	for _, x := range list {
		if !contains(drop, x) {
			out = append(out, x)
		}
	}
	return out
}
