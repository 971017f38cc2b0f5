package plugins

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/capload/pkg/archive"
	"github.com/platinummonkey/capload/pkg/capability"
	"github.com/platinummonkey/capload/pkg/loader"
	"github.com/platinummonkey/capload/pkg/observability"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// Outcome is the decision taken for one archive entry during a scan
type Outcome string

const (
	OutcomeRejected     Outcome = "rejected_entry"
	OutcomeBadName      Outcome = "bad_name"
	OutcomeDuplicate    Outcome = "duplicate"
	OutcomeLoadError    Outcome = "load_error"
	OutcomeNotPluggable Outcome = "not_pluggable"
	OutcomePluggable    Outcome = "pluggable"
)

// Decision records what a scan did with one archive entry
type Decision struct {
	Entry    string
	TypeName string
	Outcome  Outcome
	Type     *typedef.Type
	Err      error
}

// Unit is the state of one plugin archive: the loading context it is bound
// to, the pluggable types found in it and the instances created from them.
//
// A unit moves from unbound to loaded (LoadTypes) to plugged (Instantiate).
// Units are not safe for concurrent use; the registry gives each worker its
// own unit.
type Unit struct {
	path    string
	log     *logrus.Entry
	metrics *observability.Metrics

	ctx       *loader.Context
	types     []*typedef.Type
	instances []Instance
	decisions []Decision
}

// NewUnit creates an unbound unit for the archive at path
func NewUnit(path string, log *logrus.Logger) *Unit {
	if log == nil {
		log = logrus.New()
	}
	return &Unit{
		path: path,
		log:  log.WithField("unit", path),
	}
}

// Path returns the archive path
func (u *Unit) Path() string { return u.path }

// Context returns the bound loading context, or nil
func (u *Unit) Context() *loader.Context { return u.ctx }

// Bind associates the unit with a loading context, dropping any types and
// instances found through a previous one
func (u *Unit) Bind(ctx *loader.Context) *Unit {
	u.ctx = ctx
	u.types = nil
	u.instances = nil
	u.decisions = nil
	return u
}

// IsBound reports whether the unit has a loading context
func (u *Unit) IsBound() bool { return u.ctx != nil }

// IsLoaded reports whether LoadTypes has run since the last Bind
func (u *Unit) IsLoaded() bool { return u.types != nil }

// IsPlugged reports whether Instantiate has run since the last LoadTypes
func (u *Unit) IsPlugged() bool { return u.instances != nil }

// LoadTypes scans the archive in entry order and keeps the pluggable types.
// Entries that cannot be named, loaded or matched are logged and skipped.
// A missing filter or an unreadable archive leaves the unit loaded with no
// types and returns the error; an unbound unit stays unloaded.
func (u *Unit) LoadTypes(filter Filter) error {
	u.types = nil
	u.instances = nil
	u.decisions = nil

	if u.ctx == nil {
		return fmt.Errorf("%w: %s", ErrUnbound, u.path)
	}

	u.types = []*typedef.Type{}
	if filter == nil {
		return ErrNoFilter
	}

	r, err := archive.Open(u.path)
	if err != nil {
		u.log.WithError(err).Warn("Failed to open plugin archive")
		return fmt.Errorf("failed to open plugin archive %s: %w", u.path, err)
	}
	defer r.Close()

	seen := make(map[string]bool)
	err = r.Walk(func(e archive.Entry) error {
		d := u.scanEntry(filter, e.Name, seen)
		u.decisions = append(u.decisions, d)

		if d.Outcome != OutcomePluggable {
			u.metrics.EntrySkipped(string(d.Outcome))
			if d.Outcome != OutcomeRejected {
				u.log.WithFields(logrus.Fields{
					"entry":   d.Entry,
					"type":    d.TypeName,
					"outcome": d.Outcome,
				}).WithError(d.Err).Debug("Skipped archive entry")
			}
			return nil
		}

		seen[d.TypeName] = true
		u.types = append(u.types, d.Type)
		u.metrics.TypeDiscovered()
		u.log.WithField("type", d.TypeName).Debug("Discovered pluggable type")
		return nil
	})
	if err != nil {
		u.log.WithError(err).Warn("Archive scan ended early")
	}

	return nil
}

func (u *Unit) scanEntry(filter Filter, entry string, seen map[string]bool) Decision {
	d := Decision{Entry: entry, Outcome: OutcomeRejected}
	if !filter.AcceptEntry(entry) {
		return d
	}

	name, ok := filter.TypeNameFor(entry)
	if !ok {
		d.Outcome = OutcomeBadName
		return d
	}
	d.TypeName = name

	if seen[name] {
		d.Outcome = OutcomeDuplicate
		return d
	}

	t, err := u.ctx.Load(name)
	if err != nil {
		d.Outcome = OutcomeLoadError
		d.Err = err
		return d
	}
	d.Type = t

	if !filter.IsPluggable(t) {
		d.Outcome = OutcomeNotPluggable
		return d
	}

	d.Outcome = OutcomePluggable
	return d
}

// Decisions returns what the last scan did with every entry, in archive order
func (u *Unit) Decisions() []Decision {
	return append([]Decision(nil), u.decisions...)
}

// Instantiate creates one instance per pluggable type. Types that cannot be
// constructed are logged and skipped. A unit that is not loaded is left
// unchanged. A nil instantiator creates dynamic objects.
func (u *Unit) Instantiate(inst *Instantiator) *Unit {
	if u.types == nil {
		return u
	}
	if inst == nil {
		inst = NewInstantiator()
	}

	u.instances = make([]Instance, 0, len(u.types))
	for _, t := range u.types {
		v, err := inst.New(t)
		if err != nil {
			u.metrics.InstantiateFailed(failureReason(err))
			u.log.WithField("type", t.Name()).WithError(err).Debug("Failed to instantiate type")
			continue
		}
		u.instances = append(u.instances, Instance{Type: t, Value: v})
		u.metrics.InstanceCreated()
	}
	return u
}

// Types returns the pluggable types in archive order
func (u *Unit) Types() []*typedef.Type {
	return append([]*typedef.Type(nil), u.types...)
}

// Instances returns the created instances with their types
func (u *Unit) Instances() []Instance {
	return append([]Instance(nil), u.instances...)
}

// Pluggables returns the created values in archive order. It is empty until
// the unit is plugged.
func (u *Unit) Pluggables() []any {
	out := make([]any, 0, len(u.instances))
	for _, inst := range u.instances {
		out = append(out, inst.Value)
	}
	return out
}

// PluggablesMatching returns the values whose type declares an interface
// structurally matching c
func (u *Unit) PluggablesMatching(c *typedef.Type, m *capability.Matcher) []any {
	if m == nil {
		m = capability.NewMatcher()
	}
	out := make([]any, 0)
	for _, inst := range u.instances {
		if len(m.Satisfies(inst.Type, []*typedef.Type{c})) == 1 {
			out = append(out, inst.Value)
		}
	}
	return out
}

// Unload always fails. Types stay owned by the loading context until the
// owning registry is closed.
func (u *Unit) Unload() error {
	return ErrUnloadUnsupported
}

// Source is anything that exposes pluggable values
type Source interface {
	Pluggables() []any
}

// PluggablesOf returns the pluggables of s that are assignable to T
func PluggablesOf[T any](s Source) []T {
	out := make([]T, 0)
	for _, p := range s.Pluggables() {
		if v, ok := p.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
