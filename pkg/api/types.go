package api

import (
	"fmt"
	"time"

	"github.com/platinummonkey/capload/pkg/plugins"
	"github.com/platinummonkey/capload/pkg/typedef"
)

// StatusResponse summarizes the current load cycle
type StatusResponse struct {
	Loaded     bool       `json:"loaded"`
	Generation string     `json:"generation,omitempty"`
	LoadedAt   *time.Time `json:"loaded_at,omitempty"`
	Units      int        `json:"units"`
	Pluggables int        `json:"pluggables"`
}

// UnitResponse describes one plugin archive
type UnitResponse struct {
	Index      int                 `json:"index"`
	Path       string              `json:"path"`
	Bound      bool                `json:"bound"`
	Loaded     bool                `json:"loaded"`
	Plugged    bool                `json:"plugged"`
	Types      []string            `json:"types"`
	Pluggables []PluggableResponse `json:"pluggables"`
	Decisions  []DecisionResponse  `json:"decisions,omitempty"`
}

// DecisionResponse describes what a scan did with one archive entry.
// Mismatches is keyed by capability name and only set for entries that
// loaded but were not pluggable.
type DecisionResponse struct {
	Entry      string            `json:"entry"`
	TypeName   string            `json:"type_name,omitempty"`
	Outcome    string            `json:"outcome"`
	Error      string            `json:"error,omitempty"`
	Mismatches map[string]string `json:"mismatches,omitempty"`
}

// PluggableResponse describes one created instance
type PluggableResponse struct {
	Type  string `json:"type"`
	Unit  string `json:"unit"`
	Value string `json:"value"`
}

// CapabilityResponse describes one capability interface of the filter
type CapabilityResponse struct {
	Name        string   `json:"name"`
	SimpleName  string   `json:"simple_name"`
	Source      string   `json:"source,omitempty"`
	Annotations []string `json:"annotations,omitempty"`
	Methods     []string `json:"methods"`
}

// NewUnitResponse describes u at position index. Decisions are included
// when withDecisions is set and explained against filter.
func NewUnitResponse(index int, u *plugins.Unit, filter *plugins.StandardFilter, withDecisions bool) UnitResponse {
	resp := UnitResponse{
		Index:      index,
		Path:       u.Path(),
		Bound:      u.IsBound(),
		Loaded:     u.IsLoaded(),
		Plugged:    u.IsPlugged(),
		Types:      make([]string, 0),
		Pluggables: make([]PluggableResponse, 0),
	}
	for _, t := range u.Types() {
		resp.Types = append(resp.Types, t.Name())
	}
	for _, inst := range u.Instances() {
		resp.Pluggables = append(resp.Pluggables, newPluggableResponse(u, inst))
	}

	if withDecisions {
		resp.Decisions = make([]DecisionResponse, 0)
		for _, d := range u.Decisions() {
			resp.Decisions = append(resp.Decisions, NewDecisionResponse(d, filter))
		}
	}
	return resp
}

// NewDecisionResponse describes d, explaining not_pluggable outcomes
// against filter when it is not nil
func NewDecisionResponse(d plugins.Decision, filter *plugins.StandardFilter) DecisionResponse {
	resp := DecisionResponse{
		Entry:    d.Entry,
		TypeName: d.TypeName,
		Outcome:  string(d.Outcome),
	}
	if d.Err != nil {
		resp.Error = d.Err.Error()
	}
	if d.Outcome == plugins.OutcomeNotPluggable && filter != nil {
		mismatches := filter.Explain(d.Type)
		if len(mismatches) > 0 {
			resp.Mismatches = make(map[string]string, len(mismatches))
			for name, mm := range mismatches {
				resp.Mismatches[name] = mm.Error()
			}
		}
	}
	return resp
}

func newPluggableResponse(u *plugins.Unit, inst plugins.Instance) PluggableResponse {
	return PluggableResponse{
		Type:  inst.Type.Name(),
		Unit:  u.Path(),
		Value: fmt.Sprint(inst.Value),
	}
}

// NewCapabilityResponse describes c
func NewCapabilityResponse(c *typedef.Type) CapabilityResponse {
	resp := CapabilityResponse{
		Name:       c.Name(),
		SimpleName: c.SimpleName(),
		Source:     c.Source(),
		Methods:    make([]string, 0, c.NumMethod()),
	}
	for _, a := range c.Annotations() {
		resp.Annotations = append(resp.Annotations, a.Name)
	}
	for _, m := range c.Methods() {
		resp.Methods = append(resp.Methods, m.Signature())
	}
	return resp
}
