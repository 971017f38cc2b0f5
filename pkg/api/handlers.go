package api

import (
	"fmt"
	"net/http"

	"github.com/platinummonkey/capload/pkg/contextkeys"
	"github.com/platinummonkey/capload/pkg/httputil"
	"github.com/platinummonkey/capload/pkg/plugins"
	"github.com/platinummonkey/capload/pkg/typedef"
)

func (s *Server) status() StatusResponse {
	resp := StatusResponse{
		Loaded:     s.registry.IsLoaded(),
		Generation: s.registry.Generation(),
		Units:      len(s.registry.Units()),
		Pluggables: len(s.registry.Pluggables()),
	}
	if at := s.registry.LoadedAt(); !at.IsZero() {
		resp.LoadedAt = &at
	}
	return resp
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

// listUnits returns every unit. Entry decisions are included with ?decisions=true.
func (s *Server) listUnits(w http.ResponseWriter, r *http.Request) {
	withDecisions, err := httputil.ParseQueryBool(r, "decisions", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	units := s.registry.Units()
	resp := make([]UnitResponse, 0, len(units))
	for i, u := range units {
		resp = append(resp, NewUnitResponse(i, u, s.filter, withDecisions))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) getUnit(w http.ResponseWriter, r *http.Request) {
	index, ok := httputil.ParsePathIntOrError(w, r, "index")
	if !ok {
		return
	}

	units := s.registry.Units()
	if index >= len(units) {
		httputil.WriteNotFound(w, fmt.Sprintf("no unit at index %d", index))
		return
	}
	httputil.WriteJSON(w, http.StatusOK, NewUnitResponse(index, units[index], s.filter, true))
}

func (s *Server) listCapabilities(w http.ResponseWriter, r *http.Request) {
	caps := s.filter.Capabilities()
	resp := make([]CapabilityResponse, 0, len(caps))
	for _, c := range caps {
		resp = append(resp, NewCapabilityResponse(c))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// listPluggables returns every created instance, or with ?capability=<name>
// only those whose type structurally matches that capability
func (s *Server) listPluggables(w http.ResponseWriter, r *http.Request) {
	var capability *typedef.Type
	if name := httputil.ParseQueryString(r, "capability", ""); name != "" {
		capability = s.findCapability(name)
		if capability == nil {
			httputil.WriteNotFound(w, fmt.Sprintf("unknown capability: %s", name))
			return
		}
	}

	resp := make([]PluggableResponse, 0)
	for _, u := range s.registry.Units() {
		for _, inst := range u.Instances() {
			if capability != nil && !s.implements(inst, capability) {
				continue
			}
			resp = append(resp, newPluggableResponse(u, inst))
		}
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (s *Server) reload(w http.ResponseWriter, r *http.Request) {
	if !s.reloading.TryLock() {
		httputil.WriteConflict(w, "a reload is already running")
		return
	}
	defer s.reloading.Unlock()

	if err := s.registry.LoadPlugins(r.Context(), s.filter, s.paths...); err != nil {
		contextkeys.Logger(r.Context(), s.log).WithError(err).Error("Plugin reload failed")
		httputil.WriteInternalError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, s.status())
}

// findCapability resolves name as either a fully-qualified or a simple name
func (s *Server) findCapability(name string) *typedef.Type {
	for _, c := range s.filter.Capabilities() {
		if c.Name() == name || c.SimpleName() == name {
			return c
		}
	}
	return nil
}

func (s *Server) implements(inst plugins.Instance, c *typedef.Type) bool {
	matcher := s.filter.Matcher()
	for _, iface := range inst.Type.Interfaces() {
		if matcher.Match(iface, c) {
			return true
		}
	}
	return false
}
