package api

import (
	"net/http"

	"github.com/nacoslite/nacoslite/pkg/types"
)

// namespaceQuota mirrors the fixed per-namespace config quota the
// console displays
const namespaceQuota = 200

// namespaceItem is the console projection of one namespace row
type namespaceItem struct {
	Namespace         string `json:"namespace"`
	NamespaceShowName string `json:"namespaceShowName"`
	NamespaceDesc     string `json:"namespaceDesc"`
	Quota             int    `json:"quota"`
	ConfigCount       int64  `json:"configCount"`
	Type              int    `json:"type"`
}

func toNamespaceItem(ns *types.Namespace) namespaceItem {
	// Type 0 marks the builtin public namespace, 2 a custom one.
	nsType := 2
	if ns.ID == types.DefaultNamespace {
		nsType = 0
	}
	return namespaceItem{
		Namespace:         ns.ID,
		NamespaceShowName: ns.Name,
		NamespaceDesc:     ns.Desc,
		Quota:             namespaceQuota,
		ConfigCount:       ns.ConfigCount,
		Type:              nsType,
	}
}

// handleNamespaces is the namespace console: RestResult list on GET,
// "true"/"false" literals on mutation.
func (s *Server) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listNamespaces(w, r)
	case http.MethodPost:
		s.createNamespace(w, r)
	case http.MethodPut:
		s.updateNamespace(w, r)
	case http.MethodDelete:
		s.deleteNamespace(w, r)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) listNamespaces(w http.ResponseWriter, r *http.Request) {
	namespaces, err := s.tenants.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]namespaceItem, 0, len(namespaces))
	for _, ns := range namespaces {
		items = append(items, toNamespaceItem(ns))
	}
	writeRestResult(w, items)
}

func (s *Server) createNamespace(w http.ResponseWriter, r *http.Request) {
	name := r.FormValue("namespaceName")
	if name == "" {
		badRequest(w, "missing required parameter namespaceName")
		return
	}
	_, err := s.tenants.Create(r.Context(), r.FormValue("customNamespaceId"),
		name, r.FormValue("namespaceDesc"))
	if err != nil {
		writeText(w, http.StatusOK, "false")
		return
	}
	writeText(w, http.StatusOK, "true")
}

func (s *Server) updateNamespace(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("namespace")
	if id == "" {
		id = r.FormValue("namespaceId")
	}
	if id == "" {
		badRequest(w, "missing required parameter namespace")
		return
	}
	err := s.tenants.Update(r.Context(), id, r.FormValue("namespaceShowName"),
		r.FormValue("namespaceDesc"))
	if err != nil {
		writeText(w, http.StatusOK, "false")
		return
	}
	writeText(w, http.StatusOK, "true")
}

func (s *Server) deleteNamespace(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("namespaceId")
	if id == "" {
		badRequest(w, "missing required parameter namespaceId")
		return
	}
	if err := s.tenants.Delete(r.Context(), id); err != nil {
		writeText(w, http.StatusOK, "false")
		return
	}
	writeText(w, http.StatusOK, "true")
}
