package handler

import (
	"net/http"

	"github.com/damiencorpataux/relrest/internal/catalog"
)

type resourceInfo struct {
	Table     string            `json:"table"`
	Fields    []string          `json:"fields"`
	Relations map[string]string `json:"relations"`
}

// ResourceIndex lists the declared resources with their scalar fields
// and relations.
func (h *Handler) ResourceIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	index := map[string]resourceInfo{}
	for _, resource := range h.Service.Catalog.Resources() {
		entity := h.Service.Catalog.Entity(resource)
		index[resource] = resourceInfo{
			Table:     entity.Table,
			Fields:    entity.Scalars(),
			Relations: relationIndex(entity),
		}
	}
	writeJSON(w, http.StatusOK, index)
}

func relationIndex(entity *catalog.Entity) map[string]string {
	relations := map[string]string{}
	for _, name := range entity.Relations() {
		rel := entity.Attribute(name).Relation
		relations[name] = string(rel.Kind) + " " + rel.Resource
	}
	return relations
}
