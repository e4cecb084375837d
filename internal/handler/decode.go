package handler

import (
	"net/http"

	"github.com/damiencorpataux/relrest/internal/request"
)

// Decode is the grammar introspection endpoint: it answers with the URI
// as received, its decoded request and its canonical re-encoding.
func (h *Handler) Decode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	uri := queryURI(r, "/decode/")
	req, err := request.Decode(uri, h.Service.Defaults)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"received": uri,
		"decoded":  req,
		"encoded":  request.Encode(req),
	})
}
