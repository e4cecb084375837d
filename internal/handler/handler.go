// Package handler exposes the query language over HTTP: the URI after
// the route prefix is the query, the verb selects the operation.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/damiencorpataux/relrest/internal/auth"
	"github.com/damiencorpataux/relrest/internal/logger"
	"github.com/damiencorpataux/relrest/internal/planner"
	"github.com/damiencorpataux/relrest/internal/request"
	"github.com/damiencorpataux/relrest/internal/rescache"
	"github.com/damiencorpataux/relrest/internal/rights"
	"github.com/damiencorpataux/relrest/internal/service"
)

type Handler struct {
	Service *service.Service
	Cache   *rescache.Cache
}

func New(svc *service.Service, cache *rescache.Cache) *Handler {
	return &Handler{Service: svc, Cache: cache}
}

// Resource maps HTTP verbs onto the CRUD operations:
// PUT create, GET/HEAD read, PATCH update, DELETE delete.
func (h *Handler) Resource(w http.ResponseWriter, r *http.Request) {
	uri := queryURI(r, "/resource/")
	roles := auth.RolesFromContext(r.Context())

	switch r.Method {
	case http.MethodPut:
		record, err := readRecord(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		result, err := h.Service.Create(r.Context(), uri, record, roles)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.invalidate(r, uri)
		writeJSON(w, http.StatusCreated, result)

	case http.MethodGet, http.MethodHead:
		h.read(w, r, uri, roles)

	case http.MethodPatch:
		record, err := readRecord(r)
		if err != nil {
			writeError(w, r, err)
			return
		}
		result, err := h.Service.Update(r.Context(), uri, record, roles)
		if err != nil {
			writeError(w, r, err)
			return
		}
		h.invalidate(r, uri)
		writeJSON(w, http.StatusOK, result)

	case http.MethodDelete:
		if err := h.Service.Delete(r.Context(), uri, roles); err != nil {
			writeError(w, r, err)
			return
		}
		h.invalidate(r, uri)
		w.WriteHeader(http.StatusNoContent)

	default:
		w.Header().Set("Allow", "GET, HEAD, PUT, PATCH, DELETE")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

// read serves GET/HEAD through the cache-aside layer when it is wired.
func (h *Handler) read(w http.ResponseWriter, r *http.Request, uri string, roles []string) {
	ctx := r.Context()

	var key string
	if h.Cache.Enabled() {
		if req, err := request.Decode(uri, h.Service.Defaults); err == nil {
			key = h.Cache.Key(ctx, uri, roles, req.InvolvedResources())
			if payload, ok := h.Cache.Get(ctx, key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusOK)
				if r.Method != http.MethodHead {
					_, _ = w.Write(payload)
				}
				return
			}
		}
	}

	result, err := h.Service.Read(ctx, uri, roles)
	if err != nil {
		writeError(w, r, err)
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if key != "" {
		h.Cache.Set(ctx, key, payload)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = w.Write(payload)
	}
}

// invalidate bumps the cache versions of every resource the mutation's
// URI involves.
func (h *Handler) invalidate(r *http.Request, uri string) {
	if !h.Cache.Enabled() {
		return
	}
	if req, err := request.Decode(uri, h.Service.Defaults); err == nil {
		h.Cache.Invalidate(r.Context(), req.InvolvedResources())
	}
}

// queryURI recovers the query string form of the request: the path
// after the prefix, plus the raw query.
func queryURI(r *http.Request, prefix string) string {
	uri := strings.TrimPrefix(r.URL.EscapedPath(), prefix)
	if r.URL.RawQuery != "" {
		uri += "?" + r.URL.RawQuery
	}
	return uri
}

func readRecord(r *http.Request) (map[string]any, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, &request.GrammarError{Detail: "failed to read body: " + err.Error()}
	}
	if len(body) == 0 {
		return map[string]any{}, nil
	}
	var record map[string]any
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, &request.GrammarError{Detail: "invalid JSON body: " + err.Error()}
	}
	return record, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.Error("write_response_failed", map[string]any{"error": err.Error()})
	}
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusOf(err)
	fields := map[string]any{
		"method": r.Method,
		"path":   r.URL.Path,
		"status": status,
		"error":  err.Error(),
	}
	if status >= 500 {
		logger.Error("request_failed", fields)
	} else {
		logger.Warn("request_rejected", fields)
	}
	body := map[string]any{"error": err.Error()}
	if status >= 500 {
		body["error"] = "internal error"
	}
	writeJSON(w, status, body)
}

func statusOf(err error) int {
	var (
		grammar     *request.GrammarError
		unresolved  *planner.UnresolvedReferenceError
		unsupported *planner.UnsupportedOperationError
		forbidden   *rights.ForbiddenError
		missing     *planner.MissingIdentifierError
		notFound    *planner.NotFoundError
		multiple    *planner.MultipleResultsError
	)
	switch {
	case errors.As(err, &grammar),
		errors.As(err, &unresolved),
		errors.As(err, &unsupported),
		errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &multiple):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
