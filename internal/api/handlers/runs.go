package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ETAnderson/grader/internal/service"
)

const maxBodyBytes = 1 << 20

type RunsHandler struct {
	Service *service.Service
}

type createRunRequest struct {
	Email         string `json:"email"`
	RepositoryURL string `json:"repository_url"`
	// GitHubURL is the older field name, still accepted.
	GitHubURL string `json:"github_url"`
	Enqueue   bool   `json:"enqueue"`
}

// Create handles POST /runs.
func (h RunsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createRunRequest
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil && err != io.EOF {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "invalid_json",
			"message": err.Error(),
		})
		return
	}
	repo := strings.TrimSpace(req.RepositoryURL)
	if repo == "" {
		repo = strings.TrimSpace(req.GitHubURL)
	}

	run, err := h.Service.Submit(r.Context(), req.Email, repo)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := map[string]any{
		"id":     run.ID,
		"status": run.Status,
	}
	if req.Enqueue {
		if err := h.Service.Enqueue(r.Context(), run.ID); err != nil {
			writeError(w, err)
			return
		}
		resp["queued"] = true
	}
	writeJSON(w, http.StatusCreated, resp)
}

// List handles GET /runs?limit=N.
func (h RunsHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":   "invalid_limit",
				"message": "limit must be an integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.Service.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": runs})
}

// Get handles GET /runs/{runID}.
func (h RunsHandler) Get(w http.ResponseWriter, r *http.Request) {
	run, err := h.Service.Status(r.Context(), chi.URLParam(r, "runID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// Report serves a run's analysis or scoring markdown.
func (h RunsHandler) Report(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, err := h.Service.Status(r.Context(), chi.URLParam(r, "runID"))
		if err != nil {
			writeError(w, err)
			return
		}
		md := run.AnalysisMarkdown
		if kind == "scoring" {
			md = run.ScoringMarkdown
		}
		if md == "" {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error":   "not_ready",
				"message": kind + " report not available yet",
			})
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, md)
	}
}

// Enqueue handles POST /runs/{runID}/enqueue.
func (h RunsHandler) Enqueue(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := h.Service.Enqueue(r.Context(), runID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{
		"queued": true,
		"id":     runID,
	})
}
