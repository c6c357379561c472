package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Protocol-Lattice/backdrop/src/studio"
)

const maxBodyBytes = 64 << 20

// Server exposes a studio over JSON/HTTP.
type Server struct {
	studio *studio.Studio
}

func NewServer(st *studio.Studio) *Server {
	return &Server{studio: st}
}

// Handler returns the full router with request logging.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	s.RegisterHTTP(r)
	return withRequestLogging(r)
}

// RegisterHTTP registers the API endpoints on a chi router.
func (s *Server) RegisterHTTP(r chi.Router) {
	r.Get("/healthz", s.handleHealth)

	r.Get("/auth/status", s.handleAuthStatus)
	r.Post("/auth/key", s.handleSelectKey)

	r.Get("/tabs", s.handleListTabs)
	r.Post("/tabs", s.handleOpenTab)
	r.Route("/tabs/{tabID}", func(r chi.Router) {
		r.Use(withTabLogger)
		r.Get("/", s.handleTabState)
		r.Delete("/", s.handleCloseTab)
		r.Post("/generate", s.handleGenerate)
		r.Post("/refine", s.handleRefine)
		r.Post("/reframe", s.handleReframe)
		r.Get("/image", s.handleDisplayedImage)
		r.Put("/image", s.handleImportImage)
		r.Get("/history", s.handleTabHistory)
		r.Post("/references", s.handleAddReferences)
		r.Patch("/references/{refID}", s.handleUpdateReference)
		r.Delete("/references/{refID}", s.handleRemoveReference)
		r.Post("/references/{refID}/describe", s.handleDescribeReference)
	})

	r.Get("/history", s.handleGlobalHistory)
	r.Get("/history/archive", s.handleArchive)
	r.Get("/history/{itemID}/lineage", s.handleLineage)
}

func decodeJSON(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	decoder.DisallowUnknownFields()
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	data, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), errorBody(err))
}

func errorBody(err error) map[string]any {
	return map[string]any{"error": err.Error(), "kind": studio.KindOf(err)}
}

func statusFor(err error) int {
	switch studio.KindOf(err) {
	case studio.KindValidation:
		return http.StatusBadRequest
	case studio.KindCapacity:
		return http.StatusTooManyRequests
	case studio.KindCredential:
		return http.StatusUnauthorized
	case studio.KindRequest:
		return http.StatusBadGateway
	case studio.KindNotFound:
		return http.StatusNotFound
	}
	if errors.Is(err, studio.ErrTabNotFound) || errors.Is(err, studio.ErrReferenceNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"error": msg, "kind": studio.KindValidation})
}
