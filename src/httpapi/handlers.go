package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Protocol-Lattice/backdrop/src/store"
	"github.com/Protocol-Lattice/backdrop/src/studio"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

func (s *Server) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ready":     s.studio.Ready(r.Context()),
		"in_flight": s.studio.InFlight(),
	})
}

type selectKeyRequest struct {
	Key string `json:"key"`
}

func (s *Server) handleSelectKey(w http.ResponseWriter, r *http.Request) {
	var req selectKeyRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.studio.SelectKey(r.Context(), req.Key); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListTabs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tabs": s.studio.Tabs()})
}

type openTabRequest struct {
	Title string `json:"title"`
	Mode  string `json:"mode"`
}

func (s *Server) handleOpenTab(w http.ResponseWriter, r *http.Request) {
	var req openTabRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ws, err := s.studio.OpenTab(r.Context(), req.Title, studio.Mode(req.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, ws.Tab())
}

func (s *Server) workspace(w http.ResponseWriter, r *http.Request) (*studio.Workspace, bool) {
	ws, err := s.studio.Workspace(chi.URLParam(r, "tabID"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return ws, true
}

func (s *Server) handleTabState(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newTabStateView(ws))
}

func (s *Server) handleCloseTab(w http.ResponseWriter, r *http.Request) {
	if err := s.studio.CloseTab(r.Context(), chi.URLParam(r, "tabID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type generateRequest struct {
	BatchSize    int      `json:"batch_size"`
	Prompt       string   `json:"prompt"`
	Subjects     []string `json:"subjects"`
	Assets       []string `json:"assets"`
	Position     string   `json:"position"`
	Gradient     bool     `json:"gradient"`
	Blur         bool     `json:"blur"`
	TargetHeight int      `json:"target_height"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req generateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	subjects, err := decodeImages("subjects", req.Subjects)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	assets, err := decodeImages("assets", req.Assets)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if req.BatchSize == 0 {
		req.BatchSize = 1
	}
	outcome, err := ws.Generate(r.Context(), studio.GenerateInput{
		BatchSize:    req.BatchSize,
		Prompt:       req.Prompt,
		Subjects:     subjects,
		Assets:       assets,
		Position:     studio.Position(req.Position),
		Attributes:   studio.Attributes{Gradient: req.Gradient, Blur: req.Blur},
		TargetHeight: req.TargetHeight,
	})
	writeOutcome(w, outcome, err)
}

type refineRequest struct {
	Instruction string   `json:"instruction"`
	References  []string `json:"references"`
}

func (s *Server) handleRefine(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req refineRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	refs, err := decodeImages("references", req.References)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	outcome, err := ws.Refine(r.Context(), studio.RefineInput{Instruction: req.Instruction, References: refs})
	writeOutcome(w, outcome, err)
}

type reframeRequest struct {
	TargetHeight int    `json:"target_height"`
	Layout       string `json:"layout"`
}

func (s *Server) handleReframe(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req reframeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	outcome, err := ws.Reframe(r.Context(), studio.ReframeInput{TargetHeight: req.TargetHeight, Layout: req.Layout})
	writeOutcome(w, outcome, err)
}

// writeOutcome reports Rejected and AllFailed outcomes with the status of their error kind.
func writeOutcome(w http.ResponseWriter, outcome studio.BatchOutcome, err error) {
	view := newOutcomeView(outcome)
	if err != nil {
		body := errorBody(err)
		body["outcome"] = view
		writeJSON(w, statusFor(err), body)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleDisplayedImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	item, ok := ws.Displayed()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": studio.ErrNoImage.Error(), "kind": studio.KindNotFound})
		return
	}
	w.Header().Set("Content-Type", item.Image.MIME)
	w.Header().Set("Content-Length", strconv.Itoa(len(item.Image.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(item.Image.Data)
}

type importRequest struct {
	Name string `json:"name"`
	Data string `json:"data"`
}

func (s *Server) handleImportImage(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req importRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	imgs, err := decodeImages("data", []string{req.Data})
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	item, err := ws.Import(r.Context(), req.Name, imgs[0])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newHistoryView(item, false))
}

func (s *Server) handleTabHistory(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": historyViews(ws.History(), wantImages(r))})
}

func (s *Server) handleGlobalHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"items": historyViews(s.studio.GlobalHistory(), wantImages(r))})
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	q := store.Query{
		TabID: r.URL.Query().Get("tab"),
		Kind:  r.URL.Query().Get("kind"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			badRequest(w, "limit must be a non-negative integer")
			return
		}
		q.Limit = limit
	}
	records, err := s.studio.ArchivedHistory(r.Context(), q)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": archiveViews(records)})
}

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	depth := 8
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			badRequest(w, "depth must be a positive integer")
			return
		}
		depth = parsed
	}
	ids, err := s.studio.Lineage(r.Context(), chi.URLParam(r, "itemID"), depth)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ancestors": ids})
}

type referenceUpload struct {
	Name        string `json:"name"`
	Data        string `json:"data"`
	Description string `json:"description"`
}

type addReferencesRequest struct {
	References []referenceUpload `json:"references"`
}

func (s *Server) handleAddReferences(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req addReferencesRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	sources := make([]studio.ReferenceSource, 0, len(req.References))
	for i, upload := range req.References {
		imgs, err := decodeImages("references", []string{upload.Data})
		if err != nil {
			badRequest(w, "references["+strconv.Itoa(i)+"]: "+err.Error())
			return
		}
		src := studio.BytesSource(upload.Name, imgs[0].MIME, imgs[0].Data)
		src.Description = upload.Description
		sources = append(sources, src)
	}
	added, err := ws.AddReferences(r.Context(), sources)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"references": referenceViews(added, false)})
}

type updateReferenceRequest struct {
	Description string `json:"description"`
}

func (s *Server) handleUpdateReference(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	var req updateReferenceRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	ref, err := ws.UpdateReference(chi.URLParam(r, "refID"), req.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReferenceView(ref, false))
}

func (s *Server) handleRemoveReference(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	if err := ws.RemoveReference(chi.URLParam(r, "refID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDescribeReference(w http.ResponseWriter, r *http.Request) {
	ws, ok := s.workspace(w, r)
	if !ok {
		return
	}
	ref, err := ws.DescribeReference(r.Context(), chi.URLParam(r, "refID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newReferenceView(ref, false))
}

func wantImages(r *http.Request) bool {
	v, _ := strconv.ParseBool(r.URL.Query().Get("images"))
	return v
}
