package analysis

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ahrav/logsift/internal/api/errs"
	"github.com/ahrav/logsift/internal/api/mid"
	"github.com/ahrav/logsift/internal/api/web"
	domain "github.com/ahrav/logsift/internal/domain/analysis"
	"github.com/ahrav/logsift/internal/domain/reporting"
	"github.com/ahrav/logsift/pkg/common/logger"
)

// Config contains the dependencies needed by the analysis handlers.
type Config struct {
	Log     *logger.Logger
	Service *Service
}

// Routes binds the analysis endpoints under r.
func Routes(r chi.Router, cfg Config) {
	h := handlers{log: cfg.Log, svc: cfg.Service}

	r.Route("/projects/{projectID}", func(r chi.Router) {
		r.Use(mid.Membership)

		r.Post("/results/{resultID}/search", h.search)
		r.Get("/results/{resultID}/suggest", h.suggest)
		r.Post("/suggest/choice", h.suggestChoice)
		r.Post("/runs/{runID}/analyze", h.analyze)
		r.Post("/index", h.index)
		r.Delete("/index", h.deleteIndex)
	})

	r.Get("/runs/{runID}/analysis-status", h.runStatus)
	r.Get("/analysis-status", h.statusSnapshot)
}

type handlers struct {
	log *logger.Logger
	svc *Service
}

func (h handlers) membership(r *http.Request) (reporting.Membership, error) {
	if _, err := web.ParamInt64(r, "projectID"); err != nil {
		return reporting.Membership{}, err
	}
	m, ok := mid.GetMembership(r.Context())
	if !ok {
		return reporting.Membership{}, errs.Newf(errs.Internal, "membership missing from request context")
	}
	return m, nil
}

func (h handlers) search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	resultID, err := web.ParamInt64(r, "resultID")
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	var req domain.SearchRequest
	if err := web.Decode(r, &req, false); err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	groups, err := h.svc.Search(ctx, resultID, req, m)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	if groups == nil {
		groups = []domain.SearchResultGroup{}
	}
	web.Respond(ctx, h.log, w, http.StatusOK, groups)
}

func (h handlers) suggest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	resultID, err := web.ParamInt64(r, "resultID")
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	infos, err := h.svc.Suggest(ctx, resultID, m)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	if infos == nil {
		infos = []domain.SuggestInfo{}
	}
	web.Respond(ctx, h.log, w, http.StatusOK, infos)
}

func (h handlers) suggestChoice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	var choices []domain.SuggestInfo
	if err := web.Decode(r, &choices, true); err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	if err := h.svc.RecordChoice(ctx, m, choices); err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	web.Respond(ctx, h.log, w, http.StatusNoContent, nil)
}

func (h handlers) analyze(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	runID, err := web.ParamInt64(r, "runID")
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	var req AnalyzeRequest
	if err := web.Decode(r, &req, true); err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	accepted, err := h.svc.AnalyzeRun(ctx, runID, m, req)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	web.Respond(ctx, h.log, w, http.StatusAccepted, accepted)
}

type indexResponse struct {
	RequestID string `json:"requestId"`
}

func (h handlers) index(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	id, err := h.svc.IndexProject(ctx, m)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	web.Respond(ctx, h.log, w, http.StatusAccepted, indexResponse{RequestID: id.String()})
}

func (h handlers) deleteIndex(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	m, err := h.membership(r)
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	if err := h.svc.DeleteIndex(ctx, m); err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}
	web.Respond(ctx, h.log, w, http.StatusNoContent, nil)
}

type runStatusResponse struct {
	RunID int64    `json:"runId"`
	Kinds []string `json:"inProgress"`
}

func (h handlers) runStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	runID, err := web.ParamInt64(r, "runID")
	if err != nil {
		web.RespondError(ctx, h.log, w, err)
		return
	}

	kinds := h.svc.RunStatus(runID)
	resp := runStatusResponse{RunID: runID, Kinds: make([]string, 0, len(kinds))}
	for _, k := range kinds {
		resp.Kinds = append(resp.Kinds, k.String())
	}
	web.Respond(ctx, h.log, w, http.StatusOK, resp)
}

func (h handlers) statusSnapshot(w http.ResponseWriter, r *http.Request) {
	snapshot := h.svc.StatusSnapshot()
	resp := make(map[string][]int64, len(snapshot))
	for k, ids := range snapshot {
		resp[k.String()] = ids
	}
	web.Respond(r.Context(), h.log, w, http.StatusOK, resp)
}
