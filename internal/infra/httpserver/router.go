package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	appai "github.com/bryanwahyu/automaton-cpg/internal/application/ai"
	appanalysis "github.com/bryanwahyu/automaton-cpg/internal/application/analysis"
	domai "github.com/bryanwahyu/automaton-cpg/internal/domain/ai"
	domain "github.com/bryanwahyu/automaton-cpg/internal/domain/analysis"
	"github.com/bryanwahyu/automaton-cpg/internal/middleware"
)

// maxArchiveBytes bounds one uploaded source archive.
const maxArchiveBytes = 64 << 20

type Router struct {
	analysisSvc *appanalysis.Service
	aiSvc       *appai.Service
}

func NewRouter(analysisSvc *appanalysis.Service, aiSvc *appai.Service) http.Handler {
	r := &Router{analysisSvc: analysisSvc, aiSvc: aiSvc}
	mux := chi.NewRouter()

	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	mux.Route("/v1/{tenant}", func(rt chi.Router) {
		rt.Post("/code", r.wrap(r.handleUpload))
		rt.Get("/call_graph/{id}", r.wrap(r.handleCallGraph))
		rt.Post("/code/{id}/rerun", r.wrap(r.handleRerun))
		rt.Get("/analyses/latest", r.wrap(r.handleLatest))
		rt.Get("/summary", r.wrap(r.handleSummary))
		rt.Post("/ai/explain", r.wrap(r.handleAIExplain))
	})

	return mux
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

func (r *Router) wrap(h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if err := h(w, req); err != nil {
			if errors.Is(err, domai.ErrQuotaExceeded) {
				http.Error(w, "ai quota exceeded", http.StatusTooManyRequests)
				return
			}
			http.Error(w, err.Error(), statusForKind(domain.KindOf(err)))
		}
	}
}

func statusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidArchive, domain.KindEmptySubmission:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindAlreadyRunning, domain.KindNotReady:
		return http.StatusConflict
	case domain.KindEngineTimeout:
		return http.StatusGatewayTimeout
	case domain.KindEngineFailure, domain.KindCleaningError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// POST /v1/{tenant}/code
// multipart form with a "file" field holding a zip of C/C++ sources.
func (r *Router) handleUpload(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	if err := middleware.ValidateTenantID(tenant); err != nil {
		return domain.NewError(domain.KindInvalidArchive, err.Error())
	}

	req.Body = http.MaxBytesReader(w, req.Body, maxArchiveBytes)
	file, header, err := req.FormFile("file")
	if err != nil {
		return domain.NewError(domain.KindInvalidArchive, "no file provided")
	}
	defer file.Close()

	if err := middleware.ValidateArchiveFilename(header.Filename); err != nil {
		return domain.NewError(domain.KindInvalidArchive, err.Error())
	}

	archive, err := io.ReadAll(file)
	if err != nil {
		return domain.WrapError(domain.KindInvalidArchive, "reading upload", err)
	}

	sub, err := r.analysisSvc.Submit(req.Context(), tenant, archive)
	if err != nil {
		return err
	}
	if sub.Status == domain.StatusRunning {
		middleware.IncrementAnalyses()
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"message": "code uploaded successfully",
		"code_id": sub.ID,
		"status":  sub.Status,
	})
}

// GET /v1/{tenant}/call_graph/{id}
func (r *Router) handleCallGraph(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSubmissionID(id); err != nil {
		return domain.NewError(domain.KindNotFound, err.Error())
	}

	res, err := r.analysisSvc.Fetch(req.Context(), tenant, domain.SubmissionID(id))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	if res.Status == domain.StatusRunning || res.Status == domain.StatusPending {
		w.WriteHeader(http.StatusAccepted)
	}
	return json.NewEncoder(w).Encode(res)
}

// POST /v1/{tenant}/code/{id}/rerun
func (r *Router) handleRerun(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	id := chi.URLParam(req, "id")
	if err := middleware.ValidateSubmissionID(id); err != nil {
		return domain.NewError(domain.KindNotFound, err.Error())
	}

	sub, err := r.analysisSvc.Rerun(req.Context(), tenant, domain.SubmissionID(id))
	if err != nil {
		return err
	}
	middleware.IncrementAnalyses()

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"code_id": sub.ID,
		"status":  sub.Status,
	})
}

// GET /v1/{tenant}/analyses/latest?limit=20
func (r *Router) handleLatest(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	list, err := r.analysisSvc.Latest(req.Context(), tenant, limit)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(list)
}

// GET /v1/{tenant}/summary?days=7
func (r *Router) handleSummary(w http.ResponseWriter, req *http.Request) error {
	tenant := chi.URLParam(req, "tenant")
	days, _ := strconv.Atoi(req.URL.Query().Get("days"))

	summary, err := r.analysisSvc.Summary(req.Context(), tenant, days)
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(summary)
}

// POST /v1/{tenant}/ai/explain
// Body: {"code_id": "<id>"}
// Runs an LLM explanation over the submission's rendered call tree.
func (r *Router) handleAIExplain(w http.ResponseWriter, req *http.Request) error {
	if r.aiSvc == nil {
		return fmt.Errorf("ai explanation is not configured")
	}
	tenant := chi.URLParam(req, "tenant")
	var body struct {
		CodeID string `json:"code_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		return err
	}
	if body.CodeID == "" {
		return fmt.Errorf("code_id is required")
	}

	res, err := r.analysisSvc.Fetch(req.Context(), tenant, domain.SubmissionID(body.CodeID))
	if err != nil {
		return err
	}
	if res.Status != domain.StatusDone || res.Bundle == nil {
		return domain.NewError(domain.KindNotReady,
			fmt.Sprintf("no call tree published for %s (status %s)", body.CodeID, res.Status))
	}

	explanation, err := r.aiSvc.Explain(req.Context(), strings.Join(res.Bundle.TreeLines, "\n"))
	if err != nil {
		return err
	}

	w.Header().Set("Content-Type", "application/json")
	return json.NewEncoder(w).Encode(map[string]any{
		"code_id":     body.CodeID,
		"explanation": explanation,
	})
}
