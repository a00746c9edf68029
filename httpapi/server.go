// Package httpapi exposes the evaluation workflow over JSON/HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"

	"qaflow/audit"
	"qaflow/dispute"
	"qaflow/evaluation"
	"qaflow/identity"
	"qaflow/metrics"
	"qaflow/question"
	"qaflow/settings"
	"qaflow/user"
)

// Server wires the domain services behind HTTP handlers. Handlers stay thin:
// decode, delegate, map errors to status codes.
type Server struct {
	audits    *audit.Service
	evals     *evaluation.Scorer
	disputes  *dispute.Service
	questions *question.Service
	users     *user.Service
	settings  *settings.Repository
	verifier  *identity.Verifier
	metrics   *metrics.Metrics
	pool      *pgxpool.Pool
	log       *slog.Logger
}

type Deps struct {
	Audits    *audit.Service
	Evals     *evaluation.Scorer
	Disputes  *dispute.Service
	Questions *question.Service
	Users     *user.Service
	Settings  *settings.Repository
	Verifier  *identity.Verifier
	Metrics   *metrics.Metrics
	Pool      *pgxpool.Pool
	Log       *slog.Logger
}

func NewServer(deps Deps) *Server {
	return &Server{
		audits:    deps.Audits,
		evals:     deps.Evals,
		disputes:  deps.Disputes,
		questions: deps.Questions,
		users:     deps.Users,
		settings:  deps.Settings,
		verifier:  deps.Verifier,
		metrics:   deps.Metrics,
		pool:      deps.Pool,
		log:       deps.Log,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID, chimw.RealIP, chimw.Recoverer)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(s.requireActor)

		r.Route("/audits", func(r chi.Router) {
			r.Get("/", s.listAudits)
			r.Get("/pending", s.listPendingAudits)
			r.Get("/{id}", s.getAudit)
			r.Get("/{id}/evaluation", s.getEvaluationByAudit)
			r.Post("/{id}/claim", s.claimAudit)
			r.Post("/{id}/prepare", s.prepareEvaluation)
			r.Post("/{id}/heartbeat", s.heartbeatAudit)
			r.Post("/{id}/release", s.releaseAudit)
			r.Post("/{id}/force-unlock", s.forceUnlockAudit)
		})

		r.Route("/evaluations", func(r chi.Router) {
			r.Get("/", s.listEvaluations)
			r.Post("/", s.submitEvaluation)
			r.Get("/{id}", s.getEvaluation)
		})

		r.Route("/disputes", func(r chi.Router) {
			r.Get("/", s.listDisputes)
			r.Post("/", s.fileDispute)
			r.Get("/stats", s.disputeStats)
			r.Get("/{id}", s.getDispute)
			r.Post("/{id}/review", s.reviewDispute)
			r.Post("/{id}/resolve", s.resolveDispute)
		})

		r.Route("/questions", func(r chi.Router) {
			r.Get("/", s.listQuestions)
			r.Get("/active", s.activeQuestions)
			r.Post("/", s.createQuestion)
			r.Put("/{id}", s.updateQuestion)
			r.Delete("/{id}", s.deactivateQuestion)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", s.listUsers)
			r.Get("/me", s.currentUser)
			r.Post("/", s.createUser)
			r.Put("/{id}", s.updateUser)
			r.Delete("/{id}", s.deleteUser)
		})

		r.Get("/settings", s.getSettings)
		r.Put("/settings", s.putSettings)
	})

	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.pool.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errResp{"db unreachable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type errResp struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// writeError maps domain sentinels onto status codes so clients can branch on
// the code instead of parsing messages.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, code, errResp{"internal error"})
		return
	}
	writeJSON(w, code, errResp{err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, audit.ErrNotFound),
		errors.Is(err, evaluation.ErrNotFound),
		errors.Is(err, dispute.ErrNotFound),
		errors.Is(err, dispute.ErrEvalNotFound),
		errors.Is(err, question.ErrNotFound),
		errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, audit.ErrAlreadyLocked),
		errors.Is(err, audit.ErrTerminalStatus),
		errors.Is(err, evaluation.ErrLockLost),
		errors.Is(err, evaluation.ErrDuplicateAudit),
		errors.Is(err, dispute.ErrAlreadyDisputed),
		errors.Is(err, dispute.ErrAlreadyResolved),
		errors.Is(err, user.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, audit.ErrMisconfigured):
		return http.StatusUnprocessableEntity
	case errors.Is(err, evaluation.ErrUnknownQuestion),
		errors.Is(err, evaluation.ErrMissingResponse),
		errors.Is(err, evaluation.ErrInvalidResponse),
		errors.Is(err, evaluation.ErrDuplicateResponse),
		errors.Is(err, audit.ErrInvalidStatus),
		errors.Is(err, dispute.ErrUnknownQuestion):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
