package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"qaflow/audit"
	"qaflow/dispute"
	"qaflow/evaluation"
	"qaflow/question"
	"qaflow/user"
)

// --- audits ---

func (s *Server) listAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := s.audits.ListAll(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditsOut(audits))
}

func (s *Server) listPendingAudits(w http.ResponseWriter, r *http.Request) {
	audits, err := s.audits.ListPending(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditsOut(audits))
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	a, err := s.audits.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditOut(a))
}

func (s *Server) claimAudit(w http.ResponseWriter, r *http.Request) {
	a, err := s.audits.Claim(r.Context(), chi.URLParam(r, "id"), actor(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditOut(a))
}

type prepareResp struct {
	Audit     auditOut      `json:"audit"`
	Questions []questionOut `json:"questions"`
}

func (s *Server) prepareEvaluation(w http.ResponseWriter, r *http.Request) {
	a, qs, err := s.audits.PrepareEvaluation(r.Context(), chi.URLParam(r, "id"), actor(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, prepareResp{Audit: toAuditOut(a), Questions: toQuestionsOut(qs)})
}

func (s *Server) heartbeatAudit(w http.ResponseWriter, r *http.Request) {
	if err := s.audits.Heartbeat(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type releaseReq struct {
	FinalStatus string `json:"finalStatus"`
}

func (s *Server) releaseAudit(w http.ResponseWriter, r *http.Request) {
	req := releaseReq{FinalStatus: string(audit.StatusPending)}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
			return
		}
	}
	if err := s.audits.Release(r.Context(), chi.URLParam(r, "id"), audit.Status(req.FinalStatus)); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) forceUnlockAudit(w http.ResponseWriter, r *http.Request) {
	if err := s.audits.ForceUnlock(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- evaluations ---

type responseIn struct {
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
	Feedback   string `json:"feedback"`
}

type submitEvaluationReq struct {
	AuditID        string       `json:"auditId"`
	Feedback       string       `json:"feedback"`
	StartTimestamp time.Time    `json:"startTimestamp"`
	Responses      []responseIn `json:"responses"`
}

func (s *Server) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	var req submitEvaluationReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}

	params := evaluation.SubmitParams{
		AuditID:        req.AuditID,
		QAEmail:        actor(r).Email,
		Feedback:       req.Feedback,
		StartTimestamp: req.StartTimestamp,
	}
	for _, resp := range req.Responses {
		params.Responses = append(params.Responses, evaluation.ResponseInput{
			QuestionID: resp.QuestionID,
			Response:   evaluation.Response(resp.Response),
			Feedback:   resp.Feedback,
		})
	}

	eval, err := s.evals.Submit(r.Context(), params)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEvaluationOut(eval))
}

func (s *Server) listEvaluations(w http.ResponseWriter, r *http.Request) {
	evals, err := s.evals.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]evaluationOut, 0, len(evals))
	for _, e := range evals {
		out = append(out, toEvaluationOut(e))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	eval, err := s.evals.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationOut(eval))
}

func (s *Server) getEvaluationByAudit(w http.ResponseWriter, r *http.Request) {
	eval, err := s.evals.GetByAudit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEvaluationOut(eval))
}

// --- disputes ---

type fileDisputeReq struct {
	EvalID      string   `json:"evalId"`
	Reason      string   `json:"reason"`
	QuestionIDs []string `json:"questionIds"`
}

func (s *Server) fileDispute(w http.ResponseWriter, r *http.Request) {
	var req fileDisputeReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	d, err := s.disputes.File(r.Context(), req.EvalID, actor(r).Email, req.Reason, req.QuestionIDs)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDisputeOut(d))
}

func (s *Server) listDisputes(w http.ResponseWriter, r *http.Request) {
	disputes, err := s.disputes.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]disputeOut, 0, len(disputes))
	for _, d := range disputes {
		out = append(out, toDisputeOut(d))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getDispute(w http.ResponseWriter, r *http.Request) {
	d, err := s.disputes.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDisputeOut(d))
}

type reviewResp struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
}

func (s *Server) reviewDispute(w http.ResponseWriter, r *http.Request) {
	result, err := s.disputes.BeginReview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reviewResp{OK: result.OK, Reason: result.Reason})
}

type decisionIn struct {
	QuestionID string `json:"questionId"`
	Resolution string `json:"resolution"`
	Note       string `json:"note"`
}

type resolveDisputeReq struct {
	Decisions       []decisionIn `json:"decisions"`
	ResolutionNotes string       `json:"resolutionNotes"`
	FinalStatus     string       `json:"finalStatus"`
}

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	var req resolveDisputeReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}

	params := dispute.ResolveParams{
		DisputeID:       chi.URLParam(r, "id"),
		ResolutionNotes: req.ResolutionNotes,
		FinalStatus:     dispute.Status(req.FinalStatus),
		ResolvedBy:      actor(r).Email,
	}
	for _, d := range req.Decisions {
		params.Decisions = append(params.Decisions, dispute.Decision{
			QuestionID: d.QuestionID,
			Resolution: dispute.Resolution(d.Resolution),
			Note:       d.Note,
		})
	}

	if err := s.disputes.Resolve(r.Context(), params); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved"})
}

type statsResp struct {
	Total            int `json:"total"`
	PartialOverturns int `json:"partialOverturns"`
	Overturned       int `json:"overturned"`
	Upheld           int `json:"upheld"`
}

func (s *Server) disputeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.disputes.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResp{
		Total:            stats.Total,
		PartialOverturns: stats.PartialOverturns,
		Overturned:       stats.Overturned,
		Upheld:           stats.Upheld,
	})
}

// --- questions ---

func (s *Server) listQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.questions.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionsOut(qs))
}

func (s *Server) activeQuestions(w http.ResponseWriter, r *http.Request) {
	qs, err := s.questions.ActiveSet(r.Context(),
		r.URL.Query().Get("requestType"), r.URL.Query().Get("taskType"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionsOut(qs))
}

type createQuestionReq struct {
	SetID          string `json:"setId"`
	RequestType    string `json:"requestType"`
	TaskType       string `json:"taskType"`
	SequenceID     int    `json:"sequenceId"`
	QuestionText   string `json:"questionText"`
	PointsPossible int    `json:"pointsPossible"`
}

func (s *Server) createQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	q, err := s.questions.Create(r.Context(), question.CreateParams{
		SetID:          req.SetID,
		RequestType:    req.RequestType,
		TaskType:       req.TaskType,
		SequenceID:     req.SequenceID,
		Text:           req.QuestionText,
		PointsPossible: req.PointsPossible,
		CreatedBy:      actor(r).Email,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toQuestionOut(q))
}

type updateQuestionReq struct {
	SequenceID     int    `json:"sequenceId"`
	QuestionText   string `json:"questionText"`
	PointsPossible int    `json:"pointsPossible"`
	Active         bool   `json:"active"`
}

func (s *Server) updateQuestion(w http.ResponseWriter, r *http.Request) {
	var req updateQuestionReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	q, err := s.questions.Update(r.Context(), question.UpdateParams{
		ID:             chi.URLParam(r, "id"),
		SequenceID:     req.SequenceID,
		Text:           req.QuestionText,
		PointsPossible: req.PointsPossible,
		Active:         req.Active,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toQuestionOut(q))
}

func (s *Server) deactivateQuestion(w http.ResponseWriter, r *http.Request) {
	if err := s.questions.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- users ---

func (s *Server) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := s.users.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]userOut, 0, len(users))
	for _, u := range users {
		out = append(out, toUserOut(u))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.Current(r.Context(), actor(r).Email)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserOut(u))
}

type createUserReq struct {
	Name         string `json:"name"`
	Email        string `json:"email"`
	ManagerEmail string `json:"managerEmail"`
	Role         string `json:"role"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req createUserReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	u, err := s.users.Create(r.Context(), user.CreateParams{
		Name:         req.Name,
		Email:        req.Email,
		ManagerEmail: req.ManagerEmail,
		Role:         user.Role(req.Role),
		CreatedBy:    actor(r).Email,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserOut(u))
}

type updateUserReq struct {
	Name         string `json:"name"`
	ManagerEmail string `json:"managerEmail"`
	Role         string `json:"role"`
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	var req updateUserReq
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	u, err := s.users.Update(r.Context(), user.User{
		ID:           chi.URLParam(r, "id"),
		Name:         req.Name,
		ManagerEmail: req.ManagerEmail,
		Role:         user.Role(req.Role),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserOut(u))
}

func (s *Server) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := s.users.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- settings ---

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	values, err := s.settings.All(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, values)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var values map[string]string
	if err := decodeJSON(r, &values); err != nil {
		writeJSON(w, http.StatusBadRequest, errResp{err.Error()})
		return
	}
	if err := s.settings.Save(r.Context(), values); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
