package httpapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"qaflow/audit"
	"qaflow/dispute"
	"qaflow/evaluation"
	"qaflow/identity"
	"qaflow/metrics"
	"qaflow/question"
	"qaflow/user"
)

const testSecret = "test-secret"

func bearerToken(t *testing.T, email, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"email": email, "role": role})
	signed, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return "Bearer " + signed
}

type stubAuditStore struct {
	audit    audit.Audit
	claimErr error
	getErr   error
	released []audit.Status
}

func (s *stubAuditStore) Get(_ context.Context, _ string) (audit.Audit, error) {
	return s.audit, s.getErr
}

func (s *stubAuditStore) Claim(_ context.Context, _, actorEmail string, _ time.Duration) (audit.Audit, error) {
	if s.claimErr != nil {
		return audit.Audit{}, s.claimErr
	}
	a := s.audit
	a.Status = audit.StatusInProcess
	a.LockedBy = &actorEmail
	return a, nil
}

func (s *stubAuditStore) Release(_ context.Context, _ string, final audit.Status) error {
	s.released = append(s.released, final)
	return nil
}

func (s *stubAuditStore) Heartbeat(_ context.Context, _ string) error { return nil }

func (s *stubAuditStore) ForceUnlock(_ context.Context, _ string) error { return nil }

func (s *stubAuditStore) MarkMisconfigured(_ context.Context, _ string) error { return nil }

func (s *stubAuditStore) ListPending(_ context.Context) ([]audit.Audit, error) {
	return []audit.Audit{s.audit}, nil
}

func (s *stubAuditStore) ListAll(_ context.Context) ([]audit.Audit, error) {
	return []audit.Audit{s.audit}, nil
}

func (s *stubAuditStore) ScanStaleLocks(_ context.Context, _ time.Duration) ([]audit.StaleLock, error) {
	return nil, nil
}

func (s *stubAuditStore) ReleaseIfLockedAt(_ context.Context, _ string, _ time.Time) (bool, error) {
	return false, nil
}

type stubQuestionCatalog struct {
	questions []question.Question
}

func (s *stubQuestionCatalog) ActiveSet(_ context.Context, _, _ string) ([]question.Question, error) {
	return s.questions, nil
}

func (s *stubQuestionCatalog) List(_ context.Context) ([]question.Question, error) {
	return s.questions, nil
}

func (s *stubQuestionCatalog) Insert(_ context.Context, q question.Question) (question.Question, error) {
	return q, nil
}

func (s *stubQuestionCatalog) Update(_ context.Context, params question.UpdateParams) (question.Question, error) {
	return question.Question{ID: params.ID, Text: params.Text}, nil
}

func (s *stubQuestionCatalog) Deactivate(_ context.Context, _ string) error { return nil }

type stubEvalStore struct {
	created *evaluation.Evaluation
}

func (s *stubEvalStore) Create(_ context.Context, eval evaluation.Evaluation) (evaluation.Evaluation, error) {
	s.created = &eval
	return eval, nil
}

func (s *stubEvalStore) GetByID(_ context.Context, _ string) (evaluation.Evaluation, error) {
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (s *stubEvalStore) GetByAudit(_ context.Context, _ string) (evaluation.Evaluation, error) {
	return evaluation.Evaluation{}, evaluation.ErrNotFound
}

func (s *stubEvalStore) List(_ context.Context) ([]evaluation.Evaluation, error) {
	return nil, nil
}

type stubDisputeStore struct {
	filed   *dispute.Dispute
	fileErr error
}

func (s *stubDisputeStore) File(_ context.Context, d dispute.Dispute) (dispute.Dispute, error) {
	if s.fileErr != nil {
		return dispute.Dispute{}, s.fileErr
	}
	s.filed = &d
	return d, nil
}

func (s *stubDisputeStore) Get(_ context.Context, _ string) (dispute.Dispute, error) {
	return dispute.Dispute{}, dispute.ErrNotFound
}

func (s *stubDisputeStore) List(_ context.Context) ([]dispute.Dispute, error) { return nil, nil }

func (s *stubDisputeStore) BeginReview(_ context.Context, _ string) (dispute.Status, bool, error) {
	return dispute.StatusReviewing, true, nil
}

func (s *stubDisputeStore) Resolve(_ context.Context, _ dispute.ResolveParams, _ time.Time) error {
	return nil
}

func (s *stubDisputeStore) CountByStatus(_ context.Context) (map[dispute.Status]int, error) {
	return nil, nil
}

type stubDirectory struct{}

func (stubDirectory) GetByEmail(_ context.Context, _ string) (user.User, error) {
	return user.User{}, user.ErrNotFound
}

func (stubDirectory) List(_ context.Context) ([]user.User, error) { return nil, nil }

func (stubDirectory) Insert(_ context.Context, u user.User) (user.User, error) { return u, nil }

func (stubDirectory) Update(_ context.Context, u user.User) (user.User, error) { return u, nil }

func (stubDirectory) Delete(_ context.Context, _ string) error { return nil }

type serverFixture struct {
	router    http.Handler
	audits    *stubAuditStore
	evals     *stubEvalStore
	disputes  *stubDisputeStore
	questions *stubQuestionCatalog
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()

	auditStore := &stubAuditStore{audit: audit.Audit{
		AuditID:         "a1",
		TaskID:          "t1",
		ReferenceNumber: "ref-1",
		Status:          audit.StatusPending,
		RequestType:     "billing",
		TaskType:        "phone",
		AuditTimestamp:  time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}}
	catalog := &stubQuestionCatalog{questions: []question.Question{
		{ID: "q1", Text: "Greeted the customer?", PointsPossible: 5},
		{ID: "q2", Text: "Verified the account?", PointsPossible: 5},
	}}
	evalStore := &stubEvalStore{}
	disputeStore := &stubDisputeStore{}

	questionSvc := question.NewService(catalog, nil)
	auditSvc := audit.NewService(auditStore, questionSvc, 6*time.Minute)
	scorer := evaluation.NewScorer(evalStore, auditSvc, questionSvc, slog.Default())
	disputeSvc := dispute.NewService(disputeStore)
	userSvc := user.NewService(stubDirectory{}, user.RoleQAAnalyst)

	srv := NewServer(Deps{
		Audits:    auditSvc,
		Evals:     scorer,
		Disputes:  disputeSvc,
		Questions: questionSvc,
		Users:     userSvc,
		Verifier:  identity.NewVerifier(testSecret),
		Metrics:   metrics.New(),
		Log:       slog.Default(),
	})

	return &serverFixture{
		router:    srv.Router(),
		audits:    auditStore,
		evals:     evalStore,
		disputes:  disputeStore,
		questions: catalog,
	}
}

func (f *serverFixture) do(t *testing.T, method, path, token string, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestRouter_RejectsMissingToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/audits", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRouter_RejectsBadToken(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/audits", "Bearer not-a-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestClaimAudit_AttributesActor(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	rec := f.do(t, http.MethodPost, "/audits/a1/claim", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp auditOut
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuditStatus != "in_process" {
		t.Fatalf("expected in_process, got %q", resp.AuditStatus)
	}
	if resp.LockedBy == nil || *resp.LockedBy != "qa@example.com" {
		t.Fatalf("expected lock attributed to token email, got %+v", resp.LockedBy)
	}
}

func TestClaimAudit_Conflict(t *testing.T) {
	f := newFixture(t)
	f.audits.claimErr = audit.ErrAlreadyLocked
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	rec := f.do(t, http.MethodPost, "/audits/a1/claim", token, "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestReleaseAudit_RejectsNonLockStatus(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	for _, body := range []string{
		`{"finalStatus":"in_process"}`,
		`{"finalStatus":"misconfigured"}`,
		`{"finalStatus":"bogus"}`,
	} {
		rec := f.do(t, http.MethodPost, "/audits/a1/release", token, body)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %s: expected 400, got %d: %s", body, rec.Code, rec.Body.String())
		}
	}
	if len(f.audits.released) != 0 {
		t.Fatalf("expected no release, got %v", f.audits.released)
	}
}

func TestReleaseAudit_DefaultsToPending(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	rec := f.do(t, http.MethodPost, "/audits/a1/release", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(f.audits.released) != 1 || f.audits.released[0] != audit.StatusPending {
		t.Fatalf("expected release to pending, got %v", f.audits.released)
	}
}

func TestGetAudit_NotFound(t *testing.T) {
	f := newFixture(t)
	f.audits.getErr = audit.ErrNotFound
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	rec := f.do(t, http.MethodGet, "/audits/missing", token, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPrepareEvaluation_MisconfiguredAudit(t *testing.T) {
	f := newFixture(t)
	f.questions.questions = nil
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	rec := f.do(t, http.MethodPost, "/audits/a1/prepare", token, "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestSubmitEvaluation_Success(t *testing.T) {
	f := newFixture(t)
	owner := "qa@example.com"
	at := time.Now()
	f.audits.audit.Status = audit.StatusInProcess
	f.audits.audit.LockedBy = &owner
	f.audits.audit.LockedAt = &at
	token := bearerToken(t, owner, "qa_analyst")

	body := `{"auditId":"a1","responses":[
		{"questionId":"q1","response":"yes"},
		{"questionId":"q2","response":"no","feedback":"wrong account pulled"}
	]}`
	rec := f.do(t, http.MethodPost, "/evaluations", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp evaluationOut
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.TotalPoints != 5 || resp.TotalPointsPossible != 10 || resp.EvalScore != 0.5 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
	if resp.QAEmail != owner {
		t.Fatalf("expected submitter from token, got %q", resp.QAEmail)
	}
	if len(f.audits.released) != 1 || f.audits.released[0] != audit.StatusEvaluated {
		t.Fatalf("expected audit released to evaluated, got %v", f.audits.released)
	}
}

func TestSubmitEvaluation_LockLost(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "qa@example.com", "qa_analyst")

	body := `{"auditId":"a1","responses":[
		{"questionId":"q1","response":"yes"},
		{"questionId":"q2","response":"yes"}
	]}`
	rec := f.do(t, http.MethodPost, "/evaluations", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestFileDispute_AttributesActor(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "agent@example.com", "agent")

	body := `{"evalId":"e1","reason":"question 2 was answered","questionIds":["q2"]}`
	rec := f.do(t, http.MethodPost, "/disputes", token, body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if f.disputes.filed == nil || f.disputes.filed.UserEmail != "agent@example.com" {
		t.Fatalf("expected dispute attributed to token email, got %+v", f.disputes.filed)
	}
}

func TestFileDispute_AlreadyDisputed(t *testing.T) {
	f := newFixture(t)
	f.disputes.fileErr = dispute.ErrAlreadyDisputed
	token := bearerToken(t, "agent@example.com", "agent")

	body := `{"evalId":"e1","reason":"reason","questionIds":["q2"]}`
	rec := f.do(t, http.MethodPost, "/disputes", token, body)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}
}

func TestCurrentUser_FallbackProfile(t *testing.T) {
	f := newFixture(t)
	token := bearerToken(t, "new@example.com", "")

	rec := f.do(t, http.MethodGet, "/users/me", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp userOut
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Email != "new@example.com" || resp.Role != "qa_analyst" {
		t.Fatalf("unexpected profile: %+v", resp)
	}
}
