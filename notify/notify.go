// Package notify delivers completed evaluations to agents. Delivery is
// fire-and-forget: the scorer logs and swallows failures, so implementations
// are free to be unreliable without affecting the write path.
package notify

import (
	"context"
	"log/slog"

	"qaflow/evaluation"
)

// Sender delivers one evaluation notification.
type Sender interface {
	Send(ctx context.Context, eval evaluation.Evaluation) error
}

// LogSender records the notification instead of delivering it. It stands in
// for the real mail integration in development and tests.
type LogSender struct {
	log *slog.Logger
}

func NewLogSender(log *slog.Logger) *LogSender {
	return &LogSender{log: log}
}

func (s *LogSender) Send(_ context.Context, eval evaluation.Evaluation) error {
	s.log.Info("evaluation completed",
		"eval_id", eval.ID,
		"source_audit_id", eval.SourceAuditID,
		"qa_email", eval.QAEmail,
		"score", eval.EvalScore)
	return nil
}
