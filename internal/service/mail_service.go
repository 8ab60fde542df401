package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lakewatch/lakes-portal-api/pkg/jobs"
	"github.com/lakewatch/lakes-portal-api/pkg/mailer"
)

const (
	mailJobActivation    = "mail.activation"
	mailJobPasswordReset = "mail.password_reset"
)

type mailPayload struct {
	To    string
	UID   string
	Token string
}

// MailService queues transactional mail on the background job queue so HTTP
// handlers never block on SMTP round trips.
type MailService struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// NewMailService wires a mailer into a worker queue and returns the service.
// Call Start before dispatching and Stop on shutdown.
func NewMailService(m *mailer.Mailer, cfg jobs.QueueConfig, logger *zap.Logger) *MailService {
	if logger == nil {
		logger = zap.NewNop()
	}
	handler := func(ctx context.Context, job jobs.Job) error {
		payload, ok := job.Payload.(mailPayload)
		if !ok {
			return fmt.Errorf("unexpected payload type for job %s", job.ID)
		}
		switch job.Type {
		case mailJobActivation:
			return m.SendActivation(payload.To, payload.UID, payload.Token)
		case mailJobPasswordReset:
			return m.SendPasswordReset(payload.To, payload.UID, payload.Token)
		default:
			return fmt.Errorf("unknown mail job type %q", job.Type)
		}
	}
	return &MailService{
		queue:  jobs.NewQueue("mail", handler, cfg),
		logger: logger,
	}
}

// Start launches the mail workers.
func (s *MailService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the mail workers.
func (s *MailService) Stop() {
	s.queue.Stop()
}

// DispatchActivation queues an activation mail.
func (s *MailService) DispatchActivation(email, uid, token string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    mailJobActivation,
		Payload: mailPayload{To: email, UID: uid, Token: token},
	})
}

// DispatchPasswordReset queues a password reset mail.
func (s *MailService) DispatchPasswordReset(email, uid, token string) error {
	return s.queue.Enqueue(jobs.Job{
		ID:      uuid.NewString(),
		Type:    mailJobPasswordReset,
		Payload: mailPayload{To: email, UID: uid, Token: token},
	})
}
