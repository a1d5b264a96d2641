package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strconv"
	"strings"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/ticketdesk/backoffice/internal/jobs"
)

// SendFunc matches smtp.SendMail.
type SendFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// MailConfig points the mailer at an SMTP relay.
type MailConfig struct {
	Host string
	Port int
	From string
}

// MailJob delivers notification emails through the configured relay.
type MailJob struct {
	Config  MailConfig
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
	send    SendFunc
}

// NewMailJob constructs the mail:send handler.
func NewMailJob(cfg MailConfig, logger *slog.Logger, metrics *jobmetrics.Metrics) *MailJob {
	return &MailJob{Config: cfg, Logger: logger, Metrics: metrics, send: smtp.SendMail}
}

// Handle processes TaskTypeSendEmail tasks.
func (j *MailJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil {
		return errors.New("mail: handler not configured")
	}
	var payload SendEmailPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}
	if strings.TrimSpace(payload.To) == "" {
		j.logger().Warn("dropping email without recipient", slog.String("subject", payload.Subject))
		return asynq.SkipRetry
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tracker := j.metrics().Track(TaskTypeSendEmail)
	addr := net.JoinHostPort(j.Config.Host, strconv.Itoa(j.Config.Port))
	err := j.sender()(addr, nil, j.Config.From, []string{payload.To}, buildMessage(j.Config.From, payload))
	if err != nil {
		err = fmt.Errorf("mail: send to %s: %w", payload.To, err)
		j.logger().Error("send email", slog.String("to", payload.To), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics().AddItems(TaskTypeSendEmail, 1)
	j.logger().Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
	return tracker.End(nil)
}

func buildMessage(from string, payload SendEmailPayload) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", payload.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(payload.Subject, "\n", " "))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n\r\n")
	b.WriteString(payload.Body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func (j *MailJob) sender() SendFunc {
	if j.send != nil {
		return j.send
	}
	return smtp.SendMail
}

func (j *MailJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskTypeSendEmail))
	}
	return slog.Default().With(slog.String("job", TaskTypeSendEmail))
}

func (j *MailJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
