package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/civicfix/api/internal/config"
	"github.com/civicfix/api/internal/model"
)

// NotificationService sends SMS alerts to the configured authority number via
// the Twilio REST API. Delivery is best effort; failures are logged and never
// surface to the reporter.
type NotificationService struct {
	cfg    config.SMSConfig
	client *http.Client
	logger *slog.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(cfg config.SMSConfig, logger *slog.Logger) *NotificationService {
	return &NotificationService{
		cfg: cfg,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		logger: logger,
	}
}

// Enabled reports whether SMS credentials are configured
func (s *NotificationService) Enabled() bool {
	return s.cfg.AccountSID != "" && s.cfg.AuthToken != ""
}

// NotifyNewProblem alerts the authority number about a freshly reported
// problem. It is a no-op when notifications are disabled.
func (s *NotificationService) NotifyNewProblem(ctx context.Context, p *model.Problem) {
	if !s.Enabled() {
		return
	}

	body := fmt.Sprintf("New problem reported: %s\nTitle: %s\nSeverity: %s",
		p.ProblemID, p.Title, p.Severity)

	if err := s.sendSMS(ctx, s.cfg.AuthorityPhone, body); err != nil {
		s.logger.Warn("sms notification failed",
			slog.String("problem_id", p.ProblemID),
			slog.String("error", err.Error()))
		return
	}

	s.logger.Info("sms notification sent", slog.String("problem_id", p.ProblemID))
}

func (s *NotificationService) sendSMS(ctx context.Context, to, body string) error {
	endpoint := fmt.Sprintf("%s/Accounts/%s/Messages.json", s.cfg.BaseURL, s.cfg.AccountSID)

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", s.cfg.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.cfg.AccountSID, s.cfg.AuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("twilio returned status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
