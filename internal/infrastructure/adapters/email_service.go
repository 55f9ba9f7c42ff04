package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"

	"github.com/meridian-wealth/advisory_service/internal/domain/entities"
)

// EmailServiceConfig holds email service configuration
type EmailServiceConfig struct {
	APIKey      string
	FromEmail   string
	FromName    string
	Environment string // "development", "staging", "production"
	// AdvisorEmail resolves the alert recipient for an advisor. Wired to
	// the advisor directory in production; a static mapping works in tests.
	AdvisorEmail func(advisorID string) string
}

// StaticAdvisorDirectory builds an AdvisorEmail resolver from a configured
// advisor-to-address map. fallback, when non-empty, receives alerts for
// advisors missing from the map.
func StaticAdvisorDirectory(addresses map[string]string, fallback string) func(advisorID string) string {
	return func(advisorID string) string {
		if email, ok := addresses[advisorID]; ok && email != "" {
			return email
		}
		return fallback
	}
}

// EmailService sends advisor-facing alert emails via SendGrid.
type EmailService struct {
	logger   *zap.Logger
	config   EmailServiceConfig
	client   *sendgrid.Client
	mockMode bool // Set to true in development/testing
}

// NewEmailService creates a new email service
func NewEmailService(logger *zap.Logger, config EmailServiceConfig) *EmailService {
	mockMode := config.Environment == "development" || config.APIKey == ""

	var client *sendgrid.Client
	if !mockMode {
		client = sendgrid.NewSendClient(config.APIKey)
	}

	return &EmailService{
		logger:   logger,
		config:   config,
		client:   client,
		mockMode: mockMode,
	}
}

// SendViolationAlert notifies the owning advisor that a tracked wash-sale
// window was violated by a repurchase.
func (e *EmailService) SendViolationAlert(ctx context.Context, ws *entities.WashSaleTransaction) error {
	e.logger.Info("Sending wash-sale violation alert",
		zap.String("window_id", ws.ID.String()),
		zap.String("advisor_id", ws.AdvisorID.String()),
		zap.String("symbol", ws.Symbol))

	to := ""
	if e.config.AdvisorEmail != nil {
		to = e.config.AdvisorEmail(ws.AdvisorID.String())
	}
	if to == "" {
		e.logger.Warn("No alert recipient for advisor, skipping email",
			zap.String("advisor_id", ws.AdvisorID.String()))
		return nil
	}

	subject := fmt.Sprintf("Wash Sale Violation Detected: %s", ws.Symbol)

	violationDate := "unknown"
	if ws.ViolationDate != nil {
		violationDate = ws.ViolationDate.Format("2006-01-02")
	}

	htmlContent := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><title>Wash Sale Violation</title></head>
		<body style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto; padding: 20px;">
			<div style="background-color: #f8d7da; padding: 30px; border-radius: 8px; border: 1px solid #f5c6cb;">
				<h1 style="color: #721c24; margin-bottom: 20px;">Wash Sale Violation Detected</h1>
				<p style="color: #721c24; font-size: 16px; line-height: 1.5; margin-bottom: 20px;">
					A repurchase of <strong>%s</strong> (or a substantially identical security)
					occurred inside an active wash-sale window.
				</p>
				<div style="background-color: white; padding: 20px; border-radius: 8px; margin: 20px 0;">
					<table style="width: 100%%; color: #495057; line-height: 1.8;">
						<tr><td><strong>Symbol</strong></td><td>%s</td></tr>
						<tr><td><strong>Sale date</strong></td><td>%s</td></tr>
						<tr><td><strong>Repurchase date</strong></td><td>%s</td></tr>
						<tr><td><strong>Disallowed loss</strong></td><td>$%s</td></tr>
					</table>
				</div>
				<p style="color: #721c24; font-size: 14px;">
					The harvested loss is disallowed for the current tax year and the disallowed
					amount is added to the replacement's cost basis. Review the affected account
					and adjust the client's tax projections.
				</p>
			</div>
		</body>
		</html>
	`, ws.Symbol, ws.Symbol, ws.SaleDate.Format("2006-01-02"), violationDate, ws.DisallowedLoss.StringFixed(2))

	textContent := fmt.Sprintf(`
Wash Sale Violation Detected

A repurchase of %s (or a substantially identical security) occurred inside
an active wash-sale window.

Symbol:          %s
Sale date:       %s
Repurchase date: %s
Disallowed loss: $%s

The harvested loss is disallowed for the current tax year and the disallowed
amount is added to the replacement's cost basis. Review the affected account
and adjust the client's tax projections.
	`, ws.Symbol, ws.Symbol, ws.SaleDate.Format("2006-01-02"), violationDate, ws.DisallowedLoss.StringFixed(2))

	return e.sendEmail(ctx, to, subject, htmlContent, textContent)
}

// sendEmail is a helper method to send emails via SendGrid or mock
func (e *EmailService) sendEmail(ctx context.Context, to, subject, htmlContent, textContent string) error {
	if e.mockMode {
		e.logger.Info("Email sent successfully (MOCK)",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.String("content_preview", textContent[:min(100, len(textContent))]+"..."))
		return nil
	}

	from := mail.NewEmail(e.config.FromName, e.config.FromEmail)
	toEmail := mail.NewEmail("", to)
	message := mail.NewSingleEmail(from, subject, toEmail, textContent, htmlContent)

	// Add timeout to context
	ctxWithTimeout, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	response, err := e.client.SendWithContext(ctxWithTimeout, message)
	if err != nil {
		e.logger.Error("Failed to send email",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Error(err))
		return fmt.Errorf("failed to send email: %w", err)
	}

	if response.StatusCode >= 400 {
		e.logger.Error("Email service returned error",
			zap.String("to", to),
			zap.String("subject", subject),
			zap.Int("status_code", response.StatusCode),
			zap.String("response_body", response.Body))
		return fmt.Errorf("email service error: status %d, body: %s", response.StatusCode, response.Body)
	}

	e.logger.Info("Email sent successfully",
		zap.String("to", to),
		zap.String("subject", subject),
		zap.Int("status_code", response.StatusCode))

	return nil
}

// min returns the minimum of two integers
func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
