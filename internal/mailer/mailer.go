package mailer

import (
	"fmt"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"go.uber.org/zap"
)

// Mailer sends transactional email.
type Mailer interface {
	SendPasswordReset(toEmail, username, resetToken string) error
	SendWinnerNotification(toEmail, username, competitionTitle, place string, prizeAmount float64) error
}

// SendgridMailer delivers through the SendGrid v3 API.
type SendgridMailer struct {
	client      *sendgrid.Client
	from        *mail.Email
	frontendURL string
}

func NewSendgrid(apiKey, fromEmail, frontendURL string) *SendgridMailer {
	return &SendgridMailer{
		client:      sendgrid.NewSendClient(apiKey),
		from:        mail.NewEmail("Seedling", fromEmail),
		frontendURL: frontendURL,
	}
}

func (m *SendgridMailer) send(to, subject, plain, html string) error {
	msg := mail.NewSingleEmail(m.from, subject, mail.NewEmail("", to), plain, html)
	resp, err := m.client.Send(msg)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid: status %d: %s", resp.StatusCode, resp.Body)
	}
	return nil
}

func (m *SendgridMailer) SendPasswordReset(toEmail, username, resetToken string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", m.frontendURL, resetToken)
	plain := fmt.Sprintf("Hi %s,\n\nReset your password here: %s\n\nThe link expires in 1 hour.", username, link)
	html := fmt.Sprintf(`<p>Hi %s,</p><p><a href="%s">Reset your password</a>. The link expires in 1 hour.</p>`, username, link)
	return m.send(toEmail, "Reset your Seedling password", plain, html)
}

func (m *SendgridMailer) SendWinnerNotification(toEmail, username, competitionTitle, place string, prizeAmount float64) error {
	plain := fmt.Sprintf("Congratulations %s! Your pitch placed %s in %s. Prize: $%.2f.", username, place, competitionTitle, prizeAmount)
	html := fmt.Sprintf("<p>Congratulations %s!</p><p>Your pitch placed <b>%s</b> in %s. Prize: $%.2f.</p>", username, place, competitionTitle, prizeAmount)
	return m.send(toEmail, fmt.Sprintf("You placed %s in %s", place, competitionTitle), plain, html)
}

// LogMailer is used in development when no SendGrid key is configured.
type LogMailer struct {
	Log *zap.Logger
}

func (m *LogMailer) SendPasswordReset(toEmail, username, resetToken string) error {
	m.Log.Info("password reset email (not sent)",
		zap.String("to", toEmail),
		zap.String("username", username),
		zap.String("token", resetToken))
	return nil
}

func (m *LogMailer) SendWinnerNotification(toEmail, username, competitionTitle, place string, prizeAmount float64) error {
	m.Log.Info("winner email (not sent)",
		zap.String("to", toEmail),
		zap.String("competition", competitionTitle),
		zap.String("place", place),
		zap.Float64("prize", prizeAmount))
	return nil
}
