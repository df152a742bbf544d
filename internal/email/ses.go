package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// EmailService handles sending emails via AWS SES
type EmailService struct {
	client    *ses.Client
	fromEmail string
	fromName  string
}

// NewEmailService creates a new email service using AWS SES
func NewEmailService(region, fromEmail, fromName string) (*EmailService, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := ses.NewFromConfig(cfg)

	return &EmailService{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
	}, nil
}

// SendLoginCodeEmail emails a one-time login code to the user.
// The code is only valid for the stated number of minutes.
func (e *EmailService) SendLoginCodeEmail(ctx context.Context, toEmail, code string, expiresInMinutes int) error {
	subject := "Your AI Agent Hub login code"
	htmlBody := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h1>Your login code</h1>
			<p>Enter this code to finish signing in:</p>
			<p style="font-size: 32px; letter-spacing: 8px; font-weight: bold;">%s</p>
			<p>The code expires in %d minutes. If you didn't try to sign in, you can ignore this email.</p>
		</div>
	`, code, expiresInMinutes)
	textBody := fmt.Sprintf(
		"Your AI Agent Hub login code is %s. It expires in %d minutes.\n\nIf you didn't try to sign in, ignore this email.",
		code, expiresInMinutes)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendAgentStatusEmail notifies an author that their submission was approved or rejected
func (e *EmailService) SendAgentStatusEmail(ctx context.Context, toEmail, agentName, status, reason string) error {
	subject := fmt.Sprintf("Your agent %q was %s", agentName, status)

	reasonBlock := ""
	if reason != "" {
		reasonBlock = fmt.Sprintf("<p>Reviewer note: %s</p>", reason)
	}
	htmlBody := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h1>Submission update</h1>
			<p>Your agent <strong>%s</strong> has been <strong>%s</strong>.</p>
			%s
		</div>
	`, agentName, status, reasonBlock)

	textBody := fmt.Sprintf("Your agent %q has been %s.", agentName, status)
	if reason != "" {
		textBody += "\n\nReviewer note: " + reason
	}

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendAccountApprovedEmail notifies a user their account is now active
func (e *EmailService) SendAccountApprovedEmail(ctx context.Context, toEmail, username string) error {
	subject := "Your AI Agent Hub account is active"
	htmlBody := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h1>Welcome, %s</h1>
			<p>An administrator approved your account. You can now sign in, browse the catalog, and submit agents.</p>
		</div>
	`, username)
	textBody := fmt.Sprintf("Welcome, %s. An administrator approved your account. You can now sign in.", username)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendAdminNewSubmissionEmail notifies an admin that a new agent awaits review
func (e *EmailService) SendAdminNewSubmissionEmail(ctx context.Context, toEmail, agentName, authorUsername string) error {
	subject := fmt.Sprintf("New agent submission: %s", agentName)
	htmlBody := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h1>New submission pending review</h1>
			<p><strong>%s</strong> submitted by %s is waiting for approval.</p>
		</div>
	`, agentName, authorUsername)
	textBody := fmt.Sprintf("Agent %q submitted by %s is waiting for approval.", agentName, authorUsername)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendAdminNewUserEmail notifies an admin that a new user awaits approval
func (e *EmailService) SendAdminNewUserEmail(ctx context.Context, toEmail, username, userEmail string) error {
	subject := fmt.Sprintf("New user registration: %s", username)
	htmlBody := fmt.Sprintf(`
		<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto;">
			<h1>New user pending approval</h1>
			<p><strong>%s</strong> (%s) registered and is waiting for activation.</p>
		</div>
	`, username, userEmail)
	textBody := fmt.Sprintf("User %s (%s) registered and is waiting for activation.", username, userEmail)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (e *EmailService) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	if _, err := e.client.SendEmail(ctx, input); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
